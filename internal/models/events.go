package models

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// LifecycleEvent is published after a booking or payment change has been
// committed. The type doubles as the broker routing key.
type LifecycleEvent struct {
	Type       EventType `json:"type"`
	BookingID  string    `json:"bookingId"`
	PackageID  string    `json:"packageId,omitempty"`
	Email      string    `json:"email,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
