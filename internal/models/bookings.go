package models

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentRefunded  PaymentStatus = "refunded"
)

// NormalizeBookingStatus maps legacy spellings ("Cancelled", "canceled") onto
// the canonical enum. Unknown values are returned unchanged.
func NormalizeBookingStatus(raw string) BookingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		return BookingPending
	case "confirmed":
		return BookingConfirmed
	case "cancelled", "canceled":
		return BookingCancelled
	case "completed", "complete":
		return BookingCompleted
	}
	return BookingStatus(raw)
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// storedVariants lists every spelling of s that may exist in older documents.
func (s BookingStatus) storedVariants() []string {
	switch s {
	case BookingCancelled:
		return []string{"cancelled", "Cancelled", "canceled"}
	case BookingCompleted:
		return []string{"completed", "Completed"}
	case BookingConfirmed:
		return []string{"confirmed", "Confirmed"}
	case BookingPending:
		return []string{"pending", "Pending"}
	}
	return []string{string(s)}
}

type Booking struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	BookingID     string             `bson:"bookingId" json:"bookingId"`
	PackageID     primitive.ObjectID `bson:"packageId" json:"packageId"`
	Email         string             `bson:"email" json:"email" validate:"required,email"`
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Date          string             `bson:"date,omitempty" json:"date,omitempty"`
	Travelers     int                `bson:"travelers" json:"travelers" validate:"gte=1"`
	TotalPrice    float64            `bson:"totalPrice" json:"totalPrice" validate:"gte=0"`
	Status        BookingStatus      `bson:"status" json:"status"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	PaymentDate   *time.Time         `bson:"paymentDate,omitempty" json:"paymentDate,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (b *Booking) normalize() {
	b.Status = NormalizeBookingStatus(string(b.Status))
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentUnpaid
	}
}

// BookingWithPackage is a booking enriched with a snapshot of its package.
// Package is nil when the package has since been deleted.
type BookingWithPackage struct {
	*Booking
	Package *PackageSnapshot `json:"package"`
}

type BookingRepo interface {
	InsertBooking(ctx context.Context, booking *Booking) (*Booking, error)
	GetBookingByBookingID(ctx context.Context, bookingID string) (*Booking, error)
	FindLatestBooking(ctx context.Context, email string, packageID primitive.ObjectID) (*Booking, error)
	ListBookingsByEmail(ctx context.Context, email string) ([]*Booking, error)
	ListBookings(ctx context.Context, status BookingStatus) ([]*Booking, error)
	// SetBookingStatus moves the booking to status unless its current status is
	// one of except. changed reports whether this call performed the transition.
	SetBookingStatus(ctx context.Context, bookingID string, status BookingStatus, except []BookingStatus) (changed bool, err error)
	// MarkBookingPaid records a successful payment and promotes a pending booking to confirmed.
	MarkBookingPaid(ctx context.Context, bookingID string, paidAt time.Time) error
	SetBookingPaymentStatus(ctx context.Context, bookingID string, status PaymentStatus) error
	DeleteBookingByBookingID(ctx context.Context, bookingID string) error
	CountBookings(ctx context.Context, email string) (int64, error)
	NextPaidBooking(ctx context.Context, email string, fromDate string) (*Booking, error)
	MonthlyBookingCounts(ctx context.Context, year int) (map[int]int64, error)
}

type CounterRepo interface {
	// NextSequence atomically increments the named counter and returns the new value.
	NextSequence(ctx context.Context, name string) (int64, error)
}
