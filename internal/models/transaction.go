package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicate is returned when a unique index rejects an insert.
var ErrDuplicate = errors.New("duplicate document")

// Transaction records one successful gateway payment against a booking.
// GatewayRefundedAt is set once the gateway has returned the money; Refunded
// alone only marks the ledger.
type Transaction struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PaymentIntentID   string             `bson:"paymentIntentId" json:"paymentIntentId"`
	Email             string             `bson:"email" json:"email"`
	PackageID         primitive.ObjectID `bson:"packageId" json:"packageId"`
	BookingID         string             `bson:"bookingId" json:"bookingId"`
	Amount            float64            `bson:"amount" json:"amount"`
	Currency          string             `bson:"currency" json:"currency"`
	Status            string             `bson:"status" json:"status"`
	PaymentDate       time.Time          `bson:"paymentDate" json:"paymentDate"`
	Refunded          bool               `bson:"refunded" json:"refunded"`
	RefundedAt        *time.Time         `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	GatewayRefundedAt *time.Time         `bson:"gatewayRefundedAt,omitempty" json:"gatewayRefundedAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
}

type TransactionRepo interface {
	// InsertTransaction returns ErrDuplicate when the payment intent is already recorded.
	InsertTransaction(ctx context.Context, txn *Transaction) (*Transaction, error)
	GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)
	ListTransactionsByEmail(ctx context.Context, email string) ([]*Transaction, error)
	ListTransactionsByBookingID(ctx context.Context, bookingID string) ([]*Transaction, error)
	MarkTransactionRefunded(ctx context.Context, paymentIntentID string, at time.Time) error
	MarkTransactionsRefundedByBookingID(ctx context.Context, bookingID string, at time.Time) (int64, error)
	MarkTransactionGatewayRefunded(ctx context.Context, paymentIntentID string, at time.Time) error
	// SumSucceededAmount totals succeeded, non-refunded transactions. An empty
	// email sums across every customer.
	SumSucceededAmount(ctx context.Context, email string) (float64, error)
}
