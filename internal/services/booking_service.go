package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

type BookingStore interface {
	models.Transactor
	models.BookingRepo
	models.PackageRepo
	models.TransactionRepo
}

// BookingRefunder returns money owed on a cancelled booking's payments.
type BookingRefunder interface {
	RefundBooking(ctx context.Context, bookingID string) error
}

type BookingService struct {
	store    BookingStore
	seq      *SequenceGenerator
	agg      *AggregateUpdater
	hooks    Hooks
	refunder BookingRefunder
}

func NewBookingService(store BookingStore, seq *SequenceGenerator, agg *AggregateUpdater, hooks Hooks) *BookingService {
	return &BookingService{
		store: store,
		seq:   seq,
		agg:   agg,
		hooks: hooks,
	}
}

type CreateBookingInput struct {
	PackageID  string   `json:"packageId"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Date       string   `json:"date"`
	Travelers  int      `json:"travelers"`
	TotalPrice *float64 `json:"totalPrice"`
	Status     string   `json:"status"`
}

type CreatedBooking struct {
	BookingID  string             `json:"bookingId"`
	InsertedID primitive.ObjectID `json:"insertedId"`
}

func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreatedBooking, error) {
	packageID, err := parseID(in.PackageID, "packageId")
	if err != nil {
		return nil, err
	}
	email, err := requireEmail(in.Email)
	if err != nil {
		return nil, err
	}

	travelers := in.Travelers
	if travelers == 0 {
		travelers = 1
	}
	if travelers < 1 {
		return nil, apperr.Validation("travelers must be at least 1")
	}

	date := strings.TrimSpace(in.Date)
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, apperr.Validation("date must be formatted YYYY-MM-DD")
		}
	}

	status := models.NormalizeBookingStatus(in.Status)
	if !status.Valid() || status == models.BookingCancelled {
		return nil, apperr.Validation("invalid booking status")
	}

	pkg, err := s.store.GetPackageByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperr.Validation("package not found")
		}
		return nil, apperr.Dependency(err, "failed to load package")
	}

	total := decimal.NewFromFloat(pkg.Price).Mul(decimal.NewFromInt(int64(travelers))).Round(2).InexactFloat64()
	if in.TotalPrice != nil {
		if *in.TotalPrice < 0 {
			return nil, apperr.Validation("totalPrice must not be negative")
		}
		total = *in.TotalPrice
	}

	bookingID, err := s.seq.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	now := s.hooks.now()
	booking := &models.Booking{
		ID:            primitive.NewObjectID(),
		BookingID:     bookingID,
		PackageID:     packageID,
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		Phone:         strings.TrimSpace(in.Phone),
		Date:          date,
		Travelers:     travelers,
		TotalPrice:    total,
		Status:        status,
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.agg.BookingCreated(txCtx, packageID); err != nil {
			return err
		}
		_, err := s.store.InsertBooking(txCtx, booking)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperr.Validation("package not found")
		}
		return nil, apperr.Dependency(err, "failed to create booking")
	}

	s.hooks.Logger.Info().Str("booking_id", bookingID).Str("package_id", packageID.Hex()).Msg("booking created")
	s.hooks.emit(ctx, models.LifecycleEvent{
		Type:      models.EventBookingCreated,
		BookingID: bookingID,
		PackageID: packageID.Hex(),
		Email:     email,
		Amount:    total,
	})
	return &CreatedBooking{BookingID: bookingID, InsertedID: booking.ID}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	booking, err := s.store.GetBookingByBookingID(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking not found", "failed to load booking")
	}
	return booking, nil
}

// CancelBooking is idempotent. Only the call that performs the transition
// rebalances the package count and flags the booking's payments refunded.
// Gateway refunds still owed are retried on every call.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}

	var (
		booking *models.Booking
		changed bool
	)
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		booking, changed, err = s.cancelInTx(txCtx, bookingID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "booking not found", "failed to cancel booking")
	}

	var refundErr error
	if s.refunder != nil {
		if refundErr = s.refunder.RefundBooking(ctx, bookingID); refundErr != nil {
			s.hooks.Logger.Warn().Err(refundErr).Str("booking_id", bookingID).Msg("refund after cancellation failed")
		}
	}
	if changed {
		s.hooks.emit(ctx, models.LifecycleEvent{
			Type:      models.EventBookingCancelled,
			BookingID: booking.BookingID,
			PackageID: booking.PackageID.Hex(),
			Email:     booking.Email,
		})
	}
	if refundErr != nil {
		return nil, refundErr
	}
	return booking, nil
}

// cancelInTx must run inside a transaction. A paid booking moves to
// paymentStatus refunded together with its transactions.
func (s *BookingService) cancelInTx(txCtx context.Context, bookingID string) (*models.Booking, bool, error) {
	booking, err := s.store.GetBookingByBookingID(txCtx, bookingID)
	if err != nil {
		return nil, false, err
	}
	changed, err := s.store.SetBookingStatus(txCtx, bookingID, models.BookingCancelled, []models.BookingStatus{models.BookingCancelled})
	if err != nil {
		return nil, false, err
	}
	booking.Status = models.BookingCancelled
	if !changed {
		return booking, false, nil
	}

	if err := s.agg.BookingCancelled(txCtx, booking.PackageID); err != nil {
		return nil, false, err
	}
	if _, err := s.store.MarkTransactionsRefundedByBookingID(txCtx, bookingID, s.hooks.now()); err != nil {
		return nil, false, err
	}
	if booking.PaymentStatus == models.PaymentSucceeded {
		if err := s.store.SetBookingPaymentStatus(txCtx, bookingID, models.PaymentRefunded); err != nil {
			return nil, false, err
		}
		booking.PaymentStatus = models.PaymentRefunded
	}
	return booking, true, nil
}

func (s *BookingService) CompleteBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingCompleted, models.EventBookingCompleted,
		[]models.BookingStatus{models.BookingCancelled})
}

// ConfirmBooking promotes a pending booking. Completed and cancelled bookings
// cannot be confirmed.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingConfirmed, models.EventBookingConfirmed,
		[]models.BookingStatus{models.BookingCancelled, models.BookingCompleted})
}

func (s *BookingService) transition(ctx context.Context, bookingID string, to models.BookingStatus, event models.EventType, forbidden []models.BookingStatus) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == to {
		return booking, nil
	}
	for _, f := range forbidden {
		if booking.Status == f {
			return nil, apperr.Newf(apperr.CodeConflict, "%s booking cannot be marked %s", f, to)
		}
	}

	changed, err := s.store.SetBookingStatus(ctx, booking.BookingID, to, append(forbidden, to))
	if err != nil {
		return nil, storeErr(err, "booking not found", "failed to update booking")
	}
	if !changed {
		// Lost a race with another transition.
		return nil, apperr.Newf(apperr.CodeConflict, "booking %s changed concurrently", booking.BookingID)
	}

	booking.Status = to
	s.hooks.emit(ctx, models.LifecycleEvent{
		Type:      event,
		BookingID: booking.BookingID,
		PackageID: booking.PackageID.Hex(),
		Email:     booking.Email,
	})
	return booking, nil
}

// DeleteBooking hard-deletes a booking. A missing booking is reported before
// the package id is checked.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID, packageID string) error {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return apperr.Validation("booking_id is required")
	}
	packageID = strings.TrimSpace(packageID)

	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		booking, err := s.store.GetBookingByBookingID(txCtx, bookingID)
		if err != nil {
			return err
		}
		if packageID != "" {
			pid, err := parseID(packageID, "package_id")
			if err != nil {
				return err
			}
			if pid != booking.PackageID {
				return apperr.Validation("package_id does not match booking")
			}
		}
		if err := s.store.DeleteBookingByBookingID(txCtx, bookingID); err != nil {
			return err
		}
		if booking.Status == models.BookingCancelled {
			return nil
		}
		return s.agg.BookingCancelled(txCtx, booking.PackageID)
	})
	if err != nil {
		return storeErr(err, "booking not found", "failed to delete booking")
	}
	return nil
}

func (s *BookingService) ListUserBookings(ctx context.Context, email string) ([]*models.BookingWithPackage, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookingsByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list bookings")
	}
	return s.withPackages(ctx, bookings)
}

func (s *BookingService) ListBookings(ctx context.Context, status string) ([]*models.BookingWithPackage, error) {
	var filter models.BookingStatus
	if strings.TrimSpace(status) != "" {
		filter = models.NormalizeBookingStatus(status)
		if !filter.Valid() {
			return nil, apperr.Validation("invalid booking status")
		}
	}
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list bookings")
	}
	return s.withPackages(ctx, bookings)
}

// PaymentStatusFor reports the payment status of the customer's latest
// booking of the package. found is false when no booking exists.
func (s *BookingService) PaymentStatusFor(ctx context.Context, email, packageID string) (models.PaymentStatus, bool, error) {
	email, err := requireEmail(email)
	if err != nil {
		return "", false, err
	}
	pid, err := parseID(packageID, "packageId")
	if err != nil {
		return "", false, err
	}
	booking, err := s.store.FindLatestBooking(ctx, email, pid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", false, nil
		}
		return "", false, apperr.Dependency(err, "failed to load booking")
	}
	return booking.PaymentStatus, true, nil
}

func (s *BookingService) withPackages(ctx context.Context, bookings []*models.Booking) ([]*models.BookingWithPackage, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(bookings))
	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.PackageID]; ok {
			continue
		}
		seen[b.PackageID] = struct{}{}
		ids = append(ids, b.PackageID)
	}

	packages, err := s.store.GetPackagesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load packages")
	}

	out := make([]*models.BookingWithPackage, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, &models.BookingWithPackage{
			Booking: b,
			Package: packages[b.PackageID].Snapshot(),
		})
	}
	return out, nil
}
