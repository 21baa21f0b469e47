package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/payments"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
)

const (
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	webhookKeyPrefix            = "stripe:event:"
)

var errGatewayUnavailable = errors.New("payment gateway not configured")

type PaymentGateway interface {
	CreateIntent(ctx context.Context, params payments.IntentParams) (*payments.Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*payments.Intent, error)
	Refund(ctx context.Context, paymentIntentID string) error
	ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error)
}

type PaymentStore interface {
	models.Transactor
	models.BookingRepo
	models.TransactionRepo
}

type PaymentConfig struct {
	Currency         string
	RefundViaGateway bool
	IdempotencyTTL   time.Duration
}

type PaymentService struct {
	store      PaymentStore
	gateway    PaymentGateway
	bookings   *BookingService
	cache      Cache
	cfg        PaymentConfig
	hooks      Hooks
	newBackOff func() backoff.BackOff
	maxRetries uint64
}

func NewPaymentService(store PaymentStore, gateway PaymentGateway, bookings *BookingService, cache Cache, cfg PaymentConfig, hooks Hooks) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	s := &PaymentService{
		store:      store,
		gateway:    gateway,
		bookings:   bookings,
		cache:      cache,
		cfg:        cfg,
		hooks:      hooks,
		newBackOff: newBackOff,
		maxRetries: defaultMaxRetries,
	}
	if bookings != nil {
		bookings.refunder = s
	}
	return s
}

type CreateIntentInput struct {
	PackageID   string  `json:"packageId"`
	PackageName string  `json:"packageName"`
	Amount      float64 `json:"amount"`
	Email       string  `json:"email"`
	BookingID   string  `json:"bookingId"`
}

type IntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func (s *PaymentService) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*IntentResult, error) {
	in.PackageID = strings.TrimSpace(in.PackageID)
	in.PackageName = strings.TrimSpace(in.PackageName)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.PackageID == "":
		return nil, apperr.Validation("packageId is required")
	case in.PackageName == "":
		return nil, apperr.Validation("packageName is required")
	case in.Email == "":
		return nil, apperr.Validation("email is required")
	case in.Amount <= 0:
		return nil, apperr.Validation("amount must be greater than 0")
	}
	minor := toMinorUnits(in.Amount)
	if minor <= 0 {
		return nil, apperr.Validation("amount is too small")
	}
	if s.gateway == nil {
		return nil, apperr.Dependency(errGatewayUnavailable, "failed to create payment intent")
	}

	metadata := map[string]string{
		"packageId":   in.PackageID,
		"packageName": in.PackageName,
		"email":       in.Email,
	}
	if b := strings.TrimSpace(in.BookingID); b != "" {
		metadata["bookingId"] = b
	}

	params := payments.IntentParams{
		Amount:         minor,
		Currency:       s.cfg.Currency,
		Metadata:       metadata,
		IdempotencyKey: "intent-" + uuid.NewString(),
	}
	var intent *payments.Intent
	err := s.callGateway(ctx, func() error {
		var err error
		intent, err = s.gateway.CreateIntent(ctx, params)
		return err
	})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to create payment intent")
	}
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

type ConfirmPaymentInput struct {
	PaymentIntentID string   `json:"paymentIntentId"`
	Email           string   `json:"email"`
	PackageID       string   `json:"packageId"`
	BookingID       string   `json:"bookingId"`
	Amount          *float64 `json:"amount"`
}

// ConfirmPayment records a succeeded payment intent against its booking.
// Replaying an already recorded intent returns the stored transaction.
func (s *PaymentService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*models.Transaction, error) {
	in.PaymentIntentID = strings.TrimSpace(in.PaymentIntentID)
	in.BookingID = strings.TrimSpace(in.BookingID)
	switch {
	case in.PaymentIntentID == "":
		return nil, apperr.Validation("paymentIntentId is required")
	case strings.TrimSpace(in.Email) == "":
		return nil, apperr.Validation("email is required")
	case strings.TrimSpace(in.PackageID) == "":
		return nil, apperr.Validation("packageId is required")
	case in.BookingID == "":
		return nil, apperr.Validation("bookingId is required")
	}
	packageID, err := parseID(in.PackageID, "packageId")
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, apperr.Dependency(errGatewayUnavailable, "failed to retrieve payment intent")
	}

	var intent *payments.Intent
	err = s.callGateway(ctx, func() error {
		var err error
		intent, err = s.gateway.RetrieveIntent(ctx, in.PaymentIntentID)
		return err
	})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to retrieve payment intent")
	}
	if intent.Status != payments.StatusSucceeded {
		s.hooks.Metrics.IncPayment("rejected")
		return nil, apperr.Newf(apperr.CodePaymentNotSucceeded, "payment not successful: status %s", intent.Status)
	}
	if in.Amount != nil && toMinorUnits(*in.Amount) != intent.Amount {
		return nil, apperr.Validation("amount does not match payment")
	}

	return s.record(ctx, intent, strings.TrimSpace(in.Email), packageID, in.BookingID)
}

func (s *PaymentService) record(ctx context.Context, intent *payments.Intent, email string, packageID primitive.ObjectID, bookingID string) (*models.Transaction, error) {
	now := s.hooks.now()
	txn := &models.Transaction{
		ID:              primitive.NewObjectID(),
		PaymentIntentID: intent.ID,
		Email:           email,
		PackageID:       packageID,
		BookingID:       bookingID,
		Amount:          fromMinorUnits(intent.Amount),
		Currency:        intent.Currency,
		Status:          intent.Status,
		PaymentDate:     intent.Created,
		CreatedAt:       now,
	}

	var (
		stored   *models.Transaction
		replayed bool
	)
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.store.GetTransactionByPaymentIntent(txCtx, intent.ID)
		if err == nil {
			stored, replayed = existing, true
			return nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		booking, err := s.store.GetBookingByBookingID(txCtx, bookingID)
		if err != nil {
			return err
		}
		if email == "" {
			email = booking.Email
			txn.Email = email
		}
		if err := checkIntentMatchesBooking(intent, booking, email, packageID); err != nil {
			return err
		}
		if _, err := s.store.InsertTransaction(txCtx, txn); err != nil {
			return err
		}
		stored, replayed = txn, false
		return s.store.MarkBookingPaid(txCtx, bookingID, intent.Created)
	})
	if errors.Is(err, models.ErrDuplicate) {
		// A concurrent confirmation committed first.
		stored, err = s.store.GetTransactionByPaymentIntent(ctx, intent.ID)
		replayed = true
	}
	if err != nil {
		return nil, storeErr(err, "booking not found", "failed to record payment")
	}

	if replayed {
		s.hooks.Metrics.IncPayment("replayed")
		return stored, nil
	}
	s.hooks.Metrics.IncPayment("recorded")
	s.hooks.Logger.Info().Str("booking_id", bookingID).Str("payment_intent_id", intent.ID).Msg("payment recorded")
	s.hooks.emit(ctx, models.LifecycleEvent{
		Type:      models.EventPaymentSucceeded,
		BookingID: bookingID,
		PackageID: packageID.Hex(),
		Email:     email,
		Amount:    stored.Amount,
	})
	return stored, nil
}

// checkIntentMatchesBooking rejects intents that were not created for the
// booking they are recorded against, and bookings that can no longer be paid.
func checkIntentMatchesBooking(intent *payments.Intent, booking *models.Booking, email string, packageID primitive.ObjectID) error {
	if booking.Status == models.BookingCancelled {
		return apperr.Newf(apperr.CodeConflict, "booking %s is cancelled", booking.BookingID)
	}
	if booking.PackageID != packageID {
		return apperr.Validation("packageId does not match booking")
	}
	if !strings.EqualFold(strings.TrimSpace(booking.Email), email) {
		return apperr.Validation("email does not match booking")
	}
	md := intent.Metadata
	if v := strings.TrimSpace(md["bookingId"]); v != "" && v != booking.BookingID {
		return apperr.Validation("payment was made for a different booking")
	}
	if v := strings.TrimSpace(md["packageId"]); v != "" && v != packageID.Hex() {
		return apperr.Validation("payment was made for a different package")
	}
	if v := strings.TrimSpace(md["email"]); v != "" && !strings.EqualFold(v, email) {
		return apperr.Validation("payment was made by a different customer")
	}
	if toMinorUnits(booking.TotalPrice) != intent.Amount {
		return apperr.Validation("amount does not match booking total")
	}
	return nil
}

// HandleWebhook verifies a gateway notification and reconciles succeeded
// intents using their metadata. Each event id is processed at most once
// while its idempotency key lives.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return apperr.Dependency(errGatewayUnavailable, "failed to handle webhook")
	}
	if strings.TrimSpace(signature) == "" {
		return apperr.Validation("stripe signature missing")
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid webhook payload")
	}

	log := s.hooks.Logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	key := webhookKeyPrefix + event.ID
	if s.cache != nil && event.ID != "" {
		fresh, err := s.cache.SetNX(ctx, key, s.cfg.IdempotencyTTL)
		if err != nil {
			return apperr.Dependency(err, "failed to check webhook idempotency")
		}
		if !fresh {
			log.Debug().Msg("duplicate webhook event ignored")
			return nil
		}
	}

	if event.Type != eventPaymentIntentSucceeded || event.Intent == nil {
		return nil
	}
	intent := event.Intent
	if intent.Status != payments.StatusSucceeded {
		return nil
	}

	md := intent.Metadata
	bookingID := strings.TrimSpace(md["bookingId"])
	packageID, perr := models.ParseObjectID(md["packageId"])
	if bookingID == "" || perr != nil {
		log.Warn().Str("payment_intent_id", intent.ID).Msg("payment intent lacks booking metadata")
		return nil
	}

	if _, err := s.record(ctx, intent, strings.TrimSpace(md["email"]), packageID, bookingID); err != nil {
		if apperr.IsCode(err, apperr.CodeValidation) || apperr.IsCode(err, apperr.CodeConflict) {
			// Redelivery cannot change the outcome.
			log.Warn().Err(err).Str("payment_intent_id", intent.ID).Str("booking_id", bookingID).Msg("payment intent not recorded")
			s.hooks.Metrics.IncPayment("rejected")
			return nil
		}
		if s.cache != nil && event.ID != "" {
			if derr := s.cache.Del(ctx, key); derr != nil {
				log.Warn().Err(derr).Msg("failed to release webhook idempotency key")
			}
		}
		return err
	}
	return nil
}

// RefundPayment refunds a recorded payment and cancels its booking. The
// booking is kept with status cancelled. A payment already flagged refunded
// by a cancellation still gets its gateway refund when those are enabled.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, apperr.Validation("paymentId is required")
	}
	txn, err := s.store.GetTransactionByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, storeErr(err, "transaction not found", "failed to load transaction")
	}

	if s.needsGatewayRefund(txn) {
		if err := s.refundViaGateway(ctx, txn); err != nil {
			return nil, err
		}
	}
	if txn.Refunded {
		return txn, nil
	}

	now := s.hooks.now()
	var (
		booking   *models.Booking
		cancelled bool
	)
	err = s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.store.MarkTransactionRefunded(txCtx, paymentIntentID, now); err != nil {
			return err
		}
		if txn.BookingID == "" {
			return nil
		}
		err := s.store.SetBookingPaymentStatus(txCtx, txn.BookingID, models.PaymentRefunded)
		if errors.Is(err, models.ErrNotFound) {
			// Booking was removed through the legacy delete path.
			return nil
		}
		if err != nil {
			return err
		}
		booking, cancelled, err = s.bookings.cancelInTx(txCtx, txn.BookingID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "transaction not found", "failed to refund payment")
	}

	txn.Refunded = true
	txn.RefundedAt = &now
	s.hooks.emit(ctx, models.LifecycleEvent{
		Type:      models.EventPaymentRefunded,
		BookingID: txn.BookingID,
		PackageID: txn.PackageID.Hex(),
		Email:     txn.Email,
		Amount:    txn.Amount,
	})
	if cancelled {
		s.hooks.emit(ctx, models.LifecycleEvent{
			Type:      models.EventBookingCancelled,
			BookingID: booking.BookingID,
			PackageID: booking.PackageID.Hex(),
			Email:     booking.Email,
		})
	}
	return txn, nil
}

// RefundBooking issues the gateway refunds still owed on a booking's
// cancelled payments. It does nothing unless gateway refunds are enabled, and
// repeating it is safe.
func (s *PaymentService) RefundBooking(ctx context.Context, bookingID string) error {
	if !s.cfg.RefundViaGateway {
		return nil
	}
	txns, err := s.store.ListTransactionsByBookingID(ctx, bookingID)
	if err != nil {
		return apperr.Dependency(err, "failed to load booking payments")
	}
	var errs error
	for _, txn := range txns {
		if txn.Refunded && s.needsGatewayRefund(txn) {
			errs = multierr.Append(errs, s.refundViaGateway(ctx, txn))
		}
	}
	if errs != nil {
		return apperr.Dependency(errs, "failed to refund payment")
	}
	return nil
}

func (s *PaymentService) needsGatewayRefund(txn *models.Transaction) bool {
	return s.cfg.RefundViaGateway && txn.GatewayRefundedAt == nil
}

func (s *PaymentService) refundViaGateway(ctx context.Context, txn *models.Transaction) error {
	if s.gateway == nil {
		return apperr.Dependency(errGatewayUnavailable, "failed to refund payment")
	}
	err := s.callGateway(ctx, func() error {
		return s.gateway.Refund(ctx, txn.PaymentIntentID)
	})
	if err != nil {
		return apperr.Dependency(err, "failed to refund payment")
	}

	now := s.hooks.now()
	if err := s.store.MarkTransactionGatewayRefunded(ctx, txn.PaymentIntentID, now); err != nil {
		return storeErr(err, "transaction not found", "failed to record gateway refund")
	}
	txn.GatewayRefundedAt = &now
	s.hooks.Metrics.IncPayment("refunded")
	s.hooks.Logger.Info().Str("payment_intent_id", txn.PaymentIntentID).Str("booking_id", txn.BookingID).Msg("gateway refund issued")
	return nil
}

func (s *PaymentService) GetTransaction(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, apperr.Validation("paymentId is required")
	}
	txn, err := s.store.GetTransactionByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, storeErr(err, "transaction not found", "failed to load transaction")
	}
	return txn, nil
}

func (s *PaymentService) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list transactions")
	}
	return txns, nil
}

func (s *PaymentService) ListUserTransactions(ctx context.Context, email string) ([]*models.Transaction, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactionsByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list transactions")
	}
	return txns, nil
}

func (s *PaymentService) callGateway(ctx context.Context, op func() error) error {
	return retry(ctx, s.newBackOff, s.maxRetries, payments.IsTransient, op)
}

func toMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(amount int64) float64 {
	return decimal.New(amount, -2).InexactFloat64()
}
