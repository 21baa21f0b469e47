package services

import (
	"context"
	"errors"
	"time"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/metrics"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/rs/zerolog"
)

// EventPublisher delivers committed lifecycle events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

// Cache is the key/value store used for read caching and idempotency keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores key only when absent and reports whether it did.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Hooks carries the collaborators every service shares. The zero value logs
// nothing, publishes nothing and uses the wall clock. Cache holds read
// rollups that committed writes evict.
type Hooks struct {
	Logger    zerolog.Logger
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	Cache     Cache
}

func (h Hooks) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

// emit publishes ev after commit. Failures are logged and never surface to
// the caller since the state change has already happened.
func (h Hooks) emit(ctx context.Context, ev models.LifecycleEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.now()
	}
	h.Metrics.IncEvent(string(ev.Type))
	h.dropAdminStats(ctx)
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.Publish(ctx, ev); err != nil {
		h.Logger.Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("booking_id", ev.BookingID).
			Msg("failed to publish lifecycle event")
	}
}

// dropAdminStats evicts the cached admin totals after a committed write.
func (h Hooks) dropAdminStats(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Del(ctx, adminStatsCacheKey); err != nil {
		h.Logger.Warn().Err(err).Msg("admin stats cache eviction failed")
	}
}

// storeErr maps repository errors onto the service error taxonomy. Errors
// that already carry a code pass through.
func storeErr(err error, notFoundMsg, failMsg string) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return err
	}
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFound(notFoundMsg)
	}
	return apperr.Dependency(err, failMsg)
}
