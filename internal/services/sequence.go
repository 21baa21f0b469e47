package services

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
)

// BookingSequence is the counter document that numbers bookings.
const BookingSequence = "bookingId"

// SequenceGenerator hands out human readable booking ids. Numbers are never
// reused; a failed attempt may leave a gap.
type SequenceGenerator struct {
	counters   models.CounterRepo
	newBackOff func() backoff.BackOff
	maxRetries uint64
}

func NewSequenceGenerator(counters models.CounterRepo) *SequenceGenerator {
	return &SequenceGenerator{
		counters:   counters,
		newBackOff: newBackOff,
		maxRetries: defaultMaxRetries,
	}
}

func (g *SequenceGenerator) Allocate(ctx context.Context) (string, error) {
	var seq int64
	err := retry(ctx, g.newBackOff, g.maxRetries, isTransientStoreError, func() error {
		var err error
		seq, err = g.counters.NextSequence(ctx, BookingSequence)
		return err
	})
	if err != nil {
		return "", apperr.Dependency(err, "failed to allocate booking id")
	}
	return FormatBookingID(seq), nil
}

// FormatBookingID renders seq as B0001. Ids widen past 9999.
func FormatBookingID(seq int64) string {
	return fmt.Sprintf("B%04d", seq)
}
