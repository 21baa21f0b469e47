package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const adminStatsCacheKey = "stats:admin"

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type StatsStore interface {
	models.BookingRepo
	models.PackageRepo
	models.TransactionRepo
	models.UserRepo
}

// StatsService composes read-only rollups. It never writes.
type StatsService struct {
	store StatsStore
	cache Cache
	ttl   time.Duration
	hooks Hooks
}

func NewStatsService(store StatsStore, cache Cache, ttl time.Duration, hooks Hooks) *StatsService {
	return &StatsService{store: store, cache: cache, ttl: ttl, hooks: hooks}
}

type CustomerDashboard struct {
	NextTrip      *models.BookingWithPackage `json:"nextTrip"`
	TotalBookings int64                      `json:"totalBookings"`
	TotalPaid     float64                    `json:"totalPaid"`
}

func (s *StatsService) CustomerDashboard(ctx context.Context, email string) (*CustomerDashboard, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	today := s.hooks.now().Format(dateLayout)

	out := &CustomerDashboard{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		next, err := s.nextTrip(gctx, email, today)
		out.NextTrip = next
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountBookings(gctx, email)
		out.TotalBookings = n
		return err
	})
	g.Go(func() error {
		total, err := s.store.SumSucceededAmount(gctx, email)
		out.TotalPaid = roundMoney(total)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Dependency(err, "failed to load dashboard")
	}
	return out, nil
}

func (s *StatsService) nextTrip(ctx context.Context, email, today string) (*models.BookingWithPackage, error) {
	booking, err := s.store.NextPaidBooking(ctx, email, today)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	trip := &models.BookingWithPackage{Booking: booking}
	pkg, err := s.store.GetPackageByID(ctx, booking.PackageID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		trip.Package = pkg.Snapshot()
	}
	return trip, nil
}

type AdminStats struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalBookings int64   `json:"totalBookings"`
	TotalPackages int64   `json:"totalPackages"`
	TotalUsers    int64   `json:"totalUsers"`
}

// AdminStats runs the four totals concurrently. Results are cached when a
// cache is configured; cache failures fall through to the store.
func (s *StatsService) AdminStats(ctx context.Context) (*AdminStats, error) {
	if cached, ok := s.cachedAdminStats(ctx); ok {
		return cached, nil
	}

	out := &AdminStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.store.SumSucceededAmount(gctx, "")
		out.TotalRevenue = roundMoney(total)
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountBookings(gctx, "")
		out.TotalBookings = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountPackages(gctx)
		out.TotalPackages = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountUsers(gctx)
		out.TotalUsers = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Dependency(err, "failed to load admin stats")
	}

	s.storeAdminStats(ctx, out)
	return out, nil
}

func (s *StatsService) cachedAdminStats(ctx context.Context) (*AdminStats, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, adminStatsCacheKey)
	if err != nil {
		s.hooks.Logger.Warn().Err(err).Msg("admin stats cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var stats AdminStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (s *StatsService) storeAdminStats(ctx context.Context, stats *AdminStats) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, adminStatsCacheKey, raw, s.ttl); err != nil {
		s.hooks.Logger.Warn().Err(err).Msg("admin stats cache write failed")
	}
}

type MonthlyCount struct {
	Month    string `json:"month"`
	Bookings int64  `json:"bookings"`
}

// MonthlyBookings buckets the current year's bookings by their trip date.
func (s *StatsService) MonthlyBookings(ctx context.Context) ([]MonthlyCount, error) {
	counts, err := s.store.MonthlyBookingCounts(ctx, s.hooks.now().Year())
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load monthly bookings")
	}
	out := make([]MonthlyCount, 0, len(monthNames))
	for i, name := range monthNames {
		out = append(out, MonthlyCount{Month: name, Bookings: counts[i+1]})
	}
	return out, nil
}

func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
