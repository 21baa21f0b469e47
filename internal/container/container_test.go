package container

import (
	"testing"
	"time"

	"github.com/joshua-takyi/tourbook/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWiresServicesWithoutOptionalClients(t *testing.T) {
	cfg := &config.Config{
		DBName:          "tourbook_test",
		PaymentCurrency: "usd",
		StatsCacheTTL:   time.Minute,
		IdempotencyTTL:  time.Hour,
	}
	c := Build(cfg, zerolog.Nop(), Clients{})

	assert.NotNil(t, c.UserService)
	assert.NotNil(t, c.PackageService)
	assert.NotNil(t, c.BookingService)
	assert.NotNil(t, c.ReviewService)
	assert.NotNil(t, c.PaymentService)
	assert.NotNil(t, c.StatsService)
	assert.NotNil(t, c.Repo)

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.NoError(t, c.Close())
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	c := &Container{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return assert.AnError },
	}}
	err := c.Close()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, c.Close())
}
