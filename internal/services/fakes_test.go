package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/payments"
)

type fakeGateway struct {
	mu         sync.Mutex
	intents    map[string]*payments.Intent
	created    []payments.IntentParams
	keys       []string
	refunds    []string
	createErrs []error
	refundErrs []error
	event      *payments.WebhookEvent
	webhookErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*payments.Intent{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = append(g.keys, p.IdempotencyKey)
	if len(g.createErrs) > 0 {
		err := g.createErrs[0]
		g.createErrs = g.createErrs[1:]
		return nil, err
	}
	g.created = append(g.created, p)
	intent := &payments.Intent{ID: "pi_new", ClientSecret: "pi_new_secret", Status: "requires_payment_method", Amount: p.Amount, Currency: p.Currency, Metadata: p.Metadata}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, id string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return intent, nil
}

func (g *fakeGateway) Refund(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.refundErrs) > 0 {
		err := g.refundErrs[0]
		g.refundErrs = g.refundErrs[1:]
		return err
	}
	g.refunds = append(g.refunds, id)
	return nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.event, nil
}

func (g *fakeGateway) addIntent(id, status string, amount int64, created time.Time) {
	g.addIntentFor(id, status, amount, created, nil)
}

func (g *fakeGateway) addIntentFor(id, status string, amount int64, created time.Time, metadata map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = &payments.Intent{ID: id, Status: status, Amount: amount, Currency: "usd", Created: created, Metadata: metadata}
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return false, nil
	}
	c.entries[key] = []byte("1")
	return true, nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, ev models.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func fastBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

// harness wires every service against one memStore.
type harness struct {
	store     *memStore
	gateway   *fakeGateway
	cache     *fakeCache
	publisher *fakePublisher
	seq       *SequenceGenerator
	bookings  *BookingService
	reviews   *ReviewService
	payments  *PaymentService
	stats     *StatsService
	packages  *PackageService
	users     *UserService
}

func newHarness() *harness {
	h := &harness{
		store:     newMemStore(),
		gateway:   newFakeGateway(),
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
	}
	hooks := Hooks{Publisher: h.publisher, Cache: h.cache, Clock: func() time.Time { return fixedNow }}

	h.seq = NewSequenceGenerator(h.store)
	h.seq.newBackOff = fastBackOff
	agg := NewAggregateUpdater(h.store, h.store)
	h.bookings = NewBookingService(h.store, h.seq, agg, hooks)
	h.reviews = NewReviewService(h.store, agg, hooks)
	h.payments = NewPaymentService(h.store, h.gateway, h.bookings, h.cache, PaymentConfig{Currency: "usd"}, hooks)
	h.payments.newBackOff = fastBackOff
	h.stats = NewStatsService(h.store, h.cache, time.Minute, hooks)
	h.packages = NewPackageService(h.store, nil, hooks)
	h.users = NewUserService(h.store, hooks)
	return h
}
