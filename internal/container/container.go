package container

import (
	"context"
	"fmt"

	"github.com/joshua-takyi/tourbook/internal/cache"
	"github.com/joshua-takyi/tourbook/internal/config"
	"github.com/joshua-takyi/tourbook/internal/connect"
	"github.com/joshua-takyi/tourbook/internal/events"
	"github.com/joshua-takyi/tourbook/internal/helpers"
	"github.com/joshua-takyi/tourbook/internal/metrics"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/payments"
	"github.com/joshua-takyi/tourbook/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Verifier helpers.TokenVerifier

	MongoDBClient *mongo.Client
	Repo          *models.MongodbRepo

	UserService    *services.UserService
	PackageService *services.PackageService
	BookingService *services.BookingService
	ReviewService  *services.ReviewService
	PaymentService *services.PaymentService
	StatsService   *services.StatsService

	closers []func() error
}

// Clients are the connections the services run on. Optional clients may be
// nil and disable their feature.
type Clients struct {
	Mongo     *mongo.Client
	Cache     *cache.RedisCache
	Publisher *events.Publisher
	Gateway   *payments.StripeGateway
	Uploader  *helpers.CloudinaryUploader
	Verifier  helpers.TokenVerifier
}

// NewContainer connects every configured backend and wires the services.
func NewContainer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	var (
		clients Clients
		closers []func() error
	)
	fail := func(err error) (*Container, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	mongoClient, err := connect.MongoDBConnect(ctx, cfg.MongoURI())
	if err != nil {
		return fail(err)
	}
	clients.Mongo = mongoClient
	closers = append(closers, func() error { return connect.MongoDBDisconnect(mongoClient) })
	logger.Info().Str("db", cfg.DBName).Msg("Connected to MongoDB successfully")

	if cfg.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		clients.Cache = rc
		closers = append(closers, rc.Close)
		logger.Info().Msg("Connected to Redis successfully")
	} else {
		logger.Warn().Msg("REDIS_URL not set: webhook de-duplication and stats caching disabled")
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fail(err)
		}
		clients.Publisher = pub
		closers = append(closers, pub.Close)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("Connected to RabbitMQ successfully")
	}

	if cfg.StripeSecretKey != "" {
		gw, err := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		if err != nil {
			return fail(err)
		}
		clients.Gateway = gw
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set: payment endpoints will fail")
	}

	if cfg.CloudinaryEnabled() {
		cld, err := connect.CloudinaryCredentials(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return fail(err)
		}
		clients.Uploader = helpers.NewCloudinaryUploader(cld, helpers.PackagesFolder)
	}

	switch cfg.AuthProvider {
	case config.AuthProviderSupabase:
		supa, err := connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return fail(err)
		}
		clients.Verifier = helpers.NewSupabaseVerifier(supa)
	default:
		jwks, err := helpers.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience)
		if err != nil {
			return fail(err)
		}
		clients.Verifier = jwks
		closers = append(closers, func() error { jwks.Close(); return nil })
	}

	c := Build(cfg, logger, clients)
	c.closers = closers
	return c, nil
}

// Build wires services over already connected clients.
func Build(cfg *config.Config, logger zerolog.Logger, clients Clients) *Container {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hooks := services.Hooks{Logger: logger, Metrics: m}
	if clients.Publisher != nil {
		hooks.Publisher = clients.Publisher
	}
	var kv services.Cache
	if clients.Cache != nil {
		kv = clients.Cache
		hooks.Cache = kv
	}
	var gateway services.PaymentGateway
	if clients.Gateway != nil {
		gateway = clients.Gateway
	}
	var uploader services.ImageUploader
	if clients.Uploader != nil {
		uploader = clients.Uploader
	}

	repo := models.MongodbNewRepo(clients.Mongo, cfg.DBName, cfg.MongoDBTransactions)
	agg := services.NewAggregateUpdater(repo, repo)
	seq := services.NewSequenceGenerator(repo)
	bookingService := services.NewBookingService(repo, seq, agg, hooks)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Registry:      registry,
		Metrics:       m,
		Verifier:      clients.Verifier,
		MongoDBClient: clients.Mongo,
		Repo:          repo,

		UserService:    services.NewUserService(repo, hooks),
		PackageService: services.NewPackageService(repo, uploader, hooks),
		BookingService: bookingService,
		ReviewService:  services.NewReviewService(repo, agg, hooks),
		PaymentService: services.NewPaymentService(repo, gateway, bookingService, kv, services.PaymentConfig{
			Currency:         cfg.PaymentCurrency,
			RefundViaGateway: cfg.RefundViaGateway,
			IdempotencyTTL:   cfg.IdempotencyTTL,
		}, hooks),
		StatsService: services.NewStatsService(repo, kv, cfg.StatsCacheTTL, hooks),
	}
}

// EnsureIndexes creates the collection indexes the repositories rely on.
func (c *Container) EnsureIndexes(ctx context.Context) error {
	if err := c.Repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensuring indexes: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (c *Container) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	c.closers = nil
	return err
}
