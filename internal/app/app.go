package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/notifier"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	ServiceName = "storefront"

	processedEventTTL = 24 * time.Hour
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc

	wg sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
// Postgres is required; redis is optional and the service runs uncached when
// it cannot be reached.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.RegisterPoolMetrics(reg, pool, ServiceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	var (
		redisClient   *redis.Client
		wishlistCache service.WishlistCache
	)
	redisClient, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		logger.Warn("redis unavailable, wishlist cache disabled", slog.String("error", err.Error()))
	} else {
		wishlistCache = cache.NewWishlistCache(redisClient, cfg.WishlistCacheTTL)
	}

	kafkaMetrics := pkgkafka.NewMetrics(reg)
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), kafkaMetrics, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	events := event.NewProducer(producer, logger)

	accounts, catalog, wishlists := newServices(pool, cfg, wishlistCache, events, service.NewWishlistMetrics(reg), logger)
	jwtManager := newJWTManager(cfg)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	limiter := middleware.NewRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst, logger)

	router := handler.NewRouter(accounts, catalog, wishlists, jwtManager.Validator(), healthHandler, handler.RouterConfig{
		ServiceName:          ServiceName,
		CORS:                 cfg.CORS(),
		PublicWishlistLookup: cfg.WishlistPublicLookup,
		PublicRateLimiter:    limiter,
		CatalogCacheMaxAge:   cfg.CatalogCacheMaxAge,
		PprofAllowedCIDRs:    cfg.PprofAllowedCIDRs,
		Metrics:              middleware.NewHTTPMetrics(reg),
		MetricsHandler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, logger)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		limiter:  limiter,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadTimeout:       cfg.HTTPReadTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
		tracerShutdown: tracerShutdown,
	}

	if cfg.NotifierEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		opts := []pkgkafka.ConsumerOption{
			pkgkafka.WithDeadLetterer(a.dlq),
			pkgkafka.WithConsumerMetrics(kafkaMetrics),
		}
		if redisClient != nil {
			opts = append(opts, pkgkafka.WithIdempotencyStore(cache.NewEventStore(redisClient, processedEventTTL)))
		} else {
			opts = append(opts, pkgkafka.WithIdempotencyStore(pkgkafka.NewMemoryIdempotencyStore(processedEventTTL)))
		}
		a.consumer = notifier.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
		}, notifier.NewHandler(newMailer(cfg, reg, logger), logger), logger, opts...)
	}

	return a, nil
}

// newMailer relays through the configured webhook, or logs mail when none is
// set.
func newMailer(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) notifier.Mailer {
	if cfg.NotifierWebhookURL == "" {
		return notifier.NewLogMailer(logger)
	}
	client := httpclient.NewBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultBreakerConfig("mail-relay"),
		httpclient.NewBreakerMetrics(reg),
		logger,
	)
	logger.Info("mail relay configured", slog.String("url", cfg.NotifierWebhookURL))
	return notifier.NewWebhookMailer(client, cfg.NotifierWebhookURL)
}

// openDatabase connects to postgres, applies pending migrations and enables
// slow query logging.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if threshold := cfg.SlowQuery(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, logger)
	}
	return pool, nil
}

func newJWTManager(cfg *config.Config) *auth.JWTManager {
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry, cfg.PasswordResetTTL)
}

// newServices builds the account and wishlist services over one transaction
// manager so that registration provisions the wishlist atomically.
func newServices(
	pool *pgxpool.Pool,
	cfg *config.Config,
	wishlistCache service.WishlistCache,
	events event.Publisher,
	metrics *service.WishlistMetrics,
	logger *slog.Logger,
) (*service.AccountService, *service.CatalogService, *service.WishlistService) {
	txm := database.NewTxManager(pool)
	users := postgres.NewUserRepository(pool)
	products := postgres.NewProductRepository(pool)
	wishlistRepo := postgres.NewWishlistRepository(pool)

	catalog := service.NewCatalogService(
		txm,
		postgres.NewCategoryRepository(pool),
		products,
		wishlistRepo,
		wishlistCache,
		logger,
	)
	wishlists := service.NewWishlistService(
		txm,
		wishlistRepo,
		products,
		users,
		wishlistCache,
		events,
		metrics,
		logger,
	)
	accounts := service.NewAccountService(
		txm,
		users,
		postgres.NewRefreshTokenRepository(pool),
		wishlists,
		newJWTManager(cfg),
		auth.NewPasswordHasher(cfg.BcryptCost, cfg.MinPasswordLength),
		events,
		cfg.PasswordResetURL,
		logger,
	)
	return accounts, catalog, wishlists
}

// Run starts the HTTP server and the notifier consumer and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.limiter.Run(ctx)
	}()

	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.logger.Info("starting notifier consumer",
				slog.String("group", a.cfg.KafkaConsumerGroup),
				slog.Any("topics", notifier.Topics()),
			)
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("notifier consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		cancel()
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans of drained requests)
// 3. Notifier consumer, dead-letter writer and Kafka producer
// 4. Redis
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("notifier consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.wg.Wait()
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// Migrate applies pending migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

// CreateAdmin registers an administrator account together with its wishlist.
// No events are published.
func CreateAdmin(ctx context.Context, cfg *config.Config, logger *slog.Logger, email, password string) (string, error) {
	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer pool.Close()

	accounts, _, _ := newServices(pool, cfg, nil, event.Discard{}, nil, logger)
	user, err := accounts.CreateAdmin(ctx, email, password)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
