package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cassiomorais/expresscheckout/internal/config"
	"github.com/cassiomorais/expresscheckout/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/expresscheckout/internal/infrastructure/redis"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/cassiomorais/expresscheckout/internal/repository/postgres"
	"github.com/cassiomorais/expresscheckout/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: serviceName,
		Output:  os.Stdout,
	}).With().Str("instance", cfg.InstanceID).Logger()
	logger.Info().Str("gateway_environment", cfg.Gateway.Environment).Msg("Starting")

	tracer, err := observability.InitTracer(observability.TracingConfig{
		ServiceName:    serviceName,
		InstanceID:     cfg.InstanceID,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		Enabled:        cfg.Observability.EnableTracing,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	if cfg.Observability.EnableTracing {
		logger.Info().Str("endpoint", cfg.Observability.JaegerEndpoint).Msg("Tracing enabled")
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)

	pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
		Tracer:  tracer,
	}, nil
}

// Gateway builds the configured payment gateway behind a circuit breaker,
// with every call measured.
func (a *App) Gateway() (providers.Provider, error) {
	gc := a.Config.Gateway
	breaker, err := providers.New(providers.Config{
		Credentials: providers.Credentials{
			Login:       gc.Login,
			Password:    gc.Password,
			Signature:   gc.Signature,
			Environment: providers.Environment(gc.Environment),
		},
		Timeout:     gc.Timeout,
		Endpoint:    gc.Endpoint,
		RedirectURL: gc.RedirectURL,
		Breaker: providers.BreakerSettings{
			MaxRequests:   1,
			Timeout:       gc.CircuitBreakerTimeout,
			MinRequests:   gc.CircuitBreakerMinRequests,
			FailureRatio:  gc.CircuitBreakerFailureRatio,
			OnStateChange: a.Metrics.BreakerStateChanged,
		},
		MockLatency: gc.MockLatency,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	return providers.NewInstrumented(breaker, a.Metrics), nil
}

// Services holds the application services shared by the HTTP API.
type Services struct {
	Checkout *service.CheckoutService
	Payments *service.PaymentService
	Authz    *service.AuthzService
}

func (a *App) Services() (*Services, error) {
	gateway, err := a.Gateway()
	if err != nil {
		return nil, fmt.Errorf("configure gateway: %w", err)
	}

	paymentRepo := postgres.NewPaymentRepository(a.Pool)
	orderRepo := postgres.NewOrderRepository(a.Pool)
	outboxRepo := postgres.NewOutboxRepository(a.Pool)
	txManager := postgres.NewTxManager(a.Pool)
	locker := infraRedis.NewLocker(a.Redis)

	payments := service.NewPaymentService(paymentRepo, outboxRepo, txManager, gateway, locker, a.Metrics, a.Logger,
		service.PaymentServiceConfig{
			ButtonSource:  a.Config.Gateway.ButtonSource,
			RefundLockTTL: a.Config.Refund.LockTTL,
		})
	checkout := service.NewCheckoutService(orderRepo, paymentRepo, txManager, gateway, payments, a.Metrics, a.Logger,
		service.CheckoutURLs{
			ReturnURL: a.Config.Gateway.ReturnURL,
			CancelURL: a.Config.Gateway.CancelURL,
		})

	return &Services{
		Checkout: checkout,
		Payments: payments,
		Authz:    service.NewAuthzService(a.Config.Auth.OperatorRoles...),
	}, nil
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Tracer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("tracer shutdown")
	}
	a.Redis.Close()
	a.Pool.Close()
}
