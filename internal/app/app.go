package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/EcommerceGo/authgateway/internal/cipher"
	"github.com/utafrali/EcommerceGo/authgateway/internal/config"
	"github.com/utafrali/EcommerceGo/authgateway/internal/event"
	"github.com/utafrali/EcommerceGo/authgateway/internal/gateway"
	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	"github.com/utafrali/EcommerceGo/authgateway/internal/handler"
	"github.com/utafrali/EcommerceGo/authgateway/internal/headers"
	"github.com/utafrali/EcommerceGo/authgateway/internal/identity"
	gwmiddleware "github.com/utafrali/EcommerceGo/authgateway/internal/middleware"
	"github.com/utafrali/EcommerceGo/authgateway/internal/peer"
	"github.com/utafrali/EcommerceGo/authgateway/internal/proxy"
	"github.com/utafrali/EcommerceGo/authgateway/internal/service"
	"github.com/utafrali/EcommerceGo/authgateway/internal/session"
	"github.com/utafrali/EcommerceGo/authgateway/internal/signature"
	"github.com/utafrali/EcommerceGo/authgateway/internal/token"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/database"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/health"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
	pkgkafka "github.com/utafrali/EcommerceGo/authgateway/pkg/kafka"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/tracing"
)

const serviceName = "auth-gateway"

// App wires together all dependencies and runs the auth gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redis          *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stop           context.CancelFunc
}

// NewApp creates a new application instance, connecting to the session
// store, the identity database and Kafka, and building the router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Session store.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Identity source.
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}
	if err := prometheus.Register(database.NewPoolStatsCollector(pool, rdb)); err != nil {
		logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
	}

	// Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Source:       serviceName,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Crypto collaborators.
	payloadCipher, err := cipher.New(cfg.CipherKey, cfg.CipherIV)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	tokens := token.NewService(token.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	// Build the dependency graph.
	sessions := session.NewStore(rdb)
	users := identity.NewPostgresRepository(pool)
	events := event.NewProducer(producer, cfg.KafkaAuthTopic, cfg.KafkaPaymentTopic, logger)
	authService := service.NewAuthService(users, sessions, tokens, payloadCipher, events, service.AuthConfig{
		SessionTTL:                 cfg.SessionTTL,
		ResetTTL:                   cfg.ResetTokenTTL,
		BcryptCost:                 cfg.BcryptCost,
		MaxOTPAttempts:             cfg.OTPMaxAttempts,
		TolerateSessionWriteErrors: cfg.IsLocal(),
	}, logger)
	paymentService := service.NewPaymentService(signature.New(cfg.HMACSecret), events, logger)

	errWriter := httputil.NewErrorWriter(logger, cfg.IsLocal())
	dispatcher := guard.NewDispatcher(guard.Config{
		Tokens:            tokens,
		Sessions:          sessions,
		Cipher:            payloadCipher,
		SharedSecret:      cfg.SharedSecret,
		LookupTimeout:     cfg.SessionLookupTimeout,
		SkipSignedPayload: cfg.IsLocal(),
		Logger:            logger,
	})
	stageOpts := []headers.Option{}
	if cfg.IsLocal() {
		stageOpts = append(stageOpts, headers.WithPayloadOptional())
	}
	gw := gateway.New(dispatcher, headers.NewStage(stageOpts...), errWriter)

	serviceProxy := proxy.NewServiceProxy(map[string]string{
		handler.BackendCatalog:  cfg.CatalogServiceURL,
		handler.BackendOrder:    cfg.OrderServiceURL,
		handler.BackendSettings: cfg.SettingsServiceURL,
		handler.BackendAdmin:    cfg.AdminServiceURL,
	}, cfg.ProxyTimeout, errWriter, logger)

	// Health checks.
	healthHandler := health.NewHandler(3 * time.Second)
	healthHandler.Register("redis", sessions.Ping)
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// Peer sync is optional; a nil syncer answers 503.
	var syncer handler.PeerSyncer
	if cfg.PeerEnabled() {
		peerHTTP := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.Config{
				Timeout:         cfg.PeerTimeout,
				MaxRetries:      2,
				RetryWaitMin:    200 * time.Millisecond,
				RetryWaitMax:    2 * time.Second,
				MaxConnsPerHost: 10,
			}),
			httpclient.CircuitBreakerConfig{
				Name:         "peer-sync",
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				FailureRatio: 0.5,
				MinRequests:  5,
			},
			logger,
		)
		syncer = peer.NewClient(peerHTTP, peer.Config{
			BaseURL:      cfg.PeerBaseURL,
			CipherKey:    cfg.PeerCipherKey,
			CipherIV:     cfg.PeerCipherIV,
			SharedSecret: cfg.PeerSharedSecret,
		}, logger)
		logger.Info("peer sync enabled", slog.String("peer", cfg.PeerBaseURL))
	}

	clientIPs, err := gwmiddleware.NewClientIPResolver(cfg.TrustedProxyCIDRs)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("init client ip resolver: %w", err)
	}

	// HTTP router.
	runCtx, stop := context.WithCancel(context.Background())
	router := handler.NewRouter(runCtx, handler.RouterDeps{
		Config:   cfg,
		Guard:    dispatcher,
		Gateway:  gw,
		Auth:     handler.NewAuthHandler(authService, errWriter, logger),
		Payments: handler.NewPaymentHandler(paymentService, errWriter),
		Sync:     handler.NewSyncHandler(syncer, errWriter),
		Proxy:    serviceProxy,
		Health:   healthHandler,
		Errors:   errWriter,
		Logger:   logger,

		ClientIPs: clientIPs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProxyTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		redis:          rdb,
		pool:           pool,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		stop:           stop,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stop()

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Flush and close the Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close the session store and the identity pool.
	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
