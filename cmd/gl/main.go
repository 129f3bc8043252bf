// Package main is the entry point for the general-ledger service: the
// outbox publisher, the posting/reversal consumer runners, and the
// period-close HTTP surface all run out of this one process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/ledgerflow/internal/config"
	"github.com/Haleralex/ledgerflow/internal/ledger/coa"
	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/httpapi"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/posting"
	"github.com/Haleralex/ledgerflow/internal/ledger/postgres"
	"github.com/Haleralex/ledgerflow/internal/ledger/reversal"
	"github.com/Haleralex/ledgerflow/internal/platform/consumer"
	"github.com/Haleralex/ledgerflow/internal/platform/dlq"
	"github.com/Haleralex/ledgerflow/internal/platform/eventbus"
	"github.com/Haleralex/ledgerflow/internal/platform/events"
	"github.com/Haleralex/ledgerflow/internal/platform/idempotency"
	"github.com/Haleralex/ledgerflow/internal/platform/outbox"
	"github.com/Haleralex/ledgerflow/internal/platform/tracing"
)

// Build-time variables, set with -ldflags by the release pipeline.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "./configs", "Path to config directory")
	configName := flag.String("config-name", "config", "Config file name (without extension)")
	envOnly := flag.Bool("env-only", false, "Load config only from environment variables")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ledgerflow-gl %s (build %s, commit %s)\n", version, buildTime, gitCommit)
		os.Exit(0)
	}

	var cfg *config.Config
	var err error
	if *envOnly {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath, *configName)
	}
	if err != nil {
		log.Printf("warning: failed to load config: %v", err)
		log.Printf("using development defaults")
		cfg = config.Development()
	}
	cfg.App.Version = version
	cfg.App.BuildTime = buildTime
	cfg.App.GitCommit = gitCommit

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "ledgerflow-gl",
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", slog.Any("error", err))
		}
	}()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	bus, closeBus, err := newEventBus(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build event bus: %v", err)
	}
	defer closeBus()

	accountRepo := postgres.NewAccountRepository(pool)
	periodRepo := postgres.NewPeriodRepository(pool)
	journalRepo := postgres.NewJournalRepository(pool)
	balanceRepo := postgres.NewBalanceRepository(pool)
	outboxStore := outbox.NewPostgresStore(pool)
	idemStore := idempotency.NewPostgresStore(pool)
	deadStore := dlq.NewPostgresStore(pool)

	validator := coa.NewValidator(accountRepo)
	cachedValidator, closeCache := newCachedValidator(accountRepo, cfg)
	defer closeCache()

	governance := periods.NewGovernance(periodRepo)
	closeEngine := periods.NewCloseEngine(periodRepo, deadStore)
	postingService := posting.NewService(journalRepo, balanceRepo, governance, validator)
	reversalService := reversal.NewService(journalRepo, balanceRepo, governance, outboxStore, cfg.EventBus.Producer)

	publisher := outbox.NewPublisher(pool, outboxStore, bus, outbox.DefaultPublisherConfig(), logger)
	go publisher.Run(ctx)

	readTxm := postgres.NewTxManager(pool)
	postingRunner := consumer.NewRunner(pool, bus, idemStore, deadStore, logger, consumer.Config{
		Name:           domain.ConsumerGLPosting,
		SubjectPattern: domain.DeriveSubject(domain.EventTypePostingRequested),
	}, postingHandler(readTxm, postingService, cfg.EventBus.Producer))

	reversalRunner := consumer.NewRunner(pool, bus, idemStore, deadStore, logger, consumer.Config{
		Name:           domain.ConsumerGLReversal,
		SubjectPattern: domain.DeriveSubject(domain.EventTypeReverseRequested),
	}, reversalHandler(readTxm, reversalService))

	if _, err := postingRunner.Start(ctx); err != nil {
		log.Fatalf("failed to start posting consumer: %v", err)
	}
	if _, err := reversalRunner.Start(ctx); err != nil {
		log.Fatalf("failed to start reversal consumer: %v", err)
	}

	closeTxm := postgres.NewSerializableTxManager(pool)
	periodHandler := httpapi.NewPeriodHandler(periodRepo, closeEngine, closeTxm)
	accountHandler := httpapi.NewAccountHandler(accountRepo, cachedValidator)
	healthHandler := httpapi.NewHealthHandler(pool, version)
	router := httpapi.NewRouter(&httpapi.RouterConfig{
		Logger:         logger,
		Environment:    cfg.App.Environment,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		ServiceName:    "ledgerflow-gl",
	}, periodHandler, accountHandler, healthHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting general-ledger service",
			slog.String("address", cfg.Server.Address()),
			slog.String("environment", cfg.App.Environment),
			slog.String("event_bus_backend", cfg.EventBus.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Error("server error", slog.Any("error", err))
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}
	logger.Info("general-ledger service stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.App.Debug}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolConfig.MaxConns = cfg.Database.MaxConnections
	poolConfig.MinConns = cfg.Database.MinConnections
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// newEventBus builds the configured bus backend and returns its shutdown
// func alongside it, so main can defer a single call regardless of which
// backend was chosen.
func newEventBus(cfg *config.Config, logger *slog.Logger) (eventbus.Bus, func(), error) {
	switch cfg.EventBus.Backend {
	case "nats":
		bus, err := eventbus.NewNATSBus(eventbus.NATSConfig{
			URL:       cfg.EventBus.NATSURL,
			QueueName: cfg.EventBus.Producer,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		return bus, func() { _ = bus.Close() }, nil
	default:
		bus := eventbus.NewInMemoryBus(logger)
		return bus, func() { _ = bus.Close() }, nil
	}
}

// newCachedValidator wires the Redis read-through cache used by the
// account-status HTTP surface when cfg.Cache.RedisURL is set. Posting
// never uses this: it takes the direct validator built from the same repo
// so AssertActive sees the transaction's own read consistency. Reversal
// takes no validator at all.
func newCachedValidator(repo coa.Repository, cfg *config.Config) (*coa.CachedValidator, func()) {
	if cfg.Cache.RedisURL == "" {
		return nil, func() {}
	}
	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		log.Printf("warning: invalid cache.redis_url, account-status cache disabled: %v", err)
		return nil, func() {}
	}
	client := redis.NewClient(opts)
	return coa.NewCachedValidator(repo, client), func() { _ = client.Close() }
}

// postingHandler decodes a gl.posting.requested payload and runs the
// posting service inside the runner's own transaction.
func postingHandler(txm *postgres.TxManager, svc *posting.Service, producer string) consumer.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		var req domain.PostingRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return domain.NewValidationError("payload", err.Error())
		}
		_, err := postgres.ExecuteWithResult(ctx, txm, func(txCtx context.Context) (*domain.JournalEntry, error) {
			return svc.Post(txCtx, env.TenantID, producer, env.EventID.String(), env.CorrelationID, req)
		})
		return err
	}
}

// reversalHandler decodes a gl.entry.reverse.requested payload and runs
// the reversal service inside the runner's own transaction.
func reversalHandler(txm *postgres.TxManager, svc *reversal.Service) consumer.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		var req domain.ReversalRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return domain.NewValidationError("payload", err.Error())
		}
		_, err := postgres.ExecuteWithResult(ctx, txm, func(txCtx context.Context) (*domain.JournalEntry, error) {
			return svc.Reverse(txCtx, env.TenantID, env.EventID.String(), env.CorrelationID, req, time.Now().UTC())
		})
		return err
	}
}
