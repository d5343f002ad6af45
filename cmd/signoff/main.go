// Package main is the entry point for the signoff approval server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/signoff/internal/approval"
	"github.com/pitabwire/signoff/internal/catalog"
	"github.com/pitabwire/signoff/internal/config"
	"github.com/pitabwire/signoff/internal/directory"
	"github.com/pitabwire/signoff/internal/idempotency"
	"github.com/pitabwire/signoff/internal/notify"
	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/internal/openapi"
	"github.com/pitabwire/signoff/internal/transport"
	"github.com/pitabwire/signoff/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "signoff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load the requirement catalog and stakeholder directory.
	reqs, err := loadRequirements(cfg.Catalog)
	if err != nil {
		logger.Error("catalog loading failed", zap.Error(err))
		return 1
	}
	registry, err := catalog.NewRegistry(reqs)
	if err != nil {
		logger.Error("catalog validation failed", zap.Error(err))
		return 1
	}
	metrics.SetCatalogRequirements(float64(registry.Len()))

	dir, err := loadDirectory(cfg.Catalog)
	if err != nil {
		logger.Error("stakeholder directory loading failed", zap.Error(err))
		return 1
	}

	// Step 5: Initialize the workflow store.
	store, storeCloser, err := buildWorkflowStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("workflow store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize the notifier.
	notifier, notifierHealth, notifierCloser, err := buildNotifier(ctx, cfg.Notifier, logger)
	if err != nil {
		logger.Error("notifier initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Initialize the idempotency store (optional).
	idemStore, idemCloser, err := buildIdempotencyStore(ctx, cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency store initialization failed", zap.Error(err))
		return 1
	}

	// Step 8: Build the approval engine.
	engine := approval.NewEngine(registry, dir, store,
		approval.WithNotifier(notifier),
		approval.WithLogger(logger),
		approval.WithMetrics(metrics),
		approval.WithPolicy(approval.PolicyFromConfig(cfg.Engine)),
		approval.WithRequireProfiles(cfg.Engine.RequireProfiles),
		approval.WithNotifyTimeout(cfg.Engine.NotifyTimeout),
	)

	contract, err := openapi.Load()
	if err != nil {
		logger.Error("API contract load failed", zap.Error(err))
		return 1
	}

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		CatalogLoaded:   func() bool { return registry.Len() > 0 },
		DirectoryLoaded: func() bool { return len(dir.All()) > 0 },
		Notifier:        notifierHealth,
	}
	if hc, ok := store.(observability.HealthChecker); ok {
		readinessChecks.WorkflowStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Engine:         engine,
		Catalog:        registry,
		Directory:      dir,
		Contract:       contract,
		Metrics:        metrics,
		Idempotency:    idemStore,
		MetricsHandler: observability.Handler(),
		Readiness:      readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if cfg.Monitor.Enabled {
		go engine.RunDeadlineMonitor(bgCtx, cfg.Monitor.Interval)
	}
	go watchCatalogReload(bgCtx, cfg.Catalog, registry, metrics, logger)

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("requirements", registry.Len()),
		zap.Int("stakeholders", len(dir.All())),
		zap.String("store", cfg.Store.Driver),
		zap.String("notifier", cfg.Notifier.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if err := engine.Wait(shutdownCtx); err != nil {
		logger.Warn("notifications still in flight at shutdown", zap.Error(err))
	}

	if notifierCloser != nil {
		notifierCloser()
	}
	if idemCloser != nil {
		idemCloser()
	}
	if storeCloser != nil {
		storeCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// loadRequirements reads the configured catalog file, or returns the standard
// requirement set when none is configured.
func loadRequirements(cfg config.CatalogConfig) ([]model.ApprovalRequirement, error) {
	if cfg.RequirementsFile == "" {
		return catalog.Standard(time.Now().UTC()), nil
	}
	loaded, err := catalog.NewLoader(nil).LoadFile(cfg.RequirementsFile)
	if err != nil {
		return nil, err
	}
	return loaded.Requirements, nil
}

// loadDirectory reads the configured stakeholder file, or builds the standard
// directory when none is configured.
func loadDirectory(cfg config.CatalogConfig) (*directory.Directory, error) {
	if cfg.DirectoryFile == "" {
		return directory.New(directory.Standard())
	}
	return directory.LoadFile(cfg.DirectoryFile)
}

// buildWorkflowStore creates the workflow store based on config.
func buildWorkflowStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (approval.WorkflowStore, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory workflow store")
		return approval.NewMemoryWorkflowStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("workflow store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("workflow store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("workflow store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("workflow store: ping: %w", err)
		}

		store := approval.NewPgWorkflowStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("workflow store: schema: %w", err)
		}
		logger.Info("using postgres workflow store")
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported workflow store driver: %q", cfg.Driver)
	}
}

// buildNotifier creates the notification channel based on config. The
// returned health checker is nil for drivers without a remote dependency.
func buildNotifier(ctx context.Context, cfg config.NotifierConfig, logger *zap.Logger) (approval.Notifier, observability.HealthChecker, func(), error) {
	switch cfg.Driver {
	case "none":
		return notify.Nop{}, nil, nil, nil
	case "log", "":
		return notify.NewLogNotifier(logger), nil, nil, nil
	case "redis":
		client, err := connectRedis(ctx, cfg.AddrEnv, cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("notifier: %w", err)
		}
		closer := func() { client.Close() }
		logger.Info("using redis notifier", zap.String("channel", cfg.Channel))

		rn := notify.NewRedisNotifier(client, cfg.Channel)
		if !cfg.Breaker.Enabled {
			return rn, rn, closer, nil
		}
		b := notify.NewBreaker(rn,
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.SuccessThreshold,
			cfg.Breaker.OpenTimeout,
			notify.WithBreakerLogger(logger),
		)
		return b, b, closer, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported notifier driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config.
// Returns a nil store if idempotency is disabled.
func buildIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, logger *zap.Logger) (idempotency.Store, func(), error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory idempotency store")
		return idempotency.NewMemoryStore(nil), nil, nil
	case "redis":
		client, err := connectRedis(ctx, cfg.AddrEnv, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("idempotency store: %w", err)
		}
		logger.Info("using redis idempotency store")
		return idempotency.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported idempotency driver: %q", cfg.Driver)
	}
}

// connectRedis dials the Redis address held in addrEnv and pings it.
func connectRedis(ctx context.Context, addrEnv string, db int) (*redis.Client, error) {
	addr := os.Getenv(addrEnv)
	if addr == "" {
		return nil, fmt.Errorf("%s environment variable not set", addrEnv)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	return client, nil
}

// watchCatalogReload swaps the requirement catalog on SIGHUP. Workflows
// already created keep their own requirement copy.
func watchCatalogReload(ctx context.Context, cfg config.CatalogConfig, registry *catalog.Registry, metrics *observability.Metrics, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reqs, err := loadRequirements(cfg)
			if err == nil {
				err = registry.Replace(reqs)
			}
			if err != nil {
				logger.Error("catalog reload failed, keeping previous catalog", zap.Error(err))
				continue
			}
			metrics.SetCatalogRequirements(float64(registry.Len()))
			logger.Info("catalog reloaded",
				zap.Int("requirements", registry.Len()),
				zap.String("checksum", registry.Checksum()),
			)
		}
	}
}
