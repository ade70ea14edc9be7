// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/medboard/internal/adapters/backend"
	"github.com/ammerola/medboard/internal/adapters/db"
	"github.com/ammerola/medboard/internal/adapters/kv"
	redis_a "github.com/ammerola/medboard/internal/adapters/redis_adapter"
	"github.com/ammerola/medboard/internal/core/extract"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/handlers"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/logger"
	"github.com/ammerola/medboard/internal/pkg/metrics"
	"github.com/ammerola/medboard/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting medboard dashboard",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg.App.Version = Version

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, logger.WithELK(elkConfig(cfg.App.LogShipping)))
	defer flushLogs(slogger)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	ctx := context.Background()

	if cfg.AWS.SecretsName != "" {
		sm, err := config.NewAWSSecretsManager(ctx, cfg.AWS.Region, cfg.AWS.SecretsName, slogger.Logger)
		if err != nil {
			slogger.Error("failed to create secrets manager", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := config.ApplySecrets(ctx, cfg, sm); err != nil {
			slogger.Error("failed to apply secrets", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger.Logger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	server := setupHTTPServer(cfg, deps, slogger.Logger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database    *db.Database
	redisClient *redis.Client
	queueRedis  *redis.Client
	store       ports.KVStore
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
	metrics     *metrics.Metrics
	sessions    *handlers.SessionRegistry
	routes      *handlers.Routes
}

func (d *dependencies) cleanup() {
	if d.sessions != nil {
		d.sessions.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.inspector != nil {
		d.inspector.Close()
	}
	if d.queueRedis != nil {
		d.queueRedis.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			deps.cleanup()
		}
	}()

	if cfg.Server.EnableMetrics {
		deps.metrics = metrics.New("medboard")
	}

	logger.Info("connecting to Redis", slog.String("addr", cfg.GetRedisAddress()))
	deps.redisClient, err = redis_a.NewClient(ctx, &redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := initializeStore(ctx, cfg, deps, logger); err != nil {
		return nil, err
	}

	// Job status lives next to the task queue so the worker can update it
	// whatever the storage driver is.
	deps.queueRedis, err = redis_a.NewClient(ctx, &redis.Options{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}, logger)
	if err != nil {
		return nil, err
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.inspector = asynq.NewInspector(asynqRedisOpt)

	keys := services.Keys{Prefix: cfg.Storage.KeyPrefix}
	cache := redis_a.NewCache(deps.redisClient, cfg.Redis.TTL, cfg.Storage.KeyPrefix, logger)
	client := backend.NewClient(backend.ConfigFrom(cfg.Backend), logger).WithMetrics(deps.metrics)

	inventory := services.NewInventoryService(client, cache, cfg.Backend.InventoryTTL, logger)
	cases := services.NewCaseStore(deps.store, keys, logger)
	prefs := services.NewPreferenceStore(deps.store, keys, logger)
	jobs := services.NewJobStore(kv.NewRedisStore(deps.queueRedis, logger), keys, cfg.Uploads.JobStatusTTL, logger)

	extractor := extract.New()
	extractors := services.Extractors{Diseases: extractor, Recovery: extractor, Resources: extractor}
	deps.sessions = handlers.NewSessionRegistry(cfg.Session.IdleTTL, func(id string) *handlers.Session {
		return &handlers.Session{
			Inventory: services.NewInventoryController(),
			Queries: services.NewQueryController(id, client, cases, extractors, logger,
				services.WithQueryTimeout(cfg.Backend.Timeout)),
		}
	}, deps.metrics, logger)

	renderer, err := handlers.NewRenderer(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	healthOpts := []handlers.HealthOption{
		handlers.WithStorage(deps.store),
		handlers.WithRedis(deps.redisClient),
		handlers.WithQueue(deps.inspector),
	}
	if deps.database != nil {
		healthOpts = append(healthOpts, handlers.WithDatabase(deps.database))
	}

	deps.routes = &handlers.Routes{
		Pages:       handlers.NewPageHandler(renderer, inventory, deps.sessions, prefs, cases, logger),
		Inventory:   handlers.NewInventoryHandler(inventory, deps.sessions, renderer, logger),
		Queries:     handlers.NewQueryHandler(deps.sessions, cases, renderer, deps.metrics, logger),
		Preferences: handlers.NewPreferencesHandler(prefs, logger),
		Documents: handlers.NewDocumentHandler(jobs, deps.asynqClient, client,
			cfg.MaxUploadBytes(), workers.UploadDir(cfg.Uploads.TempDir), logger).
			WithTaskOptions(asynq.MaxRetry(cfg.Asynq.RetryMax), asynq.Timeout(cfg.Uploads.ProcessingTimeout)),
		Health: handlers.NewHealthHandler(cfg.App, logger, healthOpts...),
	}
	if deps.metrics != nil {
		deps.routes.Metrics = deps.metrics.Handler()
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initializeStore opens the key-value store selected by the storage driver
func initializeStore(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) error {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		deps.store = kv.NewRedisStore(deps.redisClient, logger)
	case config.StoragePostgres:
		logger.Info("connecting to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Name),
		)
		database, err := db.NewDatabase(ctx, db.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.database = database

		if cfg.Database.AutoMigrate {
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		deps.store = kv.NewSQLStore(database.SQL(), kv.DefaultTable, logger)
	default:
		deps.store = kv.NewMemoryStore(time.Minute, logger)
	}
	return nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        deps.routes.Handler(cfg, deps.metrics, logger),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL:      cfg.GetDatabaseURL(),
		TableName:        "schema_migrations",
		SchemaName:       "public",
		StatementTimeout: time.Minute,
	}, logger, 3)
}

// elkConfig maps the log shipping settings onto the logger's sink config
func elkConfig(c config.LogShippingConfig) logger.ELKConfig {
	return logger.ELKConfig{
		URL:           c.URL,
		Index:         c.Index,
		Username:      c.Username,
		Password:      c.Password,
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
	}
}

func flushLogs(l *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
