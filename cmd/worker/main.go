// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/medboard/internal/adapters/backend"
	"github.com/ammerola/medboard/internal/adapters/db"
	"github.com/ammerola/medboard/internal/adapters/kv"
	redis_a "github.com/ammerola/medboard/internal/adapters/redis_adapter"
	"github.com/ammerola/medboard/internal/adapters/storage"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/logger"
	"github.com/ammerola/medboard/internal/pkg/metrics"
	"github.com/ammerola/medboard/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, logger.WithELK(elkConfig(cfg.App.LogShipping)))
	defer flushLogs(slogger)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx := context.Background()

	if cfg.AWS.SecretsName != "" {
		sm, err := config.NewAWSSecretsManager(ctx, cfg.AWS.Region, cfg.AWS.SecretsName, slogger.Logger)
		if err == nil {
			err = config.ApplySecrets(ctx, cfg, sm)
		}
		if err != nil {
			slogger.Error("failed to apply secrets", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	queueRedis, err := redis_a.NewClient(ctx, &redis.Options{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}, slogger.Logger)
	if err != nil {
		slogger.Error("failed to connect to queue redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueRedis.Close()

	purger, closeStore, err := initPurger(ctx, cfg, slogger.Logger)
	if err != nil {
		slogger.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	archive, err := initArchive(ctx, cfg, slogger.Logger)
	if err != nil {
		slogger.Error("failed to initialize document archive", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Server.EnableMetrics {
		m = metrics.New("medboard_worker")
		go serveMetrics(cfg.Asynq.MetricsAddr, m, slogger.Logger)
	}

	keys := services.Keys{Prefix: cfg.Storage.KeyPrefix}
	jobs := services.NewJobStore(kv.NewRedisStore(queueRedis, slogger.Logger), keys, cfg.Uploads.JobStatusTTL, slogger.Logger)
	client := backend.NewClient(backend.ConfigFrom(cfg.Backend), slogger.Logger).WithMetrics(m)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(slogger.Logger),
	})

	mux := asynq.NewServeMux()

	documentProcessor := workers.NewDocumentProcessor(client, archive, jobs, m, slogger.Logger)
	mux.HandleFunc(workers.TypeDocumentIngest, documentProcessor.ProcessDocument)

	cleanupProcessor := workers.NewCleanupProcessor(purger, workers.UploadDir(cfg.Uploads.TempDir),
		cfg.Uploads.RetainFor, m, slogger.Logger)
	mux.HandleFunc(workers.TypeCleanupExpired, cleanupProcessor.CleanupExpired)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: newAsynqLogger(slogger.Logger),
	})
	if _, err := scheduler.Register(cfg.Asynq.CleanupCron, workers.NewCleanupTask()); err != nil {
		slogger.Error("failed to schedule cleanup", slog.String("cron", cfg.Asynq.CleanupCron), slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			slogger.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			slogger.Error("failed to run scheduler", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.String("cleanup_cron", cfg.Asynq.CleanupCron),
		slog.Bool("s3_archive", cfg.AWS.S3Bucket != ""))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

// initPurger returns the store whose expired entries the cleanup task
// removes. Only the postgres driver needs purging.
func initPurger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.KVPurger, func(), error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		return nil, func() {}, nil
	}

	dbConfig := db.ConfigFrom(cfg.Database)
	dbConfig.MaxConnections, dbConfig.MinConnections = 4, 1
	database, err := db.NewDatabase(ctx, dbConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return kv.NewSQLStore(database.SQL(), kv.DefaultTable, logger), database.Close, nil
}

// initArchive picks S3 when a bucket is configured and a local directory
// otherwise.
func initArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.DocumentArchive, error) {
	if cfg.AWS.S3Bucket != "" {
		return storage.NewS3Archive(ctx, storage.S3ConfigFrom(cfg.AWS), logger)
	}
	return storage.NewLocalArchive(filepath.Join(cfg.Uploads.TempDir, "medboard-archive"), logger), nil
}

// serveMetrics exposes the worker's Prometheus registry on addr
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	logger.Info("serving worker metrics", slog.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", slog.String("error", err.Error()))
	}
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Second * time.Duration(1<<uint(n))
	if delay > 10*time.Minute {
		delay = 10 * time.Minute
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
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
