// internal/handlers/health.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/medboard/internal/adapters/db"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/config"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// HealthHandler reports the state of the API's dependencies. Every
// dependency is optional; absent ones are not reported.
type HealthHandler struct {
	base
	app       config.AppConfig
	storage   ports.KVStore
	database  *db.Database
	redis     *redis.Client
	inspector *asynq.Inspector
	startTime time.Time
}

// HealthOption attaches a dependency to the health report
type HealthOption func(*HealthHandler)

// WithStorage reports the case and preference store
func WithStorage(kv ports.KVStore) HealthOption {
	return func(h *HealthHandler) { h.storage = kv }
}

// WithDatabase reports the Postgres pool
func WithDatabase(database *db.Database) HealthOption {
	return func(h *HealthHandler) { h.database = database }
}

// WithRedis reports the Redis connection used for cache and queue
func WithRedis(client *redis.Client) HealthOption {
	return func(h *HealthHandler) { h.redis = client }
}

// WithQueue reports asynq queue depth
func WithQueue(inspector *asynq.Inspector) HealthOption {
	return func(h *HealthHandler) { h.inspector = inspector }
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(app config.AppConfig, logger *slog.Logger, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		base:      base{logger: logger.With(slog.String("handler", "health"))},
		app:       app,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	ResponseTime string                 `json:"response_time,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo represents process-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type dependencyCheck struct {
	name  string
	probe func(context.Context) (map[string]interface{}, error)
}

func (h *HealthHandler) checks() []dependencyCheck {
	var checks []dependencyCheck
	if h.storage != nil {
		checks = append(checks, dependencyCheck{"storage", func(ctx context.Context) (map[string]interface{}, error) {
			return nil, h.storage.Ping(ctx)
		}})
	}
	if h.database != nil {
		checks = append(checks, dependencyCheck{"database", func(ctx context.Context) (map[string]interface{}, error) {
			if err := h.database.Ping(ctx); err != nil {
				return nil, err
			}
			return h.database.Health(ctx), nil
		}})
	}
	if h.redis != nil {
		checks = append(checks, dependencyCheck{"redis", h.probeRedis})
	}
	if h.inspector != nil {
		checks = append(checks, dependencyCheck{"queue", h.probeQueue})
	}
	return checks
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      statusHealthy,
		Version:     h.app.Version,
		Environment: h.app.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    make(map[string]ServiceInfo),
		System:      systemInfo(),
	}

	for _, check := range h.checks() {
		info := h.run(ctx, check)
		health.Services[check.name] = info
		if info.Status != statusHealthy {
			health.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if health.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.respondJSON(w, status, health)
}

// Readiness handles GET /ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)
	for _, check := range h.checks() {
		if _, err := check.probe(ctx); err != nil {
			ready = false
			details[check.name] = "not ready"
			continue
		}
		details[check.name] = "ready"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.respondJSON(w, status, map[string]interface{}{
		"ready":   ready,
		"details": details,
	})
}

func (h *HealthHandler) run(ctx context.Context, check dependencyCheck) ServiceInfo {
	start := time.Now()
	details, err := check.probe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "health check failed",
			slog.String("dependency", check.name),
			slog.String("error", err.Error()))
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}
	return ServiceInfo{
		Status:       statusHealthy,
		ResponseTime: time.Since(start).String(),
		Details:      details,
	}
}

func (h *HealthHandler) probeRedis(ctx context.Context) (map[string]interface{}, error) {
	pong, err := h.redis.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	stats := h.redis.PoolStats()
	return map[string]interface{}{
		"ping":        pong,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}, nil
}

func (h *HealthHandler) probeQueue(ctx context.Context) (map[string]interface{}, error) {
	queues, err := h.inspector.Queues()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]interface{}, len(queues))
	for _, queue := range queues {
		info, err := h.inspector.GetQueueInfo(queue)
		if err != nil {
			continue
		}
		stats[queue] = map[string]interface{}{
			"pending":  info.Pending,
			"active":   info.Active,
			"retry":    info.Retry,
			"archived": info.Archived,
		}
	}

	details := map[string]interface{}{"queues": stats}
	if servers, err := h.inspector.Servers(); err == nil {
		details["workers"] = len(servers)
	}
	return details, nil
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
		NumGC:         mem.NumGC,
	}
}
