// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeySessionID ContextKey = "session_id"
	ContextKeyClientIP  ContextKey = "client_ip"
	ContextKeyMethod    ContextKey = "method"
	ContextKeyPath      ContextKey = "path"
	ContextKeyJobID     ContextKey = "job_id"
	ContextKeyQueryType ContextKey = "query_type"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level          string
	Format         string
	Output         string
	AddSource      bool
	Environment    string
	ServiceName    string
	ServiceVersion string
	// Redact lists extra attribute keys masked in addition to the defaults.
	Redact []string
	// ELK enables shipping to Elasticsearch when its URL is set.
	ELK *ELKConfig
}

// Option adjusts the config built by SetupLogger
type Option func(*LogConfig)

// WithELK ships logs to Elasticsearch in addition to the local output
func WithELK(cfg ELKConfig) Option {
	return func(c *LogConfig) {
		c.ELK = &cfg
	}
}

// Logger wraps slog.Logger with context extraction
type Logger struct {
	*slog.Logger
	config *LogConfig
	sink   *ELKSink
}

var defaultLogger *Logger

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, format string, opts ...Option) *Logger {
	config := &LogConfig{
		Level:          level,
		Format:         format,
		Output:         "stdout",
		AddSource:      level == "debug",
		ServiceName:    os.Getenv("SERVICE_NAME"),
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Environment:    os.Getenv("APP_ENV"),
	}
	for _, opt := range opts {
		opt(config)
	}
	l := NewLogger(config)
	defaultLogger = l
	slog.SetDefault(l.Logger)
	return l
}

// NewLogger creates a logger from config
func NewLogger(config *LogConfig) *Logger {
	if config == nil {
		config = &LogConfig{Level: "info", Format: "json", Output: "stdout"}
	}
	var sink *ELKSink
	if config.ELK != nil && config.ELK.URL != "" {
		sink = NewELKSink(*config.ELK)
	}
	return &Logger{
		Logger: slog.New(buildHandler(getWriter(config.Output), config, sink)),
		config: config,
		sink:   sink,
	}
}

// Close flushes logs still waiting to be shipped
func (l *Logger) Close(ctx context.Context) error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close(ctx)
}

// NewHandler assembles the handler chain: format handler, context enrichment
// and redaction, plus the static service attributes.
func NewHandler(w io.Writer, config *LogConfig) slog.Handler {
	return buildHandler(w, config, nil)
}

// buildHandler is NewHandler with an optional sink. The sink sits below the
// redaction and context handlers so shipped entries are already sanitized.
func buildHandler(w io.Writer, config *LogConfig, sink *ELKSink) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return replaceAttr(config, groups, a)
		},
	}

	var h slog.Handler
	switch config.Format {
	case "text":
		h = NewPrettyTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	if sink != nil {
		h = NewELKHandler(h, sink)
	}
	h = NewContextHandler(h)
	h = NewSanitizationHandler(h, config.Redact...)

	var attrs []slog.Attr
	if config.ServiceName != "" {
		attrs = append(attrs, slog.String("service", config.ServiceName))
	}
	if config.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", config.ServiceVersion))
	}
	if config.Environment != "" {
		attrs = append(attrs, slog.String("env", config.Environment))
	}
	if len(attrs) > 0 {
		h = h.WithAttrs(attrs)
	}
	return h
}

// WithContext returns a logger carrying the request-scoped values in ctx
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if attrs := extractContextAttrs(ctx); len(attrs) > 0 {
		args := make([]any, len(attrs))
		for i, a := range attrs {
			args[i] = a
		}
		return l.Logger.With(args...)
	}
	return l.Logger
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getWriter(output string) io.Writer {
	switch {
	case output == "stderr":
		return os.Stderr
	case strings.HasPrefix(output, "file:"):
		file, err := os.OpenFile(strings.TrimPrefix(output, "file:"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return os.Stdout
		}
		return file
	default:
		return os.Stdout
	}
}

func contextKeys() []ContextKey {
	return []ContextKey{
		ContextKeyRequestID,
		ContextKeySessionID,
		ContextKeyClientIP,
		ContextKeyMethod,
		ContextKeyPath,
		ContextKeyJobID,
		ContextKeyQueryType,
	}
}

func extractContextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys() {
		val := ctx.Value(key)
		if val == nil {
			continue
		}
		k := string(key)
		switch v := val.(type) {
		case string:
			if v != "" {
				attrs = append(attrs, slog.String(k, v))
			}
		case int64:
			attrs = append(attrs, slog.Int64(k, v))
		case uuid.UUID:
			attrs = append(attrs, slog.String(k, v.String()))
		default:
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	return attrs
}

func replaceAttr(config *LogConfig, _ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
		}
	}
	if a.Key == slog.LevelKey && config.Format != "text" {
		a.Key = "severity"
	}
	if strings.HasSuffix(a.Key, "_ms") {
		if d, ok := a.Value.Any().(time.Duration); ok {
			a.Value = slog.Int64Value(d.Milliseconds())
		}
	}
	return a
}

// GetDefault returns the process logger, creating a JSON one on first use.
func GetDefault() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

type loggerCtxKey struct{}

// FromContext extracts logger from context or returns default
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return GetDefault().WithContext(ctx)
}

// WithLogger adds logger to context
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, l)
}

// Err is the attribute used for errors across the codebase.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
