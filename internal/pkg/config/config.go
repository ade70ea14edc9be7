// internal/pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequiredConfig marks a required value that was not provided.
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// Storage drivers for the case journal and preferences.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Backend  BackendConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Asynq    AsynqConfig
	AWS      AWSConfig
	Uploads  UploadConfig
	Security SecurityConfig
	Session  SessionConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
	LogShipping LogShippingConfig
}

// LogShippingConfig holds the optional Elasticsearch log sink settings
type LogShippingConfig struct {
	URL           string
	Index         string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
	EnableMetrics   bool
}

// BackendConfig points at the inventory and RAG backend
type BackendConfig struct {
	BaseURL      string
	Timeout      time.Duration
	InventoryTTL time.Duration // cache lifetime of inventory snapshots, 0 disables
	MaxIdleConns int
	GetRetries   int
}

// StorageConfig selects the key-value store behind cases and preferences
type StorageConfig struct {
	Driver    string // memory, redis, postgres
	KeyPrefix string
	MemoryTTL time.Duration
}

// DatabaseConfig holds database configuration for the postgres store
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	MaxConnLifetime    time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
	AutoMigrate        bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	RetryMax        int
	ShutdownTimeout time.Duration
	CleanupCron     string
	MetricsAddr     string
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string // empty disables document archiving
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool
	SecretsName     string // optional Secrets Manager secret overlaying passwords
}

// UploadConfig holds document upload limits
type UploadConfig struct {
	MaxSizeMB         int
	TempDir           string
	ProcessingTimeout time.Duration
	RetainFor         time.Duration
	JobStatusTTL      time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// SessionConfig controls the browser session cookie
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	IdleTTL    time.Duration
	Secure     bool
}

// Load loads configuration from environment variables, an optional .env file
// and an optional config file named by CONFIG_FILE.
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded")
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logger.Info("config file loaded", slog.String("file", file))
	}

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "medboard"),
			Environment: env,
			Version:     getEnv("APP_VERSION", "dev"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
			Debug:       getBoolEnv("APP_DEBUG", env == "development"),
			LogShipping: LogShippingConfig{
				URL:           getEnv("ELK_URL", ""),
				Index:         getEnv("ELK_INDEX", "medboard-logs"),
				Username:      getEnv("ELK_USERNAME", ""),
				Password:      getEnv("ELK_PASSWORD", ""),
				BatchSize:     getIntEnv("ELK_BATCH_SIZE", 100),
				FlushInterval: getDurationEnv("ELK_FLUSH_INTERVAL", 5*time.Second),
			},
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:  getIntEnv("SERVER_MAX_HEADER_BYTES", 1<<20),
			GracefulTimeout: getDurationEnv("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			EnableMetrics:   getBoolEnv("ENABLE_METRICS", true),
		},
		Backend: BackendConfig{
			BaseURL:      strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000"), "/"),
			Timeout:      getDurationEnv("BACKEND_TIMEOUT", 30*time.Second),
			InventoryTTL: getDurationEnv("BACKEND_INVENTORY_TTL", 30*time.Second),
			MaxIdleConns: getIntEnv("BACKEND_MAX_IDLE_CONNS", 20),
			GetRetries:   getIntEnv("BACKEND_GET_RETRIES", 2),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
			KeyPrefix: getEnv("STORAGE_KEY_PREFIX", "medboard"),
			MemoryTTL: getDurationEnv("STORAGE_MEMORY_TTL", 0),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "medboard"),
			Password:           getEnv("DB_PASSWORD", "medboard_dev"),
			Name:               getEnv("DB_NAME", "medboard"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:     getIntEnv("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getIntEnv("DB_MAX_IDLE_CONNECTIONS", 5),
			MaxConnLifetime:    getDurationEnv("DB_CONNECTION_LIFETIME", time.Hour),
			ConnectTimeout:     getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
			EnableQueryLogging: getBoolEnv("DB_QUERY_LOGGING", false),
			AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:         redisHost,
			Port:         redisPort,
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			MaxRetries:   getIntEnv("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			TTL:          getDurationEnv("REDIS_TTL", time.Hour),
		},
		Asynq: AsynqConfig{
			RedisAddr:       fmt.Sprintf("%s:%s", redisHost, redisPort),
			RedisPassword:   getEnv("REDIS_PASSWORD", ""),
			RedisDB:         getIntEnv("ASYNQ_REDIS_DB", 1),
			Concurrency:     getIntEnv("ASYNQ_CONCURRENCY", 5),
			Queues:          parseQueues(getEnv("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:  getBoolEnv("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:        getIntEnv("ASYNQ_RETRY_MAX", 3),
			ShutdownTimeout: getDurationEnv("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			CleanupCron:     getEnv("ASYNQ_CLEANUP_CRON", "@every 1h"),
			MetricsAddr:     getEnv("WORKER_METRICS_ADDR", ":9091"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			S3Endpoint:      getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getBoolEnv("AWS_S3_PATH_STYLE", env == "development"),
			SecretsName:     getEnv("AWS_SECRETS_NAME", ""),
		},
		Uploads: UploadConfig{
			MaxSizeMB:         getIntEnv("UPLOAD_MAX_SIZE_MB", 16),
			TempDir:           getEnv("UPLOAD_TEMP_DIR", os.TempDir()),
			ProcessingTimeout: getDurationEnv("UPLOAD_PROCESSING_TIMEOUT", 5*time.Minute),
			RetainFor:         getDurationEnv("UPLOAD_RETAIN_FOR", 24*time.Hour),
			JobStatusTTL:      getDurationEnv("UPLOAD_JOB_STATUS_TTL", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: getDurationEnv("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    getSliceEnv("ALLOWED_ORIGINS", []string{"*"}),
			SecureHeaders:     getBoolEnv("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   getEnv("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE", "medboard_client"),
			TTL:        getDurationEnv("SESSION_TTL", 30*24*time.Hour),
			IdleTTL:    getDurationEnv("SESSION_IDLE_TTL", 2*time.Hour),
			Secure:     getBoolEnv("SESSION_SECURE", env == "production"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.IsProduction() {
		if err := (&ProductionValidator{}).Validate(cfg); err != nil {
			return nil, fmt.Errorf("production configuration invalid: %w", err)
		}
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port", ErrMissingRequiredConfig)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("%w: backend url", ErrMissingRequiredConfig)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.Backend.GetRetries < 0 {
		return fmt.Errorf("backend get retries cannot be negative")
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("%w: database host and name for postgres storage", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Uploads.MaxSizeMB <= 0 {
		return fmt.Errorf("upload max size must be positive")
	}
	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns host:port for the Redis server
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxSizeMB) << 20
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// Helper functions. Values come from the environment or the optional config file.

func lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := lookup(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range strings.Split(queuesStr, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			continue
		}
		priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err == nil {
			queues[strings.TrimSpace(parts[0])] = priority
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
