package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "medboard", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, int64(16<<20), cfg.MaxUploadBytes())
	assert.Equal(t, "localhost:6379", cfg.Asynq.RedisAddr)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("BACKEND_URL", "http://rag.internal:5000/")
	t.Setenv("BACKEND_TIMEOUT", "10s")
	t.Setenv("STORAGE_DRIVER", "Redis")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ASYNQ_QUEUES", "critical:5,low:1")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "http://rag.internal:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StorageRedis, cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, map[string]int{"critical": 5, "low": 1}, cfg.Asynq.Queues)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORAGE_DRIVER", "etcd")

	_, err := Load(quietLogger())
	assert.Error(t, err)
}

func TestProductionValidator(t *testing.T) {
	base := func() *Config {
		return &Config{
			Backend:  BackendConfig{BaseURL: "https://rag.example", Timeout: time.Second},
			Storage:  StorageConfig{Driver: StorageRedis},
			Security: SecurityConfig{SecureHeaders: true, AllowedOrigins: []string{"https://app.example"}, RateLimitRequests: 1},
			Session:  SessionConfig{Secure: true},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory_storage", mutate: func(c *Config) { c.Storage.Driver = StorageMemory }, wantErr: true},
		{name: "wildcard_origin", mutate: func(c *Config) { c.Security.AllowedOrigins = []string{"*"} }, wantErr: true},
		{name: "relative_backend", mutate: func(c *Config) { c.Backend.BaseURL = "/api" }, wantErr: true},
		{name: "insecure_cookie", mutate: func(c *Config) { c.Session.Secure = false }, wantErr: true},
		{
			name: "postgres_default_password",
			mutate: func(c *Config) {
				c.Storage.Driver = StoragePostgres
				c.Database.Password = "medboard_dev"
				c.Database.SSLMode = "require"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := (&ProductionValidator{}).Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeSecretsAPI struct {
	calls  int
	secret string
	err    error
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.secret)}, nil
}

func TestApplySecrets_FromAWS(t *testing.T) {
	api := &fakeSecretsAPI{secret: `{"DB_PASSWORD":"db-pw","REDIS_PASSWORD":"redis-pw","AWS_SECRET_ACCESS_KEY":"aws-secret"}`}
	sm := newAWSSecretsManager(api, "medboard/prod", quietLogger())
	cfg := &Config{}

	require.NoError(t, ApplySecrets(context.Background(), cfg, sm))
	assert.Equal(t, "db-pw", cfg.Database.Password)
	assert.Equal(t, "redis-pw", cfg.Redis.Password)
	assert.Equal(t, "redis-pw", cfg.Asynq.RedisPassword)

	// second resolution is served from cache
	require.NoError(t, ApplySecrets(context.Background(), cfg, sm))
	assert.Equal(t, 1, api.calls)
}

func TestApplySecrets_PropagatesError(t *testing.T) {
	sm := newAWSSecretsManager(&fakeSecretsAPI{err: errors.New("denied")}, "x", quietLogger())
	err := ApplySecrets(context.Background(), &Config{}, sm)
	assert.ErrorContains(t, err, "denied")
}

func TestEnvSecretsManager(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	cfg := &Config{}
	require.NoError(t, ApplySecrets(context.Background(), cfg, NewEnvSecretsManager()))
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Empty(t, cfg.Redis.Password)
}
