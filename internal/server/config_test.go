package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { SetConfig(nil) })
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadConfigPrefixedEnv(t *testing.T) {
	t.Setenv("GOCHAT_PORT", ":9000")
	t.Setenv("GOCHAT_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GOCHAT_MAX_MESSAGE_SIZE", "2048")
	t.Setenv("GOCHAT_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("GOCHAT_STORAGE_DRIVER", "sqlite")
	t.Setenv("GOCHAT_STORAGE_DSN", "file:chat.db")
	t.Setenv("GOCHAT_METRICS_ENABLED", "false")
	t.Setenv("GOCHAT_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "file:chat.db", cfg.Storage.DSN)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "SERVER_PORT",
			env:  map[string]string{"SERVER_PORT": ":7000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":7000", cfg.Port)
			},
		},
		{
			name: "PORT",
			env:  map[string]string{"PORT": "7100"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "7100", cfg.Port)
			},
		},
		{
			name: "ALLOWED_ORIGINS",
			env:  map[string]string{"ALLOWED_ORIGINS": "https://chat.example"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://chat.example"}, cfg.AllowedOrigins)
			},
		},
		{
			name: "JWT_SECRET",
			env:  map[string]string{"JWT_SECRET": "legacy"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "legacy", cfg.Auth.JWTSecret)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gochat.yaml")
	content := `port: ":8181"
log_level: debug
log_format: console
allowed_origins:
  - https://one.example
  - https://two.example
storage:
  driver: redis
  redis_addr: cache:6379
  redis_db: 2
metrics:
  path: /internal/metrics
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8181", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, "/internal/metrics", cfg.Metrics.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSetConfigSanitizes(t *testing.T) {
	resetConfig(t)

	got := SetConfig(&Config{
		Port:           "9090",
		AllowedOrigins: []string{" HTTPS://Chat.Example ", "not a url", ""},
		Storage:        StorageConfig{Driver: " Postgres "},
		Metrics:        MetricsConfig{Path: "metrics"},
	})

	assert.Equal(t, ":9090", got.Port)
	assert.Equal(t, []string{"https://chat.example"}, got.AllowedOrigins)
	assert.Equal(t, int64(defaultMaxMessageSize), got.MaxMessageSize)
	assert.Equal(t, defaultShutdownTimeout, got.ShutdownTimeout)
	assert.Equal(t, DefaultJWTSecret, got.Auth.JWTSecret)
	assert.Equal(t, "postgres", got.Storage.Driver)
	assert.Equal(t, "/metrics", got.Metrics.Path)
	assert.Equal(t, got, currentConfig())
}

func TestSetConfigWildcardOrigin(t *testing.T) {
	resetConfig(t)

	got := SetConfig(&Config{AllowedOrigins: []string{"*", "http://localhost:3000"}})
	assert.Equal(t, []string{"http://localhost:3000", "*"}, got.AllowedOrigins)

	configMu.RLock()
	defer configMu.RUnlock()
	assert.True(t, activeOrigins.allowAll)
}

func TestSetConfigDoesNotAliasCaller(t *testing.T) {
	resetConfig(t)

	origins := []string{"http://localhost:3000"}
	SetConfig(&Config{AllowedOrigins: origins})
	origins[0] = "http://evil.example"

	assert.Equal(t, []string{"http://localhost:3000"}, currentConfig().AllowedOrigins)
}

func TestNormalizePort(t *testing.T) {
	tests := map[string]string{
		"":             ":8080",
		"8080":         ":8080",
		":9000":        ":9000",
		"0.0.0.0:9000": "0.0.0.0:9000",
		" 7000 ":       ":7000",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePort(in), "input %q", in)
	}
}
