package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is used when no secret is configured. It is only fit for
// local development.
const DefaultJWTSecret = "your-secret-key-change-in-production"

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 64 * 1024
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownTimeout = 10 * time.Second
	defaultStorageDriver   = "memory"
	defaultRedisAddr       = "localhost:6379"
	defaultMetricsPath     = "/metrics"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Auth            AuthConfig    `mapstructure:"auth"`
	Storage         StorageConfig `mapstructure:"storage"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// StorageConfig selects the persistence backend. Driver is one of memory,
// sqlite, postgres or redis.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var (
	configMu      sync.RWMutex
	activeConfig  Config
	activeOrigins *originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		ShutdownTimeout: defaultShutdownTimeout,
		Auth: AuthConfig{
			JWTSecret: DefaultJWTSecret,
		},
		Storage: StorageConfig{
			Driver:    defaultStorageDriver,
			RedisAddr: defaultRedisAddr,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	cfg.Port = normalizePort(cfg.Port)

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaultLogFormat
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = DefaultJWTSecret
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaultStorageDriver
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = defaultRedisAddr
	}
	if cfg.Metrics.Path == "" || !strings.HasPrefix(cfg.Metrics.Path, "/") {
		cfg.Metrics.Path = defaultMetricsPath
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins
	if allowAll {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, "*")
	}

	policy := newOriginPolicy(cfg.AllowedOrigins)

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activeOrigins = policy

	return cfg
}

// normalizePort accepts ":8080", "0.0.0.0:8080" or a bare "8080".
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return defaultPort
	}
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

// SetConfig applies the provided configuration and returns the sanitized
// result. Passing nil resets to defaults.
func SetConfig(cfg *Config) Config {
	if cfg == nil {
		return sanitizeConfig(defaultConfig())
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return sanitizeConfig(copied)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads configuration from the optional file at path and the
// environment. Variables are prefixed with GOCHAT_ (nested keys use "_"),
// and the historical SERVER_PORT, PORT, ALLOWED_ORIGINS, MAX_MESSAGE_SIZE
// and JWT_SECRET names are still honoured.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := defaultConfig()
	v.SetDefault("port", defaults.Port)
	v.SetDefault("allowed_origins", defaults.AllowedOrigins)
	v.SetDefault("max_message_size", defaults.MaxMessageSize)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("shutdown_timeout", defaults.ShutdownTimeout.String())
	v.SetDefault("auth.jwt_secret", defaults.Auth.JWTSecret)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("storage.driver", defaults.Storage.Driver)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.redis_addr", defaults.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.path", defaults.Metrics.Path)

	legacy := map[string][]string{
		"port":             {"GOCHAT_PORT", "SERVER_PORT", "PORT"},
		"allowed_origins":  {"GOCHAT_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		"max_message_size": {"GOCHAT_MAX_MESSAGE_SIZE", "MAX_MESSAGE_SIZE"},
		"auth.jwt_secret":  {"GOCHAT_AUTH_JWT_SECRET", "JWT_SECRET"},
	}
	for key, envs := range legacy {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Environment values arrive as comma separated strings.
	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)

	return &cfg, nil
}

func parseOrigins(entries []string) []string {
	var origins []string
	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	return origins
}
