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

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/logging"
	"github.com/Tyrowin/nexus-chat-server/internal/server"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/Tyrowin/nexus-chat-server/internal/storage/memory"
	"github.com/Tyrowin/nexus-chat-server/internal/storage/redis"
	"github.com/Tyrowin/nexus-chat-server/internal/storage/sqlstore"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML/JSON config file (optional)")
	flag.Parse()

	loaded, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(loaded.LogLevel, loaded.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // best-effort flush
	zap.ReplaceGlobals(logger)

	cfg := server.SetConfig(loaded)
	if cfg.Auth.JWTSecret == server.DefaultJWTSecret {
		logger.Warn("using the default JWT secret; set GOCHAT_AUTH_JWT_SECRET or JWT_SECRET in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	app := server.NewApp(server.Options{
		Logger:   logger,
		Verifier: auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Store:    store,
		Metrics:  reg,

		AllowedOrigins: cfg.AllowedOrigins,
	})
	app.Start()

	httpServer := server.CreateServer(cfg.Port, app.SetupRoutes())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited with error", zap.Error(err))
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := app.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown incomplete", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg server.StorageConfig) (storage.Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite", "sqlite3", "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for driver %s", cfg.Driver)
		}
		return sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	case "redis":
		return redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
