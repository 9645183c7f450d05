package server

import (
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options carries the collaborators of an App.
type Options struct {
	Logger   *zap.Logger
	Verifier auth.Verifier
	Store    storage.Gateway
	// Metrics receives the server collectors and backs the /metrics
	// endpoint. Nil disables both.
	Metrics *prometheus.Registry
	// AllowedOrigins fixes the WebSocket origin allowlist for this App.
	// Empty follows the active Config.
	AllowedOrigins []string
}

// App wires the registry, dispatcher and hub behind the HTTP handlers.
type App struct {
	hub        *Hub
	dispatcher *Dispatcher
	registry   *Registry
	metricsReg *prometheus.Registry
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	allowlist *originPolicy
}

// NewApp builds an App. Call Start before serving requests.
func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var metrics *serverMetrics
	if opts.Metrics != nil {
		metrics = newServerMetrics(opts.Metrics)
	}

	registry := NewRegistry()
	dispatcher := &Dispatcher{
		verifier: opts.Verifier,
		registry: registry,
		presence: newPresence(registry, metrics, logger),
		router:   newMessageRouter(opts.Store, registry, metrics, logger),
		relay:    newSignalingRelay(registry, metrics, logger),
		metrics:  metrics,
		logger:   logger.Named("dispatch"),
		now:      time.Now,
	}

	app := &App{
		hub:        NewHub(logger, dispatcher),
		dispatcher: dispatcher,
		registry:   registry,
		metricsReg: opts.Metrics,
		logger:     logger,
	}
	if len(opts.AllowedOrigins) > 0 {
		app.allowlist = newOriginPolicy(opts.AllowedOrigins)
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.checkOrigin,
	}
	return app
}

// Start launches the hub loop.
func (a *App) Start() {
	go a.hub.Run()
	a.logger.Info("hub started and ready to manage WebSocket connections")
}

// Shutdown closes every connection and waits for the pumps to exit.
func (a *App) Shutdown(timeout time.Duration) error {
	return a.hub.Shutdown(timeout)
}

// Hub returns the connection owner.
func (a *App) Hub() *Hub {
	return a.hub
}

// Registry returns the presence registry.
func (a *App) Registry() *Registry {
	return a.registry
}
