package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures the router with all application routes: health
// checks, the WebSocket endpoint, the test page and, when enabled, metrics.
func (a *App) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.HealthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", a.WebSocketHandler)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)

	cfg := currentConfig()
	if a.metricsReg != nil && cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(a.metricsReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}
