// Package unit contains unit tests for individual components of the GoChat server.
//
// These tests exercise the HTTP surface in isolation with httptest recorders
// and an in-memory store, without opening network sockets.
package unit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
	"github.com/Tyrowin/nexus-chat-server/internal/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestApp(t *testing.T) *server.App {
	t.Helper()
	server.SetConfig(nil)
	t.Cleanup(func() { server.SetConfig(nil) })
	return server.NewApp(server.Options{
		Store:   memory.New(),
		Metrics: prometheus.NewRegistry(),
	})
}

// TestHealthHandlerUnit tests the health handler function in isolation.
// It verifies that the handler responds correctly to different HTTP methods
// and returns the expected status code and response body.
func TestHealthHandlerUnit(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET request to health endpoint",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedBody:   "GoChat server is running!",
		},
		{
			name:           "POST request to health endpoint",
			method:         http.MethodPost,
			expectedStatus: http.StatusOK,
			expectedBody:   "GoChat server is running!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "/", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}

			rr := httptest.NewRecorder()

			server.HealthHandler(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					status, tt.expectedStatus)
			}

			if rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %v want %v",
					rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

// TestSetupRoutes verifies that the router serves each endpoint with the
// methods it was registered for.
func TestSetupRoutes(t *testing.T) {
	router := newTestApp(t).SetupRoutes()
	if router == nil {
		t.Fatal("SetupRoutes returned nil router")
	}

	tests := []struct {
		method      string
		path        string
		status      int
		contentType string
	}{
		{http.MethodGet, "/", http.StatusOK, "text/plain"},
		{http.MethodGet, "/healthz", http.StatusOK, "application/json"},
		{http.MethodGet, "/test", http.StatusOK, "text/html"},
		{http.MethodGet, "/metrics", http.StatusOK, ""},
		{http.MethodPost, "/", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}
			if tt.contentType != "" && rr.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Expected content type %s, got %s", tt.contentType, rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHealthzBody(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	app.HealthzHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Sessions    int    `json:"sessions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Status != "ok" || body.Connections != 0 || body.Sessions != 0 {
		t.Errorf("Unexpected healthz body: %+v", body)
	}
}

func TestTestPageSpeaksEnvelopeProtocol(t *testing.T) {
	rr := httptest.NewRecorder()
	server.TestPageHandler(rr, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	body := rr.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "type: 'auth'", "auth_success"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected test page to contain %q", want)
		}
	}
}

// TestCreateServer tests the server creation function.
// It verifies that CreateServer returns an HTTP server with the correct
// configuration including address, handler, and timeout settings.
func TestCreateServer(t *testing.T) {
	port := ":8080"
	router := newTestApp(t).SetupRoutes()

	srv := server.CreateServer(port, router)

	if srv.Addr != port {
		t.Errorf("Expected server addr %s, got %s", port, srv.Addr)
	}

	if srv.Handler != router {
		t.Error("Server handler not set correctly")
	}

	expectedReadTimeout := 15 * time.Second
	expectedWriteTimeout := 15 * time.Second
	expectedIdleTimeout := 60 * time.Second

	if srv.ReadTimeout != expectedReadTimeout {
		t.Errorf("Expected ReadTimeout %v, got %v", expectedReadTimeout, srv.ReadTimeout)
	}

	if srv.WriteTimeout != expectedWriteTimeout {
		t.Errorf("Expected WriteTimeout %v, got %v", expectedWriteTimeout, srv.WriteTimeout)
	}

	if srv.IdleTimeout != expectedIdleTimeout {
		t.Errorf("Expected IdleTimeout %v, got %v", expectedIdleTimeout, srv.IdleTimeout)
	}
}

// TestNewConfig tests the configuration creation function.
// It verifies that NewConfig returns a properly initialized Config
// struct with the expected default values.
func TestNewConfig(t *testing.T) {
	config := server.NewConfig()

	if config == nil {
		t.Fatal("NewConfig returned nil")
	}

	expectedPort := ":8080"
	if config.Port != expectedPort {
		t.Errorf("Expected default port %s, got %s", expectedPort, config.Port)
	}
	if config.Storage.Driver != "memory" {
		t.Errorf("Expected default storage driver memory, got %s", config.Storage.Driver)
	}
	if config.Auth.JWTSecret != server.DefaultJWTSecret {
		t.Errorf("Expected default JWT secret, got %s", config.Auth.JWTSecret)
	}
}
