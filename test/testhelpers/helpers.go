// Package testhelpers provides common utilities and helper functions for testing the GoChat server.
//
// It wraps httptest servers, plain HTTP requests and a WebSocket client that
// speaks the JSON envelope protocol, so package tests can drive full
// authenticate/route/disconnect flows with little ceremony.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultOrigin is accepted by the server's default origin allowlist.
const DefaultOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// DefaultOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, DefaultOrigin)
}

// ConnectWebSocketWithOrigin dials url presenting the given Origin header.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Envelope is a decoded server frame.
type Envelope map[string]any

// Type returns the envelope discriminator.
func (e Envelope) Type() string {
	s, _ := e["type"].(string)
	return s
}

// String returns a string field, or "" when absent.
func (e Envelope) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Object returns a nested object field.
func (e Envelope) Object(key string) Envelope {
	m, _ := e[key].(map[string]any)
	return Envelope(m)
}

// List returns an array field.
func (e Envelope) List(key string) []any {
	l, _ := e[key].([]any)
	return l
}

// SendEnvelope writes v as one JSON text frame.
func SendEnvelope(conn *websocket.Conn, v any) error {
	return conn.WriteJSON(v)
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// ReadEnvelope reads one frame within timeout and decodes it.
func ReadEnvelope(conn *websocket.Conn, timeout time.Duration) (Envelope, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env, nil
}

// ReadUntil reads frames until one of the given type arrives, skipping the
// rest. It fails the test on timeout.
func ReadUntil(t *testing.T, conn *websocket.Conn, kind string, timeout time.Duration) Envelope {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %q envelope", kind)
		}
		env, err := ReadEnvelope(conn, remaining)
		if err != nil {
			t.Fatalf("waiting for %q envelope: %v", kind, err)
		}
		if env.Type() == kind {
			return env
		}
	}
}

// ExpectNoEnvelope asserts that no frame of the given type arrives within
// wait. Frames of other types are skipped. An empty kind rejects any frame.
// The connection is unusable for reads after a timeout, so call this last.
func ExpectNoEnvelope(t *testing.T, conn *websocket.Conn, kind string, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		env, err := ReadEnvelope(conn, remaining)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				return
			}
			t.Fatalf("unexpected read error: %v", err)
		}
		if kind == "" || env.Type() == kind {
			t.Fatalf("unexpected %q envelope: %v", env.Type(), env)
		}
	}
}

// ExpectClosed asserts that the server closes the connection within wait,
// draining any frames sent before the close.
func ExpectClosed(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after %s", wait)
			}
			return
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
