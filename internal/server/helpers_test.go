package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/Tyrowin/nexus-chat-server/internal/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// tokenVerifier accepts tokens of the form "<userId>:<username>".
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, name, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{UserID: models.UserID(id), Username: name}, nil
}

// harness drives the dispatcher directly with socketless clients whose
// outbound queue is inspected in place of a network peer.
type harness struct {
	t     *testing.T
	app   *App
	store storage.Gateway
}

func newHarness(t *testing.T, store storage.Gateway) *harness {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	app := NewApp(Options{
		Logger:   zaptest.NewLogger(t),
		Verifier: tokenVerifier{},
		Store:    store,
		Metrics:  prometheus.NewRegistry(),
	})
	return &harness{t: t, app: app, store: store}
}

func (h *harness) send(c *Client, v any) {
	h.t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(h.t, err)
	h.sendRaw(c, raw)
}

func (h *harness) sendRaw(c *Client, raw []byte) {
	h.app.dispatcher.Dispatch(context.Background(), c, raw)
}

// newTestClient builds a client without a socket. It is never handed to a
// running hub; tests read its queue with drain.
func newTestClient(hub *Hub, addr string) *Client {
	logger := zap.NewNop()
	if hub != nil {
		logger = hub.logger
	}
	return &Client{
		send:           make(chan []byte, sendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: currentConfig().MaxMessageSize,
		logger:         logger.With(zap.String("remote_addr", addr)),
		state:          stateUnauthenticated,
	}
}

// connectedClient upgrades a loopback connection and wraps the server side
// in a Client for hub. The dialled peer is returned for assertions.
func connectedClient(t *testing.T, hub *Hub) (*Client, *websocket.Conn) {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	return NewClient(<-conns, hub, peer.LocalAddr().String()), peer
}

// connect opens a client and sends auth with token without draining.
func (h *harness) connect(token string) *Client {
	c := newTestClient(h.app.hub, "test/"+token)
	h.send(c, map[string]any{"type": "auth", "token": token})
	return c
}

// login authenticates and discards the handshake envelopes.
func (h *harness) login(token string) *Client {
	h.t.Helper()
	c := h.connect(token)
	envs := drain(h.t, c)
	require.NotEmpty(h.t, ofType(envs, "auth_success"), "login %s: %v", token, envs)
	return c
}

// disconnect mirrors the hub's unregister path.
func (h *harness) disconnect(c *Client) {
	c.closeSend()
	h.app.dispatcher.Disconnect(c)
}

type envelope map[string]any

func (e envelope) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e envelope) obj(key string) envelope {
	m, _ := e[key].(map[string]any)
	return envelope(m)
}

func (e envelope) list(key string) []any {
	l, _ := e[key].([]any)
	return l
}

// drain returns every envelope currently queued on c.
func drain(t *testing.T, c *Client) []envelope {
	t.Helper()
	var out []envelope
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var env envelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func ofType(envs []envelope, kind string) []envelope {
	var out []envelope
	for _, e := range envs {
		if e.str("type") == kind {
			out = append(out, e)
		}
	}
	return out
}

// failingStore wraps the memory backend and fails the operations listed in
// failOn.
type failingStore struct {
	storage.Gateway
	failOn map[string]bool
	calls  map[string]int
}

func newFailingStore(ops ...string) *failingStore {
	f := &failingStore{Gateway: memory.New(), failOn: map[string]bool{}, calls: map[string]int{}}
	for _, op := range ops {
		f.failOn[op] = true
	}
	return f
}

var errStoreDown = errors.New("storage unavailable")

func (f *failingStore) AppendDirect(ctx context.Context, msg models.DirectMessage) error {
	f.calls["append_direct"]++
	if f.failOn["append_direct"] {
		return errStoreDown
	}
	return f.Gateway.AppendDirect(ctx, msg)
}

func (f *failingStore) AppendGroup(ctx context.Context, msg models.GroupMessage) error {
	f.calls["append_group"]++
	if f.failOn["append_group"] {
		return errStoreDown
	}
	return f.Gateway.AppendGroup(ctx, msg)
}

func (f *failingStore) CreateGroup(ctx context.Context, group models.Group) error {
	f.calls["create_group"]++
	if f.failOn["create_group"] {
		return errStoreDown
	}
	return f.Gateway.CreateGroup(ctx, group)
}

func (f *failingStore) GetGroupsForUser(ctx context.Context, userID models.UserID) ([]models.Group, error) {
	f.calls["list_groups"]++
	if f.failOn["list_groups"] {
		return nil, errStoreDown
	}
	return f.Gateway.GetGroupsForUser(ctx, userID)
}
