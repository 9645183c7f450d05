package server

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(envs []envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.str("type"))
	}
	return out
}

func TestAuthSuccessHandshakeOrder(t *testing.T) {
	h := newHarness(t, nil)
	c := h.connect("1:alice")

	envs := drain(t, c)
	require.Equal(t, []string{"auth_success", "user_status", "online_users", "group_list"}, kinds(envs))

	assert.Equal(t, "1", envs[0].str("userId"))
	assert.Equal(t, "alice", envs[0].str("username"))

	assert.Equal(t, "1", envs[1].str("userId"))
	assert.Equal(t, "online", envs[1].str("status"))

	users := envs[2].list("users")
	require.Len(t, users, 1)
	assert.Equal(t, "1", users[0].(map[string]any)["userId"])

	assert.NotNil(t, envs[3]["groups"])
	assert.Empty(t, envs[3].list("groups"))

	assert.Equal(t, stateAuthenticated, c.currentState())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.app.dispatcher.metrics.activeSessions))
}

func TestAuthFailureIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	c := h.connect("garbage")

	envs := drain(t, c)
	require.Len(t, envs, 1)
	assert.Equal(t, "auth_error", envs[0].str("type"))
	assert.Equal(t, "Invalid token", envs[0].str("message"))

	assert.False(t, c.IsOpen())
	assert.Equal(t, stateClosed, c.currentState())
	assert.Zero(t, h.app.registry.Len())

	// Later frames on the dead connection are ignored.
	h.send(c, map[string]any{"type": "auth", "token": "1:alice"})
	assert.Zero(t, h.app.registry.Len())
}

func TestEnvelopesBeforeAuthAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	c := newTestClient(h.app.hub, "test")

	h.send(c, map[string]any{"type": "message", "to": "2", "content": "hi"})
	assert.Empty(t, drain(t, c))
	assert.Equal(t, stateUnauthenticated, c.currentState())

	h.send(c, map[string]any{"type": "auth", "token": "1:alice"})
	assert.Equal(t, stateAuthenticated, c.currentState())
}

func TestMalformedEnvelopeGetsGenericError(t *testing.T) {
	h := newHarness(t, nil)

	for _, raw := range []string{`not json`, `[1,2]`, `{"content":"no type"}`, `{"type":7}`} {
		t.Run(raw, func(t *testing.T) {
			c := h.login("1:alice")
			h.sendRaw(c, []byte(raw))

			envs := drain(t, c)
			require.Len(t, envs, 1)
			assert.Equal(t, "error", envs[0].str("type"))
			assert.Equal(t, "Error processing message", envs[0].str("message"))
			assert.True(t, c.IsOpen(), "protocol errors are not terminal")
		})
	}
}

func TestMalformedBeforeAuthGetsGenericError(t *testing.T) {
	h := newHarness(t, nil)
	c := newTestClient(h.app.hub, "test")

	h.sendRaw(c, []byte(`{oops`))
	envs := drain(t, c)
	require.Len(t, envs, 1)
	assert.Equal(t, "error", envs[0].str("type"))
	assert.Equal(t, stateUnauthenticated, c.currentState())
}

func TestUnknownAndInvalidEnvelopesAreSilent(t *testing.T) {
	h := newHarness(t, nil)
	c := h.login("1:alice")

	h.sendRaw(c, []byte(`{"type":"dance","to":"2"}`))
	h.sendRaw(c, []byte(`{"type":"message","to":{"nested":true},"content":"x"}`))
	h.sendRaw(c, []byte(`{"type":"create_group","name":5}`))

	assert.Empty(t, drain(t, c))
	assert.True(t, c.IsOpen())
}

func TestSecondAuthOnSameConnectionIgnored(t *testing.T) {
	h := newHarness(t, nil)
	c := h.login("1:alice")

	h.send(c, map[string]any{"type": "auth", "token": "2:bob"})
	assert.Empty(t, drain(t, c))

	_, ok := h.app.registry.Get("2")
	assert.False(t, ok)
	s, ok := h.app.registry.Get("1")
	require.True(t, ok)
	assert.Equal(t, "alice", s.Username)
}

func TestDisconnectBroadcastsOfflineOnce(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.login("1:alice")
	bob := h.login("2:bob")
	carol := h.login("3:carol")
	drain(t, alice)
	drain(t, bob)

	h.disconnect(alice)

	for _, c := range []*Client{bob, carol} {
		statuses := ofType(drain(t, c), "user_status")
		require.Len(t, statuses, 1)
		assert.Equal(t, "1", statuses[0].str("userId"))
		assert.Equal(t, "alice", statuses[0].str("username"))
		assert.Equal(t, "offline", statuses[0].str("status"))
	}

	_, ok := h.app.registry.Get("1")
	assert.False(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.app.dispatcher.metrics.activeSessions))

	// A second disconnect for the same client is a no-op.
	h.app.dispatcher.Disconnect(alice)
	assert.Empty(t, ofType(drain(t, bob), "user_status"))
}

func TestDisconnectBeforeAuthIsSilent(t *testing.T) {
	h := newHarness(t, nil)
	bob := h.login("2:bob")

	c := newTestClient(h.app.hub, "anon")
	h.disconnect(c)

	assert.Empty(t, drain(t, bob))
}

func TestReauthSupersedesPreviousConnection(t *testing.T) {
	h := newHarness(t, nil)
	observer := h.login("9:observer")
	first := h.login("1:alice")
	drain(t, observer)

	second := h.login("1:alice")
	assert.False(t, first.IsOpen(), "superseded connection must be closed")
	assert.True(t, second.IsOpen())

	current, ok := h.app.registry.Get("1")
	require.True(t, ok)
	assert.Same(t, second, current.conn)

	online := ofType(drain(t, observer), "user_status")
	require.Len(t, online, 1)
	assert.Equal(t, "online", online[0].str("status"))

	// The superseded connection going away leaves the new session alone.
	h.disconnect(first)
	_, ok = h.app.registry.Get("1")
	assert.True(t, ok)
	assert.Empty(t, ofType(drain(t, observer), "user_status"))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.app.dispatcher.metrics.activeSessions))

	h.disconnect(second)
	offline := ofType(drain(t, observer), "user_status")
	require.Len(t, offline, 1)
	assert.Equal(t, "offline", offline[0].str("status"))
}

func TestOnlineBroadcastReachesExistingSessions(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.login("1:alice")

	bob := h.connect("2:bob")
	snapshot := ofType(drain(t, bob), "online_users")
	require.Len(t, snapshot, 1)
	assert.Len(t, snapshot[0].list("users"), 2)

	statuses := ofType(drain(t, alice), "user_status")
	require.Len(t, statuses, 1)
	assert.Equal(t, "2", statuses[0].str("userId"))
	assert.Equal(t, "online", statuses[0].str("status"))
}

// A page refresh races the old connection's disconnect against the new
// connection's auth. Whatever the interleaving, the last status observers
// see must match the registry.
func TestRefreshRaceLeavesUserOnline(t *testing.T) {
	h := newHarness(t, nil)
	observer := h.login("9:observer")
	authFrame := []byte(`{"type":"auth","token":"1:alice"}`)

	for i := 0; i < 100; i++ {
		old := h.login("1:alice")
		drain(t, observer)

		fresh := newTestClient(h.app.hub, "refresh")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.disconnect(old)
		}()
		go func() {
			defer wg.Done()
			h.sendRaw(fresh, authFrame)
		}()
		wg.Wait()

		current, ok := h.app.registry.Get("1")
		require.True(t, ok, "iteration %d: alice missing from registry", i)
		require.Same(t, fresh, current.conn, "iteration %d", i)

		statuses := ofType(drain(t, observer), "user_status")
		require.NotEmpty(t, statuses, "iteration %d", i)
		require.Equal(t, "online", statuses[len(statuses)-1].str("status"), "iteration %d: %v", i, statuses)

		h.disconnect(fresh)
		drain(t, observer)
	}
}
