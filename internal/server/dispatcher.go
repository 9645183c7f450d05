package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
	"go.uber.org/zap"
)

// Dispatcher drives each connection through Unauthenticated, Authenticated
// and Closed, routing envelopes to presence, the message router and the
// signaling relay.
type Dispatcher struct {
	verifier auth.Verifier
	registry *Registry
	presence *Presence
	router   *MessageRouter
	relay    *SignalingRelay
	metrics  *serverMetrics
	logger   *zap.Logger
	now      func() time.Time

	// transitions serialises each registry change with its status broadcast.
	transitions sync.Mutex
}

var _ connectionHandler = (*Dispatcher)(nil)

// Dispatch handles one inbound frame from c. Frames from one connection
// are dispatched sequentially by its read pump.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, raw []byte) {
	state := c.currentState()
	if state == stateClosed {
		d.metrics.recordDrop("closed")
		return
	}

	msg, err := protocol.Decode(raw)
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		d.metrics.recordDrop("malformed")
		d.logger.Debug("malformed envelope", zap.String("remote_addr", c.addr))
		c.Send(protocol.NewProtocolError())
		return
	case errors.Is(err, protocol.ErrUnknownKind):
		d.metrics.recordDrop("unknown_type")
		d.logger.Info("dropping envelope of unknown type", zap.String("remote_addr", c.addr), zap.Error(err))
		return
	case err != nil:
		d.metrics.recordDrop("invalid_body")
		d.logger.Debug("dropping invalid envelope", zap.String("remote_addr", c.addr), zap.Error(err))
		return
	}

	kind := msg.Kind()
	d.metrics.recordEnvelope(kind)
	start := time.Now()
	defer func() { d.metrics.observeDispatch(kind, time.Since(start)) }()

	if state == stateUnauthenticated {
		a, ok := msg.(*protocol.Auth)
		if !ok {
			d.metrics.recordDrop("unauthenticated")
			d.logger.Debug("dropping envelope before auth", zap.String("remote_addr", c.addr), zap.String("kind", string(kind)))
			return
		}
		d.authenticate(ctx, c, a)
		return
	}

	d.route(ctx, c.currentSession(), msg)
}

func (d *Dispatcher) route(ctx context.Context, s *Session, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.Auth:
		d.metrics.recordDrop("already_authenticated")
	case *protocol.SendMessage:
		d.router.RouteDirect(ctx, s, m.To, m.Content)
	case *protocol.SendGroupMessage:
		d.router.RouteGroup(ctx, s, m.GroupID, m.Content)
	case *protocol.CreateGroup:
		d.router.CreateGroup(ctx, s, m.Name, m.Members)
	case *protocol.GetMessages:
		d.router.DirectHistory(ctx, s, m.OtherUserID)
	case *protocol.GetGroupMessages:
		d.router.GroupHistory(ctx, s, m.GroupID)
	case *protocol.Typing:
		d.presence.ForwardTyping(s, m)
	case protocol.Signal:
		d.relay.Relay(s, m)
	default:
		d.logger.Warn("no route for envelope", zap.String("kind", string(msg.Kind())))
	}
}

// authenticate verifies the credential. Failure sends auth_error and closes
// the connection; success registers the session and seeds the client.
func (d *Dispatcher) authenticate(ctx context.Context, c *Client, a *protocol.Auth) {
	identity, err := d.verifier.Verify(ctx, a.Token)
	if err != nil {
		d.logger.Info("authentication failed", zap.String("remote_addr", c.addr), zap.Error(err))
		c.Send(protocol.NewAuthError())
		c.markClosed()
		c.Close()
		return
	}

	session := newSession(identity, c, d.now())
	if !c.authenticate(session) {
		return
	}

	d.transitions.Lock()
	if prev := d.registry.Put(session); prev != nil && prev != session {
		d.metrics.replaceSession()
		d.logger.Info("closing superseded session", zap.String("user_id", identity.UserID.String()))
		prev.conn.Close()
	} else {
		d.metrics.incSession()
	}
	d.logger.Info("session authenticated",
		zap.String("user_id", identity.UserID.String()),
		zap.String("username", identity.Username),
		zap.String("remote_addr", c.addr))

	c.Send(protocol.AuthSuccess{Type: protocol.KindAuthSuccess, UserID: session.UserID, Username: session.Username})
	d.presence.BroadcastStatus(session.UserID, session.Username, protocol.StatusOnline)
	d.transitions.Unlock()

	d.presence.SendSnapshot(session)
	d.router.SendGroupList(ctx, session)
}

// Disconnect removes c's session and announces the user offline, unless a
// newer connection for the same user already replaced it.
func (d *Dispatcher) Disconnect(c *Client) {
	session := c.markClosed()
	if session == nil {
		return
	}

	d.transitions.Lock()
	defer d.transitions.Unlock()

	if !d.registry.Release(session) {
		d.logger.Debug("superseded session closed", zap.String("user_id", session.UserID.String()))
		return
	}

	d.metrics.decSession()
	d.logger.Info("session closed", zap.String("user_id", session.UserID.String()))
	d.presence.BroadcastStatus(session.UserID, session.Username, protocol.StatusOffline)
}
