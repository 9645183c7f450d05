package server

import (
	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
	"go.uber.org/zap"
)

// Presence tells connected sessions who is reachable. Delivery is
// best-effort: closed connections are skipped and nothing is retried.
type Presence struct {
	registry *Registry
	metrics  *serverMetrics
	logger   *zap.Logger
}

func newPresence(registry *Registry, metrics *serverMetrics, logger *zap.Logger) *Presence {
	return &Presence{registry: registry, metrics: metrics, logger: logger.Named("presence")}
}

// BroadcastStatus sends user_status to every registered session, including
// the user whose status changed.
func (p *Presence) BroadcastStatus(userID models.UserID, username, status string) {
	env := protocol.UserStatus{
		Type:     protocol.KindUserStatus,
		UserID:   userID,
		Username: username,
		Status:   status,
	}

	delivered := 0
	for _, s := range p.registry.Snapshot() {
		if !s.IsOpen() {
			continue
		}
		if s.Send(env) {
			delivered++
			p.metrics.recordDelivery(protocol.KindUserStatus)
		}
	}
	p.logger.Debug("presence broadcast",
		zap.String("user_id", userID.String()),
		zap.String("status", status),
		zap.Int("recipients", delivered))
}

// SendSnapshot sends the full online_users list to s.
func (p *Presence) SendSnapshot(s *Session) {
	sessions := p.registry.Snapshot()
	users := make([]protocol.PresenceEntry, 0, len(sessions))
	for _, other := range sessions {
		users = append(users, protocol.PresenceEntry{
			UserID:   other.UserID,
			Username: other.Username,
			Status:   other.Status,
		})
	}
	s.Send(protocol.OnlineUsers{Type: protocol.KindOnlineUsers, Users: users})
}

// ForwardTyping relays a typing indicator to a registered recipient. It is
// never persisted and silently dropped when the recipient is away.
func (p *Presence) ForwardTyping(from *Session, m *protocol.Typing) {
	if m.To == "" {
		p.metrics.recordDrop("missing_field")
		return
	}
	recipient, ok := p.registry.Get(m.To)
	if !ok || !recipient.IsOpen() {
		return
	}
	if recipient.Send(protocol.TypingForward{
		Type:     protocol.KindTyping,
		From:     from.UserID,
		Username: from.Username,
		IsTyping: m.IsTyping,
	}) {
		p.metrics.recordDelivery(protocol.KindTyping)
	}
}
