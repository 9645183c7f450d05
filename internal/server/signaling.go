package server

import (
	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
	"go.uber.org/zap"
)

// SignalingRelay forwards call negotiation between two online users. It
// keeps no call state and never looks inside the payload.
type SignalingRelay struct {
	registry *Registry
	metrics  *serverMetrics
	logger   *zap.Logger
}

func newSignalingRelay(registry *Registry, metrics *serverMetrics, logger *zap.Logger) *SignalingRelay {
	return &SignalingRelay{registry: registry, metrics: metrics, logger: logger.Named("signaling")}
}

// Relay forwards sig to its target with from set to the sender. An absent
// or closed target yields exactly one call_error to the sender.
func (r *SignalingRelay) Relay(s *Session, sig protocol.Signal) {
	to := sig.Target()
	if to == "" {
		r.metrics.recordDrop("missing_field")
		return
	}

	recipient, ok := r.registry.Get(to)
	if !ok || !recipient.IsOpen() || !recipient.Send(sig.Forward(s.UserID, s.Username)) {
		r.logger.Debug("signal target unavailable",
			zap.String("kind", string(sig.Kind())),
			zap.String("from", s.UserID.String()),
			zap.String("to", to.String()))
		s.Send(protocol.NewCallError())
		return
	}
	r.metrics.recordDelivery(sig.Kind())
}
