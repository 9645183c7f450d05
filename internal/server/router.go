package server

import (
	"context"
	"errors"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageRouter persists text messages and delivers them to whoever is
// online. A message that fails to persist is delivered to no one.
type MessageRouter struct {
	store    storage.Gateway
	registry *Registry
	metrics  *serverMetrics
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func newMessageRouter(store storage.Gateway, registry *Registry, metrics *serverMetrics, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		store:    store,
		registry: registry,
		metrics:  metrics,
		logger:   logger.Named("router"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (r *MessageRouter) persistenceFailed(op string, s *Session, err error) {
	r.metrics.recordPersistenceError(op)
	r.logger.Error("persistence failed",
		zap.String("op", op),
		zap.String("user_id", s.UserID.String()),
		zap.Error(err))
}

// deliver sends env to userID if that user is registered with an open
// connection.
func (r *MessageRouter) deliver(userID models.UserID, kind protocol.Kind, env any) bool {
	recipient, ok := r.registry.Get(userID)
	if !ok || !recipient.IsOpen() {
		return false
	}
	if !recipient.Send(env) {
		return false
	}
	r.metrics.recordDelivery(kind)
	return true
}

// RouteDirect stores a direct message, delivers it to an online recipient
// and always acknowledges the sender with message_sent.
func (r *MessageRouter) RouteDirect(ctx context.Context, s *Session, to models.UserID, content string) {
	if to == "" || content == "" {
		r.metrics.recordDrop("missing_field")
		return
	}

	msg := models.DirectMessage{
		MessageID:    r.newID(),
		From:         s.UserID,
		FromUsername: s.Username,
		To:           to,
		Content:      content,
		Timestamp:    r.now().UTC(),
	}
	if err := r.store.AppendDirect(ctx, msg); err != nil {
		r.persistenceFailed("append_direct", s, err)
		return
	}

	r.deliver(to, protocol.KindMessage, protocol.DirectDelivery{Type: protocol.KindMessage, Message: msg})
	s.Send(protocol.DirectDelivery{Type: protocol.KindMessageSent, Message: msg})
}

// loadMemberGroup returns the group only if s belongs to it.
func (r *MessageRouter) loadMemberGroup(ctx context.Context, s *Session, groupID string) (*models.Group, bool) {
	group, err := r.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrGroupNotFound) {
		r.metrics.recordDrop("unknown_group")
		return nil, false
	}
	if err != nil {
		r.persistenceFailed("get_group", s, err)
		return nil, false
	}
	if !group.HasMember(s.UserID) {
		r.metrics.recordDrop("not_member")
		r.logger.Debug("sender is not a group member",
			zap.String("user_id", s.UserID.String()),
			zap.String("group_id", groupID))
		return nil, false
	}
	return group, true
}

// RouteGroup stores a group message and fans it out to every online member,
// the sender included. Unknown groups and non-members are ignored.
func (r *MessageRouter) RouteGroup(ctx context.Context, s *Session, groupID, content string) {
	if groupID == "" || content == "" {
		r.metrics.recordDrop("missing_field")
		return
	}

	group, ok := r.loadMemberGroup(ctx, s, groupID)
	if !ok {
		return
	}

	msg := models.GroupMessage{
		MessageID:    r.newID(),
		GroupID:      group.GroupID,
		From:         s.UserID,
		FromUsername: s.Username,
		Content:      content,
		Timestamp:    r.now().UTC(),
	}
	if err := r.store.AppendGroup(ctx, msg); err != nil {
		r.persistenceFailed("append_group", s, err)
		return
	}

	env := protocol.GroupDelivery{Type: protocol.KindGroupMessage, Message: msg, GroupName: group.Name}
	delivered := 0
	for _, member := range group.Members {
		if r.deliver(member, protocol.KindGroupMessage, env) {
			delivered++
		}
	}
	r.logger.Debug("group message routed",
		zap.String("group_id", group.GroupID),
		zap.Int("recipients", delivered))
}

// CreateGroup stores a new group, adding the creator when missing, and
// announces it to every online member. members must be present; an empty
// list yields a group of one.
func (r *MessageRouter) CreateGroup(ctx context.Context, s *Session, name string, members []models.UserID) {
	if name == "" || members == nil {
		r.metrics.recordDrop("missing_field")
		return
	}

	group := models.Group{
		GroupID:   r.newID(),
		Name:      name,
		Members:   models.NormalizeMembers(members, s.UserID),
		CreatedBy: s.UserID,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.CreateGroup(ctx, group); err != nil {
		r.persistenceFailed("create_group", s, err)
		return
	}

	env := protocol.GroupCreated{Type: protocol.KindGroupCreated, Group: group}
	for _, member := range group.Members {
		r.deliver(member, protocol.KindGroupCreated, env)
	}
}

// DirectHistory answers get_messages with the conversation between s and
// other in timestamp order.
func (r *MessageRouter) DirectHistory(ctx context.Context, s *Session, other models.UserID) {
	if other == "" {
		r.metrics.recordDrop("missing_field")
		return
	}

	messages, err := r.store.QueryDirect(ctx, s.UserID, other)
	if err != nil {
		r.persistenceFailed("query_direct", s, err)
		return
	}
	if messages == nil {
		messages = []models.DirectMessage{}
	}

	s.Send(protocol.MessageHistory{
		Type:        protocol.KindMessageHistory,
		Messages:    messages,
		OtherUserID: other,
	})
}

// GroupHistory answers get_group_messages for a group s belongs to.
func (r *MessageRouter) GroupHistory(ctx context.Context, s *Session, groupID string) {
	if groupID == "" {
		r.metrics.recordDrop("missing_field")
		return
	}

	if _, ok := r.loadMemberGroup(ctx, s, groupID); !ok {
		return
	}

	messages, err := r.store.QueryGroup(ctx, groupID)
	if err != nil {
		r.persistenceFailed("query_group", s, err)
		return
	}
	if messages == nil {
		messages = []models.GroupMessage{}
	}

	s.Send(protocol.GroupMessageHistory{
		Type:     protocol.KindGroupMessageHistory,
		Messages: messages,
		GroupID:  groupID,
	})
}

// SendGroupList pushes the groups s belongs to.
func (r *MessageRouter) SendGroupList(ctx context.Context, s *Session) {
	groups, err := r.store.GetGroupsForUser(ctx, s.UserID)
	if err != nil {
		r.persistenceFailed("list_groups", s, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	s.Send(protocol.GroupList{Type: protocol.KindGroupList, Groups: groups})
}
