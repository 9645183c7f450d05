// Package storage defines the persistence gateway used by the message
// router. Backends live in sub-packages.
package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
)

// ErrGroupNotFound is returned by GetGroup for an unknown group ID.
var ErrGroupNotFound = errors.New("group not found")

// MessageStore persists direct and group messages. Query results are
// ordered by timestamp ascending, ties broken by append order.
type MessageStore interface {
	AppendDirect(ctx context.Context, msg models.DirectMessage) error
	AppendGroup(ctx context.Context, msg models.GroupMessage) error
	QueryDirect(ctx context.Context, user1, user2 models.UserID) ([]models.DirectMessage, error)
	QueryGroup(ctx context.Context, groupID string) ([]models.GroupMessage, error)
}

// GroupStore persists group records and their membership.
type GroupStore interface {
	CreateGroup(ctx context.Context, group models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupsForUser(ctx context.Context, userID models.UserID) ([]models.Group, error)
}

// Gateway is everything the router needs from a backend.
type Gateway interface {
	MessageStore
	GroupStore
	Close() error
}

// ConversationKey returns an order-independent key for a pair of users.
// User IDs may contain ':', so the first ID is length-prefixed.
func ConversationKey(a, b models.UserID) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + string(a) + ":" + string(b)
}

// InConversation reports whether msg was exchanged between a and b, in
// either direction.
func InConversation(msg models.DirectMessage, a, b models.UserID) bool {
	return (msg.From == a && msg.To == b) || (msg.From == b && msg.To == a)
}
