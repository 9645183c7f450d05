// Package memory is an in-process storage backend. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
)

// Store keeps messages in append order and groups by ID.
type Store struct {
	mu            sync.RWMutex
	direct        map[string][]models.DirectMessage
	groupMessages map[string][]models.GroupMessage
	groups        map[string]models.Group
	groupOrder    []string
}

var _ storage.Gateway = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		direct:        make(map[string][]models.DirectMessage),
		groupMessages: make(map[string][]models.GroupMessage),
		groups:        make(map[string]models.Group),
	}
}

func (s *Store) AppendDirect(_ context.Context, msg models.DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.ConversationKey(msg.From, msg.To)
	s.direct[key] = append(s.direct[key], msg)
	return nil
}

func (s *Store) AppendGroup(_ context.Context, msg models.GroupMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groupMessages[msg.GroupID] = append(s.groupMessages[msg.GroupID], msg)
	return nil
}

func (s *Store) QueryDirect(_ context.Context, user1, user2 models.UserID) ([]models.DirectMessage, error) {
	s.mu.RLock()
	var out []models.DirectMessage
	for _, msg := range s.direct[storage.ConversationKey(user1, user2)] {
		if storage.InConversation(msg, user1, user2) {
			out = append(out, msg)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) QueryGroup(_ context.Context, groupID string) ([]models.GroupMessage, error) {
	s.mu.RLock()
	out := append([]models.GroupMessage(nil), s.groupMessages[groupID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) CreateGroup(_ context.Context, group models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.GroupID]; exists {
		return fmt.Errorf("group %s already exists", group.GroupID)
	}
	group.Members = append([]models.UserID(nil), group.Members...)
	s.groups[group.GroupID] = group
	s.groupOrder = append(s.groupOrder, group.GroupID)
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[groupID]
	if !ok {
		return nil, storage.ErrGroupNotFound
	}
	group.Members = append([]models.UserID(nil), group.Members...)
	return &group, nil
}

func (s *Store) GetGroupsForUser(_ context.Context, userID models.UserID) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Group{}
	for _, id := range s.groupOrder {
		group := s.groups[id]
		if !group.HasMember(userID) {
			continue
		}
		group.Members = append([]models.UserID(nil), group.Members...)
		out = append(out, group)
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
