// Package redis persists chat data in Redis lists, strings and sets.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Key layout
const (
	directPrefix     = "chat:dm:"    // chat:dm:{len(a)}:{a}:{b} - list of direct messages
	groupPrefix      = "chat:group:" // chat:group:{id} - group record
	groupMsgSuffix   = ":messages"   // chat:group:{id}:messages - list of group messages
	userGroupsPrefix = "chat:user:"  // chat:user:{id}:groups - set of group ids
	userGroupsSuffix = ":groups"
)

// createGroupScript stores the group record (KEYS[1]) and adds the group ID
// to every member index (KEYS[2:]) in one step. A failed index write undoes
// the record and the indexes already written.
var createGroupScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
for i = 2, #KEYS do
	local res = redis.pcall("SADD", KEYS[i], ARGV[2])
	if type(res) == "table" and res.err then
		for j = 2, i - 1 do
			redis.call("SREM", KEYS[j], ARGV[2])
		end
		redis.call("DEL", KEYS[1])
		return res
	end
end
return 1
`)

// Store is a storage.Gateway backed by a Redis client.
type Store struct {
	rdb *redis.Client
}

var _ storage.Gateway = (*Store)(nil)

// New wraps an existing client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Dial connects to addr and verifies the server answers PING.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(rdb), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func directKey(a, b models.UserID) string {
	return directPrefix + storage.ConversationKey(a, b)
}

func groupKey(groupID string) string {
	return groupPrefix + groupID
}

func groupMessagesKey(groupID string) string {
	return groupPrefix + groupID + groupMsgSuffix
}

func userGroupsKey(userID models.UserID) string {
	return userGroupsPrefix + string(userID) + userGroupsSuffix
}

func (s *Store) AppendDirect(ctx context.Context, msg models.DirectMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal direct message: %w", err)
	}
	if err := s.rdb.RPush(ctx, directKey(msg.From, msg.To), data).Err(); err != nil {
		return fmt.Errorf("failed to append direct message: %w", err)
	}
	return nil
}

func (s *Store) AppendGroup(ctx context.Context, msg models.GroupMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal group message: %w", err)
	}
	if err := s.rdb.RPush(ctx, groupMessagesKey(msg.GroupID), data).Err(); err != nil {
		return fmt.Errorf("failed to append group message: %w", err)
	}
	return nil
}

func (s *Store) QueryDirect(ctx context.Context, user1, user2 models.UserID) ([]models.DirectMessage, error) {
	raw, err := s.rdb.LRange(ctx, directKey(user1, user2), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read direct messages: %w", err)
	}

	messages := make([]models.DirectMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.DirectMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode direct message: %w", err)
		}
		if !storage.InConversation(msg, user1, user2) {
			continue
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })
	return messages, nil
}

func (s *Store) QueryGroup(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	raw, err := s.rdb.LRange(ctx, groupMessagesKey(groupID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read group messages: %w", err)
	}

	messages := make([]models.GroupMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.GroupMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode group message: %w", err)
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })
	return messages, nil
}

func (s *Store) CreateGroup(ctx context.Context, group models.Group) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}

	keys := make([]string, 0, len(group.Members)+1)
	keys = append(keys, groupKey(group.GroupID))
	for _, member := range group.Members {
		keys = append(keys, userGroupsKey(member))
	}

	created, err := createGroupScript.Run(ctx, s.rdb, keys, data, group.GroupID).Int()
	if err != nil {
		return fmt.Errorf("failed to store group: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("group %s already exists", group.GroupID)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	data, err := s.rdb.Get(ctx, groupKey(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	var group models.Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("failed to decode group: %w", err)
	}
	return &group, nil
}

func (s *Store) GetGroupsForUser(ctx context.Context, userID models.UserID) ([]models.Group, error) {
	ids, err := s.rdb.SMembers(ctx, userGroupsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}

	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if errors.Is(err, storage.ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].GroupID < groups[j].GroupID
		}
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, nil
}
