// Package models defines the chat records that flow between the dispatch
// loop and the persistence backends.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserID identifies an account. Clients may send it as a JSON string or a
// JSON number; it is always stored and emitted as a string.
type UserID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string {
	return string(id)
}

// DirectMessage is a one-to-one text message.
type DirectMessage struct {
	MessageID    string    `json:"messageId"`
	From         UserID    `json:"from"`
	FromUsername string    `json:"fromUsername"`
	To           UserID    `json:"to"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}

// GroupMessage is a text message addressed to every member of a group.
type GroupMessage struct {
	MessageID    string    `json:"messageId"`
	GroupID      string    `json:"groupId"`
	From         UserID    `json:"from"`
	FromUsername string    `json:"fromUsername"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}

// Group is a named, fixed set of members.
type Group struct {
	GroupID   string    `json:"groupId"`
	Name      string    `json:"name"`
	Members   []UserID  `json:"members"`
	CreatedBy UserID    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID UserID) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// NormalizeMembers removes empty and duplicate IDs while keeping the first
// occurrence order, then appends creator if it is missing.
func NormalizeMembers(members []UserID, creator UserID) []UserID {
	seen := make(map[UserID]struct{}, len(members)+1)
	out := make([]UserID, 0, len(members)+1)
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if _, ok := seen[creator]; !ok && creator != "" {
		out = append(out, creator)
	}
	return out
}
