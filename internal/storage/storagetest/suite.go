// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend.
type Factory func(t *testing.T) storage.Gateway

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("DirectHistoryBothDirections", func(t *testing.T) { testDirectHistory(t, newStore(t)) })
	t.Run("DirectHistoryTimestampOrder", func(t *testing.T) { testDirectOrdering(t, newStore(t)) })
	t.Run("DirectHistoryIsolation", func(t *testing.T) { testDirectIsolation(t, newStore(t)) })
	t.Run("DirectHistoryDelimiterInUserID", func(t *testing.T) { testDirectDelimiterIDs(t, newStore(t)) })
	t.Run("GroupLifecycle", func(t *testing.T) { testGroupLifecycle(t, newStore(t)) })
	t.Run("GroupNotFound", func(t *testing.T) { testGroupNotFound(t, newStore(t)) })
	t.Run("GroupMessages", func(t *testing.T) { testGroupMessages(t, newStore(t)) })
}

func testDirectHistory(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	first := models.DirectMessage{MessageID: "m1", From: "1", FromUsername: "alice", To: "2", Content: "hi", Timestamp: base}
	reply := models.DirectMessage{MessageID: "m2", From: "2", FromUsername: "bob", To: "1", Content: "hey", Timestamp: base.Add(time.Second)}
	require.NoError(t, s.AppendDirect(ctx, first))
	require.NoError(t, s.AppendDirect(ctx, reply))

	for _, pair := range [][2]models.UserID{{"1", "2"}, {"2", "1"}} {
		got, err := s.QueryDirect(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "m1", got[0].MessageID)
		assert.Equal(t, "m2", got[1].MessageID)
		assert.Equal(t, models.UserID("1"), got[0].From)
		assert.Equal(t, models.UserID("2"), got[0].To)
		assert.Equal(t, "alice", got[0].FromUsername)
		assert.Equal(t, "hi", got[0].Content)
		assert.True(t, got[0].Timestamp.Equal(base), "timestamp %v", got[0].Timestamp)
		assert.False(t, got[0].Read)
	}
}

func testDirectOrdering(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	msgs := []models.DirectMessage{
		{MessageID: "late", From: "1", To: "2", Content: "c", Timestamp: base.Add(2 * time.Second)},
		{MessageID: "early", From: "2", To: "1", Content: "a", Timestamp: base},
		{MessageID: "tie-a", From: "1", To: "2", Content: "b1", Timestamp: base.Add(time.Second)},
		{MessageID: "tie-b", From: "1", To: "2", Content: "b2", Timestamp: base.Add(time.Second)},
	}
	for _, m := range msgs {
		require.NoError(t, s.AppendDirect(ctx, m))
	}

	got, err := s.QueryDirect(ctx, "1", "2")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.MessageID)
	}
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids)
}

func testDirectIsolation(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	require.NoError(t, s.AppendDirect(ctx, models.DirectMessage{MessageID: "a", From: "1", To: "2", Content: "x", Timestamp: base}))
	require.NoError(t, s.AppendDirect(ctx, models.DirectMessage{MessageID: "b", From: "1", To: "3", Content: "y", Timestamp: base}))

	got, err := s.QueryDirect(ctx, "2", "3")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.QueryDirect(ctx, "3", "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].MessageID)
}

func testDirectDelimiterIDs(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	require.NoError(t, s.AppendDirect(ctx, models.DirectMessage{MessageID: "private", From: "1", To: "2:3", Content: "for 2:3 only", Timestamp: base}))
	require.NoError(t, s.AppendDirect(ctx, models.DirectMessage{MessageID: "other", From: "1:2", To: "3", Content: "for 3 only", Timestamp: base}))

	got, err := s.QueryDirect(ctx, "1:2", "3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].MessageID)

	got, err = s.QueryDirect(ctx, "2:3", "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "private", got[0].MessageID)

	got, err = s.QueryDirect(ctx, "1", "2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testGroupLifecycle(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	team := models.Group{GroupID: "g1", Name: "team", Members: []models.UserID{"2", "3", "1"}, CreatedBy: "1", CreatedAt: base}
	other := models.Group{GroupID: "g2", Name: "other", Members: []models.UserID{"3", "4"}, CreatedBy: "4", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateGroup(ctx, team))
	require.NoError(t, s.CreateGroup(ctx, other))

	got, err := s.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "team", got.Name)
	assert.Equal(t, models.UserID("1"), got.CreatedBy)
	assert.ElementsMatch(t, []models.UserID{"1", "2", "3"}, got.Members)
	assert.True(t, got.CreatedAt.Equal(base))

	groups, err := s.GetGroupsForUser(ctx, "3")
	require.NoError(t, err)
	names := []string{}
	for _, g := range groups {
		names = append(names, g.Name)
	}
	assert.ElementsMatch(t, []string{"team", "other"}, names)

	groups, err = s.GetGroupsForUser(ctx, "1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].GroupID)

	groups, err = s.GetGroupsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func testGroupNotFound(t *testing.T, s storage.Gateway) {
	_, err := s.GetGroup(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrGroupNotFound), "got %v", err)
}

func testGroupMessages(t *testing.T, s storage.Gateway) {
	ctx := context.Background()
	require.NoError(t, s.CreateGroup(ctx, models.Group{GroupID: "g", Name: "g", Members: []models.UserID{"1", "2"}, CreatedBy: "1", CreatedAt: base}))
	require.NoError(t, s.AppendGroup(ctx, models.GroupMessage{MessageID: "2", GroupID: "g", From: "2", FromUsername: "bob", Content: "second", Timestamp: base.Add(time.Second)}))
	require.NoError(t, s.AppendGroup(ctx, models.GroupMessage{MessageID: "1", GroupID: "g", From: "1", FromUsername: "alice", Content: "first", Timestamp: base}))

	got, err := s.QueryGroup(ctx, "g")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "alice", got[0].FromUsername)
	assert.Equal(t, "second", got[1].Content)

	got, err = s.QueryGroup(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}
