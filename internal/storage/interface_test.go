package storage

import (
	"testing"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestConversationKey(t *testing.T) {
	assert.Equal(t, ConversationKey("1", "2"), ConversationKey("2", "1"))
	assert.Equal(t, "1:1:2", ConversationKey("2", "1"))
	assert.NotEqual(t, ConversationKey("1", "2:3"), ConversationKey("1:2", "3"))
	assert.NotEqual(t, ConversationKey("a", ""), ConversationKey("", "a:"))
}

func TestInConversation(t *testing.T) {
	msg := models.DirectMessage{From: "1", To: "2:3"}

	assert.True(t, InConversation(msg, "1", "2:3"))
	assert.True(t, InConversation(msg, "2:3", "1"))
	assert.False(t, InConversation(msg, "1:2", "3"))
	assert.False(t, InConversation(msg, "1", "2"))
}
