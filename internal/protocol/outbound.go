package protocol

import (
	"encoding/json"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
)

// User-facing error texts.
const (
	MsgInvalidToken     = "Invalid token"
	MsgUserUnavailable  = "User is not available"
	MsgProcessingFailed = "Error processing message"
)

// AuthSuccess confirms the handshake.
type AuthSuccess struct {
	Type     Kind          `json:"type"`
	UserID   models.UserID `json:"userId"`
	Username string        `json:"username"`
}

// ErrorEnvelope is used for auth_error, call_error and error.
type ErrorEnvelope struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// UserStatus announces a presence change.
type UserStatus struct {
	Type     Kind          `json:"type"`
	UserID   models.UserID `json:"userId"`
	Username string        `json:"username"`
	Status   string        `json:"status"`
}

// PresenceEntry is one row of online_users.
type PresenceEntry struct {
	UserID   models.UserID `json:"userId"`
	Username string        `json:"username"`
	Status   string        `json:"status"`
}

// OnlineUsers is the presence snapshot sent after authentication.
type OnlineUsers struct {
	Type  Kind            `json:"type"`
	Users []PresenceEntry `json:"users"`
}

// GroupList lists the groups a user belongs to.
type GroupList struct {
	Type   Kind           `json:"type"`
	Groups []models.Group `json:"groups"`
}

// DirectDelivery is used for both message (to the recipient) and
// message_sent (to the sender).
type DirectDelivery struct {
	Type    Kind                 `json:"type"`
	Message models.DirectMessage `json:"message"`
}

// GroupDelivery is the group_message fan-out envelope.
type GroupDelivery struct {
	Type      Kind                `json:"type"`
	Message   models.GroupMessage `json:"message"`
	GroupName string              `json:"groupName"`
}

// GroupCreated tells each member about a new group.
type GroupCreated struct {
	Type  Kind         `json:"type"`
	Group models.Group `json:"group"`
}

// MessageHistory answers get_messages.
type MessageHistory struct {
	Type        Kind                   `json:"type"`
	Messages    []models.DirectMessage `json:"messages"`
	OtherUserID models.UserID          `json:"otherUserId"`
}

// GroupMessageHistory answers get_group_messages.
type GroupMessageHistory struct {
	Type     Kind                  `json:"type"`
	Messages []models.GroupMessage `json:"messages"`
	GroupID  string                `json:"groupId"`
}

// TypingForward relays a typing indicator.
type TypingForward struct {
	Type     Kind            `json:"type"`
	From     models.UserID   `json:"from"`
	Username string          `json:"username"`
	IsTyping json.RawMessage `json:"isTyping,omitempty"`
}

// IncomingCall is the forwarded call_request.
type IncomingCall struct {
	Type         Kind            `json:"type"`
	From         models.UserID   `json:"from"`
	FromUsername string          `json:"fromUsername"`
	CallType     json.RawMessage `json:"callType,omitempty"`
}

// CallResponseForward is the forwarded call_response.
type CallResponseForward struct {
	Type     Kind            `json:"type"`
	From     models.UserID   `json:"from"`
	Accepted json.RawMessage `json:"accepted,omitempty"`
}

// OfferForward is the forwarded webrtc_offer.
type OfferForward struct {
	Type  Kind            `json:"type"`
	From  models.UserID   `json:"from"`
	Offer json.RawMessage `json:"offer,omitempty"`
}

// AnswerForward is the forwarded webrtc_answer.
type AnswerForward struct {
	Type   Kind            `json:"type"`
	From   models.UserID   `json:"from"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

// CandidateForward is the forwarded webrtc_ice_candidate.
type CandidateForward struct {
	Type      Kind            `json:"type"`
	From      models.UserID   `json:"from"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// CallEnded is the forwarded call_end.
type CallEnded struct {
	Type Kind          `json:"type"`
	From models.UserID `json:"from"`
}

func NewAuthError() ErrorEnvelope {
	return ErrorEnvelope{Type: KindAuthError, Message: MsgInvalidToken}
}

func NewCallError() ErrorEnvelope {
	return ErrorEnvelope{Type: KindCallError, Message: MsgUserUnavailable}
}

func NewProtocolError() ErrorEnvelope {
	return ErrorEnvelope{Type: KindError, Message: MsgProcessingFailed}
}
