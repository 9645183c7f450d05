// Package protocol defines the closed set of envelopes exchanged over a chat
// connection. Every frame carries exactly one JSON envelope with a "type"
// discriminator.
package protocol

import (
	"encoding/json"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
)

// Kind is the envelope discriminator.
type Kind string

// Client to server kinds.
const (
	KindAuth               Kind = "auth"
	KindMessage            Kind = "message"
	KindGroupMessage       Kind = "group_message"
	KindCreateGroup        Kind = "create_group"
	KindGetMessages        Kind = "get_messages"
	KindGetGroupMessages   Kind = "get_group_messages"
	KindTyping             Kind = "typing"
	KindCallRequest        Kind = "call_request"
	KindCallResponse       Kind = "call_response"
	KindWebRTCOffer        Kind = "webrtc_offer"
	KindWebRTCAnswer       Kind = "webrtc_answer"
	KindWebRTCICECandidate Kind = "webrtc_ice_candidate"
	KindCallEnd            Kind = "call_end"
)

// Server to client kinds. Some share a wire name with a client kind
// (message, group_message, typing, call_response, webrtc_*).
const (
	KindAuthSuccess         Kind = "auth_success"
	KindAuthError           Kind = "auth_error"
	KindUserStatus          Kind = "user_status"
	KindOnlineUsers         Kind = "online_users"
	KindGroupList           Kind = "group_list"
	KindMessageSent         Kind = "message_sent"
	KindGroupCreated        Kind = "group_created"
	KindMessageHistory      Kind = "message_history"
	KindGroupMessageHistory Kind = "group_message_history"
	KindIncomingCall        Kind = "incoming_call"
	KindCallEnded           Kind = "call_ended"
	KindCallError           Kind = "call_error"
	KindError               Kind = "error"
)

// Presence statuses carried by user_status and online_users.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Inbound is implemented by every client to server envelope.
type Inbound interface {
	Kind() Kind
}

// Signal is an inbound call-negotiation envelope. The relay never inspects
// the payload; it only routes on Target and rebuilds the outbound envelope
// with the verified sender.
type Signal interface {
	Inbound
	Target() models.UserID
	Forward(from models.UserID, fromUsername string) any
}

// Auth carries the bearer credential issued by the login service.
type Auth struct {
	Token string `json:"token"`
}

// SendMessage requests a direct message to another user.
type SendMessage struct {
	To      models.UserID `json:"to"`
	Content string        `json:"content"`
}

// SendGroupMessage requests a message to every member of a group.
type SendGroupMessage struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

// CreateGroup requests a new group. Members is nil when the field was
// absent, which is distinct from an empty list.
type CreateGroup struct {
	Name    string          `json:"name"`
	Members []models.UserID `json:"members"`
}

// GetMessages requests the direct history with another user.
type GetMessages struct {
	OtherUserID models.UserID `json:"otherUserId"`
}

// GetGroupMessages requests the history of a group.
type GetGroupMessages struct {
	GroupID string `json:"groupId"`
}

// Typing is a transient typing indicator.
type Typing struct {
	To       models.UserID   `json:"to"`
	IsTyping json.RawMessage `json:"isTyping,omitempty"`
}

// CallRequest rings another user.
type CallRequest struct {
	To       models.UserID   `json:"to"`
	CallType json.RawMessage `json:"callType,omitempty"`
}

// CallResponse accepts or rejects a ring.
type CallResponse struct {
	To       models.UserID   `json:"to"`
	Accepted json.RawMessage `json:"accepted,omitempty"`
}

// WebRTCOffer carries an SDP offer.
type WebRTCOffer struct {
	To    models.UserID   `json:"to"`
	Offer json.RawMessage `json:"offer,omitempty"`
}

// WebRTCAnswer carries an SDP answer.
type WebRTCAnswer struct {
	To     models.UserID   `json:"to"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

// WebRTCICECandidate carries one ICE candidate.
type WebRTCICECandidate struct {
	To        models.UserID   `json:"to"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// CallEnd hangs up.
type CallEnd struct {
	To models.UserID `json:"to"`
}

func (*Auth) Kind() Kind               { return KindAuth }
func (*SendMessage) Kind() Kind        { return KindMessage }
func (*SendGroupMessage) Kind() Kind   { return KindGroupMessage }
func (*CreateGroup) Kind() Kind        { return KindCreateGroup }
func (*GetMessages) Kind() Kind        { return KindGetMessages }
func (*GetGroupMessages) Kind() Kind   { return KindGetGroupMessages }
func (*Typing) Kind() Kind             { return KindTyping }
func (*CallRequest) Kind() Kind        { return KindCallRequest }
func (*CallResponse) Kind() Kind       { return KindCallResponse }
func (*WebRTCOffer) Kind() Kind        { return KindWebRTCOffer }
func (*WebRTCAnswer) Kind() Kind       { return KindWebRTCAnswer }
func (*WebRTCICECandidate) Kind() Kind { return KindWebRTCICECandidate }
func (*CallEnd) Kind() Kind            { return KindCallEnd }

func (m *CallRequest) Target() models.UserID        { return m.To }
func (m *CallResponse) Target() models.UserID       { return m.To }
func (m *WebRTCOffer) Target() models.UserID        { return m.To }
func (m *WebRTCAnswer) Target() models.UserID       { return m.To }
func (m *WebRTCICECandidate) Target() models.UserID { return m.To }
func (m *CallEnd) Target() models.UserID            { return m.To }

func (m *CallRequest) Forward(from models.UserID, fromUsername string) any {
	return IncomingCall{Type: KindIncomingCall, From: from, FromUsername: fromUsername, CallType: m.CallType}
}

func (m *CallResponse) Forward(from models.UserID, _ string) any {
	return CallResponseForward{Type: KindCallResponse, From: from, Accepted: m.Accepted}
}

func (m *WebRTCOffer) Forward(from models.UserID, _ string) any {
	return OfferForward{Type: KindWebRTCOffer, From: from, Offer: m.Offer}
}

func (m *WebRTCAnswer) Forward(from models.UserID, _ string) any {
	return AnswerForward{Type: KindWebRTCAnswer, From: from, Answer: m.Answer}
}

func (m *WebRTCICECandidate) Forward(from models.UserID, _ string) any {
	return CandidateForward{Type: KindWebRTCICECandidate, From: from, Candidate: m.Candidate}
}

func (m *CallEnd) Forward(from models.UserID, _ string) any {
	return CallEnded{Type: KindCallEnded, From: from}
}
