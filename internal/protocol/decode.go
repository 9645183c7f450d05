package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed means the frame is not a JSON object with a string "type".
	// It is the only decode failure reported back to the sender.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownKind means the type discriminator is not in the catalogue.
	ErrUnknownKind = errors.New("unknown envelope type")
	// ErrInvalidBody means the type is known but its fields do not decode.
	ErrInvalidBody = errors.New("invalid envelope body")
)

// PeekKind returns the discriminator of a raw frame without decoding the
// rest of it.
func PeekKind(raw []byte) (Kind, error) {
	if !gjson.ValidBytes(raw) {
		return "", ErrMalformed
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return "", ErrMalformed
	}
	typ := root.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return "", ErrMalformed
	}
	return Kind(typ.Str), nil
}

// Decode classifies a raw client frame and decodes it into its variant.
func Decode(raw []byte) (Inbound, error) {
	kind, err := PeekKind(raw)
	if err != nil {
		return nil, err
	}

	var msg Inbound
	switch kind {
	case KindAuth:
		msg = &Auth{}
	case KindMessage:
		msg = &SendMessage{}
	case KindGroupMessage:
		msg = &SendGroupMessage{}
	case KindCreateGroup:
		msg = &CreateGroup{}
	case KindGetMessages:
		msg = &GetMessages{}
	case KindGetGroupMessages:
		msg = &GetGroupMessages{}
	case KindTyping:
		msg = &Typing{}
	case KindCallRequest:
		msg = &CallRequest{}
	case KindCallResponse:
		msg = &CallResponse{}
	case KindWebRTCOffer:
		msg = &WebRTCOffer{}
	case KindWebRTCAnswer:
		msg = &WebRTCAnswer{}
	case KindWebRTCICECandidate:
		msg = &WebRTCICECandidate{}
	case KindCallEnd:
		msg = &CallEnd{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBody, kind, err)
	}
	return msg, nil
}
