package messages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/timespeed/go/internal/models"
)

// Version is the envelope schema version written by this build.
const Version = 1

// Kind tags a message on the wire.
type Kind string

const (
	KindManipulate            Kind = "Manipulate"
	KindManipulateForLocation Kind = "ManipulateForLocation"
	KindStateReply            Kind = "StateReply"
	KindForbidden             Kind = "Forbidden"
	KindInfo                  Kind = "Info"
	KindConfigState           Kind = "ConfigState"
	KindVotePause             Kind = "VotePause"
)

// Kinds lists every kind this build understands.
var Kinds = []Kind{
	KindManipulate,
	KindManipulateForLocation,
	KindStateReply,
	KindForbidden,
	KindInfo,
	KindConfigState,
	KindVotePause,
}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsReply reports whether k only answers an earlier request.
func (k Kind) IsReply() bool {
	switch k {
	case KindStateReply, KindForbidden, KindInfo:
		return true
	}
	return false
}

// ErrUnknownKind is returned for kinds or payload types outside Kinds.
var ErrUnknownKind = errors.New("unknown message kind")

// Envelope is the self-describing wrapper for every mod message.
type Envelope struct {
	Version int             `json:"v"`
	Kind    Kind            `json:"kind"`
	ModID   string          `json:"mod_id"`
	Sender  models.PlayerID `json:"sender"`
	Data    json.RawMessage `json:"data"`
}

// KindOf returns the kind for a payload value.
func KindOf(payload any) (Kind, error) {
	switch payload.(type) {
	case ManipulatePayload:
		return KindManipulate, nil
	case ManipulateForLocationPayload:
		return KindManipulateForLocation, nil
	case StateReplyPayload:
		return KindStateReply, nil
	case ForbiddenPayload:
		return KindForbidden, nil
	case InfoPayload:
		return KindInfo, nil
	case ConfigStatePayload:
		return KindConfigState, nil
	case VotePausePayload:
		return KindVotePause, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownKind, payload)
	}
}

// NewEnvelope wraps payload, deriving its kind.
func NewEnvelope(modID string, sender models.PlayerID, payload any) (Envelope, error) {
	kind, err := KindOf(payload)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{
		Version: Version,
		Kind:    kind,
		ModID:   modID,
		Sender:  sender,
		Data:    data,
	}, nil
}

// Encode marshals an envelope for the transport.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode unmarshals an envelope without touching its payload.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// ParsePayload decodes the envelope data into the payload type for its kind.
// Unknown kinds return ErrUnknownKind.
func ParsePayload(env Envelope) (any, error) {
	switch env.Kind {
	case KindManipulate:
		return parse[ManipulatePayload](env)
	case KindManipulateForLocation:
		return parse[ManipulateForLocationPayload](env)
	case KindStateReply:
		return parse[StateReplyPayload](env)
	case KindForbidden:
		return parse[ForbiddenPayload](env)
	case KindInfo:
		return parse[InfoPayload](env)
	case KindConfigState:
		return parse[ConfigStatePayload](env)
	case KindVotePause:
		return parse[VotePausePayload](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func parse[T any](env Envelope) (T, error) {
	var payload T
	if len(env.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
	}
	return payload, nil
}
