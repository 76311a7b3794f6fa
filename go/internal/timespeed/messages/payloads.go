package messages

import "github.com/mcdev12/timespeed/go/internal/models"

// Payload types for every message kind. Optional fields are pointers; a nil
// pointer means "unchanged" and is omitted on the wire.

// ManipulatePayload asks the host to freeze/unfreeze or change the tick interval.
type ManipulatePayload struct {
	FreezeMethod models.FreezeMethod `json:"freeze_method"`
	Increase     *bool               `json:"increase,omitempty"`
}

// ManipulateForLocationPayload is a manipulate request made from a specific location.
type ManipulateForLocationPayload struct {
	FreezeMethod models.FreezeMethod `json:"freeze_method"`
	Increase     *bool               `json:"increase,omitempty"`
	Location     string              `json:"location"`
}

// StateReplyPayload carries the host's feedback text back to peers.
type StateReplyPayload struct {
	Message   string `json:"message"`
	TimeoutMs int    `json:"timeout_ms"`
}

// ForbiddenPayload tells a peer its request was refused.
type ForbiddenPayload struct {
	Reason models.ForbiddenReason `json:"reason"`
}

// InfoPayload is free-form text shown to the receiver.
type InfoPayload struct {
	Message *string `json:"message,omitempty"`
}

// ConfigStatePayload mirrors the host's policy to peers.
type ConfigStatePayload struct {
	HostOnly      *bool    `json:"host_only,omitempty"`
	VoteEnabled   *bool    `json:"vote_enabled,omitempty"`
	VoteThreshold *float64 `json:"vote_threshold,omitempty"`
}

// VotePausePayload casts a vote and/or asks the host to close the ballot.
type VotePausePayload struct {
	VoteCast *bool `json:"vote_cast,omitempty"`
	Finish   *bool `json:"finish,omitempty"`
}

// ConfigStateFromPolicy builds a full ConfigState from a policy.
func ConfigStateFromPolicy(p models.HostPolicy) ConfigStatePayload {
	return ConfigStatePayload{
		HostOnly:      Bool(p.HostOnly),
		VoteEnabled:   Bool(p.VoteEnabled),
		VoteThreshold: Float64(p.VoteThreshold),
	}
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
