// Package rolegate is the authorization boundary for time manipulation.
package rolegate

import "github.com/mcdev12/timespeed/go/internal/models"

// Action is a requested time manipulation.
type Action string

const (
	ActionToggleFreeze    Action = "toggle_freeze"
	ActionChangeInterval  Action = "change_interval"
	ActionReloadConfig    Action = "reload_config"
	ActionBroadcastConfig Action = "broadcast_config"
)

// Decision is what the caller should do with a request.
type Decision int

const (
	Reject Decision = iota
	ApplyLocally
	Forward
)

func (d Decision) String() string {
	switch d {
	case ApplyLocally:
		return "ApplyLocally"
	case Forward:
		return "Forward"
	default:
		return "Reject"
	}
}

// Session is the local instance's view of the world when the request is evaluated.
type Session struct {
	WorldReady      bool
	IsHost          bool
	PlayerFree      bool
	TextInputActive bool
	EventActive     bool
}

// Request is one manipulation attempt.
type Request struct {
	Action Action
	// Input is true when the request came from the local keyboard.
	Input bool
	// FromNetwork is true when the request arrived as a mod message.
	FromNetwork bool
}

// Evaluate decides whether req may apply here, must go to the host, or is dropped.
func Evaluate(s Session, p models.HostPolicy, req Request) Decision {
	if !s.WorldReady {
		return Reject
	}
	if p.HostOnly && req.FromNetwork && !s.IsHost {
		return Reject
	}

	if req.Action == ActionBroadcastConfig {
		if s.IsHost {
			return ApplyLocally
		}
		return Reject
	}

	if !s.IsHost {
		switch req.Action {
		case ActionToggleFreeze, ActionChangeInterval:
			if req.FromNetwork {
				return Reject
			}
			return Forward
		case ActionReloadConfig:
			return ApplyLocally
		}
		return Reject
	}

	if !req.Input || req.FromNetwork {
		return ApplyLocally
	}
	if s.TextInputActive {
		return Reject
	}
	if !s.PlayerFree && !s.EventActive {
		return Reject
	}
	return ApplyLocally
}
