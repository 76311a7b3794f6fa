// Package transport holds what the network transports share: the presence
// events they raise and the interface the daemon drives them through.
package transport

import (
	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/channel"
)

// PresenceKind says whether a player arrived or left.
type PresenceKind string

const (
	PresenceJoin  PresenceKind = "join"
	PresenceLeave PresenceKind = "leave"
)

// Presence is a player joining or leaving the session.
type Presence struct {
	Kind   PresenceKind  `json:"kind"`
	Player models.Farmer `json:"player"`
}

// Bus carries mod messages between the players of one session. Inbound
// messages and presence events are delivered on channels so the game loop
// can consume them on its own goroutine.
type Bus interface {
	channel.Transport
	Messages() <-chan []byte
	Presence() <-chan Presence
	Close() error
}

// InboxSize is the buffer of the inbound channels.
const InboxSize = 256
