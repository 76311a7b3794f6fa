package wsgateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
)

// ErrSenderMismatch is returned when a mod message claims a sender other
// than the connection that carried it.
var ErrSenderMismatch = errors.New("envelope sender does not match connection")

type frameType string

const (
	frameMessage  frameType = "message"
	framePresence frameType = "presence"
)

// frame is one WebSocket text message. Message frames carry a raw mod
// message and its addressees; an empty To means every player.
type frame struct {
	Type     frameType            `json:"type"`
	From     models.PlayerID      `json:"from,omitempty"`
	To       []models.PlayerID    `json:"to,omitempty"`
	Data     json.RawMessage      `json:"data,omitempty"`
	Presence *transport.Presence `json:"presence,omitempty"`
}

func messageFrame(from models.PlayerID, to []models.PlayerID, raw []byte) ([]byte, error) {
	return json.Marshal(frame{Type: frameMessage, From: from, To: to, Data: raw})
}

func presenceFrame(kind transport.PresenceKind, player models.Farmer) ([]byte, error) {
	return json.Marshal(frame{Type: framePresence, Presence: &transport.Presence{Kind: kind, Player: player}})
}

// checkSender verifies that the envelope in raw was written by from.
func checkSender(from models.PlayerID, raw []byte) error {
	env, err := messages.Decode(raw)
	if err != nil {
		return err
	}
	if env.Sender != from {
		return fmt.Errorf("%w: connection %d, envelope %d", ErrSenderMismatch, int64(from), int64(env.Sender))
	}
	return nil
}
