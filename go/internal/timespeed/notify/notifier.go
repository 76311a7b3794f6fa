// Package notify shows short on-screen messages and mirrors them to peers.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
)

const (
	QuickDuration = 1000 * time.Millisecond
	ShortDuration = 2000 * time.Millisecond
)

// Display renders a message for a duration.
type Display interface {
	Show(message string, d time.Duration)
}

// Replier sends a reply payload; nil recipients means every peer.
type Replier interface {
	Send(ctx context.Context, payload any, to ...models.PlayerID) error
}

// Notifier wraps a Display with network echo and location dedup.
type Notifier struct {
	display Display
	replier Replier

	lastLocation string
}

// New returns a notifier. replier may be nil for single player.
func New(display Display, replier Replier) *Notifier {
	return &Notifier{display: display, replier: replier}
}

// Notify shows message for d and, when echo is set, sends it to peers as a StateReply.
func (n *Notifier) Notify(ctx context.Context, message string, d time.Duration, echo bool) {
	n.display.Show(message, d)
	if !echo || n.replier == nil {
		return
	}
	reply := messages.StateReplyPayload{Message: message, TimeoutMs: int(d.Milliseconds())}
	if err := n.replier.Send(ctx, reply); err != nil {
		log.Debug().Err(err).Str("message", message).Msg("state reply not sent")
	}
}

// Quick shows message for one second.
func (n *Notifier) Quick(ctx context.Context, message string, echo bool) {
	n.Notify(ctx, message, QuickDuration, echo)
}

// Short shows message for two seconds.
func (n *Notifier) Short(ctx context.Context, message string, echo bool) {
	n.Notify(ctx, message, ShortDuration, echo)
}

// Location shows a location-entry summary unless it matches the last one shown.
// It reports whether the message was displayed.
func (n *Notifier) Location(message string) bool {
	if strings.EqualFold(message, n.lastLocation) {
		return false
	}
	n.lastLocation = message
	n.display.Show(message, ShortDuration)
	return true
}

// ResetLocation forgets the last location summary.
func (n *Notifier) ResetLocation() {
	n.lastLocation = ""
}

// LogDisplay writes messages to the log instead of a screen.
type LogDisplay struct{}

func (LogDisplay) Show(message string, d time.Duration) {
	log.Info().Dur("duration", d).Msg(message)
}
