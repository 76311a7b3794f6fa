// Package channel carries mod messages between the host and its peers.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
)

var (
	// ErrReentrantSend is returned when a send would extend a dispatch chain.
	ErrReentrantSend = errors.New("send dropped during message dispatch")
	// ErrNoHandlers is returned by Dispatch before SetHandlers was called.
	ErrNoHandlers = errors.New("no message handlers registered")
)

// Transport moves encoded envelopes. A nil recipient list means every other player.
type Transport interface {
	Send(ctx context.Context, raw []byte, to []models.PlayerID) error
}

// Handlers receive decoded messages, one method per kind.
type Handlers interface {
	HandleManipulate(ctx context.Context, from models.PlayerID, p messages.ManipulatePayload)
	HandleManipulateForLocation(ctx context.Context, from models.PlayerID, p messages.ManipulateForLocationPayload)
	HandleStateReply(ctx context.Context, from models.PlayerID, p messages.StateReplyPayload)
	HandleForbidden(ctx context.Context, from models.PlayerID, p messages.ForbiddenPayload)
	HandleInfo(ctx context.Context, from models.PlayerID, p messages.InfoPayload)
	HandleConfigState(ctx context.Context, from models.PlayerID, p messages.ConfigStatePayload)
	HandleVotePause(ctx context.Context, from models.PlayerID, p messages.VotePausePayload)
}

// Channel encodes outbound messages and routes inbound ones.
type Channel struct {
	modID     string
	local     models.PlayerID
	transport Transport
	handlers  Handlers

	// depth counts nested Dispatch calls on the current goroutine's call chain.
	depth int
}

// New returns a channel for the local player.
func New(modID string, local models.PlayerID, transport Transport) *Channel {
	return &Channel{
		modID:     modID,
		local:     local,
		transport: transport,
	}
}

// SetHandlers registers the receiver of inbound messages.
func (c *Channel) SetHandlers(h Handlers) {
	c.handlers = h
}

// Local returns the local player id.
func (c *Channel) Local() models.PlayerID {
	return c.local
}

// Dispatching reports whether a dispatch is in progress.
func (c *Channel) Dispatching() bool {
	return c.depth > 0
}

// Send encodes payload and hands it to the transport.
// While a message is being dispatched only replies may be sent, and only from the outermost dispatch.
func (c *Channel) Send(ctx context.Context, payload any, to ...models.PlayerID) error {
	env, err := messages.NewEnvelope(c.modID, c.local, payload)
	if err != nil {
		return err
	}

	if c.depth > 1 || (c.depth == 1 && !env.Kind.IsReply()) {
		log.Debug().
			Str("kind", string(env.Kind)).
			Int("depth", c.depth).
			Msg("dropping send from inside message dispatch")
		return ErrReentrantSend
	}

	raw, err := messages.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Kind, err)
	}
	if err := c.transport.Send(ctx, raw, to); err != nil {
		return fmt.Errorf("send %s: %w", env.Kind, err)
	}

	log.Debug().
		Str("kind", string(env.Kind)).
		Int("recipients", len(to)).
		Msg("mod message sent")
	return nil
}

// Dispatch decodes raw and routes it to exactly one handler.
// Unknown kinds and foreign or looped-back messages are dropped without error.
func (c *Channel) Dispatch(ctx context.Context, raw []byte) error {
	env, err := messages.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed mod message")
		return err
	}
	return c.DispatchEnvelope(ctx, env)
}

// DispatchEnvelope routes an already decoded envelope.
func (c *Channel) DispatchEnvelope(ctx context.Context, env messages.Envelope) error {
	if c.handlers == nil {
		return ErrNoHandlers
	}
	if env.ModID != c.modID {
		log.Debug().Str("mod_id", env.ModID).Msg("ignoring message for another mod")
		return nil
	}
	if env.Sender == c.local {
		return nil
	}
	if !env.Kind.Known() {
		log.Debug().
			Str("kind", string(env.Kind)).
			Int("version", env.Version).
			Msg("ignoring unknown message kind")
		return nil
	}

	payload, err := messages.ParsePayload(env)
	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", string(env.Kind)).
			Int64("sender", int64(env.Sender)).
			Msg("dropping mod message with malformed payload")
		return err
	}

	c.depth++
	defer func() { c.depth-- }()

	from := env.Sender
	switch p := payload.(type) {
	case messages.ManipulatePayload:
		c.handlers.HandleManipulate(ctx, from, p)
	case messages.ManipulateForLocationPayload:
		c.handlers.HandleManipulateForLocation(ctx, from, p)
	case messages.StateReplyPayload:
		c.handlers.HandleStateReply(ctx, from, p)
	case messages.ForbiddenPayload:
		c.handlers.HandleForbidden(ctx, from, p)
	case messages.InfoPayload:
		c.handlers.HandleInfo(ctx, from, p)
	case messages.ConfigStatePayload:
		c.handlers.HandleConfigState(ctx, from, p)
	case messages.VotePausePayload:
		c.handlers.HandleVotePause(ctx, from, p)
	}
	return nil
}
