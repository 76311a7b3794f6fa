package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/rolegate"
	"github.com/mcdev12/timespeed/go/internal/timespeed/vote"
)

// HandleManipulate applies a peer's freeze or interval request on the host.
// Event notices are only displayed.
func (o *Orchestrator) HandleManipulate(ctx context.Context, from models.PlayerID, p messages.ManipulatePayload) {
	if p.FreezeMethod == models.FreezeMethodEvent {
		o.notifier.Quick(ctx, notify.TextLocationStoppedEvent, false)
		return
	}
	o.handleManipulation(ctx, from, p.FreezeMethod, p.Increase, o.game.LocalPlayer().Location)
}

// HandleManipulateForLocation is HandleManipulate with the freeze evaluated at the requester's location.
func (o *Orchestrator) HandleManipulateForLocation(ctx context.Context, from models.PlayerID, p messages.ManipulateForLocationPayload) {
	if !o.isHost() {
		log.Debug().Int64("from", int64(from)).Msg("ignoring location request on a peer")
		return
	}
	loc, ok := o.game.Location(p.Location)
	if !ok {
		log.Warn().
			Int64("from", int64(from)).
			Str("location", p.Location).
			Msg("time request for unknown location")
		o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenHostError})
		return
	}
	o.handleManipulation(ctx, from, p.FreezeMethod, p.Increase, loc)
}

func (o *Orchestrator) handleManipulation(ctx context.Context, from models.PlayerID, method models.FreezeMethod, increase *bool, loc *models.Location) {
	var action rolegate.Action
	switch {
	case method == models.FreezeMethodManual:
		action = rolegate.ActionToggleFreeze
	case increase != nil:
		action = rolegate.ActionChangeInterval
	default:
		o.rejectUnknown(ctx, from)
		return
	}

	req := rolegate.Request{Action: action, FromNetwork: true}
	if rolegate.Evaluate(o.session(), o.policy(), req) != rolegate.ApplyLocally {
		o.rejectNetwork(ctx, from)
		return
	}

	if method == models.FreezeMethodManual {
		o.toggleFreeze(ctx, loc)
	}
	if increase != nil {
		o.changeInterval(ctx, *increase, intervalStep)
	}
}

// rejectNetwork answers a refused network request. Peers refuse silently.
func (o *Orchestrator) rejectNetwork(ctx context.Context, from models.PlayerID) {
	if !o.isHost() {
		return
	}
	o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenHostDisabled})
}

func (o *Orchestrator) rejectUnknown(ctx context.Context, from models.PlayerID) {
	if !o.isHost() {
		return
	}
	name := from.String()
	if f, ok := o.game.Farmer(from); ok {
		name = f.Name
	}
	o.notifier.Short(ctx, notify.UnknownRequest(name), false)
	o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenUnknown})
}

// HandleStateReply shows the host's feedback for the requested duration.
func (o *Orchestrator) HandleStateReply(ctx context.Context, from models.PlayerID, p messages.StateReplyPayload) {
	d := time.Duration(p.TimeoutMs) * time.Millisecond
	if d <= 0 {
		d = notify.QuickDuration
	}
	o.notifier.Notify(ctx, p.Message, d, false)
}

// HandleForbidden tells a peer the host refused its request.
func (o *Orchestrator) HandleForbidden(ctx context.Context, from models.PlayerID, p messages.ForbiddenPayload) {
	if o.isHost() {
		return
	}
	o.notifier.Short(ctx, notify.Forbidden(p.Reason), false)
}

// HandleInfo displays informational text.
func (o *Orchestrator) HandleInfo(ctx context.Context, from models.PlayerID, p messages.InfoPayload) {
	if p.Message == nil || *p.Message == "" {
		return
	}
	o.notifier.Quick(ctx, *p.Message, false)
}

// HandleConfigState updates the peer's cache of the host policy, announcing each field that changed.
func (o *Orchestrator) HandleConfigState(ctx context.Context, from models.PlayerID, p messages.ConfigStatePayload) {
	if o.isHost() {
		log.Debug().Int64("from", int64(from)).Msg("host ignores config state from a peer")
		return
	}
	if f, ok := o.game.Farmer(from); !ok || !f.IsMainPlayer {
		log.Warn().Int64("from", int64(from)).Msg("ignoring config state not sent by the host")
		return
	}
	o.policyConfirmed = true

	if p.HostOnly != nil && *p.HostOnly != o.hostPolicy.HostOnly {
		o.hostPolicy.HostOnly = *p.HostOnly
		o.notifier.Quick(ctx, notify.HostOnlyChanged(*p.HostOnly), false)
	}
	if p.VoteEnabled != nil && *p.VoteEnabled != o.hostPolicy.VoteEnabled {
		o.hostPolicy.VoteEnabled = *p.VoteEnabled
		o.notifier.Quick(ctx, notify.VoteEnabledChanged(*p.VoteEnabled), false)
	}
	if p.VoteThreshold != nil && *p.VoteThreshold != o.hostPolicy.VoteThreshold {
		o.hostPolicy.VoteThreshold = *p.VoteThreshold
		o.notifier.Quick(ctx, notify.ThresholdChanged(*p.VoteThreshold), false)
	}
}

// HandleVotePause opens, joins or finishes a pause vote on the host.
func (o *Orchestrator) HandleVotePause(ctx context.Context, from models.PlayerID, p messages.VotePausePayload) {
	if !o.isHost() {
		return
	}
	if !o.game.WorldReady() || !o.cfg.FreezeTime.ClientVote {
		o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenHostDisabled})
		return
	}

	if p.VoteCast != nil {
		if o.votes.State() == vote.StateIdle {
			if err := o.votes.Open(from); err != nil {
				log.Warn().Err(err).Int64("from", int64(from)).Msg("failed to open pause vote")
				o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenHostError})
				return
			}
			o.notifier.Quick(ctx, notify.TextVoteStarted, false)
		}
		if err := o.votes.Cast(from, *p.VoteCast); err != nil {
			log.Warn().Err(err).Int64("from", int64(from)).Msg("vote not recorded")
		}
	}

	if p.Finish != nil && *p.Finish {
		r, err := o.votes.Finish(from)
		switch {
		case errors.Is(err, vote.ErrNoVoteOpen):
			log.Debug().Int64("from", int64(from)).Msg("finish without an open vote")
		case err != nil:
			log.Warn().Err(err).Int64("from", int64(from)).Msg("vote finish refused")
			o.reply(ctx, from, messages.ForbiddenPayload{Reason: models.ForbiddenHostDisabled})
		default:
			o.applyVoteResult(ctx, r)
		}
	}
}
