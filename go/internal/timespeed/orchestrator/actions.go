package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/rolegate"
	"github.com/mcdev12/timespeed/go/internal/timespeed/vote"
)

func (o *Orchestrator) requestToggle(ctx context.Context) {
	req := rolegate.Request{Action: rolegate.ActionToggleFreeze, Input: true}
	switch rolegate.Evaluate(o.session(), o.policy(), req) {
	case rolegate.ApplyLocally:
		o.toggleFreeze(ctx, o.game.LocalPlayer().Location)
	case rolegate.Forward:
		o.warnUnconfirmedPolicy()
		if o.hostPolicy.VoteEnabled {
			o.sendToHost(ctx, messages.VotePausePayload{VoteCast: messages.Bool(true)})
			return
		}
		loc := o.game.LocalPlayer().Location
		if loc == nil {
			log.Warn().Msg("cannot request a freeze toggle without a current location")
			return
		}
		o.sendToHost(ctx, messages.ManipulateForLocationPayload{
			FreezeMethod: models.FreezeMethodManual,
			Location:     loc.ID(),
		})
	}
}

func (o *Orchestrator) requestInterval(ctx context.Context, increase bool, step int) {
	req := rolegate.Request{Action: rolegate.ActionChangeInterval, Input: true}
	switch rolegate.Evaluate(o.session(), o.policy(), req) {
	case rolegate.ApplyLocally:
		o.changeInterval(ctx, increase, step)
	case rolegate.Forward:
		o.warnUnconfirmedPolicy()
		o.sendToHost(ctx, manipulate(models.FreezeMethodNone, &increase))
	}
}

func (o *Orchestrator) requestReload(ctx context.Context) {
	req := rolegate.Request{Action: rolegate.ActionReloadConfig, Input: true}
	if rolegate.Evaluate(o.session(), o.policy(), req) != rolegate.ApplyLocally {
		return
	}
	o.reloadConfig(ctx)
}

// CastVote sends the local player's ballot on the pause vote to the host.
// The first ballot while no vote is open starts one.
func (o *Orchestrator) CastVote(ctx context.Context, yes bool) {
	if o.isHost() {
		log.Info().Msg("the host does not vote on pause requests")
		return
	}
	if !o.votingOpenToPeer() {
		return
	}
	o.sendToHost(ctx, messages.VotePausePayload{VoteCast: messages.Bool(yes)})
}

// FinishVote closes the open pause vote now. Peers ask the host; only the
// requester or the host may close a vote.
func (o *Orchestrator) FinishVote(ctx context.Context) {
	if o.isHost() {
		r, err := o.votes.Finish(o.local)
		if err != nil {
			log.Info().Err(err).Msg("no pause vote to finish")
			return
		}
		o.applyVoteResult(ctx, r)
		return
	}
	if !o.votingOpenToPeer() {
		return
	}
	o.sendToHost(ctx, messages.VotePausePayload{Finish: messages.Bool(true)})
}

func (o *Orchestrator) votingOpenToPeer() bool {
	if !o.game.WorldReady() {
		return false
	}
	o.warnUnconfirmedPolicy()
	if !o.hostPolicy.VoteEnabled {
		log.Info().Msg("the host does not accept pause votes")
		return false
	}
	return true
}

// toggleFreeze flips the freeze and tells every player.
func (o *Orchestrator) toggleFreeze(ctx context.Context, loc *models.Location) {
	t := o.arbiter.Toggle(o.freezeContext(loc))
	frozen := t.To.Frozen()
	o.notifier.Short(ctx, notify.Toggled(frozen), o.isHost())

	event := log.Info().Bool("frozen", frozen)
	if loc != nil {
		event = event.Str("location", loc.Name)
	}
	if frozen {
		event.Msg("Time is frozen globally")
	} else {
		event.Msg("Time is resumed")
	}
}

// changeInterval moves the interval by step; a decrease never goes below the smaller of step and the current value.
func (o *Orchestrator) changeInterval(ctx context.Context, increase bool, step int) {
	if increase {
		o.tickIntervalMs += step
	} else {
		floor := min(o.tickIntervalMs, step)
		o.tickIntervalMs = max(floor, o.tickIntervalMs-step)
	}

	o.notifier.Quick(ctx, notify.SpeedChanged(o.tickIntervalMs), o.isHost())
	log.Info().
		Float64("seconds", float64(o.tickIntervalMs)/1000).
		Msg("Tick length changed")
}

func (o *Orchestrator) reloadConfig(ctx context.Context) {
	cfg, err := o.store.Read()
	if err != nil {
		log.Error().Err(err).Msg("failed to reload config, keeping previous")
		return
	}
	config.Validate(cfg)

	before := o.cfg.Policy()
	o.applyConfig(cfg)
	if o.enabled() {
		o.updateSettingsForAllPlayers(ctx)
	}
	o.notifier.Short(ctx, notify.TextConfigReloaded, false)
	log.Info().Bool("policy_changed", before != cfg.Policy()).Msg("config reloaded")

	req := rolegate.Request{Action: rolegate.ActionBroadcastConfig}
	if rolegate.Evaluate(o.session(), o.policy(), req) == rolegate.ApplyLocally {
		o.broadcastPolicy(ctx)
	}
}

// broadcastPolicy sends the host policy to every peer.
func (o *Orchestrator) broadcastPolicy(ctx context.Context) {
	p := o.cfg.Policy()
	if err := o.channel.Send(ctx, messages.ConfigStateFromPolicy(p)); err != nil {
		log.Warn().Err(err).Msg("failed to broadcast host policy")
		return
	}
	if err := o.recorder.RecordPolicy(ctx, o.local, p); err != nil {
		log.Warn().Err(err).Msg("failed to record host policy")
	}
}

func (o *Orchestrator) applyVoteResult(ctx context.Context, r vote.Result) {
	if err := o.recorder.RecordVote(ctx, r); err != nil {
		log.Warn().Err(err).Msg("failed to record vote")
	}

	outcome := notify.VoteOutcome(r.Passed, r.Yes, r.Cast())
	o.notifier.Quick(ctx, outcome, false)
	if !r.Passed {
		o.reply(ctx, r.Requester, messages.InfoPayload{Message: messages.String(outcome)})
		return
	}

	loc := o.game.LocalPlayer().Location
	if f, ok := o.game.Farmer(r.Requester); ok && f.Location != nil {
		loc = f.Location
	}
	o.toggleFreeze(ctx, loc)
}

func manipulate(method models.FreezeMethod, increase *bool) messages.ManipulatePayload {
	return messages.ManipulatePayload{FreezeMethod: method, Increase: increase}
}
