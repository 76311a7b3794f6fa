package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/freeze"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/tickclock"
)

// OnSaveLoaded starts a new game session.
func (o *Orchestrator) OnSaveLoaded(ctx context.Context) {
	o.notifier.ResetLocation()
	if o.isHost() {
		return
	}
	o.policyConfirmed = false
	o.policyWarned = false
	o.warnUnconfirmedPolicy()
}

func (o *Orchestrator) warnUnconfirmedPolicy() {
	if o.policyConfirmed || o.policyWarned || !o.hostPolicy.HostOnly {
		return
	}
	o.policyWarned = true
	log.Warn().
		Int64("player_id", int64(o.local)).
		Msg("Disabled mod; only works for the main player in multiplayer until the host confirms its settings.")
}

// OnDayStarted applies the festival rule, clears manual overrides and refreshes every player's location settings.
func (o *Orchestrator) OnDayStarted(ctx context.Context) {
	if !o.enabled() {
		return
	}
	o.adjustTime = o.cfg.ShouldScale(o.game.IsFestivalDay())
	o.arbiter.Recompute(o.freezeContext(nil), freeze.Override{ClearPrevious: true})
	o.updateSettingsForAllPlayers(ctx)
}

// OnTimeChanged re-evaluates the time-of-day rule.
func (o *Orchestrator) OnTimeChanged(ctx context.Context) {
	if !o.enabled() {
		return
	}
	t := o.arbiter.Recompute(o.freezeContext(o.game.LocalPlayer().Location), freeze.Override{})
	if !t.BecameFrozen() {
		return
	}
	o.notifier.Short(ctx, notify.TextTimeStoppedAtTime, o.isHost())
	log.Info().Int("time_of_day", o.game.TimeOfDay()).Msg("Time automatically set to frozen")
}

// OnUpdateTicked pins or rescales the tick progress and advances the vote countdown.
func (o *Orchestrator) OnUpdateTicked(ctx context.Context, frame tickclock.Frame) {
	if o.isHost() {
		if r, done := o.votes.Tick(); done {
			o.applyVoteResult(ctx, r)
		}
	}
	if !o.enabled() {
		return
	}

	o.clock.SetScaling(o.adjustTime)
	o.clock.SetInterval(o.tickIntervalMs)
	o.clock.SetDefaultInterval(o.game.DefaultTickInterval())

	progress := o.clock.Update(frame, o.arbiter.IsFrozen())
	if progress != frame.Progress {
		o.game.SetTickProgress(progress)
	}
}

// OnWarped updates settings for a player's new location.
func (o *Orchestrator) OnWarped(ctx context.Context, player models.PlayerID, loc models.Location) {
	if !o.enabled() {
		return
	}
	if o.policy().HostOnly && player != o.local {
		return
	}
	o.updateSettingsForLocation(ctx, &loc)
}

// OnButtonsChanged maps pressed keys to actions and runs them through the role gate.
func (o *Orchestrator) OnButtonsChanged(ctx context.Context, pressed config.Pressed, mods Modifiers) {
	actions := o.cfg.Keys.Match(pressed)
	if !actions.Any() {
		return
	}
	if actions.ToggleFreeze {
		o.requestToggle(ctx)
	}
	if actions.Increase != nil {
		o.requestInterval(ctx, *actions.Increase, mods.Step())
	}
	if actions.ReloadConfig {
		o.requestReload(ctx)
	}
}

// OnPeerConnected registers a peer with the vote and sends it the host policy.
func (o *Orchestrator) OnPeerConnected(ctx context.Context, peer models.Farmer) {
	if !o.isHost() || peer.IsMainPlayer || peer.ID == o.local {
		return
	}
	o.votes.AddParticipant(peer.ID)

	state := messages.ConfigStateFromPolicy(o.cfg.Policy())
	if err := o.channel.Send(ctx, state, peer.ID); err != nil {
		log.Warn().Err(err).Int64("player_id", int64(peer.ID)).Msg("failed to send host policy to new peer")
		return
	}
	log.Info().
		Int64("player_id", int64(peer.ID)).
		Str("name", peer.Name).
		Msg("peer connected, host policy sent")
}

// OnPeerDisconnected removes the peer from the vote.
func (o *Orchestrator) OnPeerDisconnected(ctx context.Context, peer models.PlayerID) {
	if !o.isHost() {
		return
	}
	o.votes.RemoveParticipant(peer)
	log.Info().Int64("player_id", int64(peer)).Msg("peer disconnected")
}

// OnModMessageReceived hands a raw message to the channel.
func (o *Orchestrator) OnModMessageReceived(ctx context.Context, raw []byte) {
	if err := o.channel.Dispatch(ctx, raw); err != nil {
		log.Debug().Err(err).Msg("mod message dropped")
	}
	o.flushEventNotice()
}

// OnConfigSaved adopts a config saved by the settings menu.
func (o *Orchestrator) OnConfigSaved(ctx context.Context, cfg *config.ModConfig) {
	config.Validate(cfg)
	if err := o.store.Write(cfg); err != nil {
		log.Error().Err(err).Msg("failed to write config")
	}
	before := o.cfg.Policy()
	o.applyConfig(cfg)
	if o.enabled() {
		o.updateSettingsForAllPlayers(ctx)
	}
	if o.isHost() && before != cfg.Policy() {
		o.broadcastPolicy(ctx)
	}
}

func (o *Orchestrator) applyConfig(cfg *config.ModConfig) {
	o.cfg = cfg
	o.arbiter.SetRules(cfg)
	o.votes.SetThreshold(cfg.FreezeTime.VoteThreshold)
	if err := o.votes.SetTimeout(voteTimeout(cfg)); err != nil {
		log.Warn().Err(err).Msg("keeping previous vote timeout")
	}
	if o.game.WorldReady() {
		o.adjustTime = cfg.ShouldScale(o.game.IsFestivalDay())
	}
}

func (o *Orchestrator) updateSettingsForAllPlayers(ctx context.Context) {
	if o.policy().HostOnly {
		o.updateSettingsForLocation(ctx, o.game.LocalPlayer().Location)
		return
	}
	for _, f := range o.game.Farmers() {
		o.updateSettingsForLocation(ctx, f.Location)
	}
}

func (o *Orchestrator) updateSettingsForLocation(ctx context.Context, loc *models.Location) {
	if loc == nil {
		return
	}

	o.arbiter.Recompute(o.freezeContext(loc), freeze.Override{})
	o.tickIntervalMs = o.cfg.TickIntervalAt(loc)

	if !o.cfg.LocationNotify {
		return
	}
	state := o.arbiter.State()
	o.notifier.Location(notify.LocationSummary(state.Auto, state.Frozen(), o.tickIntervalMs))
}
