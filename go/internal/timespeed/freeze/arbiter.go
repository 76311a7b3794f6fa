// Package freeze decides whether time is frozen from the automatic rules and
// the player's manual override.
package freeze

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
)

// Rules are the configured automatic freeze rules.
type Rules interface {
	ShouldFreezeAt(loc models.Location) bool
	ShouldFreezeAtTime(timeOfDay int) bool
	FreezeDuringEvents() bool
}

// Context is what the automatic rules are evaluated against.
type Context struct {
	Location    *models.Location
	TimeOfDay   int
	EventActive bool
}

// Override is a manual change applied in the same recompute.
type Override struct {
	// Manual replaces the manual freeze when set.
	Manual *bool
	// ClearPrevious drops any earlier manual freeze when Manual is nil.
	ClearPrevious bool
}

// State is the freeze part of the time state.
type State struct {
	Manual *bool
	Auto   models.AutoFreezeReason
}

// Frozen reports whether time is frozen: a manual freeze always wins,
// a manual resume suppresses any automatic freeze.
func (s State) Frozen() bool {
	if s.Manual != nil {
		return *s.Manual
	}
	return s.Auto != models.AutoFreezeNone
}

// Transition describes one recompute.
type Transition struct {
	From State
	To   State
}

// AutoChanged reports whether the automatic reason changed.
func (t Transition) AutoChanged() bool {
	return t.From.Auto != t.To.Auto
}

// ManualChanged reports whether the manual override changed.
func (t Transition) ManualChanged() bool {
	return !sameBool(t.From.Manual, t.To.Manual)
}

// BecameFrozen reports whether time went from running to frozen.
func (t Transition) BecameFrozen() bool {
	return !t.From.Frozen() && t.To.Frozen()
}

// EventHook is invoked once each time the automatic reason becomes FrozenDuringEvent.
type EventHook func()

// Arbiter owns the freeze state.
type Arbiter struct {
	rules   Rules
	state   State
	onEvent EventHook
}

// NewArbiter returns an arbiter with no freeze in effect.
func NewArbiter(rules Rules, onEvent EventHook) *Arbiter {
	return &Arbiter{
		rules:   rules,
		state:   State{Auto: models.AutoFreezeNone},
		onEvent: onEvent,
	}
}

// SetRules swaps the rules, e.g. after a config reload. The state is kept until the next recompute.
func (a *Arbiter) SetRules(rules Rules) {
	a.rules = rules
}

// State returns a copy of the current state.
func (a *Arbiter) State() State {
	s := a.state
	if s.Manual != nil {
		v := *s.Manual
		s.Manual = &v
	}
	return s
}

// IsFrozen reports whether time is currently frozen.
func (a *Arbiter) IsFrozen() bool {
	return a.state.Frozen()
}

// AutoReason evaluates the automatic rules in priority order: location, time of day, event.
func (a *Arbiter) AutoReason(ctx Context) models.AutoFreezeReason {
	switch {
	case ctx.Location != nil && a.rules.ShouldFreezeAt(*ctx.Location):
		return models.AutoFreezeFrozenForLocation
	case a.rules.ShouldFreezeAtTime(ctx.TimeOfDay):
		return models.AutoFreezeFrozenAtTime
	case ctx.EventActive && a.rules.FreezeDuringEvents():
		return models.AutoFreezeFrozenDuringEvent
	default:
		return models.AutoFreezeNone
	}
}

// Recompute re-evaluates the automatic reason and applies the override.
func (a *Arbiter) Recompute(ctx Context, o Override) Transition {
	from := a.State()

	a.state.Auto = a.AutoReason(ctx)

	switch {
	case o.Manual != nil:
		v := *o.Manual
		a.state.Manual = &v
	case o.ClearPrevious:
		a.state.Manual = nil
	}

	// a manual resume is meaningless once nothing freezes time automatically
	if a.state.Manual != nil && !*a.state.Manual && a.state.Auto == models.AutoFreezeNone {
		a.state.Manual = nil
	}

	t := Transition{From: from, To: a.State()}
	if t.AutoChanged() {
		log.Info().
			Str("from", string(t.From.Auto)).
			Str("to", string(t.To.Auto)).
			Msg("Auto freeze changed")
		if t.To.Auto == models.AutoFreezeFrozenDuringEvent && a.onEvent != nil {
			a.onEvent()
		}
	}
	if t.ManualChanged() {
		log.Info().
			Str("from", formatManual(t.From.Manual)).
			Str("to", formatManual(t.To.Manual)).
			Msg("Manual freeze changed")
	}
	return t
}

// Toggle flips the effective freeze with a manual override and recomputes.
func (a *Arbiter) Toggle(ctx Context) Transition {
	frozen := !a.IsFrozen()
	return a.Recompute(ctx, Override{Manual: &frozen})
}

func formatManual(b *bool) string {
	if b == nil {
		return "null"
	}
	if *b {
		return "true"
	}
	return "false"
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
