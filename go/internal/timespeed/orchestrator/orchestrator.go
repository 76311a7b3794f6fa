// Package orchestrator wires the time subsystem to the game's event surface.
package orchestrator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/channel"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/freeze"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/rolegate"
	"github.com/mcdev12/timespeed/go/internal/timespeed/tickclock"
	"github.com/mcdev12/timespeed/go/internal/timespeed/vote"
)

// intervalStep is the base change applied by one interval key press.
const intervalStep = 1000

// Game is the read/write surface of the running game.
type Game interface {
	WorldReady() bool
	IsFestivalDay() bool
	TimeOfDay() int
	EventActive() bool
	PlayerFree() bool
	TextInputActive() bool
	LocalPlayer() models.Farmer
	Farmer(id models.PlayerID) (models.Farmer, bool)
	Farmers() []models.Farmer
	Location(id string) (*models.Location, bool)
	DefaultTickInterval() int
	TickProgress() float64
	SetTickProgress(progress float64)
}

// ConfigStore reads and writes the persisted config.
type ConfigStore interface {
	Read() (*config.ModConfig, error)
	Write(cfg *config.ModConfig) error
}

// Recorder keeps an audit trail of votes and policy broadcasts.
type Recorder interface {
	RecordVote(ctx context.Context, r vote.Result) error
	RecordPolicy(ctx context.Context, host models.PlayerID, p models.HostPolicy) error
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	ModID     string
	Game      Game
	Display   notify.Display
	Transport channel.Transport
	Store     ConfigStore
	// Recorder is optional.
	Recorder Recorder
	// Clock defaults to the real clock.
	Clock vote.Clock
}

// Modifiers are the held modifier keys when a button changed.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
}

// Step returns the interval change for one key press under these modifiers.
func (m Modifiers) Step() int {
	switch {
	case m.Ctrl:
		return intervalStep * 100
	case m.Shift:
		return intervalStep * 10
	case m.Alt:
		return intervalStep / 10
	default:
		return intervalStep
	}
}

// Orchestrator owns the time state of one game instance. All methods must be
// called from the game loop goroutine.
type Orchestrator struct {
	game     Game
	store    ConfigStore
	recorder Recorder
	cfg      *config.ModConfig

	channel  *channel.Channel
	notifier *notify.Notifier
	arbiter  *freeze.Arbiter
	clock    *tickclock.Clock
	votes    *vote.Coordinator

	local          models.PlayerID
	tickIntervalMs int
	adjustTime     bool

	// hostPolicy is the peer-side cache of the host's policy.
	hostPolicy      models.HostPolicy
	policyConfirmed bool
	policyWarned    bool

	// eventNoticePending holds an event notice raised during message dispatch.
	eventNoticePending bool
}

// New builds an orchestrator, loading the config from the store.
func New(deps Deps) (*Orchestrator, error) {
	cfg, err := deps.Store.Read()
	if err != nil {
		return nil, err
	}
	config.Validate(cfg)

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	local := deps.Game.LocalPlayer().ID
	o := &Orchestrator{
		game:           deps.Game,
		store:          deps.Store,
		recorder:       recorder,
		cfg:            cfg,
		clock:          tickclock.New(),
		local:          local,
		tickIntervalMs: cfg.TickIntervalAt(nil),
		adjustTime:     true,
		hostPolicy:     models.DefaultHostPolicy(),
	}
	o.channel = channel.New(deps.ModID, local, deps.Transport)
	o.channel.SetHandlers(o)
	o.notifier = notify.New(deps.Display, o.channel)
	o.arbiter = freeze.NewArbiter(cfg, o.sendEventNotice)
	o.votes = vote.NewCoordinator(clock, local, voteTimeout(cfg), cfg.FreezeTime.VoteThreshold)

	return o, nil
}

// Channel exposes the message channel for transports that deliver inbound messages.
func (o *Orchestrator) Channel() *channel.Channel {
	return o.channel
}

// Config returns the active config.
func (o *Orchestrator) Config() *config.ModConfig {
	return o.cfg
}

// IsTimeFrozen reports the effective freeze.
func (o *Orchestrator) IsTimeFrozen() bool {
	return o.arbiter.IsFrozen()
}

// TickInterval returns the configured milliseconds per 10 in-game minutes.
func (o *Orchestrator) TickInterval() int {
	return o.tickIntervalMs
}

func (o *Orchestrator) isHost() bool {
	return o.game.LocalPlayer().IsMainPlayer
}

// policy is the host policy in force: the host's own config, or the peer's cache.
func (o *Orchestrator) policy() models.HostPolicy {
	if o.isHost() {
		return o.cfg.Policy()
	}
	return o.hostPolicy
}

// enabled reports whether this instance manages time itself.
func (o *Orchestrator) enabled() bool {
	if !o.game.WorldReady() {
		return false
	}
	return !(o.policy().HostOnly && !o.isHost())
}

func (o *Orchestrator) session() rolegate.Session {
	return rolegate.Session{
		WorldReady:      o.game.WorldReady(),
		IsHost:          o.isHost(),
		PlayerFree:      o.game.PlayerFree(),
		TextInputActive: o.game.TextInputActive(),
		EventActive:     o.game.EventActive(),
	}
}

func (o *Orchestrator) freezeContext(loc *models.Location) freeze.Context {
	return freeze.Context{
		Location:    loc,
		TimeOfDay:   o.game.TimeOfDay(),
		EventActive: o.game.EventActive(),
	}
}

func (o *Orchestrator) hostID() (models.PlayerID, bool) {
	for _, f := range o.game.Farmers() {
		if f.IsMainPlayer {
			return f.ID, true
		}
	}
	return 0, false
}

// sendToHost addresses the host directly when known, otherwise every player.
func (o *Orchestrator) sendToHost(ctx context.Context, payload any) {
	var to []models.PlayerID
	if id, ok := o.hostID(); ok {
		to = append(to, id)
	}
	if err := o.channel.Send(ctx, payload, to...); err != nil {
		log.Warn().Err(err).Msg("failed to send request to host")
	}
}

func (o *Orchestrator) reply(ctx context.Context, to models.PlayerID, payload any) {
	if err := o.channel.Send(ctx, payload, to); err != nil {
		log.Debug().Err(err).Int64("player_id", int64(to)).Msg("reply not sent")
	}
}

// sendEventNotice tells the other players that an event froze time. A notice
// raised while a message is dispatched is sent once the dispatch returns.
func (o *Orchestrator) sendEventNotice() {
	if o.channel.Dispatching() {
		o.eventNoticePending = true
		return
	}
	notice := manipulate(models.FreezeMethodEvent, nil)
	if err := o.channel.Send(context.Background(), notice); err != nil {
		log.Debug().Err(err).Msg("event freeze notice not sent")
	}
}

func (o *Orchestrator) flushEventNotice() {
	if !o.eventNoticePending {
		return
	}
	o.eventNoticePending = false
	o.sendEventNotice()
}

func voteTimeout(cfg *config.ModConfig) time.Duration {
	return time.Duration(cfg.FreezeTime.ClientVoteTimeoutMinutes) * time.Minute
}

type noopRecorder struct{}

func (noopRecorder) RecordVote(context.Context, vote.Result) error { return nil }

func (noopRecorder) RecordPolicy(context.Context, models.PlayerID, models.HostPolicy) error {
	return nil
}
