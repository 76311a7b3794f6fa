package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/orchestrator"
	"github.com/mcdev12/timespeed/go/internal/timespeed/tickclock"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
)

// Driver is the orchestrator surface the loop calls.
type Driver interface {
	OnSaveLoaded(ctx context.Context)
	OnDayStarted(ctx context.Context)
	OnTimeChanged(ctx context.Context)
	OnUpdateTicked(ctx context.Context, frame tickclock.Frame)
	OnWarped(ctx context.Context, player models.PlayerID, loc models.Location)
	OnButtonsChanged(ctx context.Context, pressed config.Pressed, mods orchestrator.Modifiers)
	OnPeerConnected(ctx context.Context, peer models.Farmer)
	OnPeerDisconnected(ctx context.Context, peer models.PlayerID)
	OnModMessageReceived(ctx context.Context, raw []byte)
	CastVote(ctx context.Context, yes bool)
	FinishVote(ctx context.Context)
	IsTimeFrozen() bool
	TickInterval() int
}

// Inbound is where the loop receives network traffic. transport.Bus satisfies it.
type Inbound interface {
	Messages() <-chan []byte
	Presence() <-chan transport.Presence
}

// Snapshot is the state published after every loop iteration.
type Snapshot struct {
	Day            int             `json:"day"`
	TimeOfDay      int             `json:"time_of_day"`
	Progress       float64         `json:"progress"`
	Frozen         bool            `json:"frozen"`
	TickIntervalMs int             `json:"tick_interval_ms"`
	Location       string          `json:"location"`
	Players        []models.Farmer `json:"players"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Loop serializes game ticks, inbound messages, presence and console
// commands onto one goroutine.
type Loop struct {
	clock    clockwork.Clock
	world    *World
	driver   Driver
	inbound  Inbound
	commands <-chan Command
	rate     time.Duration

	snapshot atomic.Pointer[Snapshot]
}

// NewLoop returns a loop ticking every rate. commands may be nil.
func NewLoop(clock clockwork.Clock, world *World, driver Driver, inbound Inbound, commands <-chan Command, rate time.Duration) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &Loop{
		clock:    clock,
		world:    world,
		driver:   driver,
		inbound:  inbound,
		commands: commands,
		rate:     rate,
	}
	l.publish()
	return l
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// Start loads the save and begins day one.
func (l *Loop) Start(ctx context.Context) {
	l.world.Load()
	l.driver.OnSaveLoaded(ctx)
	l.driver.OnDayStarted(ctx)
	loc := l.world.LocalPlayer().Location
	if loc != nil {
		l.driver.OnWarped(ctx, l.world.local, *loc)
	}
	l.publish()
}

// Run starts the world and processes events until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.Start(ctx)

	ticker := l.clock.NewTicker(l.rate)
	defer ticker.Stop()
	last := l.clock.Now()

	var messages <-chan []byte
	var presence <-chan transport.Presence
	if l.inbound != nil {
		messages = l.inbound.Messages()
		presence = l.inbound.Presence()
	}

	log.Info().Dur("tick_rate", l.rate).Msg("game loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("game loop stopped")
			return ctx.Err()
		case now := <-ticker.Chan():
			l.Tick(ctx, now.Sub(last))
			last = now
		case raw := <-messages:
			l.driver.OnModMessageReceived(ctx, raw)
		case p := <-presence:
			l.HandlePresence(ctx, p)
		case cmd, ok := <-l.commands:
			if !ok {
				l.commands = nil
				continue
			}
			if err := l.Apply(ctx, cmd); err != nil {
				log.Warn().Err(err).Str("command", cmd.String()).Msg("command failed")
			}
		}
		l.publish()
	}
}

// Tick advances the world by dt and runs the per-frame events.
func (l *Loop) Tick(ctx context.Context, dt time.Duration) {
	frame, dayRolled := l.world.Step(int(dt.Milliseconds()))
	l.driver.OnUpdateTicked(ctx, frame)
	if !frame.Advanced {
		return
	}
	if dayRolled {
		log.Info().Int("day", l.world.Day()).Msg("new day")
		l.driver.OnDayStarted(ctx)
		return
	}
	l.driver.OnTimeChanged(ctx)
}

// HandlePresence keeps the farmer list in sync with the transport.
func (l *Loop) HandlePresence(ctx context.Context, p transport.Presence) {
	switch p.Kind {
	case transport.PresenceJoin:
		f := l.world.AddFarmer(p.Player)
		l.driver.OnPeerConnected(ctx, f)
	case transport.PresenceLeave:
		l.world.RemoveFarmer(p.Player.ID)
		l.driver.OnPeerDisconnected(ctx, p.Player.ID)
	}
}

func (l *Loop) publish() {
	local := l.world.LocalPlayer()
	s := &Snapshot{
		Day:            l.world.Day(),
		TimeOfDay:      l.world.TimeOfDay(),
		Progress:       l.world.TickProgress(),
		Frozen:         l.driver.IsTimeFrozen(),
		TickIntervalMs: l.driver.TickInterval(),
		Players:        l.world.Farmers(),
		UpdatedAt:      l.clock.Now(),
	}
	if local.Location != nil {
		s.Location = local.Location.ID()
	}
	l.snapshot.Store(s)
}
