// Package vote runs the host-side ballot for peer pause requests.
package vote

import (
	"errors"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
)

var (
	ErrVoteInProgress  = errors.New("a vote is already open")
	ErrNoVoteOpen      = errors.New("no vote is open")
	ErrNotParticipant  = errors.New("player is not a vote participant")
	ErrNotAuthorized   = errors.New("only the requester or the host may finish a vote")
	ErrInvalidDuration = errors.New("vote timeout must be positive")
)

// State is the ballot lifecycle.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateTallying
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateTallying:
		return "Tallying"
	default:
		return "Idle"
	}
}

// Clock is the subset of clockwork the coordinator needs.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// ClosedBy says why a tally ran.
type ClosedBy string

const (
	ClosedByExpiry ClosedBy = "expiry"
	ClosedByFinish ClosedBy = "finish"
)

// Result is the outcome of one tally.
type Result struct {
	Requester    models.PlayerID
	ClosedBy     ClosedBy
	Yes          int
	No           int
	Participants int
	Threshold    float64
	Passed       bool
	OpenedAt     time.Time
	ClosedAt     time.Time
	// Ballot is the snapshot taken before the reset; nil entries did not vote.
	Ballot map[models.PlayerID]*bool
}

// Cast returns how many participants voted.
func (r Result) Cast() int {
	return r.Yes + r.No
}

// Voters returns the ids that cast a vote, sorted.
func (r Result) Voters() []models.PlayerID {
	var ids []models.PlayerID
	for id, v := range r.Ballot {
		if v != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Coordinator owns the ballot. It is not safe for concurrent use; every call
// is expected on the game loop.
type Coordinator struct {
	clock     Clock
	host      models.PlayerID
	timeout   time.Duration
	threshold float64

	ballot    map[models.PlayerID]*bool
	state     State
	requester models.PlayerID
	openedAt  time.Time
	timer     clockwork.Timer
}

// NewCoordinator returns an idle coordinator for the given host.
func NewCoordinator(clock Clock, host models.PlayerID, timeout time.Duration, threshold float64) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		clock:     clock,
		host:      host,
		timeout:   timeout,
		threshold: threshold,
		ballot:    make(map[models.PlayerID]*bool),
	}
}

// SetThreshold changes the pass threshold; an open vote uses the new value at tally.
func (c *Coordinator) SetThreshold(threshold float64) {
	c.threshold = threshold
}

// Threshold returns the pass threshold.
func (c *Coordinator) Threshold() float64 {
	return c.threshold
}

// SetTimeout changes the countdown used by the next vote.
func (c *Coordinator) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	c.timeout = d
	return nil
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	return c.state
}

// Requester returns who opened the current vote.
func (c *Coordinator) Requester() (models.PlayerID, bool) {
	return c.requester, c.state == StateOpen
}

// AddParticipant creates an empty ballot entry.
func (c *Coordinator) AddParticipant(id models.PlayerID) {
	if _, ok := c.ballot[id]; !ok {
		c.ballot[id] = nil
	}
}

// RemoveParticipant drops the entry and any vote it held.
func (c *Coordinator) RemoveParticipant(id models.PlayerID) {
	delete(c.ballot, id)
}

// Participants returns the participant ids, sorted.
func (c *Coordinator) Participants() []models.PlayerID {
	ids := make([]models.PlayerID, 0, len(c.ballot))
	for id := range c.ballot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Vote returns the value cast by id, nil when absent.
func (c *Coordinator) Vote(id models.PlayerID) *bool {
	v := c.ballot[id]
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Open starts a vote for requester and its countdown.
func (c *Coordinator) Open(requester models.PlayerID) error {
	if c.state != StateIdle {
		return ErrVoteInProgress
	}
	if _, ok := c.ballot[requester]; !ok {
		return ErrNotParticipant
	}

	c.state = StateOpen
	c.requester = requester
	c.openedAt = c.clock.Now()
	c.timer = c.clock.NewTimer(c.timeout)

	log.Info().
		Int64("requester", int64(requester)).
		Dur("timeout", c.timeout).
		Int("participants", len(c.ballot)).
		Msg("pause vote opened")
	return nil
}

// Cast records value for a participant of the open vote. A later cast replaces an earlier one.
func (c *Coordinator) Cast(id models.PlayerID, value bool) error {
	if c.state != StateOpen {
		return ErrNoVoteOpen
	}
	if _, ok := c.ballot[id]; !ok {
		return ErrNotParticipant
	}
	c.ballot[id] = &value

	log.Debug().
		Int64("player_id", int64(id)).
		Bool("vote", value).
		Msg("vote cast")
	return nil
}

// Finish cancels the countdown and tallies now.
func (c *Coordinator) Finish(by models.PlayerID) (Result, error) {
	if c.state != StateOpen {
		return Result{}, ErrNoVoteOpen
	}
	if by != c.requester && by != c.host {
		return Result{}, ErrNotAuthorized
	}
	return c.tally(ClosedByFinish), nil
}

// Tick tallies once when the countdown has expired. It is called from the update loop.
func (c *Coordinator) Tick() (Result, bool) {
	if c.state != StateOpen || c.timer == nil {
		return Result{}, false
	}
	select {
	case <-c.timer.Chan():
		return c.tally(ClosedByExpiry), true
	default:
		return Result{}, false
	}
}

// Remaining returns the time left on the countdown, 0 when idle.
func (c *Coordinator) Remaining() time.Duration {
	if c.state != StateOpen {
		return 0
	}
	left := c.openedAt.Add(c.timeout).Sub(c.clock.Now())
	return max(left, 0)
}

// tally counts yes over cast votes; nobody voting never passes.
func (c *Coordinator) tally(by ClosedBy) Result {
	c.state = StateTallying

	r := Result{
		Requester:    c.requester,
		ClosedBy:     by,
		Participants: len(c.ballot),
		Threshold:    c.threshold,
		OpenedAt:     c.openedAt,
		ClosedAt:     c.clock.Now(),
		Ballot:       make(map[models.PlayerID]*bool, len(c.ballot)),
	}
	for id, v := range c.ballot {
		if v != nil {
			if *v {
				r.Yes++
			} else {
				r.No++
			}
			cast := *v
			r.Ballot[id] = &cast
		} else {
			r.Ballot[id] = nil
		}
	}
	if cast := r.Cast(); cast > 0 {
		r.Passed = float64(r.Yes)/float64(cast) >= r.Threshold
	}

	c.reset()

	log.Info().
		Int64("requester", int64(r.Requester)).
		Str("closed_by", string(r.ClosedBy)).
		Int("yes", r.Yes).
		Int("no", r.No).
		Float64("threshold", r.Threshold).
		Bool("passed", r.Passed).
		Msg("pause vote tallied")
	return r
}

func (c *Coordinator) reset() {
	for id := range c.ballot {
		c.ballot[id] = nil
	}
	if c.timer != nil {
		stopAndDrainTimer(c.timer)
		c.timer = nil
	}
	c.requester = 0
	c.openedAt = time.Time{}
	c.state = StateIdle
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
