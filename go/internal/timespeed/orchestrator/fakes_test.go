package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/vote"
)

const testModID = "test.TimeSpeed"

type fakeGame struct {
	ready     bool
	festival  bool
	timeOfDay int
	event     bool
	busy      bool
	typing    bool
	progress  float64
	writes    int

	local     models.PlayerID
	farmers   map[models.PlayerID]*models.Farmer
	order     []models.PlayerID
	locations map[string]*models.Location
}

func newFakeGame(local models.PlayerID, farmers ...models.Farmer) *fakeGame {
	g := &fakeGame{
		ready:     true,
		timeOfDay: 600,
		local:     local,
		farmers:   make(map[models.PlayerID]*models.Farmer),
		locations: make(map[string]*models.Location),
	}
	for _, f := range farmers {
		g.farmers[f.ID] = &f
		g.order = append(g.order, f.ID)
		if f.Location != nil {
			g.locations[f.Location.ID()] = f.Location
		}
	}
	return g
}

func (g *fakeGame) WorldReady() bool           { return g.ready }
func (g *fakeGame) IsFestivalDay() bool        { return g.festival }
func (g *fakeGame) TimeOfDay() int             { return g.timeOfDay }
func (g *fakeGame) EventActive() bool          { return g.event }
func (g *fakeGame) PlayerFree() bool           { return !g.busy }
func (g *fakeGame) TextInputActive() bool      { return g.typing }
func (g *fakeGame) LocalPlayer() models.Farmer { return *g.farmers[g.local] }
func (g *fakeGame) DefaultTickInterval() int   { return 7000 }
func (g *fakeGame) TickProgress() float64      { return g.progress }

func (g *fakeGame) SetTickProgress(p float64) {
	g.progress = p
	g.writes++
}

func (g *fakeGame) Farmer(id models.PlayerID) (models.Farmer, bool) {
	f, ok := g.farmers[id]
	if !ok {
		return models.Farmer{}, false
	}
	return *f, true
}

func (g *fakeGame) Farmers() []models.Farmer {
	out := make([]models.Farmer, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.farmers[id])
	}
	return out
}

func (g *fakeGame) Location(id string) (*models.Location, bool) {
	loc, ok := g.locations[id]
	return loc, ok
}

func (g *fakeGame) warp(id models.PlayerID, loc *models.Location) {
	g.farmers[id].Location = loc
	g.locations[loc.ID()] = loc
}

type memStore struct {
	cfg    *config.ModConfig
	writes int
}

func (s *memStore) Read() (*config.ModConfig, error) {
	cp := *s.cfg
	return &cp, nil
}

func (s *memStore) Write(cfg *config.ModConfig) error {
	cp := *cfg
	s.cfg = &cp
	s.writes++
	return nil
}

type shown struct {
	message string
	d       time.Duration
}

type fakeDisplay struct{ shown []shown }

func (d *fakeDisplay) Show(message string, dur time.Duration) {
	d.shown = append(d.shown, shown{message, dur})
}

func (d *fakeDisplay) last() shown {
	if len(d.shown) == 0 {
		return shown{}
	}
	return d.shown[len(d.shown)-1]
}

func (d *fakeDisplay) count(message string) int {
	n := 0
	for _, s := range d.shown {
		if s.message == message {
			n++
		}
	}
	return n
}

type sentMessage struct {
	env messages.Envelope
	to  []models.PlayerID
}

type recordingTransport struct{ sent []sentMessage }

func (t *recordingTransport) Send(_ context.Context, raw []byte, to []models.PlayerID) error {
	env, err := messages.Decode(raw)
	if err != nil {
		return err
	}
	t.sent = append(t.sent, sentMessage{env: env, to: to})
	return nil
}

func (t *recordingTransport) ofKind(k messages.Kind) []sentMessage {
	var out []sentMessage
	for _, m := range t.sent {
		if m.env.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

type fakeRecorder struct {
	votes    []vote.Result
	policies []models.HostPolicy
}

func (r *fakeRecorder) RecordVote(_ context.Context, res vote.Result) error {
	r.votes = append(r.votes, res)
	return nil
}

func (r *fakeRecorder) RecordPolicy(_ context.Context, _ models.PlayerID, p models.HostPolicy) error {
	r.policies = append(r.policies, p)
	return nil
}

func raw(t *testing.T, sender models.PlayerID, payload any) []byte {
	t.Helper()
	env, err := messages.NewEnvelope(testModID, sender, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	b, err := messages.Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func decodeAs[T any](t *testing.T, env messages.Envelope) T {
	t.Helper()
	var p T
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode %s: %v", env.Kind, err)
	}
	return p
}
