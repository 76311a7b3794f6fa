// Package sim runs the time subsystem without the game: World stands in for
// the game state and Loop drives the orchestrator from one goroutine.
package sim

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/tickclock"
)

const (
	dayStart = 600
	dayEnd   = 2600

	// HomeLocation is where every farmer starts the day.
	HomeLocation = "FarmHouse"
)

var ErrUnknownLocation = errors.New("unknown location")

// Catalog returns the locations the simulated world knows.
func Catalog() []models.Location {
	locations := []models.Location{
		{Name: "Farm", IsOutdoors: true},
		{Name: "FarmHouse"},
		{Name: "Town", IsOutdoors: true},
		{Name: "Beach", IsOutdoors: true},
		{Name: "Mountain", IsOutdoors: true},
		{Name: "Forest", IsOutdoors: true},
		{Name: "Saloon"},
		{Name: "SeedShop"},
		{Name: "Mine"},
		{Name: "SkullCave"},
		{Name: "Desert", IsOutdoors: true},
		{Name: "IslandSouth", IsOutdoors: true},
		{Name: "DeepWoods", IsOutdoors: true},
		{Name: "DeepWoods_5", IsOutdoors: true},
	}
	for _, level := range []int{1, 40, 80, 120, 121, 200} {
		locations = append(locations, models.Location{
			Name:       "UndergroundMine",
			UniqueName: mineName(level),
			MineLevel:  level,
		})
	}
	locations = append(locations, models.Location{
		Name:       "VolcanoDungeon",
		UniqueName: "VolcanoDungeon3",
		IsVolcano:  true,
	})
	return locations
}

func mineName(level int) string {
	return "UndergroundMine" + strconv.Itoa(level)
}

// World is the simulated game state. It implements orchestrator.Game and is
// only touched from the loop goroutine.
type World struct {
	local     models.PlayerID
	farmers   map[models.PlayerID]*models.Farmer
	order     []models.PlayerID
	locations map[string]*models.Location

	ready     bool
	day       int
	timeOfDay int
	festival  bool
	event     bool
	menuOpen  bool
	typing    bool
	progress  float64
}

// NewWorld returns a world that is not loaded yet, holding only the local player.
func NewWorld(local models.Farmer) *World {
	w := &World{
		local:     local.ID,
		farmers:   make(map[models.PlayerID]*models.Farmer),
		locations: make(map[string]*models.Location),
		timeOfDay: dayStart,
	}
	for _, loc := range Catalog() {
		w.locations[strings.ToLower(loc.ID())] = &loc
	}
	w.AddFarmer(local)
	return w
}

// Load marks the save as loaded and starts day one.
func (w *World) Load() {
	w.ready = true
	w.day = 1
	w.timeOfDay = dayStart
	w.progress = 0
}

// AddFarmer adds or replaces a farmer, placing it at home when it has no location.
func (w *World) AddFarmer(f models.Farmer) models.Farmer {
	if f.Location == nil {
		f.Location = w.locations[strings.ToLower(HomeLocation)]
	}
	if _, ok := w.farmers[f.ID]; !ok {
		w.order = append(w.order, f.ID)
	}
	w.farmers[f.ID] = &f
	return f
}

// RemoveFarmer drops a farmer.
func (w *World) RemoveFarmer(id models.PlayerID) {
	if id == w.local {
		return
	}
	delete(w.farmers, id)
	w.order = slices.DeleteFunc(w.order, func(p models.PlayerID) bool { return p == id })
}

// Warp moves a farmer to a known location.
func (w *World) Warp(id models.PlayerID, name string) (models.Location, error) {
	f, ok := w.farmers[id]
	if !ok {
		return models.Location{}, errors.New("unknown farmer")
	}
	loc, ok := w.locations[strings.ToLower(name)]
	if !ok {
		return models.Location{}, ErrUnknownLocation
	}
	f.Location = loc
	return *loc, nil
}

// Step advances the game's own clock by dtMs and reports the frame the
// orchestrator sees. dayRolled is true when the day ended and a new one began.
func (w *World) Step(dtMs int) (frame tickclock.Frame, dayRolled bool) {
	if !w.ready {
		return tickclock.Frame{Progress: w.progress}, false
	}
	w.progress += float64(dtMs) / float64(w.DefaultTickInterval())
	if w.progress < 1 {
		return tickclock.Frame{Progress: w.progress}, false
	}

	w.progress -= 1
	if w.progress > 1 {
		w.progress = 0
	}
	w.timeOfDay = addTenMinutes(w.timeOfDay)
	if w.timeOfDay >= dayEnd {
		w.day++
		w.timeOfDay = dayStart
		w.progress = 0
		w.event = false
		for _, f := range w.farmers {
			f.Location = w.locations[strings.ToLower(HomeLocation)]
		}
		dayRolled = true
	}
	return tickclock.Frame{Progress: w.progress, Advanced: true}, dayRolled
}

// addTenMinutes advances an hhmm clock value.
func addTenMinutes(t int) int {
	t += 10
	if t%100 >= 60 {
		t += 100 - 60
	}
	return t
}

// SetTime jumps to an hhmm time of day.
func (w *World) SetTime(t int) {
	w.timeOfDay = t
}

// Day returns the current day number.
func (w *World) Day() int { return w.day }

func (w *World) SetFestival(on bool) { w.festival = on }
func (w *World) SetEvent(on bool)    { w.event = on }
func (w *World) SetMenuOpen(on bool) { w.menuOpen = on }
func (w *World) SetTyping(on bool)   { w.typing = on }

func (w *World) WorldReady() bool      { return w.ready }
func (w *World) IsFestivalDay() bool   { return w.festival }
func (w *World) TimeOfDay() int        { return w.timeOfDay }
func (w *World) EventActive() bool     { return w.event }
func (w *World) PlayerFree() bool      { return !w.menuOpen && !w.event }
func (w *World) TextInputActive() bool { return w.typing }

func (w *World) LocalPlayer() models.Farmer {
	return *w.farmers[w.local]
}

func (w *World) Farmer(id models.PlayerID) (models.Farmer, bool) {
	f, ok := w.farmers[id]
	if !ok {
		return models.Farmer{}, false
	}
	return *f, true
}

func (w *World) Farmers() []models.Farmer {
	out := make([]models.Farmer, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.farmers[id])
	}
	return out
}

// Location looks a location up by unique name, case-insensitively.
func (w *World) Location(id string) (*models.Location, bool) {
	loc, ok := w.locations[strings.ToLower(id)]
	if !ok {
		return nil, false
	}
	cp := *loc
	return &cp, true
}

func (w *World) DefaultTickInterval() int { return tickclock.GameIntervalMs }

func (w *World) TickProgress() float64 { return w.progress }

func (w *World) SetTickProgress(progress float64) { w.progress = progress }
