package config

import (
	"math"
	"strings"

	"github.com/mcdev12/timespeed/go/internal/models"
)

// NeverFreezeTime is the anywhere-at-time value that disables the time-of-day freeze.
const NeverFreezeTime = 2600

// ModConfig is the persisted player configuration.
type ModConfig struct {
	EnableOnFestivalDays bool                   `yaml:"enable_on_festival_days"`
	LocationNotify       bool                   `yaml:"location_notify"`
	SecondsPerMinute     SecondsPerMinuteConfig `yaml:"seconds_per_minute"`
	FreezeTime           FreezeTimeConfig       `yaml:"freeze_time"`
	Keys                 ControlsConfig         `yaml:"keys"`
}

// SecondsPerMinuteConfig is the real seconds per in-game minute by terrain.
type SecondsPerMinuteConfig struct {
	Indoors        float64            `yaml:"indoors"`
	Outdoors       float64            `yaml:"outdoors"`
	Mines          float64            `yaml:"mines"`
	SkullCavern    float64            `yaml:"skull_cavern"`
	VolcanoDungeon float64            `yaml:"volcano_dungeon"`
	ByLocationName map[string]float64 `yaml:"by_location_name"`
}

// FreezeTimeConfig decides where and when time freezes, and who may change it.
type FreezeTimeConfig struct {
	HostOnly                 bool     `yaml:"host_only"`
	ClientVote               bool     `yaml:"client_vote"`
	VoteThreshold            float64  `yaml:"vote_threshold"`
	ClientVoteTimeoutMinutes int      `yaml:"client_vote_timeout_minutes"`
	AnywhereAtTime           *int     `yaml:"anywhere_at_time,omitempty"`
	Indoors                  bool     `yaml:"indoors"`
	Outdoors                 bool     `yaml:"outdoors"`
	Mines                    bool     `yaml:"mines"`
	SkullCavern              bool     `yaml:"skull_cavern"`
	VolcanoDungeon           bool     `yaml:"volcano_dungeon"`
	DuringEvents             bool     `yaml:"during_events"`
	ByLocationName           []string `yaml:"by_location_name"`
	ExceptLocationNames      []string `yaml:"except_location_names"`
}

// ControlsConfig holds key names; several alternatives are comma separated.
type ControlsConfig struct {
	FreezeTime           string `yaml:"freeze_time"`
	IncreaseTickInterval string `yaml:"increase_tick_interval"`
	DecreaseTickInterval string `yaml:"decrease_tick_interval"`
	ReloadConfig         string `yaml:"reload_config"`
}

// Default returns the configuration written on first run.
func Default() *ModConfig {
	return &ModConfig{
		EnableOnFestivalDays: true,
		LocationNotify:       false,
		SecondsPerMinute: SecondsPerMinuteConfig{
			Indoors:        1.4,
			Outdoors:       0.7,
			Mines:          0.7,
			SkullCavern:    0.9,
			VolcanoDungeon: 0.9,
			ByLocationName: map[string]float64{},
		},
		FreezeTime: FreezeTimeConfig{
			HostOnly:                 true,
			ClientVote:               false,
			VoteThreshold:            1.0,
			ClientVoteTimeoutMinutes: 10,
			ByLocationName:           []string{},
			ExceptLocationNames:      []string{},
		},
		Keys: ControlsConfig{
			FreezeTime:           "N",
			IncreaseTickInterval: "OemPeriod",
			DecreaseTickInterval: "OemComma",
			ReloadConfig:         "B",
		},
	}
}

// Policy is the host policy this config grants when it belongs to the host.
func (c *ModConfig) Policy() models.HostPolicy {
	return models.HostPolicy{
		HostOnly:      c.FreezeTime.HostOnly,
		VoteEnabled:   c.FreezeTime.ClientVote,
		VoteThreshold: c.FreezeTime.VoteThreshold,
	}
}

// ShouldFreezeAt reports whether time freezes in loc. Exceptions win over every other rule.
func (c *ModConfig) ShouldFreezeAt(loc models.Location) bool {
	ft := c.FreezeTime
	if matchesName(ft.ExceptLocationNames, loc) {
		return false
	}
	if matchesName(ft.ByLocationName, loc) {
		return true
	}

	switch loc.Kind() {
	case models.LocationKindMines:
		return ft.Mines
	case models.LocationKindSkullCavern:
		return ft.SkullCavern
	case models.LocationKindVolcanoDungeon:
		return ft.VolcanoDungeon
	case models.LocationKindOutdoors:
		return ft.Outdoors
	default:
		return ft.Indoors
	}
}

// ShouldFreezeAtTime reports whether the time-of-day cutoff has been reached.
// timeOfDay is in the game's 24h-plus format (600..2600).
func (c *ModConfig) ShouldFreezeAtTime(timeOfDay int) bool {
	at := c.FreezeTime.AnywhereAtTime
	if at == nil || *at >= NeverFreezeTime {
		return false
	}
	return timeOfDay >= *at
}

// FreezeDuringEvents reports whether cutscene events freeze time.
func (c *ModConfig) FreezeDuringEvents() bool {
	return c.FreezeTime.DuringEvents
}

// ShouldScale reports whether tick scaling applies today.
func (c *ModConfig) ShouldScale(isFestivalDay bool) bool {
	return c.EnableOnFestivalDays || !isFestivalDay
}

// SecondsPerMinuteAt returns the configured speed for loc.
func (c *ModConfig) SecondsPerMinuteAt(loc *models.Location) float64 {
	spm := c.SecondsPerMinute
	if loc == nil {
		return spm.Outdoors
	}
	if v, ok := lookupFold(spm.ByLocationName, loc.Name); ok {
		return v
	}
	if loc.IsDeepWoods() {
		if v, ok := lookupFold(spm.ByLocationName, models.DeepWoodsName); ok {
			return v
		}
	}

	switch loc.Kind() {
	case models.LocationKindMines:
		return spm.Mines
	case models.LocationKindSkullCavern:
		return spm.SkullCavern
	case models.LocationKindVolcanoDungeon:
		return spm.VolcanoDungeon
	case models.LocationKindOutdoors:
		return spm.Outdoors
	default:
		return spm.Indoors
	}
}

// TickIntervalAt returns milliseconds per 10 in-game minutes for loc.
func (c *ModConfig) TickIntervalAt(loc *models.Location) int {
	return int(math.Round(c.SecondsPerMinuteAt(loc)*1000)) * 10
}

func matchesName(names []string, loc models.Location) bool {
	for _, name := range names {
		if name == "" {
			continue
		}
		if strings.EqualFold(name, loc.Name) || strings.EqualFold(name, loc.UniqueName) {
			return true
		}
		if strings.EqualFold(name, models.DeepWoodsName) && loc.IsDeepWoods() {
			return true
		}
	}
	return false
}

func lookupFold(m map[string]float64, name string) (float64, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return 0, false
}
