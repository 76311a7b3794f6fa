package config

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog/log"
)

const (
	minVoteTimeoutMinutes = 1
	maxVoteTimeoutMinutes = 60
	minAnywhereAtTime     = 600
)

// KnownLocationNames are the vanilla location names used for typo suggestions.
var KnownLocationNames = []string{
	"AnimalShop", "ArchaeologyHouse", "Backwoods", "BathHouse_Pool", "Beach",
	"Blacksmith", "BugLand", "BusStop", "Caldera", "Cellar", "Club",
	"CommunityCenter", "DeepWoods", "Desert", "Farm", "FarmHouse", "Forest",
	"Greenhouse", "HaleyHouse", "Hospital", "IslandEast", "IslandNorth",
	"IslandSouth", "IslandWest", "JojaMart", "JoshHouse", "ManorHouse",
	"MermaidHouse", "Mine", "Mountain", "Railroad", "SamHouse", "Saloon",
	"ScienceHouse", "SeedShop", "Sewer", "SkullCave", "Submarine", "Tent",
	"Town", "VolcanoDungeon", "WizardHouse", "Woods",
}

// Validate clamps out-of-range values back into range and returns a note per fix.
// Location names that look like typos of a known location are reported but kept.
func Validate(cfg *ModConfig) []string {
	defaults := Default()
	var notes []string
	fix := func(format string, args ...any) {
		note := fmt.Sprintf(format, args...)
		notes = append(notes, note)
		log.Warn().Str("fix", note).Msg("config value adjusted")
	}

	ft := &cfg.FreezeTime
	if ft.VoteThreshold < 0 || ft.VoteThreshold > 1 {
		fix("vote_threshold %.2f out of range, using %.2f", ft.VoteThreshold, clamp(ft.VoteThreshold, 0, 1))
		ft.VoteThreshold = clamp(ft.VoteThreshold, 0, 1)
	}
	if ft.ClientVoteTimeoutMinutes < minVoteTimeoutMinutes || ft.ClientVoteTimeoutMinutes > maxVoteTimeoutMinutes {
		fix("client_vote_timeout_minutes %d out of range, using %d", ft.ClientVoteTimeoutMinutes, defaults.FreezeTime.ClientVoteTimeoutMinutes)
		ft.ClientVoteTimeoutMinutes = defaults.FreezeTime.ClientVoteTimeoutMinutes
	}
	if ft.AnywhereAtTime != nil && (*ft.AnywhereAtTime < minAnywhereAtTime || *ft.AnywhereAtTime > NeverFreezeTime) {
		fix("anywhere_at_time %d out of range, freeze at time disabled", *ft.AnywhereAtTime)
		ft.AnywhereAtTime = nil
	}

	spm := &cfg.SecondsPerMinute
	speeds := []struct {
		name string
		val  *float64
		def  float64
	}{
		{"indoors", &spm.Indoors, defaults.SecondsPerMinute.Indoors},
		{"outdoors", &spm.Outdoors, defaults.SecondsPerMinute.Outdoors},
		{"mines", &spm.Mines, defaults.SecondsPerMinute.Mines},
		{"skull_cavern", &spm.SkullCavern, defaults.SecondsPerMinute.SkullCavern},
		{"volcano_dungeon", &spm.VolcanoDungeon, defaults.SecondsPerMinute.VolcanoDungeon},
	}
	for _, s := range speeds {
		if *s.val < 0 {
			fix("seconds_per_minute.%s %.2f is negative, using %.2f", s.name, *s.val, s.def)
			*s.val = s.def
		}
	}
	for name, v := range spm.ByLocationName {
		if v < 0 {
			fix("seconds_per_minute.by_location_name[%s] %.2f is negative, removed", name, v)
			delete(spm.ByLocationName, name)
		}
	}

	names := make([]string, 0, len(spm.ByLocationName)+len(ft.ByLocationName)+len(ft.ExceptLocationNames))
	for name := range spm.ByLocationName {
		names = append(names, name)
	}
	names = append(names, ft.ByLocationName...)
	names = append(names, ft.ExceptLocationNames...)
	for _, name := range names {
		if suggestion, ok := Suggest(name); ok {
			log.Warn().
				Str("location", name).
				Str("suggestion", suggestion).
				Msg("unknown location name, did you mean the suggestion?")
		}
	}

	return notes
}

// Suggest returns the closest known location name when name is not known
// but within a small edit distance of one.
func Suggest(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	lower := strings.ToLower(name)
	best, bestDist := "", -1
	for _, known := range KnownLocationNames {
		k := strings.ToLower(known)
		if k == lower || strings.HasPrefix(lower, strings.ToLower(known)+"_") {
			return "", false
		}
		dist := levenshtein.ComputeDistance(lower, k)
		if dist > suggestLimit(len(k)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = known, dist
		}
	}
	return best, bestDist >= 0
}

func suggestLimit(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
