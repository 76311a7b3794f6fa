package models

import "strings"

// LocationKind groups locations that share a time speed and freeze flag.
type LocationKind string

const (
	LocationKindIndoors        LocationKind = "INDOORS"
	LocationKindOutdoors       LocationKind = "OUTDOORS"
	LocationKindMines          LocationKind = "MINES"
	LocationKindSkullCavern    LocationKind = "SKULL_CAVERN"
	LocationKindVolcanoDungeon LocationKind = "VOLCANO_DUNGEON"
)

// SkullCavernMinLevel is the first mine level that belongs to the Skull Cavern.
const SkullCavernMinLevel = 121

// DeepWoodsName is the alias that matches every generated Deep Woods level.
const DeepWoodsName = "DeepWoods"

// Location describes a game location.
type Location struct {
	Name       string `json:"name"`
	UniqueName string `json:"unique_name,omitempty"`
	IsOutdoors bool   `json:"is_outdoors"`
	MineLevel  int    `json:"mine_level,omitempty"` // 0 when not a mine shaft
	IsVolcano  bool   `json:"is_volcano,omitempty"`
}

// ID returns the unique name if set, otherwise the name.
func (l Location) ID() string {
	if l.UniqueName != "" {
		return l.UniqueName
	}
	return l.Name
}

// Kind classifies the location.
func (l Location) Kind() LocationKind {
	switch {
	case l.MineLevel > 0 && l.MineLevel < SkullCavernMinLevel:
		return LocationKindMines
	case l.MineLevel >= SkullCavernMinLevel:
		return LocationKindSkullCavern
	case l.IsVolcano:
		return LocationKindVolcanoDungeon
	case l.IsOutdoors:
		return LocationKindOutdoors
	default:
		return LocationKindIndoors
	}
}

// IsDeepWoods reports whether the location is part of the Deep Woods family.
func (l Location) IsDeepWoods() bool {
	return l.Name == DeepWoodsName || strings.HasPrefix(l.Name, DeepWoodsName+"_")
}
