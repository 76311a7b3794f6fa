package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/timespeed/go/internal/models"
)

func intPtr(v int) *int { return &v }

func TestShouldFreezeAt(t *testing.T) {
	cfg := Default()
	cfg.FreezeTime.Mines = true
	cfg.FreezeTime.ByLocationName = []string{"saloon", "DeepWoods"}
	cfg.FreezeTime.ExceptLocationNames = []string{"UndergroundMine5"}

	tests := []struct {
		name string
		loc  models.Location
		want bool
	}{
		{"indoors flag off", models.Location{Name: "FarmHouse"}, false},
		{"by name case insensitive", models.Location{Name: "Saloon"}, true},
		{"deep woods alias", models.Location{Name: "DeepWoods_12", IsOutdoors: true}, true},
		{"mines flag", models.Location{Name: "UndergroundMine20", MineLevel: 20}, true},
		{"exception wins", models.Location{Name: "UndergroundMine5", MineLevel: 5}, false},
		{"skull cavern separate", models.Location{Name: "UndergroundMine130", MineLevel: 130}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ShouldFreezeAt(tt.loc); got != tt.want {
				t.Errorf("ShouldFreezeAt(%s) = %v, want %v", tt.loc.Name, got, tt.want)
			}
		})
	}
}

func TestShouldFreezeAtTime(t *testing.T) {
	cfg := Default()
	if cfg.ShouldFreezeAtTime(2500) {
		t.Fatal("absent anywhere_at_time must never freeze")
	}
	cfg.FreezeTime.AnywhereAtTime = intPtr(NeverFreezeTime)
	if cfg.ShouldFreezeAtTime(2600) {
		t.Fatal("2600 must never freeze")
	}
	cfg.FreezeTime.AnywhereAtTime = intPtr(2200)
	if cfg.ShouldFreezeAtTime(2150) {
		t.Error("2150 is before the cutoff")
	}
	if !cfg.ShouldFreezeAtTime(2200) {
		t.Error("2200 is at the cutoff")
	}
}

func TestTickIntervalAt(t *testing.T) {
	cfg := Default()
	cfg.SecondsPerMinute.ByLocationName = map[string]float64{"deepwoods": 2.0, "Town": 1.0}

	tests := []struct {
		name string
		loc  *models.Location
		want int
	}{
		{"no location uses outdoors", nil, 7000},
		{"indoors", &models.Location{Name: "FarmHouse"}, 14000},
		{"skull cavern", &models.Location{Name: "UndergroundMine150", MineLevel: 150}, 9000},
		{"by name", &models.Location{Name: "town", IsOutdoors: true}, 10000},
		{"deep woods alias", &models.Location{Name: "DeepWoods_3", IsOutdoors: true}, 20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.TickIntervalAt(tt.loc); got != tt.want {
				t.Errorf("TickIntervalAt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShouldScale(t *testing.T) {
	cfg := Default()
	cfg.EnableOnFestivalDays = false
	if cfg.ShouldScale(true) {
		t.Error("festival day with scaling disabled")
	}
	if !cfg.ShouldScale(false) {
		t.Error("regular day always scales")
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := Default()
	cfg.FreezeTime.VoteThreshold = 1.5
	cfg.FreezeTime.ClientVoteTimeoutMinutes = 0
	cfg.FreezeTime.AnywhereAtTime = intPtr(3000)
	cfg.SecondsPerMinute.Indoors = -1
	cfg.SecondsPerMinute.ByLocationName["Town"] = -2

	notes := Validate(cfg)
	if len(notes) != 5 {
		t.Errorf("expected 5 notes, got %d: %v", len(notes), notes)
	}
	if cfg.FreezeTime.VoteThreshold != 1 {
		t.Errorf("threshold = %v", cfg.FreezeTime.VoteThreshold)
	}
	if cfg.FreezeTime.ClientVoteTimeoutMinutes != 10 {
		t.Errorf("timeout = %d", cfg.FreezeTime.ClientVoteTimeoutMinutes)
	}
	if cfg.FreezeTime.AnywhereAtTime != nil {
		t.Error("anywhere_at_time should be cleared")
	}
	if cfg.SecondsPerMinute.Indoors != 1.4 {
		t.Errorf("indoors = %v", cfg.SecondsPerMinute.Indoors)
	}
	if _, ok := cfg.SecondsPerMinute.ByLocationName["Town"]; ok {
		t.Error("negative by-name speed should be removed")
	}
	if notes := Validate(Default()); len(notes) != 0 {
		t.Errorf("defaults should validate cleanly, got %v", notes)
	}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Salon", "Saloon", true},
		{"saloon", "", false},
		{"DeepWoods_4", "", false},
		{"CompletelyCustomPlace", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Suggest(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Suggest(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestControlsMatch(t *testing.T) {
	keys := Default().Keys
	keys.FreezeTime = "N, F9"

	a := keys.Match(NewPressed("f9"))
	if !a.ToggleFreeze || a.Increase != nil || a.ReloadConfig {
		t.Errorf("unexpected actions %+v", a)
	}
	a = keys.Match(NewPressed("OemPeriod"))
	if a.Increase == nil || !*a.Increase {
		t.Errorf("expected increase, got %+v", a)
	}
	a = keys.Match(NewPressed("OemPeriod", "OemComma"))
	if a.Increase == nil || *a.Increase {
		t.Errorf("decrease should win, got %+v", a)
	}
	if keys.Match(NewPressed("Q")).Any() {
		t.Error("unbound key matched")
	}
}

func TestFileStoreWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	store := NewFileStore(path)

	cfg, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.FreezeTime.VoteThreshold != 1.0 {
		t.Errorf("threshold = %v", cfg.FreezeTime.VoteThreshold)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}

	cfg.FreezeTime.ClientVote = true
	cfg.FreezeTime.AnywhereAtTime = intPtr(2400)
	if err := store.Write(cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.FreezeTime.ClientVote || got.FreezeTime.AnywhereAtTime == nil || *got.FreezeTime.AnywhereAtTime != 2400 {
		t.Errorf("round trip lost values: %+v", got.FreezeTime)
	}
}

func TestParseKeepsDefaultsForOmittedKeys(t *testing.T) {
	cfg, err := Parse([]byte("freeze_time:\n  client_vote: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.FreezeTime.ClientVote {
		t.Error("client_vote not read")
	}
	if !cfg.FreezeTime.HostOnly || cfg.SecondsPerMinute.Indoors != 1.4 || cfg.Keys.FreezeTime != "N" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := Settings{Role: "spectator", Transport: TransportNATS, PlayerID: 1}
	if err := s.Validate(); err == nil {
		t.Error("expected invalid role")
	}
	s.Role = RolePeer
	s.Transport = "carrier-pigeon"
	if err := s.Validate(); err == nil {
		t.Error("expected invalid transport")
	}
	s.Transport = TransportWebSocket
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if s.IsHost() {
		t.Error("peer reported as host")
	}

	s.Transport = TransportNATS
	if err := s.Validate(); !errors.Is(err, ErrMissingHostID) {
		t.Errorf("NATS peer without host id: err = %v, want ErrMissingHostID", err)
	}
	s.HostID = 7
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if s.Host() != 7 {
		t.Errorf("Host() = %d, want 7", s.Host())
	}

	host := Settings{Role: RoleHost, Transport: TransportNATS, PlayerID: 1, HostID: 9}
	if err := host.Validate(); err != nil {
		t.Errorf("host: unexpected error: %v", err)
	}
	if host.Host() != 1 {
		t.Errorf("host Host() = %d, want its own id", host.Host())
	}
}
