package config

import "strings"

// Pressed is the set of key names the framework reports as just pressed.
type Pressed map[string]bool

// NewPressed builds a Pressed set from key names.
func NewPressed(keys ...string) Pressed {
	p := make(Pressed, len(keys))
	for _, k := range keys {
		p[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return p
}

// InputActions is what a button change asks for.
type InputActions struct {
	ToggleFreeze bool
	Increase     *bool
	ReloadConfig bool
}

// Any reports whether at least one action was requested.
func (a InputActions) Any() bool {
	return a.ToggleFreeze || a.Increase != nil || a.ReloadConfig
}

// Match maps pressed keys onto actions. Decrease wins when both interval keys are pressed.
func (k ControlsConfig) Match(pressed Pressed) InputActions {
	var actions InputActions
	actions.ToggleFreeze = bound(k.FreezeTime, pressed)
	actions.ReloadConfig = bound(k.ReloadConfig, pressed)
	if bound(k.IncreaseTickInterval, pressed) {
		v := true
		actions.Increase = &v
	}
	if bound(k.DecreaseTickInterval, pressed) {
		v := false
		actions.Increase = &v
	}
	return actions
}

func bound(binding string, pressed Pressed) bool {
	for _, key := range strings.Split(binding, ",") {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" && pressed[key] {
			return true
		}
	}
	return false
}
