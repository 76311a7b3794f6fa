package models

// AutoFreezeReason is why time was frozen automatically, ignoring player overrides.
type AutoFreezeReason string

const (
	AutoFreezeNone              AutoFreezeReason = "None"
	AutoFreezeFrozenForLocation AutoFreezeReason = "FrozenForLocation"
	AutoFreezeFrozenAtTime      AutoFreezeReason = "FrozenAtTime"
	AutoFreezeFrozenDuringEvent AutoFreezeReason = "FrozenDuringEvent"
)

// FreezeMethod is how a manipulate request wants time frozen.
type FreezeMethod string

const (
	FreezeMethodNone   FreezeMethod = "None"
	FreezeMethodManual FreezeMethod = "Manual"
	FreezeMethodEvent  FreezeMethod = "Event"
)

// Valid reports whether m is a known method.
func (m FreezeMethod) Valid() bool {
	switch m {
	case FreezeMethodNone, FreezeMethodManual, FreezeMethodEvent:
		return true
	}
	return false
}

// ForbiddenReason is why the host refused a peer request.
type ForbiddenReason string

const (
	ForbiddenHostDisabled ForbiddenReason = "HostDisabled"
	ForbiddenHostError    ForbiddenReason = "HostError"
	ForbiddenUnknown      ForbiddenReason = "Unknown"
)
