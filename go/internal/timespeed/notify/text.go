package notify

import (
	"fmt"
	"math"

	"github.com/mcdev12/timespeed/go/internal/models"
)

const (
	TextTimeStopped            = "Time stopped."
	TextTimeResumed            = "Time resumed."
	TextConfigReloaded         = "Time feels refreshed."
	TextTimeStoppedAtTime      = "It's getting late. Time has stopped."
	TextLocationStoppedGlobal  = "Time is stopped everywhere."
	TextLocationStoppedHere    = "Time is stopped here."
	TextLocationStoppedEvent   = "Time is stopped during this event."
	TextForbiddenHostDisabled  = "The host has disabled time changes."
	TextForbiddenHostError     = "The host could not process the time request."
	TextForbiddenUnknown       = "The host rejected the time request."
	TextVoteStarted            = "Pause vote started."
	textSpeedChanged           = "10 in-game minutes now last %d seconds."
	textLocationSpeed          = "Time here: %d seconds per 10 in-game minutes."
	textHostChangedHostOnly    = "Host turned host-only time control %s."
	textHostChangedVoteEnabled = "Host turned pause voting %s."
	textHostChangedThreshold   = "Host set the pause vote threshold to %d%%."
	textUnknownRequest         = "%s sent a time request that could not be processed."
	textVotePassed             = "Pause vote passed (%d of %d voted yes)."
	textVoteFailed             = "Pause vote failed (%d of %d voted yes)."
)

// Toggled is the text for a freeze toggle result.
func Toggled(frozen bool) string {
	if frozen {
		return TextTimeStopped
	}
	return TextTimeResumed
}

// SpeedChanged reports a new tick interval.
func SpeedChanged(intervalMs int) string {
	return fmt.Sprintf(textSpeedChanged, intervalMs/1000)
}

// LocationSummary is the entry text for a location.
func LocationSummary(reason models.AutoFreezeReason, frozen bool, intervalMs int) string {
	if frozen {
		switch reason {
		case models.AutoFreezeFrozenAtTime:
			return TextLocationStoppedGlobal
		case models.AutoFreezeFrozenForLocation:
			return TextLocationStoppedHere
		case models.AutoFreezeFrozenDuringEvent:
			return TextLocationStoppedEvent
		}
	}
	return fmt.Sprintf(textLocationSpeed, intervalMs/1000)
}

// Forbidden is the text a peer sees when the host refuses a request.
func Forbidden(reason models.ForbiddenReason) string {
	switch reason {
	case models.ForbiddenHostDisabled:
		return TextForbiddenHostDisabled
	case models.ForbiddenHostError:
		return TextForbiddenHostError
	default:
		return TextForbiddenUnknown
	}
}

// HostOnlyChanged describes a host-only policy change.
func HostOnlyChanged(on bool) string {
	return fmt.Sprintf(textHostChangedHostOnly, onOff(on))
}

// VoteEnabledChanged describes a voting policy change.
func VoteEnabledChanged(on bool) string {
	return fmt.Sprintf(textHostChangedVoteEnabled, onOff(on))
}

// ThresholdChanged describes a new vote threshold.
func ThresholdChanged(threshold float64) string {
	return fmt.Sprintf(textHostChangedThreshold, int(math.Round(threshold*100)))
}

// UnknownRequest is shown when a peer's request cannot be interpreted.
func UnknownRequest(name string) string {
	return fmt.Sprintf(textUnknownRequest, name)
}

// VoteOutcome summarizes a tally.
func VoteOutcome(passed bool, yes, cast int) string {
	if passed {
		return fmt.Sprintf(textVotePassed, yes, cast)
	}
	return fmt.Sprintf(textVoteFailed, yes, cast)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
