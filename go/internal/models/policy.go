package models

// HostPolicy is the host's authority settings. Peers only ever hold a cached copy.
type HostPolicy struct {
	HostOnly      bool    `json:"host_only"`
	VoteEnabled   bool    `json:"vote_enabled"`
	VoteThreshold float64 `json:"vote_threshold"`
}

// DefaultHostPolicy is assumed until the host says otherwise.
func DefaultHostPolicy() HostPolicy {
	return HostPolicy{
		HostOnly:      true,
		VoteEnabled:   false,
		VoteThreshold: 1.0,
	}
}
