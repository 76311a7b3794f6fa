package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

type TimespeedVote struct {
	ID           uuid.UUID             `json:"id"`
	SessionID    string                `json:"session_id"`
	Requester    int64                 `json:"requester"`
	ClosedBy     string                `json:"closed_by"`
	YesCount     int32                 `json:"yes_count"`
	NoCount      int32                 `json:"no_count"`
	Participants int32                 `json:"participants"`
	Threshold    float64               `json:"threshold"`
	Passed       bool                  `json:"passed"`
	Voters       pq.Int64Array         `json:"voters"`
	Ballot       pqtype.NullRawMessage `json:"ballot"`
	OpenedAt     time.Time             `json:"opened_at"`
	ClosedAt     time.Time             `json:"closed_at"`
}

type TimespeedBallot struct {
	VoteID   uuid.UUID `json:"vote_id"`
	PlayerID int64     `json:"player_id"`
	Yes      bool      `json:"yes"`
}

type TimespeedPolicy struct {
	ID            uuid.UUID `json:"id"`
	SessionID     string    `json:"session_id"`
	HostID        int64     `json:"host_id"`
	HostOnly      bool      `json:"host_only"`
	VoteEnabled   bool      `json:"vote_enabled"`
	VoteThreshold float64   `json:"vote_threshold"`
	CreatedAt     time.Time `json:"created_at"`
}
