package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const createVote = `-- name: CreateVote :one
INSERT INTO timespeed_votes (
  id, session_id, requester, closed_by, yes_count, no_count,
  participants, threshold, passed, voters, ballot, opened_at, closed_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
RETURNING id, session_id, requester, closed_by, yes_count, no_count, participants, threshold, passed, voters, ballot, opened_at, closed_at
`

type CreateVoteParams struct {
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

func (q *Queries) CreateVote(ctx context.Context, arg CreateVoteParams) (TimespeedVote, error) {
	row := q.db.QueryRowContext(ctx, createVote,
		arg.ID,
		arg.SessionID,
		arg.Requester,
		arg.ClosedBy,
		arg.YesCount,
		arg.NoCount,
		arg.Participants,
		arg.Threshold,
		arg.Passed,
		arg.Voters,
		arg.Ballot,
		arg.OpenedAt,
		arg.ClosedAt,
	)
	var i TimespeedVote
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.Requester,
		&i.ClosedBy,
		&i.YesCount,
		&i.NoCount,
		&i.Participants,
		&i.Threshold,
		&i.Passed,
		&i.Voters,
		&i.Ballot,
		&i.OpenedAt,
		&i.ClosedAt,
	)
	return i, err
}

const createBallot = `-- name: CreateBallot :exec
INSERT INTO timespeed_ballots (vote_id, player_id, yes) VALUES ($1, $2, $3)
`

type CreateBallotParams struct {
	VoteID   uuid.UUID `json:"vote_id"`
	PlayerID int64     `json:"player_id"`
	Yes      bool      `json:"yes"`
}

func (q *Queries) CreateBallot(ctx context.Context, arg CreateBallotParams) error {
	_, err := q.db.ExecContext(ctx, createBallot, arg.VoteID, arg.PlayerID, arg.Yes)
	return err
}

const createPolicy = `-- name: CreatePolicy :one
INSERT INTO timespeed_policies (
  id, session_id, host_id, host_only, vote_enabled, vote_threshold
) VALUES (
  $1, $2, $3, $4, $5, $6
)
RETURNING id, session_id, host_id, host_only, vote_enabled, vote_threshold, created_at
`

type CreatePolicyParams struct {
	ID            uuid.UUID `json:"id"`
	SessionID     string    `json:"session_id"`
	HostID        int64     `json:"host_id"`
	HostOnly      bool      `json:"host_only"`
	VoteEnabled   bool      `json:"vote_enabled"`
	VoteThreshold float64   `json:"vote_threshold"`
}

func (q *Queries) CreatePolicy(ctx context.Context, arg CreatePolicyParams) (TimespeedPolicy, error) {
	row := q.db.QueryRowContext(ctx, createPolicy,
		arg.ID,
		arg.SessionID,
		arg.HostID,
		arg.HostOnly,
		arg.VoteEnabled,
		arg.VoteThreshold,
	)
	var i TimespeedPolicy
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.HostID,
		&i.HostOnly,
		&i.VoteEnabled,
		&i.VoteThreshold,
		&i.CreatedAt,
	)
	return i, err
}

const listVotesBySession = `-- name: ListVotesBySession :many
SELECT id, session_id, requester, closed_by, yes_count, no_count, participants, threshold, passed, voters, ballot, opened_at, closed_at
FROM timespeed_votes
WHERE session_id = $1
ORDER BY closed_at DESC
LIMIT $2
`

type ListVotesBySessionParams struct {
	SessionID string `json:"session_id"`
	Limit     int32  `json:"limit"`
}

func (q *Queries) ListVotesBySession(ctx context.Context, arg ListVotesBySessionParams) ([]TimespeedVote, error) {
	rows, err := q.db.QueryContext(ctx, listVotesBySession, arg.SessionID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TimespeedVote
	for rows.Next() {
		var i TimespeedVote
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.Requester,
			&i.ClosedBy,
			&i.YesCount,
			&i.NoCount,
			&i.Participants,
			&i.Threshold,
			&i.Passed,
			&i.Voters,
			&i.Ballot,
			&i.OpenedAt,
			&i.ClosedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
