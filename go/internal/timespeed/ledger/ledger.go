// Package ledger keeps a Postgres audit trail of pause votes and host
// policy broadcasts.
package ledger

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/sqlutil"
	"github.com/mcdev12/timespeed/go/internal/timespeed/ledger/db"
	"github.com/mcdev12/timespeed/go/internal/timespeed/vote"
)

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return database, nil
}

// Repository writes ledger rows for one game session.
type Repository struct {
	db      *sql.DB
	session string
	newID   func() uuid.UUID
}

// NewRepository returns a repository writing rows tagged with session.
func NewRepository(database *sql.DB, session string) *Repository {
	return &Repository{
		db:      database,
		session: session,
		newID:   uuid.New,
	}
}

// EnsureSchema creates the ledger tables.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// RecordVote stores a tally and one ballot row per cast vote in one transaction.
func (r *Repository) RecordVote(ctx context.Context, result vote.Result) error {
	params, ballots, err := voteRows(r.newID(), r.session, result)
	if err != nil {
		return err
	}

	err = sqlutil.Run(ctx, r.db, db.New(r.db).WithTx, func(q *db.Queries) error {
		if _, err := q.CreateVote(ctx, params); err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}
		for _, b := range ballots {
			if err := q.CreateBallot(ctx, b); err != nil {
				return fmt.Errorf("failed to insert ballot for player %d: %w", b.PlayerID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("vote_id", params.ID.String()).
		Str("session_id", r.session).
		Bool("passed", params.Passed).
		Msg("vote recorded")
	return nil
}

// RecordPolicy stores a host policy broadcast.
func (r *Repository) RecordPolicy(ctx context.Context, host models.PlayerID, p models.HostPolicy) error {
	_, err := db.New(r.db).CreatePolicy(ctx, policyRow(r.newID(), r.session, host, p))
	if err != nil {
		return fmt.Errorf("failed to insert host policy: %w", err)
	}
	return nil
}

// RecentVotes returns the latest tallies of the session, newest first.
func (r *Repository) RecentVotes(ctx context.Context, limit int) ([]db.TimespeedVote, error) {
	votes, err := db.New(r.db).ListVotesBySession(ctx, db.ListVotesBySessionParams{
		SessionID: r.session,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	return votes, nil
}

// ballotEntry is the json shape of one ballot slot; Yes is null for absent votes.
type ballotEntry struct {
	PlayerID int64 `json:"player_id"`
	Yes      *bool `json:"yes"`
}

func voteRows(id uuid.UUID, session string, r vote.Result) (db.CreateVoteParams, []db.CreateBallotParams, error) {
	voters := r.Voters()

	entries := make([]ballotEntry, 0, len(r.Ballot))
	for pid, v := range r.Ballot {
		entries = append(entries, ballotEntry{PlayerID: int64(pid), Yes: v})
	}
	slices.SortFunc(entries, func(a, b ballotEntry) int { return cmp.Compare(a.PlayerID, b.PlayerID) })

	var ballot pqtype.NullRawMessage
	if len(entries) > 0 {
		raw, err := json.Marshal(entries)
		if err != nil {
			return db.CreateVoteParams{}, nil, fmt.Errorf("failed to marshal ballot: %w", err)
		}
		ballot = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	ids := make(pq.Int64Array, 0, len(voters))
	ballots := make([]db.CreateBallotParams, 0, len(voters))
	for _, pid := range voters {
		ids = append(ids, int64(pid))
		ballots = append(ballots, db.CreateBallotParams{
			VoteID:   id,
			PlayerID: int64(pid),
			Yes:      *r.Ballot[pid],
		})
	}

	params := db.CreateVoteParams{
		ID:           id,
		SessionID:    session,
		Requester:    int64(r.Requester),
		ClosedBy:     string(r.ClosedBy),
		YesCount:     int32(r.Yes),
		NoCount:      int32(r.No),
		Participants: int32(r.Participants),
		Threshold:    r.Threshold,
		Passed:       r.Passed,
		Voters:       ids,
		Ballot:       ballot,
		OpenedAt:     r.OpenedAt,
		ClosedAt:     r.ClosedAt,
	}
	return params, ballots, nil
}

func policyRow(id uuid.UUID, session string, host models.PlayerID, p models.HostPolicy) db.CreatePolicyParams {
	return db.CreatePolicyParams{
		ID:            id,
		SessionID:     session,
		HostID:        int64(host),
		HostOnly:      p.HostOnly,
		VoteEnabled:   p.VoteEnabled,
		VoteThreshold: p.VoteThreshold,
	}
}

