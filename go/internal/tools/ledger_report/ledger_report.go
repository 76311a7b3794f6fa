package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/timespeed/go/internal/dbconfig"
)

// voteLine is one row of the report.
type voteLine struct {
	ClosedAt  time.Time
	SessionID string
	Requester int64
	Yes       int32
	No        int32
	Threshold float64
	Passed    bool
	ClosedBy  string
}

type policyLine struct {
	SessionID     string
	HostID        int64
	HostOnly      bool
	VoteEnabled   bool
	VoteThreshold float64
	CreatedAt     time.Time
}

func main() {
	limit := flag.Int("limit", 20, "number of votes to print")
	session := flag.String("session", "", "only print votes of this session")
	flag.Parse()

	// 1) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Recent votes
	votes, err := recentVotes(ctx, pool, *session, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query votes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d vote(s)\n", len(votes))
	for _, v := range votes {
		fmt.Println(formatVote(v))
	}

	// 3) Latest policy per session
	policies, err := latestPolicies(ctx, pool, *session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query policies: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n%d session policy(ies)\n", len(policies))
	for _, p := range policies {
		fmt.Println(formatPolicy(p))
	}
}

func recentVotes(ctx context.Context, pool *pgxpool.Pool, session string, limit int) ([]voteLine, error) {
	rows, err := pool.Query(ctx, `
        SELECT closed_at, session_id, requester, yes_count, no_count, threshold, passed, closed_by
        FROM timespeed_votes
        WHERE $1 = '' OR session_id = $1
        ORDER BY closed_at DESC
        LIMIT $2
    `, session, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (voteLine, error) {
		var v voteLine
		err := row.Scan(&v.ClosedAt, &v.SessionID, &v.Requester, &v.Yes, &v.No, &v.Threshold, &v.Passed, &v.ClosedBy)
		return v, err
	})
}

func latestPolicies(ctx context.Context, pool *pgxpool.Pool, session string) ([]policyLine, error) {
	rows, err := pool.Query(ctx, `
        SELECT DISTINCT ON (session_id)
               session_id, host_id, host_only, vote_enabled, vote_threshold, created_at
        FROM timespeed_policies
        WHERE $1 = '' OR session_id = $1
        ORDER BY session_id, created_at DESC
    `, session)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[policyLine])
}

func formatVote(v voteLine) string {
	outcome := "failed"
	if v.Passed {
		outcome = "passed"
	}
	return fmt.Sprintf("%s  %-12s requester=%-6d yes=%d/%d threshold=%.2f %s (%s)",
		v.ClosedAt.Format(time.RFC3339), v.SessionID, v.Requester,
		v.Yes, v.Yes+v.No, v.Threshold, outcome, v.ClosedBy)
}

func formatPolicy(p policyLine) string {
	var flags []string
	if p.HostOnly {
		flags = append(flags, "host-only")
	}
	if p.VoteEnabled {
		flags = append(flags, fmt.Sprintf("vote>=%.2f", p.VoteThreshold))
	}
	if len(flags) == 0 {
		flags = append(flags, "open")
	}
	return fmt.Sprintf("%s  %-12s host=%-6d %s",
		p.CreatedAt.Format(time.RFC3339), p.SessionID, p.HostID, strings.Join(flags, ","))
}
