package ledger

// Schema creates the ledger tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS timespeed_votes (
  id           UUID PRIMARY KEY,
  session_id   TEXT NOT NULL,
  requester    BIGINT NOT NULL,
  closed_by    TEXT NOT NULL,
  yes_count    INTEGER NOT NULL,
  no_count     INTEGER NOT NULL,
  participants INTEGER NOT NULL,
  threshold    DOUBLE PRECISION NOT NULL,
  passed       BOOLEAN NOT NULL,
  voters       BIGINT[] NOT NULL DEFAULT '{}',
  ballot       JSONB,
  opened_at    TIMESTAMPTZ NOT NULL,
  closed_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS timespeed_votes_session_closed_idx
  ON timespeed_votes (session_id, closed_at DESC);

CREATE TABLE IF NOT EXISTS timespeed_ballots (
  vote_id   UUID NOT NULL REFERENCES timespeed_votes (id) ON DELETE CASCADE,
  player_id BIGINT NOT NULL,
  yes       BOOLEAN NOT NULL,
  PRIMARY KEY (vote_id, player_id)
);

CREATE TABLE IF NOT EXISTS timespeed_policies (
  id             UUID PRIMARY KEY,
  session_id     TEXT NOT NULL,
  host_id        BIGINT NOT NULL,
  host_only      BOOLEAN NOT NULL,
  vote_enabled   BOOLEAN NOT NULL,
  vote_threshold DOUBLE PRECISION NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
