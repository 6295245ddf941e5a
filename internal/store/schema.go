package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id                  UUID PRIMARY KEY,
	session_id          TEXT NOT NULL,
	kind                TEXT NOT NULL,
	utterance_start     BIGINT NOT NULL,
	frame_count         INTEGER NOT NULL DEFAULT 0,
	transcript          TEXT NOT NULL DEFAULT '',
	transcript_degraded BOOLEAN NOT NULL DEFAULT false,
	answer              TEXT NOT NULL DEFAULT '',
	answer_degraded     BOOLEAN NOT NULL DEFAULT false,
	audio_url           TEXT NOT NULL DEFAULT '',
	asr_ms              DOUBLE PRECISION NOT NULL DEFAULT 0,
	reason_ms           DOUBLE PRECISION NOT NULL DEFAULT 0,
	tts_ms              DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_ms            DOUBLE PRECISION NOT NULL DEFAULT 0,
	status              TEXT NOT NULL,
	error               TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS interactions_created_at_idx ON interactions (created_at);
`

// Migrate creates the tables the service needs if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
