package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lookout/internal/pipeline"
)

// RecordRun persists one finished pipeline run.
func (s *Store) RecordRun(ctx context.Context, r pipeline.Run) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interactions (id, session_id, kind, utterance_start, frame_count,
			transcript, transcript_degraded, answer, answer_degraded, audio_url,
			asr_ms, reason_ms, tts_ms, total_ms, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, r.SessionID, r.Kind, r.UtteranceStart, r.FrameCount,
		r.Transcript, r.TranscriptDegraded, r.Answer, r.AnswerDegraded, r.AudioURL,
		pipeline.Millis(r.Latencies.Transcribe), pipeline.Millis(r.Latencies.Reason),
		pipeline.Millis(r.Latencies.Synthesize), pipeline.Millis(r.Latencies.Total),
		string(r.Status), r.Error, created,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListRecentRuns returns up to limit runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, kind, utterance_start, frame_count,
			transcript, transcript_degraded, answer, answer_degraded, audio_url,
			asr_ms, reason_ms, tts_ms, total_ms, status, error, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	runs := []RunRow{}
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Kind, &r.UtteranceStart, &r.FrameCount,
			&r.Transcript, &r.TranscriptDegraded, &r.Answer, &r.AnswerDegraded, &r.AudioURL,
			&r.TranscribeMs, &r.ReasonMs, &r.SynthesizeMs, &r.TotalMs, &r.Status, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run by ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*RunRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_id, kind, utterance_start, frame_count,
			transcript, transcript_degraded, answer, answer_degraded, audio_url,
			asr_ms, reason_ms, tts_ms, total_ms, status, error, created_at
		FROM interactions WHERE id = $1`, id)

	var r RunRow
	err := row.Scan(&r.ID, &r.SessionID, &r.Kind, &r.UtteranceStart, &r.FrameCount,
		&r.Transcript, &r.TranscriptDegraded, &r.Answer, &r.AnswerDegraded, &r.AudioURL,
		&r.TranscribeMs, &r.ReasonMs, &r.SynthesizeMs, &r.TotalMs, &r.Status, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRunsBefore removes runs created before cutoff and reports how many
// were deleted.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interactions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

type RunRow struct {
	ID                 uuid.UUID `json:"id"`
	SessionID          string    `json:"session_id"`
	Kind               string    `json:"kind"`
	UtteranceStart     int64     `json:"utterance_start"`
	FrameCount         int       `json:"frame_count"`
	Transcript         string    `json:"transcript"`
	TranscriptDegraded bool      `json:"transcript_degraded"`
	Answer             string    `json:"answer"`
	AnswerDegraded     bool      `json:"answer_degraded"`
	AudioURL           string    `json:"audio_url,omitempty"`
	TranscribeMs       float64   `json:"asr_ms"`
	ReasonMs           float64   `json:"multimodal_ms"`
	SynthesizeMs       float64   `json:"tts_ms"`
	TotalMs            float64   `json:"total_ms"`
	Status             string    `json:"status"`
	Error              string    `json:"error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
