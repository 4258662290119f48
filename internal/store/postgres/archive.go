// Package postgres provides an optional PostgreSQL archive for finalized
// transcription sessions.
//
// The archive stores one row per session plus one row per transcribed segment.
// It is write-only from the pipeline's perspective: the live session is always
// recorded in memory and written to a transcript file, and the archive is an
// additional durable copy for later querying. When no DSN is configured the
// application simply never constructs an Archive.
//
// Usage:
//
//	archive, err := postgres.NewArchive(ctx, dsn)
//	if err != nil { … }
//	defer archive.Close()
//
//	_ = archive.SaveTranscript(ctx, transcript)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxscribe/voxscribe/internal/session"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS transcription_sessions (
    id              BIGSERIAL    PRIMARY KEY,
    started_at      TIMESTAMPTZ  NOT NULL,
    ended_at        TIMESTAMPTZ  NOT NULL,
    backend         TEXT         NOT NULL,
    model           TEXT         NOT NULL DEFAULT '',
    device          TEXT         NOT NULL DEFAULT '',
    compute_type    TEXT         NOT NULL DEFAULT '',
    vad_engine      TEXT         NOT NULL DEFAULT '',
    segmenter_mode  TEXT         NOT NULL DEFAULT '',
    segments        BIGINT       NOT NULL DEFAULT 0,
    failures        BIGINT       NOT NULL DEFAULT 0,
    dropped_frames  BIGINT       NOT NULL DEFAULT 0,
    audio_ns        BIGINT       NOT NULL DEFAULT 0,
    processing_ns   BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcription_sessions_started_at
    ON transcription_sessions (started_at);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS transcription_segments (
    id          BIGSERIAL   PRIMARY KEY,
    session_id  BIGINT      NOT NULL REFERENCES transcription_sessions (id) ON DELETE CASCADE,
    seq         INT         NOT NULL,
    start_ns    BIGINT      NOT NULL,
    end_ns      BIGINT      NOT NULL,
    text        TEXT        NOT NULL,
    confidence  REAL        NOT NULL DEFAULT 0,
    language    TEXT        NOT NULL DEFAULT '',
    latency_ns  BIGINT      NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcription_segments_session
    ON transcription_segments (session_id, seq);

CREATE INDEX IF NOT EXISTS idx_transcription_segments_fts
    ON transcription_segments USING GIN (to_tsvector('english', text));
`

// Migrate creates or ensures the archive tables exist. It is idempotent
// (CREATE TABLE IF NOT EXISTS) and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlSegments} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// Archive is a PostgreSQL-backed store for finalized transcripts. All methods
// are safe for concurrent use.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the archive tables exist.
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres archive: migrate: %w", err)
	}

	return &Archive{pool: pool}, nil
}

// SaveTranscript writes the session row and all its segments in a single
// transaction. Either the whole transcript lands in the archive or none of it.
func (a *Archive) SaveTranscript(ctx context.Context, t session.Transcript) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres archive: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSession = `
		INSERT INTO transcription_sessions
		    (started_at, ended_at, backend, model, device, compute_type,
		     vad_engine, segmenter_mode, segments, failures, dropped_frames,
		     audio_ns, processing_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	m := t.Metadata
	var sessionID int64
	err = tx.QueryRow(ctx, insertSession,
		m.StartedAt,
		m.EndedAt,
		m.Backend.Name,
		m.Backend.Model,
		m.Backend.Device,
		m.Backend.ComputeType,
		m.VADEngine,
		m.SegmenterMode,
		m.Perf.Segments,
		m.Perf.Failures,
		m.Perf.DroppedFrames,
		m.Perf.Audio.Nanoseconds(),
		m.Perf.Processing.Nanoseconds(),
	).Scan(&sessionID)
	if err != nil {
		return fmt.Errorf("postgres archive: insert session: %w", err)
	}

	const insertSegment = `
		INSERT INTO transcription_segments
		    (session_id, seq, start_ns, end_ns, text, confidence, language, latency_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for i, seg := range t.Segments {
		batch.Queue(insertSegment,
			sessionID,
			i,
			seg.Start.Nanoseconds(),
			seg.End.Nanoseconds(),
			seg.Text,
			seg.Confidence,
			seg.Language,
			seg.Latency.Nanoseconds(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres archive: insert segments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres archive: commit: %w", err)
	}
	return nil
}

// Ping checks database connectivity. Suitable as a readiness check.
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}
