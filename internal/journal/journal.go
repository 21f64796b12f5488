// Package journal keeps a Postgres ledger of salvage runs for operators.
// It records outcomes only; no intermediate run state is persisted.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rastersalvage/internal/raster"
	"rastersalvage/internal/salvage"
	"rastersalvage/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	ErrorKindPolicy   = "policy_rejected"
	ErrorKindParse    = "parse_error"
	ErrorKindStorage  = "storage_error"
	ErrorKindResource = "resource_error"
	ErrorKindOther    = "error"
)

var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS salvage_runs (
	id           UUID PRIMARY KEY,
	bucket       TEXT NOT NULL,
	source_key   TEXT NOT NULL,
	dest_key     TEXT,
	status       TEXT NOT NULL,
	outcome      TEXT,
	error_kind   TEXT,
	error        TEXT,
	width        INTEGER,
	height       INTEGER,
	failing_row  INTEGER,
	kept_rows    INTEGER,
	bytes        BIGINT,
	digest       TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS salvage_runs_started_at_idx ON salvage_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS salvage_runs_source_idx ON salvage_runs (bucket, source_key);
`

type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Source     storage.Object `json:"source"`
	DestKey    *string        `json:"dest_key,omitempty"`
	Status     string         `json:"status"`
	Outcome    *string        `json:"outcome,omitempty"`
	ErrorKind  *string        `json:"error_kind,omitempty"`
	Error      *string        `json:"error,omitempty"`
	Width      *int           `json:"width,omitempty"`
	Height     *int           `json:"height,omitempty"`
	FailingRow *int           `json:"failing_row,omitempty"`
	KeptRows   *int           `json:"kept_rows,omitempty"`
	Bytes      *int64         `json:"bytes,omitempty"`
	Digest     *string        `json:"digest,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

type PGJournal struct {
	db *pgxpool.Pool
}

var _ salvage.Journal = (*PGJournal)(nil)

func New(db *pgxpool.Pool) *PGJournal {
	return &PGJournal{db: db}
}

func (j *PGJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

func (j *PGJournal) RecordRun(ctx context.Context, res salvage.Result, runErr error) error {
	args, err := recordArgs(res, runErr)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(ctx, `
		INSERT INTO salvage_runs (
			id, bucket, source_key, dest_key, status, outcome, error_kind, error,
			width, height, failing_row, kept_rows, bytes, digest, started_at, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, args...)
	if err != nil {
		return fmt.Errorf("insert salvage run: %w", err)
	}
	return nil
}

// recordArgs maps a run to the salvage_runs insert parameters. failing_row
// stays NULL only when no failing row was found.
func recordArgs(res salvage.Result, runErr error) ([]any, error) {
	id, err := uuid.Parse(res.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", res.RunID, err)
	}

	status := StatusSucceeded
	var errKind, errMsg *string
	if runErr != nil {
		status = StatusFailed
		kind := ClassifyError(runErr)
		msg := runErr.Error()
		errKind, errMsg = &kind, &msg
	}

	return []any{
		id,
		res.Source.Bucket,
		res.Source.Key,
		nullString(res.Destination.Key),
		status,
		nullString(string(res.Outcome)),
		errKind,
		errMsg,
		nullInt(res.Width),
		nullInt(res.Height),
		res.FailingRow,
		nullInt(res.KeptRows),
		nullInt64(res.Bytes),
		nullString(res.Digest),
		res.StartedAt,
		res.Duration.Milliseconds(),
	}, nil
}

const selectColumns = `
	id, bucket, source_key, dest_key, status, outcome, error_kind, error,
	width, height, failing_row, kept_rows, bytes, digest, started_at, duration_ms
`

func (j *PGJournal) ListRuns(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM salvage_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (j *PGJournal) GetRun(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := j.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM salvage_runs
		WHERE id = $1
	`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.Source.Bucket, &e.Source.Key, &e.DestKey, &e.Status, &e.Outcome, &e.ErrorKind, &e.Error,
		&e.Width, &e.Height, &e.FailingRow, &e.KeptRows, &e.Bytes, &e.Digest, &e.StartedAt, &e.DurationMS,
	)
	return e, err
}

// ClassifyError maps a run error onto the error kinds stored in the journal.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, salvage.ErrPolicyRejected):
		return ErrorKindPolicy
	case errors.Is(err, salvage.ErrParse):
		return ErrorKindParse
	case errors.Is(err, salvage.ErrStorage):
		return ErrorKindStorage
	case errors.Is(err, raster.ErrResource):
		return ErrorKindResource
	default:
		return ErrorKindOther
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func nullInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
