// Package sqlite persists run traces in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/trace"
	_ "modernc.org/sqlite"
)

// ErrTraceNotFound is the same sentinel the file repository returns.
var ErrTraceNotFound = trace.ErrNotFound

// Repository implements trace.Repository on top of SQLite.
// The whole trace is stored as JSON; spans are flattened into their own table for querying.
type Repository struct {
	db *sql.DB
}

// Summary is one row of List.
type Summary struct {
	TraceID   string
	Name      string
	Status    trace.SpanStatus
	Error     string
	StartedAt time.Time
	Duration  time.Duration
	Spans     int
}

// New opens the database at dsn and creates the tables if needed.
func New(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("dsn", dsn))
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	migration := `
CREATE TABLE IF NOT EXISTS traces (
    trace_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP NOT NULL,
    body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS spans (
    span_id TEXT NOT NULL,
    trace_id TEXT NOT NULL,
    parent_id TEXT,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    duration_ns INTEGER NOT NULL,
    PRIMARY KEY (trace_id, span_id),
    FOREIGN KEY (trace_id) REFERENCES traces(trace_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_spans_kind ON spans(trace_id, kind);
`
	if _, err := r.db.ExecContext(ctx, migration); err != nil {
		return goerr.Wrap(err, "failed to migrate trace database")
	}
	return nil
}

// Save stores tr, replacing any previous trace with the same id.
func (r *Repository) Save(ctx context.Context, tr *trace.Trace) error {
	if tr == nil || tr.RootSpan == nil {
		return goerr.New("trace has no root span")
	}

	body, err := json.Marshal(tr)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.V("trace_id", tr.TraceID))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM spans WHERE trace_id = ?`, tr.TraceID); err != nil {
		return goerr.Wrap(err, "failed to delete old spans", goerr.V("trace_id", tr.TraceID))
	}

	root := tr.RootSpan
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO traces (trace_id, name, status, error, started_at, ended_at, body) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.TraceID, root.Name, string(root.Status), root.Error, tr.StartedAt.UTC(), tr.EndedAt.UTC(), string(body),
	); err != nil {
		return goerr.Wrap(err, "failed to insert trace", goerr.V("trace_id", tr.TraceID))
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spans (span_id, trace_id, parent_id, kind, name, status, duration_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare span insert")
	}
	defer stmt.Close()

	var spanErr error
	root.Walk(func(s *trace.Span) {
		if spanErr != nil {
			return
		}
		if _, err := stmt.ExecContext(ctx, s.SpanID, tr.TraceID, s.ParentID, string(s.Kind), s.Name, string(s.Status), int64(s.Duration)); err != nil {
			spanErr = goerr.Wrap(err, "failed to insert span", goerr.V("span_id", s.SpanID))
		}
	})
	if spanErr != nil {
		return spanErr
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit trace", goerr.V("trace_id", tr.TraceID))
	}
	return nil
}

// Get loads a trace by id.
func (r *Repository) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM traces WHERE trace_id = ?`, traceID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrTraceNotFound, "no such trace", goerr.V("trace_id", traceID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query trace", goerr.V("trace_id", traceID))
	}

	var tr trace.Trace
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal trace", goerr.V("trace_id", traceID))
	}
	return &tr, nil
}

// List returns the most recent traces first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.trace_id, t.name, t.status, COALESCE(t.error, ''), t.started_at, t.ended_at, COUNT(s.span_id)
FROM traces t LEFT JOIN spans s ON s.trace_id = t.trace_id
GROUP BY t.trace_id
ORDER BY t.started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list traces")
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var (
			s       Summary
			status  string
			started time.Time
			ended   time.Time
		)
		if err := rows.Scan(&s.TraceID, &s.Name, &status, &s.Error, &started, &ended, &s.Spans); err != nil {
			return nil, goerr.Wrap(err, "failed to scan trace row")
		}
		s.Status = trace.SpanStatus(status)
		s.StartedAt = started
		s.Duration = ended.Sub(started)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate traces")
	}
	return out, nil
}

// CountSpans returns how many spans of kind the trace contains.
func (r *Repository) CountSpans(ctx context.Context, traceID string, kind trace.SpanKind) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spans WHERE trace_id = ? AND kind = ?`, traceID, string(kind),
	).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count spans", goerr.V("trace_id", traceID))
	}
	return n, nil
}
