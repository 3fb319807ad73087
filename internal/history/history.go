// Package history keeps a SQLite ledger of meld and unmeld runs, so a
// marker can later find which key file went with which melded document and
// where each submission's pages ended up.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/keyfile"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/meld"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/unmeld"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// ErrNotFound is returned by Get when no run matches the ID.
var ErrNotFound = errors.New("run not found")

// AmbiguousIDError is returned by Get when an ID prefix matches several runs.
type AmbiguousIDError struct {
	Prefix  string
	Matches int
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("run id %q matches %d runs", e.Prefix, e.Matches)
}

// Store is the run ledger.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			source TEXT,
			melded_path TEXT,
			key_path TEXT,
			status TEXT NOT NULL,
			pages INTEGER,
			message TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS run_records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			submission_key TEXT NOT NULL,
			source_file TEXT NOT NULL,
			page_count INTEGER NOT NULL,
			start_page INTEGER NOT NULL,
			output_path TEXT,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordMeld stores a meld run. res may be nil when the run failed before
// producing a result; runErr is stored as the run's message.
func (s *Store) RecordMeld(ctx context.Context, cfg types.MeldConfig, res *meld.Result, runErr error) (string, error) {
	meldedPath, keyPath := meld.OutputPaths(cfg)
	run := types.Run{
		Kind:       types.RunMeld,
		Source:     cfg.RootDir,
		MeldedPath: meldedPath,
		KeyPath:    keyPath,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	setOutcome(&run, runErr)

	if res != nil {
		run.StartedAt = res.StartedAt
		run.FinishedAt = res.FinishedAt
		run.Pages = res.Pages
		ranges := keyfile.Ranges(res.Records)
		for i, r := range res.Records {
			run.Records = append(run.Records, types.RunRecord{
				Seq:           i + 1,
				SubmissionKey: r.SubmissionKey,
				SourceFile:    r.SourceFileName,
				PageCount:     r.PageCount,
				StartPage:     ranges[i].Start,
			})
		}
	}
	return s.record(ctx, &run)
}

// RecordUnmeld stores an unmeld run. sum may be nil or partial.
func (s *Store) RecordUnmeld(ctx context.Context, cfg types.UnmeldConfig, sum *unmeld.Summary, runErr error) (string, error) {
	keyPath, _ := unmeld.Paths(cfg)
	run := types.Run{
		Kind:       types.RunUnmeld,
		Source:     cfg.MeldedPath,
		MeldedPath: cfg.MeldedPath,
		KeyPath:    keyPath,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	setOutcome(&run, runErr)

	if sum != nil {
		run.StartedAt = sum.StartedAt
		if !sum.FinishedAt.IsZero() {
			run.FinishedAt = sum.FinishedAt
		}
		run.Pages = sum.Pages
		for i, o := range sum.Outputs {
			run.Records = append(run.Records, types.RunRecord{
				Seq:           i + 1,
				SubmissionKey: o.Record.SubmissionKey,
				SourceFile:    o.Record.SourceFileName,
				PageCount:     o.Record.PageCount,
				StartPage:     o.Range.Start,
				OutputPath:    o.Path,
			})
		}
	}
	return s.record(ctx, &run)
}

func setOutcome(run *types.Run, runErr error) {
	run.Status = types.RunOK
	if runErr != nil {
		run.Status = types.RunFailed
		run.Message = runErr.Error()
	}
}

func (s *Store) record(ctx context.Context, run *types.Run) (string, error) {
	run.ID = uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at, finished_at, source, melded_path, key_path, status, pages, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Source, run.MeldedPath, run.KeyPath, string(run.Status), run.Pages, run.Message,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records (run_id, seq, submission_key, source_file, page_count, start_page, output_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range run.Records {
		if _, err := stmt.ExecContext(ctx, run.ID, r.Seq, r.SubmissionKey, r.SourceFile, r.PageCount, r.StartPage, r.OutputPath); err != nil {
			return "", fmt.Errorf("inserting record %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// List returns up to limit runs, newest first, without their records.
// A limit of zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, finished_at, source, melded_path, key_path, status, pages, message
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run whose ID is id or starts with id, with its records.
func (s *Store) Get(ctx context.Context, id string) (*types.Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, finished_at, source, melded_path, key_path, status, pages, message
		 FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	var matches []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE substr(id, 1, ?) = ?`, len(id), id).Scan(&n); err != nil {
			return nil, err
		}
		return nil, &AmbiguousIDError{Prefix: id, Matches: n}
	}

	run := matches[0]
	records, err := s.records(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Records = records
	return &run, nil
}

func (s *Store) records(ctx context.Context, runID string) ([]types.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, submission_key, source_file, page_count, start_page, COALESCE(output_path, '')
		 FROM run_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	var out []types.RunRecord
	for rows.Next() {
		var r types.RunRecord
		if err := rows.Scan(&r.Seq, &r.SubmissionKey, &r.SourceFile, &r.PageCount, &r.StartPage, &r.OutputPath); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.Run, error) {
	var (
		run                 types.Run
		kind, status        string
		started, finished   string
		source, melded, key sql.NullString
		pages               sql.NullInt64
		message             sql.NullString
	)
	if err := sc.Scan(&run.ID, &kind, &started, &finished, &source, &melded, &key, &status, &pages, &message); err != nil {
		return types.Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.Kind = types.RunKind(kind)
	run.Status = types.RunStatus(status)
	run.StartedAt, _ = time.Parse(timeLayout, started)
	run.FinishedAt, _ = time.Parse(timeLayout, finished)
	run.Source = source.String
	run.MeldedPath = melded.String
	run.KeyPath = key.String
	run.Pages = int(pages.Int64)
	run.Message = message.String
	return run, nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
