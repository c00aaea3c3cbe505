package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const runColumns = `id, configs_dir, output_dir, status, started_at, completed_at, generated, unchanged, failed, skipped, error`

// CreateRun starts a run in the running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, configsDir, outputDir string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	run := &Run{
		ID:         s.newID(),
		ConfigsDir: configsDir,
		OutputDir:  outputDir,
		Status:     RunStatusRunning,
		StartedAt:  s.now(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, configs_dir, output_dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ConfigsDir, run.OutputDir, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun records the final status and counts of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, counts Counts, errMsg string) error {
	if s.db == nil {
		return errNotOpen
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, generated = ?, unchanged = ?, failed = ?, skipped = ?, error = ?
		WHERE id = ?`,
		string(status), formatTime(s.now()), counts.Generated, counts.Unchanged, counts.Failed, counts.Skipped, errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		status    string
		started   string
		completed sql.NullString
		errMsg    sql.NullString
	)
	err := sc.Scan(&run.ID, &run.ConfigsDir, &run.OutputDir, &status, &started, &completed,
		&run.Counts.Generated, &run.Counts.Unchanged, &run.Counts.Failed, &run.Counts.Skipped, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}
