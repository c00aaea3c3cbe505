package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const artifactColumns = `run_id, source, pipeline_id, ingestion_type, status, path, checksum, error, recorded_at`

// RecordArtifact stores the outcome of one record. Recording the same
// source twice in a run replaces the earlier row.
func (s *SQLiteStore) RecordArtifact(ctx context.Context, a *Artifact) error {
	if s.db == nil {
		return errNotOpen
	}
	if a.RecordedAt.IsZero() {
		a.RecordedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Source, a.PipelineID, a.IngestionType, a.Status, a.Path, a.Checksum, a.Error, formatTime(a.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", a.Source, err)
	}
	return nil
}

// ListArtifacts returns the artifacts of a run ordered by source.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]*Artifact, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE run_id = ? ORDER BY source`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return artifacts, nil
}

// LatestArtifact returns the most recent successful artifact for a pipeline.
func (s *SQLiteStore) LatestArtifact(ctx context.Context, pipelineID string) (*Artifact, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts
		WHERE pipeline_id = ? AND status IN ('generated', 'unchanged')
		ORDER BY recorded_at DESC LIMIT 1`, pipelineID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact for %s: %w", pipelineID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest artifact: %w", err)
	}
	return a, nil
}

func scanArtifact(sc scanner) (*Artifact, error) {
	var (
		a        Artifact
		recorded string
	)
	err := sc.Scan(&a.RunID, &a.Source, &a.PipelineID, &a.IngestionType, &a.Status,
		&a.Path, &a.Checksum, &a.Error, &recorded)
	if err != nil {
		return nil, err
	}
	if a.RecordedAt, err = parseTime(recorded); err != nil {
		return nil, err
	}
	return &a, nil
}
