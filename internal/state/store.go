// Package state records generation history in SQLite: one run per batch
// and one artifact row per config record processed by that run.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run or artifact does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a generation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Counts tallies per-record outcomes of a run.
type Counts struct {
	Generated int `json:"generated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Total returns the number of records in the run.
func (c Counts) Total() int {
	return c.Generated + c.Unchanged + c.Failed + c.Skipped
}

// Run is one batch generation.
type Run struct {
	ID          string     `json:"id"`
	ConfigsDir  string     `json:"configs_dir"`
	OutputDir   string     `json:"output_dir"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Counts      Counts     `json:"counts"`
	Error       string     `json:"error,omitempty"`
}

// Artifact is the outcome of one config record within a run.
type Artifact struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source"`
	PipelineID    string    `json:"pipeline_id,omitempty"`
	IngestionType string    `json:"ingestion_type,omitempty"`
	Status        string    `json:"status"`
	Path          string    `json:"path,omitempty"`
	Checksum      string    `json:"checksum,omitempty"`
	Error         string    `json:"error,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Store persists generation history.
type Store interface {
	CreateRun(ctx context.Context, configsDir, outputDir string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, counts Counts, errMsg string) error
	RecordArtifact(ctx context.Context, a *Artifact) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	ListArtifacts(ctx context.Context, runID string) ([]*Artifact, error)
	LatestArtifact(ctx context.Context, pipelineID string) (*Artifact, error)
	Close() error
}
