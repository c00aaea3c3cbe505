package engine

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/dagforge/internal/loader"
	"github.com/leapstack-labs/dagforge/internal/synth"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// ErrPipelineNotFound is returned when no record declares a pipeline id.
var ErrPipelineNotFound = errors.New("pipeline not found")

// LoadAll loads every record in dir in file-name order. A pipeline_id
// already claimed by an earlier valid record turns the later record into
// a ConfigError wrapping core.ErrDuplicatePipelineID. Only a failure to
// read dir itself is returned as an error.
func (e *Engine) LoadAll(dir string) ([]loader.Record, error) {
	paths, err := loader.Discover(dir)
	if err != nil {
		return nil, err
	}

	records := make([]loader.Record, 0, len(paths))
	claimed := make(map[string]string)
	for _, path := range paths {
		rec := e.loader.Load(path)
		if rec.Err == nil {
			id := rec.Config.PipelineID
			if first, ok := claimed[id]; ok {
				rec = loader.Record{Path: path, Err: &core.ConfigError{
					Source:     path,
					PipelineID: id,
					Err:        fmt.Errorf("%w: already declared by %s", core.ErrDuplicatePipelineID, first),
				}}
			} else {
				claimed[id] = path
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Find returns the valid record declaring pipelineID.
func (e *Engine) Find(dir, pipelineID string) (loader.Record, error) {
	records, err := e.LoadAll(dir)
	if err != nil {
		return loader.Record{}, err
	}
	for _, rec := range records {
		if recordPipelineID(rec) != pipelineID {
			continue
		}
		if rec.Err != nil {
			// A duplicate never shadows the record that claimed the id.
			if isDuplicate(rec.Err) {
				continue
			}
			return rec, rec.Err
		}
		return rec, nil
	}
	return loader.Record{}, fmt.Errorf("%w: no config record declares pipeline %q", ErrPipelineNotFound, pipelineID)
}

// Synthesize loads and synthesizes one pipeline.
func (e *Engine) Synthesize(dir, pipelineID string) (*synth.Spec, loader.Record, error) {
	rec, err := e.Find(dir, pipelineID)
	if err != nil {
		return nil, rec, err
	}
	spec, err := synth.Synthesize(rec.Config, rec.Strategy)
	if err != nil {
		return nil, rec, &core.ConfigError{Source: rec.Path, PipelineID: pipelineID, Err: err}
	}
	return spec, rec, nil
}

func isDuplicate(err error) bool {
	return err != nil && errors.Is(err, core.ErrDuplicatePipelineID)
}
