// Package engine runs batch generation: it loads every config record in a
// directory, synthesizes and emits one pipeline module per valid record,
// and reports the outcome of each record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dagforge/internal/emit"
	"github.com/leapstack-labs/dagforge/internal/loader"
	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
	"github.com/leapstack-labs/dagforge/internal/state"
	"github.com/leapstack-labs/dagforge/internal/synth"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Status is the outcome of one config record.
type Status string

// Record outcomes.
const (
	StatusGenerated Status = "generated"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result is the outcome of one config record.
type Result struct {
	Source        string
	PipelineID    string
	IngestionType core.IngestionType
	Status        Status
	ArtifactPath  string
	Checksum      string
	Err           error
}

// Report collects the results of one batch in discovery order.
type Report struct {
	RunID    string
	DryRun   bool
	Results  []Result
	Duration time.Duration
}

// Counts tallies results by status.
func (r *Report) Counts() state.Counts {
	var c state.Counts
	for _, res := range r.Results {
		switch res.Status {
		case StatusGenerated:
			c.Generated++
		case StatusUnchanged:
			c.Unchanged++
		case StatusFailed:
			c.Failed++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether every record succeeded.
func (r *Report) OK() bool {
	c := r.Counts()
	return c.Failed == 0 && c.Skipped == 0
}

// Options controls one batch.
type Options struct {
	// ConfigsDir holds the config records.
	ConfigsDir string
	// OutputDir receives the generated modules.
	OutputDir string
	// FailFast stops at the first failed record; the rest are skipped.
	FailFast bool
	// Parallel is the number of records processed at once (default 1).
	Parallel int
	// DryRun renders without writing and records no history.
	DryRun bool
	// Select restricts the batch to these pipeline ids.
	Select []string
	// Debounce is the quiet period Watch waits for before regenerating.
	Debounce time.Duration
}

// Config holds engine configuration.
type Config struct {
	// Store records generation history (optional).
	Store state.Store
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine runs batches.
type Engine struct {
	store  state.Store
	logger *slog.Logger
	loader *loader.Loader
	pool   *starctx.ThreadPool
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:  cfg.Store,
		logger: logger,
		loader: loader.New(logger),
		pool:   starctx.NewThreadPool(0),
	}
}

var errStopBatch = errors.New("batch stopped after failure")

// Generate processes every record in opts.ConfigsDir. Record failures are
// reported in the Report, never returned; the error is reserved for
// problems that prevent the batch from running at all.
func (e *Engine) Generate(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	records, err := e.LoadAll(opts.ConfigsDir)
	if err != nil {
		return nil, err
	}
	if records, err = selectRecords(records, opts.Select); err != nil {
		return nil, err
	}

	report := &Report{DryRun: opts.DryRun, Results: make([]Result, len(records))}

	var run *state.Run
	if e.store != nil && !opts.DryRun {
		run, err = e.store.CreateRun(ctx, opts.ConfigsDir, opts.OutputDir)
		if err != nil {
			e.logger.Warn("generation history unavailable", "error", err)
		} else {
			report.RunID = run.ID
		}
	}

	emitter := emit.New(emit.Config{OutputDir: opts.OutputDir, Pool: e.pool, Logger: e.logger})

	parallel := max(opts.Parallel, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, rec := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				report.Results[i] = skipped(rec)
				return nil
			}
			res := e.process(emitter, rec, opts.DryRun)
			report.Results[i] = res
			if res.Status == StatusFailed && opts.FailFast {
				return errStopBatch
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errStopBatch) {
		return nil, err
	}
	report.Duration = time.Since(start)

	if run != nil {
		e.record(ctx, run.ID, report)
	}

	counts := report.Counts()
	e.logger.Info("generation finished",
		"records", len(report.Results),
		"generated", counts.Generated,
		"unchanged", counts.Unchanged,
		"failed", counts.Failed,
		"skipped", counts.Skipped,
		"dry_run", opts.DryRun,
		"duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Engine) process(emitter *emit.Emitter, rec loader.Record, dryRun bool) Result {
	res := Result{Source: rec.Path, PipelineID: recordPipelineID(rec)}
	fail := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		e.logger.Error("record failed", "source", rec.Path, "pipeline_id", res.PipelineID, "error", err)
		return res
	}

	if rec.Err != nil {
		return fail(rec.Err)
	}
	res.IngestionType = rec.Config.IngestionType

	spec, err := synth.Synthesize(rec.Config, rec.Strategy)
	if err != nil {
		return fail(&core.ConfigError{Source: rec.Path, PipelineID: res.PipelineID, Err: err})
	}

	var out emit.Result
	if dryRun {
		out, err = emitter.Plan(spec)
	} else {
		out, err = emitter.Emit(spec)
	}
	if err != nil {
		return fail(err)
	}

	res.ArtifactPath = out.Path
	res.Checksum = out.Checksum
	res.Status = StatusGenerated
	if out.Status == emit.StatusUnchanged {
		res.Status = StatusUnchanged
	}
	e.logger.Debug("record processed", "source", rec.Path, "pipeline_id", res.PipelineID, "status", res.Status)
	return res
}

func (e *Engine) record(ctx context.Context, runID string, report *Report) {
	// History must outlive a cancelled batch.
	ctx = context.WithoutCancel(ctx)

	for _, res := range report.Results {
		a := &state.Artifact{
			RunID:         runID,
			Source:        res.Source,
			PipelineID:    res.PipelineID,
			IngestionType: string(res.IngestionType),
			Status:        string(res.Status),
			Path:          res.ArtifactPath,
			Checksum:      res.Checksum,
		}
		if res.Err != nil {
			a.Error = res.Err.Error()
		}
		if err := e.store.RecordArtifact(ctx, a); err != nil {
			e.logger.Warn("failed to record artifact", "source", res.Source, "error", err)
		}
	}

	counts := report.Counts()
	status, msg := state.RunStatusCompleted, ""
	if counts.Failed > 0 {
		status = state.RunStatusFailed
		msg = fmt.Sprintf("%d of %d records failed", counts.Failed, counts.Total())
	}
	if err := e.store.CompleteRun(ctx, runID, status, counts, msg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", runID, "error", err)
	}
}

func skipped(rec loader.Record) Result {
	res := Result{Source: rec.Path, PipelineID: recordPipelineID(rec), Status: StatusSkipped}
	if rec.Config != nil {
		res.IngestionType = rec.Config.IngestionType
	}
	return res
}

// recordPipelineID returns the pipeline id a record declares, if known.
func recordPipelineID(rec loader.Record) string {
	if rec.Config != nil {
		return rec.Config.PipelineID
	}
	var cfgErr *core.ConfigError
	if errors.As(rec.Err, &cfgErr) {
		return cfgErr.PipelineID
	}
	return ""
}

func selectRecords(records []loader.Record, ids []string) ([]loader.Record, error) {
	if len(ids) == 0 {
		return records, nil
	}

	var out []loader.Record
	found := make(map[string]bool, len(ids))
	for _, rec := range records {
		id := recordPipelineID(rec)
		if slices.Contains(ids, id) {
			out = append(out, rec)
			found[id] = true
		}
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("%w: no config record declares pipeline %q", ErrPipelineNotFound, id)
		}
	}
	return out, nil
}
