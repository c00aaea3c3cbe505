package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show generation history",
		Long: `List recent generate runs, newest first. With a run id, show the outcome
of every config record processed by that run.`,
		Example: `  # Recent runs
  dagforge history

  # One run in detail
  dagforge history 0b5c1f9e-3f0e-4d53-9a57-0d4fd0c0f3a1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryRun(cmd, args[0])
			}
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func historyContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx, cleanup, err := NewCommandContext(cmd, true)
	if err != nil {
		return nil, nil, err
	}
	if cmdCtx.Store == nil {
		cleanup()
		return nil, nil, errors.New("generation history is disabled: no state path configured")
	}
	return cmdCtx, cleanup, nil
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := historyContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := output.HistoryOutput{Runs: make([]output.HistoryRun, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, historyRun(run))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Generation runs (%d shown)", len(out.Runs)))
	if len(out.Runs) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}
	rows := make([][]string, 0, len(out.Runs))
	for _, run := range out.Runs {
		rows = append(rows, []string{
			run.ID,
			run.Status,
			run.StartedAt,
			fmt.Sprint(run.Summary.Generated),
			fmt.Sprint(run.Summary.Unchanged),
			fmt.Sprint(run.Summary.Failed),
			fmt.Sprint(run.Summary.Skipped),
		})
	}
	r.Table([]string{"Run", "Status", "Started", "Generated", "Unchanged", "Failed", "Skipped"}, rows)
	return nil
}

func runHistoryRun(cmd *cobra.Command, runID string) error {
	cmdCtx, cleanup, err := historyContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := cmdCtx.Store.GetRun(cmd.Context(), runID)
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return fmt.Errorf("failed to read run: %w", err)
	}
	artifacts, err := cmdCtx.Store.ListArtifacts(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	out := output.HistoryOutput{
		Runs:      []output.HistoryRun{historyRun(run)},
		Artifacts: make([]output.HistoryArtifact, 0, len(artifacts)),
	}
	for _, a := range artifacts {
		out.Artifacts = append(out.Artifacts, output.HistoryArtifact{
			Source:        a.Source,
			PipelineID:    a.PipelineID,
			IngestionType: a.IngestionType,
			Status:        a.Status,
			Path:          a.Path,
			Checksum:      a.Checksum,
			Error:         a.Error,
		})
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		h := out.Runs[0]
		r.Println(output.FormatHeader(1, "Run "+h.ID))
		r.Println("")
		r.Println(output.FormatKeyValue("Status", h.Status))
		r.Println(output.FormatKeyValue("Started", h.StartedAt))
		if h.CompletedAt != "" {
			r.Println(output.FormatKeyValue("Completed", h.CompletedAt))
		}
		r.Println(output.FormatKeyValue("Configs", h.ConfigsDir))
		r.Println(output.FormatKeyValue("Output", h.OutputDir))
		r.Println("")
		for _, a := range out.Artifacts {
			r.StatusLine(artifactLabel(a), a.Status, artifactDetail(a))
		}
	default:
		h := out.Runs[0]
		r.Header(1, "Run "+h.ID)
		r.Muted(fmt.Sprintf("%s, started %s", h.Status, h.StartedAt))
		r.Println("")
		for _, a := range out.Artifacts {
			r.StatusLine(artifactLabel(a), a.Status, artifactDetail(a))
		}
	}
	return nil
}

func historyRun(run *state.Run) output.HistoryRun {
	h := output.HistoryRun{
		ID:         run.ID,
		Status:     string(run.Status),
		ConfigsDir: run.ConfigsDir,
		OutputDir:  run.OutputDir,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		Summary: output.GenerateSummary{
			Generated: run.Counts.Generated,
			Unchanged: run.Counts.Unchanged,
			Failed:    run.Counts.Failed,
			Skipped:   run.Counts.Skipped,
		},
		Error: run.Error,
	}
	if run.CompletedAt != nil {
		h.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return h
}

func artifactLabel(a output.HistoryArtifact) string {
	if a.PipelineID != "" {
		return a.PipelineID
	}
	return filepath.Base(a.Source)
}

func artifactDetail(a output.HistoryArtifact) string {
	if a.Error != "" {
		return a.Error
	}
	return a.Checksum
}
