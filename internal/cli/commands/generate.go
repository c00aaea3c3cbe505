package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	DryRun  bool
	Select  []string
	Watch   bool
	NoState bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate pipeline modules from config records",
		Long: `Load every config record in the configs directory and write one Airflow
pipeline module per valid record to the output directory.

An invalid record is reported and skipped; the other records are still
generated. Modules whose content would not change are left untouched.
The command exits non-zero when any record failed.`,
		Example: `  # Generate every pipeline
  dagforge generate

  # Generate two pipelines, four records at a time
  dagforge generate --select orders_daily,revenue_rollup --parallel 4

  # Show what would change without writing
  dagforge generate --dry-run

  # Regenerate whenever a record changes
  dagforge generate --watch`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().Bool("fail-fast", false, "Stop at the first failed record")
	cmd.Flags().Int("parallel", 0, "Number of records processed at once")
	cmd.Flags().Duration("debounce", 0, "Quiet period before regenerating in watch mode")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Render and report without writing modules or history")
	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Comma-separated pipeline ids to generate")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Regenerate when config records change")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Do not record generation history")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, !opts.NoState && !opts.DryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	engOpts := engine.Options{
		ConfigsDir: cfg.ConfigsDir,
		OutputDir:  cfg.OutputDir,
		FailFast:   cfg.Generate.FailFast,
		Parallel:   cfg.Generate.Parallel,
		DryRun:     opts.DryRun,
		Select:     opts.Select,
		Debounce:   cfg.Generate.Debounce,
	}

	r := cmdCtx.Renderer
	if opts.Watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", cfg.ConfigsDir))
		err := cmdCtx.Engine.Watch(ctx, engOpts, func(report *engine.Report, err error) {
			if err != nil {
				r.Error(err.Error())
				return
			}
			_ = renderReport(r, report)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	report, err := cmdCtx.Engine.Generate(cmd.Context(), engOpts)
	if err != nil && report == nil {
		return err
	}
	if renderErr := renderReport(r, report); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return err
	}

	if !report.OK() {
		return batchError(report.Counts())
	}
	return nil
}

// batchError summarizes a run that did not generate every record.
func batchError(c state.Counts) error {
	if c.Skipped == 0 {
		return fmt.Errorf("%d of %d config records failed", c.Failed, c.Total())
	}
	return fmt.Errorf("%d failed, %d skipped of %d config records", c.Failed, c.Skipped, c.Total())
}

func renderReport(r *output.Renderer, report *engine.Report) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(generateOutput(report))
	case output.ModeMarkdown:
		renderReportMarkdown(r, report)
	default:
		renderReportText(r, report)
	}
	return nil
}

func generateOutput(report *engine.Report) output.GenerateOutput {
	c := report.Counts()
	out := output.GenerateOutput{
		RunID:      report.RunID,
		DryRun:     report.DryRun,
		DurationMS: report.Duration.Milliseconds(),
		Results:    make([]output.GenerateResult, 0, len(report.Results)),
		Summary: output.GenerateSummary{
			Generated: c.Generated,
			Unchanged: c.Unchanged,
			Failed:    c.Failed,
			Skipped:   c.Skipped,
		},
	}
	for _, res := range report.Results {
		item := output.GenerateResult{
			Source:        res.Source,
			PipelineID:    res.PipelineID,
			IngestionType: string(res.IngestionType),
			Status:        string(res.Status),
			Artifact:      res.ArtifactPath,
			Checksum:      res.Checksum,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out.Results = append(out.Results, item)
	}
	return out
}

func resultLabel(res engine.Result) string {
	if res.PipelineID != "" {
		return res.PipelineID
	}
	return filepath.Base(res.Source)
}

func resultDetail(res engine.Result) string {
	switch {
	case res.Err != nil:
		return res.Err.Error()
	case res.ArtifactPath != "":
		return res.ArtifactPath
	default:
		return ""
	}
}

func renderReportText(r *output.Renderer, report *engine.Report) {
	title := "Generating pipelines"
	if report.DryRun {
		title += " (dry run)"
	}
	r.Header(1, title)
	for _, res := range report.Results {
		r.StatusLine(resultLabel(res), string(res.Status), resultDetail(res))
	}
	r.Println("")
	renderCompletion(r, report)
}

func renderReportMarkdown(r *output.Renderer, report *engine.Report) {
	title := "Generation Report"
	if report.DryRun {
		title += " (dry run)"
	}
	r.Println(output.FormatHeader(1, title))
	r.Println("")
	if report.RunID != "" {
		r.Println(output.FormatKeyValue("Run", report.RunID))
	}
	r.Println(output.FormatKeyValue("Duration", report.Duration.Round(time.Millisecond).String()))
	r.Println("")

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{resultLabel(res), string(res.Status), string(res.IngestionType), resultDetail(res)})
	}
	r.Table([]string{"Pipeline", "Status", "Ingestion", "Detail"}, rows)
	r.Println("")
	renderCompletion(r, report)
}

func renderCompletion(r *output.Renderer, report *engine.Report) {
	c := report.Counts()
	summary := fmt.Sprintf("%d generated, %d unchanged, %d failed, %d skipped in %s",
		c.Generated, c.Unchanged, c.Failed, c.Skipped, report.Duration.Round(time.Millisecond))
	if report.OK() {
		r.Success("Batch generation complete: " + summary)
		return
	}
	r.Error("Batch generation finished with failures: " + summary)
}
