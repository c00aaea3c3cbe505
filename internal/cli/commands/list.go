package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/emit"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the pipelines declared by valid config records",
		Long: `List every pipeline declared by a valid config record, with its ingestion
type, schedule and the last time it was generated.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all pipelines
  dagforge list

  # List pipelines as JSON
  dagforge list --output json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	records, err := cmdCtx.Engine.LoadAll(cmdCtx.Cfg.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load config records: %w", err)
	}

	emitter := emit.New(emit.Config{OutputDir: cmdCtx.Cfg.OutputDir})
	out := output.ListOutput{Pipelines: []output.PipelineInfo{}}
	for _, rec := range records {
		if rec.Err != nil {
			continue
		}
		cfg := rec.Config
		info := output.PipelineInfo{
			PipelineID:       cfg.PipelineID,
			IngestionType:    string(cfg.IngestionType),
			ScheduleInterval: cfg.ScheduleInterval,
			StartDate:        cfg.StartDate,
			Source:           rec.Path,
			Artifact:         emitter.ArtifactPath(cfg.PipelineID),
		}
		if cmdCtx.Store != nil {
			a, err := cmdCtx.Store.LatestArtifact(cmd.Context(), cfg.PipelineID)
			switch {
			case err == nil:
				info.LastGenerated = &output.LastGenerated{
					RunID:      a.RunID,
					Status:     a.Status,
					Checksum:   a.Checksum,
					RecordedAt: a.RecordedAt.Format(time.RFC3339),
				}
			case !errors.Is(err, state.ErrNotFound):
				cmdCtx.Logger.Warn("failed to read generation history", "pipeline_id", cfg.PipelineID, "error", err)
			}
		}
		out.Pipelines = append(out.Pipelines, info)
	}
	out.Total = len(out.Pipelines)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		listMarkdown(r, out)
	default:
		listText(r, out)
	}
	return nil
}

func lastGeneratedLabel(info output.PipelineInfo) string {
	if info.LastGenerated == nil {
		return "never"
	}
	return info.LastGenerated.RecordedAt
}

// listText outputs pipelines as a table.
func listText(r *output.Renderer, out output.ListOutput) {
	r.Header(1, fmt.Sprintf("Pipelines (%d total)", out.Total))
	if out.Total == 0 {
		r.Muted("No valid config records found")
		return
	}
	rows := make([][]string, 0, out.Total)
	for _, p := range out.Pipelines {
		rows = append(rows, []string{
			p.PipelineID,
			output.Title(p.IngestionType),
			p.ScheduleInterval,
			filepath.Base(p.Source),
			lastGeneratedLabel(p),
		})
	}
	r.Table([]string{"Pipeline", "Ingestion", "Schedule", "Source", "Last generated"}, rows)
}

// listMarkdown outputs pipelines in markdown format.
func listMarkdown(r *output.Renderer, out output.ListOutput) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Pipelines (%d total)", out.Total)))
	r.Println("")
	for _, p := range out.Pipelines {
		r.Println(output.FormatHeader(2, p.PipelineID))
		r.Println(output.FormatKeyValue("Ingestion", p.IngestionType))
		r.Println(output.FormatKeyValue("Schedule", p.ScheduleInterval))
		r.Println(output.FormatKeyValue("Start date", p.StartDate))
		r.Println(output.FormatKeyValue("File", p.Source))
		r.Println(output.FormatKeyValue("Artifact", p.Artifact))
		r.Println(output.FormatKeyValue("Last generated", lastGeneratedLabel(p)))
		r.Println("")
	}
}
