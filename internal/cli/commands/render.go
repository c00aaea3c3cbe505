package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/emit"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <pipeline_id>",
		Short: "Print the generated module of a pipeline",
		Long: `Render the Airflow module for one pipeline and print it without writing
to the output directory.

This is useful for reviewing what generate would write.

Output adapts to environment:
  - Terminal: Plain Python source
  - Piped/Scripted: Markdown with code block`,
		Example: `  # Print a pipeline module
  dagforge render orders_daily

  # Save it elsewhere
  dagforge render orders_daily -o text > /tmp/orders_daily.py

  # Render as JSON
  dagforge render orders_daily --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}

	return cmd
}

func runRender(cmd *cobra.Command, pipelineID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, _, err := cmdCtx.Engine.Synthesize(cmdCtx.Cfg.ConfigsDir, pipelineID)
	if err != nil {
		return err
	}

	emitter := emit.New(emit.Config{OutputDir: cmdCtx.Cfg.OutputDir, Logger: cmdCtx.Logger})
	content, err := emitter.Render(spec)
	if err != nil {
		return fmt.Errorf("failed to render pipeline: %w", err)
	}
	source := string(content)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.RenderOutput{
			PipelineID: pipelineID,
			Path:       emitter.ArtifactPath(pipelineID),
			Checksum:   emit.Checksum(content),
			Source:     source,
		})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Rendered module: "+pipelineID))
		r.Println("")
		r.Println(output.FormatCodeBlock("python", source))
	default:
		// Text mode: the module as written by generate
		_, _ = r.Writer().Write(content)
	}
	return nil
}
