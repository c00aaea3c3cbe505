package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/synth"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <pipeline_id>",
		Short: "Show the task graph of a pipeline",
		Long: `Display the task graph synthesized for one pipeline.

Tasks are grouped by execution level. Each task shows its operator, its
trigger rule and the tasks it depends on.`,
		Example: `  # Show the graph of one pipeline
  dagforge graph orders_daily

  # Output as JSON
  dagforge graph orders_daily --output json`,
		Aliases: []string{"dag"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0])
		},
	}

	return cmd
}

func runGraph(cmd *cobra.Command, pipelineID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, _, err := cmdCtx.Engine.Synthesize(cmdCtx.Cfg.ConfigsDir, pipelineID)
	if err != nil {
		return err
	}

	out, err := graphOutput(spec)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		graphMarkdown(r, out)
	default:
		graphText(r, out)
	}
	return nil
}

func graphOutput(spec *synth.Spec) (output.GraphOutput, error) {
	levels, err := spec.Graph.ExecutionLevels()
	if err != nil {
		return output.GraphOutput{}, fmt.Errorf("failed to get execution levels: %w", err)
	}

	out := output.GraphOutput{
		PipelineID: spec.PipelineID,
		Tasks:      make([]output.GraphTask, 0, spec.Graph.NodeCount()),
		Levels:     levels,
		Edges:      []output.GraphEdge{},
	}
	tasks, err := spec.Tasks()
	if err != nil {
		return output.GraphOutput{}, err
	}
	edges, err := spec.Edges()
	if err != nil {
		return output.GraphOutput{}, err
	}
	for _, task := range tasks {
		upstream := spec.Upstream(task.ID)
		if upstream == nil {
			upstream = []string{}
		}
		out.Tasks = append(out.Tasks, output.GraphTask{
			ID:          task.ID,
			Operator:    task.Operator,
			TriggerRule: string(task.TriggerRule),
			Upstream:    upstream,
		})
	}
	for _, e := range edges {
		for _, to := range e.To {
			out.Edges = append(out.Edges, output.GraphEdge{From: e.From, To: to})
		}
	}
	return out, nil
}

func findGraphTask(out output.GraphOutput, id string) output.GraphTask {
	for _, t := range out.Tasks {
		if t.ID == id {
			return t
		}
	}
	return output.GraphTask{ID: id}
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, out output.GraphOutput) {
	styles := r.Styles()

	r.Header(1, "Task graph: "+out.PipelineID)
	r.Println("")
	for i, level := range out.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, id := range level {
			t := findGraphTask(out, id)
			r.Printf("  %s %s\n", styles.ID.Render(t.ID), styles.Muted.Render("("+t.Operator+", "+t.TriggerRule+")"))
			if len(t.Upstream) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(t.Upstream, ", "))
			}
		}
		r.Println("")
	}
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d tasks, %d dependencies", len(out.Tasks), len(out.Edges))))
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, out output.GraphOutput) {
	r.Println(output.FormatHeader(1, "Task graph: "+out.PipelineID))
	r.Println("")
	for i, level := range out.Levels {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
		r.Println("")
		for _, id := range level {
			t := findGraphTask(out, id)
			line := fmt.Sprintf("- **%s** (%s, trigger_rule=%s)", t.ID, t.Operator, t.TriggerRule)
			if len(t.Upstream) > 0 {
				line += " depends on " + strings.Join(t.Upstream, ", ")
			}
			r.Println(line)
		}
		r.Println("")
	}
	r.Println(output.FormatHeader(2, "Edges"))
	r.Println("")
	r.Println("```")
	for _, e := range out.Edges {
		r.Printf("%s >> %s\n", e.From, e.To)
	}
	r.Println("```")
}
