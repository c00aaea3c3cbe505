package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/objstore"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Run outcomes accepted by organize.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// NewOrganizeCommand creates the organize command.
func NewOrganizeCommand() *cobra.Command {
	var outcome string

	cmd := &cobra.Command{
		Use:   "organize <pipeline_id>",
		Short: "Run a pipeline's post-run organizing step locally",
		Long: `Apply the organizing step a generated pipeline runs after its movement
task, against the local bucket directory used by datagen.

For a file-to-bq pipeline, the input files under inbound/ move to
archival/ on success or to failed/ on failure. Other pipelines only
report the outcome.`,
		Example: `  # Archive staged files after a successful load
  dagforge organize patients_file_load --outcome success

  # Move them aside after a failed load
  dagforge organize patients_file_load --outcome failure`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrganize(cmd, args[0], outcome)
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", outcomeSuccess, "Outcome of the run (success|failure)")
	cmd.Flags().String("bucket-root", "", "Directory holding one subdirectory per bucket")
	_ = cmd.RegisterFlagCompletionFunc("outcome", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{outcomeSuccess, outcomeFailure}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runOrganize(cmd *cobra.Command, pipelineID, outcome string) error {
	if outcome != outcomeSuccess && outcome != outcomeFailure {
		return fmt.Errorf("--outcome must be %s or %s, got %q", outcomeSuccess, outcomeFailure, outcome)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, _, err := cmdCtx.Engine.Synthesize(cmdCtx.Cfg.ConfigsDir, pipelineID)
	if err != nil {
		return err
	}

	org := spec.Organizing
	out := output.OrganizeOutput{
		PipelineID: pipelineID,
		Outcome:    outcome,
		Kind:       string(org.Kind),
		Moves:      []output.MovedFile{},
	}

	switch org.Kind {
	case core.OrganizeRelocate:
		to := org.ArchivePrefix
		if outcome == outcomeFailure {
			to = org.FailedPrefix
		}
		store := objstore.NewLocal(cmdCtx.Cfg.Datagen.BucketRoot)
		moves, err := objstore.Organize(cmd.Context(), store, org.Bucket, org.InboundPrefix, to, org.FileSuffix, cmdCtx.Logger)
		if err != nil {
			return err
		}
		for _, m := range moves {
			out.Moves = append(out.Moves, output.MovedFile{From: m.From.URI(), To: m.To.URI()})
		}
	default:
		out.Message = org.SuccessMessage
		if outcome == outcomeFailure {
			out.Message = org.FailureMessage
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	if out.Message != "" {
		r.Println(out.Message)
		return nil
	}
	for _, m := range out.Moves {
		r.StatusLine(m.From, "success", "-> "+m.To)
	}
	r.Success(fmt.Sprintf("Moved %d files for %s", len(out.Moves), pipelineID))
	return nil
}
