package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/datagen"
	"github.com/leapstack-labs/dagforge/internal/loader"
	"github.com/leapstack-labs/dagforge/internal/objstore"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// DatagenOptions holds options for the datagen command.
type DatagenOptions struct {
	Seed uint64
	Out  string
}

// NewDatagenCommand creates the datagen command.
func NewDatagenCommand() *cobra.Command {
	opts := &DatagenOptions{}

	cmd := &cobra.Command{
		Use:   "datagen <pipeline_id>",
		Short: "Generate synthetic input data for a pipeline",
		Long: `Generate synthetic CSV rows for a pipeline.

For a file-to-bq pipeline the columns follow its schema, and the file is
staged under inbound/ in a local directory standing in for the source
bucket (--bucket-root/<bucket>/inbound/). Other pipelines get the default
patient-admission columns and need --out.

The same --seed always produces the same rows.`,
		Example: `  # Stage 50 rows for a file pipeline
  dagforge datagen patients_file_load --rows 50

  # Write reproducible rows to a file
  dagforge datagen patients_file_load --seed 42 --out patients.csv

  # Print rows to stdout
  dagforge datagen patients_daily_rollup --out -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatagen(cmd, args[0], opts)
		},
	}

	cmd.Flags().Int("rows", 0, "Number of rows to generate")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (default: derived from the clock)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write CSV to this file, or - for stdout, instead of staging it")
	cmd.Flags().String("bucket-root", "", "Directory holding one subdirectory per bucket")

	return cmd
}

func runDatagen(cmd *cobra.Command, pipelineID string, opts *DatagenOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	rec, err := cmdCtx.Engine.Find(cfg.ConfigsDir, pipelineID)
	if err != nil {
		return err
	}

	fields, err := datagenFields(rec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	seed := opts.Seed
	if !cmd.Flags().Changed("seed") {
		seed = uint64(now.UnixNano()) //nolint:gosec // clock values are positive
	}

	table, err := datagen.New(seed, now).Generate(fields, cfg.Datagen.Rows)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Debug("generated synthetic rows", "pipeline_id", pipelineID, "rows", len(table.Rows), "seed", seed)

	r := cmdCtx.Renderer
	var location string
	switch {
	case opts.Out == "-":
		return datagen.WriteCSV(r.Writer(), table)
	case opts.Out != "":
		if err := writeCSVFile(opts.Out, table); err != nil {
			return err
		}
		location = opts.Out
	default:
		if rec.Config.IngestionType != core.IngestionFileToBQ {
			return fmt.Errorf("pipeline %s does not read files; use --out to choose where the rows go", pipelineID)
		}
		src, err := rec.Config.PrimarySource()
		if err != nil {
			return err
		}
		store := objstore.NewLocal(cfg.Datagen.BucketRoot)
		ref, err := datagen.Upload(cmd.Context(), store, src.Bucket, pipelineID, table, now)
		if err != nil {
			return err
		}
		location = ref.URI()
	}

	out := output.DatagenOutput{
		PipelineID: pipelineID,
		Rows:       len(table.Rows),
		Columns:    table.Header,
		Location:   location,
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	r.Success(fmt.Sprintf("Generated %d rows for %s", out.Rows, pipelineID))
	r.Muted(fmt.Sprintf("Written to %s", out.Location))
	return nil
}

func datagenFields(rec loader.Record) ([]datagen.Field, error) {
	if rec.Config.IngestionType == core.IngestionFileToBQ && len(rec.Config.Schema) > 0 {
		fields, err := datagen.FieldsFromSchema(rec.Config.Schema)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", rec.Config.PipelineID, err)
		}
		return fields, nil
	}
	return datagen.HealthcarePatients, nil
}

func writeCSVFile(path string, table datagen.Table) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return datagen.WriteCSV(f, table)
}
