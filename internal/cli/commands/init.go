package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dagforge/internal/cli/config"
	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/datagen"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// projectFile is the dagforge.yaml written by init.
type projectFile struct {
	ConfigsDir string          `yaml:"configs_dir"`
	OutputDir  string          `yaml:"output_dir"`
	StatePath  string          `yaml:"state_path"`
	Generate   projectGenerate `yaml:"generate"`
	Datagen    projectDatagen  `yaml:"datagen"`
}

type projectGenerate struct {
	Parallel int  `yaml:"parallel"`
	FailFast bool `yaml:"fail_fast"`
}

type projectDatagen struct {
	Rows       int    `yaml:"rows"`
	BucketRoot string `yaml:"bucket_root"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new dagforge project",
		Long: `Initialize a new dagforge project with a default configuration and two
sample config records.

This creates:
  - dagforge.yaml project configuration
  - configs/patients_file_load.yaml, a file-to-bq record
  - configs/patients_daily_rollup.yaml, a bq-to-bq record`,
		Example: `  # Initialize in current directory
  dagforge init

  # Initialize in a new directory
  dagforge init my-pipelines

  # Force overwrite existing files
  dagforge init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

type scaffoldFile struct {
	path  string
	value any
}

func scaffold() []scaffoldFile {
	return []scaffoldFile{
		{path: "dagforge.yaml", value: projectFile{
			ConfigsDir: config.DefaultConfigsDir,
			OutputDir:  config.DefaultOutputDir,
			StatePath:  config.DefaultStateFile,
			Generate:   projectGenerate{Parallel: config.DefaultParallel},
			Datagen:    projectDatagen{Rows: config.DefaultRows, BucketRoot: config.DefaultBucketRoot},
		}},
		{path: filepath.Join(config.DefaultConfigsDir, "patients_file_load.yaml"), value: sampleFileRecord()},
		{path: filepath.Join(config.DefaultConfigsDir, "patients_daily_rollup.yaml"), value: sampleTableRecord()},
	}
}

func sampleFileRecord() *core.PipelineConfig {
	autodetect := false
	catchup := false
	return &core.PipelineConfig{
		PipelineID:         "patients_file_load",
		IngestionType:      core.IngestionFileToBQ,
		ScheduleInterval:   "@daily",
		StartDate:          "2024-01-01",
		Catchup:            &catchup,
		DefaultArgs:        map[string]any{"owner": "data-eng", "retries": 1},
		WriteDisposition:   core.WriteAppend,
		DestinationProject: "my-project",
		DestinationDataset: "staging",
		SourceURIs:         []string{"gs://landing-zone/inbound/patients_file_load_*.csv"},
		StagingTable:       "patients_stg",
		Schema:             datagen.Schema(datagen.HealthcarePatients),
		Autodetect:         &autodetect,
	}
}

func sampleTableRecord() *core.PipelineConfig {
	catchup := false
	return &core.PipelineConfig{
		PipelineID:         "patients_daily_rollup",
		IngestionType:      core.IngestionBQToBQ,
		ScheduleInterval:   "0 3 * * *",
		StartDate:          "2024-01-01",
		Catchup:            &catchup,
		DefaultArgs:        map[string]any{"owner": "data-eng", "retries": 2},
		WriteDisposition:   core.WriteTruncate,
		DestinationProject: "my-project",
		DestinationDataset: "marts",
		CustomSQL: "SELECT Department, COUNT(*) AS admissions\n" +
			"FROM `my-project.staging.patients_stg`\n" +
			"GROUP BY Department\n",
		FinalTable: "admissions_by_department",
		Location:   "US",
	}
}

func runInit(r *output.Renderer, dir string, force bool) error {
	files := scaffold()

	if !force {
		for _, f := range files {
			target := filepath.Join(dir, f.path)
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists. Use --force to overwrite", target)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}

	for _, f := range files {
		content, err := yaml.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.path, err)
		}
		target := filepath.Join(dir, f.path)
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, content, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		r.StatusLine(f.path, "success", "")
	}

	r.Println("")
	r.Success("dagforge project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Edit the sample records in configs/")
	r.Println("  2. Run 'dagforge validate' to check them")
	r.Println("  3. Run 'dagforge generate' to write the modules to dags/")
	r.Println("  4. Run 'dagforge datagen patients_file_load' for sample input files")

	return nil
}
