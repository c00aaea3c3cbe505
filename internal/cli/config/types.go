// Package config loads dagforge tool configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the
// project file (dagforge.yaml, dagforge.yml or dagforge.json),
// DAGFORGE_* environment variables, then explicitly set command-line
// flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	ConfigsDir   string         `koanf:"configs_dir"`
	OutputDir    string         `koanf:"output_dir"`
	StatePath    string         `koanf:"state_path"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	Generate     GenerateConfig `koanf:"generate"`
	Datagen      DatagenConfig  `koanf:"datagen"`
	Serve        ServeConfig    `koanf:"serve"`

	// ProjectRoot anchors relative paths. It is not read from any source.
	ProjectRoot string `koanf:"-"`
}

// GenerateConfig holds batch generation defaults.
type GenerateConfig struct {
	Parallel int           `koanf:"parallel"`
	FailFast bool          `koanf:"fail_fast"`
	Debounce time.Duration `koanf:"debounce"`
}

// DatagenConfig holds synthetic data defaults.
type DatagenConfig struct {
	Rows       int    `koanf:"rows"`
	BucketRoot string `koanf:"bucket_root"`
}

// ServeConfig holds preview server settings.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultConfigsDir = "configs"
	DefaultOutputDir  = "dags"
	DefaultStateFile  = ".dagforge/state.db"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
	DefaultParallel   = 1
	DefaultDebounce   = 200 * time.Millisecond
	DefaultRows       = 10
	DefaultBucketRoot = ".dagforge/buckets"
	DefaultPort       = 8765
)

// FileNames are the project file names, in lookup order.
var FileNames = []string{"dagforge.yaml", "dagforge.yml", "dagforge.json"}
