// Package loader discovers pipeline configuration records on disk, parses
// them into core.PipelineConfig values and validates them against the
// ingestion strategy their ingestion_type selects.
//
// A record that fails to parse or validate fails alone: the sequence
// returned by All keeps going and the caller decides whether to stop.
package loader

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/dagforge/internal/ingestion"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Extensions lists the recognized record file extensions.
var Extensions = []string{".json", ".yaml", ".yml", ".hcl"}

// Record is one loaded configuration record.
// Exactly one of Config and Err is set.
type Record struct {
	Path     string
	Config   *core.PipelineConfig
	Strategy ingestion.Strategy
	Err      error
}

// Loader reads configuration records.
type Loader struct {
	logger *slog.Logger
}

// New creates a Loader. A nil logger discards output.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{logger: logger}
}

// IsRecordFile reports whether name has a recognized extension.
func IsRecordFile(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Discover lists record files directly inside dir, sorted by name.
// Subdirectories and unrecognized files are ignored.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read configs directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsRecordFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	// ReadDir already sorts by name; keep the guarantee explicit.
	slices.Sort(paths)
	return paths, nil
}

// All lazily loads every record in dir. A discovery failure is yielded
// as a single Record carrying the error.
func (l *Loader) All(dir string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		paths, err := Discover(dir)
		if err != nil {
			yield(Record{Path: dir, Err: err})
			return
		}
		l.logger.Debug("discovered config records", "dir", dir, "count", len(paths))

		for _, path := range paths {
			if !yield(l.Load(path)) {
				return
			}
		}
	}
}

// Load reads, decodes and validates a single record.
func (l *Loader) Load(path string) Record {
	cfg, err := l.parse(path)
	if err != nil {
		return Record{Path: path, Err: &core.ConfigError{Source: path, Err: err}}
	}

	strategy, err := Validate(cfg)
	if err != nil {
		return Record{Path: path, Err: &core.ConfigError{Source: path, PipelineID: cfg.PipelineID, Err: err}}
	}

	if ignored := ingestion.IgnoredFields(cfg); len(ignored) > 0 {
		l.logger.Warn("ignoring fields of the other ingestion type",
			"path", path, "pipeline_id", cfg.PipelineID,
			"ingestion_type", cfg.IngestionType, "fields", ignored)
	}

	l.logger.Debug("loaded config record", "path", path, "pipeline_id", cfg.PipelineID)
	return Record{Path: path, Config: cfg, Strategy: strategy}
}

// LoadFile is Load returning the config and error directly.
func (l *Loader) LoadFile(path string) (*core.PipelineConfig, error) {
	rec := l.Load(path)
	return rec.Config, rec.Err
}

func (l *Loader) parse(path string) (*core.PipelineConfig, error) {
	var (
		raw map[string]any
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err = readJSON(path)
	case ".yaml", ".yml":
		raw, err = readYAML(path)
	case ".hcl":
		raw, err = readHCL(path)
	default:
		return nil, fmt.Errorf("unsupported record format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("record is empty")
	}
	return Decode(raw)
}

// Validate runs the shared field checks, resolves the strategy for the
// record's ingestion type and runs the strategy's own checks. Problems from
// every stage are returned together.
func Validate(cfg *core.PipelineConfig) (ingestion.Strategy, error) {
	var errs []error
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := validateSchedule(cfg.ScheduleInterval); err != nil {
		errs = append(errs, err)
	}

	var strategy ingestion.Strategy
	if cfg.IngestionType != "" {
		s, err := ingestion.Lookup(cfg.IngestionType)
		if err != nil {
			errs = append(errs, err)
		} else {
			strategy = s
			if err := s.Validate(cfg); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return strategy, nil
}
