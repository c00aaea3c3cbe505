package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// IngestionType selects the pipeline-shape variant for a config.
type IngestionType string

// Known ingestion types.
const (
	IngestionFileToBQ IngestionType = "file-to-bq"
	IngestionBQToBQ   IngestionType = "bq-to-bq"
)

// WriteDisposition is passed through verbatim to the load/transform job.
type WriteDisposition string

// BigQuery write dispositions.
const (
	WriteTruncate WriteDisposition = "WRITE_TRUNCATE"
	WriteAppend   WriteDisposition = "WRITE_APPEND"
	WriteEmpty    WriteDisposition = "WRITE_EMPTY"
)

// Valid reports whether d is one of the known dispositions.
func (d WriteDisposition) Valid() bool {
	switch d {
	case WriteTruncate, WriteAppend, WriteEmpty:
		return true
	default:
		return false
	}
}

// StartDateLayout is the accepted layout for start_date.
const StartDateLayout = "2006-01-02"

// MaxPipelineIDLength mirrors the orchestrator's id length limit.
const MaxPipelineIDLength = 250

var pipelineIDPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// SchemaField describes one column of a file-mode staging table.
type SchemaField struct {
	Name string `koanf:"name" json:"name" yaml:"name"`
	Type string `koanf:"type" json:"type" yaml:"type"`
	Mode string `koanf:"mode" json:"mode,omitempty" yaml:"mode,omitempty"`
}

// PipelineConfig is one parsed configuration record.
// It is treated as immutable once loaded.
type PipelineConfig struct {
	PipelineID       string           `koanf:"pipeline_id" yaml:"pipeline_id"`
	IngestionType    IngestionType    `koanf:"ingestion_type" yaml:"ingestion_type"`
	ScheduleInterval string           `koanf:"schedule_interval" yaml:"schedule_interval"`
	StartDate        string           `koanf:"start_date" yaml:"start_date"`
	Catchup          *bool            `koanf:"catchup" yaml:"catchup"`
	DefaultArgs      map[string]any   `koanf:"default_args" yaml:"default_args"`
	WriteDisposition WriteDisposition `koanf:"write_disposition" yaml:"write_disposition"`

	DestinationProject string `koanf:"destination_project" yaml:"destination_project"`
	DestinationDataset string `koanf:"destination_dataset" yaml:"destination_dataset"`

	// File mode
	SourceURIs   []string      `koanf:"source_uris" yaml:"source_uris,omitempty"`
	StagingTable string        `koanf:"staging_table" yaml:"staging_table,omitempty"`
	Schema       []SchemaField `koanf:"schema" yaml:"schema,omitempty"`
	Autodetect   *bool         `koanf:"autodetect" yaml:"autodetect,omitempty"`

	// Table mode
	CustomSQL  string `koanf:"custom_sql" yaml:"custom_sql,omitempty"`
	FinalTable string `koanf:"final_table" yaml:"final_table,omitempty"`
	Location   string `koanf:"location" yaml:"location,omitempty"`
}

// CatchupEnabled returns the catchup flag, false when unset.
func (c *PipelineConfig) CatchupEnabled() bool {
	return c.Catchup != nil && *c.Catchup
}

// AutodetectEnabled returns the autodetect flag, false when unset.
func (c *PipelineConfig) AutodetectEnabled() bool {
	return c.Autodetect != nil && *c.Autodetect
}

// ParsedStartDate parses StartDate using StartDateLayout.
func (c *PipelineConfig) ParsedStartDate() (time.Time, error) {
	return time.Parse(StartDateLayout, c.StartDate)
}

// Validate checks the fields shared by every ingestion type.
// Variant-specific groups are checked by the ingestion strategy.
// All problems are returned together.
func (c *PipelineConfig) Validate() error {
	var errs []error

	switch {
	case c.PipelineID == "":
		errs = append(errs, Missing("pipeline_id"))
	case len(c.PipelineID) > MaxPipelineIDLength:
		errs = append(errs, Invalid("pipeline_id", fmt.Sprintf("longer than %d characters", MaxPipelineIDLength)))
	case !pipelineIDPattern.MatchString(c.PipelineID):
		errs = append(errs, Invalid("pipeline_id", fmt.Sprintf("%q is not a valid identifier (letters, digits, '_', '.', '-')", c.PipelineID)))
	}

	if c.IngestionType == "" {
		errs = append(errs, Missing("ingestion_type"))
	}

	if strings.TrimSpace(c.ScheduleInterval) == "" {
		errs = append(errs, Missing("schedule_interval"))
	}

	if c.StartDate == "" {
		errs = append(errs, Missing("start_date"))
	} else if _, err := c.ParsedStartDate(); err != nil {
		errs = append(errs, Invalid("start_date", fmt.Sprintf("%q is not a YYYY-MM-DD date", c.StartDate)))
	}

	if c.Catchup == nil {
		errs = append(errs, Missing("catchup"))
	}

	if c.WriteDisposition == "" {
		errs = append(errs, Missing("write_disposition"))
	} else if !c.WriteDisposition.Valid() {
		errs = append(errs, Invalid("write_disposition", fmt.Sprintf("%q must be one of %s, %s, %s",
			c.WriteDisposition, WriteTruncate, WriteAppend, WriteEmpty)))
	}

	if c.DestinationProject == "" {
		errs = append(errs, Missing("destination_project"))
	}
	if c.DestinationDataset == "" {
		errs = append(errs, Missing("destination_dataset"))
	}

	return joinValidation(errs)
}

// SourceLocation is a parsed scheme://bucket/path URI.
type SourceLocation struct {
	Scheme string
	Bucket string
	Path   string
}

// String reassembles the URI.
func (l SourceLocation) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Path
}

// ParseSourceURI splits a scheme://bucket/path URI.
// The path keeps every segment after the bucket.
func ParseSourceURI(uri string) (SourceLocation, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return SourceLocation{}, fmt.Errorf("%q has no scheme", uri)
	}
	bucket, path, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return SourceLocation{}, fmt.Errorf("%q has no bucket", uri)
	}
	if path == "" {
		return SourceLocation{}, fmt.Errorf("%q has no object path", uri)
	}
	return SourceLocation{Scheme: scheme, Bucket: bucket, Path: path}, nil
}

// PrimarySource parses SourceURIs[0].
func (c *PipelineConfig) PrimarySource() (SourceLocation, error) {
	if len(c.SourceURIs) == 0 {
		return SourceLocation{}, fmt.Errorf("source_uris is empty")
	}
	return ParseSourceURI(c.SourceURIs[0])
}

// TableRef formats project.dataset.table.
func (c *PipelineConfig) TableRef(table string) string {
	return c.DestinationProject + "." + c.DestinationDataset + "." + table
}
