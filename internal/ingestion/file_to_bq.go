package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Object prefixes and suffix used by file-mode organizing logic.
const (
	InboundPrefix = "inbound/"
	ArchivePrefix = "archival/"
	FailedPrefix  = "failed/"
	FileSuffix    = ".csv"
)

// LoadTaskID is the task id of the file-mode movement task.
const LoadTaskID = "load_to_bq"

const gcsToBigQueryImport = "from airflow.providers.google.cloud.transfers.gcs_to_bigquery import GCSToBigQueryOperator"

func init() {
	Register(FileToBQ{})
}

// FileToBQ loads delimited files from object storage into a staging table
// and relocates the source files once the load resolves.
type FileToBQ struct{}

// Type implements Strategy.
func (FileToBQ) Type() core.IngestionType { return core.IngestionFileToBQ }

// Validate implements Strategy.
func (FileToBQ) Validate(cfg *core.PipelineConfig) error {
	var errs []error

	if len(cfg.SourceURIs) == 0 {
		errs = append(errs, core.Missing("source_uris"))
	} else {
		for i, uri := range cfg.SourceURIs {
			if _, err := core.ParseSourceURI(uri); err != nil {
				errs = append(errs, core.Invalid(fmt.Sprintf("source_uris[%d]", i), err.Error()))
			}
		}
	}

	if cfg.StagingTable == "" {
		errs = append(errs, core.Missing("staging_table"))
	}

	if len(cfg.Schema) == 0 {
		errs = append(errs, core.Missing("schema"))
	}
	for i, f := range cfg.Schema {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, core.Missing(fmt.Sprintf("schema[%d].name", i)))
		}
		if strings.TrimSpace(f.Type) == "" {
			errs = append(errs, core.Missing(fmt.Sprintf("schema[%d].type", i)))
		}
	}

	if cfg.Autodetect == nil {
		errs = append(errs, core.Missing("autodetect"))
	}

	return errors.Join(errs...)
}

// BuildMovementTask implements Strategy. Only source_uris[0] is loaded.
func (FileToBQ) BuildMovementTask(cfg *core.PipelineConfig) (core.TaskSpec, error) {
	src, err := cfg.PrimarySource()
	if err != nil {
		return core.TaskSpec{}, fmt.Errorf("source_uris[0]: %w", err)
	}

	schema := make([]any, 0, len(cfg.Schema))
	for _, f := range cfg.Schema {
		field := core.Dict{{Name: "name", Value: f.Name}, {Name: "type", Value: f.Type}}
		if f.Mode != "" {
			field = append(field, core.Arg{Name: "mode", Value: f.Mode})
		}
		schema = append(schema, field)
	}

	return core.TaskSpec{
		ID:       LoadTaskID,
		Operator: "GCSToBigQueryOperator",
		Import:   gcsToBigQueryImport,
		Args: []core.Arg{
			{Name: "bucket", Value: src.Bucket},
			{Name: "source_objects", Value: []any{src.Path}},
			{Name: "destination_project_dataset_table", Value: cfg.TableRef(cfg.StagingTable)},
			{Name: "source_format", Value: "CSV"},
			{Name: "skip_leading_rows", Value: 1},
			{Name: "autodetect", Value: cfg.AutodetectEnabled()},
			{Name: "write_disposition", Value: string(cfg.WriteDisposition)},
			{Name: "field_delimiter", Value: ","},
			{Name: "allow_quoted_newlines", Value: true},
			{Name: "schema_fields", Value: schema},
		},
	}, nil
}

// BuildOrganizingLogic implements Strategy.
func (FileToBQ) BuildOrganizingLogic(cfg *core.PipelineConfig) core.OrganizingLogic {
	// Validate guarantees a parseable primary source.
	src, _ := cfg.PrimarySource()
	return core.OrganizingLogic{
		Kind:          core.OrganizeRelocate,
		Bucket:        src.Bucket,
		InboundPrefix: InboundPrefix,
		ArchivePrefix: ArchivePrefix,
		FailedPrefix:  FailedPrefix,
		FileSuffix:    FileSuffix,
		Imports:       []string{"import logging", "from google.cloud import storage"},
	}
}
