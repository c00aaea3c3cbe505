package ingestion

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// TransformTaskID is the task id of the table-mode movement task.
const TransformTaskID = "transform_data"

// DefaultLocation is the job location used when none is configured.
const DefaultLocation = "US"

const insertJobImport = "from airflow.providers.google.cloud.operators.bigquery import BigQueryInsertJobOperator"

func init() {
	Register(BQToBQ{})
}

// BQToBQ runs a freeform query into a final table. There is no source file,
// so its organizing logic only reports the outcome.
type BQToBQ struct{}

// Type implements Strategy.
func (BQToBQ) Type() core.IngestionType { return core.IngestionBQToBQ }

// Validate implements Strategy. custom_sql is trusted input and is not parsed.
func (BQToBQ) Validate(cfg *core.PipelineConfig) error {
	var errs []error
	if strings.TrimSpace(cfg.CustomSQL) == "" {
		errs = append(errs, core.Missing("custom_sql"))
	}
	if cfg.FinalTable == "" {
		errs = append(errs, core.Missing("final_table"))
	}
	return errors.Join(errs...)
}

// BuildMovementTask implements Strategy.
func (BQToBQ) BuildMovementTask(cfg *core.PipelineConfig) (core.TaskSpec, error) {
	location := cfg.Location
	if location == "" {
		location = DefaultLocation
	}

	query := core.Dict{
		{Name: "query", Value: cfg.CustomSQL},
		{Name: "useLegacySql", Value: false},
		{Name: "destinationTable", Value: core.Dict{
			{Name: "projectId", Value: cfg.DestinationProject},
			{Name: "datasetId", Value: cfg.DestinationDataset},
			{Name: "tableId", Value: cfg.FinalTable},
		}},
		{Name: "writeDisposition", Value: string(cfg.WriteDisposition)},
	}

	return core.TaskSpec{
		ID:       TransformTaskID,
		Operator: "BigQueryInsertJobOperator",
		Import:   insertJobImport,
		Args: []core.Arg{
			{Name: "configuration", Value: core.Dict{{Name: "query", Value: query}}},
			{Name: "location", Value: location},
		},
	}, nil
}

// BuildOrganizingLogic implements Strategy.
func (BQToBQ) BuildOrganizingLogic(*core.PipelineConfig) core.OrganizingLogic {
	return core.OrganizingLogic{
		Kind:           core.OrganizeLog,
		SuccessMessage: "No files to move for BQ-to-BQ pipeline. Success logged.",
		FailureMessage: "No files to move for BQ-to-BQ pipeline. Failure logged.",
		Imports:        []string{"import logging"},
	}
}
