package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dagforge/internal/ingestion"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

func boolPtr(b bool) *bool { return &b }

func fileConfig() *core.PipelineConfig {
	return &core.PipelineConfig{
		PipelineID:         "orders_daily",
		IngestionType:      core.IngestionFileToBQ,
		ScheduleInterval:   "@daily",
		StartDate:          "2024-01-01",
		Catchup:            boolPtr(false),
		DefaultArgs:        map[string]any{"owner": "data-eng"},
		WriteDisposition:   core.WriteTruncate,
		DestinationProject: "proj",
		DestinationDataset: "stg",
		SourceURIs:         []string{"gs://raw-bucket/inbound/orders.csv"},
		StagingTable:       "orders_stg",
		Schema:             []core.SchemaField{{Name: "id", Type: "string"}},
		Autodetect:         boolPtr(false),
	}
}

func tableConfig() *core.PipelineConfig {
	return &core.PipelineConfig{
		PipelineID:         "revenue_rollup",
		IngestionType:      core.IngestionBQToBQ,
		ScheduleInterval:   "0 3 * * *",
		StartDate:          "2024-02-01",
		Catchup:            boolPtr(true),
		WriteDisposition:   core.WriteAppend,
		DestinationProject: "proj",
		DestinationDataset: "mart",
		FinalTable:         "revenue",
		CustomSQL:          "SELECT 1",
	}
}

func synthesize(t *testing.T, cfg *core.PipelineConfig) *Spec {
	t.Helper()
	strategy, err := ingestion.Lookup(cfg.IngestionType)
	require.NoError(t, err)
	spec, err := Synthesize(cfg, strategy)
	require.NoError(t, err)
	return spec
}

func TestSynthesize_Metadata(t *testing.T) {
	spec := synthesize(t, fileConfig())

	assert.Equal(t, "orders_daily", spec.PipelineID)
	assert.Equal(t, "@daily", spec.ScheduleInterval)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), spec.StartDate)
	assert.False(t, spec.Catchup)
	assert.Equal(t, map[string]any{"owner": "data-eng"}, spec.DefaultArgs)
	assert.Equal(t, []string{"auto-generated"}, spec.Tags)
}

func TestSynthesize_ShapeIsIdenticalAcrossVariants(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *core.PipelineConfig
		movement string
	}{
		{name: "file-to-bq", cfg: fileConfig(), movement: "load_to_bq"},
		{name: "bq-to-bq", cfg: tableConfig(), movement: "transform_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := synthesize(t, tt.cfg)

			assert.Equal(t, tt.movement, spec.Movement)
			assert.Equal(t, 3, spec.Graph.NodeCount())
			assert.Equal(t, 2, spec.Graph.EdgeCount())
			assert.Equal(t, []string{tt.movement}, spec.Graph.Roots())
			assert.Equal(t, []string{"on_success_organize", "on_failure_organize"}, spec.Graph.Leaves())

			edges, err := spec.Edges()
			require.NoError(t, err)
			assert.Equal(t, []Edge{{From: tt.movement, To: []string{"success", "failure"}}}, edges)

			success, ok := spec.Task("on_success_organize")
			require.True(t, ok)
			assert.Equal(t, core.AllSuccess, success.TriggerRule)
			callable, _ := success.Arg("python_callable")
			assert.Equal(t, core.Ref("on_success"), callable)

			failure, ok := spec.Task("on_failure_organize")
			require.True(t, ok)
			assert.Equal(t, core.OneFailed, failure.TriggerRule)
		})
	}
}

func TestSynthesize_TriggerRules(t *testing.T) {
	spec := synthesize(t, fileConfig())

	tests := []struct {
		name     string
		movement core.TaskState
		success  bool
		failure  bool
	}{
		{name: "movement succeeded", movement: core.TaskSuccess, success: true, failure: false},
		{name: "movement failed", movement: core.TaskFailed, success: false, failure: true},
		{name: "movement upstream failed", movement: core.TaskUpstream, success: false, failure: true},
		{name: "movement skipped", movement: core.TaskSkipped, success: false, failure: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := map[string]core.TaskState{"load_to_bq": tt.movement}

			fires, err := spec.Fires("on_success_organize", states)
			require.NoError(t, err)
			assert.Equal(t, tt.success, fires)

			fires, err = spec.Fires("on_failure_organize", states)
			require.NoError(t, err)
			assert.Equal(t, tt.failure, fires)
		})
	}
}

func TestSpec_FiresErrors(t *testing.T) {
	spec := synthesize(t, fileConfig())

	_, err := spec.Fires("nope", nil)
	assert.Error(t, err)

	_, err = spec.Fires("on_success_organize", map[string]core.TaskState{})
	assert.Error(t, err)
}

func TestSpec_Imports(t *testing.T) {
	file, err := synthesize(t, fileConfig()).Imports()
	require.NoError(t, err)
	assert.Contains(t, file, "from airflow import DAG")
	assert.Contains(t, file, "from airflow.operators.python import PythonOperator")
	assert.Contains(t, file, "from airflow.providers.google.cloud.transfers.gcs_to_bigquery import GCSToBigQueryOperator")
	assert.Contains(t, file, "from google.cloud import storage")
	assert.IsIncreasing(t, file)

	table, err := synthesize(t, tableConfig()).Imports()
	require.NoError(t, err)
	assert.Contains(t, table, "from airflow.providers.google.cloud.operators.bigquery import BigQueryInsertJobOperator")
	assert.NotContains(t, table, "from google.cloud import storage")
}

func TestSpec_TasksInDependencyOrder(t *testing.T) {
	tasks, err := synthesize(t, tableConfig()).Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "transform_data", tasks[0].ID)
}

func TestSpec_CyclicGraphIsAnError(t *testing.T) {
	spec := synthesize(t, fileConfig())
	require.NoError(t, spec.Graph.AddEdge("on_success_organize", "load_to_bq"))

	_, err := spec.Tasks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders_daily")
	assert.Contains(t, err.Error(), "cycle")

	_, err = spec.Edges()
	assert.Error(t, err)
	_, err = spec.Imports()
	assert.Error(t, err)
}

func TestSynthesize_StrategyMismatch(t *testing.T) {
	_, err := Synthesize(fileConfig(), ingestion.BQToBQ{})
	assert.Error(t, err)
}

func TestSynthesize_NilDefaultArgs(t *testing.T) {
	cfg := tableConfig()
	cfg.DefaultArgs = nil
	spec := synthesize(t, cfg)
	assert.NotNil(t, spec.DefaultArgs)
	assert.Empty(t, spec.DefaultArgs)
}

func TestSynthesize_DoesNotMutateConfig(t *testing.T) {
	cfg := fileConfig()
	before := *cfg
	synthesize(t, cfg)
	assert.Equal(t, before, *cfg)
}
