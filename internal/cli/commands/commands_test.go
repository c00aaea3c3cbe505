package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/cli/testutil"
	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/loader"
	"github.com/leapstack-labs/dagforge/internal/state"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		build func() *cobra.Command
		use   string
		flags []string
	}{
		{name: "generate", build: NewGenerateCommand, use: "generate",
			flags: []string{"fail-fast", "parallel", "debounce", "dry-run", "select", "watch", "no-state"}},
		{name: "validate", build: NewValidateCommand, use: "validate"},
		{name: "list", build: NewListCommand, use: "list"},
		{name: "graph", build: NewGraphCommand, use: "graph <pipeline_id>"},
		{name: "render", build: NewRenderCommand, use: "render <pipeline_id>"},
		{name: "init", build: NewInitCommand, use: "init [directory]", flags: []string{"force"}},
		{name: "datagen", build: NewDatagenCommand, use: "datagen <pipeline_id>",
			flags: []string{"rows", "seed", "out", "bucket-root"}},
		{name: "organize", build: NewOrganizeCommand, use: "organize <pipeline_id>",
			flags: []string{"outcome", "bucket-root"}},
		{name: "history", build: NewHistoryCommand, use: "history [run-id]", flags: []string{"limit"}},
		{name: "serve", build: NewServeCommand, use: "serve", flags: []string{"port", "watch", "no-state"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.build()
			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short)
			assert.NotEmpty(t, cmd.Long)
			assert.NotNil(t, cmd.RunE)
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %s", flag)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "2024-01-01", "abc123")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "dagforge v1.2.3")
	assert.Contains(t, buf.String(), "commit abc123")
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	tr := testutil.NewTestRendererMarkdown()

	require.NoError(t, runInit(tr.Renderer, dir, false))
	for _, f := range scaffold() {
		_, err := os.Stat(filepath.Join(dir, f.path))
		assert.NoError(t, err, f.path)
	}
	assert.Contains(t, tr.Output(), "- **SUCCESS** dagforge.yaml")
	testutil.AssertNoANSI(t, tr.Output())

	// Every scaffolded record must pass validation.
	recs, err := engine.New(engine.Config{}).LoadAll(filepath.Join(dir, "configs"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.NoError(t, rec.Err, rec.Path)
	}

	err = runInit(tr.Renderer, dir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Use --force to overwrite")

	assert.NoError(t, runInit(tr.Renderer, dir, true))
}

func TestValidateRecord(t *testing.T) {
	valid := validateRecord(loader.Record{
		Path:   "configs/a.yaml",
		Config: &core.PipelineConfig{PipelineID: "a", IngestionType: core.IngestionBQToBQ, StagingTable: "x"},
	})
	assert.True(t, valid.Valid)
	assert.Equal(t, "a", valid.PipelineID)
	assert.Equal(t, []string{"staging_table"}, valid.Ignored)

	cfgErr := &core.ConfigError{
		Source:     "configs/b.json",
		PipelineID: "b",
		Err:        core.Missing("final_table"),
	}
	invalid := validateRecord(loader.Record{Path: "configs/b.json", Err: cfgErr})
	assert.False(t, invalid.Valid)
	assert.Equal(t, "b", invalid.PipelineID)
	assert.Equal(t, []string{"final_table"}, invalid.Fields)
	assert.NotEmpty(t, invalid.Error)
}

func TestHistoryRun(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)

	got := historyRun(&state.Run{
		ID:          "run-1",
		Status:      state.RunStatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		Counts:      state.Counts{Generated: 2, Unchanged: 1},
	})
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "2024-03-01T10:00:00Z", got.StartedAt)
	assert.Equal(t, "2024-03-01T10:00:02Z", got.CompletedAt)
	assert.Equal(t, output.GenerateSummary{Generated: 2, Unchanged: 1}, got.Summary)

	running := historyRun(&state.Run{ID: "run-2", Status: state.RunStatusRunning, StartedAt: started})
	assert.Empty(t, running.CompletedAt)
}

func TestArtifactLabel(t *testing.T) {
	assert.Equal(t, "orders", artifactLabel(output.HistoryArtifact{PipelineID: "orders", Source: "configs/orders.json"}))
	assert.Equal(t, "broken.json", artifactLabel(output.HistoryArtifact{Source: "configs/broken.json"}))
	assert.Equal(t, "boom", artifactDetail(output.HistoryArtifact{Checksum: "abc", Error: "boom"}))
	assert.Equal(t, "abc", artifactDetail(output.HistoryArtifact{Checksum: "abc"}))
}

func TestBatchError(t *testing.T) {
	tests := []struct {
		name   string
		counts state.Counts
		want   string
	}{
		{"failures only", state.Counts{Generated: 2, Failed: 1}, "1 of 3 config records failed"},
		{"fail fast", state.Counts{Failed: 1, Skipped: 3}, "1 failed, 3 skipped of 4 config records"},
		{"skipped after generated", state.Counts{Generated: 1, Unchanged: 1, Failed: 1, Skipped: 2}, "1 failed, 2 skipped of 5 config records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, batchError(tt.counts), tt.want)
		})
	}
}

func TestRenderReport(t *testing.T) {
	report := &engine.Report{
		RunID:    "run-1",
		Duration: 15 * time.Millisecond,
		Results: []engine.Result{
			{Source: "configs/orders.json", PipelineID: "orders", Status: engine.StatusGenerated, ArtifactPath: "dags/orders.py", Checksum: "abc"},
			{Source: "configs/broken.json", Status: engine.StatusFailed, Err: core.Missing("pipeline_id")},
		},
	}

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, renderReport(tr.Renderer, report))
		assert.Contains(t, tr.Output(), "orders")
		assert.Contains(t, tr.ErrorOutput(), "Batch generation finished with failures")
	})

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderReport(tr.Renderer, report))
		testutil.AssertNoANSI(t, tr.Output())
		testutil.AssertValidMarkdown(t, tr.Output())
		assert.Contains(t, tr.Output(), "| orders")
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeJSON, false)
		require.NoError(t, renderReport(tr.Renderer, report))
		assert.Contains(t, tr.Output(), `"run_id": "run-1"`)
		assert.Contains(t, tr.Output(), `"failed": 1`)
	})
}
