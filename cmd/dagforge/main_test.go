// Package main provides tests for the dagforge CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dagforge/internal/cli"
	"github.com/leapstack-labs/dagforge/internal/cli/config"
	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/cli/testutil"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI with args from the current directory.
func execute(t *testing.T, args ...string) result {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestVersionCommand(t *testing.T) {
	res := execute(t, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dagforge v"+cli.Version)
}

func TestHelpCommand(t *testing.T) {
	res := execute(t, "--help")
	require.NoError(t, res.err)

	for _, expected := range []string{"generate", "validate", "list", "graph", "render", "init", "datagen", "organize", "history", "serve"} {
		assert.Contains(t, res.stdout, expected)
	}
}

func TestGenerateCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "generate", "-o", "markdown")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Batch generation complete: 2 generated, 0 unchanged, 0 failed, 0 skipped")
	testutil.AssertNoANSI(t, res.stdout)
	testutil.AssertValidMarkdown(t, res.stdout)

	fileDAG, err := os.ReadFile(filepath.Join(dir, "dags", testutil.FilePipelineID+".py"))
	require.NoError(t, err)
	assert.Contains(t, string(fileDAG), `dag_id="orders_file_load"`)
	assert.Contains(t, string(fileDAG), "GCSToBigQueryOperator")

	tableDAG, err := os.ReadFile(filepath.Join(dir, "dags", testutil.TablePipelineID+".py"))
	require.NoError(t, err)
	assert.Contains(t, string(tableDAG), "BigQueryInsertJobOperator")

	untouched, err := os.ReadFile(filepath.Join(dir, "dags", "hand_written_pipeline.py"))
	require.NoError(t, err)
	assert.Equal(t, "# not generated\n", string(untouched))

	// Second run leaves identical modules alone.
	res = execute(t, "generate", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	out := decode[output.GenerateOutput](t, res.stdout)
	assert.Equal(t, 2, out.Summary.Unchanged)
	assert.NotEmpty(t, out.RunID)
}

func TestGenerateCommandInvalidRecord(t *testing.T) {
	dir := testutil.SetupTestProject(t, true)
	t.Chdir(dir)

	res := execute(t, "generate", "-o", "json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 3 config records failed")

	out := decode[output.GenerateOutput](t, res.stdout)
	assert.Equal(t, 2, out.Summary.Generated)
	assert.Equal(t, 1, out.Summary.Failed)

	_, err := os.Stat(filepath.Join(dir, "dags", testutil.FilePipelineID+".py"))
	assert.NoError(t, err, "valid records are generated alongside an invalid one")
	_, err = os.Stat(filepath.Join(dir, "dags", "broken.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateCommandFailFast(t *testing.T) {
	dir := testutil.SetupTestProject(t, true)
	t.Chdir(dir)

	// broken.json sorts first, so one worker stops before the valid records.
	res := execute(t, "generate", "--fail-fast", "--parallel", "1", "-o", "json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 failed, 2 skipped of 3 config records")

	out := decode[output.GenerateOutput](t, res.stdout)
	assert.Equal(t, 1, out.Summary.Failed)
	assert.Equal(t, 2, out.Summary.Skipped)
}

func TestGenerateCommandDryRun(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "generate", "--dry-run", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	out := decode[output.GenerateOutput](t, res.stdout)
	assert.True(t, out.DryRun)
	assert.Empty(t, out.RunID)

	_, err := os.Stat(filepath.Join(dir, "dags", testutil.FilePipelineID+".py"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, ".dagforge", "state.db"))
	assert.True(t, os.IsNotExist(err), "dry run must not open the history store")
}

func TestGenerateCommandSelect(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "generate", "--select", testutil.TablePipelineID, "--no-state", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	out := decode[output.GenerateOutput](t, res.stdout)
	require.Len(t, out.Results, 1)
	assert.Equal(t, testutil.TablePipelineID, out.Results[0].PipelineID)

	res = execute(t, "generate", "--select", "nope", "--no-state")
	assert.Error(t, res.err)
}

func TestValidateCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, true)
	t.Chdir(dir)

	res := execute(t, "validate", "-o", "json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 3 config records are invalid")

	out := decode[output.ValidateOutput](t, res.stdout)
	assert.Equal(t, 2, out.Valid)
	assert.Equal(t, 1, out.Invalid)
	for _, rec := range out.Records {
		if strings.HasSuffix(rec.Source, testutil.BrokenRecord) {
			assert.False(t, rec.Valid)
			assert.Contains(t, rec.Fields, "source_uris")
		}
	}
}

func TestListCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	require.NoError(t, execute(t, "generate").err)

	res := execute(t, "list", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	out := decode[output.ListOutput](t, res.stdout)
	require.Equal(t, 2, out.Total)
	for _, p := range out.Pipelines {
		require.NotNil(t, p.LastGenerated, p.PipelineID)
	}

	res = execute(t, "list", "-o", "markdown")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, testutil.FilePipelineID)
	testutil.AssertValidMarkdown(t, res.stdout)
}

func TestGraphCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "graph", testutil.FilePipelineID, "-o", "json")
	require.NoError(t, res.err, res.stderr)
	out := decode[output.GraphOutput](t, res.stdout)
	assert.Equal(t, testutil.FilePipelineID, out.PipelineID)
	assert.NotEmpty(t, out.Levels)
	assert.NotEmpty(t, out.Edges)

	res = execute(t, "graph", "missing")
	assert.Error(t, res.err)
}

func TestRenderCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "render", testutil.TablePipelineID, "-o", "text")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "SUM(amount) AS revenue")
	assert.Contains(t, res.stdout, "BigQueryInsertJobOperator")

	_, err := os.Stat(filepath.Join(dir, "dags", testutil.TablePipelineID+".py"))
	assert.True(t, os.IsNotExist(err), "render does not write")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	res := execute(t, "init", "-o", "markdown")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "dagforge project initialized!")

	res = execute(t, "validate", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, 2, decode[output.ValidateOutput](t, res.stdout).Valid)

	res = execute(t, "init")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--force")

	require.NoError(t, execute(t, "init", "--force").err)
}

func TestDatagenAndOrganize(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "datagen", testutil.FilePipelineID, "--seed", "7", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	gen := decode[output.DatagenOutput](t, res.stdout)
	assert.Equal(t, 5, gen.Rows)
	assert.Contains(t, gen.Columns, "order_id")
	assert.True(t, strings.HasPrefix(gen.Location, "gs://landing-zone/inbound/orders_file_load_"), gen.Location)

	inbound, err := filepath.Glob(filepath.Join(dir, "buckets", "landing-zone", "inbound", "*.csv"))
	require.NoError(t, err)
	require.Len(t, inbound, 1)

	res = execute(t, "organize", testutil.FilePipelineID, "-o", "json")
	require.NoError(t, res.err, res.stderr)
	org := decode[output.OrganizeOutput](t, res.stdout)
	require.Len(t, org.Moves, 1)
	assert.Contains(t, org.Moves[0].To, "/archival/")

	archived, err := filepath.Glob(filepath.Join(dir, "buckets", "landing-zone", "archival", "*.csv"))
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	res = execute(t, "datagen", testutil.TablePipelineID, "--seed", "7")
	assert.Error(t, res.err, "table pipelines need --out")

	res = execute(t, "datagen", testutil.TablePipelineID, "--seed", "7", "--out", "-")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	assert.Len(t, lines, 6)

	res = execute(t, "organize", testutil.TablePipelineID, "--outcome", "failure", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	assert.NotEmpty(t, decode[output.OrganizeOutput](t, res.stdout).Message)
}

func TestHistoryCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	require.NoError(t, execute(t, "generate").err)

	res := execute(t, "history", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	runs := decode[output.HistoryOutput](t, res.stdout)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, 2, runs.Runs[0].Summary.Generated)

	res = execute(t, "history", runs.Runs[0].ID, "-o", "json")
	require.NoError(t, res.err, res.stderr)
	detail := decode[output.HistoryOutput](t, res.stdout)
	assert.Len(t, detail.Artifacts, 2)

	res = execute(t, "history", "no-such-run")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not found")
}

func TestConfigFlagsOverrideProjectFile(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "generate", "--output-dir", "elsewhere", "--no-state", "-o", "json")
	require.NoError(t, res.err, res.stderr)

	_, err := os.Stat(filepath.Join(dir, "elsewhere", testutil.FilePipelineID+".py"))
	assert.NoError(t, err)
}

func TestServeRejectsInvalidPort(t *testing.T) {
	dir := testutil.SetupTestProject(t, false)
	t.Chdir(dir)

	res := execute(t, "serve", "--port", "70000")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "serve.port")
}
