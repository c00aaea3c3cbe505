// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
)

// Pipeline ids written by SetupTestProject.
const (
	FilePipelineID  = "orders_file_load"
	TablePipelineID = "revenue_rollup"
	BrokenRecord    = "broken.json"
)

const projectYAML = `configs_dir: configs
output_dir: dags
state_path: .dagforge/state.db
generate:
  parallel: 2
datagen:
  rows: 5
  bucket_root: buckets
`

const fileRecordJSON = `{
  "pipeline_id": "orders_file_load",
  "ingestion_type": "file-to-bq",
  "source_uris": ["gs://landing-zone/inbound/orders_file_load_*.csv"],
  "destination_project": "proj",
  "destination_dataset": "staging",
  "staging_table": "orders_stg",
  "schema": [
    {"name": "order_id", "type": "STRING"},
    {"name": "amount", "type": "FLOAT64"}
  ],
  "schedule_interval": "@daily",
  "start_date": "2024-01-01",
  "catchup": false,
  "write_disposition": "WRITE_APPEND",
  "autodetect": false,
  "default_args": {"owner": "data-eng", "retries": 1}
}
`

const tableRecordYAML = `pipeline_id: revenue_rollup
ingestion_type: bq-to-bq
schedule_interval: "0 3 * * *"
start_date: "2024-02-01"
catchup: true
write_disposition: WRITE_TRUNCATE
destination_project: proj
destination_dataset: marts
final_table: revenue
custom_sql: |
  SELECT order_id, SUM(amount) AS revenue
  FROM proj.staging.orders_stg
  GROUP BY order_id
default_args:
  owner: data-eng
`

const brokenRecordJSON = `{"pipeline_id": "broken", "ingestion_type": "file-to-bq"}
`

// SetupTestProject creates a temporary project with a dagforge.yaml, one
// file-to-bq record and one bq-to-bq record. With withBroken set, an
// incomplete record is added as well.
func SetupTestProject(t *testing.T, withBroken bool) string {
	t.Helper()

	tmpDir := t.TempDir()

	files := map[string]string{
		"dagforge.yaml": projectYAML,
		filepath.Join("configs", FilePipelineID+".json"):  fileRecordJSON,
		filepath.Join("configs", TablePipelineID+".yaml"): tableRecordYAML,
		filepath.Join("configs", "README.md"):             "records live here\n",
		filepath.Join("dags", "hand_written_pipeline.py"): "# not generated\n",
	}
	if withBroken {
		files[filepath.Join("configs", BrokenRecord)] = brokenRecordJSON
	}

	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
