package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		input string
		want  OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"text", ModeText},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"yaml", ModeAuto},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.input))
		})
	}

	assert.True(t, ValidMode("json"))
	assert.False(t, ValidMode("yaml"))
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit json on terminal", ModeJSON, true, ModeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeAuto, false)

	r.Header(1, "Pipelines")
	r.StatusLine("orders_daily", "generated", "dags/orders_daily.py")
	r.Success("done")
	r.Warning("careful")
	r.Error("broken")

	got := out.String()
	assert.Contains(t, got, "# Pipelines\n")
	assert.Contains(t, got, "- **GENERATED** orders_daily: dags/orders_daily.py")
	assert.Contains(t, got, "**done**")
	assert.Contains(t, errOut.String(), "> Warning: careful")
	assert.Contains(t, errOut.String(), "> Error: broken")
	assert.NotContains(t, got+errOut.String(), "\x1b[")
}

func TestRenderer_TextWithoutColor(t *testing.T) {
	// A non-terminal writer gets the ASCII profile even in text mode.
	r, out, _ := newTestRenderer(ModeText, false)

	r.Header(1, "Pipelines")
	r.StatusLine("orders_daily", "failed", "invalid config")
	r.StatusLine("revenue_rollup", "unchanged", "")

	got := out.String()
	assert.Contains(t, got, "Pipelines")
	assert.Contains(t, got, "✗ orders_daily invalid config")
	assert.Contains(t, got, "= revenue_rollup")
	assert.NotContains(t, got, "\x1b[")
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"generated": 2}))
	assert.Equal(t, "{\n  \"generated\": 2\n}\n", out.String())
}

func TestRenderer_Table(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		r.Table([]string{"id", "type"}, [][]string{{"orders_daily", "file_to_bq"}})
		got := out.String()
		assert.Contains(t, got, "| orders_daily | file_to_bq |")
		assert.Equal(t, 3, strings.Count(strings.TrimSpace(got), "\n")+1)
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, true)
		r.Table([]string{"id", "type"}, [][]string{{"orders_daily", "file_to_bq"}})
		got := out.String()
		assert.Contains(t, got, "orders_daily")
		assert.Contains(t, got, "┌")
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Graph", FormatHeader(2, "Graph"))
	assert.Equal(t, "# Graph", FormatHeader(0, "Graph"))
	assert.Equal(t, "- **Schedule**: @daily", FormatKeyValue("Schedule", "@daily"))
	assert.Equal(t, "File To Bq", Title("file_to_bq"))
	assert.Equal(t, "All Success", Title("all-success"))
}
