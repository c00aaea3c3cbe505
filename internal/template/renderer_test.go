package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
)

func newTestContext(t *testing.T) *starctx.ExecutionContext {
	t.Helper()
	pipeline := starctx.Struct("pipeline", starlark.StringDict{
		"id":       starlark.String("orders_daily"),
		"schedule": starlark.String("@daily"),
		"catchup":  starlark.False,
	})
	tasks := starlark.NewList([]starlark.Value{
		starlark.String("load_to_bq"),
		starlark.String("success"),
		starlark.String("failure"),
	})
	ctx, err := starctx.NewExecutionContext(starlark.StringDict{
		"pipeline": pipeline,
		"tasks":    tasks,
		"env":      starlark.String("dev"),
	})
	require.NoError(t, err)
	return ctx
}

func TestRenderer_Expressions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "from airflow import DAG", "from airflow import DAG"},
		{"attribute", `dag_id = {{ pipeline.id }}`, "dag_id = orders_daily"},
		{"multiple expressions", `{{ pipeline.id }}:{{ pipeline.schedule }}`, "orders_daily:@daily"},
		{"string concatenation", `{{ pipeline.id + ".py" }}`, "orders_daily.py"},
		{"integer expression", `{{ 1 + 2 }}`, "3"},
		{"boolean expression", `{{ pipeline.catchup }}`, "False"},
		{"none renders empty", `[{{ None }}]`, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderString(tt.input, "test.py.tmpl", newTestContext(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderer_ForLoop(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "inline loop",
			input:    `{* for x in [1, 2, 3]: *}{{ x }}{* endfor *}`,
			expected: "123",
		},
		{
			name:     "empty loop",
			input:    `before{* for x in []: *}{{ x }}{* endfor *}after`,
			expected: "beforeafter",
		},
		{
			name: "standalone loop lines vanish",
			input: `with dag:
    {* for task in tasks *}
    {{ task }}
    {* endfor *}
`,
			expected: "with dag:\n    load_to_bq\n    success\n    failure\n",
		},
		{
			name: "nested loop",
			input: `{* for i in [0, 1] *}
{* for j in ["a", "b"] *}
{{ i }}{{ j }}
{* endfor *}
{* endfor *}
`,
			expected: "0a\n0b\n1a\n1b\n",
		},
		{
			name:     "loop variable does not leak",
			input:    `{* for env in ["prod"] *}{{ env }}{* endfor *}-{{ env }}`,
			expected: "prod-dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderString(tt.input, "test.py.tmpl", newTestContext(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderer_IfStatement(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"if true", `{* if env == "dev": *}DEV{* endif *}`, "DEV"},
		{"if false", `{* if env == "prod": *}PROD{* endif *}`, ""},
		{"if-else true branch", `{* if env == "dev": *}DEV{* else: *}NOT_DEV{* endif *}`, "DEV"},
		{"if-else false branch", `{* if env == "prod": *}PROD{* else: *}NOT_PROD{* endif *}`, "NOT_PROD"},
		{"if-elif-else", `{* if env == "prod": *}PROD{* elif env == "dev": *}DEV{* else: *}OTHER{* endif *}`, "DEV"},
		{"nested for-if", `{* for x in [1, 2, 3]: *}{* if x > 1: *}{{ x }}{* endif *}{* endfor *}`, "23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderString(tt.input, "test.py.tmpl", newTestContext(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderer_TruthyFalsy(t *testing.T) {
	tests := []struct {
		condition string
		expected  string
	}{
		{`True`, "yes"},
		{`False`, "no"},
		{`1`, "yes"},
		{`0`, "no"},
		{`""`, "no"},
		{`"hello"`, "yes"},
		{`[]`, "no"},
		{`[1]`, "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			input := `{* if ` + tt.condition + `: *}yes{* else: *}no{* endif *}`
			result, err := RenderString(input, "test.py.tmpl", newTestContext(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"undefined variable", `{{ undefined_variable }}`},
		{"undefined iterator", `{* for x in undefined: *}{{ x }}{* endfor *}`},
		{"undefined condition", `{* if undefined: *}yes{* endif *}`},
		{"non-iterable for", `{* for x in 42: *}{{ x }}{* endfor *}`},
		{"parse error", `{* for x in [1] *}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RenderString(tt.input, "test.py.tmpl", newTestContext(t))
			assert.Error(t, err)
		})
	}
}

func TestRenderer_EvalErrorCarriesPosition(t *testing.T) {
	_, err := RenderString("ok\n  {{ missing }}", "dag.py.tmpl", newTestContext(t))
	require.Error(t, err)

	var renderErr *Error
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, PhaseRender, renderErr.Phase)
	assert.Equal(t, 2, renderErr.Pos.Line)

	var evalErr *starctx.EvalError
	assert.True(t, errors.As(err, &evalErr), "cause is preserved")
}

func TestRender_ReportsTemplateName(t *testing.T) {
	tmpl, err := ParseString("{{ pipeline.id }}\n{{ missing }}", "airflow_dag.py.tmpl")
	require.NoError(t, err)

	_, err = Render(tmpl, newTestContext(t))
	require.Error(t, err)

	var evalErr *starctx.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "airflow_dag.py.tmpl", evalErr.File)
	assert.Equal(t, 2, evalErr.Line)
}

func TestRenderer_WithEscaper(t *testing.T) {
	var indents []string
	quote := func(v starlark.Value, indent string) (string, error) {
		indents = append(indents, indent)
		if s, ok := v.(starlark.String); ok {
			return `'` + string(s) + `'`, nil
		}
		if v == starlark.None {
			return "", errors.New("None not allowed")
		}
		return v.String(), nil
	}

	input := "dag_id={{ pipeline.id }}\n    task={{ tasks[0] }}\n"
	result, err := RenderString(input, "test.py.tmpl", newTestContext(t), WithEscaper(quote))
	require.NoError(t, err)
	assert.Equal(t, "dag_id='orders_daily'\n    task='load_to_bq'\n", result)
	assert.Equal(t, []string{"", "    "}, indents)

	_, err = RenderString("{{ None }}", "test.py.tmpl", newTestContext(t), WithEscaper(quote))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "None not allowed")
}

func TestRenderer_ParseOnceRenderMany(t *testing.T) {
	tmpl, err := ParseString(`{{ pipeline.id }}{* for t in tasks *},{{ t }}{* endfor *}`, "test.py.tmpl")
	require.NoError(t, err)

	for range 3 {
		out, err := Render(tmpl, newTestContext(t))
		require.NoError(t, err)
		assert.Equal(t, "orders_daily,load_to_bq,success,failure", out)
		assert.False(t, strings.Contains(out, "{{"))
	}
}
