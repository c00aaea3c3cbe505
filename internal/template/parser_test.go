package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ValidInput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNodes int
		checkFunc func(t *testing.T, tmpl *Template)
	}{
		{
			name:      "plain text",
			input:     "from airflow import DAG",
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				text, ok := tmpl.Nodes[0].(*Text)
				require.True(t, ok, "expected Text, got %T", tmpl.Nodes[0])
				assert.Equal(t, "from airflow import DAG", text.Value)
			},
		},
		{
			name:      "simple expression",
			input:     "dag_id={{ pipeline.id }},",
			wantNodes: 3,
			checkFunc: func(t *testing.T, tmpl *Template) {
				text1, ok := tmpl.Nodes[0].(*Text)
				require.True(t, ok, "node[0]: expected Text, got %T", tmpl.Nodes[0])
				assert.Equal(t, "dag_id=", text1.Value)

				expr, ok := tmpl.Nodes[1].(*Expr)
				require.True(t, ok, "node[1]: expected Expr, got %T", tmpl.Nodes[1])
				assert.Equal(t, "pipeline.id", expr.Source)

				text2, ok := tmpl.Nodes[2].(*Text)
				require.True(t, ok, "node[2]: expected Text, got %T", tmpl.Nodes[2])
				assert.Equal(t, ",", text2.Value)
			},
		},
		{
			name: "for loop",
			input: `{* for col in columns: *}
{{ col }}
{* endfor *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				loop, ok := tmpl.Nodes[0].(*Loop)
				require.True(t, ok, "expected Loop, got %T", tmpl.Nodes[0])
				assert.Equal(t, "col", loop.Var)
				assert.Equal(t, "columns", loop.Iter)
				// The standalone statement lines are dropped.
				require.Len(t, loop.Body, 2)
				expr, ok := loop.Body[0].(*Expr)
				require.True(t, ok, "body[0]: expected Expr, got %T", loop.Body[0])
				assert.Equal(t, "col", expr.Source)
			},
		},
		{
			name:      "for loop with list",
			input:     `{* for x in ["a", "b", "c"]: *}{{ x }}{* endfor *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				loop, ok := tmpl.Nodes[0].(*Loop)
				require.True(t, ok, "expected Loop, got %T", tmpl.Nodes[0])
				assert.Equal(t, "x", loop.Var)
				assert.Equal(t, `["a", "b", "c"]`, loop.Iter)
			},
		},
		{
			name: "if-else",
			input: `{* if condition: *}
yes
{* else: *}
no
{* endif *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				cond, ok := tmpl.Nodes[0].(*Cond)
				require.True(t, ok, "expected Cond, got %T", tmpl.Nodes[0])
				require.Len(t, cond.Branches, 1)
				assert.Equal(t, "condition", cond.Branches[0].Test)
				assert.Len(t, cond.Branches[0].Body, 1)
				require.NotNil(t, cond.Else)
				assert.Len(t, cond.Else, 1)
			},
		},
		{
			name: "if-elif",
			input: `{* if a: *}
A
{* elif b: *}
B
{* elif c: *}
C
{* endif *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				cond, ok := tmpl.Nodes[0].(*Cond)
				require.True(t, ok, "expected Cond, got %T", tmpl.Nodes[0])
				require.Len(t, cond.Branches, 3)
				assert.Equal(t, "a", cond.Branches[0].Test)
				assert.Equal(t, "b", cond.Branches[1].Test)
				assert.Equal(t, "c", cond.Branches[2].Test)
				assert.Nil(t, cond.Else)
			},
		},
		{
			name: "if-elif-else",
			input: `{* if a: *}
A
{* elif b: *}
B
{* else: *}
C
{* endif *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				cond, ok := tmpl.Nodes[0].(*Cond)
				require.True(t, ok, "expected Cond, got %T", tmpl.Nodes[0])
				require.Len(t, cond.Branches, 2)
				assert.Equal(t, "a", cond.Branches[0].Test)
				assert.NotNil(t, cond.Else)
			},
		},
		{
			name: "nested blocks",
			input: `{* for x in items: *}
{* if x > 0: *}
{{ x }}
{* endif *}
{* endfor *}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				loop, ok := tmpl.Nodes[0].(*Loop)
				require.True(t, ok, "expected Loop, got %T", tmpl.Nodes[0])

				var nested bool
				for _, node := range loop.Body {
					if _, ok := node.(*Cond); ok {
						nested = true
						break
					}
				}
				assert.True(t, nested, "expected a Cond inside the Loop body")
			},
		},
		{
			name:      "complex expression",
			input:     `{{ pipeline.id + ".py" }}`,
			wantNodes: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				expr, ok := tmpl.Nodes[0].(*Expr)
				require.True(t, ok, "expected Expr, got %T", tmpl.Nodes[0])
				assert.Equal(t, `pipeline.id + ".py"`, expr.Source)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseString(tt.input, "test.py.tmpl")
			require.NoError(t, err)
			require.Len(t, tmpl.Nodes, tt.wantNodes)
			if tt.checkFunc != nil {
				tt.checkFunc(t, tmpl)
			}
		})
	}
}

func TestParser_ForWithoutColon(t *testing.T) {
	// Both with and without colon should work
	inputs := []string{
		`{* for x in items: *}{{ x }}{* endfor *}`,
		`{* for x in items *}{{ x }}{* endfor *}`,
	}

	for _, input := range inputs {
		t.Run(input[:20]+"...", func(t *testing.T) {
			tmpl, err := ParseString(input, "test.py.tmpl")
			require.NoError(t, err, "input %q", input)

			loop, ok := tmpl.Nodes[0].(*Loop)
			require.True(t, ok, "input %q: expected Loop, got %T", input, tmpl.Nodes[0])
			assert.Equal(t, "x", loop.Var)
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{
			name: "unmatched for",
			input: `{* for x in items: *}
{{ x }}`,
			msg: "missing 'endfor'",
		},
		{
			name: "unmatched endfor",
			input: `{{ x }}
{* endfor *}`,
			msg: "'endfor' without matching 'for'",
		},
		{
			name: "unmatched if",
			input: `{* if condition: *}
yes`,
		},
		{
			name: "unmatched else",
			input: `yes
{* else: *}
no`,
		},
		{
			name:  "invalid statement",
			input: `{* while true: *}`,
			msg:   "invalid statement",
		},
		{
			name:  "endif closing a for",
			input: `{* for x in items *}{{ x }}{* endif *}`,
		},
		{
			name:  "else after else",
			input: `{* if a *}A{* else *}B{* else *}C{* endif *}`,
		},
		{
			name:  "empty expression",
			input: `{{ }}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, "test.py.tmpl")
			require.Error(t, err)

			var tmplErr *Error
			require.ErrorAs(t, err, &tmplErr)
			assert.Equal(t, PhaseParse, tmplErr.Phase)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestParser_EmptyElse(t *testing.T) {
	tmpl, err := ParseString(`{* if a *}A{* else *}{* endif *}`, "test.py.tmpl")
	require.NoError(t, err)
	cond, ok := tmpl.Nodes[0].(*Cond)
	require.True(t, ok)
	assert.NotNil(t, cond.Else)
	assert.Empty(t, cond.Else)
}

func TestParser_UnmatchedErrorPosition(t *testing.T) {
	_, err := ParseString("line\n{* for x in items *}\n{{ x }}\n", "dag.py.tmpl")
	require.Error(t, err)

	var tmplErr *Error
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, 2, tmplErr.Pos.Line)
	assert.Equal(t, "dag.py.tmpl", tmplErr.Pos.File)
	assert.Contains(t, err.Error(), "missing 'endfor'")
}
