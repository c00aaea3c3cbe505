package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func newTestContext(t *testing.T) *ExecutionContext {
	t.Helper()
	ctx, err := NewExecutionContext(starlark.StringDict{
		"tasks": starlark.NewList([]starlark.Value{starlark.String("success"), starlark.String("failure")}),
	})
	require.NoError(t, err)
	return ctx
}

func TestIdentBuiltin(t *testing.T) {
	ctx := newTestContext(t)

	v, err := ctx.EvalExpr(`ident("load_to_bq")`, "test.py", 1)
	require.NoError(t, err)
	assert.Equal(t, Ident("load_to_bq"), v)

	v, err = ctx.EvalExpr(`ident(ident("x"))`, "test.py", 1)
	require.NoError(t, err)
	assert.Equal(t, Ident("x"), v)
}

func TestIdentBuiltin_Rejects(t *testing.T) {
	ctx := newTestContext(t)

	for _, expr := range []string{
		`ident("drop table")`,
		`ident("import")`,
		`ident(1)`,
		`ident()`,
	} {
		_, err := ctx.EvalExpr(expr, "test.py", 1)
		assert.Error(t, err, expr)
	}
}

func TestIdentsBuiltin(t *testing.T) {
	ctx := newTestContext(t)

	v, err := ctx.EvalExpr(`idents(tasks)`, "test.py", 1)
	require.NoError(t, err)

	list, ok := v.(*starlark.List)
	require.True(t, ok, "expected list, got %T", v)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, Ident("success"), list.Index(0))
	assert.Equal(t, Ident("failure"), list.Index(1))

	_, err = ctx.EvalExpr(`idents(["ok", "not ok"])`, "test.py", 1)
	assert.Error(t, err)
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("on_success"))
	assert.False(t, IsIdentifier("lambda"))
	assert.False(t, IsIdentifier("a.b"))
}
