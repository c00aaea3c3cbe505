package starlark

import (
	"fmt"
	"maps"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ExecutionContext holds the globals a template is rendered against.
// For a pipeline these are pipeline, organizing, imports, tasks and edges;
// the builtins from Predeclared are always present.
type ExecutionContext struct {
	globals starlark.StringDict
	pool    *ThreadPool

	// mu protects globals
	mu sync.RWMutex
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithThreadPool shares a thread pool between contexts.
func WithThreadPool(pool *ThreadPool) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.pool = pool
	}
}

// NewExecutionContext creates a context from globals. It fails if a global
// shadows a builtin.
func NewExecutionContext(globals starlark.StringDict, opts ...ContextOption) (*ExecutionContext, error) {
	ctx := &ExecutionContext{globals: Predeclared()}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.pool == nil {
		ctx.pool = NewThreadPool(1)
	}
	if err := ctx.AddGlobals(globals); err != nil {
		return nil, err
	}
	return ctx, nil
}

// AddGlobals adds values to the context.
// Returns error if a name conflicts with a builtin.
func (ctx *ExecutionContext) AddGlobals(globals starlark.StringDict) error {
	for name := range globals {
		if builtinNames[name] {
			return fmt.Errorf("global %q conflicts with builtin", name)
		}
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for name, v := range globals {
		v.Freeze()
		ctx.globals[name] = v
	}
	return nil
}

// Globals returns a copy of the globals dictionary.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return maps.Clone(ctx.globals)
}

// EvalExpr evaluates a single Starlark expression.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates an expression with additional local variables,
// such as loop variables. Locals take precedence over globals.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.pool.Get(filename)
	defer ctx.pool.Put(thread)

	env := ctx.Globals()
	maps.Copy(env, locals)

	result, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, filename, expr, env)
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}
	return result, nil
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
