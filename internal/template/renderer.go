package template

import (
	"maps"
	"strings"

	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
	"go.starlark.net/starlark"
)

// Escaper turns the value of a {{ expr }} into output text. indent is the
// leading whitespace of the output line the value starts on, so that
// values spanning several lines can line up with it.
type Escaper func(v starlark.Value, indent string) (string, error)

// Option configures rendering.
type Option func(*renderer)

// WithEscaper sets the escaper applied to every expression result.
func WithEscaper(e Escaper) Option {
	return func(r *renderer) {
		r.escape = e
	}
}

// plainText writes strings as-is and None as nothing.
func plainText(v starlark.Value, _ string) (string, error) {
	switch val := v.(type) {
	case starlark.String:
		return string(val), nil
	case starlark.NoneType:
		return "", nil
	default:
		return v.String(), nil
	}
}

type renderer struct {
	ctx    *starctx.ExecutionContext
	file   string
	escape Escaper
	out    strings.Builder
}

// Render executes a parsed template against ctx.
func Render(tmpl *Template, ctx *starctx.ExecutionContext, opts ...Option) (string, error) {
	r := &renderer{ctx: ctx, file: tmpl.Name, escape: plainText}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.renderNodes(tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return r.out.String(), nil
}

// RenderString parses and renders template source in one step.
func RenderString(input, file string, ctx *starctx.ExecutionContext, opts ...Option) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return Render(tmpl, ctx, opts...)
}

func (r *renderer) renderNodes(nodes []Node, locals starlark.StringDict) error {
	for _, node := range nodes {
		if err := r.renderNode(node, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(node Node, locals starlark.StringDict) error {
	switch n := node.(type) {
	case *Text:
		r.out.WriteString(n.Value)
		return nil

	case *Expr:
		v, err := r.eval(n.Source, n.At, locals)
		if err != nil {
			return err
		}
		s, err := r.escape(v, r.currentIndent())
		if err != nil {
			return renderError(n.At, "cannot render "+n.Source, err)
		}
		r.out.WriteString(s)
		return nil

	case *Loop:
		return r.renderLoop(n, locals)

	case *Cond:
		return r.renderCond(n, locals)

	default:
		return errorf(PhaseRender, node.Position(), "unexpected node %T", node)
	}
}

func (r *renderer) renderLoop(n *Loop, locals starlark.StringDict) error {
	v, err := r.eval(n.Iter, n.At, locals)
	if err != nil {
		return err
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return errorf(PhaseRender, n.At, "cannot iterate over %s", v.Type())
	}

	scope := maps.Clone(locals)
	if scope == nil {
		scope = make(starlark.StringDict, 1)
	}

	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		scope[n.Var] = item
		if err := r.renderNodes(n.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderCond(n *Cond, locals starlark.StringDict) error {
	for _, branch := range n.Branches {
		v, err := r.eval(branch.Test, branch.At, locals)
		if err != nil {
			return err
		}
		if v.Truth() {
			return r.renderNodes(branch.Body, locals)
		}
	}
	return r.renderNodes(n.Else, locals)
}

func (r *renderer) eval(expr string, pos Pos, locals starlark.StringDict) (starlark.Value, error) {
	v, err := r.ctx.EvalExprWithLocals(expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, renderError(pos, "evaluation failed", err)
	}
	return v, nil
}

// currentIndent returns the leading whitespace of the line being written.
func (r *renderer) currentIndent() string {
	s := r.out.String()
	line := s[strings.LastIndexByte(s, '\n')+1:]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
