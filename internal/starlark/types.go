// Package starlark provides the Starlark execution context used to render
// pipeline templates, plus the value types that carry generated-code
// fragments through template expressions.
package starlark

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Ident is a validated Python identifier. Escapers emit it unquoted.
type Ident string

var _ starlark.Value = Ident("")

// NewIdent validates name and returns it as an Ident.
func NewIdent(name string) (Ident, error) {
	if !IsIdentifier(name) {
		return "", fmt.Errorf("%q is not a valid Python identifier", name)
	}
	return Ident(name), nil
}

func (i Ident) String() string        { return string(i) }
func (i Ident) Type() string          { return "ident" }
func (i Ident) Freeze()               {}
func (i Ident) Truth() starlark.Bool  { return i != "" }
func (i Ident) Hash() (uint32, error) { return starlark.String(i).Hash() }

// Code is a trusted source fragment, such as an import statement built by
// dagforge itself. It cannot be created from template code.
type Code string

var _ starlark.Value = Code("")

func (c Code) String() string        { return string(c) }
func (c Code) Type() string          { return "code" }
func (c Code) Freeze()               {}
func (c Code) Truth() starlark.Bool  { return c != "" }
func (c Code) Hash() (uint32, error) { return starlark.String(c).Hash() }

// Struct builds a named Starlark struct from fields.
func Struct(name string, fields starlark.StringDict) starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String(name), fields)
}

// GoToStarlark converts a Go value to a Starlark value.
// Go maps become dicts with sorted keys; core.Dict keeps its order.
// core.Ref becomes an Ident.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case core.Ref:
		return NewIdent(string(val))

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case time.Time:
		return Struct("date", starlark.StringDict{
			"year":  starlark.MakeInt(val.Year()),
			"month": starlark.MakeInt(int(val.Month())),
			"day":   starlark.MakeInt(val.Day()),
		}), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case core.Dict:
		dict := starlark.NewDict(len(val))
		for _, a := range val {
			if err := setKey(dict, a.Name, a.Value); err != nil {
				return nil, err
			}
		}
		return dict, nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := setKey(dict, k, val[k]); err != nil {
				return nil, err
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func setKey(dict *starlark.Dict, key string, v any) error {
	sv, err := GoToStarlark(v)
	if err != nil {
		return fmt.Errorf("dict key %q: %w", key, err)
	}
	if err := dict.SetKey(starlark.String(key), sv); err != nil {
		return fmt.Errorf("dict setkey %q: %w", key, err)
	}
	return nil
}
