package starlark

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsIdentifier reports whether name is a usable Python identifier.
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name) && !pythonKeywords[name]
}

// builtinNames are reserved and cannot be overridden by context globals.
var builtinNames = map[string]bool{
	"ident":  true,
	"idents": true,
}

// Predeclared returns the builtins available to every template:
//
//	ident("name")          validated identifier, rendered unquoted
//	idents(["a", "b"])     list of identifiers
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"ident":  starlark.NewBuiltin("ident", identBuiltin),
		"idents": starlark.NewBuiltin("idents", identsBuiltin),
	}
}

func identBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	return toIdent(b.Name(), name)
}

func identsBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var names starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &names); err != nil {
		return nil, err
	}

	var out []starlark.Value
	iter := names.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		id, err := toIdent(b.Name(), x)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return starlark.NewList(out), nil
}

func toIdent(fn string, v starlark.Value) (starlark.Value, error) {
	switch val := v.(type) {
	case Ident:
		return val, nil
	case starlark.String:
		id, err := NewIdent(string(val))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		return id, nil
	default:
		return nil, fmt.Errorf("%s: want string, got %s", fn, v.Type())
	}
}
