package emit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
	"go.starlark.net/starlark"
)

// maxInlineWidth is the longest container rendered on a single line.
const maxInlineWidth = 80

// PythonLiteral encodes a template value as Python source. Strings are
// quoted and escaped, containers are rendered recursively, identifiers and
// trusted code fragments are emitted as-is. Containers holding other
// containers, or too long for one line, are spread over several lines
// aligned with indent.
func PythonLiteral(v starlark.Value, indent string) (string, error) {
	var b strings.Builder
	if err := writeLiteral(&b, v, indent, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

// lead is the width of whatever precedes v on its line after indent.
func writeLiteral(b *strings.Builder, v starlark.Value, indent string, lead int) error {
	switch val := v.(type) {
	case starctx.Ident:
		b.WriteString(string(val))
	case starctx.Code:
		b.WriteString(string(val))
	case starlark.NoneType:
		b.WriteString("None")
	case starlark.Bool:
		if val {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case starlark.Int:
		b.WriteString(val.String())
	case starlark.Float:
		s, err := pythonFloat(float64(val))
		if err != nil {
			return err
		}
		b.WriteString(s)
	case starlark.String:
		b.WriteString(QuoteString(string(val)))
	case *starlark.List:
		return writeSequence(b, "[", "]", elements(val), indent, lead)
	case starlark.Tuple:
		if len(val) == 1 {
			b.WriteString("(")
			if err := writeLiteral(b, val[0], indent, lead+1); err != nil {
				return err
			}
			b.WriteString(",)")
			return nil
		}
		return writeSequence(b, "(", ")", val, indent, lead)
	case *starlark.Dict:
		return writeDict(b, val, indent, lead)
	default:
		return fmt.Errorf("cannot encode %s value as a Python literal", v.Type())
	}
	return nil
}

func elements(l *starlark.List) []starlark.Value {
	out := make([]starlark.Value, l.Len())
	for i := range out {
		out[i] = l.Index(i)
	}
	return out
}

func writeSequence(b *strings.Builder, open, closing string, items []starlark.Value, indent string, lead int) error {
	parts := make([]string, len(items))
	nested := false
	for i, item := range items {
		if isContainer(item) {
			nested = true
		}
		var sb strings.Builder
		if err := writeLiteral(&sb, item, indent+"    ", 0); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		parts[i] = sb.String()
	}
	writeContainer(b, open, closing, parts, nested, indent, lead)
	return nil
}

func writeDict(b *strings.Builder, d *starlark.Dict, indent string, lead int) error {
	items := d.Items()
	parts := make([]string, len(items))
	nested := false
	for i, kv := range items {
		key, ok := kv[0].(starlark.String)
		if !ok {
			return fmt.Errorf("dict key must be a string, got %s", kv[0].Type())
		}
		if isContainer(kv[1]) {
			nested = true
		}
		prefix := QuoteString(string(key)) + ": "
		var sb strings.Builder
		sb.WriteString(prefix)
		if err := writeLiteral(&sb, kv[1], indent+"    ", len(prefix)); err != nil {
			return fmt.Errorf("key %q: %w", string(key), err)
		}
		parts[i] = sb.String()
	}
	writeContainer(b, "{", "}", parts, nested, indent, lead)
	return nil
}

func writeContainer(b *strings.Builder, open, closing string, parts []string, nested bool, indent string, lead int) {
	inline := open + strings.Join(parts, ", ") + closing
	if len(parts) == 0 || (!nested && !strings.Contains(inline, "\n") && len(indent)+lead+len(inline) <= maxInlineWidth) {
		b.WriteString(inline)
		return
	}

	b.WriteString(open)
	b.WriteString("\n")
	for _, p := range parts {
		b.WriteString(indent)
		b.WriteString("    ")
		b.WriteString(p)
		b.WriteString(",\n")
	}
	b.WriteString(indent)
	b.WriteString(closing)
}

func isContainer(v starlark.Value) bool {
	switch val := v.(type) {
	case *starlark.List:
		return val.Len() > 0
	case starlark.Tuple:
		return len(val) > 0
	case *starlark.Dict:
		return val.Len() > 0
	default:
		return false
	}
}

func pythonFloat(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("cannot encode %v as a Python literal", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// QuoteString returns s as a Python string literal. Multi-line text that
// needs no escaping is written as a triple-quoted string so that embedded
// SQL stays readable; anything else is a double-quoted escaped literal.
func QuoteString(s string) string {
	if strings.Contains(s, "\n") && tripleQuoteSafe(s) {
		return `"""` + s + `"""`
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case utf8.RuneError:
			b.WriteString(`�`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&b, `\x%02x`, r)
			case !unicode.IsPrint(r) && r > 0xffff:
				fmt.Fprintf(&b, `\U%08x`, r)
			case !unicode.IsPrint(r):
				fmt.Fprintf(&b, `\u%04x`, r)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func tripleQuoteSafe(s string) bool {
	if strings.Contains(s, `"""`) || strings.HasSuffix(s, `"`) || strings.HasPrefix(s, `"`) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
		case r == '\\' || r == '\r' || r == utf8.RuneError:
			return false
		case r < 0x20 || r == 0x7f || !unicode.IsPrint(r):
			return false
		}
	}
	return true
}
