package template

import (
	"regexp"
	"slices"
)

var (
	forPattern  = regexp.MustCompile(`^for\s+([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+?)\s*:?$`)
	ifPattern   = regexp.MustCompile(`^if\s+(.+?)\s*:?$`)
	elifPattern = regexp.MustCompile(`^elif\s+(.+?)\s*:?$`)
	elsePattern = regexp.MustCompile(`^else\s*:?$`)
)

// tag is the kind of a {* stmt *}.
type tag int

const (
	tagFor tag = iota + 1
	tagEndFor
	tagIf
	tagElif
	tagElse
	tagEndIf
)

var tagNames = map[tag]string{
	tagFor:    "for",
	tagEndFor: "endfor",
	tagIf:     "if",
	tagElif:   "elif",
	tagElse:   "else",
	tagEndIf:  "endif",
}

// opener is the block a closing tag belongs to.
var opener = map[tag]tag{
	tagEndFor: tagFor,
	tagElif:   tagIf,
	tagElse:   tagIf,
	tagEndIf:  tagIf,
}

type stmt struct {
	at   Pos
	kind tag
	expr string
	name string
}

// ParseString parses template source into a Template.
func ParseString(input, name string) (*Template, error) {
	tokens, err := NewLexer(input, name).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	nodes, _, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &Template{Name: name, Nodes: nodes}, nil
}

// classify parses the content of a {* stmt *} tag.
func classify(tok Token) (stmt, error) {
	s := stmt{at: tok.Pos}
	v := tok.Value

	if m := forPattern.FindStringSubmatch(v); m != nil {
		s.kind, s.name, s.expr = tagFor, m[1], m[2]
		return s, nil
	}
	if m := elifPattern.FindStringSubmatch(v); m != nil {
		s.kind, s.expr = tagElif, m[1]
		return s, nil
	}
	if m := ifPattern.FindStringSubmatch(v); m != nil {
		s.kind, s.expr = tagIf, m[1]
		return s, nil
	}
	switch {
	case elsePattern.MatchString(v):
		s.kind = tagElse
	case v == "endfor":
		s.kind = tagEndFor
	case v == "endif":
		s.kind = tagEndIf
	default:
		return s, errorf(PhaseParse, tok.Pos, "invalid statement %q", v)
	}
	return s, nil
}

func unclosed(s stmt) *Error {
	closing := "endfor"
	if s.kind == tagIf {
		closing = "endif"
	}
	return errorf(PhaseParse, s.at, "unclosed '%s' block (missing '%s')", tagNames[s.kind], closing)
}

func unmatched(s stmt) *Error {
	return errorf(PhaseParse, s.at, "'%s' without matching '%s'", tagNames[s.kind], tagNames[opener[s.kind]])
}

type parser struct {
	tokens []Token
	next   int
}

// parseBody collects nodes until EOF or a statement of one of the closer
// kinds, which is returned. At EOF the returned statement is nil. Any other
// closing statement is an error.
func (p *parser) parseBody(closers ...tag) ([]Node, *stmt, error) {
	var nodes []Node

	for p.next < len(p.tokens) {
		tok := p.tokens[p.next]
		p.next++

		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil

		case TokenText:
			nodes = append(nodes, &Text{At: tok.Pos, Value: tok.Value})

		case TokenExpr:
			if tok.Value == "" {
				return nil, nil, errorf(PhaseParse, tok.Pos, "empty expression")
			}
			nodes = append(nodes, &Expr{At: tok.Pos, Source: tok.Value})

		case TokenStmt:
			s, err := classify(tok)
			if err != nil {
				return nil, nil, err
			}

			var node Node
			switch s.kind {
			case tagFor:
				node, err = p.parseLoop(s)
			case tagIf:
				node, err = p.parseCond(s)
			default:
				if slices.Contains(closers, s.kind) {
					return nodes, &s, nil
				}
				return nil, nil, unmatched(s)
			}
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseLoop(open stmt) (*Loop, error) {
	body, end, err := p.parseBody(tagEndFor)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, unclosed(open)
	}
	return &Loop{At: open.at, Var: open.name, Iter: open.expr, Body: body}, nil
}

func (p *parser) parseCond(open stmt) (*Cond, error) {
	cond := &Cond{At: open.at}
	arm := open

	for {
		body, end, err := p.parseBody(tagElif, tagElse, tagEndIf)
		if err != nil {
			return nil, err
		}
		if end == nil {
			return nil, unclosed(open)
		}
		cond.Branches = append(cond.Branches, Branch{At: arm.at, Test: arm.expr, Body: body})

		switch end.kind {
		case tagElif:
			arm = *end
		case tagElse:
			elseBody, closing, err := p.parseBody(tagEndIf)
			if err != nil {
				return nil, err
			}
			if closing == nil {
				return nil, unclosed(open)
			}
			// An empty else body is still an else branch.
			if elseBody == nil {
				elseBody = []Node{}
			}
			cond.Else = elseBody
			return cond, nil
		default:
			return cond, nil
		}
	}
}
