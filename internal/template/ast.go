// Package template renders pipeline artifacts from text templates with
// Starlark expressions. {{ expr }} inserts a value, {* stmt *} controls
// flow (for/if/elif/else) and {# comment #} is dropped. Every expression
// result passes through an Escaper, which for generated Python encodes it
// as a literal.
package template

import "fmt"

// Pos is a location in template source. Line and Col are 1-based.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Node is one element of a parsed template.
type Node interface {
	Position() Pos
}

// Text is literal output.
type Text struct {
	At    Pos
	Value string
}

// Expr is a {{ expr }} tag; Source is the Starlark expression.
type Expr struct {
	At     Pos
	Source string
}

// Loop renders Body once per element of Iter with Var bound to it.
type Loop struct {
	At   Pos
	Var  string
	Iter string
	Body []Node
}

// Cond renders the body of its first branch whose test holds, else Else.
// Else is nil when the block has no else branch.
type Cond struct {
	At       Pos
	Branches []Branch
	Else     []Node
}

// Branch is the if or an elif arm of a Cond.
type Branch struct {
	At   Pos
	Test string
	Body []Node
}

func (n *Text) Position() Pos { return n.At }
func (n *Expr) Position() Pos { return n.At }
func (n *Loop) Position() Pos { return n.At }
func (n *Cond) Position() Pos { return n.At }

// Template is a parsed template.
type Template struct {
	Name  string
	Nodes []Node
}
