package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText    TokenType = iota // Literal text
	TokenExpr                     // Expression content (between {{ and }})
	TokenStmt                     // Statement content (between {* and *})
	TokenComment                  // Comment content (between {# and #})
	TokenEOF                      // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenComment:
		return "COMMENT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Pos
}

// Lexer tokenizes a template string.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens.
//
// A statement or comment that is alone on its line takes the whole line
// with it: the indentation before it and the newline after it are removed.
// Comments never reach the token stream.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	trimStandalone(tokens)

	out := tokens[:0]
	for _, tok := range tokens {
		if tok.Type == TokenComment || (tok.Type == TokenText && tok.Value == "") {
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}

// trimStandalone strips the line of every statement or comment that has
// nothing but whitespace around it on its line.
func trimStandalone(tokens []Token) {
	// atLineStart[i] is true when token i begins a line once earlier
	// trimming has been applied.
	lineStart := true
	for i := range tokens {
		tok := &tokens[i]
		switch tok.Type {
		case TokenText:
			if tok.Value == "" {
				continue
			}
			idx := strings.LastIndexByte(tok.Value, '\n')
			tail := tok.Value[idx+1:]
			lineStart = strings.TrimLeft(tail, " \t") == "" && (idx >= 0 || lineStart)
			continue
		case TokenStmt, TokenComment:
		default:
			lineStart = false
			continue
		}

		if !lineStart {
			continue
		}

		next := i + 1
		var rest string
		var hasNewline bool
		switch tokens[next].Type {
		case TokenText:
			rest = strings.TrimLeft(tokens[next].Value, " \t")
			switch {
			case strings.HasPrefix(rest, "\r\n"):
				rest, hasNewline = rest[2:], true
			case strings.HasPrefix(rest, "\n"):
				rest, hasNewline = rest[1:], true
			case rest != "" || tokens[next+1].Type != TokenEOF:
				// Something else follows on this line.
				lineStart = false
				continue
			}
		case TokenEOF:
		default:
			lineStart = false
			continue
		}

		// Drop the indentation before the tag.
		if i > 0 && tokens[i-1].Type == TokenText {
			prev := &tokens[i-1]
			idx := strings.LastIndexByte(prev.Value, '\n')
			prev.Value = prev.Value[:idx+1]
		}
		// Drop the rest of the line after the tag.
		if tokens[next].Type == TokenText {
			tokens[next].Value = rest
		}
		lineStart = hasNewline || tokens[next].Type == TokenEOF
	}
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	switch {
	case l.matchString("{{"):
		return l.scanExpression()
	case l.matchString("{*"):
		return l.scanDelimited(TokenStmt, "*}", "unclosed statement: missing '*}'")
	case l.matchString("{#"):
		return l.scanDelimited(TokenComment, "#}", "unclosed comment: missing '#}'")
	}
	return l.scanText()
}

func (l *Lexer) atDelimiter() bool {
	return l.matchString("{{") || l.matchString("{*") || l.matchString("{#")
}

// scanText scans literal text until a delimiter or EOF.
func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) && !l.atDelimiter() {
		l.advance()
	}

	if l.pos == start {
		return Token{}, errorf(PhaseLex, l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanExpression scans a {{ expr }} expression. Braces inside the
// expression (dict literals) are balanced before }} is accepted.
func (l *Lexer) scanExpression() (Token, error) {
	l.markStart()
	l.skip(2)
	l.skipWhitespace()

	exprStart := l.pos
	depth := 0

	for l.pos < len(l.input) {
		if depth == 0 && l.matchString("}}") {
			expr := strings.TrimSpace(l.input[exprStart:l.pos])
			l.skip(2)
			return Token{Type: TokenExpr, Value: expr, Pos: l.startPosition()}, nil
		}

		switch l.peek() {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		l.advance()
	}

	return Token{}, errorf(PhaseLex, l.startPosition(), "unclosed expression: missing '}}'")
}

// scanDelimited scans a statement or comment up to its closing delimiter.
func (l *Lexer) scanDelimited(typ TokenType, closing, unclosed string) (Token, error) {
	l.markStart()
	l.skip(2)
	l.skipWhitespace()

	start := l.pos
	for l.pos < len(l.input) {
		if l.matchString(closing) {
			value := strings.TrimSpace(l.input[start:l.pos])
			l.skip(len(closing))
			return Token{Type: typ, Value: value, Pos: l.startPosition()}, nil
		}
		l.advance()
	}

	return Token{}, errorf(PhaseLex, l.startPosition(), "%s", unclosed)
}

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// skip advances past n bytes of a delimiter (no newlines).
func (l *Lexer) skip(n int) {
	l.pos += n
	l.col += n
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r := l.peek()
		if r != ' ' && r != '\t' {
			break
		}
		l.advance()
	}
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() Pos {
	return Pos{File: l.file, Line: l.line, Col: l.col}
}

func (l *Lexer) startPosition() Pos {
	return Pos{File: l.file, Line: l.lastLine, Col: l.lastCol}
}
