package template

import "fmt"

// Phase is the stage of template processing an error came from.
type Phase string

// Processing phases.
const (
	PhaseLex    Phase = "lex"
	PhaseParse  Phase = "parse"
	PhaseRender Phase = "render"
)

// Error reports a template failure at a source position. Err holds the
// underlying evaluation or escaping failure during rendering.
type Error struct {
	Phase Phase
	Pos   Pos
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(phase Phase, pos Pos, format string, args ...any) *Error {
	return &Error{Phase: phase, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func renderError(pos Pos, msg string, err error) *Error {
	return &Error{Phase: PhaseRender, Pos: pos, Msg: msg, Err: err}
}
