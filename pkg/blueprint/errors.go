package blueprint

import (
	"fmt"
	"strings"
)

/* ParseError reports a syntax or scoping problem at a precise location of the
source. Line and Col are zero based. */
type ParseError struct {
	Offset int
	Line   int
	Col    int
	/* The full source line the error occurred on. */
	LineText string
	Msg      string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parsing failed: %s\n", e.Msg)
	b.WriteString(e.LineText)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", e.Col))
	b.WriteString("^\n")
	fmt.Fprintf(&b, "aka: %d:%d", e.Line, e.Col)
	return b.String()
}

/* EvalError reports a semantic problem with no single source location, such
as adding values of different types. */
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string {
	return "evaluation failed: " + e.Msg
}

func evalErrorf(format string, args ...any) *EvalError {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}
