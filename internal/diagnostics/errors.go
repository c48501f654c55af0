// Package diagnostics defines the error taxonomy shared by every stage of
// the interpretation pass.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xhub/reshop-sub001/internal/token"
)

type ErrorCode string

// Kind groups error codes into the families reported to the user.
type Kind int

const (
	LexError Kind = iota
	SyntaxError
	SemanticError
	RuntimeError
	BugError
	IoError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	case RuntimeError:
		return "runtime error"
	case BugError:
		return "internal error"
	case IoError:
		return "I/O error"
	}
	return "error"
}

const (
	// Lexer
	ErrL001 ErrorCode = "L001" // unrecognized character
	ErrL002 ErrorCode = "L002" // unterminated string

	// Parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // legacy syntax not supported
	ErrP003 ErrorCode = "P003" // aggregation outside a node body

	// Semantic
	ErrS001 ErrorCode = "S001" // unknown identifier
	ErrS002 ErrorCode = "S002" // dimension or kind mismatch
	ErrS003 ErrorCode = "S003" // too many index dimensions
	ErrS004 ErrorCode = "S004" // too many local variables
	ErrS005 ErrorCode = "S005" // duplicate local name
	ErrS006 ErrorCode = "S006" // unresolved label
	ErrS007 ErrorCode = "S007" // ambiguous label
	ErrS008 ErrorCode = "S008" // invalid arc target
	ErrS009 ErrorCode = "S009" // root inference
	ErrS010 ErrorCode = "S010" // OVF/CCF definition
	ErrS011 ErrorCode = "S011" // statement too large for the bytecode

	// Runtime
	ErrR001 ErrorCode = "R001" // symbol read failure or missing record
	ErrR002 ErrorCode = "R002" // label failure during execution
	ErrR003 ErrorCode = "R003" // interpretation interrupted

	// Internal invariants
	ErrB001 ErrorCode = "B001"

	// Symbol dictionary I/O
	ErrI001 ErrorCode = "I001"
)

// Kind returns the family of the error code.
func (c ErrorCode) Kind() Kind {
	if c == "" {
		return BugError
	}
	switch c[0] {
	case 'L':
		return LexError
	case 'P':
		return SyntaxError
	case 'S':
		return SemanticError
	case 'R':
		return RuntimeError
	case 'I':
		return IoError
	}
	return BugError
}

// DiagnosticError is a single located error.
type DiagnosticError struct {
	Code     ErrorCode
	Token    token.Token
	File     string
	Message  string
	Expected []string // expected-token set for syntax errors
	Context  string   // last keyword seen before the failure
	Cause    error    // wrapped error, if any
}

// NewError creates a diagnostic located at tok.
func NewError(code ErrorCode, tok token.Token, format string, args ...interface{}) *DiagnosticError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{Code: code, Token: tok, Message: msg}
}

// Interrupted reports a cancelled interpretation. The context error stays
// reachable through errors.Is.
func Interrupted(tok token.Token, cause error) *DiagnosticError {
	d := NewError(ErrR003, tok, "interpretation interrupted: %v", cause)
	d.Cause = cause
	return d
}

// Bug creates a BugError for a violated internal invariant.
func Bug(format string, args ...interface{}) *DiagnosticError {
	return NewError(ErrB001, token.Token{}, format, args...)
}

// WithExpected attaches the expected-token set.
func (e *DiagnosticError) WithExpected(expected ...string) *DiagnosticError {
	e.Expected = append(e.Expected, expected...)
	return e
}

func (e *DiagnosticError) Unwrap() error {
	return e.Cause
}

func (e *DiagnosticError) Kind() Kind {
	return e.Code.Kind()
}

func (e *DiagnosticError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(":")
	}
	if e.Token.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d: ", e.Token.Line, e.Token.Column)
	} else if e.File != "" {
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "%s [%s]: %s", e.Kind(), e.Code, e.Message)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&sb, " (expected %s)", strings.Join(e.Expected, ", "))
	}
	return sb.String()
}

// ErrorList accumulates errors for the phases that report everything at
// once (label existence check, root inference).
type ErrorList []*DiagnosticError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors:\n%s", len(l), strings.Join(msgs, "\n"))
}

// Err returns nil for an empty list, the list otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Flatten turns any error into diagnostics. Non-diagnostic errors become
// BugErrors carrying the message.
func Flatten(err error) []*DiagnosticError {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	var d *DiagnosticError
	if errors.As(err, &d) {
		return []*DiagnosticError{d}
	}
	return []*DiagnosticError{Bug("%s", err.Error())}
}

// IsKind reports whether err carries a diagnostic of kind k.
func IsKind(err error, k Kind) bool {
	for _, d := range Flatten(err) {
		if d.Kind() == k {
			return true
		}
	}
	return false
}
