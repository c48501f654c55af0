package diagnostics

import (
	"fmt"
	"strings"
)

const (
	ansiRed   = "\033[31m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// Render formats a diagnostic for the terminal: the message, the offending
// source line, the last keyword context and a caret under the failing token.
func Render(e *DiagnosticError, source string, color bool) string {
	var sb strings.Builder

	head := e.Error()
	if color {
		head = ansiBold + ansiRed + head + ansiReset
	}
	sb.WriteString(head)
	sb.WriteString("\n")

	line := sourceLine(source, e.Token.Line)
	if line == "" {
		return sb.String()
	}
	if e.Context != "" {
		fmt.Fprintf(&sb, "  while parsing '%s'\n", e.Context)
	}
	fmt.Fprintf(&sb, "%5d | %s\n", e.Token.Line, line)

	col := e.Token.Column
	if col < 1 {
		col = 1
	}
	width := len(e.Token.Lexeme)
	if width < 1 {
		width = 1
	}
	caret := strings.Repeat("^", width)
	if color {
		caret = ansiRed + caret + ansiReset
	}
	fmt.Fprintf(&sb, "      | %s%s\n", strings.Repeat(" ", col-1), caret)
	return sb.String()
}

// RenderAll renders every diagnostic carried by err.
func RenderAll(err error, source string, color bool) string {
	var sb strings.Builder
	for _, d := range Flatten(err) {
		sb.WriteString(Render(d, source, color))
	}
	return sb.String()
}

func sourceLine(source string, n int) string {
	if n < 1 || source == "" {
		return ""
	}
	lines := strings.Split(source, "\n")
	if n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}
