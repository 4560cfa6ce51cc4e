// Package diag defines the diagnostic type shared by every compiler
// stage (spec.md §6.6) and renders caret-pointing source snippets for
// them, grounded on the teacher's errors.go (WrapErrorWithSource /
// prettyErrorStringLabeled), generalized to every stage instead of only
// lexer/parser/runtime errors.
package diag

import (
	"fmt"
	"strings"

	"github.com/albanread/FasterBASICT/token"
)

// Severity classifies a Diagnostic as a hard error or a warning.
// Warning-class diagnostics (spec.md §7) never fail compilation.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "WARNING"
	}
	return "ERROR"
}

// Stage names which pipeline phase produced a Diagnostic.
type Stage int

const (
	Lexical Stage = iota
	Syntax
	Semantic
	ControlFlow
)

func (s Stage) String() string {
	switch s {
	case Lexical:
		return "LEXICAL"
	case Syntax:
		return "SYNTAX"
	case Semantic:
		return "SEMANTIC"
	case ControlFlow:
		return "CFG"
	default:
		return "UNKNOWN"
	}
}

// Code is a short, stable machine-readable diagnostic identifier, e.g.
// "UNDEFINED_LINE", "CONTROL_FLOW_MISMATCH", "ARRAY_NOT_DECLARED".
type Code string

// Diagnostic is the discriminated result element from spec.md §6.6:
// { severity, stage, code, message, location }.
type Diagnostic struct {
	Severity Severity
	Stage    Stage
	Code     Code
	Message  string
	Loc      token.Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s] %s at %s: %s", d.Severity, d.Stage, d.Code, d.Loc, d.Message)
}

// List is an accumulator of diagnostics. Every stage accumulates into
// one of these rather than failing fast (spec.md §7's "accumulated with
// recovery" propagation policy).
type List []Diagnostic

// Add appends a Diagnostic built from the given fields.
func (l *List) Add(sev Severity, stage Stage, code Code, loc token.Location, format string, args ...interface{}) {
	*l = append(*l, Diagnostic{
		Severity: sev,
		Stage:    stage,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Loc:      loc,
	})
}

// HasErrors reports whether any Error-severity diagnostic is present.
// Warnings alone do not fail a stage (spec.md §7).
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the Error-severity diagnostics, preserving order.
func (l List) Errors() List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the Warning-severity diagnostics, preserving order.
func (l List) Warnings() List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// Render formats one Diagnostic as a header line plus a caret-annotated
// snippet of src, showing up to one line of context before and after.
// Mirrors the teacher's prettyErrorStringLabeled but is stage-agnostic:
// any Diagnostic from any stage renders the same way.
func Render(src string, d Diagnostic) string {
	lines := strings.Split(src, "\n")
	line := d.Loc.Line
	col := d.Loc.Column
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := ""
	if line-1 >= 0 && line-1 < len(lines) {
		lineTxt = lines[line-1]
	}

	var b strings.Builder
	header := fmt.Sprintf("%s %s", d.Stage, d.Severity)
	if d.Loc.File != "" {
		fmt.Fprintf(&b, "%s %s in %s at %d:%d: %s\n\n", header, d.Code, d.Loc.File, line, col, d.Message)
	} else {
		fmt.Fprintf(&b, "%s %s at %d:%d: %s\n\n", header, d.Code, line, col, d.Message)
	}
	if line > 1 && line-2 < len(lines) {
		fmt.Fprintf(&b, "%5d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%5d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "      | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%5d | %s\n", line+1, lines[line])
	}
	return b.String()
}

// RenderAll renders every Diagnostic in l against src, one after another.
func RenderAll(src string, l List) string {
	var b strings.Builder
	for i, d := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(Render(src, d))
	}
	return b.String()
}
