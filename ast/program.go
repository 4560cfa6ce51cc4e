package ast

import "github.com/albanread/FasterBASICT/token"

// Line is one source line of a parsed program: its BASIC line number
// (or, for a line that carries only a label, zero) and the statements
// parsed from it, in source order. A single BASIC line can hold several
// colon-separated statements.
type Line struct {
	Number     int
	Label      string // "" if this line carries no label
	Statements []Statement
	Loc        token.Location
}

// CompilerOptions is the side-output record of every OPTION statement
// seen while parsing, per spec.md §4.2/§6.2. Options take effect for the
// remainder of parsing from the point they appear, but are surfaced here
// as a single snapshot of final state since spec.md treats them as
// program-wide rather than positional.
type CompilerOptions struct {
	Base          int  // OPTION BASE 0 or 1; default 0
	Unicode       bool // OPTION UNICODE
	ErrorHandling bool // OPTION ERROR ON|OFF; default off
	Cancellable   bool // OPTION CANCELLABLE ON|OFF; default off
	Explicit      bool // OPTION EXPLICIT: DIM required before use
}

// DefaultCompilerOptions returns the options in effect before any
// OPTION statement is parsed.
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{Base: 0}
}

// Program is the parser's output: every source line in ascending line
// order, plus the option settings gathered along the way (spec.md §3.3).
type Program struct {
	Lines   []Line
	Options CompilerOptions
}

// LineByNumber returns the Line with the given BASIC line number and
// true, or the zero Line and false if no such line exists.
func (p *Program) LineByNumber(n int) (Line, bool) {
	for _, l := range p.Lines {
		if l.Number == n {
			return l, true
		}
	}
	return Line{}, false
}

// LabelLine returns the Line carrying the given label and true, or the
// zero Line and false if no line carries it.
func (p *Program) LabelLine(label string) (Line, bool) {
	for _, l := range p.Lines {
		if l.Label == label {
			return l, true
		}
	}
	return Line{}, false
}
