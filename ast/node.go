// Package ast defines the typed, tagged-variant Abstract Syntax Tree
// produced by the parser (spec.md §3.4). Statement and Expression are
// closed sum types: every concrete node implements one interface or the
// other and carries its own source.Location, so diagnostics and IR
// provenance can always point back at BASIC source.
package ast

import "github.com/albanread/FasterBASICT/token"

// Node is implemented by every AST node.
type Node interface {
	Pos() token.Location
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
}

// Target names a jump destination: either a literal BASIC line number
// or a :LABEL name. Exactly one of the two is meaningful, selected by
// IsLabel.
type Target struct {
	Loc     token.Location
	IsLabel bool
	Line    int
	Label   string
}

// Param is one formal parameter of a DEF FN, FUNCTION, or SUB.
type Param struct {
	Loc        token.Location
	Name       string // original, user-facing spelling
	Normalized string // name + type suffix, e.g. "X_STRING"
	Type       Type
}
