package sema

import (
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/registry"
)

// BindingKind tags what an IDENT(args) site actually refers to.
type BindingKind int

const (
	BindUnknown BindingKind = iota
	BindArray
	BindUserFunction // DEF FN or FUNCTION
	BindSub
	BindRegistry
	BindImplicitArray // no declaration found; implicit unless OPTION EXPLICIT
)

func (k BindingKind) String() string {
	switch k {
	case BindArray:
		return "ARRAY"
	case BindUserFunction:
		return "USER FUNCTION"
	case BindSub:
		return "SUB"
	case BindRegistry:
		return "REGISTRY"
	case BindImplicitArray:
		return "IMPLICIT ARRAY"
	default:
		return "UNKNOWN"
	}
}

// Binding is the resolved identity of one ambiguous IDENT(args) site.
// At most one of Array/Function/Entry is populated, selected by Kind;
// an implicit-array binding populates none of them.
// Both the validator and the IR generator consume the same Binding so
// the two agree by construction (spec.md §9, "Dynamic identifier
// resolution").
type Binding struct {
	Kind     BindingKind
	Type     ast.Type // result type of the site
	Array    *ArraySymbol
	Function *FunctionSymbol
	Entry    registry.Entry
}

// ResolveCall classifies an IDENT(args) site against the symbol table
// and the command registry, in the precedence order spec.md §4.5 fixes:
// declared array, then user function (DEF FN / FUNCTION / SUB), then
// registry function, then implicit array.
func (a *Analyzer) ResolveCall(expr *ast.ArrayAccessExpr) Binding {
	if arr, ok := a.syms.LookupArray(expr.Normalized); ok {
		return Binding{Kind: BindArray, Type: arr.Type, Array: arr}
	}
	if fn, ok := a.syms.LookupFunction(bareName(expr.Name)); ok {
		if fn.Kind == FnSub {
			return Binding{Kind: BindSub, Type: ast.Void, Function: fn}
		}
		return Binding{Kind: BindUserFunction, Type: fn.ReturnType, Function: fn}
	}
	if entry, ok := a.reg.Lookup(expr.Name); ok {
		return Binding{Kind: BindRegistry, Type: entry.ReturnType, Entry: entry}
	}
	typ := ast.TypeFromSigil(sigilOf(expr.Name), a.syms.UnicodeMode)
	return Binding{Kind: BindImplicitArray, Type: typ}
}

// bareName strips a trailing sigil from a user-facing identifier
// spelling and uppercases it.
func bareName(name string) string {
	if n := len(name); n > 0 {
		switch name[n-1] {
		case '%', '#', '!', '$', '&':
			name = name[:n-1]
		}
	}
	return strings.ToUpper(name)
}

// sigilOf returns the trailing sigil of a user-facing spelling, or 0.
func sigilOf(name string) byte {
	if n := len(name); n > 0 {
		switch name[n-1] {
		case '%', '#', '!', '$', '&':
			return name[n-1]
		}
	}
	return 0
}
