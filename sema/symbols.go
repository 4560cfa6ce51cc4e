// Package sema implements the two-pass semantic analyzer (spec.md §4.5):
// declaration collection, type inference, control-flow balance checks,
// compile-time constant folding, and DATA segment staging. The shape of
// the symbol table and the pass structure are grounded on
// original_source/src/fasterbasic_semantic.{h,cpp}, re-expressed with
// explicit context values instead of the original's global registries.
package sema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/constants"
	"github.com/albanread/FasterBASICT/token"
)

// firstLabelID is where label ids start. Ids count up from here without
// skipping line numbers in use, and line numbers run to 65535, so in a
// program with lines numbered 10000 or above a label id can equal a
// line number.
const firstLabelID = 10000

// VariableSymbol describes one scalar variable.
type VariableSymbol struct {
	Name     string // normalized lookup key
	Type     ast.Type
	Declared bool // assigned-to (or a FOR/READ/INPUT target) before use
	Used     bool
	FirstUse token.Location
}

// ArraySymbol describes one DIM-declared (or implicitly referenced)
// array. Dimensions holds the per-axis slot counts after the +1
// inclusive-upper-bound adjustment (spec.md §4.5 pass 1).
type ArraySymbol struct {
	Name        string
	Type        ast.Type
	Dimensions  []int
	TotalSize   int
	Declaration token.Location
}

// FuncKind distinguishes the three callable declaration forms.
type FuncKind int

const (
	FnDefFn FuncKind = iota
	FnFunction
	FnSub
)

func (k FuncKind) String() string {
	switch k {
	case FnDefFn:
		return "DEF FN"
	case FnFunction:
		return "FUNCTION"
	default:
		return "SUB"
	}
}

// FunctionSymbol covers DEF FN, FUNCTION, and SUB declarations. For a
// DEF FN, ExprBody is the single-expression body the IR generator
// inlines at each call site; for FUNCTION/SUB, Body is the statement
// list. Both borrow AST nodes owned by the Program.
type FunctionSymbol struct {
	Name       string // canonical uppercase
	Kind       FuncKind
	Params     []ast.Param
	ReturnType ast.Type // ast.Void for a SUB
	ExprBody   ast.Expression
	Body       []ast.Statement
	Definition token.Location
}

// LineNumberSymbol records one BASIC line number and every site that
// references it.
type LineNumberSymbol struct {
	Number       int
	ProgramIndex int // index into Program.Lines
	References   []token.Location
}

// LabelSymbol records one :label jump target. ID is unique among labels
// and ≥ 10000; it is not kept apart from line numbers (see firstLabelID).
type LabelSymbol struct {
	Name         string
	ID           int
	ProgramIndex int
	Definition   token.Location
	References   []token.Location
}

// ConstantSymbol binds a CONSTANT name to its folded value and its index
// in the constants manager.
type ConstantSymbol struct {
	Name  string
	Value constants.Value
	Index int
}

// DataSegment is the flat, append-only value store collected from DATA
// statements in source order, with line- and label-keyed restore points
// (spec.md §3.5).
type DataSegment struct {
	Values             []string
	LineRestorePoints  map[int]int
	LabelRestorePoints map[string]int
}

// SymbolTable is the complete pass-1/pass-2 output consumed by the CFG
// builder and the IR generator.
type SymbolTable struct {
	Variables   map[string]*VariableSymbol
	Arrays      map[string]*ArraySymbol
	Functions   map[string]*FunctionSymbol
	LineNumbers map[int]*LineNumberSymbol
	Labels      map[string]*LabelSymbol
	Constants   map[string]*ConstantSymbol
	Data        DataSegment

	nextLabelID int

	// Compilation flags copied out of CompilerOptions plus the derived
	// events_used flag (spec.md §3.5).
	ArrayBase        int
	UnicodeMode      bool
	ErrorTracking    bool
	CancellableLoops bool
	EventsUsed       bool
}

// NewSymbolTable returns an empty table with the label-id counter primed.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Variables:   make(map[string]*VariableSymbol),
		Arrays:      make(map[string]*ArraySymbol),
		Functions:   make(map[string]*FunctionSymbol),
		LineNumbers: make(map[int]*LineNumberSymbol),
		Labels:      make(map[string]*LabelSymbol),
		Constants:   make(map[string]*ConstantSymbol),
		Data: DataSegment{
			LineRestorePoints:  make(map[int]int),
			LabelRestorePoints: make(map[string]int),
		},
		nextLabelID: firstLabelID,
	}
}

// DeclareLabel registers name at programIndex, minting a fresh id.
// Returns nil if the label already exists (the caller reports the
// duplicate).
func (st *SymbolTable) DeclareLabel(name string, programIndex int, loc token.Location) *LabelSymbol {
	if _, ok := st.Labels[name]; ok {
		return nil
	}
	sym := &LabelSymbol{
		Name:         name,
		ID:           st.nextLabelID,
		ProgramIndex: programIndex,
		Definition:   loc,
	}
	st.nextLabelID++
	st.Labels[name] = sym
	return sym
}

// LookupVariable returns the variable symbol for the normalized name.
func (st *SymbolTable) LookupVariable(normalized string) (*VariableSymbol, bool) {
	v, ok := st.Variables[normalized]
	return v, ok
}

// LookupArray returns the array symbol for the normalized name.
func (st *SymbolTable) LookupArray(normalized string) (*ArraySymbol, bool) {
	a, ok := st.Arrays[normalized]
	return a, ok
}

// LookupFunction returns the function symbol for the canonical name.
func (st *SymbolTable) LookupFunction(name string) (*FunctionSymbol, bool) {
	f, ok := st.Functions[strings.ToUpper(name)]
	return f, ok
}

// LookupLine returns the line-number symbol for n.
func (st *SymbolTable) LookupLine(n int) (*LineNumberSymbol, bool) {
	l, ok := st.LineNumbers[n]
	return l, ok
}

// LookupLabel returns the label symbol for the uppercase name.
func (st *SymbolTable) LookupLabel(name string) (*LabelSymbol, bool) {
	l, ok := st.Labels[strings.ToUpper(name)]
	return l, ok
}

// LookupConstant returns the constant symbol for the uppercase name.
func (st *SymbolTable) LookupConstant(name string) (*ConstantSymbol, bool) {
	c, ok := st.Constants[strings.ToUpper(name)]
	return c, ok
}

// NextLineAtOrAfter returns the smallest existing line number ≥ n and
// true, or 0 and false if every line is below n. Backs the
// "GOTO into a gap" resolution rule (spec.md §8.3).
func (st *SymbolTable) NextLineAtOrAfter(n int) (int, bool) {
	best := 0
	found := false
	for num := range st.LineNumbers {
		if num >= n && (!found || num < best) {
			best = num
			found = true
		}
	}
	return best, found
}

// String renders the table for the interactive environment's symbol
// browser, mirroring the original SymbolTable::toString layout.
func (st *SymbolTable) String() string {
	var b strings.Builder
	b.WriteString("=== Symbol Table ===\n")

	writeSection := func(title string, names []string, f func(string)) {
		if len(names) == 0 {
			return
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%s:\n", title)
		for _, n := range names {
			f(n)
		}
	}

	var varNames []string
	for n := range st.Variables {
		varNames = append(varNames, n)
	}
	writeSection("Variables", varNames, func(n string) {
		v := st.Variables[n]
		fmt.Fprintf(&b, "  %s : %s", v.Name, v.Type)
		if !v.Declared {
			b.WriteString(" [implicit]")
		}
		if !v.Used {
			b.WriteString(" [unused]")
		}
		b.WriteString("\n")
	})

	var arrNames []string
	for n := range st.Arrays {
		arrNames = append(arrNames, n)
	}
	writeSection("Arrays", arrNames, func(n string) {
		a := st.Arrays[n]
		dims := make([]string, len(a.Dimensions))
		for i, d := range a.Dimensions {
			dims[i] = fmt.Sprint(d)
		}
		fmt.Fprintf(&b, "  %s(%s) : %s [%d elements]\n", a.Name, strings.Join(dims, ", "), a.Type, a.TotalSize)
	})

	var fnNames []string
	for n := range st.Functions {
		fnNames = append(fnNames, n)
	}
	writeSection("Functions", fnNames, func(n string) {
		f := st.Functions[n]
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Name
		}
		fmt.Fprintf(&b, "  %s %s(%s) : %s\n", f.Kind, f.Name, strings.Join(params, ", "), f.ReturnType)
	})

	var labelNames []string
	for n := range st.Labels {
		labelNames = append(labelNames, n)
	}
	writeSection("Labels", labelNames, func(n string) {
		l := st.Labels[n]
		fmt.Fprintf(&b, "  :%s (id %d, line index %d)\n", l.Name, l.ID, l.ProgramIndex)
	})

	if len(st.Data.Values) > 0 {
		fmt.Fprintf(&b, "DATA: %d values, %d line restore points, %d label restore points\n",
			len(st.Data.Values), len(st.Data.LineRestorePoints), len(st.Data.LabelRestorePoints))
	}
	return b.String()
}
