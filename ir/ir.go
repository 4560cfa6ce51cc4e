// Package ir defines the linear, stack-oriented intermediate
// representation (spec.md §3.7) and the generator that lowers a CFG to
// it (spec.md §4.7). Instruction shape and opcode vocabulary are
// grounded on original_source/src/fasterbasic_ircode.cpp; the operand
// model is the closed tagged variant the REDESIGN FLAGS in spec.md §9
// call for instead of the original's loosely-typed variant.
package ir

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Opcode enumerates every IR instruction kind.
type Opcode int

const (
	// Stack
	PUSH_INT Opcode = iota
	PUSH_FLOAT
	PUSH_DOUBLE
	PUSH_STRING
	POP
	DUP

	// Arithmetic
	ADD
	SUB
	MUL
	DIV
	IDIV
	MOD
	POW
	NEG

	// Comparison
	EQ
	NE
	LT
	LE
	GT
	GE

	// Logical / bitwise
	AND
	OR
	XOR
	NOT

	// Variables and arrays
	LOAD_VAR
	STORE_VAR
	LOAD_CONST
	LOAD_ARRAY
	STORE_ARRAY
	DIM_ARRAY
	MID_ASSIGN

	// Control flow
	LABEL
	JUMP
	JUMP_IF_TRUE
	JUMP_IF_FALSE
	IF_START
	ELSEIF_START
	ELSE_START
	IF_END
	FOR_INIT
	FOR_NEXT
	FOR_IN_INIT
	WHILE_START
	WHILE_END
	REPEAT_START
	REPEAT_END
	DO_START
	DO_WHILE_START
	DO_UNTIL_START
	DO_LOOP_END
	DO_LOOP_WHILE
	DO_LOOP_UNTIL
	EXIT_FOR
	EXIT_DO
	EXIT_WHILE
	EXIT_REPEAT
	EXIT_FUNCTION
	EXIT_SUB
	ON_GOTO
	ON_GOSUB
	ON_CALL
	ON_EVENT

	// Callables
	CALL_BUILTIN
	CALL_FUNCTION
	CALL_SUB
	CALL_GOSUB
	RETURN_VALUE
	RETURN_GOSUB
	DEFINE_FUNCTION
	DEFINE_SUB
	END_FUNCTION
	END_SUB

	// I/O
	PRINT
	PRINT_NEWLINE
	PRINT_TAB
	PRINT_USING
	CONSOLE
	PRINT_AT
	INPUT_PROMPT
	INPUT
	READ_DATA
	RESTORE
	OPEN_FILE
	CLOSE_FILE
	CLOSE_FILE_ALL
	PRINT_FILE
	PRINT_FILE_NEWLINE
	INPUT_FILE
	LINE_INPUT_FILE

	// Strings
	STR_CONCAT
	UNICODE_CONCAT
	STR_LEFT
	STR_RIGHT
	STR_MID

	// Conversion
	TO_INT
	TO_DOUBLE
	TO_STRING

	// Terminal
	HALT
	END
	NOP
)

var opcodeNames = map[Opcode]string{
	PUSH_INT: "PUSH_INT", PUSH_FLOAT: "PUSH_FLOAT", PUSH_DOUBLE: "PUSH_DOUBLE",
	PUSH_STRING: "PUSH_STRING", POP: "POP", DUP: "DUP",
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", IDIV: "IDIV",
	MOD: "MOD", POW: "POW", NEG: "NEG",
	EQ: "EQ", NE: "NE", LT: "LT", LE: "LE", GT: "GT", GE: "GE",
	AND: "AND", OR: "OR", XOR: "XOR", NOT: "NOT",
	LOAD_VAR: "LOAD_VAR", STORE_VAR: "STORE_VAR", LOAD_CONST: "LOAD_CONST",
	LOAD_ARRAY: "LOAD_ARRAY", STORE_ARRAY: "STORE_ARRAY", DIM_ARRAY: "DIM_ARRAY",
	MID_ASSIGN: "MID_ASSIGN",
	LABEL:      "LABEL", JUMP: "JUMP", JUMP_IF_TRUE: "JUMP_IF_TRUE", JUMP_IF_FALSE: "JUMP_IF_FALSE",
	IF_START: "IF_START", ELSEIF_START: "ELSEIF_START", ELSE_START: "ELSE_START", IF_END: "IF_END",
	FOR_INIT: "FOR_INIT", FOR_NEXT: "FOR_NEXT", FOR_IN_INIT: "FOR_IN_INIT",
	WHILE_START: "WHILE_START", WHILE_END: "WHILE_END",
	REPEAT_START: "REPEAT_START", REPEAT_END: "REPEAT_END",
	DO_START: "DO_START", DO_WHILE_START: "DO_WHILE_START", DO_UNTIL_START: "DO_UNTIL_START",
	DO_LOOP_END: "DO_LOOP_END", DO_LOOP_WHILE: "DO_LOOP_WHILE", DO_LOOP_UNTIL: "DO_LOOP_UNTIL",
	EXIT_FOR: "EXIT_FOR", EXIT_DO: "EXIT_DO", EXIT_WHILE: "EXIT_WHILE",
	EXIT_REPEAT: "EXIT_REPEAT", EXIT_FUNCTION: "EXIT_FUNCTION", EXIT_SUB: "EXIT_SUB",
	ON_GOTO: "ON_GOTO", ON_GOSUB: "ON_GOSUB", ON_CALL: "ON_CALL", ON_EVENT: "ON_EVENT",
	CALL_BUILTIN: "CALL_BUILTIN", CALL_FUNCTION: "CALL_FUNCTION", CALL_SUB: "CALL_SUB",
	CALL_GOSUB: "CALL_GOSUB", RETURN_VALUE: "RETURN_VALUE", RETURN_GOSUB: "RETURN_GOSUB",
	DEFINE_FUNCTION: "DEFINE_FUNCTION", DEFINE_SUB: "DEFINE_SUB",
	END_FUNCTION: "END_FUNCTION", END_SUB: "END_SUB",
	PRINT: "PRINT", PRINT_NEWLINE: "PRINT_NEWLINE", PRINT_TAB: "PRINT_TAB",
	PRINT_USING: "PRINT_USING", CONSOLE: "CONSOLE", PRINT_AT: "PRINT_AT",
	INPUT_PROMPT: "INPUT_PROMPT", INPUT: "INPUT", READ_DATA: "READ_DATA", RESTORE: "RESTORE",
	OPEN_FILE: "OPEN_FILE", CLOSE_FILE: "CLOSE_FILE", CLOSE_FILE_ALL: "CLOSE_FILE_ALL",
	PRINT_FILE: "PRINT_FILE", PRINT_FILE_NEWLINE: "PRINT_FILE_NEWLINE",
	INPUT_FILE: "INPUT_FILE", LINE_INPUT_FILE: "LINE_INPUT_FILE",
	STR_CONCAT: "STR_CONCAT", UNICODE_CONCAT: "UNICODE_CONCAT",
	STR_LEFT: "STR_LEFT", STR_RIGHT: "STR_RIGHT", STR_MID: "STR_MID",
	TO_INT: "TO_INT", TO_DOUBLE: "TO_DOUBLE", TO_STRING: "TO_STRING",
	HALT: "HALT", END: "END", NOP: "NOP",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", int(op))
}

// operandKind selects which Operand payload is live.
type operandKind int

const (
	opNone operandKind = iota
	opInt
	opFloat
	opSym
	opLabel
)

// Operand is a closed tagged variant: Int(i64) | Float(f64) | Sym(string)
// | LabelID (spec.md §9 REDESIGN FLAGS). The zero value is "absent".
type Operand struct {
	kind operandKind
	i    int64
	f    float64
	s    string
}

func IntOp(v int64) Operand     { return Operand{kind: opInt, i: v} }
func FloatOp(v float64) Operand { return Operand{kind: opFloat, f: v} }
func SymOp(v string) Operand    { return Operand{kind: opSym, s: v} }
func LabelOp(id int) Operand    { return Operand{kind: opLabel, i: int64(id)} }

// IsSet reports whether the operand carries a value.
func (o Operand) IsSet() bool { return o.kind != opNone }

// IsLabel reports whether the operand is a label id.
func (o Operand) IsLabel() bool { return o.kind == opLabel }

// Int returns the integer payload (also valid for label ids).
func (o Operand) Int() int64 { return o.i }

// Float returns the float payload.
func (o Operand) Float() float64 { return o.f }

// Sym returns the symbol payload.
func (o Operand) Sym() string { return o.s }

// Label returns the label-id payload.
func (o Operand) Label() int { return int(o.i) }

func (o Operand) String() string {
	switch o.kind {
	case opInt:
		return strconv.FormatInt(o.i, 10)
	case opFloat:
		return strconv.FormatFloat(o.f, 'g', -1, 64)
	case opSym:
		return strconv.Quote(o.s)
	case opLabel:
		return fmt.Sprintf("L%d", o.i)
	default:
		return ""
	}
}

// Instruction is one IR instruction with up to three operands and full
// source provenance (spec.md §3.7).
type Instruction struct {
	Op       Opcode
	Operands []Operand

	SourceLine int // BASIC line number; 0 when unnumbered
	BlockID    int

	// ArrayElemSuffix carries the element-type sigil for array
	// instructions ("%", "#", "!", "$", "&", or "").
	ArrayElemSuffix string

	// IsLoopJump marks JUMPs along CFG back edges so the runtime can
	// insert cancellation checks (spec.md §5).
	IsLoopJump bool
}

func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	for _, o := range in.Operands {
		b.WriteString(" ")
		b.WriteString(o.String())
	}
	if in.ArrayElemSuffix != "" {
		fmt.Fprintf(&b, " [%s]", in.ArrayElemSuffix)
	}
	if in.IsLoopJump {
		b.WriteString(" <loop>")
	}
	return b.String()
}

// Program is one compilation's IR output: the instruction stream plus
// the label/line address maps, the DATA segment, and the option flags
// copied from the symbol table (spec.md §3.7, §6.5).
//
// Labels are address-map entries, not instructions: a block head binds
// its label to the address of the block's first instruction, so the
// first real instruction of a program sits at address 0 (spec.md §8.4
// scenario 1). The LABEL opcode remains for dump/debug streams.
type Program struct {
	Instructions []Instruction

	Labels        map[int]int // label id -> instruction address
	LineToAddress map[int]int // BASIC line -> instruction address

	DataValues             []string
	DataLineRestorePoints  map[int]int
	DataLabelRestorePoints map[string]int

	ArrayBase        int
	UnicodeMode      bool
	ErrorTracking    bool
	CancellableLoops bool
	EventsUsed       bool

	BlockCount int
	LabelCount int
}

// NewProgram returns an empty Program with its maps allocated.
func NewProgram() *Program {
	return &Program{
		Labels:                 make(map[int]int),
		LineToAddress:          make(map[int]int),
		DataLineRestorePoints:  make(map[int]int),
		DataLabelRestorePoints: make(map[string]int),
	}
}

// Size returns the number of instructions.
func (p *Program) Size() int { return len(p.Instructions) }

// AddressOfLabel returns the address a label id resolves to and whether
// the label exists.
func (p *Program) AddressOfLabel(id int) (int, bool) {
	addr, ok := p.Labels[id]
	return addr, ok
}

// Dump renders the program as readable text (opcode, operands, source
// line, block id), grounded on original_source/src/dump_ir.cpp. Labels
// are interleaved at their bound addresses.
func Dump(w io.Writer, p *Program) {
	labelsAt := make(map[int][]int)
	for id, addr := range p.Labels {
		labelsAt[addr] = append(labelsAt[addr], id)
	}
	for _, ids := range labelsAt {
		sort.Ints(ids)
	}

	fmt.Fprintf(w, "; %d instruction(s), %d label(s), %d block(s)\n",
		len(p.Instructions), len(p.Labels), p.BlockCount)
	if len(p.DataValues) > 0 {
		fmt.Fprintf(w, "; data segment: %d value(s)\n", len(p.DataValues))
	}
	for addr, in := range p.Instructions {
		for _, id := range labelsAt[addr] {
			fmt.Fprintf(w, "L%d:\n", id)
		}
		fmt.Fprintf(w, "%05d  %-40s ; line %d block %d\n", addr, in.String(), in.SourceLine, in.BlockID)
	}
	for _, id := range labelsAt[len(p.Instructions)] {
		fmt.Fprintf(w, "L%d:\n", id)
	}
}

// DumpString returns Dump's output as a string.
func DumpString(p *Program) string {
	var b strings.Builder
	Dump(&b, p)
	return b.String()
}
