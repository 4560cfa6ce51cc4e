package ir

import (
	"strings"
	"testing"

	"github.com/albanread/FasterBASICT/cfg"
	"github.com/albanread/FasterBASICT/parser"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/sema"
)

// lower runs the whole front half of the pipeline over src and returns
// the generated IR program.
func lower(t *testing.T, src string) (*Program, *sema.Analyzer) {
	t.Helper()
	prog, lexErrs, parseErrs := parser.ParseString("test.bas", src)
	if len(lexErrs) != 0 || len(parseErrs) != 0 {
		t.Fatalf("parse failed: %v %v", lexErrs, parseErrs)
	}
	a := sema.New(registry.NewDefaultTable())
	if !a.Analyze(prog) {
		t.Fatalf("semantic errors: %v", a.Diagnostics())
	}
	graph := cfg.NewBuilder(a.Symbols()).Build(prog)
	gen := NewGenerator(a.Symbols(), a.Constants())
	return gen.Generate(graph), a
}

// opcodes strips operands for sequence comparison.
func opcodes(p *Program) []Opcode {
	out := make([]Opcode, len(p.Instructions))
	for i, in := range p.Instructions {
		out[i] = in.Op
	}
	return out
}

func wantOps(t *testing.T, p *Program, want ...Opcode) {
	t.Helper()
	got := opcodes(p)
	if len(got) != len(want) {
		t.Fatalf("\nwant %v\ngot  %v\n%s", want, got, DumpString(p))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("\ninstruction %d: want %v, got %v\n%s", i, want[i], got[i], DumpString(p))
		}
	}
}

func TestGenerate_HelloWorld(t *testing.T) {
	p, _ := lower(t, "10 PRINT \"HELLO\"\n20 END\n")
	wantOps(t, p, PUSH_STRING, PRINT, PRINT_NEWLINE, END, HALT)
	if p.Instructions[0].Operands[0].Sym() != "HELLO" {
		t.Fatalf("operand = %v", p.Instructions[0].Operands[0])
	}
	if p.LineToAddress[10] != 0 {
		t.Fatalf("line_to_address[10] = %d, want 0", p.LineToAddress[10])
	}
	if p.LineToAddress[20] != 3 {
		t.Fatalf("line_to_address[20] = %d, want 3", p.LineToAddress[20])
	}
}

func TestGenerate_EmptyProgramIsHalt(t *testing.T) {
	p, _ := lower(t, "")
	wantOps(t, p, HALT)
}

func TestGenerate_CommentOnlyProgram(t *testing.T) {
	p, _ := lower(t, "10 REM just a comment\n")
	wantOps(t, p, NOP, HALT)
}

func TestGenerate_ForLoop(t *testing.T) {
	p, _ := lower(t, "10 FOR I = 1 TO 3\n20 PRINT I\n30 NEXT I\n")
	wantOps(t, p,
		PUSH_INT, PUSH_INT, PUSH_INT, FOR_INIT,
		LOAD_VAR, PRINT, PRINT_NEWLINE,
		FOR_NEXT, HALT)
	if p.Instructions[3].Operands[0].Sym() != "I" {
		t.Fatalf("FOR_INIT operand = %v", p.Instructions[3].Operands[0])
	}
	if p.Instructions[7].Operands[0].Sym() != "I" {
		t.Fatalf("FOR_NEXT operand = %v", p.Instructions[7].Operands[0])
	}
}

func TestGenerate_GotoIntoGap(t *testing.T) {
	p, _ := lower(t, "10 GOTO 50\n20 PRINT \"x\"\n30 END\n100 PRINT \"y\"\n")
	jump := p.Instructions[0]
	if jump.Op != JUMP {
		t.Fatalf("first instruction = %v, want JUMP", jump.Op)
	}
	addr, ok := p.AddressOfLabel(jump.Operands[0].Label())
	if !ok {
		t.Fatalf("JUMP target label %v unbound", jump.Operands[0])
	}
	if addr != p.LineToAddress[100] {
		t.Fatalf("GOTO 50 resolves to address %d, want line 100's address %d", addr, p.LineToAddress[100])
	}
}

func TestGenerate_ConstantFolding(t *testing.T) {
	p, a := lower(t, "10 CONSTANT K = 2 * PI\n20 PRINT K\n")
	var load *Instruction
	for i := range p.Instructions {
		if p.Instructions[i].Op == LOAD_CONST {
			load = &p.Instructions[i]
		}
	}
	if load == nil {
		t.Fatalf("no LOAD_CONST emitted:\n%s", DumpString(p))
	}
	idx := int(load.Operands[0].Int())
	got := a.Constants().GetAsDouble(idx)
	if got < 6.283185 || got > 6.283186 {
		t.Fatalf("constant pool[%d] = %v, want 2*PI", idx, got)
	}
}

func TestGenerate_StringConcatModes(t *testing.T) {
	p, _ := lower(t, "10 LET A$ = \"a\" + \"b\"\n20 PRINT A$\n")
	found := false
	for _, in := range p.Instructions {
		if in.Op == STR_CONCAT {
			found = true
		}
		if in.Op == UNICODE_CONCAT {
			t.Fatalf("UNICODE_CONCAT without OPTION UNICODE")
		}
	}
	if !found {
		t.Fatalf("no STR_CONCAT:\n%s", DumpString(p))
	}

	p, _ = lower(t, "OPTION UNICODE\n10 LET A$ = \"a\" + \"b\"\n20 PRINT A$\n")
	found = false
	for _, in := range p.Instructions {
		if in.Op == UNICODE_CONCAT {
			found = true
		}
	}
	if !found {
		t.Fatalf("no UNICODE_CONCAT under OPTION UNICODE:\n%s", DumpString(p))
	}
	if in := p.Instructions[2]; in.Op != UNICODE_CONCAT {
		t.Fatalf("expected PUSH,PUSH,UNICODE_CONCAT prefix:\n%s", DumpString(p))
	}
	store := p.Instructions[3]
	if store.Op != STORE_VAR || store.Operands[0].Sym() != "A$" {
		t.Fatalf("expected STORE_VAR \"A$\", got %v", store)
	}
}

func TestGenerate_BackEdgeJumpMarked(t *testing.T) {
	p, _ := lower(t, "10 LET I = 0\n20 LET I = I + 1\n30 GOTO 20\n")
	var backJumps, forwardJumps int
	for _, in := range p.Instructions {
		if in.Op == JUMP {
			if in.IsLoopJump {
				backJumps++
			} else {
				forwardJumps++
			}
		}
	}
	if backJumps != 1 {
		t.Fatalf("back jumps = %d, want 1:\n%s", backJumps, DumpString(p))
	}

	p, _ = lower(t, "10 GOTO 30\n20 PRINT 1\n30 END\n")
	for _, in := range p.Instructions {
		if in.Op == JUMP && in.IsLoopJump {
			t.Fatalf("forward GOTO marked as loop jump:\n%s", DumpString(p))
		}
	}
}

func TestGenerate_IfThenGotoBecomesConditionalJump(t *testing.T) {
	p, _ := lower(t, "10 LET X = 1\n20 IF X > 0 THEN GOTO 40\n30 PRINT \"no\"\n40 END\n")
	var found bool
	for _, in := range p.Instructions {
		if in.Op == JUMP_IF_TRUE {
			found = true
		}
		if in.Op == IF_START {
			t.Fatalf("IF...THEN GOTO lowered structurally:\n%s", DumpString(p))
		}
	}
	if !found {
		t.Fatalf("no JUMP_IF_TRUE:\n%s", DumpString(p))
	}
}

func TestGenerate_StructuredIf(t *testing.T) {
	src := `10 LET X = 1
20 IF X > 0 THEN
30 PRINT "pos"
40 ELSEIF X < 0 THEN
50 PRINT "neg"
60 ELSE
70 PRINT "zero"
80 ENDIF
90 END
`
	p, _ := lower(t, src)
	var seq []Opcode
	for _, in := range p.Instructions {
		switch in.Op {
		case IF_START, ELSEIF_START, ELSE_START, IF_END:
			seq = append(seq, in.Op)
		}
	}
	want := []Opcode{IF_START, ELSEIF_START, ELSE_START, IF_END}
	if len(seq) != len(want) {
		t.Fatalf("structured opcodes = %v, want %v:\n%s", seq, want, DumpString(p))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("structured opcodes = %v, want %v", seq, want)
		}
	}
}

func TestGenerate_CaseLowersToIfChain(t *testing.T) {
	src := `10 LET X = 2
20 CASE X OF
WHEN 1, 2
30 PRINT "low"
WHEN 3
40 PRINT "three"
OTHERWISE
50 PRINT "other"
ENDCASE
60 END
`
	p, _ := lower(t, src)
	var eqs, ors int
	var hasIf, hasElseif, hasElse bool
	for _, in := range p.Instructions {
		switch in.Op {
		case EQ:
			eqs++
		case OR:
			ors++
		case IF_START:
			hasIf = true
		case ELSEIF_START:
			hasElseif = true
		case ELSE_START:
			hasElse = true
		}
	}
	// WHEN 1,2 contributes two EQ plus one OR; WHEN 3 one EQ.
	if eqs != 3 || ors != 1 || !hasIf || !hasElseif || !hasElse {
		t.Fatalf("eqs=%d ors=%d if=%v elseif=%v else=%v:\n%s",
			eqs, ors, hasIf, hasElseif, hasElse, DumpString(p))
	}
}

func TestGenerate_WhileDeferredEvaluation(t *testing.T) {
	p, _ := lower(t, "10 LET I = 0\n20 WHILE I < 3\n30 LET I = I + 1\n40 WEND\n50 END\n")
	var start *Instruction
	for i := range p.Instructions {
		if p.Instructions[i].Op == WHILE_START {
			start = &p.Instructions[i]
		}
	}
	if start == nil {
		t.Fatalf("no WHILE_START:\n%s", DumpString(p))
	}
	op := start.Operands[0]
	if op.IsLabel() {
		t.Fatalf("simple condition should use deferred evaluation, got label %v", op)
	}
	if !strings.Contains(op.Sym(), "var_I") || !strings.Contains(op.Sym(), "<") {
		t.Fatalf("serialized condition = %q", op.Sym())
	}
}

func TestGenerate_WhileFallbackForCalls(t *testing.T) {
	p, _ := lower(t, "10 WHILE RND() < 0.5\n20 PRINT 1\n30 WEND\n40 END\n")
	var start, end *Instruction
	for i := range p.Instructions {
		switch p.Instructions[i].Op {
		case WHILE_START:
			start = &p.Instructions[i]
		case WHILE_END:
			end = &p.Instructions[i]
		}
	}
	if start == nil || end == nil {
		t.Fatalf("missing WHILE opcodes:\n%s", DumpString(p))
	}
	if !start.Operands[0].IsLabel() {
		t.Fatalf("call-bearing condition must fall back to label form, got %v", start.Operands[0])
	}
	if len(end.Operands) == 0 || end.Operands[0].Label() != start.Operands[0].Label() {
		t.Fatalf("WHILE_END label mismatch: start %v end %v", start.Operands, end.Operands)
	}
}

func TestGenerate_WhileFallbackForStringCondition(t *testing.T) {
	p, _ := lower(t, "10 LET A$ = \"x\"\n20 WHILE A$ <> \"\"\n30 LET A$ = \"\"\n40 WEND\n50 END\n")
	for _, in := range p.Instructions {
		if in.Op == WHILE_START && !in.Operands[0].IsLabel() {
			t.Fatalf("string-typed condition must not use deferred evaluation:\n%s", DumpString(p))
		}
	}
}

func TestGenerate_DefFnInlining(t *testing.T) {
	p, _ := lower(t, "10 DEF FN TWICE(X) = X * 2\n20 PRINT TWICE(21)\n")
	var stores, loads []string
	for _, in := range p.Instructions {
		if in.Op == STORE_VAR {
			stores = append(stores, in.Operands[0].Sym())
		}
		if in.Op == LOAD_VAR {
			loads = append(loads, in.Operands[0].Sym())
		}
		if in.Op == CALL_FUNCTION || in.Op == CALL_BUILTIN {
			t.Fatalf("DEF FN must inline, found %v:\n%s", in.Op, DumpString(p))
		}
	}
	wantTemp := "__fn_TWICE_X"
	if len(stores) != 1 || stores[0] != wantTemp {
		t.Fatalf("temp stores = %v, want [%s]", stores, wantTemp)
	}
	if len(loads) != 1 || loads[0] != wantTemp {
		t.Fatalf("temp loads = %v, want [%s]", loads, wantTemp)
	}
}

func TestGenerate_FunctionDefinition(t *testing.T) {
	src := `10 FUNCTION ADDONE(N)
20 RETURN N + 1
30 END FUNCTION
40 PRINT ADDONE(5)
`
	p, _ := lower(t, src)
	var seq []Opcode
	for _, in := range p.Instructions {
		switch in.Op {
		case DEFINE_FUNCTION, END_FUNCTION, CALL_FUNCTION, RETURN_VALUE:
			seq = append(seq, in.Op)
		}
	}
	want := []Opcode{DEFINE_FUNCTION, RETURN_VALUE, END_FUNCTION, CALL_FUNCTION}
	if len(seq) != len(want) {
		t.Fatalf("callable opcodes = %v, want %v:\n%s", seq, want, DumpString(p))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("callable opcodes = %v, want %v", seq, want)
		}
	}
}

func TestGenerate_OnGotoTargetList(t *testing.T) {
	p, _ := lower(t, "10 LET X = 2\n20 ON X GOTO 100, 200\n100 PRINT 1\n200 PRINT 2\n")
	var on *Instruction
	for i := range p.Instructions {
		if p.Instructions[i].Op == ON_GOTO {
			on = &p.Instructions[i]
		}
	}
	if on == nil {
		t.Fatalf("no ON_GOTO:\n%s", DumpString(p))
	}
	parts := strings.Split(on.Operands[0].Sym(), ",")
	if len(parts) != 2 {
		t.Fatalf("ON_GOTO operand = %q, want two comma-separated labels", on.Operands[0].Sym())
	}
}

func TestGenerate_OnEventEncoding(t *testing.T) {
	p, _ := lower(t, "10 ON EVENT KEYPRESSED GOSUB 100\n100 PRINT 1\n110 RETURN\n")
	var on *Instruction
	for i := range p.Instructions {
		if p.Instructions[i].Op == ON_EVENT {
			on = &p.Instructions[i]
		}
	}
	if on == nil {
		t.Fatalf("no ON_EVENT:\n%s", DumpString(p))
	}
	parts := strings.Split(on.Operands[0].Sym(), "|")
	if len(parts) != 4 || parts[0] != "KEYPRESSED" || parts[1] != "gosub" || parts[3] != "true" {
		t.Fatalf("ON_EVENT operand = %q", on.Operands[0].Sym())
	}
}

func TestGenerate_DataSegmentCopied(t *testing.T) {
	p, _ := lower(t, "10 DATA 1, \"two\"\n20 READ A, B$\n30 RESTORE 10\n")
	if len(p.DataValues) != 2 || p.DataValues[0] != "1" || p.DataValues[1] != "two" {
		t.Fatalf("data values = %v", p.DataValues)
	}
	if p.DataLineRestorePoints[10] != 0 {
		t.Fatalf("restore points = %v", p.DataLineRestorePoints)
	}
}

func TestGenerate_DimArraySuffix(t *testing.T) {
	p, _ := lower(t, "10 DIM A$(5)\n20 LET A$(1) = \"x\"\n")
	var dim *Instruction
	for i := range p.Instructions {
		if p.Instructions[i].Op == DIM_ARRAY {
			dim = &p.Instructions[i]
		}
	}
	if dim == nil {
		t.Fatalf("no DIM_ARRAY:\n%s", DumpString(p))
	}
	if dim.ArrayElemSuffix != "$" {
		t.Fatalf("array suffix = %q, want $", dim.ArrayElemSuffix)
	}
}

func TestGenerate_BranchTargetIntegrity(t *testing.T) {
	src := `10 LET I = 0
20 LET I = I + 1
30 IF I < 3 THEN GOTO 20
40 GOSUB 100
50 GOTO 70
70 END
100 PRINT I
110 RETURN
`
	p, _ := lower(t, src)
	for addr, in := range p.Instructions {
		switch in.Op {
		case JUMP, JUMP_IF_TRUE, JUMP_IF_FALSE, CALL_GOSUB:
			if len(in.Operands) == 0 || !in.Operands[0].IsLabel() {
				t.Fatalf("instr %d (%v) has no label operand", addr, in.Op)
			}
			if _, ok := p.AddressOfLabel(in.Operands[0].Label()); !ok {
				t.Fatalf("instr %d (%v) targets unbound label %v", addr, in.Op, in.Operands[0])
			}
		}
	}
}

func TestGenerate_ProvenanceComplete(t *testing.T) {
	src := "10 LET X = 1\n20 IF X > 0 THEN GOTO 40\n30 PRINT X\n40 END\n"
	p, _ := lower(t, src)
	for addr, in := range p.Instructions {
		if in.Op == HALT {
			continue
		}
		if in.SourceLine <= 0 {
			t.Fatalf("instr %d (%v) has no source line", addr, in.Op)
		}
		if in.BlockID < 0 {
			t.Fatalf("instr %d (%v) has no block id", addr, in.Op)
		}
	}
}

func TestGenerate_LoadConstIndicesWithinPool(t *testing.T) {
	p, a := lower(t, "10 CONSTANT A = 1\n20 CONSTANT B = PI\n30 PRINT A + B + TRUE\n")
	for addr, in := range p.Instructions {
		if in.Op == LOAD_CONST {
			idx := int(in.Operands[0].Int())
			if idx < 0 || idx >= a.Constants().Count() {
				t.Fatalf("instr %d LOAD_CONST %d outside pool of %d", addr, idx, a.Constants().Count())
			}
		}
	}
}

func TestDump_RendersLabelsAndProvenance(t *testing.T) {
	p, _ := lower(t, "10 PRINT 1\n20 GOTO 10\n")
	out := DumpString(p)
	if !strings.Contains(out, "JUMP") || !strings.Contains(out, "; line 20") {
		t.Fatalf("dump missing content:\n%s", out)
	}
	if !strings.Contains(out, "L1:") {
		t.Fatalf("dump missing label markers:\n%s", out)
	}
}
