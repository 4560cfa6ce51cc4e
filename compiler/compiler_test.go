package compiler

import (
	"strings"
	"testing"

	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/emit"
	"github.com/albanread/FasterBASICT/ir"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/store"
)

func compile(t *testing.T, src string) *Result {
	t.Helper()
	return New(registry.NewDefaultTable()).Compile("test.bas", src)
}

func TestCompile_HelloWorld(t *testing.T) {
	res := compile(t, "10 PRINT \"HELLO\"\n20 END\n")
	if !res.OK() {
		t.Fatalf("compile failed: %v", res.Diagnostics)
	}
	ops := []ir.Opcode{}
	for _, in := range res.IR.Instructions {
		ops = append(ops, in.Op)
	}
	want := []ir.Opcode{ir.PUSH_STRING, ir.PRINT, ir.PRINT_NEWLINE, ir.END, ir.HALT}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}

func TestCompile_LexErrorsAccumulateAndStopBackHalf(t *testing.T) {
	res := compile(t, "10 PRINT \"unterminated\n20 PRINT @\n30 END\n")
	if res.OK() {
		t.Fatalf("expected failure")
	}
	if res.IR != nil {
		t.Fatalf("IR generated despite front-half errors")
	}
	var lexical int
	for _, d := range res.Diagnostics {
		if d.Stage == diag.Lexical {
			lexical++
		}
	}
	if lexical < 2 {
		t.Fatalf("want both lexical errors reported, got %v", res.Diagnostics)
	}
}

func TestCompile_ParserRecoversAcrossStatements(t *testing.T) {
	// Both bad statements are reported in one pass (spec.md §7).
	res := compile(t, "10 GOTO\n20 FOR = 1 TO 3\n30 END\n")
	var syntax int
	for _, d := range res.Diagnostics {
		if d.Stage == diag.Syntax && d.Severity == diag.Error {
			syntax++
		}
	}
	if syntax < 2 {
		t.Fatalf("want two syntax errors, got %v", res.Diagnostics)
	}
}

func TestCompile_SemanticErrorsReported(t *testing.T) {
	res := compile(t, "10 GOTO 999\n20 END\n")
	if res.OK() {
		t.Fatalf("expected failure")
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Stage == diag.Semantic && d.Code == "UNDEFINED_LINE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
}

func TestCompile_WarningsDoNotFail(t *testing.T) {
	res := compile(t, "10 LET UNUSED = 1\n20 END\n")
	if !res.OK() {
		t.Fatalf("warnings alone must not fail compilation: %v", res.Diagnostics)
	}
	if len(res.Diagnostics.Warnings()) == 0 {
		t.Fatalf("expected an unused-variable warning")
	}
}

func TestCompile_ToScript(t *testing.T) {
	script, res, err := New(registry.NewDefaultTable()).
		CompileToScript("test.bas", "10 PRINT \"HI\"\n", emit.Options{})
	if err != nil || !res.OK() {
		t.Fatalf("err=%v diags=%v", err, res.Diagnostics)
	}
	if !strings.Contains(script, `fb.push("HI")`) {
		t.Fatalf("script missing output:\n%s", script)
	}
}

// Renumbering preserves program semantics: same opcode sequence after
// renormalizing label/line operands (spec.md §8.2).
func TestCompile_RenumberPreservesSemantics(t *testing.T) {
	s := store.New()
	_ = s.Set(5, "FOR I=1 TO 3")
	_ = s.Set(7, "PRINT I")
	_ = s.Set(13, "NEXT I")
	_ = s.Set(21, "END")

	c := New(registry.NewDefaultTable())
	before := c.Compile("a.bas", s.Generate())
	s.Renumber(100, 10)
	after := c.Compile("b.bas", s.Generate())

	if !before.OK() || !after.OK() {
		t.Fatalf("compiles failed: %v / %v", before.Diagnostics, after.Diagnostics)
	}
	if len(before.IR.Instructions) != len(after.IR.Instructions) {
		t.Fatalf("instruction counts differ: %d vs %d",
			len(before.IR.Instructions), len(after.IR.Instructions))
	}
	for i := range before.IR.Instructions {
		if before.IR.Instructions[i].Op != after.IR.Instructions[i].Op {
			t.Fatalf("opcode %d differs: %v vs %v", i,
				before.IR.Instructions[i].Op, after.IR.Instructions[i].Op)
		}
	}
}

func TestCompile_EmptySourceIsHalt(t *testing.T) {
	res := compile(t, "")
	if !res.OK() {
		t.Fatalf("empty program must compile: %v", res.Diagnostics)
	}
	if len(res.IR.Instructions) != 1 || res.IR.Instructions[0].Op != ir.HALT {
		t.Fatalf("empty program IR = %v", res.IR.Instructions)
	}
}
