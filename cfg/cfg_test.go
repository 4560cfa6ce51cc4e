package cfg

import (
	"testing"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/parser"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/sema"
)

// build parses and analyzes src, then constructs its CFG.
func build(t *testing.T, src string) (*Graph, *sema.SymbolTable) {
	t.Helper()
	prog, lexErrs, parseErrs := parser.ParseString("test.bas", src)
	if len(lexErrs) != 0 || len(parseErrs) != 0 {
		t.Fatalf("parse failed: %v %v", lexErrs, parseErrs)
	}
	a := sema.New(registry.NewDefaultTable())
	if !a.Analyze(prog) {
		t.Fatalf("semantic errors: %v", a.Diagnostics())
	}
	b := NewBuilder(a.Symbols())
	g := b.Build(prog)
	if b.Diagnostics().HasErrors() {
		t.Fatalf("cfg errors: %v", b.Diagnostics())
	}
	return g, a.Symbols()
}

func TestCFG_StraightLineIsOneBlock(t *testing.T) {
	g, _ := build(t, "10 LET X = 1\n20 LET Y = 2\n30 PRINT X + Y\n")
	if g.BlockCount() != 1 {
		t.Fatalf("blocks = %d, want 1\n%s", g.BlockCount(), g)
	}
	if got := len(g.Blocks[0].Statements); got != 3 {
		t.Fatalf("statements in block = %d, want 3", got)
	}
}

func TestCFG_GotoEndsBlockAndTargetLeadsBlock(t *testing.T) {
	g, _ := build(t, "10 PRINT 1\n20 GOTO 40\n30 PRINT 2\n40 PRINT 3\n")
	// Blocks: {10,20}, {30}, {40}.
	if g.BlockCount() != 3 {
		t.Fatalf("blocks = %d, want 3\n%s", g.BlockCount(), g)
	}
	if g.BlockForLine(40) != 2 {
		t.Fatalf("BlockForLine(40) = %d, want 2", g.BlockForLine(40))
	}
	var found bool
	for _, e := range g.Edges {
		if e.From == 0 && e.To == 2 && e.Type == Unconditional {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing UNCONDITIONAL edge 0->2; edges = %v", g.Edges)
	}
}

func TestCFG_BlockForLineOrNext(t *testing.T) {
	g, _ := build(t, "10 GOTO 50\n20 PRINT \"x\"\n30 END\n100 PRINT \"y\"\n")
	id := g.BlockForLineOrNext(50)
	if id < 0 || g.Blocks[id].FirstLine != 100 {
		t.Fatalf("BlockForLineOrNext(50) -> block %d, want the line-100 block\n%s", id, g)
	}
}

func TestCFG_ConditionalGotoEdges(t *testing.T) {
	g, _ := build(t, "10 LET X = 1\n20 IF X > 0 THEN GOTO 50\n30 PRINT \"neg\"\n50 PRINT \"pos\"\n")
	var hasTrue, hasFalse bool
	for _, e := range g.Edges {
		if e.Type == ConditionalTrue {
			hasTrue = true
		}
		if e.Type == ConditionalFalse {
			hasFalse = true
		}
	}
	if !hasTrue || !hasFalse {
		t.Fatalf("want both conditional edges, got %v", g.Edges)
	}
}

func TestCFG_GosubHasCallAndFallthrough(t *testing.T) {
	g, _ := build(t, "10 GOSUB 100\n20 END\n100 PRINT 1\n110 RETURN\n")
	var hasCall, hasFall bool
	for _, e := range g.Edges {
		if e.Type == Call {
			hasCall = true
		}
		if e.Type == Fallthrough && e.From == 0 {
			hasFall = true
		}
	}
	if !hasCall || !hasFall {
		t.Fatalf("GOSUB edges = %v, want CALL plus FALLTHROUGH", g.Edges)
	}
}

func TestCFG_BackEdgeDetection(t *testing.T) {
	g, _ := build(t, "10 LET I = 0\n20 LET I = I + 1\n30 IF I < 3 THEN GOTO 20\n40 END\n")
	if !g.IsBackEdge(30, 20) {
		t.Fatalf("jump 30->20 should be a back edge\n%s", g)
	}
	if g.IsBackEdge(10, 40) {
		t.Fatalf("jump 10->40 should not be a back edge")
	}
}

func TestCFG_LoopStatementsSplitBlocks(t *testing.T) {
	g, _ := build(t, "10 FOR I = 1 TO 3\n20 PRINT I\n30 NEXT I\n40 END\n")
	// FOR ends its block's run; the body and the NEXT land in following
	// blocks so the loop head is addressable.
	if g.BlockCount() < 3 {
		t.Fatalf("blocks = %d, want at least 3\n%s", g.BlockCount(), g)
	}
	if g.BlockForLine(20) < 0 {
		t.Fatalf("loop body line 20 should lead a block\n%s", g)
	}
}

func TestCFG_LabelLeadsBlock(t *testing.T) {
	g, syms := build(t, "10 PRINT 1\n:TOP\n20 PRINT 2\n30 GOTO :TOP\n")
	if _, ok := syms.LookupLabel("TOP"); !ok {
		t.Fatalf("label TOP missing from symbols")
	}
	id := g.BlockForLabel("TOP")
	if id < 0 || g.Blocks[id].FirstLine != 20 {
		t.Fatalf("BlockForLabel(TOP) = %d, want the line-20 block\n%s", id, g)
	}
	if !g.IsBackEdge(30, 20) {
		t.Fatalf("GOTO :TOP from line 30 should be a back edge")
	}
}

func TestCFG_EveryStatementBelongsToExactlyOneBlock(t *testing.T) {
	g, _ := build(t, "10 PRINT 1\n20 GOSUB 50\n30 PRINT 2\n40 END\n50 PRINT 3\n60 RETURN\n")
	seen := make(map[ast.Statement]int)
	total := 0
	for _, blk := range g.Blocks {
		for _, s := range blk.Statements {
			seen[s]++
			total++
		}
	}
	for s, n := range seen {
		if n != 1 {
			t.Fatalf("statement %T appears in %d blocks", s, n)
		}
	}
	if total != 6 {
		t.Fatalf("total statements across blocks = %d, want 6", total)
	}
}
