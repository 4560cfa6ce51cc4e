// Package cfg builds the control-flow graph from a validated Program
// (spec.md §4.6): basic blocks with single-entry/single-exit statement
// runs, typed edges, and the back-edge test the IR generator uses to
// mark loop jumps.
package cfg

import (
	"fmt"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/sema"
)

// EdgeType tags how control transfers along an edge.
type EdgeType int

const (
	Fallthrough EdgeType = iota
	ConditionalTrue
	ConditionalFalse
	Unconditional // GOTO
	Call          // GOSUB / CALL
	Return
)

func (t EdgeType) String() string {
	switch t {
	case Fallthrough:
		return "FALLTHROUGH"
	case ConditionalTrue:
		return "CONDITIONAL_TRUE"
	case ConditionalFalse:
		return "CONDITIONAL_FALSE"
	case Unconditional:
		return "UNCONDITIONAL"
	case Call:
		return "CALL"
	case Return:
		return "RETURN"
	default:
		return "UNKNOWN"
	}
}

// Edge is one control transfer between two blocks.
type Edge struct {
	From int
	To   int
	Type EdgeType
}

// Block is a maximal run of statements with one entry at the top and
// control transfer only at the bottom. Each statement belongs to
// exactly one block (spec.md §9's resolution of the mid-block-target
// ambiguity: a block is split wherever a jump target lands).
type Block struct {
	ID           int
	FirstLine    int // BASIC line number of the first statement; 0 if unnumbered
	Statements   []ast.Statement
	Lines        []int // line numbers covered, in order, deduplicated
	stmtLines    []int // per-statement source line, parallel to Statements
	Successors   []int
	Predecessors []int
}

// LineOf returns the BASIC line number the i-th statement came from.
func (b *Block) LineOf(i int) int {
	if i < 0 || i >= len(b.stmtLines) {
		return 0
	}
	return b.stmtLines[i]
}

// Graph is the whole CFG for one program.
type Graph struct {
	Blocks []*Block
	Edges  []Edge

	firstLineToBlock map[int]int
	lineToBlock      map[int]int    // every covered line -> owning block
	labelToBlock     map[string]int // label name -> block it leads
}

// BlockForLabel returns the block a label leads, or -1.
func (g *Graph) BlockForLabel(name string) int {
	if id, ok := g.labelToBlock[name]; ok {
		return id
	}
	return -1
}

// BlockCount returns the number of blocks.
func (g *Graph) BlockCount() int { return len(g.Blocks) }

// BlockForLine returns the block whose first line is exactly n, or -1.
func (g *Graph) BlockForLine(n int) int {
	if id, ok := g.firstLineToBlock[n]; ok {
		return id
	}
	return -1
}

// BlockForLineOrNext returns the block with the smallest first line
// ≥ n, or -1 if every numbered block starts below n. This backs the
// "GOTO into a gap" rule (spec.md §4.6, §8.3).
func (g *Graph) BlockForLineOrNext(n int) int {
	if id, ok := g.firstLineToBlock[n]; ok {
		return id
	}
	best := -1
	bestLine := 0
	for line, id := range g.firstLineToBlock {
		if line >= n && (best < 0 || line < bestLine) {
			best = id
			bestLine = line
		}
	}
	return best
}

// blockOfLine returns the block owning line n (the block whose covered
// lines include n), falling back to BlockForLineOrNext.
func (g *Graph) blockOfLine(n int) int {
	if id, ok := g.lineToBlock[n]; ok {
		return id
	}
	return g.BlockForLineOrNext(n)
}

// IsBackEdge reports whether a jump from srcLine to dstLine runs
// against block order: the destination block's id is ≤ the source
// block's (spec.md GLOSSARY, "Back edge").
func (g *Graph) IsBackEdge(srcLine, dstLine int) bool {
	src := g.blockOfLine(srcLine)
	dst := g.blockOfLine(dstLine)
	if src < 0 || dst < 0 {
		return false
	}
	return dst <= src
}

// String renders the graph for debugging: one line per block with its
// line span and successors.
func (g *Graph) String() string {
	var b strings.Builder
	for _, blk := range g.Blocks {
		fmt.Fprintf(&b, "block %d (line %d, %d stmt(s)) ->", blk.ID, blk.FirstLine, len(blk.Statements))
		if len(blk.Successors) == 0 {
			b.WriteString(" <terminal>")
		}
		for _, s := range blk.Successors {
			fmt.Fprintf(&b, " %d", s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stmtEntry is one top-level statement paired with its source line.
type stmtEntry struct {
	stmt ast.Statement
	line int // BASIC line number; 0 if the line is unnumbered
}

// Builder constructs a Graph from a program plus the symbol table the
// semantic analyzer populated (jump-target references drive block
// splitting).
type Builder struct {
	syms  *sema.SymbolTable
	diags diag.List
}

// NewBuilder returns a Builder over the given symbol table.
func NewBuilder(syms *sema.SymbolTable) *Builder {
	return &Builder{syms: syms}
}

// Diagnostics returns any control-flow diagnostics found during Build.
func (b *Builder) Diagnostics() diag.List { return b.diags }

// Build splits prog into basic blocks and wires the edges.
func (b *Builder) Build(prog *ast.Program) *Graph {
	entries, leaders, labelStarts := b.collectEntries(prog)

	g := &Graph{
		firstLineToBlock: make(map[int]int),
		lineToBlock:      make(map[int]int),
		labelToBlock:     make(map[string]int),
	}

	entryBlock := make([]int, len(entries))
	var cur *Block
	for i, e := range entries {
		if cur == nil || leaders[i] {
			cur = &Block{ID: len(g.Blocks), FirstLine: e.line}
			g.Blocks = append(g.Blocks, cur)
			if e.line > 0 {
				if _, taken := g.firstLineToBlock[e.line]; !taken {
					g.firstLineToBlock[e.line] = cur.ID
				}
			}
		}
		entryBlock[i] = cur.ID
		cur.Statements = append(cur.Statements, e.stmt)
		cur.stmtLines = append(cur.stmtLines, e.line)
		if e.line > 0 {
			if len(cur.Lines) == 0 || cur.Lines[len(cur.Lines)-1] != e.line {
				cur.Lines = append(cur.Lines, e.line)
			}
			if _, taken := g.lineToBlock[e.line]; !taken {
				g.lineToBlock[e.line] = cur.ID
			}
		}
		if isBlockTerminator(e.stmt) {
			cur = nil
		}
	}

	for name, idx := range labelStarts {
		if idx >= 0 && idx < len(entryBlock) {
			g.labelToBlock[name] = entryBlock[idx]
		}
	}

	b.wireEdges(g)
	return g
}

// collectEntries flattens the program to top-level statements and marks
// the block leaders per spec.md §4.6: jump-target lines, statements
// after control transfers, and statements after IF or loop constructs.
func (b *Builder) collectEntries(prog *ast.Program) ([]stmtEntry, []bool, map[string]int) {
	var entries []stmtEntry
	lineStarts := make(map[int]int) // entry index of each numbered line's first statement
	labelStarts := make(map[string]int)

	for _, line := range prog.Lines {
		first := true
		for _, s := range line.Statements {
			idx := len(entries)
			if first {
				if line.Number > 0 {
					lineStarts[line.Number] = idx
				}
				if line.Label != "" {
					labelStarts[line.Label] = idx
				}
				first = false
			}
			entries = append(entries, stmtEntry{stmt: s, line: line.Number})
		}
		// A label on an empty line marks the next statement.
		if first && line.Label != "" {
			labelStarts[line.Label] = len(entries)
		}
		if first && line.Number > 0 {
			lineStarts[line.Number] = len(entries)
		}
	}

	leaders := make([]bool, len(entries))
	if len(entries) > 0 {
		leaders[0] = true
	}
	mark := func(idx int) {
		if idx >= 0 && idx < len(entries) {
			leaders[idx] = true
		}
	}

	// Jump-target lines begin blocks; mid-block targets split the block
	// here because the target line's first statement becomes a leader.
	for num, sym := range b.syms.LineNumbers {
		if len(sym.References) > 0 {
			if idx, ok := lineStarts[num]; ok {
				mark(idx)
			}
		}
	}
	// Labels exist to be targeted; every labeled statement leads a block
	// even before any reference is seen (ON EVENT and RESTORE targets
	// resolve late).
	for name := range b.syms.Labels {
		if idx, ok := labelStarts[name]; ok {
			mark(idx)
		}
	}

	// Statements after control transfers and after IF/loop constructs.
	for i, e := range entries {
		if isBlockTerminator(e.stmt) || splitsAfter(e.stmt) {
			mark(i + 1)
		}
	}

	return entries, leaders, labelStarts
}

// isBlockTerminator reports whether control cannot fall past stmt
// implicitly: the block must end here.
func isBlockTerminator(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.GotoStmt, *ast.ReturnStmt, *ast.EndStmt:
		return true
	case *ast.OnGotoStmt:
		return true
	case *ast.IfStmt:
		return ifThenGotoTarget(st) != nil
	}
	return false
}

// splitsAfter reports whether the next statement must begin a new block
// even though control can continue: calls and IF/loop constructs.
func splitsAfter(s ast.Statement) bool {
	switch s.(type) {
	case *ast.GosubStmt, *ast.OnGosubStmt, *ast.OnCallStmt, *ast.CallStmt:
		return true
	case *ast.IfStmt, *ast.CaseStmt:
		return true
	case *ast.ForStmt, *ast.ForInStmt, *ast.NextStmt:
		return true
	case *ast.WhileStmt, *ast.WendStmt:
		return true
	case *ast.RepeatStmt, *ast.UntilStmt:
		return true
	case *ast.DoStmt, *ast.LoopStmt:
		return true
	case *ast.FunctionStmt, *ast.SubStmt:
		return true
	}
	return false
}

// ifThenGotoTarget returns the GOTO target of an "IF ... THEN GOTO n"
// shorthand (single branch whose body is exactly one GotoStmt, no ELSE),
// or nil for a structured IF.
func ifThenGotoTarget(s *ast.IfStmt) *ast.Target {
	if len(s.Branches) != 1 || len(s.Else) != 0 {
		return nil
	}
	if len(s.Branches[0].Body) != 1 {
		return nil
	}
	g, ok := s.Branches[0].Body[0].(*ast.GotoStmt)
	if !ok {
		return nil
	}
	return &g.Target
}

// wireEdges adds the typed edges between blocks based on each block's
// final statement.
func (b *Builder) wireEdges(g *Graph) {
	addEdge := func(from, to int, t EdgeType) {
		if from < 0 || to < 0 {
			return
		}
		g.Edges = append(g.Edges, Edge{From: from, To: to, Type: t})
		g.Blocks[from].Successors = append(g.Blocks[from].Successors, to)
		g.Blocks[to].Predecessors = append(g.Blocks[to].Predecessors, from)
	}

	targetBlock := func(t ast.Target) int {
		if t.IsLabel {
			return g.BlockForLabel(t.Label)
		}
		return g.BlockForLineOrNext(t.Line)
	}

	for _, blk := range g.Blocks {
		if len(blk.Statements) == 0 {
			continue
		}
		next := blk.ID + 1
		if next >= len(g.Blocks) {
			next = -1
		}
		last := blk.Statements[len(blk.Statements)-1]

		switch st := last.(type) {
		case *ast.GotoStmt:
			to := targetBlock(st.Target)
			if to < 0 {
				b.diags.Add(diag.Error, diag.ControlFlow, "UNRESOLVED_JUMP", st.Loc,
					"GOTO target cannot be resolved to a block")
				continue
			}
			addEdge(blk.ID, to, Unconditional)
		case *ast.GosubStmt:
			if to := targetBlock(st.Target); to >= 0 {
				addEdge(blk.ID, to, Call)
			}
			addEdge(blk.ID, next, Fallthrough)
		case *ast.ReturnStmt:
			// Return edges have no static destination; the block simply
			// terminates.
		case *ast.EndStmt:
		case *ast.OnGotoStmt:
			for _, t := range st.Targets {
				if to := targetBlock(t); to >= 0 {
					addEdge(blk.ID, to, Unconditional)
				}
			}
			addEdge(blk.ID, next, Fallthrough)
		case *ast.OnGosubStmt:
			for _, t := range st.Targets {
				if to := targetBlock(t); to >= 0 {
					addEdge(blk.ID, to, Call)
				}
			}
			addEdge(blk.ID, next, Fallthrough)
		case *ast.IfStmt:
			if target := ifThenGotoTarget(st); target != nil {
				if to := targetBlock(*target); to >= 0 {
					addEdge(blk.ID, to, ConditionalTrue)
				}
				addEdge(blk.ID, next, ConditionalFalse)
				continue
			}
			addEdge(blk.ID, next, Fallthrough)
		default:
			addEdge(blk.ID, next, Fallthrough)
		}
	}
}

