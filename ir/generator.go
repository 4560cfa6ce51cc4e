package ir

import (
	"strconv"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/cfg"
	"github.com/albanread/FasterBASICT/constants"
	"github.com/albanread/FasterBASICT/events"
	"github.com/albanread/FasterBASICT/sema"
)

// Generator lowers a CFG to a Program. Block labels are minted from a
// counter distinct from the symbol table's label ids (which start at
// 10000), and a block->label map keeps every reference to the same
// block consistent (spec.md §4.7).
type Generator struct {
	g      *cfg.Graph
	syms   *sema.SymbolTable
	consts *constants.Manager

	code        *Program
	nextLabel   int
	blockLabels map[int]int

	curLine  int
	curBlock int

	// DEF FN inline-expansion state (spec.md §4.7): parameter name ->
	// temporary variable name while a body is being expanded.
	paramMap map[string]string
	inlining bool

	// Non-deferred WHILE loops push their re-evaluation label here so
	// the matching WEND can emit the back-jump target; -1 marks a
	// deferred-evaluation loop.
	whileLabels []int
}

// NewGenerator returns a Generator over the analyzer's outputs. The
// constants manager must stay alive until emission completes
// (spec.md §3.8).
func NewGenerator(syms *sema.SymbolTable, consts *constants.Manager) *Generator {
	return &Generator{
		syms:        syms,
		consts:      consts,
		nextLabel:   1,
		blockLabels: make(map[int]int),
		paramMap:    make(map[string]string),
	}
}

// Generate lowers every block of g in order and returns the finished
// Program, terminated by HALT.
func (gen *Generator) Generate(graph *cfg.Graph) *Program {
	gen.g = graph
	gen.code = NewProgram()
	code := gen.code

	code.BlockCount = graph.BlockCount()
	code.ArrayBase = gen.syms.ArrayBase
	code.UnicodeMode = gen.syms.UnicodeMode
	code.ErrorTracking = gen.syms.ErrorTracking
	code.CancellableLoops = gen.syms.CancellableLoops
	code.EventsUsed = gen.syms.EventsUsed

	code.DataValues = append(code.DataValues, gen.syms.Data.Values...)
	for line, idx := range gen.syms.Data.LineRestorePoints {
		code.DataLineRestorePoints[line] = idx
	}
	for label, idx := range gen.syms.Data.LabelRestorePoints {
		code.DataLabelRestorePoints[label] = idx
	}

	// Mint labels for every block up front so forward jumps resolve.
	for _, blk := range graph.Blocks {
		gen.labelForBlock(blk.ID)
	}

	for _, blk := range graph.Blocks {
		gen.generateBlock(blk)
	}

	// The symbol table's label ids alias their block's label address so
	// GOTO :name and GOSUB :name share the block target.
	for _, sym := range gen.syms.Labels {
		if blockID := graph.BlockForLabel(sym.Name); blockID >= 0 {
			if addr, ok := code.Labels[gen.labelForBlock(blockID)]; ok {
				code.Labels[sym.ID] = addr
			}
		}
	}

	if n := len(code.Instructions); n == 0 || code.Instructions[n-1].Op != HALT {
		gen.emit(HALT)
	}
	code.LabelCount = gen.nextLabel - 1
	return code
}

func (gen *Generator) labelForBlock(blockID int) int {
	if id, ok := gen.blockLabels[blockID]; ok {
		return id
	}
	id := gen.allocLabel()
	gen.blockLabels[blockID] = id
	return id
}

func (gen *Generator) allocLabel() int {
	id := gen.nextLabel
	gen.nextLabel++
	return id
}

// bindLabel records a label id at the current address.
func (gen *Generator) bindLabel(id int) {
	gen.code.Labels[id] = len(gen.code.Instructions)
}

func (gen *Generator) setContext(line, block int) {
	if line > 0 {
		gen.curLine = line
	}
	gen.curBlock = block
}

func (gen *Generator) emit(op Opcode, operands ...Operand) *Instruction {
	gen.code.Instructions = append(gen.code.Instructions, Instruction{
		Op:         op,
		Operands:   operands,
		SourceLine: gen.curLine,
		BlockID:    gen.curBlock,
	})
	return &gen.code.Instructions[len(gen.code.Instructions)-1]
}

func (gen *Generator) generateBlock(blk *cfg.Block) {
	gen.setContext(blk.FirstLine, blk.ID)
	gen.bindLabel(gen.labelForBlock(blk.ID))

	for i, stmt := range blk.Statements {
		line := blk.LineOf(i)
		gen.setContext(line, blk.ID)
		if line > 0 {
			if _, seen := gen.code.LineToAddress[line]; !seen {
				gen.code.LineToAddress[line] = len(gen.code.Instructions)
			}
		}
		gen.generateStatement(stmt, line)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (gen *Generator) generateStatement(s ast.Statement, line int) {
	switch st := s.(type) {
	case *ast.PrintStmt:
		gen.generatePrintItems(st.Items, PRINT)
	case *ast.ConsoleStmt:
		for _, arg := range st.Args {
			gen.generateExpression(arg)
			gen.emit(CONSOLE, IntOp(0))
		}
		gen.emit(PRINT_NEWLINE)
	case *ast.PrintAtStmt:
		gen.generateExpression(st.X)
		gen.generateExpression(st.Y)
		gen.emit(PRINT_AT)
		gen.generatePrintItems(st.Items, PRINT)
	case *ast.InputStmt:
		gen.generateInput(st.Prompt, st.Targets)
	case *ast.InputAtStmt:
		gen.generateExpression(st.X)
		gen.generateExpression(st.Y)
		gen.emit(PRINT_AT)
		gen.generateInput(st.Prompt, st.Targets)
	case *ast.LetStmt:
		gen.generateLet(st)
	case *ast.MidAssignStmt:
		gen.generateMidAssign(st)
	case *ast.IfStmt:
		gen.generateIf(st, line)
	case *ast.CaseStmt:
		gen.generateCase(st, line)
	case *ast.ForStmt:
		gen.generateExpression(st.From)
		gen.generateExpression(st.To)
		if st.Step != nil {
			gen.generateExpression(st.Step)
		} else {
			gen.emit(PUSH_INT, IntOp(1))
		}
		gen.emit(FOR_INIT, SymOp(st.Var.Name))
	case *ast.NextStmt:
		gen.emit(FOR_NEXT, SymOp(st.VarName))
	case *ast.ForInStmt:
		gen.generateExpression(st.Array)
		idx := ""
		if st.Index != nil {
			idx = st.Index.Name
		}
		gen.emit(FOR_IN_INIT, SymOp(st.Var.Name), SymOp(idx))
	case *ast.WhileStmt:
		gen.generateWhile(st)
	case *ast.WendStmt:
		gen.generateWend()
	case *ast.RepeatStmt:
		gen.emit(REPEAT_START)
	case *ast.UntilStmt:
		gen.generateExpression(st.Cond)
		gen.emit(REPEAT_END)
	case *ast.DoStmt:
		switch st.Kind {
		case ast.DoCondWhile:
			gen.generateExpression(st.Cond)
			gen.emit(DO_WHILE_START)
		case ast.DoCondUntil:
			gen.generateExpression(st.Cond)
			gen.emit(DO_UNTIL_START)
		default:
			gen.emit(DO_START)
		}
	case *ast.LoopStmt:
		switch st.Kind {
		case ast.DoCondWhile:
			gen.generateExpression(st.Cond)
			gen.emit(DO_LOOP_WHILE)
		case ast.DoCondUntil:
			gen.generateExpression(st.Cond)
			gen.emit(DO_LOOP_UNTIL)
		default:
			gen.emit(DO_LOOP_END)
		}
	case *ast.ExitStmt:
		gen.generateExit(st)
	case *ast.GotoStmt:
		gen.generateGoto(st, line)
	case *ast.GosubStmt:
		gen.emit(CALL_GOSUB, LabelOp(gen.labelForTarget(st.Target)))
	case *ast.ReturnStmt:
		if st.Value != nil {
			gen.generateExpression(st.Value)
			gen.emit(RETURN_VALUE)
		} else {
			gen.emit(RETURN_GOSUB)
		}
	case *ast.OnGotoStmt:
		gen.generateExpression(st.Selector)
		gen.emit(ON_GOTO, SymOp(gen.targetLabelList(st.Targets)))
	case *ast.OnGosubStmt:
		gen.generateExpression(st.Selector)
		gen.emit(ON_GOSUB, SymOp(gen.targetLabelList(st.Targets)))
	case *ast.OnCallStmt:
		gen.generateExpression(st.Selector)
		gen.emit(ON_CALL, SymOp(strings.Join(st.Functions, ",")))
	case *ast.OnEventStmt:
		gen.generateOnEvent(st)
	case *ast.DimStmt:
		gen.generateDim(st)
	case *ast.DefFnStmt:
		// No code at the definition site: the body is inlined at every
		// call site (spec.md §4.7). The symbol table already holds it.
	case *ast.FunctionStmt:
		gen.generateFunction(st, line)
	case *ast.SubStmt:
		gen.generateSub(st, line)
	case *ast.CallStmt:
		for _, arg := range st.Args {
			gen.generateExpression(arg)
		}
		gen.emit(CALL_SUB, SymOp(strings.ToUpper(st.Name)), IntOp(int64(len(st.Args))))
	case *ast.LabelStmt:
		if sym, ok := gen.syms.LookupLabel(st.Name); ok {
			gen.bindLabel(sym.ID)
		}
	case *ast.DataStmt, *ast.ConstantStmt:
		// Staged at analysis time; no runtime code.
	case *ast.ReadStmt:
		gen.generateReadTargets(st.Targets)
	case *ast.RestoreStmt:
		gen.generateRestore(st)
	case *ast.OpenStmt:
		gen.generateExpression(st.File)
		gen.generateExpression(st.Channel)
		gen.emit(OPEN_FILE, SymOp(st.Mode))
	case *ast.CloseStmt:
		if st.HasChannel {
			gen.generateExpression(st.Channel)
			gen.emit(CLOSE_FILE)
		} else {
			gen.emit(CLOSE_FILE_ALL)
		}
	case *ast.RemStmt:
		gen.emit(NOP)
	case *ast.EndStmt:
		gen.emit(END)
	case *ast.PlayStmt:
		for _, arg := range st.Args {
			gen.generateExpression(arg)
		}
		gen.emit(CALL_BUILTIN, SymOp("PLAY"), IntOp(int64(len(st.Args))))
	case *ast.PlaySoundStmt:
		for _, arg := range st.Args {
			gen.generateExpression(arg)
		}
		gen.emit(CALL_BUILTIN, SymOp("PLAY_SOUND"), IntOp(int64(len(st.Args))))
	case *ast.ExpressionStmt:
		gen.generateCallShaped(st.Call)
	case *ast.SimpleStmt:
		if fn, ok := gen.syms.LookupFunction(st.Name); ok && fn.Kind == sema.FnSub {
			gen.emit(CALL_SUB, SymOp(fn.Name), IntOp(0))
			return
		}
		gen.emit(CALL_BUILTIN, SymOp(strings.ToUpper(st.Name)), IntOp(0))
	}
}

func (gen *Generator) generatePrintItems(items []ast.PrintItem, op Opcode) {
	for i, item := range items {
		gen.generateExpression(item.Value)
		gen.emit(op, IntOp(0))
		if i < len(items)-1 && item.Sep == ast.SepComma {
			gen.emit(PRINT_TAB, IntOp(14))
		}
	}
	if len(items) == 0 || items[len(items)-1].Sep == ast.SepNewline {
		gen.emit(PRINT_NEWLINE)
	}
}

func (gen *Generator) generateInput(prompt ast.Expression, targets []ast.Expression) {
	if prompt != nil {
		if lit, ok := prompt.(*ast.StringExpr); ok {
			gen.emit(INPUT_PROMPT, SymOp(lit.Value))
		} else {
			gen.generateExpression(prompt)
			gen.emit(PRINT, IntOp(0))
		}
	}
	for _, t := range targets {
		switch target := t.(type) {
		case *ast.VariableExpr:
			gen.emit(INPUT, SymOp(target.Name))
		case *ast.ArrayAccessExpr:
			// Read into a scratch scalar, then store into the element.
			gen.emit(INPUT, SymOp("__input_value"))
			for _, idx := range target.Args {
				gen.generateExpression(idx)
			}
			gen.emit(LOAD_VAR, SymOp("__input_value"))
			gen.emitArray(STORE_ARRAY, target)
		}
	}
}

func (gen *Generator) generateReadTargets(targets []ast.Expression) {
	for _, t := range targets {
		switch target := t.(type) {
		case *ast.VariableExpr:
			gen.emit(READ_DATA, SymOp(target.Name))
		case *ast.ArrayAccessExpr:
			gen.emit(READ_DATA, SymOp("__read_value"))
			for _, idx := range target.Args {
				gen.generateExpression(idx)
			}
			gen.emit(LOAD_VAR, SymOp("__read_value"))
			gen.emitArray(STORE_ARRAY, target)
		}
	}
}

func (gen *Generator) generateLet(st *ast.LetStmt) {
	switch target := st.Target.(type) {
	case *ast.VariableExpr:
		gen.generateExpression(st.Value)
		gen.emit(STORE_VAR, SymOp(target.Name))
	case *ast.ArrayAccessExpr:
		for _, idx := range target.Args {
			gen.generateExpression(idx)
		}
		gen.generateExpression(st.Value)
		gen.emitArray(STORE_ARRAY, target)
	}
}

// emitArray emits a LOAD_ARRAY/STORE_ARRAY/DIM_ARRAY instruction with
// the element-type suffix attached.
func (gen *Generator) emitArray(op Opcode, target *ast.ArrayAccessExpr) {
	in := gen.emit(op, SymOp(target.Name), IntOp(int64(len(target.Args))))
	in.ArrayElemSuffix = typeSuffixOf(target.Name)
}

func typeSuffixOf(name string) string {
	if name == "" {
		return ""
	}
	switch name[len(name)-1] {
	case '%', '#', '!', '$', '&':
		return string(name[len(name)-1])
	}
	return ""
}

func (gen *Generator) generateMidAssign(st *ast.MidAssignStmt) {
	varName := ""
	if v, ok := st.Target.(*ast.VariableExpr); ok {
		varName = v.Name
	}
	gen.generateExpression(st.Start)
	if st.Length != nil {
		gen.generateExpression(st.Length)
	} else {
		gen.emit(PUSH_INT, IntOp(-1))
	}
	gen.generateExpression(st.Value)
	gen.emit(MID_ASSIGN, SymOp(varName))
}

// ifThenGotoTarget mirrors the CFG builder's shorthand test: a single
// branch holding exactly one GOTO with no ELSE.
func ifThenGotoTarget(s *ast.IfStmt) (ast.Target, bool) {
	if len(s.Branches) != 1 || len(s.Else) != 0 || len(s.Branches[0].Body) != 1 {
		return ast.Target{}, false
	}
	g, ok := s.Branches[0].Body[0].(*ast.GotoStmt)
	if !ok {
		return ast.Target{}, false
	}
	return g.Target, true
}

func (gen *Generator) generateIf(st *ast.IfStmt, line int) {
	if target, ok := ifThenGotoTarget(st); ok {
		gen.generateExpression(st.Branches[0].Cond)
		in := gen.emit(JUMP_IF_TRUE, LabelOp(gen.labelForTarget(target)))
		in.IsLoopJump = gen.isBackJump(line, target)
		return
	}

	for i, br := range st.Branches {
		gen.generateExpression(br.Cond)
		if i == 0 {
			gen.emit(IF_START)
		} else {
			gen.emit(ELSEIF_START)
		}
		for _, s := range br.Body {
			gen.generateStatement(s, line)
		}
	}
	if len(st.Else) > 0 {
		gen.emit(ELSE_START)
		for _, s := range st.Else {
			gen.generateStatement(s, line)
		}
	}
	gen.emit(IF_END)
}

// generateCase lowers CASE ... WHEN ... OTHERWISE to the IF/ELSEIF/ELSE
// opcode chain; WHEN v1, v2 becomes (expr=v1) OR (expr=v2) (spec.md §4.7).
func (gen *Generator) generateCase(st *ast.CaseStmt, line int) {
	if len(st.Whens) == 0 {
		for _, s := range st.Otherwise {
			gen.generateStatement(s, line)
		}
		return
	}

	emitCondition := func(values []ast.Expression) {
		for i, v := range values {
			gen.generateExpression(st.Subject)
			gen.generateExpression(v)
			gen.emit(EQ)
			if i > 0 {
				gen.emit(OR)
			}
		}
	}

	for i, when := range st.Whens {
		emitCondition(when.Values)
		if i == 0 {
			gen.emit(IF_START)
		} else {
			gen.emit(ELSEIF_START)
		}
		for _, s := range when.Body {
			gen.generateStatement(s, line)
		}
	}
	if len(st.Otherwise) > 0 {
		gen.emit(ELSE_START)
		for _, s := range st.Otherwise {
			gen.generateStatement(s, line)
		}
	}
	gen.emit(IF_END)
}

// generateWhile emits either the deferred-evaluation form (condition
// serialized to target-script text, re-evaluated natively each
// iteration) or the label/re-evaluation fallback (spec.md §4.7).
// Deferred evaluation is only used when the condition contains no
// string-typed operand, per the OPTION UNICODE open-question decision.
func (gen *Generator) generateWhile(st *ast.WhileStmt) {
	if expr := gen.serializeExpression(st.Cond); expr != "" && !gen.hasStringOperand(st.Cond) {
		gen.emit(WHILE_START, SymOp(expr))
		gen.whileLabels = append(gen.whileLabels, -1)
		return
	}
	label := gen.allocLabel()
	gen.bindLabel(label)
	gen.emit(LABEL, LabelOp(label))
	gen.whileLabels = append(gen.whileLabels, label)
	gen.generateExpression(st.Cond)
	gen.emit(WHILE_START, LabelOp(label))
}

func (gen *Generator) generateWend() {
	if len(gen.whileLabels) == 0 {
		// WEND without WHILE was rejected by the analyzer; emit a bare
		// end so a partial dump stays readable.
		gen.emit(WHILE_END)
		return
	}
	label := gen.whileLabels[len(gen.whileLabels)-1]
	gen.whileLabels = gen.whileLabels[:len(gen.whileLabels)-1]
	if label >= 0 {
		gen.emit(WHILE_END, LabelOp(label))
	} else {
		gen.emit(WHILE_END)
	}
}

func (gen *Generator) generateExit(st *ast.ExitStmt) {
	switch st.Kind {
	case ast.ExitFor:
		gen.emit(EXIT_FOR)
	case ast.ExitDo:
		gen.emit(EXIT_DO)
	case ast.ExitWhile:
		gen.emit(EXIT_WHILE)
	case ast.ExitRepeat:
		gen.emit(EXIT_REPEAT)
	case ast.ExitFunction:
		gen.emit(EXIT_FUNCTION)
	case ast.ExitSub:
		gen.emit(EXIT_SUB)
	}
}

func (gen *Generator) generateGoto(st *ast.GotoStmt, line int) {
	in := gen.emit(JUMP, LabelOp(gen.labelForTarget(st.Target)))
	in.IsLoopJump = gen.isBackJump(line, st.Target)
}

// isBackJump asks the CFG whether a jump from srcLine to the target
// runs backwards (spec.md §4.7, "Loop-jump marking").
func (gen *Generator) isBackJump(srcLine int, t ast.Target) bool {
	if srcLine <= 0 {
		return false
	}
	if t.IsLabel {
		sym, ok := gen.syms.LookupLabel(t.Label)
		if !ok {
			return false
		}
		src := gen.g.BlockForLineOrNext(srcLine)
		dst := gen.g.BlockForLabel(sym.Name)
		return src >= 0 && dst >= 0 && dst <= src
	}
	return gen.g.IsBackEdge(srcLine, t.Line)
}

// labelForTarget resolves a jump target to a label id: a label's own
// symbol-table id, or the label of the block at (or next after) a line
// number.
func (gen *Generator) labelForTarget(t ast.Target) int {
	if t.IsLabel {
		if sym, ok := gen.syms.LookupLabel(t.Label); ok {
			return sym.ID
		}
		return gen.allocLabel()
	}
	if blockID := gen.g.BlockForLineOrNext(t.Line); blockID >= 0 {
		return gen.labelForBlock(blockID)
	}
	return gen.allocLabel()
}

func (gen *Generator) targetLabelList(targets []ast.Target) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = strconv.Itoa(gen.labelForTarget(t))
	}
	return strings.Join(parts, ",")
}

// generateOnEvent encodes the handler as "event|kind|target|isLineNum"
// with line-number targets resolved to internal label ids (spec.md §4.7).
func (gen *Generator) generateOnEvent(st *ast.OnEventStmt) {
	var kind, target string
	isLine := false
	switch st.Kind {
	case events.Call:
		kind = "call"
		target = st.Func
	case events.Goto, events.Gosub:
		if st.Kind == events.Goto {
			kind = "goto"
		} else {
			kind = "gosub"
		}
		target = strconv.Itoa(gen.labelForTarget(st.Target))
		isLine = !st.Target.IsLabel
	}
	operand := st.Event + "|" + kind + "|" + target + "|" + strconv.FormatBool(isLine)
	gen.emit(ON_EVENT, SymOp(operand))
}

func (gen *Generator) generateDim(st *ast.DimStmt) {
	for _, spec := range st.Arrays {
		for _, d := range spec.Dimensions {
			gen.generateExpression(d)
		}
		in := gen.emit(DIM_ARRAY, SymOp(spec.Name), IntOp(int64(len(spec.Dimensions))))
		in.ArrayElemSuffix = typeSuffixOf(spec.Name)
	}
}

func (gen *Generator) generateRestore(st *ast.RestoreStmt) {
	if !st.HasTarget {
		gen.emit(RESTORE)
		return
	}
	if st.Target.IsLabel {
		// The DATA manager resolves label restore points at runtime
		// (spec.md §4.5, §9).
		gen.emit(RESTORE, SymOp(st.Target.Label))
		return
	}
	gen.emit(RESTORE, IntOp(int64(st.Target.Line)))
}

func (gen *Generator) generateFunction(st *ast.FunctionStmt, line int) {
	gen.emit(DEFINE_FUNCTION, SymOp(strings.ToUpper(st.Name)))
	gen.emit(PUSH_INT, IntOp(int64(len(st.Params))))
	for _, p := range st.Params {
		gen.emit(PUSH_STRING, SymOp(p.Normalized))
	}
	for _, s := range st.Body {
		gen.generateStatement(s, line)
	}
	gen.emit(END_FUNCTION)
}

func (gen *Generator) generateSub(st *ast.SubStmt, line int) {
	gen.emit(DEFINE_SUB, SymOp(strings.ToUpper(st.Name)))
	gen.emit(PUSH_INT, IntOp(int64(len(st.Params))))
	for _, p := range st.Params {
		gen.emit(PUSH_STRING, SymOp(p.Normalized))
	}
	for _, s := range st.Body {
		gen.generateStatement(s, line)
	}
	gen.emit(END_SUB)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (gen *Generator) generateExpression(e ast.Expression) {
	if e == nil {
		gen.emit(PUSH_INT, IntOp(0))
		return
	}
	switch v := e.(type) {
	case *ast.NumberExpr:
		switch {
		case v.IsInt:
			gen.emit(PUSH_INT, IntOp(v.Int))
		case v.IsDouble:
			gen.emit(PUSH_DOUBLE, FloatOp(v.Float))
		default:
			gen.emit(PUSH_FLOAT, FloatOp(v.Float))
		}
	case *ast.StringExpr:
		gen.emit(PUSH_STRING, SymOp(v.Value))
	case *ast.VariableExpr:
		gen.generateVariable(v)
	case *ast.ArrayAccessExpr:
		gen.generateCallShaped(v)
	case *ast.UnaryExpr:
		gen.generateExpression(v.Operand)
		switch v.Op {
		case "-":
			gen.emit(NEG)
		case "NOT":
			gen.emit(NOT)
		}
	case *ast.BinaryExpr:
		gen.generateBinary(v)
	case *ast.IIFExpr:
		gen.generateExpression(v.Cond)
		gen.generateExpression(v.Then)
		gen.generateExpression(v.Else)
		gen.emit(CALL_BUILTIN, SymOp("__IIF"), IntOp(3))
	case *ast.FunctionCallExpr:
		for _, arg := range v.Args {
			gen.generateExpression(arg)
		}
		gen.emit(CALL_FUNCTION, SymOp(strings.ToUpper(v.Name)), IntOp(int64(len(v.Args))))
	case *ast.RegistryFunctionCallExpr:
		for _, arg := range v.Args {
			gen.generateExpression(arg)
		}
		gen.emit(CALL_BUILTIN, SymOp(strings.ToUpper(v.Name)), IntOp(int64(len(v.Args))))
	}
}

func (gen *Generator) generateVariable(v *ast.VariableExpr) {
	// Constants load by index (spec.md §4.4).
	if sym, ok := gen.syms.LookupConstant(upperBare(v.Name)); ok {
		gen.emit(LOAD_CONST, IntOp(int64(sym.Index)))
		return
	}
	if idx := gen.consts.IndexOf(upperBare(v.Name)); idx >= 0 {
		gen.emit(LOAD_CONST, IntOp(int64(idx)))
		return
	}
	// Inside a DEF FN expansion, parameters read from their temps.
	if gen.inlining {
		if tmp, ok := gen.paramMap[v.Name]; ok {
			gen.emit(LOAD_VAR, SymOp(tmp))
			return
		}
	}
	gen.emit(LOAD_VAR, SymOp(v.Name))
}

// generateCallShaped lowers the ambiguous IDENT(args) shape using the
// same precedence the analyzer's binding resolution fixed: declared
// array, DEF FN (inlined), FUNCTION, builtin.
func (gen *Generator) generateCallShaped(v *ast.ArrayAccessExpr) {
	if _, isArray := gen.syms.LookupArray(v.Normalized); isArray {
		for _, idx := range v.Args {
			gen.generateExpression(idx)
		}
		gen.emitArray(LOAD_ARRAY, v)
		return
	}
	if fn, ok := gen.syms.LookupFunction(upperBare(v.Name)); ok {
		switch fn.Kind {
		case sema.FnDefFn:
			gen.generateInlinedDefFn(fn, v.Args)
			return
		case sema.FnFunction:
			for _, arg := range v.Args {
				gen.generateExpression(arg)
			}
			gen.emit(CALL_FUNCTION, SymOp(fn.Name), IntOp(int64(len(v.Args))))
			return
		case sema.FnSub:
			for _, arg := range v.Args {
				gen.generateExpression(arg)
			}
			gen.emit(CALL_SUB, SymOp(fn.Name), IntOp(int64(len(v.Args))))
			return
		}
	}
	for _, arg := range v.Args {
		gen.generateExpression(arg)
	}
	gen.emit(CALL_BUILTIN, SymOp(strings.ToUpper(v.Name)), IntOp(int64(len(v.Args))))
}

// generateInlinedDefFn expands a DEF FN body at the call site: each
// argument is evaluated into a fresh __fn_<func>_<param> temporary, the
// parameter map is installed, the body expression is traversed with the
// mapping active, and the previous mapping is restored (spec.md §4.7).
func (gen *Generator) generateInlinedDefFn(fn *sema.FunctionSymbol, args []ast.Expression) {
	savedMap := gen.paramMap
	savedInlining := gen.inlining

	newMap := make(map[string]string, len(savedMap)+len(fn.Params))
	for k, v := range savedMap {
		newMap[k] = v
	}
	for i, p := range fn.Params {
		if i >= len(args) {
			break
		}
		gen.generateExpression(args[i])
		tmp := "__fn_" + fn.Name + "_" + p.Name
		gen.emit(STORE_VAR, SymOp(tmp))
		newMap[p.Name] = tmp
	}

	gen.paramMap = newMap
	gen.inlining = true
	gen.generateExpression(fn.ExprBody)
	gen.paramMap = savedMap
	gen.inlining = savedInlining
}

func (gen *Generator) generateBinary(v *ast.BinaryExpr) {
	gen.generateExpression(v.Left)
	gen.generateExpression(v.Right)
	switch v.Op {
	case "+":
		// "+" with a string side concatenates (spec.md §4.7).
		if gen.isStringExpression(v.Left) || gen.isStringExpression(v.Right) {
			if gen.syms.UnicodeMode {
				gen.emit(UNICODE_CONCAT)
			} else {
				gen.emit(STR_CONCAT)
			}
			return
		}
		gen.emit(ADD)
	case "-":
		gen.emit(SUB)
	case "*":
		gen.emit(MUL)
	case "/":
		gen.emit(DIV)
	case "\\":
		gen.emit(IDIV)
	case "MOD":
		gen.emit(MOD)
	case "^":
		gen.emit(POW)
	case "=":
		gen.emit(EQ)
	case "<>":
		gen.emit(NE)
	case "<":
		gen.emit(LT)
	case "<=":
		gen.emit(LE)
	case ">":
		gen.emit(GT)
	case ">=":
		gen.emit(GE)
	case "AND":
		gen.emit(AND)
	case "OR":
		gen.emit(OR)
	case "XOR":
		gen.emit(XOR)
	default:
		gen.emit(NOP)
	}
}

// ---------------------------------------------------------------------------
// String typing and deferred-evaluation serialization
// ---------------------------------------------------------------------------

var stringBuiltins = map[string]bool{
	"LEFT$": true, "RIGHT$": true, "MID$": true, "CHR$": true, "STR$": true,
	"STRING$": true, "SPACE$": true, "UCASE$": true, "LCASE$": true,
}

// isStringExpression reports whether e evaluates to a string, driving
// the STR_CONCAT/ADD choice and the deferred-WHILE exclusion.
func (gen *Generator) isStringExpression(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.StringExpr:
		return true
	case *ast.VariableExpr:
		if sym, ok := gen.syms.LookupVariable(v.Normalized); ok {
			return sym.Type.IsTextual()
		}
		return strings.HasSuffix(v.Name, "$") || strings.HasSuffix(v.Normalized, "_STRING")
	case *ast.ArrayAccessExpr:
		if arr, ok := gen.syms.LookupArray(v.Normalized); ok {
			return arr.Type.IsTextual()
		}
		if fn, ok := gen.syms.LookupFunction(upperBare(v.Name)); ok {
			return fn.ReturnType.IsTextual()
		}
		upper := strings.ToUpper(v.Name)
		return stringBuiltins[upper] || strings.HasSuffix(upper, "$") || strings.HasSuffix(upper, "_STRING")
	case *ast.BinaryExpr:
		if v.Op == "+" {
			return gen.isStringExpression(v.Left) || gen.isStringExpression(v.Right)
		}
		return false
	case *ast.IIFExpr:
		return gen.isStringExpression(v.Then) || gen.isStringExpression(v.Else)
	}
	return false
}

// hasStringOperand reports whether any subexpression of e is
// string-typed. Deferred WHILE evaluation is permitted only when the
// condition contains no string-typed operand (the OPTION UNICODE open
// question in spec.md §9, resolved as SPEC_FULL.md §4 records).
func (gen *Generator) hasStringOperand(e ast.Expression) bool {
	if gen.isStringExpression(e) {
		return true
	}
	switch v := e.(type) {
	case *ast.UnaryExpr:
		return gen.hasStringOperand(v.Operand)
	case *ast.BinaryExpr:
		return gen.hasStringOperand(v.Left) || gen.hasStringOperand(v.Right)
	case *ast.IIFExpr:
		return gen.hasStringOperand(v.Cond) || gen.hasStringOperand(v.Then) || gen.hasStringOperand(v.Else)
	}
	return false
}

// serializeExpression renders a simple condition (literals, variables,
// unary, binary; no calls) as target-script text for the deferred
// WHILE form. An empty result means "not serializable" and the caller
// falls back to stack-based re-evaluation (spec.md §4.7).
func (gen *Generator) serializeExpression(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.NumberExpr:
		if v.IsInt {
			return strconv.FormatInt(v.Int, 10)
		}
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case *ast.StringExpr:
		escaped := strings.ReplaceAll(v.Value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	case *ast.VariableExpr:
		if _, isConst := gen.syms.LookupConstant(upperBare(v.Name)); isConst {
			return "" // constants load by index; fall back
		}
		return "var_" + v.Name
	case *ast.UnaryExpr:
		operand := gen.serializeExpression(v.Operand)
		if operand == "" {
			return ""
		}
		switch v.Op {
		case "-":
			return "(-" + operand + ")"
		case "NOT":
			return "(not " + operand + ")"
		}
		return operand
	case *ast.BinaryExpr:
		left := gen.serializeExpression(v.Left)
		right := gen.serializeExpression(v.Right)
		if left == "" || right == "" {
			return ""
		}
		op := serializeOp(v.Op)
		if op == "" {
			return ""
		}
		return "(" + left + " " + op + " " + right + ")"
	}
	return ""
}

// serializeOp maps a BASIC operator to its target-script spelling.
func serializeOp(op string) string {
	switch op {
	case "+", "-", "*", "/", "^", "<", "<=", ">", ">=":
		return op
	case "\\":
		return "//"
	case "MOD":
		return "%"
	case "=":
		return "=="
	case "<>":
		return "~="
	case "AND":
		return "and"
	case "OR":
		return "or"
	default:
		return ""
	}
}

func upperBare(name string) string {
	if n := len(name); n > 0 {
		switch name[n-1] {
		case '%', '#', '!', '$', '&':
			name = name[:n-1]
		}
	}
	return strings.ToUpper(name)
}
