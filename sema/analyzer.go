package sema

import (
	"strconv"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/constants"
	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/events"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/token"
)

// Analyzer runs the two-pass semantic analysis over one parsed Program.
// It owns the constants manager for the duration of one compilation and
// hands it to the IR generator afterwards (spec.md §3.8), and it owns
// the event handler table instead of consulting a global event manager
// (spec.md §9 REDESIGN FLAGS).
type Analyzer struct {
	reg    *registry.Table
	syms   *SymbolTable
	consts *constants.Manager
	ev     *events.Table
	diags  diag.List

	warnUnused bool
	explicit   bool

	prog *ast.Program

	// Balance stacks during pass 2 (spec.md §4.5): every loop opener
	// pushes, every closer pops, and anything left at end of program is
	// an unclosed-loop error.
	forStack    []forContext
	whileStack  []token.Location
	repeatStack []token.Location
	doStack     []doContext
	inFunction  bool
	inSub       bool
}

type forContext struct {
	varName string // bare, uppercased FOR variable ("" for FOR-IN)
	loc     token.Location
}

type doContext struct {
	loc     token.Location
	hasCond bool // DO WHILE/UNTIL pretest present
}

// New returns an Analyzer bound to the given command registry. The
// constants manager starts from the predefined table (spec.md §4.4).
func New(reg *registry.Table) *Analyzer {
	cm := constants.New()
	cm.AddPredefined()
	return &Analyzer{
		reg:        reg,
		syms:       NewSymbolTable(),
		consts:     cm,
		ev:         events.NewTable(),
		warnUnused: true,
	}
}

// SetWarnUnused toggles unused-variable warnings.
func (a *Analyzer) SetWarnUnused(on bool) { a.warnUnused = on }

// Symbols returns the populated symbol table after Analyze.
func (a *Analyzer) Symbols() *SymbolTable { return a.syms }

// Constants returns the constants manager, which must outlive the
// analyzer through IR emission (spec.md §3.8).
func (a *Analyzer) Constants() *constants.Manager { return a.consts }

// Events returns the per-compilation event handler table.
func (a *Analyzer) Events() *events.Table { return a.ev }

// Diagnostics returns every error and warning accumulated.
func (a *Analyzer) Diagnostics() diag.List { return a.diags }

// InjectConstant makes a host-provided value visible as if it had been
// declared with CONSTANT, mirroring the original injectRuntimeConstant.
func (a *Analyzer) InjectConstant(name string, v constants.Value) {
	name = strings.ToUpper(name)
	idx := a.consts.Add(name, v)
	a.syms.Constants[name] = &ConstantSymbol{Name: name, Value: v, Index: idx}
}

func (a *Analyzer) errorf(code diag.Code, loc token.Location, format string, args ...interface{}) {
	a.diags.Add(diag.Error, diag.Semantic, code, loc, format, args...)
}

func (a *Analyzer) warnf(code diag.Code, loc token.Location, format string, args ...interface{}) {
	a.diags.Add(diag.Warning, diag.Semantic, code, loc, format, args...)
}

// Analyze runs both passes. It returns true iff no Error-severity
// diagnostic was produced (warnings alone do not fail analysis).
func (a *Analyzer) Analyze(prog *ast.Program) bool {
	a.prog = prog
	a.explicit = prog.Options.Explicit
	a.syms.ArrayBase = prog.Options.Base
	a.syms.UnicodeMode = prog.Options.Unicode
	a.syms.ErrorTracking = prog.Options.ErrorHandling
	a.syms.CancellableLoops = prog.Options.Cancellable

	a.pass1(prog)
	a.pass2(prog)
	a.checkUnclosedLoops(prog)

	if a.warnUnused {
		a.checkUnusedVariables()
	}
	return !a.diags.HasErrors()
}

// ---------------------------------------------------------------------------
// Pass 1: declaration collection
// ---------------------------------------------------------------------------

func (a *Analyzer) pass1(prog *ast.Program) {
	a.collectLinesAndLabels(prog)

	pendingLabel := ""
	for _, line := range prog.Lines {
		// A label on a DATA line, or on its own line immediately before
		// one, marks a label restore point (spec.md §4.5 pass 1).
		label := line.Label
		if label == "" {
			label = pendingLabel
		}
		hasData := false

		a.walkStatements(line.Statements, func(s ast.Statement) {
			switch st := s.(type) {
			case *ast.DimStmt:
				a.collectDim(st)
			case *ast.DefFnStmt:
				a.collectDefFn(st)
			case *ast.FunctionStmt:
				a.collectFunction(st)
			case *ast.SubStmt:
				a.collectSub(st)
			case *ast.ConstantStmt:
				a.collectConstant(st)
			case *ast.DataStmt:
				if !hasData {
					hasData = true
					if line.Number > 0 {
						a.syms.Data.LineRestorePoints[line.Number] = len(a.syms.Data.Values)
					}
					if label != "" {
						a.syms.Data.LabelRestorePoints[label] = len(a.syms.Data.Values)
					}
				}
				a.collectData(st)
			}
		})

		if line.Label != "" && len(line.Statements) == 0 {
			pendingLabel = line.Label
		} else {
			pendingLabel = ""
		}
	}

	a.checkDefFnCycles()
}

// collectLinesAndLabels registers every numbered line and every :label,
// rejecting duplicates.
func (a *Analyzer) collectLinesAndLabels(prog *ast.Program) {
	for idx, line := range prog.Lines {
		if line.Number > 0 {
			if _, dup := a.syms.LineNumbers[line.Number]; dup {
				a.errorf("DUPLICATE_LINE_NUMBER", line.Loc, "line number %d is already defined", line.Number)
			} else {
				a.syms.LineNumbers[line.Number] = &LineNumberSymbol{Number: line.Number, ProgramIndex: idx}
			}
		}
		if line.Label != "" {
			if a.syms.DeclareLabel(line.Label, idx, line.Loc) == nil {
				a.errorf("DUPLICATE_LABEL", line.Loc, "label :%s is already defined", line.Label)
			}
		}
		for _, s := range line.Statements {
			if lbl, ok := s.(*ast.LabelStmt); ok {
				if a.syms.DeclareLabel(strings.ToUpper(lbl.Name), idx, lbl.Loc) == nil {
					a.errorf("DUPLICATE_LABEL", lbl.Loc, "label :%s is already defined", lbl.Name)
				}
			}
		}
	}
}

// walkStatements visits every statement in stmts and, recursively, the
// bodies of structured statements, in source order.
func (a *Analyzer) walkStatements(stmts []ast.Statement, visit func(ast.Statement)) {
	for _, s := range stmts {
		visit(s)
		switch st := s.(type) {
		case *ast.IfStmt:
			for _, br := range st.Branches {
				a.walkStatements(br.Body, visit)
			}
			a.walkStatements(st.Else, visit)
		case *ast.CaseStmt:
			for _, w := range st.Whens {
				a.walkStatements(w.Body, visit)
			}
			a.walkStatements(st.Otherwise, visit)
		case *ast.FunctionStmt:
			a.walkStatements(st.Body, visit)
		case *ast.SubStmt:
			a.walkStatements(st.Body, visit)
		}
	}
}

func (a *Analyzer) collectDim(stmt *ast.DimStmt) {
	for _, spec := range stmt.Arrays {
		if _, dup := a.syms.LookupArray(spec.Normalized); dup {
			a.errorf("ARRAY_REDECLARED", spec.Loc, "array %s is already declared", spec.Name)
			continue
		}
		dims := make([]int, len(spec.Dimensions))
		total := 1
		for i, d := range spec.Dimensions {
			v, ok := a.EvalConstant(d)
			if ok && v.IsNumeric() {
				// BASIC arrays include the upper bound: DIM A(10) is
				// eleven slots (spec.md §8.3).
				dims[i] = int(v.AsInt()) + 1
			} else {
				dims[i] = 11
				a.warnf("NON_CONSTANT_DIM", d.Pos(), "dimension of %s is not a constant; defaulting to 10", spec.Name)
			}
			if dims[i] < 1 {
				a.errorf("INVALID_ARRAY_INDEX", d.Pos(), "array %s has a negative dimension", spec.Name)
				dims[i] = 1
			}
			total *= dims[i]
		}
		a.syms.Arrays[spec.Normalized] = &ArraySymbol{
			Name:        spec.Name,
			Type:        spec.Type,
			Dimensions:  dims,
			TotalSize:   total,
			Declaration: spec.Loc,
		}
	}
}

func (a *Analyzer) collectDefFn(stmt *ast.DefFnStmt) {
	name := bareName(stmt.Name)
	if _, dup := a.syms.Functions[name]; dup {
		a.errorf("FUNCTION_REDECLARED", stmt.Loc, "function %s is already declared", stmt.Name)
		return
	}
	a.syms.Functions[name] = &FunctionSymbol{
		Name:       name,
		Kind:       FnDefFn,
		Params:     stmt.Params,
		ReturnType: ast.TypeFromSigil(sigilOf(stmt.Name), a.syms.UnicodeMode),
		ExprBody:   stmt.Body,
		Definition: stmt.Loc,
	}
}

func (a *Analyzer) collectFunction(stmt *ast.FunctionStmt) {
	name := bareName(stmt.Name)
	if _, dup := a.syms.Functions[name]; dup {
		a.errorf("FUNCTION_REDECLARED", stmt.Loc, "function %s is already declared", stmt.Name)
		return
	}
	a.syms.Functions[name] = &FunctionSymbol{
		Name:       name,
		Kind:       FnFunction,
		Params:     stmt.Params,
		ReturnType: stmt.ReturnType,
		Body:       stmt.Body,
		Definition: stmt.Loc,
	}
}

func (a *Analyzer) collectSub(stmt *ast.SubStmt) {
	name := bareName(stmt.Name)
	if _, dup := a.syms.Functions[name]; dup {
		a.errorf("FUNCTION_REDECLARED", stmt.Loc, "sub %s is already declared", stmt.Name)
		return
	}
	a.syms.Functions[name] = &FunctionSymbol{
		Name:       name,
		Kind:       FnSub,
		Params:     stmt.Params,
		ReturnType: ast.Void,
		Body:       stmt.Body,
		Definition: stmt.Loc,
	}
}

func (a *Analyzer) collectConstant(stmt *ast.ConstantStmt) {
	v, ok := a.EvalConstant(stmt.Value)
	if !ok {
		a.errorf("NON_CONSTANT_EXPRESSION", stmt.Loc, "CONSTANT %s requires a compile-time constant value", stmt.Name)
		return
	}
	idx := a.consts.Add(stmt.Name, v)
	a.syms.Constants[stmt.Name] = &ConstantSymbol{Name: stmt.Name, Value: v, Index: idx}
}

func (a *Analyzer) collectData(stmt *ast.DataStmt) {
	for _, v := range stmt.Values {
		a.syms.Data.Values = append(a.syms.Data.Values, dataValueText(v))
	}
}

// dataValueText renders one DATA literal to the flat string form the
// runtime DATA manager consumes (spec.md GLOSSARY, "DATA segment").
func dataValueText(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.NumberExpr:
		if v.IsInt {
			return strconv.FormatInt(v.Int, 10)
		}
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case *ast.StringExpr:
		return v.Value
	case *ast.UnaryExpr:
		if v.Op == "-" {
			return "-" + dataValueText(v.Operand)
		}
		return dataValueText(v.Operand)
	}
	return ""
}

// checkDefFnCycles rejects any DEF FN whose body (transitively) calls
// itself, closing the non-termination hole the original design left
// open (spec.md §9, "Recursive expression inlining").
func (a *Analyzer) checkDefFnCycles() {
	// Edges of the DEF FN call graph: name -> names referenced in body.
	edges := make(map[string][]string)
	for name, fn := range a.syms.Functions {
		if fn.Kind != FnDefFn {
			continue
		}
		var callees []string
		a.walkExpr(fn.ExprBody, func(e ast.Expression) {
			if call, ok := e.(*ast.ArrayAccessExpr); ok {
				callee := bareName(call.Name)
				if f, isFn := a.syms.Functions[callee]; isFn && f.Kind == FnDefFn {
					callees = append(callees, callee)
				}
			}
		})
		edges[name] = callees
	}

	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case onStack:
			return true
		case done:
			return false
		}
		state[name] = onStack
		for _, c := range edges[name] {
			if visit(c) {
				state[name] = done
				return true
			}
		}
		state[name] = done
		return false
	}
	for name := range edges {
		if state[name] == unvisited && visit(name) {
			fn := a.syms.Functions[name]
			a.errorf("RECURSIVE_DEF_FN", fn.Definition, "DEF FN %s is recursive; DEF FN bodies cannot call themselves", name)
		}
	}
}

// walkExpr visits e and every subexpression.
func (a *Analyzer) walkExpr(e ast.Expression, visit func(ast.Expression)) {
	if e == nil {
		return
	}
	visit(e)
	switch v := e.(type) {
	case *ast.UnaryExpr:
		a.walkExpr(v.Operand, visit)
	case *ast.BinaryExpr:
		a.walkExpr(v.Left, visit)
		a.walkExpr(v.Right, visit)
	case *ast.ArrayAccessExpr:
		for _, arg := range v.Args {
			a.walkExpr(arg, visit)
		}
	case *ast.IIFExpr:
		a.walkExpr(v.Cond, visit)
		a.walkExpr(v.Then, visit)
		a.walkExpr(v.Else, visit)
	}
}

// ---------------------------------------------------------------------------
// Pass 2: validation and type inference
// ---------------------------------------------------------------------------

func (a *Analyzer) pass2(prog *ast.Program) {
	for _, line := range prog.Lines {
		for _, s := range line.Statements {
			a.validateStmt(s)
		}
	}
}

func (a *Analyzer) validateBody(stmts []ast.Statement) {
	for _, s := range stmts {
		a.validateStmt(s)
	}
}

func (a *Analyzer) validateStmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.PrintStmt:
		for _, item := range st.Items {
			a.inferType(item.Value)
		}
	case *ast.PrintAtStmt:
		a.requireNumeric(st.X, "PRINT AT column")
		a.requireNumeric(st.Y, "PRINT AT row")
		for _, item := range st.Items {
			a.inferType(item.Value)
		}
	case *ast.ConsoleStmt:
		for _, arg := range st.Args {
			a.inferType(arg)
		}
	case *ast.InputStmt:
		a.validateInputTargets(st.Targets)
	case *ast.InputAtStmt:
		a.requireNumeric(st.X, "INPUT AT column")
		a.requireNumeric(st.Y, "INPUT AT row")
		a.validateInputTargets(st.Targets)
	case *ast.LetStmt:
		a.validateLet(st)
	case *ast.MidAssignStmt:
		a.validateMidAssign(st)
	case *ast.IfStmt:
		for _, br := range st.Branches {
			a.inferType(br.Cond)
			a.validateBody(br.Body)
		}
		a.validateBody(st.Else)
	case *ast.CaseStmt:
		a.inferType(st.Subject)
		for _, w := range st.Whens {
			for _, v := range w.Values {
				a.inferType(v)
			}
			a.validateBody(w.Body)
		}
		a.validateBody(st.Otherwise)
	case *ast.ForStmt:
		a.validateFor(st)
	case *ast.NextStmt:
		a.validateNext(st)
	case *ast.ForInStmt:
		a.validateForIn(st)
	case *ast.WhileStmt:
		a.inferType(st.Cond)
		a.whileStack = append(a.whileStack, st.Loc)
	case *ast.WendStmt:
		if len(a.whileStack) == 0 {
			a.errorf("WEND_WITHOUT_WHILE", st.Loc, "WEND without a matching WHILE")
			break
		}
		a.whileStack = a.whileStack[:len(a.whileStack)-1]
	case *ast.RepeatStmt:
		a.repeatStack = append(a.repeatStack, st.Loc)
	case *ast.UntilStmt:
		a.inferType(st.Cond)
		if len(a.repeatStack) == 0 {
			a.errorf("UNTIL_WITHOUT_REPEAT", st.Loc, "UNTIL without a matching REPEAT")
			break
		}
		a.repeatStack = a.repeatStack[:len(a.repeatStack)-1]
	case *ast.DoStmt:
		if st.Cond != nil {
			a.inferType(st.Cond)
		}
		a.doStack = append(a.doStack, doContext{loc: st.Loc, hasCond: st.Kind != ast.DoCondNone})
	case *ast.LoopStmt:
		if st.Cond != nil {
			a.inferType(st.Cond)
		}
		if len(a.doStack) == 0 {
			a.errorf("LOOP_WITHOUT_DO", st.Loc, "LOOP without a matching DO")
			break
		}
		top := a.doStack[len(a.doStack)-1]
		a.doStack = a.doStack[:len(a.doStack)-1]
		if top.hasCond && st.Kind != ast.DoCondNone {
			a.errorf("CONTROL_FLOW_MISMATCH", st.Loc, "DO loop cannot test a condition at both ends")
		}
	case *ast.ExitStmt:
		a.validateExit(st)
	case *ast.GotoStmt:
		a.resolveJumpTarget(st.Target, false)
	case *ast.GosubStmt:
		a.resolveJumpTarget(st.Target, false)
	case *ast.ReturnStmt:
		if st.Value != nil && !a.inFunction {
			a.errorf("RETURN_WITHOUT_GOSUB", st.Loc, "RETURN with a value is only allowed inside a FUNCTION")
		}
		if st.Value != nil {
			a.inferType(st.Value)
		}
	case *ast.OnGotoStmt:
		a.requireNumeric(st.Selector, "ON selector")
		for _, t := range st.Targets {
			a.resolveJumpTarget(t, false)
		}
	case *ast.OnGosubStmt:
		a.requireNumeric(st.Selector, "ON selector")
		for _, t := range st.Targets {
			a.resolveJumpTarget(t, false)
		}
	case *ast.OnCallStmt:
		a.requireNumeric(st.Selector, "ON selector")
		for _, fn := range st.Functions {
			if _, ok := a.syms.LookupFunction(fn); !ok {
				a.errorf("UNDEFINED_FUNCTION", st.Loc, "ON ... CALL target %s is not a declared FUNCTION or SUB", fn)
			}
		}
	case *ast.OnEventStmt:
		a.validateOnEvent(st)
	case *ast.DimStmt:
		for _, spec := range st.Arrays {
			for _, d := range spec.Dimensions {
				a.requireNumeric(d, "array dimension")
			}
		}
	case *ast.DefFnStmt:
		a.validateFunctionBody(bareName(st.Name))
	case *ast.FunctionStmt:
		a.validateFunctionBody(bareName(st.Name))
	case *ast.SubStmt:
		a.validateFunctionBody(bareName(st.Name))
	case *ast.CallStmt:
		a.validateCall(st)
	case *ast.ReadStmt:
		a.validateInputTargets(st.Targets)
	case *ast.RestoreStmt:
		a.validateRestore(st)
	case *ast.OpenStmt:
		a.requireTextual(st.File, "OPEN filename")
		a.requireNumeric(st.Channel, "OPEN channel")
	case *ast.CloseStmt:
		if st.HasChannel {
			a.requireNumeric(st.Channel, "CLOSE channel")
		}
	case *ast.PlayStmt:
		for _, arg := range st.Args {
			a.inferType(arg)
		}
	case *ast.PlaySoundStmt:
		for _, arg := range st.Args {
			a.inferType(arg)
		}
	case *ast.ExpressionStmt:
		a.validateExpressionStmt(st)
	case *ast.SimpleStmt:
		a.validateSimpleStmt(st)
	case *ast.DataStmt, *ast.ConstantStmt, *ast.RemStmt, *ast.EndStmt, *ast.LabelStmt:
		// Handled in pass 1 or no-ops.
	}
}

func (a *Analyzer) validateInputTargets(targets []ast.Expression) {
	for _, t := range targets {
		switch target := t.(type) {
		case *ast.VariableExpr:
			a.declareVariable(target, true)
		case *ast.ArrayAccessExpr:
			a.validateArrayStore(target)
		default:
			a.errorf("TYPE_MISMATCH", t.Pos(), "INPUT/READ target must be a variable or array element")
		}
	}
}

func (a *Analyzer) validateLet(st *ast.LetStmt) {
	valueType := a.inferType(st.Value)
	switch target := st.Target.(type) {
	case *ast.VariableExpr:
		sym := a.declareVariable(target, true)
		a.checkAssignable(sym.Type, valueType, st.Loc, target.Name)
	case *ast.ArrayAccessExpr:
		elemType := a.validateArrayStore(target)
		a.checkAssignable(elemType, valueType, st.Loc, target.Name)
	default:
		a.errorf("TYPE_MISMATCH", st.Loc, "assignment target must be a variable or array element")
	}
}

func (a *Analyzer) validateMidAssign(st *ast.MidAssignStmt) {
	targetType := a.inferType(st.Target)
	if targetType != ast.Unknown && !targetType.IsTextual() {
		a.errorf("TYPE_MISMATCH", st.Target.Pos(), "MID$ assignment target must be a string")
	}
	a.requireNumeric(st.Start, "MID$ start")
	if st.Length != nil {
		a.requireNumeric(st.Length, "MID$ length")
	}
	valueType := a.inferType(st.Value)
	if valueType != ast.Unknown && !valueType.IsTextual() {
		a.errorf("TYPE_MISMATCH", st.Value.Pos(), "MID$ assignment value must be a string")
	}
}

func (a *Analyzer) validateFor(st *ast.ForStmt) {
	sym := a.declareVariable(st.Var, true)
	if !sym.Type.IsNumeric() {
		a.errorf("TYPE_MISMATCH", st.Var.Loc, "FOR variable %s must be numeric", st.Var.Name)
	}
	a.requireNumeric(st.From, "FOR start")
	a.requireNumeric(st.To, "FOR limit")
	if st.Step != nil {
		a.requireNumeric(st.Step, "FOR step")
	}
	a.forStack = append(a.forStack, forContext{varName: bareName(st.Var.Name), loc: st.Loc})
}

// validateNext pops the FOR stack; NEXT with a variable must match the
// innermost open FOR (spec.md §4.5).
func (a *Analyzer) validateNext(st *ast.NextStmt) {
	if len(a.forStack) == 0 {
		a.errorf("NEXT_WITHOUT_FOR", st.Loc, "NEXT without a matching FOR")
		return
	}
	top := a.forStack[len(a.forStack)-1]
	a.forStack = a.forStack[:len(a.forStack)-1]
	if st.VarName != "" && top.varName != "" && !strings.EqualFold(bareName(st.VarName), top.varName) {
		a.errorf("CONTROL_FLOW_MISMATCH", st.Loc, "NEXT %s does not match FOR %s", st.VarName, top.varName)
	}
}

func (a *Analyzer) validateForIn(st *ast.ForInStmt) {
	a.declareVariable(st.Var, true)
	if st.Index != nil {
		idx := a.declareVariable(st.Index, true)
		if !idx.Type.IsNumeric() {
			a.errorf("TYPE_MISMATCH", st.Index.Loc, "FOR-IN index %s must be numeric", st.Index.Name)
		}
	}
	switch arr := st.Array.(type) {
	case *ast.VariableExpr:
		if _, ok := a.syms.LookupArray(arr.Normalized); !ok {
			a.errorf("UNDEFINED_ARRAY", arr.Loc, "FOR-IN source %s is not a declared array", arr.Name)
		}
	default:
		a.inferType(st.Array)
	}
	a.forStack = append(a.forStack, forContext{loc: st.Loc})
}

func (a *Analyzer) validateExit(st *ast.ExitStmt) {
	ok := false
	switch st.Kind {
	case ast.ExitFor:
		ok = len(a.forStack) > 0
	case ast.ExitWhile:
		ok = len(a.whileStack) > 0
	case ast.ExitRepeat:
		ok = len(a.repeatStack) > 0
	case ast.ExitDo:
		ok = len(a.doStack) > 0
	case ast.ExitFunction:
		ok = a.inFunction
	case ast.ExitSub:
		ok = a.inSub
	}
	if !ok {
		a.errorf("CONTROL_FLOW_MISMATCH", st.Loc, "EXIT %s outside of a %s", st.Kind, st.Kind)
	}
}

// checkUnclosedLoops reports every opener left on a balance stack at end
// of program (spec.md §8.1 invariant 7).
func (a *Analyzer) checkUnclosedLoops(prog *ast.Program) {
	for _, f := range a.forStack {
		a.errorf("FOR_WITHOUT_NEXT", f.loc, "FOR without a matching NEXT")
	}
	for _, loc := range a.whileStack {
		a.errorf("WHILE_WITHOUT_WEND", loc, "WHILE without a matching WEND")
	}
	for _, loc := range a.repeatStack {
		a.errorf("REPEAT_WITHOUT_UNTIL", loc, "REPEAT without a matching UNTIL")
	}
	for _, d := range a.doStack {
		a.errorf("DO_WITHOUT_LOOP", d.loc, "DO without a matching LOOP")
	}
	a.forStack, a.whileStack, a.repeatStack, a.doStack = nil, nil, nil, nil
}

// resolveJumpTarget verifies a GOTO/GOSUB/ON target and records the
// reference. restoreContext relaxes label resolution for RESTORE
// (spec.md §4.5: unresolved RESTORE labels may be DATA labels resolved
// at runtime).
func (a *Analyzer) resolveJumpTarget(t ast.Target, restoreContext bool) {
	if t.IsLabel {
		if sym, ok := a.syms.LookupLabel(t.Label); ok {
			sym.References = append(sym.References, t.Loc)
			return
		}
		if !restoreContext {
			a.errorf("UNDEFINED_LABEL", t.Loc, "label :%s is not defined", t.Label)
		}
		return
	}
	// A GOTO into a gap lands on the next existing line (spec.md §8.3);
	// only a target past the last line is an error.
	if sym, ok := a.syms.LookupLine(t.Line); ok {
		sym.References = append(sym.References, t.Loc)
		return
	}
	if next, ok := a.syms.NextLineAtOrAfter(t.Line); ok {
		a.syms.LineNumbers[next].References = append(a.syms.LineNumbers[next].References, t.Loc)
		return
	}
	a.errorf("UNDEFINED_LINE", t.Loc, "line %d is not defined and no later line exists", t.Line)
}

func (a *Analyzer) validateOnEvent(st *ast.OnEventStmt) {
	cat, known := events.CategoryOf(st.Event)
	if !known {
		a.errorf("UNDEFINED_EVENT", st.Loc, "unknown event %s", st.Event)
		return
	}
	if cat == events.Reserved {
		a.warnf("RESERVED_EVENT", st.Loc, "event %s is reserved for future runtimes", st.Event)
	}

	h := events.Handler{Event: st.Event, Kind: st.Kind, Line: st.Loc.Line}
	switch st.Kind {
	case events.Call:
		h.Target = st.Func
		if _, ok := a.syms.LookupFunction(st.Func); !ok {
			// Pass 1 has already collected every declared SUB/FUNCTION, so
			// this target is one the host may provide; warning-class per
			// spec.md §7.
			a.warnf("UNRESOLVED_EVENT_TARGET", st.Loc, "ON EVENT CALL target %s is not declared (yet)", st.Func)
		}
	case events.Goto, events.Gosub:
		a.resolveJumpTarget(st.Target, false)
		if st.Target.IsLabel {
			h.Target = st.Target.Label
			if sym, ok := a.syms.LookupLabel(st.Target.Label); ok {
				h.Resolved = sym.ID
			}
		} else {
			h.Target = strconv.Itoa(st.Target.Line)
			h.Resolved = st.Target.Line
			h.IsLineNum = true
		}
	}
	a.ev.Register(h)
	a.syms.EventsUsed = true
}

// validateFunctionBody type-checks a declared function's body with its
// parameters in scope as declared variables.
func (a *Analyzer) validateFunctionBody(name string) {
	fn, ok := a.syms.Functions[name]
	if !ok {
		return // declaration failed in pass 1; already reported
	}

	// Parameters shadow nothing: BASIC scopes are flat, so parameters
	// are declared as ordinary variables under their normalized names.
	for _, p := range fn.Params {
		if _, exists := a.syms.Variables[p.Normalized]; !exists {
			a.syms.Variables[p.Normalized] = &VariableSymbol{
				Name:     p.Normalized,
				Type:     p.Type,
				Declared: true,
				Used:     true,
				FirstUse: p.Loc,
			}
		}
	}

	// A function body is its own balance scope: a loop opened inside
	// must close inside.
	validateScoped := func(body []ast.Statement) {
		savedFor, savedWhile := a.forStack, a.whileStack
		savedRepeat, savedDo := a.repeatStack, a.doStack
		a.forStack, a.whileStack, a.repeatStack, a.doStack = nil, nil, nil, nil
		a.validateBody(body)
		for _, f := range a.forStack {
			a.errorf("FOR_WITHOUT_NEXT", f.loc, "FOR without a matching NEXT in %s %s", fn.Kind, fn.Name)
		}
		for _, loc := range a.whileStack {
			a.errorf("WHILE_WITHOUT_WEND", loc, "WHILE without a matching WEND in %s %s", fn.Kind, fn.Name)
		}
		for _, loc := range a.repeatStack {
			a.errorf("REPEAT_WITHOUT_UNTIL", loc, "REPEAT without a matching UNTIL in %s %s", fn.Kind, fn.Name)
		}
		for _, d := range a.doStack {
			a.errorf("DO_WITHOUT_LOOP", d.loc, "DO without a matching LOOP in %s %s", fn.Kind, fn.Name)
		}
		a.forStack, a.whileStack = savedFor, savedWhile
		a.repeatStack, a.doStack = savedRepeat, savedDo
	}

	switch fn.Kind {
	case FnDefFn:
		bodyType := a.inferType(fn.ExprBody)
		a.checkAssignable(fn.ReturnType, bodyType, fn.Definition, "DEF FN "+fn.Name)
	case FnFunction:
		wasIn := a.inFunction
		a.inFunction = true
		validateScoped(fn.Body)
		a.inFunction = wasIn
	case FnSub:
		wasIn := a.inSub
		a.inSub = true
		validateScoped(fn.Body)
		a.inSub = wasIn
	}
}

func (a *Analyzer) validateCall(st *ast.CallStmt) {
	for _, arg := range st.Args {
		a.inferType(arg)
	}
	if fn, ok := a.syms.LookupFunction(st.Name); ok {
		a.checkArity(len(st.Args), len(fn.Params), len(fn.Params), st.Loc, st.Name)
		return
	}
	if entry, ok := a.reg.Lookup(st.Name); ok {
		a.checkArity(len(st.Args), entry.MinArgs(), entry.MaxArgs(), st.Loc, st.Name)
		return
	}
	a.errorf("UNDEFINED_FUNCTION", st.Loc, "CALL target %s is not a declared SUB, FUNCTION, or command", st.Name)
}

func (a *Analyzer) validateRestore(st *ast.RestoreStmt) {
	if !st.HasTarget {
		return
	}
	if st.Target.IsLabel {
		// DATA labels resolve at runtime; never an error here.
		a.resolveJumpTarget(st.Target, true)
		return
	}
	if _, ok := a.syms.Data.LineRestorePoints[st.Target.Line]; ok {
		return
	}
	if _, ok := a.syms.LookupLine(st.Target.Line); !ok {
		a.errorf("UNDEFINED_LINE", st.Target.Loc, "RESTORE target line %d is not defined", st.Target.Line)
	}
}

func (a *Analyzer) validateExpressionStmt(st *ast.ExpressionStmt) {
	binding := a.ResolveCall(st.Call)
	for _, arg := range st.Call.Args {
		a.inferType(arg)
	}
	switch binding.Kind {
	case BindRegistry:
		a.checkArity(len(st.Call.Args), binding.Entry.MinArgs(), binding.Entry.MaxArgs(), st.Loc, st.Call.Name)
	case BindSub, BindUserFunction:
		a.checkArity(len(st.Call.Args), len(binding.Function.Params), len(binding.Function.Params), st.Loc, st.Call.Name)
	case BindArray:
		a.errorf("TYPE_MISMATCH", st.Loc, "array %s cannot be used as a statement", st.Call.Name)
	case BindImplicitArray:
		a.errorf("UNDEFINED_FUNCTION", st.Loc, "%s is not a declared array, function, or command", st.Call.Name)
	}
}

func (a *Analyzer) validateSimpleStmt(st *ast.SimpleStmt) {
	if fn, ok := a.syms.LookupFunction(st.Name); ok && fn.Kind == FnSub {
		a.checkArity(0, len(fn.Params), len(fn.Params), st.Loc, st.Name)
		return
	}
	if entry, ok := a.reg.Lookup(st.Name); ok {
		a.checkArity(0, entry.MinArgs(), entry.MaxArgs(), st.Loc, st.Name)
		return
	}
	a.errorf("UNDEFINED_FUNCTION", st.Loc, "%s is not a known command", st.Name)
}

// ---------------------------------------------------------------------------
// Expression type inference
// ---------------------------------------------------------------------------

// inferType computes an expression's type, recording variable uses and
// arity errors along the way (spec.md §4.5 pass 2).
func (a *Analyzer) inferType(e ast.Expression) ast.Type {
	switch v := e.(type) {
	case *ast.NumberExpr:
		switch {
		case v.IsInt:
			return ast.Int
		case v.IsDouble:
			return ast.Double
		default:
			return ast.Float
		}
	case *ast.StringExpr:
		if a.syms.UnicodeMode {
			return ast.Unicode
		}
		return ast.String
	case *ast.VariableExpr:
		return a.inferVariable(v)
	case *ast.ArrayAccessExpr:
		return a.inferCallSite(v)
	case *ast.UnaryExpr:
		t := a.inferType(v.Operand)
		if v.Op == "NOT" {
			return ast.Int
		}
		if t.IsTextual() {
			a.errorf("TYPE_MISMATCH", v.Loc, "unary %s requires a numeric operand", v.Op)
			return ast.Unknown
		}
		return t
	case *ast.BinaryExpr:
		return a.inferBinary(v)
	case *ast.IIFExpr:
		a.inferType(v.Cond)
		thenType := a.inferType(v.Then)
		elseType := a.inferType(v.Else)
		if thenType.IsTextual() != elseType.IsTextual() {
			a.errorf("TYPE_MISMATCH", v.Loc, "IIF branches mix string and numeric values")
			return ast.Unknown
		}
		if thenType.IsNumeric() && elseType.IsNumeric() {
			return ast.Promote(thenType, elseType)
		}
		return thenType
	case *ast.FunctionCallExpr:
		for _, arg := range v.Args {
			a.inferType(arg)
		}
		if fn, ok := a.syms.LookupFunction(v.Name); ok {
			return fn.ReturnType
		}
		a.errorf("UNDEFINED_FUNCTION", v.Loc, "function %s is not defined", v.Name)
		return ast.Unknown
	case *ast.RegistryFunctionCallExpr:
		for _, arg := range v.Args {
			a.inferType(arg)
		}
		return v.ReturnType
	}
	return ast.Unknown
}

func (a *Analyzer) inferVariable(v *ast.VariableExpr) ast.Type {
	// A name that matches a user constant or a predefined constant reads
	// as a constant, not a variable.
	name := bareName(v.Name)
	if sym, ok := a.syms.LookupConstant(name); ok {
		return constantType(sym.Value, a.syms.UnicodeMode)
	}
	if idx := a.consts.IndexOf(name); idx >= 0 {
		cv, _ := a.consts.Get(idx)
		return constantType(cv, a.syms.UnicodeMode)
	}

	sym, declared := a.syms.LookupVariable(v.Normalized)
	if !declared {
		if a.explicit {
			a.errorf("UNDEFINED_VARIABLE", v.Loc, "variable %s used before assignment (OPTION EXPLICIT)", v.Name)
		}
		sym = a.declareVariable(v, false)
	}
	sym.Used = true
	return sym.Type
}

func constantType(v constants.Value, unicode bool) ast.Type {
	switch {
	case v.IsInt():
		return ast.Int
	case v.IsFloat():
		return ast.Double
	case unicode:
		return ast.Unicode
	default:
		return ast.String
	}
}

func (a *Analyzer) inferCallSite(v *ast.ArrayAccessExpr) ast.Type {
	binding := a.ResolveCall(v)
	switch binding.Kind {
	case BindArray:
		if len(v.Args) != len(binding.Array.Dimensions) {
			a.errorf("WRONG_DIMENSION_COUNT", v.Loc, "array %s has %d dimension(s), indexed with %d",
				v.Name, len(binding.Array.Dimensions), len(v.Args))
		}
		for _, idx := range v.Args {
			a.requireNumeric(idx, "array index")
		}
		return binding.Array.Type
	case BindUserFunction:
		a.checkArity(len(v.Args), len(binding.Function.Params), len(binding.Function.Params), v.Loc, v.Name)
		for _, arg := range v.Args {
			a.inferType(arg)
		}
		return binding.Function.ReturnType
	case BindSub:
		a.errorf("TYPE_MISMATCH", v.Loc, "SUB %s does not return a value", v.Name)
		return ast.Void
	case BindRegistry:
		if binding.Entry.Kind != registry.Function {
			a.errorf("TYPE_MISMATCH", v.Loc, "%s is a command, not a function", v.Name)
			return ast.Unknown
		}
		a.checkArity(len(v.Args), binding.Entry.MinArgs(), binding.Entry.MaxArgs(), v.Loc, v.Name)
		for _, arg := range v.Args {
			a.inferType(arg)
		}
		return binding.Entry.ReturnType
	default: // BindImplicitArray
		if a.explicit {
			a.errorf("ARRAY_NOT_DECLARED", v.Loc, "array %s is not declared (OPTION EXPLICIT)", v.Name)
		} else {
			// Implicitly declare with 11 slots per dimension, matching the
			// classic dialect default.
			dims := make([]int, len(v.Args))
			total := 1
			for i := range dims {
				dims[i] = 11
				total *= 11
			}
			a.syms.Arrays[v.Normalized] = &ArraySymbol{
				Name:        v.Name,
				Type:        binding.Type,
				Dimensions:  dims,
				TotalSize:   total,
				Declaration: v.Loc,
			}
		}
		for _, idx := range v.Args {
			a.requireNumeric(idx, "array index")
		}
		return binding.Type
	}
}

// validateArrayStore checks an array element used as an assignment or
// INPUT/READ target and returns the element type.
func (a *Analyzer) validateArrayStore(v *ast.ArrayAccessExpr) ast.Type {
	binding := a.ResolveCall(v)
	switch binding.Kind {
	case BindArray:
		if len(v.Args) != len(binding.Array.Dimensions) {
			a.errorf("WRONG_DIMENSION_COUNT", v.Loc, "array %s has %d dimension(s), indexed with %d",
				v.Name, len(binding.Array.Dimensions), len(v.Args))
		}
		for _, idx := range v.Args {
			a.requireNumeric(idx, "array index")
		}
		return binding.Array.Type
	case BindImplicitArray:
		return a.inferCallSite(v)
	default:
		a.errorf("TYPE_MISMATCH", v.Loc, "%s is a %s, not an assignable array", v.Name, binding.Kind)
		return ast.Unknown
	}
}

func (a *Analyzer) inferBinary(v *ast.BinaryExpr) ast.Type {
	left := a.inferType(v.Left)
	right := a.inferType(v.Right)

	switch v.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		if left.IsTextual() != right.IsTextual() && left != ast.Unknown && right != ast.Unknown {
			a.errorf("TYPE_MISMATCH", v.Loc, "cannot compare %s with %s", left, right)
		}
		return ast.Int
	case "AND", "OR", "XOR":
		return ast.Int
	case "+":
		// "+" with any string side is concatenation (spec.md §4.2).
		if left.IsTextual() || right.IsTextual() {
			if (left != ast.Unknown && !left.IsTextual()) || (right != ast.Unknown && !right.IsTextual()) {
				a.errorf("TYPE_MISMATCH", v.Loc, "cannot concatenate %s with %s", left, right)
				return ast.Unknown
			}
			if a.syms.UnicodeMode {
				return ast.Unicode
			}
			return ast.String
		}
	}

	if left.IsTextual() || right.IsTextual() {
		a.errorf("TYPE_MISMATCH", v.Loc, "operator %s requires numeric operands", v.Op)
		return ast.Unknown
	}
	switch v.Op {
	case "\\", "MOD":
		return ast.Int
	case "/", "^":
		if left == ast.Double || right == ast.Double {
			return ast.Double
		}
		return ast.Float
	}
	if left.IsNumeric() && right.IsNumeric() {
		return ast.Promote(left, right)
	}
	return ast.Unknown
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// declareVariable registers (or fetches) the scalar for v. assigned
// marks it as declared-by-assignment for OPTION EXPLICIT purposes.
func (a *Analyzer) declareVariable(v *ast.VariableExpr, assigned bool) *VariableSymbol {
	sym, ok := a.syms.Variables[v.Normalized]
	if !ok {
		sym = &VariableSymbol{
			Name:     v.Normalized,
			Type:     ast.TypeFromSigil(v.Sigil, a.syms.UnicodeMode),
			FirstUse: v.Loc,
		}
		a.syms.Variables[v.Normalized] = sym
	}
	if assigned {
		sym.Declared = true
	}
	return sym
}

// checkAssignable enforces the narrow assignment compatibility rule
// (spec.md §4.5): string↔numeric is an error, numeric→numeric promotes,
// STRING↔UNICODE interconvert.
func (a *Analyzer) checkAssignable(target, value ast.Type, loc token.Location, context string) {
	if target == ast.Unknown || value == ast.Unknown {
		return
	}
	if target.IsTextual() && value.IsTextual() {
		return
	}
	if target.IsNumeric() && value.IsNumeric() {
		return
	}
	a.errorf("TYPE_MISMATCH", loc, "cannot assign %s to %s %s", value, target, context)
}

func (a *Analyzer) requireNumeric(e ast.Expression, context string) {
	t := a.inferType(e)
	if t != ast.Unknown && !t.IsNumeric() {
		a.errorf("TYPE_MISMATCH", e.Pos(), "%s must be numeric, got %s", context, t)
	}
}

func (a *Analyzer) requireTextual(e ast.Expression, context string) {
	t := a.inferType(e)
	if t != ast.Unknown && !t.IsTextual() {
		a.errorf("TYPE_MISMATCH", e.Pos(), "%s must be a string, got %s", context, t)
	}
}

func (a *Analyzer) checkArity(got, min, max int, loc token.Location, name string) {
	if got < min || got > max {
		if min == max {
			a.errorf("WRONG_ARGUMENT_COUNT", loc, "%s expects %d argument(s), got %d", name, min, got)
		} else {
			a.errorf("WRONG_ARGUMENT_COUNT", loc, "%s expects %d to %d arguments, got %d", name, min, max, got)
		}
	}
}

func (a *Analyzer) checkUnusedVariables() {
	for _, sym := range a.syms.Variables {
		if !sym.Used {
			a.warnf("UNUSED_VARIABLE", sym.FirstUse, "variable %s is assigned but never used", sym.Name)
		}
	}
}
