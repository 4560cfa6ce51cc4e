package sema

import (
	"math"
	"strconv"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/constants"
)

// foldableFunctions is the whitelist of pure functions the compile-time
// evaluator may fold (spec.md §4.5). Everything else makes an expression
// non-constant.
var foldableFunctions = map[string]bool{
	"ABS": true, "SIN": true, "COS": true, "TAN": true, "ATN": true,
	"EXP": true, "LOG": true, "SQR": true, "INT": true, "SGN": true,
	"LEN": true, "LEFT$": true, "RIGHT$": true, "MID$": true,
	"CHR$": true, "STR$": true, "VAL": true, "MIN": true, "MAX": true,
}

// EvalConstant evaluates expr at compile time. The bool result reports
// whether the expression was a foldable constant; a false return is not
// an error, just "not constant" (the expression stays for runtime).
func (a *Analyzer) EvalConstant(expr ast.Expression) (constants.Value, bool) {
	switch e := expr.(type) {
	case *ast.NumberExpr:
		if e.IsInt {
			return constants.IntValue(e.Int), true
		}
		return constants.FloatValue(e.Float), true

	case *ast.StringExpr:
		return constants.StringValue(e.Value), true

	case *ast.VariableExpr:
		// A variable folds only when it names a known constant: a user
		// CONSTANT, or a predefined entry in the constants manager.
		name := bareName(e.Name)
		if sym, ok := a.syms.LookupConstant(name); ok {
			return sym.Value, true
		}
		if idx := a.consts.IndexOf(name); idx >= 0 {
			v, _ := a.consts.Get(idx)
			return v, true
		}
		return constants.Value{}, false

	case *ast.UnaryExpr:
		return a.evalConstantUnary(e)

	case *ast.BinaryExpr:
		return a.evalConstantBinary(e)

	case *ast.ArrayAccessExpr:
		return a.evalConstantCall(e)

	case *ast.IIFExpr:
		cond, ok := a.EvalConstant(e.Cond)
		if !ok || !cond.IsNumeric() {
			return constants.Value{}, false
		}
		if cond.AsFloat() != 0 {
			return a.EvalConstant(e.Then)
		}
		return a.EvalConstant(e.Else)
	}
	return constants.Value{}, false
}

func (a *Analyzer) evalConstantUnary(e *ast.UnaryExpr) (constants.Value, bool) {
	v, ok := a.EvalConstant(e.Operand)
	if !ok {
		return constants.Value{}, false
	}
	switch e.Op {
	case "+":
		if v.IsNumeric() {
			return v, true
		}
	case "-":
		if v.IsInt() {
			return constants.IntValue(-v.Int()), true
		}
		if v.IsFloat() {
			return constants.FloatValue(-v.Float()), true
		}
	case "NOT":
		if v.IsNumeric() {
			return constants.IntValue(^v.AsInt()), true
		}
	}
	return constants.Value{}, false
}

func (a *Analyzer) evalConstantBinary(e *ast.BinaryExpr) (constants.Value, bool) {
	left, ok := a.EvalConstant(e.Left)
	if !ok {
		return constants.Value{}, false
	}
	right, ok := a.EvalConstant(e.Right)
	if !ok {
		return constants.Value{}, false
	}

	// String concatenation is the only string-typed fold.
	if e.Op == "+" && (left.IsString() || right.IsString()) {
		return constants.StringValue(left.AsString() + right.AsString()), true
	}
	if !left.IsNumeric() || !right.IsNumeric() {
		return constants.Value{}, false
	}

	bothInt := left.IsInt() && right.IsInt()

	// spec.md §4.5: integer op integer stays integer unless the operator
	// is "/" or "^"; everything else promotes to double.
	switch e.Op {
	case "+", "-", "*":
		if bothInt {
			l, r := left.Int(), right.Int()
			switch e.Op {
			case "+":
				return constants.IntValue(l + r), true
			case "-":
				return constants.IntValue(l - r), true
			default:
				return constants.IntValue(l * r), true
			}
		}
		l, r := left.AsFloat(), right.AsFloat()
		switch e.Op {
		case "+":
			return constants.FloatValue(l + r), true
		case "-":
			return constants.FloatValue(l - r), true
		default:
			return constants.FloatValue(l * r), true
		}
	case "/":
		r := right.AsFloat()
		if r == 0 {
			return constants.Value{}, false
		}
		return constants.FloatValue(left.AsFloat() / r), true
	case "\\":
		r := right.AsInt()
		if r == 0 {
			return constants.Value{}, false
		}
		return constants.IntValue(left.AsInt() / r), true
	case "MOD":
		r := right.AsInt()
		if r == 0 {
			return constants.Value{}, false
		}
		return constants.IntValue(left.AsInt() % r), true
	case "^":
		return constants.FloatValue(math.Pow(left.AsFloat(), right.AsFloat())), true
	case "AND":
		return constants.IntValue(left.AsInt() & right.AsInt()), true
	case "OR":
		return constants.IntValue(left.AsInt() | right.AsInt()), true
	case "XOR":
		return constants.IntValue(left.AsInt() ^ right.AsInt()), true
	}
	return constants.Value{}, false
}

func (a *Analyzer) evalConstantCall(e *ast.ArrayAccessExpr) (constants.Value, bool) {
	name := strings.ToUpper(e.Name)
	if !foldableFunctions[name] {
		return constants.Value{}, false
	}

	args := make([]constants.Value, len(e.Args))
	for i, arg := range e.Args {
		v, ok := a.EvalConstant(arg)
		if !ok {
			return constants.Value{}, false
		}
		args[i] = v
	}

	num1 := func(f func(float64) float64) (constants.Value, bool) {
		if len(args) != 1 || !args[0].IsNumeric() {
			return constants.Value{}, false
		}
		return constants.FloatValue(f(args[0].AsFloat())), true
	}

	switch name {
	case "ABS":
		if len(args) != 1 {
			return constants.Value{}, false
		}
		if args[0].IsInt() {
			n := args[0].Int()
			if n < 0 {
				n = -n
			}
			return constants.IntValue(n), true
		}
		return num1(math.Abs)
	case "SIN":
		return num1(math.Sin)
	case "COS":
		return num1(math.Cos)
	case "TAN":
		return num1(math.Tan)
	case "ATN":
		return num1(math.Atan)
	case "EXP":
		return num1(math.Exp)
	case "LOG":
		if len(args) != 1 || !args[0].IsNumeric() || args[0].AsFloat() <= 0 {
			return constants.Value{}, false
		}
		return constants.FloatValue(math.Log(args[0].AsFloat())), true
	case "SQR":
		if len(args) != 1 || !args[0].IsNumeric() || args[0].AsFloat() < 0 {
			return constants.Value{}, false
		}
		return constants.FloatValue(math.Sqrt(args[0].AsFloat())), true
	case "INT":
		if len(args) != 1 || !args[0].IsNumeric() {
			return constants.Value{}, false
		}
		return constants.IntValue(int64(math.Floor(args[0].AsFloat()))), true
	case "SGN":
		if len(args) != 1 || !args[0].IsNumeric() {
			return constants.Value{}, false
		}
		f := args[0].AsFloat()
		switch {
		case f > 0:
			return constants.IntValue(1), true
		case f < 0:
			return constants.IntValue(-1), true
		default:
			return constants.IntValue(0), true
		}
	case "LEN":
		if len(args) != 1 || !args[0].IsString() {
			return constants.Value{}, false
		}
		return constants.IntValue(int64(len(args[0].Str()))), true
	case "LEFT$":
		if len(args) != 2 || !args[0].IsString() {
			return constants.Value{}, false
		}
		s := args[0].Str()
		n := clampIndex(args[1].AsInt(), len(s))
		return constants.StringValue(s[:n]), true
	case "RIGHT$":
		if len(args) != 2 || !args[0].IsString() {
			return constants.Value{}, false
		}
		s := args[0].Str()
		n := clampIndex(args[1].AsInt(), len(s))
		return constants.StringValue(s[len(s)-n:]), true
	case "MID$":
		if (len(args) != 2 && len(args) != 3) || !args[0].IsString() {
			return constants.Value{}, false
		}
		s := args[0].Str()
		start := int(args[1].AsInt()) - 1 // MID$ is 1-based
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		end := len(s)
		if len(args) == 3 {
			end = start + clampIndex(args[2].AsInt(), len(s)-start)
		}
		return constants.StringValue(s[start:end]), true
	case "CHR$":
		if len(args) != 1 || !args[0].IsNumeric() {
			return constants.Value{}, false
		}
		return constants.StringValue(string(rune(args[0].AsInt()))), true
	case "STR$":
		if len(args) != 1 || !args[0].IsNumeric() {
			return constants.Value{}, false
		}
		return constants.StringValue(args[0].AsString()), true
	case "VAL":
		if len(args) != 1 || !args[0].IsString() {
			return constants.Value{}, false
		}
		// Dialect compatibility: parse failures yield 0, never an error
		// (spec.md §9's "Exception-for-control-flow" note).
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str()), 64)
		if err != nil {
			f = 0
		}
		return constants.FloatValue(f), true
	case "MIN", "MAX":
		if len(args) != 2 || !args[0].IsNumeric() || !args[1].IsNumeric() {
			return constants.Value{}, false
		}
		l, r := args[0].AsFloat(), args[1].AsFloat()
		pick := l
		if (name == "MIN") != (l < r) {
			pick = r
		}
		if args[0].IsInt() && args[1].IsInt() {
			return constants.IntValue(int64(pick)), true
		}
		return constants.FloatValue(pick), true
	}
	return constants.Value{}, false
}

func clampIndex(n int64, max int) int {
	if n < 0 {
		return 0
	}
	if int(n) > max {
		return max
	}
	return int(n)
}
