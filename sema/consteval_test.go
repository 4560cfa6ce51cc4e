package sema

import (
	"math"
	"testing"

	"github.com/albanread/FasterBASICT/parser"
	"github.com/albanread/FasterBASICT/registry"
)

// evalConst parses src as a lone expression (wrapped in a CONSTANT
// statement) and returns the folded value.
func evalConst(t *testing.T, expr string) (intVal int64, floatVal float64, strVal string, kind string) {
	t.Helper()
	a := analyze(t, "10 CONSTANT TESTVALUE = "+expr+"\n")
	if errs := a.Diagnostics().Errors(); len(errs) != 0 {
		t.Fatalf("errors folding %q: %v", expr, errs)
	}
	sym, ok := a.Symbols().LookupConstant("TESTVALUE")
	if !ok {
		t.Fatalf("constant not stored for %q", expr)
	}
	v := sym.Value
	switch {
	case v.IsInt():
		return v.Int(), 0, "", "int"
	case v.IsFloat():
		return 0, v.Float(), "", "float"
	default:
		return 0, 0, v.Str(), "string"
	}
}

func TestConstEval_IntegerArithmeticStaysInteger(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"6 * 7", 42},
		{"7 \\ 2", 3},
		{"7 MOD 3", 1},
		{"-5", -5},
		{"2 AND 3", 2},
		{"1 OR 4", 5},
		{"5 XOR 1", 4},
		{"NOT 0", -1},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, _, _, kind := evalConst(t, tc.expr)
			if kind != "int" {
				t.Fatalf("%s folded to %s, want int", tc.expr, kind)
			}
			if got != tc.want {
				t.Fatalf("%s = %d, want %d", tc.expr, got, tc.want)
			}
		})
	}
}

func TestConstEval_DivisionAndPowerPromote(t *testing.T) {
	_, got, _, kind := evalConst(t, "7 / 2")
	if kind != "float" || got != 3.5 {
		t.Fatalf("7/2 = %v (%s), want 3.5 float", got, kind)
	}
	_, got, _, kind = evalConst(t, "2 ^ 10")
	if kind != "float" || got != 1024 {
		t.Fatalf("2^10 = %v (%s), want 1024 float", got, kind)
	}
}

func TestConstEval_PredefinedConstants(t *testing.T) {
	_, got, _, _ := evalConst(t, "2 * PI")
	if math.Abs(got-2*math.Pi) > 1e-9 {
		t.Fatalf("2*PI = %v", got)
	}
	n, _, _, kind := evalConst(t, "TRUE")
	if kind != "int" || n != 1 {
		t.Fatalf("TRUE = %v (%s), want 1 int", n, kind)
	}
}

func TestConstEval_StringFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{`"foo" + "bar"`, "foobar"},
		{`LEFT$("hello", 2)`, "he"},
		{`RIGHT$("hello", 3)`, "llo"},
		{`MID$("hello", 2, 3)`, "ell"},
		{`CHR$(65)`, "A"},
		{`STR$(42)`, "42"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			_, _, got, kind := evalConst(t, tc.expr)
			if kind != "string" {
				t.Fatalf("%s folded to %s, want string", tc.expr, kind)
			}
			if got != tc.want {
				t.Fatalf("%s = %q, want %q", tc.expr, got, tc.want)
			}
		})
	}
}

func TestConstEval_NumericFunctions(t *testing.T) {
	n, _, _, _ := evalConst(t, `LEN("hello")`)
	if n != 5 {
		t.Fatalf("LEN = %d, want 5", n)
	}
	n, _, _, _ = evalConst(t, "SGN(-3)")
	if n != -1 {
		t.Fatalf("SGN(-3) = %d, want -1", n)
	}
	n, _, _, _ = evalConst(t, "INT(3.7)")
	if n != 3 {
		t.Fatalf("INT(3.7) = %d, want 3", n)
	}
	n, _, _, _ = evalConst(t, "MIN(3, 7)")
	if n != 3 {
		t.Fatalf("MIN(3,7) = %d, want 3", n)
	}
	_, f, _, _ := evalConst(t, "SQR(9)")
	if f != 3 {
		t.Fatalf("SQR(9) = %v, want 3", f)
	}
	n, _, _, _ = evalConst(t, "ABS(-4)")
	if n != 4 {
		t.Fatalf("ABS(-4) = %d, want 4", n)
	}
}

func TestConstEval_ValSwallowsParseFailures(t *testing.T) {
	_, f, _, kind := evalConst(t, `VAL("not a number")`)
	if kind != "float" || f != 0 {
		t.Fatalf("VAL(garbage) = %v (%s), want 0 float", f, kind)
	}
	_, f, _, _ = evalConst(t, `VAL("  3.5 ")`)
	if f != 3.5 {
		t.Fatalf("VAL(\"3.5\") = %v, want 3.5", f)
	}
}

func TestConstEval_ConstantsChain(t *testing.T) {
	a := analyze(t, "10 CONSTANT ROOT = 100\n20 CONSTANT DERIVED = ROOT * 2 + 1\n")
	wantClean(t, a)
	sym, ok := a.Symbols().LookupConstant("DERIVED")
	if !ok {
		t.Fatalf("DERIVED missing")
	}
	if sym.Value.AsInt() != 201 {
		t.Fatalf("DERIVED = %v, want 201", sym.Value.AsInt())
	}
}

func TestConstEval_NonConstantExpressionRejected(t *testing.T) {
	prog, _, _ := parser.ParseString("test.bas", "10 LET X = 1\n20 CONSTANT K = X + 1\n")
	a := New(registry.NewDefaultTable())
	a.Analyze(prog)
	wantError(t, a, "NON_CONSTANT_EXPRESSION")
}
