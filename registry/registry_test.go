package registry

import (
	"testing"

	"github.com/albanread/FasterBASICT/ast"
)

func TestTable_RegisterAndLookupCaseInsensitive(t *testing.T) {
	tb := NewTable()
	tb.Register(Entry{Name: "circle", Kind: Command, Params: []Param{
		{Name: "x", Type: ast.Double},
	}})

	e, ok := tb.Lookup("Circle")
	if !ok {
		t.Fatalf("expected lookup to find entry regardless of case")
	}
	if e.Name != "CIRCLE" {
		t.Fatalf("entry name not canonicalized: %q", e.Name)
	}
	if !tb.IsCommand("CIRCLE") || tb.IsFunction("CIRCLE") {
		t.Fatalf("CIRCLE should be a Command, not a Function")
	}
}

func TestEntry_MinMaxArgs(t *testing.T) {
	e := Entry{Params: []Param{
		{Name: "a"},
		{Name: "b", Optional: true},
		{Name: "c", Optional: true},
	}}
	if e.MinArgs() != 1 {
		t.Fatalf("MinArgs = %d, want 1", e.MinArgs())
	}
	if e.MaxArgs() != 3 {
		t.Fatalf("MaxArgs = %d, want 3", e.MaxArgs())
	}
}

func TestDefaultTable_WhitelistFunctionsPresent(t *testing.T) {
	tb := NewDefaultTable()
	for _, name := range []string{"ABS", "SIN", "LEFT$", "MID$", "VAL", "MIN", "MAX"} {
		if !tb.IsFunction(name) {
			t.Fatalf("expected %s to be registered as a function", name)
		}
	}
	e, ok := tb.Lookup("MID$")
	if !ok {
		t.Fatalf("MID$ missing")
	}
	if e.MinArgs() != 2 || e.MaxArgs() != 3 {
		t.Fatalf("MID$ arity = [%d,%d], want [2,3]", e.MinArgs(), e.MaxArgs())
	}
}

func TestDefaultTable_CommandsAreVoid(t *testing.T) {
	tb := NewDefaultTable()
	e, ok := tb.Lookup("CLS")
	if !ok {
		t.Fatalf("CLS missing")
	}
	if e.ReturnType != ast.Void {
		t.Fatalf("CLS return type = %v, want VOID", e.ReturnType)
	}
}

func TestTable_NamesSorted(t *testing.T) {
	tb := NewTable()
	tb.Register(Entry{Name: "ZETA"})
	tb.Register(Entry{Name: "ALPHA"})
	names := tb.Names()
	if len(names) != 2 || names[0] != "ALPHA" || names[1] != "ZETA" {
		t.Fatalf("Names() = %v, want sorted [ALPHA ZETA]", names)
	}
}
