package events

import "testing"

func TestNames_CoverAllCategories(t *testing.T) {
	cases := map[string]Category{
		"KEYPRESSED":    Input,
		"JOYSTICK_LEFT": Input,
		"TIMER":         System,
		"ERROR":         System,
		"USER_EVENT":    Reserved,
	}
	for name, want := range cases {
		got, ok := CategoryOf(name)
		if !ok {
			t.Fatalf("%s not recognized", name)
		}
		if got != want {
			t.Fatalf("%s category = %v, want %v", name, got, want)
		}
	}
	if IsValid("NOT_AN_EVENT") {
		t.Fatalf("unknown event accepted")
	}
}

func TestAllNames_MatchesTableAndIsStable(t *testing.T) {
	names := AllNames()
	if len(names) != len(Names) {
		t.Fatalf("AllNames has %d entries, table has %d", len(names), len(Names))
	}
	for _, n := range names {
		if !IsValid(n) {
			t.Fatalf("AllNames entry %s missing from table", n)
		}
	}
	// Deterministic ordering for the REPL's EVENTS listing.
	again := AllNames()
	for i := range names {
		if names[i] != again[i] {
			t.Fatalf("ordering unstable at %d", i)
		}
	}
}

func TestTable_RegisterAndUsedFlag(t *testing.T) {
	tbl := NewTable()
	if tbl.Used() {
		t.Fatalf("empty table reports used")
	}
	tbl.Register(Handler{Event: "TIMER", Kind: Gosub, Target: "100", IsLineNum: true})
	if !tbl.Used() {
		t.Fatalf("used flag not set after Register")
	}
	hs := tbl.Handlers()
	if len(hs) != 1 || !hs[0].Enabled || hs[0].Event != "TIMER" {
		t.Fatalf("handlers = %+v", hs)
	}
}
