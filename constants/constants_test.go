package constants

import "testing"

func TestManager_AddUpsertsSameIndex(t *testing.T) {
	m := New()
	i1 := m.Add("X", IntValue(1))
	i2 := m.Add("X", IntValue(2))
	if i1 != i2 {
		t.Fatalf("Add on existing name returned different index: %d vs %d", i1, i2)
	}
	if m.GetAsInt(i1) != 2 {
		t.Fatalf("value not updated: got %d", m.GetAsInt(i1))
	}
}

func TestManager_IndexOfMissing(t *testing.T) {
	m := New()
	if idx := m.IndexOf("NOPE"); idx != -1 {
		t.Fatalf("IndexOf missing = %d, want -1", idx)
	}
}

func TestManager_Coercions(t *testing.T) {
	m := New()
	i := m.Add("N", IntValue(42))
	f := m.Add("F", FloatValue(3.5))
	s := m.Add("S", StringValue("7"))

	if m.GetAsDouble(i) != 42.0 {
		t.Fatalf("int as double = %v", m.GetAsDouble(i))
	}
	if m.GetAsInt(f) != 3 {
		t.Fatalf("float as int = %v", m.GetAsInt(f))
	}
	if m.GetAsInt(s) != 7 {
		t.Fatalf("string as int = %v", m.GetAsInt(s))
	}
}

func TestManager_StringCoercionFailureIsZero(t *testing.T) {
	m := New()
	idx := m.Add("BAD", StringValue("not a number"))
	if m.GetAsInt(idx) != 0 {
		t.Fatalf("bad string as int = %v, want 0", m.GetAsInt(idx))
	}
	if m.GetAsDouble(idx) != 0 {
		t.Fatalf("bad string as double = %v, want 0", m.GetAsDouble(idx))
	}
}

func TestManager_CopyFromPreservesIndices(t *testing.T) {
	src := New()
	src.Add("A", IntValue(1))
	src.Add("B", IntValue(2))

	dst := New()
	dst.Add("ZZZ", IntValue(99))
	dst.CopyFrom(src)

	if dst.Count() != 2 {
		t.Fatalf("count after CopyFrom = %d, want 2", dst.Count())
	}
	if dst.IndexOf("A") != src.IndexOf("A") || dst.IndexOf("B") != src.IndexOf("B") {
		t.Fatalf("indices not preserved across CopyFrom")
	}
}

func TestManager_AddPredefined(t *testing.T) {
	m := New()
	m.AddPredefined()

	cases := map[string]int64{
		"TRUE": 1, "FALSE": 0,
		"BLACK": 0x000000, "WHITE": 0xFFFFFF,
		"TEXT": 0, "ULTRARES": 4,
		"WAVE_PHYSICAL":      7,
		"ST_PATTERN_OUTLINE": 100,
		"ST_PATTERN_GRID":    109,
		"COLOUR_15":          0xFFBBBBBB,
	}
	for name, want := range cases {
		idx := m.IndexOf(name)
		if idx < 0 {
			t.Fatalf("predefined constant %s missing", name)
		}
		if got := m.GetAsInt(idx); got != want {
			t.Fatalf("%s = %#x, want %#x", name, got, want)
		}
	}

	piIdx := m.IndexOf("PI")
	if piIdx < 0 {
		t.Fatalf("PI missing")
	}
	if got := m.GetAsDouble(piIdx); got < 3.14159 || got > 3.1416 {
		t.Fatalf("PI = %v", got)
	}

	if len(m.Names()) != m.Count() {
		t.Fatalf("Names length %d != Count %d", len(m.Names()), m.Count())
	}
}
