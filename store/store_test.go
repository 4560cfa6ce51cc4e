package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := New()
	if err := s.Set(10, `PRINT "HI"`); err != nil {
		t.Fatal(err)
	}
	if code, ok := s.Get(10); !ok || code != `PRINT "HI"` {
		t.Fatalf("Get(10) = %q, %v", code, ok)
	}
	if !s.Modified() {
		t.Fatalf("modified flag not set")
	}
	s.Delete(10)
	if s.Has(10) {
		t.Fatalf("line 10 survived deletion")
	}
}

func TestStore_EmptyTextDeletesLine(t *testing.T) {
	s := New()
	_ = s.Set(10, "PRINT 1")
	_ = s.Set(10, "   ")
	if s.Has(10) {
		t.Fatalf("blank Set should delete the line")
	}
}

func TestStore_LineNumberBounds(t *testing.T) {
	s := New()
	if err := s.Set(1, "PRINT 1"); err != nil {
		t.Fatalf("line 1 rejected: %v", err)
	}
	if err := s.Set(65535, "PRINT 1"); err != nil {
		t.Fatalf("line 65535 rejected: %v", err)
	}
	if err := s.Set(0, "PRINT 1"); err == nil {
		t.Fatalf("line 0 accepted")
	}
	if err := s.Set(65536, "PRINT 1"); err == nil {
		t.Fatalf("line 65536 accepted")
	}
}

func TestStore_Ordering(t *testing.T) {
	s := New()
	_ = s.Set(30, "PRINT 3")
	_ = s.Set(10, "PRINT 1")
	_ = s.Set(20, "PRINT 2")
	want := []int{10, 20, 30}
	got := s.Numbers()
	if len(got) != 3 {
		t.Fatalf("numbers = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", got, want)
		}
	}
	if s.First() != 10 || s.Last() != 30 {
		t.Fatalf("first/last = %d/%d", s.First(), s.Last())
	}
	if s.Next(10) != 20 || s.Prev(30) != 20 {
		t.Fatalf("next/prev navigation broken")
	}
	if s.Next(30) != 0 || s.Prev(10) != 0 {
		t.Fatalf("open-ended next/prev should return 0")
	}
}

func TestStore_Generate(t *testing.T) {
	s := New()
	_ = s.Set(10, `PRINT "A"`)
	_ = s.Set(20, "END")
	want := "10 PRINT \"A\"\n20 END\n"
	if got := s.Generate(); got != want {
		t.Fatalf("Generate = %q, want %q", got, want)
	}
	if got := s.GenerateRange(15, 30); got != "20 END\n" {
		t.Fatalf("GenerateRange = %q", got)
	}
}

func TestStore_RenumberWithReferences(t *testing.T) {
	// spec.md §8.4 scenario 6.
	s := New()
	_ = s.Set(5, "FOR I=1 TO 3")
	_ = s.Set(7, "GOTO 13")
	_ = s.Set(13, "PRINT I")
	_ = s.Set(15, "NEXT I")

	if !s.Renumber(100, 10) {
		t.Fatalf("renumber reported fallback")
	}

	want := map[int]string{
		100: "FOR I=1 TO 3",
		110: "GOTO 120",
		120: "PRINT I",
		130: "NEXT I",
	}
	for n, code := range want {
		got, ok := s.Get(n)
		if !ok || got != code {
			t.Fatalf("line %d = %q, %v; want %q\n%s", n, got, ok, code, s.Generate())
		}
	}
}

func TestStore_RenumberIdempotent(t *testing.T) {
	// spec.md §8.2: renumber is idempotent up to line substitution.
	s := New()
	_ = s.Set(5, "IF X THEN 13")
	_ = s.Set(7, `PRINT "a:b"`)
	_ = s.Set(13, "ON X GOSUB 5, 7")
	_ = s.Set(21, "RESTORE 5")

	s.Renumber(10, 10)
	first := s.Generate()
	s.Renumber(10, 10)
	second := s.Generate()
	if first != second {
		t.Fatalf("renumber not idempotent:\n%q\n%q", first, second)
	}
}

func TestStore_RenumberPreservesLabelsAndStrings(t *testing.T) {
	s := New()
	_ = s.Set(10, "GOTO :TOP")
	_ = s.Set(20, `PRINT "GOTO 10"`)
	_ = s.Set(30, "REM GOTO 10")
	s.Renumber(100, 10)

	if code, _ := s.Get(100); code != "GOTO :TOP" {
		t.Fatalf("label target altered: %q", code)
	}
	if code, _ := s.Get(110); code != `PRINT "GOTO 10"` {
		t.Fatalf("string contents altered: %q", code)
	}
	if code, _ := s.Get(120); code != "REM GOTO 10" {
		t.Fatalf("comment contents altered: %q", code)
	}
}

func TestStore_RenumberOnChains(t *testing.T) {
	s := New()
	_ = s.Set(10, "ON K GOTO 30, 40, 50")
	_ = s.Set(30, "PRINT 1")
	_ = s.Set(40, "PRINT 2")
	_ = s.Set(50, "PRINT 3")
	s.Renumber(100, 10)
	if code, _ := s.Get(100); code != "ON K GOTO 110, 120, 130" {
		t.Fatalf("ON chain rewrite = %q", code)
	}
}

func TestStore_RenumberThenElseTargets(t *testing.T) {
	s := New()
	_ = s.Set(10, "IF X THEN 30 ELSE 40")
	_ = s.Set(30, "PRINT 1")
	_ = s.Set(40, "PRINT 2")
	s.Renumber(100, 10)
	if code, _ := s.Get(100); code != "IF X THEN 110 ELSE 120" {
		t.Fatalf("THEN/ELSE rewrite = %q", code)
	}
}

func TestStore_RenumberFallbackOnUnterminatedString(t *testing.T) {
	s := New()
	_ = s.Set(10, `PRINT "oops`)
	_ = s.Set(20, "GOTO 10")
	if s.Renumber(100, 10) {
		t.Fatalf("expected positional fallback for malformed line")
	}
	// Positional renumber still happened, references untouched.
	if code, _ := s.Get(110); code != "GOTO 10" {
		t.Fatalf("fallback altered references: %q", code)
	}
}

func TestStore_AutoNumbering(t *testing.T) {
	s := New()
	_ = s.Set(20, "PRINT 2")
	s.SetAutoMode(true, 10, 10)
	if n := s.NextAuto(); n != 10 {
		t.Fatalf("first auto line = %d, want 10", n)
	}
	_ = s.Set(10, "PRINT 1")
	// 20 exists; the cursor skips it.
	if n := s.NextAuto(); n != 30 {
		t.Fatalf("auto line after occupied slot = %d, want 30", n)
	}
}

func TestStore_Statistics(t *testing.T) {
	s := New()
	_ = s.Set(10, "PRINT 1")
	_ = s.Set(20, "PRINT 2")
	_ = s.Set(40, "END")
	stats := s.Statistics()
	if stats.LineCount != 3 || stats.MinLineNumber != 10 || stats.MaxLineNumber != 40 {
		t.Fatalf("stats = %+v", stats)
	}
	if !stats.HasGaps {
		t.Fatalf("10,20,40 should report gaps")
	}

	s2 := New()
	_ = s2.Set(10, "PRINT 1")
	_ = s2.Set(20, "PRINT 2")
	_ = s2.Set(30, "END")
	if s2.Statistics().HasGaps {
		t.Fatalf("uniform numbering should not report gaps")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog")

	s := New()
	_ = s.Set(10, `PRINT "HI"`)
	_ = s.Set(20, "END")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	if s.Filename() != path+".bas" {
		t.Fatalf("default extension not applied: %q", s.Filename())
	}
	if s.Modified() {
		t.Fatalf("save should clear the modified flag")
	}

	loaded := New()
	if err := loaded.Load(path + ".bas"); err != nil {
		t.Fatal(err)
	}
	if loaded.Generate() != s.Generate() {
		t.Fatalf("round trip mismatch:\n%q\n%q", loaded.Generate(), s.Generate())
	}
}

func TestStore_LoadSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.bas")
	content := "# saved by someone\n\n10 PRINT 1\n20 END\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New()
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	if s.LineCount() != 2 || !s.Has(10) || !s.Has(20) {
		t.Fatalf("loaded lines = %v", s.Numbers())
	}
}

func TestStore_FormattedListingIndents(t *testing.T) {
	s := New()
	_ = s.Set(10, "FOR I = 1 TO 3")
	_ = s.Set(20, "PRINT I")
	_ = s.Set(30, "NEXT I")
	out := s.FormattedListing()
	want := "   10 FOR I = 1 TO 3\n   20   PRINT I\n   30 NEXT I\n"
	if out != want {
		t.Fatalf("listing = %q, want %q", out, want)
	}
}
