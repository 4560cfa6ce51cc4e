package diag

import (
	"strings"
	"testing"

	"github.com/albanread/FasterBASICT/token"
)

func TestList_SeveritySplit(t *testing.T) {
	var l List
	l.Add(Error, Semantic, "UNDEFINED_LINE", token.Location{Line: 3, Column: 1}, "line %d is not defined", 99)
	l.Add(Warning, Semantic, "UNUSED_VARIABLE", token.Location{Line: 1, Column: 5}, "variable X is unused")

	if !l.HasErrors() {
		t.Fatalf("HasErrors = false")
	}
	if len(l.Errors()) != 1 || len(l.Warnings()) != 1 {
		t.Fatalf("split = %d errors, %d warnings", len(l.Errors()), len(l.Warnings()))
	}
}

func TestRender_CaretPointsAtColumn(t *testing.T) {
	src := "10 PRINT 1\n20 GOTO 99\n30 END"
	d := Diagnostic{
		Severity: Error,
		Stage:    Semantic,
		Code:     "UNDEFINED_LINE",
		Message:  "line 99 is not defined",
		Loc:      token.Location{File: "test.bas", Line: 2, Column: 9},
	}
	out := Render(src, d)

	if !strings.Contains(out, "UNDEFINED_LINE") || !strings.Contains(out, "test.bas") {
		t.Fatalf("header incomplete:\n%s", out)
	}
	if !strings.Contains(out, "    2 | 20 GOTO 99") {
		t.Fatalf("source line missing:\n%s", out)
	}
	// The caret sits under column 9 (the "99").
	if !strings.Contains(out, "      |         ^") {
		t.Fatalf("caret misplaced:\n%s", out)
	}
	// One line of context each side.
	if !strings.Contains(out, "    1 | 10 PRINT 1") || !strings.Contains(out, "    3 | 30 END") {
		t.Fatalf("context lines missing:\n%s", out)
	}
}

func TestRender_OutOfRangeLocationIsClamped(t *testing.T) {
	d := Diagnostic{Severity: Error, Stage: Lexical, Code: "LEX_ERROR", Message: "x", Loc: token.Location{Line: 99, Column: 1}}
	out := Render("only line", d)
	if !strings.Contains(out, "only line") {
		t.Fatalf("clamping failed:\n%s", out)
	}
}
