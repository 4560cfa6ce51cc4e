package lexer

import (
	"reflect"
	"testing"

	"github.com/albanread/FasterBASICT/token"
)

func scan(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, errs := New("test.bas", src).Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected lexical errors: %v", errs)
	}
	return toks
}

func kindsWithoutEOF(toks []token.Token) []token.Kind {
	if len(toks) == 0 {
		return nil
	}
	end := len(toks)
	if toks[end-1].Kind == token.EOF {
		end--
	}
	out := make([]token.Kind, 0, end)
	for i := 0; i < end; i++ {
		out = append(out, toks[i].Kind)
	}
	return out
}

func wantKinds(t *testing.T, src string, want []token.Kind) []token.Token {
	t.Helper()
	got := scan(t, src)
	gotKinds := kindsWithoutEOF(got)
	if !reflect.DeepEqual(gotKinds, want) {
		t.Fatalf("\nsource:\n%s\nwant kinds:\n%v\ngot kinds:\n%v\n", src, want, gotKinds)
	}
	return got
}

func TestLexer_LineNumber_And_Print(t *testing.T) {
	src := `10 PRINT "HELLO"`
	want := []token.Kind{token.LINENUMBER, token.KEYWORD, token.STRING}
	toks := wantKinds(t, src, want)
	if toks[0].Literal.(int) != 10 {
		t.Fatalf("line number literal = %v, want 10", toks[0].Literal)
	}
	if toks[2].Literal.(string) != "HELLO" {
		t.Fatalf("string literal = %q, want HELLO", toks[2].Literal)
	}
}

func TestLexer_Sigils(t *testing.T) {
	src := `10 LET X% = Y# + Z!`
	toks := scan(t, src)
	var sigils []token.Sigil
	for _, tk := range toks {
		if tk.Kind == token.IDENT {
			sigils = append(sigils, tk.Sigil)
		}
	}
	want := []token.Sigil{token.IntSigil, token.DoubleSigil, token.FloatSigil}
	if !reflect.DeepEqual(sigils, want) {
		t.Fatalf("sigils = %v, want %v", sigils, want)
	}
}

func TestLexer_CompoundOperators(t *testing.T) {
	src := `IF A <= B AND B <> C THEN GOTO 10`
	want := []token.Kind{
		token.KEYWORD, token.IDENT, token.LE, token.IDENT,
		token.KEYWORD, token.IDENT, token.NE, token.IDENT,
		token.KEYWORD, token.KEYWORD, token.INT,
	}
	wantKinds(t, src, want)
}

func TestLexer_Comments(t *testing.T) {
	src := "10 REM a comment\n20 PRINT 1 ' trailing comment\n"
	want := []token.Kind{
		token.LINENUMBER, token.KEYWORD, token.NEWLINE,
		token.LINENUMBER, token.KEYWORD, token.INT, token.NEWLINE,
	}
	toks := wantKinds(t, src, want)
	if toks[1].Normalized != "REM" {
		t.Fatalf("comment keyword = %+v, want REM with text discarded", toks[1])
	}
}

func TestLexer_HexLiteral(t *testing.T) {
	src := `10 LET X% = &HFF`
	toks := scan(t, src)
	for _, tk := range toks {
		if tk.Kind == token.INT && tk.Lexeme == "&HFF" {
			if tk.Literal.(int64) != 255 {
				t.Fatalf("hex literal = %v, want 255", tk.Literal)
			}
			return
		}
	}
	t.Fatalf("no hex INT token found in %v", toks)
}

func TestLexer_FloatAndDoubleExponent(t *testing.T) {
	src := `10 LET A = 1.5E2 : LET B = 2D3`
	toks := scan(t, src)
	var kinds []token.Kind
	for _, tk := range toks {
		if tk.Kind == token.FLOAT || tk.Kind == token.DOUBLE {
			kinds = append(kinds, tk.Kind)
		}
	}
	want := []token.Kind{token.FLOAT, token.DOUBLE}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("numeric kinds = %v, want %v", kinds, want)
	}
}

func TestLexer_UnterminatedString_ProducesError(t *testing.T) {
	_, errs := New("test.bas", "10 PRINT \"oops").Scan()
	if len(errs) == 0 {
		t.Fatalf("expected a lexical error for unterminated string")
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := scan(t, `10 PRINT "a\"b\\c\n"`)
	for _, tk := range toks {
		if tk.Kind == token.STRING {
			if tk.Literal.(string) != "a\"b\\c\n" {
				t.Fatalf("decoded string = %q", tk.Literal)
			}
			return
		}
	}
	t.Fatalf("no STRING token found")
}

func TestLexer_KeywordCaseCanonicalized(t *testing.T) {
	toks := scan(t, "10 print 1")
	if toks[1].Kind != token.KEYWORD || toks[1].Normalized != "PRINT" {
		t.Fatalf("expected lowercase print to canonicalize, got %+v", toks[1])
	}
	if toks[1].Lexeme != "print" {
		t.Fatalf("expected original casing preserved in Lexeme, got %q", toks[1].Lexeme)
	}
}

func TestLexer_MultipleStatementsColonSeparated(t *testing.T) {
	src := `10 X = 1 : Y = 2 : PRINT X`
	want := []token.Kind{
		token.LINENUMBER, token.IDENT, token.EQ, token.INT, token.COLON,
		token.IDENT, token.EQ, token.INT, token.COLON,
		token.KEYWORD, token.IDENT,
	}
	wantKinds(t, src, want)
}
