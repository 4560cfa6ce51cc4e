// Package token defines the lexical token model shared by the lexer,
// parser, and every diagnostic that needs to blame a source location.
package token

import "fmt"

// Location is a (file, line, column) triple. Line and column are 1-based.
// Attached to every Token and, from there, to every AST node and IR
// instruction so runtime errors resolve back to BASIC source.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid reports whether the location carries a usable line number.
func (l Location) IsValid() bool { return l.Line > 0 }

// Kind enumerates the token classes the lexer produces.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	// Structural
	LINENUMBER // integer that begins a logical line
	NEWLINE
	COLON // statement separator

	// Punctuation
	LPAREN
	RPAREN
	COMMA
	SEMICOLON
	HASH // "#" file-channel marker, as in OPEN ... AS #1

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	BACKSLASH // integer divide "\"
	CARET     // power "^"
	EQ        // "="
	NE        // "<>"
	LT
	LE
	GT
	GE

	// Sigils, carried as part of IDENT's lexeme but tagged for clarity
	IDENT
	LABEL // ":NAME" jump target

	// Literals
	INT
	FLOAT
	DOUBLE
	STRING

	// Keywords (canonicalized uppercase)
	KEYWORD
)

//go:generate stringer -type=Kind

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case ILLEGAL:
		return "ILLEGAL"
	case LINENUMBER:
		return "LINENUMBER"
	case NEWLINE:
		return "NEWLINE"
	case COLON:
		return "COLON"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case COMMA:
		return "COMMA"
	case SEMICOLON:
		return "SEMICOLON"
	case HASH:
		return "HASH"
	case PLUS:
		return "PLUS"
	case MINUS:
		return "MINUS"
	case STAR:
		return "STAR"
	case SLASH:
		return "SLASH"
	case BACKSLASH:
		return "BACKSLASH"
	case CARET:
		return "CARET"
	case EQ:
		return "EQ"
	case NE:
		return "NE"
	case LT:
		return "LT"
	case LE:
		return "LE"
	case GT:
		return "GT"
	case GE:
		return "GE"
	case IDENT:
		return "IDENT"
	case LABEL:
		return "LABEL"
	case INT:
		return "INT"
	case FLOAT:
		return "FLOAT"
	case DOUBLE:
		return "DOUBLE"
	case STRING:
		return "STRING"
	case KEYWORD:
		return "KEYWORD"
	default:
		return "UNKNOWN"
	}
}

// Sigil is the single suffix character encoding an identifier's type.
type Sigil byte

const (
	NoSigil     Sigil = 0
	IntSigil    Sigil = '%'
	DoubleSigil Sigil = '#'
	FloatSigil  Sigil = '!'
	StringSigil Sigil = '$'
	ArraySigil  Sigil = '&' // rarely used in the dialect; recognized by the lexer
)

// Token is a single lexical unit: its kind, the raw source text, its
// location, and (for literals) the parsed value.
//
// Keywords are canonicalized to uppercase in Lexeme; identifier casing
// is preserved verbatim. The lexer never emits comments.
type Token struct {
	Kind    Kind
	Lexeme  string
	Loc     Location
	Literal interface{} // int64, float64, or string for literal kinds

	// Sigil is set only for IDENT tokens that carried a trailing sigil.
	Sigil Sigil

	// Normalized is the sigil-free, suffix-normalized form used for
	// symbol table lookups (e.g. "X$" normalizes to "X_STRING").
	// Populated by the parser, not the lexer, since normalization also
	// depends on OPTION UNICODE.
	Normalized string
}

func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s(%q=%v)@%s", t.Kind, t.Lexeme, t.Literal, t.Loc)
	}
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Loc)
}
