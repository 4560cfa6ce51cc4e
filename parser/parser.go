// Package parser implements the recursive-descent, operator-precedence
// parser from spec.md §4.2. The cursor/peek/match/need idiom is grounded
// on the teacher's parser.go; the grammar itself, the OPTION-collecting
// side channel, and the deferred array/function/registry ambiguity are
// this dialect's own (spec.md §4.2's "Ambiguity resolution").
package parser

import (
	"fmt"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/events"
	"github.com/albanread/FasterBASICT/lexer"
	"github.com/albanread/FasterBASICT/token"
)

// Error is a syntax error recorded during parsing. The parser never
// aborts on one: it records the error and resynchronizes at the next
// statement separator (spec.md §4.2's "Contract").
type Error struct {
	Loc token.Location
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Loc, e.Msg)
}

// Parser consumes a token stream and produces an *ast.Program plus the
// CompilerOptions record gathered from OPTION statements along the way.
type Parser struct {
	toks []token.Token
	pos  int

	opts ast.CompilerOptions
	errs []Error

	lastLineNumber int
}

// ParseString lexes and parses src in one step, returning the Program,
// its gathered CompilerOptions (embedded in the Program), and every
// lexical plus syntactic error encountered.
func ParseString(file, src string) (*ast.Program, []lexer.Error, []Error) {
	toks, lexErrs := lexer.New(file, src).Scan()
	p := New(toks)
	prog := p.ParseProgram()
	return prog, lexErrs, p.errs
}

// New creates a Parser over an already-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks, opts: ast.DefaultCompilerOptions()}
}

// Errors returns every syntax error recorded during parsing.
func (p *Parser) Errors() []Error { return p.errs }

func (p *Parser) peek() token.Token { return p.toks[p.pos] }

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[idx]
}

func (p *Parser) prev() token.Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *Parser) atEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	tok := p.toks[p.pos]
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

// check reports whether the current token has kind k.
func (p *Parser) check(k token.Kind) bool { return p.peek().Kind == k }

// checkKeyword reports whether the current token is the named keyword.
func (p *Parser) checkKeyword(name string) bool {
	t := p.peek()
	return t.Kind == token.KEYWORD && t.Normalized == name
}

// match consumes and returns true if the current token has kind k.
func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

// matchKeyword consumes and returns true if the current token is the
// named keyword.
func (p *Parser) matchKeyword(name string) bool {
	if !p.checkKeyword(name) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) errorf(loc token.Location, format string, args ...interface{}) {
	p.errs = append(p.errs, Error{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

// need consumes the current token if it has kind k, or records a
// syntax error and returns the zero Token.
func (p *Parser) need(k token.Kind, context string) token.Token {
	if !p.check(k) {
		p.errorf(p.peek().Loc, "expected %s %s, found %s %q", k, context, p.peek().Kind, p.peek().Lexeme)
		return token.Token{}
	}
	return p.advance()
}

// needKeyword consumes the current token if it is the named keyword, or
// records a syntax error.
func (p *Parser) needKeyword(name string) token.Token {
	if !p.checkKeyword(name) {
		p.errorf(p.peek().Loc, "expected %s, found %s %q", name, p.peek().Kind, p.peek().Lexeme)
		return token.Token{}
	}
	return p.advance()
}

// syncToStatementBoundary discards tokens until the next COLON,
// NEWLINE, or EOF, so one malformed statement doesn't cascade errors
// through the rest of the program (spec.md §4.2's resync rule).
func (p *Parser) syncToStatementBoundary() {
	for !p.atEnd() && !p.check(token.COLON) && !p.check(token.NEWLINE) {
		p.advance()
	}
}

// skipNewlines consumes any run of blank NEWLINE tokens (a blank or
// '-comment-only source line lowers to nothing but a line separator).
func (p *Parser) skipNewlines() {
	for p.match(token.NEWLINE) {
	}
}

// ParseProgram parses the entire token stream into an ast.Program. It
// is total: every recognized line contributes a Line even if some of
// its statements failed to parse and were resynchronized past.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	p.skipNewlines()
	for !p.atEnd() {
		line := p.parseLine()
		prog.Lines = append(prog.Lines, line)
		p.skipNewlines()
	}
	prog.Options = p.opts
	return prog
}

// parseLine parses one logical BASIC line: an optional leading line
// number, an optional leading ":label", and a colon-separated list of
// statements, terminated by NEWLINE or EOF.
func (p *Parser) parseLine() ast.Line {
	loc := p.peek().Loc
	line := ast.Line{Loc: loc}

	if p.check(token.LINENUMBER) {
		tok := p.advance()
		line.Number = tok.Literal.(int)
		if line.Number < 1 || line.Number > 65535 {
			p.errorf(tok.Loc, "line number %d out of range 1..65535", line.Number)
		} else if line.Number <= p.lastLineNumber {
			// Program text must keep line numbers strictly increasing;
			// reordering is the store's job, not the compiler's.
			p.errorf(tok.Loc, "line number %d is not greater than previous line %d", line.Number, p.lastLineNumber)
		} else {
			p.lastLineNumber = line.Number
		}
	}

	if p.check(token.COLON) && p.peekAt(1).Kind == token.IDENT {
		p.advance()
		label := p.advance()
		line.Label = strings.ToUpper(label.Lexeme)
	}

	for {
		if p.atEnd() || p.check(token.NEWLINE) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			line.Statements = append(line.Statements, stmt)
		}
		if !p.match(token.COLON) {
			break
		}
	}
	return line
}

// eventHandlerKindFromKeyword maps a dispatch keyword to events.HandlerKind.
func eventHandlerKindFromKeyword(kw string) (events.HandlerKind, bool) {
	switch kw {
	case "CALL":
		return events.Call, true
	case "GOTO":
		return events.Goto, true
	case "GOSUB":
		return events.Gosub, true
	default:
		return 0, false
	}
}
