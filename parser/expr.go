package parser

import (
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/token"
)

// parseExpr parses a full expression at the lowest precedence level
// (OR), per the ladder in spec.md §4.2: OR, AND, NOT, comparisons,
// additive, multiplicative, integer-divide, MOD, unary, power, primary.
func (p *Parser) parseExpr() ast.Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.checkKeyword("OR") || p.checkKeyword("XOR") {
		op := p.peek().Normalized
		loc := p.advance().Loc
		right := p.parseAnd()
		left = &ast.BinaryExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	left := p.parseNot()
	for p.checkKeyword("AND") {
		loc := p.advance().Loc
		right := p.parseNot()
		left = &ast.BinaryExpr{Loc: loc, Op: "AND", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() ast.Expression {
	if p.checkKeyword("NOT") {
		loc := p.advance().Loc
		operand := p.parseNot()
		return &ast.UnaryExpr{Loc: loc, Op: "NOT", Operand: operand}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	for {
		var op string
		switch {
		case p.check(token.EQ):
			op = "="
		case p.check(token.NE):
			op = "<>"
		case p.check(token.LT):
			op = "<"
		case p.check(token.LE):
			op = "<="
		case p.check(token.GT):
			op = ">"
		case p.check(token.GE):
			op = ">="
		default:
			return left
		}
		loc := p.advance().Loc
		right := p.parseAdditive()
		left = &ast.BinaryExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for {
		var op string
		switch {
		case p.check(token.PLUS):
			op = "+"
		case p.check(token.MINUS):
			op = "-"
		default:
			return left
		}
		loc := p.advance().Loc
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseIntDivide()
	for {
		var op string
		switch {
		case p.check(token.STAR):
			op = "*"
		case p.check(token.SLASH):
			op = "/"
		default:
			return left
		}
		loc := p.advance().Loc
		right := p.parseIntDivide()
		left = &ast.BinaryExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseIntDivide() ast.Expression {
	left := p.parseMod()
	for p.check(token.BACKSLASH) {
		loc := p.advance().Loc
		right := p.parseMod()
		left = &ast.BinaryExpr{Loc: loc, Op: "\\", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMod() ast.Expression {
	left := p.parseUnary()
	for p.checkKeyword("MOD") {
		loc := p.advance().Loc
		right := p.parseUnary()
		left = &ast.BinaryExpr{Loc: loc, Op: "MOD", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.check(token.MINUS) || p.check(token.PLUS) {
		tok := p.advance()
		op := "-"
		if tok.Kind == token.PLUS {
			op = "+"
		}
		operand := p.parseUnary()
		return &ast.UnaryExpr{Loc: tok.Loc, Op: op, Operand: operand}
	}
	return p.parsePower()
}

// parsePower is right-associative: 2^3^2 == 2^(3^2).
func (p *Parser) parsePower() ast.Expression {
	left := p.parsePrimary()
	if p.check(token.CARET) {
		loc := p.advance().Loc
		right := p.parseUnary()
		return &ast.BinaryExpr{Loc: loc, Op: "^", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.peek()

	switch tok.Kind {
	case token.INT:
		p.advance()
		return &ast.NumberExpr{Loc: tok.Loc, IsInt: true, Int: tok.Literal.(int64)}
	case token.FLOAT:
		p.advance()
		return &ast.NumberExpr{Loc: tok.Loc, Float: tok.Literal.(float64)}
	case token.DOUBLE:
		p.advance()
		return &ast.NumberExpr{Loc: tok.Loc, Float: tok.Literal.(float64), IsDouble: true}
	case token.STRING:
		p.advance()
		return &ast.StringExpr{Loc: tok.Loc, Value: tok.Literal.(string), Unicode: p.opts.Unicode}
	case token.LPAREN:
		p.advance()
		inner := p.parseExpr()
		p.need(token.RPAREN, "to close parenthesized expression")
		return inner
	case token.KEYWORD:
		if tok.Normalized == "IIF" {
			return p.parseIIF()
		}
	case token.IDENT:
		return p.parseIdentExpr()
	}

	p.errorf(tok.Loc, "unexpected token %s %q in expression", tok.Kind, tok.Lexeme)
	p.advance()
	return &ast.NumberExpr{Loc: tok.Loc, IsInt: true}
}

func (p *Parser) parseIIF() ast.Expression {
	loc := p.advance().Loc
	p.need(token.LPAREN, "after IIF")
	cond := p.parseExpr()
	p.need(token.COMMA, "after IIF condition")
	then := p.parseExpr()
	p.need(token.COMMA, "after IIF true branch")
	els := p.parseExpr()
	p.need(token.RPAREN, "to close IIF")
	return &ast.IIFExpr{Loc: loc, Cond: cond, Then: then, Else: els}
}

// parseIdentExpr parses a bare variable reference or the ambiguous
// IDENT(args) call form, which the parser always shapes as
// ast.ArrayAccessExpr per spec.md §4.2 ("Ambiguity resolution"),
// deferring array/function/registry disambiguation to the analyzer.
func (p *Parser) parseIdentExpr() ast.Expression {
	tok := p.advance()
	name, normalized := p.normalizeName(tok)

	if p.check(token.LPAREN) {
		p.advance()
		var args []ast.Expression
		if !p.check(token.RPAREN) {
			args = append(args, p.parseExpr())
			for p.match(token.COMMA) {
				args = append(args, p.parseExpr())
			}
		}
		p.need(token.RPAREN, "to close argument list")
		return &ast.ArrayAccessExpr{Loc: tok.Loc, Name: name, Normalized: normalized, Args: args}
	}

	return &ast.VariableExpr{Loc: tok.Loc, Name: name, Sigil: byte(tok.Sigil), Normalized: normalized}
}

// normalizeName returns (user-facing spelling, normalized lookup key)
// for an identifier token, applying spec.md §4.2's name-normalization
// rule: bare name uppercased plus a type suffix derived from the sigil
// (or FLOAT's empty suffix when none is present).
func (p *Parser) normalizeName(tok token.Token) (name, normalized string) {
	name = tok.Lexeme
	if tok.Sigil != token.NoSigil {
		name += string(tok.Sigil)
	}
	bare := strings.ToUpper(tok.Lexeme)
	typ := ast.TypeFromSigil(byte(tok.Sigil), p.opts.Unicode)
	normalized = bare + ast.NormalizedSuffix(typ)
	return name, normalized
}
