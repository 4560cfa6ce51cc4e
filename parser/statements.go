package parser

import (
	"strings"

	"github.com/albanread/FasterBASICT/ast"
	"github.com/albanread/FasterBASICT/events"
	"github.com/albanread/FasterBASICT/token"
)

// parseStatement dispatches on the current token to one of the
// statement parsers. When no statement was produced and no token was
// consumed, it resynchronizes to the next COLON/NEWLINE so the line
// still closes out cleanly (spec.md §4.2's "Contract"). A statement
// parser that hits an error part-way records it and returns what it
// built.
func (p *Parser) parseStatement() ast.Statement {
	before := p.pos
	stmt := p.parseStatementInner()
	if stmt == nil && p.pos == before {
		// Nothing was consumed and nothing was produced: force progress
		// so a single unrecognized token can't loop parseLine forever.
		p.syncToStatementBoundary()
	}
	return stmt
}

func (p *Parser) parseStatementInner() ast.Statement {
	tok := p.peek()

	if tok.Kind == token.IDENT {
		return p.parseAssignmentOrCall()
	}

	if tok.Kind != token.KEYWORD {
		p.errorf(tok.Loc, "expected a statement, found %s %q", tok.Kind, tok.Lexeme)
		p.syncToStatementBoundary()
		return nil
	}

	switch tok.Normalized {
	case "PRINT":
		return p.parsePrint()
	case "CONSOLE":
		return p.parseConsole()
	case "INPUT":
		return p.parseInput()
	case "LET":
		p.advance()
		return p.parseAssignmentOrCall()
	case "IF":
		return p.parseIf()
	case "CASE":
		return p.parseCase()
	case "FOR":
		return p.parseFor()
	case "NEXT":
		return p.parseNext()
	case "WHILE":
		return p.parseWhile()
	case "WEND":
		return &ast.WendStmt{Loc: p.advance().Loc}
	case "REPEAT":
		return &ast.RepeatStmt{Loc: p.advance().Loc}
	case "UNTIL":
		loc := p.advance().Loc
		return &ast.UntilStmt{Loc: loc, Cond: p.parseExpr()}
	case "DO":
		return p.parseDo()
	case "LOOP":
		return p.parseLoop()
	case "EXIT":
		return p.parseExit()
	case "GOTO":
		return p.parseGoto()
	case "GOSUB":
		return p.parseGosub()
	case "RETURN":
		return p.parseReturn()
	case "ON":
		return p.parseOn()
	case "DIM":
		return p.parseDim()
	case "DEF":
		return p.parseDefFn()
	case "FUNCTION":
		return p.parseFunction()
	case "SUB":
		return p.parseSub()
	case "CALL":
		return p.parseCall()
	case "DATA":
		return p.parseData()
	case "READ":
		return p.parseRead()
	case "RESTORE":
		return p.parseRestore()
	case "OPEN":
		return p.parseOpen()
	case "CLOSE":
		return p.parseClose()
	case "CONSTANT":
		return p.parseConstant()
	case "REM":
		loc := p.advance().Loc
		return &ast.RemStmt{Loc: loc}
	case "END":
		return p.parseEnd()
	case "PLAY":
		return p.parsePlay()
	case "OPTION":
		p.parseOption()
		return nil
	default:
		p.errorf(tok.Loc, "unexpected keyword %s in statement position", tok.Normalized)
		p.syncToStatementBoundary()
		return nil
	}
}

// parseOption parses OPTION BASE/UNICODE/ERROR/CANCELLABLE/EXPLICIT and
// records it into p.opts; options never appear as AST statements
// (spec.md §4.2).
func (p *Parser) parseOption() {
	p.advance() // OPTION
	if !p.check(token.KEYWORD) && !p.check(token.IDENT) {
		p.errorf(p.peek().Loc, "expected an OPTION name")
		return
	}
	name := strings.ToUpper(p.advance().Lexeme)
	switch name {
	case "BASE":
		tok := p.need(token.INT, "after OPTION BASE")
		if n, ok := tok.Literal.(int64); ok {
			p.opts.Base = int(n)
		}
	case "UNICODE":
		p.opts.Unicode = true
	case "ERROR":
		p.opts.ErrorHandling = p.parseOnOff()
	case "CANCELLABLE":
		p.opts.Cancellable = p.parseOnOff()
	case "EXPLICIT":
		p.opts.Explicit = true
	default:
		p.errorf(p.prev().Loc, "unknown OPTION %s", name)
	}
}

func (p *Parser) parseOnOff() bool {
	if p.checkKeyword("ON") {
		p.advance()
		return true
	}
	if p.checkKeyword("OFF") {
		p.advance()
		return false
	}
	p.errorf(p.peek().Loc, "expected ON or OFF")
	return false
}

func (p *Parser) parsePrintItems() []ast.PrintItem {
	var items []ast.PrintItem
	for {
		if p.atEnd() || p.check(token.NEWLINE) || p.check(token.COLON) {
			break
		}
		val := p.parseExpr()
		sep := ast.SepNewline
		switch {
		case p.match(token.COMMA):
			sep = ast.SepComma
		case p.match(token.SEMICOLON):
			sep = ast.SepSemicolon
		}
		items = append(items, ast.PrintItem{Value: val, Sep: sep})
		if sep == ast.SepNewline {
			break
		}
	}
	return items
}

func (p *Parser) parsePrint() ast.Statement {
	loc := p.advance().Loc
	if p.checkKeyword("AT") {
		p.advance()
		x := p.parseExpr()
		p.need(token.COMMA, "between PRINT AT coordinates")
		y := p.parseExpr()
		p.need(token.COLON, "after PRINT AT coordinates")
		return &ast.PrintAtStmt{Loc: loc, X: x, Y: y, Items: p.parsePrintItems()}
	}
	return &ast.PrintStmt{Loc: loc, Items: p.parsePrintItems()}
}

func (p *Parser) parseConsole() ast.Statement {
	loc := p.advance().Loc
	var args []ast.Expression
	if !p.atEnd() && !p.check(token.NEWLINE) && !p.check(token.COLON) {
		args = append(args, p.parseExpr())
		for p.match(token.COMMA) {
			args = append(args, p.parseExpr())
		}
	}
	return &ast.ConsoleStmt{Loc: loc, Args: args}
}

func (p *Parser) parseInputTargets() []ast.Expression {
	var targets []ast.Expression
	targets = append(targets, p.parseExpr())
	for p.match(token.COMMA) {
		targets = append(targets, p.parseExpr())
	}
	return targets
}

// parseLeadingPrompt consumes an optional "prompt";  prefix common to
// INPUT and INPUT AT.
func (p *Parser) parseLeadingPrompt() ast.Expression {
	if p.check(token.STRING) && p.peekAt(1).Kind == token.SEMICOLON {
		prompt := p.parseExpr()
		p.advance() // the semicolon
		return prompt
	}
	return nil
}

func (p *Parser) parseInput() ast.Statement {
	loc := p.advance().Loc
	if p.checkKeyword("AT") {
		p.advance()
		x := p.parseExpr()
		p.need(token.COMMA, "between INPUT AT coordinates")
		y := p.parseExpr()
		p.need(token.COLON, "after INPUT AT coordinates")
		prompt := p.parseLeadingPrompt()
		return &ast.InputAtStmt{Loc: loc, X: x, Y: y, Prompt: prompt, Targets: p.parseInputTargets()}
	}
	prompt := p.parseLeadingPrompt()
	return &ast.InputStmt{Loc: loc, Prompt: prompt, Targets: p.parseInputTargets()}
}

// parseAssignmentOrCall handles every statement that begins with a bare
// identifier: LET-less assignment, MID$(...) = value splice assignment,
// a SUB-style call shorthand, or a registry command/function used as a
// statement.
func (p *Parser) parseAssignmentOrCall() ast.Statement {
	tok := p.peek()
	// MID$ lexes as IDENT "MID" with a "$" sigil; at statement position
	// followed by "(" it can only be the splice-assignment form.
	if tok.Kind == token.IDENT && tok.Sigil == token.StringSigil &&
		strings.EqualFold(tok.Lexeme, "MID") && p.peekAt(1).Kind == token.LPAREN {
		return p.parseMidAssign()
	}

	target := p.parseIdentExpr()

	if p.check(token.EQ) {
		loc := p.advance().Loc
		value := p.parseExpr()
		return &ast.LetStmt{Loc: loc, Target: target, Value: value}
	}

	// No "=" followed: this is a call-shaped statement. If it parsed as
	// ArrayAccessExpr, treat it as ExpressionStmt (registry command or
	// implicit-array call); the semantic analyzer resolves identity.
	if call, ok := target.(*ast.ArrayAccessExpr); ok {
		return &ast.ExpressionStmt{Loc: call.Loc, Call: call}
	}
	if v, ok := target.(*ast.VariableExpr); ok {
		return &ast.SimpleStmt{Loc: v.Loc, Name: v.Name}
	}
	p.errorf(tok.Loc, "expected assignment or call, found bare expression")
	return nil
}

func (p *Parser) parseMidAssign() ast.Statement {
	loc := p.advance().Loc
	p.need(token.LPAREN, "after MID$")
	target := p.parseExpr()
	p.need(token.COMMA, "after MID$ target")
	start := p.parseExpr()
	var length ast.Expression
	if p.match(token.COMMA) {
		length = p.parseExpr()
	}
	p.need(token.RPAREN, "to close MID$")
	p.need(token.EQ, "after MID$(...) target")
	value := p.parseExpr()
	return &ast.MidAssignStmt{Loc: loc, Target: target, Start: start, Length: length, Value: value}
}

// parseStatementList collects the body of a block construct (multi-line
// IF, CASE, FUNCTION, SUB) until one of the stop keywords. Interior
// line numbers are consumed: statements inside a block construct belong
// to the construct, not to the program's line map.
func (p *Parser) parseStatementList(stops ...string) []ast.Statement {
	var out []ast.Statement
	p.skipSeparators()
	for {
		if p.atEnd() {
			break
		}
		stop := false
		if p.check(token.KEYWORD) {
			for _, s := range stops {
				if p.peek().Normalized == s {
					stop = true
					break
				}
			}
		}
		if stop {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			out = append(out, stmt)
		}
		if !p.match(token.COLON) {
			p.skipSeparators()
		}
	}
	return out
}

// skipSeparators consumes newlines and the line numbers that lead the
// lines inside a block construct.
func (p *Parser) skipSeparators() {
	for {
		if p.match(token.NEWLINE) {
			continue
		}
		if p.check(token.LINENUMBER) {
			p.advance()
			continue
		}
		return
	}
}

func (p *Parser) parseIf() ast.Statement {
	loc := p.advance().Loc
	cond := p.parseExpr()
	p.needKeyword("THEN")

	// Single-line form: IF cond THEN stmt[:stmt...] [ELSE stmt[:stmt...]]
	// with no ENDIF. "THEN 100" and "ELSE 100" are implicit GOTOs.
	if !p.check(token.NEWLINE) {
		body := p.parseInlineBranch()
		var elseBody []ast.Statement
		if p.matchKeyword("ELSE") {
			elseBody = p.parseInlineBranch()
		}
		return &ast.IfStmt{Loc: loc, Branches: []ast.IfBranch{{Cond: cond, Body: body}}, Else: elseBody}
	}

	branches := []ast.IfBranch{{Cond: cond, Body: p.parseStatementList("ELSEIF", "ELSE", "ENDIF")}}
	for p.checkKeyword("ELSEIF") {
		p.advance()
		c := p.parseExpr()
		p.needKeyword("THEN")
		branches = append(branches, ast.IfBranch{Cond: c, Body: p.parseStatementList("ELSEIF", "ELSE", "ENDIF")})
	}
	var elseBody []ast.Statement
	if p.matchKeyword("ELSE") {
		elseBody = p.parseStatementList("ENDIF")
	}
	p.needKeyword("ENDIF")
	return &ast.IfStmt{Loc: loc, Branches: branches, Else: elseBody}
}

// parseInlineBranch parses the inline body of a single-line IF arm: a
// bare line number (implicit GOTO) or a colon-separated statement run.
func (p *Parser) parseInlineBranch() []ast.Statement {
	if p.check(token.INT) {
		tok := p.advance()
		n, _ := tok.Literal.(int64)
		return []ast.Statement{&ast.GotoStmt{Loc: tok.Loc, Target: ast.Target{Loc: tok.Loc, Line: int(n)}}}
	}
	var body []ast.Statement
	for {
		if p.checkKeyword("ELSE") || p.atEnd() || p.check(token.NEWLINE) {
			break
		}
		stmt := p.parseStatementInner()
		if stmt != nil {
			body = append(body, stmt)
		}
		if !p.match(token.COLON) {
			break
		}
	}
	return body
}

func (p *Parser) parseCase() ast.Statement {
	loc := p.advance().Loc
	subject := p.parseExpr()
	p.needKeyword("OF")
	p.skipSeparators()

	var whens []ast.WhenClause
	for p.checkKeyword("WHEN") {
		p.advance()
		values := []ast.Expression{p.parseExpr()}
		for p.match(token.COMMA) {
			values = append(values, p.parseExpr())
		}
		body := p.parseStatementList("WHEN", "OTHERWISE", "ENDCASE")
		whens = append(whens, ast.WhenClause{Values: values, Body: body})
	}
	var otherwise []ast.Statement
	if p.matchKeyword("OTHERWISE") {
		otherwise = p.parseStatementList("ENDCASE")
	}
	p.needKeyword("ENDCASE")
	return &ast.CaseStmt{Loc: loc, Subject: subject, Whens: whens, Otherwise: otherwise}
}

func (p *Parser) parseFor() ast.Statement {
	loc := p.advance().Loc
	nameTok := p.need(token.IDENT, "after FOR")
	varExpr := &ast.VariableExpr{Loc: nameTok.Loc}
	varExpr.Name, varExpr.Normalized = p.normalizeName(nameTok)
	varExpr.Sigil = byte(nameTok.Sigil)

	if p.matchKeyword("IN") {
		array := p.parseExpr()
		var index *ast.VariableExpr
		if p.match(token.COMMA) {
			idxTok := p.need(token.IDENT, "FOR-IN index variable")
			index = &ast.VariableExpr{Loc: idxTok.Loc}
			index.Name, index.Normalized = p.normalizeName(idxTok)
			index.Sigil = byte(idxTok.Sigil)
		}
		return &ast.ForInStmt{Loc: loc, Var: varExpr, Index: index, Array: array}
	}

	p.need(token.EQ, "in FOR initializer")
	from := p.parseExpr()
	p.needKeyword("TO")
	to := p.parseExpr()
	var step ast.Expression
	if p.matchKeyword("STEP") {
		step = p.parseExpr()
	}
	return &ast.ForStmt{Loc: loc, Var: varExpr, From: from, To: to, Step: step}
}

func (p *Parser) parseNext() ast.Statement {
	loc := p.advance().Loc
	name := ""
	if p.check(token.IDENT) {
		name = p.advance().Lexeme
	}
	return &ast.NextStmt{Loc: loc, VarName: name}
}

func (p *Parser) parseWhile() ast.Statement {
	loc := p.advance().Loc
	return &ast.WhileStmt{Loc: loc, Cond: p.parseExpr()}
}

func (p *Parser) parseDo() ast.Statement {
	loc := p.advance().Loc
	stmt := &ast.DoStmt{Loc: loc}
	if p.matchKeyword("WHILE") {
		stmt.Kind = ast.DoCondWhile
		stmt.Cond = p.parseExpr()
	} else if p.matchKeyword("UNTIL") {
		stmt.Kind = ast.DoCondUntil
		stmt.Cond = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseLoop() ast.Statement {
	loc := p.advance().Loc
	stmt := &ast.LoopStmt{Loc: loc}
	if p.matchKeyword("WHILE") {
		stmt.Kind = ast.DoCondWhile
		stmt.Cond = p.parseExpr()
	} else if p.matchKeyword("UNTIL") {
		stmt.Kind = ast.DoCondUntil
		stmt.Cond = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseExit() ast.Statement {
	loc := p.advance().Loc
	if !p.check(token.KEYWORD) {
		p.errorf(p.peek().Loc, "expected FOR/DO/WHILE/REPEAT/FUNCTION/SUB after EXIT")
		return &ast.ExitStmt{Loc: loc}
	}
	kw := p.advance()
	var kind ast.ExitKind
	switch kw.Normalized {
	case "FOR":
		kind = ast.ExitFor
	case "DO":
		kind = ast.ExitDo
	case "WHILE":
		kind = ast.ExitWhile
	case "REPEAT":
		kind = ast.ExitRepeat
	case "FUNCTION":
		kind = ast.ExitFunction
	case "SUB":
		kind = ast.ExitSub
	default:
		p.errorf(kw.Loc, "invalid EXIT target %s", kw.Normalized)
	}
	return &ast.ExitStmt{Loc: loc, Kind: kind}
}

// parseTarget parses a GOTO/GOSUB/ON/RESTORE jump target: either a bare
// line number or a ":label".
func (p *Parser) parseTarget() ast.Target {
	if p.check(token.COLON) && p.peekAt(1).Kind == token.IDENT {
		colonLoc := p.advance().Loc
		label := p.advance()
		return ast.Target{Loc: colonLoc, IsLabel: true, Label: strings.ToUpper(label.Lexeme)}
	}
	tok := p.need(token.INT, "as a jump target")
	n, _ := tok.Literal.(int64)
	return ast.Target{Loc: tok.Loc, Line: int(n)}
}

func (p *Parser) parseGoto() ast.Statement {
	loc := p.advance().Loc
	return &ast.GotoStmt{Loc: loc, Target: p.parseTarget()}
}

func (p *Parser) parseGosub() ast.Statement {
	loc := p.advance().Loc
	return &ast.GosubStmt{Loc: loc, Target: p.parseTarget()}
}

func (p *Parser) parseReturn() ast.Statement {
	loc := p.advance().Loc
	if p.atEnd() || p.check(token.NEWLINE) || p.check(token.COLON) {
		return &ast.ReturnStmt{Loc: loc}
	}
	return &ast.ReturnStmt{Loc: loc, Value: p.parseExpr()}
}

// parseOn handles ON selector GOTO/GOSUB/CALL target-list and
// ON EVENT name handler.
func (p *Parser) parseOn() ast.Statement {
	loc := p.advance().Loc
	if p.checkKeyword("EVENT") {
		return p.parseOnEvent(loc)
	}

	selector := p.parseExpr()
	if !p.check(token.KEYWORD) {
		p.errorf(p.peek().Loc, "expected GOTO, GOSUB, or CALL after ON selector")
		return nil
	}
	kw := p.advance()
	switch kw.Normalized {
	case "GOTO":
		targets := []ast.Target{p.parseTarget()}
		for p.match(token.COMMA) {
			targets = append(targets, p.parseTarget())
		}
		return &ast.OnGotoStmt{Loc: loc, Selector: selector, Targets: targets}
	case "GOSUB":
		targets := []ast.Target{p.parseTarget()}
		for p.match(token.COMMA) {
			targets = append(targets, p.parseTarget())
		}
		return &ast.OnGosubStmt{Loc: loc, Selector: selector, Targets: targets}
	case "CALL":
		fns := []string{p.need(token.IDENT, "function name").Lexeme}
		for p.match(token.COMMA) {
			fns = append(fns, p.need(token.IDENT, "function name").Lexeme)
		}
		return &ast.OnCallStmt{Loc: loc, Selector: selector, Functions: fns}
	default:
		p.errorf(kw.Loc, "expected GOTO, GOSUB, or CALL, found %s", kw.Normalized)
		return nil
	}
}

func (p *Parser) parseOnEvent(loc token.Location) ast.Statement {
	p.advance() // EVENT
	// Event names can collide with reserved words (ERROR), so accept
	// either token kind here.
	nameTok := p.peek()
	if nameTok.Kind != token.IDENT && nameTok.Kind != token.KEYWORD {
		p.errorf(nameTok.Loc, "expected an event name after ON EVENT")
		return &ast.OnEventStmt{Loc: loc}
	}
	p.advance()
	name := strings.ToUpper(nameTok.Lexeme)
	if !events.IsValid(name) {
		p.errorf(nameTok.Loc, "unknown event %s", name)
	}

	if !p.check(token.KEYWORD) {
		p.errorf(p.peek().Loc, "expected CALL, GOTO, or GOSUB after ON EVENT name")
		return &ast.OnEventStmt{Loc: loc, Event: name}
	}
	kw := p.advance()
	kind, ok := eventHandlerKindFromKeyword(kw.Normalized)
	if !ok {
		p.errorf(kw.Loc, "expected CALL, GOTO, or GOSUB, found %s", kw.Normalized)
		return &ast.OnEventStmt{Loc: loc, Event: name}
	}
	stmt := &ast.OnEventStmt{Loc: loc, Event: name, Kind: kind}
	if kind == events.Call {
		stmt.Func = p.need(token.IDENT, "function name").Lexeme
	} else {
		stmt.Target = p.parseTarget()
	}
	return stmt
}

func (p *Parser) parseDimOneDimension() []ast.Expression {
	var dims []ast.Expression
	dims = append(dims, p.parseExpr())
	for p.match(token.COMMA) {
		dims = append(dims, p.parseExpr())
	}
	return dims
}

func (p *Parser) parseDim() ast.Statement {
	loc := p.advance().Loc
	var arrays []ast.DimArraySpec
	for {
		nameTok := p.need(token.IDENT, "array name in DIM")
		name, normalized := p.normalizeName(nameTok)
		typ := ast.TypeFromSigil(byte(nameTok.Sigil), p.opts.Unicode)
		spec := ast.DimArraySpec{Loc: nameTok.Loc, Name: name, Normalized: normalized, Type: typ}
		p.need(token.LPAREN, "after array name in DIM")
		spec.Dimensions = p.parseDimOneDimension()
		p.need(token.RPAREN, "to close DIM dimensions")
		arrays = append(arrays, spec)
		if !p.match(token.COMMA) {
			break
		}
	}
	return &ast.DimStmt{Loc: loc, Arrays: arrays}
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	if p.match(token.LPAREN) {
		if !p.check(token.RPAREN) {
			params = append(params, p.parseOneParam())
			for p.match(token.COMMA) {
				params = append(params, p.parseOneParam())
			}
		}
		p.need(token.RPAREN, "to close parameter list")
	}
	return params
}

func (p *Parser) parseOneParam() ast.Param {
	tok := p.need(token.IDENT, "parameter name")
	name, normalized := p.normalizeName(tok)
	typ := ast.TypeFromSigil(byte(tok.Sigil), p.opts.Unicode)
	return ast.Param{Loc: tok.Loc, Name: name, Normalized: normalized, Type: typ}
}

func (p *Parser) parseDefFn() ast.Statement {
	loc := p.advance().Loc
	p.needKeyword("FN")
	nameTok := p.need(token.IDENT, "function name after DEF FN")
	params := p.parseParamList()
	p.need(token.EQ, "after DEF FN(...) header")
	body := p.parseExpr()
	return &ast.DefFnStmt{Loc: loc, Name: nameTok.Lexeme, Params: params, Body: body}
}

func (p *Parser) parseFunction() ast.Statement {
	loc := p.advance().Loc
	nameTok := p.need(token.IDENT, "function name")
	params := p.parseParamList()
	retType := ast.TypeFromSigil(byte(nameTok.Sigil), p.opts.Unicode)
	if p.matchKeyword("AS") {
		typTok := p.need(token.KEYWORD, "type name after AS")
		retType = typeFromKeyword(typTok.Normalized)
	}
	body := p.parseStatementList("END")
	p.needKeyword("END")
	p.matchKeyword("FUNCTION")
	return &ast.FunctionStmt{Loc: loc, Name: nameTok.Lexeme, Params: params, ReturnType: retType, Body: body}
}

func (p *Parser) parseSub() ast.Statement {
	loc := p.advance().Loc
	nameTok := p.need(token.IDENT, "sub name")
	params := p.parseParamList()
	body := p.parseStatementList("END")
	p.needKeyword("END")
	p.matchKeyword("SUB")
	return &ast.SubStmt{Loc: loc, Name: nameTok.Lexeme, Params: params, Body: body}
}

func typeFromKeyword(name string) ast.Type {
	switch name {
	case "INT", "INTEGER":
		return ast.Int
	case "FLOAT", "SINGLE":
		return ast.Float
	case "DOUBLE":
		return ast.Double
	case "STRING":
		return ast.String
	case "UNICODE":
		return ast.Unicode
	default:
		return ast.Unknown
	}
}

func (p *Parser) parseCall() ast.Statement {
	loc := p.advance().Loc
	nameTok := p.need(token.IDENT, "sub name after CALL")
	var args []ast.Expression
	if p.match(token.LPAREN) {
		if !p.check(token.RPAREN) {
			args = append(args, p.parseExpr())
			for p.match(token.COMMA) {
				args = append(args, p.parseExpr())
			}
		}
		p.need(token.RPAREN, "to close CALL argument list")
	} else if !p.atEnd() && !p.check(token.NEWLINE) && !p.check(token.COLON) {
		args = append(args, p.parseExpr())
		for p.match(token.COMMA) {
			args = append(args, p.parseExpr())
		}
	}
	return &ast.CallStmt{Loc: loc, Name: nameTok.Lexeme, Args: args}
}

func (p *Parser) parseData() ast.Statement {
	loc := p.advance().Loc
	var values []ast.Expression
	for {
		tok := p.peek()
		switch tok.Kind {
		case token.INT, token.FLOAT, token.DOUBLE, token.STRING:
			values = append(values, p.parsePrimary())
		case token.MINUS:
			values = append(values, p.parseUnary())
		default:
			p.errorf(tok.Loc, "expected a literal in DATA")
			p.advance()
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return &ast.DataStmt{Loc: loc, Values: values}
}

func (p *Parser) parseRead() ast.Statement {
	loc := p.advance().Loc
	targets := []ast.Expression{p.parseExpr()}
	for p.match(token.COMMA) {
		targets = append(targets, p.parseExpr())
	}
	return &ast.ReadStmt{Loc: loc, Targets: targets}
}

func (p *Parser) parseRestore() ast.Statement {
	loc := p.advance().Loc
	stmt := &ast.RestoreStmt{Loc: loc}
	if p.check(token.INT) || (p.check(token.COLON) && p.peekAt(1).Kind == token.IDENT) {
		stmt.HasTarget = true
		stmt.Target = p.parseTarget()
	}
	return stmt
}

func (p *Parser) parseOpen() ast.Statement {
	loc := p.advance().Loc
	file := p.parseExpr()
	p.needKeyword("FOR")
	modeTok := p.need(token.KEYWORD, "OPEN mode (INPUT/OUTPUT/APPEND/RANDOM)")
	switch modeTok.Normalized {
	case "INPUT", "OUTPUT", "APPEND", "RANDOM":
	default:
		p.errorf(modeTok.Loc, "invalid OPEN mode %s", modeTok.Normalized)
	}
	p.needKeyword("AS")
	p.match(token.HASH) // the "#" channel marker is optional
	return &ast.OpenStmt{Loc: loc, File: file, Mode: modeTok.Normalized, Channel: p.parseExpr()}
}

func (p *Parser) parseClose() ast.Statement {
	loc := p.advance().Loc
	stmt := &ast.CloseStmt{Loc: loc}
	if !p.atEnd() && !p.check(token.NEWLINE) && !p.check(token.COLON) {
		stmt.HasChannel = true
		p.match(token.HASH)
		stmt.Channel = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseConstant() ast.Statement {
	loc := p.advance().Loc
	nameTok := p.need(token.IDENT, "constant name")
	p.need(token.EQ, "after CONSTANT name")
	value := p.parseExpr()
	return &ast.ConstantStmt{Loc: loc, Name: strings.ToUpper(nameTok.Lexeme), Value: value}
}

func (p *Parser) parseEnd() ast.Statement {
	return &ast.EndStmt{Loc: p.advance().Loc}
}

func (p *Parser) parsePlay() ast.Statement {
	loc := p.advance().Loc
	if p.checkKeyword("SOUND") {
		p.advance()
		var args []ast.Expression
		args = append(args, p.parseExpr())
		for p.match(token.COMMA) {
			args = append(args, p.parseExpr())
		}
		return &ast.PlaySoundStmt{Loc: loc, Args: args}
	}
	var args []ast.Expression
	args = append(args, p.parseExpr())
	for p.match(token.COMMA) {
		args = append(args, p.parseExpr())
	}
	return &ast.PlayStmt{Loc: loc, Args: args}
}
