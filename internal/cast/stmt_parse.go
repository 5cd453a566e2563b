package cast

import (
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

func (p *Parser) pushScope(kind types.ScopeKind) {
	p.scope = &types.Scope{Kind: kind, Parent: p.scope}
}

func (p *Parser) popScope() {
	p.scope.Exit()
	p.scope = p.scope.Parent
}

func (p *Parser) expectSemicolon() bool {
	return p.expectSpecial(token.OpSemicolon, "';'")
}

// declarationStart reports whether the current token can begin a
// declaration's declaration-specifiers, used to disambiguate a block
// statement that declares a local from an expression statement.
func (p *Parser) declarationStart() bool {
	if !p.isIdent() {
		return false
	}
	id := p.identOf(p.cur())
	switch id.Name {
	case "void", "char", "short", "int", "long", "float", "double",
		"signed", "unsigned", "_Bool", "struct", "union", "enum",
		"typedef", "static", "extern", "auto", "register", "const",
		"volatile", "inline", "__typeof__", "typeof":
		return true
	}
	if id.Reserved {
		return false
	}
	return p.lookupTypedef(id) != nil
}

func (p *Parser) statement() *Stmt {
	switch {
	case p.isKeyword("if"):
		return p.ifStatement()
	case p.isKeyword("while"):
		return p.whileStatement()
	case p.isKeyword("do"):
		return p.doStatement()
	case p.isKeyword("for"):
		return p.forStatement()
	case p.isKeyword("switch"):
		return p.switchStatement()
	case p.isKeyword("case"):
		return p.caseStatement()
	case p.isKeyword("default"):
		return p.defaultStatement()
	case p.isKeyword("break"):
		pos := p.cur().Position
		p.advance()
		p.expectSemicolon()
		return &Stmt{Kind: SGoto, Position: pos, GotoName: "break"}
	case p.isKeyword("continue"):
		pos := p.cur().Position
		p.advance()
		p.expectSemicolon()
		return &Stmt{Kind: SGoto, Position: pos, GotoName: "continue"}
	case p.isKeyword("goto"):
		return p.gotoStatement()
	case p.isKeyword("return"):
		return p.returnStatement()
	case p.isKeyword("asm"), p.isKeyword("__asm__"):
		return p.asmStatement()
	case p.isKeyword("__context__"):
		return p.contextStatement()
	case p.isSpecial(token.OpLBrace):
		return p.compoundStatement()
	case p.isSpecial(token.OpSemicolon):
		pos := p.cur().Position
		p.advance()
		return &Stmt{Kind: SCompound, Position: pos}
	case p.isIdent() && p.peekAt(1).Kind == token.TokSpecial && p.peekAt(1).Special == token.OpColon && !p.identOf(p.cur()).Reserved:
		return p.labelStatement()
	case p.declarationStart():
		return p.declarationStatement()
	default:
		pos := p.cur().Position
		e := p.expression()
		p.expectSemicolon()
		return &Stmt{Kind: SExpression, Position: pos, Expr: e}
	}
}

func (p *Parser) compoundStatement() *Stmt {
	pos := p.cur().Position
	p.expectSpecial(token.OpLBrace, "'{'")
	p.pushScope(types.ScopeBlock)
	var stmts []*Stmt
	for !p.atEnd() && !p.isSpecial(token.OpRBrace) {
		stmts = append(stmts, p.statement())
	}
	p.popScope()
	if !p.expectSpecial(token.OpRBrace, "'}' to close block") {
		p.skipToRecoveryPoint()
	}
	return &Stmt{Kind: SCompound, Position: pos, Stmts: stmts}
}

func (p *Parser) ifStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpLParen, "'(' after if")
	cond := p.expression()
	p.expectSpecial(token.OpRParen, "')' after if condition")
	then := p.statement()
	var els *Stmt
	if p.matchKeyword("else") {
		els = p.statement()
	}
	return &Stmt{Kind: SIf, Position: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) whileStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpLParen, "'(' after while")
	cond := p.expression()
	p.expectSpecial(token.OpRParen, "')' after while condition")
	body := p.statement()
	return &Stmt{Kind: SIterator, Position: pos, PreCondition: cond, IterBody: body}
}

func (p *Parser) doStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	body := p.statement()
	if !p.matchKeyword("while") {
		p.Bag.Error(p.cur().Position, "expected 'while' after do body")
	}
	p.expectSpecial(token.OpLParen, "'(' after do/while")
	cond := p.expression()
	p.expectSpecial(token.OpRParen, "')' after do/while condition")
	p.expectSemicolon()
	return &Stmt{Kind: SIterator, Position: pos, PostCondition: cond, IterBody: body, PostCheck: true}
}

func (p *Parser) forStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpLParen, "'(' after for")
	p.pushScope(types.ScopeBlock)

	var pre *Stmt
	switch {
	case p.isSpecial(token.OpSemicolon):
		p.advance()
	case p.declarationStart():
		pre = p.declarationStatement()
	default:
		e := p.expression()
		p.expectSemicolon()
		pre = &Stmt{Kind: SExpression, Expr: e}
	}

	var cond *Expr
	if !p.isSpecial(token.OpSemicolon) {
		cond = p.expression()
	}
	p.expectSemicolon()

	var post *Stmt
	if !p.isSpecial(token.OpRParen) {
		e := p.expression()
		post = &Stmt{Kind: SExpression, Expr: e}
	}
	p.expectSpecial(token.OpRParen, "')' to close for header")

	body := p.statement()
	p.popScope()
	return &Stmt{Kind: SIterator, Position: pos, PreStatement: pre, PreCondition: cond, PostStatement: post, IterBody: body}
}

func (p *Parser) switchStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpLParen, "'(' after switch")
	e := p.expression()
	p.expectSpecial(token.OpRParen, "')' after switch expression")
	body := p.statement()
	return &Stmt{Kind: SSwitch, Position: pos, SwitchExpr: e, SwitchBody: body}
}

func (p *Parser) caseStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	lo := p.conditionalExpr()
	var hi *Expr
	if p.matchSpecial(token.OpEllipsis) {
		hi = p.conditionalExpr()
	}
	p.expectSpecial(token.OpColon, "':' after case label")
	body := p.statement()
	return &Stmt{Kind: SCase, Position: pos, CaseExpr: lo, CaseHi: hi, CaseBody: body}
}

func (p *Parser) defaultStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpColon, "':' after default")
	body := p.statement()
	return &Stmt{Kind: SCase, Position: pos, CaseBody: body}
}

func (p *Parser) gotoStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	name := ""
	if p.isIdent() {
		name = p.identOf(p.cur()).Name
		p.advance()
	} else {
		p.Bag.Error(p.cur().Position, "expected label name after goto")
	}
	p.expectSemicolon()
	return &Stmt{Kind: SGoto, Position: pos, GotoName: name}
}

func (p *Parser) returnStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	var e *Expr
	if !p.isSpecial(token.OpSemicolon) {
		e = p.expression()
	}
	p.expectSemicolon()
	return &Stmt{Kind: SReturn, Position: pos, ReturnExpr: e}
}

// asmStatement records the parenthesized asm text verbatim; the core
// does not assemble it.
func (p *Parser) asmStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	for p.matchKeyword("volatile") || p.matchKeyword("const") {
	}
	var sb []byte
	if p.matchSpecial(token.OpLParen) {
		depth := 1
		for !p.atEnd() && depth > 0 {
			t := p.cur()
			if t.Kind == token.TokSpecial {
				if t.Special == token.OpLParen {
					depth++
				} else if t.Special == token.OpRParen {
					depth--
					if depth == 0 {
						p.advance()
						break
					}
				}
			}
			sb = append(sb, []byte(spellToken(t))...)
			sb = append(sb, ' ')
			p.advance()
		}
	}
	p.expectSemicolon()
	return &Stmt{Kind: SAsm, Position: pos, AsmText: string(sb)}
}

// contextStatement parses a `__context__(expr, mask)` lock/unlock balance
// annotation, checked later by internal/liveness.CheckContexts.
func (p *Parser) contextStatement() *Stmt {
	pos := p.cur().Position
	p.advance()
	p.expectSpecial(token.OpLParen, "'(' after __context__")
	e := p.assignmentExpr()
	mask := uint32(0)
	if p.matchSpecial(token.OpComma) {
		m := p.assignmentExpr()
		if m.Kind == EValue {
			mask = uint32(m.Value)
		}
	}
	p.expectSpecial(token.OpRParen, "')' to close __context__")
	p.expectSemicolon()
	return &Stmt{Kind: SContext, Position: pos, ContextExpr: e, ContextMask: mask}
}

func (p *Parser) labelStatement() *Stmt {
	pos := p.cur().Position
	name := p.identOf(p.cur())
	p.advance()
	p.expectSpecial(token.OpColon, "':' after label")
	sym := &types.Symbol{Kind: types.Label, Ident: name, NS: ident.NSLabel, Position: pos}
	p.scope.Bind(sym)
	body := p.statement()
	return &Stmt{Kind: SLabel, Position: pos, LabelSym: sym, LabelBody: body}
}

func (p *Parser) declarationStatement() *Stmt {
	pos := p.cur().Position
	ds := p.declarationSpecifiers()
	var decls []*types.Symbol
	if !p.isSpecial(token.OpSemicolon) {
		for {
			name, typ := p.declarator(ds.base)
			ns := ident.NSSymbol
			if ds.mods.Has(types.ModTypedef) {
				ns = ident.NSTypedef
			}
			sym := &types.Symbol{Kind: types.Node, BaseType: typ, Ident: name, Mods: ds.mods, NS: ns, Position: pos, Scope: p.scope}
			if name != nil {
				p.scope.Bind(sym)
			}
			if p.matchSpecial(token.OpAssign) {
				sym.Body = p.initializer()
			}
			decls = append(decls, sym)
			if !p.matchSpecial(token.OpComma) {
				break
			}
		}
	}
	if !p.expectSemicolon() {
		p.skipToRecoveryPoint()
	}
	return &Stmt{Kind: SDeclaration, Position: pos, Decls: decls}
}

// spellToken renders a token back to roughly its source spelling, good
// enough for asm text capture where exact whitespace doesn't matter.
func spellToken(t *token.Token) string {
	switch t.Kind {
	case token.TokIdent:
		return t.Ident.Any.(*ident.Ident).Name
	case token.TokNumber:
		return t.Lexeme
	case token.TokString:
		return string(t.Str.Bytes)
	case token.TokChar:
		return string(rune(t.Char))
	case token.TokSpecial:
		for _, e := range tokenSpecialSpellings {
			if e.op == t.Special {
				return e.text
			}
		}
	}
	return ""
}

var tokenSpecialSpellings = []struct {
	text string
	op   token.Special
}{
	{"...", token.OpEllipsis}, {"<<=", token.OpShlAssign}, {">>=", token.OpShrAssign},
	{"->", token.OpArrow}, {"++", token.OpIncrement}, {"--", token.OpDecrement},
	{"<<", token.OpShl}, {">>", token.OpShr}, {"<=", token.OpLe}, {">=", token.OpGe},
	{"==", token.OpEq}, {"!=", token.OpNe}, {"&&", token.OpAndAnd}, {"||", token.OpOrOr},
	{"+=", token.OpAddAssign}, {"-=", token.OpSubAssign}, {"*=", token.OpMulAssign},
	{"/=", token.OpDivAssign}, {"%=", token.OpModAssign}, {"&=", token.OpAndAssign},
	{"|=", token.OpOrAssign}, {"^=", token.OpXorAssign}, {"##", token.OpHashHash},
	{"(", token.OpLParen}, {")", token.OpRParen}, {"{", token.OpLBrace}, {"}", token.OpRBrace},
	{"[", token.OpLBracket}, {"]", token.OpRBracket}, {";", token.OpSemicolon}, {",", token.OpComma},
	{":", token.OpColon}, {"?", token.OpQuestion}, {".", token.OpDot}, {"+", token.OpPlus},
	{"-", token.OpMinus}, {"*", token.OpStar}, {"/", token.OpSlash}, {"%", token.OpPercent},
	{"&", token.OpAmp}, {"|", token.OpPipe}, {"^", token.OpCaret}, {"~", token.OpTilde},
	{"!", token.OpNot}, {"<", token.OpLt}, {">", token.OpGt}, {"=", token.OpAssign}, {"#", token.OpHash},
}

// initializer parses a brace-delimited initializer list with positional,
// designated (`.field = ...`, `[index] = ...`) and range-designated
// (`[lo ... hi] = ...`) sub-initializers, stored un-normalized;
// normalization into flat POS nodes happens later in internal/eval.
func (p *Parser) initializer() *Expr {
	if !p.isSpecial(token.OpLBrace) {
		return p.assignmentExpr()
	}
	pos := p.cur().Position
	p.advance()
	var elems []*Expr
	for !p.atEnd() && !p.isSpecial(token.OpRBrace) {
		var designator, rangeHi *Expr
		switch {
		case p.matchSpecial(token.OpDot):
			name := p.memberName()
			designator = &Expr{Kind: EIdentifier, Name: name}
			p.expectSpecial(token.OpAssign, "'=' after designator")
		case p.matchSpecial(token.OpLBracket):
			lo := p.assignmentExpr()
			designator = lo
			if p.matchSpecial(token.OpEllipsis) {
				rangeHi = p.assignmentExpr()
			}
			p.expectSpecial(token.OpRBracket, "']' to close index designator")
			p.expectSpecial(token.OpAssign, "'=' after designator")
		}
		val := p.initializer()
		val.Designator = designator
		val.RangeHi = rangeHi
		elems = append(elems, val)
		if !p.matchSpecial(token.OpComma) {
			break
		}
	}
	p.expectSpecial(token.OpRBrace, "'}' to close initializer")
	return &Expr{Kind: EInitializer, Position: pos, Elements: elems}
}
