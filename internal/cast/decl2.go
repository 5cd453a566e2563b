package cast

import (
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// declarator parses a (possibly abstract) C declarator: leading pointers,
// a direct-declarator (a name, or a parenthesized nested declarator), and
// trailing array/function suffixes. It returns the declared name (nil for
// an abstract declarator, e.g. inside a cast or sizeof(T)) and the
// resulting type with base spliced in as the innermost BaseType.
func (p *Parser) declarator(base *types.Symbol) (*ident.Ident, *types.Symbol) {
	ptrType := p.applyPointers(base)
	return p.directDeclarator(ptrType)
}

func (p *Parser) applyPointers(base *types.Symbol) *types.Symbol {
	typ := base
	for p.matchSpecial(token.OpStar) {
		var qual types.Mod
		for {
			if p.matchKeyword("const") {
				qual |= types.ModConst
				continue
			}
			if p.matchKeyword("volatile") {
				qual |= types.ModVolatile
				continue
			}
			if p.matchKeyword("restrict") {
				continue
			}
			break
		}
		typ = &types.Symbol{Kind: types.Ptr, BaseType: typ, Mods: qual}
	}
	return typ
}

// looksLikeNestedDeclarator decides whether a '(' starts a grouped
// sub-declarator (`(*f)(int)`) rather than a parameter list (`f(int)`):
// true only when the very next token is `*` or `(`, matching the common
// function-pointer-declarator shapes. Old-style K&R parameter lists
// (identifier lists with separate declarations following) are not
// recognized by this check.
func (p *Parser) looksLikeNestedDeclarator() bool {
	n := p.peekAt(1)
	return n.Kind == token.TokSpecial && (n.Special == token.OpStar || n.Special == token.OpLParen)
}

func (p *Parser) directDeclarator(inner *types.Symbol) (*ident.Ident, *types.Symbol) {
	if p.isSpecial(token.OpLParen) && p.looksLikeNestedDeclarator() {
		p.advance()
		hole := &types.Symbol{}
		name, nested := p.declarator(hole)
		p.expectSpecial(token.OpRParen, "')' to close declarator")
		outer := p.declaratorSuffixes(inner)
		*hole = *outer
		return name, nested
	}
	var name *ident.Ident
	if p.isIdent() && !p.identOf(p.cur()).Reserved {
		name = p.identOf(p.cur())
		p.advance()
	}
	typ := p.declaratorSuffixes(inner)
	return name, typ
}

func (p *Parser) declaratorSuffixes(inner *types.Symbol) *types.Symbol {
	for {
		if p.matchSpecial(token.OpLBracket) {
			known := false
			count := 0
			var sizeExpr *Expr
			if !p.isSpecial(token.OpRBracket) {
				e := p.assignmentExpr()
				sizeExpr = e
				if e.Kind == EValue {
					known, count = true, int(e.Value)
				}
			}
			p.expectSpecial(token.OpRBracket, "']' to close array declarator")
			inner = &types.Symbol{Kind: types.Array, BaseType: inner, ArraySizeKnown: known, ArraySizeConst: count, ArraySizeExpr: sizeExpr}
			continue
		}
		if p.matchSpecial(token.OpLParen) {
			params, variadic := p.parameterList()
			inner = &types.Symbol{Kind: types.Fn, BaseType: inner, Arguments: params, Variadic: variadic}
			continue
		}
		break
	}
	return inner
}

func (p *Parser) parameterList() ([]*types.Symbol, bool) {
	var params []*types.Symbol
	if p.matchSpecial(token.OpRParen) {
		return params, false
	}
	variadic := false
	for {
		if p.matchSpecial(token.OpEllipsis) {
			variadic = true
			break
		}
		if p.isKeyword("void") {
			n := p.peekAt(1)
			if n.Kind == token.TokSpecial && n.Special == token.OpRParen && len(params) == 0 {
				p.advance()
				break
			}
		}
		ds := p.declarationSpecifiers()
		name, typ := p.declarator(ds.base)
		sym := &types.Symbol{Kind: types.Node, BaseType: typ, Ident: name, Mods: ds.mods, NS: ident.NSSymbol}
		params = append(params, sym)
		if !p.matchSpecial(token.OpComma) {
			break
		}
	}
	p.expectSpecial(token.OpRParen, "')' to close parameter list")
	return params, variadic
}

// structOrUnionSpecifier parses `struct`/`union` [tag] [`{` members `}`].
// Tags share the NSStruct namespace regardless of struct-vs-union,
// matching C's single tag namespace.
func (p *Parser) structOrUnionSpecifier(isUnion bool) *types.Symbol {
	p.advance() // 'struct' / 'union'
	var tag *ident.Ident
	if p.isIdent() && !p.identOf(p.cur()).Reserved {
		tag = p.identOf(p.cur())
		p.advance()
	}
	kind := types.Struct
	if isUnion {
		kind = types.Union
	}
	var sym *types.Symbol
	if tag != nil {
		if b := tag.Lookup(ident.NamespaceMask(ident.NSStruct)); b != nil {
			if existing, ok := b.(*types.Symbol); ok && existing.Kind == kind {
				sym = existing
			}
		}
	}
	if sym == nil {
		sym = &types.Symbol{Kind: kind, Ident: tag, NS: ident.NSStruct}
		if tag != nil {
			p.scope.Bind(sym)
		}
	}
	if p.matchSpecial(token.OpLBrace) {
		for !p.atEnd() && !p.isSpecial(token.OpRBrace) {
			memberDs := p.declarationSpecifiers()
			for {
				name, typ := p.declarator(memberDs.base)
				m := &types.Symbol{Kind: types.Node, BaseType: typ, Ident: name, Mods: memberDs.mods}
				if p.matchSpecial(token.OpColon) {
					w := p.assignmentExpr()
					width := 0
					if w.Kind == EValue {
						width = int(w.Value)
					}
					m.Kind = types.Bitfield
					m.FieldWidth = width
				}
				sym.Members = append(sym.Members, m)
				if !p.matchSpecial(token.OpComma) {
					break
				}
			}
			if !p.expectSpecial(token.OpSemicolon, "';' after struct/union member") {
				p.skipToRecoveryPoint()
			}
		}
		p.expectSpecial(token.OpRBrace, "'}' to close struct/union body")
	}
	return sym
}

// enumSpecifier parses `enum` [tag] [`{` name [`=` value] , ... `}`].
// Enumerators are bound into the ordinary symbol namespace as constants of
// the enum's own type.
func (p *Parser) enumSpecifier() *types.Symbol {
	p.advance() // 'enum'
	var tag *ident.Ident
	if p.isIdent() && !p.identOf(p.cur()).Reserved {
		tag = p.identOf(p.cur())
		p.advance()
	}
	sym := &types.Symbol{Kind: types.Enum, Ident: tag, BaseType: p.Builtins.Int, NS: ident.NSEnum}
	if tag != nil {
		p.scope.Bind(sym)
	}
	if p.matchSpecial(token.OpLBrace) {
		next := int64(0)
		for !p.atEnd() && !p.isSpecial(token.OpRBrace) {
			if !p.isIdent() {
				break
			}
			name := p.identOf(p.cur())
			p.advance()
			val := next
			if p.matchSpecial(token.OpAssign) {
				e := p.assignmentExpr()
				if e.Kind == EValue {
					val = int64(e.Value)
				}
			}
			member := &types.Symbol{Kind: types.Basetype, Ident: name, BaseType: sym, Mods: types.ModSigned, NS: ident.NSSymbol}
			member.BitOffset = int(val) // reused as the enumerator's constant value
			sym.Members = append(sym.Members, member)
			p.scope.Bind(member)
			next = val + 1
			if !p.matchSpecial(token.OpComma) {
				break
			}
		}
		p.expectSpecial(token.OpRBrace, "'}' to close enum body")
	}
	return sym
}
