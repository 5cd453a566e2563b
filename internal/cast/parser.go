// Package cast's parser.go implements the recursive-descent parser:
// declaration-specifiers + declarators for external declarations, a
// precedence-climbing expression parser, and the statement grammar
// (if/switch/the unified iterator/goto/return/block).
package cast

import (
	"sparsego/internal/diag"
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// Parser turns a preprocessed token slice into a list of top-level
// Symbols.
type Parser struct {
	toks []*token.Token
	pos  int

	Bag      *diag.Bag
	Interner *ident.Table
	Builtins *types.Builtins
	Layout   types.LayoutConfig

	scope *types.Scope
}

// NewParser builds a Parser over an already-preprocessed token list (the
// trailing EOF token, if present, is tolerated but not required).
func NewParser(toks []*token.Token, interner *ident.Table, bag *diag.Bag, builtins *types.Builtins, layout types.LayoutConfig) *Parser {
	RegisterKeywords(interner)
	global := &types.Scope{Kind: types.ScopeGlobal}
	return &Parser{toks: toks, Bag: bag, Interner: interner, Builtins: builtins, Layout: layout, scope: global}
}

func (p *Parser) cur() *token.Token {
	if p.pos >= len(p.toks) {
		return &token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) *token.Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return &token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *Parser) atEnd() bool { return p.cur().Kind == token.EOF }

func (p *Parser) advance() *token.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) identOf(t *token.Token) *ident.Ident {
	return t.Ident.Any.(*ident.Ident)
}

func (p *Parser) isIdent() bool { return p.cur().Kind == token.TokIdent }

// isKeyword reports whether the current token is the reserved word kw.
func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == token.TokIdent && p.identOf(t).Reserved && p.identOf(t).Name == kw
}

func (p *Parser) matchKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) isSpecial(sp token.Special) bool {
	t := p.cur()
	return t.Kind == token.TokSpecial && t.Special == sp
}

func (p *Parser) matchSpecial(sp token.Special) bool {
	if p.isSpecial(sp) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectSpecial(sp token.Special, what string) bool {
	if p.matchSpecial(sp) {
		return true
	}
	p.Bag.Error(p.cur().Position, "expected %s", what)
	return false
}

// skipToRecoveryPoint advances past tokens until the next top-level `;`
// or `}`. Error recovery always emits a diagnostic and either skips to a
// recovery point like this or simply continues; it never aborts.
func (p *Parser) skipToRecoveryPoint() {
	depth := 0
	for !p.atEnd() {
		t := p.cur()
		if t.Kind == token.TokSpecial {
			switch t.Special {
			case token.OpLBrace:
				depth++
			case token.OpRBrace:
				if depth == 0 {
					return
				}
				depth--
			case token.OpSemicolon:
				if depth == 0 {
					p.advance()
					return
				}
			}
		}
		p.advance()
	}
}

// ParseTranslationUnit parses `{ external_declaration }*` into a list of
// top-level Symbols.
func (p *Parser) ParseTranslationUnit() []*types.Symbol {
	var out []*types.Symbol
	for !p.atEnd() {
		before := p.pos
		syms := p.externalDeclaration()
		out = append(out, syms...)
		if p.pos == before {
			// Parser made no progress: avoid an infinite loop on garbage
			// input by forcing it past one token.
			p.Bag.Error(p.cur().Position, "unexpected token in translation unit")
			p.advance()
		}
	}
	return out
}
