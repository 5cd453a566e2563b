package cast

import (
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// externalDeclaration parses an external declaration: declaration-
// specifiers followed by one or more declarators, each either a
// function definition (a Fn-kind declarator directly followed by `{`), a
// plain declaration optionally initialized, or (for `typedef`) a type alias
// binding. A stray `;` with no declarators at all is a valid empty
// declaration and produces no symbols.
func (p *Parser) externalDeclaration() []*types.Symbol {
	pos := p.cur().Position
	ds := p.declarationSpecifiers()

	if p.matchSpecial(token.OpSemicolon) {
		return nil
	}

	var out []*types.Symbol
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

		if typ != nil && typ.Kind == types.Fn && p.isSpecial(token.OpLBrace) {
			p.pushScope(types.ScopeFunction)
			for _, arg := range typ.Arguments {
				if arg.Ident != nil {
					p.scope.Bind(arg)
				}
			}
			sym.Body = p.compoundStatement()
			p.popScope()
			out = append(out, sym)
			return out
		}

		if p.matchSpecial(token.OpAssign) {
			sym.Body = p.initializer()
		}
		out = append(out, sym)

		if !p.matchSpecial(token.OpComma) {
			break
		}
	}

	if !p.expectSemicolon() {
		p.skipToRecoveryPoint()
	}
	return out
}
