package cast

import (
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// declSpec accumulates declaration-specifiers (storage class, type
// specifiers, qualifiers) prior to applying the declarator.
type declSpec struct {
	mods     types.Mod
	base     *types.Symbol // resolved base type (builtin, struct/union/enum, or typedef target)
	typedefd bool
}

// declarationSpecifiers parses storage-class keywords, type qualifiers and
// a single type-specifier (builtin keyword, struct/union/enum, or a
// typedef name), in any order, as C allows.
func (p *Parser) declarationSpecifiers() declSpec {
	var ds declSpec
	sawType := false
	long := 0
	signedSeen, unsignedSeen := false, false
loop:
	for p.isIdent() {
		id := p.identOf(p.cur())
		switch id.Name {
		case "typedef":
			ds.mods |= types.ModTypedef
			p.advance()
		case "static":
			ds.mods |= types.ModStatic
			p.advance()
		case "extern":
			ds.mods |= types.ModExtern
			p.advance()
		case "auto":
			ds.mods |= types.ModAuto
			p.advance()
		case "register":
			ds.mods |= types.ModRegister
			p.advance()
		case "inline":
			ds.mods |= types.ModInline
			p.advance()
		case "const":
			ds.mods |= types.ModConst
			p.advance()
		case "volatile":
			ds.mods |= types.ModVolatile
			p.advance()
		case "restrict", "__attribute__":
			p.advance()
			if p.isSpecial(token.OpLParen) {
				p.skipParenGroup()
			}
		case "void":
			ds.base, sawType = p.Builtins.Void, true
			p.advance()
		case "_Bool":
			ds.base, sawType = p.Builtins.Bool, true
			p.advance()
		case "char":
			ds.base, sawType = p.Builtins.Char, true
			p.advance()
		case "short":
			ds.base, sawType = p.Builtins.Short, true
			p.advance()
		case "int":
			if !sawType {
				ds.base = p.Builtins.Int
			}
			sawType = true
			p.advance()
		case "long":
			long++
			sawType = true
			p.advance()
		case "float":
			ds.base, sawType = p.Builtins.Float, true
			p.advance()
		case "double":
			sawType = true
			p.advance()
		case "signed":
			signedSeen = true
			sawType = true
			p.advance()
		case "unsigned":
			unsignedSeen = true
			sawType = true
			p.advance()
		case "struct", "union":
			ds.base, sawType = p.structOrUnionSpecifier(id.Name == "union"), true
		case "enum":
			ds.base, sawType = p.enumSpecifier(), true
		case "__typeof__", "typeof":
			p.advance()
			p.expectSpecial(token.OpLParen, "'(' after __typeof__")
			inner := p.expression()
			p.expectSpecial(token.OpRParen, "')' after __typeof__ operand")
			ds.base = &types.Symbol{Kind: types.Typeof, BaseType: inner.Ctype}
			sawType = true
		default:
			if !sawType {
				if td := p.lookupTypedef(id); td != nil {
					ds.base = td
					sawType = true
					ds.typedefd = true
					p.advance()
					continue
				}
			}
			break loop
		}
	}
	if long > 0 {
		ds.base = p.resolveLongVariant(long, ds.base, signedSeen, unsignedSeen)
		sawType = true
	} else if ds.base != nil && ds.base == p.Builtins.Float {
		// already resolved
	} else if !sawType && (signedSeen || unsignedSeen) {
		ds.base = p.Builtins.Int
	}
	if !sawType && long == 0 {
		if ds.base == nil {
			ds.base = p.Builtins.Int // implicit-int fallback
		}
	}
	if unsignedSeen && long == 0 {
		ds.base = p.unsignedVariant(ds.base)
	} else if signedSeen && long == 0 && ds.base == p.Builtins.Char {
		ds.base = p.Builtins.SChar
	}
	return ds
}

func (p *Parser) resolveLongVariant(long int, base *types.Symbol, signed, unsigned bool) *types.Symbol {
	if base == p.Builtins.Double || base == nil {
		if long >= 1 && base == p.Builtins.Double {
			return p.Builtins.LongDouble
		}
	}
	if long >= 2 {
		if unsigned {
			return p.Builtins.ULongLong
		}
		return p.Builtins.LongLong
	}
	if unsigned {
		return p.Builtins.ULong
	}
	return p.Builtins.Long
}

func (p *Parser) unsignedVariant(base *types.Symbol) *types.Symbol {
	switch base {
	case p.Builtins.Char, p.Builtins.SChar:
		return p.Builtins.UChar
	case p.Builtins.Short:
		return p.Builtins.UShort
	case p.Builtins.Int, nil:
		return p.Builtins.UInt
	case p.Builtins.Long:
		return p.Builtins.ULong
	case p.Builtins.LongLong:
		return p.Builtins.ULongLong
	}
	return base
}

func (p *Parser) skipParenGroup() {
	p.advance() // '('
	depth := 1
	for !p.atEnd() && depth > 0 {
		if p.isSpecial(token.OpLParen) {
			depth++
		} else if p.isSpecial(token.OpRParen) {
			depth--
		}
		p.advance()
	}
}

// lookupTypedef returns the type a typedef name was bound to, or nil if id
// is not currently a typedef name in any enclosing scope, by looking it up
// in the NSTypedef namespace.
func (p *Parser) lookupTypedef(id *ident.Ident) *types.Symbol {
	b := id.Lookup(ident.NamespaceMask(ident.NSTypedef))
	if b == nil {
		return nil
	}
	return b.(*types.Symbol)
}
