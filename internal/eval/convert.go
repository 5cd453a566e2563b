package eval

import "sparsego/internal/types"

// rank orders integer types by the usual "larger rank" rule: bool <
// char < short < int < long < long long. Unknown/non-builtin integer types
// (enums, restricted types after unfouling) are treated as int rank, since
// their underlying storage is examined separately by internal/types.Examine.
func (ev *Evaluator) rank(t *types.Symbol) int {
	b := ev.Builtins
	switch t {
	case b.Bool:
		return 0
	case b.Char, b.SChar, b.UChar:
		return 1
	case b.Short, b.UShort:
		return 2
	case b.Int, b.UInt:
		return 3
	case b.Long, b.ULong:
		return 4
	case b.LongLong, b.ULongLong:
		return 5
	}
	return 3
}

func isUnsigned(t *types.Symbol) bool { return t != nil && t.Mods.Has(types.ModUnsigned) }

// stripNamed peels an Enum down to its underlying base type and a Restrict/
// Fouled wrapper down to its base type, for arithmetic classification; the
// restricted-ness itself is handled separately via restrictNameOf.
func stripNamed(t *types.Symbol) *types.Symbol {
	for t != nil {
		switch t.Kind {
		case types.Enum, types.Restrict, types.Fouled:
			if t.BaseType != nil {
				t = t.BaseType
				continue
			}
		}
		break
	}
	return t
}

// promote implements integer promotion: a bool/char/short operand widens to
// int (or unsigned int, if int cannot represent its full range); anything
// int-rank or wider is unchanged.
func (ev *Evaluator) promote(t *types.Symbol) *types.Symbol {
	s := stripNamed(t)
	if ev.rank(s) < 3 {
		return ev.Builtins.Int
	}
	return t
}

// biggerIntType finds the usual-arithmetic-conversions result type: integer
// promotions, then the larger rank, then the unsigned operand wins on
// equal rank unless the signed operand strictly dominates in width (which,
// at equal rank, cannot happen for the builtin ladder, so the unsigned
// side always wins at equal rank here).
func (ev *Evaluator) biggerIntType(a, b *types.Symbol) *types.Symbol {
	pa, pb := ev.promote(a), ev.promote(b)
	if pa == pb {
		return pa
	}
	ra, rb := ev.rank(stripNamed(pa)), ev.rank(stripNamed(pb))
	if ra != rb {
		if ra > rb {
			return pa
		}
		return pb
	}
	ua, ub := isUnsigned(stripNamed(pa)), isUnsigned(stripNamed(pb))
	if ua == ub {
		return pa
	}
	if ua {
		return pa
	}
	return pb
}

func (ev *Evaluator) isInteger(t *types.Symbol) bool {
	s := stripNamed(t)
	if s == nil {
		return false
	}
	switch s.Kind {
	case types.Basetype, types.Bitfield:
		return s != ev.Builtins.Float && s != ev.Builtins.Double && s != ev.Builtins.LongDouble
	}
	return false
}

func (ev *Evaluator) isFloat(t *types.Symbol) bool {
	s := stripNamed(t)
	return s == ev.Builtins.Float || s == ev.Builtins.Double || s == ev.Builtins.LongDouble
}

func (ev *Evaluator) isArithmetic(t *types.Symbol) bool { return ev.isInteger(t) || ev.isFloat(t) }

func isPointer(t *types.Symbol) bool { return t != nil && t.Kind == types.Ptr }

// degenerate applies array/function degeneration: `T[N]` and `T()` bound
// to an expression decay to `T*` at every ordinary use.
// Callers that need the un-decayed type (sizeof, &, a compatible-array
// initializer) must use the raw ctype instead of calling this.
func (ev *Evaluator) degenerate(t *types.Symbol) *types.Symbol {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case types.Array:
		return &types.Symbol{Kind: types.Ptr, BaseType: t.BaseType, BitSize: ev.Layout.BitsInPointer, Alignment: ev.Layout.PointerAlignment}
	case types.Fn:
		return &types.Symbol{Kind: types.Ptr, BaseType: t, BitSize: ev.Layout.BitsInPointer, Alignment: ev.Layout.PointerAlignment}
	}
	return t
}

// restrictNameOf returns t's RestrictName if t is a restricted type, or ""
// otherwise, for feeding internal/types.RestrictCombine.
func restrictNameOf(t *types.Symbol) string {
	if t != nil && t.Kind == types.Restrict {
		return t.RestrictName
	}
	return ""
}

// fnOf returns the underlying Fn symbol of t, unwrapping one Ptr-to-Fn
// indirection (the shape every ordinary function-pointer call produces
// after degeneration), or nil if t is not callable.
func fnOf(t *types.Symbol) *types.Symbol {
	if t == nil {
		return nil
	}
	if t.Kind == types.Fn {
		return t
	}
	if t.Kind == types.Ptr && t.BaseType != nil && t.BaseType.Kind == types.Fn {
		return t.BaseType
	}
	return nil
}
