package types

import "fmt"

// modCompareMask excludes storage-class modifiers from Difference's
// comparison: storage modifiers don't affect type compatibility.
const modCompareMask = ^(ModAuto | ModRegister | ModStatic | ModExtern | ModTypedef | ModInline | ModToplevel | ModAssigned | ModAccessed)

// Difference compares two types for compatibility: strips NODEs, peels
// ENUMs, treats FN reached through PTR as FN directly, treats ARRAY as
// PTR for comparison, compares base types recursively, and finally
// compares modifiers under modCompareMask. Returns "" on match, or a short
// string describing the first difference.
func Difference(a, b *Symbol) string {
	a = strip(a)
	b = strip(b)
	if a == nil || b == nil {
		if a == b {
			return ""
		}
		return "incompatible types"
	}
	ak, bk := canonicalKind(a), canonicalKind(b)
	if ak != bk {
		return fmt.Sprintf("kind mismatch: %v vs %v", ak, bk)
	}
	switch ak {
	case Ptr, Array:
		return Difference(a.BaseType, b.BaseType)
	case Fn:
		af, bf := asFn(a), asFn(b)
		if len(af.Arguments) != len(bf.Arguments) {
			return "argument count mismatch"
		}
		for i := range af.Arguments {
			if d := Difference(af.Arguments[i].BaseType, bf.Arguments[i].BaseType); d != "" {
				return fmt.Sprintf("argument %d: %s", i, d)
			}
		}
		if af.Variadic != bf.Variadic {
			return "variadic mismatch"
		}
		return Difference(af.BaseType, bf.BaseType)
	case Struct, Union:
		if a != b {
			return "incompatible struct/union types"
		}
		return ""
	case Basetype:
		if a.BitSize != b.BitSize {
			return "width mismatch"
		}
		return modDifference(a, b)
	default:
		return modDifference(a, b)
	}
}

func modDifference(a, b *Symbol) string {
	am := a.Mods & modCompareMask
	bm := b.Mods & modCompareMask
	if am.Has(ModConst) && !bm.Has(ModConst) {
		return "dropped const qualifier"
	}
	if am.Has(ModVolatile) && !bm.Has(ModVolatile) {
		return "dropped volatile qualifier"
	}
	if a.AddressSpace != b.AddressSpace {
		return "address space mismatch"
	}
	signA, signB := am.Has(ModSigned), bm.Has(ModSigned)
	unsA, unsB := am.Has(ModUnsigned), bm.Has(ModUnsigned)
	if signA != signB || unsA != unsB {
		if am.Has(ModChar) || bm.Has(ModChar) {
			return "char-safe signedness mismatch"
		}
		return "signedness mismatch"
	}
	return ""
}

// strip removes NODE wrappers and peels ENUM down to its base integer
// type.
func strip(s *Symbol) *Symbol {
	for s != nil {
		switch s.Kind {
		case Node:
			s = s.BaseType
			continue
		case Enum:
			if s.BaseType != nil {
				s = s.BaseType
				continue
			}
		}
		break
	}
	return s
}

// canonicalKind treats FN-through-PTR as FN and ARRAY as PTR, matching
// how a function or array designator degenerates to a pointer in
// comparison contexts.
func canonicalKind(s *Symbol) Kind {
	if s.Kind == Ptr && s.BaseType != nil && s.BaseType.Kind == Fn {
		return Fn
	}
	if s.Kind == Array {
		return Ptr
	}
	return s.Kind
}

// asFn returns the underlying Fn symbol, unwrapping a single Ptr-to-Fn
// indirection so argument/return comparison always operates on the real
// function type regardless of which side went through a pointer.
func asFn(s *Symbol) *Symbol {
	if s.Kind == Ptr && s.BaseType != nil && s.BaseType.Kind == Fn {
		return s.BaseType
	}
	return s
}

// Compatible reports whether Difference finds no mismatch.
func Compatible(a, b *Symbol) bool { return Difference(a, b) == "" }
