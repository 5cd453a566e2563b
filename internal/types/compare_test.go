package types

import "testing"

func TestDifferenceIdenticalBasetypes(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	if d := Difference(b.Int, b.Int); d != "" {
		t.Fatalf("identical int types should compare equal, got %q", d)
	}
}

func TestDifferenceWidthMismatch(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	if Compatible(b.Int, b.Short) {
		t.Fatalf("int and short must not compare compatible")
	}
}

func TestDifferenceConstDroppedIsError(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	constInt := &Symbol{Kind: Basetype, BaseType: b.Int, BitSize: b.Int.BitSize, Mods: b.Int.Mods | ModConst}
	plain := &Symbol{Kind: Basetype, BaseType: b.Int, BitSize: b.Int.BitSize, Mods: b.Int.Mods}
	if d := Difference(constInt, plain); d == "" {
		t.Fatalf("expected dropping const to be a difference")
	}
}

func TestDifferenceStorageModifiersIgnored(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	reg := &Symbol{Kind: Basetype, BitSize: b.Int.BitSize, Mods: b.Int.Mods | ModRegister}
	auto := &Symbol{Kind: Basetype, BitSize: b.Int.BitSize, Mods: b.Int.Mods | ModAuto}
	if d := Difference(reg, auto); d != "" {
		t.Fatalf("storage-class modifiers must be ignored, got %q", d)
	}
}

func TestDifferenceNodeStripped(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	wrapped := &Symbol{Kind: Node, BaseType: b.Int}
	if d := Difference(wrapped, b.Int); d != "" {
		t.Fatalf("NODE wrapper should be transparent to comparison, got %q", d)
	}
}

func TestDifferenceEnumPeeledToBase(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	e := &Symbol{Kind: Enum, BaseType: b.Int, BitSize: b.Int.BitSize}
	if d := Difference(e, b.Int); d != "" {
		t.Fatalf("enum should compare equal to its peeled base type, got %q", d)
	}
}

func TestDifferenceArrayTreatedAsPtr(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	arr := &Symbol{Kind: Array, BaseType: b.Int, ArraySizeKnown: true, ArraySizeConst: 4}
	ptr := &Symbol{Kind: Ptr, BaseType: b.Int}
	if d := Difference(arr, ptr); d != "" {
		t.Fatalf("array-to-pointer decay should compare equal, got %q", d)
	}
}

func TestDifferenceFnThroughPtrMatchesFn(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	fn := &Symbol{Kind: Fn, BaseType: b.Int}
	fnPtr := &Symbol{Kind: Ptr, BaseType: fn}
	if d := Difference(fnPtr, fn); d != "" {
		t.Fatalf("function pointer should compare equal to the bare function type, got %q", d)
	}
}

func TestDifferenceStructIdentityOnly(t *testing.T) {
	s1 := &Symbol{Kind: Struct}
	s2 := &Symbol{Kind: Struct}
	if Compatible(s1, s2) {
		t.Fatalf("two distinct struct symbols must not be compatible even if structurally identical")
	}
	if d := Difference(s1, s1); d != "" {
		t.Fatalf("a struct type must be compatible with itself, got %q", d)
	}
}
