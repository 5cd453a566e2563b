package types

import "testing"

func TestExamineBitfieldPacking(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	a := &Symbol{Kind: Bitfield, BaseType: b.Int, FieldWidth: 3}
	c := &Symbol{Kind: Bitfield, BaseType: b.Int, FieldWidth: 5}
	s := &Symbol{Kind: Struct, Members: []*Symbol{a, c}}

	Examine(s, cfg)

	if a.BitOffset != 0 || a.BitSize != 3 {
		t.Fatalf("a: offset=%d size=%d, want offset=0 size=3", a.BitOffset, a.BitSize)
	}
	if c.BitOffset != 3 || c.BitSize != 5 {
		t.Fatalf("c: offset=%d size=%d, want offset=3 size=5", c.BitOffset, c.BitSize)
	}
	if s.BitSize != 32 {
		t.Fatalf("struct bit size = %d, want 32 (one int allocation unit)", s.BitSize)
	}
}

func TestExamineZeroWidthBitfieldResetsUnit(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	x := &Symbol{Kind: Bitfield, BaseType: b.Int, FieldWidth: 4}
	zero := &Symbol{Kind: Bitfield, BaseType: b.Int, FieldWidth: 0}
	y := &Symbol{Kind: Bitfield, BaseType: b.Int, FieldWidth: 4}
	s := &Symbol{Kind: Struct, Members: []*Symbol{x, zero, y}}

	Examine(s, cfg)

	if x.BitOffset != 0 {
		t.Fatalf("x.BitOffset = %d, want 0", x.BitOffset)
	}
	if y.BitOffset != 0 {
		t.Fatalf("y.BitOffset = %d, want 0 (new unit after zero-width field)", y.BitOffset)
	}
	if s.BitSize != 64 {
		t.Fatalf("struct bit size = %d, want 64 (two int units)", s.BitSize)
	}
}

func TestExamineStructMixedMembers(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	c := &Symbol{Kind: Node, BaseType: b.Char}
	n := &Symbol{Kind: Node, BaseType: b.Int}
	s := &Symbol{Kind: Struct, Members: []*Symbol{c, n}}

	Examine(s, cfg)

	if c.Offset != 0 {
		t.Fatalf("char offset = %d, want 0", c.Offset)
	}
	if n.Offset != 4 {
		t.Fatalf("int offset = %d, want 4 (aligned after char)", n.Offset)
	}
	if s.Alignment != 4 {
		t.Fatalf("struct alignment = %d, want 4", s.Alignment)
	}
	if s.BitSize != 64 {
		t.Fatalf("struct bit size = %d, want 64 (8 bytes, padded)", s.BitSize)
	}
}

func TestExamineUnionTakesMax(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	c := &Symbol{Kind: Node, BaseType: b.Char}
	l := &Symbol{Kind: Node, BaseType: b.Long}
	u := &Symbol{Kind: Union, Members: []*Symbol{c, l}}

	Examine(u, cfg)

	if c.Offset != 0 || l.Offset != 0 {
		t.Fatalf("union members must all sit at offset 0, got c=%d l=%d", c.Offset, l.Offset)
	}
	if u.BitSize != 64 {
		t.Fatalf("union bit size = %d, want 64 (size of widest member)", u.BitSize)
	}
	if u.Alignment != 8 {
		t.Fatalf("union alignment = %d, want 8", u.Alignment)
	}
}

func TestExamineArrayIncompleteSentinel(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	arr := &Symbol{Kind: Array, BaseType: b.Int, ArraySizeKnown: false}

	Examine(arr, cfg)

	if !arr.IsIncomplete() {
		t.Fatalf("expected incomplete array to report IsIncomplete()")
	}
}

func TestExamineArrayKnownSize(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	arr := &Symbol{Kind: Array, BaseType: b.Int, ArraySizeKnown: true, ArraySizeConst: 10}

	Examine(arr, cfg)

	if arr.BitSize != 320 {
		t.Fatalf("array bit size = %d, want 320 (10 * 32)", arr.BitSize)
	}
}

func TestExaminePointerSelfReference(t *testing.T) {
	cfg := DefaultLayout()
	// A struct whose own pointer type refers back to it: list_node { struct
	// list_node *next; }. Must not infinite-loop: examined is set before
	// recursing into BaseType.
	node := &Symbol{Kind: Struct}
	ptr := &Symbol{Kind: Ptr, BaseType: node}
	next := &Symbol{Kind: Node, BaseType: ptr}
	node.Members = []*Symbol{next}

	Examine(node, cfg)

	if ptr.BitSize != cfg.BitsInPointer {
		t.Fatalf("self-referential pointer member not examined: BitSize=%d", ptr.BitSize)
	}
	if node.BitSize != cfg.BitsInPointer {
		t.Fatalf("struct holding one pointer should be pointer-sized, got %d", node.BitSize)
	}
}

func TestExamineIsMemoized(t *testing.T) {
	cfg := DefaultLayout()
	b := NewBuiltins(cfg)
	ptr := &Symbol{Kind: Ptr, BaseType: b.Int}
	Examine(ptr, cfg)
	ptr.BitSize = 999 // tamper to prove a second call is a no-op
	Examine(ptr, cfg)
	if ptr.BitSize != 999 {
		t.Fatalf("Examine re-ran on an already-examined symbol")
	}
}
