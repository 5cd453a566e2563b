package ident

import "testing"

type fakeSym struct {
	ns   Namespace
	next Binding
	name string
}

func (f *fakeSym) Namespace() Namespace { return f.ns }
func (f *fakeSym) Next() Binding        { return f.next }
func (f *fakeSym) SetNext(b Binding)    { f.next = b }

func TestInternIsHashConsed(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("foo")
	b := tbl.Intern("foo")
	if a != b {
		t.Fatalf("expected same pointer for repeated intern of same name")
	}
	c := tbl.Intern("bar")
	if a == c {
		t.Fatalf("expected distinct pointers for distinct names")
	}
}

func TestBuiltInMarksReserved(t *testing.T) {
	tbl := NewTable()
	id := tbl.BuiltIn("struct")
	if !id.Reserved {
		t.Fatalf("expected built-in identifier to be marked reserved")
	}
}

func TestPushLookupRemove(t *testing.T) {
	tbl := NewTable()
	id := tbl.Intern("x")

	typedefSym := &fakeSym{ns: NSTypedef, name: "typedef x"}
	symbolSym := &fakeSym{ns: NSSymbol, name: "symbol x"}

	id.Push(typedefSym)
	id.Push(symbolSym)

	if got := id.Lookup(NamespaceMask(NSSymbol)); got != symbolSym {
		t.Fatalf("expected symbol-namespace lookup to find symbolSym")
	}
	if got := id.Lookup(NamespaceMask(NSTypedef)); got != typedefSym {
		t.Fatalf("expected typedef-namespace lookup to find typedefSym")
	}
	if got := id.Lookup(NamespaceMask(NSEnum)); got != nil {
		t.Fatalf("expected no enum-namespace binding, got %v", got)
	}

	id.Remove(symbolSym)
	if got := id.Lookup(NamespaceMask(NSSymbol)); got != nil {
		t.Fatalf("expected symbol binding removed")
	}
	if got := id.Lookup(NamespaceMask(NSTypedef)); got != typedefSym {
		t.Fatalf("expected typedef binding to survive removal of symbol binding")
	}
}

func TestInternAllocatesFromArena(t *testing.T) {
	tbl := NewTable()
	tbl.Intern("a")
	tbl.Intern("b")
	tbl.Intern("a") // repeat: must not allocate a second time

	allocated, _, _ := tbl.idents.Stats()
	if allocated != 2 {
		t.Fatalf("expected exactly 2 arena allocations for 2 distinct names, got %d", allocated)
	}
}

func TestRemoveHead(t *testing.T) {
	tbl := NewTable()
	id := tbl.Intern("y")
	first := &fakeSym{ns: NSSymbol}
	id.Push(first)
	id.Remove(first)
	if id.SymbolChainHead() != nil {
		t.Fatalf("expected empty chain after removing sole binding")
	}
}
