// Package ident implements a hash-consed identifier interner: identifiers
// never move once created, so equality elsewhere in the module reduces to
// Go pointer equality, and every semantic meaning bound to a name across
// namespaces and scopes is reachable from a single per-identifier chain.
package ident

import (
	"sync"

	"sparsego/internal/arena"
)

// Namespace mirrors the enumeration of C namespaces a declared name can
// belong to. It lives here (rather than in the symbol package) because
// Symbol chains hang off the Ident itself and need the same tag to filter
// a lookup.
type Namespace int

const (
	NSNone Namespace = iota
	NSPreprocessor
	NSTypedef
	NSStruct
	NSEnum
	NSLabel
	NSSymbol
	NSIterator
)

// Binding is the minimal shape an interned identifier needs from whatever
// "symbol" type a later package hangs off it — the symbol package
// implements this with its full *Symbol.
type Binding interface {
	Namespace() Namespace
	Next() Binding
	SetNext(Binding)
}

// Ident is a hash-consed identifier: two identifiers with the same bytes
// are always the same *Ident, so `a == b` is a valid and sufficient
// equality check anywhere in the module.
type Ident struct {
	Name     string
	Reserved bool // a keyword, e.g. "if", "struct", "__builtin_va_list"
	Tainted  bool // carries a taint annotation from a prior macro expansion
	chain    Binding
}

// SymbolChainHead returns the head of the chain of Bindings (across every
// namespace and scope) currently bound to this identifier's name.
func (id *Ident) SymbolChainHead() Binding { return id.chain }

// Push prepends b to the identifier's symbol chain — used when a new
// binding for this name enters scope.
func (id *Ident) Push(b Binding) {
	b.SetNext(id.chain)
	id.chain = b
}

// Remove unlinks b from the chain in O(n) over the chain (typically very
// short: shadowing depth). The chain is singly linked, so unless b is the
// head, each removal walks the chain from its head to find b's predecessor.
func (id *Ident) Remove(b Binding) {
	if id.chain == b {
		id.chain = b.Next()
		return
	}
	for cur := id.chain; cur != nil; cur = cur.Next() {
		if cur.Next() == b {
			cur.SetNext(b.Next())
			return
		}
	}
}

// Lookup walks the chain and returns the first binding whose namespace is
// set in mask. mask is a bitmask of 1<<Namespace.
func (id *Ident) Lookup(mask uint32) Binding {
	for cur := id.chain; cur != nil; cur = cur.Next() {
		if mask&(1<<uint(cur.Namespace())) != 0 {
			return cur
		}
	}
	return nil
}

// NamespaceMask is a convenience for building the mask Lookup expects.
func NamespaceMask(ns ...Namespace) uint32 {
	var m uint32
	for _, n := range ns {
		m |= 1 << uint(n)
	}
	return m
}

// Table interns identifiers keyed on their bytes. Go's map already gives
// amortized O(1) hashed lookup with internal chaining, so Table is a thin,
// concurrency-safe wrapper over a map rather than a hand-rolled, fixed-size
// bucket array — the property that actually
// matters here (stable pointers, hash-consing) comes from always
// returning the same *Ident for the same string, not from the bucket
// implementation.
type Table struct {
	mu     sync.Mutex
	byName map[string]*Ident
	idents *arena.Arena[Ident]
}

// NewTable creates an empty interner. Identifiers are bump-allocated from
// a single arena.Arena[Ident] rather than one-by-one with `new`: an
// identifier table lives and dies with the whole session, never frees
// individual entries, and is exactly the "allocate many, free all at
// once" shape the arena exists for.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Ident), idents: arena.New[Ident]("ident")}
}

// Intern returns the canonical *Ident for name, creating it on first use.
func (t *Table) Intern(name string) *Ident {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := t.idents.Allocate()
	id.Name = name
	t.byName[name] = id
	return id
}

// BuiltIn interns name and marks it Reserved (used for keywords and
// predefined macro names).
func (t *Table) BuiltIn(name string) *Ident {
	id := t.Intern(name)
	id.Reserved = true
	return id
}

// Len reports how many distinct identifiers have been interned, mostly
// useful for tests and diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byName)
}
