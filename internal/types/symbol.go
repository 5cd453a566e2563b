// Package types implements the Symbol union and type system: the kind
// lattice, modifier bitset, layout computation, type comparison, and the
// restricted/fouled integer lattice.
//
// Symbol represents the pointer-rich, mutually-recursive graph of a C
// translation unit's declarations as a tagged sum type with ordinary
// garbage-collected pointers rather than ref-counted handles: a single struct with a Kind
// tag and only the fields relevant to that kind populated, a plain
// struct rather than an interface hierarchy. Cycles are already broken
// at PTR indirection by deferred size computation.
package types

import (
	"fmt"

	"sparsego/internal/diag"
	"sparsego/internal/ident"
)

// Kind tags the Symbol union.
type Kind int

const (
	Uninitialized Kind = iota
	Preprocessor
	Basetype
	Node
	Ptr
	Fn
	Array
	Struct
	Union
	Enum
	Typedef
	Typeof
	Member
	Bitfield
	Label
	Restrict
	Fouled
)

// Mod is the bitset of a symbol's modifiers: storage class, qualifiers,
// signedness, width, and analysis markers.
type Mod uint32

const (
	ModAuto Mod = 1 << iota
	ModRegister
	ModStatic
	ModExtern
	ModConst
	ModVolatile
	ModSigned
	ModUnsigned
	ModChar
	ModShort
	ModLong
	ModLongLong
	ModTypedef
	ModInline
	ModAddressable
	ModNoCast
	ModNoDeref
	ModAccessed
	ModToplevel
	ModLabel
	ModAssigned
	ModType
	ModSafe
)

func (m Mod) Has(f Mod) bool { return m&f != 0 }

// Scope is one level of the lexical scope stack.
type Scope struct {
	Kind    ScopeKind
	Parent  *Scope
	Symbols []*Symbol
}

type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFile
	ScopeFunction
	ScopeBlock
	ScopeSymbol
)

// Toplevel reports whether s is the global/file scope.
func (s *Scope) Toplevel() bool {
	return s != nil && (s.Kind == ScopeGlobal || s.Kind == ScopeFile)
}

// Bind adds sym to this scope's symbol list and onto its identifier's
// chain.
func (s *Scope) Bind(sym *Symbol) {
	s.Symbols = append(s.Symbols, sym)
	if sym.Ident != nil {
		sym.Ident.Push(sym)
	}
}

// Exit removes every symbol this scope bound from its identifier's chain;
// each removal walks that chain (see ident.Ident.Remove), so it is not
// O(1) per symbol.
func (s *Scope) Exit() {
	for _, sym := range s.Symbols {
		if sym.Ident != nil {
			sym.Ident.Remove(sym)
		}
	}
}

// Symbol is the tagged union covering every declared or implicit name:
// variables, functions, types, members, labels, and the restricted/fouled
// integer markers.
type Symbol struct {
	Kind      Kind
	Ident     *ident.Ident
	NS        ident.Namespace // the declaration's namespace; named NS to avoid colliding with the Namespace() method ident.Binding requires
	Position  diag.Position
	Scope     *Scope

	BaseType *Symbol // the type this symbol refines
	Mods     Mod
	Alignment int
	AddressSpace int // `as`: address-space number, 0 == generic

	BitSize   int // -1 sentinel: incomplete
	BitOffset int
	Offset    int
	FieldWidth int
	ArraySizeExpr interface{} // *cast.Expr for non-constant extents; opaque here to avoid an import cycle
	ArraySizeConst int
	ArraySizeKnown bool

	// FN
	Arguments []*Symbol
	Variadic  bool
	Body      interface{} // *cast.Stmt, opaque for the same reason as ArraySizeExpr

	// STRUCT/UNION/ENUM
	Members []*Symbol

	// dedup / rewrite bookkeeping
	SameSymbol *Symbol
	Replace    *Symbol

	// RESTRICT: the name of the restricted kind, for diagnostics.
	RestrictName string

	examined bool

	next ident.Binding // ident.Binding chain link
}

func (s *Symbol) Namespace() ident.Namespace { return s.NS }
func (s *Symbol) Next() ident.Binding        { return s.next }
func (s *Symbol) SetNext(b ident.Binding)    { s.next = b }

var _ ident.Binding = (*Symbol)(nil)

// Global well-known built-in type symbols. These are
// created once per Session (see internal/session) since each Session owns
// its own arenas and must not share mutable Symbol state across
// translation units run in sequence with different -m32/-m64 etc. driver
// options.
type Builtins struct {
	Void                                     *Symbol
	Bool                                     *Symbol
	Char, SChar, UChar                       *Symbol
	Short, UShort                            *Symbol
	Int, UInt                                *Symbol
	Long, ULong                              *Symbol
	LongLong, ULongLong                      *Symbol
	Float, Double, LongDouble                *Symbol
	VoidPtr                                  *Symbol
	LabelType                                *Symbol
	BadCtype                                 *Symbol
	SizeT                                    *Symbol
}

// LayoutConfig carries the target-dependent widths the driver options
// select (-m32/-m64/-mx32/-mllp64 etc.).
type LayoutConfig struct {
	BitsInPointer   int
	PointerAlignment int
	BitsInInt       int
	BitsInShort     int
	BitsInLong      int
	BitsInLongLong  int
	BitsInChar      int
	BitsInEnum      int
	UnsignedChar    bool
}

// DefaultLayout is LP64 (-m64), the common default target layout.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		BitsInPointer: 64, PointerAlignment: 8,
		BitsInInt: 32, BitsInShort: 16, BitsInLong: 64, BitsInLongLong: 64,
		BitsInChar: 8, BitsInEnum: 32,
	}
}

// NewBuiltins constructs the built-in base types for one Session under the
// given layout.
func NewBuiltins(cfg LayoutConfig) *Builtins {
	mk := func(name string, bits int, mods Mod) *Symbol {
		return &Symbol{Kind: Basetype, Mods: mods, BitSize: bits, Alignment: alignFromBits(bits)}
	}
	b := &Builtins{}
	b.Void = &Symbol{Kind: Basetype, BitSize: 0, Alignment: 1}
	b.Bool = mk("bool", 8, ModUnsigned)
	b.Char = mk("char", cfg.BitsInChar, boolMod(cfg.UnsignedChar))
	b.SChar = mk("signed char", cfg.BitsInChar, ModSigned|ModChar)
	b.UChar = mk("unsigned char", cfg.BitsInChar, ModUnsigned|ModChar)
	b.Short = mk("short", cfg.BitsInShort, ModSigned|ModShort)
	b.UShort = mk("unsigned short", cfg.BitsInShort, ModUnsigned|ModShort)
	b.Int = mk("int", cfg.BitsInInt, ModSigned)
	b.UInt = mk("unsigned int", cfg.BitsInInt, ModUnsigned)
	b.Long = mk("long", cfg.BitsInLong, ModSigned|ModLong)
	b.ULong = mk("unsigned long", cfg.BitsInLong, ModUnsigned|ModLong)
	b.LongLong = mk("long long", cfg.BitsInLongLong, ModSigned|ModLongLong)
	b.ULongLong = mk("unsigned long long", cfg.BitsInLongLong, ModUnsigned|ModLongLong)
	b.Float = mk("float", 32, 0)
	b.Double = mk("double", 64, 0)
	b.LongDouble = mk("long double", 128, ModLong)
	b.LabelType = &Symbol{Kind: Label, BitSize: 0}
	b.BadCtype = &Symbol{Kind: Uninitialized, BitSize: -1}
	b.VoidPtr = &Symbol{Kind: Ptr, BaseType: b.Void, BitSize: cfg.BitsInPointer, Alignment: cfg.PointerAlignment}
	if cfg.BitsInLong >= 64 {
		b.SizeT = b.ULong
	} else {
		b.SizeT = b.UInt
	}
	return b
}

func boolMod(unsigned bool) Mod {
	if unsigned {
		return ModUnsigned | ModChar
	}
	return ModSigned | ModChar
}

func alignFromBits(bits int) int {
	switch {
	case bits <= 8:
		return 1
	case bits <= 16:
		return 2
	case bits <= 32:
		return 4
	default:
		return 8
	}
}

// IsIncomplete reports whether s's size is not yet known: BitSize is
// non-negative unless the type is incomplete, in which case it's -1.
func (s *Symbol) IsIncomplete() bool {
	return s.BitSize < 0
}

func (s *Symbol) String() string {
	if s.Ident != nil {
		return s.Ident.Name
	}
	return fmt.Sprintf("<anon %v>", s.Kind)
}
