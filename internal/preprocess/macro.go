// Package preprocess implements the macro table, conditional stack, and
// #include path list that turn a raw token stream into an expanded one.
package preprocess

import (
	"sparsego/internal/ident"
	"sparsego/internal/token"
)

// Macro is a PREPROCESSOR-namespace binding: a global macro table
// (symbols in the PREPROCESSOR namespace) whose expansion body is a
// token list with argument placeholders. It implements ident.Binding so
// it threads onto the same per-identifier chain every other symbol kind
// uses.
type Macro struct {
	Name         *ident.Ident
	FunctionLike bool
	Params       []string
	Variadic     bool
	Body         []*token.Token

	// Busy prevents self-recursive expansion during the macro's own
	// expansion: the macro symbol is marked busy for the duration of its
	// own expansion.
	Busy bool

	next ident.Binding
}

func (m *Macro) Namespace() ident.Namespace { return ident.NSPreprocessor }
func (m *Macro) Next() ident.Binding        { return m.next }
func (m *Macro) SetNext(b ident.Binding)    { m.next = b }

// lookupMacro returns the PREPROCESSOR-namespace binding for id, if any.
func lookupMacro(id *ident.Ident) *Macro {
	b := id.Lookup(ident.NamespaceMask(ident.NSPreprocessor))
	if b == nil {
		return nil
	}
	return b.(*Macro)
}

// define installs (or replaces) a macro binding for id. A prior definition
// for the same name is unlinked first — #define is rebind-in-place, not
// stacked, unlike ordinary scoped symbols.
func define(id *ident.Ident, m *Macro) {
	if old := lookupMacro(id); old != nil {
		id.Remove(old)
	}
	m.Name = id
	id.Push(m)
}

// undef removes id's macro binding, if any; implements the `#undef`
// directive.
func undef(id *ident.Ident) {
	if old := lookupMacro(id); old != nil {
		id.Remove(old)
	}
}
