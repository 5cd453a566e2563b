// Package eval implements the evaluator: a bottom-up walk over the
// internal/cast AST that attaches internal/types.Symbol ctypes, resolves
// names, performs the usual arithmetic conversions and array/function
// degeneration, checks assignment targets, and folds constants.
//
// Name resolution does not reuse internal/cast's parse-time scope chain
// (that chain is unwound as the parser leaves each block) — eval
// re-establishes its own scope stack by walking the same block structure
// the parser already recorded in the Stmt tree, keeping this pass's
// bookkeeping private rather than threading shared mutable state through
// every stage.
package eval

import (
	"sparsego/internal/cast"
	"sparsego/internal/diag"
	"sparsego/internal/types"
)

type scope struct {
	vars   map[string]*types.Symbol
	parent *scope
}

func (s *scope) lookup(name string) *types.Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.vars[name]; ok {
			return sym
		}
	}
	return nil
}

// Evaluator carries the state needed for one translation unit: where to
// report diagnostics, the built-in base types, and the target layout
// driving size/alignment.
type Evaluator struct {
	Bag      *diag.Bag
	Builtins *types.Builtins
	Layout   types.LayoutConfig

	scope *scope
}

// NewEvaluator builds an Evaluator for one translation unit.
func NewEvaluator(bag *diag.Bag, builtins *types.Builtins, layout types.LayoutConfig) *Evaluator {
	return &Evaluator{Bag: bag, Builtins: builtins, Layout: layout}
}

func (ev *Evaluator) push() { ev.scope = &scope{vars: make(map[string]*types.Symbol), parent: ev.scope} }
func (ev *Evaluator) pop()  { ev.scope = ev.scope.parent }

func (ev *Evaluator) bind(sym *types.Symbol) {
	if sym != nil && sym.Ident != nil {
		ev.scope.vars[sym.Ident.Name] = sym
	}
}

// EvaluateSymbolList attaches types to every top-level symbol's declared
// type, function body, or initializer, in declaration order.
func (ev *Evaluator) EvaluateSymbolList(syms []*types.Symbol) []*types.Symbol {
	ev.push()
	for _, sym := range syms {
		ev.bind(sym)
	}
	for _, sym := range syms {
		ev.evalSymbol(sym)
	}
	ev.pop()
	return syms
}

func (ev *Evaluator) evalSymbol(sym *types.Symbol) {
	if sym == nil {
		return
	}
	types.Examine(sym, ev.Layout)

	if sym.BaseType != nil && sym.BaseType.Kind == types.Fn {
		if body, ok := sym.Body.(*cast.Stmt); ok && body != nil {
			ev.push()
			for _, arg := range sym.BaseType.Arguments {
				types.Examine(arg, ev.Layout)
				ev.bind(arg)
			}
			ev.evalStmt(body)
			ev.pop()
		}
		return
	}

	if init, ok := sym.Body.(*cast.Expr); ok && init != nil {
		sym.Body = ev.normalizeInitializer(sym.BaseType, init)
	}
}
