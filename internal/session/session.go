package session

import (
	"fmt"
	"os"

	"sparsego/internal/cast"
	"sparsego/internal/diag"
	"sparsego/internal/eval"
	"sparsego/internal/ident"
	"sparsego/internal/ir"
	"sparsego/internal/linearize"
	"sparsego/internal/liveness"
	"sparsego/internal/preprocess"
	"sparsego/internal/simplify"
	"sparsego/internal/ssa"
	"sparsego/internal/token"
	"sparsego/internal/types"
	"sparsego/internal/unssa"
)

// FatalError is the single error type surfaced from a Session's public
// entry points: internal passes should never unwind past a
// translation-unit boundary, so every panic reaching Session.Recover is
// converted to one of these rather than propagating.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return "internal compiler error: " + e.Message }

// Session owns every table and stack that would otherwise need to be a
// process-wide global, and exposes the compiler's public pipeline stages
// as methods.
type Session struct {
	Options  *Options
	Interner *ident.Table
	Bag      *diag.Bag
	Builtins *types.Builtins
	Layout   types.LayoutConfig
	PP       *preprocess.Preprocessor
}

// New builds a Session from parsed driver options, predefining macros
// (-D/-U), include paths (-I) and the target layout (-m32/-m64/...).
func New(opts *Options) *Session {
	interner := ident.NewTable()
	bag := diag.NewBag()
	layout := opts.Layout()
	builtins := types.NewBuiltins(layout)

	pp := preprocess.New(interner, bag)
	pp.IncludePaths = opts.Includes
	if v := StdcVersion(opts.Std); v != "" {
		pp.DefineText("__STDC_VERSION__=" + v)
	}
	for _, d := range opts.Defines {
		if d.Value != "" {
			pp.DefineText(d.Name + "=" + d.Value)
		} else {
			pp.DefineText(d.Name)
		}
	}
	for _, u := range opts.Undefines {
		pp.Undef(u)
	}

	return &Session{Options: opts, Interner: interner, Bag: bag, Builtins: builtins, Layout: layout, PP: pp}
}

// Recover turns a panic reaching a public entry point into a FatalError
// rather than letting it unwind further. Call as `defer s.Recover(&err)`
// in a function with a named error return.
func (s *Session) Recover(err *error) {
	if r := recover(); r != nil {
		if fe, ok := r.(*FatalError); ok {
			*err = fe
			return
		}
		*err = &FatalError{Message: fmt.Sprint(r)}
	}
}

// Tokenize reads and scans one source file into a Token list.
func (s *Session) Tokenize(path string) (*token.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc, err := token.NewScanner(f, path, s.Interner, s.Bag)
	if err != nil {
		return nil, err
	}
	return sc.Scan(), nil
}

// Preprocess runs macro expansion and conditional-inclusion over head.
func (s *Session) Preprocess(head *token.Token) *token.Token {
	return s.PP.Preprocess(head)
}

// ParseTranslationUnit parses a preprocessed token list into top-level
// Symbols.
func (s *Session) ParseTranslationUnit(head *token.Token) []*types.Symbol {
	toks := token.ToSlice(head)
	p := cast.NewParser(toks, s.Interner, s.Bag, s.Builtins, s.Layout)
	return p.ParseTranslationUnit()
}

// EvaluateSymbolList type-checks and constant-folds a translation unit's
// top-level symbols.
func (s *Session) EvaluateSymbolList(syms []*types.Symbol) []*types.Symbol {
	ev := eval.NewEvaluator(s.Bag, s.Builtins, s.Layout)
	return ev.EvaluateSymbolList(syms)
}

// LinearizeSymbol lowers sym's body to IR, returning nil for non-functions,
// including a function prototype with no body to linearize.
func (s *Session) LinearizeSymbol(sym *types.Symbol) *ir.EntryPoint {
	if sym.BaseType == nil || sym.BaseType.Kind != types.Fn {
		return nil
	}
	if body, ok := sym.Body.(*cast.Stmt); !ok || body == nil {
		return nil
	}
	return linearize.LinearizeSymbol(s.Bag, s.Builtins, s.Layout, sym)
}

// Optimize runs the optimizer pipeline over ep in place. SSA construction
// and PHI elimination are structural (every entry point leaving Optimize
// must be in the same non-SSA shape it started in, with symbols promoted
// where legal), so they always run; the peephole/CSE simplifier and the
// liveness-driven dead-code pass are what -O0/-O1/-O2/-Os actually toggle.
func (s *Session) Optimize(ep *ir.EntryPoint) {
	ssa.Promote(ep)
	if s.Options.OptLevel > 0 {
		simplify.Simplify(ep)
		liveness.Analyze(ep)
	}
	liveness.CheckContexts(ep, s.Bag)
	unssa.Eliminate(ep)
}

// ExitCode maps the session's final state to the driver's exit code
// table: 0 = no errors, 1 = errors reported (or, under -Werror, any
// warning), 127 = fatal internal inconsistency (reserved for a
// FatalError reaching the caller, which doesn't flow through the Bag at
// all).
func (s *Session) ExitCode() int {
	if s.Options.Werror {
		warnings, _ := s.Bag.Counts()
		if warnings > 0 {
			return 1
		}
	}
	return s.Bag.ExitCode()
}
