package eval

import (
	"sparsego/internal/cast"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// evalUse evaluates e and applies array/function degeneration, the shape
// every ordinary operand context needs.
func (ev *Evaluator) evalUse(e *cast.Expr) *types.Symbol {
	if e == nil {
		return nil
	}
	t := ev.evalExpr(e)
	return ev.degenerate(t)
}

func (ev *Evaluator) isLvalue(e *cast.Expr) bool {
	switch e.Kind {
	case cast.EIdentifier:
		return e.Sym != nil
	case cast.EDeref, cast.EBitfield, cast.EIndex:
		return true
	}
	return false
}

// rootSymbol walks to the named Symbol at the root of an lvalue
// expression, so assignment/address-of can mark MOD_ASSIGNED/
// MOD_ADDRESSABLE on the actual declared symbol.
func rootSymbol(e *cast.Expr) *types.Symbol {
	switch e.Kind {
	case cast.EIdentifier:
		return e.Sym
	case cast.EBitfield:
		if e.Sym != nil {
			return e.Sym
		}
		return rootSymbol(e.Operand)
	case cast.EDeref, cast.EIndex:
		return rootSymbol(e.Operand)
	}
	return nil
}

func (ev *Evaluator) checkAssignTarget(e *cast.Expr) {
	if !ev.isLvalue(e) {
		ev.Bag.Error(e.Position, "assignment to non-lvalue")
		return
	}
	if root := rootSymbol(e); root != nil {
		root.Mods |= types.ModAssigned
	}
}

// evalExpr attaches e.Ctype (the natural, un-degenerated type) and returns
// it, walking the expression bottom-up.
func (ev *Evaluator) evalExpr(e *cast.Expr) *types.Symbol {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case cast.EValue:
		e.Ctype = ev.Builtins.Int
	case cast.EFValue:
		e.Ctype = ev.Builtins.Double
	case cast.EString:
		arr := &types.Symbol{Kind: types.Array, BaseType: ev.Builtins.Char, ArraySizeKnown: true, ArraySizeConst: e.Str.Len()}
		types.Examine(arr, ev.Layout)
		e.Ctype = arr

	case cast.EIdentifier:
		sym := ev.scope.lookup(e.Name)
		if sym == nil {
			ev.Bag.Warn(e.Position, "undefined identifier %q", e.Name)
			e.Kind = cast.EValue
			e.Value = 0
			e.Ctype = ev.Builtins.Int
			break
		}
		e.Sym = sym
		sym.Mods |= types.ModAccessed
		types.Examine(sym, ev.Layout)
		e.Ctype = sym.BaseType

	case cast.EBinop, cast.ELogical, cast.ECompare:
		ev.evalBinary(e)

	case cast.EAssignment:
		ev.evalExpr(e.Left)
		rt := ev.evalUse(e.Right)
		ev.checkAssignTarget(e.Left)
		if e.Op != token.OpAssign {
			if d := types.Difference(e.Left.Ctype, rt); d != "" && !ev.isArithmetic(e.Left.Ctype) {
				ev.Bag.Warn(e.Position, "incompatible types in compound assignment: %s", d)
			}
		} else if d := types.Difference(e.Left.Ctype, rt); d != "" && !(ev.isArithmetic(e.Left.Ctype) && ev.isArithmetic(rt)) {
			ev.Bag.Warn(e.Position, "incompatible types in assignment: %s", d)
		}
		e.Ctype = e.Left.Ctype

	case cast.EDeref:
		t := ev.evalUse(e.Operand)
		if !isPointer(t) {
			ev.Bag.Error(e.Position, "dereference of non-pointer type")
			e.Ctype = ev.Builtins.Int
			break
		}
		e.Ctype = t.BaseType

	case cast.EPreop:
		ev.evalPreop(e)

	case cast.EPostop:
		ev.checkAssignTarget(e.Operand)
		e.Ctype = ev.evalUse(e.Operand)

	case cast.ECast, cast.EImpliedCast:
		ev.evalExpr(e.Operand)
		types.Examine(e.TypeOperand, ev.Layout)
		e.Ctype = e.TypeOperand

	case cast.ESizeof, cast.EAlignof, cast.EPtrSizeof:
		ev.evalSizeofLike(e)

	case cast.EConditional:
		ev.evalConditional(e)

	case cast.EStatement:
		ev.evalStmt(e.Body)
		e.Ctype = ev.trailingType(e.Body)

	case cast.ECall:
		ev.evalCall(e)

	case cast.EComma:
		ev.evalUse(e.Left)
		e.Ctype = ev.evalUse(e.Right)

	case cast.EBitfield:
		ev.evalMember(e)

	case cast.ELabel:
		e.Ctype = ev.Builtins.VoidPtr

	case cast.EIndex:
		base := ev.evalUse(e.Operand)
		ev.evalUse(e.Index)
		if !isPointer(base) {
			ev.Bag.Error(e.Position, "subscript of non-pointer/array type")
			e.Ctype = ev.Builtins.Int
			break
		}
		e.Ctype = base.BaseType

	case cast.EInitializer:
		// A bare initializer list reached outside an initializer context
		// (e.g. a nested compound literal); normalize against its own
		// shape is the caller's job, so just type each element loosely.
		for _, el := range e.Elements {
			ev.evalUse(el)
		}

	case cast.EType:
		types.Examine(e.TypeOperand, ev.Layout)
		e.Ctype = e.TypeOperand

	case cast.EBad:
		e.Ctype = ev.Builtins.BadCtype
	}
	return e.Ctype
}

func (ev *Evaluator) evalPreop(e *cast.Expr) {
	switch e.Op {
	case token.OpAmp:
		t := ev.evalExpr(e.Operand) // raw: &array yields pointer-to-array, no decay
		if root := rootSymbol(e.Operand); root != nil {
			root.Mods |= types.ModAddressable
		}
		e.Ctype = &types.Symbol{Kind: types.Ptr, BaseType: t, BitSize: ev.Layout.BitsInPointer, Alignment: ev.Layout.PointerAlignment}
	case token.OpIncrement, token.OpDecrement:
		ev.checkAssignTarget(e.Operand)
		e.Ctype = ev.evalUse(e.Operand)
	case token.OpNot:
		ev.evalUse(e.Operand)
		e.Ctype = ev.Builtins.Int
	case token.OpTilde:
		t := ev.promote(ev.evalUse(e.Operand))
		e.Ctype = t
	default: // unary + / -
		t := ev.promote(ev.evalUse(e.Operand))
		e.Ctype = t
	}
}

func (ev *Evaluator) evalBinary(e *cast.Expr) {
	lt := ev.evalUse(e.Left)
	rt := ev.evalUse(e.Right)

	if e.Kind == cast.ELogical {
		e.Ctype = ev.Builtins.Int
		return
	}

	class := types.ClassOther
	switch e.Op {
	case token.OpAmp:
		class = types.ClassUnfouling
	case token.OpPipe, token.OpCaret:
		class = types.ClassKeepFouled
	case token.OpEq, token.OpNe:
		class = types.ClassEqNe
	}
	if class != types.ClassOther || e.Kind == cast.ECompare {
		rZero := e.Right.Kind == cast.EValue && e.Right.Value == 0
		action := types.RestrictCombine(class, restrictNameOf(lt), restrictNameOf(rt), rZero)
		switch action {
		case types.Invalid:
			ev.Bag.Error(e.Position, "mixing distinct restricted integer types")
		case types.Defoul:
			if lt != nil && lt.Kind == types.Restrict {
				lt = lt.BaseType
			}
			if rt != nil && rt.Kind == types.Restrict {
				rt = rt.BaseType
			}
		}
	}

	if e.Kind == cast.ECompare {
		e.Ctype = ev.Builtins.Int
		return
	}

	switch e.Op {
	case token.OpPlus:
		switch {
		case isPointer(lt) && ev.isInteger(rt):
			e.Ctype = lt
		case isPointer(rt) && ev.isInteger(lt):
			e.Ctype = rt
		case isPointer(lt) && isPointer(rt):
			ev.Bag.Error(e.Position, "pointer + pointer is invalid")
			e.Ctype = lt
		default:
			e.Ctype = ev.biggerIntType(lt, rt)
		}
	case token.OpMinus:
		switch {
		case isPointer(lt) && isPointer(rt):
			if d := types.Difference(lt.BaseType, rt.BaseType); d != "" {
				ev.Bag.Warn(e.Position, "subtracting incompatible pointer types: %s", d)
			}
			if sz := lt.BaseType.BitSize / 8; sz > 0 && (sz&(sz-1)) != 0 {
				ev.Bag.Warn(e.Position, "pointer difference element size is not a power of two")
			}
			e.Ctype = ev.Builtins.Long
		case isPointer(lt) && ev.isInteger(rt):
			e.Ctype = lt
		default:
			e.Ctype = ev.biggerIntType(lt, rt)
		}
	default:
		e.Ctype = ev.biggerIntType(lt, rt)
	}
}

func (ev *Evaluator) evalConditional(e *cast.Expr) {
	ev.evalUse(e.Cond)
	var trueType *types.Symbol
	if e.Branch != nil {
		trueType = ev.evalUse(e.Branch)
	} else {
		trueType = ev.degenerate(e.Cond.Ctype) // GNU `a ?: c`: the condition doubles as the true arm
	}
	elseType := ev.evalUse(e.ElseBranch)

	switch {
	case ev.isArithmetic(trueType) && ev.isArithmetic(elseType):
		e.Ctype = ev.biggerIntType(trueType, elseType)
	case isPointer(trueType) && isPointer(elseType):
		if types.Compatible(trueType.BaseType, elseType.BaseType) {
			e.Ctype = trueType
		} else if trueType.BaseType == ev.Builtins.Void {
			e.Ctype = elseType
		} else {
			e.Ctype = trueType
		}
	case isPointer(trueType):
		e.Ctype = trueType
	case isPointer(elseType):
		e.Ctype = elseType
	default:
		e.Ctype = trueType
	}
}

// evalSizeofLike folds sizeof/alignof/__alignof__ to a literal of type
// size_t once the operand or type-operand's layout is known.
func (ev *Evaluator) evalSizeofLike(e *cast.Expr) {
	var t *types.Symbol
	if e.TypeOperand != nil {
		types.Examine(e.TypeOperand, ev.Layout)
		t = e.TypeOperand
	} else {
		t = ev.evalExpr(e.Operand) // raw: sizeof of an array must not decay
	}
	if t == nil || t.IsIncomplete() {
		ev.Bag.Error(e.Position, "sizeof of incomplete type")
		e.Ctype = ev.Builtins.SizeT
		return
	}
	var n uint64
	switch e.Kind {
	case cast.ESizeof:
		n = uint64(t.BitSize) / 8
	case cast.EAlignof, cast.EPtrSizeof:
		n = uint64(t.Alignment)
	}
	e.Kind = cast.EValue
	e.Value = n
	e.Ctype = ev.Builtins.SizeT
}

func (ev *Evaluator) evalMember(e *cast.Expr) {
	base := ev.evalExpr(e.Operand)
	s := stripNamed(base)
	for s != nil && s.Kind == types.Node {
		s = s.BaseType
	}
	if s == nil || (s.Kind != types.Struct && s.Kind != types.Union) {
		ev.Bag.Error(e.Position, "member reference on non-struct/union type")
		e.Ctype = ev.Builtins.BadCtype
		return
	}
	m := findMember(s, e.Name)
	if m == nil {
		ev.Bag.Error(e.Position, "no member named %q", e.Name)
		e.Ctype = ev.Builtins.BadCtype
		return
	}
	e.Sym = m
	if m.Kind == types.Bitfield {
		e.FieldWidth = m.FieldWidth
	}
	e.Ctype = m.BaseType
}

func findMember(s *types.Symbol, name string) *types.Symbol {
	for _, m := range s.Members {
		if m.Ident != nil && m.Ident.Name == name {
			return m
		}
	}
	return nil
}

// evalCall checks a call: the callee's parameter list is walked in
// lockstep with the arguments, each argument degenerated
// and promoted to int if narrower, assignment-compatibility-checked
// against the declared parameter, with variadic functions accepting any
// extra arguments under the default argument promotions.
func (ev *Evaluator) evalCall(e *cast.Expr) {
	calleeType := ev.evalUse(e.Callee)
	fn := fnOf(calleeType)
	if fn == nil {
		ev.Bag.Error(e.Position, "call to a non-function")
		e.Ctype = ev.Builtins.Int
		for _, a := range e.Args {
			ev.evalUse(a)
		}
		return
	}
	for i, a := range e.Args {
		at := ev.evalUse(a)
		at = ev.promote(at)
		if i < len(fn.Arguments) {
			pt := fn.Arguments[i].BaseType
			if d := types.Difference(at, pt); d != "" && !(ev.isArithmetic(at) && ev.isArithmetic(pt)) {
				ev.Bag.Warn(a.Position, "argument %d: %s", i+1, d)
			}
		} else if !fn.Variadic {
			ev.Bag.Warn(a.Position, "too many arguments to function call")
		}
	}
	if len(e.Args) < len(fn.Arguments) {
		ev.Bag.Warn(e.Position, "too few arguments to function call")
	}
	e.Ctype = fn.BaseType
}

// trailingType returns the ctype of a GNU statement-expression's final
// expression statement, or nil if the block ends in something else.
func (ev *Evaluator) trailingType(s *cast.Stmt) *types.Symbol {
	if s == nil || s.Kind != cast.SCompound || len(s.Stmts) == 0 {
		return ev.Builtins.Void
	}
	last := s.Stmts[len(s.Stmts)-1]
	if last.Kind == cast.SExpression && last.Expr != nil {
		return last.Expr.Ctype
	}
	return ev.Builtins.Void
}
