package linearize

import (
	"math"

	"sparsego/internal/cast"
	"sparsego/internal/ir"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

// isFloatType judges float-ness by Ident name rather than pointer
// identity against Builtins.Float/Double/LongDouble (as internal/eval's
// isFloat does), since this package also sees synthesized cast-target
// types that aren't one of those three builtin pointers.
func isFloatType(t *types.Symbol) bool {
	if t == nil || t.Ident == nil {
		return false
	}
	switch t.Ident.Name {
	case "float", "double", "long double":
		return true
	}
	return false
}

// lowerAddr resolves e (which must be lvalue-shaped; internal/eval has
// already checked that where required) to a (base pseudo, byte offset,
// bit offset, bit width, type) tuple LOAD/STORE can use directly.
func (b *Builder) lowerAddr(e *cast.Expr) (*ir.Pseudo, int, int, int, *types.Symbol) {
	switch e.Kind {
	case cast.EIdentifier:
		slot := b.allocaFor(e.Sym)
		return slot, 0, 0, 0, e.Sym.BaseType

	case cast.EDeref:
		addr := b.lowerExpr(e.Operand)
		return addr, 0, 0, 0, e.Ctype

	case cast.EIndex:
		base := b.lowerExpr(e.Operand)
		idx := b.lowerExpr(e.Index)
		elemType := e.Ctype
		addr := b.gep(base, idx, elemType)
		return addr, 0, 0, 0, elemType

	case cast.EBitfield:
		baseAddr, off, _, _, _ := b.lowerAddr(e.Operand)
		if e.Sym == nil {
			return baseAddr, off, 0, 0, e.Ctype
		}
		if e.FieldWidth > 0 {
			return baseAddr, off + e.Sym.Offset, e.Sym.BitOffset, e.FieldWidth, e.Ctype
		}
		return baseAddr, off + e.Sym.Offset, 0, 0, e.Ctype
	}

	// Defensive fallback: internal/eval already rejects non-lvalues at
	// assignment/address-of sites, so this should be unreachable.
	return b.lowerExpr(e), 0, 0, 0, e.Ctype
}

// gep computes base + idx*sizeof(elemType): Size carries the per-index
// element size in bytes for a later pass to multiply out.
func (b *Builder) gep(base, idx *ir.Pseudo, elemType *types.Symbol) *ir.Pseudo {
	ptrType := &types.Symbol{Kind: types.Ptr, BaseType: elemType, BitSize: b.Layout.BitsInPointer, Alignment: b.Layout.PointerAlignment}
	elemSize := sizeOf(elemType) / 8
	return b.gepSized(base, idx, elemSize, ptrType)
}

// gepBytes computes base + offBytes, a plain byte-granularity address
// adjustment (element size 1), used for struct-member address-of where
// the offset is already in bytes rather than an element count.
func (b *Builder) gepBytes(base *ir.Pseudo, offBytes int, resultType *types.Symbol) *ir.Pseudo {
	ptrType := &types.Symbol{Kind: types.Ptr, BaseType: resultType, BitSize: b.Layout.BitsInPointer, Alignment: b.Layout.PointerAlignment}
	return b.gepSized(base, b.constInt(int64(offBytes), b.Builtins.Int), 1, ptrType)
}

func (b *Builder) gepSized(base, idx *ir.Pseudo, elemSize int, ptrType *types.Symbol) *ir.Pseudo {
	dst := b.newPseudo(ir.PReg, ptrType)
	insn := &ir.Instruction{Opcode: ir.OpGetElementPtr, Target: dst, Base: base, Src: []*ir.Pseudo{idx}, Size: elemSize, Type: ptrType}
	dst.Def = insn
	base.AddUser(insn)
	idx.AddUser(insn)
	b.emit(insn)
	return dst
}

// lowerExpr lowers e for its value.
func (b *Builder) lowerExpr(e *cast.Expr) *ir.Pseudo {
	switch e.Kind {
	case cast.EValue, cast.EPos:
		return b.constInt(int64(e.Value), e.Ctype)

	case cast.EFValue:
		p := b.newPseudo(ir.PVal, e.Ctype)
		p.Value = math.Float64bits(e.FValue)
		return p

	case cast.EString:
		// String literal data placement is codegen, out of scope here. A
		// synthetic static array symbol stands in for it so callers still
		// get a SYM pseudo of the right shape.
		lit := &types.Symbol{Kind: types.Array, BaseType: b.Builtins.Char, ArraySizeKnown: true, ArraySizeConst: e.Str.Len(), Mods: types.ModStatic}
		p := b.newPseudo(ir.PSym, e.Ctype)
		p.Sym = lit
		return p

	case cast.EIdentifier:
		slot := b.allocaFor(e.Sym)
		return b.load(slot, 0, 0, 0, e.Sym.BaseType)

	case cast.EAssignment:
		return b.lowerAssignment(e)

	case cast.EBinop, cast.ECompare:
		return b.lowerBinary(e)

	case cast.ELogical:
		return b.lowerLogical(e)

	case cast.EDeref:
		addr, off, bo, bw, t := b.lowerAddr(e)
		return b.load(addr, off, bo, bw, t)

	case cast.EPreop:
		return b.lowerPreop(e)

	case cast.EPostop:
		return b.lowerPostop(e)

	case cast.ECast, cast.EImpliedCast:
		return b.lowerCast(e)

	case cast.ESizeof, cast.EAlignof, cast.EPtrSizeof:
		// Already folded to EValue by internal/eval.
		return b.constInt(int64(e.Value), e.Ctype)

	case cast.EConditional:
		return b.lowerConditional(e)

	case cast.EStatement:
		return b.lowerStatementExpr(e)

	case cast.ECall:
		return b.lowerCall(e)

	case cast.EComma:
		b.lowerExpr(e.Left)
		return b.lowerExpr(e.Right)

	case cast.EBitfield:
		addr, off, bo, bw, t := b.lowerAddr(e)
		return b.load(addr, off, bo, bw, t)

	case cast.ELabel:
		// Ensures the target block exists (forward &&label reference);
		// OP_COMPUTEDGOTO resolves the same labelBB entry at goto time.
		b.labelFor(e.LabelSym)
		return b.newPseudo(ir.PVal, b.Builtins.VoidPtr)

	case cast.EIndex:
		addr, off, bo, bw, t := b.lowerAddr(e)
		return b.load(addr, off, bo, bw, t)

	case cast.EInitializer:
		if len(e.Elements) > 0 {
			return b.lowerExpr(e.Elements[0])
		}
		return b.constInt(0, e.Ctype)

	case cast.EType:
		return b.constInt(0, e.Ctype)
	}
	return b.constInt(0, e.Ctype)
}

func compoundBaseOp(op token.Special) token.Special {
	switch op {
	case token.OpAddAssign:
		return token.OpPlus
	case token.OpSubAssign:
		return token.OpMinus
	case token.OpMulAssign:
		return token.OpStar
	case token.OpDivAssign:
		return token.OpSlash
	case token.OpModAssign:
		return token.OpPercent
	case token.OpShlAssign:
		return token.OpShl
	case token.OpShrAssign:
		return token.OpShr
	case token.OpAndAssign:
		return token.OpAmp
	case token.OpOrAssign:
		return token.OpPipe
	case token.OpXorAssign:
		return token.OpCaret
	}
	return op
}

func (b *Builder) lowerAssignment(e *cast.Expr) *ir.Pseudo {
	addr, off, bo, bw, t := b.lowerAddr(e.Left)
	rhs := b.lowerExpr(e.Right)
	if e.Op == token.OpAssign {
		b.store(addr, off, bo, bw, t, rhs)
		return rhs
	}
	cur := b.load(addr, off, bo, bw, t)
	combined := b.applyBinOp(compoundBaseOp(e.Op), cur, rhs, t)
	b.store(addr, off, bo, bw, t, combined)
	return combined
}

func opcodeForBinop(op token.Special, t *types.Symbol, isFloat bool) ir.Opcode {
	unsigned := t != nil && t.Mods.Has(types.ModUnsigned)
	switch op {
	case token.OpPlus:
		if isFloat {
			return ir.OpFAdd
		}
		return ir.OpAdd
	case token.OpMinus:
		if isFloat {
			return ir.OpFSub
		}
		return ir.OpSub
	case token.OpStar:
		if isFloat {
			return ir.OpFMul
		}
		return ir.OpMul
	case token.OpSlash:
		if isFloat {
			return ir.OpFDiv
		}
		if unsigned {
			return ir.OpDivU
		}
		return ir.OpDivS
	case token.OpPercent:
		if unsigned {
			return ir.OpModU
		}
		return ir.OpModS
	case token.OpAmp:
		return ir.OpAnd
	case token.OpPipe:
		return ir.OpOr
	case token.OpCaret:
		return ir.OpXor
	case token.OpShl:
		return ir.OpShl
	case token.OpShr:
		if unsigned {
			return ir.OpShrU
		}
		return ir.OpShrS
	case token.OpEq:
		return ir.OpSetEQ
	case token.OpNe:
		return ir.OpSetNE
	case token.OpLt:
		if isFloat {
			return ir.OpFSetLt
		}
		if unsigned {
			return ir.OpSetLtU
		}
		return ir.OpSetLtS
	case token.OpLe:
		if isFloat {
			return ir.OpFSetLe
		}
		if unsigned {
			return ir.OpSetLeU
		}
		return ir.OpSetLeS
	case token.OpGt:
		if unsigned {
			return ir.OpSetGtU
		}
		return ir.OpSetGtS
	case token.OpGe:
		if unsigned {
			return ir.OpSetGeU
		}
		return ir.OpSetGeS
	}
	return ir.OpAdd
}

func (b *Builder) applyBinOp(op token.Special, l, r *ir.Pseudo, t *types.Symbol) *ir.Pseudo {
	isFloat := isFloatType(t)
	opc := opcodeForBinop(op, t, isFloat)
	dst := b.newPseudo(ir.PReg, t)
	insn := &ir.Instruction{Opcode: opc, Target: dst, Src: []*ir.Pseudo{l, r}, Type: t, Size: sizeOf(t)}
	l.AddUser(insn)
	r.AddUser(insn)
	dst.Def = insn
	b.emit(insn)
	return dst
}

func (b *Builder) lowerBinary(e *cast.Expr) *ir.Pseudo {
	l := b.lowerExpr(e.Left)
	r := b.lowerExpr(e.Right)
	t := e.Ctype
	if e.Kind == cast.ECompare {
		t = e.Left.Ctype
	}

	if e.Op == token.OpPlus || e.Op == token.OpMinus {
		lp, rp := isPointerType(e.Left.Ctype), isPointerType(e.Right.Ctype)
		switch {
		case e.Op == token.OpPlus && lp && !rp:
			return b.gep(l, r, e.Ctype.BaseType)
		case e.Op == token.OpPlus && rp && !lp:
			return b.gep(r, l, e.Ctype.BaseType)
		case e.Op == token.OpMinus && lp && rp:
			dst := b.newPseudo(ir.PReg, e.Ctype)
			insn := &ir.Instruction{Opcode: ir.OpSub, Target: dst, Src: []*ir.Pseudo{l, r}, Type: e.Ctype, Size: sizeOf(e.Ctype)}
			l.AddUser(insn)
			r.AddUser(insn)
			dst.Def = insn
			b.emit(insn)
			return dst
		case e.Op == token.OpMinus && lp && !rp:
			neg := b.applyBinOp(token.OpMinus, b.constInt(0, r.Type), r, r.Type)
			return b.gep(l, neg, e.Left.Ctype.BaseType)
		}
	}

	return b.applyBinOp(e.Op, l, r, t)
}

func isPointerType(t *types.Symbol) bool { return t != nil && t.Kind == types.Ptr }

// lowerLogical implements short-circuit && / || via a branch diamond and a
// PHI of the 0/1 result.
func (b *Builder) lowerLogical(e *cast.Expr) *ir.Pseudo {
	lhs := b.lowerExpr(e.Left)
	lhsBool := b.toBool(lhs)

	rhsBB := b.newBB()
	joinBB := b.newBB()

	if e.Op == token.OpAndAnd {
		b.emitCondBr(lhsBool, rhsBB, joinBB)
	} else {
		b.emitCondBr(lhsBool, joinBB, rhsBB)
	}

	b.switchTo(rhsBB)
	rhs := b.lowerExpr(e.Right)
	rhsBool := b.toBool(rhs)
	b.emitBr(joinBB)

	b.switchTo(joinBB)
	return b.newPhi(b.Builtins.Int, []*ir.Pseudo{lhsBool, rhsBool}, joinBB)
}

func (b *Builder) toBool(v *ir.Pseudo) *ir.Pseudo {
	zero := b.constInt(0, v.Type)
	dst := b.newPseudo(ir.PReg, b.Builtins.Int)
	insn := &ir.Instruction{Opcode: ir.OpSetNE, Target: dst, Src: []*ir.Pseudo{v, zero}, Type: b.Builtins.Int}
	v.AddUser(insn)
	dst.Def = insn
	b.emit(insn)
	return dst
}

func (b *Builder) lowerPreop(e *cast.Expr) *ir.Pseudo {
	switch e.Op {
	case token.OpAmp:
		addr, off, _, _, t := b.lowerAddr(e.Operand)
		if off == 0 {
			return addr
		}
		return b.gepBytes(addr, off, t)

	case token.OpIncrement, token.OpDecrement:
		addr, off, bo, bw, t := b.lowerAddr(e.Operand)
		old := b.load(addr, off, bo, bw, t)
		amount := b.stepAmount(e.Op, t)
		var newv *ir.Pseudo
		if isPointerType(t) {
			if e.Op == token.OpIncrement {
				newv = b.gep(old, amount, t.BaseType)
			} else {
				neg := b.applyBinOp(token.OpMinus, b.constInt(0, amount.Type), amount, amount.Type)
				newv = b.gep(old, neg, t.BaseType)
			}
		} else {
			op := token.OpPlus
			if e.Op == token.OpDecrement {
				op = token.OpMinus
			}
			newv = b.applyBinOp(op, old, amount, t)
		}
		b.store(addr, off, bo, bw, t, newv)
		return newv

	case token.OpNot:
		v := b.lowerExpr(e.Operand)
		zero := b.constInt(0, v.Type)
		dst := b.newPseudo(ir.PReg, b.Builtins.Int)
		insn := &ir.Instruction{Opcode: ir.OpSetEQ, Target: dst, Src: []*ir.Pseudo{v, zero}, Type: b.Builtins.Int}
		v.AddUser(insn)
		dst.Def = insn
		b.emit(insn)
		return dst

	case token.OpTilde:
		v := b.lowerExpr(e.Operand)
		dst := b.newPseudo(ir.PReg, e.Ctype)
		insn := &ir.Instruction{Opcode: ir.OpNot, Target: dst, Src: []*ir.Pseudo{v}, Type: e.Ctype}
		v.AddUser(insn)
		dst.Def = insn
		b.emit(insn)
		return dst

	case token.OpMinus:
		v := b.lowerExpr(e.Operand)
		dst := b.newPseudo(ir.PReg, e.Ctype)
		insn := &ir.Instruction{Opcode: ir.OpNeg, Target: dst, Src: []*ir.Pseudo{v}, Type: e.Ctype}
		v.AddUser(insn)
		dst.Def = insn
		b.emit(insn)
		return dst

	default: // unary +
		return b.lowerExpr(e.Operand)
	}
}

func (b *Builder) stepAmount(op token.Special, t *types.Symbol) *ir.Pseudo {
	return b.constInt(1, t)
}

func (b *Builder) lowerPostop(e *cast.Expr) *ir.Pseudo {
	addr, off, bo, bw, t := b.lowerAddr(e.Operand)
	old := b.load(addr, off, bo, bw, t)
	amount := b.constInt(1, t)
	var newv *ir.Pseudo
	if isPointerType(t) {
		if e.Op == token.OpIncrement {
			newv = b.gep(old, amount, t.BaseType)
		} else {
			neg := b.applyBinOp(token.OpMinus, b.constInt(0, amount.Type), amount, amount.Type)
			newv = b.gep(old, neg, t.BaseType)
		}
	} else {
		op := token.OpPlus
		if e.Op == token.OpDecrement {
			op = token.OpMinus
		}
		newv = b.applyBinOp(op, old, amount, t)
	}
	b.store(addr, off, bo, bw, t, newv)
	return old
}

func (b *Builder) lowerCast(e *cast.Expr) *ir.Pseudo {
	src := b.lowerExpr(e.Operand)
	t := e.Ctype
	op := ir.OpCast
	switch {
	case isFloatType(t) || isFloatType(src.Type):
		op = ir.OpFPCast
	case isPointerType(t):
		op = ir.OpPtrCast
	case t != nil && t.Mods.Has(types.ModSigned):
		op = ir.OpSCast
	}
	dst := b.newPseudo(ir.PReg, t)
	insn := &ir.Instruction{Opcode: op, Target: dst, Src: []*ir.Pseudo{src}, Type: t, FromType: src.Type, Size: sizeOf(t)}
	src.AddUser(insn)
	dst.Def = insn
	b.emit(insn)
	return dst
}

// lowerConditional implements a?b:c (and the GNU a?:c degenerate form) as
// a branch diamond joined by a PHI.
func (b *Builder) lowerConditional(e *cast.Expr) *ir.Pseudo {
	cond := b.lowerExpr(e.Cond)
	joinBB := b.newBB()

	if e.Branch == nil {
		elseBB := b.newBB()
		b.emitCondBr(cond, joinBB, elseBB)
		b.switchTo(elseBB)
		elseVal := b.lowerExpr(e.ElseBranch)
		b.emitBr(joinBB)
		b.switchTo(joinBB)
		return b.newPhi(e.Ctype, []*ir.Pseudo{cond, elseVal}, joinBB)
	}

	thenBB := b.newBB()
	elseBB := b.newBB()
	b.emitCondBr(cond, thenBB, elseBB)

	b.switchTo(thenBB)
	thenVal := b.lowerExpr(e.Branch)
	b.emitBr(joinBB)

	b.switchTo(elseBB)
	elseVal := b.lowerExpr(e.ElseBranch)
	b.emitBr(joinBB)

	b.switchTo(joinBB)
	return b.newPhi(e.Ctype, []*ir.Pseudo{thenVal, elseVal}, joinBB)
}

// lowerStatementExpr lowers a GNU `({ ... })` statement expression: every
// statement but the last lowers normally, and the last statement's
// expression value (if any) becomes the whole expression's value.
func (b *Builder) lowerStatementExpr(e *cast.Expr) *ir.Pseudo {
	body := e.Body
	if body == nil || body.Kind != cast.SCompound || len(body.Stmts) == 0 {
		if body != nil {
			b.linearizeStmt(body)
		}
		return b.constInt(0, e.Ctype)
	}
	for _, s := range body.Stmts[:len(body.Stmts)-1] {
		b.linearizeStmt(s)
	}
	last := body.Stmts[len(body.Stmts)-1]
	if last.Kind == cast.SExpression && last.Expr != nil {
		return b.lowerExpr(last.Expr)
	}
	b.linearizeStmt(last)
	return b.constInt(0, e.Ctype)
}

func (b *Builder) lowerCall(e *cast.Expr) *ir.Pseudo {
	var callee *ir.Pseudo
	if e.Callee.Kind == cast.EIdentifier && e.Callee.Sym != nil && e.Callee.Sym.BaseType != nil && e.Callee.Sym.BaseType.Kind == types.Fn {
		callee = &ir.Pseudo{Kind: ir.PSym, Sym: e.Callee.Sym, Type: e.Callee.Sym.BaseType}
	} else {
		callee = b.lowerExpr(e.Callee)
	}

	args := make([]*ir.Pseudo, len(e.Args))
	for i, a := range e.Args {
		args[i] = b.lowerExpr(a)
	}

	var target *ir.Pseudo
	if e.Ctype != nil && e.Ctype != b.Builtins.Void {
		target = b.newPseudo(ir.PReg, e.Ctype)
	}
	insn := &ir.Instruction{Opcode: ir.OpCall, Target: target, Callee: callee, Args: args, Type: e.Ctype}
	if target != nil {
		target.Def = insn
	}
	callee.AddUser(insn)
	for _, a := range args {
		a.AddUser(insn)
	}
	b.emit(insn)
	if target != nil {
		return target
	}
	return b.constInt(0, b.Builtins.Void)
}
