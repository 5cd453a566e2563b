// Package simplify implements constant folding, algebraic identities,
// cast-chain collapsing, OP_SEL/OP_BR/OP_SWITCH simplification, a
// same-block CSE pass, and the bitfield mask/shift expansion that
// internal/linearize leaves to a later pass. Simplify
// drives all of these to a fixpoint.
package simplify

import (
	"sparsego/internal/ir"
	"sparsego/internal/types"
)

// Simplify rewrites ep's instructions in place until no rule in the
// pipeline fires.
func Simplify(ep *ir.EntryPoint) {
	for {
		changed := false
		for _, bb := range ep.Bbs {
			for _, insn := range append([]*ir.Instruction(nil), bb.Insns...) {
				if expandBitfield(insn) {
					changed = true
				}
				switch {
				case foldConstants(insn):
					changed = true
				case algebraicIdentity(insn):
					changed = true
				case simplifyCast(insn):
					changed = true
				case simplifySel(insn):
					changed = true
				case simplifyBr(insn):
					changed = true
				case simplifySwitch(insn):
					changed = true
				}
			}
			if localCSE(bb) {
				changed = true
			}
		}
		if diamondToSel(ep) {
			changed = true
		}
		if !changed {
			break
		}
	}
}

// diamondToSel implements the diamond-to-select collapse, which
// internal/ssa leaves to this pass: a join fed by exactly two pure
// jump-only predecessors that both trace back to one shared ancestor's
// conditional branch collapses to that ancestor computing an OP_SEL
// directly and branching straight to the join, skipping the
// now-unreachable arm blocks entirely.
//
// Scoped to joins left with exactly one surviving (non-degenerate) PHI
// after internal/ssa's own simplification pass — a join with more than
// one still needs each of them merged in lockstep, which this doesn't
// attempt.
func diamondToSel(ep *ir.EntryPoint) bool {
	changed := false
	for _, join := range ep.Bbs {
		if len(join.Parents) != 2 {
			continue
		}
		var phi *ir.Instruction
		phiCount := 0
		for _, insn := range join.Insns {
			if insn.Opcode == ir.OpPhi {
				phiCount++
				phi = insn
			}
		}
		if phiCount != 1 {
			continue
		}

		trueBB, falseBB := join.Parents[0], join.Parents[1]
		if !isPureJumpBlock(trueBB, join) || !isPureJumpBlock(falseBB, join) {
			continue
		}
		if len(trueBB.Parents) != 1 || len(falseBB.Parents) != 1 || trueBB.Parents[0] != falseBB.Parents[0] {
			continue
		}
		a := trueBB.Parents[0]
		term := a.Terminator()
		if term == nil || term.Opcode != ir.OpBr || term.FalseBB == nil || len(term.Src) != 1 {
			continue
		}
		cond := term.Src[0]
		switch {
		case term.TrueBB == trueBB && term.FalseBB == falseBB:
		case term.TrueBB == falseBB && term.FalseBB == trueBB:
			trueBB, falseBB = falseBB, trueBB
		default:
			continue
		}

		var tVal, fVal *ir.Pseudo
		for i, parent := range join.Parents {
			var v *ir.Pseudo
			if len(phi.PhiList[i].Src) > 0 {
				v = phi.PhiList[i].Src[0]
			}
			switch parent {
			case trueBB:
				tVal = v
			case falseBB:
				fVal = v
			}
		}
		if tVal == nil || fVal == nil {
			continue
		}

		selTarget := &ir.Pseudo{Type: phi.Type, Kind: ir.PReg}
		sel := &ir.Instruction{Opcode: ir.OpSel, Type: phi.Type, Target: selTarget, Src: []*ir.Pseudo{cond, tVal, fVal}}
		idx := indexOf(a.Insns, term)
		if idx < 0 {
			continue
		}
		a.Insns = append(a.Insns[:idx:idx], append([]*ir.Instruction{sel}, a.Insns[idx:]...)...)
		cond.AddUser(sel)
		tVal.AddUser(sel)
		fVal.AddUser(sel)

		for _, src := range phi.PhiList {
			if len(src.Src) > 0 && src.Src[0] != nil {
				src.Src[0].RemoveUser(src)
			}
		}
		phi.Opcode = ir.OpCopy
		phi.Src = []*ir.Pseudo{selTarget}
		phi.PhiList = nil
		selTarget.AddUser(phi)

		removeEdge(trueBB, join)
		removeEdge(falseBB, join)
		removeEdge(a, trueBB)
		removeEdge(a, falseBB)
		ir.LinkChild(a, join)

		term.TrueBB = join
		term.FalseBB = nil
		term.Src = nil
		changed = true
	}
	return changed
}

func isPureJumpBlock(bb, join *ir.BasicBlock) bool {
	if len(bb.Insns) != 1 {
		return false
	}
	last := bb.Insns[0]
	return last.Opcode == ir.OpBr && last.FalseBB == nil && last.TrueBB == join
}

func constVal(p *ir.Pseudo) (uint64, bool) {
	if p != nil && p.Kind == ir.PVal {
		return p.Value, true
	}
	return 0, false
}

func newConst(t *types.Symbol, v uint64) *ir.Pseudo {
	return &ir.Pseudo{Kind: ir.PVal, Type: t, Value: v}
}

func mask(v uint64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	return v & (uint64(1)<<uint(bits) - 1)
}

func signExtend(v uint64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}

func boolVal(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// clearOperandUsers unregisters insn as a user of every pseudo it
// currently reads, ahead of a rewrite that replaces its operand list —
// without this, the discarded operands would keep a stale use-site
// entry pointing at an instruction that no longer reads them.
func clearOperandUsers(insn *ir.Instruction) {
	for _, u := range ir.Uses(insn) {
		u.RemoveUser(insn)
	}
}

func rewriteCopy(insn *ir.Instruction, src *ir.Pseudo) bool {
	clearOperandUsers(insn)
	insn.Opcode = ir.OpCopy
	insn.Src = []*ir.Pseudo{src}
	src.AddUser(insn)
	return true
}

func rewriteConst(insn *ir.Instruction, v uint64) bool {
	clearOperandUsers(insn)
	nc := newConst(insn.Type, v)
	insn.Opcode = ir.OpCopy
	insn.Src = []*ir.Pseudo{nc}
	nc.AddUser(insn)
	return true
}

// evalBinop computes op(a, b) at the given bit width, result masked to
// insn.Size. Division and modulo by zero don't fold — they're left for
// the runtime/diagnostic path, not silently turned into 0.
func evalBinop(op ir.Opcode, a, b uint64, bits int) (uint64, bool) {
	sa, sb := signExtend(a, bits), signExtend(b, bits)
	switch op {
	case ir.OpAdd:
		return mask(a+b, bits), true
	case ir.OpSub:
		return mask(a-b, bits), true
	case ir.OpMul:
		return mask(a*b, bits), true
	case ir.OpDivU:
		if b == 0 {
			return 0, false
		}
		return mask(a/b, bits), true
	case ir.OpDivS:
		if b == 0 {
			return 0, false
		}
		return mask(uint64(sa/sb), bits), true
	case ir.OpModU:
		if b == 0 {
			return 0, false
		}
		return mask(a%b, bits), true
	case ir.OpModS:
		if b == 0 {
			return 0, false
		}
		return mask(uint64(sa%sb), bits), true
	case ir.OpAnd:
		return mask(a&b, bits), true
	case ir.OpOr:
		return mask(a|b, bits), true
	case ir.OpXor:
		return mask(a^b, bits), true
	case ir.OpShl:
		return mask(a<<uint(b), bits), true
	case ir.OpShrU:
		return mask(a>>uint(b), bits), true
	case ir.OpShrS:
		return mask(uint64(sa>>uint(b)), bits), true
	case ir.OpSetEQ:
		return boolVal(a == b), true
	case ir.OpSetNE:
		return boolVal(a != b), true
	case ir.OpSetLtU:
		return boolVal(a < b), true
	case ir.OpSetLeU:
		return boolVal(a <= b), true
	case ir.OpSetGtU:
		return boolVal(a > b), true
	case ir.OpSetGeU:
		return boolVal(a >= b), true
	case ir.OpSetLtS:
		return boolVal(sa < sb), true
	case ir.OpSetLeS:
		return boolVal(sa <= sb), true
	case ir.OpSetGtS:
		return boolVal(sa > sb), true
	case ir.OpSetGeS:
		return boolVal(sa >= sb), true
	}
	return 0, false
}

// foldConstants folds a binop or unop whose operands are all constants.
func foldConstants(insn *ir.Instruction) bool {
	if len(insn.Src) == 2 {
		a, aok := constVal(insn.Src[0])
		b, bok := constVal(insn.Src[1])
		if aok && bok {
			if v, ok := evalBinop(insn.Opcode, a, b, insn.Size); ok {
				return rewriteConst(insn, v)
			}
		}
		return false
	}
	if len(insn.Src) == 1 {
		a, ok := constVal(insn.Src[0])
		if !ok {
			return false
		}
		switch insn.Opcode {
		case ir.OpNot:
			return rewriteConst(insn, mask(^a, insn.Size))
		case ir.OpNeg:
			return rewriteConst(insn, mask(uint64(-int64(a)), insn.Size))
		}
	}
	return false
}

// algebraicIdentity applies the identity-rewrite list:
// x+0, x-0, x|0, x^0, x<<0, x>>0 → x; x*0, x&0 → 0; x*1 → x;
// x-const → x+(-const).
func algebraicIdentity(insn *ir.Instruction) bool {
	if len(insn.Src) != 2 {
		return false
	}
	a, aConst := constVal(insn.Src[0])
	b, bConst := constVal(insn.Src[1])
	bits := insn.Size

	switch insn.Opcode {
	case ir.OpAdd:
		if bConst && b == 0 {
			return rewriteCopy(insn, insn.Src[0])
		}
		if aConst && a == 0 {
			return rewriteCopy(insn, insn.Src[1])
		}
	case ir.OpSub:
		if bConst && b == 0 {
			return rewriteCopy(insn, insn.Src[0])
		}
		if bConst {
			old := insn.Src[1]
			nc := newConst(insn.Type, mask(uint64(-int64(b)), bits))
			insn.Opcode = ir.OpAdd
			insn.Src[1] = nc
			old.RemoveUser(insn)
			nc.AddUser(insn)
			return true
		}
	case ir.OpOr, ir.OpXor:
		if bConst && b == 0 {
			return rewriteCopy(insn, insn.Src[0])
		}
		if aConst && a == 0 {
			return rewriteCopy(insn, insn.Src[1])
		}
	case ir.OpShl, ir.OpShrU, ir.OpShrS:
		if bConst && b == 0 {
			return rewriteCopy(insn, insn.Src[0])
		}
	case ir.OpMul:
		if (bConst && b == 0) || (aConst && a == 0) {
			return rewriteConst(insn, 0)
		}
		if bConst && b == 1 {
			return rewriteCopy(insn, insn.Src[0])
		}
		if aConst && a == 1 {
			return rewriteCopy(insn, insn.Src[1])
		}
	case ir.OpAnd:
		if (bConst && b == 0) || (aConst && a == 0) {
			return rewriteConst(insn, 0)
		}
	}
	return false
}

// simplifyCast collapses cast chains: a same-width cast is a pure copy;
// PTRCAST of PTRCAST merges to skip the intermediate pseudo.
func simplifyCast(insn *ir.Instruction) bool {
	switch insn.Opcode {
	case ir.OpCast, ir.OpSCast, ir.OpPtrCast:
	default:
		return false
	}
	if len(insn.Src) != 1 || insn.Src[0] == nil {
		return false
	}
	if insn.FromType != nil && insn.Type != nil && insn.FromType.BitSize == insn.Type.BitSize {
		return rewriteCopy(insn, insn.Src[0])
	}
	src := insn.Src[0]
	if insn.Opcode == ir.OpPtrCast && src.Def != nil && src.Def.Opcode == ir.OpPtrCast && len(src.Def.Src) == 1 {
		inner := src.Def.Src[0]
		insn.Src = []*ir.Pseudo{inner}
		src.RemoveUser(insn)
		inner.AddUser(insn)
		return true
	}
	return false
}

// simplifySel implements the OP_SEL rules: constant condition folds,
// identical arms reduce to a copy, and constant 0/1 arms reduce to a
// SET_EQ/SET_NE against the condition.
func simplifySel(insn *ir.Instruction) bool {
	if insn.Opcode != ir.OpSel || len(insn.Src) != 3 {
		return false
	}
	cond, t, f := insn.Src[0], insn.Src[1], insn.Src[2]
	if v, ok := constVal(cond); ok {
		if v != 0 {
			return rewriteCopy(insn, t)
		}
		return rewriteCopy(insn, f)
	}
	if t == f {
		return rewriteCopy(insn, t)
	}
	tv, tok := constVal(t)
	fv, fok := constVal(f)
	if tok && fok && tv == 1 && fv == 0 {
		zero := newConst(cond.Type, 0)
		insn.Opcode = ir.OpSetNE
		insn.Src = []*ir.Pseudo{cond, zero}
		t.RemoveUser(insn)
		f.RemoveUser(insn)
		zero.AddUser(insn)
		return true
	}
	if tok && fok && tv == 0 && fv == 1 {
		zero := newConst(cond.Type, 0)
		insn.Opcode = ir.OpSetEQ
		insn.Src = []*ir.Pseudo{cond, zero}
		t.RemoveUser(insn)
		f.RemoveUser(insn)
		zero.AddUser(insn)
		return true
	}
	return false
}

// simplifyBr implements the branch rules: a constant condition becomes an
// unconditional branch (updating parent/child edges), and a branch on
// SET_EQ/SET_NE against a zero constant is rewritten to branch on the
// operand directly, swapping arms for SET_EQ per ir.Negate's designated
// negation of SET_NE.
func simplifyBr(insn *ir.Instruction) bool {
	if insn.Opcode != ir.OpBr || insn.FalseBB == nil || len(insn.Src) == 0 {
		return false
	}
	cond := insn.Src[0]
	if v, ok := constVal(cond); ok {
		dead := insn.FalseBB
		if v == 0 {
			dead = insn.TrueBB
			insn.TrueBB = insn.FalseBB
		}
		insn.FalseBB = nil
		insn.Src = nil
		cond.RemoveUser(insn)
		if dead != insn.TrueBB && insn.BB != nil {
			removeEdge(insn.BB, dead)
		}
		return true
	}
	if cond.Def == nil || len(cond.Def.Src) != 2 {
		return false
	}
	if cond.Def.Opcode != ir.OpSetEQ && cond.Def.Opcode != ir.OpSetNE {
		return false
	}
	l, r := cond.Def.Src[0], cond.Def.Src[1]
	var operand *ir.Pseudo
	if cv, ok := constVal(r); ok && cv == 0 {
		operand = l
	} else if cv, ok := constVal(l); ok && cv == 0 {
		operand = r
	}
	if operand == nil {
		return false
	}
	insn.Src = []*ir.Pseudo{operand}
	cond.RemoveUser(insn)
	operand.AddUser(insn)
	if cond.Def.Opcode == ir.OpSetEQ {
		insn.TrueBB, insn.FalseBB = insn.FalseBB, insn.TrueBB
	}
	return true
}

// simplifySwitch turns an OP_SWITCH with a constant selector into an
// unconditional branch. Only edges that are direct children of the
// switch block are pruned: an implicit default (the fallthrough-after-
// switch block, never directly linked by internal/linearize) is left
// alone since it was never a recorded edge to begin with.
func simplifySwitch(insn *ir.Instruction) bool {
	if insn.Opcode != ir.OpSwitch || len(insn.Src) == 0 || insn.BB == nil {
		return false
	}
	v, ok := constVal(insn.Src[0])
	if !ok {
		return false
	}
	winner := insn.DefaultBB
	sv := int64(v)
	for _, c := range insn.Cases {
		if sv >= c.Begin && sv <= c.End {
			winner = c.Target
			break
		}
	}
	if winner == nil {
		return false
	}
	bb := insn.BB
	found := false
	for _, child := range append([]*ir.BasicBlock(nil), bb.Children...) {
		if child == winner {
			found = true
			continue
		}
		removeEdge(bb, child)
	}
	if !found {
		ir.LinkChild(bb, winner)
	}
	selector := insn.Src[0]
	insn.Opcode = ir.OpBr
	insn.TrueBB = winner
	insn.FalseBB = nil
	insn.Src = nil
	insn.Cases = nil
	insn.DefaultBB = nil
	selector.RemoveUser(insn)
	return true
}

// removeEdge drops the from→target control-flow edge and, for any PHI in
// target, removes the PhiList entry that corresponded to that parent
// (by position, so |phi_list| == |bb.parents| keeps holding for the
// remaining predecessors).
func removeEdge(from, target *ir.BasicBlock) {
	idx := -1
	for i, p := range target.Parents {
		if p == from {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	target.Parents = append(target.Parents[:idx], target.Parents[idx+1:]...)
	for i, c := range from.Children {
		if c == target {
			from.Children = append(from.Children[:i], from.Children[i+1:]...)
			break
		}
	}
	for _, insn := range target.Insns {
		if insn.Opcode != ir.OpPhi || idx >= len(insn.PhiList) {
			continue
		}
		src := insn.PhiList[idx]
		if len(src.Src) > 0 && src.Src[0] != nil {
			src.Src[0].RemoveUser(src)
		}
		insn.PhiList = append(insn.PhiList[:idx], insn.PhiList[idx+1:]...)
	}
}

// cseEligible restricts localCSE to side-effect-free, alias-free
// opcodes: LOAD/STORE/CALL are excluded so this pass never has to reason
// about aliasing, left to a future dominator-tree-aware extension.
func cseEligible(op ir.Opcode) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDivU, ir.OpDivS, ir.OpModU, ir.OpModS,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShrU, ir.OpShrS,
		ir.OpSetEQ, ir.OpSetNE, ir.OpSetLtU, ir.OpSetLeU, ir.OpSetGtU, ir.OpSetGeU,
		ir.OpSetLtS, ir.OpSetLeS, ir.OpSetGtS, ir.OpSetGeS,
		ir.OpNot, ir.OpNeg,
		ir.OpCast, ir.OpSCast, ir.OpPtrCast,
		ir.OpGetElementPtr:
		return true
	}
	return false
}

func sameOperands(a, b *ir.Instruction) bool {
	if a.Type != b.Type || a.Base != b.Base || a.Off != b.Off || a.FromType != b.FromType {
		return false
	}
	if len(a.Src) != len(b.Src) {
		return false
	}
	for i := range a.Src {
		if a.Src[i] != b.Src[i] {
			return false
		}
	}
	return true
}

// localCSE eliminates redundant computations within a single block: if a
// later instruction computes the same opcode over the same operands as
// an earlier one still in the block, it is rewritten to a copy of the
// earlier instruction's result. A block trivially dominates its own
// later instructions, so no dominator-tree walk is needed here.
func localCSE(bb *ir.BasicBlock) bool {
	changed := false
	buckets := map[ir.Opcode][]*ir.Instruction{}
	for _, insn := range bb.Insns {
		op := insn.Opcode
		if !cseEligible(op) {
			continue
		}
		matched := false
		for _, cand := range buckets[op] {
			if sameOperands(insn, cand) {
				clearOperandUsers(insn)
				insn.Opcode = ir.OpCopy
				insn.Src = []*ir.Pseudo{cand.Target}
				cand.Target.AddUser(insn)
				changed = true
				matched = true
				break
			}
		}
		if !matched {
			buckets[op] = append(buckets[op], insn)
		}
	}
	return changed
}

func roundUpContainer(bits int) int {
	switch {
	case bits <= 8:
		return 8
	case bits <= 16:
		return 16
	case bits <= 32:
		return 32
	default:
		return 64
	}
}

func indexOf(insns []*ir.Instruction, target *ir.Instruction) int {
	for i, x := range insns {
		if x == target {
			return i
		}
	}
	return -1
}

// expandBitfield turns a LOAD/STORE carrying a nonzero BitWidth into the
// mask/shift sequence that internal/linearize leaves to this pass:
// this is where that deferral actually gets paid off.
func expandBitfield(insn *ir.Instruction) bool {
	if insn.BitWidth == 0 {
		return false
	}
	switch insn.Opcode {
	case ir.OpLoad:
		return expandBitfieldLoad(insn)
	case ir.OpStore:
		return expandBitfieldStore(insn)
	}
	return false
}

func expandBitfieldLoad(insn *ir.Instruction) bool {
	bb := insn.BB
	if bb == nil {
		return false
	}
	idx := indexOf(bb.Insns, insn)
	if idx < 0 {
		return false
	}
	containerBits := roundUpContainer(insn.BitOff + insn.BitWidth)
	container := &types.Symbol{Kind: types.Basetype, BitSize: containerBits, Alignment: containerBits / 8}

	rawTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	raw := &ir.Instruction{Opcode: ir.OpLoad, Base: insn.Base, Off: insn.Off, Type: container, Size: containerBits, Target: rawTarget}
	insn.Base.AddUser(raw)

	shiftOp := ir.OpShrU
	if insn.Type != nil && insn.Type.Mods.Has(types.ModSigned) {
		shiftOp = ir.OpShrS
	}
	shiftTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	shiftInsn := &ir.Instruction{
		Opcode: shiftOp,
		Src:    []*ir.Pseudo{rawTarget, newConst(container, uint64(insn.BitOff))},
		Type:   container, Size: containerBits, Target: shiftTarget,
	}
	rawTarget.AddUser(shiftInsn)

	maskVal := uint64(1)<<uint(insn.BitWidth) - 1

	bb.Insns = append(bb.Insns[:idx:idx], append([]*ir.Instruction{raw, shiftInsn}, bb.Insns[idx:]...)...)

	insn.Base.RemoveUser(insn)
	insn.Opcode = ir.OpAnd
	insn.Base = nil
	insn.Off = 0
	insn.BitOff = 0
	insn.BitWidth = 0
	insn.Size = containerBits
	insn.Src = []*ir.Pseudo{shiftTarget, newConst(container, maskVal)}
	shiftTarget.AddUser(insn)
	return true
}

func expandBitfieldStore(insn *ir.Instruction) bool {
	bb := insn.BB
	if bb == nil || len(insn.Src) != 1 {
		return false
	}
	idx := indexOf(bb.Insns, insn)
	if idx < 0 {
		return false
	}
	containerBits := roundUpContainer(insn.BitOff + insn.BitWidth)
	container := &types.Symbol{Kind: types.Basetype, BitSize: containerBits, Alignment: containerBits / 8}

	rawTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	raw := &ir.Instruction{Opcode: ir.OpLoad, Base: insn.Base, Off: insn.Off, Type: container, Size: containerBits, Target: rawTarget}
	insn.Base.AddUser(raw)

	fieldMask := uint64(1)<<uint(insn.BitWidth) - 1
	clearMask := ^(fieldMask << uint(insn.BitOff))

	clearTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	clearInsn := &ir.Instruction{Opcode: ir.OpAnd, Src: []*ir.Pseudo{rawTarget, newConst(container, clearMask)}, Type: container, Size: containerBits, Target: clearTarget}
	rawTarget.AddUser(clearInsn)

	oldVal := insn.Src[0]
	maskedTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	maskedInsn := &ir.Instruction{Opcode: ir.OpAnd, Src: []*ir.Pseudo{oldVal, newConst(container, fieldMask)}, Type: container, Size: containerBits, Target: maskedTarget}
	oldVal.AddUser(maskedInsn)

	shiftedTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	shiftedInsn := &ir.Instruction{Opcode: ir.OpShl, Src: []*ir.Pseudo{maskedTarget, newConst(container, uint64(insn.BitOff))}, Type: container, Size: containerBits, Target: shiftedTarget}
	maskedTarget.AddUser(shiftedInsn)

	combinedTarget := &ir.Pseudo{Kind: ir.PReg, Type: container}
	combinedInsn := &ir.Instruction{Opcode: ir.OpOr, Src: []*ir.Pseudo{clearTarget, shiftedTarget}, Type: container, Size: containerBits, Target: combinedTarget}
	clearTarget.AddUser(combinedInsn)
	shiftedTarget.AddUser(combinedInsn)

	bb.Insns = append(bb.Insns[:idx:idx], append([]*ir.Instruction{raw, clearInsn, maskedInsn, shiftedInsn, combinedInsn}, bb.Insns[idx:]...)...)

	oldVal.RemoveUser(insn)
	insn.Src = []*ir.Pseudo{combinedTarget}
	insn.BitOff = 0
	insn.BitWidth = 0
	insn.Size = containerBits
	combinedTarget.AddUser(insn)
	return true
}
