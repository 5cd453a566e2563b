package simplify

import (
	"testing"

	"sparsego/internal/ir"
	"sparsego/internal/types"
)

func intType() *types.Symbol {
	return &types.Symbol{Kind: types.Basetype, BitSize: 32, Alignment: 4, Mods: types.ModSigned}
}

func konst(t *types.Symbol, v uint64) *ir.Pseudo {
	return &ir.Pseudo{Kind: ir.PVal, Type: t, Value: v}
}

func reg(t *types.Symbol) *ir.Pseudo {
	return &ir.Pseudo{Kind: ir.PReg, Type: t}
}

func oneBlockEP(bb *ir.BasicBlock) *ir.EntryPoint {
	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{bb}
	return ep
}

func TestFoldConstantAdd(t *testing.T) {
	it := intType()
	target := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpAdd, Type: it, Size: 32, Target: target, Src: []*ir.Pseudo{konst(it, 2), konst(it, 3)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0].Value != 5 {
		t.Fatalf("expected 2+3 to fold to a copy of 5, got %+v", insn)
	}
}

func TestFoldConstantDivisionByZeroDoesNotFold(t *testing.T) {
	it := intType()
	target := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpDivS, Type: it, Size: 32, Target: target, Src: []*ir.Pseudo{konst(it, 7), konst(it, 0)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpDivS {
		t.Fatalf("division by zero must not fold, got %v", insn.Opcode)
	}
}

func TestAlgebraicIdentityAddZero(t *testing.T) {
	it := intType()
	x := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpAdd, Type: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x, konst(it, 0)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0] != x {
		t.Fatalf("expected x+0 to become a copy of x, got %+v", insn)
	}
}

func TestAlgebraicIdentitySubConstBecomesAddNegated(t *testing.T) {
	it := intType()
	x := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpSub, Type: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x, konst(it, 3)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpAdd {
		t.Fatalf("expected x-3 to become x+(-3), got opcode %v", insn.Opcode)
	}
	if insn.Src[1].Value != 0xFFFFFFFD {
		t.Fatalf("expected the negated constant, got %d", insn.Src[1].Value)
	}
}

func TestAlgebraicIdentityMulZero(t *testing.T) {
	it := intType()
	x := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpMul, Type: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x, konst(it, 0)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0].Value != 0 {
		t.Fatalf("expected x*0 to fold to 0, got %+v", insn)
	}
}

func TestCastSameWidthBecomesCopy(t *testing.T) {
	it := intType()
	x := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpCast, Type: it, FromType: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0] != x {
		t.Fatalf("expected a same-width cast to collapse to a copy, got %+v", insn)
	}
}

func TestPtrCastChainCollapses(t *testing.T) {
	it := intType()
	wide := &types.Symbol{Kind: types.Basetype, BitSize: 64, Alignment: 8}
	x := reg(wide)
	inner := &ir.Instruction{Opcode: ir.OpPtrCast, Type: wide, FromType: it, Size: 64, Target: reg(wide), Src: []*ir.Pseudo{x}}
	inner.Target.Def = inner
	outer := &ir.Instruction{Opcode: ir.OpPtrCast, Type: it, FromType: wide, Size: 32, Target: reg(it), Src: []*ir.Pseudo{inner.Target}}

	bb := &ir.BasicBlock{}
	bb.AddInsn(inner)
	bb.AddInsn(outer)

	Simplify(oneBlockEP(bb))

	if outer.Opcode != ir.OpPtrCast || outer.Src[0] != x {
		t.Fatalf("expected the outer ptrcast to point straight at the original value, got %+v", outer)
	}
}

func TestSelConstantCondition(t *testing.T) {
	it := intType()
	trueVal := reg(it)
	falseVal := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpSel, Type: it, Target: reg(it), Src: []*ir.Pseudo{konst(it, 1), trueVal, falseVal}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0] != trueVal {
		t.Fatalf("expected a truthy constant condition to pick the true arm, got %+v", insn)
	}
}

func TestSelIdenticalArmsBecomesCopy(t *testing.T) {
	it := intType()
	cond := reg(it)
	shared := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpSel, Type: it, Target: reg(it), Src: []*ir.Pseudo{cond, shared, shared}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpCopy || insn.Src[0] != shared {
		t.Fatalf("expected identical arms to collapse to a copy, got %+v", insn)
	}
}

func TestSelZeroOneArmsBecomesSetNE(t *testing.T) {
	it := intType()
	cond := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpSel, Type: it, Target: reg(it), Src: []*ir.Pseudo{cond, konst(it, 1), konst(it, 0)}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(insn)

	Simplify(oneBlockEP(bb))

	if insn.Opcode != ir.OpSetNE || insn.Src[0] != cond {
		t.Fatalf("expected true=1/false=0 arms to reduce to SET_NE against cond, got %+v", insn)
	}
}

func TestBrConstantConditionPrunesDeadEdge(t *testing.T) {
	it := intType()
	trueBB := &ir.BasicBlock{}
	falseBB := &ir.BasicBlock{}
	bb := &ir.BasicBlock{}
	ir.LinkChild(bb, trueBB)
	ir.LinkChild(bb, falseBB)

	br := &ir.Instruction{Opcode: ir.OpBr, Src: []*ir.Pseudo{konst(it, 1)}, TrueBB: trueBB, FalseBB: falseBB}
	bb.AddInsn(br)

	Simplify(oneBlockEP(bb))

	if br.FalseBB != nil || len(br.Src) != 0 {
		t.Fatalf("expected the branch to become unconditional, got %+v", br)
	}
	if br.TrueBB != trueBB {
		t.Fatalf("expected the surviving target to be the true branch, got %v", br.TrueBB)
	}
	for _, c := range bb.Children {
		if c == falseBB {
			t.Fatalf("expected the dead false edge to be removed from bb.Children")
		}
	}
	for _, p := range falseBB.Parents {
		if p == bb {
			t.Fatalf("expected bb to be removed from the dead target's parents")
		}
	}
}

func TestBrSetEQZeroRewritesToDirectConditionAndSwapsArms(t *testing.T) {
	it := intType()
	x := reg(it)
	cmpTarget := reg(it)
	cmp := &ir.Instruction{Opcode: ir.OpSetEQ, Type: it, Target: cmpTarget, Src: []*ir.Pseudo{x, konst(it, 0)}}
	cmpTarget.Def = cmp

	trueBB := &ir.BasicBlock{}
	falseBB := &ir.BasicBlock{}
	bb := &ir.BasicBlock{}
	ir.LinkChild(bb, trueBB)
	ir.LinkChild(bb, falseBB)

	bb.AddInsn(cmp)
	br := &ir.Instruction{Opcode: ir.OpBr, Src: []*ir.Pseudo{cmpTarget}, TrueBB: trueBB, FalseBB: falseBB}
	bb.AddInsn(br)

	Simplify(oneBlockEP(bb))

	if len(br.Src) != 1 || br.Src[0] != x {
		t.Fatalf("expected the branch to test x directly, got %+v", br.Src)
	}
	if br.TrueBB != falseBB || br.FalseBB != trueBB {
		t.Fatalf("expected arms to swap for a SET_EQ-against-zero rewrite, got true=%v false=%v", br.TrueBB, br.FalseBB)
	}
}

func TestSwitchConstantSelectorBecomesBranch(t *testing.T) {
	it := intType()
	caseBB := &ir.BasicBlock{}
	otherBB := &ir.BasicBlock{}
	defaultBB := &ir.BasicBlock{}
	bb := &ir.BasicBlock{}
	ir.LinkChild(bb, otherBB)
	ir.LinkChild(bb, caseBB)
	ir.LinkChild(bb, defaultBB)

	sw := &ir.Instruction{
		Opcode: ir.OpSwitch,
		Src:    []*ir.Pseudo{konst(it, 5)},
		Cases: []ir.SwitchCase{
			{Begin: 0, End: 1, Target: otherBB},
			{Begin: 5, End: 5, Target: caseBB},
		},
		DefaultBB: defaultBB,
	}
	bb.AddInsn(sw)

	Simplify(oneBlockEP(bb))

	if sw.Opcode != ir.OpBr || sw.TrueBB != caseBB {
		t.Fatalf("expected the switch to fold to a branch on the matching case, got %+v", sw)
	}
	if len(bb.Children) != 1 || bb.Children[0] != caseBB {
		t.Fatalf("expected only the winning edge to survive, got %v", bb.Children)
	}
}

func TestLocalCSEDeduplicatesRepeatedAdd(t *testing.T) {
	it := intType()
	x, y := reg(it), reg(it)
	first := &ir.Instruction{Opcode: ir.OpAdd, Type: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x, y}}
	second := &ir.Instruction{Opcode: ir.OpAdd, Type: it, Size: 32, Target: reg(it), Src: []*ir.Pseudo{x, y}}
	bb := &ir.BasicBlock{}
	bb.AddInsn(first)
	bb.AddInsn(second)

	Simplify(oneBlockEP(bb))

	if second.Opcode != ir.OpCopy || second.Src[0] != first.Target {
		t.Fatalf("expected the repeated add to become a copy of the first's result, got %+v", second)
	}
}

func TestExpandBitfieldLoad(t *testing.T) {
	it := intType()
	slot := &ir.Pseudo{Kind: ir.PSym, Type: it}
	target := reg(it)
	load := &ir.Instruction{Opcode: ir.OpLoad, Base: slot, Type: it, Target: target, BitOff: 2, BitWidth: 3}
	bb := &ir.BasicBlock{}
	bb.AddInsn(load)
	bb.AddInsn(&ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{target}})

	Simplify(oneBlockEP(bb))

	if load.BitWidth != 0 || load.Base != nil {
		t.Fatalf("expected the original load to be rewritten away from raw bitfield fields, got %+v", load)
	}
	if load.Opcode != ir.OpAnd {
		t.Fatalf("expected the final step to be a mask, got %v", load.Opcode)
	}
	var sawLoad, sawShift bool
	for _, insn := range bb.Insns {
		if insn.Opcode == ir.OpLoad && insn.Base == slot {
			sawLoad = true
		}
		if insn.Opcode == ir.OpShrU || insn.Opcode == ir.OpShrS {
			sawShift = true
		}
	}
	if !sawLoad || !sawShift {
		t.Fatalf("expected the expansion to insert a raw load and a shift")
	}
}

func TestDiamondToSelCollapsesPureJumpArms(t *testing.T) {
	it := intType()
	cond := reg(it)

	a := &ir.BasicBlock{}
	trueBB := &ir.BasicBlock{}
	falseBB := &ir.BasicBlock{}
	join := &ir.BasicBlock{}
	ir.LinkChild(a, trueBB)
	ir.LinkChild(a, falseBB)
	ir.LinkChild(trueBB, join)
	ir.LinkChild(falseBB, join)

	br := &ir.Instruction{Opcode: ir.OpBr, Src: []*ir.Pseudo{cond}, TrueBB: trueBB, FalseBB: falseBB}
	a.AddInsn(br)
	trueBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})
	falseBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})

	tVal, fVal := reg(it), reg(it)
	phiTarget := reg(it)
	phi := &ir.Instruction{Opcode: ir.OpPhi, Type: it, Target: phiTarget}
	phiTarget.Def = phi
	phi.PhiList = []*ir.Instruction{
		{Opcode: ir.OpPhiSource, PhiTarget: phi, Src: []*ir.Pseudo{tVal}},
		{Opcode: ir.OpPhiSource, PhiTarget: phi, Src: []*ir.Pseudo{fVal}},
	}
	join.AddInsn(phi)
	join.AddInsn(&ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{phiTarget}})

	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{a, trueBB, falseBB, join}
	Simplify(ep)

	if phi.Opcode != ir.OpCopy {
		t.Fatalf("expected the diamond phi to collapse to a copy, got %v", phi.Opcode)
	}
	var sel *ir.Instruction
	for _, insn := range a.Insns {
		if insn.Opcode == ir.OpSel {
			sel = insn
		}
	}
	if sel == nil {
		t.Fatalf("expected an OP_SEL inserted into the shared ancestor")
	}
	if phi.Src[0] != sel.Target {
		t.Fatalf("expected the copy to read the inserted sel's result")
	}
	if br.TrueBB != join || br.FalseBB != nil {
		t.Fatalf("expected the ancestor's branch to go straight to the join, got true=%v false=%v", br.TrueBB, br.FalseBB)
	}
	for _, p := range join.Parents {
		if p != a {
			t.Fatalf("expected join's only remaining parent to be the ancestor, got %v", join.Parents)
		}
	}
}

func TestExpandBitfieldStore(t *testing.T) {
	it := intType()
	slot := &ir.Pseudo{Kind: ir.PSym, Type: it}
	val := reg(it)
	store := &ir.Instruction{Opcode: ir.OpStore, Base: slot, Src: []*ir.Pseudo{val}, BitOff: 1, BitWidth: 4}
	bb := &ir.BasicBlock{}
	bb.AddInsn(store)

	Simplify(oneBlockEP(bb))

	if store.BitWidth != 0 {
		t.Fatalf("expected the bitfield payload to be cleared after expansion")
	}
	if len(store.Src) != 1 {
		t.Fatalf("expected the store's value to be the combined word, got %+v", store.Src)
	}
	var sawOr bool
	for _, insn := range bb.Insns {
		if insn.Opcode == ir.OpOr {
			sawOr = true
		}
	}
	if !sawOr {
		t.Fatalf("expected the expansion to insert a combine (OR) step")
	}
}
