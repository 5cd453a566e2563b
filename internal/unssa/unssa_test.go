package unssa

import (
	"testing"

	"sparsego/internal/ir"
	"sparsego/internal/types"
)

func intType() *types.Symbol {
	return &types.Symbol{Kind: types.Basetype, BitSize: 32, Alignment: 4}
}

func konst(t *types.Symbol, v uint64) *ir.Pseudo {
	return &ir.Pseudo{Kind: ir.PVal, Type: t, Value: v}
}

func buildDiamondWithPhi(it *types.Symbol) (ep *ir.EntryPoint, entry, thenBB, elseBB, join *ir.BasicBlock, phi *ir.Instruction, tVal, fVal *ir.Pseudo) {
	entry = &ir.BasicBlock{}
	thenBB = &ir.BasicBlock{}
	elseBB = &ir.BasicBlock{}
	join = &ir.BasicBlock{}
	ir.LinkChild(entry, thenBB)
	ir.LinkChild(entry, elseBB)
	ir.LinkChild(thenBB, join)
	ir.LinkChild(elseBB, join)

	entry.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: thenBB, FalseBB: elseBB})

	tVal = konst(it, 1)
	thenBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})

	fVal = konst(it, 2)
	elseBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})

	phiTarget := &ir.Pseudo{Kind: ir.PReg, Type: it}
	phi = &ir.Instruction{Opcode: ir.OpPhi, Target: phiTarget, Type: it, BB: join}
	srcT := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: it, Src: []*ir.Pseudo{tVal}}
	srcF := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: it, Src: []*ir.Pseudo{fVal}}
	phi.PhiList = []*ir.Instruction{srcT, srcF}
	join.Insns = append(join.Insns, phi)
	phi.BB = join
	join.AddInsn(&ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{phiTarget}})

	ep = ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{entry, thenBB, elseBB, join}
	return
}

func TestEliminatePhiBecomesCopyOfFreshPseudo(t *testing.T) {
	it := intType()
	ep, _, _, _, _, phi, _, _ := buildDiamondWithPhi(it)

	Eliminate(ep)

	if phi.Opcode != ir.OpCopy {
		t.Fatalf("expected the phi to become a copy, got %v", phi.Opcode)
	}
	if len(phi.Src) != 1 {
		t.Fatalf("expected the copy to read exactly one pseudo, got %+v", phi.Src)
	}
	if phi.PhiList != nil {
		t.Fatalf("expected PhiList cleared once converted")
	}
}

func TestEliminateInsertsCopyInEachParentBeforeTerminator(t *testing.T) {
	it := intType()
	ep, _, thenBB, elseBB, _, phi, tVal, fVal := buildDiamondWithPhi(it)

	Eliminate(ep)

	fresh := phi.Src[0]

	var thenCopy *ir.Instruction
	for _, insn := range thenBB.Insns {
		if insn.Opcode == ir.OpCopy && insn.Target == fresh {
			thenCopy = insn
		}
	}
	if thenCopy == nil {
		t.Fatalf("expected a copy writing the fresh pseudo in the then block")
	}
	if len(thenCopy.Src) != 1 || thenCopy.Src[0] != tVal {
		t.Fatalf("expected the then-block copy to read tVal, got %+v", thenCopy.Src)
	}
	term := thenBB.Terminator()
	if term == nil || term.Opcode != ir.OpBr {
		t.Fatalf("expected the then block to still end in its branch")
	}
	idx := indexOf(thenBB.Insns, thenCopy)
	termIdx := indexOf(thenBB.Insns, term)
	if idx < 0 || termIdx < 0 || idx >= termIdx {
		t.Fatalf("expected the copy to be placed before the terminator")
	}

	var elseCopy *ir.Instruction
	for _, insn := range elseBB.Insns {
		if insn.Opcode == ir.OpCopy && insn.Target == fresh {
			elseCopy = insn
		}
	}
	if elseCopy == nil || len(elseCopy.Src) != 1 || elseCopy.Src[0] != fVal {
		t.Fatalf("expected a copy writing the fresh pseudo from fVal in the else block, got %+v", elseCopy)
	}
}

func TestEliminateAppendsWhenParentHasNoTerminator(t *testing.T) {
	it := intType()
	bb := &ir.BasicBlock{}
	join := &ir.BasicBlock{}
	ir.LinkChild(bb, join)

	val := konst(it, 7)
	phiTarget := &ir.Pseudo{Kind: ir.PReg, Type: it}
	phi := &ir.Instruction{Opcode: ir.OpPhi, Target: phiTarget, Type: it, BB: join}
	src := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: it, Src: []*ir.Pseudo{val}}
	phi.PhiList = []*ir.Instruction{src}
	join.AddInsn(phi)
	join.AddInsn(&ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{phiTarget}})

	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{bb, join}
	Eliminate(ep)

	if len(bb.Insns) != 1 || bb.Insns[0].Opcode != ir.OpCopy {
		t.Fatalf("expected a copy appended to the terminator-less parent, got %+v", bb.Insns)
	}
}
