package liveness

import (
	"testing"

	"sparsego/internal/diag"
	"sparsego/internal/ir"
	"sparsego/internal/types"
)

func intType() *types.Symbol {
	return &types.Symbol{Kind: types.Basetype, BitSize: 32, Alignment: 4}
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

func TestDeadValueRemoved(t *testing.T) {
	it := intType()
	entry := &ir.BasicBlock{}
	dead := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpAdd, Target: dead, Type: it, Src: []*ir.Pseudo{konst(it, 1), konst(it, 2)}}
	entry.AddInsn(insn)
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpRet})

	Analyze(oneBlockEP(entry))

	if insn.BB != nil {
		t.Fatalf("expected the unused add to be removed")
	}
}

func TestLiveValueKeptAndUsedMarkedLive(t *testing.T) {
	it := intType()
	entry := &ir.BasicBlock{}
	live := reg(it)
	insn := &ir.Instruction{Opcode: ir.OpAdd, Target: live, Type: it, Src: []*ir.Pseudo{konst(it, 1), konst(it, 2)}}
	entry.AddInsn(insn)
	ret := &ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{live}}
	live.AddUser(ret)
	entry.AddInsn(ret)

	Analyze(oneBlockEP(entry))

	if insn.BB == nil {
		t.Fatalf("did not expect the used add to be removed")
	}
}

func TestCallSurvivesEvenWhenResultUnused(t *testing.T) {
	it := intType()
	entry := &ir.BasicBlock{}
	result := reg(it)
	call := &ir.Instruction{Opcode: ir.OpCall, Target: result, Type: it, Callee: reg(it)}
	entry.AddInsn(call)
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpRet})

	Analyze(oneBlockEP(entry))

	if call.BB == nil {
		t.Fatalf("a call must survive dead-code removal even with an unused result")
	}
}

func TestValueLiveAcrossBlockBoundary(t *testing.T) {
	it := intType()
	a := &ir.BasicBlock{}
	b := &ir.BasicBlock{}
	ir.LinkChild(a, b)

	x := reg(it)
	def := &ir.Instruction{Opcode: ir.OpAdd, Target: x, Type: it, Src: []*ir.Pseudo{konst(it, 1), konst(it, 2)}}
	a.AddInsn(def)
	a.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: b})
	ret := &ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{x}}
	x.AddUser(ret)
	b.AddInsn(ret)

	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{a, b}
	Analyze(ep)

	if def.BB == nil {
		t.Fatalf("expected x's definition to survive, it's used in a successor block")
	}
	if !a.Defines[x] {
		t.Fatalf("expected x live on exit of its defining block")
	}
	if !b.Needs[x] {
		t.Fatalf("expected x live on entry of the using block")
	}
}

func TestPhiSourceKeepsParentDefinitionLive(t *testing.T) {
	it := intType()
	entry := &ir.BasicBlock{}
	thenBB := &ir.BasicBlock{}
	elseBB := &ir.BasicBlock{}
	join := &ir.BasicBlock{}
	ir.LinkChild(entry, thenBB)
	ir.LinkChild(entry, elseBB)
	ir.LinkChild(thenBB, join)
	ir.LinkChild(elseBB, join)

	entry.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: thenBB, FalseBB: elseBB})

	tVal := reg(it)
	tDef := &ir.Instruction{Opcode: ir.OpAdd, Target: tVal, Type: it, Src: []*ir.Pseudo{konst(it, 1), konst(it, 1)}}
	thenBB.AddInsn(tDef)
	thenBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})

	fVal := reg(it)
	fDef := &ir.Instruction{Opcode: ir.OpAdd, Target: fVal, Type: it, Src: []*ir.Pseudo{konst(it, 2), konst(it, 2)}}
	elseBB.AddInsn(fDef)
	elseBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})

	phiTarget := reg(it)
	phi := &ir.Instruction{Opcode: ir.OpPhi, Target: phiTarget, Type: it, BB: join}
	srcT := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: it, Src: []*ir.Pseudo{tVal}}
	srcF := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: it, Src: []*ir.Pseudo{fVal}}
	tVal.AddUser(srcT)
	fVal.AddUser(srcF)
	phi.PhiList = []*ir.Instruction{srcT, srcF}
	join.Insns = append(join.Insns, phi)
	phi.BB = join
	ret := &ir.Instruction{Opcode: ir.OpRet, Src: []*ir.Pseudo{phiTarget}}
	phiTarget.AddUser(ret)
	join.AddInsn(ret)

	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{entry, thenBB, elseBB, join}
	Analyze(ep)

	if tDef.BB == nil {
		t.Fatalf("expected the then-arm definition feeding the phi to survive")
	}
	if fDef.BB == nil {
		t.Fatalf("expected the else-arm definition feeding the phi to survive")
	}
	if !thenBB.Defines[tVal] {
		t.Fatalf("expected tVal live on exit of the then block")
	}
	if !elseBB.Defines[fVal] {
		t.Fatalf("expected fVal live on exit of the else block")
	}
}

func TestCheckContextsNoWarningWhenBalanced(t *testing.T) {
	it := intType()
	entry := &ir.BasicBlock{}
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpContext, Size: 1})
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpContext, Size: -1})
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpRet})

	bag := diag.NewBag()
	CheckContexts(oneBlockEP(entry), bag)

	if _, errs := bag.Counts(); errs != 0 {
		t.Fatalf("did not expect errors")
	}
	if warnings, _ := bag.Counts(); warnings != 0 {
		t.Fatalf("expected no warnings for a balanced context, got %d", warnings)
	}
	_ = it
}

func TestCheckContextsWarnsOnUnreleasedAtReturn(t *testing.T) {
	entry := &ir.BasicBlock{}
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpContext, Size: 1})
	entry.AddInsn(&ir.Instruction{Opcode: ir.OpRet})

	bag := diag.NewBag()
	CheckContexts(oneBlockEP(entry), bag)

	warnings, _ := bag.Counts()
	if warnings != 1 {
		t.Fatalf("expected one warning for the unreleased context, got %d", warnings)
	}
}

func TestCheckContextsWarnsOnMergeMismatch(t *testing.T) {
	entry := &ir.BasicBlock{}
	thenBB := &ir.BasicBlock{}
	elseBB := &ir.BasicBlock{}
	join := &ir.BasicBlock{}
	ir.LinkChild(entry, thenBB)
	ir.LinkChild(entry, elseBB)
	ir.LinkChild(thenBB, join)
	ir.LinkChild(elseBB, join)

	entry.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: thenBB, FalseBB: elseBB})
	thenBB.AddInsn(&ir.Instruction{Opcode: ir.OpContext, Size: 1})
	thenBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})
	elseBB.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: join})
	join.AddInsn(&ir.Instruction{Opcode: ir.OpContext, Size: -1})
	join.AddInsn(&ir.Instruction{Opcode: ir.OpRet})

	ep := ir.NewEntryPoint(nil)
	ep.Bbs = []*ir.BasicBlock{entry, thenBB, elseBB, join}

	bag := diag.NewBag()
	CheckContexts(ep, bag)

	warnings, _ := bag.Counts()
	if warnings != 1 {
		t.Fatalf("expected one warning for the mismatched merge, got %d", warnings)
	}
}
