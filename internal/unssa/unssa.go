// Package unssa eliminates PHI nodes ahead of a target that has no notion
// of one, by replacing each PHI with ordinary COPY instructions along
// every incoming edge.
package unssa

import "sparsego/internal/ir"

// Eliminate walks every block of ep and, for each PHI still present
// (internal/simplify's diamond collapse and degenerate-PHI cleanup in
// internal/ssa already remove most of them), allocates a fresh pseudo t',
// inserts into each parent block, before its terminator, a new COPY of
// the matching PHISOURCE's value that defines t', and rewrites the PHI itself into a COPY reading t' into
// its original target.
func Eliminate(ep *ir.EntryPoint) {
	for _, bb := range ep.Bbs {
		for _, insn := range append([]*ir.Instruction(nil), bb.Insns...) {
			if insn.Opcode != ir.OpPhi {
				continue
			}
			eliminatePhi(bb, insn)
		}
	}
}

func eliminatePhi(bb *ir.BasicBlock, phi *ir.Instruction) {
	fresh := &ir.Pseudo{Kind: ir.PReg, Type: phi.Type}

	for i, parent := range bb.Parents {
		if i >= len(phi.PhiList) {
			continue
		}
		src := phi.PhiList[i]
		copyInsn := &ir.Instruction{Opcode: ir.OpCopy, Type: phi.Type, Target: fresh}
		if len(src.Src) > 0 && src.Src[0] != nil {
			val := src.Src[0]
			copyInsn.Src = []*ir.Pseudo{val}
			val.RemoveUser(src)
			val.AddUser(copyInsn)
		}
		insertBeforeTerminator(parent, copyInsn)
	}

	phi.Opcode = ir.OpCopy
	phi.Src = []*ir.Pseudo{fresh}
	phi.PhiList = nil
	fresh.AddUser(phi)
}

// insertBeforeTerminator appends insn to bb, just ahead of its closing
// br/switch/ret/etc if it has one, so the copy executes on every path out
// of bb rather than after control has already left it.
func insertBeforeTerminator(bb *ir.BasicBlock, insn *ir.Instruction) {
	term := bb.Terminator()
	if term == nil {
		bb.AddInsn(insn)
		return
	}
	idx := indexOf(bb.Insns, term)
	insn.BB = bb
	bb.Insns = append(bb.Insns[:idx:idx], append([]*ir.Instruction{insn}, bb.Insns[idx:]...)...)
}

func indexOf(insns []*ir.Instruction, target *ir.Instruction) int {
	for i, x := range insns {
		if x == target {
			return i
		}
	}
	return -1
}
