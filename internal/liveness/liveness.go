// Package liveness computes per-block needs/defines sets via a backward
// fixpoint, removes instructions whose result has no downstream user, and
// reuses the same block-walk machinery for a lock/unlock context-balance
// check.
package liveness

import (
	"sparsego/internal/diag"
	"sparsego/internal/ir"
)

// Analyze computes bb.Needs (live-in) and bb.Defines (live-out) for every
// block of ep, then removes instructions whose result has no downstream
// user on any path, repeating until a round removes nothing (removing one
// dead instruction can starve an earlier one of its only remaining use).
func Analyze(ep *ir.EntryPoint) {
	for {
		computeLiveness(ep)
		if !removeDeadCode(ep) {
			return
		}
	}
}

// usesOf returns the pseudos insn reads. A PHI's sources are deliberately
// excluded here; computeLiveness's phi-folding loop below adds them to
// the use set of the PHI's own (join) block instead.
func usesOf(insn *ir.Instruction) []*ir.Pseudo {
	if insn.Opcode == ir.OpPhi {
		return nil
	}
	return ir.Uses(insn)
}

// defOf returns the pseudo insn defines, or nil for opcodes with no
// result value, keyed on a fixed table by opcode.
func defOf(insn *ir.Instruction) *ir.Pseudo {
	switch insn.Opcode {
	case ir.OpStore, ir.OpRet, ir.OpBr, ir.OpSwitch, ir.OpComputedGoto,
		ir.OpUnwind, ir.OpInvoke, ir.OpFree, ir.OpContext,
		ir.OpNop, ir.OpLNop, ir.OpSNop, ir.OpPhiSource, ir.OpEntry:
		return nil
	}
	return insn.Target
}

// hasSideEffects reports opcodes whose defining instruction must survive
// dead-code removal even when its result pseudo has no reader: a call or
// allocation's effect isn't expressed through its Target.
func hasSideEffects(op ir.Opcode) bool {
	switch op {
	case ir.OpCall, ir.OpMalloc, ir.OpAsm, ir.OpVaNext, ir.OpVaArg:
		return true
	}
	return false
}

// localUseDef computes bb's upward-exposed uses (reads not preceded by a
// same-block def) and the set of everything bb defines, walking
// instructions in order.
func localUseDef(bb *ir.BasicBlock) (use, def map[*ir.Pseudo]bool) {
	use = map[*ir.Pseudo]bool{}
	def = map[*ir.Pseudo]bool{}
	for _, insn := range bb.Insns {
		for _, p := range usesOf(insn) {
			if !def[p] {
				use[p] = true
			}
		}
		if d := defOf(insn); d != nil {
			def[d] = true
		}
	}
	return use, def
}

func mapsEqual(a, b map[*ir.Pseudo]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if !b[p] {
			return false
		}
	}
	return true
}

// computeLiveness runs a backward fixpoint: needs_in(bb) ⊇ needs_in(succ)
// \ defines(bb), unioned with bb's own upward-exposed uses, until no
// block's sets change.
func computeLiveness(ep *ir.EntryPoint) {
	use := map[*ir.BasicBlock]map[*ir.Pseudo]bool{}
	def := map[*ir.BasicBlock]map[*ir.Pseudo]bool{}
	for _, bb := range ep.Bbs {
		u, d := localUseDef(bb)
		use[bb], def[bb] = u, d
	}

	// A PHI's sources are really read on the incoming edges, one per
	// parent. Rather than split liveOut by successor edge (bb.Defines is
	// one flat set per block), fold every phi source into the join's own
	// use set: every predecessor's liveOut is computed as the union of
	// its successors' liveIn, so this conservatively keeps the value
	// live across every edge into the join, including ones that don't
	// actually carry it — over-approximate, never under-approximate.
	for _, bb := range ep.Bbs {
		for _, insn := range bb.Insns {
			if insn.Opcode != ir.OpPhi {
				continue
			}
			for _, src := range insn.PhiList {
				if len(src.Src) == 0 || src.Src[0] == nil {
					continue
				}
				v := src.Src[0]
				if !def[bb][v] {
					use[bb][v] = true
				}
			}
		}
	}

	for _, bb := range ep.Bbs {
		if bb.Needs == nil {
			bb.Needs = map[*ir.Pseudo]bool{}
		}
		if bb.Defines == nil {
			bb.Defines = map[*ir.Pseudo]bool{}
		}
	}

	for {
		changed := false
		for i := len(ep.Bbs) - 1; i >= 0; i-- {
			bb := ep.Bbs[i]
			liveOut := map[*ir.Pseudo]bool{}
			for _, succ := range bb.Children {
				for p := range succ.Needs {
					liveOut[p] = true
				}
			}
			liveIn := map[*ir.Pseudo]bool{}
			for p := range use[bb] {
				liveIn[p] = true
			}
			for p := range liveOut {
				if !def[bb][p] {
					liveIn[p] = true
				}
			}
			if !mapsEqual(liveIn, bb.Needs) || !mapsEqual(liveOut, bb.Defines) {
				changed = true
			}
			bb.Needs = liveIn
			bb.Defines = liveOut
		}
		if !changed {
			break
		}
	}
}

// removeDeadCode kills any definition with no recorded user: a pseudo
// with Users.Len() == 0 is unreachable from every path out of the
// function, since every instruction that reads a pseudo registers itself
// there when it's built (see internal/ir's AddUser). Killing an
// instruction unregisters it from its own operands in turn, which is why
// Analyze reruns this to a fixpoint: removing one dead instruction can
// leave an earlier one's result with no remaining user either.
func removeDeadCode(ep *ir.EntryPoint) bool {
	changed := false
	for _, bb := range ep.Bbs {
		for _, insn := range append([]*ir.Instruction(nil), bb.Insns...) {
			if insn.BB == nil {
				continue // already killed earlier in this same pass
			}
			d := defOf(insn)
			if insn.Opcode == ir.OpPhi {
				d = insn.Target
			}
			if d != nil && d.Users.Len() == 0 && !hasSideEffects(insn.Opcode) {
				bb.Kill(insn)
				changed = true
			}
		}
	}
	return changed
}

// CheckContexts verifies a user-declared lock/unlock balance nets to zero
// on every path and agrees across every merge point. Reuses the same
// forward walk over ep.Bbs's reverse-postorder this package already
// relies on for the liveness fixpoint, rather than a separate traversal.
func CheckContexts(ep *ir.EntryPoint, bag *diag.Bag) {
	contextOut := map[*ir.BasicBlock]int{}
	resolved := map[*ir.BasicBlock]bool{}
	for _, bb := range ep.Bbs {
		in := 0
		first := true
		mismatch := false
		for _, parent := range bb.Parents {
			if !resolved[parent] {
				continue
			}
			v := contextOut[parent]
			if first {
				in = v
				first = false
			} else if v != in {
				mismatch = true
			}
		}
		if mismatch {
			bag.Warn(bb.Position, "inconsistent context state merging into this block")
		}

		cur := in
		for _, insn := range bb.Insns {
			if insn.Opcode == ir.OpContext {
				cur += insn.Size
			}
			if insn.Opcode == ir.OpRet && cur != 0 {
				bag.Warn(insn.Position, "context imbalance: %d unit(s) unreleased at return", cur)
			}
		}
		contextOut[bb] = cur
		resolved[bb] = true
	}
}
