// Package ssa promotes local, non-address-taken, non-volatile symbols out
// of LOAD/STORE-against-memory form into plain SSA values, inserting PHIs
// at block joins.
//
// internal/linearize gives every local symbol, promotable or not, the
// same ALLOCA + SYM pseudo + LOAD/STORE shape (see its package doc). This
// pass is where that uniformity pays for itself: rather than a dominance
// search that only runs for "locals that happened to dodge address-of",
// every local goes through the same reaching-value search, and symbols
// disqualified by ModAddressable/ModVolatile or a non-scalar Kind simply
// fail the promotable() test and keep their LOAD/STORE pairs untouched.
package ssa

import (
	"sparsego/internal/ir"
	"sparsego/internal/types"
)

// promotable reports whether sym is eligible for promotion: a scalar
// (non-aggregate) local whose address was never taken
// (internal/eval sets ModAddressable the moment `&sym` is evaluated) and
// that isn't volatile.
func promotable(sym *types.Symbol) bool {
	if sym == nil {
		return false
	}
	if sym.Mods.Has(types.ModAddressable) || sym.Mods.Has(types.ModVolatile) {
		return false
	}
	kind := sym.Kind
	if kind == types.Node && sym.BaseType != nil {
		kind = sym.BaseType.Kind
	}
	switch kind {
	case types.Array, types.Struct, types.Union:
		return false
	}
	return true
}

// promoter holds the bookkeeping needed to promote every eligible symbol
// of one function in a single pass.
type promoter struct {
	ep *ir.EntryPoint

	// touched is the set of promotable symbols actually loaded or stored
	// anywhere in the function; only these get PHIs, to avoid littering
	// every join block with one placeholder per local the function never
	// revisits across a branch.
	touched map[*types.Symbol]bool

	// blockPhi[bb][sym] is the PHI instruction eagerly placed at bb for
	// sym, for every bb with more than one parent. Placing one at every
	// join up front (rather than computing dominance frontiers) sidesteps
	// the cyclic-recursion problem a loop header's back edge would
	// otherwise cause; step 4's degenerate-PHI simplification cleans up
	// the ones that turn out to carry a single value.
	blockPhi map[*ir.BasicBlock]map[*types.Symbol]*ir.Instruction

	// entryValue/exitValue cache the resolved value of each touched
	// symbol at the start/end of a block, once computed.
	entryValue map[*ir.BasicBlock]map[*types.Symbol]*ir.Pseudo
	exitValue  map[*ir.BasicBlock]map[*types.Symbol]*ir.Pseudo

	// loadedSymbols records every symbol any LOAD named, recorded before
	// walkBlock converts a promoted load into a copy (which clears Base
	// and so erases which symbol it used to read).
	loadedSymbols map[*types.Symbol]bool

	createdPhis []*ir.Instruction
}

// Promote runs the four-step promotion pipeline over ep in place and
// returns the PHI instructions it created (for callers that want to drive
// a further simplification pass over just the new ones).
func Promote(ep *ir.EntryPoint) []*ir.Instruction {
	p := &promoter{
		ep:            ep,
		touched:       map[*types.Symbol]bool{},
		blockPhi:      map[*ir.BasicBlock]map[*types.Symbol]*ir.Instruction{},
		entryValue:    map[*ir.BasicBlock]map[*types.Symbol]*ir.Pseudo{},
		exitValue:     map[*ir.BasicBlock]map[*types.Symbol]*ir.Pseudo{},
		loadedSymbols: map[*types.Symbol]bool{},
	}
	p.findTouched()
	p.placePhis()
	p.resolveEntryValues()
	p.wirePhiSources()
	p.simplifyDegeneratePhis()
	p.removeUnreadStores()
	return p.createdPhis
}

func (p *promoter) findTouched() {
	for _, bb := range p.ep.Bbs {
		for _, insn := range bb.Insns {
			if insn.Base == nil || insn.Base.Sym == nil {
				continue
			}
			if (insn.Opcode == ir.OpLoad || insn.Opcode == ir.OpStore) && insn.Off == 0 && insn.BitWidth == 0 && promotable(insn.Base.Sym) {
				p.touched[insn.Base.Sym] = true
			}
		}
	}
}

// placePhis puts one placeholder PHI per touched symbol at the top of
// every multi-parent block.
func (p *promoter) placePhis() {
	for _, bb := range p.ep.Bbs {
		if len(bb.Parents) < 2 {
			continue
		}
		for sym := range p.touched {
			target := &ir.Pseudo{Type: sym.BaseType, Kind: ir.PPhi}
			phi := &ir.Instruction{Opcode: ir.OpPhi, Target: target, Type: sym.BaseType, BB: bb}
			target.Def = phi
			if p.blockPhi[bb] == nil {
				p.blockPhi[bb] = map[*types.Symbol]*ir.Instruction{}
			}
			p.blockPhi[bb][sym] = phi
			bb.Insns = append([]*ir.Instruction{phi}, bb.Insns...)
			p.createdPhis = append(p.createdPhis, phi)
		}
	}
}

// resolveEntryValues computes, for every block in reverse-postorder, the
// value each touched symbol carries on entry: the block's own PHI target
// if one was placed, else the single parent's exit value, else (entry
// block, or a loop-header's not-yet-processed back edge) undefined. Bbs
// is reverse-postorder, so every forward edge's source is already
// resolved by the time its target is visited.
func (p *promoter) resolveEntryValues() {
	for _, bb := range p.ep.Bbs {
		entry := map[*types.Symbol]*ir.Pseudo{}
		for sym := range p.touched {
			switch {
			case p.blockPhi[bb] != nil && p.blockPhi[bb][sym] != nil:
				entry[sym] = p.blockPhi[bb][sym].Target
			case len(bb.Parents) == 1:
				entry[sym] = p.exitValue[bb.Parents[0]][sym]
			default:
				entry[sym] = nil
			}
		}
		p.entryValue[bb] = entry
		p.exitValue[bb] = p.walkBlock(bb, entry)
	}
}

// walkBlock is step 1's intra-block half: a forward scan converting each
// promotable LOAD into a copy of the nearest preceding STORE/LOAD value
// (the block's running "current value" map), and folding consecutive
// same-symbol stores with no intervening load per step 2.
func (p *promoter) walkBlock(bb *ir.BasicBlock, entry map[*types.Symbol]*ir.Pseudo) map[*types.Symbol]*ir.Pseudo {
	cur := map[*types.Symbol]*ir.Pseudo{}
	for sym, v := range entry {
		cur[sym] = v
	}
	lastStore := map[*types.Symbol]*ir.Instruction{}

	for _, insn := range append([]*ir.Instruction(nil), bb.Insns...) {
		if insn.Opcode == ir.OpPhi {
			continue
		}
		if insn.Base == nil || insn.Base.Sym == nil || insn.Off != 0 || insn.BitWidth != 0 || !promotable(insn.Base.Sym) {
			continue
		}
		sym := insn.Base.Sym

		switch insn.Opcode {
		case ir.OpStore:
			if prev, ok := lastStore[sym]; ok && prev.BB != nil {
				bb.Kill(prev)
			}
			cur[sym] = insn.Src[0]
			lastStore[sym] = insn
		case ir.OpLoad:
			p.loadedSymbols[sym] = true
			if val, ok := cur[sym]; ok && val != nil {
				insn.Opcode = ir.OpCopy
				insn.Src = []*ir.Pseudo{val}
				insn.Base = nil
				val.AddUser(insn)
				cur[sym] = insn.Target
			}
			delete(lastStore, sym)
		}
	}
	return cur
}

// wirePhiSources fills in each placed PHI's source list once every
// block's exit value is known, one PHISOURCE per parent with no BB of its
// own, built the same way internal/linearize's newPhi builds them.
func (p *promoter) wirePhiSources() {
	for bb, syms := range p.blockPhi {
		for sym, phi := range syms {
			for _, parent := range bb.Parents {
				val := p.exitValue[parent][sym]
				src := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Type: sym.BaseType}
				if val != nil {
					src.Src = []*ir.Pseudo{val}
					val.AddUser(src)
				}
				phi.PhiList = append(phi.PhiList, src)
			}
		}
	}
}

// simplifyDegeneratePhis collapses any PHI whose sources all reduce to a
// single pseudo into a plain copy of that pseudo. Converting the opcode
// in place (rather than rewriting every use of
// Target) preserves pseudo identity for any instruction that already
// refers to it, including another PHI in a phi-of-phi chain.
func (p *promoter) simplifyDegeneratePhis() {
	for _, phi := range p.createdPhis {
		if phi.Opcode != ir.OpPhi {
			continue
		}
		var only *ir.Pseudo
		uniform := true
		for _, src := range phi.PhiList {
			var v *ir.Pseudo
			if len(src.Src) > 0 {
				v = src.Src[0]
			}
			if v == phi.Target {
				continue // self-reference; ignore when judging uniformity
			}
			if only == nil {
				only = v
				continue
			}
			if only != v {
				uniform = false
				break
			}
		}
		if uniform && only != nil {
			for _, src := range phi.PhiList {
				if len(src.Src) > 0 {
					src.Src[0].RemoveUser(src)
				}
			}
			phi.Opcode = ir.OpCopy
			phi.Src = []*ir.Pseudo{only}
			phi.PhiList = nil
			only.AddUser(phi)
		}
	}
}

// removeUnreadStores conservatively deletes every STORE to a promotable
// symbol that no promoted LOAD in the function ever consumed: such a
// symbol is write-only, so its stores are unreachable from a load.
func (p *promoter) removeUnreadStores() {
	for _, bb := range p.ep.Bbs {
		for _, insn := range append([]*ir.Instruction(nil), bb.Insns...) {
			if insn.Opcode != ir.OpStore || insn.Base == nil || insn.Base.Sym == nil {
				continue
			}
			sym := insn.Base.Sym
			if p.touched[sym] && !p.loadedSymbols[sym] && insn.BB != nil {
				bb.Kill(insn)
			}
		}
	}
}
