// Package linearize lowers the evaluated AST (internal/cast plus the
// type/symbol attachments internal/eval made) into the CFG of internal/ir
// Pseudos, Instructions and BasicBlocks.
//
// Every local symbol, addressable or not, is given a stack-slot SYM pseudo
// and an ALLOCA at function entry, and reads/writes go through LOAD/STORE.
// This is a deliberate simplification of giving MOD_ADDRESSABLE locals a
// SYM pseudo and everything else a REG pseudo directly: internal/ssa's
// symbol promotion pass already has to run a LOAD/STORE dominance search
// to insert PHI nodes for locals whose address was never taken, and
// giving every local the same uniform memory shape here means that pass
// has a single code path instead of two.
package linearize

import (
	"sparsego/internal/cast"
	"sparsego/internal/diag"
	"sparsego/internal/ir"
	"sparsego/internal/types"
)

type loopCtx struct {
	breakBB, continueBB *ir.BasicBlock
}

type switchCtx struct {
	insn    *ir.Instruction
	breakBB *ir.BasicBlock
}

// Builder holds the mutable state of one function's lowering.
type Builder struct {
	Bag      *diag.Bag
	Builtins *types.Builtins
	Layout   types.LayoutConfig

	nextPseudo int
	ep         *ir.EntryPoint
	cur        *ir.BasicBlock

	slots   map[*types.Symbol]*ir.Pseudo // stack-slot SYM pseudo per local
	labelBB map[*types.Symbol]*ir.BasicBlock

	loops    []loopCtx
	switches []switchCtx
}

func newBuilder(bag *diag.Bag, builtins *types.Builtins, layout types.LayoutConfig) *Builder {
	return &Builder{
		Bag: bag, Builtins: builtins, Layout: layout,
		slots:   make(map[*types.Symbol]*ir.Pseudo),
		labelBB: make(map[*types.Symbol]*ir.BasicBlock),
	}
}

func (b *Builder) newPseudo(kind ir.PseudoKind, t *types.Symbol) *ir.Pseudo {
	b.nextPseudo++
	return &ir.Pseudo{Nr: b.nextPseudo, Kind: kind, Type: t}
}

func (b *Builder) newBB() *ir.BasicBlock {
	return &ir.BasicBlock{}
}

// switchTo makes bb the active block, linking a fallthrough edge from the
// previous block if it hasn't been terminated yet.
func (b *Builder) switchTo(bb *ir.BasicBlock) {
	if b.cur != nil && b.cur.Terminator() == nil {
		b.emitBr(bb)
	}
	b.cur = bb
}

func (b *Builder) emit(i *ir.Instruction) {
	if b.cur == nil || b.cur.Terminator() != nil {
		// Dead code after a terminator (e.g. statements following a
		// return/goto with no intervening label): give it its own
		// unreachable block so lowering can keep walking the AST.
		b.cur = b.newBB()
	}
	b.cur.AddInsn(i)
}

func (b *Builder) emitBr(target *ir.BasicBlock) {
	if b.cur == nil || b.cur.Terminator() != nil {
		return
	}
	ir.LinkChild(b.cur, target)
	b.cur.AddInsn(&ir.Instruction{Opcode: ir.OpBr, TrueBB: target})
}

func (b *Builder) emitCondBr(cond *ir.Pseudo, trueBB, falseBB *ir.BasicBlock) {
	if b.cur == nil || b.cur.Terminator() != nil {
		return
	}
	ir.LinkChild(b.cur, trueBB)
	ir.LinkChild(b.cur, falseBB)
	insn := &ir.Instruction{Opcode: ir.OpBr, Src: []*ir.Pseudo{cond}, TrueBB: trueBB, FalseBB: falseBB}
	cond.AddUser(insn)
	b.cur.AddInsn(insn)
}

// allocaFor materializes sym's stack slot the first time it is seen.
func (b *Builder) allocaFor(sym *types.Symbol) *ir.Pseudo {
	if p, ok := b.slots[sym]; ok {
		return p
	}
	ptrType := &types.Symbol{Kind: types.Ptr, BaseType: sym.BaseType, BitSize: b.Layout.BitsInPointer, Alignment: b.Layout.PointerAlignment}
	slot := b.newPseudo(ir.PSym, ptrType)
	slot.Sym = sym
	size := 0
	if sym.BaseType != nil {
		size = sym.BaseType.BitSize
	}
	b.emit(&ir.Instruction{Opcode: ir.OpAlloca, Target: slot, Type: ptrType, Size: size})
	b.slots[sym] = slot
	b.ep.Syms = append(b.ep.Syms, sym)
	return slot
}

// load/store take an explicit bit-offset/bit-width pair so a bitfield
// member can ride the same two instructions as an ordinary one: bitWidth
// 0 means "the whole type", matching the convention internal/eval already
// uses for initializer offsets. A later pass turns a nonzero bitWidth into
// the actual mask/shift sequence.
func (b *Builder) load(addr *ir.Pseudo, off, bitOff, bitWidth int, t *types.Symbol) *ir.Pseudo {
	dst := b.newPseudo(ir.PReg, t)
	insn := &ir.Instruction{Opcode: ir.OpLoad, Target: dst, Base: addr, Off: off, BitOff: bitOff, BitWidth: bitWidth, Type: t, Size: sizeOf(t)}
	addr.AddUser(insn)
	dst.Def = insn
	b.emit(insn)
	return dst
}

func (b *Builder) store(addr *ir.Pseudo, off, bitOff, bitWidth int, t *types.Symbol, val *ir.Pseudo) {
	insn := &ir.Instruction{Opcode: ir.OpStore, Base: addr, Off: off, BitOff: bitOff, BitWidth: bitWidth, Src: []*ir.Pseudo{val}, Type: t, Size: sizeOf(t)}
	addr.AddUser(insn)
	val.AddUser(insn)
	b.emit(insn)
}

func (b *Builder) constInt(n int64, t *types.Symbol) *ir.Pseudo {
	if t == nil {
		t = b.Builtins.Int
	}
	p := b.newPseudo(ir.PVal, t)
	p.Value = uint64(n)
	return p
}

func (b *Builder) typeForWidth(width int) *types.Symbol {
	switch {
	case width <= 8:
		return b.Builtins.Char
	case width <= 16:
		return b.Builtins.Short
	case width <= 32:
		return b.Builtins.Int
	default:
		return b.Builtins.Long
	}
}

// newPhi builds a PHI whose PhiList has one PHISOURCE per (pred, val)
// pair, in the same order as joinBB.Parents records those predecessors
// (see emitBr/emitCondBr, which call ir.LinkChild before this runs).
func (b *Builder) newPhi(t *types.Symbol, vals []*ir.Pseudo, joinBB *ir.BasicBlock) *ir.Pseudo {
	target := b.newPseudo(ir.PPhi, t)
	phi := &ir.Instruction{Opcode: ir.OpPhi, Target: target, Type: t}
	target.Def = phi
	for _, v := range vals {
		src := &ir.Instruction{Opcode: ir.OpPhiSource, PhiTarget: phi, Src: []*ir.Pseudo{v}, Type: t}
		if v != nil {
			v.AddUser(src)
		}
		phi.PhiList = append(phi.PhiList, src)
	}
	joinBB.Insns = append([]*ir.Instruction{phi}, joinBB.Insns...)
	phi.BB = joinBB
	return target
}

func (b *Builder) labelFor(sym *types.Symbol) *ir.BasicBlock {
	if bb, ok := b.labelBB[sym]; ok {
		return bb
	}
	bb := b.newBB()
	b.labelBB[sym] = bb
	return bb
}

func (b *Builder) continueTarget() *ir.BasicBlock {
	for i := len(b.loops) - 1; i >= 0; i-- {
		if b.loops[i].continueBB != nil {
			return b.loops[i].continueBB
		}
	}
	return nil
}

func (b *Builder) breakTarget() *ir.BasicBlock {
	if len(b.loops) == 0 {
		return nil
	}
	return b.loops[len(b.loops)-1].breakBB
}

func sizeOf(t *types.Symbol) int {
	if t == nil {
		return 0
	}
	return t.BitSize
}

// LinearizeSymbol lowers one function symbol's body into a CFG.
// fn.Body must be the *cast.Stmt compound statement the parser attached.
func LinearizeSymbol(bag *diag.Bag, builtins *types.Builtins, layout types.LayoutConfig, fn *types.Symbol) *ir.EntryPoint {
	body, _ := fn.Body.(*cast.Stmt)
	ep := ir.NewEntryPoint(fn)
	b := newBuilder(bag, builtins, layout)
	b.ep = ep

	entry := b.newBB()
	b.cur = entry
	ep.Entry = &ir.Instruction{Opcode: ir.OpEntry}
	entry.AddInsn(ep.Entry)

	if fn.BaseType != nil {
		for i, p := range fn.BaseType.Arguments {
			argType := p.BaseType
			arg := b.newPseudo(ir.PArg, argType)
			arg.ArgNr = i
			slot := b.allocaFor(p)
			b.store(slot, 0, 0, 0, argType, arg)
		}
	}

	if body != nil {
		b.linearizeStmt(body)
	}
	if b.cur == nil || b.cur.Terminator() == nil {
		b.emit(&ir.Instruction{Opcode: ir.OpRet})
	}

	ep.Bbs = ir.ComputePostorder(entry)
	return ep
}
