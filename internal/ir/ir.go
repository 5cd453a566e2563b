// Package ir implements the SSA-ish instruction model shared by
// internal/linearize, internal/ssa, internal/simplify, internal/liveness
// and internal/unssa: Pseudo values, Instructions, BasicBlocks and the
// per-function EntryPoint container.
//
// Nodes are plain pointers rather than arena-backed indices: a translation
// unit's IR is discarded whole between runs, so Go's garbage collector
// already gives the "drop all at once" property an arena would otherwise
// be hand-rolled to provide.
package ir

import (
	"sparsego/internal/diag"
	"sparsego/internal/plist"
	"sparsego/internal/types"
)

// PseudoKind tags the Pseudo union.
type PseudoKind int

const (
	PVoid PseudoKind = iota
	PReg
	PSym
	PVal
	PArg
	PPhi
)

// Pseudo is an SSA value: conceptually an infinite register.
type Pseudo struct {
	Nr    int
	Kind  PseudoKind
	Type  *types.Symbol
	Def   *Instruction // defining instruction, for REG/PHI
	Sym   *types.Symbol // for SYM
	Value uint64        // for VAL
	ArgNr int           // for ARG

	// Users is the use-site back-reference list: every Instruction that
	// reads p through Src, Base, Callee or Args appears here once per
	// operand slot that reads p (an instruction reading p twice appears
	// twice) while that instruction is live. A void-result opcode (STORE, a
	// conditional branch, a CALL whose result is discarded) has no Target
	// pseudo to stand in for "the consumer", so the list holds the
	// consuming Instruction itself rather than a Pseudo.
	//
	// A plist.List rather than a slice: a use list is a grow/shrink-heavy
	// multiset with no need for direct indexing, and deleting a use in
	// place during a scan is common enough in the passes that maintain it
	// to be worth an intrusive ring over append/remove on a []*Instruction.
	Users plist.List[*Instruction]
}

// AddUser records that u now reads p through one of its operand slots.
func (p *Pseudo) AddUser(u *Instruction) { p.Users.PushBack(u) }

// RemoveUser drops the first recorded use of p by u, and packs the
// underlying list immediately — Kill and removeDeadCode both treat
// Users.Len() as an authoritative "is anything still reading this value"
// check, so a tombstoned entry would read as a live use that isn't one.
func (p *Pseudo) RemoveUser(u *Instruction) {
	c := p.Users.Begin()
	for c.Next() {
		if c.Value() == u {
			c.Delete()
			break
		}
	}
	p.Users.Pack()
}

// Opcode enumerates the instruction set.
type Opcode int

const (
	OpEntry Opcode = iota

	// terminators
	OpRet
	OpBr
	OpSwitch
	OpComputedGoto
	OpUnwind
	OpInvoke

	// integer/float binops
	OpAdd
	OpSub
	OpMul
	OpDivU
	OpDivS
	OpModU
	OpModS
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	// bitwise
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrU
	OpShrS

	// relational: equality, four unsigned, four signed, two float orderings
	OpSetEQ
	OpSetNE
	OpSetLtU
	OpSetLeU
	OpSetGtU
	OpSetGeU
	OpSetLtS
	OpSetLeS
	OpSetGtS
	OpSetGeS
	OpFSetLt
	OpFSetLe

	// unaries
	OpNot
	OpNeg

	// memory
	OpLoad
	OpStore
	OpSetVal
	OpGetElementPtr
	OpMalloc
	OpFree
	OpAlloca

	// SSA
	OpPhi
	OpPhiSource

	// casts
	OpCast
	OpSCast
	OpFPCast
	OpPtrCast

	OpCall
	OpVaNext
	OpVaArg
	OpSlice
	OpSel
	OpCopy

	// no-ops
	OpNop
	OpLNop
	OpSNop

	OpAsm
	OpContext
	OpDeathnote
	OpRange
)

// negation maps a compare opcode to its logical negation, used when
// inverting branch tests.
var negation = map[Opcode]Opcode{
	OpSetEQ: OpSetNE, OpSetNE: OpSetEQ,
	OpSetLtU: OpSetGeU, OpSetGeU: OpSetLtU,
	OpSetLeU: OpSetGtU, OpSetGtU: OpSetLeU,
	OpSetLtS: OpSetGeS, OpSetGeS: OpSetLtS,
	OpSetLeS: OpSetGtS, OpSetGtS: OpSetLeS,
}

// Negate returns op's designated negation, or op unchanged if it has none.
func Negate(op Opcode) Opcode {
	if n, ok := negation[op]; ok {
		return n
	}
	return op
}

func IsCompare(op Opcode) bool {
	switch op {
	case OpSetEQ, OpSetNE, OpSetLtU, OpSetLeU, OpSetGtU, OpSetGeU,
		OpSetLtS, OpSetLeS, OpSetGtS, OpSetGeS, OpFSetLt, OpFSetLe:
		return true
	}
	return false
}

func IsTerminator(op Opcode) bool {
	switch op {
	case OpRet, OpBr, OpSwitch, OpComputedGoto, OpUnwind, OpInvoke:
		return true
	}
	return false
}

// SwitchCase is one arm of an OP_SWITCH: an unsorted list of (begin, end,
// target) ranges, tested in order, plus DefaultBB on the owning
// Instruction for the fallthrough case.
type SwitchCase struct {
	Begin, End int64
	Target     *BasicBlock
}

// Instruction is one IR op.
type Instruction struct {
	Opcode Opcode
	Type   *types.Symbol
	BB     *BasicBlock // nil once dead
	Target *Pseudo     // result pseudo; nil for stores/branches/ret
	Size   int         // bit width the op operates at
	Position diag.Position

	// generic operand slots; most opcodes use a handful of these.
	Src  []*Pseudo
	Base *Pseudo // LOAD/STORE/GEP base
	Off  int      // LOAD/STORE/GEP byte offset
	BitOff, BitWidth int // bitfield mask/shift payload

	// BR/terminators
	TrueBB, FalseBB *BasicBlock

	// SWITCH
	Cases      []SwitchCase
	DefaultBB  *BasicBlock

	// PHI
	PhiList []*Instruction // PHISOURCE instructions, one per bb.Parents

	// PHISOURCE
	PhiTarget *Instruction // the owning PHI

	// CALL
	Callee *Pseudo
	Args   []*Pseudo
	ArgTypes []*types.Symbol

	// CAST family
	FromType *types.Symbol

	// SETVAL
	Sym *types.Symbol

	// ASM
	AsmText string
}

// BasicBlock is one node of a function's control-flow graph.
type BasicBlock struct {
	Position diag.Position
	Insns    []*Instruction
	Parents  []*BasicBlock
	Children []*BasicBlock

	Needs   map[*Pseudo]bool // live on entry
	Defines map[*Pseudo]bool // live on exit

	Generation int
	PostorderNr int
}

// AddInsn appends i to bb's instruction list and sets i.BB.
func (bb *BasicBlock) AddInsn(i *Instruction) {
	i.BB = bb
	bb.Insns = append(bb.Insns, i)
}

// Uses returns every Pseudo that instruction i reads through Src, Base,
// Callee or Args, in operand order. Kill uses this to unregister i from
// every Pseudo it was a user of; liveness uses it (minus PHI, whose
// sources it folds into the PHI's own block's use set instead) to decide
// what a live instruction keeps alive.
func Uses(i *Instruction) []*Pseudo {
	var uses []*Pseudo
	for _, s := range i.Src {
		if s != nil {
			uses = append(uses, s)
		}
	}
	if i.Base != nil {
		uses = append(uses, i.Base)
	}
	if i.Callee != nil {
		uses = append(uses, i.Callee)
	}
	for _, a := range i.Args {
		if a != nil {
			uses = append(uses, a)
		}
	}
	return uses
}

// Kill removes i from its block, unregisters it as a user of every
// pseudo it reads, and marks it dead (bb == nil).
func (bb *BasicBlock) Kill(i *Instruction) {
	for idx, x := range bb.Insns {
		if x == i {
			bb.Insns = append(bb.Insns[:idx], bb.Insns[idx+1:]...)
			break
		}
	}
	for _, s := range Uses(i) {
		s.RemoveUser(i)
	}
	i.BB = nil
}

// LinkChild adds child as a successor of bb and bb as a parent of child.
func LinkChild(bb, child *BasicBlock) {
	bb.Children = append(bb.Children, child)
	child.Parents = append(child.Parents, bb)
}

// Terminator returns bb's last instruction if it is a terminator opcode
// (a block ends in at most one of ret/br/switch/...), or nil if bb is
// empty or under construction, so callers can use it as an "is this block
// already closed" check without confusing a plain instruction like ALLOCA
// or the synthetic ENTRY marker for one.
func (bb *BasicBlock) Terminator() *Instruction {
	if len(bb.Insns) == 0 {
		return nil
	}
	last := bb.Insns[len(bb.Insns)-1]
	if !IsTerminator(last.Opcode) {
		return nil
	}
	return last
}

// EntryPoint is the per-function IR container.
type EntryPoint struct {
	Name    *types.Symbol
	Entry   *Instruction
	Bbs     []*BasicBlock // reverse-postorder after ComputePostorder
	Syms    []*types.Symbol
	Accesses map[*types.Symbol]bool
	Switches []*Instruction
}

// NewEntryPoint allocates an EntryPoint for fn.
func NewEntryPoint(fn *types.Symbol) *EntryPoint {
	return &EntryPoint{Name: fn, Accesses: make(map[*types.Symbol]bool)}
}

// ComputePostorder walks entry's CFG and returns its blocks in
// reverse-postorder, stamping PostorderNr on each as it goes. Safe on
// cyclic graphs; each block is visited once.
func ComputePostorder(entry *BasicBlock) []*BasicBlock {
	visited := make(map[*BasicBlock]bool)
	var post []*BasicBlock
	var walk func(bb *BasicBlock)
	walk = func(bb *BasicBlock) {
		if bb == nil || visited[bb] {
			return
		}
		visited[bb] = true
		for _, c := range bb.Children {
			walk(c)
		}
		bb.PostorderNr = len(post)
		post = append(post, bb)
	}
	walk(entry)

	rev := make([]*BasicBlock, len(post))
	for i, bb := range post {
		rev[len(post)-1-i] = bb
	}
	return rev
}
