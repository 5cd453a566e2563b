package linearize

import (
	"math"

	"sparsego/internal/cast"
	"sparsego/internal/ir"
)

// linearizeStmt lowers one statement.
func (b *Builder) linearizeStmt(s *cast.Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case cast.SNone:

	case cast.SCompound:
		for _, sub := range s.Stmts {
			b.linearizeStmt(sub)
		}

	case cast.SDeclaration:
		for _, sym := range s.Decls {
			slot := b.allocaFor(sym)
			init, _ := sym.Body.(*cast.Expr)
			if init == nil {
				continue
			}
			if init.Kind == cast.EInitializer {
				for _, pos := range init.Elements {
					b.storePosNode(slot, pos)
				}
				continue
			}
			v := b.lowerExpr(init)
			b.store(slot, 0, 0, 0, sym.BaseType, v)
		}

	case cast.SExpression:
		if s.Expr != nil {
			b.lowerExpr(s.Expr)
		}

	case cast.SIf:
		cond := b.lowerExpr(s.Cond)
		thenBB := b.newBB()
		joinBB := b.newBB()
		elseBB := joinBB
		if s.Else != nil {
			elseBB = b.newBB()
		}
		b.emitCondBr(cond, thenBB, elseBB)

		b.switchTo(thenBB)
		b.linearizeStmt(s.Then)
		b.emitBr(joinBB)

		if s.Else != nil {
			b.switchTo(elseBB)
			b.linearizeStmt(s.Else)
			b.emitBr(joinBB)
		}

		b.switchTo(joinBB)

	case cast.SReturn:
		insn := &ir.Instruction{Opcode: ir.OpRet}
		if s.ReturnExpr != nil {
			rv := b.lowerExpr(s.ReturnExpr)
			insn.Src = []*ir.Pseudo{rv}
			rv.AddUser(insn)
		}
		b.emit(insn)

	case cast.SIterator:
		b.linearizeIterator(s)

	case cast.SSwitch:
		b.linearizeSwitch(s)

	case cast.SCase:
		b.linearizeCase(s)

	case cast.SLabel:
		target := b.labelFor(s.LabelSym)
		b.switchTo(target)
		b.linearizeStmt(s.LabelBody)

	case cast.SGoto:
		var target *ir.BasicBlock
		switch s.GotoName {
		case "break":
			target = b.breakTarget()
		case "continue":
			target = b.continueTarget()
		default:
			if s.GotoTarget != nil {
				target = b.labelFor(s.GotoTarget)
			}
		}
		if target == nil {
			b.Bag.Error(s.Position, "unresolved goto target %q", s.GotoName)
			return
		}
		b.emitBr(target)

	case cast.SAsm:
		b.emit(&ir.Instruction{Opcode: ir.OpAsm, AsmText: s.AsmText})

	case cast.SContext:
		insn := &ir.Instruction{Opcode: ir.OpContext, Size: int(s.ContextMask)}
		if s.ContextExpr != nil {
			cv := b.lowerExpr(s.ContextExpr)
			insn.Src = []*ir.Pseudo{cv}
			cv.AddUser(insn)
		}
		b.emit(insn)

	case cast.SRange:
		// Not produced by the parser; reserved for a future range-for
		// extension.
	}
}

func (b *Builder) storePosNode(slot *ir.Pseudo, pos *cast.Expr) {
	offBytes := pos.Offset / 8
	t := b.typeForWidth(pos.Width)
	val := b.constInt(int64(pos.Value), t)
	if pos.FValue != 0 {
		val.Value = math.Float64bits(pos.FValue)
	}
	b.store(slot, offBytes, 0, 0, t, val)
}

func (b *Builder) linearizeIterator(s *cast.Stmt) {
	if s.PreStatement != nil {
		b.linearizeStmt(s.PreStatement)
	}

	condBB := b.newBB()
	bodyBB := b.newBB()
	stepBB := b.newBB()
	afterBB := b.newBB()

	runBody := func() {
		b.loops = append(b.loops, loopCtx{breakBB: afterBB, continueBB: stepBB})
		b.linearizeStmt(s.IterBody)
		b.loops = b.loops[:len(b.loops)-1]
	}

	if !s.PostCheck {
		b.emitBr(condBB)
		b.switchTo(condBB)
		if s.PreCondition != nil {
			cv := b.lowerExpr(s.PreCondition)
			b.emitCondBr(cv, bodyBB, afterBB)
		} else {
			b.emitBr(bodyBB)
		}
		b.switchTo(bodyBB)
		runBody()
		b.emitBr(stepBB)
		b.switchTo(stepBB)
		if s.PostStatement != nil {
			b.linearizeStmt(s.PostStatement)
		}
		b.emitBr(condBB)
	} else {
		b.emitBr(bodyBB)
		b.switchTo(bodyBB)
		runBody()
		b.emitBr(stepBB)
		b.switchTo(stepBB)
		if s.PostStatement != nil {
			b.linearizeStmt(s.PostStatement)
		}
		if s.PostCondition != nil {
			cv := b.lowerExpr(s.PostCondition)
			b.emitCondBr(cv, bodyBB, afterBB)
		} else {
			b.emitBr(bodyBB)
		}
	}

	b.switchTo(afterBB)
}

func (b *Builder) linearizeSwitch(s *cast.Stmt) {
	val := b.lowerExpr(s.SwitchExpr)
	insn := &ir.Instruction{Opcode: ir.OpSwitch, Src: []*ir.Pseudo{val}}
	val.AddUser(insn)
	b.emit(insn)
	switchBB := insn.BB
	b.ep.Switches = append(b.ep.Switches, insn)

	afterBB := b.newBB()
	bodyBB := b.newBB()
	ir.LinkChild(switchBB, bodyBB)

	b.switches = append(b.switches, switchCtx{insn: insn, breakBB: afterBB})
	b.loops = append(b.loops, loopCtx{breakBB: afterBB})

	b.switchTo(bodyBB)
	b.linearizeStmt(s.SwitchBody)

	b.loops = b.loops[:len(b.loops)-1]
	b.switches = b.switches[:len(b.switches)-1]

	b.emitBr(afterBB)
	b.switchTo(afterBB)
	if insn.DefaultBB == nil {
		insn.DefaultBB = afterBB
	}
}

func (b *Builder) linearizeCase(s *cast.Stmt) {
	if len(b.switches) == 0 {
		b.Bag.Error(s.Position, "case/default label outside switch")
		b.linearizeStmt(s.CaseBody)
		return
	}
	sw := b.switches[len(b.switches)-1]
	caseBB := b.newBB()
	b.switchTo(caseBB)
	ir.LinkChild(sw.insn.BB, caseBB)

	if s.CaseExpr == nil {
		sw.insn.DefaultBB = caseBB
	} else {
		lo := constIntValueOf(s.CaseExpr)
		hi := lo
		if s.CaseHi != nil {
			hi = constIntValueOf(s.CaseHi)
		}
		sw.insn.Cases = append(sw.insn.Cases, ir.SwitchCase{Begin: lo, End: hi, Target: caseBB})
	}

	b.linearizeStmt(s.CaseBody)
}

func constIntValueOf(e *cast.Expr) int64 {
	if e != nil && e.Kind == cast.EValue {
		return int64(e.Value)
	}
	return 0
}
