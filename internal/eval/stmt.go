package eval

import (
	"sparsego/internal/cast"
	"sparsego/internal/types"
)

func (ev *Evaluator) evalStmt(s *cast.Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case cast.SCompound:
		ev.push()
		for _, sub := range s.Stmts {
			ev.evalStmt(sub)
		}
		ev.pop()

	case cast.SDeclaration:
		for _, d := range s.Decls {
			types.Examine(d, ev.Layout)
			ev.bind(d)
			if init, ok := d.Body.(*cast.Expr); ok && init != nil {
				d.Body = ev.normalizeInitializer(d.BaseType, init)
			}
		}

	case cast.SExpression:
		ev.evalUse(s.Expr)

	case cast.SIf:
		ev.evalUse(s.Cond)
		ev.evalStmt(s.Then)
		ev.evalStmt(s.Else)

	case cast.SReturn:
		if s.ReturnExpr != nil {
			ev.evalUse(s.ReturnExpr)
		}

	case cast.SIterator:
		ev.push()
		ev.evalStmt(s.PreStatement)
		if s.PreCondition != nil {
			ev.evalUse(s.PreCondition)
		}
		ev.evalStmt(s.IterBody)
		ev.evalStmt(s.PostStatement)
		if s.PostCondition != nil {
			ev.evalUse(s.PostCondition)
		}
		ev.pop()

	case cast.SSwitch:
		ev.evalUse(s.SwitchExpr)
		ev.evalStmt(s.SwitchBody)

	case cast.SCase:
		if s.CaseExpr != nil {
			ev.evalUse(s.CaseExpr)
		}
		if s.CaseHi != nil {
			ev.evalUse(s.CaseHi)
		}
		ev.evalStmt(s.CaseBody)

	case cast.SLabel:
		ev.evalStmt(s.LabelBody)

	case cast.SContext:
		if s.ContextExpr != nil {
			ev.evalUse(s.ContextExpr)
		}

	case cast.SGoto, cast.SAsm, cast.SNone, cast.SRange:
		// Nothing to type: goto targets are resolved by the linearizer,
		// asm text is opaque, and a bare ';' has no operand.
	}
}
