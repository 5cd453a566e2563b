// Package cast implements the untyped AST ("cast" because it is built
// directly from the parenthesized abstract syntax, before the evaluator
// in internal/eval attaches types) and the recursive-descent parser that
// produces it.
//
// Following internal/types.Symbol's lead, Expr and Stmt are each one
// tagged struct rather than a kind-per-type interface hierarchy: between
// them they cover two dozen expression kinds and over a dozen statement
// kinds, and a single struct with a Kind tag keeps construction,
// tree-walking and arena allocation uniform the way types.Symbol does for
// the even larger Symbol union.
package cast

import (
	"sparsego/internal/diag"
	"sparsego/internal/ident"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

type ExprKind int

const (
	EBad ExprKind = iota
	EValue
	EFValue
	EString
	ESymbol
	EType
	EBinop
	EAssignment
	ELogical
	EDeref
	EPreop
	EPostop
	ECast
	EImpliedCast
	ESizeof
	EAlignof
	EPtrSizeof
	EConditional
	ESelect
	EStatement
	ECall
	EComma
	ECompare
	EBitfield
	ELabel
	EInitializer
	EIdentifier
	EIndex
	EPos
)

// Expr is the tagged Expression union.
type Expr struct {
	Kind     ExprKind
	Position diag.Position
	Ctype    *types.Symbol // attached by internal/eval; nil until evaluated

	// VALUE / alignof-of-a-constant results
	Value uint64
	// FVALUE
	FValue float64
	// STRING
	Str token.StringLit
	// SYMBOL / IDENTIFIER (unresolved use of a name prior to lookup)
	Sym   *types.Symbol
	Ident *ident.Ident
	Name  string

	// TYPE: a bare type-name operand, e.g. inside sizeof(T) or a cast
	TypeOperand *types.Symbol

	// BINOP / LOGICAL / COMPARE / ASSIGNMENT / COMMA
	Op          token.Special
	Left, Right *Expr

	// DEREF / PREOP / POSTOP / CAST / IMPLIED_CAST / SIZEOF / ALIGNOF / PTRSIZEOF
	Operand *Expr

	// CONDITIONAL: a ? b : c. Branch == nil models the GNU `a ?: c`
	// degenerate form, where Cond doubles as the true arm for typing.
	Cond, Branch, ElseBranch *Expr

	// SELECT: branchless a?b:c. The parser never produces this kind and no
	// later pass builds it; internal/simplify represents branchless selects
	// as ir.OpSel instructions instead.

	// STATEMENT: a GNU statement expression `({ ... })`
	Body *Stmt

	// CALL
	Callee *Expr
	Args   []*Expr

	// BITFIELD: a `.field`/`->field` member reference. The parser uses this
	// kind for every member access, bitfield or not; Name holds the member
	// name, Operand the base struct expr.
	FieldWidth int

	// LABEL: &&label (computed-goto address-of-label)
	LabelSym *types.Symbol

	// INITIALIZER: brace-enclosed list, un-normalized until the evaluator
	// runs.
	Elements   []*Expr
	Designator *Expr // the `.field =` / `[index] =` / `[lo ... hi] =` prefix, if any
	RangeHi    *Expr // set when Designator is a `[lo ... hi]` range designator

	// INDEX: base[Index]
	Index *Expr

	// POS: {offset, width, value} produced by initializer normalization.
	// Offset and Width are in bits, matching Symbol.BitOffset/BitSize.
	Offset int
	Width  int
}

func NewBinop(pos diag.Position, op token.Special, l, r *Expr) *Expr {
	return &Expr{Kind: EBinop, Position: pos, Op: op, Left: l, Right: r}
}
