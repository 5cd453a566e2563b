// Package token defines the tagged Token union and the maximal-munch
// operator table the tokenizer scans with.
//
// The enum-style Kind/Special constants and the Position-carrying Token
// struct use a plain int Kind (rather than a string-backed enum), since
// the Special operator table benefits from small dense integers as
// map/slice keys.
package token

import "sparsego/internal/diag"

// Kind tags the Token union.
type Kind int

const (
	EOF Kind = iota
	TokError
	TokIdent
	TokNumber       // lexeme string, classified later by the evaluator
	TokChar
	TokString
	TokSpecial      // operator/punctuator, see Special below
	StreamBegin
	StreamEnd
	MacroArgument   // preprocessor: unexpanded formal-parameter placeholder
	StringizedArgument
	QuotedArgument
	ConcatMarker    // preprocessor: marks a `##` paste point
	UntaintMarker
)

// Special enumerates operator/punctuator codes, scanned by maximal munch
// (e.g. `+`, `+=`, `++`, `->`, `...`, `##`).
type Special int

const (
	SpecialNone Special = iota
	OpLParen
	OpRParen
	OpLBrace
	OpRBrace
	OpLBracket
	OpRBracket
	OpSemicolon
	OpComma
	OpColon
	OpQuestion
	OpEllipsis  // ...
	OpDot       // .
	OpArrow     // ->
	OpPlus
	OpMinus
	OpStar
	OpSlash
	OpPercent
	OpIncrement // ++
	OpDecrement // --
	OpAmp
	OpPipe
	OpCaret
	OpTilde
	OpNot       // !
	OpShl       // <<
	OpShr       // >>
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq        // ==
	OpNe        // !=
	OpAndAnd    // &&
	OpOrOr      // ||
	OpAssign    // =
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpModAssign
	OpShlAssign
	OpShrAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
	OpHash      // #
	OpHashHash  // ##
)

// operatorTable drives maximal-munch scanning: for every prefix string
// that can start an operator, the longest match wins. Built once and
// consulted by the tokenizer.
var operatorTable = []struct {
	text string
	op   Special
}{
	{"...", OpEllipsis},
	{"<<=", OpShlAssign},
	{">>=", OpShrAssign},
	{"->", OpArrow},
	{"++", OpIncrement},
	{"--", OpDecrement},
	{"<<", OpShl},
	{">>", OpShr},
	{"<=", OpLe},
	{">=", OpGe},
	{"==", OpEq},
	{"!=", OpNe},
	{"&&", OpAndAnd},
	{"||", OpOrOr},
	{"+=", OpAddAssign},
	{"-=", OpSubAssign},
	{"*=", OpMulAssign},
	{"/=", OpDivAssign},
	{"%=", OpModAssign},
	{"&=", OpAndAssign},
	{"|=", OpOrAssign},
	{"^=", OpXorAssign},
	{"##", OpHashHash},
	{"(", OpLParen},
	{")", OpRParen},
	{"{", OpLBrace},
	{"}", OpRBrace},
	{"[", OpLBracket},
	{"]", OpRBracket},
	{";", OpSemicolon},
	{",", OpComma},
	{":", OpColon},
	{"?", OpQuestion},
	{".", OpDot},
	{"+", OpPlus},
	{"-", OpMinus},
	{"*", OpStar},
	{"/", OpSlash},
	{"%", OpPercent},
	{"&", OpAmp},
	{"|", OpPipe},
	{"^", OpCaret},
	{"~", OpTilde},
	{"!", OpNot},
	{"<", OpLt},
	{">", OpGt},
	{"=", OpAssign},
	{"#", OpHash},
}

// MatchOperator performs maximal munch against s starting at offset i,
// returning the matched Special and its length in bytes, or
// (SpecialNone, 0) if no operator starts there.
func MatchOperator(s string, i int) (Special, int) {
	best := SpecialNone
	bestLen := 0
	for _, e := range operatorTable {
		if len(e.text) <= bestLen {
			continue
		}
		if i+len(e.text) > len(s) {
			continue
		}
		if s[i:i+len(e.text)] == e.text {
			best = e.op
			bestLen = len(e.text)
		}
	}
	return best, bestLen
}

// Token is the tagged union. Only the fields relevant to Kind
// are meaningful; the rest are zero. Position, Next and Whitespace/Newline
// flags (carried on Position, see diag.Position) are common to every
// variant.
type Token struct {
	Kind     Kind
	Position diag.Position
	Next     *Token

	Ident   *IdentRef // TokIdent: interned identifier (opaque to this package, see ident.Ident)
	Lexeme  string     // TokNumber: raw lexeme; TokError: message text
	Char    rune       // TokChar: decoded character value (whether it was escaped is in Escaped)
	Escaped bool       // TokChar/TokString: true if the source used an escape sequence
	Str     StringLit  // TokString
	Special Special    // TokSpecial
	Arg     int        // MacroArgument/StringizedArgument/QuotedArgument: formal parameter index
}

// IdentRef is an opaque handle around an interned identifier; the scanner
// stores a *ident.Ident in it, and the preprocessor and parser recover it
// via type assertion at the point of use.
type IdentRef struct {
	Any interface{}
}

// StringLit is a string literal's (length, bytes) pair; the NUL
// terminator is included in both the byte slice and its length.
type StringLit struct {
	Bytes []byte // includes the trailing NUL
}

// Len returns the string literal's length, NUL included.
func (s StringLit) Len() int { return len(s.Bytes) }

// NewList builds a linked Token list from a slice, returning the head; the
// tokenizer and preprocessor both produce/consume this representation.
func NewList(toks []*Token) *Token {
	var head, tail *Token
	for _, t := range toks {
		if head == nil {
			head = t
		} else {
			tail.Next = t
		}
		tail = t
	}
	return head
}

// ToSlice flattens a linked Token list back into a slice, mostly for tests
// and dumps.
func ToSlice(head *Token) []*Token {
	var out []*Token
	for t := head; t != nil; t = t.Next {
		out = append(out, t)
	}
	return out
}
