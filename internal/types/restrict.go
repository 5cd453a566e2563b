package types

// FoulAction is the outcome of combining a restricted integer type with
// another type across a binary operator.
type FoulAction int

const (
	// Preserve keeps the restricted kind unchanged: both operands carry
	// the same restricted kind, or one side is the restricted type and
	// the other is the untyped integer constant 0 combined with ==/!=.
	Preserve FoulAction = iota
	// Defoul strips the restricted-ness and yields the plain base type;
	// emitted with a diagnostic.
	Defoul
	// Invalid mixes two distinct restricted kinds with no common unfouled
	// type; always a diagnostic.
	Invalid
)

// binOpClass buckets the operators relevant to the restricted lattice.
// classUnfouling is `&`, the one strictly binary operator that keeps a
// restricted operand's kind even when the two sides disagree on fouled
// state. classKeepFouled (`|`, `^`, and the `?:` conditional) preserves a
// restricted operand exactly as found, fouled state included. Everything
// else — arithmetic, relational, and shift — defouls with a diagnostic;
// only == / != against the untyped constant 0 gets the same Preserve
// treatment as the restricting operators themselves.
type binOpClass int

const (
	classUnfouling binOpClass = iota // &
	classKeepFouled                  // |, ^, ?:
	classEqNe                        // ==, !=
	classOther                       // +, -, *, /, <<, >>, relational <,>,<=,>=, etc.
)

// RestrictCombine implements the restricted-integer lattice for a binary
// operator applied to a pair of operand types. left/right name the
// RestrictName of each operand if it is a Kind==Restrict type, or "" if
// the operand is an ordinary (non-restricted) type; rightIsZeroConst marks
// the literal-0 special case required for ==/!=.
func RestrictCombine(class binOpClass, left, right string, rightIsZeroConst bool) FoulAction {
	switch {
	case left == "" && right == "":
		return Preserve // neither operand restricted: nothing to foul
	case left != "" && right != "" && left != right:
		return Invalid // two distinct restricted kinds never combine
	case left != "" && right != "" && left == right:
		if class == classUnfouling || class == classKeepFouled || class == classEqNe {
			return Preserve
		}
		return Defoul
	default:
		// Exactly one side is restricted.
		if class == classEqNe && rightIsZeroConst {
			return Preserve
		}
		if class == classUnfouling || class == classKeepFouled {
			return Preserve
		}
		return Defoul
	}
}

// ClassUnfouling, ClassKeepFouled, ClassEqNe, ClassOther re-export the
// binOpClass values so callers outside the package (internal/eval) can
// classify an operator's token.Special into the right bucket.
const (
	ClassUnfouling  = classUnfouling
	ClassKeepFouled = classKeepFouled
	ClassEqNe       = classEqNe
	ClassOther      = classOther
)
