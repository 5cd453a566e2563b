package eval

import (
	"sort"

	"sparsego/internal/cast"
	"sparsego/internal/types"
)

// normalizeInitializer normalizes an initializer: designators are checked
// against the target shape, implicit zero fills
// are inserted for gaps (by simply leaving unspecified ranges absent from
// the POS list — a later pass zero-fills anything missing), excess
// elements are dropped with a warning, string literals initialize
// character arrays, and the result is a flat ascending-offset sequence of
// POS nodes `{offset, width, value}`.
func (ev *Evaluator) normalizeInitializer(target *types.Symbol, init *cast.Expr) *cast.Expr {
	if target == nil || init == nil {
		return init
	}
	types.Examine(target, ev.Layout)
	var pos []*cast.Expr
	ev.flatten(target, init, 0, &pos)
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].Offset < pos[j].Offset })
	return &cast.Expr{Kind: cast.EInitializer, Position: init.Position, Ctype: target, Elements: pos}
}

func (ev *Evaluator) flatten(target *types.Symbol, init *cast.Expr, baseOffset int, out *[]*cast.Expr) {
	if target == nil || init == nil {
		return
	}

	// A string literal initializing a character array: each byte becomes
	// its own POS node at char width.
	if init.Kind == cast.EString && target.Kind == types.Array {
		for i, b := range init.Str.Bytes {
			*out = append(*out, &cast.Expr{Kind: cast.EPos, Position: init.Position, Offset: baseOffset + i*8, Width: 8, Value: uint64(b)})
		}
		return
	}

	if init.Kind != cast.EInitializer {
		ev.evalUse(init)
		*out = append(*out, &cast.Expr{Kind: cast.EPos, Position: init.Position, Offset: baseOffset, Width: target.BitSize, Value: init.Value, FValue: init.FValue})
		return
	}

	switch target.Kind {
	case types.Array:
		elemSize := 0
		if target.BaseType != nil {
			elemSize = target.BaseType.BitSize
		}
		idx := 0
		elemCount := target.ArraySizeConst
		for _, el := range init.Elements {
			if el.Designator != nil {
				idx = int(ev.constIntValue(el.Designator))
			}
			if target.ArraySizeKnown && idx >= elemCount {
				ev.Bag.Warn(el.Position, "excess elements in array initializer")
				continue
			}
			off := baseOffset + idx*elemSize
			ev.flatten(target.BaseType, el, off, out)
			hi := idx
			if el.RangeHi != nil {
				hi = int(ev.constIntValue(el.RangeHi))
				for r := idx + 1; r <= hi; r++ {
					ev.flatten(target.BaseType, el, baseOffset+r*elemSize, out)
				}
			}
			idx = hi + 1
		}

	case types.Struct:
		mi := 0
		for _, el := range init.Elements {
			var m *types.Symbol
			if el.Designator != nil && el.Designator.Kind == cast.EIdentifier {
				m = findMember(target, el.Designator.Name)
				for j, cand := range target.Members {
					if cand == m {
						mi = j
						break
					}
				}
			} else if mi < len(target.Members) {
				m = target.Members[mi]
			}
			if m == nil {
				ev.Bag.Warn(el.Position, "excess elements in struct initializer")
				continue
			}
			ev.flatten(m.BaseType, el, baseOffset+m.Offset*8, out)
			mi++
		}

	case types.Union:
		if len(init.Elements) == 0 {
			return
		}
		el := init.Elements[0]
		var m *types.Symbol
		if el.Designator != nil && el.Designator.Kind == cast.EIdentifier {
			m = findMember(target, el.Designator.Name)
		} else if len(target.Members) > 0 {
			m = target.Members[0]
		}
		if m != nil {
			ev.flatten(m.BaseType, el, baseOffset, out)
		}

	default:
		// A scalar wrapped in one redundant brace level, e.g. `int x = {5};`.
		if len(init.Elements) > 0 {
			ev.flatten(target, init.Elements[0], baseOffset, out)
		}
	}
}

func (ev *Evaluator) constIntValue(e *cast.Expr) int64 {
	if e == nil {
		return 0
	}
	ev.evalExpr(e)
	if e.Kind == cast.EValue {
		return int64(e.Value)
	}
	return 0
}
