package types

// Examine memoizes layout computation for sym, tracked via an examined
// flag so repeated references to the same type cost nothing after the
// first pass. cfg supplies the target-dependent pointer width/alignment.
func Examine(sym *Symbol, cfg LayoutConfig) {
	if sym == nil || sym.examined {
		return
	}
	sym.examined = true // set before recursing into BaseType: permits self-referential types through PTR

	switch sym.Kind {
	case Ptr:
		sym.BitSize = cfg.BitsInPointer
		sym.Alignment = cfg.PointerAlignment
		Examine(sym.BaseType, cfg)

	case Array:
		Examine(sym.BaseType, cfg)
		if !sym.ArraySizeKnown {
			sym.BitSize = -1
		} else if sym.BaseType != nil {
			sym.BitSize = sym.BaseType.BitSize * sym.ArraySizeConst
		}
		if sym.BaseType != nil {
			sym.Alignment = sym.BaseType.Alignment
		}

	case Struct:
		layoutStruct(sym, cfg)

	case Union:
		layoutUnion(sym, cfg)

	case Enum:
		Examine(sym.BaseType, cfg)
		width := cfg.BitsInEnum
		if sym.BaseType != nil && sym.BaseType.BitSize > width {
			width = sym.BaseType.BitSize
		}
		sym.BitSize = width
		sym.Alignment = alignFromBits(width)

	case Bitfield:
		// Width/offset are assigned by layoutStruct as it walks members;
		// signedness defaults to unsigned unless explicitly signed.
		if !sym.Mods.Has(ModSigned) {
			sym.Mods |= ModUnsigned
		}

	case Node:
		Examine(sym.BaseType, cfg)
		if sym.BaseType != nil {
			sym.BitSize = sym.BaseType.BitSize
			sym.Alignment = sym.BaseType.Alignment
		}

	case Fn:
		// Functions have no data size; examine the return type and
		// parameters so a later pass sees fully laid-out types.
		Examine(sym.BaseType, cfg)
		for _, a := range sym.Arguments {
			Examine(a, cfg)
		}
		sym.BitSize = 0

	case Typedef, Typeof:
		Examine(sym.BaseType, cfg)
		if sym.BaseType != nil {
			sym.BitSize = sym.BaseType.BitSize
			sym.Alignment = sym.BaseType.Alignment
		}

	case Restrict, Fouled:
		Examine(sym.BaseType, cfg)
		if sym.BaseType != nil {
			sym.BitSize = sym.BaseType.BitSize
			sym.Alignment = sym.BaseType.Alignment
		}
	}
}

// layoutStruct packs fields in declaration order, respecting per-field
// alignment; bitfields pack into an allocation unit of their declared base
// type, a zero-width field rounds up to the next unit, and unnamed
// bitfields do not contribute to the enclosing alignment.
func layoutStruct(sym *Symbol, cfg LayoutConfig) {
	offsetBits := 0
	maxAlign := 1
	var unitBase *Symbol // the base type of the bitfield run currently being packed
	unitStart := 0

	flushUnit := func() {
		if unitBase == nil {
			return
		}
		offsetBits = unitStart + unitBase.BitSize
		unitBase = nil
	}

	for _, m := range sym.Members {
		if m.Kind == Bitfield {
			Examine(m.BaseType, cfg)
			if unitBase == nil || unitBase != m.BaseType || m.FieldWidth == 0 {
				flushUnit()
				offsetBits = roundUp(offsetBits, m.BaseType.Alignment*8)
				unitBase = m.BaseType
				unitStart = offsetBits
				if m.Ident != nil {
					if a := m.BaseType.Alignment; a > maxAlign {
						maxAlign = a
					}
				}
			}
			if m.FieldWidth == 0 {
				// Zero-width unnamed bitfield: round up to the next
				// unit and start fresh; it occupies no storage itself.
				unitBase = nil
				continue
			}
			m.BitOffset = offsetBits - unitStart
			m.BitSize = m.FieldWidth
			offsetBits += m.FieldWidth
			continue
		}
		flushUnit()
		Examine(m, cfg)
		align := m.Alignment
		if align == 0 {
			align = 1
		}
		offsetBits = roundUp(offsetBits, align*8)
		m.Offset = offsetBits / 8
		offsetBits += m.BitSize
		if align > maxAlign {
			maxAlign = align
		}
	}
	flushUnit()
	sym.Alignment = maxAlign
	sym.BitSize = roundUp(offsetBits, maxAlign*8)
}

// layoutUnion places every member at offset 0; size is the max member
// size and alignment the max member alignment.
func layoutUnion(sym *Symbol, cfg LayoutConfig) {
	maxBits, maxAlign := 0, 1
	for _, m := range sym.Members {
		Examine(m, cfg)
		m.Offset = 0
		m.BitOffset = 0
		if m.BitSize > maxBits {
			maxBits = m.BitSize
		}
		if m.Alignment > maxAlign {
			maxAlign = m.Alignment
		}
	}
	sym.Alignment = maxAlign
	sym.BitSize = roundUp(maxBits, maxAlign*8)
}

func roundUp(v, align int) int {
	if align <= 0 {
		return v
	}
	return (v + align - 1) / align * align
}
