package capnp

// resolvedPointer is the outcome of fully resolving a pointer slice,
// chasing far pointers to their landing pad, to an actual struct or list
// location (spec §4.3). Far and null are never returned here: the null
// case is reported separately so callers can apply schema defaults or
// trigger builder auto-allocation.
type resolvedPointer struct {
	kind  pointerKind // kindStruct or kindList
	segID SegmentID
	addr  Address
	size  ObjectSize  // valid when kind == kindStruct
	etype ElementType // valid when kind == kindList
	count int32       // valid when kind == kindList: element count, or (composite) payload words
}

// resolvePointer reads the pointer word at ptrSlice and follows at most one
// far-pointer hop to produce a resolvedPointer. ok is false for a null
// pointer.
func resolvePointer(ptrSlice Slice) (resolvedPointer, bool, error) {
	word, err := ptrSlice.getRawPointer()
	if err != nil {
		return resolvedPointer{}, false, err
	}
	if word.isNull() {
		return resolvedPointer{}, false, nil
	}
	d := decode(word)
	switch d.kind {
	case kindStruct, kindList:
		base := ptrSlice.start + Address(wordSize)
		addr, ok := resolveOffset(d.off, base)
		if !ok {
			return resolvedPointer{}, false, newInvalidMessage("struct/list pointer offset overflows address space")
		}
		return resolvedPointer{kind: d.kind, segID: ptrSlice.segID, addr: addr, size: d.size, etype: d.etype, count: d.count}, true, nil
	case kindFar:
		rp, err := resolveFarPointer(ptrSlice.msg, word)
		if err != nil {
			return resolvedPointer{}, true, wrapInvalidMessage(err, "resolving far pointer")
		}
		return rp, true, nil
	default:
		return resolvedPointer{}, false, newInvalidMessage("unsupported pointer discriminator (capability pointer) in non-RPC message")
	}
}

// resolveFarPointer follows a far pointer to its landing pad, handling
// both the single- and double-landing-pad forms (spec §4.3, GLOSSARY
// "Far pointer" / "Landing pad"). A landing pad that is itself a far
// pointer is rejected: well-formed Cap'n Proto messages never chain far
// pointers more than one hop deep.
func resolveFarPointer(msg *Message, farWord rawPointer) (resolvedPointer, error) {
	d := decode(farWord)
	switch d.pad {
	case singleLandingPad:
		pad, err := NewSlice(msg, d.farSeg, d.farOff, wordSize)
		if err != nil {
			return resolvedPointer{}, err
		}
		word, err := pad.getRawPointer()
		if err != nil {
			return resolvedPointer{}, err
		}
		d2 := decode(word)
		switch d2.kind {
		case kindStruct, kindList:
			base := d.farOff + Address(wordSize)
			addr, ok := resolveOffset(d2.off, base)
			if !ok {
				return resolvedPointer{}, newInvalidMessage("far pointer landing pad offset overflows address space")
			}
			return resolvedPointer{kind: d2.kind, segID: d.farSeg, addr: addr, size: d2.size, etype: d2.etype, count: d2.count}, nil
		default:
			return resolvedPointer{}, newInvalidMessage("far pointer chain too deep or malformed landing pad")
		}
	case doubleLandingPad:
		pad, err := NewSlice(msg, d.farSeg, d.farOff, 2*wordSize)
		if err != nil {
			return resolvedPointer{}, err
		}
		w1, err := pad.GetUint64(0)
		if err != nil {
			return resolvedPointer{}, err
		}
		far := decode(rawPointer(w1))
		if far.kind != kindFar || far.pad != singleLandingPad {
			return resolvedPointer{}, newInvalidMessage("double-far landing pad's first word is not a single far pointer")
		}
		w2, err := pad.GetUint64(8)
		if err != nil {
			return resolvedPointer{}, err
		}
		tag := decode(rawPointer(w2))
		switch tag.kind {
		case kindStruct, kindList:
			// The tag word's offset field is ignored; only its shape
			// metadata (sizes/element type/count) is meaningful.
			return resolvedPointer{kind: tag.kind, segID: far.farSeg, addr: far.farOff, size: tag.size, etype: tag.etype, count: tag.count}, nil
		default:
			return resolvedPointer{}, newInvalidMessage("double-far landing pad's tag word is neither struct nor list")
		}
	default:
		return resolvedPointer{}, newInvalidMessage("unreachable landing pad kind")
	}
}
