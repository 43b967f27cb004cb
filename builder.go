package capnp

// placePointer writes a reference to (contentSeg, contentAddr) into
// ptrSlice, choosing among a near pointer, a single-landing-pad far
// pointer, and a double-landing-pad far pointer depending on where room
// can be found (spec §4.5). makeNear builds the near-pointer encoding
// (struct or list shaped) once the offset field is known; makeTag builds
// the shape-only tag word used by the double-far form.
func placePointer(ptrSlice Slice, contentSeg SegmentID, contentAddr Address, makeNear func(off int32) rawPointer, makeTag func() rawPointer) error {
	if contentSeg == ptrSlice.segID {
		off := nearOffset(ptrSlice.start, contentAddr)
		return ptrSlice.setRawPointer(makeNear(off))
	}

	if pad, ok, err := AllocInSegment(ptrSlice.msg, contentSeg, wordSize); err != nil {
		return err
	} else if ok {
		off := nearOffset(pad.start, contentAddr)
		if err := pad.setRawPointer(makeNear(off)); err != nil {
			return err
		}
		return ptrSlice.setRawPointer(encodeFarPointer(singleLandingPad, uint32(pad.start)/uint32(wordSize), contentSeg))
	}

	padRegion, err := Alloc(ptrSlice.msg, ptrSlice.segID, 2*wordSize)
	if err != nil {
		return err
	}
	farWord := encodeFarPointer(singleLandingPad, uint32(contentAddr)/uint32(wordSize), contentSeg)
	if err := padRegion.SetUint64(0, uint64(farWord)); err != nil {
		return err
	}
	if err := padRegion.SetUint64(wordSize, uint64(makeTag())); err != nil {
		return err
	}
	return ptrSlice.setRawPointer(encodeFarPointer(doubleLandingPad, uint32(padRegion.start)/uint32(wordSize), padRegion.segID))
}

// InitStructPointer writes ptrSlice to reference storage (spec §4.5).
func InitStructPointer(ptrSlice Slice, storage StructStorage) error {
	sz := storage.Size()
	if storage.data.length == 0 && storage.pointers.length == 0 {
		// Zero-sized structs always encode with offset -1 to avoid
		// conflating with a null pointer; no placement is meaningful.
		return ptrSlice.setRawPointer(encodeStructPointer(-1, ObjectSize{}))
	}
	return placePointer(ptrSlice, storage.data.segID, storage.data.start,
		func(off int32) rawPointer { return encodeStructPointer(off, sz) },
		func() rawPointer { return encodeStructPointer(0, sz) },
	)
}

// listPointerCount returns the value carried in a list pointer's count
// field: the element count for every layout except Composite, where it is
// the total payload word count (spec §4.5).
func listPointerCount(l ListStorage) int32 {
	if l.etype != Composite {
		return l.length
	}
	words := l.elemSize.totalSize() / wordSize
	return l.length * int32(words)
}

// InitListPointer writes ptrSlice to reference storage (spec §4.5). For a
// composite list, the referenced address is the tag word immediately
// preceding the payload.
func InitListPointer(ptrSlice Slice, storage ListStorage) error {
	contentAddr := storage.payload.start
	if storage.etype == Composite {
		contentAddr -= Address(wordSize)
	}
	count := listPointerCount(storage)
	et := storage.etype
	return placePointer(ptrSlice, storage.payload.segID, contentAddr,
		func(off int32) rawPointer { return encodeListPointer(off, et, count) },
		func() rawPointer { return encodeListPointer(0, et, count) },
	)
}

// CopyPointer performs a shallow pointer copy from src to dest, preserving
// the referenced object's identity (no new storage is allocated) when
// possible (spec §4.5). This is only valid when src and dest belong to the
// same message; copying a pointer across messages requires DeepCopyPointer.
func CopyPointer(src, dest Slice) error {
	word, err := src.getRawPointer()
	if err != nil {
		return err
	}
	if word.isNull() {
		return dest.setRawPointer(0)
	}
	d := decode(word)
	switch d.kind {
	case kindFar:
		if src.msg != dest.msg {
			return newInvalidMessage("cannot shallow-copy a far pointer across messages; use deep copy")
		}
		return dest.setRawPointer(word)
	case kindStruct:
		storage, ok, err := DerefStructPointer(src)
		if err != nil || !ok {
			return err
		}
		if src.msg != dest.msg {
			return newInvalidMessage("cannot shallow-copy a pointer across messages; use deep copy")
		}
		return InitStructPointer(dest, storage)
	case kindList:
		storage, ok, err := DerefListPointer(src)
		if err != nil || !ok {
			return err
		}
		if src.msg != dest.msg {
			return newInvalidMessage("cannot shallow-copy a pointer across messages; use deep copy")
		}
		return InitListPointer(dest, storage)
	default:
		return newInvalidMessage("cannot copy a capability pointer in the runtime core")
	}
}
