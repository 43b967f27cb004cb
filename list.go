package capnp

// ListStorage is a descriptor for a list laid out in a segment: the
// element layout, the element count, and a Slice over the payload (for a
// composite list, payload begins immediately *after* the tag word, per
// spec §3/§4.3).
type ListStorage struct {
	payload  Slice
	etype    ElementType
	length   int32
	elemSize ObjectSize // per-element layout; meaningful for Composite and Pointer
}

// ElementType returns the list's element encoding.
func (l ListStorage) ElementType() ElementType { return l.etype }

// Len returns the number of elements in the list.
func (l ListStorage) Len() int32 { return l.length }

// IsValid reports whether the storage refers to an actual list.
func (l ListStorage) IsValid() bool { return l.payload.IsValid() }

// elemByteWidth returns the stride between elements for non-bit, non-void
// layouts.
func (l ListStorage) elemByteWidth() Size {
	switch l.etype {
	case Composite:
		return l.elemSize.totalSize()
	case Pointer:
		return wordSize
	default:
		return l.etype.elementSize().DataSize
	}
}

// makeListStorage validates that count elements of the given per-element
// byte size fit within the containing segment and builds the descriptor
// (spec §4.3 "make_list_storage"). elemSize sets the byte length only for
// Composite lists; for bit lists the byte length is ceil(count/8).
func makeListStorage(msg *Message, segID SegmentID, addr Address, et ElementType, elemSize ObjectSize, count int32) (ListStorage, error) {
	if count < 0 {
		return ListStorage{}, newInvalidMessage("negative list element count %d", count)
	}
	var byteLen Size
	switch et {
	case Void:
		byteLen = 0
	case Bit1:
		byteLen = Size((count + 7) / 8)
	case Composite:
		total, ok := elemSize.totalSize().times(count)
		if !ok {
			return ListStorage{}, newInvalidMessage("composite list size overflow")
		}
		byteLen = total
	default:
		total, ok := et.elementSize().totalSize().times(count)
		if !ok {
			return ListStorage{}, newInvalidMessage("list size overflow")
		}
		byteLen = total
	}
	payload, err := NewSlice(msg, segID, addr, byteLen)
	if err != nil {
		return ListStorage{}, err
	}
	return ListStorage{payload: payload, etype: et, length: count, elemSize: elemSize}, nil
}

// AllocListStorage allocates a fresh list of count zero-valued elements of
// layout (et, elemSize), preferring segment preferred. For Composite
// lists this also writes the leading tag word (spec §4.3, "Composite list
// with element count 0 must still produce a valid 8-byte tag word").
func AllocListStorage(msg *Message, preferred SegmentID, et ElementType, elemSize ObjectSize, count int32) (ListStorage, error) {
	if et == Composite {
		elemSize.DataSize = elemSize.DataSize.padToWord()
		if !elemSize.isValid() {
			return ListStorage{}, newInvalidMessage("composite list element layout invalid")
		}
		body, ok := elemSize.totalSize().times(count)
		if !ok {
			return ListStorage{}, newInvalidMessage("composite list size overflow")
		}
		region, err := Alloc(msg, preferred, wordSize+body)
		if err != nil {
			return ListStorage{}, err
		}
		seg, err := msg.Segment(region.segID)
		if err != nil {
			return ListStorage{}, err
		}
		seg.writeRawPointer(region.start, encodeStructPointer(count, elemSize))
		return makeListStorage(msg, region.segID, region.start+Address(wordSize), et, elemSize, count)
	}
	var byteLen Size
	switch et {
	case Void:
		byteLen = 0
	case Bit1:
		byteLen = Size((count + 7) / 8)
	default:
		var ok bool
		byteLen, ok = et.elementSize().totalSize().times(count)
		if !ok {
			return ListStorage{}, newInvalidMessage("list size overflow")
		}
	}
	region, err := Alloc(msg, preferred, byteLen)
	if err != nil {
		return ListStorage{}, err
	}
	return makeListStorage(msg, region.segID, region.start, et, elemSize, count)
}

// DerefListPointer resolves ptrSlice to list storage for reading. ok is
// false for a null pointer. It is an error for ptrSlice to encode a
// struct.
func DerefListPointer(ptrSlice Slice) (storage ListStorage, ok bool, err error) {
	rp, found, err := resolvePointer(ptrSlice)
	if err != nil || !found {
		return ListStorage{}, found, err
	}
	if rp.kind != kindList {
		return ListStorage{}, false, newInvalidMessage("expected list pointer, got struct pointer")
	}
	storage, err = listStorageFromResolved(ptrSlice.msg, rp)
	return storage, err == nil, err
}

// listStorageFromResolved finishes resolving a list pointer: for a
// composite list, it reads the tag word that the generic pointer resolver
// deliberately leaves alone (spec §4.3: "the decoder must treat this
// positionally"). Every call here dereferences bytes that already exist in
// the message, so the resulting payload (plus the composite tag word, if
// any) is charged against the traversal budget (SPEC_FULL "read-traversal
// accounting") — unlike AllocListStorage, which is never charged.
func listStorageFromResolved(msg *Message, rp resolvedPointer) (ListStorage, error) {
	if rp.etype != Composite {
		storage, err := makeListStorage(msg, rp.segID, rp.addr, rp.etype, rp.etype.elementSize(), rp.count)
		if err != nil {
			return ListStorage{}, err
		}
		if err := msg.chargeTraversal(int64(storage.payload.length / wordSize)); err != nil {
			return ListStorage{}, err
		}
		return storage, nil
	}
	tagSlice, err := NewSlice(msg, rp.segID, rp.addr, wordSize)
	if err != nil {
		return ListStorage{}, err
	}
	tagWord, err := tagSlice.getRawPointer()
	if err != nil {
		return ListStorage{}, err
	}
	if tagWord.kind() != kindStruct {
		return ListStorage{}, newInvalidMessage("composite list tag word is not a struct-shaped tag")
	}
	count := tagWord.offset()
	elemSize := tagWord.structSize()
	payloadWords := rp.count // total payload words per the outer list pointer
	expectedWords, ok := elemSize.totalSize().times(count)
	if !ok || Size(payloadWords)*wordSize != expectedWords {
		return ListStorage{}, newInvalidMessage("composite list tag describes %d words but payload carries %d", expectedWords/wordSize, payloadWords)
	}
	storage, err := makeListStorage(msg, rp.segID, rp.addr+Address(wordSize), Composite, elemSize, count)
	if err != nil {
		return ListStorage{}, err
	}
	if err := msg.chargeTraversal(int64(storage.payload.length/wordSize) + 1); err != nil {
		return ListStorage{}, err
	}
	return storage, nil
}

// DerefOrAllocList resolves ptrSlice to list storage for writing,
// allocating a zero-length list of the requested layout when the pointer
// is null (spec §4.4).
func DerefOrAllocList(ptrSlice Slice, preferred SegmentID, et ElementType, elemSize ObjectSize) (ListStorage, error) {
	rp, found, err := resolvePointer(ptrSlice)
	if err != nil {
		return ListStorage{}, err
	}
	if !found {
		storage, err := AllocListStorage(ptrSlice.msg, preferred, et, elemSize, 0)
		if err != nil {
			return ListStorage{}, err
		}
		if err := InitListPointer(ptrSlice, storage); err != nil {
			return ListStorage{}, err
		}
		return storage, nil
	}
	if rp.kind != kindList {
		return ListStorage{}, newInvalidMessage("expected list pointer, got struct pointer")
	}
	return listStorageFromResolved(ptrSlice.msg, rp)
}

// --- element addressing ---

func (l ListStorage) checkIndex(i int32) error {
	if i < 0 || i >= l.length {
		return newInvalidMessage("list index %d out of range [0, %d)", i, l.length)
	}
	return nil
}

// Bit returns the bit-list element at index i.
func (l ListStorage) Bit(i int32) (bool, error) {
	if err := l.checkIndex(i); err != nil {
		return false, err
	}
	b, err := l.payload.GetUint8(Size(i / 8))
	if err != nil {
		return false, err
	}
	return b&(1<<uint(i%8)) != 0, nil
}

// SetBit sets the bit-list element at index i.
func (l ListStorage) SetBit(i int32, v bool) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	byteOff := Size(i / 8)
	b, err := l.payload.GetUint8(byteOff)
	if err != nil {
		return err
	}
	mask := uint8(1 << uint(i%8))
	if v {
		b |= mask
	} else {
		b &^= mask
	}
	return l.payload.SetUint8(byteOff, b)
}

// Elem returns the Slice for the fixed-width data element at index i (for
// Byte1/Byte2/Byte4/Byte8 lists).
func (l ListStorage) Elem(i int32) (Slice, error) {
	if err := l.checkIndex(i); err != nil {
		return Slice{}, err
	}
	width := l.elemByteWidth()
	return NewSlice(l.payload.msg, l.payload.segID, l.payload.start+Address(Size(i)*width), width)
}

// PointerElem returns the Slice for the pointer-list element at index i.
func (l ListStorage) PointerElem(i int32) (Slice, error) {
	if err := l.checkIndex(i); err != nil {
		return Slice{}, err
	}
	return NewSlice(l.payload.msg, l.payload.segID, l.payload.start+Address(Size(i)*wordSize), wordSize)
}

// StructElem returns the StructStorage for the composite-list element at
// index i (spec "Element 1's data word lives at payload offset 8 +
// 1*16 = 24" — the +8 there is the tag word, already excluded from
// l.payload).
func (l ListStorage) StructElem(i int32) (StructStorage, error) {
	if err := l.checkIndex(i); err != nil {
		return StructStorage{}, err
	}
	stride := l.elemSize.totalSize()
	addr := l.payload.start + Address(Size(i)*stride)
	return structStorageAt(l.payload.msg, l.payload.segID, addr, l.elemSize)
}

// PayloadSlice returns the list's raw payload (excluding any composite
// tag word), for primitive bulk copy.
func (l ListStorage) PayloadSlice() Slice { return l.payload }
