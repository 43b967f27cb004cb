package capnp

// StructStorage is a descriptor for a struct laid out in a segment: two
// disjoint byte ranges, data immediately followed by pointers (spec §3).
type StructStorage struct {
	data     Slice
	pointers Slice
}

// Size returns the struct's physical layout.
func (s StructStorage) Size() ObjectSize {
	return ObjectSize{DataSize: s.data.length, PointerCount: uint16(s.pointers.length / wordSize)}
}

// IsValid reports whether the storage refers to an actual struct.
func (s StructStorage) IsValid() bool { return s.data.IsValid() }

// AllocStructStorage allocates fresh, zeroed storage for a struct of the
// given layout, preferring segment preferred.
func AllocStructStorage(msg *Message, preferred SegmentID, sz ObjectSize) (StructStorage, error) {
	if !sz.isValid() {
		return StructStorage{}, newInvalidMessage("struct data size %d words does not fit a 16-bit word count", sz.DataSize/wordSize)
	}
	region, err := Alloc(msg, preferred, sz.totalSize())
	if err != nil {
		return StructStorage{}, err
	}
	data, err := NewSlice(msg, region.segID, region.start, sz.DataSize)
	if err != nil {
		return StructStorage{}, err
	}
	ptrs, err := NewSlice(msg, region.segID, region.start+Address(sz.DataSize), Size(sz.PointerCount)*wordSize)
	if err != nil {
		return StructStorage{}, err
	}
	return StructStorage{data: data, pointers: ptrs}, nil
}

// structStorageAt builds the descriptor for a struct already resolved at
// (segID, addr) and charges its size against the message's traversal
// budget (spec §4.3 enforcement point, SPEC_FULL "read-traversal
// accounting"): every caller of this helper is dereferencing bytes that
// already exist in the message, as opposed to AllocStructStorage's
// fresh-storage path, which is never charged.
func structStorageAt(msg *Message, segID SegmentID, addr Address, sz ObjectSize) (StructStorage, error) {
	data, err := NewSlice(msg, segID, addr, sz.DataSize)
	if err != nil {
		return StructStorage{}, err
	}
	ptrEnd := Size(sz.PointerCount) * wordSize
	ptrs, err := NewSlice(msg, segID, addr+Address(sz.DataSize), ptrEnd)
	if err != nil {
		return StructStorage{}, err
	}
	if err := msg.chargeTraversal(int64(sz.totalSize() / wordSize)); err != nil {
		return StructStorage{}, err
	}
	return StructStorage{data: data, pointers: ptrs}, nil
}

// DerefStructPointer resolves ptrSlice to struct storage for reading. ok
// is false for a null pointer. It is an error for ptrSlice to encode a
// list.
func DerefStructPointer(ptrSlice Slice) (storage StructStorage, ok bool, err error) {
	rp, found, err := resolvePointer(ptrSlice)
	if err != nil || !found {
		return StructStorage{}, found, err
	}
	if rp.kind != kindStruct {
		return StructStorage{}, false, newInvalidMessage("expected struct pointer, got list pointer")
	}
	storage, err = structStorageAt(ptrSlice.msg, rp.segID, rp.addr, rp.size)
	return storage, err == nil, err
}

// DerefOrAllocStruct resolves ptrSlice to struct storage for writing. If
// the pointer is null, fresh storage sized to expected is allocated and
// the pointer slice is initialized to reference it (spec §4.4). If
// existing storage is smaller than expected (an older message read with a
// newer schema), it is upgraded via UpgradeStruct, which moves it to fresh
// storage and rewrites ptrSlice (spec §4.4, §4.5, "Struct upgrade
// preserves data").
func DerefOrAllocStruct(ptrSlice Slice, preferred SegmentID, expected ObjectSize) (StructStorage, error) {
	rp, found, err := resolvePointer(ptrSlice)
	if err != nil {
		return StructStorage{}, err
	}
	if !found {
		storage, err := AllocStructStorage(ptrSlice.msg, preferred, expected)
		if err != nil {
			return StructStorage{}, err
		}
		if err := InitStructPointer(ptrSlice, storage); err != nil {
			return StructStorage{}, err
		}
		return storage, nil
	}
	if rp.kind != kindStruct {
		return StructStorage{}, newInvalidMessage("expected struct pointer, got list pointer")
	}
	storage, err := structStorageAt(ptrSlice.msg, rp.segID, rp.addr, rp.size)
	if err != nil {
		return StructStorage{}, err
	}
	if rp.size.DataSize >= expected.DataSize && rp.size.PointerCount >= expected.PointerCount {
		return storage, nil
	}
	return UpgradeStruct(ptrSlice, storage, expected)
}

// UpgradeStruct allocates new storage sized to at least expected,
// copies data words (spec invariant: "all fields present in old_layout
// read back unchanged") and pointer-copies the overlapping pointer
// region, then rewrites ptrSlice to reference the new storage. The
// original storage is left in place: design note §9(a) records this as a
// known wasted-space tradeoff rather than attempting an in-place free, so
// that any StructStorage descriptor a caller still holds to the old
// location keeps reading the bytes it last saw instead of aliasing
// storage that has since moved (callers must still not retain such a
// descriptor across a call that may trigger an upgrade).
func UpgradeStruct(ptrSlice Slice, old StructStorage, expected ObjectSize) (StructStorage, error) {
	newSize := old.Size().max(expected)
	fresh, err := AllocStructStorage(ptrSlice.msg, ptrSlice.segID, newSize)
	if err != nil {
		return StructStorage{}, err
	}
	copyWords := old.data.length
	if fresh.data.length < copyWords {
		copyWords = fresh.data.length
	}
	if copyWords > 0 {
		if err := Blit(old.data, 0, fresh.data, 0, copyWords); err != nil {
			return StructStorage{}, err
		}
	}
	oldPtrCount := old.pointers.length / wordSize
	newPtrCount := fresh.pointers.length / wordSize
	overlap := oldPtrCount
	if newPtrCount < overlap {
		overlap = newPtrCount
	}
	for i := Size(0); i < overlap; i++ {
		src, err := old.PointerField(uint16(i))
		if err != nil {
			return StructStorage{}, err
		}
		dest, err := fresh.PointerField(uint16(i))
		if err != nil {
			return StructStorage{}, err
		}
		if err := CopyPointer(src, dest); err != nil {
			return StructStorage{}, err
		}
	}
	if err := InitStructPointer(ptrSlice, fresh); err != nil {
		return StructStorage{}, err
	}
	return fresh, nil
}

// PointerField returns the Slice for the word-th pointer in the struct's
// pointers section. A word at or past the physical pointer count is
// rejected with an InvalidMessage error; callers that need more pointer
// words must upgrade the struct first.
func (s StructStorage) PointerField(word uint16) (Slice, error) {
	off := Size(word) * wordSize
	if uint32(off)+uint32(wordSize) > uint32(s.pointers.length) {
		return Slice{}, newInvalidMessage("pointer word %d out of range (struct has %d pointer words)", word, s.pointers.length/wordSize)
	}
	return NewSlice(s.pointers.msg, s.pointers.segID, s.pointers.start+Address(off), wordSize)
}

// DataSlice returns the struct's data section.
func (s StructStorage) DataSlice() Slice { return s.data }

// PointersSlice returns the struct's pointers section.
func (s StructStorage) PointersSlice() Slice { return s.pointers }
