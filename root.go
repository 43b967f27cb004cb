package capnp

// rootPointerSlice returns the Slice over the first 8 bytes of segment 0,
// where the root pointer always lives (spec §3, "segment 0 always exists,
// and its first 8 bytes hold the root pointer").
func rootPointerSlice(msg *Message) (Slice, error) {
	return NewSlice(msg, 0, 0, wordSize)
}

// GetRootStruct treats segment 0's first word as the root pointer and
// dereferences it as a struct for reading (spec §4.7). A message with a
// null root pointer yields ok=false.
func GetRootStruct(msg *Message) (storage StructStorage, ok bool, err error) {
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		return StructStorage{}, false, err
	}
	return DerefStructPointer(ptr)
}

// GetOrAllocRootStruct resolves the root pointer for writing, allocating
// storage sized to expected (and upgrading if the existing root is
// smaller) when necessary (spec §4.7/§4.4).
func GetOrAllocRootStruct(msg *Message, expected ObjectSize) (StructStorage, error) {
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		return StructStorage{}, err
	}
	return DerefOrAllocStruct(ptr, 0, expected)
}

// AllocRootStruct creates a brand new Message sized to hold at least a
// struct of the given layout, reserves the root pointer slot, and
// allocates + wires up the root struct (spec §4.7). hintSize further sizes
// the first segment's capacity (e.g. to pre-reserve room for content the
// caller is about to add), and must be at least (data + pointer + 1)
// words' worth of bytes; smaller hints are rounded up.
func AllocRootStruct(sz ObjectSize, hintSize Size) (*Message, StructStorage, error) {
	min := wordSize + sz.totalSize()
	if hintSize < min {
		hintSize = min
	}
	msg, err := NewMessage(NewArena(hintSize))
	if err != nil {
		return nil, StructStorage{}, err
	}
	storage, err := GetOrAllocRootStruct(msg, sz)
	if err != nil {
		return nil, StructStorage{}, err
	}
	return msg, storage, nil
}
