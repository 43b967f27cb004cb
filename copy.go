package capnp

// DeepCopyPointer copies the object referenced by src into freshly
// allocated storage in destMsg (preferring segment destPreferred) and
// writes a reference to it into dest (spec §4.6). Unlike CopyPointer, this
// works across messages and severs all sharing: mutating the copy has no
// effect on the source message and vice versa (spec §8, "Deep-copy
// independence").
//
// Cyclic graphs are not representable in Cap'n Proto and are not handled;
// a well-formed source message is a tree, so plain recursion terminates.
func DeepCopyPointer(src Slice, dest Slice, destPreferred SegmentID) error {
	word, err := src.getRawPointer()
	if err != nil {
		return err
	}
	if word.isNull() {
		return dest.setRawPointer(0)
	}
	kind := decode(word).kind
	if kind == kindFar {
		// Follow the far pointer to learn whether it lands on a struct or a
		// list; the Deref calls below then resolve the same hop.
		rp, _, err := resolvePointer(src)
		if err != nil {
			return err
		}
		kind = rp.kind
	}
	switch kind {
	case kindStruct:
		storage, ok, err := DerefStructPointer(src)
		if err != nil || !ok {
			return err
		}
		fresh, err := deepCopyStruct(storage, dest.msg, destPreferred)
		if err != nil {
			return err
		}
		return InitStructPointer(dest, fresh)
	case kindList:
		storage, ok, err := DerefListPointer(src)
		if err != nil || !ok {
			return err
		}
		fresh, err := deepCopyList(storage, dest.msg, destPreferred)
		if err != nil {
			return err
		}
		return InitListPointer(dest, fresh)
	default:
		return newInvalidMessage("cannot deep-copy a capability pointer in the runtime core")
	}
}

func deepCopyStruct(src StructStorage, destMsg *Message, preferred SegmentID) (StructStorage, error) {
	fresh, err := AllocStructStorage(destMsg, preferred, src.Size())
	if err != nil {
		return StructStorage{}, err
	}
	if src.data.length > 0 {
		if err := Blit(src.data, 0, fresh.data, 0, src.data.length); err != nil {
			return StructStorage{}, err
		}
	}
	ptrCount := src.pointers.length / wordSize
	for i := Size(0); i < ptrCount; i++ {
		srcPtr, err := src.PointerField(uint16(i))
		if err != nil {
			return StructStorage{}, err
		}
		destPtr, err := fresh.PointerField(uint16(i))
		if err != nil {
			return StructStorage{}, err
		}
		if err := DeepCopyPointer(srcPtr, destPtr, fresh.data.segID); err != nil {
			return StructStorage{}, err
		}
	}
	return fresh, nil
}

func deepCopyList(src ListStorage, destMsg *Message, preferred SegmentID) (ListStorage, error) {
	fresh, err := AllocListStorage(destMsg, preferred, src.etype, src.elemSize, src.length)
	if err != nil {
		return ListStorage{}, err
	}
	switch src.etype {
	case Void:
		return fresh, nil
	case Bit1:
		if src.payload.length > 0 {
			if err := Blit(src.payload, 0, fresh.payload, 0, src.payload.length); err != nil {
				return ListStorage{}, err
			}
		}
		return fresh, nil
	case Byte1, Byte2, Byte4, Byte8:
		if src.payload.length > 0 {
			if err := Blit(src.payload, 0, fresh.payload, 0, src.payload.length); err != nil {
				return ListStorage{}, err
			}
		}
		return fresh, nil
	case Pointer:
		for i := int32(0); i < src.length; i++ {
			srcElem, err := src.PointerElem(i)
			if err != nil {
				return ListStorage{}, err
			}
			destElem, err := fresh.PointerElem(i)
			if err != nil {
				return ListStorage{}, err
			}
			if err := DeepCopyPointer(srcElem, destElem, fresh.payload.segID); err != nil {
				return ListStorage{}, err
			}
		}
		return fresh, nil
	case Composite:
		for i := int32(0); i < src.length; i++ {
			srcStruct, err := src.StructElem(i)
			if err != nil {
				return ListStorage{}, err
			}
			destStruct, err := fresh.StructElem(i)
			if err != nil {
				return ListStorage{}, err
			}
			if srcStruct.data.length > 0 {
				if err := Blit(srcStruct.data, 0, destStruct.data, 0, srcStruct.data.length); err != nil {
					return ListStorage{}, err
				}
			}
			ptrCount := srcStruct.pointers.length / wordSize
			for p := Size(0); p < ptrCount; p++ {
				srcPtr, err := srcStruct.PointerField(uint16(p))
				if err != nil {
					return ListStorage{}, err
				}
				destPtr, err := destStruct.PointerField(uint16(p))
				if err != nil {
					return ListStorage{}, err
				}
				if err := DeepCopyPointer(srcPtr, destPtr, fresh.payload.segID); err != nil {
					return ListStorage{}, err
				}
			}
		}
		return fresh, nil
	default:
		return ListStorage{}, newInvalidMessage("unknown list element type %d during deep copy", src.etype)
	}
}

// CopyStruct is the named entry point generated code uses to assign a
// struct-typed field by value from one message into another (spec §4.6,
// SPEC_FULL "CopyStruct/CopyList helpers"). It deep-copies src into a
// fresh struct in dest's message and initializes dest to reference it.
func CopyStruct(dest Slice, src StructStorage) error {
	fresh, err := deepCopyStruct(src, dest.msg, dest.segID)
	if err != nil {
		return err
	}
	return InitStructPointer(dest, fresh)
}

// CopyList is the list-valued analogue of CopyStruct.
func CopyList(dest Slice, src ListStorage) error {
	fresh, err := deepCopyList(src, dest.msg, dest.segID)
	if err != nil {
		return err
	}
	return InitListPointer(dest, fresh)
}
