package capnp

// rawPointer is the 8-byte encoded form of a Cap'n Proto pointer word,
// grounded directly on the wire layout in spec §3/GLOSSARY.
type rawPointer uint64

// pointerKind is the low-bits discriminator of a raw pointer.
type pointerKind uint8

const (
	kindStruct pointerKind = 0
	kindList   pointerKind = 1
	kindFar    pointerKind = 2
	kindOther  pointerKind = 3 // capability pointers; invalid in this core.
)

func (p rawPointer) isNull() bool { return p == 0 }

func (p rawPointer) kind() pointerKind { return pointerKind(p & 3) }

// --- struct / list pointer offset field (30-bit signed word count) ---

func (p rawPointer) offset() int32 {
	return int32(p) >> 2
}

func withOffset(p rawPointer, off int32) rawPointer {
	return rawPointer(p)&^0xfffffffc | rawPointer(uint32(off)<<2)
}

// resolveOffset turns a near-pointer offset (relative to the word immediately
// after the pointer itself, at address base) into an absolute address.
func resolveOffset(off int32, base Address) (Address, bool) {
	addr := int64(base) + int64(off)*int64(wordSize)
	if addr < 0 || addr > int64(^Address(0)) {
		return 0, false
	}
	return Address(addr), true
}

// nearOffset computes the word offset from the pointer at paddr to the
// object at addr, for encoding a near pointer.
func nearOffset(paddr, addr Address) int32 {
	return int32(addr)/int32(wordSize) - int32(paddr)/int32(wordSize) - 1
}

// --- struct pointers ---

func encodeStructPointer(off int32, sz ObjectSize) rawPointer {
	return rawPointer(kindStruct) |
		rawPointer(uint32(off)<<2) |
		rawPointer(sz.dataWordCount())<<32 |
		rawPointer(sz.PointerCount)<<48
}

func (p rawPointer) structSize() ObjectSize {
	return ObjectSize{
		DataSize:     Size(uint16(p>>32)) * wordSize,
		PointerCount: uint16(p >> 48),
	}
}

// --- list pointers ---

func encodeListPointer(off int32, et ElementType, count int32) rawPointer {
	return rawPointer(kindList) |
		rawPointer(uint32(off)<<2) |
		rawPointer(et)<<32 |
		rawPointer(uint32(count))<<35
}

func (p rawPointer) elementType() ElementType {
	return ElementType((p >> 32) & 7)
}

func (p rawPointer) listCount() int32 {
	return int32(p >> 35)
}

// --- far pointers ---

// landingPadKind distinguishes the single vs double landing-pad forms of a
// far pointer (spec §3, GLOSSARY "Landing pad").
type landingPadKind uint8

const (
	singleLandingPad landingPadKind = 0
	doubleLandingPad landingPadKind = 1
)

func encodeFarPointer(pad landingPadKind, wordOffset uint32, seg SegmentID) rawPointer {
	base := rawPointer(kindFar) | rawPointer(pad)<<2 | rawPointer(wordOffset)<<3
	return base | rawPointer(seg)<<32
}

func (p rawPointer) landingPadKind() landingPadKind {
	return landingPadKind((p >> 2) & 1)
}

func (p rawPointer) farWordOffset() uint32 {
	return uint32(p>>3) & 0x1fffffff
}

func (p rawPointer) farAddress() Address {
	return Address(p.farWordOffset()) * Address(wordSize)
}

func (p rawPointer) farSegment() SegmentID {
	return SegmentID(p >> 32)
}

// decoded is the exhaustive tagged-sum view of a pointer word (design note
// §9: "a tagged sum ... with exhaustive match at dereference sites").
type decoded struct {
	kind pointerKind

	// struct / list
	off   int32
	size  ObjectSize // struct
	etype ElementType
	count int32 // list

	// far
	pad     landingPadKind
	farOff  Address
	farSeg  SegmentID
}

func decode(p rawPointer) decoded {
	if p.isNull() {
		return decoded{}
	}
	switch p.kind() {
	case kindStruct:
		return decoded{kind: kindStruct, off: p.offset(), size: p.structSize()}
	case kindList:
		return decoded{kind: kindList, off: p.offset(), etype: p.elementType(), count: p.listCount()}
	case kindFar:
		return decoded{kind: kindFar, pad: p.landingPadKind(), farOff: p.farAddress(), farSeg: p.farSegment()}
	default:
		return decoded{kind: kindOther}
	}
}
