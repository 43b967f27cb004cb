package capnp

// Size is a count of bytes.
type Size uint32

// wordSize is the Cap'n Proto alignment unit: 8 bytes.
const wordSize Size = 8

// Address is a byte offset within a segment.
type Address uint32

// addSize returns a+Address(sz), reporting overflow.
func (a Address) addSize(sz Size) (Address, bool) {
	result := a + Address(sz)
	return result, result >= a
}

// addSize returns sz+other, reporting overflow.
func (sz Size) addSize(other Size) (Size, bool) {
	result := sz + other
	return result, result >= sz
}

// times returns sz*n, reporting overflow.
func (sz Size) times(n int32) (Size, bool) {
	if n < 0 || (sz != 0 && uint64(sz)*uint64(n) > uint64(maxSize)) {
		return 0, false
	}
	return Size(uint64(sz) * uint64(n)), true
}

// padToWord rounds sz up to a multiple of wordSize.
func (sz Size) padToWord() Size {
	return (sz + 7) &^ 7
}

const maxSize = ^Size(0)

// SegmentID identifies a segment within a message.
type SegmentID uint32

// ObjectSize describes the physical layout of a struct: the size of its
// data section in bytes (always a multiple of 8) and the count of pointer
// words immediately following it.
type ObjectSize struct {
	DataSize     Size
	PointerCount uint16
}

// isZero reports whether the struct layout has no data and no pointers.
func (sz ObjectSize) isZero() bool {
	return sz.DataSize == 0 && sz.PointerCount == 0
}

// totalSize returns the combined byte length of the data and pointer
// sections.
func (sz ObjectSize) totalSize() Size {
	return sz.DataSize + Size(sz.PointerCount)*wordSize
}

// dataWordCount returns the data section length in words.
func (sz ObjectSize) dataWordCount() uint16 {
	return uint16(sz.DataSize / wordSize)
}

// isValid reports whether sz can be encoded in a struct pointer: the data
// section must fit 16 bits worth of words and the pointer count likewise.
func (sz ObjectSize) isValid() bool {
	return sz.DataSize%wordSize == 0 && sz.DataSize/wordSize <= 0xffff
}

// max returns the element-wise maximum of sz and other, used when
// upgrading a struct to a layout at least as large as both the physical
// storage and the caller's expectation.
func (sz ObjectSize) max(other ObjectSize) ObjectSize {
	out := sz
	if other.DataSize > out.DataSize {
		out.DataSize = other.DataSize
	}
	if other.PointerCount > out.PointerCount {
		out.PointerCount = other.PointerCount
	}
	return out
}

// ElementType is the per-element encoding of a list, decoded from the
// 3-bit tag in a list pointer.
type ElementType uint8

const (
	Void ElementType = iota
	Bit1
	Byte1
	Byte2
	Byte4
	Byte8
	Pointer
	Composite
)

// elementSize returns the per-element ObjectSize for every list type
// except Composite, whose element layout is carried in the tag word
// instead.
func (t ElementType) elementSize() ObjectSize {
	switch t {
	case Void, Bit1:
		return ObjectSize{}
	case Byte1:
		return ObjectSize{DataSize: 1}
	case Byte2:
		return ObjectSize{DataSize: 2}
	case Byte4:
		return ObjectSize{DataSize: 4}
	case Byte8:
		return ObjectSize{DataSize: 8}
	case Pointer:
		return ObjectSize{PointerCount: 1}
	default:
		panic("capnp: elementSize not valid for composite lists")
	}
}
