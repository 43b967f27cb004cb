package capnp

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Numeric is the type constraint for scalar data-section fields, mirroring
// the teacher's own Number constraint (claw.Number).
type Numeric interface {
	constraints.Integer | constraints.Float
}

// GetScalarField reads the scalar at byteOffset in a struct's data section
// and undoes Cap'n Proto's default-XOR encoding (spec §4.8, GLOSSARY
// "Default XOR"): zero-initialized storage reads back as def. Reading past
// the physical end of the data section (an older message missing a field
// a newer schema added) also yields def, per the struct-upgrade invariant
// that absent fields read their defaults.
func GetScalarField[T Numeric](data Slice, byteOffset Size, def T) (T, error) {
	if uint64(byteOffset)+scalarWidth(def) > uint64(data.length) {
		return def, nil
	}
	raw, err := readScalarBits(data, byteOffset, def)
	if err != nil {
		return def, err
	}
	return xorScalar(raw, def), nil
}

// SetScalarField applies the inverse XOR and writes the scalar at
// byteOffset. The caller is responsible for ensuring the struct's data
// section is large enough (i.e. has already been upgraded if needed);
// writing past the end is a bounds error, not a silent default.
func SetScalarField[T Numeric](data Slice, byteOffset Size, value, def T) error {
	return writeScalarBits(data, byteOffset, xorScalar(value, def))
}

func scalarWidth[T Numeric](v T) uint64 {
	switch any(v).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	default:
		return 8
	}
}

func readScalarBits[T Numeric](data Slice, off Size, zeroT T) (T, error) {
	switch any(zeroT).(type) {
	case int8:
		v, err := data.GetInt8(off)
		return any(v).(T), err
	case uint8:
		v, err := data.GetUint8(off)
		return any(v).(T), err
	case int16:
		v, err := data.GetInt16(off)
		return any(v).(T), err
	case uint16:
		v, err := data.GetUint16(off)
		return any(v).(T), err
	case int32:
		v, err := data.GetInt32(off)
		return any(v).(T), err
	case uint32:
		v, err := data.GetUint32(off)
		return any(v).(T), err
	case float32:
		v, err := data.GetUint32(off)
		return any(math.Float32frombits(v)).(T), err
	case int64:
		v, err := data.GetInt64(off)
		return any(v).(T), err
	case uint64:
		v, err := data.GetUint64(off)
		return any(v).(T), err
	case float64:
		v, err := data.GetUint64(off)
		return any(math.Float64frombits(v)).(T), err
	default:
		panic("capnp: unsupported scalar type in GetScalarField")
	}
}

func writeScalarBits[T Numeric](data Slice, off Size, v T) error {
	switch x := any(v).(type) {
	case int8:
		return data.SetInt8(off, x)
	case uint8:
		return data.SetUint8(off, x)
	case int16:
		return data.SetInt16(off, x)
	case uint16:
		return data.SetUint16(off, x)
	case int32:
		return data.SetInt32(off, x)
	case uint32:
		return data.SetUint32(off, x)
	case float32:
		return data.SetUint32(off, math.Float32bits(x))
	case int64:
		return data.SetInt64(off, x)
	case uint64:
		return data.SetUint64(off, x)
	case float64:
		return data.SetUint64(off, math.Float64bits(x))
	default:
		panic("capnp: unsupported scalar type in SetScalarField")
	}
}

// xorScalar XORs the bit pattern of v with the bit pattern of def,
// preserving v's type. Floats are folded through their IEEE-754 bit
// pattern, matching how the wire format treats them (spec §4.8).
func xorScalar[T Numeric](v, def T) T {
	switch x := any(v).(type) {
	case int8:
		return any(x ^ any(def).(int8)).(T)
	case uint8:
		return any(x ^ any(def).(uint8)).(T)
	case int16:
		return any(x ^ any(def).(int16)).(T)
	case uint16:
		return any(x ^ any(def).(uint16)).(T)
	case int32:
		return any(x ^ any(def).(int32)).(T)
	case uint32:
		return any(x ^ any(def).(uint32)).(T)
	case int64:
		return any(x ^ any(def).(int64)).(T)
	case uint64:
		return any(x ^ any(def).(uint64)).(T)
	case float32:
		bits := math.Float32bits(x) ^ math.Float32bits(any(def).(float32))
		return any(math.Float32frombits(bits)).(T)
	case float64:
		bits := math.Float64bits(x) ^ math.Float64bits(any(def).(float64))
		return any(math.Float64frombits(bits)).(T)
	default:
		panic("capnp: unsupported scalar type in xorScalar")
	}
}

// GetBoolField reads the single bit at (byteOffset*8 + bitOffset) in the
// struct's data section and XORs it with defaultBit (spec §4.8: "Booleans
// use the bit at byte*8 + bit and XOR with default_bit").
func GetBoolField(data Slice, byteOffset Size, bitOffset uint8, defaultBit bool) (bool, error) {
	if uint64(byteOffset) >= uint64(data.length) {
		return defaultBit, nil
	}
	b, err := data.GetUint8(byteOffset)
	if err != nil {
		return defaultBit, err
	}
	bit := b&(1<<bitOffset) != 0
	return bit != defaultBit, nil
}

// SetBoolField writes the single bit, applying the same XOR.
func SetBoolField(data Slice, byteOffset Size, bitOffset uint8, value, defaultBit bool) error {
	b, err := data.GetUint8(byteOffset)
	if err != nil {
		return err
	}
	bit := value != defaultBit
	mask := uint8(1) << bitOffset
	if bit {
		b |= mask
	} else {
		b &^= mask
	}
	return data.SetUint8(byteOffset, b)
}

// --- text / blob pointer fields ---
//
// Text is a byte list with a trailing NUL not counted in its semantic
// length; Blob is a byte list with no terminator (spec §4.8). Both copy
// into a fresh owned value on read: the source bytes may not be
// contiguous in a future on-disk variant, and returning a borrowed view
// would leak the capability distinction into ordinary data access.

// GetTextField returns the string referenced by ptrSlice, or def if the
// pointer is null.
func GetTextField(ptrSlice Slice, def string) (string, error) {
	storage, ok, err := DerefListPointer(ptrSlice)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	if storage.etype != Byte1 {
		return "", newInvalidMessage("text field is not a byte list")
	}
	raw, err := storage.payload.bytes()
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	// Exclude the trailing NUL from the semantic length.
	return string(raw[:len(raw)-1]), nil
}

// SetTextField allocates a fresh NUL-terminated byte list in ptrSlice's
// message and writes value into it.
func SetTextField(ptrSlice Slice, preferred SegmentID, value string) error {
	storage, err := AllocListStorage(ptrSlice.msg, preferred, Byte1, ObjectSize{}, int32(len(value)+1))
	if err != nil {
		return err
	}
	raw, err := storage.payload.bytes()
	if err != nil {
		return err
	}
	copy(raw, value)
	raw[len(value)] = 0
	return InitListPointer(ptrSlice, storage)
}

// GetBlobField returns the bytes referenced by ptrSlice, or a copy of def
// if the pointer is null.
func GetBlobField(ptrSlice Slice, def []byte) ([]byte, error) {
	storage, ok, err := DerefListPointer(ptrSlice)
	if err != nil {
		return nil, err
	}
	if !ok {
		out := make([]byte, len(def))
		copy(out, def)
		return out, nil
	}
	if storage.etype != Byte1 {
		return nil, newInvalidMessage("blob field is not a byte list")
	}
	raw, err := storage.payload.bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// SetBlobField allocates a fresh byte list in ptrSlice's message and
// writes value into it verbatim (no terminator).
func SetBlobField(ptrSlice Slice, preferred SegmentID, value []byte) error {
	storage, err := AllocListStorage(ptrSlice.msg, preferred, Byte1, ObjectSize{}, int32(len(value)))
	if err != nil {
		return err
	}
	if len(value) > 0 {
		raw, err := storage.payload.bytes()
		if err != nil {
			return err
		}
		copy(raw, value)
	}
	return InitListPointer(ptrSlice, storage)
}

// SetListElemText implements the design note §9(b) behavior for
// List(Text)/List(Data) element assignment: allocate a fresh byte list
// sized to value within the containing message and install it in the
// i-th element slot of list.
func SetListElemText(list ListStorage, i int32, value string) error {
	elemSlice, err := list.PointerElem(i)
	if err != nil {
		return err
	}
	return SetTextField(elemSlice, list.payload.segID, value)
}

// SetListElemBlob is the []byte analogue of SetListElemText.
func SetListElemBlob(list ListStorage, i int32, value []byte) error {
	elemSlice, err := list.PointerElem(i)
	if err != nil {
		return err
	}
	return SetBlobField(elemSlice, list.payload.segID, value)
}
