package capnp

// Slice is a bounds-checked window (message, segment, start, len) into a
// segment's bytes (spec §3/§4.1). Slices are cheap to copy and never own
// storage; their validity lifetime is the owning Message's.
type Slice struct {
	msg    *Message
	segID  SegmentID
	start  Address
	length Size
}

// NewSlice builds a Slice, failing if it would not fit within the named
// segment.
func NewSlice(msg *Message, seg SegmentID, start Address, length Size) (Slice, error) {
	s, err := msg.Segment(seg)
	if err != nil {
		return Slice{}, err
	}
	if !s.inBounds(start, length) {
		return Slice{}, newInvalidMessage("slice [%d, %d) out of bounds for segment %d (len %d)", start, uint64(start)+uint64(length), seg, len(s.data))
	}
	return Slice{msg: msg, segID: seg, start: start, length: length}, nil
}

// Message returns the Message the slice was cut from.
func (s Slice) Message() *Message { return s.msg }

// SegmentID returns the id of the segment the slice is a window into.
func (s Slice) SegmentID() SegmentID { return s.segID }

// Start returns the slice's starting offset within its segment.
func (s Slice) Start() Address { return s.start }

// Len returns the slice's length in bytes.
func (s Slice) Len() Size { return s.length }

// IsValid reports whether the slice refers to an actual message.
func (s Slice) IsValid() bool { return s.msg != nil }

func (s Slice) segment() (*Segment, error) {
	return s.msg.Segment(s.segID)
}

func (s Slice) checkWidth(off Size, width Size) error {
	end, ok := off.addSize(width)
	if !ok || Size(end) > s.length {
		return newInvalidMessage("access [%d, %d) out of bounds for slice of length %d", off, uint64(off)+uint64(width), s.length)
	}
	return nil
}

func (s Slice) GetUint8(off Size) (uint8, error) {
	if err := s.checkWidth(off, 1); err != nil {
		return 0, err
	}
	seg, err := s.segment()
	if err != nil {
		return 0, err
	}
	return seg.readUint8(s.start + Address(off)), nil
}

func (s Slice) GetUint16(off Size) (uint16, error) {
	if err := s.checkWidth(off, 2); err != nil {
		return 0, err
	}
	seg, err := s.segment()
	if err != nil {
		return 0, err
	}
	return seg.readUint16(s.start + Address(off)), nil
}

func (s Slice) GetUint32(off Size) (uint32, error) {
	if err := s.checkWidth(off, 4); err != nil {
		return 0, err
	}
	seg, err := s.segment()
	if err != nil {
		return 0, err
	}
	return seg.readUint32(s.start + Address(off)), nil
}

func (s Slice) GetUint64(off Size) (uint64, error) {
	if err := s.checkWidth(off, 8); err != nil {
		return 0, err
	}
	seg, err := s.segment()
	if err != nil {
		return 0, err
	}
	return seg.readUint64(s.start + Address(off)), nil
}

func (s Slice) GetInt8(off Size) (int8, error) {
	v, err := s.GetUint8(off)
	return int8(v), err
}

func (s Slice) GetInt16(off Size) (int16, error) {
	v, err := s.GetUint16(off)
	return int16(v), err
}

func (s Slice) GetInt32(off Size) (int32, error) {
	v, err := s.GetUint32(off)
	return int32(v), err
}

func (s Slice) GetInt64(off Size) (int64, error) {
	v, err := s.GetUint64(off)
	return int64(v), err
}

func (s Slice) SetUint8(off Size, v uint8) error {
	if err := s.checkWidth(off, 1); err != nil {
		return err
	}
	seg, err := s.segment()
	if err != nil {
		return err
	}
	seg.writeUint8(s.start+Address(off), v)
	return nil
}

func (s Slice) SetUint16(off Size, v uint16) error {
	if err := s.checkWidth(off, 2); err != nil {
		return err
	}
	seg, err := s.segment()
	if err != nil {
		return err
	}
	seg.writeUint16(s.start+Address(off), v)
	return nil
}

func (s Slice) SetUint32(off Size, v uint32) error {
	if err := s.checkWidth(off, 4); err != nil {
		return err
	}
	seg, err := s.segment()
	if err != nil {
		return err
	}
	seg.writeUint32(s.start+Address(off), v)
	return nil
}

func (s Slice) SetUint64(off Size, v uint64) error {
	if err := s.checkWidth(off, 8); err != nil {
		return err
	}
	seg, err := s.segment()
	if err != nil {
		return err
	}
	seg.writeUint64(s.start+Address(off), v)
	return nil
}

func (s Slice) SetInt8(off Size, v int8) error   { return s.SetUint8(off, uint8(v)) }
func (s Slice) SetInt16(off Size, v int16) error { return s.SetUint16(off, uint16(v)) }
func (s Slice) SetInt32(off Size, v int32) error { return s.SetUint32(off, uint32(v)) }
func (s Slice) SetInt64(off Size, v int64) error { return s.SetUint64(off, uint64(v)) }

func (s Slice) getRawPointer() (rawPointer, error) {
	v, err := s.GetUint64(0)
	return rawPointer(v), err
}

func (s Slice) setRawPointer(p rawPointer) error {
	return s.SetUint64(0, uint64(p))
}

// bytes returns the raw backing bytes of the slice, for bulk copy
// (blit) and for byte-list field access.
func (s Slice) bytes() ([]byte, error) {
	seg, err := s.segment()
	if err != nil {
		return nil, err
	}
	return seg.data[s.start : s.start+Address(s.length)], nil
}

// Blit copies length bytes from src into dest, starting at the given byte
// offsets in each. It fails without copying if either range runs past the
// end of its slice.
func Blit(src Slice, srcOff Size, dest Slice, destOff Size, length Size) error {
	if err := src.checkWidth(srcOff, length); err != nil {
		return err
	}
	if err := dest.checkWidth(destOff, length); err != nil {
		return err
	}
	srcSeg, err := src.segment()
	if err != nil {
		return err
	}
	destSeg, err := dest.segment()
	if err != nil {
		return err
	}
	copy(
		destSeg.data[dest.start+Address(destOff):dest.start+Address(destOff)+Address(length)],
		srcSeg.data[src.start+Address(srcOff):src.start+Address(srcOff)+Address(length)],
	)
	return nil
}

// Alloc bumps the allocation cursor of msg's preferred segment by nbytes
// (rounded up to a word multiple), appending a new segment if the preferred
// one has no room or does not exist. Other existing segments, including the
// most recently appended one, are not tried. It returns a fresh zero-filled
// Slice.
func Alloc(msg *Message, preferred SegmentID, nbytes Size) (Slice, error) {
	seg, addr, err := msg.alloc(nbytes, preferred)
	if err != nil {
		return Slice{}, err
	}
	return Slice{msg: msg, segID: seg.id, start: addr, length: nbytes.padToWord()}, nil
}

// AllocInSegment attempts allocation only in the named segment, returning
// a zero-value Slice and ok=false if there isn't room — used to decide
// between a single-landing-pad and a double-far pointer (spec §4.5).
func AllocInSegment(msg *Message, seg SegmentID, nbytes Size) (s Slice, ok bool, err error) {
	addr, allocated, err := msg.allocInSegment(seg, nbytes)
	if err != nil || !allocated {
		return Slice{}, false, err
	}
	return Slice{msg: msg, segID: seg, start: addr, length: nbytes.padToWord()}, true, nil
}
