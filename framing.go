package capnp

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// WriteMessage serializes msg to w using the multi-segment framing header
// from spec §4.10: a uint32 segment-count-minus-one, a uint32 word count
// per segment, zero-padding so the payload starts on an 8-byte boundary,
// then the segments themselves concatenated in order.
func WriteMessage(w io.Writer, msg *Message) error {
	n := msg.NumSegments()
	if n == 0 {
		return newInvalidMessage("message has no segments")
	}
	headerWords := 1 + n // segment-count word + one word count per segment
	if headerWords%2 != 0 {
		headerWords++ // padding to reach an 8-byte boundary
	}
	header := make([]byte, headerWords*4)
	binary.LittleEndian.PutUint32(header[0:4], uint32(n-1))
	for i := 0; i < n; i++ {
		seg, err := msg.Segment(SegmentID(i))
		if err != nil {
			return err
		}
		if len(seg.Data())%int(wordSize) != 0 {
			return newInvalidMessage("segment %d length %d is not a multiple of the word size", i, len(seg.Data()))
		}
		binary.LittleEndian.PutUint32(header[(1+i)*4:(2+i)*4], uint32(len(seg.Data()))/uint32(wordSize))
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "write segment table")
	}
	for i := 0; i < n; i++ {
		seg, err := msg.Segment(SegmentID(i))
		if err != nil {
			return err
		}
		if _, err := w.Write(seg.Data()); err != nil {
			return errors.Wrapf(err, "write segment %d", i)
		}
	}
	return nil
}

// ReadMessage parses the multi-segment framing header and payload from r
// and returns a read-only Message over the segment data (spec §4.10).
func ReadMessage(r io.Reader) (*Message, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, errors.Wrap(err, "read segment count")
	}
	segCount := int(binary.LittleEndian.Uint32(countBuf[:])) + 1
	if segCount <= 0 {
		return nil, newInvalidMessage("invalid segment count")
	}
	headerWords := 1 + segCount
	if headerWords%2 != 0 {
		headerWords++
	}
	rest := make([]byte, (headerWords-1)*4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, errors.Wrap(err, "read segment table")
	}
	wordCounts := make([]uint32, segCount)
	for i := 0; i < segCount; i++ {
		wordCounts[i] = binary.LittleEndian.Uint32(rest[i*4 : (i+1)*4])
	}
	segments := make([][]byte, segCount)
	for i, wc := range wordCounts {
		buf := make([]byte, int(wc)*int(wordSize))
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrapf(err, "read segment %d", i)
		}
		segments[i] = buf
	}
	return NewReaderMessage(segments)
}
