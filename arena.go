package capnp

import "github.com/pkg/errors"

// defaultSegmentSize is used to size a freshly appended segment when a
// caller's allocation request does not itself demand more.
const defaultSegmentSize Size = 4096

// ErrReadOnly is returned by Allocate on an Arena that only supports
// borrowed, immutable storage. It is a programmer error to reach this path:
// builder operations that allocate (DerefOrAllocStruct, SetTextField, deep
// copy into the message, far-pointer placement) should never be attempted
// against a reader's arena.
var ErrReadOnly = errors.New("capnp: cannot allocate in a read-only arena")

// Arena is the storage backend for a Message: a sequence of segments plus
// the policy for growing them. This is where the read-only/read-write
// capability distinction actually lives — a read-only Arena simply never
// satisfies an Allocate call, so any code path that requires allocation
// (pointer auto-init, struct upgrade, deep copy into this message) fails
// fast with ErrReadOnly instead of silently corrupting borrowed bytes.
type Arena interface {
	// NumSegments returns the number of segments currently in the arena.
	NumSegments() int

	// Data returns the raw bytes of segment id. It must return the same
	// backing array across calls (callers may hold slices into it).
	Data(id SegmentID) ([]byte, error)

	// Allocate reserves nbytes (already rounded to a word multiple) for
	// use by the given segment, preferring segment preferred when it has
	// room. It returns the segment the allocation landed in (which may be
	// a different, possibly new, segment) and the byte range allocated.
	Allocate(nbytes Size, preferred SegmentID) (id SegmentID, data []byte, err error)
}

// growableArena is a multi-segment, read/write Arena with a bump allocator
// per segment. New segments are appended on demand; existing segments
// never move or resize, matching the message lifecycle invariant in spec
// §3 (storage is stable once allocated).
type growableArena struct {
	segs []*growableSegment
}

type growableSegment struct {
	buf    []byte // len(buf) is capacity; cursor tracks in-use prefix
	cursor Size
}

// NewArena creates an empty read/write Arena. firstSegmentHint sizes the
// first segment's capacity, rounded up to a word multiple; a hint smaller
// than one word (such as 0) gives a first segment of defaultSegmentSize.
func NewArena(firstSegmentHint Size) Arena {
	hint := firstSegmentHint.padToWord()
	if hint < wordSize {
		hint = defaultSegmentSize
	}
	return &growableArena{
		segs: []*growableSegment{{buf: make([]byte, 0, hint)}},
	}
}

func (a *growableArena) NumSegments() int { return len(a.segs) }

func (a *growableArena) Data(id SegmentID) ([]byte, error) {
	if int(id) >= len(a.segs) {
		return nil, newInvalidMessage("segment %d out of range (have %d)", id, len(a.segs))
	}
	return a.segs[id].buf, nil
}

func (a *growableArena) Allocate(nbytes Size, preferred SegmentID) (SegmentID, []byte, error) {
	nbytes = nbytes.padToWord()
	if int(preferred) < len(a.segs) {
		if data, ok := a.allocInSegment(preferred, nbytes); ok {
			return preferred, data, nil
		}
	}
	size := nbytes
	if size < defaultSegmentSize {
		size = defaultSegmentSize
	}
	a.segs = append(a.segs, &growableSegment{buf: make([]byte, 0, size)})
	id := SegmentID(len(a.segs) - 1)
	data, ok := a.allocInSegment(id, nbytes)
	if !ok {
		return 0, nil, newInvalidMessage("failed to allocate %d bytes in fresh segment", nbytes)
	}
	return id, data, nil
}

// AllocateInSegment attempts allocation only within the named segment,
// returning ok=false (never growing a new segment) when there is
// insufficient room. The pointer-initialization logic (§4.5) uses this to
// decide between a single-landing-pad far pointer and a double-far
// pointer.
func (a *growableArena) AllocateInSegment(id SegmentID, nbytes Size) (data []byte, ok bool) {
	return a.allocInSegment(id, nbytes.padToWord())
}

func (a *growableArena) allocInSegment(id SegmentID, nbytes Size) ([]byte, bool) {
	seg := a.segs[id]
	end, ok := seg.cursor.addSize(nbytes)
	if !ok || int(end) > cap(seg.buf) {
		return nil, false
	}
	if int(end) > len(seg.buf) {
		seg.buf = seg.buf[:end]
	}
	data := seg.buf[seg.cursor:end]
	for i := range data {
		data[i] = 0
	}
	seg.cursor = end
	return data, true
}

// readOnlyArena wraps already-encoded segments borrowed from the caller.
// It never allocates: every Allocate call fails with ErrReadOnly, so every
// path that needs fresh storage fails on a Message built over it. Slice
// setters are not blocked: they write straight into the borrowed bytes.
type readOnlyArena struct {
	segs [][]byte
}

// NewReadOnlyArena wraps pre-encoded segment data (e.g. the payload of a
// parsed multi-segment message) for read-only traversal.
func NewReadOnlyArena(segments [][]byte) Arena {
	return &readOnlyArena{segs: segments}
}

func (a *readOnlyArena) NumSegments() int { return len(a.segs) }

func (a *readOnlyArena) Data(id SegmentID) ([]byte, error) {
	if int(id) >= len(a.segs) {
		return nil, newInvalidMessage("segment %d out of range (have %d)", id, len(a.segs))
	}
	return a.segs[id], nil
}

func (a *readOnlyArena) Allocate(Size, SegmentID) (SegmentID, []byte, error) {
	return 0, nil, ErrReadOnly
}
