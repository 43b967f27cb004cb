package capnp

import (
	"sync"

	basesync "github.com/gostdlib/base/concurrency/sync"
	basecontext "github.com/gostdlib/base/context"
)

// defaultTraversalLimitWords bounds the total amount of object data a
// single Message will dereference over its lifetime, following every real
// Cap'n Proto runtime's defense against an attacker crafting a tiny
// message whose pointers (possibly repeated via aliasing) reference far
// more logical data than the wire bytes would suggest. 64 MiB worth of
// words is the same default the reference C++ implementation uses.
const defaultTraversalLimitWords int64 = 8 * 1024 * 1024

// A Message is a tree of Cap'n Proto objects split across one or more
// segments of an Arena. Segment 0 always exists once the message has been
// initialized for reading or writing, and its first 8 bytes hold the root
// pointer (spec §3).
//
// A Message is not safe for concurrent mutation; concurrent read-only
// traversal from multiple goroutines is fine once the Arena is immutable
// (spec §5).
type Message struct {
	Arena Arena

	mu           sync.Mutex
	segs         map[SegmentID]*Segment
	travelBudget int64 // words remaining before ErrTraversalLimitExceeded
}

// NewMessage creates an empty, writable Message over arena and reserves
// the first 8 bytes of segment 0 for the root pointer. The first segment's
// capacity comes from arena (see NewArena's firstSegmentHint).
func NewMessage(arena Arena) (*Message, error) {
	msg := &Message{Arena: arena, segs: make(map[SegmentID]*Segment), travelBudget: defaultTraversalLimitWords}
	seg, err := msg.Segment(0)
	if err != nil {
		return nil, err
	}
	if len(seg.data) == 0 {
		if _, _, err := msg.alloc(wordSize, 0); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// NewReaderMessage creates a Message for read-only traversal over
// pre-encoded segment bytes.
func NewReaderMessage(segments [][]byte) (*Message, error) {
	return &Message{Arena: NewReadOnlyArena(segments), segs: make(map[SegmentID]*Segment), travelBudget: defaultTraversalLimitWords}, nil
}

// DefaultMessagePool recycles builder-side Message shells (the struct
// itself plus its segment-wrapper cache) across short-lived message
// construction, the same concern the teacher addresses for its own
// segment.Struct type in clawc/languages/go/segment/pool.go.
var DefaultMessagePool *basesync.Pool[*Message]

func init() {
	DefaultMessagePool = basesync.NewPool[*Message](
		basecontext.Background(),
		"capnp.Message",
		func() *Message {
			return &Message{segs: make(map[SegmentID]*Segment)}
		},
	)
}

// NewPooledMessage gets a Message shell from DefaultMessagePool, resets it
// over arena, and reserves the root pointer word exactly as NewMessage
// does. Pair with ReleaseMessage once the caller is done with it.
func NewPooledMessage(ctx basecontext.Context, arena Arena) (*Message, error) {
	msg := DefaultMessagePool.Get(ctx)
	msg.reset(arena)
	seg, err := msg.Segment(0)
	if err != nil {
		return nil, err
	}
	if len(seg.data) == 0 {
		if _, _, err := msg.alloc(wordSize, 0); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// ReleaseMessage returns msg to DefaultMessagePool for reuse. The caller
// must not retain msg, or any Slice/StructStorage/ListStorage derived from
// it, past this call.
func ReleaseMessage(ctx basecontext.Context, msg *Message) {
	msg.reset(nil)
	DefaultMessagePool.Put(ctx, msg)
}

// reset clears a Message's segment cache and traversal budget for reuse
// with a new arena (or, from ReleaseMessage, for sitting idle in the pool).
func (m *Message) reset(arena Arena) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Arena = arena
	m.travelBudget = defaultTraversalLimitWords
	for id := range m.segs {
		delete(m.segs, id)
	}
}

// SetTraversalLimit overrides the remaining traversal budget, in words.
// Useful for a caller parsing many small, trusted messages that would
// otherwise each need their own generous default, or for deliberately
// tightening the limit when reading fully untrusted input.
func (m *Message) SetTraversalLimit(words int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.travelBudget = words
}

// chargeTraversal deducts words from the remaining budget, returning
// ErrTraversalLimitExceeded once it would go negative (spec §4.3's object
// dereferencer is the enforcement point: every resolved struct or list
// charges its own size before the caller gets to read it).
func (m *Message) chargeTraversal(words int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.travelBudget <= 0 && words > 0 {
		return ErrTraversalLimitExceeded
	}
	m.travelBudget -= words
	if m.travelBudget < 0 {
		return ErrTraversalLimitExceeded
	}
	return nil
}

// Segment returns (creating if necessary) the Segment wrapper for id.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.segs[id]; ok {
		return s, nil
	}
	data, err := m.Arena.Data(id)
	if err != nil {
		return nil, err
	}
	s := &Segment{msg: m, id: id, data: data}
	m.segs[id] = s
	return s, nil
}

// NumSegments returns the number of segments currently in the message.
func (m *Message) NumSegments() int {
	return m.Arena.NumSegments()
}

// alloc reserves nbytes, preferring segment preferred, and returns the
// Segment it landed in along with the byte offset of the allocation.
func (m *Message) alloc(nbytes Size, preferred SegmentID) (*Segment, Address, error) {
	id, data, err := m.Arena.Allocate(nbytes, preferred)
	if err != nil {
		return nil, 0, err
	}
	seg, err := m.refreshSegment(id, data)
	if err != nil {
		return nil, 0, err
	}
	return seg, Address(len(seg.data) - len(data)), nil
}

// allocInSegment attempts allocation only within segment id, returning
// ok=false without growing a new segment if there's insufficient room.
func (m *Message) allocInSegment(id SegmentID, nbytes Size) (addr Address, ok bool, err error) {
	ga, isGrowable := m.Arena.(*growableArena)
	if !isGrowable {
		return 0, false, ErrReadOnly
	}
	data, allocated := ga.AllocateInSegment(id, nbytes)
	if !allocated {
		return 0, false, nil
	}
	seg, err := m.refreshSegment(id, data)
	if err != nil {
		return 0, false, err
	}
	return Address(len(seg.data) - len(data)), true, nil
}

// refreshSegment updates the cached Segment for id after the arena has
// grown its backing array, and returns it.
func (m *Message) refreshSegment(id SegmentID, latest []byte) (*Segment, error) {
	full, err := m.Arena.Data(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segs[id]
	if !ok {
		s = &Segment{msg: m, id: id}
		m.segs[id] = s
	}
	s.data = full
	_ = latest
	return s, nil
}

// Segment is a contiguous byte buffer within a Message: the unit of
// allocation (spec §3). All multi-byte access is little-endian.
type Segment struct {
	msg  *Message
	id   SegmentID
	data []byte
}

// ID returns the segment's identifier within its message.
func (s *Segment) ID() SegmentID { return s.id }

// Data returns the segment's raw bytes.
func (s *Segment) Data() []byte { return s.data }

// Len returns the number of bytes currently allocated in the segment.
func (s *Segment) Len() Size { return Size(len(s.data)) }

func (s *Segment) inBounds(addr Address, sz Size) bool {
	end, ok := addr.addSize(sz)
	return ok && end <= Address(len(s.data))
}

func (s *Segment) readUint8(addr Address) uint8 {
	return s.data[addr]
}

func (s *Segment) readUint16(addr Address) uint16 {
	b := s.data[addr : addr+2]
	return uint16(b[0]) | uint16(b[1])<<8
}

func (s *Segment) readUint32(addr Address) uint32 {
	b := s.data[addr : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (s *Segment) readUint64(addr Address) uint64 {
	b := s.data[addr : addr+8]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

func (s *Segment) writeUint8(addr Address, v uint8) {
	s.data[addr] = v
}

func (s *Segment) writeUint16(addr Address, v uint16) {
	b := s.data[addr : addr+2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func (s *Segment) writeUint32(addr Address, v uint32) {
	b := s.data[addr : addr+4]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (s *Segment) writeUint64(addr Address, v uint64) {
	b := s.data[addr : addr+8]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

func (s *Segment) readRawPointer(addr Address) rawPointer {
	return rawPointer(s.readUint64(addr))
}

func (s *Segment) writeRawPointer(addr Address, p rawPointer) {
	s.writeUint64(addr, uint64(p))
}
