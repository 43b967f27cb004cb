package capnp

import (
	"bytes"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestWriteReadMessageSingleSegment(t *testing.T) {
	msg, root, err := AllocRootStruct(ObjectSize{DataSize: 16}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(root.DataSlice(), 0, int32(42), int32(0)); err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(root.DataSlice(), 4, int32(-7), int32(0)); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}

	read, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if read.NumSegments() != 1 {
		t.Fatalf("NumSegments() = %d, want 1", read.NumSegments())
	}
	got, ok, err := GetRootStruct(read)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected root struct after round trip")
	}
	x, err := GetScalarField(got.DataSlice(), 0, int32(0))
	if err != nil {
		t.Fatal(err)
	}
	y, err := GetScalarField(got.DataSlice(), 4, int32(0))
	if err != nil {
		t.Fatal(err)
	}
	if x != 42 || y != -7 {
		t.Fatalf("round-tripped (x,y) = (%d,%d), want (42,-7)", x, y)
	}
}

func TestWriteReadMessageMultiSegment(t *testing.T) {
	msg, err := NewMessage(NewArena(wordSize))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	// Forces the struct into a second segment, so the root pointer must be
	// written as a far pointer (spec scenario: "far pointer via new
	// segment").
	storage, err := AllocStructStorage(msg, 1, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(storage.DataSlice(), 0, int64(123456789), int64(0)); err != nil {
		t.Fatal(err)
	}
	if err := InitStructPointer(ptr, storage); err != nil {
		t.Fatal(err)
	}
	if msg.NumSegments() < 2 {
		t.Fatalf("expected at least 2 segments before serialization, got %d", msg.NumSegments())
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}

	read, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if read.NumSegments() != msg.NumSegments() {
		t.Fatalf("round-tripped segment count = %d, want %d", read.NumSegments(), msg.NumSegments())
	}
	got, ok, err := GetRootStruct(read)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected root struct reachable via far pointer after round trip")
	}
	v, err := GetScalarField(got.DataSlice(), 0, int64(0))
	if err != nil {
		t.Fatal(err)
	}
	if v != 123456789 {
		t.Fatalf("round-tripped field = %d, want 123456789", v)
	}

	for i := 0; i < msg.NumSegments(); i++ {
		origSeg, err := msg.Segment(SegmentID(i))
		if err != nil {
			t.Fatal(err)
		}
		gotSeg, err := read.Segment(SegmentID(i))
		if err != nil {
			t.Fatal(err)
		}
		if diff := pretty.Compare(origSeg.Data(), gotSeg.Data()); diff != "" {
			t.Errorf("segment %d bytes differ after round trip:\n%s", i, diff)
		}
	}
}
