package capnp

import "testing"

func pointStructSize() ObjectSize {
	return ObjectSize{DataSize: 16, PointerCount: 0}
}

func TestRootStructRoundTrip(t *testing.T) {
	msg, root, err := AllocRootStruct(pointStructSize(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(root.DataSlice(), 0, int32(42), int32(0)); err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(root.DataSlice(), 4, int32(-7), int32(0)); err != nil {
		t.Fatal(err)
	}

	got, ok, err := GetRootStruct(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("root struct should be present")
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
		t.Fatalf("x=%d y=%d, want 42, -7", x, y)
	}
}

func TestScalarFieldDefaultXOR(t *testing.T) {
	msg, root, err := AllocRootStruct(ObjectSize{DataSize: 8}, 0)
	if err != nil {
		t.Fatal(err)
	}
	const def int32 = -1
	// An untouched field reads back as its default.
	v, err := GetScalarField(root.DataSlice(), 0, def)
	if err != nil {
		t.Fatal(err)
	}
	if v != def {
		t.Fatalf("untouched field = %d, want default %d", v, def)
	}
	if err := SetScalarField(root.DataSlice(), 0, int32(5), def); err != nil {
		t.Fatal(err)
	}
	v, err = GetScalarField(root.DataSlice(), 0, def)
	if err != nil {
		t.Fatal(err)
	}
	if v != 5 {
		t.Fatalf("field after set = %d, want 5", v)
	}
	_ = msg
}

func TestGetScalarFieldPastEndYieldsDefault(t *testing.T) {
	_, root, err := AllocRootStruct(ObjectSize{DataSize: 8}, 0)
	if err != nil {
		t.Fatal(err)
	}
	v, err := GetScalarField(root.DataSlice(), 64, int32(99))
	if err != nil {
		t.Fatal(err)
	}
	if v != 99 {
		t.Fatalf("out-of-range read = %d, want default 99", v)
	}
}

func TestBoolFieldXOR(t *testing.T) {
	_, root, err := AllocRootStruct(ObjectSize{DataSize: 8}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetBoolField(root.DataSlice(), 0, 3, true, true); err != nil {
		t.Fatal(err)
	}
	v, err := GetBoolField(root.DataSlice(), 0, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != true {
		t.Fatalf("bool field = %v, want true", v)
	}
	if err := SetBoolField(root.DataSlice(), 0, 3, false, true); err != nil {
		t.Fatal(err)
	}
	v, err = GetBoolField(root.DataSlice(), 0, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != false {
		t.Fatalf("bool field = %v, want false", v)
	}
}

func TestStructUpgradePreservesData(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	small, err := DerefOrAllocStruct(ptr, 0, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := SetScalarField(small.DataSlice(), 0, int32(123), int32(0)); err != nil {
		t.Fatal(err)
	}

	bigger, err := DerefOrAllocStruct(ptr, 0, ObjectSize{DataSize: 16, PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if bigger.Size().DataSize != 16 || bigger.Size().PointerCount != 1 {
		t.Fatalf("upgraded size = %+v, want {16 1}", bigger.Size())
	}
	v, err := GetScalarField(bigger.DataSlice(), 0, int32(0))
	if err != nil {
		t.Fatal(err)
	}
	if v != 123 {
		t.Fatalf("field after upgrade = %d, want 123 (data preserved)", v)
	}
	// The newly-added field reads back as its default.
	v2, err := GetScalarField(bigger.DataSlice(), 8, int32(-1))
	if err != nil {
		t.Fatal(err)
	}
	if v2 != -1 {
		t.Fatalf("new field after upgrade = %d, want default -1", v2)
	}

	// A second dereference of the same pointer now sees the upgraded layout.
	again, ok, err := DerefStructPointer(ptr)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected struct present")
	}
	if again.Size() != bigger.Size() {
		t.Fatalf("re-dereferenced size = %+v, want %+v", again.Size(), bigger.Size())
	}
}

func TestFarPointerAcrossSegments(t *testing.T) {
	msg, err := NewMessage(NewArena(wordSize))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	// preferred=1 does not exist yet, forcing the struct into a new segment
	// distinct from the root pointer's segment 0.
	storage, err := AllocStructStorage(msg, 1, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if storage.data.segID == ptr.segID {
		t.Fatalf("expected struct to land in a different segment than the root pointer")
	}
	if err := SetScalarField(storage.DataSlice(), 0, int32(777), int32(0)); err != nil {
		t.Fatal(err)
	}
	if err := InitStructPointer(ptr, storage); err != nil {
		t.Fatal(err)
	}

	got, ok, err := DerefStructPointer(ptr)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected struct present via far pointer")
	}
	v, err := GetScalarField(got.DataSlice(), 0, int32(0))
	if err != nil {
		t.Fatal(err)
	}
	if v != 777 {
		t.Fatalf("field via far pointer = %d, want 777", v)
	}
	if msg.NumSegments() < 2 {
		t.Fatalf("expected at least 2 segments, got %d", msg.NumSegments())
	}
}
