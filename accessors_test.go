package capnp

import "testing"

func TestTextFieldRoundTrip(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetTextField(ptr, 0, "hello, world"); err != nil {
		t.Fatal(err)
	}
	s, err := GetTextField(ptr, "default")
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello, world" {
		t.Fatalf("GetTextField = %q, want %q", s, "hello, world")
	}
}

func TestTextFieldDefaultOnNull(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	s, err := GetTextField(ptr, "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if s != "fallback" {
		t.Fatalf("GetTextField on null pointer = %q, want %q", s, "fallback")
	}
}

func TestTextFieldEmptyString(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetTextField(ptr, 0, ""); err != nil {
		t.Fatal(err)
	}
	s, err := GetTextField(ptr, "default")
	if err != nil {
		t.Fatal(err)
	}
	if s != "" {
		t.Fatalf("GetTextField = %q, want empty string", s)
	}
}

func TestBlobFieldRoundTrip(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0xff, 0x10, 0x00}
	if err := SetBlobField(ptr, 0, want); err != nil {
		t.Fatal(err)
	}
	got, err := GetBlobField(ptr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("GetBlobField length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetBlobField[%d] = %x, want %x", i, got[i], want[i])
		}
	}
}

func TestBlobFieldDefaultOnNull(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	def := []byte{9, 9, 9}
	got, err := GetBlobField(ptr, def)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 9 {
		t.Fatalf("GetBlobField on null pointer = %v, want copy of %v", got, def)
	}
	// Must be a copy, not an alias of def.
	got[0] = 0
	if def[0] != 9 {
		t.Fatal("GetBlobField's default must be returned as an independent copy")
	}
}

func TestFloatScalarFieldXOR(t *testing.T) {
	msg, err := NewMessage(NewArena(0))
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := rootPointerSlice(msg)
	if err != nil {
		t.Fatal(err)
	}
	root, err := DerefOrAllocStruct(ptr, 0, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	const def float64 = 3.5
	if err := SetScalarField(root.DataSlice(), 0, 2.5, def); err != nil {
		t.Fatal(err)
	}
	v, err := GetScalarField(root.DataSlice(), 0, def)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2.5 {
		t.Fatalf("float64 field = %v, want 2.5", v)
	}
}
