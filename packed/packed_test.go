package packed

import (
	"bytes"
	"io"
	"testing"
)

func mustUnpack(t *testing.T, src []byte) []byte {
	t.Helper()
	out, consumed, err := Unpack(nil, src)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if consumed != len(src) {
		t.Fatalf("Unpack consumed %d of %d bytes", consumed, len(src))
	}
	return out
}

func TestPackAllZeroWord(t *testing.T) {
	word := make([]byte, 8)
	got := Pack(nil, word)
	want := []byte{0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(zero word) = % x, want % x", got, want)
	}
	if back := mustUnpack(t, got); !bytes.Equal(back, word) {
		t.Fatalf("round trip = % x, want % x", back, word)
	}
}

func TestPackSparseWord(t *testing.T) {
	word := []byte{0, 0, 1, 0, 0, 0, 2, 0}
	got := Pack(nil, word)
	want := []byte{0x44, 1, 2} // bits 2 and 6 set
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(sparse word) = % x, want % x", got, want)
	}
	if back := mustUnpack(t, got); !bytes.Equal(back, word) {
		t.Fatalf("round trip = % x, want % x", back, word)
	}
}

func TestPackAllNonzeroWord(t *testing.T) {
	word := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	got := Pack(nil, word)
	want := append([]byte{0xff}, word...)
	want = append(want, 0x00) // no further all-nonzero words follow
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(all-nonzero word) = % x, want % x", got, want)
	}
	if back := mustUnpack(t, got); !bytes.Equal(back, word) {
		t.Fatalf("round trip = % x, want % x", back, word)
	}
}

func Test256ZeroWordsThenNonzeroWord(t *testing.T) {
	src := make([]byte, 257*wordSize)
	src[256*wordSize] = 5 // word 256 (0-indexed) is the lone nonzero word

	got := Pack(nil, src)
	want := []byte{0x00, 0xff, 0x01, 0x05}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(256 zero words + nonzero) = % x, want % x", got, want)
	}
	if back := mustUnpack(t, got); !bytes.Equal(back, src) {
		t.Fatal("256-zero-word boundary round trip mismatch")
	}
}

func Test256NonzeroWordsThenZeroWord(t *testing.T) {
	pattern := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	src := make([]byte, 0, 257*wordSize)
	for i := 0; i < 256; i++ {
		src = append(src, pattern...)
	}
	src = append(src, make([]byte, wordSize)...) // trailing zero word

	got := Pack(nil, src)
	want := append([]byte{0xff}, pattern...)
	want = append(want, 0xff) // 255 more all-nonzero words follow
	for i := 0; i < 255; i++ {
		want = append(want, pattern...)
	}
	want = append(want, 0x00, 0x00) // the trailing zero word, no more after it
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(256 nonzero words + zero) mismatch:\ngot:  % x\nwant: % x", got, want)
	}
	if back := mustUnpack(t, got); !bytes.Equal(back, src) {
		t.Fatal("256-nonzero-word boundary round trip mismatch")
	}
}

func TestUnpackShortInputReportsErrShortPacked(t *testing.T) {
	// A 0xff tag followed by only three of its eight word bytes is a
	// truncated stream.
	_, _, err := Unpack(nil, []byte{0xff, 1, 2, 3})
	if err != ErrShortPacked {
		t.Fatalf("err = %v, want ErrShortPacked", err)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	msg := make([]byte, 0, 64)
	for i := 0; i < 8; i++ {
		word := make([]byte, 8)
		if i%3 != 0 {
			word[i%8] = byte(i + 1)
		}
		msg = append(msg, word...)
	}

	var packedBuf bytes.Buffer
	enc := NewEncoder(&packedBuf)
	if _, err := enc.Write(msg); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(&packedBuf)
	out := make([]byte, len(msg))
	n, err := dec.Read(out)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if n != len(msg) {
		t.Fatalf("Decoder.Read returned %d bytes, want %d", n, len(msg))
	}
	if !bytes.Equal(out, msg) {
		t.Fatalf("Encoder/Decoder round trip mismatch:\ngot:  % x\nwant: % x", out, msg)
	}
}
