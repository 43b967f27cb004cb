// Package packed implements Cap'n Proto's word-granularity zero-run
// compression (spec §4.9): a tag byte per 8-byte word marking which of its
// bytes are nonzero, with special handling for all-zero and all-nonzero
// words to collapse runs of either.
package packed

import (
	"bufio"
	"errors"
	"io"
)

const wordSize = 8

// ErrShortPacked is returned when a packed stream ends in the middle of a
// word or a run count.
var ErrShortPacked = errors.New("packed: unexpected end of packed input")

// Pack appends the packed encoding of src (which must be a multiple of 8
// bytes) to dst and returns the result.
func Pack(dst, src []byte) []byte {
	if len(src)%wordSize != 0 {
		panic("packed: input is not a multiple of the word size")
	}
	for i := 0; i < len(src); {
		word := src[i : i+wordSize]
		tag, nonzero := tagFor(word)
		dst = append(dst, tag)
		switch tag {
		case 0x00:
			n := countZeroWords(src, i+wordSize)
			dst = append(dst, byte(n))
			i += wordSize * (1 + n)
		case 0xff:
			dst = append(dst, word...)
			n := countVerbatimWords(src, i+wordSize)
			dst = append(dst, byte(n))
			dst = append(dst, src[i+wordSize:i+wordSize+n*wordSize]...)
			i += wordSize * (1 + n)
		default:
			dst = append(dst, nonzero...)
			i += wordSize
		}
	}
	return dst
}

// tagFor computes the tag byte for word (bit i set iff byte i is nonzero)
// and the slice of its nonzero bytes in order.
func tagFor(word []byte) (tag byte, nonzero []byte) {
	nonzero = make([]byte, 0, wordSize)
	for i, b := range word {
		if b != 0 {
			tag |= 1 << uint(i)
			nonzero = append(nonzero, b)
		}
	}
	return tag, nonzero
}

// countZeroWords counts consecutive all-zero words starting at offset off,
// capped at 255 (the count byte's range).
func countZeroWords(src []byte, off int) int {
	n := 0
	for n < 255 && off+wordSize*(n+1) <= len(src) && isZeroWord(src[off+wordSize*n:off+wordSize*(n+1)]) {
		n++
	}
	return n
}

// countVerbatimWords counts consecutive all-nonzero words starting at
// offset off, capped at 255.
func countVerbatimWords(src []byte, off int) int {
	n := 0
	for n < 255 && off+wordSize*(n+1) <= len(src) && isAllNonzeroWord(src[off+wordSize*n:off+wordSize*(n+1)]) {
		n++
	}
	return n
}

func isZeroWord(w []byte) bool {
	for _, b := range w {
		if b != 0 {
			return false
		}
	}
	return true
}

func isAllNonzeroWord(w []byte) bool {
	for _, b := range w {
		if b == 0 {
			return false
		}
	}
	return true
}

// Unpack appends the unpacked form of src to dst and returns the result,
// along with the number of bytes of src consumed. A partial trailing tag
// or run is reported via ErrShortPacked rather than consumed, so a
// streaming caller can feed more bytes and retry.
func Unpack(dst, src []byte) (out []byte, consumed int, err error) {
	out = dst
	i := 0
	for i < len(src) {
		tag := src[i]
		i++
		switch tag {
		case 0x00:
			if i >= len(src) {
				return dst, 0, ErrShortPacked
			}
			n := int(src[i])
			i++
			out = append(out, make([]byte, wordSize)...)
			for k := 0; k < n; k++ {
				out = append(out, make([]byte, wordSize)...)
			}
		case 0xff:
			if i+wordSize > len(src) {
				return dst, 0, ErrShortPacked
			}
			out = append(out, src[i:i+wordSize]...)
			i += wordSize
			if i >= len(src) {
				return dst, 0, ErrShortPacked
			}
			n := int(src[i])
			i++
			if i+n*wordSize > len(src) {
				return dst, 0, ErrShortPacked
			}
			out = append(out, src[i:i+n*wordSize]...)
			i += n * wordSize
		default:
			word := make([]byte, wordSize)
			for bit := 0; bit < wordSize; bit++ {
				if tag&(1<<uint(bit)) != 0 {
					if i >= len(src) {
						return dst, 0, ErrShortPacked
					}
					word[bit] = src[i]
					i++
				}
			}
			out = append(out, word...)
		}
	}
	return out, i, nil
}

// Encoder packs a stream of whole messages onto an underlying io.Writer.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder that writes packed bytes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Write packs p (a multiple of 8 bytes) and writes it.
func (e *Encoder) Write(p []byte) (int, error) {
	packed := Pack(nil, p)
	_, err := e.w.Write(packed)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Decoder unpacks bytes read from an underlying io.Reader. Because a
// packed tag's meaning can depend on bytes that arrive in a later read,
// a small fragment buffer holds an incomplete packed tail while Read pulls
// more input (spec §4.9: "must handle arbitrary splits across input
// chunks"). Unpacked bytes that do not fit in p are kept for the next Read.
type Decoder struct {
	r       *bufio.Reader
	pending []byte // packed bytes not yet unpacked
	unread  []byte // unpacked bytes not yet returned to the caller
}

// NewDecoder returns a Decoder that reads packed bytes from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Read unpacks enough bytes to fill p, reading more packed input as
// needed. It returns io.EOF only once all buffered and underlying input
// has been fully consumed and decoded.
func (d *Decoder) Read(p []byte) (int, error) {
	out := d.unread
	d.unread = nil
	for len(out) < len(p) {
		if len(d.pending) == 0 {
			buf := make([]byte, 4096)
			n, rerr := d.r.Read(buf)
			if n == 0 {
				if rerr != nil {
					if len(out) > 0 {
						return copy(p, out), nil
					}
					return 0, rerr
				}
				continue
			}
			d.pending = append(d.pending, buf[:n]...)
		}
		unpacked, consumed, err := Unpack(nil, d.pending)
		if err == ErrShortPacked {
			more := make([]byte, 4096)
			n, rerr := d.r.Read(more)
			if n == 0 && rerr != nil {
				return 0, ErrShortPacked
			}
			d.pending = append(d.pending, more[:n]...)
			continue
		}
		if err != nil {
			return 0, err
		}
		out = append(out, unpacked...)
		d.pending = d.pending[consumed:]
	}
	n := copy(p, out)
	d.unread = out[n:]
	return n, nil
}
