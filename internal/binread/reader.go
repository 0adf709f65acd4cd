package binread

import (
	"encoding/binary"

	"github.com/blacktop/bindump/pkg/binfmt"
)

// A Reader walks a byte slice in a fixed byte order. Every read is
// checked against the end of the slice; a failed read leaves the cursor
// where it was.
type Reader struct {
	dat  []byte
	off  int
	base int64
	bo   binary.ByteOrder
}

// NewReader returns a Reader over dat. base is the absolute file offset of
// dat[0] and is only used to report error positions.
func NewReader(dat []byte, bo binary.ByteOrder, base int64) *Reader {
	return &Reader{dat: dat, bo: bo, base: base}
}

// ByteOrder returns the byte order used for multi-byte fields.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.bo }

// Offset returns the cursor position relative to the start of the slice.
func (r *Reader) Offset() int { return r.off }

// Pos returns the absolute file offset of the cursor.
func (r *Reader) Pos() int64 { return r.base + int64(r.off) }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.dat) - r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, short(r.Pos(), n, r.Len())
	}
	b := r.dat[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint32(b), nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint64(b), nil
}

// Word reads a 4 byte field when wide is false and an 8 byte field
// otherwise. It covers the address width dependent fields of segments and
// sections.
func (r *Reader) Word(wide bool) (uint64, error) {
	if wide {
		return r.Uint64()
	}
	v, err := r.Uint32()
	return uint64(v), err
}

// FixedName reads a NUL padded name field of width bytes.
func (r *Reader) FixedName(width int) (string, error) {
	b, err := r.take(width)
	if err != nil {
		return "", err
	}
	return cstring(b), nil
}

// AlignExp reads a power of two exponent and returns the alignment it
// encodes.
func (r *Reader) AlignExp() (uint32, error) {
	pos := r.Pos()
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	a, err := align(r.bo.Uint32(b), pos)
	if err != nil {
		r.off -= 4
		return 0, err
	}
	return a, nil
}

// Errorf returns a FormatError of the given kind positioned at the cursor.
func (r *Reader) Errorf(kind error, val interface{}, format string, args ...interface{}) error {
	return binfmt.Errorf(kind, r.Pos(), val, format, args...)
}

// Uint32s reads consecutive 4 byte fields into dst in order.
func (r *Reader) Uint32s(dst ...*uint32) error {
	if r.Len() < 4*len(dst) {
		return short(r.Pos(), 4*len(dst), r.Len())
	}
	for _, d := range dst {
		*d, _ = r.Uint32()
	}
	return nil
}

// Words reads consecutive address width dependent fields into dst.
func (r *Reader) Words(wide bool, dst ...*uint64) error {
	size := 4
	if wide {
		size = 8
	}
	if r.Len() < size*len(dst) {
		return short(r.Pos(), size*len(dst), r.Len())
	}
	for _, d := range dst {
		*d, _ = r.Word(wide)
	}
	return nil
}
