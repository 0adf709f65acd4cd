// Package binread implements bounds-checked, endian-aware decoding of the
// fixed-width fields found in executable container headers.
package binread

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/blacktop/bindump/pkg/binfmt"
)

// MaxAlignExp is the largest alignment exponent that fits a uint32.
const MaxAlignExp = 31

// Uint32 decodes the first 4 bytes of b.
func Uint32(b []byte, o binary.ByteOrder) (uint32, error) {
	if len(b) < 4 {
		return 0, short(0, 4, len(b))
	}
	return o.Uint32(b), nil
}

// Int32 decodes the first 4 bytes of b as a signed value.
func Int32(b []byte, o binary.ByteOrder) (int32, error) {
	v, err := Uint32(b, o)
	return int32(v), err
}

// Uint64 decodes the first 8 bytes of b.
func Uint64(b []byte, o binary.ByteOrder) (uint64, error) {
	if len(b) < 8 {
		return 0, short(0, 8, len(b))
	}
	return o.Uint64(b), nil
}

// FixedName decodes a NUL padded name field of exactly width bytes.
// Names without a terminator use the full width. Invalid UTF-8 is
// replaced rather than rejected.
func FixedName(b []byte, width int) (string, error) {
	if len(b) < width {
		return "", short(0, width, len(b))
	}
	return cstring(b[:width]), nil
}

// AlignExp decodes a power of two exponent and returns 1<<e.
func AlignExp(b []byte, o binary.ByteOrder) (uint32, error) {
	e, err := Uint32(b, o)
	if err != nil {
		return 0, err
	}
	return align(e, 0)
}

// Slice returns the sub-slice buf[off:off+size] without copying. The
// bounds are checked without overflow, so attacker controlled offsets
// can never index outside buf.
func Slice(buf []byte, off, size uint64) ([]byte, bool) {
	n := uint64(len(buf))
	if off > n || size > n-off {
		return nil, false
	}
	return buf[off : off+size : off+size], true
}

func align(e uint32, off int64) (uint32, error) {
	if e > MaxAlignExp {
		return 0, binfmt.Errorf(binfmt.ErrInvalidAlignment, off, e, "exponent exceeds %d", MaxAlignExp)
	}
	return 1 << e, nil
}

func cstring(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	if utf8.Valid(b[:i]) {
		return string(b[:i])
	}
	return strings.ToValidUTF8(string(b[:i]), string(utf8.RuneError))
}

func short(off int64, need, have int) error {
	return binfmt.Errorf(binfmt.ErrTruncated, off, nil, "need %d bytes, have %d", need, have)
}
