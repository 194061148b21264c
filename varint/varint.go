// Package varint implements unsigned LEB128 varints as used by multihash
// length prefixes and CAR frame lengths.
//
// Unlike github.com/multiformats/go-varint, this package does not reject
// non-minimal encodings: DAG-CBOR/CAR framing has no canonical-varint
// requirement, only a maximum width and an overflow bound. That is exactly
// what encoding/binary.Uvarint already implements, so we build on it rather
// than hand-rolling the bit-shifting loop (the teacher only hand-rolls its
// own uvarint reader where go-varint's minimal-encoding check gets in the
// way of an io.ByteReader API; here the stdlib reader already behaves).
package varint

import (
	"encoding/binary"
	"errors"
)

// MaxLen is the most bytes a uvarint may occupy before it is rejected.
// 10 bytes covers the full 64-bit range with one bit to spare.
const MaxLen = binary.MaxVarintLen64

// ErrInvalidVarint is returned for empty input, a varint wider than MaxLen
// bytes, or an encoding whose accumulated value overflows uint64.
var ErrInvalidVarint = errors.New("invalid varint")

// ReadUvarint reads a uvarint from the front of buf.
// It returns the decoded value and the number of bytes consumed.
func ReadUvarint(buf []byte) (value uint64, n int, err error) {
	if len(buf) == 0 {
		return 0, 0, ErrInvalidVarint
	}
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		// n == 0: buffer too small (all bytes had the continuation bit set).
		// n < 0: value overflowed 64 bits, or the encoding ran past MaxLen.
		return 0, 0, ErrInvalidVarint
	}
	return v, n, nil
}

// AppendUvarint appends the uvarint encoding of v to dst and returns the
// extended slice.
func AppendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// Uvarint encodes v as a standalone uvarint byte slice.
func Uvarint(v uint64) []byte {
	buf := make([]byte, MaxLen)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}
