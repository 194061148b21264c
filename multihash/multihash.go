// Package multihash implements the self-describing digest format used by
// CIDs: a (code, size, digest) triple, each of code and size a uvarint.
//
// This intentionally does not wrap github.com/multiformats/go-multihash:
// that library validates code against a closed registry of known hash
// functions and enforces their expected digest lengths, which rejects the
// arbitrary-code multihashes spec.md §4.3 requires CID parsing to accept.
package multihash

import (
	"errors"
	"fmt"

	"github.com/hyphacoop/go-dasl-codec/varint"
)

// MaxDigestSize bounds how large a digest this package will allocate for,
// guarding against a multihash claiming an enormous size field.
const MaxDigestSize = 64

// ErrInvalidMultihash is the sentinel wrapped by all parse errors from this
// package, surfaced through the cid package as InvalidCid.
var ErrInvalidMultihash = errors.New("invalid multihash")

// Multihash is a self-describing hash digest: a hash function code, the
// digest's length, and the digest itself.
type Multihash struct {
	Code   uint64
	Size   uint64
	Digest []byte
}

type multihashError struct {
	reason string
}

func (e *multihashError) Error() string {
	return fmt.Sprintf("invalid multihash: %s", e.reason)
}

func (e *multihashError) Unwrap() error { return ErrInvalidMultihash }

func errf(format string, args ...any) error {
	return &multihashError{reason: fmt.Sprintf(format, args...)}
}

// Parse reads a binary multihash (code varint, size varint, size bytes of
// digest) from the front of buf, returning the number of bytes consumed.
func Parse(buf []byte) (Multihash, int, error) {
	code, n1, err := varint.ReadUvarint(buf)
	if err != nil {
		return Multihash{}, 0, errf("bad code varint: %v", err)
	}
	size, n2, err := varint.ReadUvarint(buf[n1:])
	if err != nil {
		return Multihash{}, 0, errf("bad size varint: %v", err)
	}
	if size > MaxDigestSize {
		return Multihash{}, 0, errf("digest size %d exceeds cap of %d", size, MaxDigestSize)
	}
	start := n1 + n2
	end := start + int(size)
	if end > len(buf) {
		return Multihash{}, 0, errf("digest of length %d runs past end of input", size)
	}
	digest := make([]byte, size)
	copy(digest, buf[start:end])
	return Multihash{Code: code, Size: size, Digest: digest}, end, nil
}

// Append appends the binary encoding of m to dst and returns the extended
// slice. len(m.Digest) must equal m.Size.
func (m Multihash) Append(dst []byte) []byte {
	dst = varint.AppendUvarint(dst, m.Code)
	dst = varint.AppendUvarint(dst, m.Size)
	return append(dst, m.Digest...)
}

// Bytes returns the binary encoding of m as a fresh slice.
func (m Multihash) Bytes() []byte {
	return m.Append(make([]byte, 0, 2+len(m.Digest)))
}

// Validate checks the size/digest-length invariant required by spec.md §3.
func (m Multihash) Validate() error {
	if uint64(len(m.Digest)) != m.Size {
		return errf("digest length %d does not match stated size %d", len(m.Digest), m.Size)
	}
	if m.Size > MaxDigestSize {
		return errf("digest size %d exceeds cap of %d", m.Size, MaxDigestSize)
	}
	return nil
}
