// Package cid implements Content IDentifiers: a version, a multicodec, and
// a multihash, either as CIDv1 (version-varint || codec-varint ||
// multihash) or the legacy CIDv0 form (a bare 34-byte SHA-256 multihash
// rendered as base58btc).
//
// This generalizes the teacher's restricted "DASL CID" (cid.Cid in
// hyphacoop/go-dasl, which only allows codec in {raw, dag-cbor} and hash in
// {sha256, blake3}) to accept any multicodec and multihash code, which CAR
// archives and general IPLD data require. The struct shape — an "always
// valid unless zero-valued" value type with constructor functions that
// return a typed error — is kept from the teacher.
package cid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/hyphacoop/go-dasl-codec/multibase"
	"github.com/hyphacoop/go-dasl-codec/multihash"
	"github.com/hyphacoop/go-dasl-codec/varint"
)

const (
	// CodecDagPb is the multicodec for CIDv0, which has no explicit codec
	// varint of its own.
	CodecDagPb = 0x70

	// HashSha256 is the multihash code legacy CIDv0 digests always use.
	HashSha256 = 0x12

	v0DigestSize = 0x20
	v0Length     = 34
)

// ErrInvalidCid is the sentinel wrapped by every error this package creates.
// Errors from the multibase package (decoding text input, encoding output)
// are returned as they are, without this sentinel.
var ErrInvalidCid = errors.New("invalid cid")

type cidError struct{ reason string }

func (e *cidError) Error() string { return "invalid cid: " + e.reason }
func (e *cidError) Unwrap() error { return ErrInvalidCid }
func errf(format string, args ...any) error {
	return &cidError{reason: fmt.Sprintf(format, args...)}
}

// Cid is a parsed Content IDentifier.
//
// Version is 0 or 1. A version-0 Cid always has Codec == CodecDagPb and a
// SHA-256 Hash; it has no binary codec/version prefix of its own.
type Cid struct {
	Version uint64
	Codec   uint64
	Hash    multihash.Multihash
}

// Bytes returns the binary encoding of c: for CIDv1, version-varint ||
// codec-varint || multihash; for CIDv0, the bare multihash.
func (c Cid) Bytes() []byte {
	if c.Version == 0 {
		return c.Hash.Bytes()
	}
	buf := varint.Uvarint(c.Version)
	buf = varint.AppendUvarint(buf, c.Codec)
	return c.Hash.Append(buf)
}

// Parse reads a CID from the front of buf using the general CIDv1 binary
// path (version-varint, codec-varint, multihash) and returns the number of
// bytes consumed. Unlike Decode, it does not special-case the bare CIDv0
// multihash form, since that form is only distinguishable when the whole
// buffer is known to be exactly 34 bytes; this is the form CAR block frames
// use, where trailing block bytes follow the CID.
func Parse(buf []byte) (Cid, int, error) {
	version, n1, err := varint.ReadUvarint(buf)
	if err != nil {
		return Cid{}, 0, errf("bad version varint: %v", err)
	}
	if version > 1 {
		return Cid{}, 0, errf("unsupported version %d", version)
	}
	codec, n2, err := varint.ReadUvarint(buf[n1:])
	if err != nil {
		return Cid{}, 0, errf("bad codec varint: %v", err)
	}
	hash, n3, err := multihash.Parse(buf[n1+n2:])
	if err != nil {
		return Cid{}, 0, errf("bad multihash: %v", err)
	}
	return Cid{Version: version, Codec: codec, Hash: hash}, n1 + n2 + n3, nil
}

func isV0Text(s string) bool {
	return len(s) == 46 && strings.HasPrefix(s, "Qm")
}

func decodeV0Bytes(buf []byte) (Cid, error) {
	hash, n, err := multihash.Parse(buf)
	if err != nil || n != len(buf) {
		return Cid{}, errf("malformed CIDv0 multihash")
	}
	return Cid{Version: 0, Codec: CodecDagPb, Hash: hash}, nil
}

// Decode parses a complete CID from input, which must be either a string
// (multibase text, or a length-46 "Qm..." CIDv0 string) or a []byte (a
// binary CID, or the bare 34-byte CIDv0 multihash).
func Decode(input any) (Cid, error) {
	switch v := input.(type) {
	case string:
		if isV0Text(v) {
			raw, err := base58.Decode(v)
			if err != nil {
				return Cid{}, errf("bad base58 in CIDv0 string: %v", err)
			}
			return decodeV0Bytes(raw)
		}
		_, data, err := multibase.Decode(v)
		if err != nil {
			return Cid{}, err
		}
		return decodeBinaryComplete(data)
	case []byte:
		return decodeBinaryComplete(v)
	default:
		return Cid{}, fmt.Errorf("%w: decode input must be string or []byte, got %T", ErrInvalidCid, input)
	}
}

func decodeBinaryComplete(buf []byte) (Cid, error) {
	if len(buf) < 2 {
		return Cid{}, errf("too few bytes (%d)", len(buf))
	}
	if len(buf) == v0Length && buf[0] == HashSha256 && buf[1] == v0DigestSize {
		return decodeV0Bytes(buf)
	}
	c, n, err := Parse(buf)
	if err != nil {
		return Cid{}, err
	}
	if n != len(buf) {
		return Cid{}, errf("trailing data after CID (%d of %d bytes consumed)", n, len(buf))
	}
	return c, nil
}

// Encode renders input (a string or []byte representing a CID, in any form
// Decode accepts) as multibase text.
//
// If input is already valid multibase text it is returned unchanged. A
// CIDv0 form (bare "Qm..." text, or a bare 34-byte SHA-256 multihash) is
// promoted to CIDv1 and rendered as base32-lowercase ('b') multibase text;
// this module does not produce CIDv0 text on encode.
func Encode(input any) (string, error) {
	if s, ok := input.(string); ok && !isV0Text(s) {
		if _, data, err := multibase.Decode(s); err == nil {
			if _, derr := decodeBinaryComplete(data); derr == nil {
				return s, nil
			}
		}
	}

	c, err := Decode(input)
	if err != nil {
		return "", err
	}

	var binary []byte
	if c.Version == 0 {
		binary = varint.Uvarint(1)
		binary = varint.AppendUvarint(binary, CodecDagPb)
		binary = c.Hash.Append(binary)
	} else {
		binary = c.Bytes()
	}
	return multibase.Encode('b', binary)
}
