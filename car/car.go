// Package car decodes CAR v1 archives: a header frame followed by
// length-prefixed (CID, block-bytes) frames, each block's bytes a
// DAG-CBOR value.
//
// https://ipld.io/specs/transport/car/carv1/
//
// The framing loop is grounded on ipld-go-car's util.go (LdRead), the
// only example repo in the pack with CAR support; the teacher (DASL) has
// no notion of an archive container at all. We adapt LdRead's
// bufio.Reader-based loop to a single-pass cursor over an in-memory
// []byte, since this package's contract is "decode one complete buffer",
// not "stream from an io.Reader".
package car

import (
	"github.com/hyphacoop/go-dasl-codec/cid"
	"github.com/hyphacoop/go-dasl-codec/dagcbor"
	"github.com/hyphacoop/go-dasl-codec/varint"
)

// Header is the CAR v1 header: a DAG-CBOR map with at least "version"
// and "roots" keys.
type Header struct {
	Version uint64
	Roots   []cid.Cid
}

// BlockEntry is one (CID, decoded value) pair in source order, as
// returned by DecodeTuple.
type BlockEntry struct {
	Cid   cid.Cid
	Value dagcbor.Value
}

// readFrame reads one uvarint-length-prefixed frame from buf starting at
// pos, returning the frame payload and the position just past it.
func readFrame(buf []byte, pos int) (payload []byte, next int, err error) {
	length, n, err := varint.ReadUvarint(buf[pos:])
	if err != nil {
		// A length-varint that runs out of bytes before it can terminate
		// (fewer than MaxLen bytes remain, all continuation-flagged) is a
		// truncated frame, not a malformed one: that's the only way
		// ReadUvarint fails short of MaxLen bytes of remaining input.
		// spec.md §4.5 treats any such truncation as ErrUnexpectedEof;
		// a genuinely malformed varint with a full MaxLen bytes available
		// propagates unwrapped, same as block-payload decode failures.
		if len(buf)-pos < varint.MaxLen {
			return nil, 0, errf(ErrUnexpectedEof, "truncated frame length varint: %v", err)
		}
		return nil, 0, err
	}
	start := pos + n
	end := start + int(length)
	if length > uint64(len(buf)-start) {
		return nil, 0, errf(ErrUnexpectedEof, "truncated frame: need %d bytes, have %d", length, len(buf)-start)
	}
	return buf[start:end], end, nil
}

func parseHeader(payload []byte) (Header, error) {
	v, err := dagcbor.Decode(payload)
	if err != nil {
		return Header{}, errf(ErrInvalidCarHeader, "header frame is not valid dag-cbor: %v", err)
	}
	if v.Kind != dagcbor.KindMap {
		return Header{}, errf(ErrInvalidCarHeader, "header frame must dag-cbor-decode to a map")
	}

	var (
		versionEntry *dagcbor.MapEntry
		rootsEntry   *dagcbor.MapEntry
	)
	for i := range v.Map {
		switch v.Map[i].Key {
		case "version":
			versionEntry = &v.Map[i]
		case "roots":
			rootsEntry = &v.Map[i]
		}
	}

	if versionEntry == nil {
		return Header{}, errf(ErrMissingHeaderKey, "car header missing required key \"version\"")
	}
	if rootsEntry == nil {
		return Header{}, errf(ErrMissingHeaderKey, "car header missing required key \"roots\"")
	}

	if versionEntry.Value.Kind != dagcbor.KindInt || versionEntry.Value.Int.Neg {
		return Header{}, errf(ErrInvalidCarHeader, "car header \"version\" must be a non-negative integer")
	}
	if versionEntry.Value.Int.Abs != 1 {
		return Header{}, errf(ErrUnsupportedCarVersion, "unsupported car version %s, only version 1 is supported", versionEntry.Value.Int.String())
	}

	if rootsEntry.Value.Kind != dagcbor.KindList {
		return Header{}, errf(ErrInvalidCarHeader, "car header \"roots\" must be a list")
	}
	if len(rootsEntry.Value.List) == 0 {
		return Header{}, errf(ErrEmptyRoots, "car header \"roots\" must not be empty")
	}

	roots := make([]cid.Cid, len(rootsEntry.Value.List))
	for i, rv := range rootsEntry.Value.List {
		if rv.Kind != dagcbor.KindLink {
			return Header{}, errf(ErrInvalidCarHeader, "car header root %d is not a CID link", i)
		}
		roots[i] = rv.Link
	}

	return Header{Version: 1, Roots: roots}, nil
}

func parseBlock(payload []byte) (cid.Cid, dagcbor.Value, error) {
	c, n, err := cid.Parse(payload)
	if err != nil {
		return cid.Cid{}, dagcbor.Value{}, errf(ErrInvalidBlockCid, "block frame: %v", err)
	}
	v, err := dagcbor.Decode(payload[n:])
	if err != nil {
		return cid.Cid{}, dagcbor.Value{}, err
	}
	return c, v, nil
}

// Decode parses a CAR v1 archive into its header and a mapping from
// binary CID bytes to decoded block value. When the same CID appears in
// more than one block frame, the last occurrence wins.
func Decode(buf []byte) (Header, map[string]dagcbor.Value, error) {
	header, rest, err := decodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	blocks := make(map[string]dagcbor.Value)
	pos := 0
	for pos < len(rest) {
		payload, next, err := readFrame(rest, pos)
		if err != nil {
			return Header{}, nil, err
		}
		c, v, err := parseBlock(payload)
		if err != nil {
			return Header{}, nil, err
		}
		blocks[string(c.Bytes())] = v
		pos = next
	}
	return header, blocks, nil
}

// DecodeTuple parses a CAR v1 archive the same way Decode does, but
// preserves every block occurrence (including duplicate CIDs) in source
// order rather than folding them into a map.
func DecodeTuple(buf []byte) (Header, []BlockEntry, error) {
	header, rest, err := decodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	var entries []BlockEntry
	pos := 0
	for pos < len(rest) {
		payload, next, err := readFrame(rest, pos)
		if err != nil {
			return Header{}, nil, err
		}
		c, v, err := parseBlock(payload)
		if err != nil {
			return Header{}, nil, err
		}
		entries = append(entries, BlockEntry{Cid: c, Value: v})
		pos = next
	}
	return header, entries, nil
}

// decodeHeader reads the leading header frame and returns the header
// plus the remaining bytes (the block frame stream).
func decodeHeader(buf []byte) (Header, []byte, error) {
	payload, next, err := readFrame(buf, 0)
	if err != nil {
		return Header{}, nil, err
	}
	header, err := parseHeader(payload)
	if err != nil {
		return Header{}, nil, err
	}
	return header, buf[next:], nil
}
