package dagcbor

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/hyphacoop/go-dasl-codec/cid"
)

// maxDepth bounds array/map nesting. The source uses host-stack recursion
// guarded by a depth counter; this decoder does the same with an explicit
// counter rather than an explicit work stack, since Go's call stack grows
// on demand and 500 frames is far short of any practical stack limit.
const maxDepth = 500

type decoder struct {
	buf   []byte
	pos   int
	depth int
}

// Decode parses a single DAG-CBOR value from buf. The buffer must be
// consumed completely; any trailing bytes are reported as
// MultipleObjects, not silently ignored.
func Decode(buf []byte) (Value, error) {
	d := &decoder{buf: buf}
	v, err := d.decodeValue()
	if err != nil {
		return Value{}, err
	}
	if d.pos != len(buf) {
		return Value{}, errf(ErrMultipleObjects,
			"multiple objects: decoded one dag-cbor value from %d of %d bytes; trailing bytes remain (use DecodeMulti for concatenated values)",
			d.pos, len(buf))
	}
	return v, nil
}

// DecodeMulti parses a sequence of concatenated DAG-CBOR values, reading
// until buf is exhausted.
func DecodeMulti(buf []byte) ([]Value, error) {
	d := &decoder{buf: buf}
	var out []Value
	for d.pos < len(buf) {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) need(n int) error {
	if len(d.buf)-d.pos < n {
		return errf(ErrUnexpectedEof, "unexpected end of input: need %d more byte(s), have %d", n, len(d.buf)-d.pos)
	}
	return nil
}

func (d *decoder) takeBytes(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)-d.pos) {
		return nil, errf(ErrUnexpectedEof, "unexpected end of input: need %d byte(s), have %d", n, len(d.buf)-d.pos)
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

// capHint bounds a slice preallocation by n, the attacker-controlled
// element count claimed in the header, against the bytes actually
// remaining (every array/map element needs at least one byte), so a
// malicious huge count can't force an outsized allocation up front.
func (d *decoder) capHint(n uint64) int {
	remaining := uint64(len(d.buf) - d.pos)
	if n > remaining {
		n = remaining
	}
	return int(n)
}

// readArgument reads the length/value argument that follows a head byte's
// additional-info field, enforcing minimal encoding: using a wider form
// than necessary is itself an InvalidDagCbor violation (spec.md §1 calls
// out "minimal integer encoding" as a canonical-form rule enforced
// bit-exactly, alongside sorted keys and no non-finite floats).
func (d *decoder) readArgument(additional byte) (uint64, error) {
	switch {
	case additional < 24:
		return uint64(additional), nil
	case additional == 24:
		if err := d.need(1); err != nil {
			return 0, err
		}
		v := uint64(d.buf[d.pos])
		d.pos++
		if v < 24 {
			return 0, errf(ErrInvalidDagCbor, "non-minimal integer encoding: %d encoded in a 1-byte argument", v)
		}
		return v, nil
	case additional == 25:
		if err := d.need(2); err != nil {
			return 0, err
		}
		v := uint64(binary.BigEndian.Uint16(d.buf[d.pos:]))
		d.pos += 2
		if v <= 0xff {
			return 0, errf(ErrInvalidDagCbor, "non-minimal integer encoding: %d encoded in a 2-byte argument", v)
		}
		return v, nil
	case additional == 26:
		if err := d.need(4); err != nil {
			return 0, err
		}
		v := uint64(binary.BigEndian.Uint32(d.buf[d.pos:]))
		d.pos += 4
		if v <= 0xffff {
			return 0, errf(ErrInvalidDagCbor, "non-minimal integer encoding: %d encoded in a 4-byte argument", v)
		}
		return v, nil
	case additional == 27:
		if err := d.need(8); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(d.buf[d.pos:])
		d.pos += 8
		if v <= 0xffffffff {
			return 0, errf(ErrInvalidDagCbor, "non-minimal integer encoding: %d encoded in an 8-byte argument", v)
		}
		return v, nil
	case additional == 31:
		return 0, errf(ErrInvalidDagCbor, "indefinite-length items are not supported")
	default: // 28, 29, 30: reserved
		return 0, errf(ErrInvalidDagCbor, "reserved additional info value %d", additional)
	}
}

func (d *decoder) decodeValue() (Value, error) {
	if err := d.need(1); err != nil {
		return Value{}, err
	}
	head := d.buf[d.pos]
	major := head >> 5
	additional := head & 0x1f
	d.pos++

	switch major {
	case 0: // unsigned integer
		arg, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: Int{Neg: false, Abs: arg}}, nil

	case 1: // negative integer: encoded n denotes -1-n
		arg, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: Int{Neg: true, Abs: arg}}, nil

	case 2: // byte string
		n, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		b, err := d.takeBytes(n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBytes, Bytes: append([]byte(nil), b...)}, nil

	case 3: // text string
		n, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		b, err := d.takeBytes(n)
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(b) {
			return Value{}, errf(ErrInvalidUtf8, "invalid UTF-8 string")
		}
		return Value{Kind: KindString, String: string(b)}, nil

	case 4: // array
		n, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		d.depth++
		if d.depth > maxDepth {
			d.depth--
			return Value{}, errf(ErrRecursionLimit, "dag-cbor decoding exceeded the recursion limit of %d nested arrays/maps", maxDepth)
		}
		items := make([]Value, 0, d.capHint(n))
		for i := uint64(0); i < n; i++ {
			v, err := d.decodeValue()
			if err != nil {
				d.depth--
				return Value{}, err
			}
			items = append(items, v)
		}
		d.depth--
		return Value{Kind: KindList, List: items}, nil

	case 5: // map
		n, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		d.depth++
		if d.depth > maxDepth {
			d.depth--
			return Value{}, errf(ErrRecursionLimit, "dag-cbor decoding exceeded the recursion limit of %d nested arrays/maps", maxDepth)
		}
		entries := make([]MapEntry, 0, d.capHint(n))
		var prevKey string
		havePrev := false
		for i := uint64(0); i < n; i++ {
			keyVal, err := d.decodeValue()
			if err != nil {
				d.depth--
				return Value{}, err
			}
			if keyVal.Kind != KindString {
				d.depth--
				return Value{}, errf(ErrNonStringMapKey, "Map keys must be strings")
			}
			key := keyVal.String
			if havePrev && key == prevKey {
				d.depth--
				return Value{}, errf(ErrMapKeyOrder, "Duplicate keys are not allowed: %q", key)
			}
			if havePrev && !keyLess(prevKey, key) {
				d.depth--
				return Value{}, errf(ErrMapKeyOrder, "map keys must be sorted: %q does not follow %q in canonical order", key, prevKey)
			}
			prevKey, havePrev = key, true

			val, err := d.decodeValue()
			if err != nil {
				d.depth--
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		d.depth--
		return Value{Kind: KindMap, Map: entries}, nil

	case 6: // tag: only 42 (CID link) is recognized
		tagNum, err := d.readArgument(additional)
		if err != nil {
			return Value{}, err
		}
		if tagNum != 42 {
			return Value{}, errf(ErrInvalidDagCbor, "unsupported cbor tag %d (only tag 42 CID links are allowed)", tagNum)
		}
		inner, err := d.decodeValue()
		if err != nil {
			return Value{}, err
		}
		if inner.Kind != KindBytes {
			return Value{}, errf(ErrInvalidDagCbor, "tag 42 must wrap a byte string")
		}
		if len(inner.Bytes) == 0 || inner.Bytes[0] != 0x00 {
			return Value{}, errf(ErrInvalidDagCbor, "tag 42 byte string must begin with the 0x00 multibase identity prefix")
		}
		c, n, err := cid.Parse(inner.Bytes[1:])
		if err != nil {
			return Value{}, errf(ErrInvalidDagCbor, "tag 42 link: %v", err)
		}
		if n != len(inner.Bytes)-1 {
			return Value{}, errf(ErrInvalidDagCbor, "tag 42 link has trailing bytes after the CID")
		}
		return Value{Kind: KindLink, Link: c}, nil

	case 7: // simple values and floats
		switch additional {
		case 20:
			return Value{Kind: KindBool, Bool: false}, nil
		case 21:
			return Value{Kind: KindBool, Bool: true}, nil
		case 22:
			return Value{Kind: KindNull}, nil
		case 25, 26:
			return Value{}, errf(ErrInvalidDagCbor, "half- and single-precision floats are not allowed, only binary64")
		case 27:
			if err := d.need(8); err != nil {
				return Value{}, err
			}
			bits := binary.BigEndian.Uint64(d.buf[d.pos:])
			d.pos += 8
			f := math.Float64frombits(bits)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return Value{}, errf(ErrNonFiniteFloat, "non-finite float (NaN or infinity) is not allowed")
			}
			return Value{Kind: KindFloat, Float: f}, nil
		case 31:
			return Value{}, errf(ErrInvalidDagCbor, "indefinite-length items are not supported")
		default:
			return Value{}, errf(ErrInvalidDagCbor, "unsupported simple value %d", additional)
		}

	default:
		return Value{}, errf(ErrInvalidDagCbor, "unsupported cbor major type %d", major)
	}
}

// keyLess reports whether a must sort strictly before b under canonical
// DAG-CBOR map key order: primary by byte length ascending, secondary by
// lexicographic byte order. Go's native string comparison is already a
// byte-wise lexicographic comparison over the UTF-8 encoding, so only the
// length tie-break needs to be applied explicitly.
func keyLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
