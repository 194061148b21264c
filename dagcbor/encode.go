package dagcbor

import (
	"encoding/binary"
	"math"
	"sort"
	"unicode/utf8"
)

// Encode renders v as its canonical DAG-CBOR byte encoding. Two Values
// that are Equal but built with map entries in different orders produce
// byte-identical output, since map keys are always re-sorted into
// canonical order here regardless of the order they arrive in.
func Encode(v Value) ([]byte, error) {
	return appendValue(nil, v)
}

// appendHead writes a CBOR head byte (major type + argument) using the
// shortest of the five encodings that fits value, which is what keeps
// Encode's output canonical: CBOR permits encoding small values with a
// needlessly wide argument, but DAG-CBOR forbids it.
func appendHead(dst []byte, major byte, value uint64) []byte {
	switch {
	case value < 24:
		return append(dst, major<<5|byte(value))
	case value <= 0xff:
		return append(dst, major<<5|24, byte(value))
	case value <= 0xffff:
		dst = append(dst, major<<5|25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(value))
		return append(dst, b[:]...)
	case value <= 0xffffffff:
		dst = append(dst, major<<5|26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(value))
		return append(dst, b[:]...)
	default:
		dst = append(dst, major<<5|27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], value)
		return append(dst, b[:]...)
	}
}

func appendValue(dst []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(dst, 0xf6), nil

	case KindBool:
		if v.Bool {
			return append(dst, 0xf5), nil
		}
		return append(dst, 0xf4), nil

	case KindInt:
		major := byte(0)
		if v.Int.Neg {
			major = 1
		}
		return appendHead(dst, major, v.Int.Abs), nil

	case KindFloat:
		// Always major-7/27 (8-byte binary64), even when the value would
		// fit in binary16/32: DAG-CBOR never shortens floats.
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, errf(ErrNonFiniteFloat, "cannot encode a non-finite float (NaN or infinity)")
		}
		dst = append(dst, 0xfb)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float))
		return append(dst, b[:]...), nil

	case KindBytes:
		dst = appendHead(dst, 2, uint64(len(v.Bytes)))
		return append(dst, v.Bytes...), nil

	case KindString:
		if !utf8.ValidString(v.String) {
			return nil, errf(ErrInvalidUtf8, "invalid UTF-8 string")
		}
		dst = appendHead(dst, 3, uint64(len(v.String)))
		return append(dst, v.String...), nil

	case KindList:
		dst = appendHead(dst, 4, uint64(len(v.List)))
		var err error
		for _, item := range v.List {
			dst, err = appendValue(dst, item)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil

	case KindMap:
		return appendMap(dst, v.Map)

	case KindLink:
		binCid := v.Link.Bytes()
		body := make([]byte, 0, len(binCid)+1)
		body = append(body, 0x00)
		body = append(body, binCid...)
		dst = appendHead(dst, 6, 42)
		dst = appendHead(dst, 2, uint64(len(body)))
		return append(dst, body...), nil

	default:
		return nil, errf(ErrInvalidDagCbor, "unsupported value kind %d", v.Kind)
	}
}

// appendMap sorts entries into canonical key order before writing them,
// which is what makes Encode independent of the caller's map iteration
// (or construction) order.
func appendMap(dst []byte, entries []MapEntry) ([]byte, error) {
	sorted := append([]MapEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return keyLess(sorted[i].Key, sorted[j].Key) })

	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Key == sorted[i].Key {
			return nil, errf(ErrMapKeyOrder, "map has duplicate key %q", sorted[i].Key)
		}
	}

	dst = appendHead(dst, 5, uint64(len(sorted)))
	var err error
	for _, e := range sorted {
		if !utf8.ValidString(e.Key) {
			return nil, errf(ErrInvalidUtf8, "invalid UTF-8 string")
		}
		dst = appendHead(dst, 3, uint64(len(e.Key)))
		dst = append(dst, e.Key...)
		dst, err = appendValue(dst, e.Value)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}
