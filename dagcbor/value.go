// Package dagcbor implements the strict DAG-CBOR codec: a canonical,
// restricted profile of CBOR used as the wire form for IPLD data. It
// enforces canonical-form rules on decode (sorted map keys, minimal
// integer and length encoding, no non-finite floats, no indefinite-length
// items) and produces bit-identical output on encode regardless of the
// input map's iteration order.
//
// https://dasl.ing/cbor.html, https://ipld.io/specs/codecs/dag-cbor/spec/
//
// The teacher's own DRISL package (drisl.go) wraps a reflection-based
// struct-marshaling CBOR library (fxamacker/cbor/v2) configured with
// exactly this canonical-form recipe (Sort: SortBytewiseLexical,
// ShortestFloat: None, NaNConvert: Reject, EnforceSort, tag 42 for CIDs).
// That library marshals Go structs/interfaces by reflection; it has no
// way to produce or consume the closed IPLD Value tagged union this
// package's contract requires, so the codec here is hand-written over a
// byte cursor instead, reproducing the same canonical-form recipe by hand.
package dagcbor

import "github.com/hyphacoop/go-dasl-codec/cid"

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindString
	KindList
	KindMap
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Int is a signed integer over the closed range [-2^64, 2^64-1], which
// does not fit in any single fixed-width Go integer type. Neg == false
// means the value is Abs; Neg == true means the value is -1-Abs. This is
// exactly the major-0/major-1 CBOR split, carried straight through instead
// of collapsed into a (necessarily lossy) int64.
type Int struct {
	Neg bool
	Abs uint64
}

// FromInt64 builds an Int from a Go int64.
func FromInt64(v int64) Int {
	if v >= 0 {
		return Int{Neg: false, Abs: uint64(v)}
	}
	return Int{Neg: true, Abs: uint64(-1 - v)}
}

// FromUint64 builds a non-negative Int from a Go uint64.
func FromUint64(v uint64) Int {
	return Int{Neg: false, Abs: v}
}

// Int64 returns i as an int64, and false if i falls outside int64's range.
func (i Int) Int64() (int64, bool) {
	if !i.Neg {
		if i.Abs > 1<<63-1 {
			return 0, false
		}
		return int64(i.Abs), true
	}
	if i.Abs >= 1<<63 {
		return 0, false
	}
	return -1 - int64(i.Abs), true
}

// String renders i in ordinary decimal notation, for error messages and
// tests.
func (i Int) String() string {
	if !i.Neg {
		return uitoa(i.Abs)
	}
	// -1-Abs, computed in decimal without overflowing int64/uint64.
	if i.Abs == ^uint64(0) {
		return "-18446744073709551616"
	}
	return "-" + uitoa(i.Abs+1)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}

// MapEntry is one key/value pair of a Value of KindMap.
type MapEntry struct {
	Key   string
	Value Value
}

// Value is the IPLD data model value: a closed tagged union over the
// kinds DAG-CBOR can carry. Exactly one payload field is meaningful,
// selected by Kind; the rest are zero. This mirrors the teacher's
// pattern of a single struct type standing in for a sum type (the
// teacher's cid.Cid wraps go-cid's Cid the same way), generalized here to a true
// multi-variant union since Value has more than one non-trivial shape.
type Value struct {
	Kind Kind

	Bool   bool
	Int    Int
	Float  float64
	Bytes  []byte
	String string
	List   []Value
	Map    []MapEntry
	Link   cid.Cid
}

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int64(v int64) Value          { return Value{Kind: KindInt, Int: FromInt64(v)} }
func Uint64(v uint64) Value        { return Value{Kind: KindInt, Int: FromUint64(v)} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func Bytes(b []byte) Value         { return Value{Kind: KindBytes, Bytes: b} }
func String(s string) Value        { return Value{Kind: KindString, String: s} }
func List(items []Value) Value     { return Value{Kind: KindList, List: items} }
func Map(entries []MapEntry) Value { return Value{Kind: KindMap, Map: entries} }
func Link(c cid.Cid) Value         { return Value{Kind: KindLink, Link: c} }

// Equal reports whether v and other represent the same IPLD value. Map
// equality does not depend on entry order, since canonical order is
// already an encoding concern, not an identity concern.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindBytes:
		return string(v.Bytes) == string(other.Bytes)
	case KindString:
		return v.String == other.String
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for _, e := range v.Map {
			found := false
			for _, o := range other.Map {
				if o.Key == e.Key {
					if !e.Value.Equal(o.Value) {
						return false
					}
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case KindLink:
		return string(v.Link.Bytes()) == string(other.Link.Bytes())
	default:
		return false
	}
}
