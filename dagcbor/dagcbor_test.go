package dagcbor_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/hyphacoop/go-dasl-codec/dagcbor"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal %q: %v", s, err)
	}
	return b
}

// Scenario 1 from spec.md §8: input whose keys are not in plain
// lexicographic order still decodes fine (x before aaa is the canonical
// order, length 1 < length 3); re-encoding either insertion order of the
// same pairs yields this exact byte sequence.
func TestCanonicalMapOrderDecodeAndEncode(t *testing.T) {
	raw := hexBytes(t, "a26178026361616101")

	v, err := dagcbor.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != dagcbor.KindMap || len(v.Map) != 2 {
		t.Fatalf("got %+v", v)
	}
	if v.Map[0].Key != "x" || v.Map[1].Key != "aaa" {
		t.Fatalf("got keys %q, %q", v.Map[0].Key, v.Map[1].Key)
	}

	for _, order := range [][]dagcbor.MapEntry{
		{{Key: "aaa", Value: dagcbor.Int64(1)}, {Key: "x", Value: dagcbor.Int64(2)}},
		{{Key: "x", Value: dagcbor.Int64(2)}, {Key: "aaa", Value: dagcbor.Int64(1)}},
	} {
		got, err := dagcbor.Encode(dagcbor.Map(order))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("Encode(%v) = %x, want %x", order, got, raw)
		}
	}
}

// Scenario 2: {"def":1,"abc":2}, both keys length 3 but in the wrong
// lexicographic order.
func TestMapKeyOrderWrongLex(t *testing.T) {
	raw := hexBytes(t, "a263646566016361626302")
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrMapKeyOrder) {
		t.Fatalf("got %v, want ErrMapKeyOrder", err)
	}
}

// Duplicate-key case, supplemented from original_source/pytests/test_dag_cbor.py,
// which always surfaces as a MapKeyOrder violation, never a distinct
// "duplicate keys" kind.
func TestMapKeyOrderDuplicate(t *testing.T) {
	raw := hexBytes(t, "a263616263016361626302")
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrMapKeyOrder) {
		t.Fatalf("got %v, want ErrMapKeyOrder", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("Duplicate keys are not allowed")) {
		t.Fatalf("got message %q", err.Error())
	}
}

// Scenario 3: {1: 2}, a non-string map key.
func TestNonStringMapKey(t *testing.T) {
	raw := hexBytes(t, "a10102")
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrNonStringMapKey) {
		t.Fatalf("got %v, want ErrNonStringMapKey", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("Map keys must be strings")) {
		t.Fatalf("got message %q", err.Error())
	}
}

// Scenario 4: integer boundaries. 2^64-1 and -2^64 round-trip exactly.
func TestIntegerBoundaries(t *testing.T) {
	maxRaw := hexBytes(t, "1bffffffffffffffff")
	v, err := dagcbor.Decode(maxRaw)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != dagcbor.KindInt || v.Int.Neg || v.Int.Abs != ^uint64(0) {
		t.Fatalf("got %+v", v.Int)
	}
	got, err := dagcbor.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, maxRaw) {
		t.Fatalf("got %x, want %x", got, maxRaw)
	}

	minRaw := hexBytes(t, "3bffffffffffffffff")
	v, err = dagcbor.Decode(minRaw)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != dagcbor.KindInt || !v.Int.Neg || v.Int.Abs != ^uint64(0) {
		t.Fatalf("got %+v", v.Int)
	}
	if v.Int.String() != "-18446744073709551616" {
		t.Fatalf("got %s", v.Int.String())
	}
	got, err = dagcbor.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, minRaw) {
		t.Fatalf("got %x, want %x", got, minRaw)
	}
}

// Scenario 5: binary64 NaN must error, both on decode and on encode.
func TestNonFiniteFloat(t *testing.T) {
	raw := hexBytes(t, "fb7ff8000000000000")
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrNonFiniteFloat) {
		t.Fatalf("got %v, want ErrNonFiniteFloat", err)
	}

	_, err = dagcbor.Encode(dagcbor.Float(nan()))
	if !errors.Is(err, dagcbor.ErrNonFiniteFloat) {
		t.Fatalf("got %v, want ErrNonFiniteFloat", err)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

// Scenario from spec.md §8: invalid UTF-8 continuation byte.
func TestInvalidUtf8(t *testing.T) {
	raw := hexBytes(t, "62c328")
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrInvalidUtf8) {
		t.Fatalf("got %v, want ErrInvalidUtf8", err)
	}
}

// Recursion cap: a deeply nested list of lists must fail with
// RecursionLimit, not a stack overflow or silent success.
func TestRecursionLimit(t *testing.T) {
	var buf []byte
	const depth = 600
	for i := 0; i < depth; i++ {
		buf = append(buf, 0x81) // array of length 1
	}
	buf = append(buf, 0x00) // innermost element: uint 0

	_, err := dagcbor.Decode(buf)
	if !errors.Is(err, dagcbor.ErrRecursionLimit) {
		t.Fatalf("got %v, want ErrRecursionLimit", err)
	}
}

// Trailing bytes: decode_dag_cbor errors on `00 00`; decode_dag_cbor_multi
// returns [0, 0].
func TestTrailingBytes(t *testing.T) {
	raw := hexBytes(t, "0000")

	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrMultipleObjects) {
		t.Fatalf("got %v, want ErrMultipleObjects", err)
	}

	vs, err := dagcbor.DecodeMulti(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || vs[0].Kind != dagcbor.KindInt || vs[1].Kind != dagcbor.KindInt {
		t.Fatalf("got %+v", vs)
	}
	if vs[0].Int.Abs != 0 || vs[1].Int.Abs != 0 {
		t.Fatalf("got %+v", vs)
	}
}

func TestNonMinimalIntegerRejected(t *testing.T) {
	// Major 0, additional 24 (1-byte form) encoding the value 5, which
	// fits in the direct 0-23 form and so is non-canonical.
	raw := []byte{0x18, 0x05}
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrInvalidDagCbor) {
		t.Fatalf("got %v, want ErrInvalidDagCbor", err)
	}
}

func TestIndefiniteLengthRejected(t *testing.T) {
	// Major 4 (array), additional 31 (indefinite length).
	raw := []byte{0x9f, 0x01, 0xff}
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrInvalidDagCbor) {
		t.Fatalf("got %v, want ErrInvalidDagCbor", err)
	}
}

func TestUnexpectedEof(t *testing.T) {
	// Byte string major 2 claiming 4 bytes but only 1 follows.
	raw := []byte{0x44, 0x01}
	_, err := dagcbor.Decode(raw)
	if !errors.Is(err, dagcbor.ErrUnexpectedEof) {
		t.Fatalf("got %v, want ErrUnexpectedEof", err)
	}
}

func TestRoundTripScalarsAndContainers(t *testing.T) {
	values := []dagcbor.Value{
		dagcbor.Null(),
		dagcbor.Bool(true),
		dagcbor.Bool(false),
		dagcbor.Int64(-1),
		dagcbor.Int64(1000),
		dagcbor.Uint64(^uint64(0)),
		dagcbor.Float(3.25),
		dagcbor.Bytes([]byte{1, 2, 3}),
		dagcbor.String("hello, dag-cbor"),
		dagcbor.List([]dagcbor.Value{dagcbor.Int64(1), dagcbor.String("two"), dagcbor.Null()}),
		dagcbor.Map([]dagcbor.MapEntry{
			{Key: "a", Value: dagcbor.Int64(1)},
			{Key: "bb", Value: dagcbor.Bool(true)},
		}),
	}

	for _, v := range values {
		buf, err := dagcbor.Encode(v)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", v, err)
		}
		got, err := dagcbor.Decode(buf)
		if err != nil {
			t.Fatalf("Decode(%x): %v", buf, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: %+v != %+v", got, v)
		}
	}
}
