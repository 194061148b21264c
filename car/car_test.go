package car_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hyphacoop/go-dasl-codec/car"
	"github.com/hyphacoop/go-dasl-codec/cid"
	"github.com/hyphacoop/go-dasl-codec/dagcbor"
	"github.com/hyphacoop/go-dasl-codec/varint"
)

func mustCid(t *testing.T, b byte) cid.Cid {
	t.Helper()
	digest := bytes.Repeat([]byte{b}, 32)
	raw := append([]byte{0x01, 0x71, 0x12, 0x20}, digest...)
	c, err := cid.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// buildFrame prefixes payload with its uvarint length.
func buildFrame(payload []byte) []byte {
	out := varint.Uvarint(uint64(len(payload)))
	return append(out, payload...)
}

func buildCar(t *testing.T, roots []cid.Cid, blocks []car.BlockEntry) []byte {
	t.Helper()

	rootLinks := make([]dagcbor.Value, len(roots))
	for i, r := range roots {
		rootLinks[i] = dagcbor.Link(r)
	}
	header, err := dagcbor.Encode(dagcbor.Map([]dagcbor.MapEntry{
		{Key: "version", Value: dagcbor.Int64(1)},
		{Key: "roots", Value: dagcbor.List(rootLinks)},
	}))
	if err != nil {
		t.Fatal(err)
	}

	var out []byte
	out = append(out, buildFrame(header)...)
	for _, b := range blocks {
		blockBytes, err := dagcbor.Encode(b.Value)
		if err != nil {
			t.Fatal(err)
		}
		payload := append(append([]byte(nil), b.Cid.Bytes()...), blockBytes...)
		out = append(out, buildFrame(payload)...)
	}
	return out
}

func TestDecodeBasic(t *testing.T) {
	root := mustCid(t, 0xaa)
	blocks := []car.BlockEntry{
		{Cid: root, Value: dagcbor.Map([]dagcbor.MapEntry{{Key: "hello", Value: dagcbor.String("world")}})},
	}
	buf := buildCar(t, []cid.Cid{root}, blocks)

	header, got, err := car.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if header.Version != 1 || len(header.Roots) != 1 || !bytes.Equal(header.Roots[0].Bytes(), root.Bytes()) {
		t.Fatalf("got header %+v", header)
	}
	v, ok := got[string(root.Bytes())]
	if !ok {
		t.Fatalf("block for root not found in %v", got)
	}
	if !v.Equal(blocks[0].Value) {
		t.Fatalf("got %+v, want %+v", v, blocks[0].Value)
	}
}

func TestDecodeTuplePreservesDuplicates(t *testing.T) {
	root := mustCid(t, 0xbb)
	blocks := []car.BlockEntry{
		{Cid: root, Value: dagcbor.Int64(1)},
		{Cid: root, Value: dagcbor.Int64(2)},
	}
	buf := buildCar(t, []cid.Cid{root}, blocks)

	_, entries, err := car.DecodeTuple(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[0].Value.Equal(dagcbor.Int64(1)) || !entries[1].Value.Equal(dagcbor.Int64(2)) {
		t.Fatalf("got %+v", entries)
	}
}

func TestDecodeLastWriterWins(t *testing.T) {
	root := mustCid(t, 0xcc)
	blocks := []car.BlockEntry{
		{Cid: root, Value: dagcbor.Int64(1)},
		{Cid: root, Value: dagcbor.Int64(2)},
	}
	buf := buildCar(t, []cid.Cid{root}, blocks)

	_, got, err := car.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got[string(root.Bytes())].Equal(dagcbor.Int64(2)) {
		t.Fatalf("got %+v, want last-writer-wins value 2", got)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	root := mustCid(t, 0xdd)
	header, err := dagcbor.Encode(dagcbor.Map([]dagcbor.MapEntry{
		{Key: "version", Value: dagcbor.Int64(2)},
		{Key: "roots", Value: dagcbor.List([]dagcbor.Value{dagcbor.Link(root)})},
	}))
	if err != nil {
		t.Fatal(err)
	}
	buf := buildFrame(header)

	_, _, err = car.Decode(buf)
	if !errors.Is(err, car.ErrUnsupportedCarVersion) {
		t.Fatalf("got %v, want ErrUnsupportedCarVersion", err)
	}
}

func TestEmptyRoots(t *testing.T) {
	header, err := dagcbor.Encode(dagcbor.Map([]dagcbor.MapEntry{
		{Key: "version", Value: dagcbor.Int64(1)},
		{Key: "roots", Value: dagcbor.List(nil)},
	}))
	if err != nil {
		t.Fatal(err)
	}
	buf := buildFrame(header)

	_, _, err = car.Decode(buf)
	if !errors.Is(err, car.ErrEmptyRoots) {
		t.Fatalf("got %v, want ErrEmptyRoots", err)
	}
}

func TestMissingHeaderKey(t *testing.T) {
	header, err := dagcbor.Encode(dagcbor.Map([]dagcbor.MapEntry{
		{Key: "version", Value: dagcbor.Int64(1)},
	}))
	if err != nil {
		t.Fatal(err)
	}
	buf := buildFrame(header)

	_, _, err = car.Decode(buf)
	if !errors.Is(err, car.ErrMissingHeaderKey) {
		t.Fatalf("got %v, want ErrMissingHeaderKey", err)
	}
}

func TestTruncatedTrailingFrame(t *testing.T) {
	root := mustCid(t, 0xee)
	buf := buildCar(t, []cid.Cid{root}, []car.BlockEntry{
		{Cid: root, Value: dagcbor.Int64(1)},
	})
	truncated := buf[:len(buf)-3]

	_, _, err := car.Decode(truncated)
	if !errors.Is(err, car.ErrUnexpectedEof) {
		t.Fatalf("got %v, want ErrUnexpectedEof", err)
	}
}

func TestTruncatedBlockLengthVarint(t *testing.T) {
	root := mustCid(t, 0x11)
	buf := buildCar(t, []cid.Cid{root}, []car.BlockEntry{
		{Cid: root, Value: dagcbor.Int64(1)},
	})
	// Append a dangling continuation-flagged byte as the start of a new
	// frame's length varint, with nothing following it.
	buf = append(buf, 0x80)

	_, _, err := car.Decode(buf)
	if !errors.Is(err, car.ErrUnexpectedEof) {
		t.Fatalf("got %v, want ErrUnexpectedEof", err)
	}
}

func TestInvalidBlockCid(t *testing.T) {
	root := mustCid(t, 0xff)
	header, err := dagcbor.Encode(dagcbor.Map([]dagcbor.MapEntry{
		{Key: "version", Value: dagcbor.Int64(1)},
		{Key: "roots", Value: dagcbor.List([]dagcbor.Value{dagcbor.Link(root)})},
	}))
	if err != nil {
		t.Fatal(err)
	}
	var buf []byte
	buf = append(buf, buildFrame(header)...)
	// A block frame whose payload starts with a varint that overflows,
	// never forming a valid CID.
	buf = append(buf, buildFrame([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})...)

	_, _, err = car.Decode(buf)
	if !errors.Is(err, car.ErrInvalidBlockCid) {
		t.Fatalf("got %v, want ErrInvalidBlockCid", err)
	}
}
