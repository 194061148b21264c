package car

import (
	"errors"
	"fmt"
)

// Sentinels for the CAR-specific error kinds in spec.md §7. DAG-CBOR
// errors from a block payload propagate unwrapped, as do varint errors
// for a frame length with at least varint.MaxLen bytes left. A header
// frame that fails to decode is reported as ErrInvalidCarHeader, a block
// CID that fails to parse as ErrInvalidBlockCid, and a frame length varint
// cut short as ErrUnexpectedEof; each carries the inner error's text.
var (
	ErrUnsupportedCarVersion = errors.New("unsupported car version")
	ErrMissingHeaderKey      = errors.New("missing car header key")
	ErrEmptyRoots            = errors.New("empty roots")
	ErrInvalidCarHeader      = errors.New("invalid car header")
	ErrInvalidBlockCid       = errors.New("invalid block cid")
	ErrUnexpectedEof         = errors.New("unexpected end of input")
)

type carError struct {
	sentinel error
	reason   string
}

func (e *carError) Error() string { return e.reason }
func (e *carError) Unwrap() error { return e.sentinel }

func errf(sentinel error, format string, args ...any) error {
	return &carError{sentinel: sentinel, reason: fmt.Sprintf(format, args...)}
}
