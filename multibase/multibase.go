// Package multibase implements the multibase text encoding: a single
// leading code byte naming the base used to render the rest of the string.
//
// https://github.com/multiformats/multibase
//
// Base58 rendering is delegated to github.com/mr-tron/base58, a direct
// dependency of the pack's CID stack (transitively required by both
// ipld-go-car and the teacher through go-cid). Base16/32/64 build on the
// standard library's encoding/hex, encoding/base32 and encoding/base64,
// constructing the non-standard alphabets (z-base-32, base32hex, upper
// case variants) via base32.NewEncoding. Base2/8/10/36 have no dedicated
// Go package in this pack, so they are implemented directly against
// math/big.Int.Text/SetString, the standard idiomatic way to do
// arbitrary small-radix conversion in Go.
package multibase

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
)

// Sentinels. Wrap these with errors.Is to classify a failure.
var (
	ErrUnknownBaseCode     = errors.New("unknown multibase code")
	ErrInvalidBaseString   = errors.New("invalid multibase string")
	ErrUnsupportedDataType = errors.New("unsupported data type for multibase encode")
)

type codeErr struct{ code byte }

func (e *codeErr) Error() string {
	return fmt.Sprintf("unknown multibase code %q", e.code)
}
func (e *codeErr) Unwrap() error { return ErrUnknownBaseCode }

type bodyErr struct{ reason string }

func (e *bodyErr) Error() string     { return "invalid multibase string: " + e.reason }
func (e *bodyErr) Unwrap() error     { return ErrInvalidBaseString }
func newBodyErr(reason string) error { return &bodyErr{reason: reason} }

// base describes one registered multibase code.
type base struct {
	code    byte
	encode  func(data []byte) string
	decode  func(text string) ([]byte, error)
}

var (
	std32        = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
	std32Upper   = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.NoPadding)
	pad32        = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.StdPadding)
	pad32Upper   = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.StdPadding)
	hex32        = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)
	hex32Upper   = base32.NewEncoding("0123456789ABCDEFGHIJKLMNOPQRSTUV").WithPadding(base32.NoPadding)
	hex32Pad     = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.StdPadding)
	hex32PadUpper = base32.NewEncoding("0123456789ABCDEFGHIJKLMNOPQRSTUV").WithPadding(base32.StdPadding)
	z32          = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").WithPadding(base32.NoPadding)
)

func radixEncode(data []byte, radix int, upper bool) string {
	var zeros int
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}
	n := new(big.Int).SetBytes(data)
	rest := n.Text(radix)
	if n.Sign() == 0 {
		rest = ""
	}
	s := strings.Repeat("0", zeros) + rest
	if upper {
		s = strings.ToUpper(s)
	}
	return s
}

func radixDecode(text string, radix int) ([]byte, error) {
	lower := strings.ToLower(text)
	var zeros int
	for zeros < len(lower) && lower[zeros] == '0' {
		zeros++
	}
	rest := lower[zeros:]
	out := make([]byte, zeros)
	if rest == "" {
		return out, nil
	}
	n, ok := new(big.Int).SetString(rest, radix)
	if !ok {
		return nil, newBodyErr("characters outside base-" + fmt.Sprint(radix) + " alphabet")
	}
	return append(out, n.Bytes()...), nil
}

func wrapBase32(enc *base32.Encoding) (func([]byte) string, func(string) ([]byte, error)) {
	return func(data []byte) string {
			return enc.EncodeToString(data)
		}, func(text string) ([]byte, error) {
			b, err := enc.DecodeString(text)
			if err != nil {
				return nil, newBodyErr(err.Error())
			}
			return b, nil
		}
}

func wrapBase64(enc *base64.Encoding) (func([]byte) string, func(string) ([]byte, error)) {
	return func(data []byte) string {
			return enc.EncodeToString(data)
		}, func(text string) ([]byte, error) {
			b, err := enc.DecodeString(text)
			if err != nil {
				return nil, newBodyErr(err.Error())
			}
			return b, nil
		}
}

func wrapBase58(alphabet *base58.Alphabet) (func([]byte) string, func(string) ([]byte, error)) {
	return func(data []byte) string {
			return base58.EncodeAlphabet(data, alphabet)
		}, func(text string) ([]byte, error) {
			b, err := base58.DecodeAlphabet(text, alphabet)
			if err != nil {
				return nil, newBodyErr(err.Error())
			}
			return b, nil
		}
}

var table = func() map[byte]base {
	m := make(map[byte]base)
	add := func(code byte, enc func([]byte) string, dec func(string) ([]byte, error)) {
		m[code] = base{code: code, encode: enc, decode: dec}
	}

	add('0', func(d []byte) string { return radixEncode(d, 2, false) },
		func(s string) ([]byte, error) { return radixDecode(s, 2) })
	add('7', func(d []byte) string { return radixEncode(d, 8, false) },
		func(s string) ([]byte, error) { return radixDecode(s, 8) })
	add('9', func(d []byte) string { return radixEncode(d, 10, false) },
		func(s string) ([]byte, error) { return radixDecode(s, 10) })

	add('f', hex.EncodeToString, func(s string) ([]byte, error) {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, newBodyErr(err.Error())
		}
		return b, nil
	})
	add('F', func(d []byte) string { return strings.ToUpper(hex.EncodeToString(d)) },
		func(s string) ([]byte, error) {
			b, err := hex.DecodeString(strings.ToLower(s))
			if err != nil {
				return nil, newBodyErr(err.Error())
			}
			return b, nil
		})

	for code, enc := range map[byte]*base32.Encoding{
		'b': std32, 'B': std32Upper, 'c': pad32, 'C': pad32Upper,
		'v': hex32, 'V': hex32Upper, 't': hex32Pad, 'T': hex32PadUpper,
		'h': z32,
	} {
		e, d := wrapBase32(enc)
		add(code, e, d)
	}

	add('k', func(d []byte) string { return radixEncode(d, 36, false) },
		func(s string) ([]byte, error) { return radixDecode(s, 36) })
	add('K', func(d []byte) string { return radixEncode(d, 36, true) },
		func(s string) ([]byte, error) { return radixDecode(s, 36) })

	{
		e, d := wrapBase58(base58.BTCAlphabet)
		add('z', e, d)
	}
	{
		e, d := wrapBase58(base58.FlickrAlphabet)
		add('Z', e, d)
	}

	for code, enc := range map[byte]*base64.Encoding{
		'm': base64.RawStdEncoding, 'M': base64.StdEncoding,
		'u': base64.RawURLEncoding, 'U': base64.URLEncoding,
	} {
		e, d := wrapBase64(enc)
		add(code, e, d)
	}

	return m
}()

// Encode renders data (a string or []byte) as multibase text using code.
//
// If data is a string whose first character is already the requested
// code, it is returned unchanged; the rest of the string is not checked
// against that base's alphabet.
func Encode(code byte, data any) (string, error) {
	b, ok := table[code]
	if !ok {
		return "", &codeErr{code: code}
	}

	switch v := data.(type) {
	case string:
		if len(v) > 0 && v[0] == code {
			return v, nil
		}
		return string(code) + b.encode([]byte(v)), nil
	case []byte:
		return string(code) + b.encode(v), nil
	default:
		return "", fmt.Errorf("%w: got %T, want string or []byte", ErrUnsupportedDataType, data)
	}
}

// Decode splits text into its leading code byte and decoded body.
func Decode(text string) (code byte, data []byte, err error) {
	if len(text) == 0 {
		return 0, nil, newBodyErr("empty string")
	}
	code = text[0]
	b, ok := table[code]
	if !ok {
		return 0, nil, &codeErr{code: code}
	}
	data, err = b.decode(text[1:])
	if err != nil {
		return 0, nil, err
	}
	return code, data, nil
}
