package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	ErrInvalidFormat  = errors.New("codec: value is missing an encoding prefix")
	ErrUnsupported    = errors.New("codec: unsupported encoding")
	ErrEmptyEncodings = errors.New("codec: no encodings accepted")
)

// Encoding names the text form used for a binary blob. It is written as a
// short prefix in front of the encoded value, e.g. "b64:aGk=".
type Encoding string

const (
	Base64    Encoding = "b64"
	Base64URL Encoding = "b64u"
	Base58    Encoding = "b58"
	Hex       Encoding = "hex"

	Default = Base64
)

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	switch e {
	case Base64, Base64URL, Base58, Hex:
		return true
	}
	return false
}

// Encode writes value using the given encoding, prefixed with its short name.
// Without an explicit encoding, Default is used.
func Encode(value []byte, encoding ...Encoding) string {
	enc := Default
	if len(encoding) > 0 && encoding[0].Valid() {
		enc = encoding[0]
	}

	var encoded string
	switch enc {
	case Base58:
		encoded = base58.Encode(value)
	case Hex:
		encoded = hex.EncodeToString(value)
	case Base64URL:
		encoded = base64.RawURLEncoding.EncodeToString(value)
	default:
		encoded = base64.StdEncoding.EncodeToString(value)
	}

	return string(enc) + ":" + encoded
}

// Decode reverses Encode, picking the encoding from the value's prefix.
func Decode(value string) ([]byte, error) {
	enc, encoded, err := split(value)
	if err != nil {
		return nil, err
	}

	switch enc {
	case Base58:
		return base58.Decode(encoded)
	case Hex:
		return hex.DecodeString(encoded)
	case Base64URL:
		return base64.RawURLEncoding.DecodeString(encoded)
	case Base64:
		return base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, ErrUnsupported
	}
}

// DecodeOnly is Decode restricted to a set of accepted encodings.
func DecodeOnly(value string, accepted ...Encoding) ([]byte, error) {
	if len(accepted) == 0 {
		return nil, ErrEmptyEncodings
	}

	enc, _, err := split(value)
	if err != nil {
		return nil, err
	}
	for _, a := range accepted {
		if a == enc {
			return Decode(value)
		}
	}
	return nil, ErrUnsupported
}

func split(value string) (Encoding, string, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidFormat
	}
	return Encoding(parts[0]), parts[1], nil
}
