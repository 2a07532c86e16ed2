// Package codec implements the reversible text encoding applied to note text at
// rest. Encoded form is standard padded base64 of the UTF-8 bytes.
package codec

import (
	"encoding/base64"
	"unicode/utf8"
)

// Encode returns the at-rest form of text. Empty input encodes to "".
func Encode(text string) string {
	if text == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Decode reverses Encode for valid UTF-8 text: Decode(Encode(t)) == t holds only
// when utf8.ValidString(t). It never fails: input that is not valid base64, or
// that does not decode to valid UTF-8, is returned unchanged so that rows written
// before the encoding was introduced still read back. Note text arrives through
// JSON and is always valid UTF-8.
func Decode(encoded string) string {
	if encoded == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return encoded
	}
	return string(raw)
}

// IsEncoded reports whether text survives a decode/encode round trip unchanged.
// This is a heuristic: plaintext that happens to be valid base64 of valid UTF-8
// (for example "YWJj") is reported as encoded.
func IsEncoded(text string) bool {
	return Encode(Decode(text)) == text
}
