package otp

import (
	"fmt"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// EncodeBase32 encodes src with the RFC 4648 alphabet, without padding.
// Authenticator apps expect unpadded secrets.
func EncodeBase32(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow((len(src)*8 + 4) / 5)

	var buf uint16
	var bits uint
	for _, c := range src {
		buf = buf<<8 | uint16(c)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b.WriteByte(base32Alphabet[buf>>bits&0x1f])
		}
	}
	if bits > 0 {
		b.WriteByte(base32Alphabet[buf<<(5-bits)&0x1f])
	}

	return b.String()
}

// DecodeBase32 decodes an RFC 4648 base32 string. Decoding is case-insensitive
// and tolerates the separators users paste along with secrets (whitespace,
// dashes, trailing '=' padding); any other character is rejected with a
// positioned error. Trailing bits that do not fill a byte are discarded.
func DecodeBase32(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8)

	var buf uint16
	var bits uint
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t', '\r', '\n', '-', '=':
			continue
		}

		var v byte
		switch {
		case c >= 'A' && c <= 'Z':
			v = c - 'A'
		case c >= 'a' && c <= 'z':
			v = c - 'a'
		case c >= '2' && c <= '7':
			v = c - '2' + 26
		default:
			return nil, fmt.Errorf("invalid base32 character %q at position %d", c, i)
		}

		buf = buf<<5 | uint16(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}

	return out, nil
}
