package codec

import (
	"fmt"
	"strings"
)

// bitString holds one bit per byte, most significant first.
type bitString []byte

func (b bitString) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, v := range b {
		sb.WriteByte('0' + v)
	}
	return sb.String()
}

func parseBitString(s string) (bitString, error) {
	b := make(bitString, len(s))
	for i := range len(s) {
		switch s[i] {
		case '0':
		case '1':
			b[i] = 1
		default:
			return nil, fmt.Errorf("%w: code %q", ErrBadHeader, s)
		}
	}
	return b, nil
}

// packBits turns a bit string into the minimal little endian bytes of the
// integer 1b, the leading 1 keeping leading zeros of b.
func packBits(b bitString) []byte {
	n := len(b) + 1
	be := make([]byte, (n+7)/8)
	pad := len(be)*8 - n
	set := func(i int) { be[i/8] |= 0x80 >> (i % 8) }

	set(pad)
	for i, v := range b {
		if v == 1 {
			set(pad + 1 + i)
		}
	}
	for i, j := 0, len(be)-1; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	return be
}

// unpackBits is the inverse of packBits. Empty input is the empty code.
func unpackBits(p []byte) bitString {
	var out bitString
	seen := false
	for i := len(p) - 1; i >= 0; i-- {
		for k := 7; k >= 0; k-- {
			bit := (p[i] >> k) & 1
			if !seen {
				seen = bit == 1
				continue
			}
			out = append(out, bit)
		}
	}
	return out
}

// Combine appends an encoded item to an encoded pattern of a combinable
// codec. No codec state is needed.
func Combine(prefix, item []byte) []byte {
	a := unpackBits(prefix)
	return packBits(append(a, unpackBits(item)...))
}
