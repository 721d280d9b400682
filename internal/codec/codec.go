// Package codec encodes patterns as compact byte strings.
//
// Every codec linearizes a pattern into elements and maps each element to
// a code: a fixed number of bits (BitEncoder) or a prefix code
// (HuffmanEncoder). Base64 armors the output of another codec for line
// oriented storage. Saved codecs start with a header naming their kind so
// Load can restore them without further information.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rcliao/sngram/internal/pattern"
)

var (
	// ErrEncode is returned for elements without a code and no unknown
	// fallback.
	ErrEncode = errors.New("cannot encode")
	// ErrDecode is returned when encoded data does not match the codec.
	ErrDecode = errors.New("cannot decode")

	ErrBadHeader   = errors.New("not a saved codec")
	ErrUnknownKind = errors.New("unknown codec kind")
)

// Kind identifies a concrete codec in saved streams.
type Kind uint8

const (
	KindBit Kind = iota + 1
	KindHuffman
	KindBase64
)

func (k Kind) String() string {
	switch k {
	case KindBit:
		return "bit"
	case KindHuffman:
		return "huffman"
	case KindBase64:
		return "base64"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Codec encodes and decodes patterns.
type Codec interface {
	Kind() Kind
	// EncodeItem encodes a single element. Token records are expanded to
	// their marker delimited level values.
	EncodeItem(e pattern.Element) ([]byte, error)
	Encode(p *pattern.SNGram) ([]byte, error)
	Decode(b []byte) (*pattern.SNGram, error)
	// Append extends an encoded pattern by one encoded item.
	Append(prefix, item []byte) ([]byte, error)
	// Save writes the header and the codec state.
	Save(w io.Writer) error
}

// Combinable codecs append items without any codec state, see Combine.
type Combinable interface {
	Codec
	combinable()
}

const version = 1

var magic = [4]byte{'S', 'N', 'G', 'C'}

func writeHeader(w io.Writer, k Kind) error {
	hdr := [6]byte{magic[0], magic[1], magic[2], magic[3], version, byte(k)}
	_, err := w.Write(hdr[:])
	return err
}

// Load restores a codec written by Save.
func Load(r io.Reader) (Codec, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return load(br)
}

func load(r byteReader) (Codec, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return nil, ErrBadHeader
	}
	if hdr[4] != version {
		return nil, fmt.Errorf("%w: version %d", ErrBadHeader, hdr[4])
	}

	switch k := Kind(hdr[5]); k {
	case KindBit:
		return loadBit(r)
	case KindHuffman:
		return loadHuffman(r)
	case KindBase64:
		inner, err := load(r)
		if err != nil {
			return nil, fmt.Errorf("load base64 inner codec: %w", err)
		}
		return NewBase64(inner), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
}

// Expand replaces a token record by TokenStart, its level values in
// sorted level order, and TokenEnd. Other elements are returned as is.
func Expand(e pattern.Element, sym pattern.Symbols) []pattern.Element {
	if e.Kind != pattern.KindToken {
		return []pattern.Element{e}
	}
	out := make([]pattern.Element, 0, len(e.Token)+2)
	out = append(out, sym.Element(pattern.TokenStart))
	for _, level := range e.Token.Levels() {
		out = append(out, pattern.Feature(e.Token[level], level))
	}
	return append(out, sym.Element(pattern.TokenEnd))
}

// collapse is the inverse of Expand over a whole element list.
func collapse(elems []pattern.Element) ([]pattern.Element, error) {
	out := make([]pattern.Element, 0, len(elems))
	var tok pattern.Token
	for _, e := range elems {
		switch {
		case e.IsRole(pattern.TokenStart):
			if tok != nil {
				return nil, fmt.Errorf("%w: nested token start", ErrDecode)
			}
			tok = pattern.Token{}
		case e.IsRole(pattern.TokenEnd):
			if tok == nil {
				return nil, fmt.Errorf("%w: token end without start", ErrDecode)
			}
			out = append(out, pattern.TokenElement(tok))
			tok = nil
		case tok != nil:
			if e.Kind != pattern.KindFeature {
				return nil, fmt.Errorf("%w: %s inside token", ErrDecode, e.Role)
			}
			tok[e.Level] = e.Form
		default:
			out = append(out, e)
		}
	}
	if tok != nil {
		return nil, fmt.Errorf("%w: unterminated token", ErrDecode)
	}
	return out, nil
}

func toPattern(elems []pattern.Element, sym pattern.Symbols) (*pattern.SNGram, error) {
	elems, err := collapse(elems)
	if err != nil {
		return nil, err
	}
	p, err := pattern.FromElements(elems, sym)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return p, nil
}
