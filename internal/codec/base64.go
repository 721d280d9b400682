package codec

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/rcliao/sngram/internal/pattern"
)

// Base64 armors the output of another codec with standard base64 so that
// codes fit in line oriented text.
type Base64 struct {
	inner Codec
}

func NewBase64(inner Codec) *Base64 {
	return &Base64{inner: inner}
}

func (b *Base64) Kind() Kind   { return KindBase64 }
func (b *Base64) Inner() Codec { return b.inner }

// Has reports whether the inner codec knows e. Codecs without a
// vocabulary know every element.
func (b *Base64) Has(e pattern.Element) bool {
	if k, ok := b.inner.(interface{ Has(pattern.Element) bool }); ok {
		return k.Has(e)
	}
	return true
}

func armor(p []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(p)))
	base64.StdEncoding.Encode(out, p)
	return out
}

func unarmor(p []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(p)))
	n, err := base64.StdEncoding.Decode(out, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out[:n], nil
}

func (b *Base64) EncodeItem(e pattern.Element) ([]byte, error) {
	p, err := b.inner.EncodeItem(e)
	if err != nil {
		return nil, err
	}
	return armor(p), nil
}

func (b *Base64) Encode(p *pattern.SNGram) ([]byte, error) {
	raw, err := b.inner.Encode(p)
	if err != nil {
		return nil, err
	}
	return armor(raw), nil
}

func (b *Base64) Decode(data []byte) (*pattern.SNGram, error) {
	raw, err := unarmor(data)
	if err != nil {
		return nil, err
	}
	return b.inner.Decode(raw)
}

func (b *Base64) Append(prefix, item []byte) ([]byte, error) {
	p, err := unarmor(prefix)
	if err != nil {
		return nil, err
	}
	i, err := unarmor(item)
	if err != nil {
		return nil, err
	}
	out, err := b.inner.Append(p, i)
	if err != nil {
		return nil, err
	}
	return armor(out), nil
}

// EncodeText is Encode returning a string.
func (b *Base64) EncodeText(p *pattern.SNGram) (string, error) {
	out, err := b.Encode(p)
	return string(out), err
}

// EncodeItemText is EncodeItem returning a string.
func (b *Base64) EncodeItemText(e pattern.Element) (string, error) {
	out, err := b.EncodeItem(e)
	return string(out), err
}

func (b *Base64) DecodeText(s string) (*pattern.SNGram, error) {
	return b.Decode([]byte(s))
}

func (b *Base64) AppendText(prefix, item string) (string, error) {
	out, err := b.Append([]byte(prefix), []byte(item))
	return string(out), err
}

func (b *Base64) Save(w io.Writer) error {
	if err := writeHeader(w, KindBase64); err != nil {
		return err
	}
	return b.inner.Save(w)
}

// CombineBase64 is Combine over armored codes.
func CombineBase64(prefix, item string) (string, error) {
	p, err := unarmor([]byte(prefix))
	if err != nil {
		return "", err
	}
	i, err := unarmor([]byte(item))
	if err != nil {
		return "", err
	}
	return string(armor(Combine(p, i))), nil
}
