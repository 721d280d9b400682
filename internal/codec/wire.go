package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rcliao/sngram/internal/pattern"
)

type byteReader interface {
	io.Reader
	io.ByteReader
}

// maxString bounds string lengths read from saved codecs.
const maxString = 1 << 20

type writer struct {
	w   *bufio.Writer
	buf [binary.MaxVarintLen64]byte
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) putUvarint(v uint64) {
	if w.err != nil {
		return
	}
	n := binary.PutUvarint(w.buf[:], v)
	_, w.err = w.w.Write(w.buf[:n])
}

func (w *writer) putByte(b byte) {
	if w.err == nil {
		w.err = w.w.WriteByte(b)
	}
}

func (w *writer) putString(s string) {
	w.putUvarint(uint64(len(s)))
	if w.err == nil {
		_, w.err = w.w.WriteString(s)
	}
}

func (w *writer) putSymbols(s pattern.Symbols) {
	for _, r := range pattern.Roles {
		w.putString(s.Symbol(r))
	}
}

func (w *writer) putElement(e pattern.Element) {
	w.putByte(byte(e.Kind))
	switch e.Kind {
	case pattern.KindFeature:
		w.putString(e.Level)
		w.putString(e.Form)
	case pattern.KindSpecial:
		w.putByte(byte(e.Role))
		w.putString(e.Form)
	default:
		if w.err == nil {
			w.err = fmt.Errorf("token records are not stored")
		}
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

type reader struct {
	r byteReader
}

func (r reader) readUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	return v, unexpected(err)
}

func (r reader) readString() (string, error) {
	n, err := r.readUvarint()
	if err != nil {
		return "", err
	}
	if n > maxString {
		return "", fmt.Errorf("%w: string of %d bytes", ErrBadHeader, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", unexpected(err)
	}
	return string(buf), nil
}

func (r reader) readSymbols() (pattern.Symbols, error) {
	var vals [5]string
	for i := range pattern.Roles {
		s, err := r.readString()
		if err != nil {
			return pattern.Symbols{}, err
		}
		vals[i] = s
	}
	return pattern.Symbols{Left: vals[0], Right: vals[1], Comma: vals[2], TokenStart: vals[3], TokenEnd: vals[4]}, nil
}

// readElement reads one element. A clean end of stream before the element
// starts is reported as io.EOF.
func (r reader) readElement() (pattern.Element, error) {
	k, err := r.r.ReadByte()
	if err != nil {
		return pattern.Element{}, err
	}
	switch pattern.Kind(k) {
	case pattern.KindFeature:
		level, err := r.readString()
		if err != nil {
			return pattern.Element{}, err
		}
		form, err := r.readString()
		if err != nil {
			return pattern.Element{}, err
		}
		return pattern.Feature(form, level), nil
	case pattern.KindSpecial:
		role, err := r.r.ReadByte()
		if err != nil {
			return pattern.Element{}, unexpected(err)
		}
		sym, err := r.readString()
		if err != nil {
			return pattern.Element{}, err
		}
		return pattern.Special(pattern.Role(role), sym), nil
	}
	return pattern.Element{}, fmt.Errorf("%w: element kind %d", ErrBadHeader, k)
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
