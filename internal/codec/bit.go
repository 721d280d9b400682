package codec

import (
	"fmt"
	"io"
	"math/big"
	"math/bits"
	"slices"

	"github.com/rcliao/sngram/internal/pattern"
)

// BitOptions configures a BitEncoder.
type BitOptions struct {
	Symbols pattern.Symbols
	// Unknown, when set, is substituted for forms missing from a level.
	// Each level gets its own unknown id so the level survives decoding.
	Unknown string
	// TokenAware reserves ids for the token markers so that whole token
	// records can be encoded.
	TokenAware bool
}

// BitEncoder maps every element to a dense integer id and packs the ids of
// a pattern into one integer with a fixed number of bits per element.
//
// Id 0 is never assigned, so a zero chunk ends the pattern. Levels take
// consecutive id ranges in sorted level order, followed by the markers and
// the unknown ids.
type BitEncoder struct {
	dict        Dictionary
	levels      []string
	offsets     map[string]uint64
	specials    []pattern.Element
	specialBase uint64
	unknownBase uint64
	unknown     string
	tokenAware  bool
	sym         pattern.Symbols
	size        uint
	words       []pattern.Element // id -> element, index 0 unused
}

func NewBitEncoder(dict Dictionary, opts BitOptions) (*BitEncoder, error) {
	if err := dict.Validate(); err != nil {
		return nil, fmt.Errorf("new bit encoder: %w", err)
	}
	opts.Symbols = opts.Symbols.WithDefaults()
	if err := opts.Symbols.Validate(); err != nil {
		return nil, fmt.Errorf("new bit encoder: %w", err)
	}

	b := &BitEncoder{
		dict:       dict,
		levels:     dict.Levels(),
		offsets:    make(map[string]uint64, len(dict)),
		unknown:    opts.Unknown,
		tokenAware: opts.TokenAware,
		sym:        opts.Symbols,
	}

	b.words = []pattern.Element{{}}
	for _, level := range b.levels {
		b.offsets[level] = uint64(len(b.words))
		for _, form := range dict.Forms(level) {
			b.words = append(b.words, pattern.Feature(form, level))
		}
	}

	roles := pattern.Roles[:3]
	if b.tokenAware {
		roles = pattern.Roles
	}
	b.specialBase = uint64(len(b.words))
	for _, r := range roles {
		e := b.sym.Element(r)
		b.specials = append(b.specials, e)
		b.words = append(b.words, e)
	}

	b.unknownBase = uint64(len(b.words))
	if b.unknown != "" {
		for _, level := range b.levels {
			b.words = append(b.words, pattern.Feature(b.unknown, level))
		}
	}

	b.size = uint(bits.Len64(uint64(len(b.words) - 1)))
	return b, nil
}

func (b *BitEncoder) Kind() Kind { return KindBit }

// ElementSize is the number of bits per element.
func (b *BitEncoder) ElementSize() int { return int(b.size) }

func (b *BitEncoder) id(e pattern.Element) (uint64, error) {
	switch e.Kind {
	case pattern.KindSpecial:
		for i, s := range b.specials {
			if s.Equal(e) {
				return b.specialBase + uint64(i), nil
			}
		}
		return 0, fmt.Errorf("%w: marker %q", ErrEncode, e.Form)
	case pattern.KindFeature:
		if m, ok := b.dict[e.Level]; ok {
			if id, ok := m[e.Form]; ok {
				return b.offsets[e.Level] + uint64(id), nil
			}
			if b.unknown != "" {
				i, _ := slices.BinarySearch(b.levels, e.Level)
				return b.unknownBase + uint64(i), nil
			}
		}
		return 0, fmt.Errorf("%w: %s %q not in dictionary", ErrEncode, e.Level, e.Form)
	}
	return 0, fmt.Errorf("%w: token record", ErrEncode)
}

// Has reports whether e has its own id, without unknown substitution.
func (b *BitEncoder) Has(e pattern.Element) bool {
	for _, x := range Expand(e, b.sym) {
		switch x.Kind {
		case pattern.KindFeature:
			if _, ok := b.dict[x.Level][x.Form]; !ok {
				return false
			}
		case pattern.KindSpecial:
			if _, err := b.id(x); err != nil {
				return false
			}
		}
	}
	return true
}

func (b *BitEncoder) pack(acc *big.Int, e pattern.Element) error {
	if e.Kind == pattern.KindToken && !b.tokenAware {
		return fmt.Errorf("%w: token record needs a token aware encoder", ErrEncode)
	}
	var v big.Int
	for _, x := range Expand(e, b.sym) {
		id, err := b.id(x)
		if err != nil {
			return err
		}
		acc.Lsh(acc, b.size)
		acc.Or(acc, v.SetUint64(id))
	}
	return nil
}

func (b *BitEncoder) EncodeItem(e pattern.Element) ([]byte, error) {
	var acc big.Int
	if err := b.pack(&acc, e); err != nil {
		return nil, err
	}
	return intToBytes(&acc), nil
}

func (b *BitEncoder) Encode(p *pattern.SNGram) ([]byte, error) {
	var acc big.Int
	for _, e := range p.Elements() {
		if err := b.pack(&acc, e); err != nil {
			return nil, err
		}
	}
	return intToBytes(&acc), nil
}

func (b *BitEncoder) Decode(data []byte) (*pattern.SNGram, error) {
	acc := bytesToInt(data)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), b.size), big.NewInt(1))

	var elems []pattern.Element
	var chunk big.Int
	for acc.Sign() != 0 {
		id := chunk.And(acc, mask).Uint64()
		if id == 0 || id >= uint64(len(b.words)) {
			return nil, fmt.Errorf("%w: unknown id %d", ErrDecode, id)
		}
		elems = append(elems, b.words[id])
		acc.Rsh(acc, b.size)
	}
	slices.Reverse(elems)
	return toPattern(elems, b.sym)
}

func (b *BitEncoder) Append(prefix, item []byte) ([]byte, error) {
	acc := bytesToInt(prefix)
	it := bytesToInt(item)
	// Expanded tokens span several ids; no id is 0, so the top chunk is set.
	chunks := (uint(it.BitLen()) + b.size - 1) / b.size
	acc.Lsh(acc, chunks*b.size)
	acc.Or(acc, it)
	return intToBytes(acc), nil
}

func (b *BitEncoder) Save(w io.Writer) error {
	if err := writeHeader(w, KindBit); err != nil {
		return err
	}
	bw := newWriter(w)
	bw.putSymbols(b.sym)
	bw.putString(b.unknown)
	if b.tokenAware {
		bw.putByte(1)
	} else {
		bw.putByte(0)
	}
	bw.putUvarint(uint64(len(b.levels)))
	for _, level := range b.levels {
		forms := b.dict.Forms(level)
		bw.putString(level)
		bw.putUvarint(uint64(len(forms)))
		for _, f := range forms {
			bw.putString(f)
		}
	}
	return bw.flush()
}

func loadBit(r byteReader) (*BitEncoder, error) {
	rd := reader{r: r}
	sym, err := rd.readSymbols()
	if err != nil {
		return nil, fmt.Errorf("load bit encoder: %w", err)
	}
	unknown, err := rd.readString()
	if err != nil {
		return nil, fmt.Errorf("load bit encoder: %w", err)
	}
	flag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("load bit encoder: %w", unexpected(err))
	}
	n, err := rd.readUvarint()
	if err != nil {
		return nil, fmt.Errorf("load bit encoder: %w", err)
	}

	forms := map[string][]string{}
	for range n {
		level, err := rd.readString()
		if err != nil {
			return nil, fmt.Errorf("load bit encoder: %w", err)
		}
		count, err := rd.readUvarint()
		if err != nil {
			return nil, fmt.Errorf("load bit encoder: %w", err)
		}
		fs := make([]string, 0, min(count, 1<<16))
		for range count {
			f, err := rd.readString()
			if err != nil {
				return nil, fmt.Errorf("load bit encoder: %w", err)
			}
			fs = append(fs, f)
		}
		forms[level] = fs
	}
	return NewBitEncoder(DictionaryFromForms(forms), BitOptions{Symbols: sym, Unknown: unknown, TokenAware: flag == 1})
}

// intToBytes returns the minimal little endian representation of x.
func intToBytes(x *big.Int) []byte {
	b := x.Bytes()
	slices.Reverse(b)
	return b
}

func bytesToInt(b []byte) *big.Int {
	be := slices.Clone(b)
	slices.Reverse(be)
	return new(big.Int).SetBytes(be)
}
