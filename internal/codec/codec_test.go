package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sngram/internal/pattern"
)

func leaf(form, level string) *pattern.Tree { return pattern.Leaf(pattern.Feature(form, level)) }

func node(form, level string, children ...*pattern.Tree) *pattern.Tree {
	return pattern.NewTree(pattern.Feature(form, level), children...)
}

// eats [cat [the], fish, .]
func catPattern() *pattern.SNGram {
	return pattern.New(node("eats", "form",
		node("cat", "form", leaf("the", "form")),
		leaf("fish", "form"),
		leaf(".", "form"),
	), pattern.DefaultSymbols())
}

// VERB [NOUN, eats]
func mixedPattern() *pattern.SNGram {
	return pattern.New(node("VERB", "upos",
		leaf("NOUN", "upos"),
		leaf("eats", "form"),
	), pattern.DefaultSymbols())
}

func tokenPattern() *pattern.SNGram {
	return pattern.New(pattern.NewTree(
		pattern.TokenElement(pattern.Token{"form": "eats", "upos": "VERB", "id": "2"}),
		pattern.Leaf(pattern.TokenElement(pattern.Token{"form": "cat", "upos": "NOUN", "id": "1"})),
		pattern.Leaf(pattern.Feature("fish", "form")),
	), pattern.DefaultSymbols())
}

func testDictionary() Dictionary {
	return DictionaryFromForms(map[string][]string{
		"form": {"the", "cat", "eats", "fish", "."},
		"upos": {"NOUN", "VERB", "DET", "PUNCT"},
		"id":   {"1", "2"},
	})
}

func testFrequencies() Frequencies {
	f := Frequencies{}
	for _, w := range strings.Fields("the cat eats the fish . the cat eats .") {
		f.Add("form", w)
	}
	for _, w := range strings.Fields("DET NOUN VERB DET NOUN PUNCT NOUN NOUN") {
		f.Add("upos", w)
	}
	f.Add("id", "1")
	f.Add("id", "2")
	return f
}

func codecs(t *testing.T) map[string]Codec {
	t.Helper()
	bit, err := NewBitEncoder(testDictionary(), BitOptions{TokenAware: true})
	require.NoError(t, err)
	huff, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{})
	require.NoError(t, err)
	return map[string]Codec{
		"bit":             bit,
		"huffman":         huff,
		"base64(bit)":     NewBase64(bit),
		"base64(huffman)": NewBase64(huff),
	}
}

func TestRoundTrip(t *testing.T) {
	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []*pattern.SNGram{catPattern(), mixedPattern(), tokenPattern()} {
				enc, err := c.Encode(p)
				require.NoError(t, err)
				got, err := c.Decode(enc)
				require.NoError(t, err)
				assert.True(t, p.Equal(got), "%s decoded to %s", p, got)
			}
		})
	}
}

func TestAppendMatchesEncode(t *testing.T) {
	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []*pattern.SNGram{catPattern(), tokenPattern()} {
				var acc []byte
				for _, e := range p.Elements() {
					item, err := c.EncodeItem(e)
					require.NoError(t, err)
					acc, err = c.Append(acc, item)
					require.NoError(t, err)
				}
				want, err := c.Encode(p)
				require.NoError(t, err)
				assert.Equal(t, want, acc)
			}
		})
	}
}

func TestBitElementSize(t *testing.T) {
	dict := DictionaryFromForms(map[string][]string{
		"form": {"a", "b"},
		"upos": {"X", "Y"},
	})
	// 4 features and 3 markers use ids 1..7.
	b, err := NewBitEncoder(dict, BitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, b.ElementSize())

	// Two unknown ids push the largest id to 9.
	b, err = NewBitEncoder(dict, BitOptions{Unknown: "__unknown__"})
	require.NoError(t, err)
	assert.Equal(t, 4, b.ElementSize())

	// Token markers add two ids.
	b, err = NewBitEncoder(dict, BitOptions{TokenAware: true})
	require.NoError(t, err)
	assert.Equal(t, 4, b.ElementSize())
}

func TestBitEncodeLayout(t *testing.T) {
	dict := DictionaryFromForms(map[string][]string{"form": {"a", "b"}})
	b, err := NewBitEncoder(dict, BitOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, b.ElementSize())

	// a [b, a]: ids 1 3 2 5 1 4 -> 001 011 010 101 001 100
	p := pattern.New(node("a", "form", leaf("b", "form"), leaf("a", "form")), pattern.DefaultSymbols())
	enc, err := b.Encode(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4c, 0xb5}, enc)
}

func TestBitUnknown(t *testing.T) {
	b, err := NewBitEncoder(testDictionary(), BitOptions{Unknown: "__unknown__"})
	require.NoError(t, err)

	p := pattern.New(node("eats", "form", leaf("dog", "form"), leaf("ADJ", "upos")), pattern.DefaultSymbols())
	enc, err := b.Encode(p)
	require.NoError(t, err)
	got, err := b.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "eats [__unknown__, __unknown__]", got.String())
	assert.Equal(t, pattern.Feature("__unknown__", "form"), got.Root().Children[0].Element)
	assert.Equal(t, pattern.Feature("__unknown__", "upos"), got.Root().Children[1].Element)
}

func TestEncodeMissingForm(t *testing.T) {
	bit, err := NewBitEncoder(testDictionary(), BitOptions{})
	require.NoError(t, err)
	huff, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{})
	require.NoError(t, err)

	p := pattern.New(node("eats", "form", leaf("dog", "form")), pattern.DefaultSymbols())
	for _, c := range []Codec{bit, huff} {
		_, err := c.Encode(p)
		assert.ErrorIs(t, err, ErrEncode, c.Kind().String())
	}

	// Unknown levels have no unknown fallback.
	huff, err = NewHuffmanEncoder(testFrequencies(), HuffmanOptions{Unknown: "__unknown__"})
	require.NoError(t, err)
	_, err = huff.EncodeItem(pattern.Feature("x", "lemma"))
	assert.ErrorIs(t, err, ErrEncode)
	_, err = huff.EncodeItem(pattern.Feature("dog", "form"))
	assert.NoError(t, err)
}

func TestBitRejectsTokensUnlessTokenAware(t *testing.T) {
	b, err := NewBitEncoder(testDictionary(), BitOptions{})
	require.NoError(t, err)
	_, err = b.Encode(tokenPattern())
	assert.ErrorIs(t, err, ErrEncode)
}

func TestDecodeMismatch(t *testing.T) {
	b, err := NewBitEncoder(testDictionary(), BitOptions{})
	require.NoError(t, err)
	// Every chunk of 0xff is the largest id, which is out of range.
	_, err = b.Decode([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrDecode)

	// A bracket cannot start a pattern.
	item, err := b.EncodeItem(pattern.DefaultSymbols().Element(pattern.LeftBracket))
	require.NoError(t, err)
	_, err = b.Decode(item)
	assert.Error(t, err)

	_, err = NewBase64(b).DecodeText("not base64!")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestHuffmanCodes(t *testing.T) {
	h, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{Unknown: "__unknown__"})
	require.NoError(t, err)

	// 5 + 4 + 2 features, 5 markers, 3 unknowns.
	assert.Equal(t, 19, h.Len())
	assert.LessOrEqual(t, h.CodeLen(pattern.Feature("the", "form")), h.CodeLen(pattern.Feature("fish", "form")))
	assert.Zero(t, h.CodeLen(pattern.Feature("dog", "form")))

	again, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{Unknown: "__unknown__"})
	require.NoError(t, err)
	assert.Equal(t, h.codes, again.codes)

	// Prefix free.
	for a, ca := range h.codes {
		for b, cb := range h.codes {
			if a != b && len(ca) <= len(cb) {
				assert.NotEqual(t, ca.String(), cb.String()[:len(ca)])
			}
		}
	}
}

func TestHuffmanTruncated(t *testing.T) {
	h, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{})
	require.NoError(t, err)
	enc, err := h.Encode(catPattern())
	require.NoError(t, err)

	bits := unpackBits(enc)
	_, err = h.Decode(packBits(bits[:len(bits)-1]))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestPackBits(t *testing.T) {
	for _, s := range []string{"", "0", "1", "0000000", "00000000", "10110", "000100010001000100"} {
		b, err := parseBitString(s)
		require.NoError(t, err)
		assert.Equal(t, s, unpackBits(packBits(b)).String(), s)
	}
	assert.Equal(t, []byte{0x02}, packBits(bitString{0}))
	assert.Equal(t, []byte{0x01}, Combine(nil, nil))
}

func TestCombineBase64(t *testing.T) {
	h, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{})
	require.NoError(t, err)
	b := NewBase64(h)

	var acc string
	for _, e := range catPattern().Elements() {
		item, err := b.EncodeItemText(e)
		require.NoError(t, err)
		acc, err = CombineBase64(acc, item)
		require.NoError(t, err)
	}
	want, err := b.EncodeText(catPattern())
	require.NoError(t, err)
	assert.Equal(t, want, acc)

	got, err := b.DecodeText(acc)
	require.NoError(t, err)
	assert.Equal(t, catPattern().String(), got.String())
}

func TestSaveLoad(t *testing.T) {
	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.Save(&buf))

			loaded, err := Load(&buf)
			require.NoError(t, err)
			assert.Equal(t, c.Kind(), loaded.Kind())

			for _, p := range []*pattern.SNGram{catPattern(), tokenPattern()} {
				want, err := c.Encode(p)
				require.NoError(t, err)
				got, err := loaded.Encode(p)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				dec, err := loaded.Decode(want)
				require.NoError(t, err)
				assert.True(t, p.Equal(dec))
			}
		})
	}
}

func TestSaveLoadKeepsSettings(t *testing.T) {
	sym := pattern.Symbols{Left: "(", Right: ")", Comma: ";"}
	b, err := NewBitEncoder(testDictionary(), BitOptions{Symbols: sym, Unknown: "<unk>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, b.Save(&buf))
	c, err := Load(io.MultiReader(&buf))
	require.NoError(t, err)

	loaded := c.(*BitEncoder)
	assert.Equal(t, b.sym, loaded.sym)
	assert.Equal(t, "<unk>", loaded.unknown)
	assert.False(t, loaded.tokenAware)
	assert.Equal(t, b.ElementSize(), loaded.ElementSize())

	p := pattern.New(node("eats", "form", leaf("dog", "form"), leaf("cat", "form")), sym)
	enc, err := loaded.Encode(p)
	require.NoError(t, err)
	got, err := loaded.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "eats (<unk>; cat)", got.String())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = Load(strings.NewReader("JUNKJUNK"))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = Load(bytes.NewReader([]byte{'S', 'N', 'G', 'C', 1, 9}))
	assert.ErrorIs(t, err, ErrUnknownKind)

	b, err := NewBitEncoder(testDictionary(), BitOptions{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, b.Save(&buf))
	_, err = Load(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}

func TestParseDictionary(t *testing.T) {
	in := `{
		"form": {"the": 1, "cat": 0},
		"upos": ["NOUN", "DET"],
		"__special__": {"left_bracket": "(", "unknown": "<unk>"}
	}`
	d, o, err := ParseDictionary(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "the"}, d.Forms("form"))
	assert.Equal(t, []string{"NOUN", "DET"}, d.Forms("upos"))
	assert.Equal(t, []string{"form", "upos"}, d.Levels())

	sym, unknown := o.Apply(pattern.DefaultSymbols(), "")
	assert.Equal(t, "(", sym.Left)
	assert.Equal(t, "]", sym.Right)
	assert.Equal(t, "<unk>", unknown)

	_, _, err = ParseDictionary(strings.NewReader(`{"form": {"a": 0, "b": 2}}`))
	assert.Error(t, err)
	_, _, err = ParseDictionary(strings.NewReader(`{"__special__": {"nope": "x"}}`))
	assert.Error(t, err)
}

func TestFrequenciesDictionary(t *testing.T) {
	f := testFrequencies()
	assert.EqualValues(t, 4, f.Max())
	d := f.Dictionary()
	// "NOUN" is the most frequent tag, "DET" and "the" follow.
	assert.Equal(t, []string{"NOUN", "DET", "PUNCT", "VERB"}, d.Forms("upos"))
	assert.Equal(t, "the", d.Forms("form")[0])

	f2, _, err := ParseFrequencies(strings.NewReader(`{"form": {"a": 3, "b": 1}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 3, f2["form"]["a"])
}

func TestItemCache(t *testing.T) {
	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			cache := NewItemCache(c, 1<<20)
			for range 2 {
				for _, p := range []*pattern.SNGram{catPattern(), tokenPattern()} {
					want, err := c.Encode(p)
					require.NoError(t, err)
					got, err := cache.Encode(p)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}
			}
			entries, _ := cache.Stats()
			assert.NotZero(t, entries)

			_, err := cache.EncodeItem(pattern.Feature("dog", "form"))
			assert.ErrorIs(t, err, ErrEncode)
		})
	}
}

func TestHas(t *testing.T) {
	bit, err := NewBitEncoder(testDictionary(), BitOptions{Unknown: "__unknown__"})
	require.NoError(t, err)
	huff, err := NewHuffmanEncoder(testFrequencies(), HuffmanOptions{Unknown: "__unknown__"})
	require.NoError(t, err)

	for _, c := range []interface{ Has(pattern.Element) bool }{bit, huff, NewBase64(huff)} {
		assert.True(t, c.Has(pattern.Feature("cat", "form")))
		assert.True(t, c.Has(pattern.DefaultSymbols().Element(pattern.Comma)))
		assert.False(t, c.Has(pattern.Feature("dog", "form")))
		assert.False(t, c.Has(pattern.TokenElement(pattern.Token{"form": "dog", "upos": "NOUN"})))
	}
	assert.True(t, huff.Has(pattern.TokenElement(pattern.Token{"form": "cat", "upos": "NOUN"})))
}
