package codec

import (
	"cmp"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"math/big"
	"slices"

	"github.com/rcliao/sngram/internal/pattern"
)

// HuffmanOptions configures a HuffmanEncoder.
type HuffmanOptions struct {
	Symbols pattern.Symbols
	// Unknown, when set, adds Feature(Unknown, level) for every level and
	// substitutes it for missing forms.
	Unknown string
	// SpecialWeight scales the highest observed frequency to obtain the
	// frequency of markers and unknown elements. Zero means 1.
	SpecialWeight float64
}

// HuffmanEncoder assigns canonical prefix codes from element frequencies.
// Encoded patterns can be extended with Combine.
type HuffmanEncoder struct {
	sym     pattern.Symbols
	unknown string
	codes   map[pattern.Key]bitString
	trie    []trieNode
}

type trieNode struct {
	next [2]int32 // 0: none
	leaf bool
	key  pattern.Key
}

func NewHuffmanEncoder(freqs Frequencies, opts HuffmanOptions) (*HuffmanEncoder, error) {
	opts.Symbols = opts.Symbols.WithDefaults()
	if err := opts.Symbols.Validate(); err != nil {
		return nil, fmt.Errorf("new huffman encoder: %w", err)
	}
	weight := opts.SpecialWeight
	if weight <= 0 {
		weight = 1
	}
	special := int64(float64(freqs.Max()) * weight)

	weights := map[pattern.Key]int64{}
	for level, m := range freqs {
		for form, n := range m {
			weights[pattern.Feature(form, level).Key()] = n
		}
	}
	for _, e := range opts.Symbols.Specials() {
		weights[e.Key()] = special
	}
	if opts.Unknown != "" {
		for level := range freqs {
			k := pattern.Feature(opts.Unknown, level).Key()
			if _, ok := weights[k]; !ok {
				weights[k] = special
			}
		}
	}

	h := &HuffmanEncoder{sym: opts.Symbols, unknown: opts.Unknown, codes: canonicalCodes(weights)}
	if err := h.buildTrie(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HuffmanEncoder) Kind() Kind { return KindHuffman }
func (h *HuffmanEncoder) combinable() {}

// Len is the number of elements with a code.
func (h *HuffmanEncoder) Len() int { return len(h.codes) }

// CodeLen returns the code length of e, 0 if e has no code.
func (h *HuffmanEncoder) CodeLen(e pattern.Element) int {
	return len(h.codes[e.Key()])
}

func compareKeys(a, b pattern.Key) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Role, b.Role),
		cmp.Compare(a.Level, b.Level),
		cmp.Compare(a.Form, b.Form),
	)
}

type huffNode struct {
	weight      int64
	order       int
	left, right int // -1 for leaves
}

type huffHeap struct {
	nodes []huffNode
	idx   []int
}

func (q *huffHeap) Len() int { return len(q.idx) }

// Less orders by weight, ties by creation order.
func (q *huffHeap) Less(i, j int) bool {
	a, b := q.nodes[q.idx[i]], q.nodes[q.idx[j]]
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	return a.order < b.order
}

func (q *huffHeap) Swap(i, j int) { q.idx[i], q.idx[j] = q.idx[j], q.idx[i] }
func (q *huffHeap) Push(x any)    { q.idx = append(q.idx, x.(int)) }
func (q *huffHeap) Pop() any {
	n := len(q.idx)
	x := q.idx[n-1]
	q.idx = q.idx[:n-1]
	return x
}

// canonicalCodes computes Huffman code lengths and assigns canonical codes:
// shorter codes first, equal lengths in key order.
func canonicalCodes(weights map[pattern.Key]int64) map[pattern.Key]bitString {
	keys := make([]pattern.Key, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)

	q := &huffHeap{}
	for i, k := range keys {
		q.nodes = append(q.nodes, huffNode{weight: weights[k], order: i, left: -1, right: -1})
		q.idx = append(q.idx, i)
	}
	heap.Init(q)
	for q.Len() > 1 {
		a := heap.Pop(q).(int)
		b := heap.Pop(q).(int)
		q.nodes = append(q.nodes, huffNode{
			weight: q.nodes[a].weight + q.nodes[b].weight,
			order:  len(q.nodes),
			left:   a,
			right:  b,
		})
		heap.Push(q, len(q.nodes)-1)
	}

	lengths := make([]int, len(keys))
	var walk func(n, depth int)
	walk = func(n, depth int) {
		node := q.nodes[n]
		if node.left < 0 {
			lengths[n] = max(depth, 1)
			return
		}
		walk(node.left, depth+1)
		walk(node.right, depth+1)
	}
	if len(q.idx) == 1 {
		walk(q.idx[0], 0)
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(lengths[a], lengths[b]) })

	codes := make(map[pattern.Key]bitString, len(keys))
	code := new(big.Int)
	one := big.NewInt(1)
	prev := 0
	for i, k := range order {
		l := lengths[k]
		if i > 0 {
			code.Add(code, one)
			code.Lsh(code, uint(l-prev))
		}
		prev = l
		c := make(bitString, l)
		for j := range l {
			c[j] = byte(code.Bit(l - 1 - j))
		}
		codes[keys[k]] = c
	}
	return codes
}

func (h *HuffmanEncoder) buildTrie() error {
	h.trie = []trieNode{{}}
	for k, c := range h.codes {
		n := int32(0)
		for _, bit := range c {
			if h.trie[n].leaf {
				return fmt.Errorf("%w: code of %q is not prefix free", ErrBadHeader, k.Form)
			}
			if h.trie[n].next[bit] == 0 {
				h.trie = append(h.trie, trieNode{})
				h.trie[n].next[bit] = int32(len(h.trie) - 1)
			}
			n = h.trie[n].next[bit]
		}
		if n == 0 || h.trie[n].leaf || h.trie[n].next != [2]int32{} {
			return fmt.Errorf("%w: code of %q is not prefix free", ErrBadHeader, k.Form)
		}
		h.trie[n].leaf = true
		h.trie[n].key = k
	}
	return nil
}

// Has reports whether e has its own code, without unknown substitution.
func (h *HuffmanEncoder) Has(e pattern.Element) bool {
	for _, x := range Expand(e, h.sym) {
		if _, ok := h.codes[x.Key()]; !ok {
			return false
		}
	}
	return true
}

func (h *HuffmanEncoder) code(e pattern.Element) (bitString, error) {
	if c, ok := h.codes[e.Key()]; ok {
		return c, nil
	}
	if e.Kind == pattern.KindFeature && h.unknown != "" {
		if c, ok := h.codes[pattern.Feature(h.unknown, e.Level).Key()]; ok {
			return c, nil
		}
	}
	if e.Kind == pattern.KindSpecial {
		return nil, fmt.Errorf("%w: marker %q", ErrEncode, e.Form)
	}
	return nil, fmt.Errorf("%w: %s %q has no code", ErrEncode, e.Level, e.Form)
}

func (h *HuffmanEncoder) appendCode(out bitString, e pattern.Element) (bitString, error) {
	for _, x := range Expand(e, h.sym) {
		c, err := h.code(x)
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}

func (h *HuffmanEncoder) EncodeItem(e pattern.Element) ([]byte, error) {
	c, err := h.appendCode(nil, e)
	if err != nil {
		return nil, err
	}
	return packBits(c), nil
}

func (h *HuffmanEncoder) Encode(p *pattern.SNGram) ([]byte, error) {
	var out bitString
	for _, e := range p.Elements() {
		var err error
		if out, err = h.appendCode(out, e); err != nil {
			return nil, err
		}
	}
	return packBits(out), nil
}

func (h *HuffmanEncoder) Decode(data []byte) (*pattern.SNGram, error) {
	var elems []pattern.Element
	n := int32(0)
	for _, bit := range unpackBits(data) {
		n = h.trie[n].next[bit]
		if n == 0 {
			return nil, fmt.Errorf("%w: no code matches", ErrDecode)
		}
		if h.trie[n].leaf {
			elems = append(elems, h.trie[n].key.Element())
			n = 0
		}
	}
	if n != 0 {
		return nil, fmt.Errorf("%w: truncated code", ErrDecode)
	}
	return toPattern(elems, h.sym)
}

func (h *HuffmanEncoder) Append(prefix, item []byte) ([]byte, error) {
	return Combine(prefix, item), nil
}

func (h *HuffmanEncoder) Save(w io.Writer) error {
	if err := writeHeader(w, KindHuffman); err != nil {
		return err
	}
	keys := make([]pattern.Key, 0, len(h.codes))
	for k := range h.codes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)

	bw := newWriter(w)
	bw.putSymbols(h.sym)
	bw.putString(h.unknown)
	for _, k := range keys {
		bw.putElement(k.Element())
		bw.putString(h.codes[k].String())
	}
	return bw.flush()
}

func loadHuffman(r byteReader) (*HuffmanEncoder, error) {
	rd := reader{r: r}
	sym, err := rd.readSymbols()
	if err != nil {
		return nil, fmt.Errorf("load huffman encoder: %w", err)
	}
	unknown, err := rd.readString()
	if err != nil {
		return nil, fmt.Errorf("load huffman encoder: %w", err)
	}

	// The code table runs to the end of the stream.
	h := &HuffmanEncoder{sym: sym, unknown: unknown, codes: map[pattern.Key]bitString{}}
	for {
		e, err := rd.readElement()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load huffman encoder: %w", err)
		}
		s, err := rd.readString()
		if err != nil {
			return nil, fmt.Errorf("load huffman encoder: %w", err)
		}
		c, err := parseBitString(s)
		if err != nil {
			return nil, err
		}
		h.codes[e.Key()] = c
	}
	if err := h.buildTrie(); err != nil {
		return nil, err
	}
	return h, nil
}
