// Package miner turns parsed sentences into encoded pattern records.
//
// Every token pattern of a sentence yields one record per projection onto
// the configured levels, keyed by the encoded projection and holding the
// encoded full token pattern. The full pattern itself is recorded once per
// sentence with the token positions it covers.
package miner

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/codec"
	"github.com/rcliao/sngram/internal/conllu"
	"github.com/rcliao/sngram/internal/extractor"
	"github.com/rcliao/sngram/internal/metrics"
	"github.com/rcliao/sngram/internal/model"
	"github.com/rcliao/sngram/internal/pattern"
)

// DefaultCacheSize bounds the item cache when Options.CacheSize is zero.
const DefaultCacheSize = 32 << 20

// Options configures a Miner.
type Options struct {
	// WordLevel is the level of the surface pattern. Projections equal to
	// it are not recorded.
	WordLevel string
	// Levels are the levels patterns are projected onto.
	Levels []string
	// TokenLevels are the token fields kept in full patterns.
	TokenLevels []string
	// Aliases rename token fields in full patterns, e.g. deprel to the
	// conversion level so both share codes.
	Aliases map[string]string
	// KeepWord drops token patterns without a token whose KeepLevel field
	// equals it. KeepLevel defaults to WordLevel.
	KeepWord  string
	KeepLevel string
	// SkipUnknown drops projections containing an element the codec has
	// no code of its own for.
	SkipUnknown bool
	// CacheSize bounds the item cache in bytes.
	CacheSize int

	Metrics *metrics.Extraction
	Logger  *zap.Logger
}

// DefaultOptions projects onto lemma, upos and the phrase function, with
// deprel standing in for the phrase function in full patterns.
func DefaultOptions() Options {
	return Options{
		WordLevel:   "form",
		Levels:      []string{"lemma", "upos", extractor.DefaultConversionLevel},
		TokenLevels: []string{"lemma", "upos", extractor.DefaultSourceLevel},
		Aliases:     map[string]string{extractor.DefaultSourceLevel: extractor.DefaultConversionLevel},
		CacheSize:   DefaultCacheSize,
	}
}

// Record is one line of mining output.
type Record struct {
	Kind    string
	Encoded string
	Content string
}

type knower interface {
	Has(pattern.Element) bool
}

// Miner extracts, projects and encodes patterns. Safe for concurrent use
// when the extractor is.
type Miner struct {
	ext   extractor.Extractor
	cache *codec.ItemCache
	known knower
	opts  Options
	log   *zap.Logger
}

// New returns a miner encoding with c. Codecs other than Base64 are
// armored so records fit on a line.
func New(ext extractor.Extractor, c codec.Codec, opts Options) (*Miner, error) {
	if opts.WordLevel == "" {
		return nil, errors.New("miner: word level is required")
	}
	if len(opts.Levels) == 0 {
		return nil, errors.New("miner: no projection levels")
	}
	if len(opts.TokenLevels) == 0 {
		opts.TokenLevels = opts.Levels
	}
	if opts.KeepLevel == "" {
		opts.KeepLevel = opts.WordLevel
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b, ok := c.(*codec.Base64)
	if !ok {
		b = codec.NewBase64(c)
	}
	return &Miner{
		ext:   ext,
		cache: codec.NewItemCache(b, opts.CacheSize),
		known: b,
		opts:  opts,
		log:   opts.Logger,
	}, nil
}

// Cache returns the item cache, for statistics.
func (m *Miner) Cache() *codec.ItemCache { return m.cache }

// Sentence mines one sentence. nr is the zero based position of the
// sentence in the corpus. A sentence that cannot be extracted yields no
// records and the extraction error.
func (m *Miner) Sentence(nr int, s *conllu.Sentence) ([]Record, error) {
	m.log.Debug("extract sentence", zap.Int("nr", nr+1), zap.String("sent_id", s.ID()))

	tps, err := m.ext.Patterns(s)
	if m.opts.Metrics != nil {
		m.opts.Metrics.ObserveSentence(len(tps), err)
	}
	if err != nil {
		return nil, err
	}

	var out []Record
	var order []string
	positions := map[string][][]int{}
	for _, tp := range tps {
		if !m.keep(tp) {
			continue
		}
		base, recs, err := m.project(tp)
		if err != nil {
			m.encodeError(tp, err)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		pos, err := tp.Positions()
		if err != nil {
			m.log.Warn("skip pattern", zap.String("pattern", tp.String()), zap.Error(err))
			continue
		}
		if _, ok := positions[base]; !ok {
			order = append(order, base)
		}
		positions[base] = append(positions[base], pos)
		out = append(out, recs...)
	}

	for _, base := range order {
		for _, pos := range uniquePositions(positions[base]) {
			content, err := json.Marshal([]any{nr + 1, pos})
			if err != nil {
				return nil, fmt.Errorf("marshal positions: %w", err)
			}
			out = append(out, Record{Kind: model.KindBase, Encoded: base, Content: string(content)})
		}
	}

	if m.opts.Metrics != nil {
		for _, r := range out {
			m.opts.Metrics.Patterns.WithLabelValues(r.Kind).Inc()
		}
	}
	return out, nil
}

// project returns the encoded full pattern and one record per kept
// projection. The full pattern is only encoded once a projection is kept.
func (m *Miner) project(tp *pattern.TokenSNGram) (string, []Record, error) {
	surface, err := tp.BasePattern(m.opts.WordLevel)
	if err != nil {
		return "", nil, err
	}

	var base string
	var out []Record
	for _, p := range tp.Projections(m.opts.Levels) {
		if p.Equal(surface) {
			continue
		}
		if m.opts.SkipUnknown && !m.knows(p) {
			continue
		}
		if base == "" {
			if base, err = m.encode(m.full(tp).SNGram); err != nil {
				return "", nil, err
			}
		}
		enc, err := m.encode(p)
		if err != nil {
			return "", nil, err
		}
		out = append(out, Record{Kind: model.KindProjected, Encoded: enc, Content: base})
	}
	return base, out, nil
}

func (m *Miner) keep(tp *pattern.TokenSNGram) bool {
	if m.opts.KeepWord == "" {
		return true
	}
	for _, e := range tp.FullPattern().Elements() {
		if e.Kind == pattern.KindToken && e.Token[m.opts.KeepLevel] == m.opts.KeepWord {
			return true
		}
	}
	return false
}

func (m *Miner) knows(p *pattern.SNGram) bool {
	for _, e := range p.Elements() {
		if !m.known.Has(e) {
			return false
		}
	}
	return true
}

// full restricts the original tokens to the token levels, renamed by the
// aliases.
func (m *Miner) full(tp *pattern.TokenSNGram) *pattern.TokenSNGram {
	return tp.MapTokens(func(tok pattern.Token) pattern.Token {
		out := make(pattern.Token, len(m.opts.TokenLevels))
		for _, level := range m.opts.TokenLevels {
			v, ok := tok[level]
			if !ok {
				continue
			}
			if alias, ok := m.opts.Aliases[level]; ok {
				level = alias
			}
			out[level] = v
		}
		return out
	})
}

func (m *Miner) encode(p *pattern.SNGram) (string, error) {
	b, err := m.cache.Encode(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *Miner) encodeError(tp *pattern.TokenSNGram, err error) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.EncodeErrors.Inc()
	}
	m.log.Warn("skip pattern", zap.String("pattern", tp.String()), zap.Error(err))
}

// uniquePositions sorts position lists and drops repeats.
func uniquePositions(lists [][]int) [][]int {
	out := slices.Clone(lists)
	slices.SortFunc(out, slices.Compare[[]int])
	return slices.CompactFunc(out, slices.Equal[[]int])
}
