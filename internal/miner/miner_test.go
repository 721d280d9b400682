package miner

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sngram/internal/codec"
	"github.com/rcliao/sngram/internal/conllu"
	"github.com/rcliao/sngram/internal/extractor"
	"github.com/rcliao/sngram/internal/metrics"
	"github.com/rcliao/sngram/internal/model"
)

const corpus = `# sent_id = bark
# text = Dogs bark loudly
1	Dogs	dog	NOUN	NNS	_	2	nsubj	_	_
2	bark	bark	VERB	VBP	_	0	root	_	_
3	loudly	loudly	ADV	RB	_	2	advmod	_	_

# sent_id = broken
1	Cats	cat	NOUN	NNS	_	0	nsubj	_	_
2	sleep	sleep	VERB	VBP	_	0	root	_	_
`

var levels = []string{"form", "lemma", "upos", extractor.DefaultConversionLevel}

func readCorpus(t *testing.T) []*conllu.Sentence {
	t.Helper()
	var out []*conllu.Sentence
	for s, err := range conllu.NewReader(strings.NewReader(corpus), conllu.Options{}).All() {
		require.NoError(t, err)
		out = append(out, s)
	}
	require.Len(t, out, 2)
	return out
}

func nounConversion(t *testing.T) *extractor.ExprConversion {
	t.Helper()
	conv, err := extractor.PhraseTagConversion([]string{"NOUN"}, "")
	require.NoError(t, err)
	return conv
}

func vocabulary(t *testing.T) codec.Frequencies {
	t.Helper()
	freqs, err := Vocabulary(conllu.NewReader(strings.NewReader(corpus), conllu.Options{}), levels, nounConversion(t))
	require.NoError(t, err)
	return freqs
}

func newMiner(t *testing.T, freqs codec.Frequencies, opts Options) (*Miner, *codec.Base64) {
	t.Helper()
	cfg := extractor.DefaultConfig()
	cfg.Conversion = nounConversion(t).Convert
	ext, err := extractor.New(cfg)
	require.NoError(t, err)

	h, err := codec.NewHuffmanEncoder(freqs, codec.HuffmanOptions{Unknown: "__unknown__"})
	require.NoError(t, err)
	b := codec.NewBase64(h)

	m, err := New(ext, b, opts)
	require.NoError(t, err)
	return m, b
}

func decoded(t *testing.T, b *codec.Base64, recs []Record, kind string) []string {
	t.Helper()
	var out []string
	for _, r := range recs {
		if r.Kind != kind {
			continue
		}
		p, err := b.DecodeText(r.Encoded)
		require.NoError(t, err)
		out = append(out, p.String())
	}
	return out
}

func TestVocabulary(t *testing.T) {
	freqs := vocabulary(t)

	assert.Equal(t, map[string]int64{"Dogs": 1, "bark": 1, "loudly": 1, "Cats": 1, "sleep": 1}, freqs["form"])
	assert.Equal(t, int64(2), freqs["upos"]["NOUN"])
	// only converted tokens have a phrase function
	assert.Equal(t, map[string]int64{"nsubj": 2}, freqs[extractor.DefaultConversionLevel])
}

func TestForms(t *testing.T) {
	forms := Forms(vocabulary(t))
	assert.Equal(t, []string{"NOUN", "VERB", "ADV"}, forms["upos"])
	assert.Equal(t, []string{"nsubj"}, forms[extractor.DefaultConversionLevel])
}

func TestSentence(t *testing.T) {
	m, b := newMiner(t, vocabulary(t), DefaultOptions())

	recs, err := m.Sentence(0, readCorpus(t)[0])
	require.NoError(t, err)

	projected := decoded(t, b, recs, model.KindProjected)
	assert.Len(t, projected, 12)
	assert.Contains(t, projected, "bark [nsubj, loudly]")
	assert.Contains(t, projected, "VERB [NOUN, ADV]")
	assert.Contains(t, projected, "VERB [nsubj, ADV]")
	assert.NotContains(t, projected, "bark [Dogs, loudly]")

	// both token patterns share one full pattern and one position list
	var bases []Record
	for _, r := range recs {
		if r.Kind == model.KindBase {
			bases = append(bases, r)
		}
	}
	require.Len(t, bases, 1)
	assert.Equal(t, "[1,[1,2,3]]", bases[0].Content)

	full, err := b.DecodeText(bases[0].Encoded)
	require.NoError(t, err)
	assert.True(t, full.HasTokens())

	for _, r := range recs {
		if r.Kind == model.KindProjected {
			assert.Equal(t, bases[0].Encoded, r.Content)
		}
	}
}

func TestSentenceNumber(t *testing.T) {
	m, _ := newMiner(t, vocabulary(t), DefaultOptions())

	recs, err := m.Sentence(41, readCorpus(t)[0])
	require.NoError(t, err)
	last := recs[len(recs)-1]
	assert.Equal(t, model.KindBase, last.Kind)
	assert.Equal(t, "[42,[1,2,3]]", last.Content)
}

func TestSentenceKeepWord(t *testing.T) {
	s := readCorpus(t)[0]

	opts := DefaultOptions()
	opts.KeepLevel = "lemma"
	opts.KeepWord = "cat"
	m, _ := newMiner(t, vocabulary(t), opts)
	recs, err := m.Sentence(0, s)
	require.NoError(t, err)
	assert.Empty(t, recs)

	opts.KeepWord = "dog"
	m, _ = newMiner(t, vocabulary(t), opts)
	recs, err = m.Sentence(0, s)
	require.NoError(t, err)
	assert.Len(t, recs, 13)
}

func TestSentenceSkipUnknown(t *testing.T) {
	freqs := vocabulary(t)
	delete(freqs["lemma"], "loudly")

	opts := DefaultOptions()
	opts.SkipUnknown = true
	m, b := newMiner(t, freqs, opts)

	recs, err := m.Sentence(0, readCorpus(t)[0])
	require.NoError(t, err)
	projected := decoded(t, b, recs, model.KindProjected)
	assert.Len(t, projected, 6)
	for _, p := range projected {
		assert.NotContains(t, p, "loudly")
	}
	// the full pattern falls back to the unknown lemma
	assert.Len(t, decoded(t, b, recs, model.KindBase), 1)
}

func TestSentenceMalformed(t *testing.T) {
	m, _ := newMiner(t, vocabulary(t), DefaultOptions())

	recs, err := m.Sentence(1, readCorpus(t)[1])
	require.ErrorIs(t, err, conllu.ErrMalformed)
	assert.Empty(t, recs)
}

func TestSentenceMetrics(t *testing.T) {
	opts := DefaultOptions()
	opts.Metrics = metrics.NewExtraction()
	m, _ := newMiner(t, vocabulary(t), opts)

	for i, s := range readCorpus(t) {
		_, _ = m.Sentence(i, s)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(opts.Metrics.Sentences))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.Skipped))
	assert.Equal(t, 12.0, testutil.ToFloat64(opts.Metrics.Patterns.WithLabelValues(model.KindProjected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.Patterns.WithLabelValues(model.KindBase)))
}

func TestNewRequiresLevels(t *testing.T) {
	ext, err := extractor.New(extractor.DefaultConfig())
	require.NoError(t, err)
	h, err := codec.NewHuffmanEncoder(vocabulary(t), codec.HuffmanOptions{})
	require.NoError(t, err)

	_, err = New(ext, h, Options{Levels: levels})
	assert.Error(t, err)
	_, err = New(ext, h, Options{WordLevel: "form"})
	assert.Error(t, err)
}
