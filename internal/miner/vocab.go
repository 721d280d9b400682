package miner

import (
	"fmt"

	"github.com/rcliao/sngram/internal/codec"
	"github.com/rcliao/sngram/internal/conllu"
	"github.com/rcliao/sngram/internal/extractor"
)

// Vocabulary counts the values every token takes on levels. The
// conversion level, when conv is set, takes the converted value of
// matching tokens and is absent otherwise.
func Vocabulary(r *conllu.Reader, levels []string, conv *extractor.ExprConversion) (codec.Frequencies, error) {
	freqs := make(codec.Frequencies, len(levels))
	for s, err := range r.All() {
		if err != nil {
			return nil, fmt.Errorf("read vocabulary: %w", err)
		}
		for _, tok := range s.Tokens {
			for _, level := range levels {
				var v string
				var ok bool
				if conv != nil && level == conv.Level() {
					v, ok = conv.Value(tok.Fields)
				} else {
					v, ok = tok.Fields[level]
				}
				if ok {
					freqs.Add(level, v)
				}
			}
		}
	}
	return freqs, nil
}

// Forms lists the forms of every level, most frequent first.
func Forms(freqs codec.Frequencies) map[string][]string {
	d := freqs.Dictionary()
	out := make(map[string][]string, len(d))
	for _, level := range d.Levels() {
		out[level] = d.Forms(level)
	}
	return out
}
