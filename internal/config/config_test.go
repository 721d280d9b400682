package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sngram/internal/extractor"
	"github.com/rcliao/sngram/internal/pattern"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "form", cfg.WordLevel)
	assert.Equal(t, []string{"lemma", "upos", "np_function"}, cfg.Levels)
	assert.Equal(t, extractor.DefaultMaxSize, cfg.Extractor.MaxSize)
	assert.Equal(t, extractor.DefaultMaxOpenPathNumber, cfg.Extractor.MaxOpenPathNumber)
	assert.Equal(t, pattern.DefaultSymbols(), cfg.Symbols)
	assert.True(t, cfg.Ordered)
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sngram.yaml", `
word_level: lemma
levels: [upos]
phrase_tags: []
extractor:
  min_size: 3
  max_size: 4
symbols:
  left_bracket: "("
  right_bracket: ")"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lemma", cfg.WordLevel)
	assert.Equal(t, []string{"upos"}, cfg.Levels)
	assert.Equal(t, 3, cfg.Extractor.MinSize)
	assert.Equal(t, 4, cfg.Extractor.MaxSize)
	assert.Equal(t, "(", cfg.Symbols.Left)
	assert.Equal(t, ",", cfg.Symbols.Comma)

	conv, err := cfg.NewConversion()
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "sngram.json", `{"conversion": "deprel == \"obj\"", "unknown": "<unk>"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "<unk>", cfg.Unknown)

	conv, err := cfg.NewConversion()
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.True(t, conv.Match(pattern.Token{"deprel": "obj"}))
	assert.False(t, conv.Match(pattern.Token{"deprel": "nsubj"}))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SNGRAM_EXTRACTOR_MAX_SIZE", "9")
	t.Setenv("SNGRAM_WORD_LEVEL", "lemma")
	t.Setenv("SNGRAM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Extractor.MaxSize)
	assert.Equal(t, "lemma", cfg.WordLevel)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "extractor:\n  min_size: 5\n  max_size: 2\n")
	_, err = Load(bad)
	assert.Error(t, err)

	dup := writeFile(t, "dup.yaml", "symbols:\n  comma: \"[\"\n")
	_, err = Load(dup)
	assert.ErrorIs(t, err, pattern.ErrSymbols)

	kind := writeFile(t, "kind.yaml", "extractor:\n  kind: ngram\n")
	_, err = Load(kind)
	assert.Error(t, err)
}

func TestExtractorConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	ec, err := cfg.ExtractorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, extractor.KindSyntacticNGram, ec.Kind)
	assert.NotNil(t, ec.Conversion)

	root := pattern.Leaf(pattern.TokenElement(pattern.Token{"upos": "NOUN", "deprel": "obj", "id": "3"}))
	conv := ec.Conversion(root)
	require.NotNil(t, conv)
	assert.Equal(t, pattern.Token{"np_function": "obj", "id": "3"}, conv.Element.Token)
}
