// Package config loads extraction settings from a file and the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/extractor"
	"github.com/rcliao/sngram/internal/logging"
	"github.com/rcliao/sngram/internal/pattern"
)

// EnvPrefix prefixes environment overrides, e.g. SNGRAM_EXTRACTOR_MAX_SIZE.
const EnvPrefix = "SNGRAM"

// Config holds every setting of the command line tool.
type Config struct {
	// WordLevel is the level of base patterns.
	WordLevel string `mapstructure:"word_level"`
	// Levels are the levels patterns are projected onto.
	Levels []string `mapstructure:"levels"`
	// PhraseTags select the nodes converted to ConversionLevel leaves when
	// Conversion is empty.
	PhraseTags      []string `mapstructure:"phrase_tags"`
	Conversion      string   `mapstructure:"conversion"`
	ConversionLevel string   `mapstructure:"conversion_level"`
	ConversionFrom  string   `mapstructure:"conversion_source"`
	Unknown         string   `mapstructure:"unknown"`

	Extractor Extractor       `mapstructure:"extractor"`
	Symbols   pattern.Symbols `mapstructure:"symbols"`

	Workers   int  `mapstructure:"workers"`
	ChunkSize int  `mapstructure:"chunk_size"`
	Ordered   bool `mapstructure:"ordered"`
	// CacheSize bounds the encoded item cache, in bytes.
	CacheSize int  `mapstructure:"cache_size"`
	NFC       bool `mapstructure:"nfc"`

	Log logging.Conf `mapstructure:"log"`
}

type Extractor struct {
	Kind              string `mapstructure:"kind"`
	MinSize           int    `mapstructure:"min_size"`
	MaxSize           int    `mapstructure:"max_size"`
	MaxOpenPathSize   int    `mapstructure:"max_open_path_size"`
	MaxOpenPathNumber int    `mapstructure:"max_open_path_number"`
}

func setDefaults(v *viper.Viper) {
	sym := pattern.DefaultSymbols()
	lc := logging.SetDefaults()

	v.SetDefault("word_level", "form")
	v.SetDefault("levels", []string{"lemma", "upos", extractor.DefaultConversionLevel})
	v.SetDefault("phrase_tags", []string{"NOUN", "PROPN"})
	v.SetDefault("conversion", "")
	v.SetDefault("conversion_level", extractor.DefaultConversionLevel)
	v.SetDefault("conversion_source", extractor.DefaultSourceLevel)
	v.SetDefault("unknown", "__unknown__")

	v.SetDefault("extractor.kind", "syntactic_ngram")
	v.SetDefault("extractor.min_size", extractor.DefaultMinSize)
	v.SetDefault("extractor.max_size", extractor.DefaultMaxSize)
	v.SetDefault("extractor.max_open_path_size", 0)
	v.SetDefault("extractor.max_open_path_number", extractor.DefaultMaxOpenPathNumber)

	v.SetDefault("symbols.left_bracket", sym.Left)
	v.SetDefault("symbols.right_bracket", sym.Right)
	v.SetDefault("symbols.comma", sym.Comma)
	v.SetDefault("symbols.token_start", sym.TokenStart)
	v.SetDefault("symbols.token_end", sym.TokenEnd)

	v.SetDefault("workers", 0)
	v.SetDefault("chunk_size", 64)
	v.SetDefault("ordered", true)
	v.SetDefault("cache_size", 32<<20)
	v.SetDefault("nfc", false)

	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.path", lc.Path)
	v.SetDefault("log.filename", lc.Filename)
	v.SetDefault("log.rotate_size", lc.RotateSize)
	v.SetDefault("log.rotate_num", lc.RotateNum)
	v.SetDefault("log.keep_days", lc.KeepDays)
}

// Load reads path (JSON, YAML or TOML by extension) on top of the defaults
// and applies SNGRAM_ environment overrides. An empty path reads no file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WordLevel == "" {
		return fmt.Errorf("word_level is required")
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("levels must name at least one level")
	}
	if _, err := extractor.ParseKind(c.Extractor.Kind); err != nil {
		return err
	}
	if c.Extractor.MinSize > c.Extractor.MaxSize {
		return fmt.Errorf("extractor.min_size %d exceeds extractor.max_size %d", c.Extractor.MinSize, c.Extractor.MaxSize)
	}
	c.Symbols = c.Symbols.WithDefaults()
	if err := c.Symbols.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// NewConversion returns the node conversion, nil when neither an
// expression nor phrase tags are configured.
func (c *Config) NewConversion() (*extractor.ExprConversion, error) {
	switch {
	case c.Conversion != "":
		return extractor.NewExprConversion(c.Conversion, c.ConversionLevel, c.ConversionFrom)
	case len(c.PhraseTags) > 0:
		return extractor.PhraseTagConversion(c.PhraseTags, c.ConversionLevel)
	}
	return nil, nil
}

// ExtractorConfig turns the settings into an extractor configuration.
func (c *Config) ExtractorConfig(log *zap.Logger) (extractor.Config, error) {
	kind, err := extractor.ParseKind(c.Extractor.Kind)
	if err != nil {
		return extractor.Config{}, err
	}
	conv, err := c.NewConversion()
	if err != nil {
		return extractor.Config{}, err
	}
	cfg := extractor.Config{
		Kind:              kind,
		MinSize:           c.Extractor.MinSize,
		MaxSize:           c.Extractor.MaxSize,
		MaxOpenPathSize:   c.Extractor.MaxOpenPathSize,
		MaxOpenPathNumber: c.Extractor.MaxOpenPathNumber,
		Symbols:           c.Symbols,
		Logger:            log,
	}
	if conv != nil {
		cfg.Conversion = conv.Convert
	}
	return cfg, nil
}
