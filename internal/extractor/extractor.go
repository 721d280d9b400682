// Package extractor mines syntactic n-grams from dependency trees.
package extractor

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/pattern"
)

const (
	DefaultMinSize           = 2
	DefaultMaxSize           = 6
	DefaultMaxOpenPathNumber = 100
)

// Kind selects an extractor implementation.
type Kind int

const (
	KindSyntacticNGram Kind = iota
)

// ParseKind maps a configured name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "syntactic_ngram", "sngram":
		return KindSyntacticNGram, nil
	}
	return 0, fmt.Errorf("unknown extractor kind %q", s)
}

// Conversion may replace a node by a synthetic subtree, for example a noun
// phrase by its grammatical function. It returns nil to keep the node.
type Conversion func(node *pattern.Tree) *pattern.Tree

// TreeSource yields the token tree of one sentence.
type TreeSource interface {
	Tree() (*pattern.Tree, error)
}

// Extractor turns a sentence into its set of token patterns.
type Extractor interface {
	Extract(src TreeSource) []*pattern.TokenSNGram
	// Patterns is Extract reporting why a sentence yields nothing.
	Patterns(src TreeSource) ([]*pattern.TokenSNGram, error)
}

// Config configures extraction.
//
// MaxOpenPathSize bounds the size of subtrees that may still be combined
// upwards. Zero selects MaxSize-1 and smaller positive values are raised
// to it; a negative value lifts the bound. A negative MaxOpenPathNumber
// disables the explosion guard.
type Config struct {
	Kind              Kind
	MinSize           int
	MaxSize           int
	MaxOpenPathSize   int
	MaxOpenPathNumber int
	Symbols           pattern.Symbols
	Conversion        Conversion
	Logger            *zap.Logger
}

// DefaultConfig returns the default bounds without a conversion.
func DefaultConfig() Config {
	return Config{
		MinSize:           DefaultMinSize,
		MaxSize:           DefaultMaxSize,
		MaxOpenPathNumber: DefaultMaxOpenPathNumber,
		Symbols:           pattern.DefaultSymbols(),
	}
}

// New builds the extractor selected by cfg.Kind.
func New(cfg Config) (Extractor, error) {
	switch cfg.Kind {
	case KindSyntacticNGram:
		return NewSyntacticNGram(cfg)
	}
	return nil, fmt.Errorf("unknown extractor kind %d", cfg.Kind)
}

// SyntacticNGram enumerates bottom-up subtrees: every pattern headed by a
// node contains one candidate from each of the node's children.
type SyntacticNGram struct {
	minSize     int
	maxSize     int
	openSize    int // -1: unbounded
	openNumber  int // -1: unbounded
	combineSize int // -1: unbounded
	sym         pattern.Symbols
	convert     Conversion
	log         *zap.Logger
}

func NewSyntacticNGram(cfg Config) (*SyntacticNGram, error) {
	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultMinSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("min size %d exceeds max size %d", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.MaxOpenPathNumber == 0 {
		cfg.MaxOpenPathNumber = DefaultMaxOpenPathNumber
	}
	cfg.Symbols = cfg.Symbols.WithDefaults()
	if err := cfg.Symbols.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &SyntacticNGram{
		minSize:     cfg.MinSize,
		maxSize:     cfg.MaxSize,
		openSize:    -1,
		openNumber:  -1,
		combineSize: -1,
		sym:         cfg.Symbols,
		convert:     cfg.Conversion,
		log:         cfg.Logger,
	}
	if cfg.MaxOpenPathSize >= 0 {
		e.openSize = max(cfg.MaxSize-1, cfg.MaxOpenPathSize)
		e.combineSize = max(cfg.MaxSize, e.openSize)
	}
	if cfg.MaxOpenPathNumber > 0 {
		e.openNumber = cfg.MaxOpenPathNumber
	}
	return e, nil
}

// ErrTooManyPaths aborts a sentence whose enumeration exceeds the open
// path limit.
var ErrTooManyPaths = errors.New("too many open paths")

// Extract returns the deduplicated patterns of one sentence. A sentence
// whose tree cannot be built, or whose enumeration exceeds the open path
// limit, yields no patterns at all.
func (e *SyntacticNGram) Extract(src TreeSource) []*pattern.TokenSNGram {
	out, err := e.Patterns(src)
	switch {
	case errors.Is(err, ErrTooManyPaths):
		e.log.Info("abort sentence", zap.Error(err), zap.Int("limit", e.openNumber))
	case err != nil:
		e.log.Warn("skip sentence", zap.Error(err))
	}
	return out
}

func (e *SyntacticNGram) Patterns(src TreeSource) ([]*pattern.TokenSNGram, error) {
	root, err := src.Tree()
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	var found []*pattern.Tree
	if _, err := e.subtrees(root, &found); err != nil {
		return nil, err
	}
	return e.dedup(found), nil
}

func (e *SyntacticNGram) subtrees(node *pattern.Tree, found *[]*pattern.Tree) ([]*pattern.Tree, error) {
	var open []*pattern.Tree
	add := func(path *pattern.Tree) error {
		size := path.Size()
		if size >= e.minSize && size <= e.maxSize {
			*found = append(*found, path)
		}
		if e.openSize < 0 || size <= e.openSize {
			open = append(open, path)
			if e.openNumber >= 0 && len(open) > e.openNumber {
				return fmt.Errorf("%w: node %s", ErrTooManyPaths, node.Element)
			}
		}
		return nil
	}

	if node.IsLeaf() {
		if err := add(pattern.Leaf(node.Element)); err != nil {
			return nil, err
		}
		return open, e.applyConversion(node, add)
	}

	childOpen := make([][]*pattern.Tree, len(node.Children))
	total := 0
	for i, c := range node.Children {
		paths, err := e.subtrees(c, found)
		if err != nil {
			return nil, err
		}
		childOpen[i] = paths
		total += len(paths)
	}
	if e.openNumber >= 0 && total > e.openNumber {
		return nil, fmt.Errorf("%w: %d below node %s", ErrTooManyPaths, total, node.Element)
	}
	for _, paths := range childOpen {
		if len(paths) == 0 {
			return nil, nil
		}
	}

	var err error
	formed := 0
	e.combine(childOpen, 0, make([]*pattern.Tree, 0, len(childOpen)), 1, func(children []*pattern.Tree) bool {
		formed++
		if err = add(pattern.NewTree(node.Element, slices.Clone(children)...)); err != nil {
			return false
		}
		// every combination adds another converted path to the open set
		err = e.applyConversion(node, add)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	if formed == 0 {
		// a node too large to combine is still represented by its conversion
		return open, e.applyConversion(node, add)
	}
	return open, nil
}

// combine walks the cartesian product of sets depth first, dropping
// prefixes whose size already exceeds the combine bound.
func (e *SyntacticNGram) combine(sets [][]*pattern.Tree, i int, prefix []*pattern.Tree, size int, fn func([]*pattern.Tree) bool) bool {
	if i == len(sets) {
		return fn(prefix)
	}
	for _, t := range sets[i] {
		s := size + t.Size()
		if e.combineSize >= 0 && s > e.combineSize {
			continue
		}
		if !e.combine(sets, i+1, append(prefix, t), s, fn) {
			return false
		}
	}
	return true
}

func (e *SyntacticNGram) applyConversion(node *pattern.Tree, add func(*pattern.Tree) error) error {
	if e.convert == nil {
		return nil
	}
	conv := e.convert(node)
	if conv == nil {
		return nil
	}
	return add(&pattern.Tree{Element: conv.Element, Children: conv.Children, Orig: node})
}

// dedup keeps one pattern per distinct token linearization.
func (e *SyntacticNGram) dedup(found []*pattern.Tree) []*pattern.TokenSNGram {
	type keyed struct {
		key string
		p   *pattern.TokenSNGram
	}
	all := make([]keyed, len(found))
	for i, t := range found {
		p := pattern.NewTokenSNGram(t, e.sym)
		all[i] = keyed{key: p.String(), p: p}
	}
	slices.SortStableFunc(all, func(a, b keyed) int { return cmp.Compare(a.key, b.key) })

	out := make([]*pattern.TokenSNGram, 0, len(all))
	for i, k := range all {
		if i > 0 && all[i-1].key == k.key {
			continue
		}
		out = append(out, k.p)
	}
	return out
}
