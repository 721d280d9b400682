package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrNoProjection        = errors.New("pattern has no projection to level")
	ErrAmbiguousProjection = errors.New("projection yields more than one pattern")
)

// TokenSNGram is a pattern whose nodes hold whole token records. It is
// projected onto feature levels to obtain the mined patterns.
type TokenSNGram struct {
	*SNGram
}

func NewTokenSNGram(root *Tree, sym Symbols) *TokenSNGram {
	return &TokenSNGram{SNGram: New(root, sym)}
}

// Projections returns every assignment of one of features to each node.
// Nodes lacking a feature are skipped for it. For each node the features
// vary slowest, in the order given.
func (p *TokenSNGram) Projections(features []string) []*SNGram {
	trees := project(p.root, features, false)
	out := make([]*SNGram, len(trees))
	for i, t := range trees {
		out[i] = New(t, p.sym)
	}
	return out
}

// BasePattern projects every node onto level, reading converted nodes
// as the subtree they were converted from.
func (p *TokenSNGram) BasePattern(level string) (*SNGram, error) {
	trees := project(p.root, []string{level}, true)
	switch len(trees) {
	case 0:
		return nil, fmt.Errorf("%w %q", ErrNoProjection, level)
	case 1:
		return New(trees[0], p.sym), nil
	}
	return nil, fmt.Errorf("%w: %d for level %q", ErrAmbiguousProjection, len(trees), level)
}

// FullPattern returns the token pattern as it was before node conversion:
// every converted node is expanded back into its original subtree.
func (p *TokenSNGram) FullPattern() *TokenSNGram {
	return NewTokenSNGram(original(p.root), p.sym)
}

// MapTokens returns the full pattern with every token record replaced by
// fn's result.
func (p *TokenSNGram) MapTokens(fn func(Token) Token) *TokenSNGram {
	var walk func(t *Tree) *Tree
	walk = func(t *Tree) *Tree {
		if t.Orig != nil {
			t = t.Orig
		}
		el := t.Element
		if el.Kind == KindToken {
			el = TokenElement(fn(el.Token))
		}
		n := &Tree{Element: el}
		for _, c := range t.Children {
			n.Children = append(n.Children, walk(c))
		}
		return n
	}
	return NewTokenSNGram(walk(p.root), p.sym)
}

// Positions returns the sorted sentence ids of the original nodes.
func (p *TokenSNGram) Positions() ([]int, error) {
	base, err := p.BasePattern(IDLevel)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, e := range base.Elements() {
		if e.Kind != KindFeature {
			continue
		}
		id, err := strconv.Atoi(e.Form)
		if err != nil {
			return nil, fmt.Errorf("parse position %q: %w", e.Form, err)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// original rebuilds t with every converted node replaced by the subtree
// it was converted from.
func original(t *Tree) *Tree {
	if t.Orig != nil {
		t = t.Orig
	}
	n := &Tree{Element: t.Element}
	for _, c := range t.Children {
		n.Children = append(n.Children, original(c))
	}
	return n
}

func project(t *Tree, features []string, useOrig bool) []*Tree {
	if useOrig && t.Orig != nil {
		t = t.Orig
	}
	tok := t.Element.Token

	childSets := make([][]*Tree, len(t.Children))
	for i, c := range t.Children {
		childSets[i] = project(c, features, useOrig)
	}
	combos := Product(childSets)

	var out []*Tree
	for _, f := range features {
		v, ok := tok[f]
		if !ok {
			continue
		}
		el := FeatureAt(v, f, tok.OrderID())
		for _, children := range combos {
			out = append(out, NewTree(el, children...))
		}
	}
	return out
}

// Product returns the cartesian product of sets, the last set varying
// fastest. The product of no sets is a single empty combination.
func Product[T any](sets [][]T) [][]T {
	out := [][]T{nil}
	for _, set := range sets {
		next := make([][]T, 0, len(out)*len(set))
		for _, prefix := range out {
			for _, item := range set {
				combo := make([]T, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, item))
			}
		}
		out = next
	}
	return out
}
