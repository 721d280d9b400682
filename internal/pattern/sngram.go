package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrParse is returned when an element list is not a well formed pattern.
	ErrParse = errors.New("malformed pattern")
	// ErrTokenPattern is returned for operations that need projected elements.
	ErrTokenPattern = errors.New("pattern contains token records")
)

// SNGram is an immutable syntactic n-gram: a subtree of a dependency tree.
type SNGram struct {
	root   *Tree
	sym    Symbols
	length func() int
}

// New wraps root as a pattern linearized with sym.
func New(root *Tree, sym Symbols) *SNGram {
	return &SNGram{root: root, sym: sym, length: sync.OnceValue(root.Size)}
}

func (g *SNGram) Root() *Tree      { return g.root }
func (g *SNGram) Symbols() Symbols { return g.sym }

// Length is the number of nodes. It is computed on first use.
func (g *SNGram) Length() int {
	return g.length()
}

// Elements linearizes the pattern in pre-order. A single child follows its
// head directly, two or more children are enclosed in brackets and
// separated by commas.
func (g *SNGram) Elements() []Element {
	return g.appendElements(make([]Element, 0, 2*g.Length()), g.root)
}

func (g *SNGram) appendElements(out []Element, t *Tree) []Element {
	out = append(out, t.Element)
	switch len(t.Children) {
	case 0:
	case 1:
		out = g.appendElements(out, t.Children[0])
	default:
		out = append(out, g.sym.Element(LeftBracket))
		for i, c := range t.Children {
			if i > 0 {
				out = append(out, g.sym.Element(Comma))
			}
			out = g.appendElements(out, c)
		}
		out = append(out, g.sym.Element(RightBracket))
	}
	return out
}

// FromElements parses a linearized pattern. Brackets are matched by depth
// counting and only commas at depth one separate children.
func FromElements(elems []Element, sym Symbols) (*SNGram, error) {
	for i, e := range elems {
		if e.Kind == KindSpecial && e.Form != sym.Symbol(e.Role) {
			return nil, fmt.Errorf("%w: marker %q at %d does not match %s %q", ErrParse, e.Form, i, e.Role, sym.Symbol(e.Role))
		}
	}
	root, err := parseTree(elems)
	if err != nil {
		return nil, err
	}
	return New(root, sym), nil
}

func parseTree(elems []Element) (*Tree, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: empty element list", ErrParse)
	}
	head := elems[0]
	if head.Kind == KindSpecial {
		return nil, fmt.Errorf("%w: %s in head position", ErrParse, head.Role)
	}
	rest := elems[1:]
	if len(rest) == 0 {
		return Leaf(head), nil
	}

	switch {
	case rest[0].IsRole(LeftBracket):
		var children []*Tree
		depth, start, i := 1, 1, 1
	scan:
		for ; i < len(rest); i++ {
			switch e := rest[i]; {
			case e.IsRole(LeftBracket):
				depth++
			case e.IsRole(RightBracket):
				depth--
				if depth == 0 {
					break scan
				}
			case e.IsRole(Comma) && depth == 1:
				child, err := parseTree(rest[start:i])
				if err != nil {
					return nil, err
				}
				children = append(children, child)
				start = i + 1
			}
		}
		if depth != 0 {
			return nil, fmt.Errorf("%w: unbalanced brackets", ErrParse)
		}
		child, err := parseTree(rest[start:i])
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		if i+1 < len(rest) {
			return nil, fmt.Errorf("%w: %d elements after closing bracket", ErrParse, len(rest)-i-1)
		}
		return NewTree(head, children...), nil
	case rest[0].Kind == KindSpecial:
		return nil, fmt.Errorf("%w: %s outside of brackets", ErrParse, rest[0].Role)
	default:
		child, err := parseTree(rest)
		if err != nil {
			return nil, err
		}
		return NewTree(head, child), nil
	}
}

// Equal reports deep structural equality under the same symbols.
func (g *SNGram) Equal(o *SNGram) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.sym == o.sym && g.root.Equal(o.root)
}

// HasTokens reports whether any node still holds a token record.
func (g *SNGram) HasTokens() bool {
	found := false
	g.root.Walk(func(t *Tree) bool {
		found = t.Element.Kind == KindToken
		return !found
	})
	return found
}

// String renders the pattern in Sidorov's metalanguage, e.g.
// "fox [The, quick, brown]".
func (g *SNGram) String() string {
	elems := g.Elements()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	s := strings.Join(parts, " ")
	s = strings.ReplaceAll(s, " "+g.sym.Comma, g.sym.Comma)
	s = strings.ReplaceAll(s, g.sym.Left+" ", g.sym.Left)
	return strings.ReplaceAll(s, " "+g.sym.Right, g.sym.Right)
}

// Profile is the shape of the pattern: the level of every feature and the
// symbol of every marker, joined by spaces. With hash set the shape is
// replaced by its hex xxhash digest.
func (g *SNGram) Profile(hash bool) (string, error) {
	elems := g.Elements()
	parts := make([]string, len(elems))
	for i, e := range elems {
		switch e.Kind {
		case KindToken:
			return "", ErrTokenPattern
		case KindFeature:
			parts[i] = e.Level
		default:
			parts[i] = e.Form
		}
	}
	profile := strings.Join(parts, " ")
	if !hash {
		return profile, nil
	}
	return strconv.FormatUint(xxhash.Sum64String(profile), 16), nil
}
