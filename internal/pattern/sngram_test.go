package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func form(s string) *Tree { return Leaf(Feature(s, "form")) }

func formTree(s string, children ...*Tree) *Tree {
	return NewTree(Feature(s, "form"), children...)
}

// jumps [fox [The, quick, brown], dog [over, the, lazy], .]
func foxPattern() *SNGram {
	return New(formTree("jumps",
		formTree("fox", form("The"), form("quick"), form("brown")),
		formTree("dog", form("over"), form("the"), form("lazy")),
		form("."),
	), DefaultSymbols())
}

func TestLength(t *testing.T) {
	assert.Equal(t, 10, foxPattern().Length())
	assert.Equal(t, 1, New(form("a"), DefaultSymbols()).Length())
}

func TestElementsBracketsOnlyForBranches(t *testing.T) {
	sym := DefaultSymbols()
	g := New(formTree("a", formTree("b", form("c"))), sym)
	assert.Equal(t, []Element{
		Feature("a", "form"), Feature("b", "form"), Feature("c", "form"),
	}, g.Elements())

	g = New(formTree("a", form("b"), form("c")), sym)
	assert.Equal(t, []Element{
		Feature("a", "form"),
		sym.Element(LeftBracket),
		Feature("b", "form"),
		sym.Element(Comma),
		Feature("c", "form"),
		sym.Element(RightBracket),
	}, g.Elements())
}

func TestString(t *testing.T) {
	assert.Equal(t, "jumps [fox [The, quick, brown], dog [over, the, lazy], .]", foxPattern().String())

	sym := DefaultSymbols()
	sym.Left, sym.Right, sym.Comma = "(", ")", ";"
	g := New(formTree("bananas", form(","), form("and")), sym)
	assert.Equal(t, "bananas (,; and)", g.String())
}

func TestFromElementsRoundTrip(t *testing.T) {
	sym := DefaultSymbols()
	sym.Left, sym.Right, sym.Comma = "<", ">", "|"

	trees := []*Tree{
		form("a"),
		formTree("a", form("b")),
		formTree("a", formTree("b", form("c"), form("d")), form("e")),
		formTree("a", form("b"), formTree("c", formTree("d", form("e"), form("f")))),
		foxPattern().Root(),
	}
	for _, tree := range trees {
		g := New(tree, sym)
		back, err := FromElements(g.Elements(), sym)
		require.NoError(t, err)
		assert.True(t, g.Equal(back), "round trip of %s gave %s", g, back)
	}
}

func TestFromElementsErrors(t *testing.T) {
	sym := DefaultSymbols()
	a, b := Feature("a", "form"), Feature("b", "form")
	l, r, c := sym.Element(LeftBracket), sym.Element(RightBracket), sym.Element(Comma)

	cases := map[string][]Element{
		"empty":           nil,
		"unclosed":        {a, l, b, c, b},
		"top level comma": {a, c, b},
		"trailing":        {a, l, b, c, b, r, b},
		"empty child":     {a, l, c, b, r},
		"marker head":     {l, a, r},
		"foreign marker":  {a, Special(LeftBracket, "("), b, c, b, r},
	}
	for name, elems := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromElements(elems, sym)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestEqualIgnoresOrderID(t *testing.T) {
	sym := DefaultSymbols()
	x := New(NewTree(FeatureAt("fox", "form", 4), Leaf(FeatureAt("The", "form", 1))), sym)
	y := New(NewTree(FeatureAt("fox", "form", 9), Leaf(FeatureAt("The", "form", 2))), sym)
	assert.True(t, x.Equal(y))

	other := sym
	other.Comma = ";"
	assert.False(t, x.Equal(New(x.Root(), other)))
}

func TestProfile(t *testing.T) {
	sym := DefaultSymbols()
	g := New(NewTree(Feature("fox", "lemma"), Leaf(Feature("DET", "upos")), Leaf(Feature("amod", "deprel"))), sym)

	plain, err := g.Profile(false)
	require.NoError(t, err)
	assert.Equal(t, "lemma [ upos , deprel ]", plain)

	hashed, err := g.Profile(true)
	require.NoError(t, err)
	assert.NotEqual(t, plain, hashed)

	same := New(NewTree(Feature("dog", "lemma"), Leaf(Feature("NOUN", "upos")), Leaf(Feature("det", "deprel"))), sym)
	again, _ := same.Profile(true)
	assert.Equal(t, hashed, again)

	tok := New(Leaf(TokenElement(Token{"form": "fox"})), sym)
	_, err = tok.Profile(true)
	assert.ErrorIs(t, err, ErrTokenPattern)
	assert.True(t, tok.HasTokens())
	assert.False(t, g.HasTokens())
}

func TestSymbolsValidate(t *testing.T) {
	assert.NoError(t, DefaultSymbols().Validate())

	dup := DefaultSymbols()
	dup.Comma = dup.Left
	assert.ErrorIs(t, dup.Validate(), ErrSymbols)

	empty := DefaultSymbols()
	empty.TokenEnd = ""
	assert.ErrorIs(t, empty.Validate(), ErrSymbols)
	assert.NoError(t, empty.WithDefaults().Validate())
}

func TestElementKey(t *testing.T) {
	assert.Equal(t, FeatureAt("x", "form", 3).Key(), Feature("x", "form").Key())
	assert.NotEqual(t, Feature("[", "form").Key(), Special(LeftBracket, "[").Key())
	assert.True(t, Special(Comma, ",").Key().Element().Equal(Special(Comma, ",")))
}
