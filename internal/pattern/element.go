// Package pattern defines syntactic n-gram trees, their bracketed
// linearization and the projection of token trees onto feature levels.
package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// IDLevel is the token level holding the 1-based position in the sentence.
const IDLevel = "id"

// Kind tells which variant of Element is set.
type Kind uint8

const (
	KindFeature Kind = iota
	KindSpecial
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindFeature:
		return "feature"
	case KindSpecial:
		return "special"
	case KindToken:
		return "token"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Role identifies a structural marker.
type Role uint8

const (
	NoRole Role = iota
	LeftBracket
	RightBracket
	Comma
	TokenStart
	TokenEnd
)

// Roles lists every marker role in its canonical order.
var Roles = []Role{LeftBracket, RightBracket, Comma, TokenStart, TokenEnd}

func (r Role) String() string {
	switch r {
	case LeftBracket:
		return "left_bracket"
	case RightBracket:
		return "right_bracket"
	case Comma:
		return "comma"
	case TokenStart:
		return "token_start"
	case TokenEnd:
		return "token_end"
	}
	return "none"
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if r.String() == s {
			return r, true
		}
	}
	return NoRole, false
}

// Element is one position of a linearized pattern: a feature value, a
// structural marker or a whole token record.
type Element struct {
	Kind    Kind
	Form    string // feature value, or the marker symbol for specials
	Level   string
	OrderID int // -1 when unknown
	Role    Role
	Token   Token
}

// Feature returns a feature element without position.
func Feature(form, level string) Element {
	return Element{Kind: KindFeature, Form: form, Level: level, OrderID: -1}
}

// FeatureAt returns a feature element carrying its sentence position.
func FeatureAt(form, level string, orderID int) Element {
	return Element{Kind: KindFeature, Form: form, Level: level, OrderID: orderID}
}

// Special returns a structural marker.
func Special(role Role, symbol string) Element {
	return Element{Kind: KindSpecial, Form: symbol, Role: role, OrderID: -1}
}

// TokenElement wraps a token record.
func TokenElement(t Token) Element {
	return Element{Kind: KindToken, Token: t, OrderID: t.OrderID()}
}

// IsRole reports whether e is the marker for r.
func (e Element) IsRole(r Role) bool {
	return e.Kind == KindSpecial && e.Role == r
}

// Equal compares two elements. The order id of features is metadata and
// does not take part.
func (e Element) Equal(o Element) bool {
	if e.Kind != o.Kind {
		return false
	}
	switch e.Kind {
	case KindFeature:
		return e.Form == o.Form && e.Level == o.Level
	case KindSpecial:
		return e.Role == o.Role && e.Form == o.Form
	default:
		return e.Token.Equal(o.Token)
	}
}

// Key is a comparable identity of an element, consistent with Equal.
type Key struct {
	Kind  Kind
	Role  Role
	Form  string
	Level string
}

func (e Element) Key() Key {
	if e.Kind == KindToken {
		return Key{Kind: KindToken, Form: e.Token.String()}
	}
	k := Key{Kind: e.Kind, Form: e.Form}
	if e.Kind == KindFeature {
		k.Level = e.Level
	} else {
		k.Role = e.Role
	}
	return k
}

// Element rebuilds the element a key was taken from (without order id).
func (k Key) Element() Element {
	switch k.Kind {
	case KindFeature:
		return Feature(k.Form, k.Level)
	case KindSpecial:
		return Special(k.Role, k.Form)
	}
	return Element{Kind: KindToken, OrderID: -1}
}

func (e Element) String() string {
	if e.Kind == KindToken {
		return e.Token.String()
	}
	return e.Form
}

// GoString is used in test failure output.
func (e Element) GoString() string {
	switch e.Kind {
	case KindFeature:
		return e.Level + "_" + e.Form
	case KindSpecial:
		return e.Role.String() + "(" + e.Form + ")"
	}
	return e.Token.String()
}

// Token maps level names to values for a single word.
type Token map[string]string

// Levels returns the token's levels in sorted order.
func (t Token) Levels() []string {
	levels := make([]string, 0, len(t))
	for l := range t {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels
}

// OrderID parses the id level, -1 when it is absent or not a number.
func (t Token) OrderID() int {
	v, ok := t[IDLevel]
	if !ok {
		return -1
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return id
}

func (t Token) Clone() Token {
	c := make(Token, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Restrict returns a copy holding only the given levels.
func (t Token) Restrict(levels []string) Token {
	c := make(Token, len(levels))
	for _, l := range levels {
		if v, ok := t[l]; ok {
			c[l] = v
		}
	}
	return c
}

func (t Token) Equal(o Token) bool {
	if len(t) != len(o) {
		return false
	}
	for k, v := range t {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (t Token) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, l := range t.Levels() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(l)
		b.WriteByte(':')
		b.WriteString(t[l])
	}
	b.WriteByte('}')
	return b.String()
}

// ErrSymbols is returned for an unusable marker configuration.
var ErrSymbols = errors.New("invalid pattern symbols")

// Symbols holds the marker symbols used when linearizing patterns.
type Symbols struct {
	Left       string `mapstructure:"left_bracket" json:"left_bracket"`
	Right      string `mapstructure:"right_bracket" json:"right_bracket"`
	Comma      string `mapstructure:"comma" json:"comma"`
	TokenStart string `mapstructure:"token_start" json:"token_start"`
	TokenEnd   string `mapstructure:"token_end" json:"token_end"`
}

func DefaultSymbols() Symbols {
	return Symbols{
		Left:       "[",
		Right:      "]",
		Comma:      ",",
		TokenStart: "__TOKEN_START__",
		TokenEnd:   "__TOKEN_END__",
	}
}

// WithDefaults fills empty symbols from DefaultSymbols.
func (s Symbols) WithDefaults() Symbols {
	d := DefaultSymbols()
	if s.Left == "" {
		s.Left = d.Left
	}
	if s.Right == "" {
		s.Right = d.Right
	}
	if s.Comma == "" {
		s.Comma = d.Comma
	}
	if s.TokenStart == "" {
		s.TokenStart = d.TokenStart
	}
	if s.TokenEnd == "" {
		s.TokenEnd = d.TokenEnd
	}
	return s
}

// Validate rejects empty or repeated symbols. Repeated symbols would make
// the textual form of a pattern ambiguous.
func (s Symbols) Validate() error {
	seen := make(map[string]Role, len(Roles))
	for _, r := range Roles {
		sym := s.Symbol(r)
		if sym == "" {
			return fmt.Errorf("%w: %s is empty", ErrSymbols, r)
		}
		if prev, ok := seen[sym]; ok {
			return fmt.Errorf("%w: %s and %s share %q", ErrSymbols, prev, r, sym)
		}
		seen[sym] = r
	}
	return nil
}

// Symbol returns the symbol configured for r.
func (s Symbols) Symbol(r Role) string {
	switch r {
	case LeftBracket:
		return s.Left
	case RightBracket:
		return s.Right
	case Comma:
		return s.Comma
	case TokenStart:
		return s.TokenStart
	case TokenEnd:
		return s.TokenEnd
	}
	return ""
}

// Set changes the symbol of r.
func (s *Symbols) Set(r Role, symbol string) {
	switch r {
	case LeftBracket:
		s.Left = symbol
	case RightBracket:
		s.Right = symbol
	case Comma:
		s.Comma = symbol
	case TokenStart:
		s.TokenStart = symbol
	case TokenEnd:
		s.TokenEnd = symbol
	}
}

// Element returns the marker element for r.
func (s Symbols) Element(r Role) Element {
	return Special(r, s.Symbol(r))
}

// Specials returns all marker elements in canonical role order.
func (s Symbols) Specials() []Element {
	out := make([]Element, len(Roles))
	for i, r := range Roles {
		out[i] = s.Element(r)
	}
	return out
}
