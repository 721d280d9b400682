package extractor

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rcliao/sngram/internal/pattern"
)

const (
	// DefaultConversionLevel is the level of synthetic phrase nodes.
	DefaultConversionLevel = "np_function"
	// DefaultSourceLevel supplies the value of synthetic phrase nodes.
	DefaultSourceLevel = "deprel"
)

// ExprConversion replaces every node whose token satisfies a boolean
// expression by a leaf {level: token[source], id: token[id]}.
//
// The expression sees each token level as a variable and the whole record
// as "token", e.g. `upos in ["NOUN", "PROPN"]` or `token.deprel == "obj"`.
type ExprConversion struct {
	program *vm.Program
	level   string
	source  string
}

// NewExprConversion compiles expression. Empty level and source select
// the defaults.
func NewExprConversion(expression, level, source string) (*ExprConversion, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty conversion expression")
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile conversion expression: %w", err)
	}
	if level == "" {
		level = DefaultConversionLevel
	}
	if source == "" {
		source = DefaultSourceLevel
	}
	return &ExprConversion{program: program, level: level, source: source}, nil
}

// PhraseTagConversion converts nodes whose upos is one of tags.
func PhraseTagConversion(tags []string, level string) (*ExprConversion, error) {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return NewExprConversion("upos in ["+strings.Join(quoted, ", ")+"]", level, DefaultSourceLevel)
}

// Match evaluates the expression against a token. Evaluation errors count
// as no match.
func (c *ExprConversion) Match(tok pattern.Token) bool {
	env := make(map[string]any, len(tok)+1)
	for k, v := range tok {
		env[k] = v
	}
	env["token"] = map[string]string(tok)

	out, err := expr.Run(c.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Convert implements Conversion.
func (c *ExprConversion) Convert(node *pattern.Tree) *pattern.Tree {
	tok := node.Element.Token
	if node.Element.Kind != pattern.KindToken || !c.Match(tok) {
		return nil
	}
	v, ok := tok[c.source]
	if !ok {
		return nil
	}
	synth := pattern.Token{c.level: v}
	if id, ok := tok[pattern.IDLevel]; ok {
		synth[pattern.IDLevel] = id
	}
	return pattern.Leaf(pattern.TokenElement(synth))
}

// Level is the level of the synthetic leaves.
func (c *ExprConversion) Level() string { return c.level }

// Source is the token level the synthetic value is read from.
func (c *ExprConversion) Source() string { return c.source }

// Value returns the value tok takes on the conversion level.
func (c *ExprConversion) Value(tok pattern.Token) (string, bool) {
	if !c.Match(tok) {
		return "", false
	}
	v, ok := tok[c.source]
	return v, ok
}
