package codec

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/rcliao/sngram/internal/pattern"
)

// SpecialKey is the reserved top level key carrying symbol and unknown
// overrides in dictionary and frequency files.
const SpecialKey = "__special__"

// Dictionary maps level -> form -> id. Ids of a level form the dense
// range [0, n).
type Dictionary map[string]map[string]int

// DictionaryFromForms assigns ids in the given order.
func DictionaryFromForms(forms map[string][]string) Dictionary {
	d := make(Dictionary, len(forms))
	for level, fs := range forms {
		m := make(map[string]int, len(fs))
		for _, f := range fs {
			if _, ok := m[f]; !ok {
				m[f] = len(m)
			}
		}
		d[level] = m
	}
	return d
}

// Levels returns the level names in sorted order.
func (d Dictionary) Levels() []string {
	levels := make([]string, 0, len(d))
	for l := range d {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels
}

// Forms returns the forms of level ordered by id.
func (d Dictionary) Forms(level string) []string {
	forms := make([]string, len(d[level]))
	for f, id := range d[level] {
		if id >= 0 && id < len(forms) {
			forms[id] = f
		}
	}
	return forms
}

// Validate checks that every level uses each id of [0, n) exactly once.
func (d Dictionary) Validate() error {
	for level, m := range d {
		seen := make([]bool, len(m))
		for f, id := range m {
			if id < 0 || id >= len(m) {
				return fmt.Errorf("level %q: id %d of %q outside [0, %d)", level, id, f, len(m))
			}
			if seen[id] {
				return fmt.Errorf("level %q: id %d assigned twice", level, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// Frequencies maps level -> form -> count.
type Frequencies map[string]map[string]int64

// Add counts one occurrence of form at level.
func (f Frequencies) Add(level, form string) {
	m, ok := f[level]
	if !ok {
		m = map[string]int64{}
		f[level] = m
	}
	m[form]++
}

// Dictionary assigns ids by descending frequency, ties broken by form.
func (f Frequencies) Dictionary() Dictionary {
	forms := make(map[string][]string, len(f))
	for level, m := range f {
		fs := make([]string, 0, len(m))
		for form := range m {
			fs = append(fs, form)
		}
		slices.SortFunc(fs, func(a, b string) int {
			if c := cmp.Compare(m[b], m[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		forms[level] = fs
	}
	return DictionaryFromForms(forms)
}

// Max returns the highest count over all levels.
func (f Frequencies) Max() int64 {
	var mx int64
	for _, m := range f {
		for _, n := range m {
			mx = max(mx, n)
		}
	}
	return mx
}

// Overrides are the settings found under SpecialKey. Unset symbols are
// empty.
type Overrides struct {
	Symbols pattern.Symbols
	Unknown string
}

// Apply returns sym and unknown with the overrides set on top.
func (o Overrides) Apply(sym pattern.Symbols, unknown string) (pattern.Symbols, string) {
	for _, r := range pattern.Roles {
		if v := o.Symbols.Symbol(r); v != "" {
			sym.Set(r, v)
		}
	}
	if o.Unknown != "" {
		unknown = o.Unknown
	}
	return sym, unknown
}

func parseOverrides(raw json.RawMessage) (Overrides, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return Overrides{}, fmt.Errorf("parse %s: %w", SpecialKey, err)
	}
	var o Overrides
	for k, v := range m {
		if k == "unknown" {
			o.Unknown = v
			continue
		}
		r, ok := pattern.ParseRole(k)
		if !ok {
			return Overrides{}, fmt.Errorf("parse %s: unknown key %q", SpecialKey, k)
		}
		o.Symbols.Set(r, v)
	}
	return o, nil
}

// ParseDictionary reads a JSON object whose levels map forms to ids or
// list forms in id order.
func ParseDictionary(r io.Reader) (Dictionary, Overrides, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, Overrides{}, fmt.Errorf("parse dictionary: %w", err)
	}

	var o Overrides
	d := make(Dictionary, len(raw))
	lists := map[string][]string{}
	for level, msg := range raw {
		if level == SpecialKey {
			var err error
			if o, err = parseOverrides(msg); err != nil {
				return nil, Overrides{}, err
			}
			continue
		}
		var ids map[string]int
		if err := json.Unmarshal(msg, &ids); err == nil {
			d[level] = ids
			continue
		}
		var forms []string
		if err := json.Unmarshal(msg, &forms); err != nil {
			return nil, Overrides{}, fmt.Errorf("parse dictionary level %q: %w", level, err)
		}
		lists[level] = forms
	}
	for level, m := range DictionaryFromForms(lists) {
		d[level] = m
	}
	if err := d.Validate(); err != nil {
		return nil, Overrides{}, err
	}
	return d, o, nil
}

// ParseFrequencies reads a JSON object of level -> form -> count.
func ParseFrequencies(r io.Reader) (Frequencies, Overrides, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, Overrides{}, fmt.Errorf("parse frequencies: %w", err)
	}

	var o Overrides
	f := make(Frequencies, len(raw))
	for level, msg := range raw {
		if level == SpecialKey {
			var err error
			if o, err = parseOverrides(msg); err != nil {
				return nil, Overrides{}, err
			}
			continue
		}
		var m map[string]int64
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, Overrides{}, fmt.Errorf("parse frequencies level %q: %w", level, err)
		}
		f[level] = m
	}
	return f, o, nil
}
