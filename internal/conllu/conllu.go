// Package conllu reads dependency parsed sentences in CoNLL-U format and
// turns them into token trees.
package conllu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/unicode/norm"

	"github.com/rcliao/sngram/internal/pattern"
)

// ErrMalformed is returned for sentences that do not form a single tree.
var ErrMalformed = errors.New("malformed sentence")

// Columns are the level names of the ten CoNLL-U fields.
var Columns = []string{"id", "form", "lemma", "upos", "xpos", "feats", "head", "deprel", "deps", "misc"}

// Token is one syntactic word.
type Token struct {
	ID     int
	Head   int
	Fields pattern.Token
}

// Sentence is a parsed sentence with its comment metadata.
type Sentence struct {
	Metadata map[string]string
	Tokens   []Token
}

// ID returns the sent_id comment, or "" if missing.
func (s *Sentence) ID() string {
	return s.Metadata["sent_id"]
}

// Text returns the text comment, or "" if missing.
func (s *Sentence) Text() string {
	return s.Metadata["text"]
}

// Tree builds the dependency tree. Children are ordered by id.
func (s *Sentence) Tree() (*pattern.Tree, error) {
	if len(s.Tokens) == 0 {
		return nil, fmt.Errorf("%w: no tokens", ErrMalformed)
	}

	nodes := make(map[int]*pattern.Tree, len(s.Tokens))
	for _, t := range s.Tokens {
		if _, dup := nodes[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrMalformed, t.ID)
		}
		nodes[t.ID] = pattern.Leaf(pattern.TokenElement(t.Fields.Clone()))
	}

	var root *pattern.Tree
	for _, t := range s.Tokens {
		node := nodes[t.ID]
		if t.Head == 0 {
			if root != nil {
				return nil, fmt.Errorf("%w: more than one root", ErrMalformed)
			}
			root = node
			continue
		}
		parent, ok := nodes[t.Head]
		if !ok {
			return nil, fmt.Errorf("%w: token %d has unknown head %d", ErrMalformed, t.ID, t.Head)
		}
		parent.Children = append(parent.Children, node)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root", ErrMalformed)
	}

	// Tokens on a cycle are unreachable from the root.
	if n := root.Size(); n != len(s.Tokens) {
		return nil, fmt.Errorf("%w: %d of %d tokens reachable from root", ErrMalformed, n, len(s.Tokens))
	}
	return root, nil
}

// Options configures a Reader.
type Options struct {
	// NFC normalizes form and lemma to Unicode NFC.
	NFC bool
}

// Reader reads sentences one at a time.
type Reader struct {
	sc   *bufio.Scanner
	opts Options
	line int
}

func NewReader(r io.Reader, opts Options) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{sc: sc, opts: opts}
}

// Next returns the next sentence, or io.EOF after the last one.
func (r *Reader) Next() (*Sentence, error) {
	sent := &Sentence{Metadata: map[string]string{}}
	started := false

	for r.sc.Scan() {
		r.line++
		line := strings.TrimRight(r.sc.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			if started {
				return sent, nil
			}
			continue
		}
		started = true

		if strings.HasPrefix(line, "#") {
			key, value, ok := strings.Cut(strings.TrimSpace(line[1:]), "=")
			if ok {
				sent.Metadata[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
			continue
		}

		tok, skip, err := r.parseToken(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if !skip {
			sent.Tokens = append(sent.Tokens, tok)
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read conllu: %w", err)
	}
	if started {
		return sent, nil
	}
	return nil, io.EOF
}

// All iterates over the remaining sentences. Iteration stops after the
// first error.
func (r *Reader) All() iter.Seq2[*Sentence, error] {
	return func(yield func(*Sentence, error) bool) {
		for {
			s, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(s, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) parseToken(line string) (Token, bool, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != len(Columns) {
		fields = strings.Fields(line)
	}
	if len(fields) != len(Columns) {
		return Token{}, false, fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}

	// multiword ranges and empty nodes are not part of the tree
	if strings.ContainsAny(fields[0], "-.") {
		return Token{}, true, nil
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Token{}, false, fmt.Errorf("%w: id %q", ErrMalformed, fields[0])
	}
	head, err := strconv.Atoi(fields[6])
	if err != nil {
		return Token{}, false, fmt.Errorf("%w: head %q of token %d", ErrMalformed, fields[6], id)
	}

	tok := Token{ID: id, Head: head, Fields: make(pattern.Token, len(Columns))}
	for i, name := range Columns {
		v := fields[i]
		if v == "_" && name != "form" && name != "lemma" {
			continue
		}
		if r.opts.NFC && (name == "form" || name == "lemma") {
			v = norm.NFC.String(v)
		}
		tok.Fields[name] = v
	}
	return tok, false, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

// Open opens a corpus file. "-" is stdin, a .gz suffix is decompressed.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return gzipFile{Reader: zr, f: f}, nil
}
