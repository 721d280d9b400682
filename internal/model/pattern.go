// Package model defines the stored run and pattern types.
package model

import "time"

// Pattern kinds. A base pattern is an encoded token pattern whose content
// locates it in the corpus; a projected pattern carries the encoded base
// pattern it was projected from.
const (
	KindBase      = "base"
	KindProjected = "projected"
)

// ValidKinds are the allowed pattern kinds.
var ValidKinds = map[string]bool{
	KindBase:      true,
	KindProjected: true,
}

// Run is one extraction over a corpus.
type Run struct {
	ID         string     `json:"id"`
	Input      string     `json:"input"`
	Codec      string     `json:"codec,omitempty"`
	Config     string     `json:"config,omitempty"`
	Sentences  int        `json:"sentences"`
	Patterns   int        `json:"patterns"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Pattern is one stored occurrence of an encoded pattern.
type Pattern struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Encoded   string    `json:"encoded"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PatternCount is the number of occurrences of an encoded pattern.
type PatternCount struct {
	Encoded string `json:"encoded"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
}

// Group collects the contents of one encoded pattern.
type Group struct {
	Encoded  string   `json:"encoded"`
	Contents []string `json:"contents"`
}
