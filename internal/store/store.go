// Package store provides the pattern storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/sngram/internal/model"
)

// ErrNotFound is returned when a run or pattern does not exist.
var ErrNotFound = errors.New("not found")

// CreateRunParams describes a new extraction run.
type CreateRunParams struct {
	Input  string
	Codec  string
	Config string // JSON
}

// PutParams holds one pattern occurrence.
type PutParams struct {
	Kind    string
	Encoded string
	Content string
}

// GetParams selects the occurrences of an encoded pattern.
type GetParams struct {
	Encoded string
	RunID   string
	Kind    string
}

// ListParams holds parameters for listing grouped pattern counts.
type ListParams struct {
	RunID    string
	Kind     string
	MinCount int
	Limit    int
}

// ExportParams filters exported occurrences.
type ExportParams struct {
	RunID string
	Kind  string
	// RemoveHapax drops patterns seen once, grouped exports only.
	RemoveHapax bool
}

// Store defines the pattern storage interface.
type Store interface {
	// CreateRun registers a run. Patterns are stored under its id.
	CreateRun(ctx context.Context, p CreateRunParams) (*model.Run, error)

	// FinishRun records the totals of a run.
	FinishRun(ctx context.Context, id string, sentences, patterns int) error

	// Put stores a batch of occurrences in one transaction.
	Put(ctx context.Context, runID string, batch []PutParams) (int, error)

	// Get returns every occurrence of an encoded pattern.
	Get(ctx context.Context, p GetParams) ([]model.Pattern, error)

	// List returns encoded patterns with their counts, most frequent first.
	List(ctx context.Context, p ListParams) ([]model.PatternCount, error)

	// ListRuns returns runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Rm deletes a run and its patterns. Returns the number of patterns removed.
	Rm(ctx context.Context, runID string) (int64, error)

	// Close closes the store.
	Close() error
}
