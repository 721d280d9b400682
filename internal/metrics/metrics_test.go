package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sngram/internal/extractor"
)

func TestObserveSentence(t *testing.T) {
	m := NewExtraction()
	m.ObserveSentence(12, nil)
	m.ObserveSentence(3, nil)
	m.ObserveSentence(0, fmt.Errorf("node x: %w", extractor.ErrTooManyPaths))
	m.ObserveSentence(0, errors.New("no root"))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Sentences))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Aborted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped))
}

func TestSnapshot(t *testing.T) {
	m := NewExtraction()
	m.ObserveSentence(5, nil)
	m.Patterns.WithLabelValues("base").Add(5)
	m.Patterns.WithLabelValues("projected").Add(20)
	m.EncodeErrors.Inc()

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["sngram_sentences_total"])
	assert.Equal(t, 5.0, snap["sngram_patterns_total{kind=base}"])
	assert.Equal(t, 20.0, snap["sngram_patterns_total{kind=projected}"])
	assert.Equal(t, 1.0, snap["sngram_encode_errors_total"])
	assert.Equal(t, 1.0, snap["sngram_patterns_per_sentence"])
	assert.Equal(t, 0.0, snap["sngram_sentences_aborted_total"])
}

func TestRegistryIsPrivate(t *testing.T) {
	a, b := NewExtraction(), NewExtraction()
	a.Sentences.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Sentences))

	// The pattern vector has no series until a kind is seen.
	n, err := testutil.GatherAndCount(a.Registry())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
