// Package metrics counts what an extraction run did.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rcliao/sngram/internal/extractor"
)

// Extraction holds the collectors of one run on a private registry.
type Extraction struct {
	registry *prometheus.Registry

	Sentences       prometheus.Counter
	Skipped         prometheus.Counter
	Aborted         prometheus.Counter
	Patterns        *prometheus.CounterVec
	EncodeErrors    prometheus.Counter
	PatternsPerSent prometheus.Histogram
}

func NewExtraction() *Extraction {
	m := &Extraction{
		registry: prometheus.NewRegistry(),
		Sentences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sngram_sentences_total",
			Help: "Sentences read from the corpus",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sngram_sentences_skipped_total",
			Help: "Sentences whose tree could not be built",
		}),
		Aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sngram_sentences_aborted_total",
			Help: "Sentences dropped by the open path limit",
		}),
		Patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sngram_patterns_total",
			Help: "Encoded patterns by kind",
		}, []string{"kind"}),
		EncodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sngram_encode_errors_total",
			Help: "Patterns that could not be encoded",
		}),
		PatternsPerSent: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sngram_patterns_per_sentence",
			Help:    "Distinct token patterns per sentence",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.registry.MustRegister(m.Sentences, m.Skipped, m.Aborted, m.Patterns, m.EncodeErrors, m.PatternsPerSent)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Extraction) Registry() *prometheus.Registry { return m.registry }

// ObserveSentence records the outcome of extracting one sentence.
func (m *Extraction) ObserveSentence(patterns int, err error) {
	m.Sentences.Inc()
	switch {
	case errors.Is(err, extractor.ErrTooManyPaths):
		m.Aborted.Inc()
	case err != nil:
		m.Skipped.Inc()
	default:
		m.PatternsPerSent.Observe(float64(patterns))
	}
}

// Snapshot returns counter values by name, with label values appended as
// name{label=value}. Histograms report their sample count.
func (m *Extraction) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			out[seriesName(f.GetName(), metric.GetLabel())] = value(metric)
		}
	}
	return out, nil
}

func seriesName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.GetName() + "=" + l.GetValue()
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	case m.Histogram != nil:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}
