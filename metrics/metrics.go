// Package metrics defines the Prometheus collectors of the organizer.
//
// Collectors are registered on a private registry rather than the global one
// so that several organizers (and tests) can coexist in one process.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Playback policies used as the "policy" label.
const (
	PolicyDirect  = "direct"
	PolicyRandom  = "random"
	PolicyShuffle = "shuffle"
)

// Collector groups the organizer metrics.
type Collector struct {
	registry      *prometheus.Registry
	plays         *prometheus.CounterVec
	libraryTracks prometheus.Gauge
	reshuffles    prometheus.Counter
	rejections    *prometheus.CounterVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		plays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organizer_plays_total",
				Help: "Total number of tracks started, by playback policy",
			},
			[]string{"policy"},
		),
		libraryTracks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "organizer_library_tracks",
				Help: "Number of tracks currently in the library",
			},
		),
		reshuffles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "organizer_reshuffles_total",
				Help: "Total number of shuffled sequence regenerations",
			},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organizer_rejections_total",
				Help: "Total number of rejected requests, by reason",
			},
			[]string{"reason"},
		),
	}

	c.registry.MustRegister(c.plays, c.libraryTracks, c.reshuffles, c.rejections)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObservePlay(policy string) {
	c.plays.WithLabelValues(policy).Inc()
}

func (c *Collector) SetLibrarySize(n int) {
	c.libraryTracks.Set(float64(n))
}

func (c *Collector) ObserveReshuffle() {
	c.reshuffles.Inc()
}

func (c *Collector) ObserveRejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

// Sample is one gathered series.
type Sample struct {
	Name   string
	Labels string // name="value" pairs joined by commas, empty for unlabeled series
	Value  float64
}

// Snapshot gathers the registry and flattens every counter and gauge series.
// Families come back sorted by name, series by label values.
func (c *Collector) Snapshot() ([]Sample, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var samples []Sample
	for _, family := range families {
		for _, m := range family.GetMetric() {
			sample := Sample{Name: family.GetName(), Labels: formatLabels(m.GetLabel())}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				sample.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				sample.Value = m.GetGauge().GetValue()
			default:
				continue
			}
			samples = append(samples, sample)
		}
	}
	return samples, nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
	}
	return strings.Join(parts, ",")
}

// Plays returns the counter for policy.
func (c *Collector) Plays(policy string) prometheus.Counter {
	return c.plays.WithLabelValues(policy)
}

// Rejections returns the counter for reason.
func (c *Collector) Rejections(reason string) prometheus.Counter {
	return c.rejections.WithLabelValues(reason)
}

// LibraryTracks returns the library size gauge.
func (c *Collector) LibraryTracks() prometheus.Gauge {
	return c.libraryTracks
}

// Reshuffles returns the regeneration counter.
func (c *Collector) Reshuffles() prometheus.Counter {
	return c.reshuffles
}
