//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package nativeindex

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	pathBulk    = "bulk"
	pathUpdater = "updater"

	outcomeOnline  = "online"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// PrometheusMetrics holds the collectors shared by all populators of a
// process. Use NewMetrics to get the view of a single index.
type PrometheusMetrics struct {
	Updates     *prometheus.CounterVec
	Conflicts   *prometheus.CounterVec
	Populations *prometheus.CounterVec
	Durations   *prometheus.HistogramVec
	Populating  *prometheus.GaugeVec
}

func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weaviate",
			Subsystem: "native_index",
			Name:      "populator_updates_total",
			Help:      "Entry updates applied while populating, by path and mode",
		}, []string{"index", "path", "mode"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weaviate",
			Subsystem: "native_index",
			Name:      "populator_conflicts_total",
			Help:      "Entry updates rejected because of a conflicting entry",
		}, []string{"index", "path"}),
		Populations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weaviate",
			Subsystem: "native_index",
			Name:      "populations_total",
			Help:      "Finished populations by outcome",
		}, []string{"index", "outcome"}),
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weaviate",
			Subsystem: "native_index",
			Name:      "population_duration_seconds",
			Help:      "Time from create to close or drop",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"index", "outcome"}),
		Populating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weaviate",
			Subsystem: "native_index",
			Name:      "populating",
			Help:      "1 while the index is being populated",
		}, []string{"index"}),
	}

	for _, c := range []prometheus.Collector{
		m.Updates, m.Conflicts, m.Populations, m.Durations, m.Populating,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register native index metrics")
		}
	}

	return m, nil
}

// Metrics is the view of PrometheusMetrics for a single index. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	updates     *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	populations *prometheus.CounterVec
	durations   prometheus.ObserverVec
	populating  prometheus.Gauge
}

func NewMetrics(promMetrics *PrometheusMetrics, indexName string) *Metrics {
	if promMetrics == nil {
		return nil
	}

	labels := prometheus.Labels{"index": indexName}
	return &Metrics{
		updates:     promMetrics.Updates.MustCurryWith(labels),
		conflicts:   promMetrics.Conflicts.MustCurryWith(labels),
		populations: promMetrics.Populations.MustCurryWith(labels),
		durations:   promMetrics.Durations.MustCurryWith(labels),
		populating:  promMetrics.Populating.With(labels),
	}
}

func (m *Metrics) updateApplied(path string, mode UpdateMode) {
	if m == nil {
		return
	}

	m.updates.WithLabelValues(path, mode.String()).Inc()
}

func (m *Metrics) conflict(path string) {
	if m == nil {
		return
	}

	m.conflicts.WithLabelValues(path).Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}

	m.populating.Set(1)
}

func (m *Metrics) finished(outcome string, startedAt time.Time) {
	if m == nil {
		return
	}

	m.populating.Set(0)
	m.populations.WithLabelValues(outcome).Inc()
	if !startedAt.IsZero() {
		m.durations.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
	}
}
