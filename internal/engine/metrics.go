package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skillgate/ide-core/internal/classify"
	"github.com/skillgate/ide-core/internal/diag"
)

// Metrics instruments the analysis pipeline. A nil *Metrics disables
// recording, so wiring it up is optional.
type Metrics struct {
	analysisRuns *prometheus.CounterVec
	findings     *prometheus.CounterVec
	watchEvents  *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with registerer (the default
// registerer when nil), reusing collectors that are already registered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		analysisRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "skillgate",
				Subsystem: "ide",
				Name:      "analysis_runs_total",
				Help:      "Total analysis passes by scheduler channel",
			},
			[]string{"channel"},
		),
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "skillgate",
				Subsystem: "ide",
				Name:      "findings_total",
				Help:      "Total findings published by severity",
			},
			[]string{"severity"},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "skillgate",
				Subsystem: "ide",
				Name:      "watch_events_total",
				Help:      "Total workspace watcher events by operation",
			},
			[]string{"op"},
		),
	}

	m.analysisRuns = registerCounterVec(registerer, m.analysisRuns)
	m.findings = registerCounterVec(registerer, m.findings)
	m.watchEvents = registerCounterVec(registerer, m.watchEvents)
	return m
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return counter
}

// RecordAnalysis counts one completed analysis pass and its findings.
func (m *Metrics) RecordAnalysis(channel classify.Channel, findings []diag.Finding) {
	if m == nil || m.analysisRuns == nil {
		return
	}
	m.analysisRuns.WithLabelValues(string(channel)).Inc()
	for _, f := range findings {
		m.findings.WithLabelValues(string(f.Severity)).Inc()
	}
}

// RecordWatchEvent counts one dispatched watcher event.
func (m *Metrics) RecordWatchEvent(op string) {
	if m == nil || m.watchEvents == nil {
		return
	}
	m.watchEvents.WithLabelValues(op).Inc()
}
