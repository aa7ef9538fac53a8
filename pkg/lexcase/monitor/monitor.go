// Package monitor exports processing metrics through a Prometheus registry
// and summarizes them for in-process callers.
package monitor

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "lexcase"

// Metric names as exported.
const (
	DocumentsTotal        = namespace + "_documents_total"
	DocumentsInFlight     = namespace + "_documents_in_flight"
	StageDurationSeconds  = namespace + "_stage_duration_seconds"
	StageFailuresTotal    = namespace + "_stage_failures_total"
	ValidationErrorsTotal = namespace + "_validation_errors_total"
	NERDegradationsTotal  = namespace + "_ner_degradations_total"
)

// StageStats aggregates one stage.
type StageStats struct {
	Count    int
	Failures int
	Total    time.Duration
}

// Average returns the mean stage duration.
func (s StageStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Snapshot is a copy of the monitor's counters.
type Snapshot struct {
	Processed        int
	Failed           int
	InFlight         int
	Stages           map[string]StageStats
	ValidationErrors map[string]int
	NERDegradations  int
	Since            time.Time
}

type collectors struct {
	documents        *prometheus.CounterVec
	inFlight         prometheus.Gauge
	stageDuration    *prometheus.HistogramVec
	stageFailures    *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	nerDegradations  prometheus.Counter
}

func newCollectors() *collectors {
	return &collectors{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DocumentsTotal,
			Help: "Documents finished, by status.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: DocumentsInFlight,
			Help: "Documents currently being processed.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    StageDurationSeconds,
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: StageFailuresTotal,
			Help: "Stage runs that returned an error.",
		}, []string{"stage"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ValidationErrorsTotal,
			Help: "ERROR level validation findings, by rule.",
		}, []string{"rule"}),
		nerDegradations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: NERDegradationsTotal,
			Help: "Fallbacks to regex-only PII detection.",
		}),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.documents, c.inFlight, c.stageDuration, c.stageFailures, c.validationErrors, c.nerDegradations,
	}
}

// Monitor is safe for concurrent use. A nil *Monitor ignores every call.
type Monitor struct {
	reg *prometheus.Registry

	mu    sync.RWMutex // guards c and since across Reset
	c     *collectors
	since time.Time
}

// New returns a monitor with its own registry.
func New() *Monitor {
	m := &Monitor{reg: prometheus.NewRegistry(), c: newCollectors(), since: time.Now()}
	m.reg.MustRegister(m.c.all()...)
	return m
}

// Registry exposes the registry so it can be served or merged.
func (m *Monitor) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Monitor) collectors() *collectors {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.c
}

// ObserveStage records one run of stage.
func (m *Monitor) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	c := m.collectors()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		c.stageFailures.WithLabelValues(stage).Inc()
	}
}

// DocumentStarted counts a document entering the pipeline.
func (m *Monitor) DocumentStarted() {
	if m == nil {
		return
	}
	m.collectors().inFlight.Inc()
}

// DocumentProcessed counts a finished document.
func (m *Monitor) DocumentProcessed(ok bool) {
	if m == nil {
		return
	}
	c := m.collectors()
	c.inFlight.Dec()
	status := "success"
	if !ok {
		status = "failed"
	}
	c.documents.WithLabelValues(status).Inc()
}

// ValidationError counts an ERROR finding of rule.
func (m *Monitor) ValidationError(rule string) {
	if m == nil {
		return
	}
	m.collectors().validationErrors.WithLabelValues(rule).Inc()
}

// NERDegraded counts a fallback to regex-only detection.
func (m *Monitor) NERDegraded(error) {
	if m == nil {
		return
	}
	m.collectors().nerDegradations.Inc()
}

// Snapshot reads the registry into plain counters.
func (m *Monitor) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Stages:           make(map[string]StageStats),
		ValidationErrors: make(map[string]int),
	}
	m.mu.RLock()
	s.Since = m.since
	mfs, err := m.reg.Gather()
	m.mu.RUnlock()
	if err != nil {
		return s
	}

	for _, mf := range mfs {
		for _, mt := range mf.GetMetric() {
			switch mf.GetName() {
			case DocumentsTotal:
				n := int(mt.GetCounter().GetValue())
				if label(mt, "status") == "success" {
					s.Processed = n
				} else {
					s.Failed = n
				}
			case DocumentsInFlight:
				s.InFlight = int(mt.GetGauge().GetValue())
			case StageDurationSeconds:
				stage := label(mt, "stage")
				st := s.Stages[stage]
				h := mt.GetHistogram()
				st.Count = int(h.GetSampleCount())
				st.Total = time.Duration(math.Round(h.GetSampleSum() * float64(time.Second)))
				s.Stages[stage] = st
			case StageFailuresTotal:
				stage := label(mt, "stage")
				st := s.Stages[stage]
				st.Failures = int(mt.GetCounter().GetValue())
				s.Stages[stage] = st
			case ValidationErrorsTotal:
				s.ValidationErrors[label(mt, "rule")] = int(mt.GetCounter().GetValue())
			case NERDegradationsTotal:
				s.NERDegradations = int(mt.GetCounter().GetValue())
			}
		}
	}
	return s
}

func label(mt *dto.Metric, name string) string {
	for _, lp := range mt.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// ErrorRate is failed / (processed + failed), 0 when nothing ran.
func (m *Monitor) ErrorRate() float64 {
	s := m.Snapshot()
	total := s.Processed + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(total)
}

// Reset replaces the counters with fresh ones. The in-flight gauge is
// kept since documents already running will still finish. The registry,
// and any handler serving it, stays the same.
func (m *Monitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.c.all() {
		m.reg.Unregister(c)
	}
	fresh := newCollectors()
	fresh.inFlight = m.c.inFlight
	m.c = fresh
	m.reg.MustRegister(m.c.all()...)
	m.since = time.Now()
}
