package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks what passes through the relay. A nil *RelayMetrics is
// valid and records nothing.
type RelayMetrics struct {
	mu sync.RWMutex

	snapshot RelayMetricsSnapshot

	receivedTotal  *prometheus.CounterVec
	emittedTotal   *prometheus.CounterVec
	openRuns       prometheus.Gauge
	buffered       prometheus.Gauge
	completedTotal prometheus.Counter
	failuresTotal  prometheus.Counter

	registerer prometheus.Registerer
	registered bool
}

// RelayMetricsSnapshot is a point-in-time view of the counters.
type RelayMetricsSnapshot struct {
	Received      map[string]uint64 `json:"received"`
	Emitted       map[string]uint64 `json:"emitted"`
	OpenRuns      int               `json:"open_runs"`
	Buffered      int               `json:"buffered"`
	CompletedRuns uint64            `json:"completed_runs"`
	Failures      uint64            `json:"failures"`
	LastUpdatedAt time.Time         `json:"last_updated_at"`
}

func newRelayCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrelay",
			Subsystem: "relay",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newRelayCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docrelay",
		Subsystem: "relay",
		Name:      name,
		Help:      help,
	})
}

func newRelayGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docrelay",
		Subsystem: "relay",
		Name:      name,
		Help:      help,
	})
}

// NewRelayMetrics creates a collector. Nothing is exported until Register.
func NewRelayMetrics(registerer prometheus.Registerer) *RelayMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RelayMetrics{
		snapshot: RelayMetricsSnapshot{
			Received: make(map[string]uint64),
			Emitted:  make(map[string]uint64),
		},
		registerer:     registerer,
		receivedTotal:  newRelayCounterVec("documents_received_total", "Documents consumed from the inbound endpoint", []string{"kind"}),
		emittedTotal:   newRelayCounterVec("documents_emitted_total", "Documents published to the outbound endpoint", []string{"kind"}),
		openRuns:       newRelayGauge("open_runs", "Runs with a live pipeline"),
		buffered:       newRelayGauge("buffered_documents", "Documents held until their run stops"),
		completedTotal: newRelayCounter("runs_completed_total", "Runs whose stop document has been relayed"),
		failuresTotal:  newRelayCounter("failures_total", "Processing errors that stopped the relay"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *RelayMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.receivedTotal,
		m.emittedTotal,
		m.openRuns,
		m.buffered,
		m.completedTotal,
		m.failuresTotal,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordReceived counts one inbound document of the given kind.
func (m *RelayMetrics) RecordReceived(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Received[kind]++
	m.snapshot.LastUpdatedAt = time.Now()
	m.receivedTotal.WithLabelValues(kind).Inc()
}

// RecordEmitted counts one outbound document of the given kind.
func (m *RelayMetrics) RecordEmitted(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Emitted[kind]++
	m.snapshot.LastUpdatedAt = time.Now()
	m.emittedTotal.WithLabelValues(kind).Inc()
}

// SetBacklog mirrors the run router's open runs and buffered documents.
func (m *RelayMetrics) SetBacklog(openRuns, buffered int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.OpenRuns = openRuns
	m.snapshot.Buffered = buffered
	m.openRuns.Set(float64(openRuns))
	m.buffered.Set(float64(buffered))
}

// RecordRunCompleted counts a run whose stop has been relayed.
func (m *RelayMetrics) RecordRunCompleted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.CompletedRuns++
	m.completedTotal.Inc()
}

// RecordFailure counts a fatal processing error.
func (m *RelayMetrics) RecordFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Failures++
	m.snapshot.LastUpdatedAt = time.Now()
	m.failuresTotal.Inc()
}

// GetSnapshot returns a copy of the current counters.
func (m *RelayMetrics) GetSnapshot() RelayMetricsSnapshot {
	if m == nil {
		return RelayMetricsSnapshot{Received: map[string]uint64{}, Emitted: map[string]uint64{}}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Received = make(map[string]uint64, len(m.snapshot.Received))
	for k, v := range m.snapshot.Received {
		snap.Received[k] = v
	}
	snap.Emitted = make(map[string]uint64, len(m.snapshot.Emitted))
	for k, v := range m.snapshot.Emitted {
		snap.Emitted[k] = v
	}
	return snap
}
