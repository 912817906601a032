package archive

import "github.com/prometheus/client_golang/prometheus"

// Metrics records archive handle activity. A nil *Metrics records nothing.
type Metrics struct {
	OpenArchives  prometheus.Gauge
	ActiveReaders prometheus.Gauge
	Opens         prometheus.Counter
	Evictions     prometheus.Counter
	Reopens       prometheus.Counter
}

// NewMetrics creates the archive metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenArchives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assemblyfs",
			Subsystem: "archive",
			Name:      "open",
			Help:      "Number of archives currently open",
		}),
		ActiveReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assemblyfs",
			Subsystem: "archive",
			Name:      "active_readers",
			Help:      "Number of outstanding archive handle acquisitions",
		}),
		Opens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assemblyfs",
			Subsystem: "archive",
			Name:      "opens_total",
			Help:      "Total number of times an archive was opened",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assemblyfs",
			Subsystem: "archive",
			Name:      "evictions_total",
			Help:      "Total number of idle archives released by the reaper",
		}),
		Reopens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assemblyfs",
			Subsystem: "archive",
			Name:      "reopens_total",
			Help:      "Total number of archives reopened after changing on disk",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.OpenArchives, m.ActiveReaders, m.Opens, m.Evictions, m.Reopens)
	}
	return m
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.Opens.Inc()
	m.OpenArchives.Inc()
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.OpenArchives.Dec()
}

func (m *Metrics) evicted() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

func (m *Metrics) reopened() {
	if m == nil {
		return
	}
	m.Reopens.Inc()
}

func (m *Metrics) readers(delta int) {
	if m == nil {
		return
	}
	m.ActiveReaders.Add(float64(delta))
}
