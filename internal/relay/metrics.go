package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	eventsBuilt       prometheus.Counter
	eventsDropped     *prometheus.CounterVec
	requestsPublished prometheus.Counter
	buildDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracks",
			Subsystem: "relay",
			Name:      "events_built_total",
			Help:      "Events turned into ingestion objects.",
		}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracks",
			Subsystem: "relay",
			Name:      "events_dropped_total",
			Help:      "Events left out of a request, by reason.",
		}, []string{"reason"}),
		requestsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracks",
			Subsystem: "relay",
			Name:      "requests_published_total",
			Help:      "Ingestion requests published to Kafka.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tracks",
			Subsystem: "relay",
			Name:      "build_duration_seconds",
			Help:      "Time spent building one request.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	reg.MustRegister(m.eventsBuilt, m.eventsDropped, m.requestsPublished, m.buildDuration)
	return m
}

// A nil *Metrics records nothing.

func (m *Metrics) observeBuild(built int, dropped []DroppedEvent, started time.Time) {
	if m == nil {
		return
	}
	m.eventsBuilt.Add(float64(built))
	for _, d := range dropped {
		m.eventsDropped.WithLabelValues(d.Reason).Inc()
	}
	m.buildDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observePublished() {
	if m == nil {
		return
	}
	m.requestsPublished.Inc()
}
