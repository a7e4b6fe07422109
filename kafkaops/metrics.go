package kafkaops

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace string = "kafka"

	statusOK    string = "ok"
	statusError string = "error"
)

// Metrics counts operation outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	published     *prometheus.CounterVec
	received      *prometheus.CounterVec
	offsetFetches *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Publish-once operations by topic and outcome.",
		}, []string{"topic", "status"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_total",
			Help:      "Receive calls by topic and outcome.",
		}, []string{"topic", "status"}),
		offsetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offset_fetches_total",
			Help:      "Latest offset fetches done by Subscribe, by topic and outcome.",
		}, []string{"topic", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of publish, subscribe and receive operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}

	return []prometheus.Collector{m.published, m.received, m.offsetFetches, m.duration}
}

func (m *Metrics) observePublish(topic string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic, status(err)).Inc()
	m.duration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeSubscribe(topic string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.offsetFetches.WithLabelValues(topic, status(err)).Inc()
	m.duration.WithLabelValues("subscribe").Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeReceive(topic string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(topic, status(err)).Inc()
	m.duration.WithLabelValues("receive").Observe(time.Since(start).Seconds())
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
