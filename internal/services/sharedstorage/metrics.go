package sharedstorage

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus counters for the shared storage service. A nil
// *Metrics records nothing.
type Metrics struct {
	writes           *prometheus.CounterVec
	writeFailures    *prometheus.CounterVec
	decodeFailures   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	listenerFailures *prometheus.CounterVec
	cleanupRemoved   *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("registerer cannot be nil")
	}

	newCounter := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vipsync",
			Subsystem: "shared_storage",
			Name:      name,
			Help:      help,
		}, []string{label})
	}

	m := &Metrics{
		writes:           newCounter("writes_total", "Successful writes by key.", "key"),
		writeFailures:    newCounter("write_failures_total", "Failed writes by key.", "key"),
		decodeFailures:   newCounter("decode_failures_total", "Stored values that could not be decoded, by key.", "key"),
		notifications:    newCounter("notifications_total", "Listener invocations by event.", "event"),
		listenerFailures: newCounter("listener_failures_total", "Listeners that returned an error or panicked, by event.", "event"),
		cleanupRemoved:   newCounter("cleanup_removed_total", "Records removed by cleanup, by collection.", "collection"),
	}

	for _, collector := range []prometheus.Collector{
		m.writes,
		m.writeFailures,
		m.decodeFailures,
		m.notifications,
		m.listenerFailures,
		m.cleanupRemoved,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) incWrite(key string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(key).Inc()
}

func (m *Metrics) incWriteFailure(key string) {
	if m == nil {
		return
	}
	m.writeFailures.WithLabelValues(key).Inc()
}

func (m *Metrics) incDecodeFailure(key string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(key).Inc()
}

func (m *Metrics) addNotifications(event string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.notifications.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) incListenerFailure(event string) {
	if m == nil {
		return
	}
	m.listenerFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) addCleanupRemoved(collection string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.cleanupRemoved.WithLabelValues(collection).Add(float64(n))
}
