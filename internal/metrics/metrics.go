// Package metrics exports run and notification counters to Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lawdesk_reminders"

// Run results.
const (
	RunOK              = "ok"
	RunFetchError      = "fetch_error"
	RunCredentialError = "credential_error"
	RunError           = "error"
)

// Metrics holds the collectors for reminder runs.
type Metrics struct {
	runs          *prometheus.CounterVec
	notifications *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer. Collectors already registered under the same name are
// reused, so New may be called more than once per process.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reminder runs by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Dispatch attempts by reminder window and result.",
		}, []string{"window", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a reminder run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	var err error
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	if m.notifications, err = register(reg, m.notifications); err != nil {
		return nil, err
	}
	if m.runDuration, err = register(reg, m.runDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun counts a finished run and observes its duration.
func (m *Metrics) RecordRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RecordNotification counts one dispatch attempt.
func (m *Metrics) RecordNotification(window string, success bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !success {
		result = "failed"
	}
	m.notifications.WithLabelValues(window, result).Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}
