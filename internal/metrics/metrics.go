// Package metrics defines the Prometheus collectors the repository
// reports to.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "casebook"

// Remote call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	RemoteCalls   *prometheus.CounterVec
	FallbackReads *prometheus.CounterVec
	HookFailures  *prometheus.CounterVec
	LocalWrites   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote store calls by entity, operation and outcome.",
		}, []string{"entity", "op", "outcome"}),
		FallbackReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_reads_total",
			Help:      "Reads answered from the local snapshot because the remote store was unavailable.",
		}, []string{"entity"}),
		HookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Post-create hooks that returned an error.",
		}, []string{"entity", "hook"}),
		LocalWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_writes_total",
			Help:      "Local record store writes by entity and result.",
		}, []string{"entity", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.RemoteCalls, m.FallbackReads, m.HookFailures, m.LocalWrites)
	}
	return m
}

// RemoteCall counts one remote call.
func (m *Metrics) RemoteCall(entity, op, outcome string) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(entity, op, outcome).Inc()
}

// FallbackRead counts one read served from the local snapshot.
func (m *Metrics) FallbackRead(entity string) {
	if m == nil {
		return
	}
	m.FallbackReads.WithLabelValues(entity).Inc()
}

// HookFailure counts one failed post-create hook.
func (m *Metrics) HookFailure(entity, hook string) {
	if m == nil {
		return
	}
	m.HookFailures.WithLabelValues(entity, hook).Inc()
}

// LocalWrite counts one local write; ok reports whether it succeeded.
func (m *Metrics) LocalWrite(entity string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.LocalWrites.WithLabelValues(entity, result).Inc()
}
