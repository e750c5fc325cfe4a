// Package metrics provides Prometheus-based metrics recording for
// webhook event processing and external API calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records orchestrator metrics.
type Recorder struct {
	eventsTotal      *prometheus.CounterVec
	activitiesTotal  *prometheus.CounterVec
	externalCalls    *prometheus.HistogramVec
	externalCallErrs *prometheus.CounterVec
}

// NewRecorder creates a Recorder registered against reg. Tests pass a
// fresh prometheus.NewRegistry to avoid duplicate registration.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_events_total",
				Help: "Total number of webhook events by lane and outcome",
			},
			[]string{"lane", "status"},
		),
		activitiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_activities_total",
				Help: "Total number of activities emitted to Linear by kind",
			},
			[]string{"kind"},
		),
		externalCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_external_call_duration_seconds",
				Help:    "Duration of external API calls by target",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		externalCallErrs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_external_call_errors_total",
				Help: "Total number of failed external API calls by target",
			},
			[]string{"target"},
		),
	}
}

// RecordEvent counts one processed webhook event.
func (r *Recorder) RecordEvent(lane, status string) {
	if r == nil {
		return
	}
	r.eventsTotal.WithLabelValues(lane, status).Inc()
}

// RecordActivity counts one emitted activity.
func (r *Recorder) RecordActivity(kind string) {
	if r == nil {
		return
	}
	r.activitiesTotal.WithLabelValues(kind).Inc()
}

// RecordExternalCall observes one external API call.
func (r *Recorder) RecordExternalCall(target string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.externalCalls.WithLabelValues(target).Observe(duration.Seconds())
	if err != nil {
		r.externalCallErrs.WithLabelValues(target).Inc()
	}
}
