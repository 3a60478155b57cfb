// Package metrics records dispatcher and store activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "numbot"

// Recorder implements dispatch and store observers on top of Prometheus collectors.
type Recorder struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	storeOps        *prometheus.HistogramVec
	dropped         *prometheus.CounterVec
	inflight        prometheus.Gauge
}

// NewRecorder registers the collectors with reg. A nil reg uses a private
// registry, which keeps tests and multiple instances from colliding.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		messagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Inbound messages by matched rule and status.",
			},
			[]string{"rule", "status"},
		),
		messageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_duration_seconds",
				Help:      "Time spent handling one message, lock wait included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"rule"},
		),
		storeOps: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_op_duration_seconds",
				Help:      "Dialogue store operation latency.",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"op", "status"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_dropped_total",
				Help:      "Inbound messages dropped before dispatch.",
			},
			[]string{"reason"},
		),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_inflight",
			Help:      "Messages currently being handled.",
		}),
	}
}

// ObserveMessage counts a handled message. An empty rule means no rule was reached.
func (r *Recorder) ObserveMessage(rule, status string, took time.Duration) {
	if rule == "" {
		rule = "none"
	}
	r.messagesTotal.WithLabelValues(rule, status).Inc()
	r.messageDuration.WithLabelValues(rule).Observe(took.Seconds())
}

// ObserveStoreOp implements dialogue.Observer.
func (r *Recorder) ObserveStoreOp(op string, err error, took time.Duration) {
	status := "ok"
	if err != nil {
		status = "fail"
	}
	r.storeOps.WithLabelValues(op, status).Observe(took.Seconds())
}

// IncDropped counts a message rejected before dispatch.
func (r *Recorder) IncDropped(reason string) {
	r.dropped.WithLabelValues(reason).Inc()
}

// Inflight adjusts the in-flight gauge.
func (r *Recorder) Inflight(delta int) {
	r.inflight.Add(float64(delta))
}
