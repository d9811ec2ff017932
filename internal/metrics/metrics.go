// Package metrics holds the Prometheus collectors shared by the session
// engine and the directory.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "scrum_poker"

	reasonLabelName = "reason"
	typeLabelName   = "type"
	callLabelName   = "call"
	resultLabelName = "result"
)

var (
	// buckets for collaborator call latency, in milliseconds:
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192]
	buckets = prometheus.ExponentialBuckets(1, 2, 14)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "number of connections between accept and close",
		})

	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "sessions closed, by cause",
		}, []string{reasonLabelName})

	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "inbound transport frames, by frame type",
		}, []string{typeLabelName})

	DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "frames dropped by the codec",
		}, []string{reasonLabelName})

	CollaboratorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "calls issued through the session bridge",
		}, []string{callLabelName, resultLabelName})

	CollaboratorCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_call_duration_milliseconds",
			Help:      "latency of calls issued through the session bridge",
			Buckets:   buckets,
		}, []string{callLabelName})

	PushesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_dropped_total",
			Help:      "pushes refused because the session mailbox was full or closed",
		})

	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "rooms currently held by the directory",
		})

	registerOnce sync.Once
)

// Register registers every collector with r. Only the first call has effect.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(SessionsActive)
		r.MustRegister(SessionsClosed)
		r.MustRegister(FramesReceived)
		r.MustRegister(DecodeErrors)
		r.MustRegister(CollaboratorCalls)
		r.MustRegister(CollaboratorCallLatency)
		r.MustRegister(PushesDropped)
		r.MustRegister(RoomsActive)
	})
}
