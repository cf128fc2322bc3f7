// Package metrics exposes Prometheus collectors for the notification socket
// and the local push endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every metric the client records. It satisfies
// realtime.Observer.
type Collectors struct {
	registry *prometheus.Registry

	ConnectAttempts prometheus.Counter
	OpenConnections prometheus.Gauge
	Frames          *prometheus.CounterVec
	MalformedFrames prometheus.Counter
	PushReceived    *prometheus.CounterVec
}

// New creates collectors registered on a private registry together with the
// Go runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),

		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rihigo_socket_connect_attempts_total",
			Help: "Number of notification socket dial attempts",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rihigo_socket_open",
			Help: "1 while the notification socket is open",
		}),
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rihigo_socket_frames_total",
				Help: "Inbound socket frames by type",
			},
			[]string{"type"},
		),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rihigo_socket_malformed_frames_total",
			Help: "Inbound socket frames dropped as malformed",
		}),
		PushReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rihigo_push_received_total",
				Help: "Push messages received on the local endpoint by outcome",
			},
			[]string{"outcome"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ConnectAttempts,
		c.OpenConnections,
		c.Frames,
		c.MalformedFrames,
		c.PushReceived,
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) ConnectAttempt() {
	c.ConnectAttempts.Inc()
}

func (c *Collectors) Connected(open bool) {
	if open {
		c.OpenConnections.Set(1)
		return
	}
	c.OpenConnections.Set(0)
}

func (c *Collectors) Frame(frameType string) {
	c.Frames.WithLabelValues(frameType).Inc()
}

func (c *Collectors) MalformedFrame() {
	c.MalformedFrames.Inc()
}

// Push records the outcome ("shown", "unknown_endpoint", "bad_request") of a
// push delivery.
func (c *Collectors) Push(outcome string) {
	c.PushReceived.WithLabelValues(outcome).Inc()
}
