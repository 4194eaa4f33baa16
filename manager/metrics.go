// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the manager's Prometheus instrumentation.
type Metrics struct {
	// InstancesActive is the number of live virtual PTY instances.
	InstancesActive prometheus.Gauge

	// InstancesTotal counts instances ever allocated.
	InstancesTotal prometheus.Counter

	// Connections counts accepted connections by handshake role
	// ("back", "front", "ioctl", or "invalid").
	Connections *prometheus.CounterVec

	// IoctlRequests counts ioctl requests by outcome.
	IoctlRequests *prometheus.CounterVec

	// BytesRelayed counts bytes relayed between connections and host
	// PTYs, by direction ("to_pty", "from_pty").
	BytesRelayed *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the manager metrics with a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		InstancesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "upty_manager_instances_active",
			Help: "Number of live virtual PTY instances",
		}),
		InstancesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "upty_manager_instances_total",
			Help: "Total number of virtual PTY instances allocated",
		}),
		Connections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upty_manager_connections_total",
				Help: "Total number of accepted connections by role",
			},
			[]string{"role"},
		),
		IoctlRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upty_manager_ioctl_requests_total",
				Help: "Total number of ioctl requests by result",
			},
			[]string{"result"},
		),
		BytesRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upty_manager_bytes_relayed_total",
				Help: "Total bytes relayed between clients and host PTYs",
			},
			[]string{"direction"},
		),
		gatherer: gatherer,
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
