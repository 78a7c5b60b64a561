package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_connections_accepted_total",
			Help: "Total number of accepted connections",
		},
	)

	connectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_connections_rejected_total",
			Help: "Total number of connections rejected at accept time",
		},
	)

	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_connections_active",
			Help: "Current number of open connections",
		},
	)

	requestsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_requests_assembled_total",
			Help: "Total number of fully assembled requests",
		},
	)

	readErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_read_errors_total",
			Help: "Total number of read errors",
		},
	)

	writeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_write_errors_total",
			Help: "Total number of response write errors",
		},
	)

	responseBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_response_bytes_total",
			Help: "Total response bytes handed to the substrate",
		},
	)
)
