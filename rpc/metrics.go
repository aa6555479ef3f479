package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalogd",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Number of JSON-RPC requests received, by method.",
	}, []string{"method"})

	rejectionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalogd",
		Subsystem: "rpc",
		Name:      "rejections_total",
		Help:      "Number of catalog operations rejected by the engine, by method.",
	}, []string{"method"})

	unknownCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catalogd",
		Subsystem: "rpc",
		Name:      "unknown_methods_total",
		Help:      "Number of requests for methods the server does not expose.",
	})
)
