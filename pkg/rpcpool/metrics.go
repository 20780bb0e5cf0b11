package rpcpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopool",
		Name:      "rpc_requests_total",
		Help:      "RPC calls made through the failover executor, by outcome",
	}, []string{"outcome"})

	rpcLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autopool",
		Name:      "rpc_latency_seconds",
		Help:      "Latency of successful RPC calls",
		Buckets:   prometheus.DefBuckets,
	})
)
