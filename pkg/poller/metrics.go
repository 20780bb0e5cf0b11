package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lastScannedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "autopool",
		Name:      "last_scanned_block",
		Help:      "Highest block fully scanned for contract events",
	})

	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopool",
		Name:      "events_dispatched_total",
		Help:      "Events handed to the notification pipeline, by kind and outcome",
	}, []string{"kind", "outcome"})

	cycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autopool",
		Name:      "poll_cycle_failures_total",
		Help:      "Polling cycles aborted before the cursor could advance",
	})
)
