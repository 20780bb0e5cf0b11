package rpcpool

import (
	"sync"
	"time"
)

// Stats accumulates request counters and a moving average response time.
type Stats struct {
	mu          sync.Mutex
	requests    uint64
	errors      uint64
	avgResponse time.Duration
	startTime   time.Time
}

type StatsSnapshot struct {
	Requests      uint64    `json:"requests"`
	Errors        uint64    `json:"errors"`
	AvgResponseMs float64   `json:"avg_response_ms"`
	StartTime     time.Time `json:"start_time"`
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Observe records one call. Successful latencies are folded into the average
// as avg = (avg + latency) / 2.
func (s *Stats) Observe(latency time.Duration, success bool) {
	s.mu.Lock()
	s.requests++
	if success {
		s.avgResponse = (s.avgResponse + latency) / 2
	} else {
		s.errors++
	}
	s.mu.Unlock()

	if success {
		rpcRequests.WithLabelValues("success").Inc()
		rpcLatency.Observe(latency.Seconds())
	} else {
		rpcRequests.WithLabelValues("error").Inc()
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Requests:      s.requests,
		Errors:        s.errors,
		AvgResponseMs: float64(s.avgResponse) / float64(time.Millisecond),
		StartTime:     s.startTime,
	}
}
