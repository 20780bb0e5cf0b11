package health

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/alert"
	"github.com/numbergroup/autopool-notifier/pkg/config"
	"github.com/numbergroup/autopool-notifier/pkg/monitor"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
)

var (
	healthyEndpoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "autopool",
		Name:      "healthy_endpoints",
		Help:      "Endpoints that answered the last health probe",
	})

	poolReinitializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopool",
		Name:      "pool_reinitializations_total",
		Help:      "Pool rebuilds triggered by the health monitor, by outcome",
	}, []string{"outcome"})
)

type headState struct {
	block uint64
	since time.Time
}

type probeResult struct {
	head uint64
	err  error
}

// Monitor probes every endpoint on its own schedule and rebuilds the pool
// when none of them answer. It only touches endpoint health through the
// pool and never blocks the poller.
type Monitor struct {
	pool          *rpcpool.Pool
	alertChannels []alert.Alert
	interval      time.Duration
	probeTimeout  time.Duration
	stallAfter    time.Duration
	heads         map[string]headState
	now           func() time.Time
	log           logrus.Ext1FieldLogger
}

var _ monitor.Monitor = (*Monitor)(nil)

func NewMonitor(conf *config.Config, pool *rpcpool.Pool, alertChannels []alert.Alert) *Monitor {
	m := &Monitor{
		pool:          pool,
		alertChannels: alertChannels,
		interval:      conf.Health.Interval,
		probeTimeout:  conf.Health.ProbeTimeout,
		stallAfter:    conf.Health.StallAfter,
		heads:         map[string]headState{},
		now:           time.Now,
	}
	m.log = conf.Log.WithField("name", m.Name())
	return m
}

func (m *Monitor) Name() string {
	return "health::EndpointMonitor"
}

func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitoring stopped")
			return
		default:
			healthy := m.check(ctx)
			m.log.WithFields(logrus.Fields{
				"healthy": healthy,
				"total":   m.pool.Len(),
			}).Info("health check complete")
		}

		select {
		case <-time.After(m.interval):
			continue
		case <-ctx.Done():
			m.log.Info("monitoring stopped")
			return
		}
	}
}

// check probes every endpoint concurrently, charges failures to the endpoint
// that failed and reinitializes the pool when nothing is healthy. It returns
// the number of healthy endpoints.
func (m *Monitor) check(ctx context.Context) int {
	endpoints := m.pool.Endpoints()
	results := make([]probeResult, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.probe(ctx, ep)
		}()
	}
	wg.Wait()

	healthy := 0
	for i, ep := range endpoints {
		err := results[i].err
		if err == nil {
			err = m.checkNewBlock(ep.Name, results[i].head)
		}
		if err != nil {
			m.pool.RecordProbeFailure(ep)
			m.log.WithError(err).WithField("endpoint", ep.Name).Warn("endpoint failed health probe")
			continue
		}
		healthy++
	}
	healthyEndpoints.Set(float64(healthy))

	if healthy == 0 && len(endpoints) > 0 {
		m.reinitialize(ctx, len(endpoints))
	}
	return healthy
}

func (m *Monitor) probe(ctx context.Context, ep *rpcpool.Endpoint) probeResult {
	if m.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()
	}
	head, err := ep.Client.BlockNumber(ctx)
	if err != nil {
		return probeResult{err: errors.Wrap(err, "failed to get block number")}
	}
	return probeResult{head: head}
}

// checkNewBlock flags an endpoint whose head has not moved for longer than
// stallAfter, or has gone backwards. Disabled when stallAfter is zero.
func (m *Monitor) checkNewBlock(name string, blockNumber uint64) error {
	if m.stallAfter <= 0 {
		return nil
	}
	now := m.now()
	last, seen := m.heads[name]
	if seen && blockNumber == last.block {
		if elapsed := now.Sub(last.since); elapsed > m.stallAfter {
			return errors.Errorf("no new block for %s, expected less than %s", elapsed, m.stallAfter)
		}
		return nil
	}
	m.heads[name] = headState{block: blockNumber, since: now}
	if seen && blockNumber < last.block {
		return errors.Errorf("block number decreased from %d to %d", last.block, blockNumber)
	}
	return nil
}

func (m *Monitor) reinitialize(ctx context.Context, probed int) {
	m.log.WithField("endpoints", probed).Error("no healthy endpoints, reinitializing pool")

	msg := alert.Message{
		Name:     "rpcpool",
		Severity: alert.Warning,
		Message:  "all RPC endpoints failed health probes, pool reinitialized",
		Metadata: map[string]any{"endpoints": probed},
	}
	if err := m.pool.Reinitialize(ctx); err != nil {
		poolReinitializations.WithLabelValues("error").Inc()
		m.log.WithError(err).Error("pool reinitialization failed, keeping current endpoints")
		msg.Severity = alert.Error
		msg.Message = "all RPC endpoints failed health probes and the pool could not be reinitialized"
		msg.Metadata["error"] = err.Error()
	} else {
		poolReinitializations.WithLabelValues("success").Inc()
		m.heads = map[string]headState{}
	}

	if err := alert.RaiseAll(ctx, m.log, m.alertChannels, msg); err != nil {
		m.log.WithError(err).Error("failed to raise alert")
	}
}
