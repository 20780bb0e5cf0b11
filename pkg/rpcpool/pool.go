package rpcpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/config"
)

type Options struct {
	// FailureThreshold is the error count at which an endpoint is skipped by Select.
	FailureThreshold int
	// AttributionWindow is how recent a selection must be for an untagged
	// failure to be charged to it.
	AttributionWindow time.Duration
	Dialer            Dialer
	Log               logrus.Ext1FieldLogger
	Now               func() time.Time
}

// Pool owns the endpoint set. Select, the Record* methods and Reinitialize are
// safe for concurrent use by the poller and the health monitor.
type Pool struct {
	mu        sync.Mutex
	specs     []config.Endpoint
	endpoints []*Endpoint

	threshold int
	window    time.Duration
	dial      Dialer
	now       func() time.Time
	log       logrus.Ext1FieldLogger
}

// New dials every configured endpoint. Endpoints that fail to dial are
// logged and left out; it is an error if none remain.
func New(ctx context.Context, specs []config.Endpoint, opts Options) (*Pool, error) {
	p := &Pool{
		specs:     append([]config.Endpoint(nil), specs...),
		threshold: opts.FailureThreshold,
		window:    opts.AttributionWindow,
		dial:      opts.Dialer,
		now:       opts.Now,
		log:       opts.Log,
	}
	if p.threshold <= 0 {
		p.threshold = config.DefaultFailureThreshold
	}
	if p.window <= 0 {
		p.window = config.DefaultAttributionWindow
	}
	if p.dial == nil {
		p.dial = EthDialer
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = logrus.New()
	}
	p.log = p.log.WithField("name", "rpcpool")

	endpoints, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.endpoints = endpoints
	return p, nil
}

func (p *Pool) build(ctx context.Context) ([]*Endpoint, error) {
	out := make([]*Endpoint, 0, len(p.specs))
	for _, spec := range p.specs {
		client, err := p.dial(ctx, spec.URL)
		if err != nil {
			p.log.WithError(err).WithField("endpoint", spec.Name).Error("failed to initialize endpoint")
			continue
		}
		out = append(out, &Endpoint{
			Name:   spec.Name,
			URL:    spec.URL,
			Tier:   spec.Tier,
			Client: client,
		})
	}
	if len(out) == 0 {
		return nil, errors.Newf("no endpoint could be initialized out of %d configured", len(p.specs))
	}
	p.log.WithFields(logrus.Fields{
		"initialized": len(out),
		"configured":  len(p.specs),
	}).Info("endpoints initialized")
	return out, nil
}

// Select returns the preferred endpoint: lowest tier, then fewest errors,
// skipping any at or over the failure threshold. When every endpoint is over
// the threshold all counters are reset and the first registered endpoint is
// returned.
func (p *Pool) Select() *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Endpoint
	for _, ep := range p.endpoints {
		if ep.errorCount >= p.threshold {
			continue
		}
		if best == nil || ep.Tier < best.Tier || (ep.Tier == best.Tier && ep.errorCount < best.errorCount) {
			best = ep
		}
	}
	if best == nil {
		p.log.WithField("endpoints", len(p.endpoints)).Warn("all endpoints over failure threshold, resetting error counts")
		for _, ep := range p.endpoints {
			ep.errorCount = 0
		}
		best = p.endpoints[0]
	}
	best.lastUsedAt = p.now()
	return best
}

func (p *Pool) RecordSuccess(ep *Endpoint) {
	if ep == nil {
		return
	}
	p.mu.Lock()
	ep.errorCount = 0
	p.mu.Unlock()
}

// RecordFailure charges a failure to the endpoint carried by an
// *EndpointError, or failing that to the endpoint selected most recently
// within the attribution window. It returns the endpoint charged, if any.
func (p *Pool) RecordFailure(err error) *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	var epErr *EndpointError
	if errors.As(err, &epErr) && epErr.Endpoint != nil {
		epErr.Endpoint.errorCount++
		return epErr.Endpoint
	}

	cutoff := p.now().Add(-p.window)
	var recent *Endpoint
	for _, ep := range p.endpoints {
		if ep.lastUsedAt.After(cutoff) && (recent == nil || ep.lastUsedAt.After(recent.lastUsedAt)) {
			recent = ep
		}
	}
	if recent != nil {
		recent.errorCount++
	}
	return recent
}

// RecordProbeFailure charges a failed health probe to ep.
func (p *Pool) RecordProbeFailure(ep *Endpoint) {
	p.mu.Lock()
	ep.errorCount++
	p.mu.Unlock()
}

// CheckConnections asks every endpoint for its head block once. An endpoint
// that does not answer is pushed to the failure threshold so Select passes
// over it until it recovers. It is an error if no endpoint answers.
func (p *Pool) CheckConnections(ctx context.Context) error {
	endpoints := p.Endpoints()

	var (
		wg        sync.WaitGroup
		responded atomic.Int32
	)
	for _, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			head, err := ep.Client.BlockNumber(ctx)
			log := p.log.WithField("endpoint", ep.Name)
			if err != nil {
				p.markUnreachable(ep)
				log.WithError(err).Warn("endpoint failed connection test")
				return
			}
			responded.Add(1)
			log.WithField("head", head).Info("endpoint connected")
		}()
	}
	wg.Wait()

	if responded.Load() == 0 {
		return errors.Newf("none of %d endpoints responded", len(endpoints))
	}
	p.log.WithFields(logrus.Fields{
		"responded": responded.Load(),
		"total":     len(endpoints),
	}).Info("connection test complete")
	return nil
}

func (p *Pool) markUnreachable(ep *Endpoint) {
	p.mu.Lock()
	if ep.errorCount < p.threshold {
		ep.errorCount = p.threshold
	}
	p.mu.Unlock()
}

// Reinitialize rebuilds the endpoint set from configuration, discarding all
// health state. If nothing can be dialed the current set is kept.
func (p *Pool) Reinitialize(ctx context.Context) error {
	fresh, err := p.build(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reinitialize pool")
	}

	p.mu.Lock()
	old := p.endpoints
	p.endpoints = fresh
	p.mu.Unlock()

	for _, ep := range old {
		if ep.Client != nil {
			ep.Client.Close()
		}
	}
	return nil
}

// Endpoints returns the current endpoint set in registration order.
func (p *Pool) Endpoints() []*Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Endpoint(nil), p.endpoints...)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

func (p *Pool) Snapshot() []EndpointState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]EndpointState, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, EndpointState{
			Name:       ep.Name,
			Tier:       ep.Tier,
			ErrorCount: ep.errorCount,
			LastUsedAt: ep.lastUsedAt,
		})
	}
	return out
}

func (p *Pool) Close() {
	for _, ep := range p.Endpoints() {
		if ep.Client != nil {
			ep.Client.Close()
		}
	}
}
