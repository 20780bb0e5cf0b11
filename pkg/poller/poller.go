package poller

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/numbergroup/autopool-notifier/pkg/config"
	"github.com/numbergroup/autopool-notifier/pkg/contract"
	"github.com/numbergroup/autopool-notifier/pkg/monitor"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
)

// Handler receives events in chain order, one at a time.
type Handler interface {
	Handle(ctx context.Context, ev contract.Event) error
}

type Poller struct {
	exec    *rpcpool.Executor
	address common.Address
	kinds   []contract.Kind
	handler Handler
	cursor  *Cursor

	interval   time.Duration
	retryDelay time.Duration
	limiter    *rate.Limiter
	running    atomic.Bool
	log        logrus.Ext1FieldLogger

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

var _ monitor.Monitor = (*Poller)(nil)

func New(conf *config.Config, exec *rpcpool.Executor, handler Handler) *Poller {
	p := &Poller{
		exec:       exec,
		address:    conf.ContractAddress(),
		handler:    handler,
		cursor:     NewCursor(conf.Events.SafetyMargin),
		interval:   conf.Events.PollInterval,
		retryDelay: conf.Events.RetryDelay,
		wait:       sleep,
	}
	if conf.Events.EnableJoin {
		p.kinds = append(p.kinds, contract.KindJoin)
	}
	if conf.Events.EnableRejoin {
		p.kinds = append(p.kinds, contract.KindRejoin)
	}
	if conf.Events.DispatchDelay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(conf.Events.DispatchDelay), 1)
	}
	p.log = conf.Log.WithFields(logrus.Fields{
		"name":     p.Name(),
		"contract": p.address.Hex(),
	})
	return p
}

func (p *Poller) Name() string {
	return "poller::EventPoller"
}

func (p *Poller) Running() bool {
	return p.running.Load()
}

func (p *Poller) LastScannedBlock() uint64 {
	return p.cursor.LastScannedBlock()
}

// Run polls until ctx is cancelled. A cycle in progress always runs to
// completion; cancellation is only observed between cycles.
func (p *Poller) Run(ctx context.Context) {
	p.running.Store(true)
	defer p.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return
		default:
		}

		delay := p.interval
		if err := p.poll(context.WithoutCancel(ctx)); err != nil {
			cycleFailures.Inc()
			p.log.WithError(err).WithField("retryDelay", p.retryDelay).Error("polling cycle failed")
			delay += p.retryDelay
		}

		if err := p.wait(ctx, delay); err != nil {
			p.log.Info("polling stopped")
			return
		}
	}
}

// scan is what one endpoint saw during a cycle.
type scan struct {
	head     uint64
	from, to uint64
	ok       bool
	events   []contract.Event
}

// poll runs one Fetching -> Advancing cycle and dispatches what it found.
// The head read and every kind query run against the same endpoint, so a
// failover restarts the whole read with that endpoint's own head.
func (p *Poller) poll(ctx context.Context) error {
	res, err := rpcpool.Run(ctx, p.exec, func(ctx context.Context, ep *rpcpool.Endpoint) (scan, error) {
		head, err := ep.Client.BlockNumber(ctx)
		if err != nil {
			return scan{}, errors.Wrap(err, "failed to read head block")
		}
		from, to, ok := p.cursor.Range(head)
		if !ok {
			return scan{head: head}, nil
		}
		events, err := p.fetch(ctx, ep, from, to)
		if err != nil {
			return scan{}, errors.Wrapf(err, "failed to fetch events for blocks %d-%d", from, to)
		}
		return scan{head: head, from: from, to: to, ok: true, events: events}, nil
	})
	if err != nil {
		return err
	}

	p.cursor.Init(res.head)
	if !res.ok {
		p.log.WithField("head", res.head).Debug("no new blocks")
		return nil
	}

	p.cursor.Advance(res.to)
	lastScannedBlock.Set(float64(res.to))
	p.log.WithFields(logrus.Fields{
		"from":   res.from,
		"to":     res.to,
		"events": len(res.events),
	}).Debug("scanned block range")

	p.dispatch(ctx, res.events)
	return nil
}

// fetch queries every enabled kind over [from, to] on ep concurrently and
// returns the merged events in chain order. Any failed query fails the whole
// fetch.
func (p *Poller) fetch(ctx context.Context, ep *rpcpool.Endpoint, from, to uint64) ([]contract.Event, error) {
	perKind := make([][]contract.Event, len(p.kinds))

	// A plain group: a failing kind must not cancel its siblings mid-call.
	var g errgroup.Group
	for i, kind := range p.kinds {
		g.Go(func() error {
			q, err := contract.Query(p.address, kind, from, to)
			if err != nil {
				return err
			}
			logs, err := ep.Client.FilterLogs(ctx, q)
			if err != nil {
				return errors.Wrapf(err, "%s query failed", kind)
			}
			perKind[i] = p.decode(logs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []contract.Event
	for _, evs := range perKind {
		merged = append(merged, evs...)
	}
	slices.SortStableFunc(merged, func(a, b contract.Event) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return merged, nil
}

func (p *Poller) decode(logs []types.Log) []contract.Event {
	out := make([]contract.Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := contract.Decode(l)
		if err != nil {
			p.log.WithError(err).WithField("tx", l.TxHash.Hex()).Warn("skipping undecodable log")
			continue
		}
		if ev.Kind == contract.KindUnknown {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// dispatch hands events to the handler in order. A failing event is logged
// and skipped; it never holds back the rest.
func (p *Poller) dispatch(ctx context.Context, events []contract.Event) {
	for _, ev := range events {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.log.WithError(err).Warn("dispatch pacing interrupted")
				return
			}
		}
		log := p.log.WithFields(logrus.Fields{
			"kind":  ev.Kind.String(),
			"block": ev.BlockNumber,
			"tx":    ev.TxHash.Hex(),
		})
		if err := p.handler.Handle(ctx, ev); err != nil {
			eventsDispatched.WithLabelValues(ev.Kind.String(), "error").Inc()
			log.WithError(err).Error("failed to handle event")
			continue
		}
		eventsDispatched.WithLabelValues(ev.Kind.String(), "success").Inc()
		log.Info("event dispatched")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
