package alert

import (
	"context"

	"github.com/PagerDuty/go-pagerduty"

	"github.com/numbergroup/autopool-notifier/pkg/config"
)

func NewPagerduty(conf *config.Config) Pagerduty {
	return Pagerduty{
		RoutingKey: conf.Pagerduty.RoutingKey,
		Service:    conf.Pagerduty.Service,
		Group:      conf.Pagerduty.Group,
	}
}

type Pagerduty struct {
	RoutingKey string
	Service    string
	Group      string
}

// TODO: Prevent duplicate alerts by setting a dedup key per endpoint set
func (p Pagerduty) Raise(ctx context.Context, msg Message) error {
	payload := &pagerduty.V2Payload{
		Summary:   msg.Message,
		Severity:  string(msg.Severity),
		Component: msg.Name,
		Source:    p.Service,
		Group:     p.Group,
		Details:   msg.Metadata,
	}

	_, err := pagerduty.ManageEventWithContext(ctx, pagerduty.V2Event{
		RoutingKey: p.RoutingKey,
		Action:     "trigger",
		Payload:    payload,
	})
	return err
}
