package alert

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/config"
)

type Message struct {
	Message  string
	Severity Severity
	Name     string
	Metadata map[string]any
}

type Alert interface {
	Raise(ctx context.Context, msg Message) error
}

type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

// FromConfig returns every operator channel that has credentials configured.
func FromConfig(conf *config.Config) []Alert {
	var out []Alert
	if !conf.Pagerduty.Empty() {
		out = append(out, NewPagerduty(conf))
	}
	if !conf.Slack.Empty() {
		out = append(out, NewSlack(conf))
	}
	return out
}

// RaiseAll sends msg to every channel. A failing channel does not stop the
// others; all failures are returned together.
func RaiseAll(ctx context.Context, log logrus.Ext1FieldLogger, channels []Alert, msg Message) error {
	var errs []error
	for _, ch := range channels {
		if err := ch.Raise(ctx, msg); err != nil {
			log.WithError(err).WithField("alert", msg.Name).Warn("alert channel failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
