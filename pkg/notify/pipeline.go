package notify

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/contract"
)

// Pipeline turns ordered events into notifications.
type Pipeline struct {
	formatter *Formatter
	notifier  Notifier
	enabled   bool
	log       logrus.Ext1FieldLogger
}

// NewPipeline builds a pipeline. With enabled false messages are formatted
// and logged but never sent.
func NewPipeline(formatter *Formatter, notifier Notifier, enabled bool, log logrus.Ext1FieldLogger) *Pipeline {
	return &Pipeline{
		formatter: formatter,
		notifier:  notifier,
		enabled:   enabled,
		log:       log.WithField("name", "notify::Pipeline"),
	}
}

func (p *Pipeline) Handle(ctx context.Context, ev contract.Event) error {
	msg, ok := p.formatter.Format(ctx, ev)
	if !ok {
		return nil
	}
	log := p.log.WithFields(logrus.Fields{
		"kind": ev.Kind.String(),
		"user": ev.User.Hex(),
		"tx":   ev.TxHash.Hex(),
	})
	if !p.enabled || p.notifier == nil {
		log.WithField("text", Sanitize(msg.Text)).Info("notifications disabled, message not sent")
		return nil
	}
	if err := p.notifier.Notify(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send %s notification", ev.Kind)
	}
	return nil
}
