package notify

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/numbergroup/autopool-notifier/pkg/config"
)

// SlackAPI is the part of *slack.Client used for notifications.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Slack posts notifications to a channel through the Web API, or to an
// incoming webhook when one is configured. Webhooks cannot carry files, so
// images are only sent in API mode.
type Slack struct {
	api        SlackAPI
	channel    string
	webhookURL string
	log        logrus.Ext1FieldLogger

	postWebhook func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlack prefers the webhook and otherwise requires both token and channel.
func NewSlack(settings config.Slack, log logrus.Ext1FieldLogger) (*Slack, error) {
	out := &Slack{
		channel:     settings.Channel,
		webhookURL:  settings.WebhookURL,
		log:         log.WithField("name", "notify::Slack"),
		postWebhook: slack.PostWebhookContext,
	}
	switch {
	case settings.WebhookURL != "":
	case settings.Token != "" && settings.Channel != "":
		out.api = slack.New(settings.Token)
	default:
		return nil, errors.New("no valid Slack configuration found for notifications")
	}
	return out, nil
}

func (s *Slack) Notify(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg.Text, msg.Image, true)
	if err == nil {
		return nil
	}
	s.log.WithError(err).Warn("rich message failed, retrying as plain text")

	if err := s.send(ctx, Sanitize(msg.Text), msg.Image, false); err != nil {
		s.log.WithError(err).Error("failed to send Slack notification")
		return errors.Wrap(err, "plain text fallback failed")
	}
	return nil
}

func (s *Slack) send(ctx context.Context, text, image string, rich bool) error {
	if s.api == nil {
		return s.postWebhook(ctx, s.webhookURL, &slack.WebhookMessage{Text: text})
	}

	if image != "" {
		info, err := os.Stat(image)
		if err != nil {
			return errors.Wrapf(err, "failed to stat image %s", image)
		}
		_, err = s.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			File:           image,
			FileSize:       int(info.Size()),
			Filename:       info.Name(),
			Channel:        s.channel,
			InitialComment: text,
		})
		return err
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(text, !rich),
		slack.MsgOptionDisableLinkUnfurl(),
	}
	if !rich {
		opts = append(opts, slack.MsgOptionDisableMarkdown())
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channel, opts...)
	return err
}
