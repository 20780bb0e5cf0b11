package notify

import (
	"context"
	"regexp"
)

// Message is one outbound notification. Text uses Slack mrkdwn; Image is an
// optional local file sent alongside it.
type Message struct {
	Text  string
	Image string
}

// Notifier delivers a message, trying rich formatting first and falling back
// to plain text. An error means both attempts failed.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

var (
	linkRe   = regexp.MustCompile(`<([^|>]+)\|([^>]+)>`)
	markupRe = regexp.MustCompile("[`_*~\\[\\]()]")
)

// Sanitize turns mrkdwn into plain text: links become "label: url" and
// formatting characters are dropped.
func Sanitize(text string) string {
	text = linkRe.ReplaceAllString(text, "$2: $1")
	return markupRe.ReplaceAllString(text, "")
}
