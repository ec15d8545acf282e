// Package notify posts task failures where an operator will see them.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts failures to a Slack incoming webhook. An empty URL
// makes every call a no-op, so callers never need to branch on whether
// notifications are configured.
type SlackNotifier struct {
	WebhookURL string
}

// NewSlack returns a SlackNotifier for the given webhook URL.
func NewSlack(webhookURL string) *SlackNotifier {
	return &SlackNotifier{WebhookURL: webhookURL}
}

// NotifyFailure posts one failed-task message.
func (n *SlackNotifier) NotifyFailure(ctx context.Context, taskName string, taskID int64, errMsg string) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("Scheduled task %q (id %d) failed", taskName, taskID),
		Attachments: []slack.Attachment{{
			Color: "danger",
			Text:  errMsg,
		}},
	}
	return slack.PostWebhookContext(ctx, n.WebhookURL, msg)
}
