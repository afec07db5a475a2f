package slack

import (
	"context"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

// Notifier posts run summaries to a Slack channel.
type Notifier struct {
	api     *slackapi.Client
	channel string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier posts to opts.Channel with opts.Token.
func NewNotifier(opts Options) *Notifier {
	return &Notifier{api: newAPI(opts), channel: strings.TrimSpace(opts.Channel)}
}

// PublishSummary posts the report summary and the published slugs.
func (n *Notifier) PublishSummary(ctx context.Context, report domain.RunReport) error {
	if n.channel == "" {
		return fmt.Errorf("slack notifier misconfigured")
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slackapi.MsgOptionText(FormatSummary(report), false))
	if err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	return nil
}

// FormatSummary renders the report as mrkdwn.
func FormatSummary(report domain.RunReport) string {
	var b strings.Builder
	b.WriteString(report.Summary())
	for _, slug := range report.Published {
		fmt.Fprintf(&b, "\n• `%s`", slug)
	}
	return b.String()
}
