package external

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// SlackPoster is the subset of *slack.Client the notifier uses.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts live broadcast notices to a support channel.
type SlackNotifier struct {
	client       SlackPoster
	channel      string
	adminBaseURL string
	logger       *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier.
func NewSlackNotifier(client SlackPoster, channel, adminBaseURL string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel, adminBaseURL: adminBaseURL, logger: logger}
}

// NotifyLiveBroadcast implements SupportNotifier.
func (n *SlackNotifier) NotifyLiveBroadcast(ctx context.Context, alert *types.Alert, service *types.Service, providers []types.Provider) error {
	ticket := NewLiveBroadcastTicket(n.adminBaseURL, alert, service, providers)
	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText("*"+ticket.Subject+"*\n"+ticket.Body, false),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamSupport, "failed to post slack notification", err)
	}
	n.logger.InfoContext(ctx, "slack notification posted",
		"channel", n.channel,
		"ts", ts,
		"broadcast_message_id", alert.ID,
	)
	return nil
}
