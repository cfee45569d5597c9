package external

import (
	"context"
	"log/slog"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// StubSupportNotifier logs the ticket it would have raised. Used when
// SUPPORT_BACKEND is stub, in test mode, or locally.
type StubSupportNotifier struct {
	adminBaseURL string
	logger       *slog.Logger
}

// NewStubSupportNotifier creates a StubSupportNotifier.
func NewStubSupportNotifier(adminBaseURL string, logger *slog.Logger) *StubSupportNotifier {
	return &StubSupportNotifier{adminBaseURL: adminBaseURL, logger: logger}
}

func (s *StubSupportNotifier) NotifyLiveBroadcast(ctx context.Context, alert *types.Alert, service *types.Service, providers []types.Provider) error {
	ticket := NewLiveBroadcastTicket(s.adminBaseURL, alert, service, providers)
	s.logger.InfoContext(ctx, "stub: live broadcast ticket",
		"subject", ticket.Subject,
		"broadcast_message_id", alert.ID,
		"service_id", service.ID,
	)
	return nil
}
