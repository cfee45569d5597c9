package external

import (
	"context"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// SupportNotifier raises an informational ticket with the support team
// whenever a live broadcast goes out.
type SupportNotifier interface {
	NotifyLiveBroadcast(ctx context.Context, alert *types.Alert, service *types.Service, providers []types.Provider) error
}
