// Package broadcast owns the dispatch engine for emergency alerts: lifecycle
// transitions, event emission, sequencing integrity checks, and the
// retryable per-provider dispatch unit.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/cbc"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// ServiceStore loads the owning service of an alert.
type ServiceStore interface {
	GetByID(ctx context.Context, id string) (*types.Service, error)
}

// AlertStore is the subset of the broadcast repository the engine needs.
type AlertStore interface {
	GetByID(ctx context.Context, id string) (*types.Alert, error)
	UpdateStatus(ctx context.Context, a *types.Alert, expected types.BroadcastStatus) error
	ListExpiredBroadcasting(ctx context.Context, now time.Time, limit int) ([]*types.Alert, error)
}

// EventStore persists immutable alert events.
type EventStore interface {
	Create(ctx context.Context, e *types.AlertEvent) error
	GetByID(ctx context.Context, id string) (*types.AlertEvent, error)
	ListForBroadcast(ctx context.Context, broadcastID string) ([]*types.AlertEvent, error)
}

// DeliveryStore manages provider delivery records.
type DeliveryStore interface {
	// GetForEvent returns nil, nil when no record exists.
	GetForEvent(ctx context.Context, eventID string, provider types.Provider) (*types.ProviderDeliveryRecord, error)
	// EnsureDelivery is idempotent; it reports whether a record was created.
	EnsureDelivery(ctx context.Context, eventID string, provider types.Provider, sequenced bool) (*types.ProviderDeliveryRecord, bool, error)
	UpdateStatus(ctx context.Context, id string, status types.DeliveryStatus) error
}

// ProviderClient formats and sends payloads for one provider.
type ProviderClient interface {
	Provider() types.Provider
	UsesSequentialNumbers() bool
	CreateAndSend(ctx context.Context, req cbc.BroadcastRequest) error
	UpdateAndSend(ctx context.Context, req cbc.BroadcastRequest) error
	Cancel(ctx context.Context, req cbc.BroadcastRequest) error
	SendLinkTest(ctx context.Context) error
}

// ClientProvider resolves the client for a provider.
type ClientProvider interface {
	Client(p types.Provider) (ProviderClient, error)
}

// RegistryClients adapts a cbc.Registry to ClientProvider.
type RegistryClients struct {
	Registry *cbc.Registry
}

// Client implements ClientProvider.
func (r RegistryClients) Client(p types.Provider) (ProviderClient, error) {
	c, err := r.Registry.Client(p)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DispatchSubmitter enqueues a new dispatch unit.
type DispatchSubmitter interface {
	SubmitDispatch(ctx context.Context, msg types.DispatchMessage) error
}

// RetryScheduler re-enqueues a dispatch unit after delay with its retry
// counter incremented.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, msg types.DispatchMessage, delay time.Duration) error
}

// DeadLetterer parks a unit that failed an integrity check for an operator.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg types.DispatchMessage, cause error) error
}

// SupportNotifier raises an informational ticket when a live alert goes out.
type SupportNotifier interface {
	NotifyLiveBroadcast(ctx context.Context, alert *types.Alert, service *types.Service, providers []types.Provider) error
}

// IsIntegrityError reports whether err is a sequencing or authorisation
// failure that must not be retried automatically.
func IsIntegrityError(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code.IsIntegrity()
}
