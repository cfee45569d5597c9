package broadcast

import (
	"context"
	"fmt"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Gate is what a passed integrity check learned about the event.
type Gate struct {
	Service *types.Service
	Alert   *types.Alert
	// Previous holds this provider's delivery records for every earlier
	// event of the same alert, oldest first.
	Previous []*types.ProviderDeliveryRecord
}

// IntegrityChecker guards a dispatch unit before anything is sent. Each gate
// returns an integrity AppError; those are never retried automatically.
type IntegrityChecker struct {
	services   ServiceStore
	alerts     AlertStore
	events     EventStore
	deliveries DeliveryStore
	clock      types.Clock
}

// NewIntegrityChecker creates an IntegrityChecker.
func NewIntegrityChecker(services ServiceStore, alerts AlertStore, events EventStore, deliveries DeliveryStore, clock types.Clock) *IntegrityChecker {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &IntegrityChecker{
		services:   services,
		alerts:     alerts,
		events:     events,
		deliveries: deliveries,
		clock:      clock,
	}
}

// Check runs the authorisation, idempotency, expiry and ordering gates in
// that order.
func (c *IntegrityChecker) Check(ctx context.Context, event *types.AlertEvent, provider types.Provider) (*Gate, error) {
	service, err := c.services.GetByID(ctx, event.ServiceID)
	if err != nil {
		return nil, err
	}
	alert, err := c.alerts.GetByID(ctx, event.BroadcastMessageID)
	if err != nil {
		return nil, err
	}

	if err := checkAuthorised(event, service, alert); err != nil {
		return nil, err
	}

	existing, err := c.deliveries.GetForEvent(ctx, event.ID, provider)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != types.DeliveryStatusSending {
		return nil, integrityErr(types.ErrCodeIntegrityAlreadyResolved,
			fmt.Sprintf("existing provider message for event %s and provider %s already in status %s",
				event.ID, provider, existing.Status),
			event, provider)
	}

	if event.TransmittedFinishesAt != nil && event.TransmittedFinishesAt.Before(c.clock.Now()) {
		return nil, integrityErr(types.ErrCodeIntegrityExpired,
			fmt.Sprintf("broadcast event %s expired at %s", event.ID, event.TransmittedFinishesAt.UTC().Format("2006-01-02T15:04:05Z")),
			event, provider)
	}

	previous, err := c.checkOrdering(ctx, event, provider)
	if err != nil {
		return nil, err
	}

	return &Gate{Service: service, Alert: alert, Previous: previous}, nil
}

func checkAuthorised(event *types.AlertEvent, service *types.Service, alert *types.Alert) error {
	var reason string
	switch {
	case !service.Active:
		reason = "service is suspended"
	case service.Restricted:
		reason = "service is not live"
	case alert.Stubbed:
		reason = "broadcast message is stubbed"
	default:
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrCodeIntegrityUnauthorised,
		fmt.Sprintf("cannot send broadcast event %s: %s", event.ID, reason), nil,
		map[string]any{"broadcast_event_id": event.ID, "service_id": service.ID})
}

// checkOrdering requires every earlier event of the alert to have been
// acknowledged by provider before this one goes out.
func (c *IntegrityChecker) checkOrdering(ctx context.Context, event *types.AlertEvent, provider types.Provider) ([]*types.ProviderDeliveryRecord, error) {
	events, err := c.events.ListForBroadcast(ctx, event.BroadcastMessageID)
	if err != nil {
		return nil, err
	}

	var previous []*types.ProviderDeliveryRecord
	for _, prior := range events {
		if prior.ID == event.ID || !prior.SentAt.Before(event.SentAt) {
			continue
		}
		rec, err := c.deliveries.GetForEvent(ctx, prior.ID, provider)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, integrityErr(types.ErrCodeIntegrityPriorEventNotStarted,
				fmt.Sprintf("provider %s has not received earlier broadcast event %s", provider, prior.ID),
				event, provider)
		}
		if rec.Status != types.DeliveryStatusAck {
			return nil, integrityErr(types.ErrCodeIntegrityPriorEventIncomplete,
				fmt.Sprintf("earlier broadcast event %s is still %s for provider %s", prior.ID, rec.Status, provider),
				event, provider)
		}
		previous = append(previous, rec)
	}
	return previous, nil
}

func integrityErr(code types.ErrorCode, msg string, event *types.AlertEvent, provider types.Provider) error {
	return types.NewAppErrorWithDetails(code, msg, nil, map[string]any{
		"broadcast_event_id": event.ID,
		"provider":           string(provider),
	})
}
