package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Emitter snapshots an alert into an AlertEvent and fans it out as one
// dispatch unit per available provider.
type Emitter struct {
	events    EventStore
	submitter DispatchSubmitter
	enabled   []types.Provider
	clock     types.Clock
	logger    types.Logger
	newID     func() string
}

// NewEmitter creates an Emitter. enabled is the deployment's provider list.
func NewEmitter(events EventStore, submitter DispatchSubmitter, enabled []types.Provider, clock types.Clock, logger types.Logger) *Emitter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Emitter{
		events:    events,
		submitter: submitter,
		enabled:   enabled,
		clock:     clock,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Emit creates the event matching the alert's current status and enqueues
// its dispatch units. It returns nil, nil when nothing should be sent: the
// alert is stubbed, its service is in trial mode, or the status carries no
// provider message.
func (e *Emitter) Emit(ctx context.Context, alert *types.Alert, service *types.Service) (*types.AlertEvent, error) {
	var msgType types.MessageType
	switch alert.Status {
	case types.StatusBroadcasting:
		msgType = types.MessageTypeAlert
	case types.StatusCancelled:
		msgType = types.MessageTypeCancel
	default:
		return nil, nil
	}
	return e.EmitEvent(ctx, alert, service, msgType)
}

// EmitEvent is Emit with an explicit message type, used for updates to a
// live broadcast. An alert gets at most one ALERT and one CANCEL event: when
// one already exists it is returned and nothing is enqueued again.
func (e *Emitter) EmitEvent(ctx context.Context, alert *types.Alert, service *types.Service, msgType types.MessageType) (*types.AlertEvent, error) {
	log := e.logger.With("broadcast_message_id", alert.ID, "service_id", service.ID)

	if alert.Stubbed != service.Restricted {
		log.Error("broadcast stubbed flag does not match service restriction, not sending",
			"stubbed", alert.Stubbed,
			"restricted", service.Restricted,
		)
		return nil, nil
	}
	if !service.Live() || alert.Stubbed {
		log.Info("service in trial mode, broadcast event not sent")
		return nil, nil
	}

	once := msgType != types.MessageTypeUpdate
	if once {
		existing, err := e.emitted(ctx, alert.ID, msgType)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Warn("broadcast event already emitted, not sending again",
				"broadcast_event_id", existing.ID,
				"message_type", string(msgType),
			)
			return existing, nil
		}
	}

	event := types.NewAlertEvent(e.newID(), alert, msgType, e.clock.Now())
	if err := e.events.Create(ctx, event); err != nil {
		var appErr *types.AppError
		if once && errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictConcurrent {
			// Lost the race against a concurrent trigger for the same transition.
			existing, findErr := e.emitted(ctx, alert.ID, msgType)
			if findErr == nil && existing != nil {
				log.Warn("broadcast event emitted concurrently, not sending again",
					"broadcast_event_id", existing.ID,
					"message_type", string(msgType),
				)
				return existing, nil
			}
		}
		return nil, err
	}

	providers := service.AvailableProviders(e.enabled)
	log.Info("emitting broadcast event",
		"broadcast_event_id", event.ID,
		"message_type", string(msgType),
		"providers", len(providers),
	)

	// Every provider gets its submission even when another fails.
	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			err := e.submitter.SubmitDispatch(ctx, types.DispatchMessage{
				Kind:             types.DispatchKindBroadcast,
				BroadcastEventID: event.ID,
				Provider:         p,
			})
			if err != nil {
				return fmt.Errorf("enqueue %s dispatch for event %s: %w", p, event.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return event, err
	}
	return event, nil
}

// emitted returns the alert's existing event of msgType, or nil.
func (e *Emitter) emitted(ctx context.Context, alertID string, msgType types.MessageType) (*types.AlertEvent, error) {
	events, err := e.events.ListForBroadcast(ctx, alertID)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.MessageType == msgType {
			return ev, nil
		}
	}
	return nil, nil
}
