package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

const (
	supportTicketTimeout = 30 * time.Second
	expiryBatchSize      = 100
)

// Lifecycle validates and applies alert status transitions and triggers
// event emission for transitions that reach providers.
type Lifecycle struct {
	alerts     AlertStore
	services   ServiceStore
	emitter    *Emitter
	support    SupportNotifier
	enabled    []types.Provider
	production bool
	clock      types.Clock
	logger     types.Logger

	wg sync.WaitGroup
}

// LifecycleDeps holds the collaborators of a Lifecycle.
type LifecycleDeps struct {
	Alerts     AlertStore
	Services   ServiceStore
	Emitter    *Emitter
	Support    SupportNotifier
	Enabled    []types.Provider
	Production bool
	Clock      types.Clock
	Logger     types.Logger
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(deps LifecycleDeps) *Lifecycle {
	clock := deps.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Lifecycle{
		alerts:     deps.Alerts,
		services:   deps.Services,
		emitter:    deps.Emitter,
		support:    deps.Support,
		enabled:    deps.Enabled,
		production: deps.Production,
		clock:      clock,
		logger:     deps.Logger,
	}
}

// Transition moves alert to next on behalf of actor. On success alert is
// updated in place with the new status and audit stamps. reason is only
// recorded for rejections.
func (l *Lifecycle) Transition(ctx context.Context, alert *types.Alert, next types.BroadcastStatus, actor types.Actor, reason string) error {
	if !alert.Status.CanTransitionTo(next) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTransition,
			fmt.Sprintf("cannot move broadcast message %s from %s to %s", alert.ID, alert.Status, next), nil,
			map[string]any{"from": alert.Status, "to": next})
	}

	service, err := l.services.GetByID(ctx, alert.ServiceID)
	if err != nil {
		return err
	}

	if next == types.StatusBroadcasting {
		if !service.Restricted && actor.Type != types.ActorTypeSystem && actor.ID == alert.Submitter() {
			return types.NewAppError(types.ErrCodeValidationSelfApproval,
				"you cannot approve your own broadcast", nil)
		}
		if !alert.HasAreas() {
			return types.NewAppError(types.ErrCodeValidationNoAreas,
				"broadcast message has no areas", nil)
		}
	}

	updated := *alert
	stamp(&updated, next, actor, reason, l.clock.Now())

	if err := l.alerts.UpdateStatus(ctx, &updated, alert.Status); err != nil {
		return err
	}
	*alert = updated

	l.logger.Info("broadcast status changed",
		"broadcast_message_id", alert.ID,
		"status", string(next),
		"actor_type", string(actor.Type),
	)

	if next == types.StatusBroadcasting && l.production && !alert.Stubbed {
		l.raiseSupportTicket(ctx, alert, service)
	}

	if next == types.StatusBroadcasting || next == types.StatusCancelled {
		if _, err := l.emitter.Emit(ctx, alert, service); err != nil {
			return fmt.Errorf("emit %s event for broadcast %s: %w", next, alert.ID, err)
		}
	}
	return nil
}

func stamp(a *types.Alert, next types.BroadcastStatus, actor types.Actor, reason string, now time.Time) {
	actorID := actor.ID
	a.Status = next
	a.UpdatedAt = &now

	switch next {
	case types.StatusPendingApproval:
		a.SubmittedAt = &now
		a.SubmittedBy = &actorID
	case types.StatusBroadcasting:
		a.ApprovedAt = &now
		a.ApprovedBy = &actorID
		if a.StartsAt == nil {
			a.StartsAt = &now
		}
		if a.FinishesAt == nil && a.Duration != nil {
			finish := a.StartsAt.Add(*a.Duration)
			a.FinishesAt = &finish
		}
	case types.StatusCancelled:
		a.CancelledAt = &now
		if actor.Type == types.ActorTypeAPIKey {
			a.CancelledByAPIKey = &actorID
		} else {
			a.CancelledBy = &actorID
		}
	case types.StatusRejected:
		a.RejectedAt = &now
		a.RejectedBy = &actorID
		a.RejectionReason = reason
	}
}

// raiseSupportTicket notifies support without blocking or failing the
// transition. It runs on a context detached from the caller's cancellation.
func (l *Lifecycle) raiseSupportTicket(ctx context.Context, alert *types.Alert, service *types.Service) {
	if l.support == nil {
		return
	}
	snapshot := *alert
	providers := service.AvailableProviders(l.enabled)
	detached := context.WithoutCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(detached, supportTicketTimeout)
		defer cancel()
		if err := l.support.NotifyLiveBroadcast(ctx, &snapshot, service, providers); err != nil {
			l.logger.Error("failed to raise live broadcast support ticket",
				"broadcast_message_id", snapshot.ID,
				"error", err.Error(),
			)
		}
	}()
}

// Wait blocks until in-flight support notifications finish.
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}

// OnStatusChanged is the inbound trigger for a status change persisted
// elsewhere. newStatus is the status the caller persisted; when the alert has
// since moved on, nothing is emitted. Repeated triggers for the same
// transition return the event created by the first one.
func (l *Lifecycle) OnStatusChanged(ctx context.Context, alertID string, newStatus types.BroadcastStatus) (*types.AlertEvent, error) {
	alert, err := l.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != newStatus {
		l.logger.Warn("broadcast status no longer matches trigger, not emitting",
			"broadcast_message_id", alertID,
			"status", string(alert.Status),
			"triggered_status", string(newStatus),
		)
		return nil, nil
	}
	service, err := l.services.GetByID(ctx, alert.ServiceID)
	if err != nil {
		return nil, err
	}
	return l.emitter.Emit(ctx, alert, service)
}

// CompleteExpired moves broadcasting alerts past their finish time to
// completed. Completion reaches no provider. It returns how many alerts
// were completed; one alert failing does not stop the rest.
func (l *Lifecycle) CompleteExpired(ctx context.Context) (int, error) {
	expired, err := l.alerts.ListExpiredBroadcasting(ctx, l.clock.Now(), expiryBatchSize)
	if err != nil {
		return 0, err
	}

	system := types.Actor{ID: "system", Type: types.ActorTypeSystem}
	completed := 0
	for _, alert := range expired {
		if err := l.Transition(ctx, alert, types.StatusCompleted, system, ""); err != nil {
			l.logger.Warn("failed to complete expired broadcast",
				"broadcast_message_id", alert.ID,
				"error", err.Error(),
			)
			continue
		}
		completed++
	}
	return completed, nil
}
