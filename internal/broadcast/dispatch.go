package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/cbc"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Dispatcher executes dispatch units: one alert event delivered to one
// provider. A unit that fails at the transport layer is rescheduled with
// exponential backoff and its delivery record stays in sending.
type Dispatcher struct {
	enabled    bool
	events     EventStore
	deliveries DeliveryStore
	checker    *IntegrityChecker
	clients    ClientProvider
	retries    RetryScheduler
	deadLetter DeadLetterer
	metrics    DispatchMetrics
	policy     RetryPolicy
	clock      types.Clock
	logger     types.Logger
}

// DispatcherDeps holds the collaborators of a Dispatcher.
type DispatcherDeps struct {
	ProxyEnabled bool
	Events       EventStore
	Deliveries   DeliveryStore
	Checker      *IntegrityChecker
	Clients      ClientProvider
	Retries      RetryScheduler
	DeadLetter   DeadLetterer
	Metrics      DispatchMetrics
	Clock        types.Clock
	Logger       types.Logger
}

// NewDispatcher creates a Dispatcher using DispatchRetryPolicy.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		enabled:    deps.ProxyEnabled,
		events:     deps.Events,
		deliveries: deps.Deliveries,
		checker:    deps.Checker,
		clients:    deps.Clients,
		retries:    deps.Retries,
		deadLetter: deps.DeadLetter,
		metrics:    deps.Metrics,
		policy:     DispatchRetryPolicy,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if d.metrics == nil {
		d.metrics = NoopMetrics{}
	}
	if d.clock == nil {
		d.clock = types.RealClock{}
	}
	return d
}

// Handle routes a queue message to the matching operation. Units that can
// never succeed unattended (integrity failures, malformed messages, missing
// events) are parked on the dead-letter queue and reported as handled; any
// other error is returned so the queue redelivers the message.
func (d *Dispatcher) Handle(ctx context.Context, msg types.DispatchMessage) error {
	if msg.Kind == types.DispatchKindLinkTest {
		return d.LinkTest(ctx, msg.Provider)
	}

	var err error
	switch {
	case msg.Kind != types.DispatchKindBroadcast && msg.Kind != "":
		err = types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("unknown dispatch kind %q", msg.Kind), nil)
	case msg.BroadcastEventID == "":
		err = types.NewAppError(types.ErrCodeValidationMissingField, "broadcast_event_id is required", nil)
	default:
		err = d.Dispatch(ctx, msg)
	}
	if err == nil || !isPoison(err) {
		return err
	}
	if d.deadLetter == nil {
		return err
	}
	if dlqErr := d.deadLetter.DeadLetter(ctx, msg, err); dlqErr != nil {
		return fmt.Errorf("dead-letter dispatch unit: %w", dlqErr)
	}
	return nil
}

func isPoison(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code.HTTPStatus() {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Dispatch sends one event to one provider. It returns nil once the unit is
// either acknowledged or rescheduled.
func (d *Dispatcher) Dispatch(ctx context.Context, msg types.DispatchMessage) error {
	log := d.logger.With(
		"broadcast_event_id", msg.BroadcastEventID,
		"provider", string(msg.Provider),
		"retry_count", msg.RetryCount,
	)

	if !d.enabled {
		log.Info("cbc proxy disabled, not sending broadcast event")
		return nil
	}

	event, err := d.events.GetByID(ctx, msg.BroadcastEventID)
	if err != nil {
		return err
	}

	gate, err := d.checker.Check(ctx, event, msg.Provider)
	if err != nil {
		if IsIntegrityError(err) {
			d.metrics.RecordDispatch(ctx, msg.Provider, types.DispatchResultIntegrity)
			log.Error("broadcast integrity check failed", "error", err.Error())
		}
		return err
	}

	client, err := d.clients.Client(msg.Provider)
	if err != nil {
		return err
	}

	rec, created, err := d.deliveries.EnsureDelivery(ctx, event.ID, msg.Provider, client.UsesSequentialNumbers())
	if err != nil {
		return err
	}
	if created {
		log.Info("created provider delivery record", "provider_message_id", rec.ID)
	}

	req := buildRequest(event, rec, gate)

	start := d.clock.Now()
	sendErr := d.send(ctx, client, event.MessageType, req)
	d.metrics.RecordLatency(ctx, msg.Provider, d.clock.Now().Sub(start))

	if sendErr != nil {
		if !cbc.IsRetryable(sendErr) {
			return sendErr
		}
		delay := CalculateNextRetry(d.policy, msg.RetryCount)
		log.Warn("broadcast event not acknowledged, scheduling retry",
			"error", sendErr.Error(),
			"delay_seconds", int(delay/time.Second),
		)
		if err := d.retries.ScheduleRetry(ctx, msg, delay); err != nil {
			return fmt.Errorf("schedule dispatch retry: %w", err)
		}
		d.metrics.RecordDispatch(ctx, msg.Provider, types.DispatchResultRetry)
		return nil
	}

	if err := d.deliveries.UpdateStatus(ctx, rec.ID, types.DeliveryStatusAck); err != nil {
		return err
	}
	d.metrics.RecordDispatch(ctx, msg.Provider, types.DispatchResultAck)
	log.Info("broadcast event acknowledged", "provider_message_id", rec.ID)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, client ProviderClient, msgType types.MessageType, req cbc.BroadcastRequest) error {
	switch msgType {
	case types.MessageTypeAlert:
		return client.CreateAndSend(ctx, req)
	case types.MessageTypeUpdate:
		return client.UpdateAndSend(ctx, req)
	case types.MessageTypeCancel:
		return client.Cancel(ctx, req)
	default:
		return types.NewAppError(types.ErrCodeValidationMessageType,
			fmt.Sprintf("unsupported message type %q", msgType), nil)
	}
}

func buildRequest(event *types.AlertEvent, rec *types.ProviderDeliveryRecord, gate *Gate) cbc.BroadcastRequest {
	req := cbc.BroadcastRequest{
		Identifier:  rec.ID,
		Description: event.TransmittedContent,
		Areas:       event.TransmittedAreas.SimplePolygons,
		Sent:        event.SentAt,
		Expires:     event.TransmittedFinishesAt,
		Channel:     gate.Service.BroadcastChannel,
	}
	if rec.MessageNumber != nil {
		req.MessageNumber = cbc.FormatMessageNumber(*rec.MessageNumber)
	}
	for _, prev := range gate.Previous {
		req.PreviousMessages = append(req.PreviousMessages, cbc.PreviousMessage{
			ID:            prev.ID,
			MessageNumber: prev.MessageNumber,
			CreatedAt:     prev.CreatedAt,
		})
	}
	return req
}

// LinkTest checks connectivity to every endpoint of provider. Failures are
// logged and counted; link tests are never retried.
func (d *Dispatcher) LinkTest(ctx context.Context, provider types.Provider) error {
	log := d.logger.With("provider", string(provider))
	if !d.enabled {
		log.Info("cbc proxy disabled, skipping link test")
		return nil
	}

	client, err := d.clients.Client(provider)
	if err != nil {
		log.Error("link test skipped", "error", err.Error())
		return nil
	}
	if err := client.SendLinkTest(ctx); err != nil {
		d.metrics.RecordLinkTestFailure(ctx, provider)
		log.Error("link test failed", "error", err.Error(), "retryable", cbc.IsRetryable(err))
		return nil
	}
	log.Info("link test succeeded")
	return nil
}
