// Package queue provides the SQS producer that carries dispatch units
// between the lifecycle manager, the scheduler and the broadcast worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// maxDelaySeconds is the SQS DelaySeconds ceiling.
const maxDelaySeconds = 900

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer serializes DispatchMessages onto the broadcast queue. Units that
// fail an integrity check go to the dead-letter queue instead.
type Producer struct {
	client   SQSSender
	queueURL string
	dlqURL   string
	logger   *slog.Logger
}

// NewProducer creates a Producer from the AWS queue configuration.
func NewProducer(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *Producer {
	return &Producer{
		client:   client,
		queueURL: awsCfg.BroadcastQueue,
		dlqURL:   awsCfg.DlqURL,
		logger:   logger,
	}
}

// SubmitDispatch enqueues a fresh dispatch unit.
func (p *Producer) SubmitDispatch(ctx context.Context, msg types.DispatchMessage) error {
	if msg.Kind == "" {
		msg.Kind = types.DispatchKindBroadcast
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	return p.send(ctx, p.queueURL, msg, 0, "submit")
}

// ScheduleRetry re-enqueues msg after delay. RetryCount is incremented
// before serialization so the next consumer computes the right backoff.
// Delays beyond the SQS ceiling are clamped.
func (p *Producer) ScheduleRetry(ctx context.Context, msg types.DispatchMessage, delay time.Duration) error {
	msg.RetryCount++
	return p.send(ctx, p.queueURL, msg, delay, "retry")
}

// SubmitLinkTest enqueues a link test for provider.
func (p *Producer) SubmitLinkTest(ctx context.Context, provider types.Provider) error {
	msg := types.DispatchMessage{
		Kind:     types.DispatchKindLinkTest,
		Provider: provider,
		TraceID:  uuid.NewString(),
	}
	return p.send(ctx, p.queueURL, msg, 0, "link_test")
}

// DeadLetter parks msg with the failure that stopped it.
func (p *Producer) DeadLetter(ctx context.Context, msg types.DispatchMessage, cause error) error {
	if cause != nil {
		msg.FailureMsg = cause.Error()
		var appErr *types.AppError
		if errors.As(cause, &appErr) {
			msg.FailureCode = appErr.Code
		}
	}
	return p.send(ctx, p.dlqURL, msg, 0, "dead_letter")
}

func (p *Producer) send(ctx context.Context, queueURL string, msg types.DispatchMessage, delay time.Duration, reason string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DispatchMessage: %w", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > maxDelaySeconds {
		delaySec = maxDelaySeconds
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
			"provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Provider)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send DispatchMessage to %s: %w", queueURL, err)
	}

	p.logger.InfoContext(ctx, "dispatch message sent",
		"queue_url", queueURL,
		"kind", string(msg.Kind),
		"broadcast_event_id", msg.BroadcastEventID,
		"provider", string(msg.Provider),
		"retry_count", msg.RetryCount,
		"delay_seconds", delaySec,
		"trace_id", msg.TraceID,
		"reason", reason,
	)
	return nil
}

// DecodeDispatch parses a queue message body.
func DecodeDispatch(body string) (types.DispatchMessage, error) {
	var msg types.DispatchMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return msg, types.NewAppError(types.ErrCodeValidationMissingField, "malformed dispatch message", err)
	}
	return msg, nil
}
