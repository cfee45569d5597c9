// Package main is the entry point for the broadcast worker Lambda.
//
// The worker consumes the broadcasts queue. Each SQS record carries one
// dispatch unit (an alert event for one provider) or one link test. Records
// whose processing fails with a transient error are reported as batch item
// failures so SQS redelivers only those records; retryable provider
// failures are rescheduled by the dispatcher itself and acknowledged.
//
// With APP_ENV=local the worker reads a single SQS event as JSON from stdin
// instead of starting the Lambda runtime.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/broadcast"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/cbc"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/db"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/queue"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// MessageHandler executes one decoded dispatch message.
type MessageHandler interface {
	Handle(ctx context.Context, msg types.DispatchMessage) error
}

// Handler adapts SQS batches to a MessageHandler.
type Handler struct {
	dispatcher MessageHandler
	logger     types.Logger
}

// Handle processes every record independently and reports the ones that
// should be redelivered.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}
	return response, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	msg, err := queue.DecodeDispatch(record.Body)
	if err != nil {
		// Redelivering an undecodable body cannot succeed.
		h.logger.Error("dropping malformed dispatch message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}
	return h.dispatcher.Handle(ctx, msg)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("broadcast worker initializing (cold start)")

	handler, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Error("failed to initialize broadcast worker", "error", err)
		os.Exit(1)
	}

	if os.Getenv("APP_ENV") == "local" {
		if err := runLocal(handler, os.Stdin, os.Stdout); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

func newHandler(ctx context.Context, logger *slog.Logger) (*Handler, error) {
	cfg, err := config.LoadConfig(config.SecretProviderFor(os.Getenv))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	typedLogger := types.NewSlogAdapter(logger)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	awsCfg, err := cfg.AWS.LoadSDKConfig(ctx)
	if err != nil {
		return nil, err
	}

	deliveries := db.NewProviderMessageRepository(pool)
	names := func(p types.Provider) (string, string, bool) {
		n, ok := cfg.CBC.Lambdas(p)
		return n.Primary, n.Secondary, ok
	}
	registry, err := cbc.NewRegistry(cfg.CBC.EnabledProviders(), names, awslambda.NewFromConfig(awsCfg),
		deliveries, cfg.CBC.InvokeTimeout, typedLogger)
	if err != nil {
		return nil, fmt.Errorf("building cbc clients: %w", err)
	}

	var metrics broadcast.DispatchMetrics = broadcast.NoopMetrics{}
	if cfg.Observability.MetricsEnabled {
		metrics = broadcast.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, typedLogger)
	}

	eventRepo := db.NewEventRepository(pool)
	alerts := db.NewBroadcastRepository(pool)
	services := db.NewServiceRepository(pool)
	producer := queue.NewProducer(sqs.NewFromConfig(awsCfg), cfg.AWS, logger)

	dispatcher := broadcast.NewDispatcher(broadcast.DispatcherDeps{
		ProxyEnabled: cfg.CBC.ProxyEnabled,
		Events:       eventRepo,
		Deliveries:   deliveries,
		Checker:      broadcast.NewIntegrityChecker(services, alerts, eventRepo, deliveries, types.RealClock{}),
		Clients:      broadcast.RegistryClients{Registry: registry},
		Retries:      producer,
		DeadLetter:   producer,
		Metrics:      metrics,
		Logger:       typedLogger,
	})

	logger.Info("broadcast worker initialized",
		"environment", cfg.Environment,
		"proxy_enabled", cfg.CBC.ProxyEnabled,
		"providers", cfg.CBC.EnabledCBCs,
	)
	return &Handler{dispatcher: dispatcher, logger: typedLogger}, nil
}

// runLocal feeds one JSON-encoded SQS event from r through the handler and
// writes the batch response to w.
func runLocal(h *Handler, r io.Reader, w io.Writer) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return fmt.Errorf("parse SQS event: %w", err)
	}
	resp, err := h.Handle(context.Background(), sqsEvent)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(resp)
}
