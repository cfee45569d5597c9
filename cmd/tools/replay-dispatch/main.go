// Package main implements replay-dispatch, the operator tool for manually
// replaying one dispatch unit after an integrity failure has been
// investigated and its blocking cause fixed.
//
// Usage:
//
//	go run ./cmd/tools/replay-dispatch --event=<broadcast_event_id> --provider=ee
//	go run ./cmd/tools/replay-dispatch --event=<id> --provider=vodafone --dry-run
//
// The unit is republished to the broadcasts queue with a zero retry count.
// A unit whose delivery record is already acknowledged is refused.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/db"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/queue"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

type eventReader interface {
	GetByID(ctx context.Context, id string) (*types.AlertEvent, error)
}

type deliveryReader interface {
	GetForEvent(ctx context.Context, eventID string, provider types.Provider) (*types.ProviderDeliveryRecord, error)
}

type dispatchSubmitter interface {
	SubmitDispatch(ctx context.Context, msg types.DispatchMessage) error
}

type replayer struct {
	events     eventReader
	deliveries deliveryReader
	submitter  dispatchSubmitter
	out        io.Writer
}

func main() {
	eventFlag := flag.String("event", "", "broadcast event ID to replay")
	providerFlag := flag.String("provider", "", "provider to replay to (ee, three, o2, vodafone)")
	dryRunFlag := flag.Bool("dry-run", false, "print the dispatch message without publishing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: replay-dispatch --event=<id> --provider=<name> [--dry-run]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *eventFlag == "" || *providerFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --event and --provider are required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	provider, ok := types.ParseProvider(*providerFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown provider %q\n", *providerFlag)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *eventFlag, provider, *dryRunFlag, logger); err != nil {
		logger.Error("replay failed", "broadcast_event_id", *eventFlag, "provider", string(provider), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, eventID string, provider types.Provider, dryRun bool, logger *slog.Logger) error {
	cfg, err := config.LoadConfig(config.SecretProviderFor(os.Getenv))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	awsCfg, err := cfg.AWS.LoadSDKConfig(ctx)
	if err != nil {
		return err
	}

	r := &replayer{
		events:     db.NewEventRepository(pool),
		deliveries: db.NewProviderMessageRepository(pool),
		submitter:  queue.NewProducer(sqs.NewFromConfig(awsCfg), cfg.AWS, logger),
		out:        os.Stdout,
	}
	msg, err := r.replay(ctx, eventID, provider, dryRun)
	if err != nil {
		return err
	}
	logger.Info("dispatch unit replayed",
		"broadcast_event_id", msg.BroadcastEventID,
		"provider", string(msg.Provider),
		"trace_id", msg.TraceID,
		"dry_run", dryRun,
	)
	return nil
}

// replay checks that the unit exists and is not already acknowledged, then
// publishes it (or prints it when dryRun is set).
func (r *replayer) replay(ctx context.Context, eventID string, provider types.Provider, dryRun bool) (types.DispatchMessage, error) {
	event, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return types.DispatchMessage{}, err
	}

	rec, err := r.deliveries.GetForEvent(ctx, event.ID, provider)
	if err != nil {
		return types.DispatchMessage{}, err
	}
	if rec != nil && rec.Status == types.DeliveryStatusAck {
		return types.DispatchMessage{}, fmt.Errorf("event %s was already acknowledged by %s", event.ID, provider)
	}

	msg := types.DispatchMessage{
		Kind:             types.DispatchKindBroadcast,
		BroadcastEventID: event.ID,
		Provider:         provider,
		TraceID:          "replay-" + uuid.NewString(),
	}

	if dryRun {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return msg, enc.Encode(msg)
	}
	return msg, r.submitter.SubmitDispatch(ctx, msg)
}
