// Package main runs the periodic broadcast jobs: provider link tests and
// completion of broadcasts past their finish time.
//
// Usage:
//
//	scheduler                      run the cron loop until SIGINT/SIGTERM
//	scheduler --run=link_test      run one task immediately and exit
//	scheduler --list               print the registered tasks
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/broadcast"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/db"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/external"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/queue"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/scheduler"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

var taskDescriptions = map[scheduler.TaskType]string{
	scheduler.TaskLinkTest:        "Publish one link test per enabled provider",
	scheduler.TaskCompleteExpired: "Complete broadcasting alerts past their finish time",
}

func main() {
	runTask := flag.String("run", "", "run a single task and exit")
	list := flag.Bool("list", false, "list tasks and exit")
	flag.Parse()

	if *list {
		printTasks(os.Stdout)
		return
	}
	if err := run(*runTask); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(task string) error {
	cfg, err := config.LoadConfig(config.SecretProviderFor(os.Getenv))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	typedLogger := types.NewSlogAdapter(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	awsCfg, err := cfg.AWS.LoadSDKConfig(ctx)
	if err != nil {
		return err
	}
	producer := queue.NewProducer(sqs.NewFromConfig(awsCfg), cfg.AWS, logger)

	support, err := external.NewClientRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating external clients: %w", err)
	}

	enabled := cfg.CBC.EnabledProviders()
	lifecycle := broadcast.NewLifecycle(broadcast.LifecycleDeps{
		Alerts:     db.NewBroadcastRepository(pool),
		Services:   db.NewServiceRepository(pool),
		Emitter:    broadcast.NewEmitter(db.NewEventRepository(pool), producer, enabled, types.RealClock{}, typedLogger),
		Support:    support.Support,
		Enabled:    enabled,
		Production: cfg.IsProduction(),
		Logger:     typedLogger,
	})
	defer lifecycle.Wait()

	runner := scheduler.NewRunner(cfg.Scheduler, logger)
	if err := registerJobs(runner, cfg.Scheduler,
		scheduler.NewLinkTestService(producer, enabled, cfg.Scheduler.LinkTestRate, logger),
		scheduler.NewExpiryService(lifecycle, logger),
	); err != nil {
		return err
	}

	if task != "" {
		taskType, err := scheduler.ParseTaskType(task)
		if err != nil {
			return err
		}
		return runner.RunTask(ctx, taskType)
	}

	logger.Info("scheduler starting",
		"environment", cfg.Environment,
		"link_test_schedule", cfg.Scheduler.LinkTestSchedule,
		"expiry_schedule", cfg.Scheduler.ExpirySchedule,
	)
	runner.Start(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	runner.Stop(shutdownCtx)
	logger.Info("scheduler stopped")
	return nil
}

// registerJobs binds each task to its schedule.
func registerJobs(runner *scheduler.Runner, cfg config.SchedulerConfig, links *scheduler.LinkTestService, expiry *scheduler.ExpiryService) error {
	if err := runner.Register(scheduler.TaskLinkTest, cfg.LinkTestSchedule, func(ctx context.Context) error {
		_, err := links.TriggerLinkTests(ctx)
		return err
	}); err != nil {
		return err
	}
	return runner.Register(scheduler.TaskCompleteExpired, cfg.ExpirySchedule, func(ctx context.Context) error {
		_, err := expiry.CompleteExpired(ctx)
		return err
	})
}

func printTasks(w io.Writer) {
	for _, task := range []scheduler.TaskType{scheduler.TaskLinkTest, scheduler.TaskCompleteExpired} {
		fmt.Fprintf(w, "  %-18s %s\n", task, taskDescriptions[task])
	}
}
