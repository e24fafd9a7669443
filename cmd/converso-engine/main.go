package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/converso/converso/pkg/assistant"
	"github.com/converso/converso/pkg/clients"
	"github.com/converso/converso/pkg/cmd"
	"github.com/converso/converso/pkg/engine"
	"github.com/converso/converso/pkg/log"
	"github.com/converso/converso/pkg/otelhelper"
	"github.com/converso/converso/pkg/queue"
	"github.com/converso/converso/pkg/sweeper"
)

func main() {
	command := &cli.Command{
		Name:                  "converso-engine",
		Usage:                 "Run the conversation engine worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the inbound queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "availability-url",
				Usage:   "Base URL of the availability service",
				Sources: cli.EnvVars("AVAILABILITY_URL"),
			},
			&cli.StringFlag{
				Name:    "orders-url",
				Usage:   "Base URL of the order service",
				Sources: cli.EnvVars("ORDERS_URL"),
			},
			&cli.StringFlag{
				Name:    "assistant-url",
				Usage:   "Base URL of the assistant completion service",
				Sources: cli.EnvVars("ASSISTANT_URL"),
			},
			&cli.StringFlag{
				Name:    "assistant-api-key",
				Usage:   "API key for the assistant completion service",
				Sources: cli.EnvVars("ASSISTANT_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the idle-session sweep",
				Value:   sweeper.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "session-idle-duration",
				Usage:   "How long a session may idle before it is abandoned",
				Value:   sweeper.DefaultIdleDuration,
				Sources: cli.EnvVars("SESSION_IDLE_DURATION"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export turn spans over OTLP HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "engine-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("engine-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Converso engine worker")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(
		command.String("event-bus"),
		command.String("kafka-brokers"),
		"converso-engine",
		logger,
	)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	checker := clients.NewAvailabilityClient(logger, clients.Config{
		BaseURL: command.String("availability-url"),
	})
	orders := clients.NewOrderClient(logger, clients.Config{
		BaseURL: command.String("orders-url"),
	})

	reg, formats, err := cmd.NewRegistry(ctx, logger, store, checker, orders)
	if err != nil {
		return err
	}

	var augmenter *assistant.Augmenter

	if assistantURL := command.String("assistant-url"); assistantURL != "" {
		client := clients.NewAssistantClient(logger, clients.Config{
			BaseURL: assistantURL,
			APIKey:  command.String("assistant-api-key"),
			Timeout: 30 * time.Second,
		})
		augmenter = assistant.NewAugmenter(
			client, store.FAQs(), store.Messages(), store.Workflows(), logger)
	}

	engineConfig := engine.Config{
		Persistence: store,
		Registry:    reg,
		Augmenter:   augmenter,
		Publisher:   eventBus,
		Logger:      logger,
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "converso-engine")
		if err != nil {
			return err
		}

		engineConfig.Tracer = tracer
	}

	eng := engine.New(engineConfig)

	q, err := queue.NewQueue(ctx, logger, command.String("redis-url"))
	if err != nil {
		return err
	}

	s, err := sweeper.NewSweeper(logger, eng,
		command.String("sweep-schedule"), command.Duration("session-idle-duration"))
	if err != nil {
		return err
	}

	return NewWorker(workerID, logger, eng, q, s, eventBus, store, formats).Start(ctx)
}
