package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/converso/converso/pkg/assistant"
	"github.com/converso/converso/pkg/clients"
	"github.com/converso/converso/pkg/cmd"
	"github.com/converso/converso/pkg/log"
)

const defaultPort = 9090

func main() {
	command := &cli.Command{
		Name:                  "converso-api",
		Usage:                 "Author conversation modules and workflows, and serve inbound messages",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Converso API")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(
				command.String("event-bus"),
				command.String("kafka-brokers"),
				"converso-api",
				logger,
			)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
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
				})
				augmenter = assistant.NewAugmenter(
					client, store.FAQs(), store.Messages(), store.Workflows(), logger)
			}

			api := NewAPI(logger, store, reg, formats, eventBus, augmenter)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
