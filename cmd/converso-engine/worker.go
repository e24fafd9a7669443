// Package main provides the Converso engine worker: it drains the inbound
// redis queue, runs each message through the session interpreter, and queues
// the replies for delivery.
package main

import (
	"context"
	"log/slog"

	"github.com/converso/converso/pkg/engine"
	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/queue"
	"github.com/converso/converso/pkg/sweeper"
	"github.com/converso/converso/pkg/validation"
)

type Worker struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	queue    *queue.Queue
	sweeper  *sweeper.Sweeper
	eventBus eventbus.EventBus
	store    persistence.Persistence
	formats  *validation.Registry
}

func NewWorker(
	id string,
	logger *slog.Logger,
	eng *engine.Engine,
	q *queue.Queue,
	s *sweeper.Sweeper,
	eventBus eventbus.EventBus,
	store persistence.Persistence,
	formats *validation.Registry,
) *Worker {
	return &Worker{
		id:       id,
		logger:   logger,
		engine:   eng,
		queue:    q,
		sweeper:  s,
		eventBus: eventBus,
		store:    store,
		formats:  formats,
	}
}

// Start runs the worker until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting Converso engine worker")

	if err := w.subscribeEvents(ctx); err != nil {
		return err
	}

	if err := w.sweeper.Start(ctx); err != nil {
		return err
	}

	w.queue.Start(ctx, w.handleInbound)

	<-ctx.Done()

	w.logger.Info("Shutting down Converso engine worker")

	if err := w.sweeper.Stop(context.Background()); err != nil {
		w.logger.Error("Failed to stop sweeper", "error", err)
	}

	return w.queue.Stop(context.Background())
}

// handleInbound runs one queued message through the engine and pushes every
// reply onto the conversant's outbox.
func (w *Worker) handleInbound(ctx context.Context, message queue.InboundMessage) error {
	outbound, err := w.engine.ProcessInbound(ctx, engine.Inbound{
		ConversantID: message.ConversantID,
		Channel:      message.Channel,
		Text:         message.Text,
		Locale:       message.Locale,
		Timestamp:    message.Timestamp,
	})
	if err != nil {
		return err
	}

	for _, reply := range outbound {
		err := w.queue.PushOutbound(ctx, queue.OutboundReply{
			ConversantID: message.ConversantID,
			Text:         reply.Text,
			DelaySeconds: reply.DelaySeconds,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// subscribeEvents fans session lifecycle events out to the worker log.
func (w *Worker) subscribeEvents(ctx context.Context) error {
	logEvent := func(name string) eventbus.EventHandler {
		return func(ctx context.Context, event any) error {
			w.logger.InfoContext(ctx, "Session event", "event_type", name, "event", event)

			return nil
		}
	}

	for _, eventType := range []events.EventType{
		events.SessionStartedEvent,
		events.SessionTurnCompletedEvent,
		events.SessionEndedEvent,
		events.SessionExpiredEvent,
		events.AssistantFallbackEvent,
		events.WorkflowActivatedEvent,
	} {
		if err := w.eventBus.Handle(eventType, logEvent(string(eventType))); err != nil {
			return err
		}
	}

	// Format edits land through the authoring API in another process; reload
	// the compiled registry so collect modules validate against the new
	// expressions without a restart.
	for _, eventType := range []events.EventType{
		events.FormatSavedEvent,
		events.FormatDeletedEvent,
	} {
		if err := w.eventBus.Handle(eventType, w.reloadFormats); err != nil {
			return err
		}
	}

	return w.eventBus.Subscribe(ctx)
}

func (w *Worker) reloadFormats(ctx context.Context, _ any) error {
	stored, err := w.store.Formats().List(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list validation formats", "error", err)

		return err
	}

	if err := w.formats.Load(stored); err != nil {
		w.logger.ErrorContext(ctx, "Failed to reload validation formats", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Reloaded validation formats", "count", len(stored))

	return nil
}
