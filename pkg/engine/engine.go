// Package engine interprets workflow graphs against live sessions: one
// inbound event in, zero or more outbound messages out, and one atomic
// session transition in between.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/converso/converso/pkg/assistant"
	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/log"
	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/otelhelper"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/registry"
)

// maxAutoAdvance bounds how many auto-executing steps chain inside one turn,
// so a miswired graph cycles into a graceful end instead of spinning.
const maxAutoAdvance = 16

// Inbound is one user event entering the engine.
type Inbound struct {
	ConversantID string
	Channel      string
	Text         string
	Locale       models.Locale
	Timestamp    time.Time
}

// Outbound is one message the turn emits back to the conversant.
type Outbound struct {
	Text         string
	Choices      []protocol.PresentedChoice
	DelaySeconds int
}

// Config wires the engine's collaborators. Augmenter, Publisher, and Tracer
// are optional.
type Config struct {
	Persistence persistence.Persistence
	Registry    *registry.Registry
	Augmenter   *assistant.Augmenter
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Engine is the session interpreter. It is safe for concurrent use; turns for
// the same conversant serialize on a keyed lock.
type Engine struct {
	store     persistence.Persistence
	registry  *registry.Registry
	augmenter *assistant.Augmenter
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	locks     *conversantLocks
}

func New(cfg Config) *Engine {
	return &Engine{
		store:     cfg.Persistence,
		registry:  cfg.Registry,
		augmenter: cfg.Augmenter,
		publisher: cfg.Publisher,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger,
		locks:     newConversantLocks(),
	}
}

// ProcessInbound consumes one user event and returns the outbound messages of
// the resulting turn. The whole transition commits atomically; on error the
// stored session is unchanged and the event is safe to redeliver.
func (e *Engine) ProcessInbound(ctx context.Context, inbound Inbound) ([]Outbound, error) {
	unlock := e.locks.Lock(inbound.ConversantID)
	defer unlock()

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.turn",
			attribute.String(otelhelper.ConversantIDKey, inbound.ConversantID),
			attribute.String(otelhelper.ChannelKey, inbound.Channel),
		)
		defer span.End()
	}

	session, err := e.store.Sessions().GetActiveByConversant(ctx, inbound.ConversantID)
	if persistence.IsSessionNotFound(err) {
		return e.startSession(ctx, inbound)
	}

	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	return e.continueSession(ctx, inbound, session)
}

// startSession creates a fresh session at the active workflow's entry step
// and emits that step's prompt. The first inbound text only opens the
// conversation; no module consumes it.
func (e *Engine) startSession(ctx context.Context, inbound Inbound) ([]Outbound, error) {
	workflow, err := e.store.Workflows().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active workflow: %w", err)
	}

	entry, ok := workflow.EntryStep()
	if !ok {
		return nil, fmt.Errorf("active workflow %s has no steps", workflow.ID)
	}

	locale := inbound.Locale
	if locale == "" {
		locale = models.DefaultLocale
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:             uuid.NewString(),
		ConversantID:   inbound.ConversantID,
		Channel:        inbound.Channel,
		WorkflowID:     workflow.ID,
		StepRef:        entry.StepRef,
		Variables:      map[string]string{},
		Locale:         locale,
		Status:         models.SessionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	t := e.newTurn(session, workflow)
	t.recordUser(inbound)
	t.addEvent(&events.SessionStarted{
		BaseEvent:    t.baseEvent(events.SessionStartedEvent),
		ConversantID: session.ConversantID,
		WorkflowID:   workflow.ID,
		StepRef:      entry.StepRef,
		Channel:      session.Channel,
	})

	e.enterStep(ctx, t, entry.StepRef, 0)

	return e.commit(ctx, t)
}

// continueSession feeds the inbound event to the session's current step,
// preferring assistant augmentation when the module enables it.
func (e *Engine) continueSession(ctx context.Context, inbound Inbound, stored *models.Session) ([]Outbound, error) {
	session := stored.Clone()

	workflow, err := e.store.Workflows().GetByID(ctx, session.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", session.WorkflowID, err)
	}

	t := e.newTurn(session, workflow)
	t.recordUser(inbound)

	step, ok := workflow.StepByRef(session.StepRef)
	if !ok {
		e.gracefulEnd(t, fmt.Sprintf("session step %s missing from workflow %s",
			session.StepRef, workflow.ID))

		return e.commit(ctx, t)
	}

	module, handler, err := e.resolveModule(ctx, step)
	if err != nil {
		e.gracefulEnd(t, err.Error())

		return e.commit(ctx, t)
	}

	if module.AssistantEnabled() && e.augmenter != nil {
		if done := e.tryAugment(ctx, t, step, module, inbound.Text); done {
			return e.commit(ctx, t)
		}
	}

	input := protocol.HandlerInput{
		Session: session,
		Module:  module,
		Step:    step,
		Inbound: inbound.Text,
	}

	outcome, err := handler.Handle(ctx, input, e.turnLogger(t))
	if err != nil {
		return nil, fmt.Errorf("handle step %s: %w", step.StepRef, err)
	}

	e.applyOutcome(ctx, t, step, module, outcome)

	return e.commit(ctx, t)
}

// tryAugment runs the bounded assistant call. It returns true when the
// assistant answered the turn; false routes to the deterministic handler.
func (e *Engine) tryAugment(ctx context.Context, t *turn, step *models.Step, module *models.Module, inbound string) bool {
	outcome := e.augmenter.Augment(ctx, t.session, module, inbound)

	switch outcome.Kind {
	case assistant.OutcomeHandled:
		if outcome.Text != "" {
			t.emit(Outbound{Text: outcome.Text})
		}

		for name, value := range outcome.VariableUpdates {
			t.session.SetVariable(name, value)
		}

		switch {
		case outcome.NavigateWorkflowID != "":
			// Implicit end of the current workflow before entering the
			// target; the variable bag survives.
			t.session.Stack = nil
			e.switchWorkflow(ctx, t, outcome.NavigateWorkflowID, false, 0)
		case outcome.Category != "":
			e.resolveAndTraverse(ctx, t, step, module, outcome.Category, 0)
		}

		// Neither: the assistant answered in place, the session stays on the
		// step awaiting the next inbound event.
		return true
	case assistant.OutcomeDeclined:
		return false
	default:
		t.addEvent(&events.AssistantFallback{
			BaseEvent: t.baseEvent(events.AssistantFallbackEvent),
			ModuleRef: module.RefCode,
			Kind:      string(outcome.Kind),
			Reason:    outcome.Reason,
		})

		return false
	}
}

// applyOutcome folds a deterministic handler outcome into the turn.
func (e *Engine) applyOutcome(ctx context.Context, t *turn, step *models.Step, module *models.Module, outcome protocol.Outcome) {
	if outcome.Reply != "" || len(outcome.Choices) > 0 {
		t.emit(Outbound{Text: outcome.Reply, Choices: outcome.Choices})
	}

	for name, value := range outcome.VariableUpdates {
		t.session.SetVariable(name, value)
	}

	if !outcome.Advance {
		return
	}

	if outcome.NavigateWorkflowID != "" {
		t.session.Stack = nil
		e.switchWorkflow(ctx, t, outcome.NavigateWorkflowID, false, 0)

		return
	}

	e.resolveAndTraverse(ctx, t, step, module, outcome.Category, 0)
}

// enterStep moves the session onto a step and emits its prompt. Auto-executing
// modules run their handler immediately and keep traversing.
func (e *Engine) enterStep(ctx context.Context, t *turn, stepRef string, depth int) {
	if t.ended {
		return
	}

	if depth > maxAutoAdvance {
		e.gracefulEnd(t, fmt.Sprintf("auto-advance chain exceeded %d steps at %s",
			maxAutoAdvance, stepRef))

		return
	}

	step, ok := t.workflow.StepByRef(stepRef)
	if !ok {
		e.gracefulEnd(t, fmt.Sprintf("output destination step %s missing from workflow %s",
			stepRef, t.workflow.ID))

		return
	}

	t.session.StepRef = step.StepRef

	module, handler, err := e.resolveModule(ctx, step)
	if err != nil {
		e.gracefulEnd(t, err.Error())

		return
	}

	input := protocol.HandlerInput{
		Session: t.session,
		Module:  module,
		Step:    step,
	}

	prompt, err := handler.Prompt(ctx, input, e.turnLogger(t))
	if err != nil {
		e.gracefulEnd(t, fmt.Sprintf("prompt step %s: %v", step.StepRef, err))

		return
	}

	if prompt.Text != "" || len(prompt.Choices) > 0 {
		t.emit(Outbound{
			Text:         prompt.Text,
			Choices:      prompt.Choices,
			DelaySeconds: t.takeDelay(),
		})
	}

	if !prompt.AutoExecute {
		return
	}

	outcome, err := handler.Handle(ctx, input, e.turnLogger(t))
	if err != nil {
		e.gracefulEnd(t, fmt.Sprintf("auto-execute step %s: %v", step.StepRef, err))

		return
	}

	if outcome.Reply != "" {
		t.emit(Outbound{Text: outcome.Reply, Choices: outcome.Choices})
	}

	for name, value := range outcome.VariableUpdates {
		t.session.SetVariable(name, value)
	}

	if outcome.Advance {
		e.resolveAndTraverse(ctx, t, step, module, outcome.Category, depth+1)
	}
}

// resolveAndTraverse picks the output for (step, category) and follows it.
// A missing output is an authoring defect: the engine logs a diagnostic and
// ends the session gracefully instead of crashing.
func (e *Engine) resolveAndTraverse(ctx context.Context, t *turn, step *models.Step, module *models.Module, category models.Category, depth int) {
	if t.ended {
		return
	}

	t.category = category

	output, ok := t.workflow.OutputFor(step.StepRef, category)
	if !ok && module != nil && module.Type.AutoExecutes() && category == models.CategorySuccess {
		// Authored graphs key auto-advancing edges either "success" or "auto".
		output, ok = t.workflow.OutputFor(step.StepRef, models.CategoryAuto)
	}

	if !ok {
		e.gracefulEnd(t, fmt.Sprintf("no output for step %s category %s in workflow %s",
			step.StepRef, category, t.workflow.ID))

		return
	}

	t.pendingDelay = output.DelaySeconds

	switch output.DestinationType {
	case models.DestinationStep:
		e.enterStep(ctx, t, output.DestinationRef, depth+1)
	case models.DestinationWorkflow:
		t.session.Push(t.workflow.ID, step.StepRef)
		e.switchWorkflow(ctx, t, output.DestinationRef, true, depth)
	case models.DestinationEnd:
		e.traverseEnd(ctx, t, depth)
	default:
		e.gracefulEnd(t, fmt.Sprintf("output %s has unknown destination type %s",
			output.ID, output.DestinationType))
	}
}

// switchWorkflow re-homes the session in another workflow at its entry step.
func (e *Engine) switchWorkflow(ctx context.Context, t *turn, workflowID string, pushed bool, depth int) {
	workflow, err := e.store.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		if pushed {
			t.session.Pop()
		}

		e.gracefulEnd(t, fmt.Sprintf("destination workflow %s: %v", workflowID, err))

		return
	}

	entry, ok := workflow.EntryStep()
	if !ok {
		e.gracefulEnd(t, fmt.Sprintf("destination workflow %s has no steps", workflowID))

		return
	}

	t.workflow = workflow
	t.session.WorkflowID = workflow.ID

	e.enterStep(ctx, t, entry.StepRef, depth+1)
}

// traverseEnd pops back into the calling workflow, or terminates the session
// when the call stack is empty. Returning from a sub-workflow resumes
// immediately after the calling step: the engine follows that step's success
// continuation, skipping workflow-call outputs so the return can never
// re-enter the sub-workflow it just left.
func (e *Engine) traverseEnd(ctx context.Context, t *turn, depth int) {
	frame, ok := t.session.Pop()
	if !ok {
		e.endSession(t, "")

		return
	}

	workflow, err := e.store.Workflows().GetByID(ctx, frame.WorkflowID)
	if err != nil {
		e.gracefulEnd(t, fmt.Sprintf("return workflow %s: %v", frame.WorkflowID, err))

		return
	}

	t.workflow = workflow
	t.session.WorkflowID = workflow.ID
	t.session.StepRef = frame.StepRef

	output, ok := returnOutput(workflow, frame.StepRef)
	if !ok {
		e.gracefulEnd(t, fmt.Sprintf("no continuation after step %s in workflow %s",
			frame.StepRef, frame.WorkflowID))

		return
	}

	t.pendingDelay = output.DelaySeconds

	if output.DestinationType == models.DestinationEnd {
		e.traverseEnd(ctx, t, depth+1)

		return
	}

	e.enterStep(ctx, t, output.DestinationRef, depth+1)
}

// returnOutput selects the continuation edge of a calling step: the lowest
// priority success (or auto) output whose destination is not another workflow
// call.
func returnOutput(workflow *models.Workflow, stepRef string) (*models.Output, bool) {
	var best *models.Output

	for _, output := range workflow.OutputsFrom(stepRef) {
		if output.DestinationType == models.DestinationWorkflow {
			continue
		}

		if output.Category != models.CategorySuccess && output.Category != models.CategoryAuto {
			continue
		}

		if best == nil ||
			output.Priority < best.Priority ||
			(output.Priority == best.Priority && output.ID < best.ID) {
			best = output
		}
	}

	return best, best != nil
}

// turnLogger tags the handler logger with the turn's session coordinates.
func (e *Engine) turnLogger(t *turn) *slog.Logger {
	return log.WithSession(e.logger, t.session.ID, t.session.WorkflowID, t.session.StepRef)
}

func (e *Engine) resolveModule(ctx context.Context, step *models.Step) (*models.Module, protocol.ModuleHandler, error) {
	module, err := e.store.Modules().GetByRefCode(ctx, step.ModuleRef)
	if err != nil {
		return nil, nil, fmt.Errorf("module %s for step %s: %w", step.ModuleRef, step.StepRef, err)
	}

	handler, err := e.registry.HandlerFor(module.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("step %s: %w", step.StepRef, err)
	}

	return module, handler, nil
}

func (e *Engine) gracefulEnd(t *turn, diagnostic string) {
	e.logger.Warn("Ending session on configuration error",
		"session_id", t.session.ID,
		"workflow_id", t.session.WorkflowID,
		"step_ref", t.session.StepRef,
		"diagnostic", diagnostic)

	e.endSession(t, diagnostic)
}

func (e *Engine) endSession(t *turn, diagnostic string) {
	if t.ended {
		return
	}

	now := time.Now().UTC()
	t.session.Status = models.SessionStatusCompleted
	t.session.CompletedAt = &now
	t.ended = true

	t.addEvent(&events.SessionEnded{
		BaseEvent:    t.baseEvent(events.SessionEndedEvent),
		ConversantID: t.session.ConversantID,
		WorkflowID:   t.session.WorkflowID,
		Diagnostic:   diagnostic,
	})
}

// commit persists the turn and, only then, publishes its events.
func (e *Engine) commit(ctx context.Context, t *turn) ([]Outbound, error) {
	t.session.LastActivityAt = time.Now().UTC()

	if err := e.store.CommitTurn(ctx, t.session, t.messages); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	t.addEvent(&events.SessionTurnCompleted{
		BaseEvent:    t.baseEvent(events.SessionTurnCompletedEvent),
		ConversantID: t.session.ConversantID,
		WorkflowID:   t.session.WorkflowID,
		StepRef:      t.session.StepRef,
		Category:     t.category,
		Outbound:     len(t.outbound),
	})

	for _, event := range t.events {
		e.publish(ctx, t.session.ConversantID, event)
	}

	return t.outbound, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// ExpireIdleSessions abandons active sessions idle for longer than idleFor.
// Sessions with an in-flight turn are skipped and picked up by the next sweep.
func (e *Engine) ExpireIdleSessions(ctx context.Context, idleFor time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idleFor)

	idle, err := e.store.Sessions().ListIdleSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	expired := 0

	for _, session := range idle {
		unlock, ok := e.locks.TryLock(session.ConversantID)
		if !ok {
			continue
		}

		err := e.expireSession(ctx, session)

		unlock()

		if err != nil {
			e.logger.Warn("Failed to expire session", "session_id", session.ID, "error", err)

			continue
		}

		expired++
	}

	return expired, nil
}

func (e *Engine) expireSession(ctx context.Context, session *models.Session) error {
	expired := session.Clone()

	now := time.Now().UTC()
	expired.Status = models.SessionStatusAbandoned
	expired.CompletedAt = &now

	if err := e.store.Sessions().Save(ctx, expired); err != nil {
		return err
	}

	e.publish(ctx, expired.ConversantID, &events.SessionExpired{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.SessionExpiredEvent,
			Timestamp: now,
			SessionID: expired.ID,
		},
		ConversantID:   expired.ConversantID,
		LastActivityAt: session.LastActivityAt,
	})

	return nil
}
