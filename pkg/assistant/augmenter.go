// Package assistant bounds the natural-language augmentation of a module
// behind a hard deadline. The engine consumes its outcomes; anything other
// than Handled means the deterministic handler runs instead.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/protocol"
)

// OutcomeKind classifies how an augmentation attempt ended.
type OutcomeKind string

const (
	OutcomeHandled  OutcomeKind = "handled"
	OutcomeDeclined OutcomeKind = "declined"
	OutcomeTimedOut OutcomeKind = "timed_out"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the result of one bounded augmentation attempt. Only Handled
// carries payload; every other kind routes the turn to the deterministic
// handler.
type Outcome struct {
	Kind               OutcomeKind
	Text               string
	Category           models.Category
	VariableUpdates    map[string]string
	NavigateWorkflowID string
	Reason             string
}

// Augmenter wraps assistant calls with the module's timeout and assembles the
// prompt context (FAQ knowledge base, transcript history, navigation targets).
type Augmenter struct {
	client    protocol.AssistantClient
	faqs      persistence.FAQRepository
	messages  persistence.MessageRepository
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewAugmenter(
	client protocol.AssistantClient,
	faqs persistence.FAQRepository,
	messages persistence.MessageRepository,
	workflows persistence.WorkflowRepository,
	logger *slog.Logger,
) *Augmenter {
	return &Augmenter{
		client:    client,
		faqs:      faqs,
		messages:  messages,
		workflows: workflows,
		logger:    logger,
	}
}

// historyLimit caps how much transcript is replayed into the prompt.
const historyLimit = 20

// Augment runs one bounded assistant call for the module. It returns the
// instant the module's deadline elapses; a response that arrives later is
// discarded.
func (a *Augmenter) Augment(ctx context.Context, session *models.Session, module *models.Module, inbound string) Outcome {
	config := module.Assistant
	if config == nil {
		// clara_llm modules may rely entirely on defaults.
		config = &models.AssistantConfig{}
	}

	timeout := config.Timeout()

	request, err := a.buildRequest(ctx, session, config, inbound)
	if err != nil {
		a.logger.Warn("Assistant context assembly failed, falling back",
			"session_id", session.ID, "module", module.RefCode, "error", err)

		return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type callResult struct {
		reply protocol.AssistantReply
		err   error
	}

	// Buffered so a late completion never leaks the goroutine.
	results := make(chan callResult, 1)

	go func() {
		reply, err := a.client.Complete(callCtx, request)
		results <- callResult{reply: reply, err: err}
	}()

	select {
	case <-callCtx.Done():
		a.logger.Warn("Assistant call exceeded deadline",
			"session_id", session.ID, "module", module.RefCode, "timeout", timeout)

		return Outcome{Kind: OutcomeTimedOut}
	case result := <-results:
		if result.err != nil {
			if errors.Is(result.err, context.DeadlineExceeded) {
				return Outcome{Kind: OutcomeTimedOut}
			}

			a.logger.Warn("Assistant call failed",
				"session_id", session.ID, "module", module.RefCode, "error", result.err)

			return Outcome{Kind: OutcomeFailed, Reason: result.err.Error()}
		}

		return a.interpret(module, config, result.reply)
	}
}

func (a *Augmenter) interpret(module *models.Module, config *models.AssistantConfig, reply protocol.AssistantReply) Outcome {
	if reply.Declined {
		return Outcome{Kind: OutcomeDeclined}
	}

	if reply.NavigateWorkflowID != "" && !config.EnableWorkflowNavigation {
		a.logger.Warn("Assistant navigation suppressed, module does not allow it",
			"module", module.RefCode, "workflow_id", reply.NavigateWorkflowID)
		reply.NavigateWorkflowID = ""
	}

	return Outcome{
		Kind:               OutcomeHandled,
		Text:               reply.Text,
		Category:           reply.Category,
		VariableUpdates:    reply.VariableUpdates,
		NavigateWorkflowID: reply.NavigateWorkflowID,
	}
}

func (a *Augmenter) buildRequest(ctx context.Context, session *models.Session, config *models.AssistantConfig, inbound string) (protocol.AssistantRequest, error) {
	request := protocol.AssistantRequest{
		SystemPrompt: config.SystemPrompt,
		Model:        config.Model,
		MaxTokens:    config.MaxTokens,
		Temperature:  config.Temperature,
		UserMessage:  inbound,
	}

	if config.UseFAQContext {
		faqContext, err := a.faqContext(ctx, session.Locale)
		if err != nil {
			return protocol.AssistantRequest{}, err
		}

		if faqContext != "" {
			request.SystemPrompt = strings.TrimSpace(request.SystemPrompt + "\n\n" + faqContext)
		}
	}

	history, err := a.messages.ListBySession(ctx, session.ID)
	if err != nil {
		return protocol.AssistantRequest{}, fmt.Errorf("load transcript: %w", err)
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	for _, message := range history {
		request.History = append(request.History, *message)
	}

	if config.EnableWorkflowNavigation {
		targets, err := a.navigationTargets(ctx, config.AvailableWorkflows)
		if err != nil {
			return protocol.AssistantRequest{}, err
		}

		request.NavigationTargets = targets
	}

	return request, nil
}

// faqContext renders the active knowledge base as a question/answer block for
// the system prompt.
func (a *Augmenter) faqContext(ctx context.Context, locale models.Locale) (string, error) {
	faqs, err := a.faqs.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("load faq context: %w", err)
	}

	if len(faqs) == 0 {
		return "", nil
	}

	var b strings.Builder

	b.WriteString("Knowledge base:\n")

	for _, faq := range faqs {
		b.WriteString("Q: ")
		b.WriteString(faq.Question.Resolve(locale))
		b.WriteString("\nA: ")
		b.WriteString(faq.Answer.Resolve(locale))
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (a *Augmenter) navigationTargets(ctx context.Context, allowed []string) ([]protocol.NavigationTarget, error) {
	workflows, err := a.workflows.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load navigation targets: %w", err)
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	targets := make([]protocol.NavigationTarget, 0, len(workflows))

	for _, workflow := range workflows {
		if len(allowed) > 0 && !allowedSet[workflow.ID] {
			continue
		}

		targets = append(targets, protocol.NavigationTarget{
			WorkflowID:  workflow.ID,
			Name:        workflow.Name,
			Description: workflow.Description,
		})
	}

	return targets, nil
}
