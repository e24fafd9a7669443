package protocol

import (
	"context"

	"github.com/converso/converso/pkg/models"
)

// NavigationTarget is one workflow the assistant may redirect the conversant
// into.
type NavigationTarget struct {
	WorkflowID  string `json:"workflow_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AssistantRequest is the full contract the engine depends on from the
// assistant service: prompt, model, temperature and history. The hard
// deadline travels in the context.
type AssistantRequest struct {
	SystemPrompt      string
	Model             string
	MaxTokens         int
	Temperature       float64
	History           []models.Message
	UserMessage       string
	NavigationTargets []NavigationTarget
}

// AssistantReply is the raw service response before the augmentation layer
// interprets it into an outcome.
type AssistantReply struct {
	// Text is the natural-language answer. Empty when the reply is a pure
	// navigation decision.
	Text string

	// NavigateWorkflowID is set when the assistant chose to redirect the
	// conversant into another workflow.
	NavigateWorkflowID string

	// Declined reports that the assistant explicitly defers to the module's
	// deterministic handling.
	Declined bool

	// Category optionally names the result category the assistant resolved
	// the turn to. Empty means the session stays on the current step.
	Category models.Category

	// VariableUpdates are values the assistant extracted from the exchange.
	VariableUpdates map[string]string
}

// AssistantClient calls the underlying model service. Implementations must
// honor context cancellation; the augmentation layer races every call
// against the module's configured timeout.
type AssistantClient interface {
	Complete(ctx context.Context, req AssistantRequest) (AssistantReply, error)
}
