// Package protocol defines the contracts between the engine, the module
// handlers, and the external collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/converso/converso/pkg/models"
)

// HandlerInput is everything a module handler may read for one turn. Handlers
// never mutate the session directly; variable updates travel back in the
// outcome so the engine can commit the turn atomically.
type HandlerInput struct {
	Session *models.Session
	Module  *models.Module
	Step    *models.Step
	Inbound string
}

// PresentedChoice is one selectable option rendered to the conversant. Value
// is the numeric shortcut the channel displays ("1", "2", ...).
type PresentedChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Prompt is what a step emits when the session enters it.
type Prompt struct {
	Text        string
	Choices     []PresentedChoice
	AutoExecute bool
}

// Outcome is the result of consuming one inbound event with a module's
// deterministic handler.
type Outcome struct {
	// Category keys the output lookup. Meaningless unless Advance is true.
	Category models.Category

	// Advance is false when the turn did not produce a valid result (failed
	// validation, unmatched choice): the session stays on the step and Reply
	// carries the re-prompt.
	Advance bool

	// Reply is outbound text produced by the handler itself, already
	// rendered. Empty for silent modules.
	Reply string

	// Choices accompany Reply when the handler re-presents options.
	Choices []PresentedChoice

	// VariableUpdates are merged into the session bag when the turn commits.
	VariableUpdates map[string]string

	// NavigateWorkflowID overrides output resolution for this turn: the
	// session re-enters the named workflow at its entry step.
	NavigateWorkflowID string
}

// ModuleHandler implements the deterministic behavior of one module type.
// Prompt renders what the conversant sees on entering a step bound to the
// module; Handle consumes the following inbound event.
type ModuleHandler interface {
	Type() models.ModuleType
	Prompt(ctx context.Context, input HandlerInput, logger *slog.Logger) (Prompt, error)
	Handle(ctx context.Context, input HandlerInput, logger *slog.Logger) (Outcome, error)

	// Schema returns the JSON schema the authoring layer validates module
	// params against. A nil schema means the module takes no params.
	Schema() map[string]any
}
