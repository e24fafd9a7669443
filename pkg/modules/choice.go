package modules

import (
	"context"
	"log/slog"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// ChoiceHandler presents the module's authored choices and resolves the reply
// to one of them. An unmatched reply keeps the session on the step.
type ChoiceHandler struct {
	templates *template.Engine
}

func NewChoiceHandler(templates *template.Engine) *ChoiceHandler {
	return &ChoiceHandler{templates: templates}
}

func (h *ChoiceHandler) Type() models.ModuleType {
	return models.ModuleTypeMultipleChoice
}

func (h *ChoiceHandler) Prompt(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{
		Text:    renderContent(h.templates, input),
		Choices: presentChoices(input.Module, input.Session.Locale),
	}, nil
}

func (h *ChoiceHandler) Handle(_ context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Outcome, error) {
	choices := presentChoices(input.Module, input.Session.Locale)

	choiceID, ok := matchChoice(input.Inbound, choices)
	if !ok {
		logger.Debug("Choice reply did not match any option",
			"step_ref", input.Step.StepRef, "inbound", input.Inbound)

		return protocol.Outcome{
			Advance: false,
			Reply:   renderContent(h.templates, input),
			Choices: choices,
		}, nil
	}

	return protocol.Outcome{
		Category: models.ChoiceCategory(choiceID),
		Advance:  true,
	}, nil
}

func (h *ChoiceHandler) Schema() map[string]any {
	return nil
}
