package modules

import (
	"context"
	"log/slog"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// AssistantHandler is the deterministic floor under assistant-led modules.
// The augmentation layer normally answers these turns; when it declines,
// times out, or fails, this handler renders the module's content like a plain
// message and emits the fallback category.
type AssistantHandler struct {
	templates *template.Engine
}

func NewAssistantHandler(templates *template.Engine) *AssistantHandler {
	return &AssistantHandler{templates: templates}
}

func (h *AssistantHandler) Type() models.ModuleType {
	return models.ModuleTypeAssistant
}

func (h *AssistantHandler) Prompt(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{Text: renderContent(h.templates, input)}, nil
}

func (h *AssistantHandler) Handle(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Outcome, error) {
	return protocol.Outcome{
		Category: models.CategoryAssistantDefault,
		Advance:  true,
		Reply:    renderContent(h.templates, input),
	}, nil
}

func (h *AssistantHandler) Schema() map[string]any {
	return nil
}
