package modules

import (
	"context"
	"log/slog"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// MessageHandler renders a module's content and succeeds on any reply.
type MessageHandler struct {
	templates *template.Engine
}

func NewMessageHandler(templates *template.Engine) *MessageHandler {
	return &MessageHandler{templates: templates}
}

func (h *MessageHandler) Type() models.ModuleType {
	return models.ModuleTypeMessageText
}

func (h *MessageHandler) Prompt(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{Text: renderContent(h.templates, input)}, nil
}

func (h *MessageHandler) Handle(_ context.Context, _ protocol.HandlerInput, _ *slog.Logger) (protocol.Outcome, error) {
	return protocol.Outcome{Category: models.CategorySuccess, Advance: true}, nil
}

func (h *MessageHandler) Schema() map[string]any {
	return nil
}

// AutoMessageHandler renders content and advances in the same turn, without
// waiting for a reply.
type AutoMessageHandler struct {
	templates *template.Engine
}

func NewAutoMessageHandler(templates *template.Engine) *AutoMessageHandler {
	return &AutoMessageHandler{templates: templates}
}

func (h *AutoMessageHandler) Type() models.ModuleType {
	return models.ModuleTypeMessageTextAuto
}

func (h *AutoMessageHandler) Prompt(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{
		Text:        renderContent(h.templates, input),
		AutoExecute: true,
	}, nil
}

func (h *AutoMessageHandler) Handle(_ context.Context, _ protocol.HandlerInput, _ *slog.Logger) (protocol.Outcome, error) {
	return protocol.Outcome{Category: models.CategorySuccess, Advance: true}, nil
}

func (h *AutoMessageHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delay_seconds": map[string]any{"type": "integer", "minimum": 0},
		},
		"additionalProperties": false,
	}
}
