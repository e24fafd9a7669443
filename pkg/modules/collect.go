package modules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
	"github.com/converso/converso/pkg/validation"
)

// CollectHandler asks for one value, validates it against the module's bound
// format, and stores the normalized value in the session bag. Failed
// validation keeps the session on the step and re-emits the prompt with the
// format's error message.
type CollectHandler struct {
	templates *template.Engine
	formats   *validation.Registry
}

func NewCollectHandler(templates *template.Engine, formats *validation.Registry) *CollectHandler {
	return &CollectHandler{templates: templates, formats: formats}
}

func (h *CollectHandler) Type() models.ModuleType {
	return models.ModuleTypeCollect
}

func (h *CollectHandler) Prompt(_ context.Context, input protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{Text: renderContent(h.templates, input)}, nil
}

func (h *CollectHandler) Handle(_ context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Outcome, error) {
	locale := input.Session.Locale

	result := validation.Result{Valid: true, Normalized: strings.TrimSpace(input.Inbound)}

	var err error

	if input.Module.ValidationFormatCode != "" {
		result, err = h.formats.Validate(input.Module.ValidationFormatCode, input.Inbound, locale)
	}

	if err != nil {
		// Unknown format is an authoring defect; refuse the value rather
		// than storing unvalidated input.
		logger.Error("Collect validation format unavailable",
			"format_code", input.Module.ValidationFormatCode, "error", err)

		result = validation.Result{
			Valid:        false,
			ErrorMessage: h.formats.ErrorMessageFor(input.Module.ValidationFormatCode, locale),
		}
	}

	if !result.Valid {
		errorText := result.ErrorMessage
		if custom := input.Module.CustomErrorMessage.Resolve(locale); custom != "" {
			errorText = custom
		}

		reply := errorText
		if prompt := renderContent(h.templates, input); prompt != "" {
			reply = errorText + "\n\n" + prompt
		}

		return protocol.Outcome{Advance: false, Reply: reply}, nil
	}

	return protocol.Outcome{
		Category: models.CategorySuccess,
		Advance:  true,
		VariableUpdates: map[string]string{
			h.variableName(input): result.Normalized,
		},
	}, nil
}

// variableName is the bag key the collected value lands under: the module's
// "variable" param, or the step ref when unset.
func (h *CollectHandler) variableName(input protocol.HandlerInput) string {
	if input.Module.Params != nil {
		if name, ok := input.Module.Params["variable"].(string); ok && name != "" {
			return name
		}
	}

	return input.Step.StepRef
}

func (h *CollectHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variable": map[string]any{"type": "string", "minLength": 1},
		},
		"additionalProperties": false,
	}
}
