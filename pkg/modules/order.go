package modules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// OrderHandler creates an order from the collected conversation data and
// publishes the payment link into the session bag. It auto-executes: the
// conversant sees the module's success or failure message, never an
// intermediate prompt.
type OrderHandler struct {
	templates *template.Engine
	orders    protocol.OrderCreator
}

func NewOrderHandler(templates *template.Engine, orders protocol.OrderCreator) *OrderHandler {
	return &OrderHandler{templates: templates, orders: orders}
}

func (h *OrderHandler) Type() models.ModuleType {
	return models.ModuleTypeOrderGeneration
}

func (h *OrderHandler) Prompt(_ context.Context, _ protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{AutoExecute: true}, nil
}

func (h *OrderHandler) Handle(ctx context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Outcome, error) {
	vars := input.Session.Variables
	locale := input.Session.Locale

	firstName, lastName := splitName(vars[VarName])

	request := protocol.OrderRequest{
		Branch:        vars[VarBranch],
		FirstName:     firstName,
		LastName:      lastName,
		Phone:         vars[VarPhone],
		Email:         vars[VarEmail],
		Date:          vars[VarDate],
		Time:          vars[VarTime],
		Participants:  bagInt(vars, VarParticipants),
		GameArea:      vars[VarGameArea],
		NumberOfGames: numberOfGames(vars),
	}

	result, err := h.orders.CreateOrder(ctx, request)
	if err != nil {
		logger.Error("Order creation failed",
			"step_ref", input.Step.StepRef, "error", err)

		return protocol.Outcome{
			Category: models.CategoryFailure,
			Advance:  true,
			Reply:    h.render(input.Module.FailureMessage, locale, vars),
		}, nil
	}

	updates := map[string]string{
		template.VarOrderURL:       result.URL,
		template.VarOrderReference: result.Reference,
	}

	// The success message typically carries @order tokens, so render it
	// against the bag including the fresh order variables.
	merged := make(map[string]string, len(vars)+len(updates))
	for k, v := range vars {
		merged[k] = v
	}

	for k, v := range updates {
		merged[k] = v
	}

	return protocol.Outcome{
		Category:        models.CategorySuccess,
		Advance:         true,
		Reply:           h.render(input.Module.SuccessMessage, locale, merged),
		VariableUpdates: updates,
	}, nil
}

func (h *OrderHandler) render(text models.MultilingualText, locale models.Locale, vars map[string]string) string {
	return h.templates.Render(text.Resolve(locale), vars)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}

	return parts[0], strings.Join(parts[1:], " ")
}

func (h *OrderHandler) Schema() map[string]any {
	return nil
}
