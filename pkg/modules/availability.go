package modules

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
)

// AvailabilityHandler asks the booking collaborator whether the slot collected
// in the session bag is free. It renders nothing itself; workflows route on
// the available/unavailable categories. Collaborator failures count as
// unavailable so the conversation keeps moving.
type AvailabilityHandler struct {
	checker protocol.AvailabilityChecker
}

func NewAvailabilityHandler(checker protocol.AvailabilityChecker) *AvailabilityHandler {
	return &AvailabilityHandler{checker: checker}
}

func (h *AvailabilityHandler) Type() models.ModuleType {
	return models.ModuleTypeAvailabilityCheck
}

func (h *AvailabilityHandler) Prompt(_ context.Context, _ protocol.HandlerInput, _ *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{AutoExecute: true}, nil
}

func (h *AvailabilityHandler) Handle(ctx context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Outcome, error) {
	vars := input.Session.Variables

	request := protocol.AvailabilityRequest{
		Branch:        vars[VarBranch],
		Date:          vars[VarDate],
		Time:          vars[VarTime],
		Participants:  bagInt(vars, VarParticipants),
		GameArea:      vars[VarGameArea],
		NumberOfGames: numberOfGames(vars),
	}

	result, err := h.checker.CheckAvailability(ctx, request)
	if err != nil {
		logger.Error("Availability lookup failed",
			"step_ref", input.Step.StepRef, "error", err)

		return protocol.Outcome{Category: models.CategoryUnavailable, Advance: true}, nil
	}

	if result.Available {
		return protocol.Outcome{Category: models.CategoryAvailable, Advance: true}, nil
	}

	return protocol.Outcome{
		Category:        models.CategoryUnavailable,
		Advance:         true,
		VariableUpdates: alternativeVariables(result.Alternatives, logger),
	}, nil
}

func (h *AvailabilityHandler) Schema() map[string]any {
	return nil
}

// alternativeVariables flattens the collaborator's suggestions into the
// session bag for the suggestions module to present.
func alternativeVariables(alternatives *protocol.Alternatives, logger *slog.Logger) map[string]string {
	if alternatives == nil {
		return nil
	}

	updates := make(map[string]string, 3)

	if alternatives.BeforeSlot != "" {
		updates[VarAltBeforeSlot] = alternatives.BeforeSlot
	}

	if alternatives.AfterSlot != "" {
		updates[VarAltAfterSlot] = alternatives.AfterSlot
	}

	if len(alternatives.SameTimeOtherDays) > 0 {
		encoded, err := json.Marshal(alternatives.SameTimeOtherDays)
		if err != nil {
			logger.Warn("Dropping undecodable day alternatives", "error", err)
		} else {
			updates[VarAltOtherDays] = string(encoded)
		}
	}

	return updates
}

func numberOfGames(vars map[string]string) int {
	if n := bagInt(vars, VarLaserGames); n > 0 {
		return n
	}

	return bagInt(vars, VarActiveGames)
}
