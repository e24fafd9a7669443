package modules

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// Choice ids the suggestions module builds at runtime.
const (
	suggestionBefore    = "before_slot"
	suggestionAfter     = "after_slot"
	suggestionOtherDay  = "other_day"
	suggestionOtherDate = "other_date"
)

// SuggestionsHandler presents the alternatives an unavailable slot produced.
// Its choices are derived from the session bag rather than authored: adjacent
// times first, then the first day offering the same time, then a generic
// "another date" escape. Selecting a suggestion rewrites the slot variables
// so the workflow can loop back into a fresh availability check.
type SuggestionsHandler struct {
	templates *template.Engine
}

func NewSuggestionsHandler(templates *template.Engine) *SuggestionsHandler {
	return &SuggestionsHandler{templates: templates}
}

func (h *SuggestionsHandler) Type() models.ModuleType {
	return models.ModuleTypeAvailabilitySuggestions
}

func (h *SuggestionsHandler) Prompt(_ context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Prompt, error) {
	return protocol.Prompt{
		Text:    renderContent(h.templates, input),
		Choices: h.buildChoices(input, logger),
	}, nil
}

func (h *SuggestionsHandler) Handle(_ context.Context, input protocol.HandlerInput, logger *slog.Logger) (protocol.Outcome, error) {
	choices := h.buildChoices(input, logger)

	choiceID, ok := matchChoice(input.Inbound, choices)
	if !ok {
		return protocol.Outcome{
			Advance: false,
			Reply:   renderContent(h.templates, input),
			Choices: choices,
		}, nil
	}

	vars := input.Session.Variables

	switch choiceID {
	case suggestionBefore:
		return protocol.Outcome{
			Category:        models.CategoryTimeChanged,
			Advance:         true,
			VariableUpdates: map[string]string{VarTime: vars[VarAltBeforeSlot]},
		}, nil
	case suggestionAfter:
		return protocol.Outcome{
			Category:        models.CategoryTimeChanged,
			Advance:         true,
			VariableUpdates: map[string]string{VarTime: vars[VarAltAfterSlot]},
		}, nil
	case suggestionOtherDay:
		days := decodeDays(vars[VarAltOtherDays], logger)
		if len(days) == 0 {
			return protocol.Outcome{Category: models.CategoryOtherDate, Advance: true}, nil
		}

		return protocol.Outcome{
			Category:        models.CategoryDateChanged,
			Advance:         true,
			VariableUpdates: map[string]string{VarDate: days[0].Date},
		}, nil
	default:
		return protocol.Outcome{Category: models.CategoryOtherDate, Advance: true}, nil
	}
}

func (h *SuggestionsHandler) buildChoices(input protocol.HandlerInput, logger *slog.Logger) []protocol.PresentedChoice {
	vars := input.Session.Variables
	choices := make([]protocol.PresentedChoice, 0, models.MaxChoices)

	if slot := vars[VarAltBeforeSlot]; slot != "" {
		choices = append(choices, protocol.PresentedChoice{ID: suggestionBefore, Label: slot})
	}

	if slot := vars[VarAltAfterSlot]; slot != "" && len(choices) < models.MaxChoices {
		choices = append(choices, protocol.PresentedChoice{ID: suggestionAfter, Label: slot})
	}

	if len(choices) < models.MaxChoices {
		if days := decodeDays(vars[VarAltOtherDays], logger); len(days) > 0 {
			label := days[0].DayName
			if label == "" {
				label = days[0].Date
			}

			choices = append(choices, protocol.PresentedChoice{ID: suggestionOtherDay, Label: label})
		}
	}

	if len(choices) < models.MaxChoices {
		choices = append(choices, protocol.PresentedChoice{
			ID:    suggestionOtherDate,
			Label: otherDateLabel(input.Session.Locale),
		})
	}

	for i := range choices {
		choices[i].Value = strconv.Itoa(i + 1)
	}

	return choices
}

func decodeDays(encoded string, logger *slog.Logger) []protocol.DaySlot {
	if encoded == "" {
		return nil
	}

	var days []protocol.DaySlot

	if err := json.Unmarshal([]byte(encoded), &days); err != nil {
		logger.Warn("Ignoring malformed day alternatives in session bag", "error", err)

		return nil
	}

	return days
}

func otherDateLabel(locale models.Locale) string {
	labels := models.MultilingualText{
		models.LocaleFrench:  "Une autre date",
		models.LocaleEnglish: "Another date",
		models.LocaleHebrew:  "תאריך אחר",
	}

	return labels.Resolve(locale)
}

func (h *SuggestionsHandler) Schema() map[string]any {
	return nil
}
