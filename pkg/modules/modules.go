// Package modules implements the deterministic handler of every module type.
// The engine dispatches to these through the registry; assistant augmentation
// wraps them at a higher layer.
package modules

import (
	"strconv"
	"strings"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
)

// Well-known variable bag keys shared between handlers and the substitution
// engine's token aliases.
const (
	VarBranch        = "WELCOME"
	VarName          = "NAME"
	VarPhone         = "NUMBER"
	VarEmail         = "EMAIL"
	VarDate          = "DATE"
	VarTime          = "TIME"
	VarGameArea      = "RESERVATION1"
	VarParticipants  = "RESERVATION2"
	VarLaserGames    = "LASER_GAME_NUMBER"
	VarActiveGames   = "ACTIVE_TIME_GAME"
	VarAltBeforeSlot = "ALT_BEFORE_SLOT"
	VarAltAfterSlot  = "ALT_AFTER_SLOT"
	VarAltOtherDays  = "ALT_OTHER_DAYS"
)

// renderContent resolves the module's content for the session locale and
// substitutes variable tokens.
func renderContent(engine *template.Engine, input protocol.HandlerInput) string {
	text := input.Module.Content.Resolve(input.Session.Locale)

	return engine.Render(text, input.Session.Variables)
}

// presentChoices renders a module's authored choices with their numeric
// shortcuts.
func presentChoices(module *models.Module, locale models.Locale) []protocol.PresentedChoice {
	choices := make([]protocol.PresentedChoice, 0, len(module.Choices))

	for i, choice := range module.Choices {
		choices = append(choices, protocol.PresentedChoice{
			ID:    choice.ID,
			Label: choice.Label.Resolve(locale),
			Value: strconv.Itoa(i + 1),
		})
	}

	return choices
}

// matchChoice resolves a free-text inbound reply to one of the presented
// choices. The cascade goes from strict to fuzzy: choice id, exact label,
// numeric shortcut, substring containment, then character overlap. Returns
// false when nothing matches confidently.
func matchChoice(inbound string, choices []protocol.PresentedChoice) (string, bool) {
	input := strings.ToLower(strings.TrimSpace(inbound))
	if input == "" {
		return "", false
	}

	for _, choice := range choices {
		if input == strings.ToLower(choice.ID) {
			return choice.ID, true
		}
	}

	for _, choice := range choices {
		if input == strings.ToLower(strings.TrimSpace(choice.Label)) {
			return choice.ID, true
		}
	}

	if index, err := strconv.Atoi(input); err == nil {
		if index >= 1 && index <= len(choices) {
			return choices[index-1].ID, true
		}

		return "", false
	}

	if len([]rune(input)) >= 3 {
		for _, choice := range choices {
			label := strings.ToLower(choice.Label)
			if strings.Contains(label, input) || strings.Contains(input, label) {
				return choice.ID, true
			}
		}

		for _, choice := range choices {
			if runeOverlap(input, strings.ToLower(choice.Label)) > 0.5 {
				return choice.ID, true
			}
		}
	}

	return "", false
}

// runeOverlap is the Jaccard similarity of the two strings' rune sets.
func runeOverlap(a, b string) float64 {
	setA := runeSet(a)
	setB := runeSet(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0

	for r := range setA {
		if setB[r] {
			shared++
		}
	}

	union := len(setA) + len(setB) - shared

	return float64(shared) / float64(union)
}

func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))

	for _, r := range s {
		if r == ' ' {
			continue
		}

		set[r] = true
	}

	return set
}

// bagInt reads an integer variable, returning 0 when absent or malformed.
func bagInt(vars map[string]string, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(vars[key]))
	if err != nil {
		return 0
	}

	return n
}
