package models

// Category is a module-produced result category. Outputs are keyed by the
// category a step's module emitted for the turn.
type Category string

const (
	CategorySuccess     Category = "success"
	CategoryFailure     Category = "failure"
	CategoryAuto        Category = "auto"
	CategoryAvailable   Category = "available"
	CategoryUnavailable Category = "unavailable"
	CategoryTimeChanged Category = "time_changed"
	CategoryDateChanged Category = "date_changed"
	CategoryOtherDate   Category = "other_date"

	// CategoryAssistantDefault is emitted when an assistant-led module falls
	// back to its deterministic rendering.
	CategoryAssistantDefault Category = "clara_default"
)

// ChoiceCategoryPrefix builds categories of the form "choice_<id>".
const ChoiceCategoryPrefix = "choice_"

// ChoiceCategory returns the result category for a selected choice.
func ChoiceCategory(choiceID string) Category {
	return Category(ChoiceCategoryPrefix + choiceID)
}
