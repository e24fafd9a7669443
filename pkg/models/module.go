package models

import "time"

// ModuleType identifies the behavior of a conversation module. The set is
// closed: the engine dispatches each type to a dedicated handler through the
// registry and never branches on raw strings.
type ModuleType string

const (
	ModuleTypeMessageText             ModuleType = "message_text"
	ModuleTypeMessageTextAuto         ModuleType = "message_text_auto"
	ModuleTypeCollect                 ModuleType = "collect"
	ModuleTypeMultipleChoice          ModuleType = "choix_multiples"
	ModuleTypeAssistant               ModuleType = "clara_llm"
	ModuleTypeAvailabilityCheck       ModuleType = "availability_check"
	ModuleTypeAvailabilitySuggestions ModuleType = "availability_suggestions"
	ModuleTypeOrderGeneration         ModuleType = "order_generation"
)

// ModuleTypes lists every known module type.
var ModuleTypes = []ModuleType{
	ModuleTypeMessageText,
	ModuleTypeMessageTextAuto,
	ModuleTypeCollect,
	ModuleTypeMultipleChoice,
	ModuleTypeAssistant,
	ModuleTypeAvailabilityCheck,
	ModuleTypeAvailabilitySuggestions,
	ModuleTypeOrderGeneration,
}

// IsValid reports whether t is a known module type.
func (t ModuleType) IsValid() bool {
	for _, known := range ModuleTypes {
		if t == known {
			return true
		}
	}

	return false
}

// AutoExecutes reports whether modules of this type run without waiting for an
// inbound reply. The engine chains through them in the same turn.
func (t ModuleType) AutoExecutes() bool {
	switch t {
	case ModuleTypeMessageTextAuto, ModuleTypeAvailabilityCheck, ModuleTypeOrderGeneration:
		return true
	default:
		return false
	}
}

// MaxChoices bounds the selectable options of a multiple-choice module. The
// presentation channel cannot render more than three buttons.
const MaxChoices = 3

// Choice is one selectable option of a multiple-choice module.
type Choice struct {
	ID    string           `json:"id"    validate:"required"`
	Label MultilingualText `json:"label" validate:"required"`
}

// DefaultAssistantTimeout bounds an augmentation call when the module does not
// configure its own timeout.
const DefaultAssistantTimeout = 5000 * time.Millisecond

// AssistantConfig configures the optional natural-language augmentation of a
// module. The assistant is best effort: on timeout or failure the module's
// deterministic handler runs instead.
type AssistantConfig struct {
	Enabled                  bool     `json:"enabled"`
	SystemPrompt             string   `json:"system_prompt,omitempty"`
	Model                    string   `json:"model,omitempty"`
	MaxTokens                int      `json:"max_tokens,omitempty"  validate:"omitempty,min=1"`
	Temperature              float64  `json:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	TimeoutMS                int      `json:"timeout_ms,omitempty"  validate:"omitempty,min=100"`
	UseFAQContext            bool     `json:"use_faq_context,omitempty"`
	EnableWorkflowNavigation bool     `json:"enable_workflow_navigation,omitempty"`
	AvailableWorkflows       []string `json:"available_workflows,omitempty"`
}

// Timeout returns the configured augmentation deadline.
func (c *AssistantConfig) Timeout() time.Duration {
	if c == nil || c.TimeoutMS <= 0 {
		return DefaultAssistantTimeout
	}

	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Module is a reusable, typed conversation unit: what to say or ask, and how
// to interpret the reply. Steps reference modules by RefCode, which is
// immutable once referenced.
type Module struct {
	ID                   string           `json:"id"`
	RefCode              string           `json:"ref_code"    validate:"required,min=2"`
	Name                 string           `json:"name"        validate:"required,min=2"`
	Type                 ModuleType       `json:"module_type" validate:"required"`
	Content              MultilingualText `json:"content"`
	Params               map[string]any   `json:"params,omitempty"`
	ValidationFormatCode string           `json:"validation_format_code,omitempty"`
	CustomErrorMessage   MultilingualText `json:"custom_error_message,omitempty"`
	Choices              []Choice         `json:"choices,omitempty" validate:"max=3,dive"`
	Assistant            *AssistantConfig `json:"assistant,omitempty"`
	SuccessMessage       MultilingualText `json:"success_message,omitempty"`
	FailureMessage       MultilingualText `json:"failure_message,omitempty"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
	Category             string           `json:"category,omitempty"`
	Active               bool             `json:"is_active"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// AssistantEnabled reports whether augmentation applies to this module.
func (m *Module) AssistantEnabled() bool {
	return m.Type == ModuleTypeAssistant || (m.Assistant != nil && m.Assistant.Enabled)
}

// ChoiceByID returns the choice with the given id.
func (m *Module) ChoiceByID(id string) (Choice, bool) {
	for _, c := range m.Choices {
		if c.ID == id {
			return c, true
		}
	}

	return Choice{}, false
}
