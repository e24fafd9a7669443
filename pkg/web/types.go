// Package web provides the HTTP authoring and conversation API.
package web

import (
	"github.com/converso/converso/pkg/models"
)

// ModuleRequest is the request body for creating or replacing a module.
type ModuleRequest struct {
	RefCode              string                  `json:"ref_code"    validate:"required,min=2"`
	Name                 string                  `json:"name"        validate:"required,min=2"`
	Type                 models.ModuleType       `json:"module_type" validate:"required"`
	Content              models.MultilingualText `json:"content"`
	Params               map[string]any          `json:"params,omitempty"`
	ValidationFormatCode string                  `json:"validation_format_code,omitempty"`
	CustomErrorMessage   models.MultilingualText `json:"custom_error_message,omitempty"`
	Choices              []models.Choice         `json:"choices,omitempty"`
	Assistant            *models.AssistantConfig `json:"assistant,omitempty"`
	SuccessMessage       models.MultilingualText `json:"success_message,omitempty"`
	FailureMessage       models.MultilingualText `json:"failure_message,omitempty"`
	Metadata             map[string]any          `json:"metadata,omitempty"`
	Category             string                  `json:"category,omitempty"`
	Active               bool                    `json:"is_active"`
}

func (r ModuleRequest) toModel() *models.Module {
	return &models.Module{
		RefCode:              r.RefCode,
		Name:                 r.Name,
		Type:                 r.Type,
		Content:              r.Content,
		Params:               r.Params,
		ValidationFormatCode: r.ValidationFormatCode,
		CustomErrorMessage:   r.CustomErrorMessage,
		Choices:              r.Choices,
		Assistant:            r.Assistant,
		SuccessMessage:       r.SuccessMessage,
		FailureMessage:       r.FailureMessage,
		Metadata:             r.Metadata,
		Category:             r.Category,
		Active:               r.Active,
	}
}

// CreateWorkflowRequest creates a workflow shell; steps and outputs are
// managed through their own endpoints.
type CreateWorkflowRequest struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description,omitempty"`
}

// UpdateWorkflowRequest supports partial updates of workflow metadata.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
}

// StepRequest is the request body for creating or replacing a workflow step.
type StepRequest struct {
	StepRef      string `json:"step_ref"   validate:"required,min=1"`
	StepName     string `json:"step_name"  validate:"required,min=1"`
	ModuleRef    string `json:"module_ref" validate:"required,min=1"`
	IsEntryPoint bool   `json:"is_entry_point"`
	OrderIndex   int    `json:"order_index"`
}

// UpdateStepRequest supports partial updates of a step.
type UpdateStepRequest struct {
	StepName     *string `json:"step_name,omitempty"  validate:"omitempty,min=1"`
	ModuleRef    *string `json:"module_ref,omitempty" validate:"omitempty,min=1"`
	IsEntryPoint *bool   `json:"is_entry_point,omitempty"`
	OrderIndex   *int    `json:"order_index,omitempty"`
}

// OutputRequest is the request body for adding an output to a workflow.
type OutputRequest struct {
	FromStepRef     string                 `json:"from_step_ref"    validate:"required"`
	Category        models.Category        `json:"output_type"      validate:"required"`
	Label           string                 `json:"output_label,omitempty"`
	DestinationType models.DestinationType `json:"destination_type" validate:"required"`
	DestinationRef  string                 `json:"destination_ref,omitempty"`
	Priority        int                    `json:"priority"`
	DelaySeconds    int                    `json:"delay_seconds,omitempty" validate:"min=0"`
}

// FormatRequest is the request body for creating or replacing a validation
// format.
type FormatRequest struct {
	FormatCode   string                  `json:"format_code" validate:"required,min=2"`
	FormatName   string                  `json:"format_name" validate:"required"`
	Regex        string                  `json:"validation_regex,omitempty"`
	ErrorMessage models.MultilingualText `json:"error_message"`
	Description  string                  `json:"description,omitempty"`
	Active       bool                    `json:"is_active"`
}

func (r FormatRequest) toModel() *models.ValidationFormat {
	return &models.ValidationFormat{
		FormatCode:   r.FormatCode,
		FormatName:   r.FormatName,
		Regex:        r.Regex,
		ErrorMessage: r.ErrorMessage,
		Description:  r.Description,
		Active:       r.Active,
	}
}

// FAQRequest is the request body for creating or replacing a knowledge-base
// entry.
type FAQRequest struct {
	ID         string                  `json:"id,omitempty"`
	Category   string                  `json:"category,omitempty"`
	Question   models.MultilingualText `json:"question" validate:"required"`
	Answer     models.MultilingualText `json:"answer"   validate:"required"`
	OrderIndex int                     `json:"order_index"`
	Active     bool                    `json:"is_active"`
}

func (r FAQRequest) toModel() *models.FAQ {
	return &models.FAQ{
		ID:         r.ID,
		Category:   r.Category,
		Question:   r.Question,
		Answer:     r.Answer,
		OrderIndex: r.OrderIndex,
		Active:     r.Active,
	}
}

// InboundMessageRequest is one conversant message entering the engine over
// HTTP.
type InboundMessageRequest struct {
	Text    string        `json:"text"`
	Channel string        `json:"channel,omitempty"`
	Locale  models.Locale `json:"locale,omitempty"`
}

// OutboundMessage is one reply of the resulting turn.
type OutboundMessage struct {
	Text         string            `json:"text"`
	Choices      []OutboundChoice  `json:"choices,omitempty"`
	DelaySeconds int               `json:"delay_seconds,omitempty"`
}

// OutboundChoice is one selectable option rendered with a reply.
type OutboundChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ConversationResponse wraps the outbound messages of one turn.
type ConversationResponse struct {
	Messages []OutboundMessage `json:"messages"`
}
