package models

import "time"

// ValidationFormat is a named input validator used by collect modules. A
// format without an expression is a pass-through whose semantics are enforced
// elsewhere.
type ValidationFormat struct {
	ID           string           `json:"id"`
	FormatCode   string           `json:"format_code" validate:"required,min=2"`
	FormatName   string           `json:"format_name" validate:"required"`
	Regex        string           `json:"validation_regex,omitempty"`
	ErrorMessage MultilingualText `json:"error_message"`
	Description  string           `json:"description,omitempty"`
	Active       bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// FAQ is one knowledge-base entry fed to the assistant prompt when a module
// enables FAQ context.
type FAQ struct {
	ID         string           `json:"id"`
	Category   string           `json:"category"`
	Question   MultilingualText `json:"question" validate:"required"`
	Answer     MultilingualText `json:"answer"   validate:"required"`
	OrderIndex int              `json:"order_index"`
	Active     bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
