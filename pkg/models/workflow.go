package models

import (
	"sort"
	"time"
)

// Workflow is a named graph of steps connected by outputs. At most one
// workflow is active across the catalog; new sessions always enter the active
// one.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,min=3"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"is_active"`
	Steps       []*Step   `json:"steps"`
	Outputs     []*Output `json:"outputs"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Step binds a module to a position in a workflow graph. StepRef is unique
// within the workflow and survives edits; traversal resolves refs by lookup,
// never by pointer.
type Step struct {
	StepRef      string    `json:"step_ref"   validate:"required,min=1"`
	StepName     string    `json:"step_name"  validate:"required,min=1"`
	ModuleRef    string    `json:"module_ref" validate:"required,min=1"`
	IsEntryPoint bool      `json:"is_entry_point"`
	OrderIndex   int       `json:"order_index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DestinationType discriminates where an output leads.
type DestinationType string

const (
	DestinationStep     DestinationType = "step"
	DestinationWorkflow DestinationType = "workflow"
	DestinationEnd      DestinationType = "end"
)

// IsValid reports whether d is a known destination type.
func (d DestinationType) IsValid() bool {
	switch d {
	case DestinationStep, DestinationWorkflow, DestinationEnd:
		return true
	default:
		return false
	}
}

// Output is a transition out of a step, keyed by the result category the
// step's module produced. DestinationRef holds a step ref, a workflow id, or
// nothing for end.
type Output struct {
	ID              string          `json:"id"`
	FromStepRef     string          `json:"from_step_ref"    validate:"required"`
	Category        Category        `json:"output_type"      validate:"required"`
	Label           string          `json:"output_label,omitempty"`
	DestinationType DestinationType `json:"destination_type" validate:"required"`
	DestinationRef  string          `json:"destination_ref,omitempty"`
	Priority        int             `json:"priority"`
	DelaySeconds    int             `json:"delay_seconds,omitempty" validate:"min=0"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StepByRef returns the step with the given ref.
func (w *Workflow) StepByRef(ref string) (*Step, bool) {
	for _, s := range w.Steps {
		if s.StepRef == ref {
			return s, true
		}
	}

	return nil, false
}

// EntryStep selects the step a new session starts at. Entry-flagged steps win,
// lowest order index first; without any flag the lowest order index in the
// workflow is used. Returns false for a workflow with no steps.
func (w *Workflow) EntryStep() (*Step, bool) {
	if len(w.Steps) == 0 {
		return nil, false
	}

	candidates := make([]*Step, 0, len(w.Steps))

	for _, s := range w.Steps {
		if s.IsEntryPoint {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		candidates = w.Steps
	}

	best := candidates[0]
	for _, s := range candidates[1:] {
		if s.OrderIndex < best.OrderIndex {
			best = s
		}
	}

	return best, true
}

// OutputFor selects the output for a (step, category) pair. When several
// outputs match, the lowest priority value wins; ties break on output id so
// selection stays deterministic.
func (w *Workflow) OutputFor(stepRef string, category Category) (*Output, bool) {
	matches := make([]*Output, 0, 2)

	for _, o := range w.Outputs {
		if o.FromStepRef == stepRef && o.Category == category {
			matches = append(matches, o)
		}
	}

	if len(matches) == 0 {
		return nil, false
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}

		return matches[i].ID < matches[j].ID
	})

	return matches[0], true
}

// OutputsFrom returns every output leaving the given step.
func (w *Workflow) OutputsFrom(stepRef string) []*Output {
	outputs := make([]*Output, 0)

	for _, o := range w.Outputs {
		if o.FromStepRef == stepRef {
			outputs = append(outputs, o)
		}
	}

	return outputs
}
