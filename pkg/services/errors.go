// Package services implements the authoring operations over the catalog:
// modules, workflows, validation formats, and the knowledge base. All graph
// invariants are enforced here, before anything reaches storage.
package services

import (
	"errors"

	"github.com/converso/converso/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownModuleType = errors.New("unknown module type")
	ErrTooManyChoices    = errors.New("module exceeds the choice limit")
	ErrUnknownFormat     = errors.New("validation format does not exist")
	ErrInvalidRegex      = errors.New("validation expression does not compile")

	ErrStepModuleMissing      = errors.New("step references a module that does not exist")
	ErrOutputStepMissing      = errors.New("output references a step that does not exist")
	ErrOutputDestinationMissing = errors.New("output destination does not resolve")
	ErrWorkflowHasNoSteps     = errors.New("workflow has no steps")
)

// Conflict errors (409 Conflict).
var (
	ErrDuplicateRefCode = persistence.ErrDuplicateRefCode
	ErrModuleReferenced = persistence.ErrModuleReferenced
	ErrFormatInUse      = errors.New("validation format is bound to a module")
)

// Not-found errors, re-exported so callers depend on one package.
var (
	ErrModuleNotFound   = persistence.ErrModuleNotFound
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	ErrFormatNotFound   = persistence.ErrFormatNotFound
	ErrSessionNotFound  = persistence.ErrSessionNotFound
	ErrNoActiveWorkflow = persistence.ErrNoActiveWorkflow
)

// IsValidationError reports whether the error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownModuleType) ||
		errors.Is(err, ErrTooManyChoices) ||
		errors.Is(err, ErrUnknownFormat) ||
		errors.Is(err, ErrInvalidRegex) ||
		errors.Is(err, ErrStepModuleMissing) ||
		errors.Is(err, ErrOutputStepMissing) ||
		errors.Is(err, ErrOutputDestinationMissing) ||
		errors.Is(err, ErrWorkflowHasNoSteps)
}

// IsConflictError reports whether the error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateRefCode) ||
		errors.Is(err, ErrModuleReferenced) ||
		errors.Is(err, ErrFormatInUse)
}

// IsNotFoundError reports whether the error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}
