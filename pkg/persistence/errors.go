// Package persistence abstracts durable storage for the conversation catalog
// and runtime sessions.
package persistence

import "errors"

var (
	ErrModuleNotFound   = errors.New("module not found")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrStepNotFound     = errors.New("step not found")
	ErrOutputNotFound   = errors.New("output not found")
	ErrFormatNotFound   = errors.New("validation format not found")
	ErrSessionNotFound  = errors.New("session not found")

	// ErrModuleReferenced is returned when deleting a module that steps
	// still point at.
	ErrModuleReferenced = errors.New("module is referenced by workflow steps")

	// ErrDuplicateRefCode is returned when saving a module whose ref code is
	// already taken by another module.
	ErrDuplicateRefCode = errors.New("module ref code already exists")

	// ErrNoActiveWorkflow is returned when a session starts and no workflow
	// is active.
	ErrNoActiveWorkflow = errors.New("no active workflow")
)

func IsModuleNotFound(err error) bool   { return errors.Is(err, ErrModuleNotFound) }
func IsWorkflowNotFound(err error) bool { return errors.Is(err, ErrWorkflowNotFound) }
func IsStepNotFound(err error) bool     { return errors.Is(err, ErrStepNotFound) }
func IsFormatNotFound(err error) bool   { return errors.Is(err, ErrFormatNotFound) }
func IsSessionNotFound(err error) bool  { return errors.Is(err, ErrSessionNotFound) }
func IsNotFound(err error) bool {
	return IsModuleNotFound(err) ||
		IsWorkflowNotFound(err) ||
		IsStepNotFound(err) ||
		errors.Is(err, ErrOutputNotFound) ||
		IsFormatNotFound(err) ||
		IsSessionNotFound(err)
}
