// Package validation implements the named input validators bound to collect
// modules.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/converso/converso/pkg/models"
)

// ErrUnknownFormat is returned when validating against a format code that is
// not registered.
var ErrUnknownFormat = errors.New("unknown validation format")

// genericErrorMessage is the last-resort reply when a format carries no error
// message for any locale. Validation still fails, it just fails politely.
const genericErrorMessage = "Invalid input, please try again."

// Result is the outcome of validating one raw input.
type Result struct {
	Valid        bool
	Normalized   string
	ErrorMessage string
}

// Registry holds compiled validation formats keyed by format code. It is safe
// for concurrent use; the authoring API replaces formats while sessions
// validate against them.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]*compiledFormat
}

type compiledFormat struct {
	format *models.ValidationFormat
	regex  *regexp.Regexp
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]*compiledFormat)}
}

// Register compiles and installs a format. Expressions are anchored: a format
// matches whole inputs only, partial matches fail.
func (r *Registry) Register(format *models.ValidationFormat) error {
	compiled := &compiledFormat{format: format}

	if format.Regex != "" {
		re, err := regexp.Compile(anchor(format.Regex))
		if err != nil {
			return fmt.Errorf("format %s: invalid expression: %w", format.FormatCode, err)
		}

		compiled.regex = re
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[format.FormatCode] = compiled

	return nil
}

// Remove uninstalls a format. Validating against it afterwards reports the
// format as unknown.
func (r *Registry) Remove(formatCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.formats, formatCode)
}

// Load replaces the registry content with the given formats, skipping
// inactive ones.
func (r *Registry) Load(formats []*models.ValidationFormat) error {
	fresh := make(map[string]*compiledFormat, len(formats))

	for _, format := range formats {
		if !format.Active {
			continue
		}

		compiled := &compiledFormat{format: format}

		if format.Regex != "" {
			re, err := regexp.Compile(anchor(format.Regex))
			if err != nil {
				return fmt.Errorf("format %s: invalid expression: %w", format.FormatCode, err)
			}

			compiled.regex = re
		}

		fresh[format.FormatCode] = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = fresh

	return nil
}

// Validate checks raw input against the named format. A format without an
// expression is a pass-through identity check. Inputs are trimmed before
// matching and the trimmed value is the normalized result.
func (r *Registry) Validate(formatCode, raw string, locale models.Locale) (Result, error) {
	r.mu.RLock()
	compiled, ok := r.formats[formatCode]
	r.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFormat, formatCode)
	}

	normalized := strings.TrimSpace(raw)

	if compiled.regex == nil || compiled.regex.MatchString(normalized) {
		return Result{Valid: true, Normalized: normalized}, nil
	}

	return Result{
		Valid:        false,
		ErrorMessage: errorMessage(compiled.format, locale),
	}, nil
}

// ErrorMessageFor resolves a format's localized error text, used by collect
// modules that override it with custom module-level messages first.
func (r *Registry) ErrorMessageFor(formatCode string, locale models.Locale) string {
	r.mu.RLock()
	compiled, ok := r.formats[formatCode]
	r.mu.RUnlock()

	if !ok {
		return genericErrorMessage
	}

	return errorMessage(compiled.format, locale)
}

func errorMessage(format *models.ValidationFormat, locale models.Locale) string {
	if msg := format.ErrorMessage.Resolve(locale); msg != "" {
		return msg
	}

	return genericErrorMessage
}

// anchor wraps an expression so it matches the whole input. Expressions that
// already carry both anchors are kept as written.
func anchor(expr string) string {
	if strings.HasPrefix(expr, "^") && strings.HasSuffix(expr, "$") {
		return expr
	}

	return "^(?:" + expr + ")$"
}
