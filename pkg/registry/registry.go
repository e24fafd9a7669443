// Package registry dispatches module types to their handlers.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
)

// Registry maps module types to the handlers that interpret them. The set of
// handlers is fixed at startup; the engine never branches on type strings
// itself.
type Registry struct {
	logger   *slog.Logger
	handlers map[models.ModuleType]protocol.ModuleHandler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[models.ModuleType]protocol.ModuleHandler),
	}
}

// Register adds a handler for its declared module type, replacing any previous
// registration.
func (r *Registry) Register(handler protocol.ModuleHandler) {
	r.handlers[handler.Type()] = handler
	r.logger.Debug("Registered module handler", "module_type", handler.Type())
}

// HandlerFor returns the handler for the given module type.
func (r *Registry) HandlerFor(moduleType models.ModuleType) (protocol.ModuleHandler, error) {
	handler, ok := r.handlers[moduleType]
	if !ok {
		return nil, fmt.Errorf("module type '%s' not registered", moduleType)
	}

	return handler, nil
}

// Types lists the registered module types.
func (r *Registry) Types() []models.ModuleType {
	types := make([]models.ModuleType, 0, len(r.handlers))
	for moduleType := range r.handlers {
		types = append(types, moduleType)
	}

	return types
}

// Schemas returns the parameter schema of every registered handler, keyed by
// module type, for the authoring API to expose.
func (r *Registry) Schemas() map[models.ModuleType]map[string]any {
	schemas := make(map[models.ModuleType]map[string]any, len(r.handlers))

	for moduleType, handler := range r.handlers {
		if schema := handler.Schema(); schema != nil {
			schemas[moduleType] = schema
		}
	}

	return schemas
}

// ValidateParams checks a module's params against its handler's JSON schema.
// Handlers without a schema accept any params.
func (r *Registry) ValidateParams(module *models.Module) error {
	handler, err := r.HandlerFor(module.Type)
	if err != nil {
		return err
	}

	schema := handler.Schema()
	if schema == nil {
		return nil
	}

	params := module.Params
	if params == nil {
		params = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	paramsLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, paramsLoader)
	if err != nil {
		return fmt.Errorf("validate module params: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("module '%s' params invalid: %s",
			module.RefCode, strings.Join(details, "; "))
	}

	return nil
}
