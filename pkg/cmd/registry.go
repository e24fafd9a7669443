// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/converso/converso/pkg/modules"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/registry"
	"github.com/converso/converso/pkg/template"
	"github.com/converso/converso/pkg/validation"
)

// NewRegistry registers every module handler with its collaborators and
// loads the validation formats from storage.
func NewRegistry(
	ctx context.Context,
	logger *slog.Logger,
	store persistence.Persistence,
	checker protocol.AvailabilityChecker,
	orders protocol.OrderCreator,
) (*registry.Registry, *validation.Registry, error) {
	templates := template.NewDefaultEngine(logger)

	formats := validation.NewRegistry()

	stored, err := store.Formats().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load validation formats: %w", err)
	}

	if err := formats.Load(stored); err != nil {
		return nil, nil, fmt.Errorf("compile validation formats: %w", err)
	}

	reg := registry.NewRegistry(logger)
	reg.Register(modules.NewMessageHandler(templates))
	reg.Register(modules.NewAutoMessageHandler(templates))
	reg.Register(modules.NewCollectHandler(templates, formats))
	reg.Register(modules.NewChoiceHandler(templates))
	reg.Register(modules.NewAssistantHandler(templates))
	reg.Register(modules.NewAvailabilityHandler(checker))
	reg.Register(modules.NewSuggestionsHandler(templates))
	reg.Register(modules.NewOrderHandler(templates, orders))

	return reg, formats, nil
}
