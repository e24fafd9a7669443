// Package main provides the Converso authoring API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/converso/converso/pkg/assistant"
	"github.com/converso/converso/pkg/engine"
	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/registry"
	"github.com/converso/converso/pkg/services"
	"github.com/converso/converso/pkg/validation"
	"github.com/converso/converso/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	formats     *validation.Registry
	eventBus    eventbus.EventBus
	augmenter   *assistant.Augmenter
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	formats *validation.Registry,
	eventBus eventbus.EventBus,
	augmenter *assistant.Augmenter,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		formats:     formats,
		eventBus:    eventBus,
		augmenter:   augmenter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.New(engine.Config{
		Persistence: a.persistence,
		Registry:    a.registry,
		Augmenter:   a.augmenter,
		Publisher:   a.eventBus,
		Logger:      a.logger,
	})

	handlers := web.NewAPIHandlers(
		services.NewModuleService(a.logger, a.persistence, a.registry),
		services.NewWorkflowService(a.logger, a.persistence, a.eventBus),
		services.NewFormatService(a.logger, a.persistence, a.formats, a.eventBus),
		services.NewFAQService(a.logger, a.persistence),
		eng,
		a.validate,
	)

	return web.NewApp(handlers)
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
