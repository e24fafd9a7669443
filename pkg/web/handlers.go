package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/converso/converso/pkg/engine"
	"github.com/converso/converso/pkg/services"
)

// APIHandlers binds the authoring services and the engine to HTTP routes.
type APIHandlers struct {
	modules   *services.ModuleService
	workflows *services.WorkflowService
	formats   *services.FormatService
	faqs      *services.FAQService
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(
	modules *services.ModuleService,
	workflows *services.WorkflowService,
	formats *services.FormatService,
	faqs *services.FAQService,
	eng *engine.Engine,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		modules:   modules,
		workflows: workflows,
		formats:   formats,
		faqs:      faqs,
		engine:    eng,
		validator: validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.modules.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Converso API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Converso API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Module endpoints.

func (h *APIHandlers) GetModules(c fiber.Ctx) error {
	modules, err := h.modules.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(modules)
}

func (h *APIHandlers) GetModuleSchemas(c fiber.Ctx) error {
	return c.JSON(h.modules.Schemas())
}

func (h *APIHandlers) GetModule(c fiber.Ctx) error {
	refCode := c.Params("refCode")
	if refCode == "" {
		return badRequest(c, "Module ref code is required")
	}

	module, err := h.modules.Get(c.Context(), refCode)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(module)
}

func (h *APIHandlers) CreateModule(c fiber.Ctx) error {
	var req ModuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.modules.Create(c.Context(), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateModule(c fiber.Ctx) error {
	refCode := c.Params("refCode")
	if refCode == "" {
		return badRequest(c, "Module ref code is required")
	}

	var req ModuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	req.RefCode = refCode

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.modules.Update(c.Context(), refCode, req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteModule(c fiber.Ctx) error {
	refCode := c.Params("refCode")
	if refCode == "" {
		return badRequest(c, "Module ref code is required")
	}

	if err := h.modules.Delete(c.Context(), refCode); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Validation format endpoints.

func (h *APIHandlers) GetFormats(c fiber.Ctx) error {
	formats, err := h.formats.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(formats)
}

func (h *APIHandlers) GetFormat(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return badRequest(c, "Format code is required")
	}

	format, err := h.formats.Get(c.Context(), code)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(format)
}

func (h *APIHandlers) SaveFormat(c fiber.Ctx) error {
	var req FormatRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if code := c.Params("code"); code != "" {
		req.FormatCode = code
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.formats.Save(c.Context(), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) DeleteFormat(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return badRequest(c, "Format code is required")
	}

	if err := h.formats.Delete(c.Context(), code); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Knowledge base endpoints.

func (h *APIHandlers) GetFAQs(c fiber.Ctx) error {
	faqs, err := h.faqs.ListActive(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(faqs)
}

func (h *APIHandlers) SaveFAQ(c fiber.Ctx) error {
	var req FAQRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.faqs.Save(c.Context(), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *APIHandlers) DeleteFAQ(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "FAQ ID is required")
	}

	if err := h.faqs.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
