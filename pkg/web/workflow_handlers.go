package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/converso/converso/pkg/models"
)

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflows.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflows.Save(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Steps:       []*models.Step{},
		Outputs:     []*models.Output{},
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflows.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	updated, err := h.workflows.Save(c.Context(), existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflows.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflows.Activate(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	workflow, err := h.workflows.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// Step endpoints. Steps live inside their workflow's graph; every mutation
// round-trips through the workflow service so graph validation always runs.

func (h *APIHandlers) GetWorkflowSteps(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow.Steps)
}

func (h *APIHandlers) CreateWorkflowStep(c fiber.Ctx) error {
	var req StepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if _, exists := workflow.StepByRef(req.StepRef); exists {
		return badRequest(c, "Step ref already exists: "+req.StepRef)
	}

	workflow.Steps = append(workflow.Steps, &models.Step{
		StepRef:      req.StepRef,
		StepName:     req.StepName,
		ModuleRef:    req.ModuleRef,
		IsEntryPoint: req.IsEntryPoint,
		OrderIndex:   req.OrderIndex,
	})

	saved, err := h.workflows.Save(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	step, _ := saved.StepByRef(req.StepRef)

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) UpdateWorkflowStep(c fiber.Ctx) error {
	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	step, ok := workflow.StepByRef(c.Params("stepRef"))
	if !ok {
		return notFound(c, "Step not found")
	}

	if req.StepName != nil {
		step.StepName = *req.StepName
	}

	if req.ModuleRef != nil {
		step.ModuleRef = *req.ModuleRef
	}

	if req.IsEntryPoint != nil {
		step.IsEntryPoint = *req.IsEntryPoint
	}

	if req.OrderIndex != nil {
		step.OrderIndex = *req.OrderIndex
	}

	if _, err := h.workflows.Save(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

// DeleteWorkflowStep removes a step together with every output leaving it or
// targeting it, so the remaining graph stays valid.
func (h *APIHandlers) DeleteWorkflowStep(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	stepRef := c.Params("stepRef")

	if _, ok := workflow.StepByRef(stepRef); !ok {
		return notFound(c, "Step not found")
	}

	steps := make([]*models.Step, 0, len(workflow.Steps)-1)

	for _, step := range workflow.Steps {
		if step.StepRef != stepRef {
			steps = append(steps, step)
		}
	}

	outputs := make([]*models.Output, 0, len(workflow.Outputs))

	for _, output := range workflow.Outputs {
		if output.FromStepRef == stepRef {
			continue
		}

		if output.DestinationType == models.DestinationStep && output.DestinationRef == stepRef {
			continue
		}

		outputs = append(outputs, output)
	}

	workflow.Steps = steps
	workflow.Outputs = outputs

	if _, err := h.workflows.Save(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Output endpoints.

func (h *APIHandlers) GetWorkflowOutputs(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow.Outputs)
}

func (h *APIHandlers) CreateWorkflowOutput(c fiber.Ctx) error {
	var req OutputRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	output := &models.Output{
		ID:              uuid.New().String(),
		FromStepRef:     req.FromStepRef,
		Category:        req.Category,
		Label:           req.Label,
		DestinationType: req.DestinationType,
		DestinationRef:  req.DestinationRef,
		Priority:        req.Priority,
		DelaySeconds:    req.DelaySeconds,
	}

	workflow.Outputs = append(workflow.Outputs, output)

	if _, err := h.workflows.Save(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(output)
}

func (h *APIHandlers) DeleteWorkflowOutput(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	outputID := c.Params("outputId")
	outputs := make([]*models.Output, 0, len(workflow.Outputs))
	found := false

	for _, output := range workflow.Outputs {
		if output.ID == outputID {
			found = true

			continue
		}

		outputs = append(outputs, output)
	}

	if !found {
		return notFound(c, "Output not found")
	}

	workflow.Outputs = outputs

	if _, err := h.workflows.Save(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
