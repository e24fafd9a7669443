package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/registry"
)

// ModuleService manages the module catalog. Every write passes through typed
// validation: module type, choice cardinality, handler params, and the
// validation format binding.
type ModuleService struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewModuleService(logger *slog.Logger, p persistence.Persistence, r *registry.Registry) *ModuleService {
	return &ModuleService{
		persistence: p,
		registry:    r,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("service", "module"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *ModuleService) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (s *ModuleService) List(ctx context.Context) ([]*models.Module, error) {
	return s.persistence.Modules().List(ctx)
}

func (s *ModuleService) Get(ctx context.Context, refCode string) (*models.Module, error) {
	return s.persistence.Modules().GetByRefCode(ctx, refCode)
}

// Create stores a new module. Ref codes are unique across the catalog.
func (s *ModuleService) Create(ctx context.Context, module *models.Module) (*models.Module, error) {
	if err := s.validateModule(ctx, module); err != nil {
		return nil, err
	}

	_, err := s.persistence.Modules().GetByRefCode(ctx, module.RefCode)

	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRefCode, module.RefCode)
	case !persistence.IsModuleNotFound(err):
		return nil, fmt.Errorf("check ref code %s: %w", module.RefCode, err)
	}

	if module.ID == "" {
		module.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now

	if err := s.persistence.Modules().Save(ctx, module); err != nil {
		return nil, fmt.Errorf("save module %s: %w", module.RefCode, err)
	}

	s.logger.Info("Module created", "ref_code", module.RefCode, "module_type", module.Type)

	return module, nil
}

// Update replaces an existing module. The ref code in the path wins over any
// value in the body; identity and creation time are preserved.
func (s *ModuleService) Update(ctx context.Context, refCode string, module *models.Module) (*models.Module, error) {
	existing, err := s.persistence.Modules().GetByRefCode(ctx, refCode)
	if err != nil {
		return nil, err
	}

	module.RefCode = refCode

	if err := s.validateModule(ctx, module); err != nil {
		return nil, err
	}

	module.ID = existing.ID
	module.CreatedAt = existing.CreatedAt
	module.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Modules().Save(ctx, module); err != nil {
		return nil, fmt.Errorf("save module %s: %w", refCode, err)
	}

	s.logger.Info("Module updated", "ref_code", refCode)

	return module, nil
}

// Delete removes a module. Modules still referenced by a workflow step are
// protected; the step has to be removed or repointed first.
func (s *ModuleService) Delete(ctx context.Context, refCode string) error {
	if _, err := s.persistence.Modules().GetByRefCode(ctx, refCode); err != nil {
		return err
	}

	referencedBy, err := s.referencingWorkflow(ctx, refCode)
	if err != nil {
		return err
	}

	if referencedBy != "" {
		return fmt.Errorf("%w: %s used by workflow %s", ErrModuleReferenced, refCode, referencedBy)
	}

	if err := s.persistence.Modules().Delete(ctx, refCode); err != nil {
		return fmt.Errorf("delete module %s: %w", refCode, err)
	}

	s.logger.Info("Module deleted", "ref_code", refCode)

	return nil
}

// referencingWorkflow returns the id of a workflow whose steps reference the
// module, or empty when none does.
func (s *ModuleService) referencingWorkflow(ctx context.Context, refCode string) (string, error) {
	workflows, err := s.persistence.Workflows().List(ctx)
	if err != nil {
		return "", fmt.Errorf("list workflows: %w", err)
	}

	for _, workflow := range workflows {
		for _, step := range workflow.Steps {
			if step.ModuleRef == refCode {
				return workflow.ID, nil
			}
		}
	}

	return "", nil
}

func (s *ModuleService) validateModule(ctx context.Context, module *models.Module) error {
	if !module.Type.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownModuleType, module.Type)
	}

	if len(module.Choices) > models.MaxChoices {
		return fmt.Errorf("%w: %d choices, limit is %d",
			ErrTooManyChoices, len(module.Choices), models.MaxChoices)
	}

	if err := s.validate.Struct(module); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	if err := s.registry.ValidateParams(module); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	if module.ValidationFormatCode != "" {
		_, err := s.persistence.Formats().GetByCode(ctx, module.ValidationFormatCode)

		switch {
		case persistence.IsFormatNotFound(err):
			return fmt.Errorf("%w: %s", ErrUnknownFormat, module.ValidationFormatCode)
		case err != nil:
			return fmt.Errorf("check format %s: %w", module.ValidationFormatCode, err)
		}
	}

	if module.Assistant != nil {
		if err := s.validate.Struct(module.Assistant); err != nil {
			return fmt.Errorf("%w: assistant config: %s", ErrInvalidRequest, err.Error())
		}
	}

	return nil
}

// Schemas exposes the handler parameter schemas for the authoring UI.
func (s *ModuleService) Schemas() map[models.ModuleType]map[string]any {
	return s.registry.Schemas()
}
