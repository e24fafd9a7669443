package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// WorkflowService manages workflow graphs. Saving validates every reference in
// the graph so traversal never meets a dangling step, module, or destination.
// Steps are allowed before the graph is complete; activation additionally
// requires at least one step, so the entry point resolves.
type WorkflowService struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewWorkflowService(logger *slog.Logger, p persistence.Persistence, publisher eventbus.EventPublisher) *WorkflowService {
	return &WorkflowService{
		persistence: p,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("service", "workflow"),
	}
}

func (s *WorkflowService) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows().List(ctx)
}

func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.Workflows().GetByID(ctx, id)
}

func (s *WorkflowService) GetActive(ctx context.Context) (*models.Workflow, error) {
	return s.persistence.Workflows().GetActive(ctx)
}

// Save stores a workflow with its steps and outputs as one unit.
func (s *WorkflowService) Save(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
		workflow.CreatedAt = time.Now().UTC()
	} else if existing, err := s.persistence.Workflows().GetByID(ctx, workflow.ID); err == nil {
		workflow.CreatedAt = existing.CreatedAt
		workflow.Active = existing.Active
	} else if !persistence.IsWorkflowNotFound(err) {
		return nil, fmt.Errorf("load workflow %s: %w", workflow.ID, err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := s.validateGraph(ctx, workflow); err != nil {
		return nil, err
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", workflow.ID, err)
	}

	s.logger.Info("Workflow saved", "workflow_id", workflow.ID,
		"steps", len(workflow.Steps), "outputs", len(workflow.Outputs))

	return workflow, nil
}

func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	if err := s.persistence.Workflows().Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Workflow deleted", "workflow_id", id)

	return nil
}

// Activate makes the workflow the single active one and announces the switch
// on the event bus. The graph must be complete enough to start a session.
func (s *WorkflowService) Activate(ctx context.Context, id string) error {
	workflow, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if len(workflow.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowHasNoSteps, id)
	}

	if err := s.validateGraph(ctx, workflow); err != nil {
		return err
	}

	if err := s.persistence.Workflows().Activate(ctx, id); err != nil {
		return fmt.Errorf("activate workflow %s: %w", id, err)
	}

	s.logger.Info("Workflow activated", "workflow_id", id)

	if s.publisher != nil {
		event := events.WorkflowActivated{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.WorkflowActivatedEvent,
				Timestamp: time.Now().UTC(),
			},
			WorkflowID: id,
		}

		if err := s.publisher.Publish(ctx, id, event); err != nil {
			s.logger.Error("Failed to publish workflow activation", "workflow_id", id, "error", err)
		}
	}

	return nil
}

// validateGraph checks the structural invariants of a workflow: unique step
// refs, steps bound to existing modules, and outputs whose source and
// destination both resolve.
func (s *WorkflowService) validateGraph(ctx context.Context, workflow *models.Workflow) error {
	if err := s.validate.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	stepRefs := make(map[string]bool, len(workflow.Steps))

	for _, step := range workflow.Steps {
		if stepRefs[step.StepRef] {
			return fmt.Errorf("%w: duplicate step ref %s", ErrInvalidRequest, step.StepRef)
		}

		stepRefs[step.StepRef] = true

		_, err := s.persistence.Modules().GetByRefCode(ctx, step.ModuleRef)

		switch {
		case persistence.IsModuleNotFound(err):
			return fmt.Errorf("%w: step %s references %s", ErrStepModuleMissing, step.StepRef, step.ModuleRef)
		case err != nil:
			return fmt.Errorf("check module %s: %w", step.ModuleRef, err)
		}
	}

	type edgeKey struct {
		step     string
		category models.Category
		priority int
	}

	edges := make(map[edgeKey]bool, len(workflow.Outputs))

	for _, output := range workflow.Outputs {
		key := edgeKey{output.FromStepRef, output.Category, output.Priority}
		if edges[key] {
			return fmt.Errorf("%w: step %s has duplicate %s output at priority %d",
				ErrInvalidRequest, output.FromStepRef, output.Category, output.Priority)
		}

		edges[key] = true

		if !stepRefs[output.FromStepRef] {
			return fmt.Errorf("%w: output %s leaves unknown step %s",
				ErrOutputStepMissing, output.ID, output.FromStepRef)
		}

		switch output.DestinationType {
		case models.DestinationStep:
			if !stepRefs[output.DestinationRef] {
				return fmt.Errorf("%w: output %s targets unknown step %s",
					ErrOutputDestinationMissing, output.ID, output.DestinationRef)
			}
		case models.DestinationWorkflow:
			if err := s.checkWorkflowDestination(ctx, workflow, output.DestinationRef); err != nil {
				return err
			}
		case models.DestinationEnd:
			// Terminal, nothing to resolve.
		default:
			return fmt.Errorf("%w: output %s has destination type %q",
				ErrInvalidRequest, output.ID, output.DestinationType)
		}
	}

	return nil
}

func (s *WorkflowService) checkWorkflowDestination(ctx context.Context, workflow *models.Workflow, ref string) error {
	if ref == workflow.ID {
		return nil
	}

	_, err := s.persistence.Workflows().GetByID(ctx, ref)

	switch {
	case persistence.IsWorkflowNotFound(err):
		return fmt.Errorf("%w: workflow %s", ErrOutputDestinationMissing, ref)
	case err != nil:
		return fmt.Errorf("check workflow %s: %w", ref, err)
	}

	return nil
}
