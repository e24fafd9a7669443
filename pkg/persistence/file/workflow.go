package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// WorkflowRepository stores each workflow with its steps and outputs embedded
// in a single JSON document, matching the authoring unit.
type WorkflowRepository struct {
	root string
}

func (r *WorkflowRepository) path(id string) string {
	return filepath.Join(r.root, "workflows", safeName(id)+".json")
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	files, err := listJSONFiles(filepath.Join(r.root, "workflows"))
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, name := range files {
		workflow, err := r.GetByID(ctx, name)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].Name < workflows[j].Name })

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	if err := readJSON(r.path(id), workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetActive(ctx context.Context) (*models.Workflow, error) {
	workflows, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.Active {
			return workflow, nil
		}
	}

	return nil, persistence.ErrNoActiveWorkflow
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return writeJSON(r.path(workflow.ID), workflow)
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return persistence.ErrWorkflowNotFound
	}

	return err
}

// Activate flips the active flag exclusively. Re-activating the already
// active workflow leaves everything as is.
func (r *WorkflowRepository) Activate(ctx context.Context, id string) error {
	target, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	workflows, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		if workflow.ID == id {
			continue
		}

		if workflow.Active {
			workflow.Active = false
			if err := r.Save(ctx, workflow); err != nil {
				return err
			}
		}
	}

	if !target.Active {
		target.Active = true

		return r.Save(ctx, target)
	}

	return nil
}
