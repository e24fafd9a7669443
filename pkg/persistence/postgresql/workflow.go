package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// WorkflowRepository stores workflow graphs across the workflows,
// workflow_steps and workflow_outputs tables. Saves replace the whole graph in
// one transaction.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM workflows ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	for _, workflow := range workflows {
		if err := r.loadGraph(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getOne(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM workflows WHERE id = $1`, id)
}

func (r *WorkflowRepository) GetActive(ctx context.Context) (*models.Workflow, error) {
	workflow, err := r.getOne(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM workflows WHERE active = true LIMIT 1`)
	if errors.Is(err, persistence.ErrWorkflowNotFound) {
		return nil, persistence.ErrNoActiveWorkflow
	}

	return workflow, err
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...any) (*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get workflow: %w", err)
		}

		return nil, persistence.ErrWorkflowNotFound
	}

	workflow, err := scanWorkflow(rows)
	if err != nil {
		return nil, err
	}

	rows.Close()

	if err := r.loadGraph(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.Workflow) error {
	stepRows, err := r.db.QueryContext(ctx, `
		SELECT step_ref, step_name, module_ref, is_entry_point, order_index, created_at, updated_at
		FROM workflow_steps WHERE workflow_id = $1 ORDER BY order_index, step_ref`, workflow.ID)
	if err != nil {
		return fmt.Errorf("load workflow steps: %w", err)
	}
	defer stepRows.Close()

	workflow.Steps = nil

	for stepRows.Next() {
		var step models.Step

		err := stepRows.Scan(&step.StepRef, &step.StepName, &step.ModuleRef,
			&step.IsEntryPoint, &step.OrderIndex, &step.CreatedAt, &step.UpdatedAt)
		if err != nil {
			return fmt.Errorf("scan workflow step: %w", err)
		}

		workflow.Steps = append(workflow.Steps, &step)
	}

	if err := stepRows.Err(); err != nil {
		return fmt.Errorf("load workflow steps: %w", err)
	}

	outputRows, err := r.db.QueryContext(ctx, `
		SELECT id, from_step_ref, category, label, destination_type, destination_ref,
			priority, delay_seconds, created_at
		FROM workflow_outputs WHERE workflow_id = $1 ORDER BY from_step_ref, priority, id`, workflow.ID)
	if err != nil {
		return fmt.Errorf("load workflow outputs: %w", err)
	}
	defer outputRows.Close()

	workflow.Outputs = nil

	for outputRows.Next() {
		var (
			output          models.Output
			category        string
			label           sql.NullString
			destinationType string
			destinationRef  sql.NullString
		)

		err := outputRows.Scan(&output.ID, &output.FromStepRef, &category, &label,
			&destinationType, &destinationRef, &output.Priority, &output.DelaySeconds,
			&output.CreatedAt)
		if err != nil {
			return fmt.Errorf("scan workflow output: %w", err)
		}

		output.Category = models.Category(category)
		output.Label = label.String
		output.DestinationType = models.DestinationType(destinationType)
		output.DestinationRef = destinationRef.String

		workflow.Outputs = append(workflow.Outputs, &output)
	}

	return outputRows.Err()
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow save: %w", err)
	}

	if err := saveWorkflowTx(ctx, tx, workflow); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}

	return nil
}

func saveWorkflowTx(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.Name, nullString(workflow.Description),
		workflow.Active, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM workflow_steps WHERE workflow_id = $1`, workflow.ID); err != nil {
		return fmt.Errorf("replace workflow steps: %w", err)
	}

	for _, step := range workflow.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, step_ref, step_name, module_ref,
				is_entry_point, order_index, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			workflow.ID, step.StepRef, step.StepName, step.ModuleRef,
			step.IsEntryPoint, step.OrderIndex, step.CreatedAt, step.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save workflow step %s: %w", step.StepRef, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM workflow_outputs WHERE workflow_id = $1`, workflow.ID); err != nil {
		return fmt.Errorf("replace workflow outputs: %w", err)
	}

	for _, output := range workflow.Outputs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_outputs (id, workflow_id, from_step_ref, category, label,
				destination_type, destination_ref, priority, delay_seconds, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			output.ID, workflow.ID, output.FromStepRef, string(output.Category),
			nullString(output.Label), string(output.DestinationType),
			nullString(output.DestinationRef), output.Priority, output.DelaySeconds,
			output.CreatedAt)
		if err != nil {
			return fmt.Errorf("save workflow output %s: %w", output.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

// Activate flips the active flag to the given workflow in one transaction, so
// at most one workflow is ever active.
func (r *WorkflowRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activation: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE workflows SET active = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("activate workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("activate workflow: %w", err)
	}

	if affected == 0 {
		_ = tx.Rollback()

		return persistence.ErrWorkflowNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE workflows SET active = false, updated_at = now() WHERE id <> $1 AND active = true`,
		id); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("deactivate workflows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("activate workflow: %w", err)
	}

	return nil
}

func scanWorkflow(rows *sql.Rows) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		description sql.NullString
	)

	err := rows.Scan(&workflow.ID, &workflow.Name, &description, &workflow.Active,
		&workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	workflow.Description = description.String

	return &workflow, nil
}
