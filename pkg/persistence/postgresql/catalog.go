package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// ModuleRepository stores the module catalog in the modules table.
type ModuleRepository struct {
	db *sql.DB
}

const moduleColumns = `ref_code, id, name, type, content, params, validation_format_code,
	custom_error_message, choices, assistant, success_message, failure_message,
	metadata, category, active, created_at, updated_at`

func (r *ModuleRepository) List(ctx context.Context) ([]*models.Module, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+moduleColumns+` FROM modules ORDER BY ref_code`)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.Module

	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}

		modules = append(modules, module)
	}

	return modules, rows.Err()
}

func (r *ModuleRepository) GetByRefCode(ctx context.Context, refCode string) (*models.Module, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE ref_code = $1`, refCode)
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get module: %w", err)
		}

		return nil, persistence.ErrModuleNotFound
	}

	return scanModule(rows)
}

func (r *ModuleRepository) Save(ctx context.Context, module *models.Module) error {
	content, err := marshalJSON(module.Content)
	if err != nil {
		return err
	}

	params, err := marshalJSON(module.Params)
	if err != nil {
		return err
	}

	customError, err := marshalJSON(module.CustomErrorMessage)
	if err != nil {
		return err
	}

	choices, err := marshalJSON(module.Choices)
	if err != nil {
		return err
	}

	var assistant any

	if module.Assistant != nil {
		assistant, err = marshalJSON(module.Assistant)
		if err != nil {
			return err
		}
	}

	successMessage, err := marshalJSON(module.SuccessMessage)
	if err != nil {
		return err
	}

	failureMessage, err := marshalJSON(module.FailureMessage)
	if err != nil {
		return err
	}

	metadata, err := marshalJSON(module.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO modules (`+moduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (ref_code) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			content = EXCLUDED.content,
			params = EXCLUDED.params,
			validation_format_code = EXCLUDED.validation_format_code,
			custom_error_message = EXCLUDED.custom_error_message,
			choices = EXCLUDED.choices,
			assistant = EXCLUDED.assistant,
			success_message = EXCLUDED.success_message,
			failure_message = EXCLUDED.failure_message,
			metadata = EXCLUDED.metadata,
			category = EXCLUDED.category,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		module.RefCode, module.ID, module.Name, string(module.Type), content, params,
		nullString(module.ValidationFormatCode), customError, choices, assistant,
		successMessage, failureMessage, metadata, nullString(module.Category),
		module.Active, module.CreatedAt, module.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save module: %w", err)
	}

	return nil
}

// Delete refuses to remove a module still referenced by a workflow step.
func (r *ModuleRepository) Delete(ctx context.Context, refCode string) error {
	var referenced bool

	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM workflow_steps WHERE module_ref = $1)`, refCode).
		Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check module references: %w", err)
	}

	if referenced {
		return persistence.ErrModuleReferenced
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE ref_code = $1`, refCode)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}

	if affected == 0 {
		return persistence.ErrModuleNotFound
	}

	return nil
}

func scanModule(rows *sql.Rows) (*models.Module, error) {
	var (
		module         models.Module
		moduleType     string
		formatCode     sql.NullString
		category       sql.NullString
		content        []byte
		params         []byte
		customError    []byte
		choices        []byte
		assistant      []byte
		successMessage []byte
		failureMessage []byte
		metadata       []byte
	)

	err := rows.Scan(&module.RefCode, &module.ID, &module.Name, &moduleType,
		&content, &params, &formatCode, &customError, &choices, &assistant,
		&successMessage, &failureMessage, &metadata, &category,
		&module.Active, &module.CreatedAt, &module.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan module: %w", err)
	}

	module.Type = models.ModuleType(moduleType)
	module.ValidationFormatCode = formatCode.String
	module.Category = category.String

	jsonFields := []struct {
		name string
		data []byte
		into any
	}{
		{"content", content, &module.Content},
		{"params", params, &module.Params},
		{"custom_error_message", customError, &module.CustomErrorMessage},
		{"choices", choices, &module.Choices},
		{"success_message", successMessage, &module.SuccessMessage},
		{"failure_message", failureMessage, &module.FailureMessage},
		{"metadata", metadata, &module.Metadata},
	}

	for _, field := range jsonFields {
		if err := unmarshalJSON(field.data, field.into); err != nil {
			return nil, fmt.Errorf("decode module %s: %w", field.name, err)
		}
	}

	if len(assistant) > 0 && string(assistant) != "null" {
		module.Assistant = &models.AssistantConfig{}
		if err := unmarshalJSON(assistant, module.Assistant); err != nil {
			return nil, fmt.Errorf("decode module assistant: %w", err)
		}
	}

	return &module, nil
}

// FormatRepository stores validation formats in the validation_formats table.
type FormatRepository struct {
	db *sql.DB
}

const formatColumns = `format_code, id, format_name, validation_regex, error_message,
	description, active, created_at, updated_at`

func (r *FormatRepository) List(ctx context.Context) ([]*models.ValidationFormat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+formatColumns+` FROM validation_formats ORDER BY format_code`)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	defer rows.Close()

	var formats []*models.ValidationFormat

	for rows.Next() {
		format, err := scanFormat(rows)
		if err != nil {
			return nil, err
		}

		formats = append(formats, format)
	}

	return formats, rows.Err()
}

func (r *FormatRepository) GetByCode(ctx context.Context, code string) (*models.ValidationFormat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+formatColumns+` FROM validation_formats WHERE format_code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("get format: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get format: %w", err)
		}

		return nil, persistence.ErrFormatNotFound
	}

	return scanFormat(rows)
}

func (r *FormatRepository) Save(ctx context.Context, format *models.ValidationFormat) error {
	errorMessage, err := marshalJSON(format.ErrorMessage)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO validation_formats (`+formatColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (format_code) DO UPDATE SET
			format_name = EXCLUDED.format_name,
			validation_regex = EXCLUDED.validation_regex,
			error_message = EXCLUDED.error_message,
			description = EXCLUDED.description,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		format.FormatCode, format.ID, format.FormatName, nullString(format.Regex),
		errorMessage, nullString(format.Description), format.Active,
		format.CreatedAt, format.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save format: %w", err)
	}

	return nil
}

func (r *FormatRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM validation_formats WHERE format_code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete format: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete format: %w", err)
	}

	if affected == 0 {
		return persistence.ErrFormatNotFound
	}

	return nil
}

func scanFormat(rows *sql.Rows) (*models.ValidationFormat, error) {
	var (
		format       models.ValidationFormat
		regex        sql.NullString
		description  sql.NullString
		errorMessage []byte
	)

	err := rows.Scan(&format.FormatCode, &format.ID, &format.FormatName, &regex,
		&errorMessage, &description, &format.Active, &format.CreatedAt, &format.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan format: %w", err)
	}

	format.Regex = regex.String
	format.Description = description.String

	if err := unmarshalJSON(errorMessage, &format.ErrorMessage); err != nil {
		return nil, fmt.Errorf("decode format error message: %w", err)
	}

	return &format, nil
}

// FAQRepository stores the assistant knowledge base in the faqs table.
type FAQRepository struct {
	db *sql.DB
}

func (r *FAQRepository) ListActive(ctx context.Context) ([]*models.FAQ, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, question, answer, order_index, active, created_at, updated_at
		FROM faqs WHERE active = true ORDER BY order_index, id`)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()

	var faqs []*models.FAQ

	for rows.Next() {
		var (
			faq      models.FAQ
			category sql.NullString
			question []byte
			answer   []byte
		)

		err := rows.Scan(&faq.ID, &category, &question, &answer,
			&faq.OrderIndex, &faq.Active, &faq.CreatedAt, &faq.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}

		faq.Category = category.String

		if err := unmarshalJSON(question, &faq.Question); err != nil {
			return nil, fmt.Errorf("decode faq question: %w", err)
		}

		if err := unmarshalJSON(answer, &faq.Answer); err != nil {
			return nil, fmt.Errorf("decode faq answer: %w", err)
		}

		faqs = append(faqs, &faq)
	}

	return faqs, rows.Err()
}

func (r *FAQRepository) Save(ctx context.Context, faq *models.FAQ) error {
	question, err := marshalJSON(faq.Question)
	if err != nil {
		return err
	}

	answer, err := marshalJSON(faq.Answer)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO faqs (id, category, question, answer, order_index, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			order_index = EXCLUDED.order_index,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		faq.ID, nullString(faq.Category), question, answer,
		faq.OrderIndex, faq.Active, faq.CreatedAt, faq.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save faq: %w", err)
	}

	return nil
}

func (r *FAQRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete faq: %w", err)
	}

	return nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
