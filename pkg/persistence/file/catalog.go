package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// ModuleRepository stores one JSON document per module, named by ref code.
type ModuleRepository struct {
	root string
}

func (r *ModuleRepository) path(refCode string) string {
	return filepath.Join(r.root, "modules", safeName(refCode)+".json")
}

func (r *ModuleRepository) List(ctx context.Context) ([]*models.Module, error) {
	files, err := listJSONFiles(filepath.Join(r.root, "modules"))
	if err != nil {
		return nil, err
	}

	modules := make([]*models.Module, 0, len(files))

	for _, name := range files {
		module, err := r.GetByRefCode(ctx, name)
		if err != nil {
			return nil, err
		}

		modules = append(modules, module)
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].RefCode < modules[j].RefCode })

	return modules, nil
}

func (r *ModuleRepository) GetByRefCode(_ context.Context, refCode string) (*models.Module, error) {
	module := &models.Module{}
	if err := readJSON(r.path(refCode), module, persistence.ErrModuleNotFound); err != nil {
		return nil, err
	}

	return module, nil
}

func (r *ModuleRepository) Save(_ context.Context, module *models.Module) error {
	return writeJSON(r.path(module.RefCode), module)
}

func (r *ModuleRepository) Delete(_ context.Context, refCode string) error {
	err := os.Remove(r.path(refCode))
	if os.IsNotExist(err) {
		return persistence.ErrModuleNotFound
	}

	return err
}

// FormatRepository stores validation formats, named by format code.
type FormatRepository struct {
	root string
}

func (r *FormatRepository) path(code string) string {
	return filepath.Join(r.root, "formats", safeName(code)+".json")
}

func (r *FormatRepository) List(ctx context.Context) ([]*models.ValidationFormat, error) {
	files, err := listJSONFiles(filepath.Join(r.root, "formats"))
	if err != nil {
		return nil, err
	}

	formats := make([]*models.ValidationFormat, 0, len(files))

	for _, name := range files {
		format, err := r.GetByCode(ctx, name)
		if err != nil {
			return nil, err
		}

		formats = append(formats, format)
	}

	sort.Slice(formats, func(i, j int) bool { return formats[i].FormatCode < formats[j].FormatCode })

	return formats, nil
}

func (r *FormatRepository) GetByCode(_ context.Context, code string) (*models.ValidationFormat, error) {
	format := &models.ValidationFormat{}
	if err := readJSON(r.path(code), format, persistence.ErrFormatNotFound); err != nil {
		return nil, err
	}

	return format, nil
}

func (r *FormatRepository) Save(_ context.Context, format *models.ValidationFormat) error {
	return writeJSON(r.path(format.FormatCode), format)
}

func (r *FormatRepository) Delete(_ context.Context, code string) error {
	err := os.Remove(r.path(code))
	if os.IsNotExist(err) {
		return persistence.ErrFormatNotFound
	}

	return err
}

// FAQRepository stores knowledge-base entries, named by id.
type FAQRepository struct {
	root string
}

func (r *FAQRepository) path(id string) string {
	return filepath.Join(r.root, "faqs", safeName(id)+".json")
}

func (r *FAQRepository) ListActive(_ context.Context) ([]*models.FAQ, error) {
	files, err := listJSONFiles(filepath.Join(r.root, "faqs"))
	if err != nil {
		return nil, err
	}

	faqs := make([]*models.FAQ, 0, len(files))

	for _, name := range files {
		faq := &models.FAQ{}
		if err := readJSON(r.path(name), faq, fs.ErrNotExist); err != nil {
			return nil, err
		}

		if faq.Active {
			faqs = append(faqs, faq)
		}
	}

	sort.Slice(faqs, func(i, j int) bool { return faqs[i].OrderIndex < faqs[j].OrderIndex })

	return faqs, nil
}

func (r *FAQRepository) Save(_ context.Context, faq *models.FAQ) error {
	return writeJSON(r.path(faq.ID), faq)
}

func (r *FAQRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("faq %s: %w", id, fs.ErrNotExist)
	}

	return err
}

// listJSONFiles returns the base names (without extension) of every JSON
// document in dir.
func listJSONFiles(dir string) ([]string, error) {
	matches, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match[:len(match)-len(".json")])
	}

	return names, nil
}
