// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory of
// JSON files. Writes go through a temp file plus rename so readers never see
// a torn document.
type Persistence struct {
	root        string
	moduleRepo  *ModuleRepository
	workflows   *WorkflowRepository
	formatRepo  *FormatRepository
	faqRepo     *FAQRepository
	sessionRepo *SessionRepository
	messageRepo *MessageRepository
}

// NewPersistence creates the directory layout under root. Accepts a plain
// path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"modules", "workflows", "formats", "faqs", "sessions", "messages"} {
		_ = os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755)
	}

	return &Persistence{
		root:        cleanRoot,
		moduleRepo:  &ModuleRepository{root: cleanRoot},
		workflows:   &WorkflowRepository{root: cleanRoot},
		formatRepo:  &FormatRepository{root: cleanRoot},
		faqRepo:     &FAQRepository{root: cleanRoot},
		sessionRepo: &SessionRepository{root: cleanRoot},
		messageRepo: &MessageRepository{root: cleanRoot},
	}
}

func (p *Persistence) Modules() persistence.ModuleRepository     { return p.moduleRepo }
func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) Formats() persistence.FormatRepository     { return p.formatRepo }
func (p *Persistence) FAQs() persistence.FAQRepository           { return p.faqRepo }
func (p *Persistence) Sessions() persistence.SessionRepository   { return p.sessionRepo }
func (p *Persistence) Messages() persistence.MessageRepository   { return p.messageRepo }

// CommitTurn persists the transcript additions and then the session. File
// storage cannot offer a cross-file transaction; the session rename comes
// last so a crash in between leaves the session (and therefore the step
// pointer) at its pre-turn value and the event safe to redeliver.
func (p *Persistence) CommitTurn(ctx context.Context, session *models.Session, messages []*models.Message) error {
	for _, message := range messages {
		if err := p.messageRepo.Append(ctx, message); err != nil {
			return fmt.Errorf("commit turn: %w", err)
		}
	}

	if err := p.sessionRepo.Save(ctx, session); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close has nothing to release for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// writeJSON marshals v and atomically replaces path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

// readJSON loads path into v; notFound is returned for missing files.
func readJSON(path string, v any, notFound error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}

	return nil
}

// safeName guards against path traversal in caller-supplied identifiers.
func safeName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}
