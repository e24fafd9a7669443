package persistence

import (
	"context"
	"time"

	"github.com/converso/converso/pkg/models"
)

// ModuleRepository stores the module catalog, keyed by ref code.
type ModuleRepository interface {
	List(ctx context.Context) ([]*models.Module, error)
	GetByRefCode(ctx context.Context, refCode string) (*models.Module, error)
	Save(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, refCode string) error
}

// WorkflowRepository stores workflows together with their steps and outputs.
type WorkflowRepository interface {
	List(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetActive returns the single active workflow, or ErrNoActiveWorkflow.
	GetActive(ctx context.Context) (*models.Workflow, error)

	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// Activate marks the given workflow active and every other workflow
	// inactive, as one atomic operation. Activating an already-active
	// workflow is a no-op.
	Activate(ctx context.Context, id string) error
}

// FormatRepository stores validation formats, keyed by format code.
type FormatRepository interface {
	List(ctx context.Context) ([]*models.ValidationFormat, error)
	GetByCode(ctx context.Context, code string) (*models.ValidationFormat, error)
	Save(ctx context.Context, format *models.ValidationFormat) error
	Delete(ctx context.Context, code string) error
}

// FAQRepository stores the assistant knowledge base.
type FAQRepository interface {
	ListActive(ctx context.Context) ([]*models.FAQ, error)
	Save(ctx context.Context, faq *models.FAQ) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository stores runtime sessions.
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// GetActiveByConversant returns the conversant's active session, or
	// ErrSessionNotFound when none exists (or the last one ended).
	GetActiveByConversant(ctx context.Context, conversantID string) (*models.Session, error)

	Save(ctx context.Context, session *models.Session) error

	// ListIdleSince returns active sessions whose last activity predates the
	// cutoff; the sweeper abandons them.
	ListIdleSince(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
}

// MessageRepository stores session transcripts.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error)
}

// Persistence is the storage root. A turn's session mutation and transcript
// rows commit through CommitTurn as one unit: a failed commit leaves the
// stored session untouched so the inbound event is safe to redeliver.
type Persistence interface {
	Modules() ModuleRepository
	Workflows() WorkflowRepository
	Formats() FormatRepository
	FAQs() FAQRepository
	Sessions() SessionRepository
	Messages() MessageRepository

	CommitTurn(ctx context.Context, session *models.Session, messages []*models.Message) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
