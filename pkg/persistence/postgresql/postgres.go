// Package postgresql provides PostgreSQL persistence for the conversation
// catalog and runtime sessions.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL. Turn commits
// run inside a single database transaction.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	moduleRepo  *ModuleRepository
	workflows   *WorkflowRepository
	formatRepo  *FormatRepository
	faqRepo     *FAQRepository
	sessionRepo *SessionRepository
	messageRepo *MessageRepository
}

// NewPersistence connects, migrates, and returns the persistence root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	manager := sqlbase.NewMigrationManager(logger, db, migrations())
	if err := manager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Persistence{
		db:          db,
		logger:      logger,
		moduleRepo:  &ModuleRepository{db: db},
		workflows:   &WorkflowRepository{db: db},
		formatRepo:  &FormatRepository{db: db},
		faqRepo:     &FAQRepository{db: db},
		sessionRepo: &SessionRepository{db: db},
		messageRepo: &MessageRepository{db: db},
	}, nil
}

func (p *Persistence) Modules() persistence.ModuleRepository     { return p.moduleRepo }
func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) Formats() persistence.FormatRepository     { return p.formatRepo }
func (p *Persistence) FAQs() persistence.FAQRepository           { return p.faqRepo }
func (p *Persistence) Sessions() persistence.SessionRepository   { return p.sessionRepo }
func (p *Persistence) Messages() persistence.MessageRepository   { return p.messageRepo }

// CommitTurn writes the transcript rows and the session update in one
// transaction.
func (p *Persistence) CommitTurn(ctx context.Context, session *models.Session, messages []*models.Message) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn commit: %w", err)
	}

	for _, message := range messages {
		if err := insertMessage(ctx, tx, message); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("commit turn: %w", err)
		}
	}

	if err := upsertSession(ctx, tx, session); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("commit turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}

	return nil
}

// HealthCheck pings the database.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		return p.db.Close()
	}

	return nil
}

// execer covers *sql.DB and *sql.Tx for repository helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// marshalJSON renders v for a JSONB column; nil maps become SQL NULL.
func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}

	return data, nil
}

// unmarshalJSON loads a nullable JSONB column into v.
func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, v)
}
