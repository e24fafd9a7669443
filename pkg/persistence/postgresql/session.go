package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// SessionRepository stores runtime sessions in the sessions table.
type SessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, conversant_id, channel, workflow_id, step_ref, stack,
	variables, locale, status, started_at, last_activity_at, completed_at`

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

func (r *SessionRepository) GetActiveByConversant(ctx context.Context, conversantID string) (*models.Session, error) {
	return r.getOne(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE conversant_id = $1 AND status = $2
		ORDER BY last_activity_at DESC LIMIT 1`,
		conversantID, string(models.SessionStatusActive))
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}

		return nil, persistence.ErrSessionNotFound
	}

	return scanSession(rows)
}

func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	return upsertSession(ctx, r.db, session)
}

func (r *SessionRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE status = $1 AND last_activity_at < $2
		ORDER BY last_activity_at`,
		string(models.SessionStatusActive), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func upsertSession(ctx context.Context, db execer, session *models.Session) error {
	stack, err := marshalJSON(session.Stack)
	if err != nil {
		return err
	}

	variables, err := marshalJSON(session.Variables)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			step_ref = EXCLUDED.step_ref,
			stack = EXCLUDED.stack,
			variables = EXCLUDED.variables,
			locale = EXCLUDED.locale,
			status = EXCLUDED.status,
			last_activity_at = EXCLUDED.last_activity_at,
			completed_at = EXCLUDED.completed_at`,
		session.ID, session.ConversantID, nullString(session.Channel),
		nullString(session.WorkflowID), nullString(session.StepRef), stack, variables,
		string(session.Locale), string(session.Status),
		session.StartedAt, session.LastActivityAt, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

func scanSession(rows *sql.Rows) (*models.Session, error) {
	var (
		session     models.Session
		channel     sql.NullString
		workflowID  sql.NullString
		stepRef     sql.NullString
		locale      string
		status      string
		stack       []byte
		variables   []byte
		completedAt sql.NullTime
	)

	err := rows.Scan(&session.ID, &session.ConversantID, &channel, &workflowID,
		&stepRef, &stack, &variables, &locale, &status,
		&session.StartedAt, &session.LastActivityAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	session.Channel = channel.String
	session.WorkflowID = workflowID.String
	session.StepRef = stepRef.String
	session.Locale = models.Locale(locale)
	session.Status = models.SessionStatus(status)

	if completedAt.Valid {
		at := completedAt.Time
		session.CompletedAt = &at
	}

	if err := unmarshalJSON(stack, &session.Stack); err != nil {
		return nil, fmt.Errorf("decode session stack: %w", err)
	}

	if err := unmarshalJSON(variables, &session.Variables); err != nil {
		return nil, fmt.Errorf("decode session variables: %w", err)
	}

	return &session, nil
}

// MessageRepository stores session transcripts in the messages table.
type MessageRepository struct {
	db *sql.DB
}

func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	return insertMessage(ctx, r.db, message)
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, step_ref, metadata, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message

	for rows.Next() {
		var (
			message  models.Message
			role     string
			stepRef  sql.NullString
			metadata []byte
		)

		err := rows.Scan(&message.ID, &message.SessionID, &role, &message.Content,
			&stepRef, &metadata, &message.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		message.Role = models.MessageRole(role)
		message.StepRef = stepRef.String

		if err := unmarshalJSON(metadata, &message.Metadata); err != nil {
			return nil, fmt.Errorf("decode message metadata: %w", err)
		}

		messages = append(messages, &message)
	}

	return messages, rows.Err()
}

func insertMessage(ctx context.Context, db execer, message *models.Message) error {
	metadata, err := marshalJSON(message.Metadata)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, step_ref, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		message.ID, message.SessionID, string(message.Role), message.Content,
		nullString(message.StepRef), metadata, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	return nil
}
