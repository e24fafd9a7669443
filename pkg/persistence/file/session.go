package file

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// SessionRepository stores one JSON document per session.
type SessionRepository struct {
	root string
}

func (r *SessionRepository) path(id string) string {
	return filepath.Join(r.root, "sessions", safeName(id)+".json")
}

func (r *SessionRepository) GetByID(_ context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	if err := readJSON(r.path(id), session, persistence.ErrSessionNotFound); err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionRepository) GetActiveByConversant(ctx context.Context, conversantID string) (*models.Session, error) {
	sessions, err := r.list(ctx)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		if session.ConversantID == conversantID && session.Status == models.SessionStatusActive {
			return session, nil
		}
	}

	return nil, persistence.ErrSessionNotFound
}

func (r *SessionRepository) Save(_ context.Context, session *models.Session) error {
	return writeJSON(r.path(session.ID), session)
}

func (r *SessionRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	sessions, err := r.list(ctx)
	if err != nil {
		return nil, err
	}

	idle := make([]*models.Session, 0)

	for _, session := range sessions {
		if session.Status == models.SessionStatusActive && session.LastActivityAt.Before(cutoff) {
			idle = append(idle, session)
		}
	}

	return idle, nil
}

func (r *SessionRepository) list(ctx context.Context) ([]*models.Session, error) {
	files, err := listJSONFiles(filepath.Join(r.root, "sessions"))
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(files))

	for _, name := range files {
		session, err := r.GetByID(ctx, name)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

// MessageRepository stores each session's transcript as one JSON array.
type MessageRepository struct {
	root string
}

func (r *MessageRepository) path(sessionID string) string {
	return filepath.Join(r.root, "messages", safeName(sessionID)+".json")
}

func (r *MessageRepository) Append(_ context.Context, message *models.Message) error {
	transcript := make([]*models.Message, 0)

	err := readJSON(r.path(message.SessionID), &transcript, fs.ErrNotExist)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	transcript = append(transcript, message)

	return writeJSON(r.path(message.SessionID), transcript)
}

func (r *MessageRepository) ListBySession(_ context.Context, sessionID string) ([]*models.Message, error) {
	transcript := make([]*models.Message, 0)

	err := readJSON(r.path(sessionID), &transcript, fs.ErrNotExist)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return transcript, nil
}
