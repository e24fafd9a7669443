package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/persistence/file"
	"github.com/converso/converso/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// URLs get the SQL implementation with migrations; anything else
// is treated as a file root for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
