// Package cmd provides the shared construction helpers used by the
// binary entry points.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowmesh/flowmesh/pkg/persistence"
	"github.com/flowmesh/flowmesh/pkg/persistence/file"
	"github.com/flowmesh/flowmesh/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Postgres URLs get the SQL store; anything else is treated as a
// file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	}

	return file.NewPersistence(databaseURL), nil
}
