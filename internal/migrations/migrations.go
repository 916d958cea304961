package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

// RunMigrations applies the embedded users and sessions schema.
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger) error {
	migrationsFS, err := fs.Sub(embedMigrations, "sql")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrationsFS)
	if err != nil {
		return fmt.Errorf("migrations provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	for _, r := range results {
		logger.Infow("Migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}

	logger.Infow("Database migrations applied successfully!", "applied", len(results))
	return nil
}
