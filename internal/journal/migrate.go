package journal

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/journal/migrations"
)

// SchemaVersion returns the number of embedded migration files, which equals
// the journal schema version once Open has succeeded.
func SchemaVersion() int {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}

	return count
}

// runMigrations applies all pending schema migrations from fsys, which holds
// goose-annotated SQL files (e.g. "001_initial.sql").
func runMigrations(ctx context.Context, db *sql.DB, log *logrus.Logger, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying journal migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("journal migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Debug("journal migration applied")
	}

	if len(results) == 0 {
		log.Debug("journal schema up to date")
	}

	return nil
}
