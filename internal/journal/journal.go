// Package journal records migration outcomes in a local SQLite database so
// that earlier batch runs can be reviewed.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register the "sqlite" database/sql driver

	"github.com/persistorai/assetmig/internal/journal/migrations"
	"github.com/persistorai/assetmig/internal/models"
)

const (
	defaultQueryTimeout = 10 * time.Second
	defaultLimit        = 50

	// Fixed width so that stored timestamps sort as text.
	timeFormat = "2006-01-02T15:04:05.000000000Z"
)

// Journal is the migration journal.
type Journal struct {
	db  *sql.DB
	log *logrus.Logger
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Open opens or creates the journal at path and brings its schema up to date.
func Open(ctx context.Context, path string, log *logrus.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring journal %s: %w", path, err)
	}

	if err := runMigrations(ctx, db, log, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{"path": path, "schema_version": SchemaVersion()}).Debug("journal opened")

	return &Journal{db: db, log: log}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts one entry. A zero CreatedAt is set to the current time.
func (j *Journal) Record(ctx context.Context, e models.JournalEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal_entries
			(run_id, path, asset_type, dependency, from_version, to_version, steps, result, error_kind, error, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Path, e.Type, e.Dependency, e.From, e.To, e.Steps, e.Result,
		e.ErrorKind, e.Error, e.DryRun, e.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// buildFilter builds the WHERE clause and args from opts.
func buildFilter(opts models.JournalQueryOpts) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if opts.Path != "" {
		conditions = append(conditions, "path = ?")
		args = append(args, opts.Path)
	}
	if opts.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, opts.Result)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Query returns entries matching opts, newest first.
func (j *Journal) Query(ctx context.Context, opts models.JournalQueryOpts) ([]models.JournalEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where, args := buildFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := fmt.Sprintf(`
		SELECT id, run_id, path, asset_type, dependency, from_version, to_version, steps, result, error_kind, error, dry_run, created_at
		FROM journal_entries %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var (
			e       models.JournalEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Path, &e.Type, &e.Dependency, &e.From, &e.To,
			&e.Steps, &e.Result, &e.ErrorKind, &e.Error, &e.DryRun, &created); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			j.log.WithError(err).WithField("id", e.ID).Warn("unparseable journal timestamp")
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// List returns the most recent entries.
func (j *Journal) List(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	return j.Query(ctx, models.JournalQueryOpts{Limit: limit})
}

// ForPath returns the most recent entries recorded for path.
func (j *Journal) ForPath(ctx context.Context, path string) ([]models.JournalEntry, error) {
	return j.Query(ctx, models.JournalQueryOpts{Path: path})
}

// PurgeBefore deletes entries recorded before t and returns how many were removed.
func (j *Journal) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := j.db.ExecContext(ctx, "DELETE FROM journal_entries WHERE created_at < ?", t.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("purging journal: %w", err)
	}

	return res.RowsAffected()
}
