// Package service runs migrations over batches of asset files.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/migrate"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

// Migrator performs a single migration check.
type Migrator interface {
	Migrate(mc *upgrade.MigrationContext, file *asset.File, dependency string, until *version.Version) (migrate.Outcome, error)
}

// MigrationOptions configures a MigrationService.
type MigrationOptions struct {
	// Workers bounds the number of files migrated at once.
	Workers int
	// DryRun keeps changes in memory.
	DryRun bool
	// Package is passed to upgraders through the migration context.
	Package string
}

// MigrationService migrates many files concurrently, one goroutine per file.
type MigrationService struct {
	migrator Migrator
	journal  *JournalWorker
	log      *logrus.Logger
	opts     MigrationOptions
}

// NewMigrationService creates a MigrationService. journal may be nil.
func NewMigrationService(m Migrator, journal *JournalWorker, log *logrus.Logger, opts MigrationOptions) *MigrationService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &MigrationService{migrator: m, journal: journal, log: log, opts: opts}
}

// MigrateAll migrates files against dependency, up to until when it is set.
// A failing file never stops the others. Once ctx is cancelled no further
// file is started; files already in progress run to completion. Results are
// returned in input order.
func (s *MigrationService) MigrateAll(ctx context.Context, files []*asset.File, dependency string, until *version.Version) ([]models.FileResult, models.BatchSummary, error) {
	runID := uuid.NewString()
	results := make([]models.FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	started := 0
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = cancelled(f, dependency, err)
				return nil
			}
			results[i] = s.migrateOne(runID, f, dependency, until)
			return nil
		})
	}
	_ = g.Wait()

	for i := started; i < len(files); i++ {
		results[i] = cancelled(files[i], dependency, ctx.Err())
	}

	summary := models.BatchSummary{RunID: runID, Total: len(results), Results: make(map[string]int), DryRun: s.opts.DryRun}
	for _, r := range results {
		summary.Results[r.Result]++
	}

	s.log.WithFields(logrus.Fields{
		"run_id":     runID,
		"dependency": dependency,
		"files":      summary.Total,
		"results":    summary.Results,
		"dry_run":    s.opts.DryRun,
	}).Info("batch migration finished")

	return results, summary, ctx.Err()
}

func (s *MigrationService) migrateOne(runID string, f *asset.File, dependency string, until *version.Version) models.FileResult {
	mc := &upgrade.MigrationContext{
		Log:     s.log.WithFields(logrus.Fields{"run_id": runID, "path": f.FilePath}),
		Package: s.opts.Package,
	}

	out, err := s.migrator.Migrate(mc, f, dependency, until)

	res := models.FileResult{
		Path:       f.FilePath,
		Type:       out.Type,
		Dependency: dependency,
		Steps:      out.Steps,
		Result:     out.Result(err),
	}
	if out.Type != "" {
		res.From = out.From.String()
		res.To = out.To.String()
	}

	if err == nil && f.Modified() && !s.opts.DryRun {
		if err = f.Save(); err == nil {
			res.Saved = true
		} else {
			res.Result = models.ResultFailed
		}
	}

	if err != nil {
		res.Err = err
		res.Error = err.Error()
		res.ErrorKind = models.ErrorKind(err)
		s.log.WithError(err).WithFields(logrus.Fields{
			"path":       f.FilePath,
			"dependency": dependency,
			"kind":       res.ErrorKind,
		}).Error("asset migration failed")
	}

	if s.journal != nil {
		s.journal.Enqueue(models.JournalEntry{
			RunID:      runID,
			Path:       res.Path,
			Type:       res.Type,
			Dependency: dependency,
			From:       res.From,
			To:         res.To,
			Steps:      res.Steps,
			Result:     res.Result,
			ErrorKind:  res.ErrorKind,
			Error:      res.Error,
			DryRun:     s.opts.DryRun,
		})
	}

	return res
}

func cancelled(f *asset.File, dependency string, err error) models.FileResult {
	return models.FileResult{
		Path:       f.FilePath,
		Dependency: dependency,
		Result:     models.ResultSkipped,
		ErrorKind:  "cancelled",
		Error:      err.Error(),
		Err:        err,
	}
}
