package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/migrate"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

// mockRecorder records journal entries.
type mockRecorder struct {
	mu    sync.Mutex
	calls []models.JournalEntry

	err error
}

func (m *mockRecorder) Record(_ context.Context, e models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, e)
	return m.err
}

func (m *mockRecorder) getCalls() []models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]models.JournalEntry, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// mockMigrator returns configured outcomes and counts calls.
type mockMigrator struct {
	calls   atomic.Int32
	migrate func(mc *upgrade.MigrationContext, file *asset.File, dependency string, until *version.Version) (migrate.Outcome, error)
}

func (m *mockMigrator) Migrate(mc *upgrade.MigrationContext, file *asset.File, dependency string, until *version.Version) (migrate.Outcome, error) {
	m.calls.Add(1)
	return m.migrate(mc, file, dependency, until)
}
