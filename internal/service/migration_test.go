package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/migrate"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newMigrator registers Foo at core 2.0.0 with one empty step from 0.0.0.
func newMigrator(t *testing.T) *migrate.Migrator {
	t.Helper()

	reg := upgrade.NewRegistry()
	if err := reg.RegisterAssetVersion("Foo", "core", version.New(2, 0, 0), version.Zero,
		upgrade.Step{Start: version.Zero, Target: version.New(2, 0, 0), Upgrader: upgrade.Empty},
	); err != nil {
		t.Fatalf("RegisterAssetVersion: %v", err)
	}

	serializers := asset.NewSerializers()
	serializers.Register(".foo", asset.SerializerDocument)
	serializers.Register(".png", asset.SerializerRaw)

	types := asset.NewTypes()
	types.Register("Foo", "!Foo")

	return migrate.New(reg, types, serializers, quietLogger())
}

func writeAsset(t *testing.T, dir, name, content string) *asset.File {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return asset.NewFile(path)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestMigrateAll_SavesAndReports(t *testing.T) {
	dir := t.TempDir()
	files := []*asset.File{
		writeAsset(t, dir, "old.foo", "!Foo\nId: a\nSerializedVersion: {core: 0.0.0}\n"),
		writeAsset(t, dir, "current.foo", "!Foo\nId: b\nSerializedVersion: {core: 2.0.0}\n"),
		writeAsset(t, dir, "future.foo", "!Foo\nId: c\nSerializedVersion: {core: 9.0.0}\n"),
		writeAsset(t, dir, "image.png", "\x89PNG"),
	}

	recorder := &mockRecorder{}
	jw := NewJournalWorker(recorder, quietLogger(), 10)
	svc := NewMigrationService(newMigrator(t), jw, quietLogger(), MigrationOptions{Workers: 2})

	results, summary, err := svc.MigrateAll(context.Background(), files, "core", nil)
	if err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}

	want := []string{models.ResultMigrated, models.ResultUpToDate, models.ResultFailed, models.ResultSkipped}
	for i, r := range results {
		if r.Result != want[i] {
			t.Errorf("results[%d] (%s) = %q, want %q", i, r.Path, r.Result, want[i])
		}
	}

	if !results[0].Saved {
		t.Error("migrated file was not saved")
	}
	if got := readFile(t, files[0].FilePath); !strings.Contains(got, "SerializedVersion: {core: 2.0.0}") {
		t.Errorf("saved content = %q", got)
	}
	if results[2].ErrorKind != "future_version" {
		t.Errorf("error kind = %q, want %q", results[2].ErrorKind, "future_version")
	}
	if !errors.Is(results[2].Err, models.ErrUnsupportedFutureVersion) {
		t.Errorf("err = %v, want ErrUnsupportedFutureVersion", results[2].Err)
	}

	if summary.Total != 4 || summary.Results[models.ResultMigrated] != 1 || summary.Results[models.ResultFailed] != 1 {
		t.Errorf("summary = %+v", summary)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jw.Run(ctx)

	entries := recorder.getCalls()
	if len(entries) != 4 {
		t.Fatalf("journal entries = %d, want 4", len(entries))
	}
	for _, e := range entries {
		if e.RunID != summary.RunID {
			t.Errorf("entry %s run id = %q, want %q", e.Path, e.RunID, summary.RunID)
		}
	}
}

func TestMigrateAll_DryRunLeavesDisk(t *testing.T) {
	dir := t.TempDir()
	content := "!Foo\nId: a\nSerializedVersion: 0\n"
	f := writeAsset(t, dir, "legacy.foo", content)

	svc := NewMigrationService(newMigrator(t), nil, quietLogger(), MigrationOptions{Workers: 1, DryRun: true})

	results, summary, err := svc.MigrateAll(context.Background(), []*asset.File{f}, "core", nil)
	if err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}
	if results[0].Result != models.ResultMigrated {
		t.Errorf("result = %q, want %q", results[0].Result, models.ResultMigrated)
	}
	if results[0].Saved {
		t.Error("dry run saved the file")
	}
	if !summary.DryRun {
		t.Error("summary does not report dry run")
	}
	if got := readFile(t, f.FilePath); got != content {
		t.Errorf("file changed on disk: %q", got)
	}
	if !f.Modified() {
		t.Error("in-memory content was not updated")
	}
}

func TestMigrateAll_CeilingIsPassedThrough(t *testing.T) {
	var seen atomic.Pointer[version.Version]
	m := &mockMigrator{migrate: func(_ *upgrade.MigrationContext, _ *asset.File, _ string, until *version.Version) (migrate.Outcome, error) {
		seen.Store(until)
		return migrate.Outcome{}, nil
	}}

	svc := NewMigrationService(m, nil, quietLogger(), MigrationOptions{Workers: 1})
	until := version.New(1, 0, 0)

	if _, _, err := svc.MigrateAll(context.Background(), []*asset.File{asset.NewMemoryFile("a.foo", nil)}, "core", &until); err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}
	if got := seen.Load(); got == nil || *got != until {
		t.Errorf("until = %v, want %v", got, until)
	}
}

func TestMigrateAll_StopsStartingFilesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &mockMigrator{}
	m.migrate = func(_ *upgrade.MigrationContext, _ *asset.File, _ string, _ *version.Version) (migrate.Outcome, error) {
		if m.calls.Load() == 2 {
			cancel()
		}
		time.Sleep(5 * time.Millisecond)
		return migrate.Outcome{}, nil
	}

	files := make([]*asset.File, 10)
	for i := range files {
		files[i] = asset.NewMemoryFile(filepath.Join("dir", string(rune('a'+i))+".foo"), nil)
	}

	svc := NewMigrationService(m, nil, quietLogger(), MigrationOptions{Workers: 1})
	results, summary, err := svc.MigrateAll(ctx, files, "core", nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := m.calls.Load(); got != 2 {
		t.Errorf("migrations started = %d, want 2", got)
	}
	if len(results) != len(files) {
		t.Fatalf("results = %d, want %d", len(results), len(files))
	}
	for i, r := range results[2:] {
		if r.ErrorKind != "cancelled" || r.Path != files[i+2].FilePath {
			t.Errorf("results[%d] = %+v, want cancelled", i+2, r)
		}
	}
	if summary.Total != len(files) {
		t.Errorf("summary total = %d, want %d", summary.Total, len(files))
	}
}
