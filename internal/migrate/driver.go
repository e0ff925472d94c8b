// Package migrate brings asset documents up to the serialized version their
// type expects, one registered upgrader step at a time.
package migrate

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/metrics"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

// versionRegistry is the subset of upgrade.Registry the driver reads.
type versionRegistry interface {
	ExpectedVersion(typeID, dependency string) version.Version
	Collection(typeID, dependency string) *upgrade.Collection
}

type typeResolver interface {
	ResolveType(tag string) (string, bool)
}

type serializerTable interface {
	IsDocument(ext string) bool
}

// Outcome describes one migration check.
type Outcome struct {
	Type     string
	From     version.Version
	To       version.Version
	Expected version.Version
	Steps    int
	Migrated bool
}

// Result labels the outcome, given the error the check returned.
func (o Outcome) Result(err error) string {
	switch {
	case err != nil:
		return models.ResultFailed
	case o.Migrated:
		return models.ResultMigrated
	case o.Type == "":
		return models.ResultSkipped
	case o.From == o.Expected:
		return models.ResultUpToDate
	}
	return models.ResultUnchanged
}

// Migrator runs migrations against a registry. It holds no per-asset state
// and may be shared by concurrent callers, each migrating its own file.
type Migrator struct {
	registry    versionRegistry
	types       typeResolver
	serializers serializerTable
	log         *logrus.Logger
}

// New creates a Migrator.
func New(registry versionRegistry, types typeResolver, serializers serializerTable, log *logrus.Logger) *Migrator {
	return &Migrator{
		registry:    registry,
		types:       types,
		serializers: serializers,
		log:         log,
	}
}

// MigrateIfNeeded upgrades file to the version its type expects for
// dependency and reports whether the document was changed by an upgrader.
func (m *Migrator) MigrateIfNeeded(mc *upgrade.MigrationContext, file *asset.File, dependency string) (bool, error) {
	out, err := m.Migrate(mc, file, dependency, nil)
	return out.Migrated, err
}

// MigrateUntil is MigrateIfNeeded with a ceiling: steps whose target lies
// past until are not applied, and stopping short is not an error.
func (m *Migrator) MigrateUntil(mc *upgrade.MigrationContext, file *asset.File, dependency string, until version.Version) (bool, error) {
	out, err := m.Migrate(mc, file, dependency, &until)
	return out.Migrated, err
}

// Migrate performs one migration check and returns what happened. A nil until
// migrates all the way to the expected version.
func (m *Migrator) Migrate(mc *upgrade.MigrationContext, file *asset.File, dependency string, until *version.Version) (Outcome, error) {
	start := time.Now()

	out, err := m.migrate(mc, file, dependency, until)

	typeLabel := out.Type
	if typeLabel == "" {
		typeLabel = "unknown"
	}

	result := out.Result(err)
	metrics.MigrationsTotal.WithLabelValues(typeLabel, dependency, result).Inc()

	switch result {
	case models.ResultFailed:
		metrics.ErrorsTotal.WithLabelValues(models.ErrorKind(err)).Inc()
	case models.ResultMigrated:
		metrics.UpgradeStepsTotal.WithLabelValues(typeLabel, dependency).Add(float64(out.Steps))
		metrics.MigrationDuration.WithLabelValues(dependency).Observe(time.Since(start).Seconds())
	}

	return out, err
}

func (m *Migrator) migrate(mc *upgrade.MigrationContext, file *asset.File, dependency string, until *version.Version) (Outcome, error) {
	if !m.serializers.IsDocument(file.Ext()) {
		return Outcome{}, nil
	}

	h, err := readFileHeader(file, dependency)
	if err != nil {
		return Outcome{}, err
	}

	typeID, ok := m.types.ResolveType(h.Tag)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s has tag %q", models.ErrUnknownAssetType, file.FilePath, h.Tag)
	}

	expected := m.registry.ExpectedVersion(typeID, dependency)
	out := Outcome{Type: typeID, From: h.Version, To: h.Version, Expected: expected}

	fields := logrus.Fields{
		"path":       file.FilePath,
		"type":       typeID,
		"dependency": dependency,
		"from":       h.Version.String(),
		"expected":   expected.String(),
	}
	if until != nil {
		fields["until"] = until.String()
	}
	log := m.log.WithFields(fields)

	if h.Version.Greater(expected) {
		return out, fmt.Errorf("%w: %s is at %s[%s] %s, this build supports up to %s",
			models.ErrUnsupportedFutureVersion, file.FilePath, typeID, dependency, h.Version, expected)
	}
	if h.Version == expected {
		log.Debug("asset is up to date")
		return out, nil
	}

	c := m.registry.Collection(typeID, dependency)
	if c == nil {
		return out, fmt.Errorf("%w: %s[%s] expects %s but has no upgraders", models.ErrNoUpgraderPath, typeID, dependency, expected)
	}

	editor, err := file.Edit()
	if err != nil {
		return out, err
	}
	root := editor.Root()

	if mc == nil {
		mc = &upgrade.MigrationContext{}
	}
	if mc.Log == nil {
		mc = &upgrade.MigrationContext{Log: log, Package: mc.Package}
	}

	current := h.Version
	for current != expected {
		u, target, err := c.Upgrader(current)
		if err != nil {
			return out, err
		}
		if until != nil && target.Greater(*until) {
			log.WithField("next", target.String()).Debug("ceiling reached")
			break
		}

		if err := u.Upgrade(mc, dependency, current, target, root, file); err != nil {
			return out, fmt.Errorf("upgrading %s from %s to %s: %w", file.FilePath, current, target, err)
		}
		log.WithFields(logrus.Fields{"step_from": current.String(), "step_to": target.String()}).Debug("upgrader applied")

		current = target
		out.Steps++
	}

	// A ceiling below the first step leaves the document untouched, so
	// nothing is committed and the asset is reported as not migrated.
	if out.Steps == 0 {
		return out, nil
	}

	got, _, err := asset.SerializedVersion(root, dependency)
	if err != nil {
		return out, err
	}
	if until == nil && got != expected {
		return out, fmt.Errorf("%w: %s ended at %s[%s] %s, expected %s",
			models.ErrIncompleteMigration, file.FilePath, typeID, dependency, got, expected)
	}

	if err := editor.Commit(); err != nil {
		return out, err
	}

	out.To = got
	out.Migrated = true
	log.WithField("to", got.String()).Debug("asset migrated")

	return out, nil
}

// Inspection is a read-only view of an asset's migration state.
type Inspection struct {
	Tag      string
	ID       string
	Type     string
	Version  version.Version
	Expected version.Version
	Legacy   bool
}

// NeedsMigration reports whether the asset is behind its expected version.
func (i Inspection) NeedsMigration() bool {
	return i.Type != "" && (i.Version.Less(i.Expected) || i.Legacy)
}

// Inspect reads the header of file without changing it. Raw assets yield a
// zero Inspection.
func (m *Migrator) Inspect(file *asset.File, dependency string) (Inspection, error) {
	if !m.serializers.IsDocument(file.Ext()) {
		return Inspection{}, nil
	}

	r, err := file.Open()
	if err != nil {
		return Inspection{}, err
	}
	defer r.Close()

	h, err := ReadHeader(r, dependency)
	if err != nil {
		return Inspection{}, fmt.Errorf("reading header of %s: %w", file.FilePath, err)
	}

	in := Inspection{Tag: h.Tag, ID: h.ID, Version: h.Version, Legacy: h.Legacy}
	typeID, ok := m.types.ResolveType(h.Tag)
	if !ok {
		return in, fmt.Errorf("%w: %s has tag %q", models.ErrUnknownAssetType, file.FilePath, h.Tag)
	}
	in.Type = typeID
	in.Expected = m.registry.ExpectedVersion(typeID, dependency)

	return in, nil
}
