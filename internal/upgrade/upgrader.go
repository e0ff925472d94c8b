// Package upgrade holds the upgrader contract, the per-type upgrader
// collections with their version range tables, and the registry that maps
// asset types to expected versions and collections.
package upgrade

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

// MigrationContext carries what an upgrader may need beyond the document.
type MigrationContext struct {
	// Log receives upgrader diagnostics.
	Log logrus.FieldLogger
	// Package names the package the asset belongs to, if known.
	Package string
}

// Logger returns mc.Log, or a discarding logger.
func (mc *MigrationContext) Logger() logrus.FieldLogger {
	if mc == nil || mc.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		return l
	}
	return mc.Log
}

// Upgrader performs one upgrade step on a whole asset document and records
// target as the document's serialized version for dependency.
type Upgrader interface {
	Upgrade(mc *MigrationContext, dependency string, current, target version.Version, root *document.Node, file *asset.File) error
}

// AssetUpgrader transforms a single asset node. It is called once for the
// root and once for every embedded base copy.
type AssetUpgrader interface {
	UpgradeAsset(mc *MigrationContext, current, target version.Version, node *document.Node, file *asset.File, hint models.OverrideHint) error
}

// AssetUpgraderFunc adapts a function to AssetUpgrader.
type AssetUpgraderFunc func(mc *MigrationContext, current, target version.Version, node *document.Node, file *asset.File, hint models.OverrideHint) error

// UpgradeAsset calls f.
func (f AssetUpgraderFunc) UpgradeAsset(mc *MigrationContext, current, target version.Version, node *document.Node, file *asset.File, hint models.OverrideHint) error {
	return f(mc, current, target, node, file, hint)
}

// Base turns an AssetUpgrader into an Upgrader. It applies the transform to the
// root, then to the copy under ~Base.Asset and to each ~BaseParts[*].Asset,
// keeping every copy at the same serialized version.
type Base struct {
	Asset AssetUpgrader
}

// Upgrade implements Upgrader.
func (b Base) Upgrade(mc *MigrationContext, dependency string, current, target version.Version, root *document.Node, file *asset.File) error {
	hint := models.HintUnknown
	if asset.HasBase(root) {
		hint = models.HintDerived
	}

	if err := b.upgradeOne(mc, dependency, current, target, root, file, hint); err != nil {
		return err
	}

	if base := asset.BaseAsset(root); base != nil {
		if err := b.upgradeOne(mc, dependency, current, target, base, file, models.HintBase); err != nil {
			return err
		}
	}

	for _, part := range asset.BasePartAssets(root) {
		if err := b.upgradeOne(mc, dependency, current, target, part, file, models.HintBase); err != nil {
			return err
		}
	}

	return nil
}

func (b Base) upgradeOne(mc *MigrationContext, dependency string, current, target version.Version, node *document.Node, file *asset.File, hint models.OverrideHint) error {
	if err := b.Asset.UpgradeAsset(mc, current, target, node, file, hint); err != nil {
		return err
	}
	asset.SetSerializedVersion(node, dependency, target)
	return nil
}

// Factory constructs an upgrader instance.
type Factory func() Upgrader

// Implementation names an upgrader implementation and how to build it.
type Implementation struct {
	ID  string
	New Factory
}

// Empty only bumps the serialized version.
var Empty = Implementation{
	ID: "empty",
	New: func() Upgrader {
		return Base{Asset: AssetUpgraderFunc(func(*MigrationContext, version.Version, version.Version, *document.Node, *asset.File, models.OverrideHint) error {
			return nil
		})}
	},
}
