package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

// Operation names.
const (
	OpSet    = "set"
	OpRename = "rename"
	OpRemove = "remove"
	OpMove   = "move"
)

// Op is one field operation. Field is a dot-separated path from the asset
// root. Hints, when set, limits the operation to asset copies with one of the
// listed override hints (unknown, derived, base).
type Op struct {
	Op    string    `yaml:"op"`
	Field string    `yaml:"field"`
	To    string    `yaml:"to"`
	Index *int      `yaml:"index"`
	Value yaml.Node `yaml:"value"`
	Hints []string  `yaml:"hints"`
}

func (o Op) validate() error {
	if o.Field == "" {
		return errors.New("field is required")
	}
	for _, part := range strings.Split(o.Field, ".") {
		if part == "" {
			return fmt.Errorf("field %q has an empty path segment", o.Field)
		}
	}
	for _, h := range o.Hints {
		switch h {
		case models.HintUnknown.String(), models.HintDerived.String(), models.HintBase.String():
		default:
			return fmt.Errorf("unknown hint %q", h)
		}
	}

	switch o.Op {
	case OpSet:
		if o.Value.Kind == 0 {
			return errors.New("set requires a value")
		}
	case OpRename:
		if o.To == "" || strings.Contains(o.To, ".") {
			return errors.New("rename requires a plain target name in to")
		}
	case OpRemove:
	case OpMove:
		if o.Index == nil || *o.Index < 0 {
			return errors.New("move requires a non-negative index")
		}
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	return nil
}

func (o Op) appliesTo(hint models.OverrideHint) bool {
	if len(o.Hints) == 0 {
		return true
	}
	for _, h := range o.Hints {
		if h == hint.String() {
			return true
		}
	}
	return false
}

// apply runs the operation on node and reports whether it changed anything.
// Missing fields are not an error for rename, remove and move; set creates
// intermediate mappings but never replaces a non-null scalar on the path.
func (o Op) apply(node *document.Node) bool {
	path := strings.Split(o.Field, ".")
	parent := node
	for _, name := range path[:len(path)-1] {
		child := parent.Child(name)
		if child == nil {
			if o.Op != OpSet {
				return false
			}
			if !parent.IsMapping() && !parent.IsNull() {
				return false
			}
			child = document.NewMapping()
			parent.Set(name, child)
		}
		parent = child
	}
	name := path[len(path)-1]

	switch o.Op {
	case OpSet:
		if !parent.IsMapping() && !parent.IsNull() {
			return false
		}
		parent.Set(name, document.Wrap(&o.Value).Clone())
		return true
	case OpRename:
		return parent.Rename(name, o.To)
	case OpRemove:
		return parent.Remove(name)
	case OpMove:
		return parent.MoveToIndex(name, *o.Index)
	}
	return false
}

// opsUpgrader applies catalog operations to every asset copy.
type opsUpgrader struct {
	id  string
	ops []Op
}

func (u opsUpgrader) UpgradeAsset(mc *upgrade.MigrationContext, current, target version.Version, node *document.Node, _ *asset.File, hint models.OverrideHint) error {
	log := mc.Logger()
	for _, op := range u.ops {
		if !op.appliesTo(hint) {
			continue
		}
		changed := op.apply(node)
		log.WithFields(logrus.Fields{
			"upgrader": u.id,
			"op":       op.Op,
			"field":    op.Field,
			"hint":     hint.String(),
			"changed":  changed,
			"step_to":  target.String(),
		}).Debug("catalog op applied")
	}
	return nil
}
