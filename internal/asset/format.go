// Package asset models asset files awaiting migration and the document shape
// shared by every asset: Id, SerializedVersion and the embedded base copies.
package asset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

// Well-known top-level keys of an asset document.
const (
	KeyID                = "Id"
	KeySerializedVersion = "SerializedVersion"
	KeyBase              = "~Base"
	KeyBaseParts         = "~BaseParts"
	KeyAsset             = "Asset"
)

// SerializedVersion returns the version node records for dependency. The
// boolean is false when nothing is recorded. A legacy integer field is
// reported as 0.0.n regardless of dependency.
func SerializedVersion(node *document.Node, dependency string) (version.Version, bool, error) {
	sv := node.Child(KeySerializedVersion)
	if sv == nil || sv.IsNull() {
		return version.Zero, false, nil
	}

	if text, ok := sv.Scalar(); ok {
		v, err := ParseLegacy(text)
		if err != nil {
			return version.Zero, false, err
		}
		return v, true, nil
	}

	if !sv.IsMapping() {
		return version.Zero, false, fmt.Errorf("%w: %s is neither a mapping nor a number", models.ErrParse, KeySerializedVersion)
	}

	entry := sv.Child(dependency)
	if entry == nil {
		return version.Zero, false, nil
	}

	text, ok := entry.Scalar()
	if !ok {
		return version.Zero, false, fmt.Errorf("%w: %s[%s] is not a scalar", models.ErrParse, KeySerializedVersion, dependency)
	}

	v, err := version.Parse(text)
	if err != nil {
		return version.Zero, false, fmt.Errorf("%w: %s[%s]: %v", models.ErrParse, KeySerializedVersion, dependency, err)
	}

	return v, true, nil
}

// SetSerializedVersion records v for dependency, creating the mapping directly
// after Id when the field is missing or still in legacy form.
func SetSerializedVersion(node *document.Node, dependency string, v version.Version) {
	sv := node.Child(KeySerializedVersion)
	if sv != nil && sv.IsMapping() {
		sv.SetScalar(dependency, v.String())
		return
	}

	m := document.NewFlowMapping()
	m.SetScalar(dependency, v.String())
	node.InsertAfter(KeyID, KeySerializedVersion, m)
}

// ParseLegacy reads the single integer older serializers wrote.
func ParseLegacy(text string) (version.Version, error) {
	text = strings.TrimSpace(text)
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 || strings.HasPrefix(text, "+") {
		return version.Zero, fmt.Errorf("%w: legacy %s %q is not a non-negative integer", models.ErrParse, KeySerializedVersion, text)
	}
	return version.Legacy(n), nil
}

// BaseAsset returns the asset copy embedded under ~Base, or nil.
func BaseAsset(root *document.Node) *document.Node {
	base := root.Child(KeyBase)
	if base == nil || !base.IsMapping() {
		return nil
	}
	return mappingChild(base, KeyAsset)
}

// BasePartAssets returns the asset copies embedded under each ~BaseParts item.
func BasePartAssets(root *document.Node) []*document.Node {
	parts := root.Child(KeyBaseParts)
	if parts == nil {
		return nil
	}

	var out []*document.Node
	for _, item := range parts.Items() {
		if a := mappingChild(item, KeyAsset); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// HasBase reports whether root embeds a base or base parts.
func HasBase(root *document.Node) bool {
	if base := root.Child(KeyBase); base != nil && !base.IsNull() && base.Len() > 0 {
		return true
	}
	parts := root.Child(KeyBaseParts)
	return parts != nil && parts.IsSequence() && parts.Len() > 0
}

func mappingChild(n *document.Node, name string) *document.Node {
	c := n.Child(name)
	if c == nil || !c.IsMapping() {
		return nil
	}
	return c
}
