// Package catalog loads a declarative description of asset types, their
// serialized versions and the field operations that upgrade them, and
// registers it with the migration registry.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

// Catalog is the decoded catalog file.
type Catalog struct {
	Extensions Extensions `yaml:"extensions"`
	Types      []Type     `yaml:"types"`
}

// Extensions lists file extensions by serializer kind.
type Extensions struct {
	Document []string `yaml:"document"`
	Raw      []string `yaml:"raw"`
}

// Type declares one asset type.
type Type struct {
	ID       string                `yaml:"id"`
	Tags     []string              `yaml:"tags"`
	Versions map[string]Dependency `yaml:"versions"`
}

// Dependency declares the version lineage of a type for one dependency.
type Dependency struct {
	Current string `yaml:"current"`
	Min     string `yaml:"min"`
	Steps   []Step `yaml:"steps"`
}

// Step upgrades [From, To) by applying Ops in order.
type Step struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Ops  []Op   `yaml:"ops"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool, len(c.Types))
	for _, t := range c.Types {
		if t.ID == "" {
			return fmt.Errorf("%w: type without id", models.ErrConfiguration)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: type %s declared twice", models.ErrConfiguration, t.ID)
		}
		seen[t.ID] = true

		for dep, d := range t.Versions {
			for i, s := range d.Steps {
				for j, op := range s.Ops {
					if err := op.validate(); err != nil {
						return fmt.Errorf("%w: %s/%s step %d op %d: %v", models.ErrConfiguration, t.ID, dep, i, j, err)
					}
				}
			}
		}
	}
	return nil
}

// Apply registers the catalog's extensions, tags, versions and upgraders.
func (c *Catalog) Apply(reg *upgrade.Registry, types *asset.Types, serializers *asset.Serializers) error {
	for _, ext := range c.Extensions.Document {
		serializers.Register(ext, asset.SerializerDocument)
	}
	for _, ext := range c.Extensions.Raw {
		serializers.Register(ext, asset.SerializerRaw)
	}

	for _, t := range c.Types {
		types.Register(t.ID, t.Tags...)

		for _, dep := range sortedKeys(t.Versions) {
			d := t.Versions[dep]
			current, err := parseVersion(t.ID, dep, "current", d.Current)
			if err != nil {
				return err
			}
			minUpgradable := version.Zero
			if d.Min != "" {
				if minUpgradable, err = parseVersion(t.ID, dep, "min", d.Min); err != nil {
					return err
				}
			}

			steps := make([]upgrade.Step, 0, len(d.Steps))
			for _, s := range d.Steps {
				from, err := parseVersion(t.ID, dep, "from", s.From)
				if err != nil {
					return err
				}
				to, err := parseVersion(t.ID, dep, "to", s.To)
				if err != nil {
					return err
				}
				steps = append(steps, upgrade.Step{Start: from, Target: to, Upgrader: implementation(t.ID, dep, from, to, s.Ops)})
			}

			if err := reg.RegisterAssetVersion(t.ID, dep, current, minUpgradable, steps...); err != nil {
				return err
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]Dependency) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseVersion(typeID, dep, field, text string) (version.Version, error) {
	v, err := version.Parse(text)
	if err != nil {
		return version.Zero, fmt.Errorf("%w: %s/%s %s: %v", models.ErrConfiguration, typeID, dep, field, err)
	}
	return v, nil
}

// implementation turns a step's operations into an upgrader applied through
// upgrade.Base. Steps without operations only bump the version.
func implementation(typeID, dep string, from, to version.Version, ops []Op) upgrade.Implementation {
	if len(ops) == 0 {
		return upgrade.Empty
	}

	id := fmt.Sprintf("%s/%s/%s-%s", typeID, dep, from, to)
	return upgrade.Implementation{
		ID: id,
		New: func() upgrade.Upgrader {
			return upgrade.Base{Asset: opsUpgrader{id: id, ops: ops}}
		},
	}
}
