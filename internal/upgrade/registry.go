package upgrade

import (
	"fmt"
	"sort"
	"sync"

	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

// Step declares one upgrader range of an asset type.
type Step struct {
	Start    version.Version
	Target   version.Version
	Upgrader Implementation
}

type entry struct {
	versions    map[string]version.Version
	collections map[string]*Collection
}

// Registry maps asset types to the version they are expected at, per
// dependency, and to the collections able to bring older assets there. It is
// filled once at startup and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// RegisterAssetVersion declares that typeID is currently serialized at current
// for dependency, and registers the upgrader steps covering
// [minUpgradable, current). The steps are validated before anything is
// recorded. A type may declare a version without steps; migrating an older
// asset of that type then fails with ErrNoUpgraderPath.
func (r *Registry) RegisterAssetVersion(typeID, dependency string, current, minUpgradable version.Version, steps ...Step) error {
	if typeID == "" || dependency == "" {
		return fmt.Errorf("%w: type and dependency names are required", models.ErrConfiguration)
	}

	var c *Collection
	if len(steps) > 0 {
		c = NewCollection(typeID, dependency, current)
		for _, s := range steps {
			if err := c.RegisterUpgrader(s.Upgrader, s.Start, s.Target); err != nil {
				return err
			}
		}
		if err := c.Validate(minUpgradable); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[typeID]
	if !ok {
		e = &entry{
			versions:    make(map[string]version.Version),
			collections: make(map[string]*Collection),
		}
		r.entries[typeID] = e
	}

	if _, dup := e.versions[dependency]; dup {
		return fmt.Errorf("%w: %s/%s is already registered", models.ErrConfiguration, typeID, dependency)
	}

	e.versions[dependency] = current
	if c != nil {
		e.collections[dependency] = c
	}

	return nil
}

// ExpectedVersions returns a copy of the versions declared by typeID.
func (r *Registry) ExpectedVersions(typeID string) map[string]version.Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[typeID]
	if !ok {
		return map[string]version.Version{}
	}

	out := make(map[string]version.Version, len(e.versions))
	for dep, v := range e.versions {
		out[dep] = v
	}
	return out
}

// ExpectedVersion returns the version typeID declares for dependency, or
// version.Zero.
func (r *Registry) ExpectedVersion(typeID, dependency string) version.Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[typeID]; ok {
		return e.versions[dependency]
	}
	return version.Zero
}

// Collection returns the upgrader collection of typeID for dependency, or nil.
func (r *Registry) Collection(typeID, dependency string) *Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[typeID]; ok {
		return e.collections[dependency]
	}
	return nil
}

// Types returns the registered type ids, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the dependency names typeID declares versions for, sorted.
func (r *Registry) Dependencies(typeID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[typeID]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(e.versions))
	for dep := range e.versions {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}
