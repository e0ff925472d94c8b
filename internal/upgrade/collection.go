package upgrade

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

// Range maps the versions [Min, Target) to the upgrader that lifts them to Target.
type Range struct {
	Min            version.Version
	Target         version.Version
	Implementation string
}

// Contains reports whether v lies in [Min, Target).
func (r Range) Contains(v version.Version) bool {
	return r.Min.LessOrEqual(v) && v.Less(r.Target)
}

// Overlaps reports whether r and o share any version.
func (r Range) Overlaps(o Range) bool {
	return r.Min.Less(o.Target) && o.Min.Less(r.Target)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s) -> %s", r.Min, r.Target, r.Implementation)
}

// Collection holds the upgrade path of one asset type for one dependency.
// Ranges are kept sorted by Min and never overlap. Upgrader instances are
// built on first use and shared afterwards.
type Collection struct {
	typeID     string
	dependency string
	current    version.Version

	mu        sync.RWMutex
	ranges    []Range
	factories map[string]Factory

	group     singleflight.Group
	instances sync.Map
}

// NewCollection returns an empty collection whose upgrade path ends at current.
func NewCollection(typeID, dependency string, current version.Version) *Collection {
	return &Collection{
		typeID:     typeID,
		dependency: dependency,
		current:    current,
		factories:  make(map[string]Factory),
	}
}

func (c *Collection) TypeID() string                  { return c.typeID }
func (c *Collection) Dependency() string              { return c.dependency }
func (c *Collection) CurrentVersion() version.Version { return c.current }

// Ranges returns a copy of the range table in ascending order.
func (c *Collection) Ranges() []Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Range(nil), c.ranges...)
}

// RegisterUpgrader adds the range [start, target) served by impl. The range
// may not be empty, may not aim past the current version and may not overlap
// a registered range.
func (c *Collection) RegisterUpgrader(impl Implementation, start, target version.Version) error {
	if impl.ID == "" || impl.New == nil {
		return fmt.Errorf("%w: %s/%s: upgrader for [%s, %s) has no implementation", models.ErrConfiguration, c.typeID, c.dependency, start, target)
	}
	if !start.Less(target) {
		return fmt.Errorf("%w: %s/%s: upgrader %s range [%s, %s) is empty", models.ErrConfiguration, c.typeID, c.dependency, impl.ID, start, target)
	}
	if target.Greater(c.current) {
		return fmt.Errorf("%w: %s/%s: upgrader %s targets %s past current version %s", models.ErrConfiguration, c.typeID, c.dependency, impl.ID, target, c.current)
	}

	r := Range{Min: start, Target: target, Implementation: impl.ID}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.ranges {
		if existing.Overlaps(r) {
			return fmt.Errorf("%w: %s/%s: upgrader range %s overlaps %s", models.ErrConfiguration, c.typeID, c.dependency, r, existing)
		}
	}

	i := sort.Search(len(c.ranges), func(i int) bool { return c.ranges[i].Min.Greater(start) })
	c.ranges = append(c.ranges, Range{})
	copy(c.ranges[i+1:], c.ranges[i:])
	c.ranges[i] = r

	if _, ok := c.factories[impl.ID]; !ok {
		c.factories[impl.ID] = impl.New
	}

	return nil
}

// Validate walks the table from minUpgradable and fails unless the walk
// reaches the current version without a gap.
func (c *Collection) Validate(minUpgradable version.Version) error {
	if minUpgradable.Greater(c.current) {
		return fmt.Errorf("%w: %s/%s: minimum upgradable version %s is past current version %s", models.ErrConfiguration, c.typeID, c.dependency, minUpgradable, c.current)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for v := minUpgradable; v != c.current; {
		r, ok := c.find(v)
		if !ok {
			return fmt.Errorf("%w: %s/%s: no upgrader allows reaching current version %s from %s (stuck at %s)", models.ErrConfiguration, c.typeID, c.dependency, c.current, minUpgradable, v)
		}
		v = r.Target
	}

	return nil
}

// Upgrader returns the upgrader whose range contains initial and the version
// it upgrades to.
func (c *Collection) Upgrader(initial version.Version) (Upgrader, version.Version, error) {
	c.mu.RLock()
	r, ok := c.find(initial)
	factory := c.factories[r.Implementation]
	c.mu.RUnlock()

	if !ok {
		return nil, version.Zero, fmt.Errorf("%w: %s/%s has no upgrader for version %s", models.ErrUpgraderNotFound, c.typeID, c.dependency, initial)
	}

	u, err := c.instance(r.Implementation, factory)
	if err != nil {
		return nil, version.Zero, err
	}

	return u, r.Target, nil
}

// instance returns the shared upgrader for id, constructing it once.
func (c *Collection) instance(id string, factory Factory) (Upgrader, error) {
	if u, ok := c.instances.Load(id); ok {
		return u.(Upgrader), nil
	}

	val, err, _ := c.group.Do(id, func() (any, error) {
		// Double-check after winning the singleflight race.
		if u, ok := c.instances.Load(id); ok {
			return u, nil
		}

		u := factory()
		if u == nil {
			return nil, fmt.Errorf("%w: %s/%s: upgrader %s factory returned nil", models.ErrConfiguration, c.typeID, c.dependency, id)
		}

		c.instances.Store(id, u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	u, ok := val.(Upgrader)
	if !ok {
		return nil, fmt.Errorf("upgrade: unexpected singleflight result type %T", val)
	}

	return u, nil
}

// find returns the range containing v. Callers hold c.mu.
func (c *Collection) find(v version.Version) (Range, bool) {
	i := sort.Search(len(c.ranges), func(i int) bool { return c.ranges[i].Min.Greater(v) }) - 1
	if i >= 0 && c.ranges[i].Contains(v) {
		return c.ranges[i], true
	}
	return Range{}, false
}
