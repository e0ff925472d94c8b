package asset

import (
	"sort"
	"strings"
	"sync"
)

// SerializerKind says how files with a given extension are stored.
type SerializerKind int

const (
	// SerializerUnknown is returned for unregistered extensions.
	SerializerUnknown SerializerKind = iota
	// SerializerDocument stores assets as tagged YAML documents.
	SerializerDocument
	// SerializerRaw stores opaque content that is never migrated.
	SerializerRaw
)

func (k SerializerKind) String() string {
	switch k {
	case SerializerDocument:
		return "document"
	case SerializerRaw:
		return "raw"
	}
	return "unknown"
}

// Serializers maps file extensions to serializer kinds.
type Serializers struct {
	mu    sync.RWMutex
	kinds map[string]SerializerKind
}

// NewSerializers returns an empty table.
func NewSerializers() *Serializers {
	return &Serializers{kinds: make(map[string]SerializerKind)}
}

// Register associates ext (with or without leading dot) with kind.
func (s *Serializers) Register(ext string, kind SerializerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[normalizeExt(ext)] = kind
}

// Kind returns the serializer kind registered for ext.
func (s *Serializers) Kind(ext string) SerializerKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kinds[normalizeExt(ext)]
}

// IsDocument reports whether ext is stored as a document.
func (s *Serializers) IsDocument(ext string) bool {
	return s.Kind(ext) == SerializerDocument
}

// Extensions returns the registered extensions of the given kind, sorted.
func (s *Serializers) Extensions(kind SerializerKind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for ext, k := range s.kinds {
		if k == kind {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Types resolves document tags to asset type identifiers.
type Types struct {
	mu    sync.RWMutex
	byTag map[string]string
}

// NewTypes returns an empty resolver.
func NewTypes() *Types {
	return &Types{byTag: make(map[string]string)}
}

// Register maps each tag, and the type id itself, to typeID.
func (t *Types) Register(typeID string, tags ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byTag[normalizeTag(typeID)] = typeID
	for _, tag := range tags {
		t.byTag[normalizeTag(tag)] = typeID
	}
}

// ResolveType returns the type registered for tag.
func (t *Types) ResolveType(tag string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	typeID, ok := t.byTag[normalizeTag(tag)]
	return typeID, ok
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "!")
}
