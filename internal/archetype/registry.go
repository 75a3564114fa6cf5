package archetype

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is the process-wide, write-once archetype catalog. It is built
// exactly once during startup and exposes no mutation; concurrent readers
// need no locking.
type Registry struct {
	byID    map[string]*Archetype
	ordered []*Archetype
}

// NewRegistry constructs a registry from a set of archetype definitions.
// Construction fails fast on a duplicate type_id or a malformed embedded
// schema so a broken catalog can never serve traffic.
func NewRegistry(archetypes []*Archetype) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Archetype, len(archetypes))}
	for _, a := range archetypes {
		if err := a.check(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[a.TypeID]; dup {
			return nil, fmt.Errorf("duplicate archetype type_id: %s", a.TypeID)
		}
		r.byID[a.TypeID] = a
		r.ordered = append(r.ordered, a)
	}
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].TypeID < r.ordered[j].TypeID })
	return r, nil
}

// catalogFile is the on-disk YAML shape of the archetype catalog.
type catalogFile struct {
	Archetypes []*Archetype `yaml:"archetypes"`
}

// LoadCatalog reads an archetype catalog from a YAML file and constructs the
// registry from it.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archetype catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse archetype catalog YAML: %w", err)
	}
	if len(file.Archetypes) == 0 {
		return nil, fmt.Errorf("archetype catalog %s contains no archetypes", path)
	}
	return NewRegistry(file.Archetypes)
}

// Get looks an archetype up by type_id.
func (r *Registry) Get(typeID string) (*Archetype, bool) {
	a, ok := r.byID[typeID]
	return a, ok
}

// List returns archetypes ordered lexicographically by type_id, optionally
// filtered by kind (empty kind means all).
func (r *Registry) List(kind Kind) []*Archetype {
	if kind == "" {
		out := make([]*Archetype, len(r.ordered))
		copy(out, r.ordered)
		return out
	}
	var out []*Archetype
	for _, a := range r.ordered {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Len reports the number of archetypes in the catalog.
func (r *Registry) Len() int { return len(r.ordered) }
