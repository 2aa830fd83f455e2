// Package registry provides the deduplicating class store of one release epoch.
//
// A Registry maps class names to their single canonical *model.Class. Callers
// hold class pointers only within the epoch that produced them: Reset starts
// a new epoch with a brand-new store, so classes handed out before the reset
// are orphaned rather than silently shared with the next release.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gofhir/typegraph/pkg/model"
)

type store struct {
	epoch  uuid.UUID
	byName map[string]*model.Class
	order  []string
	sealed bool
}

func newStore() *store {
	return &store{
		epoch:  uuid.New(),
		byName: make(map[string]*model.Class),
	}
}

// Registry holds the classes of the current epoch indexed by name.
type Registry struct {
	mu sync.RWMutex
	st *store
}

// New creates an empty Registry with a fresh epoch.
func New() *Registry {
	return &Registry{st: newStore()}
}

// Reset discards every class and starts a new epoch.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st = newStore()
}

// Epoch returns the identifier of the current epoch.
func (r *Registry) Epoch() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.epoch
}

// Owns reports whether c belongs to the current epoch.
func (r *Registry) Owns(c *model.Class) bool {
	if c == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return c.Epoch == r.st.epoch && r.st.byName[c.Name] == c
}

// GetOrCreate returns the canonical class for name, creating a placeholder of
// kind Other when it has not been seen in this epoch. It panics on a sealed
// registry.
func (r *Registry) GetOrCreate(name string) *model.Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(name)
}

func (r *Registry) getOrCreateLocked(name string) *model.Class {
	if c, ok := r.st.byName[name]; ok {
		return c
	}
	if r.st.sealed {
		panic(fmt.Sprintf("registry: GetOrCreate(%q) on a sealed registry", name))
	}
	c := &model.Class{Name: name, Kind: model.KindOther, Epoch: r.st.epoch}
	r.st.byName[name] = c
	r.st.order = append(r.st.order, name)
	return c
}

// Register merges a fragment-derived class into the canonical entity of the
// same name and returns the canonical entity.
//
// Scalar fields are taken from result when set. Properties are merged by
// name: a property already present is replaced in place, new ones are
// appended in result's order.
func (r *Registry) Register(result *model.Class) *model.Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := r.getOrCreateLocked(result.Name)
	if canonical == result {
		canonical.MarkDefined()
		return canonical
	}

	if canonical.IsPlaceholder() || result.Kind != model.KindOther {
		canonical.Kind = result.Kind
	}
	if result.Superclass != "" {
		canonical.Superclass = result.Superclass
	}
	if result.SourceURL != "" {
		canonical.SourceURL = result.SourceURL
	}
	if result.Short != "" {
		canonical.Short = result.Short
	}
	if result.Definition != "" {
		canonical.Definition = result.Definition
	}
	canonical.Abstract = canonical.Abstract || result.Abstract
	for _, p := range result.Properties {
		canonical.AddProperty(p)
	}
	canonical.MarkDefined()
	return canonical
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*model.Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.st.byName[name]
	return c, ok
}

// IsDefined reports whether name is registered and not a placeholder.
func (r *Registry) IsDefined(name string) bool {
	c, ok := r.Lookup(name)
	return ok && !c.IsPlaceholder()
}

// All returns a snapshot of every class, sorted by name.
func (r *Registry) All() []*model.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Class, 0, len(r.st.byName))
	for _, c := range r.st.byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OfKind returns the classes whose kind is one of kinds, sorted by name.
func (r *Registry) OfKind(kinds ...model.ClassKind) []*model.Class {
	want := make(map[model.ClassKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*model.Class
	for _, c := range r.All() {
		if want[c.Kind] {
			out = append(out, c)
		}
	}
	return out
}

// Placeholders returns the names of classes that were referenced but never
// defined, in first-reference order.
func (r *Registry) Placeholders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.st.order {
		if r.st.byName[name].IsPlaceholder() {
			out = append(out, name)
		}
	}
	return out
}

// Count returns the number of registered classes, placeholders included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.st.byName)
}

// Seal forbids creating new classes for the rest of the epoch.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.sealed = true
}

// Sealed reports whether the current epoch is sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.sealed
}
