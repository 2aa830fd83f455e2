package compiler

import (
	"sort"

	"github.com/google/uuid"

	"github.com/gofhir/typegraph/pkg/issue"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/model"
	"github.com/gofhir/typegraph/pkg/valueset"
)

// Graph is the compiled, read-only type graph of one release.
type Graph struct {
	Release string
	Epoch   uuid.UUID

	// Classes holds every registered class, sorted by name.
	Classes []*model.Class
	// Profiles holds manual profiles first, then one profile per
	// StructureDefinition in URL order.
	Profiles    []*model.Profile
	ValueSets   []*valueset.ValueSet
	CodeSystems []*valueset.CodeSystem
	// Issues holds the non-fatal findings of the compilation.
	Issues []issue.Issue

	classes     map[string]*model.Class
	profiles    map[string]*model.Profile
	terminology *valueset.Result
}

func newGraph(release string, epoch uuid.UUID, classes []*model.Class, profiles []*model.Profile, terms *valueset.Result) *Graph {
	g := &Graph{
		Release:     release,
		Epoch:       epoch,
		Classes:     classes,
		Profiles:    profiles,
		ValueSets:   terms.ValueSets,
		CodeSystems: terms.CodeSystems,
		classes:     make(map[string]*model.Class, len(classes)),
		profiles:    make(map[string]*model.Profile, len(profiles)),
		terminology: terms,
	}
	for _, c := range classes {
		g.classes[c.Name] = c
	}
	for _, p := range profiles {
		if _, ok := g.profiles[p.TargetName]; !ok {
			g.profiles[p.TargetName] = p
		}
	}
	return g
}

// Class returns the class with the given name.
func (g *Graph) Class(name string) (*model.Class, bool) {
	c, ok := g.classes[name]
	return c, ok
}

// ClassesOfKind returns the classes of the given kinds, sorted by name.
// Renderers use it to emit shared support files once per release.
func (g *Graph) ClassesOfKind(kinds ...model.ClassKind) []*model.Class {
	want := make(map[model.ClassKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*model.Class
	for _, c := range g.Classes {
		if want[c.Kind] {
			out = append(out, c)
		}
	}
	return out
}

// Profile returns the profile with the given target name.
func (g *Graph) Profile(targetName string) (*model.Profile, bool) {
	p, ok := g.profiles[targetName]
	return p, ok
}

// WritableProfiles returns the profiles with at least one emittable class,
// sorted by target name. Skipped profiles that carry a URL are logged; manual
// profiles usually write no classes and are skipped silently.
func (g *Graph) WritableProfiles() []*model.Profile {
	var out []*model.Profile
	for _, p := range g.Profiles {
		if len(p.EmittableClasses()) == 0 {
			if p.URL != "" {
				logger.Debug("profile %q returns zero writable classes, skipping", p.TargetName)
			}
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetName < out[j].TargetName })
	return out
}

// ValueSetFor returns the compiled value set bound to p.
func (g *Graph) ValueSetFor(p *model.Property) (*valueset.ValueSet, bool) {
	if p.Binding == nil || p.Binding.ValueSet == "" {
		return nil, false
	}
	return g.terminology.ValueSet(p.Binding.ValueSet)
}

// CodeSystem returns the compiled code system with the given canonical.
func (g *Graph) CodeSystem(url string) (*valueset.CodeSystem, bool) {
	return g.terminology.CodeSystem(url)
}
