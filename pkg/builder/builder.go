// Package builder turns one StructureDefinition into the classes it declares.
package builder

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/issue"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/model"
	"github.com/gofhir/typegraph/pkg/property"
	"github.com/gofhir/typegraph/pkg/registry"
)

// Backbone element types. An element of one of these types that has child
// elements declares a nested class.
const (
	TypeBackboneElement = "BackboneElement"
	TypeElement         = "Element"
)

// Builder builds classes into the registry of the current epoch.
type Builder struct {
	registry *registry.Registry
	resolver *property.Resolver
	urls     map[string]string
	issues   *issue.List
	log      zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for per-element detail.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithIssues sets the list receiving skipped-element findings.
func WithIssues(l *issue.List) Option {
	return func(b *Builder) { b.issues = l }
}

// New creates a Builder.
func New(reg *registry.Registry, resolver *property.Resolver, opts ...Option) *Builder {
	b := &Builder{
		registry: reg,
		resolver: resolver,
		urls:     make(map[string]string),
		issues:   issue.NewList(),
		log:      logger.Z(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IndexURLs records the class name each definition will produce, so base
// definitions and reference targets resolve by canonical URL.
func (b *Builder) IndexURLs(sds []*fragment.StructureDefinition) {
	for _, sd := range sds {
		if sd.URL != "" {
			b.urls[sd.URL] = ClassName(sd)
		}
	}
}

// ClassForURL returns the class name indexed for a canonical URL. Version
// suffixes are ignored.
func (b *Builder) ClassForURL(url string) (string, bool) {
	name, ok := b.urls[StripVersion(url)]
	return name, ok
}

// SuperclassName resolves a base definition URL to a class name, falling back
// to the URL's last segment.
func (b *Builder) SuperclassName(baseDefinition string) string {
	if baseDefinition == "" {
		return ""
	}
	if name, ok := b.ClassForURL(baseDefinition); ok {
		return name
	}
	return URLTail(baseDefinition)
}

// build holds the state of one fragment's build.
type build struct {
	sd       *fragment.StructureDefinition
	id       string
	rootType string
	rootPath string
	top      *model.Class
	nested   map[string]*model.Class
	order    []*model.Class
	parents  map[string]bool
}

// Build builds sd and registers the result. The returned classes are the
// registry's canonical entities, top-level class first, then nested classes
// in declaration order.
func (b *Builder) Build(sd *fragment.StructureDefinition) ([]*model.Class, error) {
	st := &build{
		sd:      sd,
		id:      sd.URL,
		nested:  make(map[string]*model.Class),
		parents: make(map[string]bool),
	}
	if st.id == "" {
		st.id = sd.Name
	}

	elements := sd.Elements()
	st.top = model.NewClass(ClassName(sd), model.ParseStructureKind(sd.Kind))
	if st.top.Name == "" {
		return nil, &FragmentError{Fragment: st.id, Err: fmt.Errorf("cannot derive a class name")}
	}
	st.top.Superclass = b.SuperclassName(sd.BaseDefinition)
	st.top.SourceURL = sd.URL
	st.top.Abstract = sd.Abstract

	st.rootType = sd.Type
	if len(elements) > 0 {
		root := elements[0]
		st.rootPath = root.Path
		st.rootType = rootSegment(root.Path)
		st.top.Short = root.Short
		st.top.Definition = root.Definition
	}
	for i := range elements {
		st.parents[parentPath(elements[i].Path)] = true
	}

	for i := range elements {
		ed := &elements[i]
		if ed.Path == st.rootPath {
			continue
		}
		if err := b.element(st, ed); err != nil {
			return nil, &FragmentError{Fragment: st.id, Path: ed.Path, Err: err}
		}
	}

	// Nested classes first: the outer properties reference them.
	out := make([]*model.Class, 0, len(st.order)+1)
	var nested []*model.Class
	for _, c := range st.order {
		nested = append(nested, b.registry.Register(c))
	}
	out = append(out, b.registry.Register(st.top))
	out = append(out, nested...)
	return out, nil
}

func (b *Builder) element(st *build, ed *fragment.ElementDefinition) error {
	if ed.IsSliced() {
		return nil
	}
	if ed.Max == "0" {
		return nil
	}
	if ed.Base != nil && ed.Base.Path != "" && rootSegment(ed.Base.Path) != st.rootType {
		return nil
	}

	owner := st.owner(parentPath(ed.Path))
	if owner == nil {
		b.log.Debug().Str("fragment", st.id).Str("path", ed.Path).Msg("parent not declared, skipping element")
		b.issues.Add(issue.DiagElementNoParent, st.id, ed.Path, map[string]any{"parent": parentPath(ed.Path)})
		return nil
	}

	if ed.ContentReference != "" {
		ref := ed.ContentReferencePath()
		target, ok := st.nested[ref]
		if !ok {
			return fmt.Errorf("content reference %q: %w", ed.ContentReference, ErrUnresolvedType)
		}
		return b.addProperty(owner, ed, target.Name, nil)
	}

	if st.parents[ed.Path] && isBackbone(ed) {
		superclass := TypeBackboneElement
		if len(ed.Type) == 1 {
			superclass = ed.Type[0].Name()
		}
		nc := model.NewClass(nestedName(st.top.Name, owner.Name, ed), nestedKind(st.top.Kind))
		nc.Superclass = superclass
		nc.SourceURL = st.sd.URL
		nc.Short = ed.Short
		nc.Definition = ed.Definition
		st.nested[ed.Path] = nc
		st.order = append(st.order, nc)
		return b.addProperty(owner, ed, nc.Name, nil)
	}

	if len(ed.Type) == 0 {
		b.log.Debug().Str("fragment", st.id).Str("path", ed.Path).Msg("element without type, skipping")
		b.issues.Add(issue.DiagElementNoType, st.id, ed.Path, nil)
		return nil
	}

	types := mergeTypes(ed.Type)
	name := elementName(ed.Path)
	if _, choice := property.SplitChoice(name); choice {
		for _, t := range types {
			if err := b.addProperty(owner, ed, t.name, t.targets); err != nil {
				return err
			}
		}
		return nil
	}
	return b.addProperty(owner, ed, types[0].name, types[0].targets)
}

// allowedType is one distinct type of an element with every target profile
// declared for it.
type allowedType struct {
	name    string
	targets []string
}

// mergeTypes folds type entries sharing a name, in first-seen order. STU3
// lists each Reference target as its own type entry.
func mergeTypes(types []fragment.Type) []allowedType {
	var out []allowedType
	index := make(map[string]int, len(types))
	for _, t := range types {
		name := t.Name()
		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, allowedType{name: name})
			i = len(out) - 1
		}
		for _, url := range t.TargetProfile {
			if !containsString(out[i].targets, url) {
				out[i].targets = append(out[i].targets, url)
			}
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (b *Builder) addProperty(owner *model.Class, ed *fragment.ElementDefinition, typeName string, targets []string) error {
	field := property.RawField{
		Name:           elementName(ed.Path),
		TypeName:       typeName,
		Min:            ed.Min.String(),
		Max:            ed.Max,
		Short:          ed.Short,
		Definition:     ed.Definition,
		TargetProfiles: targets,
		IsSummary:      ed.IsSummary,
		IsModifier:     ed.IsModifier,
	}
	if ed.Binding != nil && (ed.Binding.Strength != "" || ed.Binding.ValueSet != "") {
		field.Binding = &model.Binding{Strength: ed.Binding.Strength, ValueSet: ed.Binding.ValueSet}
	}
	p, err := b.resolver.Resolve(field, owner.Name)
	if err != nil {
		return err
	}
	owner.AddProperty(p)
	return nil
}

// owner returns the class declaring children of path.
func (st *build) owner(path string) *model.Class {
	if path == st.rootPath {
		return st.top
	}
	return st.nested[path]
}

func isBackbone(ed *fragment.ElementDefinition) bool {
	if len(ed.Type) == 0 {
		return true
	}
	if len(ed.Type) > 1 {
		return false
	}
	switch ed.Type[0].Name() {
	case TypeBackboneElement, TypeElement:
		return true
	}
	return false
}

// nestedKind is the kind of backbone classes declared inside a class of
// kind top. Backbones always carry their own model code.
func nestedKind(top model.ClassKind) model.ClassKind {
	if top == model.KindLogical {
		return model.KindLogical
	}
	return model.KindComplexType
}
