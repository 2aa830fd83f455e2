// Package compiler orchestrates the two-pass compilation of one release into
// a Graph.
//
// Pass 1 builds every StructureDefinition into classes, creating placeholders
// for forward references. Pass 2 runs once every class is known: it
// re-derives property classification, rejects types that never resolved,
// resolves reference targets and computes the per-profile dependency sets.
// The registry is reset exactly once at the start and sealed at the end, so
// a graph never shares class identity with another release.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gofhir/typegraph/pkg/builder"
	"github.com/gofhir/typegraph/pkg/classify"
	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/issue"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/model"
	"github.com/gofhir/typegraph/pkg/property"
	"github.com/gofhir/typegraph/pkg/registry"
	"github.com/gofhir/typegraph/pkg/valueset"
)

// ErrUnresolvedType is returned, wrapped in a *builder.FragmentError, when a
// declared type or superclass is still undefined after pass 1.
var ErrUnresolvedType = builder.ErrUnresolvedType

// DefaultImplicitRoots are superclass names that may legitimately have no
// StructureDefinition in a release (R4 declares Base only abstractly).
var DefaultImplicitRoots = []string{"Base"}

// ManualProfile is a profile supplied outside the release, typically a
// hand-written support module.
type ManualProfile struct {
	// Path locates the profile source. A .json path is read as a
	// StructureDefinition; any other path is only recorded.
	Path string `mapstructure:"path" yaml:"path"`
	// Module is the output artifact name.
	Module string `mapstructure:"module" yaml:"module"`
	// Contains names the classes the profile declares.
	Contains []string `mapstructure:"contains" yaml:"contains"`
}

// Options configures a Compiler.
type Options struct {
	Release string
	// Overrides replaces property.DefaultOverrides when non-nil.
	Overrides      []property.Override
	ManualProfiles []ManualProfile
	// ComputeDependencies enables the per-profile dependency and reference
	// sets. Leave it off when no emission category consumes them.
	ComputeDependencies bool
	// ImplicitRoots replaces DefaultImplicitRoots when non-nil.
	ImplicitRoots []string
	Logger        *zerolog.Logger
}

// Compiler compiles fragment sets into graphs.
type Compiler struct {
	registry *registry.Registry
	opts     Options
	log      zerolog.Logger
}

// New creates a Compiler that owns reg for the duration of each Compile.
func New(reg *registry.Registry, opts Options) *Compiler {
	if opts.Overrides == nil {
		opts.Overrides = property.DefaultOverrides()
	}
	if opts.ImplicitRoots == nil {
		opts.ImplicitRoots = DefaultImplicitRoots
	}
	c := &Compiler{registry: reg, opts: opts, log: logger.Z()}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	c.log = c.log.With().Str("release", opts.Release).Logger()
	return c
}

// Compile resets the registry and compiles set. On error the registry is
// left in the failed epoch; the next Compile resets it.
func (c *Compiler) Compile(set *fragment.Set) (*Graph, error) {
	c.registry.Reset()

	issues := issue.NewList()
	resolver := property.NewResolver(c.registry, c.opts.Release, c.opts.Overrides)
	b := builder.New(c.registry, resolver, builder.WithLogger(c.log), builder.WithIssues(issues))

	sds := set.SortedStructureDefinitions()
	b.IndexURLs(sds)

	profiles, err := c.manualProfiles(b)
	if err != nil {
		return nil, err
	}

	// Pass 1
	byTarget := make(map[string]*model.Profile, len(sds))
	for _, sd := range sds {
		classes, err := b.Build(sd)
		if err != nil {
			return nil, err
		}
		target := strings.ToLower(classes[0].Name)
		if p, ok := byTarget[target]; ok {
			c.log.Debug().Str("fragment", sd.URL).Str("profile", p.URL).Msg("class redeclared, merging into existing profile")
			for _, cls := range classes {
				if !p.HasClass(cls.Name) {
					p.Classes = append(p.Classes, cls)
				}
			}
			continue
		}
		p := &model.Profile{
			URL:        sd.URL,
			Name:       sd.Name,
			TargetName: target,
			Classes:    classes,
		}
		byTarget[target] = p
		profiles = append(profiles, p)
	}
	c.log.Debug().Int("fragments", len(sds)).Int("classes", c.registry.Count()).Msg("pass 1 complete")

	// Pass 2
	c.materializePrimitives()
	for _, cls := range c.registry.All() {
		for _, p := range cls.Properties {
			resolver.Refresh(p)
		}
	}
	if err := c.checkResolved(profiles, issues); err != nil {
		return nil, err
	}
	c.resolveReferences(b, profiles, issues)
	if c.opts.ComputeDependencies {
		for _, p := range profiles {
			c.computeDependencies(p)
		}
	}

	terms, err := valueset.New().Compile(set)
	if err != nil {
		return nil, err
	}

	for _, vs := range terms.ValueSets {
		if !vs.Complete {
			issues.Add(issue.DiagValueSetIncomplete, vs.URL, "", map[string]any{"codes": len(vs.Codes)})
		}
	}

	c.registry.Seal()
	g := newGraph(c.opts.Release, c.registry.Epoch(), c.registry.All(), profiles, terms)
	g.Issues = issues.Issues()
	c.log.Info().
		Int("classes", len(g.Classes)).
		Int("warnings", issue.Count(g.Issues, issue.SeverityWarning)).
		Int("profiles", len(g.Profiles)).
		Int("valuesets", len(g.ValueSets)).
		Int("codesystems", len(g.CodeSystems)).
		Msg("release compiled")
	return g, nil
}

// manualProfiles registers the configured manual profiles. Their classes
// have no URL and no source URL.
func (c *Compiler) manualProfiles(b *builder.Builder) ([]*model.Profile, error) {
	var out []*model.Profile
	for _, mp := range c.opts.ManualProfiles {
		p := &model.Profile{Name: mp.Module, TargetName: mp.Module, Manual: true}

		if strings.EqualFold(filepath.Ext(mp.Path), ".json") {
			data, err := os.ReadFile(mp.Path)
			if err != nil {
				return nil, fmt.Errorf("manual profile %s: %w", mp.Path, err)
			}
			sd, err := fragment.DecodeStructureDefinition(data)
			if err != nil {
				return nil, fmt.Errorf("manual profile %s: %w", mp.Path, err)
			}
			sd.URL = ""
			classes, err := b.Build(sd)
			if err != nil {
				return nil, err
			}
			for _, cls := range classes {
				cls.SourceURL = ""
			}
			p.Classes = append(p.Classes, classes...)
		}

		for _, name := range mp.Contains {
			if p.HasClass(name) {
				continue
			}
			p.Classes = append(p.Classes, c.registry.Register(model.NewClass(name, model.KindOther)))
		}
		out = append(out, p)
	}
	return out, nil
}

// materializePrimitives completes placeholders for built-in primitive and
// system types that no fragment of the release defined.
func (c *Compiler) materializePrimitives() {
	for _, name := range c.registry.Placeholders() {
		if classify.Classify(name).IsPrimitive() {
			c.registry.Register(model.NewClass(name, model.KindPrimitiveType))
		}
	}
}

// checkResolved fails on the first superclass or declared type that is still
// a placeholder, in profile order.
func (c *Compiler) checkResolved(profiles []*model.Profile, issues *issue.List) error {
	implicit := make(map[string]bool, len(c.opts.ImplicitRoots))
	for _, r := range c.opts.ImplicitRoots {
		implicit[r] = true
	}

	seen := make(map[*model.Class]bool)
	for _, p := range profiles {
		id := profileID(p)
		for _, cls := range p.Classes {
			if seen[cls] {
				continue
			}
			seen[cls] = true

			if cls.Superclass != "" && !c.registry.IsDefined(cls.Superclass) {
				if !implicit[cls.Superclass] {
					return &builder.FragmentError{
						Fragment: id,
						Path:     cls.Name,
						Err:      fmt.Errorf("superclass %q: %w", cls.Superclass, ErrUnresolvedType),
					}
				}
				c.log.Debug().Str("class", cls.Name).Str("superclass", cls.Superclass).Msg("dropping implicit root superclass")
				issues.Add(issue.DiagImplicitRootDropped, id, cls.Name, map[string]any{"superclass": cls.Superclass})
				cls.Superclass = ""
			}
			for _, prop := range cls.Properties {
				if !c.registry.IsDefined(prop.DeclaredTypeName) {
					return &builder.FragmentError{
						Fragment: id,
						Path:     cls.Name + "." + prop.Name,
						Err:      fmt.Errorf("type %q: %w", prop.DeclaredTypeName, ErrUnresolvedType),
					}
				}
			}
		}
	}
	return nil
}

// resolveReferences maps target profile URLs to class names.
func (c *Compiler) resolveReferences(b *builder.Builder, profiles []*model.Profile, issues *issue.List) {
	for _, p := range profiles {
		id := profileID(p)
		for _, cls := range p.Classes {
			for _, prop := range cls.Properties {
				if len(prop.TargetProfiles) == 0 {
					continue
				}
				prop.ReferenceTargets = prop.ReferenceTargets[:0]
				for _, url := range prop.TargetProfiles {
					name, ok := b.ClassForURL(url)
					if !ok {
						name = builder.URLTail(url)
						ok = c.registry.IsDefined(name)
					}
					if !ok {
						c.log.Warn().Str("class", cls.Name).Str("property", prop.Name).Str("target", url).Msg("unknown reference target")
						issues.Add(issue.DiagReferenceUnknownTarget, id, cls.Name+"."+prop.Name, map[string]any{"target": url, "property": prop.Name})
						continue
					}
					prop.ReferenceTargets = appendUnique(prop.ReferenceTargets, name)
				}
			}
		}
	}
}

// computeDependencies derives the profile's external class and reference
// sets. Own classes, natives and primitives are never external.
func (c *Compiler) computeDependencies(p *model.Profile) {
	own := make(map[string]bool, len(p.Classes))
	for _, cls := range p.Classes {
		own[cls.Name] = true
	}

	var needed, referenced []string
	external := func(name string) {
		if name == "" || own[name] || classify.IsNative(name) {
			return
		}
		if cls, ok := c.registry.Lookup(name); ok && cls.Kind == model.KindPrimitiveType {
			return
		}
		needed = appendUnique(needed, name)
	}
	for _, cls := range p.Classes {
		external(cls.Superclass)
		for _, prop := range cls.Properties {
			external(prop.DeclaredTypeName)
			for _, ref := range prop.ReferenceTargets {
				referenced = appendUnique(referenced, ref)
			}
		}
	}
	p.SetDependencies(needed, referenced)
}

func profileID(p *model.Profile) string {
	if p.URL != "" {
		return p.URL
	}
	if p.Name != "" {
		return p.Name
	}
	return p.TargetName
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
