// Package property resolves raw element descriptors into model properties.
package property

import (
	"fmt"
	"strings"

	"github.com/gofhir/typegraph/pkg/cardinality"
	"github.com/gofhir/typegraph/pkg/classify"
	"github.com/gofhir/typegraph/pkg/model"
	"github.com/gofhir/typegraph/pkg/registry"
)

// ErrInvalidCardinality marks a fragment field whose min or max text cannot be
// parsed. It aborts the release.
var ErrInvalidCardinality = cardinality.ErrInvalid

// IDFieldName is the element name that never carries a primitive extension.
const IDFieldName = "id"

// RawField is one field as read from a fragment, before classification.
type RawField struct {
	// Name is the element name, possibly with a trailing "[x]".
	Name string
	// TypeName is the single declared type of this alternative.
	TypeName string
	Min      string
	Max      string

	Short      string
	Definition string
	Binding    *model.Binding

	// ChoiceGroup overrides the group derived from a "[x]" suffix.
	ChoiceGroup string

	TargetProfiles []string
	IsSummary      bool
	IsModifier     bool
}

// Resolver builds properties against the registry of the current epoch.
type Resolver struct {
	registry  *registry.Registry
	release   string
	overrides []Override
}

// NewResolver creates a Resolver for release. Overrides that do not name
// release are ignored.
func NewResolver(reg *registry.Registry, release string, overrides []Override) *Resolver {
	var active []Override
	for _, o := range overrides {
		if o.AppliesTo(release) {
			active = append(active, o)
		}
	}
	return &Resolver{registry: reg, release: release, overrides: active}
}

// Release returns the release the resolver applies policy for.
func (r *Resolver) Release() string {
	return r.release
}

// Resolve turns field, declared on the class named owner, into a Property.
// The declared type is registered as a placeholder when not yet known so
// forward references resolve once its fragment is built.
func (r *Resolver) Resolve(field RawField, owner string) (*model.Property, error) {
	if field.TypeName == "" {
		return nil, fmt.Errorf("field %s.%s has no type", owner, field.Name)
	}

	card, err := cardinality.Parse(field.Min, field.Max)
	if err != nil {
		return nil, fmt.Errorf("field %s.%s: %w", owner, field.Name, err)
	}

	p := &model.Property{
		Name:             field.Name,
		OrigName:         field.Name,
		DeclaredTypeName: field.TypeName,
		IsArray:          card.IsArray(),
		Required:         card.Required(),
		Min:              card.Min,
		Max:              card.MaxText(),
		Short:            field.Short,
		Definition:       field.Definition,
		IsSummary:        field.IsSummary,
		IsModifier:       field.IsModifier,
	}
	if field.Binding != nil {
		b := *field.Binding
		p.Binding = &b
	}
	if len(field.TargetProfiles) > 0 {
		p.TargetProfiles = append([]string(nil), field.TargetProfiles...)
	}

	if base, ok := SplitChoice(field.Name); ok {
		p.Name = ChoiceName(base, field.TypeName)
		p.ChoiceGroup = base
	}
	if field.ChoiceGroup != "" {
		p.ChoiceGroup = field.ChoiceGroup
	}

	p.DeclaredTypeName = r.applyOverrides(owner, p.Name, p.DeclaredTypeName)
	r.registry.GetOrCreate(p.DeclaredTypeName)
	r.Refresh(p)

	if classify.IsCode(p.DeclaredTypeName) && strings.Contains(p.Short, "|") {
		p.EnumValues, p.EnumExtensible = ParseEnum(p.Short)
	}
	return p, nil
}

// Refresh re-derives the registry-dependent flags of p. The compiler calls
// it after every fragment is built, when forward-referenced classes have
// their final kind.
func (r *Resolver) Refresh(p *model.Property) {
	c := classify.Classify(p.DeclaredTypeName)
	p.IsNative = c.IsNative

	// Built-in primitives carry their own extension rule (xhtml has none);
	// primitives defined only by the release always take the companion.
	needs := c.RequiresExtension
	if !c.IsPrimitive() {
		if cls, ok := r.registry.Lookup(p.DeclaredTypeName); ok && !cls.IsPlaceholder() {
			needs = cls.Kind == model.KindPrimitiveType
		}
	}
	p.NeedsPrimitiveExtension = needs && p.Name != IDFieldName
}

func (r *Resolver) applyOverrides(owner, name, typeName string) string {
	for _, o := range r.overrides {
		if o.Matches(owner, name, typeName) {
			return o.To
		}
	}
	return typeName
}
