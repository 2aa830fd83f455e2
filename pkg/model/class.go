package model

import "github.com/google/uuid"

// ExtensionClassName is the open-ended extension container type. Its required
// primitive fields are exempt from the required-primitive-element rule.
const ExtensionClassName = "Extension"

// Class is one named schema type in a release's type graph.
//
// Classes are owned by the registry of the epoch that created them. Other
// entities refer to classes by name; Superclass is a lookup relation, not an
// ownership edge.
type Class struct {
	Name       string
	Kind       ClassKind
	Superclass string
	Properties []*Property
	SourceURL  string
	Abstract   bool
	Short      string
	Definition string

	// Epoch identifies the registry epoch that owns the class.
	Epoch uuid.UUID

	defined bool
}

// NewClass returns a detached class, as produced by the class builder before
// it is merged into a registry.
func NewClass(name string, kind ClassKind) *Class {
	return &Class{Name: name, Kind: kind, defined: true}
}

// IsPlaceholder reports whether the class was only ever referenced and never
// filled in by a fragment, a manual profile, or the built-in primitive table.
func (c *Class) IsPlaceholder() bool {
	return !c.defined
}

// MarkDefined flags the class as filled in.
func (c *Class) MarkDefined() {
	c.defined = true
}

// Property returns the property with the given name, or nil.
func (c *Class) Property(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddProperty appends p, or replaces an existing property with the same name
// in place so declaration order is kept.
func (c *Class) AddProperty(p *Property) {
	for i, existing := range c.Properties {
		if existing.Name == p.Name {
			c.Properties[i] = p
			return
		}
	}
	c.Properties = append(c.Properties, p)
}

// ChoiceGroup is a set of mutually exclusive sibling properties.
type ChoiceGroup struct {
	Name    string
	Members []string
}

// ChoiceGroups returns the class's choice groups in first-appearance order.
func (c *Class) ChoiceGroups() []ChoiceGroup {
	var groups []ChoiceGroup
	index := make(map[string]int)
	for _, p := range c.Properties {
		if p.ChoiceGroup == "" {
			continue
		}
		i, ok := index[p.ChoiceGroup]
		if !ok {
			i = len(groups)
			index[p.ChoiceGroup] = i
			groups = append(groups, ChoiceGroup{Name: p.ChoiceGroup})
		}
		groups[i].Members = append(groups[i].Members, p.Name)
	}
	return groups
}

// RequiredPrimitiveElements returns the properties for which both the value
// field and its primitive extension companion must be considered for
// non-optional emission.
func (c *Class) RequiredPrimitiveElements() []*Property {
	if c.Name == ExtensionClassName {
		return nil
	}
	var out []*Property
	for _, p := range c.Properties {
		if p.Required && p.NeedsPrimitiveExtension && p.ChoiceGroup == "" {
			out = append(out, p)
		}
	}
	return out
}
