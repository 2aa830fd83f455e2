package property

import "strings"

// Override retypes one property of one class for one release. It captures
// compatibility patches such as the R4 Resource.id quirk as data.
type Override struct {
	Release  string `mapstructure:"release" yaml:"release"`
	Class    string `mapstructure:"class" yaml:"class"`
	Property string `mapstructure:"property" yaml:"property"`
	// From restricts the override to one declared type; empty matches any.
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// DefaultOverrides returns the built-in release policy: R4 tightens
// Resource.id to id, R4B loosens Element.id back to string.
func DefaultOverrides() []Override {
	return []Override{
		{Release: "R4", Class: "Resource", Property: "id", From: "string", To: "id"},
		{Release: "R4B", Class: "Element", Property: "id", From: "id", To: "string"},
	}
}

// AppliesTo reports whether the override targets release.
func (o Override) AppliesTo(release string) bool {
	return strings.EqualFold(o.Release, release)
}

// Matches reports whether the override retypes property name of class owner
// currently declared as typeName.
func (o Override) Matches(owner, name, typeName string) bool {
	if o.Class != owner || o.Property != name || o.To == "" {
		return false
	}
	return o.From == "" || o.From == typeName
}
