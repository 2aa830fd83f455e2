package model

import (
	"fmt"
	"sort"
)

// Profile is the emission unit produced from one structure-definition
// fragment, or from a manually supplied profile.
type Profile struct {
	// URL is the canonical URL; empty for manual profiles.
	URL string
	// Name is the fragment's declared name.
	Name string
	// TargetName is the output artifact name.
	TargetName string
	// Manual marks profiles supplied through configuration.
	Manual bool
	// Classes declared by this profile, top-level class first.
	Classes []*Class

	needed     []string
	referenced []string
	computed   bool
}

// HasClass reports whether the profile declares a class with the given name.
func (p *Profile) HasClass(name string) bool {
	for _, c := range p.Classes {
		if c.Name == name {
			return true
		}
	}
	return false
}

// EmittableClasses returns the profile's classes that produce model code,
// sorted by name.
func (p *Profile) EmittableClasses() []*Class {
	var out []*Class
	for _, c := range p.Classes {
		if c.Kind.IsEmittable() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDependencies stores the derived sets computed by the compiler. Both
// slices are sorted and copied.
func (p *Profile) SetDependencies(needed, referenced []string) {
	p.needed = sortedCopy(needed)
	p.referenced = sortedCopy(referenced)
	p.computed = true
}

// DependenciesComputed reports whether the derived sets are available.
func (p *Profile) DependenciesComputed() bool {
	return p.computed
}

// NeededExternalClasses returns the sorted names of classes outside this
// profile that its classes depend on. It panics when called before the
// compiler's second pass.
func (p *Profile) NeededExternalClasses() []string {
	p.mustBeComputed("NeededExternalClasses")
	return append([]string(nil), p.needed...)
}

// ReferencedClasses returns the sorted names of classes that may appear
// behind a Reference-typed field of this profile. It panics when called
// before the compiler's second pass.
func (p *Profile) ReferencedClasses() []string {
	p.mustBeComputed("ReferencedClasses")
	return append([]string(nil), p.referenced...)
}

func (p *Profile) mustBeComputed(method string) {
	if !p.computed {
		panic(fmt.Sprintf("model: %s called on profile %q before dependency computation", method, p.TargetName))
	}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
