// Package selector decides which StructureDefinitions of a release take part
// in compilation by evaluating a FHIRPath expression against each one.
package selector

import (
	"fmt"
	"strings"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/typegraph/pkg/cache"
	"github.com/gofhir/typegraph/pkg/fragment"
)

// Selector evaluates a FHIRPath filter such as
//
//	kind = 'resource' and derivation = 'specialization'
//
// against the raw JSON of each definition. An empty expression selects
// everything.
type Selector struct {
	source string
	expr   *fhirpath.Expression
}

// New compiles expr.
func New(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Selector{}, nil
	}
	compiled, err := compile(expr)
	if err != nil {
		return nil, fmt.Errorf("fragment filter %q: %w", expr, err)
	}
	return &Selector{source: expr, expr: compiled}, nil
}

// String returns the source expression.
func (s *Selector) String() string {
	return s.source
}

// Match reports whether sd is selected. An empty result is a miss; a
// non-empty result that is not a single boolean counts as a hit.
func (s *Selector) Match(sd *fragment.StructureDefinition) (bool, error) {
	if s.expr == nil {
		return true, nil
	}
	raw := sd.Raw()
	if len(raw) == 0 {
		return false, fmt.Errorf("definition %q has no source document", sd.URL)
	}
	result, err := s.expr.Evaluate(raw)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", s.source, err)
	}
	return truthy(result), nil
}

// Apply returns the subset of set selected by s.
func (s *Selector) Apply(set *fragment.Set) (*fragment.Set, error) {
	if s.expr == nil {
		return set, nil
	}
	return set.Filter(s.Match)
}

func truthy(result fhirpath.Collection) bool {
	if result.Empty() {
		return false
	}
	b, err := result.ToBoolean()
	if err != nil {
		return true
	}
	return b
}

// expressions holds compiled filters shared by every Selector.
var expressions = cache.New[string, *fhirpath.Expression](64)

// compile returns a cached compiled expression or compiles a new one.
func compile(expr string) (*fhirpath.Expression, error) {
	return expressions.Load(expr, func(e string) (*fhirpath.Expression, error) {
		return fhirpath.Compile(e)
	})
}

// CacheStats reports the compiled expression cache counters.
func CacheStats() cache.Stats {
	return expressions.Stats()
}
