package fragment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gofhir/typegraph/pkg/loader"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/worker"
)

// Resource types the compiler consumes.
const (
	TypeStructureDefinition = "StructureDefinition"
	TypeValueSet            = "ValueSet"
	TypeCodeSystem          = "CodeSystem"
)

// Raw is an undecoded terminology resource.
type Raw struct {
	URL    string
	Source string
	Data   json.RawMessage
}

// Set holds the fragments of one release.
type Set struct {
	FHIRVersion          string
	StructureDefinitions []*StructureDefinition
	ValueSets            []Raw
	CodeSystems          []Raw

	byURL map[string]*StructureDefinition
	seen  map[string]bool
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		byURL: make(map[string]*StructureDefinition),
		seen:  make(map[string]bool),
	}
}

// DecodeStructureDefinition decodes one StructureDefinition, keeping its raw
// JSON for expression evaluation.
func DecodeStructureDefinition(data []byte) (*StructureDefinition, error) {
	var sd StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.ResourceType != "" && sd.ResourceType != TypeStructureDefinition {
		return nil, fmt.Errorf("resourceType %q is not %s", sd.ResourceType, TypeStructureDefinition)
	}
	sd.raw = append(json.RawMessage(nil), data...)
	return &sd, nil
}

// Decode builds a Set from packages. Resources whose canonical URL was
// already seen are skipped, so earlier packages take precedence.
func Decode(packages ...*loader.Package) (*Set, error) {
	return DecodeContext(context.Background(), worker.NewPool(1), packages...)
}

// DecodeContext is Decode with StructureDefinitions parsed on pool. The
// resulting Set is identical to the sequential one.
func DecodeContext(ctx context.Context, pool *worker.Pool, packages ...*loader.Package) (*Set, error) {
	var resources []loader.Resource
	for _, pkg := range packages {
		resources = append(resources, pkg.Resources...)
	}

	decoded := worker.Run(ctx, pool, resources, func(_ context.Context, r loader.Resource) (*StructureDefinition, error) {
		if r.ResourceType != TypeStructureDefinition {
			return nil, nil
		}
		return DecodeStructureDefinition(r.Data)
	})

	s := NewSet()
	for _, pkg := range packages {
		if s.FHIRVersion == "" {
			s.FHIRVersion = pkg.FHIRVersion
		}
	}
	for i, r := range resources {
		if err := decoded[i].Err; err != nil {
			return nil, fmt.Errorf("%s (%s): %w", r.Key(), r.Source, err)
		}
		if sd := decoded[i].Value; sd != nil {
			s.AddStructureDefinition(sd)
			continue
		}
		s.addTerminology(r)
	}
	return s, nil
}

func (s *Set) addTerminology(r loader.Resource) {
	switch r.ResourceType {
	case TypeValueSet:
		if s.markSeen(r.ResourceType, r.URL) {
			s.ValueSets = append(s.ValueSets, Raw{URL: r.URL, Source: r.Source, Data: r.Data})
		}
	case TypeCodeSystem:
		if s.markSeen(r.ResourceType, r.URL) {
			s.CodeSystems = append(s.CodeSystems, Raw{URL: r.URL, Source: r.Source, Data: r.Data})
		}
	}
}

func (s *Set) markSeen(resourceType, url string) bool {
	if url == "" {
		return true
	}
	key := resourceType + "|" + url
	if s.seen[key] {
		logger.Debug("duplicate %s %s ignored", resourceType, url)
		return false
	}
	s.seen[key] = true
	return true
}

// AddStructureDefinition adds sd unless a definition with the same URL is
// already present. It reports whether sd was added.
func (s *Set) AddStructureDefinition(sd *StructureDefinition) bool {
	if sd.URL != "" {
		if _, ok := s.byURL[sd.URL]; ok {
			logger.Debug("duplicate StructureDefinition %s ignored", sd.URL)
			return false
		}
		s.byURL[sd.URL] = sd
	}
	s.StructureDefinitions = append(s.StructureDefinitions, sd)
	return true
}

// StructureDefinition returns the definition with the given canonical URL.
func (s *Set) StructureDefinition(url string) *StructureDefinition {
	return s.byURL[url]
}

// SortedStructureDefinitions returns the definitions ordered by URL, then
// name for definitions without a URL.
func (s *Set) SortedStructureDefinitions() []*StructureDefinition {
	out := append([]*StructureDefinition(nil), s.StructureDefinitions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Filter returns a Set sharing terminology with s whose definitions are
// those for which keep returns true.
func (s *Set) Filter(keep func(*StructureDefinition) (bool, error)) (*Set, error) {
	out := NewSet()
	out.FHIRVersion = s.FHIRVersion
	out.ValueSets = s.ValueSets
	out.CodeSystems = s.CodeSystems
	for _, sd := range s.StructureDefinitions {
		ok, err := keep(sd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sd.URL, err)
		}
		if ok {
			out.AddStructureDefinition(sd)
		}
	}
	return out, nil
}
