package typegraph

import (
	"fmt"
	"time"

	"github.com/gofhir/typegraph/pkg/compiler"
	"github.com/gofhir/typegraph/pkg/issue"
	"github.com/gofhir/typegraph/pkg/manifest"
	"github.com/gofhir/typegraph/pkg/model"
)

// Result is the outcome of compiling one release.
type Result struct {
	Target Target
	// FHIRVersion is the version declared by the loaded packages, or the
	// target's version when they declare none.
	FHIRVersion string
	// ModulePath is the output namespace of the release.
	ModulePath string

	Graph *compiler.Graph
	// Manifest is set when the dependencies category is emitted.
	Manifest *manifest.Manifest

	// Fragments is the number of StructureDefinitions compiled.
	Fragments int
	Duration  time.Duration
}

// Summary holds the headline counts of a result.
type Summary struct {
	Release     Release
	FHIRVersion string
	ModulePath  string
	Fragments   int
	Classes     int
	Profiles    int
	Writable    int
	ValueSets   int
	CodeSystems int
	Warnings    int
	Kinds       map[model.ClassKind]int
}

// Summary counts the contents of the compiled graph.
func (r *Result) Summary() Summary {
	s := Summary{
		Release:     r.Target.Release,
		FHIRVersion: r.FHIRVersion,
		ModulePath:  r.ModulePath,
		Fragments:   r.Fragments,
		Kinds:       make(map[model.ClassKind]int),
	}
	if r.Graph == nil {
		return s
	}
	s.Classes = len(r.Graph.Classes)
	s.Profiles = len(r.Graph.Profiles)
	s.Writable = len(r.Graph.WritableProfiles())
	s.ValueSets = len(r.Graph.ValueSets)
	s.CodeSystems = len(r.Graph.CodeSystems)
	s.Warnings = issue.Count(r.Graph.Issues, issue.SeverityWarning)
	for _, c := range r.Graph.Classes {
		s.Kinds[c.Kind]++
	}
	return s
}

// String formats the summary on one line.
func (s Summary) String() string {
	return fmt.Sprintf("%s (%s) -> %s: %d fragments, %d classes (%d resources, %d complex types, %d primitives, %d logical), %d profiles (%d writable), %d value sets, %d code systems, %d warnings",
		s.Release, s.FHIRVersion, s.ModulePath, s.Fragments, s.Classes,
		s.Kinds[model.KindResource], s.Kinds[model.KindComplexType], s.Kinds[model.KindPrimitiveType], s.Kinds[model.KindLogical],
		s.Profiles, s.Writable, s.ValueSets, s.CodeSystems, s.Warnings)
}
