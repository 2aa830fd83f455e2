package typegraph

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/gofhir/typegraph/pkg/compiler"
	"github.com/gofhir/typegraph/pkg/property"
)

// DefaultModulePath is the output namespace of the default release.
const DefaultModulePath = "fhir.resources"

// Target is one release to compile.
type Target struct {
	Release Release
	// FHIRVersion overrides the release's specification version when
	// locating packages in the cache.
	FHIRVersion string
	// Source is a directory, a .tgz package or a "name#version" spec.
	// Empty means the release's default packages from the cache.
	Source string
}

// Version returns the specification version the target is loaded as.
func (t Target) Version() string {
	if t.FHIRVersion != "" {
		return t.FHIRVersion
	}
	return t.Release.FHIRVersion()
}

// Emit selects the emission categories downstream renderers will produce.
type Emit struct {
	Resources    bool
	Dependencies bool
	Tests        bool
	ValueSets    bool
}

// NeedsDependencies reports whether any selected category consumes the
// per-profile dependency and reference sets.
func (e Emit) NeedsDependencies() bool {
	return e.Resources || e.Dependencies || e.Tests
}

// Option configures the Generator.
type Option func(*Options)

// Options holds all configuration for the Generator.
type Options struct {
	Primary  Target
	Previous []Target

	// DefaultRelease is emitted into ModulePath unqualified; every other
	// release gets a release-suffixed namespace.
	DefaultRelease Release
	ModulePath     string

	// Intake
	PackageCache   string
	Include        []string
	Exclude        []string
	FragmentFilter string

	ManualProfiles []compiler.ManualProfile
	// Overrides replaces property.DefaultOverrides when non-nil.
	Overrides []property.Override

	Emit Emit

	// Workers bounds the goroutines decoding fragments.
	Workers int

	Logger *zerolog.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Primary:        Target{Release: R4},
		DefaultRelease: R4,
		ModulePath:     DefaultModulePath,
		Emit: Emit{
			Resources:    true,
			Dependencies: true,
			ValueSets:    true,
		},
		Workers: runtime.NumCPU(),
	}
}

// Targets returns the primary target followed by the previous releases.
func (o *Options) Targets() []Target {
	return append([]Target{o.Primary}, o.Previous...)
}

// Validate reports configuration errors.
func (o *Options) Validate() error {
	var errs []error
	seen := make(map[Release]bool)
	for _, t := range o.Targets() {
		if !t.Release.IsValid() {
			errs = append(errs, fmt.Errorf("unknown release %q", t.Release))
			continue
		}
		if seen[t.Release] {
			errs = append(errs, fmt.Errorf("release %s listed more than once", t.Release))
		}
		seen[t.Release] = true
	}
	if o.DefaultRelease != "" && !o.DefaultRelease.IsValid() {
		errs = append(errs, fmt.Errorf("unknown default release %q", o.DefaultRelease))
	}
	if o.ModulePath == "" {
		errs = append(errs, errors.New("module path is required"))
	}
	for i, mp := range o.ManualProfiles {
		if mp.Module == "" {
			errs = append(errs, fmt.Errorf("manual profile %d: module is required", i))
		}
	}
	return errors.Join(errs...)
}

// --- Release Options ---

// WithRelease sets the primary release.
func WithRelease(r Release) Option {
	return func(o *Options) {
		o.Primary.Release = r
	}
}

// WithSource loads the primary release from source instead of the cache.
func WithSource(source string) Option {
	return func(o *Options) {
		o.Primary.Source = source
	}
}

// WithTarget replaces the primary target.
func WithTarget(t Target) Option {
	return func(o *Options) {
		o.Primary = t
	}
}

// WithPreviousReleases adds releases compiled after the primary one.
func WithPreviousReleases(targets ...Target) Option {
	return func(o *Options) {
		o.Previous = append(o.Previous, targets...)
	}
}

// WithDefaultRelease sets the release emitted into the unqualified module.
func WithDefaultRelease(r Release) Option {
	return func(o *Options) {
		o.DefaultRelease = r
	}
}

// WithModulePath sets the base output namespace.
func WithModulePath(path string) Option {
	return func(o *Options) {
		o.ModulePath = path
	}
}

// --- Intake Options ---

// WithPackageCache sets the FHIR package cache directory.
func WithPackageCache(dir string) Option {
	return func(o *Options) {
		o.PackageCache = dir
	}
}

// WithInclude keeps only package files matching the glob patterns.
func WithInclude(patterns ...string) Option {
	return func(o *Options) {
		o.Include = append(o.Include, patterns...)
	}
}

// WithExclude drops package files matching the glob patterns.
func WithExclude(patterns ...string) Option {
	return func(o *Options) {
		o.Exclude = append(o.Exclude, patterns...)
	}
}

// WithFragmentFilter keeps only StructureDefinitions for which the FHIRPath
// expression is true. The kept definitions must be closed over the types
// they use: a filter such as kind = 'resource' drops the base data types and
// the compile fails with compiler.ErrUnresolvedType.
func WithFragmentFilter(expr string) Option {
	return func(o *Options) {
		o.FragmentFilter = expr
	}
}

// --- Compilation Options ---

// WithManualProfiles adds profiles supplied outside the release.
func WithManualProfiles(profiles ...compiler.ManualProfile) Option {
	return func(o *Options) {
		o.ManualProfiles = append(o.ManualProfiles, profiles...)
	}
}

// WithOverrides replaces the per-release property type overrides.
func WithOverrides(overrides []property.Override) Option {
	return func(o *Options) {
		o.Overrides = overrides
	}
}

// WithEmit selects the emission categories.
func WithEmit(e Emit) Option {
	return func(o *Options) {
		o.Emit = e
	}
}

// WithWorkers sets the number of decoding goroutines.
// Defaults to runtime.NumCPU().
func WithWorkers(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.Workers = count
		}
	}
}

// WithLogger sets the logger for compilation detail.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = &l
	}
}
