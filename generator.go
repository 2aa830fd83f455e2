package typegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gofhir/typegraph/pkg/compiler"
	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/loader"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/manifest"
	"github.com/gofhir/typegraph/pkg/registry"
	"github.com/gofhir/typegraph/pkg/selector"
	"github.com/gofhir/typegraph/pkg/worker"
)

// Generator compiles one or more FHIR releases into type graphs.
//
// Releases are compiled strictly one after another on a single registry
// that is reset per release, so no class of one release is reachable from
// the graph of another. A Generator is not safe for concurrent use.
type Generator struct {
	opts     Options
	loader   *loader.Loader
	registry *registry.Registry
	pool     *worker.Pool
	filter   *selector.Selector
	metrics  *Metrics
	log      zerolog.Logger
}

// New creates a Generator.
func New(opts ...Option) (*Generator, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	l := loader.NewLoader(o.PackageCache, loader.WithInclude(o.Include...), loader.WithExclude(o.Exclude...))
	if err := l.ValidatePatterns(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	filter, err := selector.New(o.FragmentFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	g := &Generator{
		opts:     *o,
		loader:   l,
		registry: registry.New(),
		pool:     worker.NewPool(o.Workers),
		filter:   filter,
		metrics:  NewMetrics(),
		log:      logger.Z(),
	}
	if o.Logger != nil {
		g.log = *o.Logger
	}
	return g, nil
}

// Options returns a copy of the generator's configuration.
func (g *Generator) Options() Options {
	return g.opts
}

// Metrics returns the generator's metrics.
func (g *Generator) Metrics() *Metrics {
	return g.metrics
}

// Run compiles the primary release, then every previous release, in order.
// It stops at the first failing release and returns the results compiled
// so far together with the error.
func (g *Generator) Run(ctx context.Context) ([]*Result, error) {
	var results []*Result
	for _, t := range g.opts.Targets() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := g.Compile(ctx, t)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Compile loads and compiles a single release.
func (g *Generator) Compile(ctx context.Context, t Target) (*Result, error) {
	start := time.Now()
	log := g.log.With().Str("release", t.Release.String()).Logger()

	res, err := g.compile(ctx, t, log)
	elapsed := time.Since(start)
	g.metrics.RecordRelease(elapsed, err == nil)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("release failed")
		return nil, fmt.Errorf("release %s: %w", t.Release, err)
	}
	res.Duration = elapsed
	g.metrics.RecordGraph(res.Fragments, len(res.Graph.Classes), len(res.Graph.Profiles))
	log.Info().
		Str("module", res.ModulePath).
		Int("fragments", res.Fragments).
		Dur("elapsed", elapsed).
		Msg("release ready")
	return res, nil
}

func (g *Generator) compile(ctx context.Context, t Target, log zerolog.Logger) (*Result, error) {
	stage := time.Now()
	packages, err := g.load(t)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordStage(StageLoad, time.Since(stage))

	stage = time.Now()
	set, err := fragment.DecodeContext(ctx, g.pool, packages...)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordStage(StageDecode, time.Since(stage))

	stage = time.Now()
	total := len(set.StructureDefinitions)
	set, err = g.filter.Apply(set)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordStage(StageFilter, time.Since(stage))
	if expr := g.filter.String(); expr != "" {
		log.Debug().Str("filter", expr).Int("kept", len(set.StructureDefinitions)).Int("total", total).Msg("fragments filtered")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	c := compiler.New(g.registry, compiler.Options{
		Release:             t.Release.String(),
		Overrides:           g.opts.Overrides,
		ManualProfiles:      g.opts.ManualProfiles,
		ComputeDependencies: g.opts.Emit.NeedsDependencies(),
		Logger:              &log,
	})
	graph, err := c.Compile(set)
	if err != nil {
		if expr := g.filter.String(); expr != "" && errors.Is(err, compiler.ErrUnresolvedType) {
			return nil, fmt.Errorf("%w (fragment filter %q kept %d of %d definitions; the filter must keep every type the kept ones use)",
				err, expr, len(set.StructureDefinitions), total)
		}
		return nil, err
	}
	g.metrics.RecordStage(StageCompile, time.Since(stage))

	res := &Result{
		Target:      t,
		FHIRVersion: set.FHIRVersion,
		ModulePath:  RootModulePath(g.opts.ModulePath, t.Release, g.opts.DefaultRelease),
		Graph:       graph,
		Fragments:   len(set.StructureDefinitions),
	}
	if res.FHIRVersion == "" {
		res.FHIRVersion = t.Version()
	}

	if g.opts.Emit.Dependencies {
		stage = time.Now()
		m, err := manifest.Build(graph, manifest.Info{
			Release:     t.Release.String(),
			FHIRVersion: res.FHIRVersion,
			Module:      res.ModulePath,
		})
		if err != nil {
			return nil, err
		}
		res.Manifest = m
		g.metrics.RecordStage(StageManifest, time.Since(stage))
	}
	return res, nil
}

// load returns the packages of t: its explicit source, or the release's
// default packages from the cache.
func (g *Generator) load(t Target) ([]*loader.Package, error) {
	if t.Source != "" {
		pkg, err := g.loader.Load(t.Source)
		if err != nil {
			return nil, err
		}
		if pkg.FHIRVersion == "" {
			pkg.FHIRVersion = t.Version()
		}
		return []*loader.Package{pkg}, nil
	}
	return g.loader.LoadVersion(t.Version())
}

// RootModulePath returns the output namespace of release. The default
// release uses base unqualified; other releases are suffixed with their
// name.
func RootModulePath(base string, release, defaultRelease Release) string {
	if release == defaultRelease {
		return base
	}
	if base == "" {
		return release.String()
	}
	return base + "." + release.String()
}
