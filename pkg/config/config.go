// Package config loads the generator configuration from a YAML file and
// TYPEGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"github.com/gofhir/typegraph"
	"github.com/gofhir/typegraph/pkg/compiler"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/property"
)

// EnvPrefix prefixes every environment variable, e.g. TYPEGRAPH_RELEASE or
// TYPEGRAPH_EMIT_TESTS.
const EnvPrefix = "TYPEGRAPH"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// ReleaseConfig is one release to compile.
type ReleaseConfig struct {
	Release     string `mapstructure:"release"`
	FHIRVersion string `mapstructure:"fhir_version"`
	Source      string `mapstructure:"source"`
}

// EmitConfig selects the emission categories.
type EmitConfig struct {
	Resources    bool `mapstructure:"resources"`
	Dependencies bool `mapstructure:"dependencies"`
	Tests        bool `mapstructure:"tests"`
	ValueSets    bool `mapstructure:"valuesets"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete generator configuration.
type Config struct {
	Release     string `mapstructure:"release"`
	FHIRVersion string `mapstructure:"fhir_version"`
	Source      string `mapstructure:"source"`

	PackageCache     string          `mapstructure:"package_cache"`
	PreviousReleases []ReleaseConfig `mapstructure:"previous_releases"`

	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	FragmentFilter string   `mapstructure:"fragment_filter"`

	ManualProfiles []compiler.ManualProfile `mapstructure:"manual_profiles"`
	Overrides      []property.Override      `mapstructure:"overrides"`
	Emit           EmitConfig               `mapstructure:"emit"`

	DefaultRelease string `mapstructure:"default_release"`
	ModulePath     string `mapstructure:"module_path"`
	Workers        int    `mapstructure:"workers"`

	Log LogConfig `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("release", "R4")
	v.SetDefault("fhir_version", "")
	v.SetDefault("source", "")
	v.SetDefault("package_cache", "")
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("fragment_filter", "")
	v.SetDefault("emit.resources", true)
	v.SetDefault("emit.dependencies", true)
	v.SetDefault("emit.tests", false)
	v.SetDefault("emit.valuesets", true)
	v.SetDefault("default_release", "")
	v.SetDefault("module_path", typegraph.DefaultModulePath)
	v.SetDefault("workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logger.FormatConsole))
}

// Load reads the configuration. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DefaultRelease == "" {
		cfg.DefaultRelease = cfg.Release
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks release names, log settings and list entries.
func (c *Config) Validate() error {
	var problems []string
	if _, err := typegraph.ParseRelease(c.Release); err != nil {
		problems = append(problems, err.Error())
	}
	for i, r := range c.PreviousReleases {
		if _, err := typegraph.ParseRelease(r.Release); err != nil {
			problems = append(problems, fmt.Sprintf("previous_releases[%d]: %v", i, err))
		}
	}
	if c.DefaultRelease != "" {
		if _, err := typegraph.ParseRelease(c.DefaultRelease); err != nil {
			problems = append(problems, fmt.Sprintf("default_release: %v", err))
		}
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch logger.Format(strings.ToLower(c.Log.Format)) {
	case "", logger.FormatConsole, logger.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}
	for i, mp := range c.ManualProfiles {
		if mp.Module == "" {
			problems = append(problems, fmt.Sprintf("manual_profiles[%d]: module is required", i))
		}
	}
	for i, o := range c.Overrides {
		if o.Release == "" || o.Class == "" || o.Property == "" || o.To == "" {
			problems = append(problems, fmt.Sprintf("overrides[%d]: release, class, property and to are required", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Options converts the configuration to generator options. Validate must
// have succeeded.
func (c *Config) Options() ([]typegraph.Option, error) {
	primary, err := target(ReleaseConfig{Release: c.Release, FHIRVersion: c.FHIRVersion, Source: c.Source})
	if err != nil {
		return nil, err
	}
	opts := []typegraph.Option{
		typegraph.WithTarget(primary),
		typegraph.WithModulePath(c.ModulePath),
		typegraph.WithPackageCache(c.PackageCache),
		typegraph.WithInclude(c.Include...),
		typegraph.WithExclude(c.Exclude...),
		typegraph.WithFragmentFilter(c.FragmentFilter),
		typegraph.WithManualProfiles(c.ManualProfiles...),
		typegraph.WithEmit(typegraph.Emit{
			Resources:    c.Emit.Resources,
			Dependencies: c.Emit.Dependencies,
			Tests:        c.Emit.Tests,
			ValueSets:    c.Emit.ValueSets,
		}),
		typegraph.WithWorkers(c.Workers),
	}

	def := primary.Release
	if c.DefaultRelease != "" {
		if def, err = typegraph.ParseRelease(c.DefaultRelease); err != nil {
			return nil, err
		}
	}
	opts = append(opts, typegraph.WithDefaultRelease(def))

	for _, rc := range c.PreviousReleases {
		t, err := target(rc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, typegraph.WithPreviousReleases(t))
	}
	if c.Overrides != nil {
		opts = append(opts, typegraph.WithOverrides(c.Overrides))
	}
	return opts, nil
}

func target(rc ReleaseConfig) (typegraph.Target, error) {
	r, err := typegraph.ParseRelease(rc.Release)
	if err != nil {
		return typegraph.Target{}, err
	}
	return typegraph.Target{Release: r, FHIRVersion: rc.FHIRVersion, Source: rc.Source}, nil
}

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger(w io.Writer) (*logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format := logger.Format(strings.ToLower(c.Log.Format))
	if format == "" {
		format = logger.FormatConsole
	}
	return logger.NewWithFormat(w, level, format), nil
}
