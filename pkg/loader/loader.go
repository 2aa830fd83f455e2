// Package loader reads the fragments of one FHIR release from local sources:
// the NPM package cache, a .tgz package, or a plain directory of JSON
// resources and Bundles.
package loader

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gofhir/typegraph/pkg/logger"
)

// ErrPackageNotFound is returned when a package is absent from the cache.
var ErrPackageNotFound = errors.New("package not found")

// DefaultPackagePath returns the default FHIR package cache path.
func DefaultPackagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fhir", "packages")
}

// PackageRef represents a reference to a FHIR package.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the package spec in "name#version" format.
func (p PackageRef) String() string {
	return fmt.Sprintf("%s#%s", p.Name, p.Version)
}

// Resource is one decoded-on-demand JSON resource of a package.
type Resource struct {
	ResourceType string
	ID           string
	URL          string
	// Source is the file the resource came from, relative to the package
	// root. Bundle entries share their Bundle's source.
	Source string
	Data   json.RawMessage
}

// Key returns the URL when present, else "resourceType/id".
func (r Resource) Key() string {
	if r.URL != "" {
		return r.URL
	}
	return r.ResourceType + "/" + r.ID
}

// Package represents a loaded FHIR package or release directory.
type Package struct {
	Name        string
	Version     string
	Path        string
	FHIRVersion string
	// Resources are ordered by source file, then position within a Bundle.
	Resources []Resource
}

// OfType returns the resources with the given resourceType, in package order.
func (p *Package) OfType(resourceType string) []Resource {
	var out []Resource
	for _, r := range p.Resources {
		if r.ResourceType == resourceType {
			out = append(out, r)
		}
	}
	return out
}

// PackageManifest represents the package.json of a FHIR NPM package.
type PackageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	FHIRVersion  string            `json:"fhirVersion,omitempty"`
	FHIRVersions []string          `json:"fhirVersions,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (m PackageManifest) fhirVersion() string {
	if m.FHIRVersion != "" {
		return m.FHIRVersion
	}
	if len(m.FHIRVersions) > 0 {
		return m.FHIRVersions[0]
	}
	return ""
}

// DefaultPackages maps FHIR versions to their core package. Only the core
// package carries the StructureDefinitions of a release.
var DefaultPackages = map[string][]PackageRef{
	"3.0.2": {
		{Name: "hl7.fhir.r3.core", Version: "3.0.2"},
	},
	"4.0.1": {
		{Name: "hl7.fhir.r4.core", Version: "4.0.1"},
		{Name: "hl7.terminology.r4", Version: "7.0.1"},
	},
	"4.3.0": {
		{Name: "hl7.fhir.r4b.core", Version: "4.3.0"},
		{Name: "hl7.terminology.r4", Version: "7.0.1"},
	},
	"5.0.0": {
		{Name: "hl7.fhir.r5.core", Version: "5.0.0"},
		{Name: "hl7.terminology.r5", Version: "7.0.1"},
	},
}

// Loader loads FHIR packages from the NPM cache or local files.
type Loader struct {
	basePath string
	include  []string
	exclude  []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithInclude keeps only files matching one of the doublestar patterns.
// Patterns are matched against slash-separated paths relative to the
// package root, e.g. "StructureDefinition-*.json" or "**/profiles-*.json".
func WithInclude(patterns ...string) Option {
	return func(l *Loader) { l.include = append(l.include, patterns...) }
}

// WithExclude drops files matching one of the doublestar patterns.
func WithExclude(patterns ...string) Option {
	return func(l *Loader) { l.exclude = append(l.exclude, patterns...) }
}

// NewLoader creates a new Loader with the given cache path.
func NewLoader(basePath string, opts ...Option) *Loader {
	if basePath == "" {
		basePath = DefaultPackagePath()
	}
	l := &Loader{basePath: basePath}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidatePatterns reports the first malformed include/exclude pattern.
func (l *Loader) ValidatePatterns() error {
	for _, p := range append(append([]string{}, l.include...), l.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid file pattern %q", p)
		}
	}
	return nil
}

// selected applies include/exclude patterns to a slash-separated path.
func (l *Loader) selected(name string) bool {
	base := path.Base(name)
	match := func(patterns []string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				return true
			}
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
		return false
	}
	if len(l.include) > 0 && !match(l.include) {
		return false
	}
	return !match(l.exclude)
}

// Load resolves source to a package. A source is a directory, a .tgz file,
// or a "name#version" package spec looked up in the cache.
func (l *Loader) Load(source string) (*Package, error) {
	if info, err := os.Stat(source); err == nil {
		if info.IsDir() {
			return l.LoadDir(source)
		}
		if strings.HasSuffix(source, ".tgz") || strings.HasSuffix(source, ".tar.gz") {
			return l.LoadFromTgz(source)
		}
		return nil, fmt.Errorf("unsupported source %s: want a directory or a .tgz package", source)
	}
	name, version := ParsePackageSpec(source)
	if version == "" {
		return nil, fmt.Errorf("source %q: %w", source, ErrPackageNotFound)
	}
	return l.LoadPackage(name, version)
}

// LoadPackage loads a specific package by name and version from the cache.
func (l *Loader) LoadPackage(name, version string) (*Package, error) {
	pkgDir := filepath.Join(l.basePath, fmt.Sprintf("%s#%s", name, version))

	if _, err := os.Stat(pkgDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s#%s at %s: %w", name, version, pkgDir, ErrPackageNotFound)
	}

	pkg, err := l.LoadDir(pkgDir)
	if err != nil {
		return nil, err
	}
	if pkg.Name == "" {
		pkg.Name = name
	}
	if pkg.Version == "" {
		pkg.Version = version
	}
	return pkg, nil
}

// LoadPackageRef loads a package from a PackageRef.
func (l *Loader) LoadPackageRef(ref PackageRef) (*Package, error) {
	return l.LoadPackage(ref.Name, ref.Version)
}

// LoadVersion loads the default packages for a specific FHIR version.
func (l *Loader) LoadVersion(version string) ([]*Package, error) {
	refs, ok := DefaultPackages[version]
	if !ok {
		return nil, fmt.Errorf("unknown FHIR version: %s (supported: %s)", version, strings.Join(SupportedVersions(), ", "))
	}

	packages := make([]*Package, 0, len(refs))
	for _, ref := range refs {
		pkg, err := l.LoadPackageRef(ref)
		if err != nil {
			// Core package is required, others are optional
			if strings.Contains(ref.Name, ".core") {
				return nil, fmt.Errorf("failed to load core package: %w", err)
			}
			logger.Warn("skipping optional package %s: %v", ref, err)
			continue
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

// SupportedVersions lists the FHIR versions with default packages, sorted.
func SupportedVersions() []string {
	out := make([]string, 0, len(DefaultPackages))
	for v := range DefaultPackages {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ParsePackageSpec parses "name#version" into separate components.
func ParsePackageSpec(spec string) (name, version string) {
	parts := strings.SplitN(spec, "#", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return spec, ""
}

// LoadDir loads every JSON resource below dir. An NPM layout with a
// "package" subdirectory is detected and its manifest read.
func (l *Loader) LoadDir(dir string) (*Package, error) {
	root := dir
	if info, err := os.Stat(filepath.Join(dir, "package")); err == nil && info.IsDir() {
		root = filepath.Join(dir, "package")
	}

	pkg := &Package{Name: filepath.Base(dir), Path: dir}
	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var manifest PackageManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse package manifest: %w", err)
		}
		pkg.Name = manifest.Name
		pkg.Version = manifest.Version
		pkg.FHIRVersion = manifest.fhirVersion()
	}

	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, "**/*.json")
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	sort.Strings(matches)

	for _, name := range matches {
		if skipFile(name) || !l.selected(name) {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			logger.Warn("skipping unreadable file %s: %v", name, err)
			continue
		}
		pkg.add(name, data)
	}
	return pkg, nil
}

// LoadFromTgz loads a FHIR package from a local .tgz file.
func (l *Loader) LoadFromTgz(tgzPath string) (*Package, error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tgz file: %w", err)
	}
	defer file.Close()

	return l.loadFromTgzReader(file, tgzPath)
}

// loadFromTgzReader loads a package from a gzipped tar reader.
func (l *Loader) loadFromTgzReader(reader io.Reader, source string) (*Package, error) {
	gzReader, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	pkg := &Package{Path: source}
	files := make(map[string][]byte)
	var manifestData []byte

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}

		// Normalize path (remove leading "package/" if present)
		name := strings.TrimPrefix(header.Name, "package/")
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		if name == "package.json" {
			manifestData = data
			continue
		}
		if skipFile(name) || !l.selected(name) {
			continue
		}
		files[name] = data
	}

	if manifestData == nil {
		return nil, fmt.Errorf("package.json not found in %s", source)
	}
	var manifest PackageManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}
	pkg.Name = manifest.Name
	pkg.Version = manifest.Version
	pkg.FHIRVersion = manifest.fhirVersion()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pkg.add(name, files[name])
	}
	return pkg, nil
}

// LoadFromResources builds an in-memory package from raw JSON resources.
// Invalid JSON is skipped.
func (l *Loader) LoadFromResources(resources [][]byte) *Package {
	pkg := &Package{Name: "custom", Path: "memory"}
	for i, data := range resources {
		pkg.add(fmt.Sprintf("resource-%04d.json", i), data)
	}
	return pkg
}

func skipFile(name string) bool {
	base := path.Base(name)
	return base == "package.json" || base == ".index.json" || strings.HasPrefix(base, ".")
}

type header struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	URL          string `json:"url"`
}

type bundle struct {
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// add indexes data, unpacking Bundles into their entries.
func (p *Package) add(source string, data []byte) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil || h.ResourceType == "" {
		return
	}
	if h.ResourceType != "Bundle" {
		p.Resources = append(p.Resources, Resource{
			ResourceType: h.ResourceType,
			ID:           h.ID,
			URL:          h.URL,
			Source:       source,
			Data:         data,
		})
		return
	}

	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		logger.Warn("skipping malformed bundle %s: %v", source, err)
		return
	}
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		p.add(source, e.Resource)
	}
}
