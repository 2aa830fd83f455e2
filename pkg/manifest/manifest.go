// Package manifest describes the cross-profile dependencies of a compiled
// release: for every writable profile, the classes it imports and the
// classes that may appear behind its references.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gofhir/typegraph/pkg/compiler"
)

// Info identifies the release a manifest was built from.
type Info struct {
	Release     string `yaml:"release"`
	FHIRVersion string `yaml:"fhirVersion,omitempty"`
	Module      string `yaml:"module,omitempty"`
}

// Resource is the dependency entry of one profile.
type Resource struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url,omitempty"`
	Imports    []string `yaml:"imports"`
	References []string `yaml:"references"`
}

// Manifest is the dependency document of one release.
type Manifest struct {
	Info      Info       `yaml:"info"`
	Resources []Resource `yaml:"resources"`
}

// Build collects the dependency sets of g's writable profiles, sorted by
// name. The graph must have been compiled with dependency computation
// enabled.
func Build(g *compiler.Graph, info Info) (*Manifest, error) {
	if info.Release == "" {
		info.Release = g.Release
	}
	m := &Manifest{Info: info}
	for _, p := range g.WritableProfiles() {
		if !p.DependenciesComputed() {
			return nil, fmt.Errorf("profile %q: dependencies were not computed", p.TargetName)
		}
		m.Resources = append(m.Resources, Resource{
			Name:       p.TargetName,
			URL:        p.URL,
			Imports:    p.NeededExternalClasses(),
			References: p.ReferencedClasses(),
		})
	}
	sort.SliceStable(m.Resources, func(i, j int) bool { return m.Resources[i].Name < m.Resources[j].Name })
	return m, nil
}

// Lookup returns the entry with the given name.
func (m *Manifest) Lookup(name string) (Resource, bool) {
	i := sort.Search(len(m.Resources), func(i int) bool { return m.Resources[i].Name >= name })
	if i < len(m.Resources) && m.Resources[i].Name == name {
		return m.Resources[i], true
	}
	return Resource{}, false
}

// Encode writes m as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}

// Marshal returns m as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes m to path.
func (m *Manifest) WriteFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Decode reads a manifest from YAML.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ReadFile reads a manifest written by WriteFile.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Decode(data)
}
