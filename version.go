package typegraph

import (
	"fmt"
	"sort"
	"strings"
)

// Version is the version of the gofhir-typegraph tool.
const Version = "0.1.0"

// Release names a FHIR specification release.
type Release string

// Supported FHIR releases.
const (
	// STU3 is FHIR Release 3 (3.0.2)
	STU3 Release = "STU3"
	// R4 is FHIR Release 4 (4.0.1)
	R4 Release = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B Release = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 Release = "R5"
)

// String returns the release name.
func (r Release) String() string {
	return string(r)
}

// IsValid returns true if this is a supported release.
func (r Release) IsValid() bool {
	_, ok := releaseConfigs[r]
	return ok
}

// FHIRVersion returns the specification version string of the release, as
// found in StructureDefinition.fhirVersion and package manifests.
func (r Release) FHIRVersion() string {
	return releaseConfigs[r].FHIRVersionString
}

// CorePackage returns the "name#version" spec of the release's core package.
func (r Release) CorePackage() string {
	cfg, ok := releaseConfigs[r]
	if !ok {
		return ""
	}
	return cfg.CorePackageName + "#" + cfg.FHIRVersionString
}

// releaseConfig holds release-specific configuration.
type releaseConfig struct {
	CorePackageName   string
	FHIRVersionString string
}

var releaseConfigs = map[Release]releaseConfig{
	STU3: {CorePackageName: "hl7.fhir.r3.core", FHIRVersionString: "3.0.2"},
	R4:   {CorePackageName: "hl7.fhir.r4.core", FHIRVersionString: "4.0.1"},
	R4B:  {CorePackageName: "hl7.fhir.r4b.core", FHIRVersionString: "4.3.0"},
	R5:   {CorePackageName: "hl7.fhir.r5.core", FHIRVersionString: "5.0.0"},
}

// ParseRelease parses a release name case-insensitively. "R3" is accepted
// for STU3.
func ParseRelease(s string) (Release, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "R3" {
		name = string(STU3)
	}
	r := Release(name)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown FHIR release %q (supported: %s)", s, strings.Join(releaseNames(), ", "))
	}
	return r, nil
}

// ReleaseForFHIRVersion returns the release publishing the given
// specification version.
func ReleaseForFHIRVersion(version string) (Release, bool) {
	for r, cfg := range releaseConfigs {
		if cfg.FHIRVersionString == version {
			return r, true
		}
	}
	return "", false
}

// Releases returns the supported releases ordered by specification version.
func Releases() []Release {
	out := make([]Release, 0, len(releaseConfigs))
	for r := range releaseConfigs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FHIRVersion() < out[j].FHIRVersion() })
	return out
}

func releaseNames() []string {
	var names []string
	for _, r := range Releases() {
		names = append(names, r.String())
	}
	return names
}
