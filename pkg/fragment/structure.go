// Package fragment decodes the conformance resources of a release into the
// shapes the compiler consumes.
//
// StructureDefinitions use lightweight structs rather than the typed FHIR
// models so that STU3, R4, R4B and R5 documents decode through one path:
// fields whose JSON shape changed between releases (profile, targetProfile,
// min, binding.valueSet) accept every historical form.
package fragment

import (
	"encoding/json"
	"strings"

	"github.com/gofhir/typegraph/pkg/classify"
)

// Extension URLs that affect type resolution.
const (
	FHIRTypeExtension         = "http://hl7.org/fhir/StructureDefinition/structuredefinition-fhir-type"
	JSONTypeExtension         = "http://hl7.org/fhir/StructureDefinition/structuredefinition-json-type"
	ExplicitTypeNameExtension = "http://hl7.org/fhir/StructureDefinition/structuredefinition-explicit-type-name"
)

// Derivation values.
const (
	DerivationSpecialization = "specialization"
	DerivationConstraint     = "constraint"
)

// StructureDefinition represents a minimal view of a FHIR StructureDefinition.
type StructureDefinition struct {
	ResourceType   string      `json:"resourceType"`
	ID             string      `json:"id"`
	URL            string      `json:"url"`
	Name           string      `json:"name"`
	Title          string      `json:"title,omitempty"`
	Status         string      `json:"status,omitempty"`
	Description    string      `json:"description,omitempty"`
	FHIRVersion    string      `json:"fhirVersion,omitempty"`
	Kind           string      `json:"kind"` // resource, complex-type, primitive-type, logical
	Abstract       bool        `json:"abstract"`
	Type           string      `json:"type"`
	BaseDefinition string      `json:"baseDefinition"`
	Derivation     string      `json:"derivation"`
	Extension      []Extension `json:"extension,omitempty"`

	Snapshot     *ElementList `json:"snapshot,omitempty"`
	Differential *ElementList `json:"differential,omitempty"`

	raw json.RawMessage
}

// Raw returns the JSON the definition was decoded from.
func (sd *StructureDefinition) Raw() json.RawMessage {
	return sd.raw
}

// IsConstraint reports whether the definition profiles another type rather
// than defining one.
func (sd *StructureDefinition) IsConstraint() bool {
	return sd.Derivation == DerivationConstraint
}

// Elements returns the snapshot elements, or the differential when the
// definition carries no snapshot.
func (sd *StructureDefinition) Elements() []ElementDefinition {
	if sd.Snapshot != nil && len(sd.Snapshot.Element) > 0 {
		return sd.Snapshot.Element
	}
	if sd.Differential != nil {
		return sd.Differential.Element
	}
	return nil
}

// HasSnapshot reports whether the definition carries a snapshot.
func (sd *StructureDefinition) HasSnapshot() bool {
	return sd.Snapshot != nil && len(sd.Snapshot.Element) > 0
}

// ElementList is the element array of a snapshot or differential.
type ElementList struct {
	Element []ElementDefinition `json:"element"`
}

// ElementDefinition represents a FHIR ElementDefinition.
type ElementDefinition struct {
	ID         string       `json:"id"`
	Path       string       `json:"path"`
	SliceName  string       `json:"sliceName,omitempty"`
	Short      string       `json:"short,omitempty"`
	Definition string       `json:"definition,omitempty"`
	Min        Text         `json:"min"`
	Max        string       `json:"max"`
	Base       *ElementBase `json:"base,omitempty"`
	Type       []Type       `json:"type,omitempty"`
	Binding    *Binding     `json:"binding,omitempty"`
	IsModifier bool         `json:"isModifier,omitempty"`
	IsSummary  bool         `json:"isSummary,omitempty"`
	Extension  []Extension  `json:"extension,omitempty"`

	// ContentReference references another element's definition for recursive structures.
	// Format: "#ElementPath" (e.g., "#Questionnaire.item" for Questionnaire.item.item)
	ContentReference string `json:"contentReference,omitempty"`
}

// IsSliced reports whether the element defines a slice.
func (ed *ElementDefinition) IsSliced() bool {
	return ed.SliceName != "" || strings.Contains(ed.ID, ":")
}

// ExplicitTypeName returns the value of the explicit-type-name extension.
func (ed *ElementDefinition) ExplicitTypeName() string {
	return extensionValue(ed.Extension, ExplicitTypeNameExtension)
}

// ContentReferencePath returns the referenced element path without the
// leading "#", tolerating full-URL forms.
func (ed *ElementDefinition) ContentReferencePath() string {
	ref := ed.ContentReference
	if i := strings.LastIndex(ref, "#"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// ElementBase records where an element was originally defined.
type ElementBase struct {
	Path string `json:"path"`
	Min  Text   `json:"min"`
	Max  string `json:"max"`
}

// Type represents an allowed type for an element.
type Type struct {
	Code          string      `json:"code"`
	CodeElement   *Element    `json:"_code,omitempty"`
	Profile       StringList  `json:"profile,omitempty"`
	TargetProfile StringList  `json:"targetProfile,omitempty"`
	Extension     []Extension `json:"extension,omitempty"`
}

// Name returns the normalized type name: the fhir-type extension wins over a
// FHIRPath system code, and an STU3 json-type extension on _code maps to the
// matching system type.
func (t Type) Name() string {
	if v := extensionValue(t.Extension, FHIRTypeExtension); v != "" {
		return v
	}
	if t.Code == "" && t.CodeElement != nil {
		if v := extensionValue(t.CodeElement.Extension, JSONTypeExtension); v != "" {
			return classify.SystemType(v)
		}
	}
	return t.Code
}

// Element carries the extensions of a primitive (the "_field" JSON form).
type Element struct {
	Extension []Extension `json:"extension,omitempty"`
}

// Extension represents a FHIR extension.
type Extension struct {
	URL         string `json:"url"`
	ValueString string `json:"valueString,omitempty"`
	ValueURL    string `json:"valueUrl,omitempty"`
	ValueURI    string `json:"valueUri,omitempty"`
	ValueCode   string `json:"valueCode,omitempty"`
}

// Value returns the first populated value.
func (e Extension) Value() string {
	for _, v := range []string{e.ValueURL, e.ValueURI, e.ValueString, e.ValueCode} {
		if v != "" {
			return v
		}
	}
	return ""
}

func extensionValue(exts []Extension, url string) string {
	for _, e := range exts {
		if e.URL == url {
			return e.Value()
		}
	}
	return ""
}

// Binding represents a terminology binding.
type Binding struct {
	Strength    string `json:"strength"` // required | extensible | preferred | example
	ValueSet    string `json:"valueSet"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts the R4+ valueSet canonical as well as the STU3
// valueSetUri and valueSetReference forms.
func (b *Binding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Strength          string `json:"strength"`
		ValueSet          string `json:"valueSet"`
		ValueSetURI       string `json:"valueSetUri"`
		Description       string `json:"description"`
		ValueSetReference *struct {
			Reference string `json:"reference"`
		} `json:"valueSetReference"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Strength = raw.Strength
	b.Description = raw.Description
	switch {
	case raw.ValueSet != "":
		b.ValueSet = raw.ValueSet
	case raw.ValueSetURI != "":
		b.ValueSet = raw.ValueSetURI
	case raw.ValueSetReference != nil:
		b.ValueSet = raw.ValueSetReference.Reference
	}
	return nil
}
