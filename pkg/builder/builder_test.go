package builder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/model"
	"github.com/gofhir/typegraph/pkg/property"
	"github.com/gofhir/typegraph/pkg/registry"
)

const patientJSON = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Patient",
	"name": "Patient",
	"kind": "resource",
	"abstract": false,
	"type": "Patient",
	"baseDefinition": "http://hl7.org/fhir/StructureDefinition/DomainResource",
	"derivation": "specialization",
	"snapshot": {"element": [
		{"id": "Patient", "path": "Patient", "short": "Information about an individual", "min": 0, "max": "*", "base": {"path": "Patient", "min": 0, "max": "*"}},
		{"id": "Patient.id", "path": "Patient.id", "min": 0, "max": "1", "base": {"path": "Resource.id", "min": 0, "max": "1"},
			"type": [{"code": "id"}]},
		{"id": "Patient.identifier", "path": "Patient.identifier", "min": 0, "max": "*", "base": {"path": "Patient.identifier", "min": 0, "max": "*"},
			"type": [{"code": "Identifier"}]},
		{"id": "Patient.active", "path": "Patient.active", "min": 0, "max": "1", "base": {"path": "Patient.active", "min": 0, "max": "1"},
			"type": [{"code": "boolean"}], "isModifier": true, "isSummary": true},
		{"id": "Patient.name", "path": "Patient.name", "min": 0, "max": "*", "base": {"path": "Patient.name", "min": 0, "max": "*"},
			"type": [{"code": "HumanName"}]},
		{"id": "Patient.gender", "path": "Patient.gender", "short": "male | female | other | unknown", "min": 0, "max": "1",
			"base": {"path": "Patient.gender", "min": 0, "max": "1"}, "type": [{"code": "code"}],
			"binding": {"strength": "required", "valueSet": "http://hl7.org/fhir/ValueSet/administrative-gender|4.0.1"}},
		{"id": "Patient.deceased[x]", "path": "Patient.deceased[x]", "min": 0, "max": "1", "base": {"path": "Patient.deceased[x]", "min": 0, "max": "1"},
			"type": [{"code": "boolean"}, {"code": "dateTime"}]},
		{"id": "Patient.contact", "path": "Patient.contact", "min": 0, "max": "*", "base": {"path": "Patient.contact", "min": 0, "max": "*"},
			"type": [{"code": "BackboneElement"}]},
		{"id": "Patient.contact.id", "path": "Patient.contact.id", "min": 0, "max": "1", "base": {"path": "Element.id", "min": 0, "max": "1"},
			"type": [{"code": "string"}]},
		{"id": "Patient.contact.name", "path": "Patient.contact.name", "min": 0, "max": "1", "base": {"path": "Patient.contact.name", "min": 0, "max": "1"},
			"type": [{"code": "HumanName"}]},
		{"id": "Patient.managingOrganization", "path": "Patient.managingOrganization", "min": 0, "max": "1",
			"base": {"path": "Patient.managingOrganization", "min": 0, "max": "1"},
			"type": [{"code": "Reference", "targetProfile": ["http://hl7.org/fhir/StructureDefinition/Organization"]}]},
		{"id": "Patient.link", "path": "Patient.link", "min": 0, "max": "0", "base": {"path": "Patient.link", "min": 0, "max": "*"},
			"type": [{"code": "BackboneElement"}]},
		{"id": "Patient.link.other", "path": "Patient.link.other", "min": 1, "max": "1", "base": {"path": "Patient.link.other", "min": 1, "max": "1"},
			"type": [{"code": "Reference"}]},
		{"id": "Patient.identifier:mrn", "path": "Patient.identifier", "sliceName": "mrn", "min": 0, "max": "1",
			"base": {"path": "Patient.identifier", "min": 0, "max": "*"}, "type": [{"code": "Identifier"}]}
	]}
}`

const questionnaireJSON = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Questionnaire",
	"name": "Questionnaire",
	"kind": "resource",
	"type": "Questionnaire",
	"baseDefinition": "http://hl7.org/fhir/StructureDefinition/DomainResource",
	"derivation": "specialization",
	"snapshot": {"element": [
		{"path": "Questionnaire", "min": 0, "max": "*"},
		{"path": "Questionnaire.item", "min": 0, "max": "*", "type": [{"code": "BackboneElement"}]},
		{"path": "Questionnaire.item.linkId", "min": 1, "max": "1", "type": [{"code": "string"}]},
		{"path": "Questionnaire.item.item", "min": 0, "max": "*", "contentReference": "#Questionnaire.item"}
	]}
}`

const observationJSON = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Observation",
	"name": "Observation",
	"kind": "resource",
	"type": "Observation",
	"derivation": "specialization",
	"snapshot": {"element": [
		{"path": "Observation", "min": 0, "max": "*"},
		{"path": "Observation.status", "min": 1, "max": "1", "type": [{"code": "code"}],
			"short": "registered | preliminary | final | amended +"},
		{"path": "Observation.value[x]", "min": 0, "max": "1",
			"type": [{"code": "Quantity"}, {"code": "string"}, {"code": "Reference", "targetProfile": ["http://hl7.org/fhir/StructureDefinition/Patient"]}]},
		{"path": "Observation.component", "min": 0, "max": "*", "type": [{"code": "BackboneElement"}],
			"extension": [{"url": "http://hl7.org/fhir/StructureDefinition/structuredefinition-explicit-type-name", "valueString": "Component"}]},
		{"path": "Observation.component.code", "min": 1, "max": "1", "type": [{"code": "CodeableConcept"}]}
	]}
}`

func decode(t *testing.T, data string) *fragment.StructureDefinition {
	t.Helper()
	sd, err := fragment.DecodeStructureDefinition([]byte(data))
	require.NoError(t, err)
	return sd
}

func newBuilder(release string) (*Builder, *registry.Registry) {
	reg := registry.New()
	return New(reg, property.NewResolver(reg, release, property.DefaultOverrides())), reg
}

func propNames(c *model.Class) []string {
	var out []string
	for _, p := range c.Properties {
		out = append(out, p.Name)
	}
	return out
}

func TestBuildPatient(t *testing.T) {
	b, reg := newBuilder("R4")
	b.IndexURLs([]*fragment.StructureDefinition{{URL: "http://hl7.org/fhir/StructureDefinition/DomainResource", Type: "DomainResource", Derivation: "specialization"}})

	classes, err := b.Build(decode(t, patientJSON))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	patient := classes[0]
	assert.Equal(t, "Patient", patient.Name)
	assert.Equal(t, model.KindResource, patient.Kind)
	assert.Equal(t, "DomainResource", patient.Superclass)
	assert.Equal(t, "http://hl7.org/fhir/StructureDefinition/Patient", patient.SourceURL)
	assert.Equal(t, "Information about an individual", patient.Short)
	assert.Equal(t, []string{"identifier", "active", "name", "gender", "deceasedBoolean", "deceasedDateTime", "contact", "managingOrganization"}, propNames(patient))

	name := patient.Property("name")
	require.NotNil(t, name)
	assert.True(t, name.IsArray)
	assert.Equal(t, "HumanName", name.DeclaredTypeName)

	gender := patient.Property("gender")
	assert.Equal(t, []string{"male", "female", "other", "unknown"}, gender.EnumValues)
	require.NotNil(t, gender.Binding)
	assert.Equal(t, "required", gender.Binding.Strength)

	active := patient.Property("active")
	assert.True(t, active.IsModifier)
	assert.True(t, active.IsSummary)

	groups := patient.ChoiceGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, model.ChoiceGroup{Name: "deceased", Members: []string{"deceasedBoolean", "deceasedDateTime"}}, groups[0])

	contact := classes[1]
	assert.Equal(t, "PatientContact", contact.Name)
	assert.Equal(t, model.KindComplexType, contact.Kind)
	assert.Equal(t, "BackboneElement", contact.Superclass)
	assert.Equal(t, []string{"name"}, propNames(contact), "inherited Element.id is skipped")
	assert.Equal(t, "PatientContact", patient.Property("contact").DeclaredTypeName)
	assert.True(t, patient.Property("contact").IsArray)

	assert.Equal(t, []string{"http://hl7.org/fhir/StructureDefinition/Organization"},
		patient.Property("managingOrganization").TargetProfiles)

	_, linked := reg.Lookup("PatientLink")
	assert.False(t, linked, "max 0 backbone declares no class")

	canonical, ok := reg.Lookup("Patient")
	require.True(t, ok)
	assert.Same(t, patient, canonical)
}

func TestBuildContentReference(t *testing.T) {
	b, _ := newBuilder("R4")
	classes, err := b.Build(decode(t, questionnaireJSON))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	item := classes[1]
	assert.Equal(t, "QuestionnaireItem", item.Name)
	nestedItem := item.Property("item")
	require.NotNil(t, nestedItem)
	assert.Equal(t, "QuestionnaireItem", nestedItem.DeclaredTypeName)
	assert.True(t, nestedItem.IsArray)
}

func TestBuildChoiceAndExplicitTypeName(t *testing.T) {
	b, _ := newBuilder("R4")
	classes, err := b.Build(decode(t, observationJSON))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	obs := classes[0]
	assert.Equal(t, []string{"status", "valueQuantity", "valueString", "valueReference", "component"}, propNames(obs))
	assert.True(t, obs.Property("status").EnumExtensible)
	assert.Equal(t, []string{"registered", "preliminary", "final", "amended"}, obs.Property("status").EnumValues)
	assert.Equal(t, []string{"http://hl7.org/fhir/StructureDefinition/Patient"}, obs.Property("valueReference").TargetProfiles)
	assert.Empty(t, obs.Property("valueQuantity").TargetProfiles)
	for _, name := range []string{"valueQuantity", "valueString", "valueReference"} {
		assert.Equal(t, "value", obs.Property(name).ChoiceGroup)
	}

	assert.Equal(t, "ObservationComponent", classes[1].Name)
	assert.Equal(t, "ObservationComponent", obs.Property("component").DeclaredTypeName)
}

const stu3ObservationJSON = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Observation",
	"name": "Observation",
	"kind": "resource",
	"type": "Observation",
	"snapshot": {"element": [
		{"path": "Observation", "min": 0, "max": "*"},
		{"path": "Observation.subject", "min": 0, "max": "1", "type": [
			{"code": "Reference", "targetProfile": "http://hl7.org/fhir/StructureDefinition/Patient"},
			{"code": "Reference", "targetProfile": "http://hl7.org/fhir/StructureDefinition/Group"}]},
		{"path": "Observation.value[x]", "min": 0, "max": "1", "type": [
			{"code": "Quantity"},
			{"code": "Reference", "targetProfile": "http://hl7.org/fhir/StructureDefinition/Patient"},
			{"code": "Reference", "targetProfile": "http://hl7.org/fhir/StructureDefinition/Group"}]}
	]}
}`

func TestBuildMergesRepeatedReferenceTypes(t *testing.T) {
	b, _ := newBuilder("STU3")
	classes, err := b.Build(decode(t, stu3ObservationJSON))
	require.NoError(t, err)

	obs := classes[0]
	assert.Equal(t, []string{"subject", "valueQuantity", "valueReference"}, propNames(obs))
	targets := []string{
		"http://hl7.org/fhir/StructureDefinition/Patient",
		"http://hl7.org/fhir/StructureDefinition/Group",
	}
	assert.Equal(t, targets, obs.Property("subject").TargetProfiles)
	assert.Equal(t, targets, obs.Property("valueReference").TargetProfiles)
	assert.Empty(t, obs.Property("valueQuantity").TargetProfiles)
	assert.Equal(t, "value", obs.Property("valueReference").ChoiceGroup)
}

func TestMergeTypes(t *testing.T) {
	got := mergeTypes([]fragment.Type{
		{Code: "Reference", TargetProfile: fragment.StringList{"a"}},
		{Code: "string"},
		{Code: "Reference", TargetProfile: fragment.StringList{"b", "a"}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, allowedType{name: "Reference", targets: []string{"a", "b"}}, got[0])
	assert.Equal(t, allowedType{name: "string"}, got[1])
}

func TestBuildConstraintProfile(t *testing.T) {
	profile := `{
		"resourceType": "StructureDefinition",
		"url": "http://example.org/StructureDefinition/us-core-patient",
		"name": "USCorePatientProfile",
		"kind": "resource",
		"type": "Patient",
		"baseDefinition": "http://hl7.org/fhir/StructureDefinition/Patient",
		"derivation": "constraint",
		"snapshot": {"element": [
			{"path": "Patient", "min": 0, "max": "*", "base": {"path": "Patient", "min": 0, "max": "*"}},
			{"path": "Patient.identifier", "min": 1, "max": "*", "base": {"path": "Patient.identifier", "min": 0, "max": "*"}, "type": [{"code": "Identifier"}]},
			{"path": "Patient.identifier.system", "min": 1, "max": "1", "base": {"path": "Identifier.system", "min": 0, "max": "1"}, "type": [{"code": "uri"}]}
		]}
	}`
	b, _ := newBuilder("R4")
	b.IndexURLs([]*fragment.StructureDefinition{decode(t, patientJSON)})

	classes, err := b.Build(decode(t, profile))
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "USCorePatientProfile", classes[0].Name)
	assert.Equal(t, "Patient", classes[0].Superclass)
	assert.Equal(t, []string{"identifier"}, propNames(classes[0]))
	assert.True(t, classes[0].Property("identifier").Required)
}

func TestBuildMergesRedeclaredClass(t *testing.T) {
	first := `{
		"resourceType": "StructureDefinition", "url": "http://hl7.org/fhir/StructureDefinition/Extension",
		"name": "Extension", "kind": "complex-type", "type": "Extension", "derivation": "specialization",
		"snapshot": {"element": [
			{"path": "Extension", "min": 0, "max": "*"},
			{"path": "Extension.url", "min": 1, "max": "1", "type": [{"code": "uri"}]},
			{"path": "Extension.value[x]", "min": 0, "max": "1", "type": [{"code": "string"}]}
		]}
	}`
	second := `{
		"resourceType": "StructureDefinition", "url": "http://example.org/StructureDefinition/Extension",
		"name": "Extension", "kind": "complex-type", "type": "Extension", "derivation": "specialization",
		"snapshot": {"element": [
			{"path": "Extension", "min": 0, "max": "*"},
			{"path": "Extension.url", "min": 1, "max": "1", "type": [{"extension": [{"url": "http://hl7.org/fhir/StructureDefinition/structuredefinition-fhir-type", "valueUrl": "uri"}], "code": "http://hl7.org/fhirpath/System.String"}]}
		]}
	}`

	b, _ := newBuilder("R4")
	c1, err := b.Build(decode(t, first))
	require.NoError(t, err)
	c2, err := b.Build(decode(t, second))
	require.NoError(t, err)

	assert.Same(t, c1[0], c2[0])
	ext := c2[0]
	assert.Equal(t, []string{"url", "valueString"}, propNames(ext))
	assert.Equal(t, "http://example.org/StructureDefinition/Extension", ext.SourceURL)
	assert.True(t, ext.Property("url").Required)
	assert.Empty(t, ext.RequiredPrimitiveElements(), "Extension is exempt from the required primitive rule")
}

func TestBuildInvalidCardinality(t *testing.T) {
	bad := `{
		"resourceType": "StructureDefinition", "url": "http://example.org/StructureDefinition/Bad",
		"name": "Bad", "kind": "complex-type", "type": "Bad",
		"snapshot": {"element": [
			{"path": "Bad", "min": 0, "max": "*"},
			{"path": "Bad.value", "min": 0, "max": "several", "type": [{"code": "string"}]}
		]}
	}`
	b, _ := newBuilder("R4")
	_, err := b.Build(decode(t, bad))
	require.Error(t, err)

	var fe *FragmentError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "http://example.org/StructureDefinition/Bad", fe.Fragment)
	assert.Equal(t, "Bad.value", fe.Path)
	assert.True(t, errors.Is(err, property.ErrInvalidCardinality))
}

func TestBuildUnresolvedContentReference(t *testing.T) {
	bad := `{
		"resourceType": "StructureDefinition", "name": "Loop", "kind": "logical", "type": "Loop",
		"differential": {"element": [
			{"path": "Loop", "min": 0, "max": "*"},
			{"path": "Loop.next", "min": 0, "max": "1", "contentReference": "#Loop.missing"}
		]}
	}`
	b, _ := newBuilder("R5")
	_, err := b.Build(decode(t, bad))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedType))

	var fe *FragmentError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Loop", fe.Fragment)
}

func TestBuildAbstractMarkerWithoutFields(t *testing.T) {
	marker := `{"resourceType": "StructureDefinition", "url": "http://hl7.org/fhir/StructureDefinition/Base",
		"name": "Base", "kind": "logical", "abstract": true, "type": "Base",
		"snapshot": {"element": [{"path": "Base", "min": 0, "max": "*"}]}}`
	b, _ := newBuilder("R5")
	classes, err := b.Build(decode(t, marker))
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.True(t, classes[0].Abstract)
	assert.Empty(t, classes[0].Properties)
	assert.Empty(t, classes[0].Superclass)
}

func TestClassName(t *testing.T) {
	tests := []struct {
		sd   fragment.StructureDefinition
		want string
	}{
		{fragment.StructureDefinition{Type: "Patient", Name: "Patient"}, "Patient"},
		{fragment.StructureDefinition{Type: "Patient", Name: "us-core-patient", Derivation: "constraint"}, "UsCorePatient"},
		{fragment.StructureDefinition{Type: "http://hl7.org/fhir/cda/StructureDefinition/ClinicalDocument", Name: "ClinicalDocument", Kind: "logical"}, "ClinicalDocument"},
		{fragment.StructureDefinition{Type: "Extension", Name: "", ID: "patient-birthPlace", Derivation: "constraint"}, "PatientBirthPlace"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassName(&tt.sd))
		})
	}
}

func TestSanitizeAndURLHelpers(t *testing.T) {
	assert.Equal(t, "UsCorePatient", Sanitize("us-core-patient"))
	assert.Equal(t, "N2ndLevel", Sanitize("2nd level"))
	assert.Equal(t, "Patient", URLTail("http://hl7.org/fhir/StructureDefinition/Patient|4.0.1"))
	assert.Equal(t, "http://x/y", StripVersion("http://x/y|1.0"))
}

func TestSuperclassFallsBackToURLTail(t *testing.T) {
	b, _ := newBuilder("R4")
	assert.Equal(t, "DomainResource", b.SuperclassName("http://hl7.org/fhir/StructureDefinition/DomainResource"))
	assert.Empty(t, b.SuperclassName(""))
}
