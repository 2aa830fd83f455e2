package fragment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/typegraph/pkg/loader"
	"github.com/gofhir/typegraph/pkg/worker"
)

const r4Element = `{
	"id": "Resource.id",
	"path": "Resource.id",
	"short": "Logical id of this artifact",
	"min": 0,
	"max": "1",
	"base": {"path": "Resource.id", "min": 0, "max": "1"},
	"type": [{
		"extension": [{
			"url": "http://hl7.org/fhir/StructureDefinition/structuredefinition-fhir-type",
			"valueUrl": "string"
		}],
		"code": "http://hl7.org/fhirpath/System.String"
	}],
	"isSummary": true
}`

const stu3Element = `{
	"id": "Element.id",
	"path": "Element.id",
	"min": "0",
	"max": "1",
	"type": [{
		"_code": {
			"extension": [{
				"url": "http://hl7.org/fhir/StructureDefinition/structuredefinition-json-type",
				"valueString": "string"
			}]
		}
	}]
}`

const stu3Reference = `{
	"path": "Observation.subject",
	"min": 0,
	"max": "1",
	"type": [{"code": "Reference", "targetProfile": "http://hl7.org/fhir/StructureDefinition/Patient"}],
	"binding": {"strength": "required", "valueSetReference": {"reference": "http://hl7.org/fhir/ValueSet/x"}}
}`

const r4Reference = `{
	"path": "Observation.subject",
	"min": 0,
	"max": "1",
	"type": [{"code": "Reference", "targetProfile": [
		"http://hl7.org/fhir/StructureDefinition/Patient",
		"http://hl7.org/fhir/StructureDefinition/Group"
	]}],
	"binding": {"strength": "required", "valueSet": "http://hl7.org/fhir/ValueSet/x|4.0.1"}
}`

func decodeElement(t *testing.T, data string) ElementDefinition {
	t.Helper()
	var ed ElementDefinition
	require.NoError(t, json.Unmarshal([]byte(data), &ed))
	return ed
}

func TestTypeNameNormalization(t *testing.T) {
	r4 := decodeElement(t, r4Element)
	require.Len(t, r4.Type, 1)
	assert.Equal(t, "string", r4.Type[0].Name(), "fhir-type extension wins over the system code")
	assert.Equal(t, Text("0"), r4.Min)
	assert.Equal(t, "Resource.id", r4.Base.Path)
	assert.True(t, r4.IsSummary)

	stu3 := decodeElement(t, stu3Element)
	require.Len(t, stu3.Type, 1)
	assert.Equal(t, "http://hl7.org/fhirpath/System.String", stu3.Type[0].Name())
	assert.Equal(t, Text("0"), stu3.Min, "quoted min is accepted")

	plain := Type{Code: "HumanName"}
	assert.Equal(t, "HumanName", plain.Name())
}

func TestTolerantProfileShapes(t *testing.T) {
	stu3 := decodeElement(t, stu3Reference)
	assert.Equal(t, StringList{"http://hl7.org/fhir/StructureDefinition/Patient"}, stu3.Type[0].TargetProfile)
	assert.Equal(t, "http://hl7.org/fhir/ValueSet/x", stu3.Binding.ValueSet)

	r4 := decodeElement(t, r4Reference)
	assert.Len(t, r4.Type[0].TargetProfile, 2)
	assert.Equal(t, "http://hl7.org/fhir/ValueSet/x|4.0.1", r4.Binding.ValueSet)
	assert.Equal(t, "required", r4.Binding.Strength)
}

func TestTextRejectsGarbage(t *testing.T) {
	var ed ElementDefinition
	err := json.Unmarshal([]byte(`{"path": "X.y", "min": true}`), &ed)
	assert.Error(t, err)
}

func TestElementHelpers(t *testing.T) {
	ed := ElementDefinition{ID: "Patient.identifier:mrn", Path: "Patient.identifier"}
	assert.True(t, ed.IsSliced())

	ed = ElementDefinition{Path: "Questionnaire.item.item", ContentReference: "#Questionnaire.item"}
	assert.Equal(t, "Questionnaire.item", ed.ContentReferencePath())

	ed = ElementDefinition{Path: "Bundle.entry.search", ContentReference: "http://hl7.org/fhir/StructureDefinition/Bundle#Bundle.entry"}
	assert.Equal(t, "Bundle.entry", ed.ContentReferencePath())

	ed = ElementDefinition{Path: "Observation.component", Extension: []Extension{
		{URL: ExplicitTypeNameExtension, ValueString: "Component"},
	}}
	assert.Equal(t, "Component", ed.ExplicitTypeName())
}

func TestElementsPrefersSnapshot(t *testing.T) {
	sd := &StructureDefinition{
		Snapshot:     &ElementList{Element: []ElementDefinition{{Path: "A"}, {Path: "A.b"}}},
		Differential: &ElementList{Element: []ElementDefinition{{Path: "A"}}},
	}
	assert.Len(t, sd.Elements(), 2)

	sd.Snapshot = nil
	assert.Len(t, sd.Elements(), 1)
	assert.False(t, sd.HasSnapshot())
}

func TestDecodeSet(t *testing.T) {
	sd := []byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/A", "name": "A", "type": "A"}`)
	dup := []byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/A", "name": "Other", "type": "A"}`)
	vs := []byte(`{"resourceType": "ValueSet", "url": "http://example.org/vs"}`)
	cs := []byte(`{"resourceType": "CodeSystem", "url": "http://example.org/cs"}`)
	patient := []byte(`{"resourceType": "Patient", "id": "p1"}`)

	pkg := loader.NewLoader("").LoadFromResources([][]byte{sd, dup, vs, vs, cs, patient})
	pkg.FHIRVersion = "4.0.1"

	set, err := Decode(pkg)
	require.NoError(t, err)
	assert.Equal(t, "4.0.1", set.FHIRVersion)
	require.Len(t, set.StructureDefinitions, 1)
	assert.Equal(t, "A", set.StructureDefinitions[0].Name, "first definition of a URL wins")
	assert.NotEmpty(t, set.StructureDefinition("http://example.org/A").Raw())
	assert.Len(t, set.ValueSets, 1)
	assert.Len(t, set.CodeSystems, 1)
}

func TestDecodeSetMalformedDefinition(t *testing.T) {
	bad := []byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/Bad", "snapshot": {"element": [{"path": "Bad", "min": {}}]}}`)
	pkg := loader.NewLoader("").LoadFromResources([][]byte{bad})
	_, err := Decode(pkg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http://example.org/Bad")
}

func TestSortedAndFilter(t *testing.T) {
	set := NewSet()
	set.AddStructureDefinition(&StructureDefinition{URL: "http://x/B", Name: "B"})
	set.AddStructureDefinition(&StructureDefinition{URL: "http://x/A", Name: "A"})
	set.AddStructureDefinition(&StructureDefinition{Name: "Local"})

	sorted := set.SortedStructureDefinitions()
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"Local", "A", "B"}, []string{sorted[0].Name, sorted[1].Name, sorted[2].Name})

	filtered, err := set.Filter(func(sd *StructureDefinition) (bool, error) { return sd.Name != "B", nil })
	require.NoError(t, err)
	assert.Len(t, filtered.StructureDefinitions, 2)
	assert.Nil(t, filtered.StructureDefinition("http://x/B"))
}

func TestDecodeContextMatchesSequential(t *testing.T) {
	var resources [][]byte
	for i := 0; i < 20; i++ {
		resources = append(resources, []byte(fmt.Sprintf(
			`{"resourceType": "StructureDefinition", "url": "http://example.org/T%d", "name": "T%d", "type": "T%d"}`, i%15, i, i)))
	}
	resources = append(resources, []byte(`{"resourceType": "ValueSet", "url": "http://example.org/vs"}`))
	pkg := loader.NewLoader("").LoadFromResources(resources)

	seq, err := Decode(pkg)
	require.NoError(t, err)
	par, err := DecodeContext(context.Background(), worker.NewPool(4), pkg)
	require.NoError(t, err)

	require.Len(t, par.StructureDefinitions, 15)
	for i := range seq.StructureDefinitions {
		assert.Equal(t, seq.StructureDefinitions[i].Name, par.StructureDefinitions[i].Name)
	}
	assert.Len(t, par.ValueSets, 1)
}

func TestDecodeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pkg := loader.NewLoader("").LoadFromResources([][]byte{
		[]byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/A", "name": "A"}`),
		[]byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/B", "name": "B"}`),
		[]byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/C", "name": "C"}`),
	})
	_, err := DecodeContext(ctx, worker.NewPool(2), pkg)
	assert.ErrorIs(t, err, context.Canceled)
}
