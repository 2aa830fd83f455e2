// Package classify maps FHIR primitive type names to their semantic kinds.
//
// The table is static: it covers the primitive types of R4, R4B and R5 and
// the FHIRPath system types that core definitions use for element ids,
// extension urls and primitive values. Any other name is a structure type that the
// fragment loader registers as a class; Classify returns KindOther for it.
package classify

import (
	"sort"
	"strings"

	"github.com/gofhir/typegraph/pkg/model"
)

// Semantic is the semantic family of a primitive.
type Semantic int

// Semantic families.
const (
	SemanticNone Semantic = iota
	SemanticBoolean
	SemanticString
	SemanticCode
	SemanticNumeric
	SemanticTemporal
	SemanticBinary
	SemanticIdentifier
)

// String returns the family name.
func (s Semantic) String() string {
	switch s {
	case SemanticBoolean:
		return "boolean"
	case SemanticString:
		return "string"
	case SemanticCode:
		return "code"
	case SemanticNumeric:
		return "numeric"
	case SemanticTemporal:
		return "temporal"
	case SemanticBinary:
		return "binary"
	case SemanticIdentifier:
		return "identifier"
	case SemanticNone:
		return "none"
	}
	return "none"
}

// SystemTypePrefix prefixes FHIRPath system type codes.
const SystemTypePrefix = "http://hl7.org/fhirpath/System."

// Classification is the result of classifying a type name.
type Classification struct {
	Kind              model.ClassKind
	Semantic          Semantic
	IsNative          bool
	RequiresExtension bool
}

// IsPrimitive reports whether the name resolved to a primitive entry.
func (c Classification) IsPrimitive() bool {
	return c.Kind == model.KindPrimitiveType
}

type entry struct {
	semantic  Semantic
	native    bool
	extension bool
}

var table = map[string]entry{
	"boolean":      {SemanticBoolean, false, true},
	"string":       {SemanticString, false, true},
	"markdown":     {SemanticString, false, true},
	"xhtml":        {SemanticString, false, false},
	"code":         {SemanticCode, false, true},
	"integer":      {SemanticNumeric, false, true},
	"integer64":    {SemanticNumeric, false, true},
	"unsignedInt":  {SemanticNumeric, false, true},
	"positiveInt":  {SemanticNumeric, false, true},
	"decimal":      {SemanticNumeric, false, true},
	"date":         {SemanticTemporal, false, true},
	"dateTime":     {SemanticTemporal, false, true},
	"instant":      {SemanticTemporal, false, true},
	"time":         {SemanticTemporal, false, true},
	"base64Binary": {SemanticBinary, false, true},
	"id":           {SemanticIdentifier, false, true},
	"oid":          {SemanticIdentifier, false, true},
	"uuid":         {SemanticIdentifier, false, true},
	"uri":          {SemanticIdentifier, false, true},
	"url":          {SemanticIdentifier, false, true},
	"canonical":    {SemanticIdentifier, false, true},

	SystemTypePrefix + "Boolean":  {SemanticBoolean, true, true},
	SystemTypePrefix + "String":   {SemanticString, true, true},
	SystemTypePrefix + "Integer":  {SemanticNumeric, true, true},
	SystemTypePrefix + "Decimal":  {SemanticNumeric, true, true},
	SystemTypePrefix + "Date":     {SemanticTemporal, true, true},
	SystemTypePrefix + "DateTime": {SemanticTemporal, true, true},
	SystemTypePrefix + "Time":     {SemanticTemporal, true, true},
}

// Classify returns the classification of typeName. It never fails: names
// outside the built-in table are KindOther and not native.
func Classify(typeName string) Classification {
	e, ok := table[typeName]
	if !ok {
		return Classification{Kind: model.KindOther, Semantic: SemanticNone}
	}
	return Classification{
		Kind:              model.KindPrimitiveType,
		Semantic:          e.semantic,
		IsNative:          e.native,
		RequiresExtension: e.extension,
	}
}

// IsCode reports whether typeName is the constrained-code primitive.
func IsCode(typeName string) bool {
	return Classify(typeName).Semantic == SemanticCode
}

// IsNative reports whether typeName maps directly to a host scalar.
func IsNative(typeName string) bool {
	return Classify(typeName).IsNative
}

// IsSystemType reports whether typeName is a FHIRPath system type code.
func IsSystemType(typeName string) bool {
	return strings.HasPrefix(typeName, SystemTypePrefix)
}

// SystemType returns the system type code for a JSON type name as found in
// STU3 json-type extensions ("string", "boolean", "number").
func SystemType(jsonType string) string {
	switch jsonType {
	case "boolean":
		return SystemTypePrefix + "Boolean"
	case "number", "integer":
		return SystemTypePrefix + "Integer"
	case "decimal":
		return SystemTypePrefix + "Decimal"
	default:
		return SystemTypePrefix + "String"
	}
}

// Names returns every name in the built-in table, sorted.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
