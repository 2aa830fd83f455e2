// Package model defines the entities of the compiled type graph: classes,
// their properties, and the profiles that group them for emission.
package model

// ClassKind is the closed set of structure categories a Class can have.
type ClassKind int

// Class kinds.
const (
	KindOther ClassKind = iota
	KindResource
	KindComplexType
	KindPrimitiveType
	KindLogical
)

// StructureDefinition.kind values.
const (
	StructureKindResource      = "resource"
	StructureKindComplexType   = "complex-type"
	StructureKindPrimitiveType = "primitive-type"
	StructureKindLogical       = "logical"
)

// String returns the name used in logs and manifests.
func (k ClassKind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindComplexType:
		return "complex-type"
	case KindPrimitiveType:
		return "primitive-type"
	case KindLogical:
		return "logical"
	case KindOther:
		return "other"
	}
	return "other"
}

// ParseStructureKind maps a StructureDefinition.kind value to a ClassKind.
// Unknown values map to KindOther.
func ParseStructureKind(kind string) ClassKind {
	switch kind {
	case StructureKindResource:
		return KindResource
	case StructureKindComplexType:
		return KindComplexType
	case StructureKindPrimitiveType:
		return KindPrimitiveType
	case StructureKindLogical:
		return KindLogical
	}
	return KindOther
}

// ParseKindName accepts the String() form as well as StructureDefinition
// kinds. Used by CLI filters.
func ParseKindName(name string) (ClassKind, bool) {
	switch name {
	case "resource":
		return KindResource, true
	case "complex-type", "complex":
		return KindComplexType, true
	case "primitive-type", "primitive":
		return KindPrimitiveType, true
	case "logical":
		return KindLogical, true
	case "other":
		return KindOther, true
	}
	return KindOther, false
}

// IsEmittable reports whether classes of this kind produce model code.
func (k ClassKind) IsEmittable() bool {
	switch k {
	case KindResource, KindComplexType, KindLogical:
		return true
	case KindPrimitiveType, KindOther:
		return false
	}
	return false
}

// NeedsQualifiedType reports whether a field typed with a class of this kind
// must reference the module-qualified companion type rather than a scalar.
func (k ClassKind) NeedsQualifiedType() bool {
	switch k {
	case KindResource, KindComplexType, KindLogical:
		return true
	case KindPrimitiveType, KindOther:
		return false
	}
	return false
}
