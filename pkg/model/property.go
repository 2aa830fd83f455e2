package model

// Binding is the terminology binding declared on an element.
type Binding struct {
	Strength string // required | extensible | preferred | example
	ValueSet string
}

// Property is one field of a Class.
type Property struct {
	// Name is the emitted field name. For choice alternatives it carries the
	// type suffix (valueString); OrigName keeps the element name (value[x]).
	Name     string
	OrigName string

	// DeclaredTypeName is the class name the value must conform to.
	DeclaredTypeName string

	IsArray                 bool
	IsNative                bool
	NeedsPrimitiveExtension bool
	Required                bool

	// ChoiceGroup is non-empty for polymorphic alternatives; all properties
	// of one class sharing a ChoiceGroup are mutually exclusive.
	ChoiceGroup string

	EnumValues     []string
	EnumExtensible bool

	Min int
	Max string // "*" or a decimal

	Short      string
	Definition string
	Binding    *Binding

	// TargetProfiles are the canonical URLs declared for Reference-typed
	// fields. ReferenceTargets holds the class names they resolved to.
	TargetProfiles   []string
	ReferenceTargets []string

	IsSummary  bool
	IsModifier bool
}

// IsChoice reports whether the property belongs to a choice group.
func (p *Property) IsChoice() bool {
	return p.ChoiceGroup != ""
}

// ExtensionFieldName is the name of the sibling primitive-extension field.
func (p *Property) ExtensionFieldName() string {
	return p.Name + "__ext"
}

// Clone returns a copy that does not share slices with p.
func (p *Property) Clone() *Property {
	c := *p
	c.EnumValues = append([]string(nil), p.EnumValues...)
	c.TargetProfiles = append([]string(nil), p.TargetProfiles...)
	c.ReferenceTargets = append([]string(nil), p.ReferenceTargets...)
	if p.Binding != nil {
		b := *p.Binding
		c.Binding = &b
	}
	return &c
}
