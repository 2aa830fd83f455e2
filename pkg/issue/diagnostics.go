package issue

// DiagnosticID identifies a diagnostic message.
type DiagnosticID string

// Diagnostic IDs.
const (
	DiagReferenceUnknownTarget DiagnosticID = "REFERENCE_UNKNOWN_TARGET"
	DiagElementNoType          DiagnosticID = "ELEMENT_NO_TYPE"
	DiagElementNoParent        DiagnosticID = "ELEMENT_NO_PARENT"
	DiagImplicitRootDropped    DiagnosticID = "IMPLICIT_ROOT_DROPPED"
	DiagValueSetIncomplete     DiagnosticID = "VALUESET_INCOMPLETE"
)

// Template defines the severity, code and message of a diagnostic.
// Text uses {placeholder} syntax.
type Template struct {
	Severity Severity
	Code     Code
	Text     string
}

var templates = map[DiagnosticID]Template{
	DiagReferenceUnknownTarget: {
		Severity: SeverityWarning,
		Code:     CodeNotFound,
		Text:     "Reference target '{target}' of property '{property}' is not a known class",
	},
	DiagElementNoType: {
		Severity: SeverityInformation,
		Code:     CodeStructure,
		Text:     "Element has no type and was skipped",
	},
	DiagElementNoParent: {
		Severity: SeverityWarning,
		Code:     CodeStructure,
		Text:     "Parent element '{parent}' is not declared; element skipped",
	},
	DiagImplicitRootDropped: {
		Severity: SeverityInformation,
		Code:     CodeInformational,
		Text:     "Superclass '{superclass}' has no definition and was dropped",
	},
	DiagValueSetIncomplete: {
		Severity: SeverityInformation,
		Code:     CodeIncomplete,
		Text:     "Value set could not be fully expanded; {codes} codes known",
	},
}

// Lookup returns the template of id.
func Lookup(id DiagnosticID) (Template, bool) {
	t, ok := templates[id]
	return t, ok
}
