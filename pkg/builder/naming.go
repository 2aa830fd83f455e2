package builder

import (
	"strings"
	"unicode"

	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/property"
)

// ClassName returns the name of the top-level class built from sd: the
// defined type for specializations, the sanitized name for constraints and
// for logical models whose type is a URL.
func ClassName(sd *fragment.StructureDefinition) string {
	if !sd.IsConstraint() && sd.Type != "" && !strings.Contains(sd.Type, "/") {
		return sd.Type
	}
	if name := Sanitize(sd.Name); name != "" {
		return name
	}
	if name := Sanitize(sd.ID); name != "" {
		return name
	}
	return Sanitize(URLTail(sd.Type))
}

// Sanitize turns a fragment name into an identifier: separators are dropped
// and the following letter upper-cased ("us-core-patient" becomes
// "UsCorePatient").
func Sanitize(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "N" + out
	}
	return out
}

// URLTail returns the last path segment of a canonical, without version.
func URLTail(url string) string {
	url = StripVersion(url)
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// StripVersion removes a "|version" suffix from a canonical.
func StripVersion(url string) string {
	if i := strings.Index(url, "|"); i >= 0 {
		return url[:i]
	}
	return url
}

// nestedName is the owner-qualified name of a backbone class.
func nestedName(top, owner string, ed *fragment.ElementDefinition) string {
	if explicit := ed.ExplicitTypeName(); explicit != "" {
		return top + Sanitize(explicit)
	}
	name := elementName(ed.Path)
	if base, ok := property.SplitChoice(name); ok {
		name = base
	}
	return owner + property.Capitalize(name)
}

func elementName(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

func parentPath(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i]
	}
	return ""
}

func rootSegment(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}
