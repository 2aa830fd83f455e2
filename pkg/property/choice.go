package property

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChoiceSuffix marks polymorphic elements.
const ChoiceSuffix = "[x]"

// SplitChoice strips the choice suffix from name. ok is false when name is
// not a choice element.
func SplitChoice(name string) (base string, ok bool) {
	base, ok = strings.CutSuffix(name, ChoiceSuffix)
	if !ok || base == "" {
		return name, false
	}
	return base, true
}

// ChoiceName returns the field name of one alternative of a choice element,
// e.g. ChoiceName("value", "Quantity") is "valueQuantity". System type URLs
// contribute their last segment.
func ChoiceName(base, typeName string) string {
	if i := strings.LastIndexAny(typeName, "./"); i >= 0 {
		typeName = typeName[i+1:]
	}
	return base + Capitalize(typeName)
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
