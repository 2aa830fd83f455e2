package property

import "strings"

// ExtensibleMarker is the trailing token that marks an open code list.
const ExtensibleMarker = "+"

// ParseEnum extracts the fixed code list encoded in an element's short
// description, e.g. "draft | active | retired | unknown". Each item
// contributes its first word. A lone "+" token, either as its own item or
// trailing an item, marks the list extensible and is not a value.
func ParseEnum(short string) (values []string, extensible bool) {
	if !strings.Contains(short, "|") {
		return nil, false
	}
	for _, item := range strings.Split(short, "|") {
		parts := strings.Fields(item)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == ExtensibleMarker {
			extensible = true
			continue
		}
		values = append(values, parts[0])
		if len(parts) == 2 && parts[1] == ExtensibleMarker {
			extensible = true
		}
	}
	return values, extensible
}
