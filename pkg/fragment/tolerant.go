package fragment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringList decodes either a JSON string or an array of strings. STU3
// declares type.profile and type.targetProfile as single URIs, R4 onward as
// arrays of canonicals.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Text decodes a JSON number or string into its textual form. Cardinality
// minimums are numbers in every release but occasionally quoted in
// hand-written fragments; parsing and validation is left to the caller.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("cardinality %s: %w", data, err)
		}
		*t = Text(n.String())
	}
	return nil
}

// String returns the text.
func (t Text) String() string {
	return string(t)
}
