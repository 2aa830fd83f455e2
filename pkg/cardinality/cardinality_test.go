package cardinality

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		min, max  string
		want      Cardinality
		isArray   bool
		required  bool
		wantError bool
	}{
		{"0", "1", Cardinality{0, 1}, false, false, false},
		{"1", "1", Cardinality{1, 1}, false, true, false},
		{"0", "*", Cardinality{0, -1}, true, false, false},
		{"1", "*", Cardinality{1, -1}, true, true, false},
		{"0", "3", Cardinality{0, 3}, true, false, false},
		{"", "", Cardinality{0, 1}, false, false, false},
		{" 1 ", " * ", Cardinality{1, -1}, true, true, false},
		{"0", "many", Cardinality{}, false, false, true},
		{"one", "1", Cardinality{}, false, false, true},
		{"-1", "1", Cardinality{}, false, false, true},
		{"2", "1", Cardinality{}, false, false, true},
		{"0", "99999999", Cardinality{}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.min+".."+tt.max, func(t *testing.T) {
			got, err := Parse(tt.min, tt.max)
			if tt.wantError {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Parse(%q, %q) error = %v, want ErrInvalid", tt.min, tt.max, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q, %q) unexpected error: %v", tt.min, tt.max, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q, %q) = %+v, want %+v", tt.min, tt.max, got, tt.want)
			}
			if got.IsArray() != tt.isArray {
				t.Errorf("IsArray() = %v, want %v", got.IsArray(), tt.isArray)
			}
			if got.Required() != tt.required {
				t.Errorf("Required() = %v, want %v", got.Required(), tt.required)
			}
		})
	}
}

func TestProhibitedAndString(t *testing.T) {
	c, err := Parse("0", "0")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Prohibited() {
		t.Error("0..0 should be prohibited")
	}
	if got := (Cardinality{Min: 1, Max: -1}).String(); got != "1..*" {
		t.Errorf("String() = %q, want 1..*", got)
	}
}
