// Package cardinality parses the min/max cardinality text of FHIR element
// definitions.
package cardinality

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Unbounded is the max cardinality marker for repeating elements.
const Unbounded = "*"

// ErrInvalid is returned for cardinality text that is neither a small
// non-negative integer nor the unbounded marker.
var ErrInvalid = errors.New("invalid cardinality")

// maxExplicit bounds explicit cardinalities; larger numbers never occur in
// FHIR releases and indicate a corrupted fragment.
const maxExplicit = 1 << 16

// Cardinality is a parsed min..max pair. Max is -1 when unbounded.
type Cardinality struct {
	Min int
	Max int
}

// Parse parses both bounds. An absent min is 0 and an absent max is 1.
func Parse(minText, maxText string) (Cardinality, error) {
	lo, err := ParseMin(minText)
	if err != nil {
		return Cardinality{}, err
	}
	hi, err := ParseMax(maxText)
	if err != nil {
		return Cardinality{}, err
	}
	if hi >= 0 && lo > hi {
		return Cardinality{}, fmt.Errorf("%w: min %d exceeds max %d", ErrInvalid, lo, hi)
	}
	return Cardinality{Min: lo, Max: hi}, nil
}

// ParseMin parses a minimum cardinality. Empty text means 0.
func ParseMin(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	n, err := parseSmall(text)
	if err != nil {
		return 0, fmt.Errorf("%w: min %q", ErrInvalid, text)
	}
	return n, nil
}

// ParseMax parses a maximum cardinality. Empty text means 1, "*" means
// unbounded and is reported as -1.
func ParseMax(text string) (int, error) {
	text = strings.TrimSpace(text)
	switch text {
	case "":
		return 1, nil
	case Unbounded:
		return -1, nil
	}
	n, err := parseSmall(text)
	if err != nil {
		return 0, fmt.Errorf("%w: max %q", ErrInvalid, text)
	}
	return n, nil
}

func parseSmall(text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxExplicit {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}

// IsArray reports whether the element repeats.
func (c Cardinality) IsArray() bool {
	return c.Max < 0 || c.Max > 1
}

// Required reports whether at least one occurrence is mandatory.
func (c Cardinality) Required() bool {
	return c.Min >= 1
}

// Prohibited reports whether the element is constrained away (max 0).
func (c Cardinality) Prohibited() bool {
	return c.Max == 0
}

// MaxText renders Max back to its textual form.
func (c Cardinality) MaxText() string {
	if c.Max < 0 {
		return Unbounded
	}
	return strconv.Itoa(c.Max)
}

// String renders the pair as "min..max".
func (c Cardinality) String() string {
	return strconv.Itoa(c.Min) + ".." + c.MaxText()
}
