package builder

import (
	"errors"
	"fmt"
)

// ErrUnresolvedType marks a declared type, superclass or content reference
// that never resolved to a defined class.
var ErrUnresolvedType = errors.New("unresolved type")

// FragmentError identifies the fragment and element a build failure came
// from.
type FragmentError struct {
	// Fragment is the canonical URL, or the name when the fragment has none.
	Fragment string
	// Path is the element path; empty for fragment-level failures.
	Path string
	Err  error
}

func (e *FragmentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fragment %s: %v", e.Fragment, e.Err)
	}
	return fmt.Sprintf("fragment %s: element %s: %v", e.Fragment, e.Path, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}
