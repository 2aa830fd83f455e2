// Package issue records non-fatal findings of a compilation, aligned with
// FHIR OperationOutcome severities and issue types.
package issue

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity of an issue.
type Severity string

// Severity constants aligned with FHIR IssueSeverity.
const (
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Code is the FHIR IssueType of an issue.
type Code string

// Code constants aligned with FHIR IssueType.
const (
	CodeNotFound      Code = "not-found"
	CodeStructure     Code = "structure"
	CodeIncomplete    Code = "incomplete"
	CodeInformational Code = "informational"
)

// Issue is one finding about a fragment.
type Issue struct {
	Severity Severity
	Code     Code
	ID       DiagnosticID
	// Fragment is the canonical URL or name of the fragment.
	Fragment string
	// Path is the element path or class name within the fragment.
	Path        string
	Diagnostics string
}

// String formats the issue on one line.
func (i Issue) String() string {
	loc := i.Fragment
	if i.Path != "" {
		loc += " " + i.Path
	}
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.ID, loc, i.Diagnostics)
}

// List collects issues. The zero value is ready to use.
type List struct {
	mu     sync.Mutex
	issues []Issue
}

// NewList creates an empty List.
func NewList() *List {
	return &List{}
}

// Add records an issue built from the template of id.
func (l *List) Add(id DiagnosticID, fragment, path string, params map[string]any) {
	tmpl, ok := templates[id]
	if !ok {
		tmpl = Template{Severity: SeverityWarning, Code: CodeInformational, Text: string(id)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issues = append(l.issues, Issue{
		Severity:    tmpl.Severity,
		Code:        tmpl.Code,
		ID:          id,
		Fragment:    fragment,
		Path:        path,
		Diagnostics: format(tmpl.Text, params),
	})
}

// Issues returns the recorded issues sorted by fragment, then path, then ID.
func (l *List) Issues() []Issue {
	l.mu.Lock()
	out := make([]Issue, len(l.issues))
	copy(out, l.issues)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fragment != out[j].Fragment {
			return out[i].Fragment < out[j].Fragment
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of recorded issues.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.issues)
}

// Count returns the number of issues of severity sev.
func Count(issues []Issue, sev Severity) int {
	n := 0
	for _, i := range issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// Filter returns the issues of severity sev.
func Filter(issues []Issue, sev Severity) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

func format(text string, params map[string]any) string {
	for key, value := range params {
		text = strings.ReplaceAll(text, "{"+key+"}", fmt.Sprint(value))
	}
	return text
}
