// Package valueset compiles the CodeSystem and ValueSet fragments of a
// release into flat code lists that renderers turn into enumerations.
package valueset

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/typegraph/pkg/fragment"
	"github.com/gofhir/typegraph/pkg/logger"
)

// Code is one concept of a code system or value set.
type Code struct {
	System     string
	Code       string
	Display    string
	Definition string
	// Parent is the code this concept is nested under in its code system.
	Parent string
}

// CodeSystem is a compiled CodeSystem with its concepts flattened in
// declaration order, parents before children.
type CodeSystem struct {
	URL      string
	Name     string
	Status   string
	Content  string
	ValueSet string
	Codes    []Code
}

// Lookup returns the concept with the given code.
func (cs *CodeSystem) Lookup(code string) (Code, bool) {
	for _, c := range cs.Codes {
		if c.Code == code {
			return c, true
		}
	}
	return Code{}, false
}

// Descendants returns the codes below code. With self, code itself leads
// the result.
func (cs *CodeSystem) Descendants(code string, self bool) []Code {
	children := make(map[string][]Code)
	for _, c := range cs.Codes {
		if c.Parent != "" {
			children[c.Parent] = append(children[c.Parent], c)
		}
	}
	var out []Code
	if self {
		if c, ok := cs.Lookup(code); ok {
			out = append(out, c)
		}
	}
	var walk func(string)
	walk = func(parent string) {
		for _, c := range children[parent] {
			out = append(out, c)
			walk(c.Code)
		}
	}
	walk(code)
	return out
}

// ValueSet is a compiled ValueSet.
type ValueSet struct {
	URL    string
	Name   string
	Status string
	Codes  []Code
	// Systems lists the code systems the codes come from, in first-use order.
	Systems []string
	// Complete is false when part of the definition could not be resolved
	// locally (filters, unknown systems, imported value sets).
	Complete bool
}

// Result holds the compiled terminology of a release.
type Result struct {
	CodeSystems []*CodeSystem
	ValueSets   []*ValueSet

	codeSystems map[string]*CodeSystem
	valueSets   map[string]*ValueSet
}

// CodeSystem returns the code system with the given canonical. A "|version"
// suffix is ignored.
func (r *Result) CodeSystem(url string) (*CodeSystem, bool) {
	cs, ok := r.codeSystems[stripVersion(url)]
	return cs, ok
}

// ValueSet returns the value set with the given canonical. A "|version"
// suffix is ignored.
func (r *Result) ValueSet(url string) (*ValueSet, bool) {
	vs, ok := r.valueSets[stripVersion(url)]
	return vs, ok
}

// Compiler compiles terminology fragments.
type Compiler struct{}

// New creates a Compiler.
func New() *Compiler {
	return &Compiler{}
}

// Compile decodes and compiles every CodeSystem, then every ValueSet, of set.
// Output is sorted by URL.
func (c *Compiler) Compile(set *fragment.Set) (*Result, error) {
	res := &Result{
		codeSystems: make(map[string]*CodeSystem),
		valueSets:   make(map[string]*ValueSet),
	}

	for _, raw := range set.CodeSystems {
		cs, err := decodeCodeSystem(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("code system %s (%s): %w", raw.URL, raw.Source, err)
		}
		if cs.URL == "" {
			logger.Warn("code system without url in %s ignored", raw.Source)
			continue
		}
		res.codeSystems[cs.URL] = cs
		res.CodeSystems = append(res.CodeSystems, cs)
	}

	for _, raw := range set.ValueSets {
		var vs r4.ValueSet
		if err := json.Unmarshal(raw.Data, &vs); err != nil {
			return nil, fmt.Errorf("value set %s (%s): %w", raw.URL, raw.Source, err)
		}
		if vs.Url == nil || *vs.Url == "" {
			logger.Warn("value set without url in %s ignored", raw.Source)
			continue
		}
		compiled := res.compileValueSet(&vs)
		res.valueSets[compiled.URL] = compiled
		res.ValueSets = append(res.ValueSets, compiled)
	}

	sort.Slice(res.CodeSystems, func(i, j int) bool { return res.CodeSystems[i].URL < res.CodeSystems[j].URL })
	sort.Slice(res.ValueSets, func(i, j int) bool { return res.ValueSets[i].URL < res.ValueSets[j].URL })
	return res, nil
}

func decodeCodeSystem(data []byte) (*CodeSystem, error) {
	var src r4.CodeSystem
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, err
	}
	cs := &CodeSystem{
		URL:      deref(src.Url),
		Name:     deref(src.Name),
		ValueSet: deref(src.ValueSet),
	}
	if src.Status != nil {
		cs.Status = string(*src.Status)
	}
	if src.Content != nil {
		cs.Content = string(*src.Content)
	}
	flattenConcepts(src.Concept, cs.URL, "", &cs.Codes)
	return cs, nil
}

func flattenConcepts(concepts []r4.CodeSystemConcept, system, parent string, out *[]Code) {
	for i := range concepts {
		c := &concepts[i]
		if c.Code == nil {
			continue
		}
		*out = append(*out, Code{
			System:     system,
			Code:       *c.Code,
			Display:    deref(c.Display),
			Definition: deref(c.Definition),
			Parent:     parent,
		})
		flattenConcepts(c.Concept, system, *c.Code, out)
	}
}

// compileValueSet prefers the expansion; otherwise the compose includes are
// resolved against the compiled code systems.
func (r *Result) compileValueSet(src *r4.ValueSet) *ValueSet {
	vs := &ValueSet{
		URL:      *src.Url,
		Name:     deref(src.Name),
		Complete: true,
	}
	if src.Status != nil {
		vs.Status = string(*src.Status)
	}

	b := &codeBuilder{vs: vs, seen: make(map[string]bool)}
	if src.Expansion != nil && len(src.Expansion.Contains) > 0 {
		b.expansion(src.Expansion.Contains)
		return vs
	}
	if src.Compose == nil {
		vs.Complete = false
		return vs
	}
	for i := range src.Compose.Include {
		r.include(b, &src.Compose.Include[i])
	}
	if len(src.Compose.Exclude) > 0 {
		excluded := make(map[string]bool)
		for _, ex := range src.Compose.Exclude {
			for _, c := range ex.Concept {
				if c.Code != nil {
					excluded[deref(ex.System)+"|"+*c.Code] = true
				}
			}
			if len(ex.Concept) == 0 {
				vs.Complete = false
			}
		}
		kept := vs.Codes[:0]
		for _, c := range vs.Codes {
			if !excluded[c.System+"|"+c.Code] {
				kept = append(kept, c)
			}
		}
		vs.Codes = kept
	}
	return vs
}

func (r *Result) include(b *codeBuilder, inc *r4.ValueSetComposeInclude) {
	if len(inc.ValueSet) > 0 {
		b.vs.Complete = false
	}
	if inc.System == nil {
		return
	}
	system := stripVersion(*inc.System)

	if len(inc.Concept) > 0 {
		cs, _ := r.CodeSystem(system)
		for _, c := range inc.Concept {
			if c.Code == nil {
				continue
			}
			code := Code{System: system, Code: *c.Code, Display: deref(c.Display)}
			if cs != nil {
				if known, ok := cs.Lookup(*c.Code); ok {
					code.Definition = known.Definition
					if code.Display == "" {
						code.Display = known.Display
					}
				}
			}
			b.add(code)
		}
	}

	cs, ok := r.CodeSystem(system)
	if len(inc.Concept) == 0 && len(inc.Filter) == 0 {
		if !ok {
			b.vs.Complete = false
			b.system(system)
			return
		}
		for _, c := range cs.Codes {
			b.add(c)
		}
		return
	}

	for _, f := range inc.Filter {
		op := ""
		if f.Op != nil {
			op = string(*f.Op)
		}
		if !ok || !applyFilter(b, cs, deref(f.Property), op, deref(f.Value)) {
			b.vs.Complete = false
		}
	}
}

// applyFilter resolves the filters that need only the local hierarchy:
// concept is-a / descendent-of and code regex. It reports whether the filter
// was resolved.
func applyFilter(b *codeBuilder, cs *CodeSystem, property, op, value string) bool {
	switch {
	case property == "concept" && (op == "is-a" || op == "descendent-of"):
		for _, c := range cs.Descendants(value, op == "is-a") {
			b.add(c)
		}
		return true
	case property == "code" && op == "regex":
		re, err := regexp.Compile(value)
		if err != nil {
			return false
		}
		for _, c := range cs.Codes {
			if re.MatchString(c.Code) {
				b.add(c)
			}
		}
		return true
	}
	return false
}

type codeBuilder struct {
	vs   *ValueSet
	seen map[string]bool
}

func (b *codeBuilder) system(system string) {
	for _, s := range b.vs.Systems {
		if s == system {
			return
		}
	}
	b.vs.Systems = append(b.vs.Systems, system)
}

func (b *codeBuilder) add(c Code) {
	key := c.System + "|" + c.Code
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.system(c.System)
	b.vs.Codes = append(b.vs.Codes, c)
}

func (b *codeBuilder) expansion(contains []r4.ValueSetExpansionContains) {
	for i := range contains {
		c := &contains[i]
		if c.Code != nil {
			b.add(Code{System: deref(c.System), Code: *c.Code, Display: deref(c.Display)})
		}
		b.expansion(c.Contains)
	}
}

// EnumName turns a code into an identifier usable as an enumeration member:
// "entered-in-error" becomes "EnteredInError", ">=" becomes "GreaterOrEquals".
func EnumName(code string) string {
	if name, ok := symbolNames[code]; ok {
		return name
	}
	var b strings.Builder
	upper := true
	for _, r := range code {
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
	name := b.String()
	if name == "" {
		return "Unknown"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "N" + name
	}
	return name
}

var symbolNames = map[string]string{
	"<":  "LessThan",
	"<=": "LessOrEquals",
	">":  "GreaterThan",
	">=": "GreaterOrEquals",
	"=":  "Equals",
	"!=": "NotEquals",
	"*":  "Any",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stripVersion(url string) string {
	if i := strings.Index(url, "|"); i >= 0 {
		return url[:i]
	}
	return url
}
