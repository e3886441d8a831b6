// Package rules holds the field catalogue for prior-authorization intake
// documents: what fields to look for, which are required, and which keyword
// checks gate the supporting-documentation requirements.
//
// The catalogue ships embedded as catalog.yaml so the binary carries its own
// rules; Load validates and compiles it once at startup.
package rules

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// FieldDef describes one extractable field: a labeled, sectioned,
// case-insensitive line pattern with a single capture group for the value.
type FieldDef struct {
	Key        string  `yaml:"key"`
	Label      string  `yaml:"label"`
	Section    string  `yaml:"section"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`

	re *regexp.Regexp
}

// Match applies the compiled pattern to a single line and returns the raw
// captured value.
func (d *FieldDef) Match(line string) (string, bool) {
	m := d.re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Fallback is a low-confidence full-text pattern used when the line pass
// leaves a key unresolved (e.g. a bare ICD-10 code with no label).
type Fallback struct {
	Key        string  `yaml:"key"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`

	re *regexp.Regexp
}

// Find scans the full document text for the first fallback match.
func (f *Fallback) Find(text string) (string, bool) {
	m := f.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EitherOr names a group of keys where at least one resolved value satisfies
// the requirement; the combined label surfaces when none do.
type EitherOr struct {
	Label string   `yaml:"label"`
	Keys  []string `yaml:"keys"`
}

// Narrative is a supporting-documentation check: the label is reported
// missing when none of the hint phrases occur in the document text. When
// RequiresValue is set, the check only applies if that key resolved a value.
type Narrative struct {
	Label         string   `yaml:"label"`
	RequiresValue string   `yaml:"requires_value"`
	AnyOf         []string `yaml:"any_of"`
}

// Catalog is the compiled rule set. Fields preserves catalogue declaration
// order, which is also the matching order of the resolution pass.
type Catalog struct {
	Sections    []string    `yaml:"sections"`
	Fields      []FieldDef  `yaml:"fields"`
	Fallbacks   []Fallback  `yaml:"fallbacks"`
	Required    []string    `yaml:"required"`
	EitherOr    []EitherOr  `yaml:"either_or"`
	Narrative   []Narrative `yaml:"narrative"`
	DenialHints []string    `yaml:"denial_hints"`

	sectionRank map[string]int
	byKey       map[string]*FieldDef
}

// Load parses and validates the embedded catalogue and compiles its patterns.
func Load() (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(catalogYAML, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.compile(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) compile() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("catalog: no sections declared")
	}
	c.sectionRank = make(map[string]int, len(c.Sections))
	for i, s := range c.Sections {
		c.sectionRank[s] = i
	}

	c.byKey = make(map[string]*FieldDef, len(c.Fields))
	for i := range c.Fields {
		d := &c.Fields[i]
		if d.Key == "" || d.Label == "" {
			return fmt.Errorf("catalog: field %d missing key or label", i)
		}
		if _, dup := c.byKey[d.Key]; dup {
			return fmt.Errorf("catalog: duplicate field key %q", d.Key)
		}
		if _, ok := c.sectionRank[d.Section]; !ok {
			return fmt.Errorf("catalog: field %q references unknown section %q", d.Key, d.Section)
		}
		if d.Confidence <= 0 || d.Confidence > 1 {
			return fmt.Errorf("catalog: field %q confidence %v out of range", d.Key, d.Confidence)
		}
		re, err := regexp.Compile("(?i)" + d.Pattern)
		if err != nil {
			return fmt.Errorf("catalog: field %q pattern: %w", d.Key, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("catalog: field %q pattern has no capture group", d.Key)
		}
		d.re = re
		c.byKey[d.Key] = d
	}

	for i := range c.Fallbacks {
		f := &c.Fallbacks[i]
		if _, ok := c.byKey[f.Key]; !ok {
			return fmt.Errorf("catalog: fallback references unknown key %q", f.Key)
		}
		// Unlike labelled line patterns, fallbacks match case-sensitively:
		// bare code shapes are uppercase by definition.
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("catalog: fallback %q pattern: %w", f.Key, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("catalog: fallback %q pattern has no capture group", f.Key)
		}
		f.re = re
	}

	for _, key := range c.Required {
		if _, ok := c.byKey[key]; !ok {
			return fmt.Errorf("catalog: required references unknown key %q", key)
		}
	}
	for _, eo := range c.EitherOr {
		if eo.Label == "" || len(eo.Keys) < 2 {
			return fmt.Errorf("catalog: either_or %q needs a label and at least two keys", eo.Label)
		}
		for _, key := range eo.Keys {
			if _, ok := c.byKey[key]; !ok {
				return fmt.Errorf("catalog: either_or %q references unknown key %q", eo.Label, key)
			}
		}
	}
	for _, n := range c.Narrative {
		if n.Label == "" || len(n.AnyOf) == 0 {
			return fmt.Errorf("catalog: narrative check %q needs a label and hint phrases", n.Label)
		}
		if n.RequiresValue != "" {
			if _, ok := c.byKey[n.RequiresValue]; !ok {
				return fmt.Errorf("catalog: narrative %q references unknown key %q", n.Label, n.RequiresValue)
			}
		}
	}
	return nil
}

// FieldByKey returns the definition for a catalogue key, or nil.
func (c *Catalog) FieldByKey(key string) *FieldDef {
	return c.byKey[key]
}

// Label returns the human-readable label for a catalogue key.
func (c *Catalog) Label(key string) string {
	if d := c.byKey[key]; d != nil {
		return d.Label
	}
	return key
}

// SectionRank returns the presentation rank of a section; unknown sections
// sort last.
func (c *Catalog) SectionRank(section string) int {
	if r, ok := c.sectionRank[section]; ok {
		return r
	}
	return len(c.Sections)
}

// ContainsAny reports whether any of the phrases occurs in text. Callers
// lowercase the text once; catalogue phrases are already lowercase.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the shared compiled catalogue. It panics if the embedded
// catalogue is invalid, which only happens on a broken build.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Load()
		if err != nil {
			panic("rules: embedded catalog invalid: " + err.Error())
		}
		defaultCat = cat
	})
	return defaultCat
}
