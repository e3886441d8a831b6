// Package fields resolves catalogue fields against extracted document lines
// and builds the audit trail tying values back to where they were found.
package fields

import (
	"sort"
	"strings"

	"github.com/hazyhaar/priorauth/docpipe"
	"github.com/hazyhaar/priorauth/rules"
)

// Source records where a value was found: the full matched line, its page,
// and its bounding box when the backend produced geometry.
type Source struct {
	Snippet string    `json:"snippet,omitempty"`
	Page    int       `json:"page,omitempty"`
	BBox    []float64 `json:"bbox,omitempty"`
}

// Field is one catalogue entry with its resolution outcome. Value is empty
// when unresolved; Source is nil for unresolved fields and for full-text
// fallback matches, which cannot be tied to a single line.
type Field struct {
	Section    string  `json:"section"`
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     *Source `json:"source,omitempty"`
}

// Resolve runs the two-pass resolution: a line pass in document order where
// the first match per key wins, then full-text fallbacks for keys the line
// pass left unresolved. The result has exactly one Field per catalogue key,
// ordered by section rank then label.
func Resolve(lines []docpipe.Line, fullText string, cat *rules.Catalog) []Field {
	found := make(map[string]Field, len(cat.Fields))

	for _, ln := range lines {
		for i := range cat.Fields {
			def := &cat.Fields[i]
			if _, done := found[def.Key]; done {
				continue
			}
			raw, ok := def.Match(ln.Text)
			if !ok {
				continue
			}
			value := CleanValue(raw)
			if value == "" {
				continue
			}
			found[def.Key] = Field{
				Section:    def.Section,
				Key:        def.Key,
				Label:      def.Label,
				Value:      value,
				Confidence: def.Confidence,
				Source: &Source{
					Snippet: strings.TrimSpace(ln.Text),
					Page:    ln.Page,
					BBox:    ln.BBox,
				},
			}
		}
	}

	for i := range cat.Fallbacks {
		fb := &cat.Fallbacks[i]
		if _, done := found[fb.Key]; done {
			continue
		}
		raw, ok := fb.Find(fullText)
		if !ok {
			continue
		}
		value := CleanValue(raw)
		if value == "" {
			continue
		}
		def := cat.FieldByKey(fb.Key)
		found[fb.Key] = Field{
			Section:    def.Section,
			Key:        def.Key,
			Label:      def.Label,
			Value:      value,
			Confidence: fb.Confidence,
		}
	}

	out := make([]Field, 0, len(cat.Fields))
	for i := range cat.Fields {
		def := &cat.Fields[i]
		f, ok := found[def.Key]
		if !ok {
			f = Field{Section: def.Section, Key: def.Key, Label: def.Label}
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := cat.SectionRank(out[i].Section), cat.SectionRank(out[j].Section)
		if ri != rj {
			return ri < rj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ByKey indexes resolved fields for requirement checks.
func ByKey(fs []Field) map[string]Field {
	m := make(map[string]Field, len(fs))
	for _, f := range fs {
		m[f.Key] = f
	}
	return m
}

// CleanValue normalizes a captured value: trim whitespace, then strip
// trailing punctuation left over from line layouts ("Jane Doe;" etc.).
func CleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimRight(v, ";,")
	return strings.TrimSpace(v)
}
