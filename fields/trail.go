package fields

// AuditEntry ties one resolved value to its provenance for reviewers.
type AuditEntry struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Value   string    `json:"value"`
	Page    int       `json:"page,omitempty"`
	BBox    []float64 `json:"bbox,omitempty"`
	Snippet string    `json:"snippet,omitempty"`
}

// Trail builds the audit trail from resolved fields, in field order. Only
// fields with both a value and a source qualify: fallback matches have no
// line to cite and are excluded.
func Trail(fs []Field) []AuditEntry {
	trail := make([]AuditEntry, 0, len(fs))
	for _, f := range fs {
		if f.Value == "" || f.Source == nil {
			continue
		}
		trail = append(trail, AuditEntry{
			Key:     f.Key,
			Label:   f.Label,
			Value:   f.Value,
			Page:    f.Source.Page,
			BBox:    f.Source.BBox,
			Snippet: f.Source.Snippet,
		})
	}
	return trail
}
