package docpipe

import "strings"

// FileType classifies an uploaded document for backend dispatch.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
	FileTypeText  FileType = "text"
)

// Line is one reconstructed text line with its provenance. BBox, when
// present, is [x0, top, x1, bottom] in top-down page coordinates.
type Line struct {
	Text string    `json:"text"`
	Page int       `json:"page"`
	BBox []float64 `json:"bbox,omitempty"`
}

// Result is what every extraction backend produces. Extraction never fails
// outright: degraded passes surface through Warnings with whatever text and
// lines could still be recovered. Pages is 0 when the backend cannot tell.
type Result struct {
	Text     string
	Lines    []Line
	Pages    int
	Warnings []string
}

// word is a positioned text fragment before line reconstruction,
// in top-down page coordinates.
type word struct {
	text   string
	x0, x1 float64
	top    float64
	bottom float64
}

// joinLines renders reconstructed lines back into newline-joined text.
func joinLines(lines []Line) string {
	var sb strings.Builder
	for i, ln := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(ln.Text)
	}
	return sb.String()
}
