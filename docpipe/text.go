package docpipe

import "strings"

// extractPlainText decodes the payload as UTF-8, discarding invalid byte
// sequences, and keeps non-blank lines. Full text preserves the decoded
// payload as-is; lines carry the trimmed view used by field matching.
func extractPlainText(data []byte) Result {
	text := strings.ToValidUTF8(string(data), "")

	var lines []Line
	for _, row := range strings.Split(text, "\n") {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		lines = append(lines, Line{Text: row, Page: 1})
	}
	return Result{Text: text, Lines: lines, Pages: 1}
}
