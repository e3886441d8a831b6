package docpipe

import (
	"math"
	"sort"
	"strings"
)

// rowQuantum is the vertical bucket size in points. Words whose tops round
// to the same 3-point bucket are treated as one visual line, absorbing the
// baseline jitter real PDFs and OCR output exhibit.
const rowQuantum = 3.0

// reconstructLines merges positioned words into visual lines: bucket by
// quantized top, order buckets top to bottom, order words left to right,
// and take the union bounding box per line.
func reconstructLines(words []word, page int) []Line {
	buckets := make(map[int][]word)
	for _, w := range words {
		if w.text == "" {
			continue
		}
		key := int(math.Round(w.top/rowQuantum)) * int(rowQuantum)
		buckets[key] = append(buckets[key], w)
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	lines := make([]Line, 0, len(keys))
	for _, k := range keys {
		row := buckets[k]
		sort.SliceStable(row, func(i, j int) bool { return row[i].x0 < row[j].x0 })

		var parts []string
		x0, top := row[0].x0, row[0].top
		x1, bottom := row[0].x1, row[0].bottom
		for _, w := range row {
			parts = append(parts, w.text)
			x0 = math.Min(x0, w.x0)
			top = math.Min(top, w.top)
			x1 = math.Max(x1, w.x1)
			bottom = math.Max(bottom, w.bottom)
		}
		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text: text,
			Page: page,
			BBox: []float64{x0, top, x1, bottom},
		})
	}
	return lines
}
