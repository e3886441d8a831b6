package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const svgSniffLen = 200

// looksLikeSVG sniffs the payload head for SVG markup. Browsers export
// prior-auth form renders as SVG often enough that this path matters.
func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > svgSniffLen {
		head = head[:svgSniffLen]
	}
	head = bytes.ToLower(head)
	return bytes.Contains(head, []byte("<svg")) || bytes.Contains(head, []byte("</svg"))
}

// extractImage dispatches between the SVG text miner and the OCR backend.
func (p *Pipeline) extractImage(ctx context.Context, data []byte) Result {
	if looksLikeSVG(data) {
		return extractSVG(data)
	}
	return p.extractOCR(ctx, data)
}

var (
	svgTextRe = regexp.MustCompile(`(?is)<text\b[^>]*>(.*?)</text>`)
	wsRunRe   = regexp.MustCompile(`\s+`)
)

// extractSVG mines <text> nodes out of SVG markup. Inner markup (tspan
// etc.) is stripped with a strict sanitizer; entities are unescaped after.
// No geometry survives this path, so the result carries a warning.
func extractSVG(data []byte) Result {
	raw := strings.ToValidUTF8(string(data), "")
	strict := bluemonday.StrictPolicy()

	var lines []Line
	for _, m := range svgTextRe.FindAllStringSubmatch(raw, -1) {
		text := html.UnescapeString(strict.Sanitize(m[1]))
		text = strings.TrimSpace(wsRunRe.ReplaceAllString(text, " "))
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Page: 1})
	}
	return Result{
		Text:     joinLines(lines),
		Lines:    lines,
		Pages:    1,
		Warnings: []string{"vector text extracted without optical recognition; bounding boxes unavailable"},
	}
}

// extractOCR shells out to tesseract in TSV mode and reassembles its word
// rows into positioned lines. A missing or failing OCR toolchain degrades
// to a warning, not an error.
func (p *Pipeline) extractOCR(ctx context.Context, data []byte) Result {
	tmp, err := os.CreateTemp("", "priorauth-ocr-*")
	if err != nil {
		return Result{Pages: 1, Warnings: []string{fmt.Sprintf("optical recognition unavailable: %v", err)}}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{Pages: 1, Warnings: []string{fmt.Sprintf("optical recognition unavailable: %v", err)}}
	}
	if err := tmp.Close(); err != nil {
		return Result{Pages: 1, Warnings: []string{fmt.Sprintf("optical recognition unavailable: %v", err)}}
	}

	out, _, err := p.cfg.Runner.Run(ctx, p.cfg.TesseractPath, tmp.Name(), "stdout", "tsv")
	if err != nil {
		p.cfg.Logger.Warn("ocr command failed", "cmd", p.cfg.TesseractPath, "error", err)
		return Result{Pages: 1, Warnings: []string{fmt.Sprintf(
			"optical recognition unavailable (%v); install tesseract for image parsing", err)}}
	}

	lines := parseTesseractTSV(out)
	return Result{Text: joinLines(lines), Lines: lines, Pages: 1}
}

// tsv column indices for tesseract's TSV output.
const (
	tsvBlockNum = 2
	tsvParNum   = 3
	tsvLineNum  = 4
	tsvLeft     = 6
	tsvTop      = 7
	tsvWidth    = 8
	tsvHeight   = 9
	tsvText     = 11
	tsvCols     = 12
)

// parseTesseractTSV groups word rows by tesseract's own (block, paragraph,
// line) numbering and takes the union bounding box per line. Rows arrive in
// reading order, so grouping is a sequential flush on key change.
func parseTesseractTSV(out []byte) []Line {
	type lineKey struct{ block, par, line int }

	var lines []Line
	var cur lineKey
	var parts []string
	var x0, top, x1, bottom float64

	flush := func() {
		if len(parts) == 0 {
			return
		}
		lines = append(lines, Line{
			Text: strings.Join(parts, " "),
			Page: 1,
			BBox: []float64{x0, top, x1, bottom},
		})
		parts = nil
	}

	for _, row := range strings.Split(string(out), "\n") {
		cols := strings.Split(row, "\t")
		if len(cols) < tsvCols {
			continue
		}
		text := strings.TrimSpace(cols[tsvText])
		if text == "" {
			continue
		}
		block, err1 := strconv.Atoi(cols[tsvBlockNum])
		par, err2 := strconv.Atoi(cols[tsvParNum])
		lineNum, err3 := strconv.Atoi(cols[tsvLineNum])
		if err1 != nil || err2 != nil || err3 != nil {
			continue // header row
		}
		left, err1 := strconv.ParseFloat(cols[tsvLeft], 64)
		wTop, err2 := strconv.ParseFloat(cols[tsvTop], 64)
		width, err3 := strconv.ParseFloat(cols[tsvWidth], 64)
		height, err4 := strconv.ParseFloat(cols[tsvHeight], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}

		key := lineKey{block, par, lineNum}
		if key != cur {
			flush()
			cur = key
			x0, top = left, wTop
			x1, bottom = left+width, wTop+height
		} else {
			if left < x0 {
				x0 = left
			}
			if wTop < top {
				top = wTop
			}
			if left+width > x1 {
				x1 = left + width
			}
			if wTop+height > bottom {
				bottom = wTop + height
			}
		}
		parts = append(parts, text)
	}
	flush()
	return lines
}
