package docpipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// letterHeight is the fallback page height (US Letter, points) when the
// page dimensions cannot be read.
const letterHeight = 792.0

// extractPDF runs the layout backend and falls back to a relaxed text-only
// pass when layout extraction fails. The fallback loses geometry, which the
// caller learns through warnings.
func (p *Pipeline) extractPDF(data []byte) Result {
	res, err := extractPDFLayout(data)
	if err == nil {
		return res
	}
	p.cfg.Logger.Debug("pdf layout extraction failed, trying text-only pass", "error", err)

	warnings := []string{fmt.Sprintf("layout extraction failed: %v; falling back to text-only pass", err)}
	fallback, ferr := extractPDFText(data)
	if ferr != nil {
		warnings = append(warnings, fmt.Sprintf("text-only extraction failed: %v", ferr))
		return Result{Warnings: warnings}
	}
	fallback.Warnings = append(warnings,
		"bounding boxes unavailable in text-only mode; audit trail uses line text only")
	return fallback
}

// extractPDFLayout walks each page's content stream tracking the text
// matrix, producing positioned words that are then merged into lines.
func extractPDFLayout(data []byte) (Result, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Result{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	dims, err := pdfCtx.PageDims()
	if err != nil {
		dims = nil
	}

	var lines []Line
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		stream := pageContent(pdfCtx, pageNr)
		if len(stream) == 0 {
			continue
		}
		words := scanContentWords(stream, pageHeight(dims, pageNr))
		lines = append(lines, reconstructLines(words, pageNr)...)
	}
	if len(lines) == 0 {
		return Result{}, errors.New("no positioned text found in content streams")
	}
	return Result{Text: joinLines(lines), Lines: lines, Pages: pdfCtx.PageCount}, nil
}

// extractPDFText is the degraded pass: relaxed validation and an operator
// walk that keeps text order but no geometry.
func extractPDFText(data []byte) (Result, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Result{}, fmt.Errorf("pdfcpu relaxed read: %w", err)
	}

	var lines []Line
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		stream := pageContent(pdfCtx, pageNr)
		if len(stream) == 0 {
			continue
		}
		for _, row := range strings.Split(extractStreamText(stream), "\n") {
			row = strings.TrimSpace(row)
			if row == "" {
				continue
			}
			lines = append(lines, Line{Text: row, Page: pageNr})
		}
	}
	return Result{Text: joinLines(lines), Lines: lines, Pages: pdfCtx.PageCount}, nil
}

// pageContent returns the decoded content stream for one page, or nil.
func pageContent(pdfCtx *model.Context, pageNr int) []byte {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return data
}

// pageHeight looks up the media box height for a page, defaulting to US
// Letter when dimensions are unavailable.
func pageHeight(dims []types.Dim, pageNr int) float64 {
	if pageNr >= 1 && pageNr <= len(dims) && dims[pageNr-1].Height > 0 {
		return dims[pageNr-1].Height
	}
	return letterHeight
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textState tracks the subset of the PDF text state needed to place words:
// the current text position, font size, and leading.
type textState struct {
	x, y     float64
	fontSize float64
	leading  float64
	pageH    float64
}

// scanContentWords walks a content stream operator by operator and emits a
// positioned word for every shown string. Placement is heuristic: glyph
// widths are approximated from the font size, which is enough for the line
// reconstruction that follows.
func scanContentWords(stream []byte, pageH float64) []word {
	st := textState{fontSize: 12, leading: 14.4, pageH: pageH}
	var words []word

	for _, raw := range bytes.Split(stream, []byte{'\n'}) {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tm")):
			// a b c d e f Tm — only the translation matters here.
			if nums, ok := trailingNumbers(line, 2, 6); ok {
				st.x, st.y = nums[4], nums[5]
			}
		case bytes.HasSuffix(line, []byte("TD")):
			if nums, ok := trailingNumbers(line, 2, 2); ok {
				st.x += nums[0]
				st.y += nums[1]
				st.leading = -nums[1]
			}
		case bytes.HasSuffix(line, []byte("Td")):
			if nums, ok := trailingNumbers(line, 2, 2); ok {
				st.x += nums[0]
				st.y += nums[1]
			}
		case bytes.Equal(line, []byte("T*")):
			st.y -= st.leading
		case bytes.HasSuffix(line, []byte("TL")):
			if nums, ok := trailingNumbers(line, 2, 1); ok {
				st.leading = nums[0]
			}
		case bytes.HasSuffix(line, []byte("Tf")):
			if nums, ok := trailingNumbers(line, 2, 1); ok && nums[0] > 0 {
				st.fontSize = nums[0]
				st.leading = nums[0] * 1.2
			}
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			words = appendShownText(words, line, &st)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			st.y -= st.leading
			words = appendShownText(words, line, &st)
		}
	}
	return words
}

// appendShownText decodes every string literal on an operator line and
// emits it as one word at the current text position, advancing x.
func appendShownText(words []word, line []byte, st *textState) []word {
	for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
		text := cleanText(decodePDFString(m[1]))
		if text == "" {
			continue
		}
		// Approximate advance: half an em per glyph.
		width := 0.5 * st.fontSize * float64(len([]rune(text)))
		words = append(words, word{
			text:   text,
			x0:     st.x,
			x1:     st.x + width,
			top:    st.pageH - st.y - st.fontSize,
			bottom: st.pageH - st.y,
		})
		st.x += width
	}
	return words
}

// trailingNumbers parses the n numeric operands preceding an operator token
// of opLen bytes at the end of the line.
func trailingNumbers(line []byte, opLen, n int) ([]float64, bool) {
	fields := strings.Fields(string(line[:len(line)-opLen]))
	if len(fields) < n {
		return nil, false
	}
	nums := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[len(fields)-n+i], 64)
		if err != nil {
			return nil, false
		}
		nums[i] = v
	}
	return nums, true
}

// extractStreamText parses content stream operators for text only, keeping
// row breaks at positioning operators. Used by the fallback pass.
func extractStreamText(stream []byte) string {
	var sb strings.Builder

	for _, raw := range bytes.Split(stream, []byte{'\n'}) {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			sb.WriteByte('\n')
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	rows := strings.Split(sb.String(), "\n")
	for i, row := range rows {
		rows[i] = cleanText(row)
	}
	return strings.Join(rows, "\n")
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanText collapses whitespace runs and drops non-printable runes.
func cleanText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
