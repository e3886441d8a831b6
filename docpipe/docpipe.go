// Package docpipe extracts text and positioned lines from uploaded
// prior-authorization documents.
//
// Three backends cover the supported inputs:
//   - pdf: a layout pass over pdfcpu content streams yields positioned
//     words; a relaxed text-only pass is the fallback when layout fails.
//   - image: SVG markup is mined for <text> nodes; raster formats go
//     through the external tesseract binary.
//   - text: UTF-8 decode with invalid bytes discarded.
//
// Extraction is total: backends degrade to warnings rather than errors, so
// callers always receive a Result they can run field resolution over.
package docpipe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Pipeline dispatches payloads to extraction backends.
type Pipeline struct {
	cfg Config
}

// New builds a Pipeline, applying defaults for unset Config fields.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg}
}

// DetectType classifies a payload from its declared content type and
// filename. The content type wins when it carries a usable signal; the
// extension is the tiebreaker; everything else is treated as plain text.
func DetectType(filename, contentType string) FileType {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "pdf") {
		return FileTypePDF
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return FileTypePDF
	}
	if strings.HasPrefix(ct, "image/") {
		return FileTypeImage
	}
	switch ext {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".webp", ".svg":
		return FileTypeImage
	}
	return FileTypeText
}

// Extract runs the backend for the given file type over the payload.
// It never returns an error: failures degrade into Result.Warnings.
func (p *Pipeline) Extract(ctx context.Context, data []byte, ft FileType) Result {
	if int64(len(data)) > p.cfg.MaxFileSize {
		return Result{Warnings: []string{fmt.Sprintf(
			"payload of %d bytes exceeds the %d byte limit; extraction skipped", len(data), p.cfg.MaxFileSize)}}
	}
	switch ft {
	case FileTypePDF:
		return p.extractPDF(data)
	case FileTypeImage:
		return p.extractImage(ctx, data)
	default:
		return extractPlainText(data)
	}
}
