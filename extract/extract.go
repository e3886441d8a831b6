// Package extract composes the full intake pipeline: backend extraction,
// field resolution, requirement triage, and the audit trail, assembled into
// one response per uploaded document.
package extract

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/priorauth/docpipe"
	"github.com/hazyhaar/priorauth/fields"
	"github.com/hazyhaar/priorauth/rules"
	"github.com/hazyhaar/priorauth/triage"
)

// DocumentInfo describes the processed upload. Pages is omitted when the
// backend could not determine a page count.
type DocumentInfo struct {
	Filename string           `json:"filename"`
	FileType docpipe.FileType `json:"file_type"`
	Pages    *int             `json:"pages,omitempty"`
	Warnings []string         `json:"warnings"`
}

// Response is the complete extraction result. Slice members are always
// non-nil so the JSON encoding carries arrays, never null.
type Response struct {
	Document            DocumentInfo        `json:"document"`
	Fields              []fields.Field      `json:"fields"`
	MissingFields       []string            `json:"missing_fields"`
	SuggestedNextAction triage.Action       `json:"suggested_next_action"`
	AuditTrail          []fields.AuditEntry `json:"audit_trail"`
}

// Service runs the pipeline. Construct with NewService.
type Service struct {
	pipe   *docpipe.Pipeline
	cat    *rules.Catalog
	logger *slog.Logger
}

// NewService wires the pipeline, catalogue, and logger; nil arguments get
// working defaults.
func NewService(pipe *docpipe.Pipeline, cat *rules.Catalog, logger *slog.Logger) *Service {
	if pipe == nil {
		pipe = docpipe.New(docpipe.Config{})
	}
	if cat == nil {
		cat = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pipe: pipe, cat: cat, logger: logger}
}

// Extract processes one uploaded document end to end. It is total: any
// payload yields a well-formed Response, with degradation reported through
// document warnings. Identical inputs produce identical responses.
func (s *Service) Extract(ctx context.Context, data []byte, filename, contentType string) *Response {
	ft := docpipe.DetectType(filename, contentType)
	res := s.pipe.Extract(ctx, data, ft)

	fs := fields.Resolve(res.Lines, res.Text, s.cat)
	byKey := fields.ByKey(fs)
	missing := triage.Missing(byKey, res.Text, s.cat)
	action := triage.Recommend(res.Text, missing, s.cat)
	trail := fields.Trail(fs)

	var pages *int
	if res.Pages > 0 {
		pages = &res.Pages
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if missing == nil {
		missing = []string{}
	}

	s.logger.Info("document processed",
		"filename", filename,
		"file_type", ft,
		"lines", len(res.Lines),
		"missing", len(missing),
		"warnings", len(warnings),
		"action", action.Action,
	)

	return &Response{
		Document: DocumentInfo{
			Filename: filename,
			FileType: ft,
			Pages:    pages,
			Warnings: warnings,
		},
		Fields:              fs,
		MissingFields:       missing,
		SuggestedNextAction: action,
		AuditTrail:          trail,
	}
}
