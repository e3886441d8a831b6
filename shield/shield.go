// Package shield provides reusable HTTP middleware for the intake API:
// security headers, upload body limits, and request tracing.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(25 << 20) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "shield_trace_id"
)

// DefaultStack returns the standard middleware stack for the intake API,
// ordered: SecurityHeaders → MaxUploadBody → TraceID.
func DefaultStack(maxUpload int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxUploadBody(maxUpload),
		TraceID,
	}
}
