// Command priorauthd serves the prior-authorization document extraction API.
//
// Endpoints:
//
//	GET  /health        — liveness probe
//	POST /api/extract   — multipart document upload, returns the extraction response
//	GET  /api/requests  — recent request log entries for operational review
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/priorauth/dbopen"
	"github.com/hazyhaar/priorauth/docpipe"
	"github.com/hazyhaar/priorauth/extract"
	"github.com/hazyhaar/priorauth/requestlog"
	"github.com/hazyhaar/priorauth/rules"
	"github.com/hazyhaar/priorauth/shield"
	"github.com/hazyhaar/priorauth/triage"
)

func main() {
	port := env("PORT", "8086")
	logLevel := env("LOG_LEVEL", "info")
	reqlogPath := env("REQLOG_DB", "db/requests.db")
	tesseractPath := env("TESSERACT_PATH", "tesseract")
	maxUpload := envInt64("MAX_UPLOAD_BYTES", 25<<20)
	retentionDays := envInt("REQLOG_RETENTION_DAYS", 90)

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Request log DB.
	reqDB, err := dbopen.Open(reqlogPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("request log db", "error", err)
		os.Exit(1)
	}
	defer reqDB.Close()

	reqLog := requestlog.NewStore(reqDB)
	if err := reqLog.Init(ctx); err != nil {
		slog.Error("request log init", "error", err)
		os.Exit(1)
	}
	if removed, err := reqLog.Cleanup(ctx, retentionDays); err != nil {
		slog.Warn("request log cleanup", "error", err)
	} else if removed > 0 {
		slog.Info("request log cleanup", "removed", removed)
	}

	// Extraction pipeline.
	cat, err := rules.Load()
	if err != nil {
		slog.Error("load catalog", "error", err)
		os.Exit(1)
	}
	pipe := docpipe.New(docpipe.Config{
		MaxFileSize:   maxUpload,
		TesseractPath: tesseractPath,
		Logger:        logger,
	})
	svc := extract.NewService(pipe, cat, logger)

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(maxUpload) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/extract", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		data, filename, contentType, err := readUpload(req, maxUpload)
		if err != nil {
			code := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				code = http.StatusRequestEntityTooLarge
			}
			reqLog.Log(req.Context(), requestlog.Entry{
				Filename:   filename,
				Status:     "error",
				DurationMs: time.Since(start).Milliseconds(),
			})
			writeError(w, code, err)
			return
		}

		resp := svc.Extract(req.Context(), data, filename, contentType)

		reqLog.Log(req.Context(), requestlog.Entry{
			Filename:     filename,
			FileType:     string(resp.Document.FileType),
			Action:       resp.SuggestedNextAction.Action,
			MissingCount: len(resp.MissingFields),
			WarningCount: len(resp.Document.Warnings),
			DurationMs:   time.Since(start).Milliseconds(),
		})
		if resp.SuggestedNextAction.Action == triage.ActionStartAppealDraft {
			shield.GetLogger(req.Context()).Warn("denial language detected", "filename", filename)
		}
		writeJSON(w, 200, resp)
	})

	r.Get("/api/requests", func(w http.ResponseWriter, req *http.Request) {
		entries, err := reqLog.Recent(req.Context(), queryInt(req, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{
				"request_id":    e.RequestID,
				"filename":      e.Filename,
				"file_type":     e.FileType,
				"action":        e.Action,
				"missing_count": e.MissingCount,
				"warning_count": e.WarningCount,
				"duration_ms":   e.DurationMs,
				"status":        e.Status,
				"created_at":    e.CreatedAt,
			})
		}
		writeJSON(w, 200, out)
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// readUpload pulls the document out of the multipart form. The "file" part
// is required; its filename and content type drive backend dispatch.
func readUpload(r *http.Request, maxUpload int64) (data []byte, filename, contentType string, err error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, "", "", err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", errors.New("multipart field 'file' is required")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, header.Filename, "", err
	}
	return data, header.Filename, header.Header.Get("Content-Type"), nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
