// Command priorauth-mcp exposes the extraction pipeline over the Model
// Context Protocol on stdio, so agent clients can process documents without
// running the HTTP service.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/priorauth/docpipe"
	"github.com/hazyhaar/priorauth/extract"
	"github.com/hazyhaar/priorauth/rules"
)

func main() {
	// Stdout is the MCP transport; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cat, err := rules.Load()
	if err != nil {
		logger.Error("load catalog", "error", err)
		os.Exit(1)
	}
	pipe := docpipe.New(docpipe.Config{
		TesseractPath: env("TESSERACT_PATH", "tesseract"),
		Logger:        logger,
	})
	svc := extract.NewService(pipe, cat, logger)

	srv := mcp.NewServer(&mcp.Implementation{Name: "priorauth", Version: "0.1.0"}, nil)
	extract.RegisterMCP(srv, svc)

	if err := srv.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Error("mcp server", "error", err)
		os.Exit(1)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
