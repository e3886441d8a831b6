package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/priorauth/docpipe"
)

// ExtractQuery is the input of the priorauth_extract tool. Exactly one of
// Path or Data must be set.
type ExtractQuery struct {
	Path        string `json:"path,omitempty" jsonschema:"Filesystem path of the document to process."`
	Data        string `json:"data,omitempty" jsonschema:"Base64-encoded document payload, as an alternative to path."`
	Filename    string `json:"filename,omitempty" jsonschema:"Original filename, used for type detection when data is given."`
	ContentType string `json:"content_type,omitempty" jsonschema:"Declared MIME type, if known."`
}

// FileTypesResponse lists the file types the pipeline dispatches on.
type FileTypesResponse struct {
	FileTypes []string `json:"file_types"`
}

// ExtractTool describes the extraction tool for MCP clients.
func ExtractTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ExtractQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "priorauth_extract",
		Description: "Extract prior-authorization fields from a document (PDF, image, or plain text). Returns resolved fields with confidence and provenance, missing required items, a suggested next action, and an audit trail.",
		InputSchema: inputschema,
	}
}

// FileTypesTool describes the file-type listing tool.
func FileTypesTool() *mcp.Tool {
	inputschema, err := jsonschema.For[struct{}](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "priorauth_filetypes",
		Description: "List the document types the extraction pipeline supports.",
		InputSchema: inputschema,
	}
}

// RegisterMCP attaches the extraction tools to an MCP server.
func RegisterMCP(srv *mcp.Server, svc *Service) {
	mcp.AddTool(srv, ExtractTool(), func(ctx context.Context, req *mcp.CallToolRequest, query ExtractQuery) (*mcp.CallToolResult, *Response, error) {
		data, filename, err := queryPayload(query)
		if err != nil {
			return nil, nil, err
		}
		return nil, svc.Extract(ctx, data, filename, query.ContentType), nil
	})

	mcp.AddTool(srv, FileTypesTool(), func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, *FileTypesResponse, error) {
		return nil, &FileTypesResponse{FileTypes: []string{
			string(docpipe.FileTypePDF),
			string(docpipe.FileTypeImage),
			string(docpipe.FileTypeText),
		}}, nil
	})
}

// queryPayload loads the document bytes from whichever input the query set.
func queryPayload(query ExtractQuery) ([]byte, string, error) {
	switch {
	case query.Path != "" && query.Data != "":
		return nil, "", fmt.Errorf("path and data are mutually exclusive")
	case query.Path != "":
		data, err := os.ReadFile(query.Path)
		if err != nil {
			return nil, "", fmt.Errorf("read document: %w", err)
		}
		return data, filepath.Base(query.Path), nil
	case query.Data != "":
		data, err := base64.StdEncoding.DecodeString(query.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode document data: %w", err)
		}
		return data, query.Filename, nil
	default:
		return nil, "", fmt.Errorf("either path or data is required")
	}
}
