// CLAUDE:SUMMARY MCP tools mirroring the HTTP control surface: ping, hosts, capture, result.
package serve

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/convocap/capture"
	"github.com/hazyhaar/convocap/idgen"
	"github.com/hazyhaar/convocap/kit"
	"github.com/hazyhaar/convocap/turn"
)

// RegisterMCP registers the capture tools on an MCP server. The capture
// tool runs synchronously: MCP clients hold one request open rather
// than polling a progress channel.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerPingTool(srv)
	s.registerHostsTool(srv)
	s.registerCaptureTool(srv)
	s.registerResultTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- ping ---

func (s *Server) registerPingTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convocap_ping",
		Description: "Verify the capture engine is present and report its version.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"service":        "convocap",
			"version":        Version,
			"schema_version": turn.SchemaVersion,
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- hosts ---

func (s *Server) registerHostsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convocap_hosts",
		Description: "List the chat hosts the capture engine understands.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"hosts": turn.Sources()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- capture ---

func (s *Server) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convocap_capture",
		Description: "Capture a chat conversation from a live page URL or a supplied document snapshot; returns the run ID and summary.",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Live chat page URL to attach to"},
			"html":     map[string]any{"type": "string", "description": "Document snapshot to capture instead of a live page"},
			"page_url": map[string]any{"type": "string", "description": "Page URL the snapshot came from"},
			"tolerant": map[string]any{"type": "boolean", "description": "Proceed on attachment failures instead of aborting"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*CaptureRequest)
		runID := idgen.RunID()
		ctx = kit.WithRunID(ctx, runID)

		payload, warning, err := s.launch(ctx, *r, func(capture.Event) {})
		if err != nil {
			return nil, err
		}
		if err := s.st.Save(ctx, runID, payload, warning); err != nil {
			return nil, err
		}
		return map[string]any{
			"run_id":  runID,
			"source":  payload.Source,
			"title":   payload.Title,
			"turns":   len(payload.Turns),
			"warning": warning,
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r CaptureRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request: &r,
			EnrichCtx: func(ctx context.Context) context.Context {
				return kit.WithTransport(ctx, "mcp")
			},
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- result ---

type resultReq struct {
	RunID string `json:"run_id"`
}

func (s *Server) registerResultTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convocap_result",
		Description: "Fetch the full capture payload for a completed run.",
		InputSchema: inputSchema(map[string]any{
			"run_id": map[string]any{"type": "string", "description": "Run ID returned by convocap_capture"},
		}, []string{"run_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*resultReq)
		return s.st.Get(ctx, r.RunID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r resultReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
