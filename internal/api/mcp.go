package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/model"
)

// NewMCPServer creates an MCP server exposing the lead tools.
func NewMCPServer(svc LeadService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"leadsniper",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("leadsniper qualifies social postings into sales leads and sells access to the high-value ones."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("process_lead",
			mcp.WithDescription("Run a raw posting through the qualification pipeline and return the scored lead."),
			mcp.WithString("lead", mcp.Description("JSON object with the posting fields (source, title, content, author, url, ...)"), mcp.Required()),
		),
		mcpProcessLead(svc),
	)

	s.AddTool(
		mcp.NewTool("get_lead",
			mcp.WithDescription("Fetch a lead. High-value leads are locked unless a valid access token is given."),
			mcp.WithString("lead_id", mcp.Description("Lead id"), mcp.Required()),
			mcp.WithString("access_token", mcp.Description("Access token returned by unlock_lead")),
		),
		mcpGetLead(svc),
	)

	s.AddTool(
		mcp.NewTool("unlock_lead",
			mcp.WithDescription("Pay for a high-value lead and receive an access token."),
			mcp.WithString("lead_id", mcp.Description("Lead id"), mcp.Required()),
			mcp.WithString("payment_method", mcp.Description("Payment method (default nevermined)")),
			mcp.WithString("payment_token", mcp.Description("Opaque payment token from the payment front end")),
		),
		mcpUnlockLead(svc),
	)

	s.AddTool(
		mcp.NewTool("list_protected",
			mcp.WithDescription("List high-value leads available for unlock (summaries only)."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10, max 100)")),
			mcp.WithNumber("offset", mcp.Description("Number of results to skip")),
		),
		mcpListProtected(svc),
	)

	return s
}

func mcpProcessLead(svc LeadService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("lead")
		if err != nil {
			return mcpError("lead is required"), nil
		}
		var lead model.RawLead
		if err := json.Unmarshal([]byte(raw), &lead); err != nil {
			return mcpError(fmt.Sprintf("lead is not a JSON object: %v", err)), nil
		}

		res, err := svc.Submit(ctx, lead)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpGetLead(svc LeadService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("lead_id")
		if err != nil {
			return mcpError("lead_id is required"), nil
		}
		view, err := svc.Get(ctx, id, req.GetString("access_token", ""))
		if err != nil {
			return mcpFailure(err), nil
		}
		if view.Locked != nil {
			return mcpJSON(view.Locked)
		}
		return mcpJSON(leadResponse{ProcessedLead: *view.Lead, ProtectedAsset: view.Asset})
	}
}

func mcpUnlockLead(svc LeadService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("lead_id")
		if err != nil {
			return mcpError("lead_id is required"), nil
		}
		res, err := svc.Unlock(ctx, id, req.GetString("payment_method", ""), req.GetString("payment_token", ""))
		if err != nil {
			if res != nil && apperr.Is(err, apperr.KindPayment) {
				return mcpError(res.Message), nil
			}
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpListProtected(svc LeadService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page, err := svc.ListProtected(ctx, req.GetInt("offset", 0), req.GetInt("limit", 0))
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(page)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

// mcpFailure reports a service error as a tool error; internal causes are not exposed.
func mcpFailure(err error) *mcp.CallToolResult {
	switch apperr.GetKind(err) {
	case apperr.KindUnknown, apperr.KindInternal:
		slog.Error("mcp tool failed", "error", err)
		return mcpError("internal error")
	default:
		return mcpError(err.Error())
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
