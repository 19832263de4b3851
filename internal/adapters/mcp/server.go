package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// Services are the use cases exposed as MCP tools.
type Services struct {
	Documents  ports.DocumentReader
	Extraction ports.ExtractionService
	Feedback   ports.FeedbackService
	Rules      ports.RuleLibrary
	Evolver    ports.RuleEvolver
}

func NewServer(services Services, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"extraction-workbench",
		version,
		server.WithToolCapabilities(true),
	)
	h := &handlers{services: services}

	s.AddTool(listRulesTool(), h.listRules)
	s.AddTool(listDocumentsTool(), h.listDocuments)
	s.AddTool(getDocumentTool(), h.getDocument)
	s.AddTool(extractDocumentTool(), h.extractDocument)
	s.AddTool(analyzeRegionTool(), h.analyzeRegion)
	s.AddTool(markBadCaseTool(), h.markBadCase)
	s.AddTool(refineDocumentTool(), h.refineDocument)
	s.AddTool(evolveRuleTool(), h.evolveRule)
	return s
}

type handlers struct {
	services Services
}

func (h *handlers) listRules(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules, err := h.services.Rules.List(ctx)
	if err != nil {
		return failure("list_rules", err), nil
	}
	return jsonResult(map[string]any{"rules": rules})
}

func (h *handlers) listDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := h.services.Documents.ListByProject(ctx, strings.TrimSpace(request.GetString("project_id", "")))
	if err != nil {
		return failure("list_documents", err), nil
	}
	summaries := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, map[string]any{
			"id":      doc.ID,
			"name":    doc.Name,
			"type":    doc.Type,
			"status":  doc.Status,
			"rule_id": doc.AppliedRuleID,
		})
	}
	return jsonResult(map[string]any{"documents": summaries})
}

func (h *handlers) getDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	doc, err := h.services.Documents.GetByID(ctx, id)
	if err != nil {
		return failure("get_document", err), nil
	}
	return jsonResult(documentView(doc))
}

func (h *handlers) extractDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	doc, err := h.services.Extraction.RunExtraction(ctx, id, ports.RunOptions{
		RuleID:  request.GetString("rule_id", ""),
		ModelID: request.GetString("model_id", ""),
	})
	if err != nil {
		return failure("extract_document", err), nil
	}
	return jsonResult(documentView(doc))
}

func (h *handlers) analyzeRegion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	text, err := request.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text parameter is required"), nil
	}
	outcome, err := h.services.Extraction.AnalyzeRegion(ctx, id, text)
	if err != nil {
		return failure("analyze_region", err), nil
	}
	filled := outcome.Filled
	if filled == nil {
		filled = []string{}
	}
	return jsonResult(map[string]any{"filled": filled, "filled_count": len(filled)})
}

func (h *handlers) markBadCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text parameter is required"), nil
	}
	kind, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type parameter is required"), nil
	}
	badCase, err := h.services.Feedback.Mark(ctx, id, text, domain.BadCaseType(strings.ToLower(kind)), request.GetString("note", ""))
	if err != nil {
		return failure("mark_bad_case", err), nil
	}
	return jsonResult(badCase)
}

func (h *handlers) refineDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	outcome, err := h.services.Extraction.Refine(ctx, id)
	if err != nil {
		return failure("refine_document", err), nil
	}
	changed := outcome.Changed
	if changed == nil {
		changed = []string{}
	}
	return jsonResult(map[string]any{"changed": changed, "document": documentView(outcome.Document)})
}

func (h *handlers) evolveRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	rule, err := h.services.Evolver.EvolveFromDocument(ctx, id)
	if err != nil {
		return failure("evolve_rule", err), nil
	}
	return jsonResult(rule)
}

// documentView drops page content, which can be large, and lists fields in position order.
func documentView(doc *domain.Document) map[string]any {
	if doc == nil {
		return nil
	}
	fields := make([]map[string]any, 0, len(doc.ExtractedData))
	for _, key := range doc.ExtractedData.Keys() {
		field := doc.ExtractedData[key]
		fields = append(fields, map[string]any{
			"key":        key,
			"label":      field.Label,
			"value":      field.Value,
			"confidence": field.Confidence,
			"is_edited":  field.IsEdited,
		})
	}
	return map[string]any{
		"id":      doc.ID,
		"name":    doc.Name,
		"type":    doc.Type,
		"status":  doc.Status,
		"rule_id": doc.AppliedRuleID,
		"pages":   len(doc.Content),
		"error":   doc.Error,
		"fields":  fields,
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func failure(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}
