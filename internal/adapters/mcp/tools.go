package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func listRulesTool() mcp.Tool {
	return mcp.NewTool("list_rules",
		mcp.WithDescription("List extraction rules with their document type, version and skills"),
	)
}

func listDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List documents of a project, newest first"),
		mcp.WithString("project_id",
			mcp.Description("Project id (default: default)"),
		),
	)
}

func getDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Retrieve a document with its status, type and extracted fields"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
	)
}

func extractDocumentTool() mcp.Tool {
	return mcp.NewTool("extract_document",
		mcp.WithDescription("Run extraction with the bound rule, or bind rule_id first. Replaces the field map"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
		mcp.WithString("rule_id",
			mcp.Description("Rule to bind before extracting"),
		),
		mcp.WithString("model_id",
			mcp.Description("Model id or alias, e.g. deepseek-v3"),
		),
	)
}

func analyzeRegionTool() mcp.Tool {
	return mcp.NewTool("analyze_region",
		mcp.WithDescription("Fill currently empty fields from a selected span of the document text"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Selected source text"),
		),
	)
}

func markBadCaseTool() mcp.Tool {
	return mcp.NewTool("mark_bad_case",
		mcp.WithDescription("Flag a span of source text as missed or incorrectly extracted"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Flagged source text"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Enum("missed", "incorrect"),
			mcp.Description("missed or incorrect"),
		),
		mcp.WithString("note",
			mcp.Description("Reviewer note"),
		),
	)
}

func refineDocumentTool() mcp.Tool {
	return mcp.NewTool("refine_document",
		mcp.WithDescription("Re-extract using the flagged bad cases of the current review session"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
	)
}

func evolveRuleTool() mcp.Tool {
	return mcp.NewTool("evolve_rule",
		mcp.WithDescription("Rewrite the bound rule's instruction from the manual corrections on a document"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
	)
}
