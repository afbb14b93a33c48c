package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchTicketsTool defines the search_tickets MCP tool.
var searchTicketsTool = mcp.NewTool("search_tickets",
	mcp.WithDescription("Search historical support tickets semantically. Returns the closest tickets with similarity scores and their resolutions."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of tickets to return (default 5)"),
	),
)

// triageQuestionTool defines the triage_question MCP tool.
var triageQuestionTool = mcp.NewTool("triage_question",
	mcp.WithDescription("Run a customer question through triage. Returns the route, confidence score, and supporting evidence; escalated questions are queued for a human agent."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The customer question to triage"),
	),
	mcp.WithBoolean("draft",
		mcp.Description("Include a drafted reply when the question is auto-responded"),
	),
)

// getPolicyTool defines the get_policy MCP tool.
var getPolicyTool = mcp.NewTool("get_policy",
	mcp.WithDescription("Get the active escalation policy: confidence threshold, calibration window, version, and recent version history."),
)

// recalibrateTool defines the recalibrate MCP tool.
var recalibrateTool = mcp.NewTool("recalibrate",
	mcp.WithDescription("Recalibrate the escalation threshold from labeled outcomes and install the new policy version."),
)
