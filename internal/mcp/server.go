// Package mcp exposes the triage pipeline to AI agents over the Model
// Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/example/triage/internal/agentqueue"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/respond"
	"github.com/example/triage/internal/triage"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Deps are the collaborators the MCP tools call into. Generator may be nil,
// which disables drafted replies in triage_question.
type Deps struct {
	Retriever    triage.Retriever
	Index        *index.TicketIndex
	Orchestrator *triage.Orchestrator
	Generator    *respond.Generator
	Engine       *policy.Engine
	Policies     *policy.Store
	Feedback     *feedback.Service
	Queue        *agentqueue.Store
	Dispatcher   *notify.Dispatcher
}

// Server wraps an MCP server that exposes triage tools.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"triage",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTicketsTool, s.handleSearchTickets)
	s.mcp.AddTool(triageQuestionTool, s.handleTriageQuestion)
	s.mcp.AddTool(getPolicyTool, s.handleGetPolicy)
	s.mcp.AddTool(recalibrateTool, s.handleRecalibrate)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
