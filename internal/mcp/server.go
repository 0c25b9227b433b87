// Package mcp exposes the content guard as Model Context Protocol tools
// over stdio, so agent runtimes can screen text without shelling out to
// the CLI.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/audit"
	"github.com/ppiankov/guardstream/internal/guard"
	"github.com/ppiankov/guardstream/internal/store"
)

// Config holds MCP server configuration.
type Config struct {
	Version       string
	PolicyID      string // guardrail identifier sent with every evaluation
	PolicyVersion string
	AuditLog      *audit.Log   // optional
	Store         *store.Store // optional
	Logger        zerolog.Logger
}

// Server wraps the MCP SDK server around a content guard.
type Server struct {
	mcpServer     *mcpsdk.Server
	guard         *guard.Guard
	policyID      string
	policyVersion string
	auditLog      *audit.Log
	store         *store.Store
	log           zerolog.Logger
}

// New creates an MCP server exposing the guard tools.
func New(g *guard.Guard, cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		guard:         g,
		policyID:      cfg.PolicyID,
		policyVersion: cfg.PolicyVersion,
		auditLog:      cfg.AuditLog,
		store:         cfg.Store,
		log:           cfg.Logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "guardstream",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the guard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "guard_text",
		Description: "Evaluate text against the configured content policy. Long text is chunked automatically; blocked content returns an error result with the replacement text and findings.",
	}, s.handleGuardText)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "guard_status",
		Description: "Report the active quota limits and, when a verdict store is configured, cumulative evaluation counts.",
	}, s.handleStatus)
}
