package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"storefront/internal/service"
)

// Server is the MCP server for the storefront builder.
// It exposes tools, resources, and prompts so AI agents can lay out pages.
type Server struct {
	mcp    *server.MCPServer
	logger *log.Logger

	// Services (injected from app layer)
	layouts *service.LayoutService
	catalog *service.CatalogService

	// Active page context (set by set_active_page tool)
	mu           sync.Mutex
	activePageID string
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Layouts *service.LayoutService
	Catalog *service.CatalogService
	Logger  *log.Logger
	Version string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{
		logger:  deps.Logger,
		layouts: deps.Layouts,
		catalog: deps.Catalog,
	}

	s.mcp = server.NewMCPServer(
		"storefront-mcp",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerNavigationTools()
	s.registerBlockTools()
	s.registerDragTools()
	s.registerHistoryTools()
	s.registerProductTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is cancelled or stdin
// closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting MCP stdio server")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActivePage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePageID = id
}

// resolvePageID returns the pageId argument or falls back to the active page.
func (s *Server) resolvePageID(req mcp.CallToolRequest) (string, error) {
	if pid := req.GetString("pageId", ""); pid != "" {
		return pid, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePageID != "" {
		return s.activePageID, nil
	}
	return "", errors.New("no pageId provided and no active page set (use set_active_page first)")
}

// objectArg reads an argument that may be given as a JSON object or as a
// string holding one.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a JSON object", key)
	}
}
