package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNavigationTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all storefront pages"),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new, empty storefront page and make it the active page"),
		mcp.WithString("name",
			mcp.Description("Name of the new page"),
			mcp.Required(),
		),
	), s.handleCreatePage)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page for subsequent tool calls. Tools that accept pageId will default to this."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to make active"),
			mcp.Required(),
		),
	), s.handleSetActivePage)

	// ── rename_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_page",
		mcp.WithDescription("Rename a page. Defaults to the active page."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page (optional if active page is set)"),
		),
		mcp.WithString("name",
			mcp.Description("New page name"),
			mcp.Required(),
		),
	), s.handleRenamePage)

	// ── delete_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("Delete a page together with its layout history"),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to delete"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePage)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.layouts.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(pages)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	page, err := s.layouts.CreatePage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Auto-set as active page
	s.setActivePage(page.ID)
	return jsonResult(page)
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	if _, err := s.layouts.GetPage(ctx, pageID); err != nil {
		return nil, fmt.Errorf("set active page: %w", err)
	}
	s.setActivePage(pageID)
	return textResult(fmt.Sprintf("Active page set to %s", pageID)), nil
}

func (s *Server) handleRenamePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.layouts.RenamePage(ctx, pageID, name); err != nil {
		return nil, fmt.Errorf("rename page: %w", err)
	}
	return textResult(fmt.Sprintf("Page %s renamed to %q", pageID, name)), nil
}

func (s *Server) handleDeletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	if err := s.layouts.DeletePage(ctx, pageID); err != nil {
		return nil, fmt.Errorf("delete page: %w", err)
	}
	s.mu.Lock()
	if s.activePageID == pageID {
		s.activePageID = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Deleted page %s", pageID)), nil
}
