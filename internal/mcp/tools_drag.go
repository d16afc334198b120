package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"storefront/internal/builder"
	"storefront/internal/domain"
	"storefront/internal/layout"
)

func (s *Server) registerDragTools() {
	// ── select_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_block",
		mcp.WithDescription("Select a block in the page's editor. Omit blockId to clear the selection."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleSelectBlock)

	// ── double_click_block ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("double_click_block",
		mcp.WithDescription("Select a block and report it as double-clicked, which asks the host to open its editor"),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleDoubleClickBlock)

	// ── start_drag ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("start_drag",
		mcp.WithDescription("Pick up a block to reorder it by drag. Only one drag per page may be in progress."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleStartDrag)

	// ── update_drag ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_drag",
		mcp.WithDescription("Move the drop target of the current drag and get the blocks it would land between. Omit dest to clear the target."),
		mcp.WithNumber("dest", mcp.Description("Destination index (optional)")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleUpdateDrag)

	// ── end_drag ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("end_drag",
		mcp.WithDescription("Drop the dragged block at dest. Without dest the drag is cancelled and nothing moves."),
		mcp.WithNumber("dest", mcp.Description("Destination index (optional)")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleEndDrag)
}

type dragResult struct {
	Drag    builder.DragView `json:"drag"`
	Hint    *layout.Hint     `json:"hint,omitempty"`
	Outcome string           `json:"outcome,omitempty"`
	Blocks  []layout.Summary `json:"blocks,omitempty"`
}

// destArg reads the optional dest index.
func destArg(req mcp.CallToolRequest) *int {
	if _, ok := req.GetArguments()["dest"]; !ok {
		return nil
	}
	d := req.GetInt("dest", 0)
	return &d
}

func (s *Server) handleSelectBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	b, err := s.layouts.Select(ctx, pageID, req.GetString("blockId", ""))
	if err != nil {
		return nil, fmt.Errorf("select block: %w", err)
	}
	if b == nil {
		return textResult("Selection cleared"), nil
	}
	return jsonResult(layout.Summarize([]domain.Block{b})[0])
}

func (s *Server) handleDoubleClickBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	if err := s.layouts.DoubleClick(ctx, pageID, blockID); err != nil {
		return nil, fmt.Errorf("double click: %w", err)
	}
	return textResult(fmt.Sprintf("Double-clicked %s", blockID)), nil
}

func (s *Server) handleStartDrag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	view, err := s.layouts.BeginDrag(ctx, pageID, blockID)
	if err != nil {
		return nil, fmt.Errorf("start drag: %w", err)
	}
	return jsonResult(dragResult{Drag: view})
}

func (s *Server) handleUpdateDrag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	hint, err := s.layouts.UpdateDrag(pageID, destArg(req))
	if err != nil {
		return nil, fmt.Errorf("update drag: %w", err)
	}
	view, err := s.layouts.Drag(pageID)
	if err != nil {
		return nil, fmt.Errorf("update drag: %w", err)
	}
	return jsonResult(dragResult{Drag: view, Hint: hint})
}

func (s *Server) handleEndDrag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	outcome, err := s.layouts.EndDrag(pageID, destArg(req))
	if err != nil {
		return nil, fmt.Errorf("end drag: %w", err)
	}
	view, err := s.layouts.Drag(pageID)
	if err != nil {
		return nil, fmt.Errorf("end drag: %w", err)
	}
	blocks, err := s.layouts.Layout(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("end drag: %w", err)
	}
	return jsonResult(dragResult{Drag: view, Outcome: outcome.String(), Blocks: layout.Summarize(blocks)})
}
