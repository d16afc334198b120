package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

func (s *Server) registerBlockTools() {
	// ── get_layout ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Get the page's Layout Map: block entries keyed by position"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleGetLayout)

	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the blocks on a page in display order, optionally filtered by type"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("type", mcp.Description("Filter by block type (optional)")),
	), s.handleListBlocks)

	// ── insert_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_block",
		mcp.WithDescription("Insert a new block seeded with its type's defaults. Appends when no position is given."),
		mcp.WithString("type",
			mcp.Description("Block type: "+blockTypeList()),
			mcp.Required(),
		),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("at", mcp.Description(`Insertion point: "start", "end", "before:<k>", "after:<k>" or an index (optional)`)),
		mcp.WithObject("fields", mcp.Description(`Initial field values, e.g. {"title": "New arrivals", "columns": 3} (optional)`)),
	), s.handleInsertBlock)

	// ── update_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Merge field values into a block. A null value clears the field; type and identity cannot change."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithObject("fields", mcp.Description(`Fields to set, e.g. {"content": "Hello", "textAlignment": "left"}`), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleUpdateBlock)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block. Later blocks shift up."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Swap a block with its neighbour. Moving past either end does nothing."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithString("direction", mcp.Description(`"up" or "down"`), mcp.Required(), mcp.Enum("up", "down")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleMoveBlock)

	// ── reorder_block ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_block",
		mcp.WithDescription("Move a block to a new index, shifting the blocks in between"),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithNumber("to", mcp.Description("Destination index"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleReorderBlock)

	// ── resize_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resize_block",
		mcp.WithDescription("Change a block's height in pixels, clamped to its bounds. Give either delta or height. List and masonry blocks size to their content."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id (block-<n>)"), mcp.Required()),
		mcp.WithNumber("delta", mcp.Description("Pixels to add (negative shrinks)")),
		mcp.WithNumber("height", mcp.Description("Absolute height in pixels")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleResizeBlock)
}

func boolPtr(v bool) *bool { return &v }

func blockTypeList() string {
	names := make([]string, len(domain.BlockTypes))
	for i, t := range domain.BlockTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// commandResult is what every mutating tool returns.
type commandResult struct {
	Changed bool             `json:"changed"`
	Blocks  []layout.Summary `json:"blocks"`
}

func resultOf(r layout.Result) (*mcp.CallToolResult, error) {
	return jsonResult(commandResult{Changed: r.Changed, Blocks: layout.Summarize(r.Blocks)})
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleGetLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	m, err := s.layouts.LayoutMap(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("get layout: %w", err)
	}
	return jsonResult(m)
}

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blocks, err := s.layouts.Layout(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	summaries := layout.Summarize(blocks)
	if filter := req.GetString("type", ""); filter != "" {
		kept := summaries[:0]
		for _, sm := range summaries {
			if sm.Block.LayoutType == filter {
				kept = append(kept, sm)
			}
		}
		summaries = kept
	}
	return jsonResult(summaries)
}

func (s *Server) handleInsertBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	t := domain.BlockType(req.GetString("type", ""))
	if !t.Valid() {
		return nil, fmt.Errorf("type must be one of: %s", blockTypeList())
	}
	at, err := layout.ParsePoint(req.GetString("at", ""))
	if err != nil {
		return nil, err
	}
	fields, err := objectArg(req, "fields")
	if err != nil {
		return nil, err
	}
	res, err := s.layouts.Insert(ctx, pageID, t, at, layout.Patch(fields))
	if err != nil {
		return nil, fmt.Errorf("insert block: %w", err)
	}
	return resultOf(res)
}

func (s *Server) handleUpdateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	fields, err := objectArg(req, "fields")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields is required")
	}
	res, err := s.layouts.Update(ctx, pageID, blockID, layout.Patch(fields))
	if err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}
	return resultOf(res)
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	res, err := s.layouts.Delete(ctx, pageID, blockID)
	if err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return resultOf(res)
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	dir, err := layout.ParseDirection(req.GetString("direction", ""))
	if err != nil {
		return nil, err
	}
	res, err := s.layouts.Move(ctx, pageID, blockID, dir)
	if err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}
	return resultOf(res)
}

func (s *Server) handleReorderBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	if _, ok := req.GetArguments()["to"]; !ok {
		return nil, fmt.Errorf("to is required")
	}
	res, err := s.layouts.Reorder(ctx, pageID, blockID, req.GetInt("to", 0))
	if err != nil {
		return nil, fmt.Errorf("reorder block: %w", err)
	}
	return resultOf(res)
}

func (s *Server) handleResizeBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}

	args := req.GetArguments()
	_, hasDelta := args["delta"]
	_, hasHeight := args["height"]
	var res layout.Result
	switch {
	case hasHeight && hasDelta:
		return nil, fmt.Errorf("give either delta or height, not both")
	case hasHeight:
		res, err = s.layouts.SetHeight(ctx, pageID, blockID, req.GetInt("height", 0))
	case hasDelta:
		res, err = s.layouts.Resize(ctx, pageID, blockID, req.GetInt("delta", 0))
	default:
		return nil, fmt.Errorf("delta or height is required")
	}
	if err != nil {
		return nil, fmt.Errorf("resize block: %w", err)
	}
	return resultOf(res)
}
