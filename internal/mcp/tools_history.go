package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

func (s *Server) registerHistoryTools() {
	// ── backfill_layout ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("backfill_layout",
		mcp.WithDescription("Fill in missing spacing, alignment and width defaults on the page now instead of waiting for the delayed pass"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleBackfillLayout)

	// ── layout_history ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("layout_history",
		mcp.WithDescription("List saved revisions of the page layout, oldest first"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleLayoutHistory)

	// ── restore_revision ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("Make a past revision the page's current layout. The restore is recorded as a new revision."),
		mcp.WithString("revisionId", mcp.Description("Revision ID from layout_history"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleRestoreRevision)
}

type revisionSummary struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parentId,omitempty"`
	Label     string  `json:"label"`
	Blocks    int     `json:"blocks"`
	CreatedAt string  `json:"createdAt"`
}

func (s *Server) handleBackfillLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	changed, err := s.layouts.Backfill(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	if !changed {
		return textResult("Layout already has every default; nothing changed."), nil
	}
	return textResult("Defaults applied."), nil
}

func (s *Server) handleLayoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	revs, err := s.layouts.History(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("layout history: %w", err)
	}
	out := make([]revisionSummary, len(revs))
	for i, r := range revs {
		out[i] = summarizeRevision(r)
	}
	return jsonResult(out)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	revID := req.GetString("revisionId", "")
	if revID == "" {
		return nil, fmt.Errorf("revisionId is required")
	}
	blocks, err := s.layouts.Restore(ctx, pageID, revID)
	if err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	return jsonResult(commandResult{Changed: true, Blocks: layout.Summarize(blocks)})
}

func summarizeRevision(r domain.Revision) revisionSummary {
	return revisionSummary{
		ID:        r.ID,
		ParentID:  r.ParentID,
		Label:     r.Label,
		Blocks:    len(layout.ParseJSON(r.Layout)),
		CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
