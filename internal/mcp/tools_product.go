package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"storefront/internal/layout"
)

func (s *Server) registerProductTools() {
	// ── list_products ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_products",
		mcp.WithDescription("List the product catalog. With blockId, list only the products that block displays."),
		mcp.WithString("blockId", mcp.Description("Stable id or position id of a block (optional)")),
		mcp.WithString("pageId", mcp.Description("Page ID for blockId (optional, defaults to active page)")),
	), s.handleListProducts)
}

func (s *Server) handleListProducts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.catalog == nil {
		return nil, fmt.Errorf("no product catalog configured")
	}
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		catalog, err := s.catalog.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResult(catalog)
	}

	pageID, err := s.resolvePageID(req)
	if err != nil {
		return nil, err
	}
	blocks, err := s.layouts.Layout(ctx, pageID)
	if err != nil {
		return nil, err
	}
	b, ok := layout.Find(blocks, blockID)
	if !ok {
		return nil, fmt.Errorf("block %q: %w", blockID, layout.ErrBlockNotFound)
	}
	products, err := s.catalog.ProductsFor(ctx, b)
	if err != nil {
		return nil, err
	}
	return jsonResult(products)
}
