package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("landing_page",
		mcp.WithPromptDescription("Guide through building a storefront landing page from banner to product sections"),
		mcp.WithArgument("storeName",
			mcp.ArgumentDescription("Name of the store"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("theme",
			mcp.ArgumentDescription("What the store sells or the campaign theme"),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_layout",
		mcp.WithPromptDescription("Review a page's layout and fix ordering, spacing and sizing"),
	), s.handleTidyLayoutPrompt)
}

func (s *Server) handleLandingPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	store := req.Params.Arguments["storeName"]
	theme := req.Params.Arguments["theme"]
	if theme == "" {
		theme = "its best-selling products"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for %s", store),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page for "%s" featuring %s. Follow these steps:

1. Use create_page to create a page named "%s home"
2. insert_block a banner at "start" with a welcoming title and subtitle; set showStoreHeader to true
3. Use list_products to pick a hero product, then insert_block a featured block linked to it with productId
4. insert_block a grid for the wider catalog (columns 4, productCount 8)
5. insert_block a text block closing the page with the store's story
6. Call get_layout and check the order reads well; use move_block or reorder_block to fix it

Keep titles short. Only the first banner shows the store header.`, store, theme, store),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyLayoutPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Tidy the active page's layout",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Tidy the layout of the active page. Follow these steps:

1. Call backfill_layout so every block has spacing, alignment and width
2. Call list_blocks and look for placeholder blocks (unknown layout types); leave them in place but mention them
3. Make sure a banner, if any, comes first; use reorder_block to move it to index 0
4. Use resize_block to bring text blocks to a consistent height
5. Summarise what changed; layout_history lists every saved revision if something needs undoing`,
				},
			},
		},
	}, nil
}
