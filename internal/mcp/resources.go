package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	pagesURI        = "storefront://pages"
	pageLayoutURI   = "storefront://page/{pageId}/layout"
	pageURIPrefix   = "storefront://page/"
	layoutURISuffix = "/layout"
)

func (s *Server) registerResources() {
	// ── storefront://pages ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pagesURI,
		"All Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── storefront://page/{pageId}/layout ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageLayoutURI,
			"Layout Map of a Page",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handlePageLayoutResource,
	)
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.layouts.ListPages(ctx)
	if err != nil {
		return nil, err
	}

	type pageSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	summaries := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		summaries = append(summaries, pageSummary{ID: p.ID, Name: p.Name})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      pagesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePageLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := extractPageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}

	m, err := s.layouts.LayoutMap(ctx, pageID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(m, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPageIDFromURI extracts page ID from "storefront://page/{id}/layout"
func extractPageIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, layoutURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
