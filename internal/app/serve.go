package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"storefront/internal/httpapi"
	mcpserver "storefront/internal/mcp"
)

// ServeHTTP runs the JSON API with background workers until ctx ends.
func (a *App) ServeHTTP(ctx context.Context) error {
	if err := a.StartBackground(ctx); err != nil {
		return err
	}
	h := httpapi.New(a.Layouts, a.Catalog, a.logger.WithPrefix("http"))
	return httpapi.Serve(ctx, a.cfg.HTTP.Addr, h, a.logger)
}

// ServeMCP runs the MCP server on stdin/stdout. Logs go to stderr so they
// never interleave with protocol frames.
func (a *App) ServeMCP(ctx context.Context, version string) error {
	if err := a.StartBackground(ctx); err != nil {
		return err
	}
	srv := mcpserver.New(mcpserver.Deps{
		Layouts: a.Layouts,
		Catalog: a.Catalog,
		Logger:  a.logger.WithPrefix("mcp"),
		Version: version,
	})
	err := srv.ServeStdio(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeAll runs the HTTP API and, when withMCP is set, the MCP server side
// by side. The first to fail stops the other.
func (a *App) ServeAll(ctx context.Context, withMCP bool, version string) error {
	if !withMCP {
		return a.ServeHTTP(ctx)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.ServeHTTP(ctx) })
	g.Go(func() error { return a.ServeMCP(ctx, version) })
	return g.Wait()
}
