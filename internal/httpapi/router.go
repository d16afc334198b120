// Package httpapi exposes the layout service as a JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/internal/builder"
	"storefront/internal/domain"
	"storefront/internal/layout"
	"storefront/internal/service"
	"storefront/internal/storage"
)

// maxBodyBytes caps request bodies; a full layout import is the largest payload.
const maxBodyBytes = 4 << 20

type API struct {
	layouts *service.LayoutService
	catalog *service.CatalogService
	logger  *log.Logger
}

// New builds the router. catalog may be nil, in which case the product
// routes are not mounted.
func New(layouts *service.LayoutService, catalog *service.CatalogService, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	a := &API{layouts: layouts, catalog: catalog, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", a.listPages)
		r.Post("/", a.createPage)

		r.Route("/{pageID}", func(r chi.Router) {
			r.Get("/", a.getPage)
			r.Patch("/", a.renamePage)
			r.Delete("/", a.deletePage)

			r.Get("/layout", a.getLayout)
			r.Put("/layout", a.importLayout)
			r.Post("/backfill", a.backfill)
			r.Post("/reorder", a.reorder)

			r.Get("/history", a.history)
			r.Post("/history/{revisionID}/restore", a.restore)

			r.Post("/select", a.selectBlock)
			r.Route("/drag", func(r chi.Router) {
				r.Get("/", a.dragState)
				r.Post("/start", a.startDrag)
				r.Post("/update", a.updateDrag)
				r.Post("/end", a.endDrag)
			})

			r.Route("/blocks", func(r chi.Router) {
				r.Get("/", a.listBlocks)
				r.Post("/", a.insertBlock)
				r.Patch("/{blockID}", a.updateBlock)
				r.Delete("/{blockID}", a.deleteBlock)
				r.Post("/{blockID}/move", a.moveBlock)
				r.Post("/{blockID}/resize", a.resizeBlock)
				r.Post("/{blockID}/double-click", a.doubleClick)
				if catalog != nil {
					r.Get("/{blockID}/products", a.blockProducts)
				}
			})
		})
	})

	if catalog != nil {
		r.Get("/products", a.listProducts)
	}
	return r
}

// Serve runs the API on addr until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func Serve(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http api: %w", err)
	}
	return nil
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Microsecond),
			"request", middleware.GetReqID(r.Context()),
		)
	})
}

// ── Pages ──────────────────────────────────────────────────

type pageRequest struct {
	Name string `json:"name"`
}

func (a *API) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := a.layouts.ListPages(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if pages == nil {
		pages = []domain.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (a *API) createPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	page, err := a.layouts.CreatePage(r.Context(), req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (a *API) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := a.layouts.GetPage(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) renamePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id := chi.URLParam(r, "pageID")
	if err := a.layouts.RenamePage(r.Context(), id, req.Name); err != nil {
		a.fail(w, r, err)
		return
	}
	a.getPage(w, r)
}

func (a *API) deletePage(w http.ResponseWriter, r *http.Request) {
	if err := a.layouts.DeletePage(r.Context(), chi.URLParam(r, "pageID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Layout ─────────────────────────────────────────────────

func (a *API) getLayout(w http.ResponseWriter, r *http.Request) {
	m, err := a.layouts.LayoutMap(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) importLayout(w http.ResponseWriter, r *http.Request) {
	var m domain.LayoutMap
	if !a.decode(w, r, &m, false) {
		return
	}
	blocks, err := a.layouts.Import(r.Context(), chi.URLParam(r, "pageID"), m)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Changed: true, Blocks: layout.Summarize(blocks)})
}

func (a *API) backfill(w http.ResponseWriter, r *http.Request) {
	changed, err := a.layouts.Backfill(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

type reorderRequest struct {
	BlockID string `json:"blockId"`
	To      *int   `json:"to"`
}

func (a *API) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.BlockID == "" || req.To == nil {
		writeError(w, http.StatusBadRequest, "blockId and to are required")
		return
	}
	res, err := a.layouts.Reorder(r.Context(), chi.URLParam(r, "pageID"), req.BlockID, *req.To)
	a.command(w, r, res, err)
}

// ── History ────────────────────────────────────────────────

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	revs, err := a.layouts.History(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if revs == nil {
		revs = []domain.Revision{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func (a *API) restore(w http.ResponseWriter, r *http.Request) {
	blocks, err := a.layouts.Restore(r.Context(), chi.URLParam(r, "pageID"), chi.URLParam(r, "revisionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Changed: true, Blocks: layout.Summarize(blocks)})
}

// ── Blocks ─────────────────────────────────────────────────

type commandResponse struct {
	Changed bool             `json:"changed"`
	Blocks  []layout.Summary `json:"blocks"`
}

type insertRequest struct {
	Type   domain.BlockType `json:"type"`
	At     string           `json:"at"`
	Fields layout.Patch     `json:"fields"`
}

type moveRequest struct {
	Direction string `json:"direction"`
}

type resizeRequest struct {
	Delta  *int `json:"delta"`
	Height *int `json:"height"`
}

func (a *API) listBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := a.layouts.Layout(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layout.Summarize(blocks))
}

func (a *API) insertBlock(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown block type %q", req.Type))
		return
	}
	at, err := layout.ParsePoint(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.layouts.Insert(r.Context(), chi.URLParam(r, "pageID"), req.Type, at, req.Fields)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commandResponse{Changed: res.Changed, Blocks: layout.Summarize(res.Blocks)})
}

func (a *API) updateBlock(w http.ResponseWriter, r *http.Request) {
	var patch layout.Patch
	if !a.decode(w, r, &patch, false) {
		return
	}
	res, err := a.layouts.Update(r.Context(), chi.URLParam(r, "pageID"), chi.URLParam(r, "blockID"), patch)
	a.command(w, r, res, err)
}

func (a *API) deleteBlock(w http.ResponseWriter, r *http.Request) {
	res, err := a.layouts.Delete(r.Context(), chi.URLParam(r, "pageID"), chi.URLParam(r, "blockID"))
	a.command(w, r, res, err)
}

func (a *API) moveBlock(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	dir, err := layout.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.layouts.Move(r.Context(), chi.URLParam(r, "pageID"), chi.URLParam(r, "blockID"), dir)
	a.command(w, r, res, err)
}

func (a *API) resizeBlock(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	pageID, blockID := chi.URLParam(r, "pageID"), chi.URLParam(r, "blockID")

	var (
		res layout.Result
		err error
	)
	switch {
	case req.Delta != nil && req.Height != nil:
		writeError(w, http.StatusBadRequest, "give either delta or height, not both")
		return
	case req.Height != nil:
		res, err = a.layouts.SetHeight(r.Context(), pageID, blockID, *req.Height)
	case req.Delta != nil:
		res, err = a.layouts.Resize(r.Context(), pageID, blockID, *req.Delta)
	default:
		writeError(w, http.StatusBadRequest, "delta or height is required")
		return
	}
	a.command(w, r, res, err)
}

// ── Selection and drag ─────────────────────────────────────

type selectRequest struct {
	BlockID string `json:"blockId"`
}

type selectResponse struct {
	Selected *layout.Summary `json:"selected"`
}

// selectBlock selects a block; an empty blockId clears the selection.
func (a *API) selectBlock(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	b, err := a.layouts.Select(r.Context(), chi.URLParam(r, "pageID"), req.BlockID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var resp selectResponse
	if b != nil {
		resp.Selected = &layout.Summarize([]domain.Block{b})[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) doubleClick(w http.ResponseWriter, r *http.Request) {
	if err := a.layouts.DoubleClick(r.Context(), chi.URLParam(r, "pageID"), chi.URLParam(r, "blockID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dragRequest struct {
	BlockID string `json:"blockId"`
	Dest    *int   `json:"dest"`
}

type dragResponse struct {
	Drag    builder.DragView `json:"drag"`
	Hint    *layout.Hint     `json:"hint,omitempty"`
	Outcome string           `json:"outcome,omitempty"`
	Blocks  []layout.Summary `json:"blocks,omitempty"`
}

func (a *API) dragState(w http.ResponseWriter, r *http.Request) {
	view, err := a.layouts.Drag(chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dragResponse{Drag: view})
}

func (a *API) startDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.BlockID == "" {
		writeError(w, http.StatusBadRequest, "blockId is required")
		return
	}
	view, err := a.layouts.BeginDrag(r.Context(), chi.URLParam(r, "pageID"), req.BlockID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dragResponse{Drag: view})
}

// updateDrag moves the drop target. A missing dest clears it.
func (a *API) updateDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	pageID := chi.URLParam(r, "pageID")
	hint, err := a.layouts.UpdateDrag(pageID, req.Dest)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view, err := a.layouts.Drag(pageID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dragResponse{Drag: view, Hint: hint})
}

// endDrag drops the block at dest, or cancels the drag when dest is missing.
func (a *API) endDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	pageID := chi.URLParam(r, "pageID")
	outcome, err := a.layouts.EndDrag(pageID, req.Dest)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view, err := a.layouts.Drag(pageID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	blocks, err := a.layouts.Layout(r.Context(), pageID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dragResponse{Drag: view, Outcome: outcome.String(), Blocks: layout.Summarize(blocks)})
}

// ── Products ───────────────────────────────────────────────

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	catalog, err := a.catalog.Snapshot(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (a *API) blockProducts(w http.ResponseWriter, r *http.Request) {
	blocks, err := a.layouts.Layout(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	b, ok := layout.Find(blocks, chi.URLParam(r, "blockID"))
	if !ok {
		a.fail(w, r, layout.ErrBlockNotFound)
		return
	}
	products, err := a.catalog.ProductsFor(r.Context(), b)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// ── Helpers ────────────────────────────────────────────────

func (a *API) command(w http.ResponseWriter, r *http.Request, res layout.Result, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Changed: res.Changed, Blocks: layout.Summarize(res.Blocks)})
}

// decode reads a JSON body into v. An empty body is accepted when optional.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, layout.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, layout.ErrNotResizable),
		errors.Is(err, layout.ErrIndexOutOfRange),
		errors.Is(err, layout.ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.Is(err, layout.ErrUnknownType),
		errors.Is(err, layout.ErrInvalidLayout):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPageNotOpen),
		errors.Is(err, builder.ErrNoDrag),
		errors.Is(err, builder.ErrDragActive),
		errors.Is(err, builder.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
