package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pageservice"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// PageHandler serves CMS pages addressed by url.
type PageHandler struct {
	resolver   sites.Resolver
	selector   *manager.Selector
	services   *pageservice.Registry
	exceptions *pageservice.ExceptionStrategy
	logger     interfaces.Logger
}

type PageHandlerOption func(*PageHandler)

func WithPageLogger(logger interfaces.Logger) PageHandlerOption {
	return func(h *PageHandler) {
		h.logger = logging.Ensure(logger)
	}
}

func NewPageHandler(resolver sites.Resolver, selector *manager.Selector, services *pageservice.Registry, exceptions *pageservice.ExceptionStrategy, opts ...PageHandlerOption) *PageHandler {
	h := &PageHandler{
		resolver:   resolver,
		selector:   selector,
		services:   services,
		exceptions: exceptions,
		logger:     logging.NoOp(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, path, ok := h.site(w, r)
	if !ok {
		return
	}
	ctx = sites.WithSite(ctx, site)
	m := requestManager(ctx, h.selector)

	source, err := m.GetPageByURL(ctx, site.ID, path)
	if err != nil {
		h.handleError(ctx, w, r, m, site, err)
		return
	}
	page := source.Page()
	if page.TargetID != nil {
		target, err := m.GetPageByID(ctx, *page.TargetID)
		if err != nil {
			h.handleError(ctx, w, r, m, site, err)
			return
		}
		http.Redirect(w, r, site.Path()+target.Page().URL, http.StatusFound)
		return
	}
	if !page.Enabled && m.Mode() != manager.ModeEditor {
		h.handleError(ctx, w, r, m, site, &manager.NotFoundError{Resource: "page", Key: path})
		return
	}
	if !page.AllowsMethod(r.Method) {
		w.Header().Set("Allow", strings.ReplaceAll(page.RequestMethod, "|", ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	m.SetCurrentPage(source)
	if err := h.services.Execute(ctx, w, r.WithContext(ctx), m, source, nil); err != nil {
		h.handleError(ctx, w, r, m, site, err)
	}
}

// site resolves the request site and answers redirects and misses itself.
func (h *PageHandler) site(w http.ResponseWriter, r *http.Request) (*sites.Site, string, bool) {
	if site, ok := sites.FromContext(r.Context()); ok {
		return site, pagePath(r.URL.Path, site), true
	}
	res, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return nil, "", false
	}
	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return nil, "", false
	}
	return res.Site, normalizePath(res.PathInfo), true
}

func (h *PageHandler) handleError(ctx context.Context, w http.ResponseWriter, r *http.Request, m *manager.Manager, site *sites.Site, err error) {
	status := statusFor(err)
	logger := logging.ForContext(h.logger, ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("http.page.failed", "path", r.URL.Path, "error", err)
	} else {
		logger.Debug("http.page.not_served", "path", r.URL.Path, "status", status, "error", err)
	}
	if h.exceptions == nil {
		writeError(w, err)
		return
	}
	if handleErr := h.exceptions.Handle(ctx, w, r, m, site, status, err); handleErr != nil {
		if !errors.Is(handleErr, domain.ErrInternal) {
			logger.Warn("http.page.error_page_failed", "status", status, "error", handleErr)
		}
		writeError(w, err)
	}
}

// requestManager returns the manager stored by the selector middleware, or
// a fresh one when the middleware is not mounted.
func requestManager(ctx context.Context, selector *manager.Selector) *manager.Manager {
	if m, ok := manager.FromContext(ctx); ok {
		return m
	}
	return selector.Retrieve(ctx)
}

func pagePath(path string, site *sites.Site) string {
	return normalizePath(strings.TrimPrefix(path, site.Path()))
}

func normalizePath(path string) string {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
