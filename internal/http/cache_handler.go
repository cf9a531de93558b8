package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const tokenParam = "token"

// CacheHandler serves the fragments referenced by the ESI, SSI and JS cache
// backends, and the memory cache flush endpoint.
type CacheHandler struct {
	selector *manager.Selector
	renderer *render.Renderer
	router   *cache.Router
	signer   *cache.Signer
	public   bool
	limiter  *rate.Limiter
	logger   interfaces.Logger
}

type CacheHandlerOption func(*CacheHandler)

// WithPublicFragments serves fragments with a public Cache-Control.
func WithPublicFragments(public bool) CacheHandlerOption {
	return func(h *CacheHandler) {
		h.public = public
	}
}

// WithFlushLimit limits flush requests to rps with burst.
func WithFlushLimit(rps float64, burst int) CacheHandlerOption {
	return func(h *CacheHandler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCacheLogger(logger interfaces.Logger) CacheHandlerOption {
	return func(h *CacheHandler) {
		h.logger = logging.Ensure(logger)
	}
}

func NewCacheHandler(selector *manager.Selector, renderer *render.Renderer, router *cache.Router, signer *cache.Signer, opts ...CacheHandlerOption) *CacheHandler {
	if signer == nil {
		signer = cache.NewSigner("")
	}
	h := &CacheHandler{
		selector: selector,
		renderer: renderer,
		router:   router,
		signer:   signer,
		limiter:  rate.NewLimiter(rate.Limit(1), 5),
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the endpoints on r, relative to the cache prefix.
func (h *CacheHandler) Routes(r chi.Router) {
	r.Get(cache.RoutePaths[cache.RouteESI], h.fragment(false))
	r.Get(cache.RoutePaths[cache.RouteSSI], h.fragment(true))
	for _, route := range []string{cache.RouteJSSync, cache.RouteJSAsync} {
		handler := h.script(route == cache.RouteJSAsync)
		r.Get(cache.RoutePaths[route], handler)
		r.Post(cache.RoutePaths[route], handler)
	}
	r.Get(cache.RoutePaths[cache.RouteFlush], h.flush)
	r.Post(cache.RoutePaths[cache.RouteFlush], h.flush)
}

// fragment serves ESI and SSI includes. SSI always requires a token.
func (h *CacheHandler) fragment(tokenRequired bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenRequired && !h.signer.Enabled() {
			writeError(w, fmt.Errorf("%w: no cache token configured", ErrTokenInvalid))
			return
		}
		keys, content, err := h.render(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeHeaders(w, keys)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(content))
	}
}

func (h *CacheHandler) script(async bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, content, err := h.render(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeHeaders(w, keys)
		if async {
			writeJSON(w, http.StatusOK, map[string]string{
				"id":      cache.PlaceholderID(fmt.Sprint(keys[cache.KeyBlockID])),
				"content": content,
			})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(content))
	}
}

// flush clears the local memory backend. Peers call it after a FlushAll.
func (h *CacheHandler) flush(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, ErrRateLimited)
		return
	}
	if !h.signer.MatchesSecret(r.FormValue(tokenParam)) {
		writeError(w, ErrTokenInvalid)
		return
	}
	memory, ok := h.router.Memory()
	if ok {
		memory.FlushLocal()
	}
	logging.ForContext(h.logger, r.Context()).Info("http.cache.flushed", "memory", ok)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// render validates the request keys and token, then renders the block
// without consulting any cache.
func (h *CacheHandler) render(r *http.Request) (cache.Keys, string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	keys := cache.Keys{}
	for name, values := range r.Form {
		if name == tokenParam || len(values) == 0 {
			continue
		}
		keys[name] = values[0]
	}
	if err := cache.ValidateKeys(keys); err != nil {
		return nil, "", err
	}
	if !h.signer.Verify(keys, r.Form.Get(tokenParam)) {
		return nil, "", ErrTokenInvalid
	}

	ctx := r.Context()
	m, err := h.selector.ByName(fmt.Sprint(keys[cache.KeyManager]))
	if err != nil {
		return nil, "", err
	}
	ctx = manager.WithManager(manager.WithMode(ctx, m.Mode()), m)

	pageID, err := uuid.Parse(fmt.Sprint(keys[cache.KeyPageID]))
	if err != nil {
		return nil, "", fmt.Errorf("%w: page_id: %v", ErrBadRequest, err)
	}
	blockID, err := uuid.Parse(fmt.Sprint(keys[cache.KeyBlockID]))
	if err != nil {
		return nil, "", fmt.Errorf("%w: block_id: %v", ErrBadRequest, err)
	}
	source, err := m.GetPageByID(ctx, pageID)
	if err != nil {
		return nil, "", err
	}
	m.SetCurrentPage(source)
	block, err := findBlock(ctx, m, source, blockID)
	if err != nil {
		return nil, "", err
	}
	content, err := h.renderer.RenderFragment(ctx, m, block)
	if err != nil {
		return nil, "", err
	}
	return keys, content, nil
}

func findBlock(ctx context.Context, m *manager.Manager, source manager.PageSource, id uuid.UUID) (*blocks.Block, error) {
	tree, err := m.Blocks(ctx, source)
	if err != nil {
		return nil, err
	}
	if block, ok := tree.Get(id); ok {
		return block, nil
	}
	return m.GetBlock(ctx, id)
}

func (h *CacheHandler) writeHeaders(w http.ResponseWriter, keys cache.Keys) {
	header := w.Header()
	for name, value := range cache.StringKeys(keys) {
		header.Set(cache.HeaderName(name), value)
	}
	if h.public {
		header.Set("Cache-Control", "public")
	} else {
		header.Set("Cache-Control", "private")
	}
}

func (h *CacheHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.ForContext(h.logger, r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("http.cache.fragment_failed", "path", r.URL.Path, "error", err)
	} else {
		logger.Debug("http.cache.fragment_rejected", "path", r.URL.Path, "status", status, "error", strings.TrimSpace(err.Error()))
	}
	writeError(w, err)
}
