package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pageservice"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// HeaderSubRequest marks internal sub requests, which are never decorated.
const HeaderSubRequest = "X-Pagecms-Sub-Request"

// ContentParam is the page service param holding the decorated response.
const ContentParam = "content"

// Decoration wraps application responses in the layout of their hybrid page.
type Decoration struct {
	selector *manager.Selector
	services *pageservice.Registry
	logger   interfaces.Logger
}

func NewDecoration(selector *manager.Selector, services *pageservice.Registry, logger interfaces.Logger) *Decoration {
	return &Decoration{selector: selector, services: services, logger: logging.Ensure(logger)}
}

// Decorate buffers the response of the route named route and, when it is
// decorable, renders the route page around it. Editors get the route page
// created on first visit.
func (d *Decoration) Decorate(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			m := requestManager(ctx, d.selector)
			site, ok := sites.FromContext(ctx)
			if !ok || !m.IsRouteNameDecorable(route) || !m.IsRouteURIDecorable(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			buffered := newBufferedWriter()
			next.ServeHTTP(buffered, r)

			decorable := m.IsDecorable(manager.DecorationRequest{
				SubRequest:     r.Header.Get(HeaderSubRequest) != "",
				Status:         buffered.status,
				RouteName:      route,
				URI:            r.URL.Path,
				RequestHeader:  r.Header,
				ResponseHeader: buffered.header,
			})
			if !decorable {
				buffered.flushTo(w)
				return
			}

			logger := logging.ForContext(d.logger, ctx)
			source, err := m.GetPageByRouteName(ctx, site.ID, route, true)
			if err != nil {
				logger.Debug("http.decorate.page_missing", "route", route, "error", err)
				buffered.flushTo(w)
				return
			}
			if !source.Page().Decorate {
				buffered.flushTo(w)
				return
			}

			m.SetCurrentPage(source)
			out := newBufferedWriter()
			params := map[string]any{ContentParam: template.HTML(buffered.body.String())}
			if err := d.services.Execute(ctx, out, r, m, source, params); err != nil {
				logger.Warn("http.decorate.failed", "route", route, "page_id", source.Page().ID, "error", err)
				buffered.flushTo(w)
				return
			}
			for name, values := range buffered.header {
				if name == "Content-Length" {
					continue
				}
				w.Header()[name] = values
			}
			for name, values := range out.header {
				w.Header()[name] = values
			}
			w.Header().Set("Content-Length", strconv.Itoa(out.body.Len()))
			w.WriteHeader(buffered.status)
			_, _ = w.Write(out.body.Bytes())
		})
	}
}

// bufferedWriter captures a response so it can be inspected and rewritten.
type bufferedWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: http.Header{}, status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = status
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
