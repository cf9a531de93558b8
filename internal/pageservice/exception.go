package pageservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// ExceptionStrategy turns an error status into the matching internal error
// page of the current site.
type ExceptionStrategy struct {
	routes   map[int]string
	services *Registry
	debug    bool
	logger   interfaces.Logger
}

type ExceptionOption func(*ExceptionStrategy)

// WithDebug writes raw errors instead of error pages.
func WithDebug(debug bool) ExceptionOption {
	return func(s *ExceptionStrategy) {
		s.debug = debug
	}
}

func WithExceptionLogger(logger interfaces.Logger) ExceptionOption {
	return func(s *ExceptionStrategy) {
		s.logger = logging.Ensure(logger)
	}
}

func NewExceptionStrategy(routes map[int]string, services *Registry, opts ...ExceptionOption) *ExceptionStrategy {
	s := &ExceptionStrategy{routes: map[int]string{}, services: services, logger: logging.NoOp()}
	for status, route := range routes {
		s.routes[status] = route
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Statuses lists the statuses with an error page.
func (s *ExceptionStrategy) Statuses() []int {
	out := make([]int, 0, len(s.routes))
	for status := range s.routes {
		out = append(out, status)
	}
	sort.Ints(out)
	return out
}

// Routes returns the internal route of every status.
func (s *ExceptionStrategy) Routes() map[int]string {
	out := make(map[int]string, len(s.routes))
	for status, route := range s.routes {
		out[status] = route
	}
	return out
}

// Route returns the internal route for status.
func (s *ExceptionStrategy) Route(status int) (string, bool) {
	route, ok := s.routes[status]
	return route, ok
}

// Handle renders the error page for status. A status without an error page,
// or an error page that cannot be loaded, is returned as an error and the
// response is left untouched.
func (s *ExceptionStrategy) Handle(ctx context.Context, w http.ResponseWriter, r *http.Request, m *manager.Manager, site *sites.Site, status int, cause error) error {
	logger := logging.ForContext(s.logger, ctx)
	if s.debug {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		message := http.StatusText(status)
		if cause != nil {
			message = cause.Error()
		}
		_, _ = io.WriteString(w, message)
		return nil
	}
	route, ok := s.routes[status]
	if !ok {
		return domain.NewInternalError(fmt.Sprintf("no error page configured for status %d", status))
	}
	if site == nil {
		return domain.NewInternalError("error page requested without a site")
	}
	if !strings.HasPrefix(route, pages.InternalRoutePrefix) {
		return domain.NewInternalError(fmt.Sprintf("error page route %q is not internal", route))
	}
	source, err := m.GetInternalPage(ctx, site.ID, route)
	if err != nil {
		return fmt.Errorf("error page %s: %w", route, err)
	}
	m.SetCurrentPage(source)
	logger.Info("pageservice.exception.rendered", "status", status, "route", route, "error", cause)
	return s.services.Execute(ctx, &statusWriter{ResponseWriter: w, status: status}, r, m, source, map[string]any{"status": status})
}

// statusWriter sends status with the first header write.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusOK {
		code = w.status
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}
