package manager

import (
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
)

// HeaderDecorable lets a handler opt its response out of decoration with
// the value "0".
const HeaderDecorable = "X-Pagecms-Decorable"

// DecoratorConfig lists routes and uris that are never decorated.
type DecoratorConfig struct {
	IgnoreRoutes        []string
	IgnoreRoutePatterns []string
	IgnoreURIPatterns   []string
}

// DecoratorConfigFrom adapts the runtime decoration settings.
func DecoratorConfigFrom(cfg runtimeconfig.DecorationConfig) DecoratorConfig {
	return DecoratorConfig{
		IgnoreRoutes:        cfg.IgnoreRoutes,
		IgnoreRoutePatterns: cfg.IgnoreRoutePatterns,
		IgnoreURIPatterns:   cfg.IgnoreURIPatterns,
	}
}

// DecorationRequest describes the request/response pair being filtered.
type DecorationRequest struct {
	SubRequest     bool
	Status         int
	RouteName      string
	URI            string
	RequestHeader  http.Header
	ResponseHeader http.Header
}

// Decorator decides whether the page layout wraps a response.
type Decorator struct {
	ignoreRoutes  []string
	routePatterns []*regexp.Regexp
	uriPatterns   []*regexp.Regexp
}

// NewDecorator compiles the ignore patterns. Patterns that do not compile
// are skipped; runtimeconfig.Validate rejects them earlier.
func NewDecorator(cfg DecoratorConfig) *Decorator {
	return &Decorator{
		ignoreRoutes:  slices.Clone(cfg.IgnoreRoutes),
		routePatterns: compileAll(cfg.IgnoreRoutePatterns),
		uriPatterns:   compileAll(cfg.IgnoreURIPatterns),
	}
}

func (d *Decorator) IsDecorable(req DecorationRequest) bool {
	if req.SubRequest {
		return false
	}
	status := req.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		return false
	}
	if req.RequestHeader.Get("X-Requested-With") == "XMLHttpRequest" {
		return false
	}
	contentType := req.ResponseHeader.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		return false
	}
	if req.ResponseHeader.Get(HeaderDecorable) == "0" {
		return false
	}
	if !d.IsRouteNameDecorable(req.RouteName) {
		return false
	}
	return d.IsRouteURIDecorable(req.URI)
}

// IsRouteNameDecorable rejects empty names, names starting with an
// underscore and ignored routes.
func (d *Decorator) IsRouteNameDecorable(name string) bool {
	if name == "" || strings.HasPrefix(name, "_") {
		return false
	}
	if slices.Contains(d.ignoreRoutes, name) {
		return false
	}
	for _, pattern := range d.routePatterns {
		if pattern.MatchString(name) {
			return false
		}
	}
	return true
}

func (d *Decorator) IsRouteURIDecorable(uri string) bool {
	for _, pattern := range d.uriPatterns {
		if pattern.MatchString(uri) {
			return false
		}
	}
	return true
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		out = append(out, compiled)
	}
	return out
}
