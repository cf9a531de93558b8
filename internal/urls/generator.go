package urls

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-pagecms/internal/cache"
	urlkit "github.com/goliatone/go-urlkit"
)

// GroupName is the urlkit group holding every pagecms route.
const GroupName = "pagecms"

// RoutePage is the catch all route of pure CMS pages.
const RoutePage = "page_slug"

var ErrRouteUnknown = errors.New("urls: route not registered")

// Options configures the generator.
type Options struct {
	// BaseURL is prepended to every generated url. Empty keeps urls relative.
	BaseURL string
	// CachePrefix mounts the cache fulfillment routes.
	CachePrefix string
	// Routes adds application routes, name to urlkit path pattern.
	Routes map[string]string
}

// Generator builds urls for named routes with go-urlkit.
type Generator struct {
	manager *urlkit.RouteManager
	group   *urlkit.Group
	names   map[string]struct{}
}

func NewGenerator(opts Options) (*Generator, error) {
	prefix := "/" + strings.Trim(strings.TrimSpace(opts.CachePrefix), "/")
	if prefix == "/" {
		prefix = "/_cache"
	}
	paths := map[string]string{RoutePage: "/:path"}
	for name, path := range cache.RoutePaths {
		paths[name] = prefix + path
	}
	for name, path := range opts.Routes {
		paths[name] = path
	}
	manager := urlkit.NewRouteManager(&urlkit.Config{
		Groups: []urlkit.GroupConfig{{
			Name:    GroupName,
			BaseURL: strings.TrimRight(opts.BaseURL, "/"),
			Paths:   paths,
		}},
	})
	g := &Generator{manager: manager, names: make(map[string]struct{}, len(paths))}
	for name := range paths {
		g.names[name] = struct{}{}
	}
	group, err := g.lookupGroup()
	if err != nil {
		return nil, err
	}
	g.group = group
	return g, nil
}

// Generate satisfies interfaces.URLGenerator.
func (g *Generator) Generate(route string, params, query map[string]string) (string, error) {
	if _, ok := g.names[route]; !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteUnknown, route)
	}
	builder, err := g.builder(route)
	if err != nil {
		return "", err
	}
	for key, value := range params {
		builder.WithParam(key, value)
	}
	for key, value := range query {
		builder.WithQuery(key, value)
	}
	return builder.Build()
}

// Page builds the url of a CMS page path.
func (g *Generator) Page(path string) (string, error) {
	return g.Generate(RoutePage, map[string]string{"path": strings.TrimLeft(path, "/")}, nil)
}

func (g *Generator) lookupGroup() (group *urlkit.Group, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("urls: route group %q not found", GroupName)
		}
	}()
	return g.manager.Group(GroupName), nil
}

func (g *Generator) builder(route string) (builder *urlkit.Builder, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s", ErrRouteUnknown, route)
		}
	}()
	return g.group.Builder(route), nil
}
