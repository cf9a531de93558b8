package cache

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// Route names of the cache fulfillment endpoints.
const (
	RouteESI     = "pagecms_cache_esi"
	RouteSSI     = "pagecms_cache_ssi"
	RouteJSSync  = "pagecms_cache_js_sync"
	RouteJSAsync = "pagecms_cache_js_async"
	RouteFlush   = "pagecms_cache_apc"
)

// RoutePaths maps each route to its path below the cache prefix.
var RoutePaths = map[string]string{
	RouteESI:     "/esi",
	RouteSSI:     "/ssi",
	RouteJSSync:  "/js-sync",
	RouteJSAsync: "/js-async",
	RouteFlush:   "/apc",
}

// PrefixURLs generates cache endpoint urls below a fixed prefix. It is the
// generator used when no application router is wired in.
type PrefixURLs struct {
	Prefix string
}

func (p PrefixURLs) Generate(route string, _ map[string]string, query map[string]string) (string, error) {
	path, ok := RoutePaths[route]
	if !ok {
		path = "/" + strings.TrimLeft(route, "/")
	}
	out := strings.TrimRight(p.Prefix, "/") + path
	if len(query) == 0 {
		return out, nil
	}
	values := url.Values{}
	for name, value := range query {
		values.Set(name, value)
	}
	return out + "?" + values.Encode(), nil
}

// fragmentURL builds the signed url serving keys through route.
func fragmentURL(generator interfaces.URLGenerator, signer *Signer, route string, keys Keys) (string, error) {
	query := StringKeys(keys)
	if token := signer.Sign(keys); token != "" {
		query["token"] = token
	}
	return generator.Generate(route, nil, query)
}
