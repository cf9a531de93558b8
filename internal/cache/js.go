package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/spf13/cast"
)

// JSBackend lets the browser fetch each block. Get returns a placeholder
// element and a script that loads the fragment from a fulfillment endpoint.
type JSBackend struct {
	opts   options
	sync   bool
	urls   interfaces.URLGenerator
	signer *Signer
}

func NewJSBackend(sync bool, urls interfaces.URLGenerator, signer *Signer, opts ...Option) *JSBackend {
	if urls == nil {
		urls = PrefixURLs{Prefix: "/_cache"}
	}
	return &JSBackend{opts: newOptions(opts), sync: sync, urls: urls, signer: signer}
}

func (b *JSBackend) Name() string {
	if b.sync {
		return "js_sync"
	}
	return "js_async"
}

func (b *JSBackend) Get(_ context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	route := RouteJSAsync
	if b.sync {
		route = RouteJSSync
	}
	src, err := fragmentURL(b.urls, b.signer, route, keys)
	if err != nil {
		return nil, fmt.Errorf("cache js: fragment url: %w", err)
	}
	id := PlaceholderID(cast.ToString(keys[KeyBlockID]))
	var snippet string
	if b.sync {
		snippet, err = syncSnippet(id, src)
	} else {
		snippet, err = asyncSnippet(id, src)
	}
	if err != nil {
		return nil, err
	}
	return newElement(keys, snippet, 0, nil, b.opts.now()), nil
}

func (b *JSBackend) Set(_ context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	return newElement(keys, value, ttl, contextual, b.opts.now()), nil
}

func (b *JSBackend) Has(_ context.Context, keys Keys) (bool, error) {
	if err := ValidateKeys(keys); err != nil {
		return false, err
	}
	return true, nil
}

func (*JSBackend) Flush(context.Context, Keys) (bool, error) { return true, nil }

func (*JSBackend) FlushAll(context.Context) (bool, error) { return true, nil }

func (*JSBackend) IsContextual() bool { return false }

// PlaceholderID is the DOM id replaced by the fetched block.
func PlaceholderID(blockID string) string {
	return "block-cms-" + strings.NewReplacer(" ", "-", `"`, "", "<", "", ">", "").Replace(blockID)
}

func syncSnippet(id, src string) (string, error) {
	idJS, srcJS, err := jsStrings(id, src)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<div id="%s"></div>
<script>
(function () {
  var block = document.getElementById(%s);
  var xhr = new XMLHttpRequest();
  xhr.open("GET", %s, false);
  xhr.send(null);
  if (xhr.status === 200) {
    var holder = document.createElement("div");
    holder.innerHTML = xhr.responseText;
    block.replaceWith.apply(block, holder.childNodes);
  }
})();
</script>`, id, idJS, srcJS), nil
}

func asyncSnippet(id, src string) (string, error) {
	idJS, srcJS, err := jsStrings(id, src)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<div id="%s"></div>
<script>
(function () {
  var xhr = new XMLHttpRequest();
  xhr.open("GET", %s, true);
  xhr.onreadystatechange = function () {
    if (xhr.readyState !== 4 || xhr.status !== 200) {
      return;
    }
    var data = JSON.parse(xhr.responseText);
    var block = document.getElementById(data.id || %s);
    if (!block) {
      return;
    }
    var holder = document.createElement("div");
    holder.innerHTML = data.content;
    block.replaceWith.apply(block, holder.childNodes);
  };
  xhr.send(null);
})();
</script>`, id, srcJS, idJS), nil
}

func jsStrings(id, src string) (string, string, error) {
	idJS, err := json.Marshal(id)
	if err != nil {
		return "", "", err
	}
	srcJS, err := json.Marshal(src)
	if err != nil {
		return "", "", err
	}
	return string(idJS), string(srcJS), nil
}
