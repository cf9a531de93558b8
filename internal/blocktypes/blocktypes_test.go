package blocktypes_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/blocktypes"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/google/uuid"
)

var siteID = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")

type stubTemplates struct{}

func (stubTemplates) Render(name string, data any, out ...io.Writer) (string, error) {
	params, _ := data.(map[string]any)["params"].(map[string]any)
	rendered := fmt.Sprintf("[%s:%v]", name, params["greeting"])
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

type env struct {
	t         *testing.T
	ctx       context.Context
	blocks    blocks.Service
	page      *pages.Page
	container *blocks.Block
	pageRepo  *pages.MemoryRepository
	pages     pages.Service
	registry  *render.Registry
}

func newEnv(t *testing.T, deps blocktypes.Dependencies) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{t: t, ctx: ctx, pageRepo: pages.NewMemoryRepository(), registry: render.NewRegistry()}
	if err := blocktypes.Register(e.registry, deps); err != nil {
		t.Fatalf("register: %v", err)
	}
	e.pages = pages.NewService(e.pageRepo)
	e.blocks = blocks.NewService(blocks.NewMemoryRepository(), blocks.WithSettingsValidator(e.registry))
	page, err := e.pages.Create(ctx, pages.CreatePageInput{SiteID: siteID, Name: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	e.page = page
	e.container, err = e.blocks.CreateContainer(ctx, blocks.CreateContainerInput{PageID: page.ID, Name: "content"})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	return e
}

func (e *env) add(blockType string, settings map[string]any) *blocks.Block {
	e.t.Helper()
	block, err := e.blocks.Create(e.ctx, blocks.CreateBlockInput{
		PageID: &e.page.ID, ParentID: &e.container.ID, Kind: blocks.KindContent, Type: blockType, Settings: settings,
	})
	if err != nil {
		e.t.Fatalf("create %s: %v", blockType, err)
	}
	return block
}

func (e *env) render(debug bool) string {
	e.t.Helper()
	m := manager.New(manager.NewEditorStore(e.pageRepo, e.pages, e.blocks))
	source, err := m.GetPageByID(e.ctx, e.page.ID)
	if err != nil {
		e.t.Fatalf("load page: %v", err)
	}
	m.SetCurrentPage(source)
	var out bytes.Buffer
	if err := render.NewRenderer(e.registry, render.WithDebug(debug)).RenderContainer(e.ctx, m, source, "content", &out); err != nil {
		e.t.Fatalf("render: %v", err)
	}
	return out.String()
}

func TestTextRendererFormats(t *testing.T) {
	e := newEnv(t, blocktypes.Dependencies{})
	e.add("text", map[string]any{"content": "# Hello\n\n<script>alert(1)</script>"})
	e.add("text", map[string]any{"content": "<b>bold</b><img src=x onerror=alert(1)>", "format": "html"})
	e.add("text", map[string]any{"content": "1 < 2", "format": "text"})

	out := e.render(true)
	if !strings.Contains(out, "Hello</h1>") {
		t.Fatalf("expected markdown heading in %q", out)
	}
	if strings.Contains(out, "<script>") || strings.Contains(out, "onerror") {
		t.Fatalf("expected unsafe markup to be stripped from %q", out)
	}
	if !strings.Contains(out, "<b>bold</b>") || !strings.Contains(out, "<p>1 &lt; 2</p>") {
		t.Fatalf("unexpected html or text output %q", out)
	}
}

func TestContainerLayout(t *testing.T) {
	e := newEnv(t, blocktypes.Dependencies{})
	if _, err := e.blocks.Update(e.ctx, blocks.UpdateBlockInput{
		ID:       e.container.ID,
		Settings: map[string]any{"name": "content", "layout": "<main>{{ CONTENT }}</main>", "class": "wide"},
	}); err != nil {
		t.Fatalf("update container: %v", err)
	}
	e.add("text", map[string]any{"content": "body", "format": "text"})

	want := `<main><div class="wide" id="cms-block-` + e.container.ID.String() + `"><p>body</p></div></main>`
	if got := e.render(true); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSharedBlockReference(t *testing.T) {
	e := newEnv(t, blocktypes.Dependencies{})
	shared, err := e.blocks.Create(e.ctx, blocks.CreateBlockInput{
		Kind: blocks.KindContent, Type: "text", Settings: map[string]any{"content": "footer", "format": "text"},
	})
	if err != nil {
		t.Fatalf("create shared: %v", err)
	}
	if _, err := e.blocks.Create(e.ctx, blocks.CreateBlockInput{
		PageID: &e.page.ID, ParentID: &e.container.ID, Kind: blocks.KindSharedReference,
		Settings: map[string]any{"block_id": shared.ID.String()},
	}); err != nil {
		t.Fatalf("create reference: %v", err)
	}
	if out := e.render(true); !strings.Contains(out, "<p>footer</p>") {
		t.Fatalf("expected shared content in %q", out)
	}
}

func TestRSSRenderer(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>News</title>
<item><title>One</title><link>https://example.com/1</link></item>
<item><title>Two</title><link>https://example.com/2</link></item>
<item><title>Three</title><link>https://example.com/3</link></item>
</channel></rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, feed)
	}))
	defer server.Close()

	e := newEnv(t, blocktypes.Dependencies{RSSClient: server.Client()})
	e.add("rss", map[string]any{"url": server.URL, "title": "Latest", "limit": 2})

	out := e.render(true)
	if !strings.Contains(out, "<h3>Latest</h3>") || !strings.Contains(out, `<a href="https://example.com/2">Two</a>`) {
		t.Fatalf("unexpected rss output %q", out)
	}
	if strings.Contains(out, "Three") {
		t.Fatalf("expected limit to apply, got %q", out)
	}
}

func TestRSSRendererDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := newEnv(t, blocktypes.Dependencies{RSSClient: server.Client()})
	e.add("rss", map[string]any{"url": server.URL, "title": "Latest"})
	if out := e.render(true); !strings.Contains(out, "<h3>Latest</h3><ul></ul>") {
		t.Fatalf("expected empty feed, got %q", out)
	}
}

func TestTemplateRenderer(t *testing.T) {
	e := newEnv(t, blocktypes.Dependencies{Templates: stubTemplates{}})
	e.add("template", map[string]any{"template": "blocks/hello.html", "params": map[string]any{"greeting": "hi"}})
	if out := e.render(true); !strings.Contains(out, "[blocks/hello.html:hi]") {
		t.Fatalf("unexpected template output %q", out)
	}
}

func TestSettingsValidationOnSave(t *testing.T) {
	e := newEnv(t, blocktypes.Dependencies{})
	_, err := e.blocks.Create(e.ctx, blocks.CreateBlockInput{
		PageID: &e.page.ID, ParentID: &e.container.ID, Kind: blocks.KindContent, Type: "rss",
		Settings: map[string]any{"title": "no url"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if _, err := e.blocks.Create(e.ctx, blocks.CreateBlockInput{
		PageID: &e.page.ID, ParentID: &e.container.ID, Kind: blocks.KindContent, Type: "template",
		Settings: map[string]any{"template": "x"},
	}); !errors.Is(err, render.ErrUnknownBlockType) {
		t.Fatalf("expected template type to be unregistered without a template renderer, got %v", err)
	}
}

func TestSharedBlockCacheKeysCarryTarget(t *testing.T) {
	target := uuid.MustParse("00000000-0000-0000-0000-0000000000f7")
	renderer := blocktypes.NewSharedBlockRenderer()
	keys := renderer.CacheKeys(&render.BlockContext{Settings: map[string]any{"block_id": target.String()}})
	if keys["shared_block_id"] != target.String() {
		t.Fatalf("expected target id in cache keys, got %v", keys)
	}
	if keys := renderer.CacheKeys(&render.BlockContext{Settings: map[string]any{}}); len(keys) != 0 {
		t.Fatalf("expected no extra keys without a reference, got %v", keys)
	}
}
