package pageservice_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/blocktypes"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/pageservice"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/google/uuid"
)

var site = &sites.Site{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000f1"), Name: "main", Host: "localhost", Enabled: true}

const layout = `---
code: default
name: Default
containers:
  - code: content
    name: Main content
---
<title>{{ .Page.Title }}</title><main>{{ index .Containers "content" }}</main>`

type fixture struct {
	ctx       context.Context
	pages     pages.Service
	blocks    blocks.Service
	manager   *manager.Manager
	templates *pageservice.TemplateManager
	services  *pageservice.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := sites.WithSite(context.Background(), site)
	registry := render.NewRegistry()
	if err := blocktypes.Register(registry, blocktypes.Dependencies{}); err != nil {
		t.Fatalf("register blocks: %v", err)
	}
	pageRepo := pages.NewMemoryRepository()
	f := &fixture{
		ctx:       ctx,
		pages:     pages.NewService(pageRepo),
		blocks:    blocks.NewService(blocks.NewMemoryRepository(), blocks.WithSettingsValidator(registry)),
		templates: pageservice.NewTemplateManager("default"),
	}
	f.manager = manager.New(manager.NewEditorStore(pageRepo, f.pages, f.blocks, manager.WithDefaultTemplate("default")))

	if _, err := f.templates.Load(fstest.MapFS{"layouts/default.html": {Data: []byte(layout)}}, "layouts/*.html"); err != nil {
		t.Fatalf("load templates: %v", err)
	}
	output := pageservice.NewHTMLTemplateRenderer(nil)
	if err := output.Install(f.templates); err != nil {
		t.Fatalf("install templates: %v", err)
	}
	f.services = pageservice.NewRegistry("default")
	if err := f.services.Register(pageservice.NewDefaultService(f.templates, render.NewRenderer(registry, render.WithDebug(true)), output)); err != nil {
		t.Fatalf("register service: %v", err)
	}
	return f
}

func (f *fixture) page(t *testing.T, input pages.CreatePageInput, content string) manager.PageSource {
	t.Helper()
	input.SiteID = site.ID
	page, err := f.pages.Create(f.ctx, input)
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if content != "" {
		container, err := f.blocks.CreateContainer(f.ctx, blocks.CreateContainerInput{PageID: page.ID, Name: "content"})
		if err != nil {
			t.Fatalf("create container: %v", err)
		}
		if _, err := f.blocks.Create(f.ctx, blocks.CreateBlockInput{
			PageID: &page.ID, ParentID: &container.ID, Kind: blocks.KindContent, Type: "text",
			Settings: map[string]any{"content": content, "format": "text"},
		}); err != nil {
			t.Fatalf("create text: %v", err)
		}
	}
	source, err := f.manager.GetPageByID(f.ctx, page.ID)
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	f.manager.SetCurrentPage(source)
	return source
}

func TestTemplateManagerLoadsFrontMatter(t *testing.T) {
	templates := pageservice.NewTemplateManager("default")
	if _, err := templates.Get(""); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error without default template, got %v", err)
	}
	loaded, err := templates.Load(fstest.MapFS{
		"layouts/default.html": {Data: []byte(layout)},
		"layouts/wide.html":    {Data: []byte("---\nname: Wide\n---\n<div>wide</div>")},
	}, "layouts/*.html")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected two templates, got %d", len(loaded))
	}
	wide, err := templates.Get("wide")
	if err != nil || wide.Name != "Wide" || wide.Path != "layouts/wide.html" || strings.TrimSpace(wide.Source) != "<div>wide</div>" {
		t.Fatalf("unexpected wide template %+v (%v)", wide, err)
	}
	fallback, err := templates.Get("missing")
	if err != nil || fallback.Code != "default" || len(fallback.Containers) != 1 || fallback.Containers[0].Code != "content" {
		t.Fatalf("expected default template fallback, got %+v (%v)", fallback, err)
	}
}

func TestDefaultServiceRendersTemplateContainers(t *testing.T) {
	f := newFixture(t)
	source := f.page(t, pages.CreatePageInput{Name: "About", Title: "About us", RawHeaders: "X-Frame-Options: DENY"}, "hello")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	if err := f.services.Execute(f.ctx, rec, req, f.manager, source, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>About us</title>") || !strings.Contains(body, "<p>hello</p>") {
		t.Fatalf("unexpected body %q", body)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
}

func TestRegistryRejectsUnknownPageType(t *testing.T) {
	f := newFixture(t)
	source := f.page(t, pages.CreatePageInput{Name: "Feed", Type: "sitemap"}, "")
	err := f.services.Execute(f.ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), f.manager, source, nil)
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestExceptionStrategyRendersErrorPage(t *testing.T) {
	f := newFixture(t)
	strategy := pageservice.NewExceptionStrategy(map[int]string{404: "_page_internal_error_not_found"}, f.services)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	if err := strategy.Handle(f.ctx, rec, req, f.manager, site, http.StatusNotFound, domain.ErrNotFound); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<main>") {
		t.Fatalf("expected error page layout, got %q", rec.Body.String())
	}
	current := f.manager.GetCurrentPage()
	if current == nil || current.Page().RouteName != "_page_internal_error_not_found" {
		t.Fatalf("expected error page to become current")
	}
}

func TestExceptionStrategyWithoutMapping(t *testing.T) {
	f := newFixture(t)
	strategy := pageservice.NewExceptionStrategy(nil, f.services)
	rec := httptest.NewRecorder()
	err := strategy.Handle(f.ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), f.manager, site, http.StatusTeapot, nil)
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected untouched response, got %q", rec.Body.String())
	}
}

func TestExceptionStrategyDebugWritesRawError(t *testing.T) {
	f := newFixture(t)
	strategy := pageservice.NewExceptionStrategy(map[int]string{500: "_page_internal_error_fatal"}, f.services, pageservice.WithDebug(true))
	rec := httptest.NewRecorder()
	cause := errors.New("database unavailable")
	if err := strategy.Handle(f.ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), f.manager, site, http.StatusInternalServerError, cause); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "database unavailable" {
		t.Fatalf("unexpected debug response %d %q", rec.Code, rec.Body.String())
	}
}

func TestHTMLTemplateRendererWritesToEveryOutput(t *testing.T) {
	renderer := pageservice.NewHTMLTemplateRenderer(nil)
	if err := renderer.Add("greet", "<p>{{ . }}</p>"); err != nil {
		t.Fatalf("add: %v", err)
	}
	var a, b bytes.Buffer
	got, err := renderer.Render("greet", "<b>", &a, &b)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<p>&lt;b&gt;</p>" || a.String() != got || b.String() != got {
		t.Fatalf("unexpected output %q %q %q", got, a.String(), b.String())
	}
	if _, err := renderer.Render("absent", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
}
