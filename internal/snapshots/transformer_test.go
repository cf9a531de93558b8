package snapshots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
)

var (
	testSite  = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	testPage  = uuid.MustParse("00000000-0000-0000-0000-0000000000f2")
	testClock = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
)

func samplePage() *pages.Page {
	parent := uuid.MustParse("00000000-0000-0000-0000-0000000000f3")
	return &pages.Page{
		ID:            testPage,
		SiteID:        testSite,
		ParentID:      &parent,
		RouteName:     pages.RouteCMS,
		PageAlias:     "_about",
		Name:          "About",
		Title:         "About us",
		Slug:          "about",
		URL:           "/about",
		RequestMethod: "GET|POST",
		Type:          "default",
		TemplateCode:  "two_columns",
		Position:      3,
		Enabled:       true,
		Decorate:      false,
		RawHeaders:    "X-Test: 1",
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func sampleForest() []*blocks.Block {
	page := testPage
	header := uuid.MustParse("00000000-0000-0000-0000-000000000a01")
	body := uuid.MustParse("00000000-0000-0000-0000-000000000a02")
	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	return []*blocks.Block{
		{
			ID: header, PageID: &page, Kind: blocks.KindContainer, Type: blocks.TypeContainer, Name: "header",
			Position: 1, Enabled: true, Settings: map[string]any{"name": "header"}, CreatedAt: at, UpdatedAt: at,
			Children: []*blocks.Block{
				{ID: uuid.MustParse("00000000-0000-0000-0000-000000000a11"), PageID: &page, ParentID: &header, Kind: blocks.KindContent, Type: "text", Position: 1, Enabled: true, Settings: map[string]any{"content": "hello"}, CreatedAt: at, UpdatedAt: at},
				{ID: uuid.MustParse("00000000-0000-0000-0000-000000000a12"), PageID: &page, ParentID: &header, Kind: blocks.KindContent, Type: "rss", Position: 2, Enabled: false, Settings: map[string]any{"url": "https://example.com/feed"}, CreatedAt: at, UpdatedAt: at},
			},
		},
		{
			ID: body, PageID: &page, Kind: blocks.KindContainer, Type: blocks.TypeContainer, Name: "body",
			Position: 2, Enabled: true, Settings: map[string]any{"name": "body"}, CreatedAt: at, UpdatedAt: at,
			Children: []*blocks.Block{
				{ID: uuid.MustParse("00000000-0000-0000-0000-000000000a21"), PageID: &page, ParentID: &body, Kind: blocks.KindSharedReference, Type: blocks.TypeShared, Position: 1, Enabled: true, Settings: map[string]any{"block_id": "00000000-0000-0000-0000-000000000b01"}, CreatedAt: at, UpdatedAt: at},
			},
		},
	}
}

func TestRoundTripPreservesPageAndTreeForEveryCodec(t *testing.T) {
	for _, codec := range []Codec{TypedCodec{}, MapCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			transformer := NewTransformer(codec, WithTransformerClock(func() time.Time { return testClock }))
			original := samplePage()
			forest := sampleForest()

			snapshot, err := transformer.Create(original, forest)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			proxy, err := transformer.Load(snapshot)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			got := proxy.Page()
			if got.ID != original.ID || got.SiteID != original.SiteID || *got.ParentID != *original.ParentID {
				t.Fatalf("identity mismatch: %+v", got)
			}
			if got.Name != original.Name || got.Title != original.Title || got.URL != original.URL ||
				got.Slug != original.Slug || got.RouteName != original.RouteName || got.PageAlias != original.PageAlias ||
				got.RequestMethod != original.RequestMethod || got.TemplateCode != original.TemplateCode ||
				got.Type != original.Type || got.RawHeaders != original.RawHeaders {
				t.Fatalf("string fields mismatch: %+v", got)
			}
			if got.Position != original.Position || got.Enabled != original.Enabled || got.Decorate != original.Decorate {
				t.Fatalf("scalar fields mismatch: %+v", got)
			}
			if !got.CreatedAt.Equal(original.CreatedAt) || !got.UpdatedAt.Equal(original.UpdatedAt) {
				t.Fatalf("timestamps mismatch: %v %v", got.CreatedAt, got.UpdatedAt)
			}
			if got.TargetID != nil {
				t.Fatalf("expected nil target, got %v", got.TargetID)
			}

			if proxy.Loaded() {
				t.Fatalf("expected blocks to be decoded lazily")
			}
			tree, err := proxy.Blocks(context.Background())
			if err != nil {
				t.Fatalf("blocks: %v", err)
			}
			assertSameForest(t, forest, tree.Roots)
			if tree.Len() != 5 {
				t.Fatalf("expected five indexed blocks, got %d", tree.Len())
			}
			again, _ := proxy.Blocks(context.Background())
			if again != tree {
				t.Fatalf("expected decoded tree to be reused")
			}
		})
	}
}

func assertSameForest(t *testing.T, want, got []*blocks.Block) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.ID != g.ID || w.Name != g.Name || w.Type != g.Type || w.Kind != g.Kind || w.Position != g.Position || w.Enabled != g.Enabled {
			t.Fatalf("block %s mismatch: want %+v got %+v", w.ID, w, g)
		}
		if (w.ParentID == nil) != (g.ParentID == nil) || (w.ParentID != nil && *w.ParentID != *g.ParentID) {
			t.Fatalf("block %s parent mismatch", w.ID)
		}
		if g.PageID == nil || *g.PageID != testPage {
			t.Fatalf("block %s lost its page", w.ID)
		}
		if !w.UpdatedAt.Equal(g.UpdatedAt) {
			t.Fatalf("block %s updated_at mismatch", w.ID)
		}
		assertSameForest(t, w.Children, g.Children)
	}
}

func TestCreateWithoutSiteIsInternalError(t *testing.T) {
	page := samplePage()
	page.SiteID = uuid.Nil
	_, err := NewTransformer(nil).Create(page, nil)
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	transformer := NewTransformer(TypedCodec{})
	cases := map[string]string{
		"empty":           ``,
		"not json":        `{"id":`,
		"missing blocks":  `{"id":"00000000-0000-0000-0000-0000000000f2","name":"x","created_at":1,"updated_at":1}`,
		"block sans type": `{"id":"00000000-0000-0000-0000-0000000000f2","name":"x","created_at":1,"updated_at":1,"blocks":[{"id":"a","position":1}]}`,
		"bad id":          `{"id":"nope","name":"x","created_at":1,"updated_at":1,"blocks":[]}`,
		"ambiguous flag":  `{"id":"00000000-0000-0000-0000-0000000000f2","name":"x","created_at":1,"updated_at":1,"enabled":"yes","blocks":[]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			proxy, err := transformer.Load(&Snapshot{Content: content})
			if !errors.Is(err, ErrDocumentInvalid) {
				t.Fatalf("expected ErrDocumentInvalid, got %v", err)
			}
			if proxy != nil {
				t.Fatalf("expected no partial page")
			}
		})
	}
}

func TestDecoderToleratesMixedRepresentations(t *testing.T) {
	content := `{
		"id": "00000000-0000-0000-0000-0000000000f2",
		"name": 404,
		"position": "7",
		"enabled": "",
		"decorate": 1,
		"parent_id": "",
		"created_at": "2024-01-02T03:04:05Z",
		"updated_at": 1704164645,
		"blocks": [
			{"id": "00000000-0000-0000-0000-000000000a01", "type": "container", "position": 1.0, "enabled": "true", "settings": {"name": "main"}, "blocks": null},
			{"id": "00000000-0000-0000-0000-000000000a02", "type": "text", "position": "0", "enabled": 0, "settings": []}
		]
	}`
	proxy, err := NewTransformer(nil).Load(&Snapshot{SiteID: testSite, Content: content})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	page := proxy.Page()
	if page.Name != "404" || page.Position != 7 || page.Enabled || !page.Decorate || page.ParentID != nil {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.SiteID != testSite {
		t.Fatalf("expected site from snapshot row")
	}
	if !page.CreatedAt.Equal(page.UpdatedAt) {
		t.Fatalf("expected RFC3339 and unix timestamps to agree: %v vs %v", page.CreatedAt, page.UpdatedAt)
	}
	tree, err := proxy.Blocks(context.Background())
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	if len(tree.Roots) != 2 || tree.Roots[0].Position != 0 {
		t.Fatalf("expected sorted roots, got %+v", tree.Roots)
	}
	main, ok := tree.Container("main")
	if !ok || !main.Enabled {
		t.Fatalf("expected legacy named top level block to load as container")
	}
	if tree.Roots[0].Kind != blocks.KindContent || len(tree.Roots[0].Settings) != 0 {
		t.Fatalf("unexpected content block %+v", tree.Roots[0])
	}
}

func TestBlocksErrorSurfacesLazily(t *testing.T) {
	content := `{"id":"00000000-0000-0000-0000-0000000000f2","name":"x","created_at":1,"updated_at":1,
		"blocks":[{"id":"00000000-0000-0000-0000-000000000a01","type":"text","position":"two"}]}`
	proxy, err := NewTransformer(nil).Load(&Snapshot{Content: content})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tree, err := proxy.Blocks(context.Background())
	if !errors.Is(err, ErrDocumentInvalid) || tree != nil {
		t.Fatalf("expected structural error without partial tree, got %v", err)
	}
}

func TestCodecFor(t *testing.T) {
	if codec, err := CodecFor("map"); err != nil || codec.Name() != "map" {
		t.Fatalf("expected map codec, got %v %v", codec, err)
	}
	if _, err := CodecFor("xml"); !errors.Is(err, ErrCodecUnknown) {
		t.Fatalf("expected ErrCodecUnknown, got %v", err)
	}
}
