package snapshots_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/snapshots"
	"github.com/goliatone/go-pagecms/pkg/testsupport"
	"github.com/google/uuid"
)

var siteID = uuid.MustParse("00000000-0000-0000-0000-00000000000b")

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time { return c.now }

func (c *steppingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	clock     *steppingClock
	pages     pages.Service
	blocks    blocks.Service
	repo      snapshots.Repository
	snapshots snapshots.Service
	page      *pages.Page
}

func newFixture(t *testing.T, repo snapshots.Repository) *fixture {
	t.Helper()
	clock := &steppingClock{now: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}
	pageSvc := pages.NewService(pages.NewMemoryRepository(), pages.WithClock(clock.Now))
	blockSvc := blocks.NewService(blocks.NewMemoryRepository(), blocks.WithClock(clock.Now), blocks.WithPageMarker(pageSvc))
	transformer := snapshots.NewTransformer(snapshots.TypedCodec{}, snapshots.WithTransformerClock(clock.Now))
	svc := snapshots.NewService(repo, pageSvc, blockSvc, transformer, snapshots.WithClock(clock.Now))

	page, err := pageSvc.Create(context.Background(), pages.CreatePageInput{SiteID: siteID, Name: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if _, err := blockSvc.CreateContainer(context.Background(), blocks.CreateContainerInput{PageID: page.ID, Name: "content"}); err != nil {
		t.Fatalf("create container: %v", err)
	}
	return &fixture{clock: clock, pages: pageSvc, blocks: blockSvc, repo: repo, snapshots: svc, page: page}
}

func TestPublishClosesPreviousSnapshot(t *testing.T) {
	for name, repo := range map[string]func(t *testing.T) snapshots.Repository{
		"memory": func(*testing.T) snapshots.Repository { return snapshots.NewMemoryRepository() },
		"bun": func(t *testing.T) snapshots.Repository {
			return snapshots.NewBunRepository(testsupport.NewBunDB(t, (*snapshots.Snapshot)(nil)))
		},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, repo(t))

			first, err := fx.snapshots.Publish(ctx, fx.page.ID)
			if err != nil {
				t.Fatalf("publish 1: %v", err)
			}
			if first.PublicationDateEnd != nil {
				t.Fatalf("expected open snapshot")
			}
			fx.clock.Advance(time.Hour)
			t2 := fx.clock.Now()
			second, err := fx.snapshots.Publish(ctx, fx.page.ID)
			if err != nil {
				t.Fatalf("publish 2: %v", err)
			}

			reloaded, err := fx.repo.GetByID(ctx, first.ID)
			if err != nil {
				t.Fatalf("reload first: %v", err)
			}
			if reloaded.PublicationDateEnd == nil || !reloaded.PublicationDateEnd.Equal(t2) {
				t.Fatalf("expected first snapshot closed at %v, got %v", t2, reloaded.PublicationDateEnd)
			}
			current, err := fx.repo.FindEnabled(ctx, snapshots.Criteria{SiteID: siteID, Field: pages.FieldURL, Value: "/"}, fx.clock.Now())
			if err != nil {
				t.Fatalf("find enabled: %v", err)
			}
			if current.ID != second.ID || current.PublicationDateEnd != nil {
				t.Fatalf("expected second snapshot to be current, got %s", current.ID)
			}
		})
	}
}

func TestPublishManyKeepsSingleCurrent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, snapshots.NewMemoryRepository())
	for i := 0; i < 5; i++ {
		if _, err := fx.snapshots.Publish(ctx, fx.page.ID); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		fx.clock.Advance(time.Minute)
	}
	list, err := fx.repo.ListByPage(ctx, fx.page.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	current := 0
	for _, snapshot := range list {
		if snapshot.Enabled && snapshot.PublicationDateEnd == nil {
			current++
		}
	}
	if len(list) != 5 || current != 1 {
		t.Fatalf("expected 5 snapshots with one current, got %d / %d", len(list), current)
	}
	if list[0].PublicationDateEnd != nil {
		t.Fatalf("expected newest snapshot to be the current one")
	}
}

func TestPublishClearsEditedFlag(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, snapshots.NewMemoryRepository())
	before, _ := fx.pages.Get(ctx, fx.page.ID)
	if !before.Edited {
		t.Fatalf("expected page to start edited")
	}
	if _, err := fx.snapshots.Publish(ctx, fx.page.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	after, _ := fx.pages.Get(ctx, fx.page.ID)
	if after.Edited {
		t.Fatalf("expected edited flag cleared")
	}
}

func TestFindEnabledMissesUnpublishedPage(t *testing.T) {
	repo := snapshots.NewMemoryRepository()
	_, err := repo.FindEnabled(context.Background(), snapshots.Criteria{SiteID: siteID, Field: pages.FieldRouteName, Value: "homepage"}, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.FindEnabled(context.Background(), snapshots.Criteria{Field: "title"}, time.Now()); !errors.Is(err, snapshots.ErrFieldUnsupported) {
		t.Fatalf("expected unsupported field, got %v", err)
	}
}

func TestCleanupKeepsRecentClosedSnapshots(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, snapshots.NewMemoryRepository())
	for i := 0; i < 4; i++ {
		if _, err := fx.snapshots.Publish(ctx, fx.page.ID); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		fx.clock.Advance(time.Minute)
	}
	deleted, err := fx.snapshots.Cleanup(ctx, siteID, 1)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected two closed snapshots removed, got %d", deleted)
	}
	list, _ := fx.repo.ListByPage(ctx, fx.page.ID)
	if len(list) != 2 || list[0].PublicationDateEnd != nil {
		t.Fatalf("expected current plus one closed snapshot, got %d", len(list))
	}
}

func TestPublishSite(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, snapshots.NewMemoryRepository())
	if _, err := fx.pages.Create(ctx, pages.CreatePageInput{SiteID: siteID, ParentID: &fx.page.ID, Name: "News"}); err != nil {
		t.Fatalf("create news: %v", err)
	}
	published, err := fx.snapshots.PublishSite(ctx, siteID)
	if err != nil {
		t.Fatalf("publish site: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(published))
	}
}
