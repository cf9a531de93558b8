package di_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/di"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/testsupport"
	"github.com/google/uuid"
)

func TestContainerLogsThroughInjectedProvider(t *testing.T) {
	rec := testsupport.NewLogRecorder()
	container, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithLoggerProvider(rec))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	entry := rec.Find("storage.configured")
	if entry == nil {
		t.Fatalf("expected storage.configured, got %#v", rec.Entries())
	}
	if entry.Fields["driver"] != runtimeconfig.DriverMemory || entry.Fields["module"] != "cms.storage" {
		t.Fatalf("unexpected storage fields %v", entry.Fields)
	}
}

func TestPublishLogsPageAndSnapshotIDs(t *testing.T) {
	ctx := context.Background()
	rec := testsupport.NewLogRecorder()
	container, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithLoggerProvider(rec))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	siteID := uuid.MustParse("00000000-0000-0000-0000-0000000000a7")
	if _, err := container.SiteRepository().Create(ctx, &sites.Site{
		ID: siteID, Name: "main", Host: sites.WildcardHost, Enabled: true, IsDefault: true,
	}); err != nil {
		t.Fatalf("create site: %v", err)
	}
	page, err := container.PageService().Create(ctx, pages.CreatePageInput{SiteID: siteID, Name: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if _, err := container.BlockService().CreateContainer(ctx, blocks.CreateContainerInput{PageID: page.ID, Name: "content"}); err != nil {
		t.Fatalf("create container: %v", err)
	}
	snapshot, err := container.SnapshotService().Publish(ctx, page.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	entry := rec.FindWith("snapshots.publish.completed", "page_id", page.ID)
	if entry == nil {
		t.Fatalf("expected publish entry for page %s, got %#v", page.ID, rec.Entries())
	}
	if entry.Level != "info" || entry.Fields["snapshot_id"] != snapshot.ID || entry.Fields["module"] != "cms.snapshots" {
		t.Fatalf("unexpected publish entry %+v", entry)
	}
	if entry.Fields["blocks"] != 1 {
		t.Fatalf("expected one block in the published tree, got %v", entry.Fields["blocks"])
	}
}
