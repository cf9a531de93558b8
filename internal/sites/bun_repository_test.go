package sites_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/testsupport"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/google/uuid"
)

func TestBunRepositoryWithCache(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewBunDB(t, (*sites.Site)(nil))

	cacheCfg := repocache.DefaultConfig()
	cacheCfg.TTL = time.Minute
	cacheService, err := repocache.NewCacheService(cacheCfg)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	repo := sites.NewBunRepositoryWithCache(db, cacheService, repocache.NewDefaultKeySerializer())

	id := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	created, err := repo.Create(ctx, &sites.Site{
		ID:        id,
		Name:      "main",
		Host:      "example.com",
		Locale:    "en",
		Enabled:   true,
		IsDefault: true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != id {
		t.Fatalf("expected id %s, got %s", id, created.ID)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Host != "example.com" || !got.IsDefault {
		t.Fatalf("unexpected site %+v", got)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one site, got %d", len(list))
	}

	_, err = repo.GetByID(ctx, uuid.MustParse("00000000-0000-0000-0000-0000000000ff"))
	var notFound *sites.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
