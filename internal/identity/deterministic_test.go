package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDIsStable(t *testing.T) {
	first := UUID("pagecms:test:key")
	second := UUID("  pagecms:test:key ")
	if first == uuid.Nil || first != second {
		t.Fatalf("expected stable non-nil uuid, got %s and %s", first, second)
	}
}

func TestUUIDEmptyKey(t *testing.T) {
	if got := UUID("   "); got != uuid.Nil {
		t.Fatalf("expected nil uuid for empty key, got %s", got)
	}
}

func TestRoutePageUUIDScopesBySite(t *testing.T) {
	siteA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	siteB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	if RoutePageUUID(siteA, "homepage") == RoutePageUUID(siteB, "homepage") {
		t.Fatalf("expected route page ids to differ across sites")
	}
	if RoutePageUUID(siteA, "homepage") != RoutePageUUID(siteA, "homepage") {
		t.Fatalf("expected route page ids to be deterministic")
	}
}

func TestCacheKeyDiffersFromContainerNamespace(t *testing.T) {
	page := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	if CacheKey("header") == ContainerUUID(page, "header").String() {
		t.Fatalf("expected namespaces to differ")
	}
}
