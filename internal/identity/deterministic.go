package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must prefix keys by entity type to avoid cross-entity collisions.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// RoutePageUUID identifies the hybrid page bound to route on site. Two
// requests auto-creating the same route page converge on one id.
func RoutePageUUID(siteID uuid.UUID, route string) uuid.UUID {
	return UUID("pagecms:route_page:" + siteID.String() + ":" + strings.TrimSpace(route))
}

// ContainerUUID identifies the named top level container of a page.
func ContainerUUID(pageID uuid.UUID, name string) uuid.UUID {
	return UUID("pagecms:container:" + pageID.String() + ":" + strings.TrimSpace(name))
}

// CacheKey hashes a canonical cache key fingerprint.
func CacheKey(fingerprint string) string {
	return UUID("pagecms:cache:" + fingerprint).String()
}
