package commands

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	createSnapshotsMessageType  = "pagecms.snapshots.create"
	cleanupSnapshotsMessageType = "pagecms.snapshots.cleanup"
	syncRoutesMessageType       = "pagecms.pages.sync_routes"
	flushCacheMessageType       = "pagecms.cache.flush"
)

// CreateSnapshotsCommand publishes the listed pages, or every page of the
// site when PageIDs is empty.
type CreateSnapshotsCommand struct {
	SiteID  uuid.UUID   `json:"site_id"`
	PageIDs []uuid.UUID `json:"page_ids,omitempty"`
}

// Type implements command.Message.
func (CreateSnapshotsCommand) Type() string { return createSnapshotsMessageType }

func (m CreateSnapshotsCommand) Validate() error {
	errs := validation.Errors{}
	if m.SiteID == uuid.Nil && len(m.PageIDs) == 0 {
		errs["site_id"] = validation.NewError("pagecms.snapshots.create.target_required", "site_id or page_ids is required")
	}
	for _, id := range m.PageIDs {
		if id == uuid.Nil {
			errs["page_ids"] = validation.NewError("pagecms.snapshots.create.page_id_invalid", "page_ids must not contain empty identifiers")
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CleanupSnapshotsCommand removes closed snapshots beyond the Keep most
// recent per page. A nil SiteID cleans every site.
type CleanupSnapshotsCommand struct {
	SiteID uuid.UUID `json:"site_id,omitempty"`
	Keep   int       `json:"keep"`
}

// Type implements command.Message.
func (CleanupSnapshotsCommand) Type() string { return cleanupSnapshotsMessageType }

func (m CleanupSnapshotsCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Keep, validation.Min(0).Error("keep must not be negative")),
	)
}

// RouteDefinition is an application route offered to the page tree.
type RouteDefinition struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Methods []string `json:"methods,omitempty"`
}

// SyncRoutesCommand mirrors the application routes into hybrid pages.
type SyncRoutesCommand struct {
	SiteID uuid.UUID         `json:"site_id"`
	Routes []RouteDefinition `json:"routes"`
}

// Type implements command.Message.
func (SyncRoutesCommand) Type() string { return syncRoutesMessageType }

func (m SyncRoutesCommand) Validate() error {
	errs := validation.Errors{}
	if m.SiteID == uuid.Nil {
		errs["site_id"] = validation.NewError("pagecms.pages.sync_routes.site_required", "site_id is required")
	}
	seen := map[string]struct{}{}
	for _, route := range m.Routes {
		name := strings.TrimSpace(route.Name)
		if name == "" || strings.TrimSpace(route.Path) == "" {
			errs["routes"] = validation.NewError("pagecms.pages.sync_routes.route_invalid", "routes need a name and a path")
			break
		}
		if _, dup := seen[name]; dup {
			errs["routes"] = validation.NewError("pagecms.pages.sync_routes.route_duplicate", "route "+name+" is listed twice")
			break
		}
		seen[name] = struct{}{}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FlushCacheCommand flushes Keys on Backend. An empty Backend targets every
// configured backend and empty Keys flushes everything.
type FlushCacheCommand struct {
	Backend string         `json:"backend,omitempty"`
	Keys    map[string]any `json:"keys,omitempty"`
}

// Type implements command.Message.
func (FlushCacheCommand) Type() string { return flushCacheMessageType }

func (m FlushCacheCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Backend, validation.Length(0, 64)),
	)
}
