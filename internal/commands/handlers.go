package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/internal/snapshots"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	command "github.com/goliatone/go-command"
	"github.com/google/uuid"
)

// SiteLister enumerates every site for commands that default to all of them.
type SiteLister interface {
	List(ctx context.Context) ([]*sites.Site, error)
}

// RouteSyncer is the subset of pages.Service used by route synchronisation.
type RouteSyncer interface {
	SyncRoutes(ctx context.Context, input pages.SyncRoutesInput) (*pages.SyncResult, error)
}

// CacheFlusher is satisfied by *cache.Router.
type CacheFlusher interface {
	Flush(ctx context.Context, code string, keys cache.Keys) error
}

// NewCreateSnapshotsHandler publishes pages through the snapshot service.
func NewCreateSnapshotsHandler(service snapshots.Service, logger interfaces.Logger, opts ...HandlerOption[CreateSnapshotsCommand]) *Handler[CreateSnapshotsCommand] {
	exec := func(ctx context.Context, msg CreateSnapshotsCommand) error {
		if len(msg.PageIDs) == 0 {
			_, err := service.PublishSite(ctx, msg.SiteID)
			return err
		}
		for _, id := range msg.PageIDs {
			if _, err := service.Publish(ctx, id); err != nil {
				return fmt.Errorf("publish page %s: %w", id, err)
			}
		}
		return nil
	}
	return NewHandler(exec, withDefaults(logger, "snapshots.create", func(msg CreateSnapshotsCommand) map[string]any {
		fields := map[string]any{"pages": len(msg.PageIDs)}
		if msg.SiteID != uuid.Nil {
			fields["site_id"] = msg.SiteID
		}
		return fields
	}, opts)...)
}

// NewCleanupSnapshotsHandler prunes closed snapshots for one site or all of them.
func NewCleanupSnapshotsHandler(service snapshots.Service, sitesRepo SiteLister, logger interfaces.Logger, opts ...HandlerOption[CleanupSnapshotsCommand]) *Handler[CleanupSnapshotsCommand] {
	base := logging.Ensure(logger)
	exec := func(ctx context.Context, msg CleanupSnapshotsCommand) error {
		targets := []uuid.UUID{msg.SiteID}
		if msg.SiteID == uuid.Nil {
			if sitesRepo == nil {
				return errors.New("commands: cleanup without site_id needs a site lister")
			}
			list, err := sitesRepo.List(ctx)
			if err != nil {
				return err
			}
			targets = targets[:0]
			for _, site := range list {
				targets = append(targets, site.ID)
			}
		}
		total := 0
		for _, siteID := range targets {
			deleted, err := service.Cleanup(ctx, siteID, msg.Keep)
			if err != nil {
				return fmt.Errorf("cleanup site %s: %w", siteID, err)
			}
			total += deleted
		}
		logging.ForContext(base, ctx).Debug("commands.snapshots.cleanup.deleted", "sites", len(targets), "deleted", total)
		return nil
	}
	return NewHandler(exec, withDefaults(logger, "snapshots.cleanup", func(msg CleanupSnapshotsCommand) map[string]any {
		fields := map[string]any{"keep": msg.Keep}
		if msg.SiteID != uuid.Nil {
			fields["site_id"] = msg.SiteID
		}
		return fields
	}, opts)...)
}

// SyncRoutesConfig carries the page settings applied during route sync.
type SyncRoutesConfig struct {
	// ErrorPages are internal route names created alongside the routes.
	ErrorPages []string
	Decorable  func(name string) bool
}

// NewSyncRoutesHandler creates hybrid pages for new routes and disables the
// pages whose routes disappeared.
func NewSyncRoutesHandler(service RouteSyncer, cfg SyncRoutesConfig, logger interfaces.Logger, opts ...HandlerOption[SyncRoutesCommand]) *Handler[SyncRoutesCommand] {
	base := logging.Ensure(logger)
	exec := func(ctx context.Context, msg SyncRoutesCommand) error {
		routes := make([]pages.Route, 0, len(msg.Routes))
		for _, route := range msg.Routes {
			routes = append(routes, pages.Route{Name: route.Name, Path: route.Path, Methods: route.Methods})
		}
		result, err := service.SyncRoutes(ctx, pages.SyncRoutesInput{
			SiteID:     msg.SiteID,
			Routes:     routes,
			ErrorPages: cfg.ErrorPages,
			Decorable:  cfg.Decorable,
		})
		if err != nil {
			return err
		}
		logging.ForContext(base, ctx).Info("commands.pages.sync_routes.result",
			"site_id", msg.SiteID,
			"created", len(result.Created),
			"updated", len(result.Updated),
			"disabled", len(result.Disabled),
		)
		return nil
	}
	return NewHandler(exec, withDefaults(logger, "pages.sync_routes", func(msg SyncRoutesCommand) map[string]any {
		return map[string]any{"site_id": msg.SiteID, "routes": len(msg.Routes)}
	}, opts)...)
}

// NewFlushCacheHandler flushes cache backends.
func NewFlushCacheHandler(flusher CacheFlusher, logger interfaces.Logger, opts ...HandlerOption[FlushCacheCommand]) *Handler[FlushCacheCommand] {
	exec := func(ctx context.Context, msg FlushCacheCommand) error {
		return flusher.Flush(ctx, msg.Backend, cache.Keys(msg.Keys))
	}
	return NewHandler(exec, withDefaults(logger, "cache.flush", func(msg FlushCacheCommand) map[string]any {
		backend := msg.Backend
		if backend == "" {
			backend = "*"
		}
		return map[string]any{"backend": backend, "keys": len(msg.Keys)}
	}, opts)...)
}

func withDefaults[T command.Message](logger interfaces.Logger, operation string, fields func(T) map[string]any, opts []HandlerOption[T]) []HandlerOption[T] {
	base := logging.Ensure(logger)
	out := []HandlerOption[T]{
		WithLogger[T](base),
		WithOperation[T](operation),
		WithMessageFields(fields),
		WithTelemetry(DefaultTelemetry[T](base)),
	}
	return append(out, opts...)
}
