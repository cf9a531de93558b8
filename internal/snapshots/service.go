package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/google/uuid"
)

// PageReader is the subset of the page service publishing needs.
type PageReader interface {
	Get(ctx context.Context, id uuid.UUID) (*pages.Page, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*pages.Page, error)
	MarkPublished(ctx context.Context, id uuid.UUID) (*pages.Page, error)
}

// TreeLoader loads the live block forest of a page.
type TreeLoader interface {
	Tree(ctx context.Context, pageID uuid.UUID) (*blocks.Tree, error)
}

// Service publishes pages and prunes old snapshots.
type Service interface {
	Publish(ctx context.Context, pageID uuid.UUID) (*Snapshot, error)
	PublishSite(ctx context.Context, siteID uuid.UUID) ([]*Snapshot, error)
	// Cleanup deletes closed snapshots beyond the keep most recent ones of
	// every page of the site and returns the number removed.
	Cleanup(ctx context.Context, siteID uuid.UUID, keep int) (int, error)
}

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

type service struct {
	repo        Repository
	pages       PageReader
	trees       TreeLoader
	transformer *Transformer
	now         func() time.Time
	logger      interfaces.Logger
}

func NewService(repo Repository, pageReader PageReader, trees TreeLoader, transformer *Transformer, opts ...ServiceOption) Service {
	if transformer == nil {
		transformer = NewTransformer(TypedCodec{})
	}
	s := &service{
		repo:        repo,
		pages:       pageReader,
		trees:       trees,
		transformer: transformer,
		now:         time.Now,
		logger:      logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Publish(ctx context.Context, pageID uuid.UUID) (*Snapshot, error) {
	page, err := s.pages.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.Tree(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("load blocks of page %s: %w", pageID, err)
	}
	snapshot, err := s.transformer.Create(page, tree.Roots)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := s.pages.MarkPublished(ctx, pageID); err != nil {
		return nil, err
	}
	logging.ForContext(s.logger, ctx).Info("snapshots.publish.completed",
		"page_id", pageID,
		"snapshot_id", created.ID,
		"blocks", tree.Len(),
		"codec", created.Codec,
	)
	return created, nil
}

func (s *service) PublishSite(ctx context.Context, siteID uuid.UUID) ([]*Snapshot, error) {
	list, err := s.pages.ListBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*Snapshot, 0, len(list))
	for _, page := range list {
		snapshot, err := s.Publish(ctx, page.ID)
		if err != nil {
			return out, fmt.Errorf("publish page %s: %w", page.ID, err)
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func (s *service) Cleanup(ctx context.Context, siteID uuid.UUID, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	list, err := s.repo.ListBySite(ctx, siteID)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	closed := map[uuid.UUID]int{}
	doomed := []uuid.UUID{}
	for _, snapshot := range list {
		if !snapshot.IsClosed(now) {
			continue
		}
		closed[snapshot.PageID]++
		if closed[snapshot.PageID] > keep {
			doomed = append(doomed, snapshot.ID)
		}
	}
	deleted, err := s.repo.Delete(ctx, doomed...)
	if err != nil {
		return 0, err
	}
	logging.ForContext(s.logger, ctx).Info("snapshots.cleanup.completed", "site_id", siteID, "deleted", deleted, "keep", keep)
	return deleted, nil
}
