package manager

import (
	"context"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/snapshots"
	"github.com/google/uuid"
)

// SharedBlockReader resolves shared blocks, which are never part of a
// snapshot.
type SharedBlockReader interface {
	Get(ctx context.Context, id uuid.UUID) (*blocks.Block, error)
}

// SnapshotStore serves published snapshots. It never writes.
type SnapshotStore struct {
	repo        snapshots.Repository
	transformer *snapshots.Transformer
	shared      SharedBlockReader
	now         func() time.Time
}

var _ PageStore = (*SnapshotStore)(nil)

// SnapshotStoreOption configures the snapshot store.
type SnapshotStoreOption func(*SnapshotStore)

func WithSnapshotClock(clock func() time.Time) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewSnapshotStore(repo snapshots.Repository, transformer *snapshots.Transformer, shared SharedBlockReader, opts ...SnapshotStoreOption) *SnapshotStore {
	if transformer == nil {
		transformer = snapshots.NewTransformer(snapshots.TypedCodec{})
	}
	s := &SnapshotStore{repo: repo, transformer: transformer, shared: shared, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnapshotStore) Mode() Mode { return ModeSnapshot }

func (s *SnapshotStore) FindPage(ctx context.Context, query Query) (PageSource, error) {
	snapshot, err := s.repo.FindEnabled(ctx, snapshots.Criteria{
		SiteID: query.SiteID,
		Field:  query.Field,
		Value:  query.Value,
	}, s.now().UTC())
	if err != nil {
		if isNotFound(err) {
			return nil, &pages.PageNotFoundError{Field: query.Field, Value: query.Value}
		}
		return nil, err
	}
	return s.transformer.Load(snapshot)
}

func (s *SnapshotStore) CreatePage(context.Context, Query) (PageSource, error) {
	return nil, ErrReadOnly
}

func (s *SnapshotStore) CreateContainer(context.Context, *pages.Page, string, *blocks.Block) (*blocks.Block, error) {
	return nil, ErrReadOnly
}

// GetBlock only resolves shared blocks. Page blocks come from the loaded
// snapshot documents.
func (s *SnapshotStore) GetBlock(ctx context.Context, id uuid.UUID) (*blocks.Block, error) {
	if s.shared == nil {
		return nil, &blocks.NotFoundError{Key: id.String()}
	}
	block, err := s.shared.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !block.IsShared() {
		return nil, &blocks.NotFoundError{Key: id.String()}
	}
	return block, nil
}
