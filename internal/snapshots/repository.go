package snapshots

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists snapshots.
type Repository interface {
	// Create stores snapshot and, in the same transaction, closes every
	// other current snapshot of the same page at snapshot's start time.
	Create(ctx context.Context, snapshot *Snapshot) (*Snapshot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	// FindEnabled returns the most recent snapshot current at now.
	FindEnabled(ctx context.Context, criteria Criteria, now time.Time) (*Snapshot, error)
	// ListByPage returns snapshots newest first.
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Snapshot, error)
	// ListBySite returns snapshots newest first.
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Snapshot, error)
	Delete(ctx context.Context, ids ...uuid.UUID) (int, error)
}

// NewMemoryRepository constructs an in-memory snapshot repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[uuid.UUID]*Snapshot)}
}

type memoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Snapshot
}

func (m *memoryRepository) Create(_ context.Context, snapshot *Snapshot) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := snapshot.PublicationDateStart
	for _, existing := range m.byID {
		if existing.PageID != snapshot.PageID || !existing.Enabled {
			continue
		}
		if existing.PublicationDateEnd == nil || existing.PublicationDateEnd.After(now) {
			end := now
			existing.PublicationDateEnd = &end
			existing.UpdatedAt = now
		}
	}
	cloned := clone(snapshot)
	if cloned.ID == uuid.Nil {
		cloned.ID = uuid.New()
	}
	m.byID[cloned.ID] = cloned
	return clone(cloned), nil
}

func (m *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	return clone(record), nil
}

func (m *memoryRepository) FindEnabled(_ context.Context, criteria Criteria, now time.Time) (*Snapshot, error) {
	if _, ok := column(criteria.Field); !ok {
		return nil, ErrFieldUnsupported
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Snapshot
	for _, record := range m.byID {
		if (criteria.SiteID != uuid.Nil && record.SiteID != criteria.SiteID) || record.Value(criteria.Field) != criteria.Value {
			continue
		}
		if !record.IsCurrent(now) {
			continue
		}
		if best == nil || newestFirst(record, best) < 0 {
			best = record
		}
	}
	if best == nil {
		return nil, &NotFoundError{Key: string(criteria.Field) + "=" + criteria.Value}
	}
	return clone(best), nil
}

func (m *memoryRepository) ListByPage(_ context.Context, pageID uuid.UUID) ([]*Snapshot, error) {
	return m.list(func(s *Snapshot) bool { return s.PageID == pageID }), nil
}

func (m *memoryRepository) ListBySite(_ context.Context, siteID uuid.UUID) ([]*Snapshot, error) {
	return m.list(func(s *Snapshot) bool { return s.SiteID == siteID }), nil
}

func (m *memoryRepository) list(match func(*Snapshot) bool) []*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Snapshot{}
	for _, record := range m.byID {
		if match(record) {
			out = append(out, clone(record))
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

func (m *memoryRepository) Delete(_ context.Context, ids ...uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			delete(m.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

// newestFirst orders by publication start, then creation time, then id,
// all descending.
func newestFirst(a, b *Snapshot) int {
	if c := b.PublicationDateStart.Compare(a.PublicationDateStart); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(b.ID[:], a.ID[:])
}
