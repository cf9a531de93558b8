package sites

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/google/uuid"
)

// Repository persists sites.
type Repository interface {
	Create(ctx context.Context, record *Site) (*Site, error)
	Update(ctx context.Context, record *Site) (*Site, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
}

// NotFoundError is returned when no site matches a lookup.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return "site not found"
	}
	return fmt.Sprintf("site %q not found", e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return domain.ErrNotFound
}

// MemoryRepository keeps sites in process.
type MemoryRepository struct {
	mu    sync.RWMutex
	sites map[uuid.UUID]*Site
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sites: make(map[uuid.UUID]*Site)}
}

func (m *MemoryRepository) Create(_ context.Context, record *Site) (*Site, error) {
	if record == nil {
		return nil, fmt.Errorf("sites: nil record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := cloneSite(record)
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.sites[copied.ID] = copied
	return cloneSite(copied), nil
}

func (m *MemoryRepository) Update(_ context.Context, record *Site) (*Site, error) {
	if record == nil {
		return nil, fmt.Errorf("sites: nil record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[record.ID]; !ok {
		return nil, &NotFoundError{Key: record.ID.String()}
	}
	m.sites[record.ID] = cloneSite(record)
	return cloneSite(record), nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.sites[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	return cloneSite(site), nil
}

// List returns sites ordered by creation time then id.
func (m *MemoryRepository) List(_ context.Context) ([]*Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Site, 0, len(m.sites))
	for _, site := range m.sites {
		out = append(out, cloneSite(site))
	}
	slices.SortFunc(out, compareSites)
	return out, nil
}

func compareSites(a, b *Site) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(a.ID[:], b.ID[:])
}

func cloneSite(src *Site) *Site {
	if src == nil {
		return nil
	}
	copied := *src
	if src.EnabledFrom != nil {
		from := *src.EnabledFrom
		copied.EnabledFrom = &from
	}
	if src.EnabledTo != nil {
		to := *src.EnabledTo
		copied.EnabledTo = &to
	}
	return &copied
}
