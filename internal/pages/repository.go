package pages

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Repository persists pages.
type Repository interface {
	Create(ctx context.Context, record *Page) (*Page, error)
	Update(ctx context.Context, record *Page) (*Page, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Page, error)
	// FindOneBy returns the first page of site whose field equals value.
	FindOneBy(ctx context.Context, siteID uuid.UUID, field Field, value string) (*Page, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Page, error)
}

// MemoryRepository is an in-memory page store for tests and the example.
type MemoryRepository struct {
	mu    sync.RWMutex
	pages map[uuid.UUID]*Page
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{pages: make(map[uuid.UUID]*Page)}
}

func (m *MemoryRepository) Create(_ context.Context, record *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := Clone(record)
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.pages[copied.ID] = copied
	return Clone(copied), nil
}

func (m *MemoryRepository) Update(_ context.Context, record *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[record.ID]; !ok {
		return nil, &PageNotFoundError{Field: FieldID, Value: record.ID.String()}
	}
	m.pages[record.ID] = Clone(record)
	return Clone(record), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[id]; !ok {
		return &PageNotFoundError{Field: FieldID, Value: id.String()}
	}
	delete(m.pages, id)
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[id]
	if !ok {
		return nil, &PageNotFoundError{Field: FieldID, Value: id.String()}
	}
	return Clone(page), nil
}

func (m *MemoryRepository) FindOneBy(_ context.Context, siteID uuid.UUID, field Field, value string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := []*Page{}
	for _, page := range m.pages {
		if page.SiteID == siteID && page.Value(field) == value {
			matches = append(matches, page)
		}
	}
	if len(matches) == 0 {
		return nil, &PageNotFoundError{Field: field, Value: value}
	}
	slices.SortFunc(matches, comparePages)
	return Clone(matches[0]), nil
}

func (m *MemoryRepository) ListBySite(_ context.Context, siteID uuid.UUID) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Page{}
	for _, page := range m.pages {
		if page.SiteID == siteID {
			out = append(out, Clone(page))
		}
	}
	slices.SortFunc(out, comparePages)
	return out, nil
}

// comparePages orders by position, then creation time, then id.
func comparePages(a, b *Page) int {
	if a.Position != b.Position {
		return a.Position - b.Position
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(a.ID[:], b.ID[:])
}
