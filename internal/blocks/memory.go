package blocks

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// NewMemoryRepository constructs an in-memory block repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[uuid.UUID]*Block)}
}

type memoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Block
}

func (m *memoryRepository) Create(_ context.Context, record *Block) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := Clone(record)
	if cloned.ID == uuid.Nil {
		cloned.ID = uuid.New()
	}
	if _, exists := m.byID[cloned.ID]; exists {
		return nil, ErrBlockExists
	}
	m.byID[cloned.ID] = cloned
	return Clone(cloned), nil
}

func (m *memoryRepository) Update(_ context.Context, record *Block) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[record.ID]; !ok {
		return nil, &NotFoundError{Key: record.ID.String()}
	}
	cloned := Clone(record)
	m.byID[cloned.ID] = cloned
	return Clone(cloned), nil
}

func (m *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return &NotFoundError{Key: id.String()}
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	return Clone(record), nil
}

func (m *memoryRepository) ListByPage(_ context.Context, pageID uuid.UUID) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Block{}
	for _, record := range m.byID {
		if record.PageID != nil && *record.PageID == pageID {
			out = append(out, Clone(record))
		}
	}
	slices.SortFunc(out, Compare)
	return out, nil
}

func (m *memoryRepository) ListShared(_ context.Context) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Block{}
	for _, record := range m.byID {
		if record.PageID == nil {
			out = append(out, Clone(record))
		}
	}
	slices.SortFunc(out, Compare)
	return out, nil
}
