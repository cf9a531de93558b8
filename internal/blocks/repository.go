package blocks

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists blocks.
type Repository interface {
	Create(ctx context.Context, record *Block) (*Block, error)
	Update(ctx context.Context, record *Block) (*Block, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	// ListByPage returns every block of the page, nested ones included, as
	// a flat list ordered by position.
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error)
	// ListShared returns blocks that belong to no page.
	ListShared(ctx context.Context) ([]*Block, error)
}
