package manager

import (
	"context"
	"errors"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
)

var (
	// ErrReadOnly is returned when a snapshot store is asked to write.
	ErrReadOnly = errors.New("manager: snapshot store is read-only")
	// ErrCreateUnsupported marks lookups that never auto-create pages.
	ErrCreateUnsupported = errors.New("manager: pages can only be created by route name or name")
)

// Query addresses a page on a site by one field. A nil SiteID is only valid
// for id lookups.
type Query struct {
	SiteID uuid.UUID
	Field  pages.Field
	Value  string
}

// PageSource is a resolved page with access to its block forest.
type PageSource interface {
	Page() *pages.Page
	Blocks(ctx context.Context) (*blocks.Tree, error)
}

// PageStore is implemented by the editor and snapshot stores.
type PageStore interface {
	Mode() Mode
	FindPage(ctx context.Context, query Query) (PageSource, error)
	CreatePage(ctx context.Context, query Query) (PageSource, error)
	CreateContainer(ctx context.Context, page *pages.Page, name string, parent *blocks.Block) (*blocks.Block, error)
	// GetBlock resolves blocks outside any loaded page, such as shared blocks.
	GetBlock(ctx context.Context, id uuid.UUID) (*blocks.Block, error)
}
