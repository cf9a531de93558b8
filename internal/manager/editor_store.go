package manager

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/identity"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
)

// EditorStore reads and writes live pages and blocks.
type EditorStore struct {
	pageRepo        pages.Repository
	pageService     pages.Service
	blockService    blocks.Service
	defaultTemplate string
}

var _ PageStore = (*EditorStore)(nil)

// EditorStoreOption configures the editor store.
type EditorStoreOption func(*EditorStore)

// WithDefaultTemplate sets the template code of auto-created pages.
func WithDefaultTemplate(code string) EditorStoreOption {
	return func(s *EditorStore) {
		s.defaultTemplate = code
	}
}

func NewEditorStore(pageRepo pages.Repository, pageService pages.Service, blockService blocks.Service, opts ...EditorStoreOption) *EditorStore {
	s := &EditorStore{pageRepo: pageRepo, pageService: pageService, blockService: blockService}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EditorStore) Mode() Mode { return ModeEditor }

func (s *EditorStore) FindPage(ctx context.Context, query Query) (PageSource, error) {
	var (
		page *pages.Page
		err  error
	)
	if query.Field == pages.FieldID {
		id, parseErr := uuid.Parse(query.Value)
		if parseErr != nil {
			return nil, &pages.PageNotFoundError{Field: query.Field, Value: query.Value}
		}
		page, err = s.pageRepo.GetByID(ctx, id)
		if err == nil && query.SiteID != uuid.Nil && page.SiteID != query.SiteID {
			return nil, &pages.PageNotFoundError{Field: query.Field, Value: query.Value}
		}
	} else {
		page, err = s.pageRepo.FindOneBy(ctx, query.SiteID, query.Field, query.Value)
	}
	if err != nil {
		return nil, err
	}
	return s.source(page), nil
}

// CreatePage auto-creates the hybrid page bound to a route. Lookups by name
// create the same kind of page, bound to a route of that name.
func (s *EditorStore) CreatePage(ctx context.Context, query Query) (PageSource, error) {
	if query.Field != pages.FieldRouteName && query.Field != pages.FieldName {
		return nil, ErrCreateUnsupported
	}
	page, err := s.pageService.Create(ctx, pages.CreatePageInput{
		ID:           identity.RoutePageUUID(query.SiteID, query.Value),
		SiteID:       query.SiteID,
		RouteName:    query.Value,
		Name:         query.Value,
		TemplateCode: s.defaultTemplate,
	})
	if err != nil {
		// another request may have created the same route page first
		if existing, findErr := s.pageRepo.GetByID(ctx, identity.RoutePageUUID(query.SiteID, query.Value)); findErr == nil {
			return s.source(existing), nil
		}
		return nil, err
	}
	return s.source(page), nil
}

func (s *EditorStore) CreateContainer(ctx context.Context, page *pages.Page, name string, parent *blocks.Block) (*blocks.Block, error) {
	input := blocks.CreateContainerInput{PageID: page.ID, Name: name}
	if parent != nil {
		input.ParentID = &parent.ID
	}
	container, err := s.blockService.CreateContainer(ctx, input)
	if err != nil && parent == nil {
		// top level containers have a deterministic id, a concurrent request
		// may have inserted it first
		if existing, findErr := s.blockService.Get(ctx, identity.ContainerUUID(page.ID, strings.TrimSpace(name))); findErr == nil {
			return existing, nil
		}
	}
	return container, err
}

func (s *EditorStore) GetBlock(ctx context.Context, id uuid.UUID) (*blocks.Block, error) {
	return s.blockService.Get(ctx, id)
}

func (s *EditorStore) source(page *pages.Page) *livePage {
	return &livePage{page: page, blocks: s.blockService}
}

// livePage loads its block forest from the block service once.
type livePage struct {
	page   *pages.Page
	blocks blocks.Service

	once sync.Once
	tree *blocks.Tree
	err  error
}

func (p *livePage) Page() *pages.Page { return p.page }

func (p *livePage) Blocks(ctx context.Context) (*blocks.Tree, error) {
	p.once.Do(func() {
		p.tree, p.err = p.blocks.Tree(ctx, p.page.ID)
	})
	return p.tree, p.err
}
