package pages

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunRepository stores pages through go-repository-bun.
type BunRepository struct {
	repo repository.Repository[*Page]
}

var _ Repository = (*BunRepository)(nil)

func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

// NewBunRepositoryWithCache layers go-repository-cache over the base
// repository when both collaborators are provided.
func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRepository {
	var base repository.Repository[*Page] = newPageRepository(db)
	if cacheService != nil && keySerializer != nil {
		base = repositorycache.New(base, cacheService, keySerializer)
	}
	return &BunRepository{repo: base}
}

func newPageRepository(db *bun.DB) repository.Repository[*Page] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Page]{
		NewRecord: func() *Page { return &Page{} },
		GetID: func(p *Page) uuid.UUID {
			return p.ID
		},
		SetID: func(p *Page, id uuid.UUID) {
			p.ID = id
		},
		GetIdentifier: func() string {
			return "url"
		},
		GetIdentifierValue: func(p *Page) string {
			return p.URL
		},
	})
}

func (r *BunRepository) Create(ctx context.Context, record *Page) (*Page, error) {
	created, err := r.repo.Create(ctx, record)
	if err != nil {
		return nil, mapRepositoryError(err, FieldID, record.ID.String())
	}
	return created, nil
}

func (r *BunRepository) Update(ctx context.Context, record *Page) (*Page, error) {
	updated, err := r.repo.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(
			"parent_id",
			"target_id",
			"route_name",
			"page_alias",
			"name",
			"title",
			"slug",
			"url",
			"custom_url",
			"request_method",
			"type",
			"template_code",
			"position",
			"enabled",
			"decorate",
			"edited",
			"meta_keyword",
			"meta_description",
			"javascript",
			"stylesheet",
			"raw_headers",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapRepositoryError(err, FieldID, record.ID.String())
	}
	return updated, nil
}

func (r *BunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.repo.Delete(ctx, record); err != nil {
		return mapRepositoryError(err, FieldID, id.String())
	}
	return nil
}

func (r *BunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Page, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, FieldID, id.String())
	}
	return record, nil
}

func (r *BunRepository) FindOneBy(ctx context.Context, siteID uuid.UUID, field Field, value string) (*Page, error) {
	switch field {
	case FieldID:
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, &PageNotFoundError{Field: field, Value: value}
		}
		record, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if record.SiteID != siteID {
			return nil, &PageNotFoundError{Field: field, Value: value}
		}
		return record, nil
	case FieldURL, FieldRouteName, FieldName, FieldAlias:
	default:
		return nil, fmt.Errorf("%w: %s", ErrFieldUnsupported, field)
	}
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.site_id = ?", siteID).
				Where("?TableAlias.? = ?", bun.Ident(field.Column()), value).
				OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC, ?TableAlias.id ASC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, field, value)
	}
	if len(records) == 0 {
		return nil, &PageNotFoundError{Field: field, Value: value}
	}
	return records[0], nil
}

func (r *BunRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Page, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.site_id = ?", siteID).
			OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC, ?TableAlias.id ASC")
	}))
	if err != nil {
		return nil, mapRepositoryError(err, "", siteID.String())
	}
	return records, nil
}

func mapRepositoryError(err error, field Field, value string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &PageNotFoundError{Field: field, Value: value}
	}
	return fmt.Errorf("page repository error: %w", err)
}
