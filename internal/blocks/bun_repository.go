package blocks

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewBunRepository stores blocks through go-repository-bun.
func NewBunRepository(db *bun.DB) Repository {
	return &bunRepository{repo: repository.MustNewRepository(db, repository.ModelHandlers[*Block]{
		NewRecord: func() *Block { return &Block{} },
		GetID: func(b *Block) uuid.UUID {
			return b.ID
		},
		SetID: func(b *Block, id uuid.UUID) {
			b.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(b *Block) string {
			return b.ID.String()
		},
	})}
}

type bunRepository struct {
	repo repository.Repository[*Block]
}

func (r *bunRepository) Create(ctx context.Context, record *Block) (*Block, error) {
	created, err := r.repo.Create(ctx, record)
	if err != nil {
		return nil, mapRepositoryError(err, record.ID.String())
	}
	return created, nil
}

func (r *bunRepository) Update(ctx context.Context, record *Block) (*Block, error) {
	updated, err := r.repo.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(
			"page_id",
			"parent_id",
			"kind",
			"type",
			"name",
			"position",
			"enabled",
			"settings",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapRepositoryError(err, record.ID.String())
	}
	return updated, nil
}

func (r *bunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	if err := r.repo.Delete(ctx, &Block{ID: id}); err != nil {
		return mapRepositoryError(err, id.String())
	}
	return nil
}

func (r *bunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return record, nil
}

func (r *bunRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.page_id = ?", pageID).
			OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC, ?TableAlias.id ASC")
	}))
	if err != nil {
		return nil, mapRepositoryError(err, pageID.String())
	}
	return records, nil
}

func (r *bunRepository) ListShared(ctx context.Context) ([]*Block, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.page_id IS NULL").
			OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC, ?TableAlias.id ASC")
	}))
	if err != nil {
		return nil, mapRepositoryError(err, "shared")
	}
	return records, nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Key: key}
	}
	return fmt.Errorf("block repository error: %w", err)
}
