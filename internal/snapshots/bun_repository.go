package snapshots

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewBunRepository stores snapshots in bun. Reads go through
// go-repository-bun; Create runs in a transaction on the raw db.
func NewBunRepository(db *bun.DB) Repository {
	return &bunRepository{
		db: db,
		repo: repository.MustNewRepository(db, repository.ModelHandlers[*Snapshot]{
			NewRecord: func() *Snapshot { return &Snapshot{} },
			GetID: func(s *Snapshot) uuid.UUID {
				return s.ID
			},
			SetID: func(s *Snapshot, id uuid.UUID) {
				s.ID = id
			},
			GetIdentifier: func() string {
				return "id"
			},
			GetIdentifierValue: func(s *Snapshot) string {
				return s.ID.String()
			},
		}),
	}
}

type bunRepository struct {
	db   *bun.DB
	repo repository.Repository[*Snapshot]
}

func (r *bunRepository) Create(ctx context.Context, snapshot *Snapshot) (*Snapshot, error) {
	if r.db == nil {
		return nil, fmt.Errorf("snapshot repository: database not configured")
	}
	record := clone(snapshot)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := record.PublicationDateStart.UTC()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*Snapshot)(nil)).
			Set("publication_date_end = ?", now).
			Set("updated_at = ?", now).
			Where("page_id = ?", record.PageID).
			Where("enabled = ?", true).
			WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
				return q.
					Where("publication_date_end IS NULL").
					WhereOr("publication_date_end > ?", now)
			}).
			Exec(ctx); err != nil {
			return fmt.Errorf("close current snapshots: %w", err)
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone(record), nil
}

func (r *bunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return record, nil
}

func (r *bunRepository) FindEnabled(ctx context.Context, criteria Criteria, now time.Time) (*Snapshot, error) {
	col, ok := column(criteria.Field)
	if !ok {
		return nil, ErrFieldUnsupported
	}
	now = now.UTC()
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			if criteria.SiteID != uuid.Nil {
				q = q.Where("?TableAlias.site_id = ?", criteria.SiteID)
			}
			return q.
				Where("?TableAlias.? = ?", bun.Ident(col), criteria.Value).
				Where("?TableAlias.enabled = ?", true).
				Where("?TableAlias.publication_date_start <= ?", now).
				WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.
						Where("?TableAlias.publication_date_end IS NULL").
						WhereOr("?TableAlias.publication_date_end > ?", now)
				}).
				OrderExpr("?TableAlias.publication_date_start DESC, ?TableAlias.created_at DESC, ?TableAlias.id DESC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, criteria.Value)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Key: string(criteria.Field) + "=" + criteria.Value}
	}
	return records[0], nil
}

func (r *bunRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Snapshot, error) {
	return r.listWhere(ctx, "?TableAlias.page_id = ?", pageID)
}

func (r *bunRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Snapshot, error) {
	return r.listWhere(ctx, "?TableAlias.site_id = ?", siteID)
}

func (r *bunRepository) listWhere(ctx context.Context, where string, id uuid.UUID) ([]*Snapshot, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where(where, id).
			OrderExpr("?TableAlias.publication_date_start DESC, ?TableAlias.created_at DESC, ?TableAlias.id DESC")
	}))
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return records, nil
}

func (r *bunRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.NewDelete().
		Model((*Snapshot)(nil)).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Key: key}
	}
	return fmt.Errorf("snapshot repository error: %w", err)
}
