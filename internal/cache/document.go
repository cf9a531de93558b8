package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// DocumentRecord is one row of page_cache_elements. The raw key map is kept
// next to the indexed required keys, which form the lookup predicate.
type DocumentRecord struct {
	bun.BaseModel `bun:"table:page_cache_elements,alias:ce"`

	ID             string         `bun:"id,pk"`
	BlockID        string         `bun:"block_id,notnull"`
	PageID         string         `bun:"page_id,notnull"`
	Manager        string         `bun:"manager,notnull"`
	UpdatedAt      string         `bun:"updated_at,notnull"`
	Keys           map[string]any `bun:"keys,type:jsonb"`
	ContextualKeys map[string]any `bun:"contextual_keys,type:jsonb"`
	Value          string         `bun:"value"`
	TTL            int64          `bun:"ttl,notnull"`
	// Timeout is the last unix second the record is served. Zero never
	// expires.
	Timeout   int64     `bun:"timeout,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r *DocumentRecord) element() *Element {
	return &Element{
		Keys:           Keys(r.Keys),
		Value:          r.Value,
		TTL:            time.Duration(r.TTL) * time.Second,
		CreatedAt:      r.CreatedAt,
		ContextualKeys: Keys(r.ContextualKeys),
	}
}

// DocumentBackend stores elements as rows queried by their keys.
type DocumentBackend struct {
	opts options
	db   bun.IDB
}

func NewDocumentBackend(db bun.IDB, opts ...Option) *DocumentBackend {
	return &DocumentBackend{opts: newOptions(opts), db: db}
}

// CreateTable creates page_cache_elements when missing.
func (b *DocumentBackend) CreateTable(ctx context.Context) error {
	if _, err := b.db.NewCreateTable().Model((*DocumentRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := b.db.NewCreateIndex().
		Model((*DocumentRecord)(nil)).
		Index("page_cache_elements_keys_idx").
		IfNotExists().
		Column("block_id", "page_id", "manager", "updated_at").
		Exec(ctx)
	return err
}

func (*DocumentBackend) Name() string { return "document" }

func (b *DocumentBackend) Get(ctx context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	now := b.opts.now().UTC().Unix()
	flat := StringKeys(keys)
	var records []*DocumentRecord
	err := b.db.NewSelect().
		Model(&records).
		Where("?TableAlias.block_id = ?", flat[KeyBlockID]).
		Where("?TableAlias.page_id = ?", flat[KeyPageID]).
		Where("?TableAlias.manager = ?", flat[KeyManager]).
		Where("?TableAlias.updated_at = ?", flat[KeyUpdatedAt]).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.timeout = 0").WhereOr("?TableAlias.timeout >= ?", now)
		}).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, backendError(b.Name(), "get", err)
	}
	for _, record := range records {
		element := record.element()
		if element.Keys.Matches(keys) && keys.Matches(element.Keys) {
			return element, nil
		}
	}
	return nil, ErrCacheMiss
}

func (b *DocumentBackend) Set(ctx context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	now := b.opts.now().UTC()
	element := newElement(keys, value, ttl, contextual, now)
	flat := StringKeys(keys)
	record := &DocumentRecord{
		ID:             HashKeys(keys),
		BlockID:        flat[KeyBlockID],
		PageID:         flat[KeyPageID],
		Manager:        flat[KeyManager],
		UpdatedAt:      flat[KeyUpdatedAt],
		Keys:           map[string]any(element.Keys),
		ContextualKeys: map[string]any(element.ContextualKeys),
		Value:          value,
		TTL:            int64(ttl / time.Second),
		CreatedAt:      now,
	}
	if ttl > 0 {
		record.Timeout = now.Add(ttl).Unix()
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	_, err := b.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("keys = EXCLUDED.keys").
		Set("contextual_keys = EXCLUDED.contextual_keys").
		Set("ttl = EXCLUDED.ttl").
		Set("timeout = EXCLUDED.timeout").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return nil, backendError(b.Name(), "set", err)
	}
	return element, nil
}

func (b *DocumentBackend) Has(ctx context.Context, keys Keys) (bool, error) {
	_, err := b.Get(ctx, keys)
	return hasFromGet(err)
}

// Flush deletes every row whose keys contain keys. Indexed keys narrow the
// query; the others are matched on the stored key map.
func (b *DocumentBackend) Flush(ctx context.Context, keys Keys) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	var records []*DocumentRecord
	query := b.db.NewSelect().Model(&records)
	for name, value := range StringKeys(keys) {
		switch name {
		case KeyBlockID, KeyPageID, KeyManager, KeyUpdatedAt:
			query = query.Where("?TableAlias.? = ?", bun.Ident(name), value)
		}
	}
	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, backendError(b.Name(), "flush", err)
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if Keys(record.Keys).Matches(keys) {
			ids = append(ids, record.ID)
		}
	}
	if len(ids) == 0 {
		return true, nil
	}
	if _, err := b.db.NewDelete().
		Model((*DocumentRecord)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return false, backendError(b.Name(), "flush", err)
	}
	return true, nil
}

func (b *DocumentBackend) FlushAll(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	if _, err := b.db.NewDelete().Model((*DocumentRecord)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return false, backendError(b.Name(), "flush_all", err)
	}
	return true, nil
}

func (*DocumentBackend) IsContextual() bool { return false }
