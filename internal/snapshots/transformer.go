package snapshots

import (
	"fmt"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
)

type IDGenerator func() uuid.UUID

type TransformerOption func(*Transformer)

func WithTransformerClock(clock func() time.Time) TransformerOption {
	return func(t *Transformer) {
		if clock != nil {
			t.now = clock
		}
	}
}

func WithTransformerIDGenerator(generator IDGenerator) TransformerOption {
	return func(t *Transformer) {
		if generator != nil {
			t.id = generator
		}
	}
}

// Transformer maps live pages to snapshots and snapshots back to read-only
// page views.
type Transformer struct {
	codec Codec
	now   func() time.Time
	id    IDGenerator
}

func NewTransformer(codec Codec, opts ...TransformerOption) *Transformer {
	if codec == nil {
		codec = TypedCodec{}
	}
	t := &Transformer{codec: codec, now: time.Now, id: uuid.New}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Codec returns the codec used for new documents.
func (t *Transformer) Codec() Codec {
	return t.codec
}

// Create serializes page and its block forest into an enabled snapshot whose
// publication window starts now. It does not persist anything.
func (t *Transformer) Create(page *pages.Page, roots []*blocks.Block) (*Snapshot, error) {
	if page == nil {
		return nil, ErrPageRequired
	}
	if page.SiteID == uuid.Nil {
		return nil, domain.NewInternalError(fmt.Sprintf("page %s has no site and cannot be published", page.ID))
	}
	content, err := t.codec.Encode(page, roots)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	now := t.now().UTC()
	snapshot := &Snapshot{
		ID:                   t.id(),
		SiteID:               page.SiteID,
		PageID:               page.ID,
		ParentID:             cloneID(page.ParentID),
		RouteName:            page.RouteName,
		PageAlias:            page.PageAlias,
		Type:                 page.Type,
		Name:                 page.Name,
		URL:                  page.URL,
		Position:             page.Position,
		Enabled:              true,
		Decorate:             page.Decorate,
		Codec:                t.codec.Name(),
		Content:              string(content),
		PublicationDateStart: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return snapshot, nil
}

// Load validates the content document and returns a lazy page view. A
// broken document fails before any page is returned.
func (t *Transformer) Load(snapshot *Snapshot) (*PageProxy, error) {
	if snapshot == nil {
		return nil, &NotFoundError{Key: "nil"}
	}
	doc, err := parseDocument([]byte(snapshot.Content))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", snapshot.ID, err)
	}
	page, err := doc.page()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", snapshot.ID, err)
	}
	if page.SiteID == uuid.Nil {
		page.SiteID = snapshot.SiteID
	}
	page.Edited = false
	return &PageProxy{snapshot: snapshot, page: page, raw: doc.rawBlocks()}, nil
}
