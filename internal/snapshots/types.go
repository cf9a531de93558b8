package snapshots

import (
	"time"

	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Snapshot is an immutable published copy of a page and its block tree.
type Snapshot struct {
	bun.BaseModel `bun:"table:page_snapshots,alias:ps"`

	ID                   uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	SiteID               uuid.UUID  `bun:"site_id,type:uuid,notnull" json:"site_id"`
	PageID               uuid.UUID  `bun:"page_id,type:uuid,notnull" json:"page_id"`
	ParentID             *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	RouteName            string     `bun:"route_name" json:"route_name,omitempty"`
	PageAlias            string     `bun:"page_alias" json:"page_alias,omitempty"`
	Type                 string     `bun:"type" json:"type,omitempty"`
	Name                 string     `bun:"name" json:"name"`
	URL                  string     `bun:"url" json:"url,omitempty"`
	Position             int        `bun:"position,notnull,default:1" json:"position"`
	Enabled              bool       `bun:"enabled,notnull" json:"enabled"`
	Decorate             bool       `bun:"decorate,notnull" json:"decorate"`
	Codec                string     `bun:"codec" json:"codec,omitempty"`
	Content              string     `bun:"content,type:text" json:"content"`
	PublicationDateStart time.Time  `bun:"publication_date_start,notnull" json:"publication_date_start"`
	PublicationDateEnd   *time.Time `bun:"publication_date_end,nullzero" json:"publication_date_end,omitempty"`
	CreatedAt            time.Time  `bun:",nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt            time.Time  `bun:",nullzero,default:current_timestamp" json:"updated_at"`
}

// IsCurrent reports whether the snapshot serves traffic at now.
func (s *Snapshot) IsCurrent(now time.Time) bool {
	if s == nil || !s.Enabled {
		return false
	}
	if s.PublicationDateStart.After(now) {
		return false
	}
	return s.PublicationDateEnd == nil || s.PublicationDateEnd.After(now)
}

// IsClosed reports whether the publication window ended at or before now.
func (s *Snapshot) IsClosed(now time.Time) bool {
	return s != nil && s.PublicationDateEnd != nil && !s.PublicationDateEnd.After(now)
}

// Value reads the lookup field from the snapshot row.
func (s *Snapshot) Value(field pages.Field) string {
	if s == nil {
		return ""
	}
	switch field {
	case pages.FieldID:
		return s.PageID.String()
	case pages.FieldURL:
		return s.URL
	case pages.FieldRouteName:
		return s.RouteName
	case pages.FieldName:
		return s.Name
	case pages.FieldAlias:
		return s.PageAlias
	}
	return ""
}

// Criteria selects the current snapshot of a page. A nil SiteID matches
// every site.
type Criteria struct {
	SiteID uuid.UUID
	Field  pages.Field
	Value  string
}

func column(field pages.Field) (string, bool) {
	switch field {
	case pages.FieldID:
		return "page_id", true
	case pages.FieldURL, pages.FieldRouteName, pages.FieldName, pages.FieldAlias:
		return field.Column(), true
	}
	return "", false
}

func clone(src *Snapshot) *Snapshot {
	if src == nil {
		return nil
	}
	cloned := *src
	if src.ParentID != nil {
		parent := *src.ParentID
		cloned.ParentID = &parent
	}
	if src.PublicationDateEnd != nil {
		end := *src.PublicationDateEnd
		cloned.PublicationDateEnd = &end
	}
	return &cloned
}
