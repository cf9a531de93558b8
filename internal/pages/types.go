package pages

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RouteCMS is the route name carried by pages addressed purely by url.
	RouteCMS = "page_slug"
	// RouteHomepage is the hybrid route that still owns the root url.
	RouteHomepage = "homepage"
	// InternalRoutePrefix marks pages that are never addressed directly,
	// such as error pages.
	InternalRoutePrefix = "_page_internal_"
)

// Page is a node of the per-site page tree.
type Page struct {
	bun.BaseModel `bun:"table:page_pages,alias:pg"`

	ID              uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	SiteID          uuid.UUID  `bun:"site_id,type:uuid,notnull" json:"site_id"`
	ParentID        *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	TargetID        *uuid.UUID `bun:"target_id,type:uuid" json:"target_id,omitempty"`
	RouteName       string     `bun:"route_name" json:"route_name,omitempty"`
	PageAlias       string     `bun:"page_alias" json:"page_alias,omitempty"`
	Name            string     `bun:"name,notnull" json:"name"`
	Title           string     `bun:"title" json:"title,omitempty"`
	Slug            string     `bun:"slug" json:"slug,omitempty"`
	URL             string     `bun:"url" json:"url,omitempty"`
	CustomURL       string     `bun:"custom_url" json:"custom_url,omitempty"`
	RequestMethod   string     `bun:"request_method" json:"request_method,omitempty"`
	Type            string     `bun:"type" json:"type,omitempty"`
	TemplateCode    string     `bun:"template_code" json:"template_code,omitempty"`
	Position        int        `bun:"position,notnull,default:1" json:"position"`
	Enabled         bool       `bun:"enabled,notnull,default:true" json:"enabled"`
	Decorate        bool       `bun:"decorate,notnull,default:true" json:"decorate"`
	Edited          bool       `bun:"edited,notnull,default:true" json:"edited"`
	MetaKeyword     string     `bun:"meta_keyword" json:"meta_keyword,omitempty"`
	MetaDescription string     `bun:"meta_description" json:"meta_description,omitempty"`
	Javascript      string     `bun:"javascript" json:"javascript,omitempty"`
	Stylesheet      string     `bun:"stylesheet" json:"stylesheet,omitempty"`
	RawHeaders      string     `bun:"raw_headers" json:"raw_headers,omitempty"`
	CreatedAt       time.Time  `bun:",nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time  `bun:",nullzero,default:current_timestamp" json:"updated_at"`
}

// Field names a lookup column.
type Field string

const (
	FieldID        Field = "id"
	FieldURL       Field = "url"
	FieldRouteName Field = "route_name"
	FieldName      Field = "name"
	FieldAlias     Field = "page_alias"
)

// Column returns the storage column for the field.
func (f Field) Column() string {
	return string(f)
}

// Value reads the field from p.
func (p *Page) Value(field Field) string {
	if p == nil {
		return ""
	}
	switch field {
	case FieldID:
		return p.ID.String()
	case FieldURL:
		return p.URL
	case FieldRouteName:
		return p.RouteName
	case FieldName:
		return p.Name
	case FieldAlias:
		return p.PageAlias
	default:
		return ""
	}
}

// IsHybrid reports whether the page decorates an application route.
func (p *Page) IsHybrid() bool {
	return p != nil && p.RouteName != "" && p.RouteName != RouteCMS
}

// IsCMS reports whether the page is addressed by url only.
func (p *Page) IsCMS() bool {
	return p != nil && (p.RouteName == "" || p.RouteName == RouteCMS)
}

// IsInternal reports whether the page is an internal (error) page.
func (p *Page) IsInternal() bool {
	return p != nil && strings.HasPrefix(p.RouteName, InternalRoutePrefix)
}

// IsDynamic reports whether the url contains route placeholders.
func (p *Page) IsDynamic() bool {
	return p != nil && strings.Contains(p.URL, "{")
}

// AllowsMethod checks method against the pipe separated request method list.
// An empty list accepts every method.
func (p *Page) AllowsMethod(method string) bool {
	if p == nil || strings.TrimSpace(p.RequestMethod) == "" {
		return true
	}
	for _, allowed := range strings.Split(p.RequestMethod, "|") {
		if strings.EqualFold(strings.TrimSpace(allowed), method) {
			return true
		}
	}
	return false
}

// Headers parses RawHeaders, one "Name: value" pair per line.
func (p *Page) Headers() http.Header {
	headers := http.Header{}
	if p == nil {
		return headers
	}
	for _, line := range strings.Split(p.RawHeaders, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers
}

// Clone returns a deep copy of p.
func Clone(p *Page) *Page {
	if p == nil {
		return nil
	}
	copied := *p
	copied.ParentID = cloneUUID(p.ParentID)
	copied.TargetID = cloneUUID(p.TargetID)
	return &copied
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
