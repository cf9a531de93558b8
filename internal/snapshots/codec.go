package snapshots

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/google/uuid"
)

// Codec serializes a live page and its block forest into a content document.
// Every codec produces the same logical shape, so one decoder reads them all.
type Codec interface {
	Name() string
	Encode(page *pages.Page, roots []*blocks.Block) ([]byte, error)
}

// CodecFor returns the codec registered under name.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", runtimeconfig.CodecTyped:
		return TypedCodec{}, nil
	case runtimeconfig.CodecMap:
		return MapCodec{}, nil
	}
	return nil, ErrCodecUnknown
}

// TypedCodec writes native integers, booleans and Unix timestamps. It is the
// canonical representation for new documents.
type TypedCodec struct{}

type pageDocument struct {
	ID              string           `json:"id"`
	SiteID          string           `json:"site_id"`
	ParentID        *string          `json:"parent_id"`
	TargetID        *string          `json:"target_id"`
	Name            string           `json:"name"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	URL             string           `json:"url"`
	CustomURL       string           `json:"custom_url"`
	RouteName       string           `json:"route_name"`
	PageAlias       string           `json:"page_alias"`
	Type            string           `json:"type"`
	TemplateCode    string           `json:"template_code"`
	RequestMethod   string           `json:"request_method"`
	Position        int              `json:"position"`
	Enabled         bool             `json:"enabled"`
	Decorate        bool             `json:"decorate"`
	MetaKeyword     string           `json:"meta_keyword"`
	MetaDescription string           `json:"meta_description"`
	Javascript      string           `json:"javascript"`
	Stylesheet      string           `json:"stylesheet"`
	RawHeaders      string           `json:"raw_headers"`
	CreatedAt       int64            `json:"created_at"`
	UpdatedAt       int64            `json:"updated_at"`
	Blocks          []*blockDocument `json:"blocks"`
}

type blockDocument struct {
	ID        string           `json:"id"`
	ParentID  *string          `json:"parent_id"`
	Kind      string           `json:"kind"`
	Type      string           `json:"type"`
	Name      string           `json:"name"`
	Position  int              `json:"position"`
	Enabled   bool             `json:"enabled"`
	Settings  map[string]any   `json:"settings"`
	CreatedAt int64            `json:"created_at"`
	UpdatedAt int64            `json:"updated_at"`
	Blocks    []*blockDocument `json:"blocks"`
}

func (TypedCodec) Name() string { return runtimeconfig.CodecTyped }

func (TypedCodec) Encode(page *pages.Page, roots []*blocks.Block) ([]byte, error) {
	if page == nil {
		return nil, ErrPageRequired
	}
	doc := pageDocument{
		ID:              page.ID.String(),
		SiteID:          page.SiteID.String(),
		ParentID:        optionalID(page.ParentID),
		TargetID:        optionalID(page.TargetID),
		Name:            page.Name,
		Title:           page.Title,
		Slug:            page.Slug,
		URL:             page.URL,
		CustomURL:       page.CustomURL,
		RouteName:       page.RouteName,
		PageAlias:       page.PageAlias,
		Type:            page.Type,
		TemplateCode:    page.TemplateCode,
		RequestMethod:   page.RequestMethod,
		Position:        page.Position,
		Enabled:         page.Enabled,
		Decorate:        page.Decorate,
		MetaKeyword:     page.MetaKeyword,
		MetaDescription: page.MetaDescription,
		Javascript:      page.Javascript,
		Stylesheet:      page.Stylesheet,
		RawHeaders:      page.RawHeaders,
		CreatedAt:       unix(page.CreatedAt),
		UpdatedAt:       unix(page.UpdatedAt),
		Blocks:          typedBlocks(roots),
	}
	return json.Marshal(doc)
}

func typedBlocks(list []*blocks.Block) []*blockDocument {
	out := make([]*blockDocument, 0, len(list))
	for _, block := range list {
		if block == nil {
			continue
		}
		out = append(out, &blockDocument{
			ID:        block.ID.String(),
			ParentID:  optionalID(block.ParentID),
			Kind:      string(block.Kind),
			Type:      block.Type,
			Name:      block.Name,
			Position:  block.Position,
			Enabled:   block.Enabled,
			Settings:  blocks.CloneSettings(block.Settings),
			CreatedAt: unix(block.CreatedAt),
			UpdatedAt: unix(block.UpdatedAt),
			Blocks:    typedBlocks(block.Children),
		})
	}
	return out
}

// MapCodec builds the document by hand with the legacy scalar encoding:
// timestamps and numbers as decimal strings and flags as "1" or "0".
type MapCodec struct{}

func (MapCodec) Name() string { return runtimeconfig.CodecMap }

func (MapCodec) Encode(page *pages.Page, roots []*blocks.Block) ([]byte, error) {
	if page == nil {
		return nil, ErrPageRequired
	}
	doc := map[string]any{
		"id":               page.ID.String(),
		"site_id":          page.SiteID.String(),
		"parent_id":        legacyID(page.ParentID),
		"target_id":        legacyID(page.TargetID),
		"name":             page.Name,
		"title":            page.Title,
		"slug":             page.Slug,
		"url":              page.URL,
		"custom_url":       page.CustomURL,
		"route_name":       page.RouteName,
		"page_alias":       page.PageAlias,
		"type":             page.Type,
		"template_code":    page.TemplateCode,
		"request_method":   page.RequestMethod,
		"position":         strconv.Itoa(page.Position),
		"enabled":          legacyFlag(page.Enabled),
		"decorate":         legacyFlag(page.Decorate),
		"meta_keyword":     page.MetaKeyword,
		"meta_description": page.MetaDescription,
		"javascript":       page.Javascript,
		"stylesheet":       page.Stylesheet,
		"raw_headers":      page.RawHeaders,
		"created_at":       strconv.FormatInt(unix(page.CreatedAt), 10),
		"updated_at":       strconv.FormatInt(unix(page.UpdatedAt), 10),
		"blocks":           mapBlocks(roots),
	}
	return json.Marshal(doc)
}

func mapBlocks(list []*blocks.Block) []any {
	out := make([]any, 0, len(list))
	for _, block := range list {
		if block == nil {
			continue
		}
		out = append(out, map[string]any{
			"id":         block.ID.String(),
			"parent_id":  legacyID(block.ParentID),
			"kind":       string(block.Kind),
			"type":       block.Type,
			"name":       block.Name,
			"position":   strconv.Itoa(block.Position),
			"enabled":    legacyFlag(block.Enabled),
			"settings":   blocks.CloneSettings(block.Settings),
			"created_at": strconv.FormatInt(unix(block.CreatedAt), 10),
			"updated_at": strconv.FormatInt(unix(block.UpdatedAt), 10),
			"blocks":     mapBlocks(block.Children),
		})
	}
	return out
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	value := id.String()
	return &value
}

func legacyID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func legacyFlag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
