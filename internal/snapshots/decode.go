package snapshots

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/validation"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// documentSchema lists the keys every producer must write. Value types are
// left open because the legacy encoding stores scalars as strings.
var documentSchema = validation.MustCompile(map[string]any{
	"type":     "object",
	"required": []any{"id", "name", "created_at", "updated_at", "blocks"},
	"properties": map[string]any{
		"id":     map[string]any{"type": "string", "minLength": 1},
		"name":   map[string]any{"type": []any{"string", "number"}},
		"blocks": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/block"}},
	},
	"$defs": map[string]any{
		"block": map[string]any{
			"type":     "object",
			"required": []any{"id", "type", "position"},
			"properties": map[string]any{
				"id":       map[string]any{"type": "string", "minLength": 1},
				"type":     map[string]any{"type": "string", "minLength": 1},
				"settings": map[string]any{"type": []any{"object", "array", "null"}},
				"blocks": map[string]any{
					"type":  []any{"array", "null"},
					"items": map[string]any{"$ref": "#/$defs/block"},
				},
			},
		},
	},
})

// document is a structurally validated content document.
type document struct {
	raw map[string]any
}

func parseDocument(content []byte) (*document, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrDocumentInvalid)
	}
	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentInvalid, err)
	}
	if err := documentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentInvalid, err)
	}
	return &document{raw: raw}, nil
}

// page decodes the page scalars. Blocks stay raw until requested.
func (d *document) page() (*pages.Page, error) {
	r := reader{path: "page", values: d.raw}
	page := &pages.Page{
		ID:              r.id("id"),
		SiteID:          r.optionalUUIDValue("site_id"),
		ParentID:        r.optionalID("parent_id"),
		TargetID:        r.optionalID("target_id"),
		Name:            r.str("name"),
		Title:           r.str("title"),
		Slug:            r.str("slug"),
		URL:             r.str("url"),
		CustomURL:       r.str("custom_url"),
		RouteName:       r.str("route_name"),
		PageAlias:       r.str("page_alias"),
		Type:            r.str("type"),
		TemplateCode:    r.str("template_code"),
		RequestMethod:   r.str("request_method"),
		Position:        r.integer("position", false),
		Enabled:         r.flag("enabled"),
		Decorate:        r.flag("decorate"),
		MetaKeyword:     r.str("meta_keyword"),
		MetaDescription: r.str("meta_description"),
		Javascript:      r.str("javascript"),
		Stylesheet:      r.str("stylesheet"),
		RawHeaders:      r.str("raw_headers"),
		CreatedAt:       r.timestamp("created_at", true),
		UpdatedAt:       r.timestamp("updated_at", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	return page, nil
}

func (d *document) rawBlocks() []any {
	list, _ := d.raw["blocks"].([]any)
	return list
}

// decodeBlocks rebuilds the nested block forest of a page.
func decodeBlocks(raw []any, pageID uuid.UUID) ([]*blocks.Block, error) {
	return decodeBlockList(raw, &pageID, nil, "blocks")
}

func decodeBlockList(raw []any, pageID *uuid.UUID, parentID *uuid.UUID, path string) ([]*blocks.Block, error) {
	out := make([]*blocks.Block, 0, len(raw))
	for i, item := range raw {
		values, ok := item.(map[string]any)
		if !ok {
			return nil, &FieldError{Path: fmt.Sprintf("%s[%d]", path, i), Value: item}
		}
		r := reader{path: fmt.Sprintf("%s[%d]", path, i), values: values}
		block := &blocks.Block{
			ID:        r.id("id"),
			PageID:    cloneID(pageID),
			ParentID:  cloneID(parentID),
			Kind:      blocks.Kind(r.str("kind")),
			Type:      r.str("type"),
			Name:      r.str("name"),
			Position:  r.integer("position", true),
			Enabled:   r.flag("enabled"),
			Settings:  r.settings("settings"),
			CreatedAt: r.timestamp("created_at", false),
			UpdatedAt: r.timestamp("updated_at", false),
		}
		if r.err != nil {
			return nil, r.err
		}
		if block.Kind == "" {
			block.Kind = inferKind(block, parentID)
		}
		if !block.Kind.Valid() {
			return nil, &FieldError{Path: r.path + ".kind", Value: block.Kind}
		}
		children, _ := values["blocks"].([]any)
		nested, err := decodeBlockList(children, pageID, &block.ID, r.path+".blocks")
		if err != nil {
			return nil, err
		}
		block.Children = nested
		out = append(out, block)
	}
	blocks.Sort(out)
	return out, nil
}

// inferKind classifies blocks from documents written before kinds existed:
// a named top level block is a container.
func inferKind(block *blocks.Block, parentID *uuid.UUID) blocks.Kind {
	if block.Type == blocks.TypeShared {
		return blocks.KindSharedReference
	}
	if parentID == nil && block.StringSetting(blocks.SettingName, block.Name) != "" {
		if block.Name == "" {
			block.Name = block.StringSetting(blocks.SettingName, "")
		}
		return blocks.KindContainer
	}
	return blocks.KindContent
}

// reader decodes scalar fields and keeps the first failure.
//
// Tolerance rules:
//   - integers accept JSON numbers without a fraction and base 10 strings;
//   - flags accept booleans, the numbers 0 and 1, and the strings "1", "0",
//     "true", "false" and "" (false); anything else is rejected;
//   - timestamps accept Unix seconds as numbers or strings and RFC 3339
//     strings; null, "" and 0 mean unset;
//   - ids accept uuid strings; null and "" mean unset when optional.
type reader struct {
	path   string
	values map[string]any
	err    error
}

func (r *reader) fail(key string, value any, cause error) {
	if r.err == nil {
		r.err = &FieldError{Path: r.path + "." + key, Value: value, Cause: cause}
	}
}

func (r *reader) str(key string) string {
	value, ok := r.values[key]
	if !ok || value == nil {
		return ""
	}
	if _, isBool := value.(bool); isBool {
		r.fail(key, value, fmt.Errorf("expected string"))
		return ""
	}
	text, err := cast.ToStringE(value)
	if err != nil {
		r.fail(key, value, err)
		return ""
	}
	return text
}

func (r *reader) integer(key string, required bool) int {
	value, ok := r.values[key]
	if !ok || value == nil {
		if required {
			r.fail(key, value, fmt.Errorf("required"))
		}
		return 0
	}
	switch typed := value.(type) {
	case bool:
		r.fail(key, value, fmt.Errorf("expected integer"))
		return 0
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			r.fail(key, value, err)
			return 0
		}
		return parsed
	case float64:
		if typed != math.Trunc(typed) {
			r.fail(key, value, fmt.Errorf("expected integer"))
			return 0
		}
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		r.fail(key, value, err)
		return 0
	}
	return parsed
}

func (r *reader) flag(key string) bool {
	value, ok := r.values[key]
	if !ok || value == nil {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true":
			return true
		case "0", "false", "":
			return false
		}
		r.fail(key, value, fmt.Errorf("ambiguous flag"))
		return false
	}
	number, err := cast.ToFloat64E(value)
	if err != nil {
		r.fail(key, value, err)
		return false
	}
	switch number {
	case 1:
		return true
	case 0:
		return false
	}
	r.fail(key, value, fmt.Errorf("ambiguous flag"))
	return false
}

func (r *reader) timestamp(key string, required bool) time.Time {
	value, ok := r.values[key]
	if !ok || value == nil {
		if required {
			r.fail(key, value, fmt.Errorf("required"))
		}
		return time.Time{}
	}
	var seconds int64
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return time.Time{}
		}
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			seconds = parsed
			break
		}
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			r.fail(key, value, err)
			return time.Time{}
		}
		return parsed.UTC()
	case bool:
		r.fail(key, value, fmt.Errorf("expected timestamp"))
		return time.Time{}
	default:
		parsed, err := cast.ToInt64E(value)
		if err != nil {
			r.fail(key, value, err)
			return time.Time{}
		}
		seconds = parsed
	}
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}

func (r *reader) id(key string) uuid.UUID {
	raw := r.str(key)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		r.fail(key, raw, err)
		return uuid.Nil
	}
	return parsed
}

func (r *reader) optionalID(key string) *uuid.UUID {
	raw := strings.TrimSpace(r.str(key))
	if raw == "" {
		return nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		r.fail(key, raw, err)
		return nil
	}
	return &parsed
}

func (r *reader) optionalUUIDValue(key string) uuid.UUID {
	if id := r.optionalID(key); id != nil {
		return *id
	}
	return uuid.Nil
}

// settings accepts an object, or an empty array written by encoders that
// cannot tell an empty map from an empty list.
func (r *reader) settings(key string) map[string]any {
	value, ok := r.values[key]
	if !ok || value == nil {
		return map[string]any{}
	}
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case []any:
		if len(typed) == 0 {
			return map[string]any{}
		}
	}
	r.fail(key, value, fmt.Errorf("expected object"))
	return nil
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
