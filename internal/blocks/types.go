package blocks

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Kind is decided when a block is created and never inferred afterwards.
type Kind string

const (
	// KindContainer is a named top level slot referenced by a template.
	KindContainer Kind = "container"
	// KindContent is a regular block rendered by its type.
	KindContent Kind = "content"
	// KindSharedReference points at a block that belongs to no page.
	KindSharedReference Kind = "shared_reference"
)

const (
	TypeContainer = "container"
	TypeShared    = "shared_block"

	SettingName    = "name"
	SettingBlockID = "block_id"
	SettingCode    = "code"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindContainer, KindContent, KindSharedReference:
		return true
	}
	return false
}

// Block is a node of a page block tree, or a shared block when PageID is nil.
type Block struct {
	bun.BaseModel `bun:"table:page_blocks,alias:bl"`

	ID        uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	PageID    *uuid.UUID     `bun:"page_id,type:uuid" json:"page_id,omitempty"`
	ParentID  *uuid.UUID     `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	Kind      Kind           `bun:"kind,notnull" json:"kind"`
	Type      string         `bun:"type,notnull" json:"type"`
	Name      string         `bun:"name" json:"name,omitempty"`
	Position  int            `bun:"position,notnull,default:1" json:"position"`
	Enabled   bool           `bun:"enabled,notnull,default:true" json:"enabled"`
	Settings  map[string]any `bun:"settings,type:jsonb" json:"settings,omitempty"`
	CreatedAt time.Time      `bun:",nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time      `bun:",nullzero,default:current_timestamp" json:"updated_at"`

	Children []*Block `bun:"-" json:"children,omitempty"`
}

func (b *Block) IsContainer() bool {
	return b != nil && b.Kind == KindContainer
}

// IsShared reports whether the block belongs to no page.
func (b *Block) IsShared() bool {
	return b != nil && b.PageID == nil
}

// IsRoot reports whether the block sits at the top of its page tree.
func (b *Block) IsRoot() bool {
	return b != nil && b.ParentID == nil
}

// Setting returns the raw setting value for key.
func (b *Block) Setting(key string) (any, bool) {
	if b == nil || b.Settings == nil {
		return nil, false
	}
	value, ok := b.Settings[key]
	return value, ok
}

// StringSetting returns a trimmed string setting, or fallback.
func (b *Block) StringSetting(key, fallback string) string {
	value, ok := b.Setting(key)
	if !ok {
		return fallback
	}
	text, ok := value.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return fallback
	}
	return strings.TrimSpace(text)
}

// SharedBlockID returns the referenced shared block id of a shared reference.
func (b *Block) SharedBlockID() (uuid.UUID, bool) {
	raw := b.StringSetting(SettingBlockID, "")
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Clone copies a single block without its children.
func Clone(src *Block) *Block {
	if src == nil {
		return nil
	}
	cloned := *src
	cloned.PageID = cloneUUID(src.PageID)
	cloned.ParentID = cloneUUID(src.ParentID)
	cloned.Settings = CloneSettings(src.Settings)
	cloned.Children = nil
	return &cloned
}

// CloneTree copies a block and all of its descendants.
func CloneTree(src *Block) *Block {
	if src == nil {
		return nil
	}
	cloned := Clone(src)
	if len(src.Children) > 0 {
		cloned.Children = make([]*Block, 0, len(src.Children))
		for _, child := range src.Children {
			cloned.Children = append(cloned.Children, CloneTree(child))
		}
	}
	return cloned
}

// CloneSettings deep copies nested maps and slices of a settings bag.
func CloneSettings(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneSettings(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]string:
		return maps.Clone(typed)
	default:
		return value
	}
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
