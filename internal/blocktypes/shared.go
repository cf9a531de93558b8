package blocktypes

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/google/uuid"
)

// maxSharedDepth bounds nested shared block references.
const maxSharedDepth = 8

type sharedDepthKey struct{}

// ErrSharedDepthExceeded is returned when shared references nest too deep,
// which happens when a shared block references itself.
var ErrSharedDepthExceeded = fmt.Errorf("blocktypes: shared block references nested deeper than %d", maxSharedDepth)

type sharedSettings struct {
	BlockID string `setting:"block_id"`
}

// SharedBlockRenderer renders the shared block a reference points at.
type SharedBlockRenderer struct{}

func NewSharedBlockRenderer() *SharedBlockRenderer {
	return &SharedBlockRenderer{}
}

func (*SharedBlockRenderer) Type() string { return blocks.TypeShared }

func (*SharedBlockRenderer) SettingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"block_id": map[string]any{"type": "string", "format": "uuid"},
		},
		"required": []any{"block_id"},
	}
}

// CacheKeys adds the target id so fragments that embed a shared block can be
// flushed by that id alone.
func (*SharedBlockRenderer) CacheKeys(bc *render.BlockContext) cache.Keys {
	var settings sharedSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil || settings.BlockID == "" {
		return nil
	}
	return cache.Keys{"shared_block_id": settings.BlockID}
}

func (*SharedBlockRenderer) Render(ctx context.Context, bc *render.BlockContext, w io.Writer) error {
	var settings sharedSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil {
		return err
	}
	id, err := uuid.Parse(settings.BlockID)
	if err != nil {
		return fmt.Errorf("shared block reference: %w", err)
	}
	depth, _ := ctx.Value(sharedDepthKey{}).(int)
	if depth >= maxSharedDepth {
		return ErrSharedDepthExceeded
	}
	target, err := bc.Manager.GetBlock(ctx, id)
	if err != nil {
		return err
	}
	if !target.IsShared() {
		return blocks.ErrSharedTargetNotShared
	}
	return bc.RenderBlock(context.WithValue(ctx, sharedDepthKey{}, depth+1), target, w)
}
