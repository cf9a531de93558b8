package blocktypes

import (
	"context"
	"html/template"
	"io"
	"strings"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/render"
)

// LayoutPlaceholder marks where children go in a container layout.
const LayoutPlaceholder = "{{ CONTENT }}"

type containerSettings struct {
	Name   string `setting:"name"`
	Code   string `setting:"code"`
	Layout string `setting:"layout"`
	Class  string `setting:"class"`
}

// ContainerRenderer wraps the children of a container in its layout.
type ContainerRenderer struct{}

func NewContainerRenderer() *ContainerRenderer {
	return &ContainerRenderer{}
}

func (*ContainerRenderer) Type() string { return blocks.TypeContainer }

func (*ContainerRenderer) DefaultSettings() map[string]any {
	return map[string]any{"layout": LayoutPlaceholder, "class": "cms-container"}
}

func (*ContainerRenderer) SettingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string", "minLength": 1},
			"layout": map[string]any{"type": "string"},
			"class":  map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
}

func (*ContainerRenderer) Render(ctx context.Context, bc *render.BlockContext, w io.Writer) error {
	var settings containerSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil {
		return err
	}
	before, after, found := strings.Cut(settings.Layout, LayoutPlaceholder)
	if !found {
		before, after = "", ""
	}
	if _, err := io.WriteString(w, before); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `<div class="`+template.HTMLEscapeString(settings.Class)+`" id="cms-block-`+bc.Block.ID.String()+`">`); err != nil {
		return err
	}
	if err := bc.RenderChildren(ctx, w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "</div>"); err != nil {
		return err
	}
	_, err := io.WriteString(w, after)
	return err
}
