package blocktypes

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

type templateSettings struct {
	Template string         `setting:"template"`
	Params   map[string]any `setting:"params"`
}

// TemplateRenderer renders a named template with the block settings.
type TemplateRenderer struct {
	templates interfaces.TemplateRenderer
}

func NewTemplateRenderer(templates interfaces.TemplateRenderer) *TemplateRenderer {
	return &TemplateRenderer{templates: templates}
}

func (*TemplateRenderer) Type() string { return "template" }

func (*TemplateRenderer) SettingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{"type": "string", "minLength": 1},
			"params":   map[string]any{"type": "object"},
		},
		"required": []any{"template"},
	}
}

func (r *TemplateRenderer) Render(_ context.Context, bc *render.BlockContext, w io.Writer) error {
	var settings templateSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil {
		return err
	}
	data := map[string]any{
		"block":    bc.Block,
		"page":     bc.Page,
		"settings": bc.Settings,
		"params":   settings.Params,
	}
	if _, err := r.templates.Render(settings.Template, data, w); err != nil {
		return fmt.Errorf("template %s: %w", settings.Template, err)
	}
	return nil
}
