package blocktypes

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Text formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

type textSettings struct {
	Content string `setting:"content"`
	Format  string `setting:"format"`
}

// TextRenderer renders editor content. Markdown and html are sanitized
// before output; plain text is escaped.
type TextRenderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

func (*TextRenderer) Type() string { return "text" }

func (*TextRenderer) DefaultSettings() map[string]any {
	return map[string]any{"content": "", "format": FormatMarkdown}
}

func (*TextRenderer) SettingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
			"format":  map[string]any{"enum": []any{FormatMarkdown, FormatHTML, FormatText}},
		},
		"required": []any{"content"},
	}
}

func (r *TextRenderer) Render(_ context.Context, bc *render.BlockContext, w io.Writer) error {
	var settings textSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil {
		return err
	}
	switch strings.ToLower(settings.Format) {
	case FormatText:
		_, err := io.WriteString(w, "<p>"+html.EscapeString(settings.Content)+"</p>")
		return err
	case FormatHTML:
		_, err := w.Write(r.policy.SanitizeBytes([]byte(settings.Content)))
		return err
	default:
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(settings.Content), &buf); err != nil {
			return fmt.Errorf("markdown: %w", err)
		}
		_, err := w.Write(r.policy.SanitizeBytes(buf.Bytes()))
		return err
	}
}
