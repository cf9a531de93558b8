package pageservice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// DefaultCode is the code of the service used for untyped pages.
const DefaultCode = "default"

// PageData is handed to page templates.
type PageData struct {
	Site       *sites.Site
	Page       *pages.Page
	Template   *Template
	Mode       manager.Mode
	Containers map[string]template.HTML
	Params     map[string]any
}

// DefaultService renders the containers declared by the page template and
// then the template itself.
type DefaultService struct {
	code      string
	templates *TemplateManager
	renderer  *render.Renderer
	output    interfaces.TemplateRenderer
	logger    interfaces.Logger
}

type DefaultOption func(*DefaultService)

func WithCode(code string) DefaultOption {
	return func(s *DefaultService) {
		if code != "" {
			s.code = code
		}
	}
}

func WithLogger(logger interfaces.Logger) DefaultOption {
	return func(s *DefaultService) {
		s.logger = logging.Ensure(logger)
	}
}

func NewDefaultService(templates *TemplateManager, renderer *render.Renderer, output interfaces.TemplateRenderer, opts ...DefaultOption) *DefaultService {
	s := &DefaultService{
		code:      DefaultCode,
		templates: templates,
		renderer:  renderer,
		output:    output,
		logger:    logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DefaultService) Code() string { return s.code }

func (s *DefaultService) Execute(ctx context.Context, w http.ResponseWriter, r *http.Request, m *manager.Manager, source manager.PageSource, params map[string]any) error {
	page := source.Page()
	tpl, err := s.templates.Get(page.TemplateCode)
	if err != nil {
		return err
	}

	containers := make(map[string]template.HTML, len(tpl.Containers))
	for _, def := range tpl.Containers {
		var buf bytes.Buffer
		if err := s.renderer.RenderContainer(ctx, m, source, def.Code, &buf); err != nil {
			return fmt.Errorf("container %s: %w", def.Code, err)
		}
		containers[def.Code] = template.HTML(buf.String())
	}

	site, _ := sites.FromContext(ctx)
	data := PageData{
		Site:       site,
		Page:       page,
		Template:   tpl,
		Mode:       m.Mode(),
		Containers: containers,
		Params:     params,
	}
	var body bytes.Buffer
	if _, err := s.output.Render(tpl.Path, data, &body); err != nil {
		return err
	}

	header := w.Header()
	for name, values := range page.Headers() {
		header[name] = values
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/html; charset=utf-8")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		logging.ForContext(s.logger, ctx).Warn("pageservice.write.failed", "page_id", page.ID, "error", err)
	}
	return nil
}
