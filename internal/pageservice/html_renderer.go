package pageservice

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sync"
)

// HTMLTemplateRenderer renders templates registered by name with
// html/template.
type HTMLTemplateRenderer struct {
	mu        sync.RWMutex
	funcs     template.FuncMap
	templates map[string]*template.Template
}

func NewHTMLTemplateRenderer(funcs template.FuncMap) *HTMLTemplateRenderer {
	return &HTMLTemplateRenderer{funcs: funcs, templates: map[string]*template.Template{}}
}

// Add parses source under name.
func (r *HTMLTemplateRenderer) Add(name, source string) error {
	parsed, err := template.New(name).Funcs(r.funcs).Parse(source)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	r.mu.Lock()
	r.templates[name] = parsed
	r.mu.Unlock()
	return nil
}

// Install adds every template known to manager.
func (r *HTMLTemplateRenderer) Install(manager *TemplateManager) error {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	for _, tpl := range manager.templates {
		if tpl.Source == "" {
			continue
		}
		if err := r.Add(tpl.Path, tpl.Source); err != nil {
			return err
		}
	}
	return nil
}

func (r *HTMLTemplateRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	r.mu.RLock()
	tpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	for _, w := range out {
		if w == nil {
			continue
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
