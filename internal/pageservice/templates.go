package pageservice

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/adrg/frontmatter"
	"github.com/goliatone/go-pagecms/internal/domain"
)

// ContainerDefinition is a container slot declared by a page template.
type ContainerDefinition struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Template describes a page layout. Path is the name handed to the
// TemplateRenderer.
type Template struct {
	Code       string
	Name       string
	Path       string
	Containers []ContainerDefinition
	Source     string
}

type templateHeader struct {
	Code       string                `yaml:"code"`
	Name       string                `yaml:"name"`
	Containers []ContainerDefinition `yaml:"containers"`
}

// TemplateManager resolves template codes to definitions.
type TemplateManager struct {
	mu          sync.RWMutex
	defaultCode string
	templates   map[string]*Template
}

func NewTemplateManager(defaultCode string) *TemplateManager {
	return &TemplateManager{
		defaultCode: strings.TrimSpace(defaultCode),
		templates:   map[string]*Template{},
	}
}

// Add registers tpl, replacing any template with the same code.
func (m *TemplateManager) Add(tpl Template) error {
	code := strings.TrimSpace(tpl.Code)
	if code == "" {
		return fmt.Errorf("pageservice: template code required")
	}
	if strings.TrimSpace(tpl.Path) == "" {
		return fmt.Errorf("pageservice: template %s has no path", code)
	}
	tpl.Code = code
	if tpl.Name == "" {
		tpl.Name = code
	}
	tpl.Containers = append([]ContainerDefinition(nil), tpl.Containers...)
	m.mu.Lock()
	m.templates[code] = &tpl
	m.mu.Unlock()
	return nil
}

// Get returns the template for code. Unknown or empty codes use the default
// template; a missing default is an internal error.
func (m *TemplateManager) Get(code string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tpl, ok := m.templates[strings.TrimSpace(code)]; ok {
		return tpl, nil
	}
	if tpl, ok := m.templates[m.defaultCode]; ok {
		return tpl, nil
	}
	return nil, domain.NewInternalError(fmt.Sprintf("default template %q is not registered", m.defaultCode))
}

// Codes lists registered template codes.
func (m *TemplateManager) Codes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.templates))
	for code := range m.templates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Load reads every file matching pattern in fsys. Each file opens with a
// YAML front matter block naming its code and containers, followed by the
// template body. A file without a code uses its base name.
func (m *TemplateManager) Load(fsys fs.FS, pattern string) ([]*Template, error) {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	loaded := make([]*Template, 0, len(matches))
	for _, name := range matches {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		var header templateHeader
		body, err := frontmatter.Parse(bytes.NewReader(raw), &header)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		code := header.Code
		if code == "" {
			code = strings.TrimSuffix(path.Base(name), path.Ext(name))
		}
		tpl := Template{
			Code:       code,
			Name:       header.Name,
			Path:       name,
			Containers: header.Containers,
			Source:     string(body),
		}
		if err := m.Add(tpl); err != nil {
			return nil, err
		}
		stored, _ := m.Get(code)
		loaded = append(loaded, stored)
	}
	return loaded, nil
}
