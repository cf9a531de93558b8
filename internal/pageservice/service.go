package pageservice

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/manager"
)

// Service renders a page of one type into a response.
type Service interface {
	Code() string
	Execute(ctx context.Context, w http.ResponseWriter, r *http.Request, m *manager.Manager, source manager.PageSource, params map[string]any) error
}

// Registry maps page types to services. Pages without a type use the
// default service.
type Registry struct {
	mu          sync.RWMutex
	defaultCode string
	services    map[string]Service
}

func NewRegistry(defaultCode string) *Registry {
	defaultCode = strings.TrimSpace(defaultCode)
	if defaultCode == "" {
		defaultCode = DefaultCode
	}
	return &Registry{defaultCode: defaultCode, services: map[string]Service{}}
}

func (r *Registry) Register(service Service) error {
	code := strings.TrimSpace(service.Code())
	if code == "" {
		return fmt.Errorf("pageservice: service code required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[code]; exists {
		return fmt.Errorf("pageservice: service %s already registered", code)
	}
	r.services[code] = service
	return nil
}

// Get returns the service for pageType. A type with no registered service
// is an internal error.
func (r *Registry) Get(pageType string) (Service, error) {
	code := strings.TrimSpace(pageType)
	if code == "" {
		code = r.defaultCode
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	service, ok := r.services[code]
	if !ok {
		return nil, domain.NewInternalError(fmt.Sprintf("no page service registered for type %q", code))
	}
	return service, nil
}

// Codes lists the registered service codes.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.services))
	for code := range r.services {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Execute dispatches source to the service of its page type.
func (r *Registry) Execute(ctx context.Context, w http.ResponseWriter, req *http.Request, m *manager.Manager, source manager.PageSource, params map[string]any) error {
	service, err := r.Get(source.Page().Type)
	if err != nil {
		return err
	}
	return service.Execute(ctx, w, req, m, source, params)
}
