package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-pagecms/internal/identity"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	slug "github.com/goliatone/go-slug"
	"github.com/google/uuid"
)

// Service applies page mutations. Every mutation marks the page as edited.
type Service interface {
	Create(ctx context.Context, input CreatePageInput) (*Page, error)
	Update(ctx context.Context, input UpdatePageInput) (*Page, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Page, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Page, error)
	// MarkEdited flags the page as diverging from its last snapshot.
	MarkEdited(ctx context.Context, id uuid.UUID) (*Page, error)
	// MarkPublished clears the edited flag after a snapshot was taken.
	MarkPublished(ctx context.Context, id uuid.UUID) (*Page, error)
	SyncRoutes(ctx context.Context, input SyncRoutesInput) (*SyncResult, error)
}

type CreatePageInput struct {
	ID            uuid.UUID
	SiteID        uuid.UUID
	ParentID      *uuid.UUID
	TargetID      *uuid.UUID
	RouteName     string
	PageAlias     string
	Name          string
	Title         string
	Slug          string
	CustomURL     string
	RequestMethod string
	Type          string
	TemplateCode  string
	Position      int
	Enabled       *bool
	Decorate      *bool
	RawHeaders    string
}

type UpdatePageInput struct {
	ID           uuid.UUID
	ParentID     *uuid.UUID
	TargetID     *uuid.UUID
	ClearTarget  bool
	Name         *string
	Title        *string
	Slug         *string
	CustomURL    *string
	PageAlias    *string
	Type         *string
	TemplateCode *string
	Position     *int
	Enabled      *bool
	Decorate     *bool
	RawHeaders   *string
}

// Route describes an application route that may be decorated by a hybrid page.
type Route struct {
	Name    string
	Path    string
	Methods []string
}

type SyncRoutesInput struct {
	SiteID uuid.UUID
	Routes []Route
	// ErrorPages lists internal route names that must exist, such as
	// _page_internal_error_not_found.
	ErrorPages []string
	// Decorable filters route names. Nil accepts every route that does not
	// start with an underscore.
	Decorable func(name string) bool
}

type SyncResult struct {
	Created  []*Page
	Updated  []*Page
	Disabled []*Page
}

type IDGenerator func() uuid.UUID

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

type service struct {
	repo   Repository
	now    func() time.Time
	id     IDGenerator
	logger interfaces.Logger
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		now:    time.Now,
		id:     uuid.New,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, input CreatePageInput) (*Page, error) {
	if input.SiteID == uuid.Nil {
		return nil, ErrSiteRequired
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := s.now().UTC()
	id := input.ID
	if id == uuid.Nil {
		id = s.id()
	}
	page := &Page{
		ID:            id,
		SiteID:        input.SiteID,
		ParentID:      cloneUUID(input.ParentID),
		TargetID:      cloneUUID(input.TargetID),
		RouteName:     strings.TrimSpace(input.RouteName),
		PageAlias:     strings.TrimSpace(input.PageAlias),
		Name:          name,
		Title:         strings.TrimSpace(input.Title),
		Slug:          strings.TrimSpace(input.Slug),
		CustomURL:     strings.TrimSpace(input.CustomURL),
		RequestMethod: strings.TrimSpace(input.RequestMethod),
		Type:          strings.TrimSpace(input.Type),
		TemplateCode:  strings.TrimSpace(input.TemplateCode),
		Position:      input.Position,
		Enabled:       boolOr(input.Enabled, true),
		Decorate:      boolOr(input.Decorate, true),
		Edited:        true,
		RawHeaders:    input.RawHeaders,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if page.RouteName == "" {
		page.RouteName = RouteCMS
	}
	if page.Position <= 0 {
		page.Position = 1
	}
	parent, err := s.parentFor(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := s.fixURL(page, parent); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueURL(ctx, page); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, page)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pages.create.completed", "page_id", created.ID, "url", created.URL, "route_name", created.RouteName)
	return created, nil
}

func (s *service) Update(ctx context.Context, input UpdatePageInput) (*Page, error) {
	page, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	urlChanged := false
	if input.ParentID != nil {
		if err := s.ensureNoCycle(ctx, page, *input.ParentID); err != nil {
			return nil, err
		}
		page.ParentID = cloneUUID(input.ParentID)
		urlChanged = true
	}
	if input.ClearTarget {
		page.TargetID = nil
	} else if input.TargetID != nil {
		page.TargetID = cloneUUID(input.TargetID)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		page.Name = name
	}
	if input.Title != nil {
		page.Title = strings.TrimSpace(*input.Title)
	}
	if input.Slug != nil {
		page.Slug = strings.TrimSpace(*input.Slug)
		urlChanged = true
	}
	if input.CustomURL != nil {
		page.CustomURL = strings.TrimSpace(*input.CustomURL)
		urlChanged = true
	}
	if input.PageAlias != nil {
		page.PageAlias = strings.TrimSpace(*input.PageAlias)
	}
	if input.Type != nil {
		page.Type = strings.TrimSpace(*input.Type)
	}
	if input.TemplateCode != nil {
		page.TemplateCode = strings.TrimSpace(*input.TemplateCode)
	}
	if input.Position != nil {
		page.Position = *input.Position
	}
	if input.Enabled != nil {
		page.Enabled = *input.Enabled
	}
	if input.Decorate != nil {
		page.Decorate = *input.Decorate
	}
	if input.RawHeaders != nil {
		page.RawHeaders = *input.RawHeaders
	}
	if urlChanged {
		parent, err := s.parentFor(ctx, page)
		if err != nil {
			return nil, err
		}
		if err := s.fixURL(page, parent); err != nil {
			return nil, err
		}
		if err := s.ensureUniqueURL(ctx, page); err != nil {
			return nil, err
		}
	}
	page.Edited = true
	page.UpdatedAt = s.now().UTC()
	updated, err := s.repo.Update(ctx, page)
	if err != nil {
		return nil, err
	}
	if urlChanged {
		if err := s.fixChildren(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Page, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Page, error) {
	return s.repo.ListBySite(ctx, siteID)
}

func (s *service) MarkEdited(ctx context.Context, id uuid.UUID) (*Page, error) {
	page, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	page.Edited = true
	page.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, page)
}

func (s *service) MarkPublished(ctx context.Context, id uuid.UUID) (*Page, error) {
	page, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !page.Edited {
		return page, nil
	}
	page.Edited = false
	return s.repo.Update(ctx, page)
}

func (s *service) SyncRoutes(ctx context.Context, input SyncRoutesInput) (*SyncResult, error) {
	if input.SiteID == uuid.Nil {
		return nil, ErrSiteRequired
	}
	decorable := input.Decorable
	if decorable == nil {
		decorable = func(name string) bool { return !strings.HasPrefix(name, "_") }
	}
	existing, err := s.repo.ListBySite(ctx, input.SiteID)
	if err != nil {
		return nil, err
	}
	byRoute := make(map[string]*Page, len(existing))
	var root *Page
	for _, page := range existing {
		if page.IsHybrid() {
			byRoute[page.RouteName] = page
		}
		if page.URL == "/" && page.ParentID == nil && root == nil {
			root = page
		}
	}

	result := &SyncResult{}
	seen := map[string]struct{}{}
	for _, route := range input.Routes {
		name := strings.TrimSpace(route.Name)
		if name == "" || !decorable(name) || !routeAcceptsGet(route.Methods) {
			continue
		}
		seen[name] = struct{}{}
		if page, ok := byRoute[name]; ok {
			if page.Enabled {
				continue
			}
			enabled := true
			updated, err := s.Update(ctx, UpdatePageInput{ID: page.ID, Enabled: &enabled})
			if err != nil {
				return nil, err
			}
			result.Updated = append(result.Updated, updated)
			continue
		}
		input := CreatePageInput{
			ID:            identity.RoutePageUUID(input.SiteID, name),
			SiteID:        input.SiteID,
			RouteName:     name,
			Name:          name,
			CustomURL:     route.Path,
			RequestMethod: strings.Join(route.Methods, "|"),
		}
		if root != nil && name != RouteHomepage {
			input.ParentID = &root.ID
		}
		created, err := s.Create(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("sync route %s: %w", name, err)
		}
		if name == RouteHomepage && root == nil {
			root = created
		}
		result.Created = append(result.Created, created)
	}

	for _, name := range input.ErrorPages {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := byRoute[name]; ok {
			continue
		}
		created, err := s.Create(ctx, CreatePageInput{
			ID:        identity.RoutePageUUID(input.SiteID, name),
			SiteID:    input.SiteID,
			RouteName: name,
			Name:      name,
		})
		if err != nil {
			return nil, fmt.Errorf("sync error page %s: %w", name, err)
		}
		result.Created = append(result.Created, created)
	}

	for route, page := range byRoute {
		if _, ok := seen[route]; ok || !page.Enabled {
			continue
		}
		disabled := false
		updated, err := s.Update(ctx, UpdatePageInput{ID: page.ID, Enabled: &disabled})
		if err != nil {
			return nil, err
		}
		result.Disabled = append(result.Disabled, updated)
	}
	s.logger.Info("pages.sync_routes.completed",
		"site_id", input.SiteID,
		"created", len(result.Created),
		"updated", len(result.Updated),
		"disabled", len(result.Disabled),
	)
	return result, nil
}

func (s *service) parentFor(ctx context.Context, page *Page) (*Page, error) {
	if page.ParentID == nil {
		return nil, nil
	}
	parent, err := s.repo.GetByID(ctx, *page.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.SiteID != page.SiteID {
		return nil, ErrParentSiteDiffer
	}
	return parent, nil
}

func (s *service) ensureNoCycle(ctx context.Context, page *Page, parentID uuid.UUID) error {
	current := parentID
	for depth := 0; depth < 1024; depth++ {
		if current == page.ID {
			return ErrParentCycle
		}
		ancestor, err := s.repo.GetByID(ctx, current)
		if err != nil {
			return err
		}
		if ancestor.ParentID == nil {
			return nil
		}
		current = *ancestor.ParentID
	}
	return ErrParentCycle
}

// fixURL computes the page url from its parent and slug. Internal pages have
// no url and hybrid pages keep the path of their route.
func (s *service) fixURL(page, parent *Page) error {
	if page.IsInternal() {
		page.URL = ""
		return nil
	}
	if page.IsHybrid() && page.RouteName != RouteHomepage {
		if page.CustomURL != "" {
			page.URL = page.CustomURL
		}
		return nil
	}
	if page.Slug == "" {
		source := page.Title
		if source == "" {
			source = page.Name
		}
		normalized, err := slug.Normalize(source)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSlugInvalid, err)
		}
		page.Slug = normalized
	} else if normalized, err := slug.Normalize(page.Slug); err != nil {
		return fmt.Errorf("%w: %v", ErrSlugInvalid, err)
	} else {
		page.Slug = normalized
	}
	switch {
	case page.CustomURL != "":
		page.URL = "/" + strings.TrimLeft(page.CustomURL, "/")
	case parent == nil:
		page.URL = "/"
	default:
		page.URL = strings.TrimRight(parent.URL, "/") + "/" + page.Slug
	}
	return nil
}

func (s *service) fixChildren(ctx context.Context, parent *Page) error {
	all, err := s.repo.ListBySite(ctx, parent.SiteID)
	if err != nil {
		return err
	}
	children := map[uuid.UUID][]*Page{}
	for _, page := range all {
		if page.ParentID != nil {
			children[*page.ParentID] = append(children[*page.ParentID], page)
		}
	}
	queue := []*Page{parent}
	visited := map[uuid.UUID]struct{}{parent.ID: {}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current.ID] {
			if _, ok := visited[child.ID]; ok {
				continue
			}
			visited[child.ID] = struct{}{}
			previous := child.URL
			if err := s.fixURL(child, current); err != nil {
				return err
			}
			if child.URL != previous {
				child.Edited = true
				child.UpdatedAt = s.now().UTC()
				if _, err := s.repo.Update(ctx, child); err != nil {
					return err
				}
			}
			queue = append(queue, child)
		}
	}
	return nil
}

func (s *service) ensureUniqueURL(ctx context.Context, page *Page) error {
	if page.URL == "" || page.IsDynamic() {
		return nil
	}
	existing, err := s.repo.FindOneBy(ctx, page.SiteID, FieldURL, page.URL)
	if err != nil {
		if errors.Is(err, ErrFieldUnsupported) {
			return err
		}
		var notFound *PageNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if existing.ID != page.ID {
		return fmt.Errorf("%w: %s", ErrURLExists, page.URL)
	}
	return nil
}

func routeAcceptsGet(methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, method := range methods {
		if strings.EqualFold(method, "GET") {
			return true
		}
	}
	return false
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
