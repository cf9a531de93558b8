package manager

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// Selector picks the page store of a request. A session flag set at login
// for users holding the editor permission selects the editor store; every
// other request is served snapshots. The flag stays set until logout.
type Selector struct {
	stores     map[Mode]PageStore
	sessions   *scs.SessionManager
	auth       interfaces.AuthProvider
	permission string
	sessionKey string
	decorator  *Decorator
	logger     interfaces.Logger
}

// SelectorOption configures the selector.
type SelectorOption func(*Selector)

func WithSessions(sessions *scs.SessionManager, key string) SelectorOption {
	return func(s *Selector) {
		s.sessions = sessions
		if key != "" {
			s.sessionKey = key
		}
	}
}

func WithAuth(auth interfaces.AuthProvider, permission string) SelectorOption {
	return func(s *Selector) {
		s.auth = auth
		if permission != "" {
			s.permission = permission
		}
	}
}

func WithSelectorDecorator(decorator *Decorator) SelectorOption {
	return func(s *Selector) {
		s.decorator = decorator
	}
}

func WithSelectorLogger(logger interfaces.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logging.Ensure(logger)
	}
}

func NewSelector(editor, snapshot PageStore, opts ...SelectorOption) *Selector {
	s := &Selector{
		stores:     map[Mode]PageStore{ModeEditor: editor, ModeSnapshot: snapshot},
		permission: "pagecms.pages.edit",
		sessionKey: "pagecms.is_editor",
		decorator:  NewDecorator(DecoratorConfig{}),
		logger:     logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the mode pinned on ctx, else the session flag.
func (s *Selector) Mode(ctx context.Context) Mode {
	if mode, ok := ModeFromContext(ctx); ok {
		return mode
	}
	if s.editorFlag(ctx) {
		return ModeEditor
	}
	return ModeSnapshot
}

// Retrieve returns a new request manager for the mode of ctx.
func (s *Selector) Retrieve(ctx context.Context) *Manager {
	manager, _ := s.ByName(s.Mode(ctx).String())
	return manager
}

// ByName returns a new request manager for a manager code.
func (s *Selector) ByName(code string) (*Manager, error) {
	mode, err := ParseMode(code)
	if err != nil {
		return nil, err
	}
	store, ok := s.stores[mode]
	if !ok || store == nil {
		return nil, &NotFoundError{Resource: "manager", Key: code}
	}
	return New(store, WithDecorator(s.decorator), WithLogger(s.logger)), nil
}

// OnInteractiveLogin sets the editor flag when the logged in user holds the
// editor permission. It reports whether editor mode was granted.
func (s *Selector) OnInteractiveLogin(ctx context.Context) (bool, error) {
	if s.sessions == nil || s.auth == nil {
		return false, nil
	}
	allowed, err := s.auth.HasPermission(ctx, s.permission)
	if err != nil {
		return false, fmt.Errorf("check editor permission: %w", err)
	}
	if !allowed {
		s.sessions.Remove(ctx, s.sessionKey)
		return false, nil
	}
	if err := s.sessions.RenewToken(ctx); err != nil {
		return false, fmt.Errorf("renew session token: %w", err)
	}
	s.sessions.Put(ctx, s.sessionKey, true)
	logging.ForContext(s.logger, ctx).Info("manager.selector.editor_enabled")
	return true, nil
}

// OnLogout clears the editor flag.
func (s *Selector) OnLogout(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	s.sessions.Remove(ctx, s.sessionKey)
}

// Middleware stores a fresh manager and its mode on every request context.
// It must run inside the session LoadAndSave middleware.
func (s *Selector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		mode := s.Mode(ctx)
		manager, err := s.ByName(mode.String())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx = WithManager(WithMode(ctx, mode), manager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// editorFlag reads the session flag. scs panics when no session was loaded
// on ctx, which happens when the selector runs outside LoadAndSave.
func (s *Selector) editorFlag(ctx context.Context) (editor bool) {
	if s.sessions == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			editor = false
		}
	}()
	return s.sessions.GetBool(ctx, s.sessionKey)
}
