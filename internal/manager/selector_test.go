package manager_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/manager"
)

type stubAuth struct {
	allowed bool
	err     error
}

func (a stubAuth) CurrentUserID(context.Context) (string, error) { return "user-1", nil }

func (a stubAuth) HasPermission(context.Context, string) (bool, error) { return a.allowed, a.err }

func loadSession(t *testing.T, sessions *scs.SessionManager) context.Context {
	t.Helper()
	ctx, err := sessions.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return ctx
}

func TestSelectorDefaultsToSnapshotMode(t *testing.T) {
	e := newEnv(t)
	selector := manager.NewSelector(e.editor, e.snapshot, manager.WithSessions(scs.New(), ""))

	if got := selector.Mode(context.Background()); got != manager.ModeSnapshot {
		t.Fatalf("expected snapshot mode without a session, got %s", got)
	}
	if got := selector.Retrieve(context.Background()).Mode(); got != manager.ModeSnapshot {
		t.Fatalf("expected snapshot manager, got %s", got)
	}
}

func TestSelectorLoginGrantsEditorModeUntilLogout(t *testing.T) {
	e := newEnv(t)
	sessions := scs.New()
	selector := manager.NewSelector(e.editor, e.snapshot,
		manager.WithSessions(sessions, ""),
		manager.WithAuth(stubAuth{allowed: true}, ""),
	)
	ctx := loadSession(t, sessions)

	granted, err := selector.OnInteractiveLogin(ctx)
	if err != nil || !granted {
		t.Fatalf("expected editor mode to be granted, got %v %v", granted, err)
	}
	if got := selector.Mode(ctx); got != manager.ModeEditor {
		t.Fatalf("expected editor mode, got %s", got)
	}
	selector.OnLogout(ctx)
	if got := selector.Mode(ctx); got != manager.ModeSnapshot {
		t.Fatalf("expected snapshot mode after logout, got %s", got)
	}
}

func TestSelectorLoginWithoutPermission(t *testing.T) {
	e := newEnv(t)
	sessions := scs.New()
	selector := manager.NewSelector(e.editor, e.snapshot,
		manager.WithSessions(sessions, ""),
		manager.WithAuth(stubAuth{allowed: false}, ""),
	)
	ctx := loadSession(t, sessions)
	granted, err := selector.OnInteractiveLogin(ctx)
	if err != nil || granted {
		t.Fatalf("expected no editor mode, got %v %v", granted, err)
	}
	if selector.Mode(ctx) != manager.ModeSnapshot {
		t.Fatalf("expected snapshot mode")
	}

	failing := manager.NewSelector(e.editor, e.snapshot,
		manager.WithSessions(sessions, ""),
		manager.WithAuth(stubAuth{err: errors.New("directory down")}, ""),
	)
	if _, err := failing.OnInteractiveLogin(ctx); err == nil {
		t.Fatalf("expected permission error")
	}
}

func TestSelectorByName(t *testing.T) {
	e := newEnv(t)
	selector := manager.NewSelector(e.editor, e.snapshot)
	m, err := selector.ByName("page")
	if err != nil || m.Mode() != manager.ModeEditor {
		t.Fatalf("expected editor manager, got %v %v", m, err)
	}
	if _, err := selector.ByName("draft"); err == nil {
		t.Fatalf("expected unknown manager code to fail")
	}
	partial := manager.NewSelector(e.editor, nil)
	if _, err := partial.ByName("snapshot"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing store, got %v", err)
	}
}

func TestSelectorMiddlewarePinsModeOnContext(t *testing.T) {
	e := newEnv(t)
	sessions := scs.New()
	selector := manager.NewSelector(e.editor, e.snapshot, manager.WithSessions(sessions, ""))

	var seen manager.Mode
	var attached bool
	handler := sessions.LoadAndSave(selector.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = manager.ModeFromContext(r.Context())
		_, attached = manager.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if seen != manager.ModeSnapshot || !attached {
		t.Fatalf("expected snapshot manager on context, got %s attached=%v", seen, attached)
	}
}
