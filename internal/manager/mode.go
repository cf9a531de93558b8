package manager

import (
	"context"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/domain"
)

// Mode selects which page store serves a request.
type Mode string

const (
	// ModeEditor serves live, editable pages.
	ModeEditor Mode = "page"
	// ModeSnapshot serves published snapshots.
	ModeSnapshot Mode = "snapshot"
)

// ParseMode maps a manager code to a Mode.
func ParseMode(code string) (Mode, error) {
	switch Mode(code) {
	case ModeEditor, ModeSnapshot:
		return Mode(code), nil
	}
	return "", &NotFoundError{Resource: "manager", Key: code}
}

func (m Mode) String() string {
	return string(m)
}

type modeKey struct{}

type managerKey struct{}

// WithMode pins the render mode on ctx.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeFromContext returns the mode pinned by WithMode.
func ModeFromContext(ctx context.Context) (Mode, bool) {
	if ctx == nil {
		return "", false
	}
	mode, ok := ctx.Value(modeKey{}).(Mode)
	return mode, ok && mode != ""
}

// WithManager stores the request manager on ctx.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// FromContext returns the request manager stored by the selector middleware.
func FromContext(ctx context.Context) (*Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	m, ok := ctx.Value(managerKey{}).(*Manager)
	return m, ok && m != nil
}

// NotFoundError reports an unknown manager or a missing page or block.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return domain.ErrNotFound
}
