package interfaces

import "context"

// AuthProvider answers identity and permission questions for the current
// request. The selector uses it to decide whether a login grants editor mode.
type AuthProvider interface {
	CurrentUserID(ctx context.Context) (string, error)
	HasPermission(ctx context.Context, permission string) (bool, error)
}
