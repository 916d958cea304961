package models

import "context"

type principalCtxKey struct{}

// WithPrincipal attaches the authenticated user to a request context.
func WithPrincipal(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, user)
}

func PrincipalFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(principalCtxKey{}).(*User)
	return user, ok && user != nil
}
