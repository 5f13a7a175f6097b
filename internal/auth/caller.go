package auth

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleReferrer = "referrer"
	RoleOperator = "operator"
	RoleSystem   = "system"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid_token")
)

// Caller is the authenticated principal behind a request.
type Caller struct {
	Subject string
	Role    string
	Name    string
	Email   string
}

// Actor renders the casbin subject for the caller.
func (c Caller) Actor() string {
	if c.Role == RoleSystem {
		return "system"
	}
	return "user:" + c.Subject
}

type callerKey struct{}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || strings.TrimSpace(caller.Subject) == "" {
		return Caller{}, false
	}
	return caller, true
}
