package domain

import (
	"context"
	"strings"
)

type clientKey struct{}

type client struct {
	ipAddress string
	userAgent string
}

// WithClient attaches the caller's network identity for later audit entries.
func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientKey{}, client{
		ipAddress: strings.TrimSpace(ipAddress),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(clientKey{}).(client); ok {
		return v.ipAddress, v.userAgent
	}
	return "", ""
}
