package email

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
)

//go:generate mockgen -destination=mock_provider.go -package=email . Provider

// Provider delivers a rendered HTML email and returns the provider message id.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

var ErrInvalidRecipient = errors.New("invalid_recipient")

// NoOpProvider accepts every message without delivering it.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", ErrInvalidRecipient
	}
	return "noop-" + ulid.Make().String(), nil
}
