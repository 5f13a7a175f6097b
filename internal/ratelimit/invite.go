package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pioneer/internal/config"
)

const keyInviteReferrer = "pioneer:invites:referrer:%s"

var (
	ErrInviteLimitInvalid = errors.New("invite rate limit must be positive")
	ErrLimited            = errors.New("rate_limited")
)

// InviteLimiter caps how many invitations one referrer can issue per hour.
type InviteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewInviteLimiter returns nil when rate limiting is disabled or redis is absent.
func NewInviteLimiter(cfg config.Config, client *redis.Client) (*InviteLimiter, error) {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil, nil
	}
	if cfg.RateLimit.InvitesPerHour <= 0 || cfg.RateLimit.InviteBurst <= 0 {
		return nil, ErrInviteLimitInvalid
	}
	return &InviteLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.InvitesPerHour / 3600,
		burst:  cfg.RateLimit.InviteBurst,
	}, nil
}

func (l *InviteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowReferrer reserves count invitations for referrerID.
func (l *InviteLimiter) AllowReferrer(ctx context.Context, referrerID string, count int) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyInviteReferrer, strings.TrimSpace(referrerID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst, count)
}
