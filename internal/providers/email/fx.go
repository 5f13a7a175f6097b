package email

import (
	"strings"

	"github.com/smallbiznis/pioneer/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP provider, or a no-op one when no host is set.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	if strings.TrimSpace(cfg.Email.SMTPHost) == "" {
		log.Warn("SMTP_HOST not set, emails will not be delivered")
		return &NoOpProvider{}, nil
	}
	provider, err := NewSMTP(Config{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		Username:    cfg.Email.SMTPUsername,
		Password:    cfg.Email.SMTPPassword,
		From:        cfg.Email.SMTPFrom,
		MaxAttempts: cfg.Email.MaxAttempts,
	}, log)
	if err != nil {
		return nil, err
	}
	return provider, nil
}
