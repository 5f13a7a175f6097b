package email

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	MaxAttempts int
	// RetryInitialInterval seeds the exponential backoff between attempts.
	RetryInitialInterval time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPProvider struct {
	cfg      Config
	log      *zap.Logger
	from     *mail.Address
	sendMail sendFunc
}

func NewSMTP(cfg Config, log *zap.Logger) (*SMTPProvider, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse smtp from %q: %w", cfg.From, err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPProvider{
		cfg:      cfg,
		log:      log.Named("email.smtp"),
		from:     from,
		sendMail: smtp.SendMail,
	}, nil
}

// Send delivers the message, retrying transient failures with backoff.
// 5xx SMTP replies are permanent and returned immediately.
func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	rcpt, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return "", ErrInvalidRecipient
	}

	messageID := p.newMessageID()
	msg := p.buildMessage(rcpt, subject, htmlBody, messageID)

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	attempt := 0
	operation := func() (string, error) {
		attempt++
		err := p.sendMail(addr, auth, p.from.Address, []string{rcpt.Address}, msg)
		if err == nil {
			return messageID, nil
		}
		if isPermanent(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryInitialInterval

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(p.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.log.Warn("smtp send failed, retrying",
				zap.String("recipient", rcpt.Address),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("smtp send after %d attempt(s): %w", attempt, err)
	}
	return id, nil
}

func (p *SMTPProvider) newMessageID() string {
	domain := "pioneer.local"
	if at := strings.LastIndex(p.from.Address, "@"); at >= 0 && at < len(p.from.Address)-1 {
		domain = p.from.Address[at+1:]
	}
	return ulid.Make().String() + "@" + domain
}

func (p *SMTPProvider) buildMessage(to *mail.Address, subject, htmlBody, messageID string) []byte {
	var b strings.Builder
	b.WriteString("From: " + p.from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Message-ID: <" + messageID + ">\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func isPermanent(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 500
	}
	return false
}
