// Package referral builds the links and QR codes friends use to sign up.
package referral

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gosimple/slug"
	"github.com/skip2/go-qrcode"
	"github.com/smallbiznis/pioneer/internal/config"
)

const (
	DefaultQRSize = 256
	MaxQRSize     = 1024
)

var ErrInvalidReferrer = errors.New("invalid_referrer")

type LinkBuilder struct {
	base *url.URL
}

func NewLinkBuilder(cfg config.Config) (*LinkBuilder, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.Referral.LinkBaseURL), "/")
	if raw == "" {
		raw = "http://localhost:8080/join"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &LinkBuilder{base: base}, nil
}

// Referrer returns the shareable link for a referrer, e.g. /join/ana-lopez-42.
func (b *LinkBuilder) Referrer(referrerID, referrerName string) (string, error) {
	referrerID = strings.TrimSpace(referrerID)
	if referrerID == "" {
		return "", ErrInvalidReferrer
	}
	segment := referrerID
	if s := slug.Make(referrerName); s != "" {
		segment = s + "-" + referrerID
	}
	link := b.base.JoinPath(segment)
	return link.String(), nil
}

// Invitation extends the referrer link with the invitation id so the signup
// flow can hand it back at conversion time.
func (b *LinkBuilder) Invitation(referrerID, referrerName, invitationID string) (string, error) {
	link, err := b.Referrer(referrerID, referrerName)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("invite", invitationID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// QRCode encodes link as a PNG.
func QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > MaxQRSize {
		size = MaxQRSize
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}
