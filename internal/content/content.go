// Package content renders localized invitation and reminder emails.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

type Kind string

const (
	KindInvitation Kind = "invitation"
	KindReminder1  Kind = "reminder_1"
	KindReminder2  Kind = "reminder_2"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInvitation, KindReminder1, KindReminder2:
		return true
	}
	return false
}

// Params drives one rendering. SenderLabel is the referrer's name for the
// first invitation and the campaign label for reminders.
type Params struct {
	Kind          Kind
	RecipientName string
	SenderLabel   string
	CustomMessage string
	Link          string
	Lang          string
}

type Content struct {
	Subject string
	HTML    string
	Lang    string
}

var (
	ErrInvalidKind      = errors.New("invalid_content_kind")
	ErrMissingRecipient = errors.New("missing_recipient_name")
	ErrMissingLink      = errors.New("missing_link")
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

var templates = template.Must(template.ParseFS(embeddedTemplates, "templates/*.html"))

type templateData struct {
	Lang          string
	Greeting      string
	Intro         string
	Urgency       string
	PersonalNote  string
	CustomMessage string
	CTA           string
	Link          string
	Footer        string
}

// Render produces the subject and HTML body for an email.
func Render(p Params) (Content, error) {
	if !p.Kind.Valid() {
		return Content{}, ErrInvalidKind
	}
	recipient := strings.TrimSpace(p.RecipientName)
	if recipient == "" {
		return Content{}, ErrMissingRecipient
	}
	link := strings.TrimSpace(p.Link)
	if link == "" {
		return Content{}, ErrMissingLink
	}

	lang := NormalizeLanguage(p.Lang)
	printer := defaultBundle.printer(lang)
	sender := strings.TrimSpace(p.SenderLabel)

	data := templateData{
		Lang:          lang,
		Greeting:      printer.Sprintf("greeting", recipient),
		PersonalNote:  printer.Sprintf("personal_note"),
		CustomMessage: strings.TrimSpace(p.CustomMessage),
		Link:          link,
		Footer:        printer.Sprintf("footer"),
	}

	var subject, name string
	switch p.Kind {
	case KindInvitation:
		subject = printer.Sprintf("invitation.subject", sender)
		data.Intro = printer.Sprintf("invitation.intro", sender)
		data.CTA = printer.Sprintf("invitation.cta")
		name = "invitation.html"
	case KindReminder1:
		subject = printer.Sprintf("reminder_1.subject", recipient)
		data.Intro = printer.Sprintf("reminder_1.intro", sender)
		data.CTA = printer.Sprintf("reminder.cta")
		name = "reminder.html"
	case KindReminder2:
		subject = printer.Sprintf("reminder_2.subject", recipient)
		data.Intro = printer.Sprintf("reminder_2.intro", sender)
		data.Urgency = printer.Sprintf("reminder.urgency")
		data.CTA = printer.Sprintf("reminder.cta")
		name = "reminder.html"
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Content{}, fmt.Errorf("render %s: %w", p.Kind, err)
	}

	return Content{Subject: subject, HTML: buf.String(), Lang: lang}, nil
}
