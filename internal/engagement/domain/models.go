package domain

import (
	"context"
	"errors"
	"strings"
)

type EventType string

const (
	EventOpened     EventType = "opened"
	EventClicked    EventType = "clicked"
	EventHardBounce EventType = "hard_bounce"
	EventUnknown    EventType = "unknown"
)

// Event is the payload the email service posts to the webhook.
type Event struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	MessageID string `json:"message-id"`
}

// Type maps provider event names, including legacy aliases, onto EventType.
func (e Event) Type() EventType {
	switch strings.ToLower(strings.TrimSpace(e.Event)) {
	case "opened", "open", "unique_opened":
		return EventOpened
	case "clicked", "click":
		return EventClicked
	case "hard_bounce", "hardbounce", "bounce", "hard-bounce":
		return EventHardBounce
	default:
		return EventUnknown
	}
}

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeIgnored   Outcome = "ignored"
)

type Result struct {
	Type        EventType `json:"type"`
	Outcome     Outcome   `json:"outcome"`
	Matched     int       `json:"matched"`
	Updated     int64     `json:"updated"`
	ByMessageID bool      `json:"by_message_id"`
}

type Service interface {
	Handle(ctx context.Context, event Event) (Result, error)
}

var ErrMissingEmail = errors.New("missing_email")
