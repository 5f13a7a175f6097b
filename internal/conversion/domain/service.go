package domain

import (
	"context"
	"errors"
)

type ConfirmRequest struct {
	RegistrationID string `json:"registrationId"`
	InviteID       string `json:"inviteId"`
}

type ConfirmResult struct {
	RegistrationID    string  `json:"registration_id"`
	InvitationID      string  `json:"invitation_id,omitempty"`
	RewardedUserID    string  `json:"rewarded_user_id"`
	Points            float64 `json:"points"`
	GuaranteedBalance float64 `json:"guaranteed_balance"`
	Currency          string  `json:"currency"`
	Message           string  `json:"message"`
}

type Service interface {
	Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
}

var (
	ErrInvalidRegistration  = errors.New("invalid_registration")
	ErrRegistrationNotFound = errors.New("registration_not_found")
	ErrAlreadyConverted     = errors.New("already_converted")
)
