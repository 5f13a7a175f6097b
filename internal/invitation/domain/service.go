package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pioneer/pkg/db/pagination"
)

type Friend struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	EditedText string `json:"editedText"`
	Lang       string `json:"lang"`
}

type IssueRequest struct {
	ReferrerName string
	Friends      []Friend
}

// IssueResult reports friends processed; Sent and Failed split delivery outcomes.
type IssueResult struct {
	Count         int      `json:"count"`
	Sent          int      `json:"sent"`
	Failed        int      `json:"failed"`
	InvitationIDs []string `json:"invitation_ids"`
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Invitations []Invitation `json:"invitations"`
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
	ListMine(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidFriends = errors.New("invalid_friends")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidName    = errors.New("invalid_name")
	ErrNotFound       = errors.New("not_found")
)
