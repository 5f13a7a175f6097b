package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	UserID  string
	Type    string
	Title   string
	Message string
	Data    map[string]any
}

type ListRequest struct {
	pagination.Pagination
	UnreadOnly bool `form:"unread"`
}

type ListResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, req CreateRequest) (*Notification, error)
	List(ctx context.Context, userID string, req ListRequest) (ListResponse, error)
	MarkRead(ctx context.Context, userID, id string) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidType = errors.New("invalid_type")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("not_found")
)
