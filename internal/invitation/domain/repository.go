package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, invitations []*Invitation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	FirstByEmail(ctx context.Context, db *gorm.DB, email string) (*Invitation, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) ([]*Invitation, error)
	FindByTrackingID(ctx context.Context, db *gorm.DB, trackingID string) ([]*Invitation, error)
	ListActiveUnopened(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int, forUpdate bool) ([]*Invitation, error)
	ListByReferrer(ctx context.Context, db *gorm.DB, referrerID string, page pagination.Pagination) ([]*Invitation, error)

	SetTrackingID(ctx context.Context, db *gorm.DB, id snowflake.ID, trackingID string, at time.Time) (bool, error)
	Transition(ctx context.Context, db *gorm.DB, t Transition) (bool, error)
	MarkOpened(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error)
	MarkInvalidEmail(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error)
	MarkRegistered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}
