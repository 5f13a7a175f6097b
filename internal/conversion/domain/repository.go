package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, registration *Registration) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Registration, error)
	// MarkPioneer flips the registration to pioneer; false means it already was.
	MarkPioneer(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error)
}
