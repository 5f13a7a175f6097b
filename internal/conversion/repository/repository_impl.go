package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/pioneer/internal/conversion/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, registration *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (id, user_id, email, investor_status, pioneer_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		registration.ID,
		registration.UserID,
		registration.Email,
		registration.InvestorStatus,
		registration.PioneerAt,
		registration.CreatedAt,
		registration.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Registration, error) {
	var registration domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, email, investor_status, pioneer_at, created_at, updated_at
		 FROM registrations WHERE id = ?`,
		id,
	).Scan(&registration).Error
	if err != nil {
		return nil, err
	}
	if registration.ID == "" {
		return nil, nil
	}
	return &registration, nil
}

func (r *repo) MarkPioneer(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE registrations SET investor_status = ?, pioneer_at = ?, updated_at = ?
		 WHERE id = ? AND investor_status <> ?`,
		domain.InvestorStatusPioneer,
		at,
		at,
		id,
		domain.InvestorStatusPioneer,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
