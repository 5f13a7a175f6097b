package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// CreditTx applies a reward inside the caller's transaction. It reports false
	// when the source was already credited.
	CreditTx(ctx context.Context, tx *gorm.DB, credit Credit) (bool, error)
	Get(ctx context.Context, userID string) (Wallet, error)
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidSourceType = errors.New("invalid_source_type")
	ErrInvalidSourceID   = errors.New("invalid_source_id")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
)
