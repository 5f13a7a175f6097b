package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const SourceTypeConversion = "conversion"

type Wallet struct {
	UserID            string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	Points            float64   `gorm:"column:points;not null" json:"points"`
	GuaranteedBalance float64   `gorm:"column:guaranteed_balance;not null" json:"guaranteed_balance"`
	Currency          string    `gorm:"column:currency;not null" json:"currency"`
	CreatedAt         time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletCredit is the idempotency record for a single reward; one per source.
type WalletCredit struct {
	ID                snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID            string       `gorm:"column:user_id;not null;index" json:"user_id"`
	SourceType        string       `gorm:"column:source_type;not null;uniqueIndex:ux_wallet_credits_source" json:"source_type"`
	SourceID          string       `gorm:"column:source_id;not null;uniqueIndex:ux_wallet_credits_source" json:"source_id"`
	Points            float64      `gorm:"column:points;not null" json:"points"`
	GuaranteedBalance float64      `gorm:"column:guaranteed_balance;not null" json:"guaranteed_balance"`
	Currency          string       `gorm:"column:currency;not null" json:"currency"`
	OccurredAt        time.Time    `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null" json:"created_at"`
}

func (WalletCredit) TableName() string {
	return "wallet_credits"
}

type Credit struct {
	UserID            string
	SourceType        string
	SourceID          string
	Points            float64
	GuaranteedBalance float64
	Currency          string
	OccurredAt        time.Time
}
