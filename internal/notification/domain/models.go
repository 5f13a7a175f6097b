package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const TypeReferralStalled = "referral_stalled"

type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    string            `gorm:"column:user_id;not null;index" json:"user_id"`
	Type      string            `gorm:"column:type;not null" json:"type"`
	Title     string            `gorm:"column:title;not null" json:"title"`
	Message   string            `gorm:"column:message;not null" json:"message"`
	Read      bool              `gorm:"column:is_read;not null" json:"read"`
	Data      datatypes.JSONMap `gorm:"column:data" json:"data,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
