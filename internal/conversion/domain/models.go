package domain

import "time"

const InvestorStatusPioneer = "pioneer"

// Registration is a referred friend's signup, created by the host platform.
type Registration struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	UserID         string     `gorm:"column:user_id;not null;index" json:"user_id"`
	Email          string     `gorm:"column:email;not null;index" json:"email"`
	InvestorStatus string     `gorm:"column:investor_status;not null;default:''" json:"investor_status"`
	PioneerAt      *time.Time `gorm:"column:pioneer_at" json:"pioneer_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Registration) TableName() string {
	return "registrations"
}

func (r Registration) IsPioneer() bool {
	return r.InvestorStatus == InvestorStatusPioneer
}
