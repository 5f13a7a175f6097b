package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusSent           Status = "sent"
	StatusOpened         Status = "opened"
	StatusReminder1Sent  Status = "reminder_1_sent"
	StatusReminder2Sent  Status = "reminder_2_sent"
	StatusActionRequired Status = "action_required"
	StatusRegistered     Status = "registered"
	StatusInvalidEmail   Status = "invalid_email"
)

// ActiveStatuses are the statuses the campaign scheduler still advances.
func ActiveStatuses() []Status {
	return []Status{StatusSent, StatusReminder1Sent, StatusReminder2Sent}
}

// TerminalStatuses close an invitation's lifecycle.
func TerminalStatuses() []Status {
	return []Status{StatusRegistered, StatusInvalidEmail}
}

func (s Status) IsTerminal() bool {
	return s == StatusRegistered || s == StatusInvalidEmail
}

const (
	IterationInitial   = 0
	IterationReminder1 = 1
	IterationReminder2 = 2
)

type Invitation struct {
	ID                  snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ReferrerID          string       `gorm:"column:referrer_id;not null;index" json:"referrer_id"`
	ReferrerName        string       `gorm:"column:referrer_name;not null" json:"referrer_name"`
	FriendName          string       `gorm:"column:friend_name;not null" json:"friend_name"`
	FriendEmail         string       `gorm:"column:friend_email;not null;index" json:"friend_email"`
	CustomBody          string       `gorm:"column:custom_body;not null" json:"custom_body"`
	Lang                string       `gorm:"column:lang;not null" json:"lang"`
	Status              Status       `gorm:"column:status;not null;index" json:"status"`
	Iteration           int          `gorm:"column:iteration;not null" json:"iteration"`
	Opened              bool         `gorm:"column:opened;not null" json:"opened"`
	OpenedAt            *time.Time   `gorm:"column:opened_at" json:"opened_at,omitempty"`
	LastAttempt         *time.Time   `gorm:"column:last_attempt" json:"last_attempt,omitempty"`
	DiciPointsIncentive float64      `gorm:"column:dici_points_incentive;not null" json:"dici_points_incentive"`
	GuaranteedBalance   float64      `gorm:"column:guaranteed_balance;not null" json:"guaranteed_balance"`
	TrackingID          *string      `gorm:"column:tracking_id;index" json:"tracking_id,omitempty"`
	ManualAction        bool         `gorm:"column:manual_action;not null" json:"manual_action"`
	RegisteredAt        *time.Time   `gorm:"column:registered_at" json:"registered_at,omitempty"`
	CreatedAt           time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Invitation) TableName() string {
	return "invitations"
}

// LastAttemptOrCreated is the base for the next reminder decision.
func (i Invitation) LastAttemptOrCreated() time.Time {
	if i.LastAttempt != nil && !i.LastAttempt.IsZero() {
		return *i.LastAttempt
	}
	return i.CreatedAt
}

// Transition describes a compare-and-swap status change. The update applies
// only while the stored row still has FromIteration and FromStatus and is unopened.
type Transition struct {
	ID            snowflake.ID
	FromIteration int
	FromStatus    Status
	ToIteration   int
	ToStatus      Status
	LastAttempt   *time.Time
	ManualAction  bool
	At            time.Time
}
