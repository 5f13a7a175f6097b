package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/invitation/domain"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"gorm.io/gorm"
)

const invitationColumns = `id, referrer_id, referrer_name, friend_name, friend_email, custom_body, lang,
	status, iteration, opened, opened_at, last_attempt, dici_points_incentive, guaranteed_balance,
	tracking_id, manual_action, registered_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, invitations []*domain.Invitation) error {
	if len(invitations) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(invitations, 100).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`,
		id,
	).Scan(&invitation).Error
	if err != nil {
		return nil, err
	}
	if invitation.ID == 0 {
		return nil, nil
	}
	return &invitation, nil
}

// FirstByEmail returns the earliest invitation addressed to email.
func (r *repo) FirstByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE LOWER(friend_email) = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		normalizeEmail(email),
	).Scan(&invitation).Error
	if err != nil {
		return nil, err
	}
	if invitation.ID == 0 {
		return nil, nil
	}
	return &invitation, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) ([]*domain.Invitation, error) {
	var invitations []*domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE LOWER(friend_email) = ?
		 ORDER BY id ASC`,
		normalizeEmail(email),
	).Scan(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repo) FindByTrackingID(ctx context.Context, db *gorm.DB, trackingID string) ([]*domain.Invitation, error) {
	trackingID = NormalizeTrackingID(trackingID)
	if trackingID == "" {
		return nil, nil
	}
	var invitations []*domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE tracking_id = ?
		 ORDER BY id ASC`,
		trackingID,
	).Scan(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// ListActiveUnopened claims a page of invitations the campaign still advances.
// forUpdate adds FOR UPDATE SKIP LOCKED so concurrent runs take disjoint rows.
func (r *repo) ListActiveUnopened(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int, forUpdate bool) ([]*domain.Invitation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + invitationColumns + ` FROM invitations
		 WHERE opened = ? AND status IN ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`
	if forUpdate {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	var invitations []*domain.Invitation
	err := db.WithContext(ctx).Raw(query, false, domain.ActiveStatuses(), afterID, limit).
		Scan(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repo) ListByReferrer(ctx context.Context, db *gorm.DB, referrerID string, page pagination.Pagination) ([]*domain.Invitation, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("referrer_id = ?", referrerID)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		cursorID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("id < ?", cursorID)
	}

	var invitations []*domain.Invitation
	err := stmt.Order("id desc").Limit(page.Limit() + 1).Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// SetTrackingID stores the provider message id unless one is already recorded.
func (r *repo) SetTrackingID(ctx context.Context, db *gorm.DB, id snowflake.ID, trackingID string, at time.Time) (bool, error) {
	trackingID = NormalizeTrackingID(trackingID)
	if trackingID == "" {
		return false, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE invitations SET tracking_id = ?, updated_at = ?
		 WHERE id = ? AND tracking_id IS NULL`,
		trackingID,
		at,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, t domain.Transition) (bool, error) {
	sets := []string{"iteration = ?", "status = ?", "updated_at = ?"}
	args := []any{t.ToIteration, t.ToStatus, t.At}
	if t.LastAttempt != nil {
		sets = append(sets, "last_attempt = ?")
		args = append(args, *t.LastAttempt)
	}
	if t.ManualAction {
		sets = append(sets, "manual_action = ?")
		args = append(args, true)
	}
	args = append(args, t.ID, t.FromIteration, t.FromStatus, false)

	result := db.WithContext(ctx).Exec(
		`UPDATE invitations SET `+strings.Join(sets, ", ")+`
		 WHERE id = ? AND iteration = ? AND status = ? AND opened = ?`,
		args...,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkOpened flips unopened, non-terminal invitations to opened.
func (r *repo) MarkOpened(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE invitations SET opened = ?, opened_at = ?, status = ?, updated_at = ?
		 WHERE id IN ? AND opened = ? AND status NOT IN ?`,
		true,
		at,
		domain.StatusOpened,
		at,
		ids,
		false,
		domain.TerminalStatuses(),
	)
	return result.RowsAffected, result.Error
}

// MarkInvalidEmail closes invitations after a hard bounce. Registered rows are kept.
func (r *repo) MarkInvalidEmail(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE invitations SET status = ?, updated_at = ?
		 WHERE id IN ? AND status <> ?`,
		domain.StatusInvalidEmail,
		at,
		ids,
		domain.StatusRegistered,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkRegistered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invitations SET status = ?, registered_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		domain.StatusRegistered,
		at,
		at,
		id,
		domain.StatusRegistered,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// NormalizeTrackingID strips the angle brackets some providers keep around Message-IDs.
func NormalizeTrackingID(value string) string {
	return strings.Trim(strings.TrimSpace(value), "<>")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
