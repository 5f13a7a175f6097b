package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/notification/domain"
	"github.com/smallbiznis/pioneer/internal/notification/repository"
	"github.com/smallbiznis/pioneer/internal/testutil"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestCreateListAndMarkRead(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	var created []*domain.Notification
	for _, friend := range []string{"Bob", "Carol", "Dan"} {
		n, err := svc.CreateTx(ctx, db, domain.CreateRequest{
			UserID:  "user-1",
			Type:    domain.TypeReferralStalled,
			Title:   "Your invitation to " + friend + " needs a nudge",
			Message: "stalled",
			Data:    map[string]any{"friend_name": friend},
		})
		require.NoError(t, err)
		created = append(created, n)
	}
	_, err := svc.CreateTx(ctx, db, domain.CreateRequest{UserID: "user-2", Type: domain.TypeReferralStalled})
	require.NoError(t, err)

	page, err := svc.List(ctx, "user-1", domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, created[2].ID, page.Notifications[0].ID)
	assert.Equal(t, "Dan", page.Notifications[0].Data["friend_name"])

	rest, err := svc.List(ctx, "user-1", domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, rest.Notifications, 1)
	assert.False(t, rest.HasMore)

	require.NoError(t, svc.MarkRead(ctx, "user-1", created[0].ID.String()))
	unread, err := svc.List(ctx, "user-1", domain.ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	n, err := svc.CreateTx(ctx, db, domain.CreateRequest{UserID: "user-1", Type: domain.TypeReferralStalled})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, "user-2", n.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "user-1", "abc"), domain.ErrInvalidID)
	assert.ErrorIs(t, svc.MarkRead(ctx, "", n.ID.String()), domain.ErrInvalidUser)
}

func TestCreateValidation(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.CreateTx(context.Background(), db, domain.CreateRequest{Type: domain.TypeReferralStalled})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = svc.CreateTx(context.Background(), db, domain.CreateRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}
