package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/invitation/domain"
	"github.com/smallbiznis/pioneer/internal/testutil"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB, node *snowflake.Node, mutate func(*domain.Invitation)) *domain.Invitation {
	t.Helper()
	inv := &domain.Invitation{
		ID:           node.Generate(),
		ReferrerID:   "user-1",
		ReferrerName: "Ana",
		FriendName:   "Bob",
		FriendEmail:  "bob@example.com",
		Lang:         "en",
		Status:       domain.StatusSent,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if mutate != nil {
		mutate(inv)
	}
	require.NoError(t, Provide().InsertBatch(context.Background(), db, []*domain.Invitation{inv}))
	return inv
}

func TestInsertAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()

	inv := seed(t, db, node, nil)

	got, err := repo.FindByID(ctx, db, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob@example.com", got.FriendEmail)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.False(t, got.Opened)
	assert.Nil(t, got.TrackingID)

	missing, err := repo.FindByID(ctx, db, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)

	byEmail, err := repo.FindByEmail(ctx, db, "  BOB@example.com ")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)
}

func TestTransitionIsCompareAndSwap(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()
	inv := seed(t, db, node, nil)

	at := baseTime.Add(8 * 24 * time.Hour)
	tr := domain.Transition{
		ID:            inv.ID,
		FromIteration: 0,
		FromStatus:    domain.StatusSent,
		ToIteration:   1,
		ToStatus:      domain.StatusReminder1Sent,
		LastAttempt:   &at,
		At:            at,
	}
	ok, err := repo.Transition(ctx, db, tr)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, db, tr)
	require.NoError(t, err)
	assert.False(t, ok, "stale transition must not apply")

	got, err := repo.FindByID(ctx, db, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Iteration)
	assert.Equal(t, domain.StatusReminder1Sent, got.Status)
	require.NotNil(t, got.LastAttempt)
	assert.True(t, got.LastAttempt.Equal(at))
}

func TestTransitionSkipsOpened(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()
	inv := seed(t, db, node, nil)

	n, err := repo.MarkOpened(ctx, db, []snowflake.ID{inv.ID}, baseTime)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := repo.Transition(ctx, db, domain.Transition{
		ID: inv.ID, FromIteration: 0, FromStatus: domain.StatusSent,
		ToIteration: 1, ToStatus: domain.StatusReminder1Sent, At: baseTime,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkOpenedIgnoresTerminal(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()

	registered := seed(t, db, node, func(i *domain.Invitation) { i.Status = domain.StatusRegistered })
	open := seed(t, db, node, nil)

	n, err := repo.MarkOpened(ctx, db, []snowflake.ID{registered.ID, open.ID}, baseTime)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.FindByID(ctx, db, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRegistered, got.Status)
}

func TestMarkInvalidEmailKeepsRegistered(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()

	registered := seed(t, db, node, func(i *domain.Invitation) { i.Status = domain.StatusRegistered })
	opened := seed(t, db, node, func(i *domain.Invitation) { i.Status = domain.StatusOpened; i.Opened = true })

	n, err := repo.MarkInvalidEmail(ctx, db, []snowflake.ID{registered.ID, opened.ID}, baseTime)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSetTrackingIDOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()
	inv := seed(t, db, node, nil)

	ok, err := repo.SetTrackingID(ctx, db, inv.ID, "<abc@mail>", baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetTrackingID(ctx, db, inv.ID, "other", baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByTrackingID(ctx, db, "abc@mail")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, inv.ID, found[0].ID)
}

func TestListActiveUnopenedPages(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seed(t, db, node, nil)
	}
	seed(t, db, node, func(i *domain.Invitation) { i.Status = domain.StatusActionRequired; i.Iteration = 2 })
	seed(t, db, node, func(i *domain.Invitation) { i.Opened = true; i.Status = domain.StatusOpened })

	first, err := repo.ListActiveUnopened(ctx, db, 0, 2, false)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := repo.ListActiveUnopened(ctx, db, first[1].ID, 2, false)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestListByReferrerCursor(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seed(t, db, node, nil)
	}
	seed(t, db, node, func(i *domain.Invitation) { i.ReferrerID = "someone-else" })

	page, err := repo.ListByReferrer(ctx, db, "user-1", pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 3, "limit+1 rows signal another page")

	token, err := pagination.EncodeCursor(pagination.Cursor{ID: page[1].ID.String()})
	require.NoError(t, err)
	next, err := repo.ListByReferrer(ctx, db, "user-1", pagination.Pagination{PageSize: 2, PageToken: token})
	require.NoError(t, err)
	assert.Len(t, next, 1)

	_, err = repo.ListByReferrer(ctx, db, "user-1", pagination.Pagination{PageToken: "!!"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
