package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/engagement/domain"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	"github.com/smallbiznis/pioneer/internal/invitation/repository"
	"github.com/smallbiznis/pioneer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  invitationdomain.Repository
	clock *clock.FakeClock
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:    testutil.NewDB(t),
		node:  testutil.NewNode(t),
		repo:  repository.Provide(),
		clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.svc = New(Params{DB: f.db, Log: zap.NewNop(), Clock: f.clock, Repo: f.repo})
	return f
}

func (f *fixture) seed(t *testing.T, email string, mutate func(*invitationdomain.Invitation)) *invitationdomain.Invitation {
	t.Helper()
	now := f.clock.Now()
	inv := &invitationdomain.Invitation{
		ID:           f.node.Generate(),
		ReferrerID:   "user-1",
		ReferrerName: "Ana",
		FriendName:   "Friend",
		FriendEmail:  email,
		Lang:         "en",
		Status:       invitationdomain.StatusSent,
		LastAttempt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if mutate != nil {
		mutate(inv)
	}
	require.NoError(t, f.repo.InsertBatch(context.Background(), f.db, []*invitationdomain.Invitation{inv}))
	return inv
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *invitationdomain.Invitation {
	t.Helper()
	inv, err := f.repo.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	return inv
}

func TestOpenedMarksSingleMatch(t *testing.T) {
	f := newFixture(t)
	inv := f.seed(t, "a@b.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, res.Outcome)
	assert.EqualValues(t, 1, res.Updated)

	got := f.reload(t, inv.ID)
	assert.True(t, got.Opened)
	assert.Equal(t, invitationdomain.StatusOpened, got.Status)
	require.NotNil(t, got.OpenedAt)
}

func TestOpenedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	inv := f.seed(t, "a@b.com", nil)

	_, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "a@b.com"})
	require.NoError(t, err)
	first := f.reload(t, inv.ID)

	f.clock.AdvanceDays(1)
	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "click", Email: "A@B.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnchanged, res.Outcome)

	second := f.reload(t, inv.ID)
	assert.True(t, second.Opened)
	assert.True(t, first.OpenedAt.Equal(*second.OpenedAt))
}

func TestOpenedSkipsTerminalInvitations(t *testing.T) {
	f := newFixture(t)
	bounced := f.seed(t, "a@b.com", func(inv *invitationdomain.Invitation) {
		inv.Status = invitationdomain.StatusInvalidEmail
	})

	_, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "a@b.com"})
	require.NoError(t, err)

	got := f.reload(t, bounced.ID)
	assert.False(t, got.Opened)
	assert.Equal(t, invitationdomain.StatusInvalidEmail, got.Status)
}

func TestHardBounceMarksAllMatches(t *testing.T) {
	f := newFixture(t)
	opened := f.seed(t, "a@b.com", func(inv *invitationdomain.Invitation) {
		inv.Opened = true
		inv.Status = invitationdomain.StatusOpened
	})
	unopened := f.seed(t, "a@b.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "hard_bounce", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.EqualValues(t, 2, res.Updated)

	assert.Equal(t, invitationdomain.StatusInvalidEmail, f.reload(t, opened.ID).Status)
	assert.Equal(t, invitationdomain.StatusInvalidEmail, f.reload(t, unopened.ID).Status)
}

func TestHardBounceKeepsRegistered(t *testing.T) {
	f := newFixture(t)
	registered := f.seed(t, "a@b.com", func(inv *invitationdomain.Invitation) {
		inv.Status = invitationdomain.StatusRegistered
	})

	_, err := f.svc.Handle(context.Background(), domain.Event{Event: "hardBounce", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusRegistered, f.reload(t, registered.ID).Status)
}

func TestMessageIDNarrowsCorrelation(t *testing.T) {
	f := newFixture(t)
	tracked := f.seed(t, "a@b.com", func(inv *invitationdomain.Invitation) {
		id := "msg-1@pioneer.test"
		inv.TrackingID = &id
	})
	other := f.seed(t, "a@b.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "a@b.com", MessageID: "<msg-1@pioneer.test>"})
	require.NoError(t, err)
	assert.True(t, res.ByMessageID)

	assert.True(t, f.reload(t, tracked.ID).Opened)
	assert.False(t, f.reload(t, other.ID).Opened)
}

func TestHardBounceWithMessageIDInvalidatesWholeAddress(t *testing.T) {
	f := newFixture(t)
	tracked := f.seed(t, "a@b.com", func(inv *invitationdomain.Invitation) {
		id := "msg-1@pioneer.test"
		inv.TrackingID = &id
	})
	sibling := f.seed(t, "a@b.com", nil)
	unrelated := f.seed(t, "c@d.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "hard_bounce", Email: "a@b.com", MessageID: "msg-1@pioneer.test"})
	require.NoError(t, err)
	assert.True(t, res.ByMessageID)
	assert.Equal(t, 2, res.Matched)
	assert.EqualValues(t, 2, res.Updated)

	assert.Equal(t, invitationdomain.StatusInvalidEmail, f.reload(t, tracked.ID).Status)
	assert.Equal(t, invitationdomain.StatusInvalidEmail, f.reload(t, sibling.ID).Status)
	assert.Equal(t, invitationdomain.StatusSent, f.reload(t, unrelated.ID).Status)
}

func TestUnknownMessageIDFallsBackToEmail(t *testing.T) {
	f := newFixture(t)
	inv := f.seed(t, "a@b.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "a@b.com", MessageID: "missing"})
	require.NoError(t, err)
	assert.False(t, res.ByMessageID)
	assert.True(t, f.reload(t, inv.ID).Opened)
}

func TestUnknownEventAndNoMatch(t *testing.T) {
	f := newFixture(t)
	inv := f.seed(t, "a@b.com", nil)

	res, err := f.svc.Handle(context.Background(), domain.Event{Event: "delivered", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, res.Outcome)
	assert.False(t, f.reload(t, inv.ID).Opened)

	res, err = f.svc.Handle(context.Background(), domain.Event{Event: "opened", Email: "nobody@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, res.Outcome)
}

func TestMissingEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Handle(context.Background(), domain.Event{Event: "opened"})
	assert.ErrorIs(t, err, domain.ErrMissingEmail)
}
