package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/content"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/pioneer/internal/invitation/repository"
	notificationdomain "github.com/smallbiznis/pioneer/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/pioneer/internal/notification/repository"
	notificationservice "github.com/smallbiznis/pioneer/internal/notification/service"
	"github.com/smallbiznis/pioneer/internal/providers/email"
	"github.com/smallbiznis/pioneer/internal/referral"
	"github.com/smallbiznis/pioneer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type campaignFixture struct {
	db            *gorm.DB
	node          *snowflake.Node
	clock         *clock.FakeClock
	email         *email.MockProvider
	invitations   invitationdomain.Repository
	notifications notificationdomain.Service
	sched         *Scheduler
}

func newCampaignFixture(t *testing.T, cfg Config) *campaignFixture {
	t.Helper()
	t.Cleanup(swapPrometheusRegistry(prometheus.NewRegistry()))

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	fc := clock.NewFakeClock(day0)
	links, err := referral.NewLinkBuilder(config.Config{Referral: config.ReferralConfig{LinkBaseURL: "https://pioneer.test/join"}})
	require.NoError(t, err)

	f := &campaignFixture{
		db:          db,
		node:        node,
		clock:       fc,
		email:       email.NewMockProvider(gomock.NewController(t)),
		invitations: invitationrepo.Provide(),
	}
	f.notifications = notificationservice.New(notificationservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fc, Repo: notificationrepo.Provide(),
	})
	f.sched, err = New(Params{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           fc,
		InvitationRepo:  f.invitations,
		NotificationSvc: f.notifications,
		Email:           f.email,
		Links:           links,
		Campaign:        config.NewStaticCampaignConfig(config.DefaultCampaignConfig()),
		Config:          cfg,
	})
	require.NoError(t, err)
	return f
}

func (f *campaignFixture) seed(t *testing.T, friendEmail string) *invitationdomain.Invitation {
	t.Helper()
	now := f.clock.Now()
	inv := &invitationdomain.Invitation{
		ID:           f.node.Generate(),
		ReferrerID:   "user-1",
		ReferrerName: "Ana",
		FriendName:   "Bob",
		FriendEmail:  friendEmail,
		Lang:         "en",
		Status:       invitationdomain.StatusSent,
		Iteration:    invitationdomain.IterationInitial,
		LastAttempt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.invitations.InsertBatch(context.Background(), f.db, []*invitationdomain.Invitation{inv}))
	return inv
}

func (f *campaignFixture) reload(t *testing.T, id snowflake.ID) *invitationdomain.Invitation {
	t.Helper()
	inv, err := f.invitations.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

func (f *campaignFixture) notificationsFor(t *testing.T, userID string) []notificationdomain.Notification {
	t.Helper()
	res, err := f.notifications.List(context.Background(), userID, notificationdomain.ListRequest{})
	require.NoError(t, err)
	return res.Notifications
}

func TestCampaignLifecycleOverThirtyDays(t *testing.T) {
	f := newCampaignFixture(t, Config{})
	ctx := context.Background()
	inv := f.seed(t, "bob@example.com")

	// Day 6: too early for the first reminder.
	f.clock.AdvanceDays(6)
	require.NoError(t, f.sched.RunOnce(ctx))
	got := f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.IterationInitial, got.Iteration)
	assert.Equal(t, invitationdomain.StatusSent, got.Status)

	// Day 7: reminder #1.
	f.clock.AdvanceDays(1)
	f.email.EXPECT().
		Send(gomock.Any(), "bob@example.com", "Bob, your Pioneer invitation is waiting", gomock.Any()).
		Return("msg-r1", nil)
	require.NoError(t, f.sched.RunOnce(ctx))
	got = f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.IterationReminder1, got.Iteration)
	assert.Equal(t, invitationdomain.StatusReminder1Sent, got.Status)
	require.NotNil(t, got.LastAttempt)
	assert.True(t, got.LastAttempt.Equal(f.clock.Now()))

	// Day 14: reminder #2.
	f.clock.AdvanceDays(7)
	f.email.EXPECT().
		Send(gomock.Any(), "bob@example.com", "Bob, last chance to claim your Pioneer reward", gomock.Any()).
		Return("msg-r2", nil)
	require.NoError(t, f.sched.RunOnce(ctx))
	got = f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.IterationReminder2, got.Iteration)
	assert.Equal(t, invitationdomain.StatusReminder2Sent, got.Status)
	assert.Empty(t, f.notificationsFor(t, "user-1"))

	// Day 21: stalled alert for the referrer, no email.
	f.clock.AdvanceDays(7)
	reminderAt := *got.LastAttempt
	require.NoError(t, f.sched.RunOnce(ctx))
	got = f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.StatusActionRequired, got.Status)
	assert.True(t, got.ManualAction)
	assert.Equal(t, invitationdomain.IterationReminder2, got.Iteration)
	assert.True(t, got.LastAttempt.Equal(reminderAt))

	notes := f.notificationsFor(t, "user-1")
	require.Len(t, notes, 1)
	assert.Equal(t, notificationdomain.TypeReferralStalled, notes[0].Type)
	assert.Equal(t, "Your invitation to Bob needs a nudge", notes[0].Title)
	assert.Equal(t, inv.ID.String(), notes[0].Data["invitation_id"])

	// Day 30: nothing left to do.
	f.clock.AdvanceDays(9)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Len(t, f.notificationsFor(t, "user-1"), 1)
	assert.Equal(t, invitationdomain.StatusActionRequired, f.reload(t, inv.ID).Status)
}

func TestCampaignAdvancesOneStepPerRun(t *testing.T) {
	f := newCampaignFixture(t, Config{})
	ctx := context.Background()
	inv := f.seed(t, "bob@example.com")

	// A long-forgotten invitation still moves a single step per run.
	f.clock.AdvanceDays(40)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", nil).Times(1)

	require.NoError(t, f.sched.RunOnce(ctx))
	got := f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.IterationReminder1, got.Iteration)
	assert.Equal(t, invitationdomain.StatusReminder1Sent, got.Status)

	// Reminder #2 is not due yet, but the invitation is past the stalled threshold.
	require.NoError(t, f.sched.RunOnce(ctx))
	got = f.reload(t, inv.ID)
	assert.Equal(t, invitationdomain.IterationReminder1, got.Iteration)
	assert.Equal(t, invitationdomain.StatusActionRequired, got.Status)

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, invitationdomain.IterationReminder1, f.reload(t, inv.ID).Iteration)
	assert.Len(t, f.notificationsFor(t, "user-1"), 1)
}

func TestCampaignSkipsOpenedAndTerminalInvitations(t *testing.T) {
	f := newCampaignFixture(t, Config{})
	ctx := context.Background()
	opened := f.seed(t, "opened@example.com")
	bounced := f.seed(t, "bounced@example.com")

	_, err := f.invitations.MarkOpened(ctx, f.db, []snowflake.ID{opened.ID}, f.clock.Now())
	require.NoError(t, err)
	_, err = f.invitations.MarkInvalidEmail(ctx, f.db, []snowflake.ID{bounced.ID}, f.clock.Now())
	require.NoError(t, err)

	f.clock.AdvanceDays(30)
	require.NoError(t, f.sched.RunOnce(ctx))

	assert.Equal(t, invitationdomain.StatusOpened, f.reload(t, opened.ID).Status)
	assert.Equal(t, invitationdomain.StatusInvalidEmail, f.reload(t, bounced.ID).Status)
	assert.Empty(t, f.notificationsFor(t, "user-1"))
}

func TestCampaignAdvancesDespiteSendFailure(t *testing.T) {
	f := newCampaignFixture(t, Config{})
	inv := f.seed(t, "bob@example.com")

	f.clock.AdvanceDays(7)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("smtp down"))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, invitationdomain.StatusReminder1Sent, f.reload(t, inv.ID).Status)
}

func TestCampaignPagesThroughBatches(t *testing.T) {
	f := newCampaignFixture(t, Config{BatchSize: 2})
	ids := make([]snowflake.ID, 0, 5)
	for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"} {
		ids = append(ids, f.seed(t, addr).ID)
	}

	f.clock.AdvanceDays(7)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", nil).Times(len(ids))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	for _, id := range ids {
		assert.Equal(t, invitationdomain.StatusReminder1Sent, f.reload(t, id).Status)
	}
}

func TestNextStepRules(t *testing.T) {
	campaign := config.DefaultCampaignConfig()
	at := func(days int) time.Time { return day0.AddDate(0, 0, days) }
	build := func(iteration int, status invitationdomain.Status, lastAttemptDay int) *invitationdomain.Invitation {
		last := at(lastAttemptDay)
		return &invitationdomain.Invitation{
			ID:          1,
			Iteration:   iteration,
			Status:      status,
			LastAttempt: &last,
			CreatedAt:   day0,
		}
	}

	cases := []struct {
		name     string
		inv      *invitationdomain.Invitation
		now      time.Time
		wantOK   bool
		wantTo   invitationdomain.Status
		reminder content.Kind
	}{
		{"day six", build(0, invitationdomain.StatusSent, 0), at(6), false, "", ""},
		{"first reminder", build(0, invitationdomain.StatusSent, 0), at(7), true, invitationdomain.StatusReminder1Sent, content.KindReminder1},
		{"second reminder too early", build(1, invitationdomain.StatusReminder1Sent, 7), at(13), false, "", ""},
		{"second reminder", build(1, invitationdomain.StatusReminder1Sent, 7), at(14), true, invitationdomain.StatusReminder2Sent, content.KindReminder2},
		{"stalled", build(2, invitationdomain.StatusReminder2Sent, 14), at(21), true, invitationdomain.StatusActionRequired, ""},
		{"stalled before second reminder window", build(1, invitationdomain.StatusReminder1Sent, 18), at(21), true, invitationdomain.StatusActionRequired, ""},
		{"already flagged", build(2, invitationdomain.StatusActionRequired, 14), at(40), false, "", ""},
		{"registered", build(0, invitationdomain.StatusRegistered, 0), at(40), false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := nextStep(tc.inv, tc.now, campaign)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantTo, got.transition.ToStatus)
			assert.Equal(t, tc.reminder, got.reminder)
			assert.Equal(t, tc.inv.Iteration, got.transition.FromIteration)
			assert.GreaterOrEqual(t, got.transition.ToIteration, tc.inv.Iteration)
		})
	}
}
