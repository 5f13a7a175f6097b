package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/auth"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/conversion/domain"
	"github.com/smallbiznis/pioneer/internal/conversion/repository"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/pioneer/internal/invitation/repository"
	"github.com/smallbiznis/pioneer/internal/testutil"
	walletdomain "github.com/smallbiznis/pioneer/internal/wallet/domain"
	walletservice "github.com/smallbiznis/pioneer/internal/wallet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db             *gorm.DB
	clock          *clock.FakeClock
	repo           domain.Repository
	invitationRepo invitationdomain.Repository
	wallet         walletdomain.Service
	svc            domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	wallet := walletservice.NewService(walletservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc})

	f := &fixture{
		db:             db,
		clock:          fc,
		repo:           repository.Provide(),
		invitationRepo: invitationrepo.Provide(),
		wallet:         wallet,
	}
	f.svc = New(Params{
		DB:             db,
		Log:            zap.NewNop(),
		Clock:          fc,
		Repo:           f.repo,
		InvitationRepo: f.invitationRepo,
		Wallet:         wallet,
		Campaign:       config.NewStaticCampaignConfig(config.DefaultCampaignConfig()),
	})
	return f
}

func systemCtx() context.Context {
	return auth.WithCaller(context.Background(), auth.Caller{Subject: "checkout", Role: auth.RoleSystem})
}

func (f *fixture) registration(t *testing.T, id, userID, email string) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.repo.Insert(context.Background(), f.db, &domain.Registration{
		ID:        id,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f *fixture) invitation(t *testing.T, id int64, email string, points, balance float64) *invitationdomain.Invitation {
	t.Helper()
	now := f.clock.Now()
	inv := &invitationdomain.Invitation{
		ID:                  snowflake.ID(id),
		ReferrerID:          "user-1",
		ReferrerName:        "Ana",
		FriendName:          "Bob",
		FriendEmail:         email,
		Lang:                "en",
		Status:              invitationdomain.StatusOpened,
		Opened:              true,
		DiciPointsIncentive: points,
		GuaranteedBalance:   balance,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.invitationRepo.InsertBatch(context.Background(), f.db, []*invitationdomain.Invitation{inv}))
	f.clock.Advance(time.Minute)
	return inv
}

func TestConfirmCreditsInvitationIncentive(t *testing.T) {
	f := newFixture(t)
	f.registration(t, "reg-1", "friend-1", "bob@example.com")
	inv := f.invitation(t, 1001, "bob@example.com", 80, 40)

	res, err := f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "reg-1", InviteID: inv.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, inv.ID.String(), res.InvitationID)
	assert.Equal(t, 80.0, res.Points)
	assert.NotEmpty(t, res.Message)

	wallet, err := f.wallet.Get(context.Background(), "friend-1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, wallet.Points)
	assert.Equal(t, 40.0, wallet.GuaranteedBalance)
	assert.Equal(t, "EUR", wallet.Currency)

	reg, err := f.repo.FindByID(context.Background(), f.db, "reg-1")
	require.NoError(t, err)
	assert.True(t, reg.IsPioneer())
	require.NotNil(t, reg.PioneerAt)

	got, err := f.invitationRepo.FindByID(context.Background(), f.db, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusRegistered, got.Status)
	require.NotNil(t, got.RegisteredAt)
}

func TestConfirmTwiceCreditsOnce(t *testing.T) {
	f := newFixture(t)
	f.registration(t, "reg-1", "friend-1", "bob@example.com")
	f.invitation(t, 1001, "bob@example.com", 50, 25)

	_, err := f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "reg-1"})
	require.NoError(t, err)
	_, err = f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "reg-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyConverted)

	wallet, err := f.wallet.Get(context.Background(), "friend-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, wallet.Points)
	assert.Equal(t, 25.0, wallet.GuaranteedBalance)
}

func TestConfirmFallsBackToEarliestInvitationByEmail(t *testing.T) {
	f := newFixture(t)
	f.registration(t, "reg-1", "friend-1", "Bob@Example.com")
	first := f.invitation(t, 1001, "bob@example.com", 60, 30)
	second := f.invitation(t, 1002, "bob@example.com", 10, 5)

	res, err := f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "reg-1", InviteID: "999999"})
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), res.InvitationID)
	assert.Equal(t, 60.0, res.Points)

	untouched, err := f.invitationRepo.FindByID(context.Background(), f.db, second.ID)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusOpened, untouched.Status)
}

func TestConfirmWithoutInvitationUsesCampaignDefaults(t *testing.T) {
	f := newFixture(t)
	f.registration(t, "reg-1", "friend-1", "solo@example.com")

	res, err := f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "reg-1"})
	require.NoError(t, err)
	assert.Empty(t, res.InvitationID)
	assert.Equal(t, 50.0, res.Points)
	assert.Equal(t, 25.0, res.GuaranteedBalance)
}

func TestConfirmRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidRegistration)

	_, err = f.svc.Confirm(systemCtx(), domain.ConfirmRequest{RegistrationID: "missing"})
	assert.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	_, err = f.svc.Confirm(context.Background(), domain.ConfirmRequest{RegistrationID: "reg-1"})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}
