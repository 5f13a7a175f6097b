package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:authz_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestReferrerCanIssueButNotConfirm(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "user:u1", "referrer", ObjectInvitation, ActionInvitationIssue))
	err := svc.Authorize(ctx, "user:u1", "referrer", ObjectConversion, ActionConversionConfirm)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOperatorCanConfirm(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Authorize(context.Background(), "user:op", "operator", ObjectConversion, ActionConversionConfirm))
	require.NoError(t, svc.Authorize(context.Background(), "system", "system", ObjectConversion, ActionConversionConfirm))
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "user:u2", "operator", ObjectConversion, ActionConversionConfirm))
	// Same subject later presents a referrer token.
	err := svc.Authorize(ctx, "user:u2", "referrer", ObjectConversion, ActionConversionConfirm)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", "referrer", ObjectInvitation, ActionInvitationIssue), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "api:1", "referrer", ObjectInvitation, ActionInvitationIssue), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:u", "admin", ObjectInvitation, ActionInvitationIssue), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:u", "referrer", "", ActionInvitationIssue), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:u", "referrer", ObjectInvitation, " "), ErrInvalidAction)
}
