package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectInvitation   = "invitation"
	ObjectConversion   = "conversion"
	ObjectReferral     = "referral"
	ObjectNotification = "notification"
	ObjectWallet       = "wallet"
	ObjectScheduler    = "scheduler"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionInvitationIssue = "invitation.issue"
	ActionInvitationView  = "invitation.view"

	ActionConversionConfirm = "conversion.confirm"

	ActionReferralView = "referral.view"

	ActionNotificationView   = "notification.view"
	ActionNotificationUpdate = "notification.update"

	ActionWalletView = "wallet.view"

	ActionSchedulerRun = "scheduler.run"

	ActionAuditLogView = "audit_log.view"
)

var knownRoles = map[string]struct{}{
	"referrer": {},
	"operator": {},
	"system":   {},
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, role, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" || (actor != "system" && !strings.HasPrefix(actor, "user:")) {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := knownRoles[role]; !ok {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName := "role:" + role
	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("actor", actor),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per actor; roles come from the token.
func (s *ServiceImpl) ensureGrouping(subject, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Referrers manage their own invitations.
		{"role:referrer", ObjectInvitation, ActionInvitationIssue},
		{"role:referrer", ObjectInvitation, ActionInvitationView},
		{"role:referrer", ObjectReferral, ActionReferralView},
		{"role:referrer", ObjectNotification, ActionNotificationView},
		{"role:referrer", ObjectNotification, ActionNotificationUpdate},
		{"role:referrer", ObjectWallet, ActionWalletView},

		// Operators are the purchase backend confirming first investments.
		{"role:operator", ObjectConversion, ActionConversionConfirm},
		{"role:operator", ObjectInvitation, ActionInvitationView},
		{"role:operator", ObjectScheduler, ActionSchedulerRun},
		{"role:operator", ObjectAuditLog, ActionAuditLogView},

		{"role:system", ObjectConversion, ActionConversionConfirm},
		{"role:system", ObjectInvitation, ActionInvitationView},
		{"role:system", ObjectWallet, ActionWalletView},
		{"role:system", ObjectScheduler, ActionSchedulerRun},
		{"role:system", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
