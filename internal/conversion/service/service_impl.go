package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/auth"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/conversion/domain"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	walletdomain "github.com/smallbiznis/pioneer/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const confirmedMessage = "Purchase confirmed, referral reward credited"

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Repo           domain.Repository
	InvitationRepo invitationdomain.Repository
	Wallet         walletdomain.Service
	Campaign       *config.CampaignConfigHolder
	Metrics        *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	repo           domain.Repository
	invitationRepo invitationdomain.Repository
	wallet         walletdomain.Service
	campaign       *config.CampaignConfigHolder
	metrics        *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("conversion.service"),
		clock:          p.Clock,
		repo:           p.Repo,
		invitationRepo: p.InvitationRepo,
		wallet:         p.Wallet,
		campaign:       p.Campaign,
		metrics:        p.Metrics,
	}
}

// Confirm settles a referred friend's first purchase: the registration becomes a
// pioneer, the friend's wallet receives the invitation incentive and the
// invitation is closed as registered. Repeated calls credit once.
func (s *Service) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, error) {
	if _, ok := auth.CallerFromContext(ctx); !ok {
		return domain.ConfirmResult{}, auth.ErrUnauthenticated
	}

	registrationID := strings.TrimSpace(req.RegistrationID)
	if registrationID == "" {
		return domain.ConfirmResult{}, domain.ErrInvalidRegistration
	}

	registration, err := s.repo.FindByID(ctx, s.db, registrationID)
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("load registration: %w", err)
	}
	if registration == nil {
		s.metrics.RecordConversion(ctx, "not_found")
		return domain.ConfirmResult{}, domain.ErrRegistrationNotFound
	}

	invitation, err := s.resolveInvitation(ctx, strings.TrimSpace(req.InviteID), registration.Email)
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("resolve invitation: %w", err)
	}

	campaign := s.campaign.Get()
	result := domain.ConfirmResult{
		RegistrationID:    registration.ID,
		RewardedUserID:    registration.UserID,
		Points:            campaign.PointsIncentive,
		GuaranteedBalance: campaign.GuaranteedBalance,
		Currency:          campaign.Currency,
		Message:           confirmedMessage,
	}
	if invitation != nil {
		result.InvitationID = invitation.ID.String()
		result.Points = invitation.DiciPointsIncentive
		result.GuaranteedBalance = invitation.GuaranteedBalance
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marked, err := s.repo.MarkPioneer(ctx, tx, registration.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return domain.ErrAlreadyConverted
		}

		credited, err := s.wallet.CreditTx(ctx, tx, walletdomain.Credit{
			UserID:            registration.UserID,
			SourceType:        walletdomain.SourceTypeConversion,
			SourceID:          registration.ID,
			Points:            result.Points,
			GuaranteedBalance: result.GuaranteedBalance,
			Currency:          result.Currency,
			OccurredAt:        now,
		})
		if err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		if !credited {
			return domain.ErrAlreadyConverted
		}

		if invitation != nil && invitation.Status != invitationdomain.StatusRegistered {
			if _, err := s.invitationRepo.MarkRegistered(ctx, tx, invitation.ID, now); err != nil {
				return fmt.Errorf("mark invitation registered: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConverted) {
			s.metrics.RecordConversion(ctx, "already_converted")
			return domain.ConfirmResult{}, err
		}
		s.metrics.RecordConversion(ctx, "failed")
		return domain.ConfirmResult{}, err
	}

	s.metrics.RecordConversion(ctx, "ok")
	s.log.Info("conversion confirmed",
		zap.String("registration_id", registration.ID),
		zap.String("invitation_id", result.InvitationID),
		zap.Float64("points", result.Points),
		zap.Float64("guaranteed_balance", result.GuaranteedBalance),
	)
	return result, nil
}

// resolveInvitation tries the explicit invite id, then the earliest invitation
// sent to the registration email. Nil means the signup was not referred.
func (s *Service) resolveInvitation(ctx context.Context, inviteID, email string) (*invitationdomain.Invitation, error) {
	if inviteID != "" {
		id, err := strconv.ParseInt(inviteID, 10, 64)
		if err != nil {
			s.log.Warn("ignoring malformed invite id", zap.String("invite_id", inviteID))
		} else {
			invitation, err := s.invitationRepo.FindByID(ctx, s.db, snowflake.ID(id))
			if err != nil {
				return nil, err
			}
			if invitation != nil {
				return invitation, nil
			}
			s.log.Warn("invite id not found, falling back to email", zap.String("invite_id", inviteID))
		}
	}
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	return s.invitationRepo.FirstByEmail(ctx, s.db, email)
}
