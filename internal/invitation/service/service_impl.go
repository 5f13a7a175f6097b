package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/auth"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/content"
	"github.com/smallbiznis/pioneer/internal/invitation/domain"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	"github.com/smallbiznis/pioneer/internal/providers/email"
	"github.com/smallbiznis/pioneer/internal/ratelimit"
	"github.com/smallbiznis/pioneer/internal/referral"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxFriendsPerRequest = 50

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Email    email.Provider
	Links    *referral.LinkBuilder
	Campaign *config.CampaignConfigHolder
	Limiter  *ratelimit.InviteLimiter `optional:"true"`
	Metrics  *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	email    email.Provider
	links    *referral.LinkBuilder
	campaign *config.CampaignConfigHolder
	limiter  *ratelimit.InviteLimiter
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invitation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		email:    p.Email,
		links:    p.Links,
		campaign: p.Campaign,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

// Issue persists one invitation per friend in a single transaction, then sends
// the initial emails one by one and records each provider message id.
func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.IssueResult, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return domain.IssueResult{}, auth.ErrUnauthenticated
	}

	referrerName := strings.TrimSpace(req.ReferrerName)
	if referrerName == "" {
		referrerName = caller.Name
	}
	if referrerName == "" {
		return domain.IssueResult{}, domain.ErrInvalidName
	}

	friends, err := normalizeFriends(req.Friends)
	if err != nil {
		return domain.IssueResult{}, err
	}

	if s.limiter.Enabled() {
		res, err := s.limiter.AllowReferrer(ctx, caller.Subject, len(friends))
		if err != nil {
			// Redis trouble should not block referrals.
			s.log.Warn("invite rate limit check failed", zap.Error(err))
		} else if !res.Allowed {
			return domain.IssueResult{}, fmt.Errorf("%w: retry after %s", ratelimit.ErrLimited, res.RetryAfter.Round(time.Second))
		}
	}

	campaign := s.campaign.Get()
	now := s.clock.Now().UTC()
	invitations := make([]*domain.Invitation, 0, len(friends))
	for _, friend := range friends {
		invitations = append(invitations, &domain.Invitation{
			ID:                  s.genID.Generate(),
			ReferrerID:          caller.Subject,
			ReferrerName:        referrerName,
			FriendName:          friend.Name,
			FriendEmail:         friend.Email,
			CustomBody:          friend.EditedText,
			Lang:                friend.Lang,
			Status:              domain.StatusSent,
			Iteration:           domain.IterationInitial,
			LastAttempt:         &now,
			DiciPointsIncentive: campaign.PointsIncentive,
			GuaranteedBalance:   campaign.GuaranteedBalance,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBatch(ctx, tx, invitations)
	})
	if err != nil {
		return domain.IssueResult{}, fmt.Errorf("persist invitations: %w", err)
	}
	s.metrics.RecordInvitationsIssued(ctx, len(invitations))

	result := domain.IssueResult{
		Count:         len(invitations),
		InvitationIDs: make([]string, 0, len(invitations)),
	}
	for _, invitation := range invitations {
		result.InvitationIDs = append(result.InvitationIDs, invitation.ID.String())
		if s.sendInitial(ctx, invitation) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	s.log.Info("invitations issued",
		zap.String("referrer_id", caller.Subject),
		zap.Int("count", result.Count),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) sendInitial(ctx context.Context, invitation *domain.Invitation) bool {
	log := s.log.With(zap.String("invitation_id", invitation.ID.String()))

	link, err := s.links.Invitation(invitation.ReferrerID, invitation.ReferrerName, invitation.ID.String())
	if err != nil {
		log.Error("build invitation link failed", zap.Error(err))
		return false
	}
	rendered, err := content.Render(content.Params{
		Kind:          content.KindInvitation,
		RecipientName: invitation.FriendName,
		SenderLabel:   invitation.ReferrerName,
		CustomMessage: invitation.CustomBody,
		Link:          link,
		Lang:          invitation.Lang,
	})
	if err != nil {
		log.Error("render invitation failed", zap.Error(err))
		return false
	}

	messageID, err := s.email.Send(ctx, invitation.FriendEmail, rendered.Subject, rendered.HTML)
	s.metrics.RecordEmailSend(ctx, string(content.KindInvitation), err)
	if err != nil {
		log.Warn("invitation email send failed", zap.Error(err))
		return false
	}

	if messageID != "" {
		if _, err := s.repo.SetTrackingID(ctx, s.db, invitation.ID, messageID, s.clock.Now().UTC()); err != nil {
			// The email went out; webhook correlation falls back to email.
			log.Warn("store tracking id failed", zap.Error(err))
		}
	}
	return true
}

func (s *Service) ListMine(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, auth.ErrUnauthenticated
	}

	limit := req.Limit()
	items, err := s.repo.ListByReferrer(ctx, s.db, caller.Subject, req.Pagination)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(inv *domain.Invitation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	invitations := make([]domain.Invitation, 0, len(items))
	for _, item := range items {
		invitations = append(invitations, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Invitations: invitations}, nil
}

func normalizeFriends(friends []domain.Friend) ([]domain.Friend, error) {
	if len(friends) == 0 || len(friends) > maxFriendsPerRequest {
		return nil, domain.ErrInvalidFriends
	}
	out := make([]domain.Friend, 0, len(friends))
	for _, friend := range friends {
		name := strings.TrimSpace(friend.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(friend.Email))
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		out = append(out, domain.Friend{
			Name:       name,
			Email:      strings.ToLower(addr.Address),
			EditedText: strings.TrimSpace(friend.EditedText),
			Lang:       content.NormalizeLanguage(friend.Lang),
		})
	}
	return out, nil
}
