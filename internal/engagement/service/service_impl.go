package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/engagement/domain"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/pioneer/internal/invitation/repository"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    invitationdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    invitationdomain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("engagement.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Handle(ctx context.Context, event domain.Event) (domain.Result, error) {
	email := strings.ToLower(strings.TrimSpace(event.Email))
	if email == "" {
		return domain.Result{}, domain.ErrMissingEmail
	}

	result := domain.Result{Type: event.Type()}
	if result.Type == domain.EventUnknown {
		result.Outcome = domain.OutcomeIgnored
		s.log.Debug("ignoring engagement event", zap.String("event", event.Event))
		s.metrics.RecordEngagementEvent(ctx, string(result.Type), string(result.Outcome))
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches, byMessageID, err := s.correlate(ctx, tx, event.MessageID, email, result.Type == domain.EventHardBounce)
		if err != nil {
			return err
		}
		result.Matched = len(matches)
		result.ByMessageID = byMessageID
		if len(matches) == 0 {
			return nil
		}

		now := s.clock.Now().UTC()
		switch result.Type {
		case domain.EventOpened, domain.EventClicked:
			ids := make([]snowflake.ID, 0, len(matches))
			for _, inv := range matches {
				if !inv.Opened && !inv.Status.IsTerminal() {
					ids = append(ids, inv.ID)
				}
			}
			result.Updated, err = s.repo.MarkOpened(ctx, tx, ids, now)
		case domain.EventHardBounce:
			ids := make([]snowflake.ID, 0, len(matches))
			for _, inv := range matches {
				if inv.Status != invitationdomain.StatusRegistered {
					ids = append(ids, inv.ID)
				}
			}
			result.Updated, err = s.repo.MarkInvalidEmail(ctx, tx, ids, now)
		}
		return err
	})
	if err != nil {
		s.metrics.RecordEngagementEvent(ctx, string(result.Type), "failed")
		return domain.Result{}, fmt.Errorf("apply %s event: %w", result.Type, err)
	}

	switch {
	case result.Matched == 0:
		result.Outcome = domain.OutcomeNoMatch
		s.log.Info("engagement event matched no invitation",
			zap.String("event", string(result.Type)),
			zap.String("recipient", email),
		)
	case result.Updated == 0:
		result.Outcome = domain.OutcomeUnchanged
	default:
		result.Outcome = domain.OutcomeUpdated
	}
	s.metrics.RecordEngagementEvent(ctx, string(result.Type), string(result.Outcome))

	s.log.Debug("engagement event applied",
		zap.String("event", string(result.Type)),
		zap.Int("matched", result.Matched),
		zap.Int64("updated", result.Updated),
		zap.Bool("by_message_id", result.ByMessageID),
	)
	return result, nil
}

// correlate prefers the provider message id and falls back to every invitation
// sent to the address. A bounce invalidates the address itself, so with
// wholeAddress the message id matches are unioned with every invitation sent
// to the address.
func (s *Service) correlate(ctx context.Context, tx *gorm.DB, messageID, email string, wholeAddress bool) ([]*invitationdomain.Invitation, bool, error) {
	var byID []*invitationdomain.Invitation
	if trackingID := invitationrepo.NormalizeTrackingID(messageID); trackingID != "" {
		matches, err := s.repo.FindByTrackingID(ctx, tx, trackingID)
		if err != nil {
			return nil, false, err
		}
		if len(matches) > 0 && !wholeAddress {
			return matches, true, nil
		}
		byID = matches
	}

	byEmail, err := s.repo.FindByEmail(ctx, tx, email)
	if err != nil {
		return nil, false, err
	}
	if len(byID) == 0 {
		return byEmail, false, nil
	}

	seen := make(map[snowflake.ID]struct{}, len(byID)+len(byEmail))
	merged := make([]*invitationdomain.Invitation, 0, len(byID)+len(byEmail))
	for _, inv := range append(byID, byEmail...) {
		if _, dup := seen[inv.ID]; dup {
			continue
		}
		seen[inv.ID] = struct{}{}
		merged = append(merged, inv)
	}
	return merged, true, nil
}
