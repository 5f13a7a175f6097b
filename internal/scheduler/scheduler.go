package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/content"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	notificationdomain "github.com/smallbiznis/pioneer/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	"github.com/smallbiznis/pioneer/internal/providers/email"
	"github.com/smallbiznis/pioneer/internal/ratelimit"
	"github.com/smallbiznis/pioneer/internal/referral"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobCampaignAdvance = "campaign_advance"

var ErrInvalidConfig = errors.New("invalid scheduler config")

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	InvitationRepo  invitationdomain.Repository
	NotificationSvc notificationdomain.Service
	Email           email.Provider
	Links           *referral.LinkBuilder
	Campaign        *config.CampaignConfigHolder
	Locker          *ratelimit.Locker   `optional:"true"`
	Metrics         *obsmetrics.Metrics `optional:"true"`
	Config          Config              `optional:"true"`
}

type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	invitationRepo  invitationdomain.Repository
	notificationSvc notificationdomain.Service
	email           email.Provider
	links           *referral.LinkBuilder
	campaign        *config.CampaignConfigHolder
	locker          *ratelimit.Locker
	metrics         *obsmetrics.Metrics
}

// reminderSend is a reminder whose transition committed and still needs delivery.
type reminderSend struct {
	invitation *invitationdomain.Invitation
	kind       content.Kind
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.InvitationRepo == nil ||
		p.NotificationSvc == nil || p.Email == nil || p.Links == nil || p.Campaign == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		invitationRepo:  p.InvitationRepo,
		notificationSvc: p.NotificationSvc,
		email:           p.Email,
		links:           p.Links,
		campaign:        p.Campaign,
		locker:          p.Locker,
		metrics:         p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A timed out run resumes on the next tick; unprocessed rows are still eligible.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if !s.isJobEnabled(JobCampaignAdvance) {
		return nil
	}

	release, ok, err := s.acquireRunLock(parent, JobCampaignAdvance)
	defer release()
	if err != nil {
		return fmt.Errorf("%s: acquire run lock: %w", JobCampaignAdvance, err)
	}
	if !ok {
		s.log.Info("scheduler run skipped, lock held elsewhere", zap.String("job", JobCampaignAdvance))
		return nil
	}

	return s.runJob(parent, JobCampaignAdvance, s.cfg.BatchSize, s.cfg.JobTimeout, s.CampaignAdvanceJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// CampaignAdvanceJob walks every active, unopened invitation once and applies
// at most one lifecycle step to each.
func (s *Scheduler) CampaignAdvanceJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCampaignAdvance, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	campaign := s.campaign.Get()
	now := s.clock.Now().UTC()
	var (
		afterID snowflake.ID
		jobErr  error
	)

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		lastID, claimed, err := s.advanceBatch(ctx, run, afterID, now, campaign)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.batch.failed", JobCampaignAdvance, afterID, err)
			return errors.Join(jobErr, err)
		}
		run.AddProcessed(claimed)
		obsmetrics.Scheduler().AddBatchProcessed(JobCampaignAdvance, obsmetrics.LockResourceInvitationsForWork, claimed)
		if claimed < s.cfg.BatchSize || lastID == 0 {
			break
		}
		afterID = lastID
	}

	return jobErr
}

// advanceBatch claims one page after afterID and commits its transitions and
// stalled notifications together. Reminder emails go out after the commit so a
// rolled back batch never mails anyone.
func (s *Scheduler) advanceBatch(ctx context.Context, run *jobRun, afterID snowflake.ID, now time.Time, campaign config.CampaignConfig) (snowflake.ID, int, error) {
	var (
		lastID  snowflake.ID
		claimed int
		applied []invitationdomain.Transition
		sends   []reminderSend
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied = applied[:0]
		sends = sends[:0]

		invitations, err := s.claimInvitations(ctx, tx, afterID, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		claimed = len(invitations)

		for _, inv := range invitations {
			lastID = inv.ID
			next, ok := nextStep(inv, now, campaign)
			if !ok {
				continue
			}

			won, err := s.invitationRepo.Transition(ctx, tx, next.transition)
			if err != nil {
				return fmt.Errorf("transition invitation %s: %w", inv.ID, err)
			}
			if !won {
				obsmetrics.Scheduler().IncCASConflict(JobCampaignAdvance)
				continue
			}

			if next.stalled {
				if _, err := s.notificationSvc.CreateTx(ctx, tx, stalledNotification(inv)); err != nil {
					return fmt.Errorf("notify referrer for invitation %s: %w", inv.ID, err)
				}
			}
			if next.reminder != "" {
				sends = append(sends, reminderSend{invitation: inv, kind: next.reminder})
			}
			applied = append(applied, next.transition)
			s.logTransition(ctx, JobCampaignAdvance, inv, next.transition)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	run.AddTransitions(len(applied))
	for _, t := range applied {
		obsmetrics.Scheduler().IncInvitationTransition(string(t.FromStatus), string(t.ToStatus))
	}
	for _, send := range sends {
		s.sendReminder(ctx, run, send, campaign)
	}
	return lastID, claimed, nil
}

// sendReminder delivers one reminder. Failures are logged; the invitation has
// already advanced and will not be retried.
func (s *Scheduler) sendReminder(ctx context.Context, run *jobRun, send reminderSend, campaign config.CampaignConfig) {
	inv := send.invitation

	link, err := s.links.Invitation(inv.ReferrerID, inv.ReferrerName, inv.ID.String())
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reminder.failed", JobCampaignAdvance, inv.ID, err)
		return
	}
	rendered, err := content.Render(content.Params{
		Kind:          send.kind,
		RecipientName: inv.FriendName,
		SenderLabel:   campaign.ReminderSenderLabel,
		Link:          link,
		Lang:          inv.Lang,
	})
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reminder.failed", JobCampaignAdvance, inv.ID, err)
		return
	}

	_, err = s.email.Send(ctx, inv.FriendEmail, rendered.Subject, rendered.HTML)
	s.metrics.RecordEmailSend(ctx, string(send.kind), err)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reminder.failed", JobCampaignAdvance, inv.ID, err,
			zap.String("kind", string(send.kind)),
		)
	}
}

func stalledNotification(inv *invitationdomain.Invitation) notificationdomain.CreateRequest {
	return notificationdomain.CreateRequest{
		UserID:  inv.ReferrerID,
		Type:    notificationdomain.TypeReferralStalled,
		Title:   content.Localize(inv.Lang, "stalled.title", inv.FriendName),
		Message: content.Localize(inv.Lang, "stalled.message", inv.FriendName),
		Data: map[string]any{
			"invitation_id": inv.ID.String(),
			"friend_name":   inv.FriendName,
			"friend_email":  inv.FriendEmail,
		},
	}
}
