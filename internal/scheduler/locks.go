package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/pioneer/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const runLockKeyFormat = "pioneer:scheduler:%s"

// claimInvitations reads the next page of active, unopened invitations inside
// tx. On postgres and mysql the rows stay locked until tx ends and concurrent
// runs skip them.
func (s *Scheduler) claimInvitations(ctx context.Context, tx *gorm.DB, afterID snowflake.ID, limit int) ([]*invitationdomain.Invitation, error) {
	forUpdate := pkgdb.SupportsSkipLocked(tx)
	lockStart := time.Now()
	invitations, err := s.invitationRepo.ListActiveUnopened(ctx, tx, afterID, limit, forUpdate)
	if forUpdate {
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceInvitationsForWork, time.Since(lockStart))
	}
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// acquireRunLock takes the redis run lock for job. The returned release func
// is never nil. ok is false when another holder owns the lock.
func (s *Scheduler) acquireRunLock(ctx context.Context, job string) (release func(), ok bool, err error) {
	noop := func() {}
	if !s.locker.Enabled() {
		return noop, true, nil
	}

	key := fmt.Sprintf(runLockKeyFormat, job)
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		obsmetrics.Scheduler().IncRunSkipped(obsmetrics.SchedulerRunSkippedLockErr)
		return noop, false, err
	}
	if !acquired {
		obsmetrics.Scheduler().IncRunSkipped(obsmetrics.SchedulerRunSkippedLockHeld)
		return noop, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler run lock release failed", zap.String("job", job), zap.Error(err))
		}
	}, true, nil
}
