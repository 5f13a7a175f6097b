package scheduler

import (
	"time"

	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/content"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
)

// step is the single lifecycle move an invitation takes in one run.
type step struct {
	transition invitationdomain.Transition
	reminder   content.Kind
	stalled    bool
}

// nextStep applies the campaign rules in order and returns the first match.
// Reminders are measured from the last attempt, the stalled alert from creation.
func nextStep(inv *invitationdomain.Invitation, now time.Time, campaign config.CampaignConfig) (step, bool) {
	if inv == nil || inv.Opened || inv.Status.IsTerminal() {
		return step{}, false
	}

	sinceLastAttempt := now.Sub(inv.LastAttemptOrCreated())
	sinceCreated := now.Sub(inv.CreatedAt)
	base := invitationdomain.Transition{
		ID:            inv.ID,
		FromIteration: inv.Iteration,
		FromStatus:    inv.Status,
		At:            now,
	}

	switch {
	case inv.Iteration == invitationdomain.IterationInitial && sinceLastAttempt >= campaign.ReminderInterval():
		t := base
		t.ToIteration = invitationdomain.IterationReminder1
		t.ToStatus = invitationdomain.StatusReminder1Sent
		t.LastAttempt = &now
		return step{transition: t, reminder: content.KindReminder1}, true

	case inv.Iteration == invitationdomain.IterationReminder1 && sinceLastAttempt >= campaign.ReminderInterval():
		t := base
		t.ToIteration = invitationdomain.IterationReminder2
		t.ToStatus = invitationdomain.StatusReminder2Sent
		t.LastAttempt = &now
		return step{transition: t, reminder: content.KindReminder2}, true

	case sinceCreated >= campaign.StalledAfter() && inv.Status != invitationdomain.StatusActionRequired:
		t := base
		t.ToIteration = inv.Iteration
		t.ToStatus = invitationdomain.StatusActionRequired
		t.ManualAction = true
		return step{transition: t, stalled: true}, true
	}

	return step{}, false
}
