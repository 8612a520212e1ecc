package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/domain/rules"
	pgrepo "github.com/lubowsky/mood-tracker/internal/repo/postgres"
	"github.com/lubowsky/mood-tracker/internal/services/notifier"
)

type UserDirectory interface {
	ListActive(ctx context.Context) ([]model.User, error)
	SetTrialExhausted(ctx context.Context, id int64) error
}

type SubscriptionLedger interface {
	FindActive(ctx context.Context, userID int64) (model.Subscription, error)
	Deactivate(ctx context.Context, subID int64) error
	MarkWarned(ctx context.Context, subID int64, kind enums.EventKind) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, user model.User, kind enums.EventKind, trial bool) (notifier.Outcome, error)
}

// Job is one scheduler tick over the whole user base. The caller drives it on
// a fixed interval; the job itself owns no timer. Pacing spreads sends out so
// a large minute does not burst into the bot API rate limit.
type Job struct {
	users      UserDirectory
	subs       SubscriptionLedger
	dispatcher Dispatcher
	pacing     time.Duration
	now        func() time.Time
	logger     *zap.Logger

	// sent dedupes per-minute dispatches when a tick fires twice inside the
	// same wall minute. Single scheduler instance owns the whole user base,
	// so an in-process map is enough.
	sent       map[string]struct{}
	lastMinute string
}

func New(users UserDirectory, subs SubscriptionLedger, dispatcher Dispatcher, pacing time.Duration, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pacing < 0 {
		pacing = 0
	}
	return &Job{
		users:      users,
		subs:       subs,
		dispatcher: dispatcher,
		pacing:     pacing,
		now:        time.Now,
		logger:     logger,
		sent:       make(map[string]struct{}),
	}
}

// Run processes a single tick. Per-user failures are logged and skipped so one
// broken profile never starves the rest of the minute.
func (j *Job) Run(ctx context.Context) error {
	if j.users == nil || j.subs == nil || j.dispatcher == nil {
		return fmt.Errorf("scheduler job is not wired")
	}

	now := j.now().UTC()
	j.rotateMinute(now)

	users, err := j.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.processUser(ctx, user, now); err != nil {
			j.logger.Warn("scheduler tick failed for user",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (j *Job) processUser(ctx context.Context, user model.User, now time.Time) error {
	var subPtr *model.Subscription

	sub, err := j.subs.FindActive(ctx, user.ID)
	switch {
	case err == nil:
		subPtr = &sub
	case errors.Is(err, pgrepo.ErrSubscriptionNotFound):
		// Privileged users live without a subscription row.
	default:
		return fmt.Errorf("find active subscription: %w", err)
	}

	if subPtr != nil {
		done, err := j.applyLifecycle(ctx, user, subPtr, now)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	if !rules.HasAccess(user, subPtr, now) {
		return nil
	}

	kinds, err := rules.DueKinds(now, user.Settings.Timezone,
		user.Settings.MorningTime, user.Settings.EveningTime,
		user.Settings.NotificationsEnabled, user.Settings.DaytimeNotifications)
	if err != nil {
		return fmt.Errorf("compute due surveys: %w", err)
	}

	trial := subPtr != nil && subPtr.Plan == enums.PlanTrial
	for _, kind := range kinds {
		outcome, err := j.dispatchOnce(ctx, user, kind, trial, now)
		if err != nil && outcome != notifier.OutcomeFailed {
			return err
		}
		if outcome == notifier.OutcomeUnreachable {
			// The probe already disabled future notifications.
			return nil
		}
		if err := j.pace(ctx); err != nil {
			return err
		}
	}

	return nil
}

// applyLifecycle handles expiry and pre-expiry warnings. It reports done=true
// when the subscription expired this tick, which suppresses surveys.
func (j *Job) applyLifecycle(ctx context.Context, user model.User, sub *model.Subscription, now time.Time) (bool, error) {
	action := rules.NextLifecycleAction(*sub, now)
	trial := sub.Plan == enums.PlanTrial

	switch action {
	case rules.LifecycleExpire:
		if err := j.subs.Deactivate(ctx, sub.ID); err != nil {
			return true, fmt.Errorf("deactivate expired subscription: %w", err)
		}
		sub.IsActive = false

		if trial && !user.IsTrialExhausted {
			if err := j.users.SetTrialExhausted(ctx, user.ID); err != nil {
				return true, fmt.Errorf("mark trial exhausted: %w", err)
			}
		}

		if !sub.ExpiredNotified {
			if err := j.warnOnce(ctx, user, sub, enums.EventExpired, trial, now); err != nil {
				return true, err
			}
		}

		j.logger.Info("subscription expired",
			zap.Int64("user_id", user.ID),
			zap.String("plan", string(sub.Plan)))
		return true, nil

	case rules.LifecycleWarn3Days:
		return false, j.warnOnce(ctx, user, sub, enums.EventWarn3Days, trial, now)

	case rules.LifecycleWarn1Day:
		return false, j.warnOnce(ctx, user, sub, enums.EventWarn1Day, trial, now)
	}

	return false, nil
}

// warnOnce dispatches a lifecycle notice and records the flag unless the
// failure was transient. A transient failure leaves the flag unset so the next
// tick retries the warning.
func (j *Job) warnOnce(ctx context.Context, user model.User, sub *model.Subscription, kind enums.EventKind, trial bool, now time.Time) error {
	outcome, err := j.dispatchOnce(ctx, user, kind, trial, now)
	if err != nil && outcome == notifier.OutcomeFailed {
		j.logger.Warn("lifecycle notice postponed",
			zap.Int64("user_id", user.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if outcome.Permanent() {
		if err := j.subs.MarkWarned(ctx, sub.ID, kind); err != nil {
			return fmt.Errorf("record %s flag: %w", kind, err)
		}
	}
	return nil
}

func (j *Job) dispatchOnce(ctx context.Context, user model.User, kind enums.EventKind, trial bool, now time.Time) (notifier.Outcome, error) {
	key := dedupKey(user.ID, kind, now)
	if _, dup := j.sent[key]; dup {
		return notifier.OutcomeSent, nil
	}

	outcome, err := j.dispatcher.Dispatch(ctx, user, kind, trial)
	if outcome != notifier.OutcomeFailed {
		j.sent[key] = struct{}{}
	}
	return outcome, err
}

func (j *Job) pace(ctx context.Context) error {
	if j.pacing <= 0 {
		return nil
	}
	timer := time.NewTimer(j.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (j *Job) rotateMinute(now time.Time) {
	minute := now.Format("200601021504")
	if minute != j.lastMinute {
		j.lastMinute = minute
		j.sent = make(map[string]struct{})
	}
}

func dedupKey(userID int64, kind enums.EventKind, now time.Time) string {
	return fmt.Sprintf("%d|%s|%s", userID, kind, now.Format("200601021504"))
}
