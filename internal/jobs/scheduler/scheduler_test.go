package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	pgrepo "github.com/lubowsky/mood-tracker/internal/repo/postgres"
	"github.com/lubowsky/mood-tracker/internal/services/notifier"
)

type stubUsers struct {
	users     []model.User
	exhausted []int64
}

func (s *stubUsers) ListActive(_ context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *stubUsers) SetTrialExhausted(_ context.Context, id int64) error {
	s.exhausted = append(s.exhausted, id)
	return nil
}

type stubLedger struct {
	subs        map[int64]*model.Subscription
	deactivated []int64
	warned      map[int64][]enums.EventKind
}

func (s *stubLedger) FindActive(_ context.Context, userID int64) (model.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return model.Subscription{}, pgrepo.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *stubLedger) Deactivate(_ context.Context, subID int64) error {
	s.deactivated = append(s.deactivated, subID)
	return nil
}

func (s *stubLedger) MarkWarned(_ context.Context, subID int64, kind enums.EventKind) error {
	if s.warned == nil {
		s.warned = map[int64][]enums.EventKind{}
	}
	s.warned[subID] = append(s.warned[subID], kind)
	return nil
}

type dispatched struct {
	userID int64
	kind   enums.EventKind
	trial  bool
}

type stubDispatcher struct {
	outcome notifier.Outcome
	err     error
	calls   []dispatched
}

func (s *stubDispatcher) Dispatch(_ context.Context, user model.User, kind enums.EventKind, trial bool) (notifier.Outcome, error) {
	s.calls = append(s.calls, dispatched{userID: user.ID, kind: kind, trial: trial})
	return s.outcome, s.err
}

func activeUser(id int64) model.User {
	return model.User{
		ID:       id,
		Role:     enums.RoleUser,
		Status:   enums.UserStatusActive,
		Settings: model.DefaultSettings(),
	}
}

func activeSub(id, userID int64, plan enums.Plan, end time.Time) *model.Subscription {
	return &model.Subscription{
		ID:        id,
		UserID:    userID,
		Plan:      plan,
		IsActive:  true,
		StartDate: end.Add(-30 * 24 * time.Hour),
		EndDate:   end,
	}
}

// moscowMorning is 09:00 in the default Europe/Moscow timezone.
func moscowMorning() time.Time {
	return time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC)
}

func newTestJob(users *stubUsers, ledger *stubLedger, disp *stubDispatcher, at time.Time) *Job {
	job := New(users, ledger, disp, 0, nil)
	job.now = func() time.Time { return at }
	return job
}

func TestRunFiresMorningSurveyAtAnchor(t *testing.T) {
	now := moscowMorning()
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(10*24*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d: %+v", len(disp.calls), disp.calls)
	}
	if disp.calls[0].kind != enums.EventMorningSurvey {
		t.Fatalf("unexpected kind: %s", disp.calls[0].kind)
	}
}

func TestRunSkipsOffMinute(t *testing.T) {
	now := moscowMorning().Add(time.Minute)
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(10*24*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("expected no dispatches, got %+v", disp.calls)
	}
}

func TestRunExpiresTrialAndSuppressesSurveys(t *testing.T) {
	now := moscowMorning()
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.PlanTrial, now.Add(-time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(ledger.deactivated) != 1 || ledger.deactivated[0] != 10 {
		t.Fatalf("expected subscription 10 deactivated, got %v", ledger.deactivated)
	}
	if len(users.exhausted) != 1 || users.exhausted[0] != 1 {
		t.Fatalf("expected trial exhausted for user 1, got %v", users.exhausted)
	}
	if len(disp.calls) != 1 || disp.calls[0].kind != enums.EventExpired {
		t.Fatalf("expected a single expired notice, got %+v", disp.calls)
	}
	if !disp.calls[0].trial {
		t.Fatal("expired notice must carry the trial wording")
	}
	if got := ledger.warned[10]; len(got) != 1 || got[0] != enums.EventExpired {
		t.Fatalf("expected expired flag recorded, got %v", got)
	}
}

func TestRunExpiredNoticeNotRepeated(t *testing.T) {
	now := moscowMorning().Add(2 * time.Hour)
	sub := activeSub(10, 1, enums.PlanTrial, now.Add(-time.Hour))
	sub.ExpiredNotified = true
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{1: sub}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("already-notified expiry must stay silent, got %+v", disp.calls)
	}
	if len(ledger.deactivated) != 1 {
		t.Fatalf("expiry must still deactivate the row, got %v", ledger.deactivated)
	}
}

func TestRunWarns3DaysOnce(t *testing.T) {
	now := moscowMorning().Add(2 * time.Hour)
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(61*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 1 || disp.calls[0].kind != enums.EventWarn3Days {
		t.Fatalf("expected a 3-day warning, got %+v", disp.calls)
	}
	if got := ledger.warned[10]; len(got) != 1 || got[0] != enums.EventWarn3Days {
		t.Fatalf("expected warned3days flag, got %v", got)
	}
}

func TestRunTransientFailureLeavesFlagUnset(t *testing.T) {
	now := moscowMorning().Add(2 * time.Hour)
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(61*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeFailed, err: errors.New("telegram: 502")}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ledger.warned) != 0 {
		t.Fatalf("transient failure must not record the flag, got %v", ledger.warned)
	}
}

func TestRunUnreachableUserStillFlagged(t *testing.T) {
	now := moscowMorning().Add(2 * time.Hour)
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(61*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeUnreachable}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := ledger.warned[10]; len(got) != 1 {
		t.Fatalf("permanent failure must still record the flag, got %v", got)
	}
}

func TestRunDedupesWithinMinute(t *testing.T) {
	now := moscowMorning()
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(10*24*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}
	job := newTestJob(users, ledger, disp, now)

	for i := 0; i < 3; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(disp.calls) != 1 {
		t.Fatalf("expected 1 dispatch across repeated ticks, got %d", len(disp.calls))
	}
}

func TestRunNoSubscriptionSkipsRegularUser(t *testing.T) {
	now := moscowMorning()
	users := &stubUsers{users: []model.User{activeUser(1)}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("user without subscription must be skipped, got %+v", disp.calls)
	}
}

func TestRunAdminWithoutSubscriptionGetsSurveys(t *testing.T) {
	now := moscowMorning()
	admin := activeUser(1)
	admin.Role = enums.RoleAdmin
	users := &stubUsers{users: []model.User{admin}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 1 || disp.calls[0].kind != enums.EventMorningSurvey {
		t.Fatalf("expected admin morning survey, got %+v", disp.calls)
	}
}

func TestRunNotificationsDisabledSkipsSurveys(t *testing.T) {
	now := moscowMorning()
	muted := activeUser(1)
	muted.Settings.NotificationsEnabled = false
	users := &stubUsers{users: []model.User{muted}}
	ledger := &stubLedger{subs: map[int64]*model.Subscription{
		1: activeSub(10, 1, enums.Plan30Days, now.Add(10*24*time.Hour)),
	}}
	disp := &stubDispatcher{outcome: notifier.OutcomeSent}

	if err := newTestJob(users, ledger, disp, now).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("muted user must not receive surveys, got %+v", disp.calls)
	}
}
