package integration_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/infra/telegram"
	"github.com/lubowsky/mood-tracker/internal/jobs/scheduler"
	pgrepo "github.com/lubowsky/mood-tracker/internal/repo/postgres"
	redrepo "github.com/lubowsky/mood-tracker/internal/repo/redis"
	contentsvc "github.com/lubowsky/mood-tracker/internal/services/content"
	entriessvc "github.com/lubowsky/mood-tracker/internal/services/entries"
	notifiersvc "github.com/lubowsky/mood-tracker/internal/services/notifier"
	paymentsvc "github.com/lubowsky/mood-tracker/internal/services/payments"
	subssvc "github.com/lubowsky/mood-tracker/internal/services/subscriptions"
)

// memSubStore is an in-memory stand-in for the postgres subscription repo,
// honoring its one-active-row-per-user contract.
type memSubStore struct {
	mu     sync.Mutex
	nextID int64
	subs   []*model.Subscription
}

func (m *memSubStore) FindActiveByUser(_ context.Context, userID int64) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.IsActive {
			return *sub, nil
		}
	}
	return model.Subscription{}, pgrepo.ErrSubscriptionNotFound
}

func (m *memSubStore) ReplaceActive(_ context.Context, userID int64, plan enums.Plan, start, end time.Time) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.UserID == userID {
			sub.IsActive = false
		}
	}
	m.nextID++
	sub := &model.Subscription{
		ID: m.nextID, UserID: userID, Plan: plan,
		IsActive: true, StartDate: start, EndDate: end,
	}
	m.subs = append(m.subs, sub)
	return *sub, nil
}

func (m *memSubStore) Deactivate(_ context.Context, subID int64) error {
	return m.update(subID, func(s *model.Subscription) { s.IsActive = false })
}

func (m *memSubStore) MarkWarned3Days(_ context.Context, subID int64) error {
	return m.update(subID, func(s *model.Subscription) { s.Warned3Days = true })
}

func (m *memSubStore) MarkWarned1Day(_ context.Context, subID int64) error {
	return m.update(subID, func(s *model.Subscription) { s.Warned1Day = true })
}

func (m *memSubStore) MarkExpiredNotified(_ context.Context, subID int64) error {
	return m.update(subID, func(s *model.Subscription) { s.ExpiredNotified = true })
}

func (m *memSubStore) update(subID int64, apply func(*model.Subscription)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.ID == subID {
			apply(sub)
			return nil
		}
	}
	return pgrepo.ErrSubscriptionNotFound
}

func (m *memSubStore) HasEverHadPlan(_ context.Context, userID int64, plan enums.Plan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Plan == plan {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubStore) get(subID int64) model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.ID == subID {
			return *sub
		}
	}
	return model.Subscription{}
}

func (m *memSubStore) setEndDate(subID int64, end time.Time) {
	_ = m.update(subID, func(s *model.Subscription) { s.EndDate = end })
}

type memUserStore struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func (m *memUserStore) add(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[int64]*model.User{}
	}
	copied := u
	m.users[u.ID] = &copied
}

func (m *memUserStore) FindByID(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return model.User{}, pgrepo.ErrUserNotFound
}

func (m *memUserStore) ListActive(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if u.Status == enums.UserStatusActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserStore) SetTrialExhausted(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsTrialExhausted = true
		return nil
	}
	return pgrepo.ErrUserNotFound
}

func (m *memUserStore) MarkUnreachable(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Status = enums.UserStatusBlocked
		u.Settings.NotificationsEnabled = false
		return nil
	}
	return pgrepo.ErrUserNotFound
}

type memPaymentStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memPaymentStore) Insert(_ context.Context, p model.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[p.ProviderPaymentID] {
		return false, nil
	}
	m.seen[p.ProviderPaymentID] = true
	return true, nil
}

type memEntryStore struct {
	mu      sync.Mutex
	entries []model.MoodEntry
}

func (m *memEntryStore) Insert(_ context.Context, e model.MoodEntry) (model.MoodEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memEntryStore) ListRecent(_ context.Context, _ int64, limit int) ([]model.MoodEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

func (m *memEntryStore) AverageScores(_ context.Context, _ int64, _ time.Time) (float64, float64, int, error) {
	return 0, 0, 0, nil
}

type memGateway struct {
	mu       sync.Mutex
	sends    []telegram.Outbound
	probes   int
	failWith error
}

func (g *memGateway) Probe(_ context.Context, _ int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.probes++
	return g.failWith
}

func (g *memGateway) Send(_ context.Context, _ int64, out telegram.Outbound) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return g.failWith
	}
	g.sends = append(g.sends, out)
	return nil
}

func (g *memGateway) failAllWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

func (g *memGateway) probeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.probes
}

func (g *memGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

func (g *memGateway) last() telegram.Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sends) == 0 {
		return telegram.Outbound{}
	}
	return g.sends[len(g.sends)-1]
}

type fixture struct {
	users   *memUserStore
	subs    *memSubStore
	gateway *memGateway
	ledger  *subssvc.Service
	notify  *notifiersvc.Service
	job     *scheduler.Job
	convs   *redrepo.ConversationRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redrepo.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	users := &memUserStore{}
	subs := &memSubStore{}
	gateway := &memGateway{}
	convs := redrepo.NewConversationRepo(client)

	ledger := subssvc.NewService(subs, users, subssvc.Config{TrialDuration: 24 * time.Hour})
	notify := notifiersvc.NewService(gateway, contentsvc.NewService(), users, convs, nil)
	job := scheduler.New(users, ledger, notify, 0, nil)

	return &fixture{
		users:   users,
		subs:    subs,
		gateway: gateway,
		ledger:  ledger,
		notify:  notify,
		job:     job,
		convs:   convs,
	}
}

// mutedUser keeps surveys out of the picture so scheduler assertions only see
// lifecycle traffic regardless of the wall-clock minute the test runs at.
func mutedUser(id int64) model.User {
	u := model.User{
		ID:       id,
		Role:     enums.RoleUser,
		Status:   enums.UserStatusActive,
		Settings: model.DefaultSettings(),
	}
	u.Settings.NotificationsEnabled = false
	return u
}

func TestSubscriptionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	user := mutedUser(42)
	fx.users.add(user)

	// Trial grant on first contact.
	sub, err := fx.ledger.GrantTrial(ctx, user)
	if err != nil {
		t.Fatalf("grant trial: %v", err)
	}
	if sub.Plan != enums.PlanTrial || !sub.IsActive {
		t.Fatalf("unexpected trial subscription: %+v", sub)
	}

	// A 24h trial sits inside the 1-day warning window immediately, so the
	// first tick sends the warning and records the flag.
	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if fx.gateway.count() != 1 {
		t.Fatalf("expected 1 send after tick 1, got %d", fx.gateway.count())
	}
	if !strings.Contains(fx.gateway.last().Text, "завтра") {
		t.Fatalf("expected 1-day warning, got %q", fx.gateway.last().Text)
	}
	if got := fx.subs.get(sub.ID); !got.Warned1Day {
		t.Fatalf("warned1day flag not recorded: %+v", got)
	}

	// The flag suppresses a repeat on the next tick.
	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if fx.gateway.count() != 1 {
		t.Fatalf("1-day warning repeated: %d sends", fx.gateway.count())
	}

	// Expiry: deactivation, trial exhaustion and a single expiry notice with
	// the tariffs button.
	fx.subs.setEndDate(sub.ID, time.Now().UTC().Add(-time.Hour))
	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if got := fx.subs.get(sub.ID); got.IsActive || !got.ExpiredNotified {
		t.Fatalf("expiry not applied: %+v", got)
	}
	stored, err := fx.users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !stored.IsTrialExhausted {
		t.Fatal("trial exhaustion not recorded")
	}
	if fx.gateway.count() != 2 {
		t.Fatalf("expected expiry notice, got %d sends", fx.gateway.count())
	}
	expired := fx.gateway.last()
	if !strings.Contains(expired.Text, "пробный период") {
		t.Fatalf("expected trial expiry wording, got %q", expired.Text)
	}
	if len(expired.Buttons) == 0 || expired.Buttons[0][0].Data != contentsvc.CallbackShowTariffs {
		t.Fatalf("expiry notice missing tariffs button: %+v", expired.Buttons)
	}

	// After expiry the user has no active subscription and stays silent.
	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 4: %v", err)
	}
	if fx.gateway.count() != 2 {
		t.Fatalf("expired user still receives traffic: %d sends", fx.gateway.count())
	}

	// A second trial is refused once the first one was consumed.
	if _, err := fx.ledger.GrantTrial(ctx, stored); !errors.Is(err, subssvc.ErrTrialAlreadyUsed) {
		t.Fatalf("expected ErrTrialAlreadyUsed, got %v", err)
	}

	// A confirmed payment reopens access with a paid plan.
	payments := paymentsvc.NewService(&memPaymentStore{}, fx.subs, nil)
	applied, err := payments.Confirm(ctx, paymentsvc.Confirmation{
		Event:             "payment.succeeded",
		ProviderPaymentID: "pay-integration-1",
		UserID:            user.ID,
		Plan:              enums.Plan30Days,
		Amount:            "990.00",
	})
	if err != nil || !applied {
		t.Fatalf("confirm payment: applied=%v err=%v", applied, err)
	}
	allowed, err := fx.ledger.HasAccess(ctx, user.ID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if !allowed {
		t.Fatal("paid user must regain access")
	}

	// The paid subscription walks through the 3-day warning window.
	paid, err := fx.subs.FindActiveByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("find paid sub: %v", err)
	}
	fx.subs.setEndDate(paid.ID, time.Now().UTC().Add(61*time.Hour))
	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 5: %v", err)
	}
	if fx.gateway.count() != 3 || !strings.Contains(fx.gateway.last().Text, "3 дня") {
		t.Fatalf("expected 3-day warning, got %d sends, last %q", fx.gateway.count(), fx.gateway.last().Text)
	}
	if got := fx.subs.get(paid.ID); !got.Warned3Days {
		t.Fatalf("warned3days flag not recorded: %+v", got)
	}
}

func TestUnreachableUserGetsNoFurtherTraffic(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	user := mutedUser(17)
	fx.users.add(user)

	// The 24h trial puts the user into the 1-day warning window, so the first
	// tick attempts a delivery regardless of the wall-clock minute.
	if _, err := fx.ledger.GrantTrial(ctx, user); err != nil {
		t.Fatalf("grant trial: %v", err)
	}
	fx.gateway.failAllWith(telegram.ErrUnreachable)

	if err := fx.job.Run(ctx); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if fx.gateway.probeCount() != 1 {
		t.Fatalf("expected a single delivery attempt, got %d probes", fx.gateway.probeCount())
	}
	if fx.gateway.count() != 0 {
		t.Fatalf("nothing must reach an unreachable user, got %d sends", fx.gateway.count())
	}

	stored, err := fx.users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.Status != enums.UserStatusBlocked || stored.Settings.NotificationsEnabled {
		t.Fatalf("unreachable user not silenced: %+v", stored)
	}

	// Subsequent ticks never attempt the blocked user again, even after the
	// gateway recovers.
	fx.gateway.failAllWith(nil)
	for tick := 2; tick <= 3; tick++ {
		if err := fx.job.Run(ctx); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	if fx.gateway.probeCount() != 1 {
		t.Fatalf("blocked user was attempted again: %d probes", fx.gateway.probeCount())
	}
	if fx.gateway.count() != 0 {
		t.Fatalf("blocked user received traffic: %d sends", fx.gateway.count())
	}
}

func TestSurveyConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	user := mutedUser(7)
	user.FirstName = "Аня"
	fx.users.add(user)

	// Dispatching a morning survey opens the conversation at the sleep step.
	outcome, err := fx.notify.Dispatch(ctx, user, enums.EventMorningSurvey, false)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome != notifiersvc.OutcomeSent {
		t.Fatalf("unexpected outcome: %v", outcome)
	}

	state, err := fx.convs.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if state.Flow != enums.FlowMorning || state.Step != enums.StepAwaitSleepQuality {
		t.Fatalf("unexpected opening state: %+v", state)
	}

	// Walk the flow the way the callback handlers do.
	sleep := 8
	state.SleepQuality = &sleep
	state.Step = enums.StepAwaitMoodScore
	if err := fx.convs.Set(ctx, user.ID, state); err != nil {
		t.Fatalf("advance to mood: %v", err)
	}

	mood := 6
	state.MoodScore = &mood
	state.Step = enums.StepAwaitNote
	if err := fx.convs.Set(ctx, user.ID, state); err != nil {
		t.Fatalf("advance to note: %v", err)
	}

	entryStore := &memEntryStore{}
	entrySvc := entriessvc.NewService(entryStore)
	entry, err := entrySvc.RecordSurvey(ctx, user.ID, enums.EventForFlow(state.Flow), state, "спал отлично")
	if err != nil {
		t.Fatalf("record survey: %v", err)
	}
	if err := fx.convs.Clear(ctx, user.ID); err != nil {
		t.Fatalf("clear conversation: %v", err)
	}

	if entry.Source != enums.EntrySourceMorningSurvey {
		t.Fatalf("unexpected source: %s", entry.Source)
	}
	if entry.MoodScore != 6 || entry.SleepQuality == nil || *entry.SleepQuality != 8 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if _, err := fx.convs.Get(ctx, user.ID); !errors.Is(err, redrepo.ErrConversationNotFound) {
		t.Fatalf("conversation must be cleared, got %v", err)
	}
}
