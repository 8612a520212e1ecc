package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	paymentsvc "github.com/lubowsky/mood-tracker/internal/services/payments"
)

type memPayments struct {
	seen map[string]bool
}

func (m *memPayments) Insert(_ context.Context, p model.Payment) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[p.ProviderPaymentID] {
		return false, nil
	}
	m.seen[p.ProviderPaymentID] = true
	return true, nil
}

type memSubs struct {
	replaced int
}

func (m *memSubs) ReplaceActive(_ context.Context, userID int64, plan enums.Plan, start, end time.Time) (model.Subscription, error) {
	m.replaced++
	return model.Subscription{ID: 1, UserID: userID, Plan: plan, IsActive: true, StartDate: start, EndDate: end}, nil
}

func newWebhookHandler() (*PaymentWebhookHandler, *memSubs) {
	subs := &memSubs{}
	svc := paymentsvc.NewService(&memPayments{}, subs, nil)
	return NewPaymentWebhookHandler(svc, nil), subs
}

func postWebhook(t *testing.T, h *PaymentWebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

const succeededBody = `{
	"event": "payment.succeeded",
	"object": {
		"id": "2e8c3f1a",
		"status": "succeeded",
		"amount": {"value": "990.00", "currency": "RUB"},
		"metadata": {"telegramId": "42", "tariff": "30days"},
		"created_at": "2025-06-01T10:00:00Z"
	}
}`

func TestPaymentWebhookActivates(t *testing.T) {
	h, subs := newWebhookHandler()

	rec := postWebhook(t, h, succeededBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"applied":true`) {
		t.Fatalf("expected applied=true, got %s", rec.Body)
	}
	if subs.replaced != 1 {
		t.Fatalf("expected 1 subscription replacement, got %d", subs.replaced)
	}
}

func TestPaymentWebhookReplayIsIdempotent(t *testing.T) {
	h, subs := newWebhookHandler()

	postWebhook(t, h, succeededBody)
	rec := postWebhook(t, h, succeededBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"applied":false`) {
		t.Fatalf("expected applied=false on replay, got %s", rec.Body)
	}
	if subs.replaced != 1 {
		t.Fatalf("replay must not touch the ledger, got %d", subs.replaced)
	}
}

func TestPaymentWebhookIgnoresOtherEvents(t *testing.T) {
	h, subs := newWebhookHandler()

	body := strings.Replace(succeededBody, "payment.succeeded", "refund.succeeded", 1)
	rec := postWebhook(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if subs.replaced != 0 {
		t.Fatal("ignored event must not touch the ledger")
	}
}

func TestPaymentWebhookRejectsTrialTariff(t *testing.T) {
	h, _ := newWebhookHandler()

	body := strings.Replace(succeededBody, "30days", "trial", 1)
	rec := postWebhook(t, h, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for trial tariff, got %d", rec.Code)
	}
}

func TestPaymentWebhookRejectsBadBody(t *testing.T) {
	h, _ := newWebhookHandler()

	if rec := postWebhook(t, h, "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	if rec := postWebhook(t, h, strings.Replace(succeededBody, `"42"`, `"abc"`, 1)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad telegram id, got %d", rec.Code)
	}
}
