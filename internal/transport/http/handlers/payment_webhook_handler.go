package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	paymentsvc "github.com/lubowsky/mood-tracker/internal/services/payments"
	"github.com/lubowsky/mood-tracker/internal/transport/http/dto"
	httperrors "github.com/lubowsky/mood-tracker/internal/transport/http/errors"
)

type PaymentWebhookHandler struct {
	payments *paymentsvc.Service
	logger   *zap.Logger
}

func NewPaymentWebhookHandler(payments *paymentsvc.Service, logger *zap.Logger) *PaymentWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWebhookHandler{payments: payments, logger: logger}
}

// Handle accepts the provider's payment notification. Payloads that can never
// succeed answer 400 so the provider stops retrying them; only transient
// internal errors return 5xx and stay eligible for a retry.
func (h *PaymentWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.PaymentWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook body")
		return
	}

	userID, err := strconv.ParseInt(req.Object.Metadata.TelegramID, 10, 64)
	if err != nil {
		h.logger.Warn("webhook with bad telegram id",
			zap.String("telegram_id", req.Object.Metadata.TelegramID),
			zap.String("provider_payment_id", req.Object.ID))
		writeBadRequest(w, "VALIDATION_ERROR", "invalid telegram id in metadata")
		return
	}

	var paidAt time.Time
	if req.Object.CreatedAt != "" {
		if ts, parseErr := time.Parse(time.RFC3339, req.Object.CreatedAt); parseErr == nil {
			paidAt = ts
		}
	}

	applied, err := h.payments.Confirm(r.Context(), paymentsvc.Confirmation{
		Event:             req.Event,
		ProviderPaymentID: req.Object.ID,
		UserID:            userID,
		Plan:              enums.Plan(req.Object.Metadata.Tariff),
		Amount:            req.Object.Amount.Value,
		PaidAt:            paidAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation), errors.Is(err, paymentsvc.ErrBadPlan):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment payload")
		default:
			h.logger.Error("payment webhook failed", zap.Error(err))
			writeInternal(w, "INTERNAL_ERROR", "failed to process payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentWebhookResponse{Applied: applied})
}

func decodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
