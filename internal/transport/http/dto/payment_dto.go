package dto

// PaymentWebhookRequest mirrors the provider's notification payload. Only the
// fields the engine consumes are declared; the decoder ignores the rest.
type PaymentWebhookRequest struct {
	Event  string               `json:"event"`
	Object PaymentWebhookObject `json:"object"`
}

type PaymentWebhookObject struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Amount    PaymentWebhookAmount   `json:"amount"`
	Metadata  PaymentWebhookMetadata `json:"metadata"`
	CreatedAt string                 `json:"created_at"`
}

type PaymentWebhookAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type PaymentWebhookMetadata struct {
	TelegramID string `json:"telegramId"`
	Tariff     string `json:"tariff"`
}

type PaymentWebhookResponse struct {
	Applied bool `json:"applied"`
}
