package model

import (
	"time"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
)

type Payment struct {
	ID                string     `json:"id"` // internal uuid
	UserID            int64      `json:"user_id"`
	ProviderPaymentID string     `json:"provider_payment_id"`
	Plan              enums.Plan `json:"plan"`
	Amount            string     `json:"amount"`
	PaidAt            time.Time  `json:"paid_at"`
	CreatedAt         time.Time  `json:"created_at"`
}
