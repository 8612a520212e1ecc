package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Insert records a confirmed provider payment. The unique provider payment id
// makes the webhook idempotent: a duplicate event inserts nothing and returns
// false.
func (r *PaymentRepo) Insert(ctx context.Context, p model.Payment) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if p.UserID <= 0 || strings.TrimSpace(p.ProviderPaymentID) == "" {
		return false, fmt.Errorf("invalid payment payload")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO payments (id, user_id, provider_payment_id, plan, amount, paid_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (provider_payment_id) DO NOTHING
`, p.ID, p.UserID, strings.TrimSpace(p.ProviderPaymentID), string(p.Plan), p.Amount, p.PaidAt)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
