package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const subscriptionColumns = `
id, user_id, plan, is_active, start_date, end_date,
warned_3days, warned_1day, expired_notified, created_at, updated_at`

func (r *SubscriptionRepo) FindActiveByUser(ctx context.Context, userID int64) (model.Subscription, error) {
	if r.pool == nil {
		return model.Subscription{}, fmt.Errorf("postgres pool is nil")
	}

	sub, err := scanSubscription(r.pool.QueryRow(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE user_id = $1
  AND is_active
ORDER BY end_date DESC
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Subscription{}, ErrSubscriptionNotFound
		}
		return model.Subscription{}, fmt.Errorf("find active subscription: %w", err)
	}

	return sub, nil
}

// ReplaceActive deactivates every prior active record for the user and
// inserts the new active one in a single transaction (replace, not append).
func (r *SubscriptionRepo) ReplaceActive(ctx context.Context, userID int64, plan enums.Plan, start, end time.Time) (model.Subscription, error) {
	if r.pool == nil {
		return model.Subscription{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || !plan.Valid() || !end.After(start) {
		return model.Subscription{}, fmt.Errorf("invalid subscription payload")
	}

	var sub model.Subscription
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
UPDATE subscriptions
SET is_active = FALSE, updated_at = NOW()
WHERE user_id = $1
  AND is_active
`, userID); err != nil {
			return fmt.Errorf("deactivate prior subscriptions: %w", err)
		}

		var err error
		sub, err = scanSubscription(tx.QueryRow(ctx, `
INSERT INTO subscriptions (user_id, plan, is_active, start_date, end_date)
VALUES ($1, $2, TRUE, $3, $4)
RETURNING `+subscriptionColumns+`
`, userID, string(plan), start, end))
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Subscription{}, err
	}

	return sub, nil
}

func (r *SubscriptionRepo) Deactivate(ctx context.Context, subID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1
`, subID)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// The warning flags below are monotonic: they only ever go from false to
// true, and stay true for the record's lifetime.

func (r *SubscriptionRepo) MarkWarned3Days(ctx context.Context, subID int64) error {
	return r.setFlag(ctx, subID, "warned_3days")
}

func (r *SubscriptionRepo) MarkWarned1Day(ctx context.Context, subID int64) error {
	return r.setFlag(ctx, subID, "warned_1day")
}

func (r *SubscriptionRepo) MarkExpiredNotified(ctx context.Context, subID int64) error {
	return r.setFlag(ctx, subID, "expired_notified")
}

func (r *SubscriptionRepo) setFlag(ctx context.Context, subID int64, column string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET `+column+` = TRUE, updated_at = NOW()
WHERE id = $1
`, subID)
	if err != nil {
		return fmt.Errorf("set subscription flag %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// HasEverHadPlan reports whether any record (active or not) with the given
// plan exists for the user. Used to refuse repeated trial grants.
func (r *SubscriptionRepo) HasEverHadPlan(ctx context.Context, userID int64, plan enums.Plan) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM subscriptions WHERE user_id = $1 AND plan = $2
)
`, userID, string(plan)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check plan history: %w", err)
	}

	return exists, nil
}

// DeleteInactiveEndedBefore prunes deactivated ledger rows whose term ended
// before the cutoff. Trial rows are kept forever because the one-trial-ever
// check reads plan history; active rows are never touched regardless of age.
func (r *SubscriptionRepo) DeleteInactiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM subscriptions
WHERE NOT is_active
  AND plan <> 'trial'
  AND end_date < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune inactive subscriptions: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanSubscription(row pgx.Row) (model.Subscription, error) {
	var sub model.Subscription
	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Plan,
		&sub.IsActive,
		&sub.StartDate,
		&sub.EndDate,
		&sub.Warned3Days,
		&sub.Warned1Day,
		&sub.ExpiredNotified,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}
