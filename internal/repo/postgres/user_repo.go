package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
id, first_name, username, role, status, is_trial_exhausted,
timezone, morning_time, evening_time, notifications_enabled,
daytime_notifications_enabled, home_name, created_at, updated_at`

// Ensure inserts the user on first contact with default settings; an existing
// row only refreshes name fields. Returns the stored user and whether the row
// was created.
func (r *UserRepo) Ensure(ctx context.Context, id int64, firstName, username string) (model.User, bool, error) {
	if r.pool == nil {
		return model.User{}, false, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.User{}, false, fmt.Errorf("invalid user id")
	}

	defaults := model.DefaultSettings()
	var (
		u       model.User
		created bool
	)
	err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (
	id, first_name, username, role, status,
	timezone, morning_time, evening_time,
	notifications_enabled, daytime_notifications_enabled
) VALUES ($1, $2, $3, 'user', 'active', $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	username   = EXCLUDED.username,
	updated_at = NOW()
RETURNING `+userColumns+`, (xmax = 0) AS created
`, id, strings.TrimSpace(firstName), strings.TrimSpace(username),
		defaults.Timezone, defaults.MorningTime, defaults.EveningTime,
		defaults.NotificationsEnabled, defaults.DaytimeNotifications,
	), &u, &created)
	if err != nil {
		return model.User{}, false, fmt.Errorf("ensure user: %w", err)
	}

	return u, created, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	var u model.User
	err := scanUser(r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
`, id), &u, nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return u, nil
}

// ListActive returns the full active-user set scanned by the clock driver.
// A full scan every tick is fine at this scale.
func (r *UserRepo) ListActive(ctx context.Context) ([]model.User, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+userColumns+`
FROM users
WHERE status = 'active'
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u, nil); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active users: %w", err)
	}

	return users, nil
}

func (r *UserRepo) UpdateSettings(ctx context.Context, id int64, s model.UserSettings) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET
	timezone = $2,
	morning_time = $3,
	evening_time = $4,
	notifications_enabled = $5,
	daytime_notifications_enabled = $6,
	home_name = $7,
	updated_at = NOW()
WHERE id = $1
`, id, s.Timezone, s.MorningTime, s.EveningTime, s.NotificationsEnabled, s.DaytimeNotifications, s.HomeName)
	if err != nil {
		return fmt.Errorf("update user settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// MarkUnreachable records a permanent delivery failure: the user drops out of
// the active set and notifications are switched off until externally reset.
func (r *UserRepo) MarkUnreachable(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET
	status = $2,
	notifications_enabled = FALSE,
	updated_at = NOW()
WHERE id = $1
`, id, string(enums.UserStatusBlocked))
	if err != nil {
		return fmt.Errorf("mark user unreachable: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetTrialExhausted is one-way: the flag is never cleared once set.
func (r *UserRepo) SetTrialExhausted(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET is_trial_exhausted = TRUE, updated_at = NOW()
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("set trial exhausted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func scanUser(row pgx.Row, u *model.User, created *bool) error {
	dest := []any{
		&u.ID,
		&u.FirstName,
		&u.Username,
		&u.Role,
		&u.Status,
		&u.IsTrialExhausted,
		&u.Settings.Timezone,
		&u.Settings.MorningTime,
		&u.Settings.EveningTime,
		&u.Settings.NotificationsEnabled,
		&u.Settings.DaytimeNotifications,
		&u.Settings.HomeName,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
	if created != nil {
		dest = append(dest, created)
	}
	return row.Scan(dest...)
}
