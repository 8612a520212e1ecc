package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

type EntryRepo struct {
	pool *pgxpool.Pool
}

func NewEntryRepo(pool *pgxpool.Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

const entryColumns = `
id, user_id, recorded_at, time_of_day, mood_score, physical_score,
sleep_quality, note, source`

func (r *EntryRepo) Insert(ctx context.Context, e model.MoodEntry) (model.MoodEntry, error) {
	if r.pool == nil {
		return model.MoodEntry{}, fmt.Errorf("postgres pool is nil")
	}
	if e.UserID <= 0 {
		return model.MoodEntry{}, fmt.Errorf("invalid entry payload")
	}

	stored, err := scanEntry(r.pool.QueryRow(ctx, `
INSERT INTO mood_entries (
	user_id, recorded_at, time_of_day, mood_score, physical_score,
	sleep_quality, note, source
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+entryColumns+`
`, e.UserID, e.RecordedAt, string(e.TimeOfDay), e.MoodScore, e.PhysicalScore,
		e.SleepQuality, e.Note, string(e.Source)))
	if err != nil {
		return model.MoodEntry{}, fmt.Errorf("insert mood entry: %w", err)
	}

	return stored, nil
}

func (r *EntryRepo) ListRecent(ctx context.Context, userID int64, limit int) ([]model.MoodEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+entryColumns+`
FROM mood_entries
WHERE user_id = $1
ORDER BY recorded_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer rows.Close()

	var entries []model.MoodEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood entries: %w", err)
	}

	return entries, nil
}

// AverageScores returns the mean mood/physical scores since the cutoff.
func (r *EntryRepo) AverageScores(ctx context.Context, userID int64, since time.Time) (float64, float64, int, error) {
	if r.pool == nil {
		return 0, 0, 0, fmt.Errorf("postgres pool is nil")
	}

	var (
		mood     *float64
		physical *float64
		count    int
	)
	err := r.pool.QueryRow(ctx, `
SELECT AVG(mood_score), AVG(physical_score), COUNT(*)
FROM mood_entries
WHERE user_id = $1
  AND recorded_at >= $2
`, userID, since).Scan(&mood, &physical, &count)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("average scores: %w", err)
	}

	if mood == nil || physical == nil {
		return 0, 0, 0, nil
	}
	return *mood, *physical, count, nil
}

func scanEntry(row pgx.Row) (model.MoodEntry, error) {
	var e model.MoodEntry
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.RecordedAt,
		&e.TimeOfDay,
		&e.MoodScore,
		&e.PhysicalScore,
		&e.SleepQuality,
		&e.Note,
		&e.Source,
	); err != nil {
		return model.MoodEntry{}, err
	}
	return e, nil
}
