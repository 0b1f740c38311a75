package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type SettingsRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error)
	Upsert(ctx context.Context, prefs *models.SchedulingPreferences) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByOwner(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error) {
	query := `
		SELECT owner_id, timezone, preferred_posting_times, max_posts_per_day, min_interval_minutes,
			avoid_weekends, quiet_hours_start, quiet_hours_end, updated_at
		FROM scheduling_preferences WHERE owner_id = $1
	`
	var (
		prefs        models.SchedulingPreferences
		postingTimes []string
		quietStart   sql.NullString
		quietEnd     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&prefs.OwnerID, &prefs.Timezone,
		pq.Array(&postingTimes), &prefs.MaxPostsPerDay, &prefs.MinIntervalMinutes,
		&prefs.AvoidWeekends, &quietStart, &quietEnd, &prefs.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	for _, s := range postingTimes {
		c, err := models.ParseClock(s)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		prefs.PreferredPostingTimes = append(prefs.PreferredPostingTimes, c)
	}
	if prefs.QuietHoursStart, err = parseNullClock(quietStart); err != nil {
		return nil, err
	}
	if prefs.QuietHoursEnd, err = parseNullClock(quietEnd); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, prefs *models.SchedulingPreferences) error {
	query := `
		INSERT INTO scheduling_preferences (owner_id, timezone, preferred_posting_times, max_posts_per_day,
			min_interval_minutes, avoid_weekends, quiet_hours_start, quiet_hours_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			preferred_posting_times = EXCLUDED.preferred_posting_times,
			max_posts_per_day = EXCLUDED.max_posts_per_day,
			min_interval_minutes = EXCLUDED.min_interval_minutes,
			avoid_weekends = EXCLUDED.avoid_weekends,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			updated_at = NOW()
		RETURNING updated_at
	`
	postingTimes := make([]string, len(prefs.PreferredPostingTimes))
	for i, c := range prefs.PreferredPostingTimes {
		postingTimes[i] = c.String()
	}

	err := r.db.QueryRowContext(ctx, query, prefs.OwnerID, prefs.Timezone, pq.Array(postingTimes),
		prefs.MaxPostsPerDay, prefs.MinIntervalMinutes, prefs.AvoidWeekends,
		nullClock(prefs.QuietHoursStart), nullClock(prefs.QuietHoursEnd)).Scan(&prefs.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func parseNullClock(s sql.NullString) (*models.ClockTime, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	c, err := models.ParseClock(s.String)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &c, nil
}

func nullClock(c *models.ClockTime) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}
