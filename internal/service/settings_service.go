package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

type SettingsService interface {
	GetPreferences(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error)
	UpdatePreferences(ctx context.Context, ownerID string, upd *transfer.PreferencesUpdate) (*models.SchedulingPreferences, error)
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{sr: sr}
}

// GetPreferences returns the stored preferences or the defaults for owners that never saved any.
func (s *settingsService) GetPreferences(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error) {
	prefs, err := s.sr.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return models.DefaultPreferences(ownerID), nil
	}
	return prefs, nil
}

func (s *settingsService) UpdatePreferences(ctx context.Context, ownerID string, upd *transfer.PreferencesUpdate) (*models.SchedulingPreferences, error) {
	prefs, err := s.GetPreferences(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if upd.Timezone != nil {
		if _, err := time.LoadLocation(*upd.Timezone); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidPrefs, *upd.Timezone)
		}
		prefs.Timezone = *upd.Timezone
	}
	if upd.PreferredPostingTimes != nil {
		times := make([]models.ClockTime, 0, len(upd.PreferredPostingTimes))
		for _, raw := range upd.PreferredPostingTimes {
			c, err := models.ParseClock(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", models.ErrInvalidPrefs, err.Error())
			}
			times = append(times, c)
		}
		prefs.PreferredPostingTimes = times
	}
	if upd.MaxPostsPerDay != nil {
		prefs.MaxPostsPerDay = *upd.MaxPostsPerDay
	}
	if upd.MinIntervalMinutes != nil {
		prefs.MinIntervalMinutes = *upd.MinIntervalMinutes
	}
	if upd.AvoidWeekends != nil {
		prefs.AvoidWeekends = *upd.AvoidWeekends
	}
	if prefs.QuietHoursStart, err = updateClock(prefs.QuietHoursStart, upd.QuietHoursStart); err != nil {
		return nil, err
	}
	if prefs.QuietHoursEnd, err = updateClock(prefs.QuietHoursEnd, upd.QuietHoursEnd); err != nil {
		return nil, err
	}

	if prefs.MaxPostsPerDay < 1 || prefs.MinIntervalMinutes < 1 {
		return nil, fmt.Errorf("%w: limits must be positive", models.ErrInvalidPrefs)
	}

	prefs.OwnerID = ownerID
	if err := s.sr.Upsert(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// updateClock applies an optional "HH:MM" value. An empty string clears the value.
func updateClock(current *models.ClockTime, raw *string) (*models.ClockTime, error) {
	if raw == nil {
		return current, nil
	}
	if *raw == "" {
		return nil, nil
	}
	c, err := models.ParseClock(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidPrefs, err.Error())
	}
	return &c, nil
}
