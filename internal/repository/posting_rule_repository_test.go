package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRulesDecodesKinds(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostingRuleRepository(db)
	now := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectQuery("FROM posting_rules WHERE owner_id = \\$1").WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "name", "enabled", "priority", "kind", "conditions", "action", "created_at", "updated_at",
		}).
			AddRow("r1", "o1", "Limit", true, 1, "daily_limit", []byte(`{"max_posts_per_day":3}`), "block", now, now).
			AddRow("r2", "o1", "Quiet", true, 2, "quiet_hours", []byte(`{"start":"23:00","end":"06:30"}`), "warn", now, now))

	rules, err := repo.ListByOwner(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.FrequencyLimit{MaxPostsPerDay: 3}, rules[0].Kind)
	assert.Equal(t, models.QuietHours{
		Start: models.ClockTime{Hour: 23},
		End:   models.ClockTime{Hour: 6, Minute: 30},
	}, rules[1].Kind)
	assert.Equal(t, models.ActionWarn, rules[1].Action)
}

func TestCreateRuleStoresDiscriminator(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostingRuleRepository(db)
	now := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectQuery("INSERT INTO posting_rules").
		WithArgs("r1", "o1", "Spacing", true, 2, "content_spacing", "min_interval", []byte(`{"min_interval_minutes":90}`), "block").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	rule := &models.PostingRule{
		ID: "r1", OwnerID: "o1", Name: "Spacing", Enabled: true, Priority: 2,
		Kind: models.ContentSpacing{MinIntervalMinutes: 90}, Action: models.ActionBlock,
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	assert.Equal(t, now, rule.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRule(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostingRuleRepository(db)

	mock.ExpectQuery("UPDATE posting_rules").WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &models.PostingRule{
		ID: "r9", OwnerID: "o1", Name: "x", Kind: models.WeekendRestriction{}, Action: models.ActionBlock,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRule(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostingRuleRepository(db)

	mock.ExpectExec("DELETE FROM posting_rules").WithArgs("r1", "o1").WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Delete(context.Background(), "o1", "r1")
	require.NoError(t, err)
	assert.True(t, ok)
}
