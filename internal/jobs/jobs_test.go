package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/queue"
	"github.com/stretchr/testify/assert"
)

type fakeExpiring struct {
	accounts []*models.SocialAccount
	platform string
	from, to time.Time
	err      error
}

func (f *fakeExpiring) ListByTimeInterval(_ context.Context, platform string, from, to time.Time) ([]*models.SocialAccount, error) {
	f.platform, f.from, f.to = platform, from, to
	return f.accounts, f.err
}

type fakeRefresher struct {
	mu      sync.Mutex
	owners  []string
	failFor string
}

func (f *fakeRefresher) RefreshAccount(_ context.Context, acc *models.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, acc.UserID)
	if acc.UserID == f.failFor {
		return errors.New("refresh rejected")
	}
	return nil
}

func TestRefreshTokensRefreshesExpiringAccounts(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	accounts := &fakeExpiring{accounts: []*models.SocialAccount{
		{UserID: "o1", Platform: models.PlatformTwitter},
		{UserID: "o2", Platform: models.PlatformTwitter},
		{UserID: "o3", Platform: models.PlatformTwitter},
	}}
	refresher := &fakeRefresher{failFor: "o2"}

	j := NewTokenRefreshJob(accounts, refresher)
	j.now = func() time.Time { return now }
	j.RefreshTokens()

	assert.Equal(t, models.PlatformTwitter, accounts.platform)
	assert.Equal(t, now, accounts.from)
	assert.Equal(t, now.Add(30*time.Minute), accounts.to)
	assert.ElementsMatch(t, []string{"o1", "o2", "o3"}, refresher.owners)
}

func TestRefreshTokensStopsOnListError(t *testing.T) {
	refresher := &fakeRefresher{}
	NewTokenRefreshJob(&fakeExpiring{err: errors.New("db down")}, refresher).RefreshTokens()
	assert.Empty(t, refresher.owners)
}

type countingRunner struct{ calls int }

func (r *countingRunner) ProcessOnce(context.Context) *queue.Result {
	r.calls++
	return &queue.Result{Status: queue.StatusCompleted}
}

func TestQueueSweepRunsAPass(t *testing.T) {
	r := &countingRunner{}
	NewQueueSweepJob(r).Sweep()
	assert.Equal(t, 1, r.calls)
}
