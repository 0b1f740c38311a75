package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type ExpiringAccounts interface {
	ListByTimeInterval(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
}

type AccountRefresher interface {
	RefreshAccount(ctx context.Context, acc *models.SocialAccount) error
}

// TokenRefreshJob renews posting tokens before they expire so publishes do not
// pay for the refresh.
type TokenRefreshJob struct {
	sr          ExpiringAccounts
	tokens      AccountRefresher
	window      time.Duration
	concurrency int
	now         func() time.Time
}

func NewTokenRefreshJob(sr ExpiringAccounts, tokens AccountRefresher) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:          sr,
		tokens:      tokens,
		window:      30 * time.Minute,
		concurrency: 10,
		now:         time.Now,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := c.now()
	accounts, err := c.sr.ListByTimeInterval(ctx, models.PlatformTwitter, currentTime, currentTime.Add(c.window))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.concurrency)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.tokens.RefreshAccount(ctx, acc); err != nil {
				slog.Info("unable to refresh token", "owner_id", acc.UserID, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
