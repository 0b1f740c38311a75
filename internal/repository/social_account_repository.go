package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type SocialAccountRepository interface {
	GetByUserPlatform(ctx context.Context, userID, platform string) (*models.SocialAccount, error)
	ListByTimeInterval(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	SetToken(ctx context.Context, userID, oldAccessToken string, sa *models.SocialAccount) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) GetByUserPlatform(ctx context.Context, userID, platform string) (*models.SocialAccount, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_username, access_token, refresh_token,
			token_expires_at, created_at, updated_at
		FROM social_accounts WHERE user_id = $1 AND platform = $2
		ORDER BY updated_at DESC LIMIT 1
	`
	var sa models.SocialAccount
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&sa.ID, &sa.UserID, &sa.Platform,
		&sa.AccountID, &sa.AccountUsername, &sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &sa, nil
}

// ListByTimeInterval returns accounts whose tokens expire inside the interval or already expired.
func (r *socialAccountRepository) ListByTimeInterval(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT
			user_id,
			platform,
			access_token,
			refresh_token,
			token_expires_at
			FROM social_accounts
			WHERE platform = $1
			AND ((token_expires_at BETWEEN $2 AND $3) OR (token_expires_at < $2))`
	rows, err := r.db.QueryContext(ctx, query, platform, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var socialAccounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.UserID, &sa.Platform, &sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		socialAccounts = append(socialAccounts, &sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return socialAccounts, nil
}

// SetToken swaps in refreshed tokens. The old access token guards against two
// refreshes racing on the same account.
func (r *socialAccountRepository) SetToken(ctx context.Context, userID, oldAccessToken string, sa *models.SocialAccount) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($4, ''), access_token),
			refresh_token = COALESCE(NULLIF($5, ''), refresh_token),
			token_expires_at = COALESCE($6, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2 AND access_token = $3;
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, userID, sa.Platform, oldAccessToken,
		sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; account may have been refreshed already", "user_id", userID)
		return models.ErrNotFound
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
