package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
	"github.com/maheshrc27/scheduling-engine/pkg/utils"
	"golang.org/x/oauth2"
)

// tokenExpiryLeeway refreshes tokens slightly before they actually expire.
const tokenExpiryLeeway = time.Minute

type TokenService interface {
	AccessToken(ctx context.Context, ownerID string) (string, error)
	RefreshAccount(ctx context.Context, acc *models.SocialAccount) error
}

type tokenService struct {
	cfg   config.Config
	sa    repository.SocialAccountRepository
	oauth *oauth2.Config
	now   func() time.Time
}

func NewTokenService(cfg config.Config, sa repository.SocialAccountRepository) TokenService {
	return &tokenService{
		cfg: cfg,
		sa:  sa,
		oauth: &oauth2.Config{
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.Twitter.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		now: time.Now,
	}
}

// AccessToken returns a usable plaintext access token for the owner's posting
// account, refreshing it first when it is about to expire.
func (s *tokenService) AccessToken(ctx context.Context, ownerID string) (string, error) {
	acc, err := s.sa.GetByUserPlatform(ctx, ownerID, models.PlatformTwitter)
	if err != nil {
		return "", fmt.Errorf("load posting account: %w", err)
	}
	if acc == nil || acc.AccessToken == "" {
		slog.Info("no posting account connected", "owner_id", ownerID)
		return "", models.NewFatalError(models.CodeNoAccessToken, "No access token available")
	}

	if acc.RefreshToken != "" && !acc.TokenExpiresAt.IsZero() &&
		s.now().Add(tokenExpiryLeeway).After(acc.TokenExpiresAt) {
		return s.refresh(ctx, acc)
	}

	token, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", models.NewFatalError(models.CodeNoAccessToken, "Stored access token is unreadable")
	}
	return token, nil
}

func (s *tokenService) RefreshAccount(ctx context.Context, acc *models.SocialAccount) error {
	_, err := s.refresh(ctx, acc)
	return err
}

func (s *tokenService) refresh(ctx context.Context, acc *models.SocialAccount) (string, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", models.NewFatalError(models.CodeNoAccessToken, "Stored refresh token is unreadable")
	}

	tokenSource := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return "", models.NewFatalError(models.CodeUnauthorized, "Token refresh rejected")
		}
		return "", models.NewRetryableError(models.CodeNetworkError, "Token refresh failed")
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}
	updated := models.SocialAccount{
		Platform:       models.PlatformTwitter,
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}
	if token.RefreshToken != "" {
		if updated.RefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey)); err != nil {
			return "", err
		}
	}

	err = s.sa.SetToken(ctx, acc.UserID, acc.AccessToken, &updated)
	if errors.Is(err, models.ErrNotFound) {
		// A concurrent refresh won; the token we just received is still valid.
		return token.AccessToken, nil
	}
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
