package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/ratelimit"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

const (
	TwitterCreatePostEndpoint = "POST /2/tweets"
	MaxPostLength             = 280
)

type TwitterService interface {
	CreatePost(ctx context.Context, accessToken, text string) (*transfer.CreatedPost, error)
}

type twitterService struct {
	baseURL  string
	client   *http.Client
	limiter  *ratelimit.Limiter
	executor failsafe.Executor[*http.Response]
	timeout  time.Duration
}

func NewTwitterService(cfg config.Config, limiter *ratelimit.Limiter, client *http.Client) TwitterService {
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Engine.PublishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode >= 500
		}).
		Build()

	return &twitterService{
		baseURL:  strings.TrimRight(cfg.Twitter.APIBaseURL, "/"),
		client:   client,
		limiter:  limiter,
		executor: failsafe.With(breaker),
		timeout:  timeout,
	}
}

// CreatePost publishes text on behalf of the token's owner. Every failure is a
// *models.PublishError already classified as retryable or fatal.
func (s *twitterService) CreatePost(ctx context.Context, accessToken, text string) (*transfer.CreatedPost, error) {
	if n := utf8.RuneCountInString(text); n > MaxPostLength {
		return nil, models.NewFatalError(models.CodeTweetTooLong,
			fmt.Sprintf("Tweet exceeds %d characters (%d)", MaxPostLength, n))
	}
	if accessToken == "" {
		return nil, models.NewFatalError(models.CodeNoAccessToken, "No access token available")
	}

	body, err := json.Marshal(transfer.TwitterCreateRequest{Text: text})
	if err != nil {
		return nil, models.NewFatalError(models.CodeInvalidRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/2/tweets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		return s.client.Do(req)
	})
	if err != nil {
		pe := classifyTransportError(err)
		slog.Info(pe.Error())
		return nil, pe
	}
	defer resp.Body.Close()

	if s.limiter != nil {
		s.limiter.UpdateFromHeaders(TwitterCreatePostEndpoint, resp.Header, ratelimit.TwitterHeaders)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		slog.Info(err.Error())
		return nil, models.NewRetryableError(models.CodeNetworkError, err.Error())
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		var apiErr transfer.TwitterErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message() != "" {
			msg = apiErr.Message()
		}
		pe := models.ClassifyHTTPStatus(resp.StatusCode, msg)
		slog.Info(pe.Error())
		return nil, pe
	}

	var created transfer.TwitterCreateResponse
	if err := json.Unmarshal(respBody, &created); err != nil || created.Data.ID == "" {
		// The post may exist already; retrying risks a duplicate.
		slog.Error("create post returned an unreadable success body", "status", resp.StatusCode)
		return nil, models.NewFatalError(models.CodeUnexpected, "malformed create post response")
	}
	return &created.Data, nil
}

func classifyTransportError(err error) *models.PublishError {
	var netErr net.Error
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return models.NewRetryableError(models.CodeCircuitOpen, "posting API circuit is open")
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRetryableError(models.CodeTimeout, err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.NewRetryableError(models.CodeTimeout, err.Error())
	default:
		return models.NewRetryableError(models.CodeNetworkError, err.Error())
	}
}
