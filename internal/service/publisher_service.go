package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/analytics"
	"github.com/maheshrc27/scheduling-engine/internal/metrics"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
	"github.com/maheshrc27/scheduling-engine/internal/rules"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type PublishOutcome string

const (
	OutcomePosted   PublishOutcome = "posted"
	OutcomeRetried  PublishOutcome = "retry_pending"
	OutcomeFailed   PublishOutcome = "failed"
	OutcomeDeferred PublishOutcome = "deferred"
)

const codeRuleBlocked = "RULE_BLOCKED"

type ExternalPoster interface {
	CreatePost(ctx context.Context, accessToken, text string) (*transfer.CreatedPost, error)
}

type TokenProvider interface {
	AccessToken(ctx context.Context, ownerID string) (string, error)
}

type RateLimiter interface {
	Acquire(ctx context.Context, key string) error
}

type PublisherService interface {
	Claim(ctx context.Context, id string) (bool, error)
	PublishClaimed(ctx context.Context, post *models.ScheduledPost, force bool) (PublishOutcome, error)
	PublishImmediately(ctx context.Context, ownerID string, req *transfer.PublishRequest) (*transfer.PublishResult, error)
	BatchPublish(ctx context.Context, ownerID string, req *transfer.BatchPublishRequest) (*transfer.BatchPublishResult, error)
}

type publisherService struct {
	cfg      config.Engine
	posts    repository.ScheduledPostRepository
	content  repository.ContentRepository
	engine   *rules.Engine
	limiter  RateLimiter
	tokens   TokenProvider
	poster   ExternalPoster
	notifier Notifier
	events   EventRecorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPublisherService(
	cfg config.Engine,
	posts repository.ScheduledPostRepository,
	content repository.ContentRepository,
	engine *rules.Engine,
	limiter RateLimiter,
	tokens TokenProvider,
	poster ExternalPoster,
	notifier Notifier,
	events EventRecorder,
	m *metrics.Metrics) PublisherService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopRecorder{}
	}
	return &publisherService{
		cfg:      cfg,
		posts:    posts,
		content:  content,
		engine:   engine,
		limiter:  limiter,
		tokens:   tokens,
		poster:   poster,
		notifier: notifier,
		events:   events,
		metrics:  m,
		now:      time.Now,
	}
}

// Claim moves a due post to publishing. Only the caller that gets true may publish it.
func (s *publisherService) Claim(ctx context.Context, id string) (bool, error) {
	return s.posts.Claim(ctx, id)
}

// PublishClaimed drives a claimed post to its next state. The returned error is
// non-nil only when the new state could not be stored.
func (s *publisherService) PublishClaimed(ctx context.Context, post *models.ScheduledPost, force bool) (PublishOutcome, error) {
	done := s.metrics.TrackInFlight()
	defer done()
	start := s.now()

	outcome, err := s.publish(ctx, post, force)
	s.metrics.ObservePublish(string(outcome), s.now().Sub(start))
	return outcome, err
}

func (s *publisherService) publish(ctx context.Context, post *models.ScheduledPost, force bool) (PublishOutcome, error) {
	post.Status = models.StatusPublishing

	if !force {
		check, err := s.engine.Validate(ctx, rules.Request{
			OwnerID:      post.OwnerID,
			ProposedTime: s.now(),
			Text:         post.Text,
		})
		if err != nil {
			slog.Info("rule check failed at dispatch", "post_id", post.ID, "error", err.Error())
			return s.deferPost(ctx, post, nil, models.NewRetryableError(models.CodeUnexpected, err.Error()).PostError())
		}
		observeViolations(s.metrics, check.Violations)
		if !check.CanPublish {
			return s.deferPost(ctx, post, check.NextAvailableSlot, &models.PostError{
				Code:    codeRuleBlocked,
				Message: blockedMessage(check),
			})
		}
	}

	if err := s.limiter.Acquire(ctx, TwitterCreatePostEndpoint); err != nil {
		slog.Info("rate limit wait interrupted", "post_id", post.ID, "error", err.Error())
		return s.deferPost(ctx, post, nil, nil)
	}

	token, err := s.tokens.AccessToken(ctx, post.OwnerID)
	if err != nil {
		return s.fail(ctx, post, models.AsPublishError(err))
	}

	created, err := s.poster.CreatePost(ctx, token, post.Text)
	if err != nil {
		return s.fail(ctx, post, models.AsPublishError(err))
	}

	postedAt := s.now().UTC()
	err = s.posts.UpdateStatus(context.WithoutCancel(ctx), post.ID, models.StatusPublishing, models.StatusUpdate{
		Status:     models.StatusPosted,
		ExternalID: created.ID,
		PostedAt:   &postedAt,
	})
	if err != nil {
		slog.Error("posted but unable to record it", "post_id", post.ID, "external_id", created.ID, "error", err.Error())
		return OutcomePosted, fmt.Errorf("record posted status: %w", err)
	}
	post.Status = models.StatusPosted
	post.PostedAt = &postedAt
	post.PostedExternalID = created.ID

	slog.Info("post published", "post_id", post.ID, "owner_id", post.OwnerID, "external_id", created.ID)
	s.events.RecordEvent(analytics.EventPosted, map[string]any{
		"owner_id":    post.OwnerID,
		"post_id":     post.ID,
		"content_ref": post.ContentRef,
		"external_id": created.ID,
		"retry_count": post.RetryCount,
	})
	return OutcomePosted, nil
}

// deferPost hands a claimed post back to the scheduled state without spending a
// retry. A non-nil at moves it to that time.
func (s *publisherService) deferPost(ctx context.Context, post *models.ScheduledPost, at *time.Time, reason *models.PostError) (PublishOutcome, error) {
	// The claim must be released even when the dispatch context is already done.
	ctx = context.WithoutCancel(ctx)
	upd := models.StatusUpdate{Status: models.StatusScheduled, Error: reason}
	if at != nil {
		t := at.UTC()
		upd.ScheduledTime = &t
	}
	if err := s.posts.UpdateStatus(ctx, post.ID, models.StatusPublishing, upd); err != nil {
		return OutcomeDeferred, fmt.Errorf("defer post: %w", err)
	}
	post.Status = models.StatusScheduled
	if upd.ScheduledTime != nil {
		post.ScheduledTime = *upd.ScheduledTime
		if err := s.notifier.NotifyAt(ctx, post.ScheduledTime); err != nil {
			slog.Info("unable to enqueue wake-up", "post_id", post.ID, "error", err.Error())
		}
	}
	if reason != nil {
		post.LastError = reason
	}

	payload := map[string]any{
		"owner_id":       post.OwnerID,
		"post_id":        post.ID,
		"scheduled_time": post.ScheduledTime.Format(time.RFC3339),
	}
	if reason != nil {
		payload["error_code"] = reason.Code
		payload["error_message"] = reason.Message
	}
	s.events.RecordEvent(analytics.EventPublishDeferred, payload)
	return OutcomeDeferred, nil
}

// fail applies the retry table: retryable errors go back to retry_pending while
// retries remain, everything else ends in failed.
func (s *publisherService) fail(ctx context.Context, post *models.ScheduledPost, pe *models.PublishError) (PublishOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	if pe.Retryable && post.RetryCount < post.MaxRetries {
		next := s.now().Add(retryDelay(s.cfg.RetryDelays, post.RetryCount)).UTC()
		retryCount := post.RetryCount + 1

		err := s.posts.UpdateStatus(ctx, post.ID, models.StatusPublishing, models.StatusUpdate{
			Status:        models.StatusRetryPending,
			Error:         pe.PostError(),
			RetryCount:    &retryCount,
			ScheduledTime: &next,
		})
		if err != nil {
			return OutcomeRetried, fmt.Errorf("record retry: %w", err)
		}
		post.Status = models.StatusRetryPending
		post.RetryCount = retryCount
		post.ScheduledTime = next
		post.LastError = pe.PostError()

		if err := s.notifier.NotifyAt(ctx, next); err != nil {
			slog.Info("unable to enqueue wake-up", "post_id", post.ID, "error", err.Error())
		}
		slog.Info("publish failed, retry scheduled", "post_id", post.ID, "code", pe.Code, "retry_count", retryCount, "next_retry_at", next)
		s.events.RecordEvent(analytics.EventRetryPending, map[string]any{
			"owner_id":      post.OwnerID,
			"post_id":       post.ID,
			"error_code":    pe.Code,
			"error_message": pe.Message,
			"retry_count":   retryCount,
			"next_retry_at": next.Format(time.RFC3339),
		})
		return OutcomeRetried, nil
	}

	err := s.posts.UpdateStatus(ctx, post.ID, models.StatusPublishing, models.StatusUpdate{
		Status: models.StatusFailed,
		Error:  pe.PostError(),
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("record failure: %w", err)
	}
	post.Status = models.StatusFailed
	post.LastError = pe.PostError()

	slog.Info("publish failed permanently", "post_id", post.ID, "code", pe.Code, "retry_count", post.RetryCount)
	s.events.RecordEvent(analytics.EventFailed, map[string]any{
		"owner_id":      post.OwnerID,
		"post_id":       post.ID,
		"error_code":    pe.Code,
		"error_message": pe.Message,
		"retry_count":   post.RetryCount,
	})
	return OutcomeFailed, nil
}

// PublishImmediately creates a post already claimed for publishing and runs it
// through the dispatch pipeline synchronously.
func (s *publisherService) PublishImmediately(ctx context.Context, ownerID string, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	draft, err := loadOwnedContent(ctx, s.content, ownerID, req.ContentID)
	if err != nil {
		return nil, err
	}
	text := draft.Text
	if req.CustomText != "" {
		text = req.CustomText
	}

	now := s.now()
	if !req.Force {
		check, err := s.engine.Validate(ctx, rules.Request{OwnerID: ownerID, ProposedTime: now, Text: text})
		if err != nil {
			return nil, fmt.Errorf("check posting rules: %w", err)
		}
		observeViolations(s.metrics, check.Violations)
		if !check.CanPublish {
			return &transfer.PublishResult{
				Success:    false,
				Message:    blockedMessage(check),
				Violations: check.Violations,
			}, nil
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	contentType := draft.ContentType
	if contentType == "" {
		contentType = models.ContentTypePost
	}
	post := &models.ScheduledPost{
		ID:            id,
		OwnerID:       ownerID,
		ContentRef:    draft.ID,
		Text:          text,
		ContentType:   contentType,
		ScheduledTime: now.UTC(),
		Priority:      models.PriorityUrgent,
		Status:        models.StatusPublishing,
		MaxRetries:    s.cfg.DefaultMaxRetries,
		Force:         req.Force,
	}
	if err := s.posts.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	outcome, err := s.PublishClaimed(ctx, post, true)
	if err != nil {
		return nil, err
	}

	result := &transfer.PublishResult{
		Success:    outcome == OutcomePosted,
		PostID:     post.ID,
		Status:     post.Status,
		ExternalID: post.PostedExternalID,
		Error:      post.LastError,
	}
	switch outcome {
	case OutcomePosted:
		result.Message = "Published successfully"
	case OutcomeRetried:
		result.Message = fmt.Sprintf("Publishing failed, retry scheduled for %s", post.ScheduledTime.Format(time.RFC3339))
	case OutcomeDeferred:
		result.Message = "Publishing postponed, the post is scheduled again"
	default:
		result.Message = "Publishing failed"
	}
	return result, nil
}

// BatchPublish publishes the first item synchronously and queues the rest at
// now + i*stagger. Items are independent and a failure does not stop the batch.
func (s *publisherService) BatchPublish(ctx context.Context, ownerID string, req *transfer.BatchPublishRequest) (*transfer.BatchPublishResult, error) {
	if len(req.ContentIDs) > s.cfg.MaxBatchSchedule {
		return nil, fmt.Errorf("%w: %d items, maximum is %d", models.ErrBatchTooLarge, len(req.ContentIDs), s.cfg.MaxBatchSchedule)
	}

	stagger := time.Duration(req.StaggerMinutes) * time.Minute
	start := s.now()
	out := &transfer.BatchPublishResult{
		Total:   len(req.ContentIDs),
		Results: make([]transfer.BatchPublishItem, 0, len(req.ContentIDs)),
	}
	for i, contentID := range req.ContentIDs {
		item := transfer.BatchPublishItem{ContentID: contentID}

		var (
			res *transfer.PublishResult
			err error
		)
		if i == 0 || stagger == 0 {
			res, err = s.PublishImmediately(ctx, ownerID, &transfer.PublishRequest{ContentID: contentID, Force: req.Force})
		} else {
			res, err = s.queueAt(ctx, ownerID, contentID, start.Add(time.Duration(i)*stagger), req.Force)
		}
		if err != nil {
			item.Message = err.Error()
		} else {
			item.PublishResult = *res
		}

		if item.Success {
			out.Successful++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, item)
	}

	slog.Info("batch publish finished", "owner_id", ownerID, "total", out.Total, "successful", out.Successful, "failed", out.Failed)
	return out, nil
}

// queueAt stores a high priority post for the queue. Rules are checked when it
// is dispatched unless force is set.
func (s *publisherService) queueAt(ctx context.Context, ownerID, contentID string, at time.Time, force bool) (*transfer.PublishResult, error) {
	draft, err := loadOwnedContent(ctx, s.content, ownerID, contentID)
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	contentType := draft.ContentType
	if contentType == "" {
		contentType = models.ContentTypePost
	}
	post := &models.ScheduledPost{
		ID:            id,
		OwnerID:       ownerID,
		ContentRef:    draft.ID,
		Text:          draft.Text,
		ContentType:   contentType,
		ScheduledTime: at.UTC(),
		Priority:      models.PriorityHigh,
		Status:        models.StatusScheduled,
		MaxRetries:    s.cfg.DefaultMaxRetries,
		Force:         force,
	}
	if err := s.posts.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	if err := s.notifier.NotifyAt(ctx, post.ScheduledTime); err != nil {
		slog.Info("unable to enqueue wake-up", "post_id", post.ID, "error", err.Error())
	}
	s.events.RecordEvent(analytics.EventContentScheduled, map[string]any{
		"owner_id":       ownerID,
		"post_id":        post.ID,
		"content_ref":    post.ContentRef,
		"scheduled_time": post.ScheduledTime.Format(time.RFC3339),
		"priority":       post.Priority.String(),
	})

	scheduled := post.ScheduledTime
	return &transfer.PublishResult{
		Success:       true,
		PostID:        post.ID,
		Status:        post.Status,
		ScheduledTime: &scheduled,
		Message:       fmt.Sprintf("Queued for publishing at %s", scheduled.Format(time.RFC3339)),
	}, nil
}

// retryDelay picks the delay for the attempt that just failed, clamped to the
// last configured value.
func retryDelay(delays []time.Duration, retryCount int) time.Duration {
	if len(delays) == 0 {
		return 5 * time.Minute
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(delays) {
		retryCount = len(delays) - 1
	}
	return delays[retryCount]
}
