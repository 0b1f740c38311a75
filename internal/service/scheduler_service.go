package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

var (
	historyStatuses = []models.PostStatus{models.StatusPosted, models.StatusFailed, models.StatusCancelled}
	pendingStatuses = []models.PostStatus{models.StatusScheduled, models.StatusRetryPending}
)

type SchedulerService interface {
	Schedule(ctx context.Context, ownerID string, req *transfer.ScheduleRequest) (*transfer.ScheduleResult, error)
	BatchSchedule(ctx context.Context, ownerID string, req *transfer.BatchScheduleRequest) (*transfer.BatchScheduleResult, error)
	Cancel(ctx context.Context, ownerID, id string) (bool, error)
	Reschedule(ctx context.Context, ownerID, id string, newTime time.Time) (bool, error)
	CheckRules(ctx context.Context, ownerID string, proposed time.Time, contentID string) (*models.RuleCheckResult, error)
	Status(ctx context.Context, ownerID, id string) (*models.ScheduledPost, error)
	QueueInfo(ctx context.Context, ownerID string) (*models.QueueInfo, error)
	History(ctx context.Context, ownerID string, limit, offset int) ([]*models.HistoryEntry, error)
	Pending(ctx context.Context, ownerID, status string, limit, offset int) ([]*models.ScheduledPost, error)
}

type schedulerService struct {
	cfg      config.Engine
	posts    repository.ScheduledPostRepository
	content  repository.ContentRepository
	engine   *rules.Engine
	notifier Notifier
	events   EventRecorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSchedulerService(
	cfg config.Engine,
	posts repository.ScheduledPostRepository,
	content repository.ContentRepository,
	engine *rules.Engine,
	notifier Notifier,
	events EventRecorder,
	m *metrics.Metrics) SchedulerService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopRecorder{}
	}
	return &schedulerService{
		cfg:      cfg,
		posts:    posts,
		content:  content,
		engine:   engine,
		notifier: notifier,
		events:   events,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *schedulerService) Schedule(ctx context.Context, ownerID string, req *transfer.ScheduleRequest) (*transfer.ScheduleResult, error) {
	if !req.PreferredTime.After(s.now()) {
		slog.Info("rejecting schedule in the past", "owner_id", ownerID, "preferred_time", req.PreferredTime)
		return nil, models.ErrPastSchedule
	}

	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	draft, err := loadOwnedContent(ctx, s.content, ownerID, req.ContentID)
	if err != nil {
		return nil, err
	}

	scheduledTime := req.PreferredTime
	adjusted := false
	violations := []models.Violation{}

	if !req.Force {
		check, err := s.engine.Validate(ctx, rules.Request{
			OwnerID:      ownerID,
			ProposedTime: scheduledTime,
			ContentID:    draft.ID,
			Text:         draft.Text,
		})
		if err != nil {
			return nil, fmt.Errorf("check posting rules: %w", err)
		}
		observeViolations(s.metrics, check.Violations)
		violations = check.Violations

		if !check.CanPublish {
			if !req.UseSuggestedSlot || check.NextAvailableSlot == nil {
				return &transfer.ScheduleResult{
					Success:           false,
					Message:           blockedMessage(check),
					Violations:        check.Violations,
					NextAvailableSlot: check.NextAvailableSlot,
				}, nil
			}
			scheduledTime = *check.NextAvailableSlot
			adjusted = true

			recheck, err := s.engine.Validate(ctx, rules.Request{
				OwnerID:      ownerID,
				ProposedTime: scheduledTime,
				ContentID:    draft.ID,
				Text:         draft.Text,
			})
			if err != nil {
				return nil, fmt.Errorf("check posting rules: %w", err)
			}
			violations = nonBlocking(recheck.Violations)
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
		Text:          draft.Text,
		ContentType:   contentType,
		ScheduledTime: scheduledTime.UTC(),
		Priority:      priority,
		Status:        models.StatusScheduled,
		MaxRetries:    s.cfg.DefaultMaxRetries,
		Force:         req.Force,
	}
	if err := s.posts.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("error creating scheduled post: %w", err)
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
		"adjusted":       adjusted,
	})

	message := fmt.Sprintf("Content scheduled for %s", post.ScheduledTime.Format(time.RFC3339))
	if adjusted {
		message = fmt.Sprintf("Preferred time blocked by posting rules, scheduled for next available slot %s",
			post.ScheduledTime.Format(time.RFC3339))
	}
	at := post.ScheduledTime
	return &transfer.ScheduleResult{
		Success:               true,
		ScheduledID:           post.ID,
		ScheduledTime:         &at,
		Message:               message,
		Violations:            violations,
		AdjustedFromPreferred: adjusted,
	}, nil
}

// BatchSchedule schedules item i at base_time + i*stagger. Items are independent:
// a failure is reported in its result and does not undo earlier items.
func (s *schedulerService) BatchSchedule(ctx context.Context, ownerID string, req *transfer.BatchScheduleRequest) (*transfer.BatchScheduleResult, error) {
	if len(req.ContentIDs) > s.cfg.MaxBatchSchedule {
		return nil, fmt.Errorf("%w: %d items, maximum is %d", models.ErrBatchTooLarge, len(req.ContentIDs), s.cfg.MaxBatchSchedule)
	}

	stagger := time.Duration(req.StaggerMinutes) * time.Minute
	out := &transfer.BatchScheduleResult{
		Total:   len(req.ContentIDs),
		Results: make([]transfer.BatchItemResult, 0, len(req.ContentIDs)),
	}
	for i, contentID := range req.ContentIDs {
		item := transfer.BatchItemResult{ContentID: contentID}

		res, err := s.Schedule(ctx, ownerID, &transfer.ScheduleRequest{
			ContentID:     contentID,
			PreferredTime: req.BaseTime.Add(time.Duration(i) * stagger),
			Priority:      req.Priority,
			Force:         req.Force,
		})
		if err != nil {
			item.Message = err.Error()
			item.Violations = []models.Violation{}
		} else {
			item.ScheduleResult = *res
		}

		if item.Success {
			out.Successful++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, item)
	}
	return out, nil
}

// Cancel reports false without changing anything when the post is unknown, owned by
// someone else, or no longer cancellable.
func (s *schedulerService) Cancel(ctx context.Context, ownerID, id string) (bool, error) {
	ok, err := s.posts.Cancel(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Info("cancel rejected", "owner_id", ownerID, "post_id", id)
		return false, nil
	}
	s.events.RecordEvent(analytics.EventContentCancelled, map[string]any{
		"owner_id": ownerID,
		"post_id":  id,
	})
	return true, nil
}

func (s *schedulerService) Reschedule(ctx context.Context, ownerID, id string, newTime time.Time) (bool, error) {
	if !newTime.After(s.now()) {
		return false, models.ErrPastSchedule
	}

	ok, err := s.posts.Reschedule(ctx, ownerID, id, newTime.UTC())
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Info("reschedule rejected", "owner_id", ownerID, "post_id", id)
		return false, nil
	}

	if err := s.notifier.NotifyAt(ctx, newTime); err != nil {
		slog.Info("unable to enqueue wake-up", "post_id", id, "error", err.Error())
	}
	s.events.RecordEvent(analytics.EventContentRescheduled, map[string]any{
		"owner_id":       ownerID,
		"post_id":        id,
		"scheduled_time": newTime.UTC().Format(time.RFC3339),
	})
	return true, nil
}

func (s *schedulerService) CheckRules(ctx context.Context, ownerID string, proposed time.Time, contentID string) (*models.RuleCheckResult, error) {
	req := rules.Request{OwnerID: ownerID, ProposedTime: proposed}
	if contentID != "" {
		draft, err := loadOwnedContent(ctx, s.content, ownerID, contentID)
		if err != nil {
			return nil, err
		}
		req.ContentID, req.Text = draft.ID, draft.Text
	}

	result, err := s.engine.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *schedulerService) Status(ctx context.Context, ownerID, id string) (*models.ScheduledPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil || post.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return post, nil
}

func (s *schedulerService) QueueInfo(ctx context.Context, ownerID string) (*models.QueueInfo, error) {
	info, err := s.posts.QueueStats(ctx, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	counts, err := s.posts.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	info.ByStatus = make(map[string]int, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		info.ByStatus[string(status)] = counts[status]
	}
	return info, nil
}

// History lists the owner's finished posts, most recently updated first.
func (s *schedulerService) History(ctx context.Context, ownerID string, limit, offset int) ([]*models.HistoryEntry, error) {
	posts, err := s.posts.ListByOwner(ctx, ownerID, historyStatuses, limit, offset)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.HistoryEntry, 0, len(posts))
	for _, p := range posts {
		entries = append(entries, &models.HistoryEntry{
			ID:               p.ID,
			ContentRef:       p.ContentRef,
			ContentPreview:   contentPreview(p.Text),
			Status:           p.Status,
			ScheduledTime:    p.ScheduledTime,
			PostedAt:         p.PostedAt,
			PostedExternalID: p.PostedExternalID,
			RetryCount:       p.RetryCount,
			LastError:        p.LastError,
		})
	}
	return entries, nil
}

// Pending lists posts waiting to go out, earliest scheduled time first. An empty
// status covers scheduled and retry_pending.
func (s *schedulerService) Pending(ctx context.Context, ownerID, status string, limit, offset int) ([]*models.ScheduledPost, error) {
	statuses := pendingStatuses
	if status != "" {
		st := models.PostStatus(status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
		}
		statuses = []models.PostStatus{st}
	}

	posts, err := s.posts.ListUpcoming(ctx, ownerID, statuses, limit, offset)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.ScheduledPost{}
	}
	return posts, nil
}

func loadOwnedContent(ctx context.Context, content repository.ContentRepository, ownerID, contentID string) (*models.ContentDraft, error) {
	draft, err := content.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.OwnerID != ownerID {
		slog.Info("content not found for owner", "owner_id", ownerID, "content_id", contentID)
		return nil, fmt.Errorf("%w: %s", models.ErrContentNotFound, contentID)
	}
	if strings.TrimSpace(draft.Text) == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyContent, contentID)
	}
	return draft, nil
}

func blockedMessage(check *models.RuleCheckResult) string {
	blocking := check.BlockingViolations()
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, strings.TrimSuffix(v.Message, "."))
	}
	message := "Blocked by posting rules: " + strings.Join(msgs, "; ") + "."
	if check.NextAvailableSlot != nil {
		message += fmt.Sprintf(" Next available slot is %s.", check.NextAvailableSlot.Format(time.RFC3339))
	}
	return message
}

func nonBlocking(vs []models.Violation) []models.Violation {
	out := []models.Violation{}
	for _, v := range vs {
		if !v.Blocking {
			out = append(out, v)
		}
	}
	return out
}

func observeViolations(m *metrics.Metrics, vs []models.Violation) {
	for _, v := range vs {
		m.ObserveViolation(v.Kind, v.Blocking)
	}
}
