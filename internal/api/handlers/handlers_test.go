package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/queue"
	"github.com/maheshrc27/scheduling-engine/internal/service"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScheduler struct {
	service.SchedulerService
	owner      string
	scheduled  *transfer.ScheduleRequest
	result     *transfer.ScheduleResult
	err        error
	cancelled  bool
	checkedAt  time.Time
	historyLim int
	pending    string
	pendingLim int
}

func (s *stubScheduler) Schedule(_ context.Context, ownerID string, req *transfer.ScheduleRequest) (*transfer.ScheduleResult, error) {
	s.owner, s.scheduled = ownerID, req
	return s.result, s.err
}

func (s *stubScheduler) Cancel(_ context.Context, ownerID, _ string) (bool, error) {
	s.owner = ownerID
	return s.cancelled, s.err
}

func (s *stubScheduler) Status(_ context.Context, ownerID, id string) (*models.ScheduledPost, error) {
	if ownerID != "o1" {
		return nil, models.ErrNotFound
	}
	return &models.ScheduledPost{ID: id, OwnerID: ownerID, Status: models.StatusScheduled}, nil
}

func (s *stubScheduler) CheckRules(_ context.Context, _ string, proposed time.Time, _ string) (*models.RuleCheckResult, error) {
	s.checkedAt = proposed
	return &models.RuleCheckResult{CanPublish: true}, nil
}

func (s *stubScheduler) History(_ context.Context, _ string, limit, _ int) ([]*models.HistoryEntry, error) {
	s.historyLim = limit
	return []*models.HistoryEntry{}, nil
}

func (s *stubScheduler) Pending(_ context.Context, _ string, status string, limit, _ int) ([]*models.ScheduledPost, error) {
	s.pending, s.pendingLim = status, limit
	if status == "sleeping" {
		return nil, models.ErrInvalidStatus
	}
	return []*models.ScheduledPost{{ID: "s1", Status: models.StatusScheduled}}, nil
}

func (s *stubScheduler) QueueInfo(context.Context, string) (*models.QueueInfo, error) {
	return &models.QueueInfo{TotalPending: 2, ByStatus: map[string]int{"scheduled": 2}}, nil
}

func newTestApp(owner string, register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", owner)
		return c.Next()
	})
	register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func TestScheduleCreated(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	stub := &stubScheduler{result: &transfer.ScheduleResult{Success: true, ScheduledID: "s1", ScheduledTime: &at}}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Post("/schedule", h.Schedule) })

	resp, body := doJSON(t, app, http.MethodPost, "/schedule", map[string]any{
		"content_id": "c1", "preferred_time": at.Format(time.RFC3339), "priority": "high",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "s1", body["scheduled_id"])
	assert.Equal(t, "o1", stub.owner)
	assert.Equal(t, "high", stub.scheduled.Priority)
}

func TestScheduleValidatesBody(t *testing.T) {
	h := NewScheduleHandler(&stubScheduler{}, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Post("/schedule", h.Schedule) })

	resp, _ := doJSON(t, app, http.MethodPost, "/schedule", map[string]any{"content_id": "c1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/schedule", map[string]any{
		"content_id": "c1", "preferred_time": "2026-03-05T09:00:00Z", "priority": "asap",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestScheduleMapsErrors(t *testing.T) {
	stub := &stubScheduler{err: models.ErrPastSchedule}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Post("/schedule", h.Schedule) })

	resp, body := doJSON(t, app, http.MethodPost, "/schedule", map[string]any{
		"content_id": "c1", "preferred_time": "2020-01-01T00:00:00Z",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.ErrPastSchedule.Error(), body["error"])
}

func TestScheduleBlockedByRules(t *testing.T) {
	stub := &stubScheduler{result: &transfer.ScheduleResult{
		Success:    false,
		Message:    "Scheduling blocked",
		Violations: []models.Violation{{Rule: "Quiet Hours", Blocking: true}},
	}}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Post("/schedule", h.Schedule) })

	resp, body := doJSON(t, app, http.MethodPost, "/schedule", map[string]any{
		"content_id": "c1", "preferred_time": "2026-03-05T23:00:00Z",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestCancel(t *testing.T) {
	stub := &stubScheduler{cancelled: true}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Delete("/schedule/:id", h.Cancel) })

	resp, body := doJSON(t, app, http.MethodDelete, "/schedule/s1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	stub.cancelled = false
	resp, _ = doJSON(t, app, http.MethodDelete, "/schedule/s1", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestStatusIsOwnerScoped(t *testing.T) {
	h := NewScheduleHandler(&stubScheduler{}, nil)

	app := newTestApp("o1", func(app *fiber.App) { app.Get("/schedule/:id", h.Status) })
	resp, body := doJSON(t, app, http.MethodGet, "/schedule/s1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", body["id"])

	app = newTestApp("o2", func(app *fiber.App) { app.Get("/schedule/:id", h.Status) })
	resp, _ = doJSON(t, app, http.MethodGet, "/schedule/s1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCheckRulesParsesTime(t *testing.T) {
	stub := &stubScheduler{}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Get("/rules/check", h.CheckRules) })

	resp, body := doJSON(t, app, http.MethodGet, "/rules/check?time=2026-03-05T23:00:00Z", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["can_publish"])
	assert.Equal(t, time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC), stub.checkedAt.UTC())

	resp, _ = doJSON(t, app, http.MethodGet, "/rules/check?time=tomorrow", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHistoryClampsLimit(t *testing.T) {
	stub := &stubScheduler{}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Get("/history", h.History) })

	resp, _ := doJSON(t, app, http.MethodGet, "/history?limit=1000", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, defaultHistoryLimit, stub.historyLim)
}

func TestPendingPassesStatusFilter(t *testing.T) {
	stub := &stubScheduler{}
	h := NewScheduleHandler(stub, nil)
	app := newTestApp("o1", func(app *fiber.App) { app.Get("/schedule", h.Pending) })

	resp, body := doJSON(t, app, http.MethodGet, "/schedule?status=retry_pending", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "retry_pending", stub.pending)
	assert.Equal(t, defaultPendingLimit, stub.pendingLim)
	assert.Len(t, body["posts"], 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/schedule?status=sleeping", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubPublisher struct {
	service.PublisherService
	batch *transfer.BatchPublishRequest
	err   error
}

func (s *stubPublisher) BatchPublish(_ context.Context, _ string, req *transfer.BatchPublishRequest) (*transfer.BatchPublishResult, error) {
	s.batch = req
	if s.err != nil {
		return nil, s.err
	}
	return &transfer.BatchPublishResult{Total: len(req.ContentIDs), Successful: len(req.ContentIDs)}, nil
}

func TestBatchPublish(t *testing.T) {
	pub := &stubPublisher{}
	h := NewScheduleHandler(&stubScheduler{}, pub)
	app := newTestApp("o1", func(app *fiber.App) { app.Post("/publish/batch", h.BatchPublish) })

	resp, body := doJSON(t, app, http.MethodPost, "/publish/batch", map[string]any{
		"content_ids": []string{"c1", "c2"}, "stagger_minutes": 30,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["successful"])
	assert.Equal(t, 30, pub.batch.StaggerMinutes)

	resp, _ = doJSON(t, app, http.MethodPost, "/publish/batch", map[string]any{"content_ids": []string{}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	pub.err = models.ErrBatchTooLarge
	resp, _ = doJSON(t, app, http.MethodPost, "/publish/batch", map[string]any{"content_ids": []string{"c1"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubAttempts struct {
	limit int
}

func (s *stubAttempts) ForPost(_ context.Context, ownerID, postID string) ([]*models.PostingHistory, error) {
	if ownerID != "o1" {
		return nil, models.ErrNotFound
	}
	return []*models.PostingHistory{{ID: 1, PostID: postID, EventType: "posted"}}, nil
}

func (s *stubAttempts) Recent(_ context.Context, _ string, limit int) ([]*models.PostingHistory, error) {
	s.limit = limit
	return []*models.PostingHistory{}, nil
}

func TestAttemptsHandlers(t *testing.T) {
	stub := &stubAttempts{}
	h := NewAttemptsHandler(stub)
	register := func(app *fiber.App) {
		app.Get("/schedule/:id/attempts", h.PostAttempts)
		app.Get("/history/attempts", h.RecentAttempts)
	}

	app := newTestApp("o1", register)
	resp, body := doJSON(t, app, http.MethodGet, "/schedule/s1/attempts", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", body["post_id"])
	assert.Len(t, body["attempts"], 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/history/attempts?limit=5", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, stub.limit)

	app = newTestApp("o2", register)
	resp, _ = doJSON(t, app, http.MethodGet, "/schedule/s1/attempts", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

type stubRules struct {
	service.RulesService
	deleteErr error
}

func (s *stubRules) List(context.Context, string) ([]*models.PostingRule, bool, error) {
	return []*models.PostingRule{{ID: "r1", Name: "Weekends", Kind: models.WeekendRestriction{}, Action: models.ActionBlock, Enabled: true}}, true, nil
}

func (s *stubRules) Delete(context.Context, string, string) error { return s.deleteErr }

func TestRulesHandlers(t *testing.T) {
	stub := &stubRules{}
	h := NewRulesHandler(stub)
	app := newTestApp("o1", func(app *fiber.App) {
		app.Get("/rules", h.ListRules)
		app.Post("/rules", h.CreateRule)
		app.Delete("/rules/:id", h.DeleteRule)
	})

	resp, body := doJSON(t, app, http.MethodGet, "/rules", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["using_defaults"])
	assert.Len(t, body["rules"], 1)

	resp, _ = doJSON(t, app, http.MethodPost, "/rules", map[string]any{"name": "x", "kind": "moon", "action": "block"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/rules/r1", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	stub.deleteErr = models.ErrNotFound
	resp, _ = doJSON(t, app, http.MethodDelete, "/rules/r1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

type stubRunner struct{ res *queue.Result }

func (s stubRunner) ProcessOnce(context.Context) *queue.Result { return s.res }

type stubEnqueuer struct{ calls int }

func (s *stubEnqueuer) EnqueueContext(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	s.calls++
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestProcessQueue(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewQueueHandler(stubRunner{res: &queue.Result{Status: queue.StatusAlreadyProcessing}}, enq, &stubScheduler{})
	app := newTestApp("o1", func(app *fiber.App) {
		app.Post("/queue/process", h.ProcessQueue)
		app.Get("/queue/info", h.QueueInfo)
	})

	resp, body := doJSON(t, app, http.MethodPost, "/queue/process", nil)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "t1", body["task_id"])
	assert.Equal(t, 1, enq.calls)

	resp, body = doJSON(t, app, http.MethodPost, "/queue/process?wait=true", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, queue.StatusAlreadyProcessing, body["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/queue/info", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_pending"])
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/health", Health)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
