package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListByOwner(ctx context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error)
	ListUpcoming(ctx context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error)
	GetDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id string) (bool, error)
	ReclaimStale(ctx context.Context, before time.Time) (int, error)
	UpdateStatus(ctx context.Context, id string, expected models.PostStatus, upd models.StatusUpdate) error
	Cancel(ctx context.Context, ownerID, id string) (bool, error)
	Reschedule(ctx context.Context, ownerID, id string, at time.Time) (bool, error)
	CountInWindow(ctx context.Context, ownerID string, from, to time.Time) (int, error)
	LastPostTime(ctx context.Context, ownerID string) (*time.Time, error)
	RecentPostedTexts(ctx context.Context, ownerID string, since time.Time) ([]models.PostedText, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error)
	QueueStats(ctx context.Context, ownerID string, now time.Time) (*models.QueueInfo, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const scheduledPostColumns = `id, owner_id, content_ref, text, content_type, scheduled_time, priority, status,
	retry_count, max_retries, force, posted_at, posted_external_id, last_error_code, last_error_message,
	created_at, updated_at`

var (
	dispatchableStatuses  = statusArray(models.StatusScheduled, models.StatusRetryPending)
	cancellableStatuses   = statusArray(models.StatusScheduled, models.StatusRetryPending)
	reschedulableStatuses = statusArray(models.StatusScheduled, models.StatusRetryPending, models.StatusFailed)
	dailyCountedStatuses  = statusArray(models.StatusPosted, models.StatusScheduled)
)

func statusArray(statuses ...models.PostStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledPost(s rowScanner) (*models.ScheduledPost, error) {
	var (
		p          models.ScheduledPost
		postedAt   sql.NullTime
		externalID sql.NullString
		errCode    sql.NullString
		errMessage sql.NullString
	)
	err := s.Scan(&p.ID, &p.OwnerID, &p.ContentRef, &p.Text, &p.ContentType, &p.ScheduledTime,
		&p.Priority, &p.Status, &p.RetryCount, &p.MaxRetries, &p.Force, &postedAt, &externalID,
		&errCode, &errMessage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if postedAt.Valid {
		t := postedAt.Time
		p.PostedAt = &t
	}
	p.PostedExternalID = externalID.String
	if errCode.Valid || errMessage.Valid {
		p.LastError = &models.PostError{Code: errCode.String, Message: errMessage.String}
	}
	return &p, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (id, owner_id, content_ref, text, content_type, scheduled_time,
			priority, status, retry_count, max_retries, force)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	args := []any{post.ID, post.OwnerID, post.ContentRef, post.Text, post.ContentType, post.ScheduledTime,
		post.Priority, post.Status, post.RetryCount, post.MaxRetries, post.Force}

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, args...)
	} else {
		row = r.db.QueryRowContext(ctx, query, args...)
	}
	if err := row.Scan(&post.CreatedAt, &post.UpdatedAt); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

// ListByOwner returns the owner's posts, newest activity first. An empty status list matches all.
func (r *scheduledPostRepository) ListByOwner(ctx context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts
		WHERE owner_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, ownerID, pq.Array(statusArray(statuses...)), limit, offset)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListUpcoming returns the owner's posts in publish order, earliest scheduled time first.
func (r *scheduledPostRepository) ListUpcoming(ctx context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts
		WHERE owner_id = $1 AND status = ANY($2)
		ORDER BY scheduled_time ASC, priority DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, ownerID, pq.Array(statusArray(statuses...)), limit, offset)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// GetDue returns dispatchable posts whose time has come, highest priority first,
// then earliest scheduled time.
func (r *scheduledPostRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts
		WHERE status = ANY($1) AND scheduled_time <= $2
		ORDER BY priority DESC, scheduled_time ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(dispatchableStatuses), now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

func collectPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Claim moves a dispatchable post to publishing. It reports false when another
// caller already claimed it or it was cancelled in the meantime.
func (r *scheduledPostRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`
	return r.execSingle(ctx, query, id, models.StatusPublishing, pq.Array(dispatchableStatuses))
}

// ReclaimStale returns posts stuck in publishing since before the cutoff to
// retry_pending so the queue dispatches them again.
func (r *scheduledPostRepository) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, last_error_code = $2, last_error_message = $3, updated_at = NOW()
		WHERE status = $4 AND updated_at < $5
	`
	result, err := r.db.ExecContext(ctx, query, models.StatusRetryPending, models.CodeStaleClaim,
		"publish attempt did not complete", models.StatusPublishing, before)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return int(affected), nil
}

// UpdateStatus applies a transition out of the expected status. Zero-valued optional
// fields keep their stored values.
func (r *scheduledPostRepository) UpdateStatus(ctx context.Context, id string, expected models.PostStatus, upd models.StatusUpdate) error {
	query := `
		UPDATE scheduled_posts
		SET
			status = $3,
			posted_external_id = COALESCE(NULLIF($4, ''), posted_external_id),
			last_error_code = COALESCE($5, last_error_code),
			last_error_message = COALESCE($6, last_error_message),
			retry_count = COALESCE($7, retry_count),
			scheduled_time = COALESCE($8, scheduled_time),
			posted_at = COALESCE($9, posted_at),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	var errCode, errMessage sql.NullString
	if upd.Error != nil {
		errCode = sql.NullString{String: upd.Error.Code, Valid: true}
		errMessage = sql.NullString{String: upd.Error.Message, Valid: true}
	}
	var retryCount sql.NullInt64
	if upd.RetryCount != nil {
		retryCount = sql.NullInt64{Int64: int64(*upd.RetryCount), Valid: true}
	}

	ok, err := r.execSingle(ctx, query, id, expected, upd.Status, upd.ExternalID,
		errCode, errMessage, retryCount, nullTime(upd.ScheduledTime), nullTime(upd.PostedAt))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("status update rejected", "post_id", id, "expected", expected, "status", upd.Status)
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *scheduledPostRepository) Cancel(ctx context.Context, ownerID, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = ANY($4)
	`
	return r.execSingle(ctx, query, id, ownerID, models.StatusCancelled, pq.Array(cancellableStatuses))
}

func (r *scheduledPostRepository) Reschedule(ctx context.Context, ownerID, id string, at time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $3, scheduled_time = $4, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = ANY($5)
	`
	return r.execSingle(ctx, query, id, ownerID, models.StatusScheduled, at, pq.Array(reschedulableStatuses))
}

func (r *scheduledPostRepository) execSingle(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// CountInWindow counts posted or scheduled posts whose publish time falls in [from, to).
func (r *scheduledPostRepository) CountInWindow(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM scheduled_posts
		WHERE owner_id = $1 AND status = ANY($2)
		AND COALESCE(posted_at, scheduled_time) >= $3
		AND COALESCE(posted_at, scheduled_time) < $4
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, ownerID, pq.Array(dailyCountedStatuses), from, to).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *scheduledPostRepository) LastPostTime(ctx context.Context, ownerID string) (*time.Time, error) {
	query := `SELECT MAX(posted_at) FROM scheduled_posts WHERE owner_id = $1 AND status = $2`

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, ownerID, models.StatusPosted).Scan(&last); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (r *scheduledPostRepository) RecentPostedTexts(ctx context.Context, ownerID string, since time.Time) ([]models.PostedText, error) {
	query := `
		SELECT text, posted_at FROM scheduled_posts
		WHERE owner_id = $1 AND status = $2 AND posted_at >= $3
		ORDER BY posted_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, models.StatusPosted, since)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var texts []models.PostedText
	for rows.Next() {
		var pt models.PostedText
		if err := rows.Scan(&pt.Text, &pt.PostedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		texts = append(texts, pt)
	}
	return texts, rows.Err()
}

func (r *scheduledPostRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM scheduled_posts WHERE owner_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PostStatus]int)
	for rows.Next() {
		var status models.PostStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// QueueStats summarises the owner's queue relative to now.
func (r *scheduledPostRepository) QueueStats(ctx context.Context, ownerID string, now time.Time) (*models.QueueInfo, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'retry_pending'),
			COUNT(*) FILTER (WHERE status = ANY($2) AND scheduled_time >= $3 AND scheduled_time < $4),
			COUNT(*) FILTER (WHERE status = ANY($2) AND scheduled_time < $5),
			MIN(scheduled_time) FILTER (WHERE status = ANY($2) AND scheduled_time >= $3)
		FROM scheduled_posts
		WHERE owner_id = $1
	`
	var info models.QueueInfo
	var next sql.NullTime
	err := r.db.QueryRowContext(ctx, query, ownerID, pq.Array(dispatchableStatuses),
		now, now.Add(24*time.Hour), now.Add(-models.OverdueGrace)).
		Scan(&info.TotalPending, &info.TotalScheduled, &info.RetryQueueSize, &info.Upcoming24h, &info.OverdueCount, &next)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if next.Valid {
		info.NextPublishTime = &next.Time
	}
	return &info, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
