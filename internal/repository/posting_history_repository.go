package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (owner_id, post_id, event_type, external_id, error_code, error_message, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.OwnerID, ph.PostID, ph.EventType, ph.ExternalID,
		ph.ErrorCode, ph.ErrorMessage, ph.RetryCount).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, owner_id, post_id, event_type, external_id, error_code, error_message, retry_count, created_at
		FROM posting_history WHERE post_id = $1 ORDER BY created_at ASC
	`
	return r.list(ctx, query, postID)
}

func (r *postingHistoryRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, owner_id, post_id, event_type, external_id, error_code, error_message, retry_count, created_at
		FROM posting_history WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	return r.list(ctx, query, ownerID, limit)
}

func (r *postingHistoryRepository) list(ctx context.Context, query string, args ...any) ([]*models.PostingHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.OwnerID, &ph.PostID, &ph.EventType, &ph.ExternalID,
			&ph.ErrorCode, &ph.ErrorMessage, &ph.RetryCount, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
