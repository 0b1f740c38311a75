package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

// ContentRepository reads drafts produced by the content pipeline.
type ContentRepository interface {
	GetByID(ctx context.Context, id string) (*models.ContentDraft, error)
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) GetByID(ctx context.Context, id string) (*models.ContentDraft, error) {
	query := `SELECT id, owner_id, text, content_type, status, created_at FROM content_drafts WHERE id = $1`

	var d models.ContentDraft
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.OwnerID, &d.Text, &d.ContentType, &d.Status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &d, nil
}
