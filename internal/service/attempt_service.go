package service

import (
	"context"

	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
)

// AttemptService reads the publishing attempt log written by the history sink.
type AttemptService interface {
	ForPost(ctx context.Context, ownerID, postID string) ([]*models.PostingHistory, error)
	Recent(ctx context.Context, ownerID string, limit int) ([]*models.PostingHistory, error)
}

type attemptService struct {
	posts   repository.ScheduledPostRepository
	history repository.PostingHistoryRepository
}

func NewAttemptService(posts repository.ScheduledPostRepository, history repository.PostingHistoryRepository) AttemptService {
	return &attemptService{posts: posts, history: history}
}

// ForPost returns every logged attempt for one of the owner's posts, oldest first.
func (s *attemptService) ForPost(ctx context.Context, ownerID, postID string) ([]*models.PostingHistory, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}

	attempts, err := s.history.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []*models.PostingHistory{}
	}
	return attempts, nil
}

func (s *attemptService) Recent(ctx context.Context, ownerID string, limit int) ([]*models.PostingHistory, error) {
	attempts, err := s.history.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []*models.PostingHistory{}
	}
	return attempts, nil
}
