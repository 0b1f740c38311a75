package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type PostingRuleRepository interface {
	Create(ctx context.Context, rule *models.PostingRule) error
	GetByID(ctx context.Context, ownerID, id string) (*models.PostingRule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.PostingRule, error)
	Update(ctx context.Context, rule *models.PostingRule) error
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

type postingRuleRepository struct {
	db *sql.DB
}

func NewPostingRuleRepository(db *sql.DB) PostingRuleRepository {
	return &postingRuleRepository{db: db}
}

const postingRuleColumns = `id, owner_id, name, enabled, priority, kind, conditions, action, created_at, updated_at`

func scanPostingRule(s rowScanner) (*models.PostingRule, error) {
	var (
		rule       models.PostingRule
		kind       string
		conditions []byte
	)
	err := s.Scan(&rule.ID, &rule.OwnerID, &rule.Name, &rule.Enabled, &rule.Priority,
		&kind, &conditions, &rule.Action, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rule.Kind, err = models.DecodeRuleKind(kind, conditions); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *postingRuleRepository) Create(ctx context.Context, rule *models.PostingRule) error {
	kind, conditions, err := models.EncodeRuleKind(rule.Kind)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posting_rules (id, owner_id, name, enabled, priority, rule_type, kind, conditions, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query, rule.ID, rule.OwnerID, rule.Name, rule.Enabled, rule.Priority,
		rule.Kind.Type(), kind, conditions, rule.Action).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postingRuleRepository) GetByID(ctx context.Context, ownerID, id string) (*models.PostingRule, error) {
	query := `SELECT ` + postingRuleColumns + ` FROM posting_rules WHERE id = $1 AND owner_id = $2`
	rule, err := scanPostingRule(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return rule, nil
}

func (r *postingRuleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.PostingRule, error) {
	query := `SELECT ` + postingRuleColumns + ` FROM posting_rules WHERE owner_id = $1 ORDER BY priority ASC, created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var rules []*models.PostingRule
	for rows.Next() {
		rule, err := scanPostingRule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return rules, nil
}

func (r *postingRuleRepository) Update(ctx context.Context, rule *models.PostingRule) error {
	kind, conditions, err := models.EncodeRuleKind(rule.Kind)
	if err != nil {
		return err
	}

	query := `
		UPDATE posting_rules
		SET name = $3, enabled = $4, priority = $5, rule_type = $6, kind = $7, conditions = $8,
			action = $9, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query, rule.ID, rule.OwnerID, rule.Name, rule.Enabled, rule.Priority,
		rule.Kind.Type(), kind, conditions, rule.Action).Scan(&rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postingRuleRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	query := `DELETE FROM posting_rules WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
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
