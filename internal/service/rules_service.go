package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
	"github.com/maheshrc27/scheduling-engine/internal/rules"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type RulesService interface {
	List(ctx context.Context, ownerID string) ([]*models.PostingRule, bool, error)
	Get(ctx context.Context, ownerID, id string) (*models.PostingRule, error)
	Create(ctx context.Context, ownerID string, req *transfer.RuleRequest) (*models.PostingRule, error)
	Update(ctx context.Context, ownerID, id string, req *transfer.RuleRequest) (*models.PostingRule, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type rulesService struct {
	rr     repository.PostingRuleRepository
	engine *rules.Engine
}

func NewRulesService(rr repository.PostingRuleRepository, engine *rules.Engine) RulesService {
	return &rulesService{rr: rr, engine: engine}
}

// List returns the rules in effect for the owner. The flag is true when the
// owner has no stored rules and the defaults apply.
func (s *rulesService) List(ctx context.Context, ownerID string) ([]*models.PostingRule, bool, error) {
	stored, err := s.rr.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	if len(stored) > 0 {
		return stored, false, nil
	}

	prefs, err := s.engine.Preferences(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	return rules.DefaultRules(prefs), true, nil
}

func (s *rulesService) Get(ctx context.Context, ownerID, id string) (*models.PostingRule, error) {
	rule, err := s.rr.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, models.ErrNotFound
	}
	return rule, nil
}

func (s *rulesService) Create(ctx context.Context, ownerID string, req *transfer.RuleRequest) (*models.PostingRule, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	rule := &models.PostingRule{ID: id, OwnerID: ownerID, Enabled: true}
	if err := applyRuleRequest(rule, req); err != nil {
		return nil, err
	}
	if err := s.rr.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("error creating posting rule: %w", err)
	}
	return rule, nil
}

func (s *rulesService) Update(ctx context.Context, ownerID, id string, req *transfer.RuleRequest) (*models.PostingRule, error) {
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := applyRuleRequest(rule, req); err != nil {
		return nil, err
	}
	if err := s.rr.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *rulesService) Delete(ctx context.Context, ownerID, id string) error {
	ok, err := s.rr.Delete(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotFound
	}
	return nil
}

func applyRuleRequest(rule *models.PostingRule, req *transfer.RuleRequest) error {
	kind, err := models.DecodeRuleKind(req.Kind, req.Conditions)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidRule, err.Error())
	}

	rule.Name = req.Name
	rule.Priority = req.Priority
	rule.Kind = kind
	rule.Action = models.RuleAction(req.Action)
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	return rule.Validate()
}
