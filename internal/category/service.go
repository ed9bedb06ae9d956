// Package category maintains the rule table that maps a transaction's
// (original_category, merchant_name, description) triple to a user-chosen
// category, and backfills stored transactions when a rule is saved.
package category

import (
	"context"
	"fmt"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/store"
)

// Service answers category lookups and records new rules.
type Service struct {
	rules        store.RuleStore
	transactions store.TransactionStore
	publisher    jobs.Publisher
}

// NewService creates a category service. publisher may be nil when no
// durability mirror is configured.
func NewService(rules store.RuleStore, transactions store.TransactionStore, publisher jobs.Publisher) *Service {
	return &Service{rules: rules, transactions: transactions, publisher: publisher}
}

// Resolve returns the target category for the triple, or "" when no rule
// matches. When several rules share the triple, the most recently saved one
// wins; that keeps repeated re-categorization deterministic.
func (s *Service) Resolve(ctx context.Context, originalCategory, merchantName, description string) (string, error) {
	target, err := s.rules.FindTarget(ctx, originalCategory, merchantName, description)
	if err != nil {
		return "", fmt.Errorf("Resolve: %w", err)
	}
	return target, nil
}

// Assign appends a rule and retroactively categorizes every stored
// transaction matching the triple. Future imports pick the rule up through
// Resolve. Returns the number of backfilled transactions.
func (s *Service) Assign(ctx context.Context, originalCategory, merchantName, description, targetCategory string) (int64, error) {
	log := logger.FromContext(ctx)

	rule := &domain.CategoryRule{
		OriginalCategory: originalCategory,
		MerchantName:     merchantName,
		Description:      description,
		TargetCategory:   targetCategory,
	}

	updated, err := s.rules.AppendRuleAndBackfill(ctx, rule)
	if err != nil {
		return 0, fmt.Errorf("Assign: %w", err)
	}

	log.Info().
		Str("original_category", originalCategory).
		Str("merchant_name", merchantName).
		Str("target_category", targetCategory).
		Int64("backfilled", updated).
		Msg("Saved category rule")

	if s.publisher != nil {
		err := s.publisher.PublishSync(ctx, &jobs.SyncJob{Reason: "assign_category"})
		if err != nil {
			log.Warn().Err(err).Msg("Could not enqueue snapshot sync")
		}
	}
	return updated, nil
}

// ListCategories returns the sorted distinct target categories across all
// rules, excluding the empty string. Used to populate selection choices.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.rules.ListTargetCategories(ctx)
}

// ListUncategorized returns the user's transactions whose category is still
// empty, driving the categorization workflow.
func (s *Service) ListUncategorized(ctx context.Context, username string) ([]*domain.Transaction, error) {
	return s.transactions.ListUncategorized(ctx, username)
}
