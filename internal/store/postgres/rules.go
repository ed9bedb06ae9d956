package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noahpengding/peng-finance/internal/domain"
)

// FindTarget returns the target category for the triple, or "" when no rule
// matches. Rules are append-only; the highest id is the most recent, so
// most-recent-wins falls out of the ordering.
func (s *Storage) FindTarget(ctx context.Context, originalCategory, merchantName, description string) (string, error) {
	var target string
	err := s.db.QueryRow(ctx, `
		SELECT target_category
		FROM category_rules
		WHERE original_category = $1 AND merchant_name = $2 AND description = $3
		ORDER BY id DESC
		LIMIT 1
	`, originalCategory, merchantName, description).Scan(&target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("FindTarget: query: %w", err)
	}
	return target, nil
}

// AppendRuleAndBackfill appends the rule and backfills matching transactions
// in one transaction, so a rule can never exist without its backfill having
// run (and vice versa).
func (s *Storage) AppendRuleAndBackfill(ctx context.Context, rule *domain.CategoryRule) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("AppendRuleAndBackfill: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO category_rules (original_category, merchant_name, description, target_category)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rule.OriginalCategory, rule.MerchantName, rule.Description, rule.TargetCategory).Scan(&rule.ID)
	if err != nil {
		return 0, fmt.Errorf("AppendRuleAndBackfill: inserting rule: %w", err)
	}

	cmd, err := tx.Exec(ctx, `
		UPDATE transactions
		SET category = $1
		WHERE original_category = $2 AND merchant_name = $3 AND description = $4
	`, rule.TargetCategory, rule.OriginalCategory, rule.MerchantName, rule.Description)
	if err != nil {
		return 0, fmt.Errorf("AppendRuleAndBackfill: backfilling transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("AppendRuleAndBackfill: commit: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// ListTargetCategories returns the sorted distinct non-empty target
// categories across all rules.
func (s *Storage) ListTargetCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT target_category
		FROM category_rules
		WHERE target_category <> ''
		ORDER BY target_category
	`)
	if err != nil {
		return nil, fmt.Errorf("ListTargetCategories: query: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("ListTargetCategories: scanning row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListRules returns every rule, for snapshot export.
func (s *Storage) ListRules(ctx context.Context) ([]*domain.CategoryRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, original_category, merchant_name, description, target_category
		FROM category_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListRules: query: %w", err)
	}
	defer rows.Close()

	var rules []*domain.CategoryRule
	for rows.Next() {
		var r domain.CategoryRule
		if err := rows.Scan(&r.ID, &r.OriginalCategory, &r.MerchantName, &r.Description, &r.TargetCategory); err != nil {
			return nil, fmt.Errorf("ListRules: scanning row: %w", err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}
