package store

import (
	"context"

	"github.com/noahpengding/peng-finance/internal/domain"
)

// TransactionStore persists imported transactions.
type TransactionStore interface {
	// InsertTransactions bulk-inserts candidates and returns how many rows
	// made it in. The batch is atomic: a failed row means nothing persists
	// and the count is 0.
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) (int, error)

	// ListForUser returns every transaction owned by username in insertion
	// order.
	ListForUser(ctx context.Context, username string) ([]*domain.Transaction, error)

	// ListUncategorized returns the user's transactions with an empty
	// category, in insertion order.
	ListUncategorized(ctx context.Context, username string) ([]*domain.Transaction, error)

	// DeleteByIDs removes the given rows and reports how many were deleted.
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)

	// ListAll returns every transaction across users, for snapshot export.
	ListAll(ctx context.Context) ([]*domain.Transaction, error)
}

// MappingStore persists per-account field mappings.
type MappingStore interface {
	// GetMappings returns the account's canonical-field → source map. An
	// unknown account yields an empty map, not an error.
	GetMappings(ctx context.Context, account string) (map[domain.CanonicalField]string, error)

	// ReplaceMappings atomically wipes the account's mappings and writes the
	// new set.
	ReplaceMappings(ctx context.Context, account string, mappings map[domain.CanonicalField]string) error

	// ListAccounts returns the distinct accounts that have saved mappings.
	ListAccounts(ctx context.Context) ([]string, error)

	// ListAllMappings returns every mapping row, for snapshot export.
	ListAllMappings(ctx context.Context) ([]*FieldMappingRow, error)
}

// FieldMappingRow is the persisted form of one mapping entry.
type FieldMappingRow struct {
	ID      int64  `json:"id"`
	Account string `json:"account"`
	Source  string `json:"source"`
	Target  string `json:"target"`
}

// RuleStore persists category rules. Rules are append-only.
type RuleStore interface {
	// FindTarget returns the target category for the triple, or "" when no
	// rule matches. When several rules share the triple the most recently
	// appended one wins.
	FindTarget(ctx context.Context, originalCategory, merchantName, description string) (string, error)

	// AppendRuleAndBackfill appends the rule and, in the same transaction,
	// sets the category of every stored transaction matching the triple.
	// Returns the number of backfilled transactions.
	AppendRuleAndBackfill(ctx context.Context, rule *domain.CategoryRule) (int64, error)

	// ListTargetCategories returns the sorted distinct non-empty target
	// categories across all rules.
	ListTargetCategories(ctx context.Context) ([]string, error)

	// ListRules returns every rule, for snapshot export.
	ListRules(ctx context.Context) ([]*domain.CategoryRule, error)
}

// UserStore persists user rows. The core trusts usernames handed to it; this
// exists for account provisioning and snapshot export.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)
	UpdateUserToken(ctx context.Context, username, token string) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
}
