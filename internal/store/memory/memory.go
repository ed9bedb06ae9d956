// Package memory is an in-memory implementation of the store interfaces,
// used by tests and local experiments. It mimics the Postgres layer's
// semantics: serial ids, insertion-order listings, most-recent-rule-wins.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/store"
)

// Storage holds all four tables in memory, guarded by one mutex.
type Storage struct {
	mu sync.RWMutex

	nextTxID      int64
	nextRuleID    int64
	nextMappingID int64
	nextUserID    int64

	transactions []*domain.Transaction
	rules        []*domain.CategoryRule
	mappings     []*store.FieldMappingRow
	users        []*domain.User
}

var (
	_ store.TransactionStore = (*Storage)(nil)
	_ store.MappingStore     = (*Storage)(nil)
	_ store.RuleStore        = (*Storage)(nil)
	_ store.UserStore        = (*Storage)(nil)
)

// NewStorage creates an empty in-memory store.
func NewStorage() *Storage {
	return &Storage{nextTxID: 1, nextRuleID: 1, nextMappingID: 1, nextUserID: 1}
}

// InsertTransactions implements store.TransactionStore.
func (s *Storage) InsertTransactions(ctx context.Context, txs []*domain.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range txs {
		cp := *t
		cp.ID = s.nextTxID
		s.nextTxID++
		t.ID = cp.ID
		s.transactions = append(s.transactions, &cp)
	}
	return len(txs), nil
}

// ListForUser implements store.TransactionStore.
func (s *Storage) ListForUser(ctx context.Context, username string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range s.transactions {
		if t.Username == username {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListUncategorized implements store.TransactionStore.
func (s *Storage) ListUncategorized(ctx context.Context, username string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range s.transactions {
		if t.Username == username && t.Category == "" {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// DeleteByIDs implements store.TransactionStore.
func (s *Storage) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := s.transactions[:0]
	var removed int64
	for _, t := range s.transactions {
		if drop[t.ID] {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.transactions = kept
	return removed, nil
}

// ListAll implements store.TransactionStore.
func (s *Storage) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// GetMappings implements store.MappingStore.
func (s *Storage) GetMappings(ctx context.Context, account string) (map[domain.CanonicalField]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappings := make(map[domain.CanonicalField]string)
	for _, m := range s.mappings {
		if m.Account == account {
			mappings[domain.CanonicalField(m.Target)] = m.Source
		}
	}
	return mappings, nil
}

// ReplaceMappings implements store.MappingStore.
func (s *Storage) ReplaceMappings(ctx context.Context, account string, mappings map[domain.CanonicalField]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.mappings[:0]
	for _, m := range s.mappings {
		if m.Account != account {
			kept = append(kept, m)
		}
	}
	s.mappings = kept

	// Deterministic insertion order for stable ids.
	targets := make([]string, 0, len(mappings))
	for target := range mappings {
		targets = append(targets, string(target))
	}
	sort.Strings(targets)

	for _, target := range targets {
		s.mappings = append(s.mappings, &store.FieldMappingRow{
			ID:      s.nextMappingID,
			Account: account,
			Source:  mappings[domain.CanonicalField(target)],
			Target:  target,
		})
		s.nextMappingID++
	}
	return nil
}

// ListAccounts implements store.MappingStore.
func (s *Storage) ListAccounts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var accounts []string
	for _, m := range s.mappings {
		if !seen[m.Account] {
			seen[m.Account] = true
			accounts = append(accounts, m.Account)
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// ListAllMappings implements store.MappingStore.
func (s *Storage) ListAllMappings(ctx context.Context) ([]*store.FieldMappingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.FieldMappingRow, 0, len(s.mappings))
	for _, m := range s.mappings {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// FindTarget implements store.RuleStore.
func (s *Storage) FindTarget(ctx context.Context, originalCategory, merchantName, description string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.rules) - 1; i >= 0; i-- {
		r := s.rules[i]
		if r.OriginalCategory == originalCategory &&
			r.MerchantName == merchantName &&
			r.Description == description {
			return r.TargetCategory, nil
		}
	}
	return "", nil
}

// AppendRuleAndBackfill implements store.RuleStore.
func (s *Storage) AppendRuleAndBackfill(ctx context.Context, rule *domain.CategoryRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rule
	cp.ID = s.nextRuleID
	s.nextRuleID++
	rule.ID = cp.ID
	s.rules = append(s.rules, &cp)

	var updated int64
	for _, t := range s.transactions {
		if t.OriginalCategory == rule.OriginalCategory &&
			t.MerchantName == rule.MerchantName &&
			t.Description == rule.Description {
			t.Category = rule.TargetCategory
			updated++
		}
	}
	return updated, nil
}

// ListTargetCategories implements store.RuleStore.
func (s *Storage) ListTargetCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var categories []string
	for _, r := range s.rules {
		if r.TargetCategory != "" && !seen[r.TargetCategory] {
			seen[r.TargetCategory] = true
			categories = append(categories, r.TargetCategory)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// ListRules implements store.RuleStore.
func (s *Storage) ListRules(ctx context.Context) ([]*domain.CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CategoryRule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// CreateUser implements store.UserStore.
func (s *Storage) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return fmt.Errorf("CreateUser: username %q already exists", user.Username)
		}
	}

	cp := *user
	cp.ID = s.nextUserID
	s.nextUserID++
	user.ID = cp.ID
	s.users = append(s.users, &cp)
	return nil
}

// GetUser implements store.UserStore.
func (s *Storage) GetUser(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// UpdateUserToken implements store.UserStore.
func (s *Storage) UpdateUserToken(ctx context.Context, username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			u.Token = token
			return nil
		}
	}
	return fmt.Errorf("UpdateUserToken: user %q not found", username)
}

// ListUsers implements store.UserStore.
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}
